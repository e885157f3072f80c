package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/analysis"
	"github.com/sells-group/catchment-cli/internal/export"
	"github.com/sells-group/catchment-cli/internal/model"
)

var (
	isoLat     string
	isoLon     string
	isoName    string
	isoMinutes []int
	isoMap     string
	isoGeoJSON string
)

var isochroneCmd = &cobra.Command{
	Use:   "isochrone",
	Short: "Generate isochrones and population for a single location",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ranges := cfg.Analysis.RangeSeconds
		if len(isoMinutes) > 0 {
			ranges = make([]int, len(isoMinutes))
			for i, m := range isoMinutes {
				ranges[i] = m * 60
			}
		}
		runCfg := *cfg
		runCfg.Analysis.RangeSeconds = ranges

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		analyzer := analysis.New(&runCfg, newRoutingClient(), newRasterClient(), analysis.WithCache(st))

		f := model.Facility{
			Name:   isoName,
			LatRaw: isoLat,
			LonRaw: isoLon,
			Row:    1,
		}
		res, err := analyzer.ProcessFacility(ctx, f)
		if err != nil {
			return eris.Wrapf(err, "isochrone for (%s, %s)", isoLat, isoLon)
		}

		results := []*model.FacilityResult{res}
		mapCfg := runCfg.Map
		mapCfg.CenterLat = res.Lat
		mapCfg.CenterLon = res.Lon
		if mapCfg.ZoomStart < 10 {
			mapCfg.ZoomStart = 10
		}

		if err := export.WriteMap(isoMap, mapCfg, results); err != nil {
			return err
		}
		if isoGeoJSON != "" {
			if err := export.WriteGeoJSON(isoGeoJSON, results); err != nil {
				return err
			}
		}

		for _, r := range res.RangeSeconds() {
			tr := res.Thresholds[r]
			fmt.Printf("%3d min: population %s\n", tr.Minutes(), tr.Population.String())
		}
		zap.L().Info("isochrone map written",
			zap.String("path", isoMap),
			zap.Float64("lat", res.Lat),
			zap.Float64("lon", res.Lon),
		)
		fmt.Printf("Map written to %s\n", isoMap)
		return nil
	},
}

func init() {
	isochroneCmd.Flags().StringVar(&isoLat, "lat", "", "latitude (required)")
	isochroneCmd.Flags().StringVar(&isoLon, "lon", "", "longitude (required)")
	isochroneCmd.Flags().StringVar(&isoName, "name", "Location", "label for the map marker")
	isochroneCmd.Flags().IntSliceVar(&isoMinutes, "minutes", nil, "drive-time thresholds in minutes (defaults to analysis.range_seconds)")
	isochroneCmd.Flags().StringVar(&isoMap, "output-map", "isochrone_map.html", "HTML map output path")
	isochroneCmd.Flags().StringVar(&isoGeoJSON, "output-geojson", "", "optional GeoJSON output path")
	_ = isochroneCmd.MarkFlagRequired("lat")
	_ = isochroneCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(isochroneCmd)
}
