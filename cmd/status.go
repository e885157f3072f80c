package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/pkg/ors"
)

// Probe location and range for the routing connectivity check. Any point
// inside the loaded graph works; this one is Nairobi.
const (
	probeLat          = -1.2921
	probeLon          = 36.8219
	probeRangeSeconds = 300
)

var (
	statusWait     bool
	statusTimeout  time.Duration
	statusInterval time.Duration
	statusProbe    bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check routing backend health",
	Long:  "Checks the routing backend health endpoint, optionally waiting for the graph to finish loading, then issues a small probe isochrone to confirm routing works end to end.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client := newRoutingClient()

		hs, err := waitForHealth(ctx, client)
		if err != nil {
			return err
		}
		fmt.Printf("Routing backend at %s: %s\n", cfg.ORS.BaseURL, hs.Status)

		if !statusProbe {
			return nil
		}

		started := time.Now()
		fc, err := client.Isochrones(ctx, ors.IsochroneRequest{
			Lat:          probeLat,
			Lon:          probeLon,
			Profile:      cfg.ORS.Profile,
			RangeSeconds: probeRangeSeconds,
		})
		if err != nil {
			return eris.Wrap(err, "connectivity probe failed")
		}
		if len(fc.Features) == 0 {
			return eris.New("connectivity probe returned no features; is the graph region correct?")
		}
		fmt.Printf("Connectivity probe OK (%d feature(s) in %s)\n",
			len(fc.Features), time.Since(started).Round(time.Millisecond))
		return nil
	},
}

func waitForHealth(ctx context.Context, client ors.Client) (*ors.HealthStatus, error) {
	if !statusWait {
		hs, err := client.Health(ctx)
		if err != nil {
			return nil, eris.Wrapf(err, "routing backend unreachable at %s", cfg.ORS.BaseURL)
		}
		return hs, nil
	}

	deadline := time.Now().Add(statusTimeout)
	for {
		hs, err := client.Health(ctx)
		if err == nil && hs.Ready() {
			return hs, nil
		}
		if err != nil {
			zap.L().Info("routing backend not reachable yet", zap.Error(err))
		} else {
			zap.L().Info("routing backend still loading", zap.String("status", hs.Status))
		}

		if time.Now().After(deadline) {
			return nil, eris.Errorf("routing backend not ready after %s", statusTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(statusInterval):
		}
	}
}

func init() {
	statusCmd.Flags().BoolVar(&statusWait, "wait", false, "poll until the backend reports ready")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 10*time.Minute, "maximum time to wait with --wait")
	statusCmd.Flags().DurationVar(&statusInterval, "interval", 10*time.Second, "poll interval with --wait")
	statusCmd.Flags().BoolVar(&statusProbe, "probe", true, "issue a probe isochrone after the health check")
	rootCmd.AddCommand(statusCmd)
}
