package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/analysis"
	"github.com/sells-group/catchment-cli/internal/export"
	"github.com/sells-group/catchment-cli/internal/facility"
	"github.com/sells-group/catchment-cli/internal/model"
	"github.com/sells-group/catchment-cli/internal/store"
)

var (
	analyzeInput    string
	analyzeCSV      string
	analyzeGeoJSON  string
	analyzeMap      string
	analyzeNoCache  bool
	strictPreflight bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run catchment analysis for every facility in the input file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input := analyzeInput
		if input == "" {
			input = cfg.Files.Input
		}
		outputCSV := analyzeCSV
		if outputCSV == "" {
			outputCSV = cfg.Files.OutputCSV
		}
		outputGeoJSON := analyzeGeoJSON
		if outputGeoJSON == "" {
			outputGeoJSON = cfg.Files.OutputGeoJSON
		}
		outputMap := analyzeMap
		if outputMap == "" {
			outputMap = cfg.Files.OutputMap
		}

		table, err := facility.Load(input)
		if err != nil {
			return eris.Wrapf(err, "load facilities from %s", input)
		}
		table = table.FilterByLevel(cfg.Analysis.TargetLevels)
		if len(table.Facilities) == 0 {
			return eris.Errorf("no facilities to analyze in %s after level filter", input)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		opts := []analysis.Option{}
		if !analyzeNoCache {
			opts = append(opts, analysis.WithCache(st))
		}
		analyzer := analysis.New(cfg, newRoutingClient(), newRasterClient(), opts...)

		if err := analyzer.PreFlight(ctx); err != nil {
			if strictPreflight {
				return eris.Wrap(err, "pre-flight failed")
			}
			zap.L().Warn("pre-flight failed, continuing; the circuit breaker will abort if the backend stays down",
				zap.Error(err))
		}

		run, err := st.CreateRun(ctx, input)
		if err != nil {
			return eris.Wrap(err, "create run")
		}
		zap.L().Info("starting analysis",
			zap.String("run_id", run.ID),
			zap.String("input", input),
			zap.Int("facilities", len(table.Facilities)),
			zap.Ints("range_seconds", cfg.Analysis.RangeSeconds),
		)

		outcome, batchErr := analyzer.RunBatch(ctx, run.ID, table.Facilities)

		if err := st.RecordDeadLetters(ctx, outcome.DeadLetters); err != nil {
			zap.L().Warn("recording skipped facilities failed", zap.Error(err))
		}

		summary := &model.RunSummary{
			Total:        outcome.Total,
			Succeeded:    outcome.Succeeded(),
			Skipped:      len(outcome.DeadLetters),
			RangeSeconds: cfg.Analysis.RangeSeconds,
			DurationMs:   outcome.Duration.Milliseconds(),
		}

		if len(outcome.Results) > 0 {
			if err := export.WriteCSV(outputCSV, table.Headers, cfg.Analysis.RangeSeconds, outcome.Results); err != nil {
				return finishRun(ctx, st, run.ID, model.RunStatusFailed, summary, err)
			}
			summary.OutputCSV = outputCSV

			if err := export.WriteGeoJSON(outputGeoJSON, outcome.Results); err != nil {
				return finishRun(ctx, st, run.ID, model.RunStatusFailed, summary, err)
			}
			summary.OutputGeoJSON = outputGeoJSON

			if err := export.WriteMap(outputMap, cfg.Map, outcome.Results); err != nil {
				return finishRun(ctx, st, run.ID, model.RunStatusFailed, summary, err)
			}
			summary.OutputMap = outputMap
		}

		status := model.RunStatusComplete
		switch {
		case errors.Is(batchErr, context.Canceled):
			status = model.RunStatusInterrupted
		case batchErr != nil:
			status = model.RunStatusFailed
		}
		if err := st.CompleteRun(ctx, run.ID, status, summary); err != nil {
			zap.L().Warn("persisting run summary failed", zap.Error(err))
		}

		if batchErr != nil {
			return eris.Wrap(batchErr, "analysis aborted")
		}

		fmt.Printf("Analysis complete: %s\n", outcome.Summary())
		if summary.OutputCSV != "" {
			fmt.Printf("  CSV:     %s\n", summary.OutputCSV)
			fmt.Printf("  GeoJSON: %s\n", summary.OutputGeoJSON)
			fmt.Printf("  Map:     %s\n", summary.OutputMap)
		}
		return nil
	},
}

func finishRun(ctx context.Context, st store.Store, runID string, status model.RunStatus, summary *model.RunSummary, cause error) error {
	if err := st.CompleteRun(ctx, runID, status, summary); err != nil {
		zap.L().Warn("persisting run summary failed", zap.Error(err))
	}
	return cause
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeInput, "input", "", "facility spreadsheet or shapefile (defaults to files.input)")
	analyzeCmd.Flags().StringVar(&analyzeCSV, "output-csv", "", "CSV output path (defaults to files.output_csv)")
	analyzeCmd.Flags().StringVar(&analyzeGeoJSON, "output-geojson", "", "GeoJSON output path (defaults to files.output_geojson)")
	analyzeCmd.Flags().StringVar(&analyzeMap, "output-map", "", "HTML map output path (defaults to files.output_map)")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "bypass the isochrone cache")
	analyzeCmd.Flags().BoolVar(&strictPreflight, "strict-preflight", false, "abort when the routing backend health check fails")
	rootCmd.AddCommand(analyzeCmd)
}
