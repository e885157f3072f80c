package analysis

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/model"
	"github.com/sells-group/catchment-cli/pkg/earthengine"
)

// Raster aggregation below this resolution returns too many pixels for the
// backend's per-request budget on country-scale polygons.
const minAggregationScale = 250

// aggregatePopulation sums the population raster over the given polygon.
// Aggregation failures never fail the facility; they degrade to an
// unmeasured population that exports as the sentinel value.
func (a *Analyzer) aggregatePopulation(ctx context.Context, geometry json.RawMessage) model.Population {
	rc := a.cfg.Raster

	start := time.Date(rc.ReferenceYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	req := earthengine.ReduceRequest{
		Dataset:     rc.Dataset,
		Band:        rc.Band,
		Reducer:     "sum",
		Start:       start.Format("2006-01-02"),
		End:         end.Format("2006-01-02"),
		Geometry:    geometry,
		ScaleMeters: rc.ScaleMeters,
		MaxPixels:   rc.MaxPixels,
	}
	if req.ScaleMeters < minAggregationScale {
		a.log.Debug("raising aggregation scale to minimum",
			zap.Int("configured", rc.ScaleMeters),
			zap.Int("effective", minAggregationScale),
		)
		req.ScaleMeters = minAggregationScale
	}

	size, err := a.raster.CollectionSize(ctx, rc.Dataset, start, end)
	if err != nil {
		a.log.Warn("population dataset lookup failed", zap.Error(err))
		return model.UnmeasuredPopulation()
	}
	if size == 0 {
		a.log.Debug("no raster images in reference window, falling back to most recent",
			zap.Int("reference_year", rc.ReferenceYear))
		req.Start = ""
		req.End = ""
		req.MostRecent = true
	}

	value, err := a.raster.ReduceRegion(ctx, req)
	if err != nil {
		a.log.Warn("population aggregation failed", zap.Error(err))
		return model.UnmeasuredPopulation()
	}
	if value == nil {
		a.log.Warn("population aggregation returned no value for polygon")
		return model.UnmeasuredPopulation()
	}
	return model.MeasuredPopulation(*value)
}
