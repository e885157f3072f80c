package analysis

import (
	"context"
	"errors"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/model"
	"github.com/sells-group/catchment-cli/internal/resilience"
)

// ErrNoIsochrones reports that every configured range failed for a facility.
var ErrNoIsochrones = eris.New("no isochrones could be generated for facility")

// ProcessFacility runs the full pipeline for one facility: coordinate
// normalization, one isochrone plus population sum per configured range, and
// the combined service-area geometry. A facility succeeds as long as at
// least one range does; failed ranges are simply absent from the result.
//
// Fatal conditions (open circuit breaker, cancelled context) abort
// immediately and must stop the whole batch.
func (a *Analyzer) ProcessFacility(ctx context.Context, f model.Facility) (*model.FacilityResult, error) {
	lat, lon, swapped, err := a.validator.Normalize(f.LatRaw, f.LonRaw)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: invalid coordinates for %s", f.Label())
	}
	if swapped {
		a.log.Info("coordinates appear transposed, swapping",
			zap.String("facility", f.Label()),
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
		)
	}

	res := &model.FacilityResult{
		Facility:   f,
		Lat:        lat,
		Lon:        lon,
		Swapped:    swapped,
		Thresholds: make(map[int]model.ThresholdResult),
	}

	for i, rangeSeconds := range a.cfg.Analysis.RangeSeconds {
		if i > 0 {
			a.pause(ctx, a.politenessDelay())
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		g, raw, err := a.requestIsochrone(ctx, lat, lon, rangeSeconds)
		if err != nil {
			if errors.Is(err, resilience.ErrCircuitOpen) || ctx.Err() != nil {
				return nil, err
			}
			a.log.Warn("isochrone failed, skipping range",
				zap.String("facility", f.Label()),
				zap.Int("range_seconds", rangeSeconds),
				zap.String("error_type", resilience.ClassifyError(err)),
				zap.Error(err),
			)
			continue
		}

		pop := a.aggregatePopulation(ctx, raw)
		res.Thresholds[rangeSeconds] = model.ThresholdResult{
			RangeSeconds: rangeSeconds,
			Polygon:      g,
			Population:   pop,
		}
		a.log.Info("range complete",
			zap.String("facility", f.Label()),
			zap.Int("range_seconds", rangeSeconds),
			zap.Stringer("population", pop),
		)
	}

	if len(res.Thresholds) == 0 {
		return nil, ErrNoIsochrones
	}

	res.Combined = combineGeometries(res)
	res.Primary = primaryPopulation(a.cfg.Analysis.RangeSeconds, res)
	return res, nil
}

// combineGeometries merges every successful range polygon into one
// MultiPolygon for the facility's overall service area.
func combineGeometries(res *model.FacilityResult) *geom.MultiPolygon {
	combined := geom.NewMultiPolygon(geom.XY)
	ranges := make([]int, 0, len(res.Thresholds))
	for r := range res.Thresholds {
		ranges = append(ranges, r)
	}
	sort.Ints(ranges)
	for _, r := range ranges {
		switch g := res.Thresholds[r].Polygon.(type) {
		case *geom.Polygon:
			// Push never fails for matching layouts; isochrones are 2D.
			if err := combined.Push(g); err != nil {
				continue
			}
		case *geom.MultiPolygon:
			for i := 0; i < g.NumPolygons(); i++ {
				if err := combined.Push(g.Polygon(i)); err != nil {
					continue
				}
			}
		}
	}
	return combined
}

// primaryPopulation picks the population of the largest configured range
// that succeeded; with every range measured this is the widest catchment.
func primaryPopulation(configured []int, res *model.FacilityResult) model.Population {
	ranges := append([]int(nil), configured...)
	sort.Sort(sort.Reverse(sort.IntSlice(ranges)))
	for _, r := range ranges {
		if tr, ok := res.Thresholds[r]; ok {
			return tr.Population
		}
	}
	return model.UnmeasuredPopulation()
}
