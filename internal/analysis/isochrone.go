package analysis

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/resilience"
	"github.com/sells-group/catchment-cli/pkg/ors"
)

// ErrEmptyIsochrone reports a well-formed routing response that contains no
// usable geometry. The backend answered, so the failure is not retried.
var ErrEmptyIsochrone = eris.New("routing backend returned no isochrone features")

// requestIsochrone fetches the drive-time polygon for a single point and
// range, consulting the cache first. Transient backend failures are retried
// with exponential backoff inside the circuit breaker; an open breaker
// surfaces as resilience.ErrCircuitOpen.
func (a *Analyzer) requestIsochrone(ctx context.Context, lat, lon float64, rangeSeconds int) (geom.T, json.RawMessage, error) {
	profile := a.cfg.ORS.Profile

	if a.cache != nil {
		raw, ok, err := a.cache.GetIsochrone(ctx, lat, lon, rangeSeconds, profile)
		if err != nil {
			a.log.Warn("isochrone cache read failed", zap.Error(err))
		} else if ok {
			g, err := decodeGeometry(raw)
			if err == nil {
				a.log.Debug("isochrone cache hit",
					zap.Float64("lat", lat),
					zap.Float64("lon", lon),
					zap.Int("range_seconds", rangeSeconds),
				)
				return g, raw, nil
			}
			a.log.Warn("discarding undecodable cached isochrone", zap.Error(err))
		}
	}

	req := ors.IsochroneRequest{
		Lat:          lat,
		Lon:          lon,
		Profile:      profile,
		RangeSeconds: rangeSeconds,
	}

	fc, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*ors.FeatureCollection, error) {
		return resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*ors.FeatureCollection, error) {
			return a.routing.Isochrones(ctx, req)
		})
	})
	if err != nil {
		return nil, nil, err
	}

	g, raw, err := extractGeometry(fc)
	if err != nil {
		return nil, nil, err
	}

	if a.cache != nil {
		if err := a.cache.PutIsochrone(ctx, lat, lon, rangeSeconds, profile, raw); err != nil {
			a.log.Warn("isochrone cache write failed", zap.Error(err))
		}
	}
	return g, raw, nil
}

// extractGeometry pulls the first non-empty geometry out of a routing
// response, returning it both decoded and as the original raw bytes. A
// response with no features, or only empty geometries, yields
// ErrEmptyIsochrone.
func extractGeometry(fc *ors.FeatureCollection) (geom.T, json.RawMessage, error) {
	if fc == nil || len(fc.Features) == 0 {
		return nil, nil, ErrEmptyIsochrone
	}
	for _, f := range fc.Features {
		if len(f.Geometry) == 0 {
			continue
		}
		g, err := decodeGeometry(f.Geometry)
		if err != nil {
			continue
		}
		if g.Empty() {
			continue
		}
		return g, f.Geometry, nil
	}
	return nil, nil, ErrEmptyIsochrone
}

func decodeGeometry(raw json.RawMessage) (geom.T, error) {
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return g, nil
}
