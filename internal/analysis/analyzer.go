// Package analysis implements the facility-processing pipeline: coordinate
// validation, isochrone requests with retry, population aggregation, and the
// sequential batch driver.
package analysis

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catchment-cli/internal/config"
	"github.com/sells-group/catchment-cli/internal/resilience"
	"github.com/sells-group/catchment-cli/pkg/earthengine"
	"github.com/sells-group/catchment-cli/pkg/ors"
)

// Cache stores isochrone geometries across runs so reruns do not re-spend
// routing quota. Implemented by the SQLite store; nil disables caching.
type Cache interface {
	GetIsochrone(ctx context.Context, lat, lon float64, rangeSeconds int, profile string) (json.RawMessage, bool, error)
	PutIsochrone(ctx context.Context, lat, lon float64, rangeSeconds int, profile string, geometry json.RawMessage) error
}

// Analyzer orchestrates per-facility work against the routing and raster
// backends. All execution is sequential; backend rate limits and quota make
// parallel requests unsafe without separate coordination.
type Analyzer struct {
	cfg       *config.Config
	routing   ors.Client
	raster    earthengine.Client
	cache     Cache
	validator Validator
	retry     resilience.RetryConfig
	breaker   *resilience.CircuitBreaker
	log       *zap.Logger
}

// Option configures the Analyzer.
type Option func(*Analyzer)

// WithCache attaches an isochrone cache.
func WithCache(c Cache) Option {
	return func(a *Analyzer) {
		a.cache = c
	}
}

// New creates an Analyzer from configuration and backend clients.
func New(cfg *config.Config, routing ors.Client, raster earthengine.Client, opts ...Option) *Analyzer {
	retry := resilience.FromConfig(cfg.ORS.RetryAttempts, cfg.ORS.RetryDelayMs, 0)
	retry.OnRetry = resilience.RetryLogger("ors", "isochrones")

	a := &Analyzer{
		cfg:       cfg,
		routing:   routing,
		raster:    raster,
		validator: NewValidator(cfg.Analysis),
		retry:     retry,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.ORS.BreakerTrips,
			ResetTimeout:     time.Duration(cfg.ORS.BreakerResetS) * time.Second,
			// Only unreachable-backend failures count; a permanent per-point
			// rejection says nothing about backend health.
			ShouldTrip: resilience.IsTransient,
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("routing backend circuit state changed",
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		}),
		log: zap.L().With(zap.String("component", "analysis")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// PreFlight probes both backends concurrently before a batch starts.
// A raster health failure or a not-ready routing status degrades to a
// warning; the returned error is non-nil only when the routing backend is
// unreachable outright.
func (a *Analyzer) PreFlight(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hs, err := a.routing.Health(ctx)
		if err != nil {
			a.log.Error("cannot reach routing backend", zap.Error(err))
			a.log.Error("troubleshooting:")
			a.log.Error("  1. verify the ORS instance is running")
			a.log.Error("  2. check ors.base_url in config.yaml (or CATCHMENT_ORS_BASE_URL)")
			a.log.Error("  3. run 'catchment-cli status --wait' to wait for the graph to load")
			return err
		}
		if !hs.Ready() {
			a.log.Warn("routing backend is not ready, continuing anyway",
				zap.String("status", hs.Status))
		}
		return nil
	})

	g.Go(func() error {
		if err := a.raster.Health(ctx); err != nil {
			a.log.Warn("raster backend health check failed, population aggregation may fail",
				zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

// pause sleeps for d or until the context is cancelled. Politeness delays
// between outbound requests, not a correctness requirement.
func (a *Analyzer) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (a *Analyzer) politenessDelay() time.Duration {
	return time.Duration(a.cfg.Analysis.SleepBetweenMs) * time.Millisecond
}
