package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/store"
	"github.com/sells-group/catchment-cli/pkg/earthengine"
	"github.com/sells-group/catchment-cli/pkg/ors"
)

func newRoutingClient() ors.Client {
	return ors.NewClient(
		ors.WithBaseURL(cfg.ORS.BaseURL),
		ors.WithAPIKey(cfg.ORS.APIKey),
		ors.WithRateLimit(cfg.ORS.RateLimitRPS),
		ors.WithTimeout(time.Duration(cfg.ORS.TimeoutSecs)*time.Second),
	)
}

func newRasterClient() earthengine.Client {
	return earthengine.NewClient(cfg.Raster.APIKey,
		earthengine.WithBaseURL(cfg.Raster.BaseURL),
		earthengine.WithTimeout(time.Duration(cfg.Raster.TimeoutSecs)*time.Second),
	)
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path, time.Duration(cfg.Store.CacheTTLHours)*time.Hour)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	// Cache maintenance piggybacks on open; a failed sweep is not worth
	// failing the command over.
	if n, err := st.DeleteExpiredIsochrones(ctx); err != nil {
		zap.L().Warn("isochrone cache sweep failed", zap.Error(err))
	} else if n > 0 {
		zap.L().Debug("expired cached isochrones removed", zap.Int("count", n))
	}
	return st, nil
}
