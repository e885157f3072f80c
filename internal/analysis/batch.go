package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catchment-cli/internal/model"
	"github.com/sells-group/catchment-cli/internal/resilience"
)

// BatchOutcome summarizes one batch run. Results preserve input order and
// contain only facilities with at least one successful range.
type BatchOutcome struct {
	Results     []*model.FacilityResult
	DeadLetters []model.DeadLetter
	Total       int
	Duration    time.Duration
}

// Succeeded reports the number of facilities with at least one range.
func (b *BatchOutcome) Succeeded() int {
	return len(b.Results)
}

// Summary renders the end-of-run line, e.g. "17 of 20 facilities succeeded".
func (b *BatchOutcome) Summary() string {
	return fmt.Sprintf("%d of %d facilities succeeded", b.Succeeded(), b.Total)
}

// RunBatch processes facilities sequentially in input order. Per-facility
// failures are recorded as dead letters and the batch continues; an open
// circuit breaker or a cancelled context aborts the run with the partial
// outcome returned alongside the error.
func (a *Analyzer) RunBatch(ctx context.Context, runID string, facilities []model.Facility) (*BatchOutcome, error) {
	started := time.Now()
	outcome := &BatchOutcome{Total: len(facilities)}

	for i, f := range facilities {
		if i > 0 {
			a.pause(ctx, a.politenessDelay())
		}
		if err := ctx.Err(); err != nil {
			outcome.Duration = time.Since(started)
			return outcome, err
		}

		a.log.Info("processing facility",
			zap.Int("index", i+1),
			zap.Int("total", len(facilities)),
			zap.String("facility", f.Label()),
		)

		res, err := a.ProcessFacility(ctx, f)
		if err != nil {
			if errors.Is(err, resilience.ErrCircuitOpen) {
				outcome.Duration = time.Since(started)
				return outcome, eris.Wrap(err, "analysis: routing backend unreachable, aborting batch")
			}
			if ctx.Err() != nil {
				outcome.Duration = time.Since(started)
				return outcome, ctx.Err()
			}
			a.log.Warn("facility skipped",
				zap.String("facility", f.Label()),
				zap.Int("row", f.Row),
				zap.Error(err),
			)
			outcome.DeadLetters = append(outcome.DeadLetters, model.DeadLetter{
				RunID:     runID,
				Facility:  f.Label(),
				Row:       f.Row,
				Reason:    err.Error(),
				ErrorType: resilience.ClassifyError(err),
				CreatedAt: time.Now().UTC(),
			})
			continue
		}
		outcome.Results = append(outcome.Results, res)
	}

	outcome.Duration = time.Since(started)
	a.log.Info("batch complete",
		zap.String("summary", outcome.Summary()),
		zap.Duration("duration", outcome.Duration),
	)
	return outcome, nil
}
