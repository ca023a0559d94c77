// Package retry wraps a single extraction call with quality-gated
// retries. An attempt is accepted as soon as its relevance score clears
// the configured threshold; below-threshold results are kept as
// best-so-far rather than discarded, so the wrapper prefers partial
// success over total failure.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/jobflow/internal/state"
)

// Attempt performs one extraction call, returning the extracted value and
// the evaluation produced alongside it.
type Attempt[T any] func(ctx context.Context) (T, state.EvaluationScore, error)

// Policy configures the retry wrapper.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt, so the
	// attempt runs at most MaxRetries+1 times.
	MaxRetries int

	// MinScore is the relevance threshold for immediate acceptance.
	MinScore float64

	// BaseBackoff is the delay before the first retry; it doubles per
	// attempt. Zero disables backoff.
	BaseBackoff time.Duration
}

// DefaultPolicy returns the policy used by the built-in steps.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  2,
		MinScore:    0.7,
		BaseBackoff: time.Second,
	}
}

// Do runs the attempt under the policy.
//
// Acceptance rules:
//   - a result with relevance >= MinScore returns immediately;
//   - a below-threshold result is retained as best-so-far and retried;
//   - an attempt error is recorded and retried, and never discards a
//     previously obtained below-threshold result;
//   - on exhaustion, the best-scoring result is returned if any attempt
//     produced one; otherwise the last error propagates.
func Do[T any](ctx context.Context, attempt Attempt[T], p Policy, logger *zap.Logger) (T, state.EvaluationScore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		best     T
		bestEval state.EvaluationScore
		haveBest bool
		lastErr  error
	)

	attempts := p.MaxRetries + 1
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := sleepBackoff(ctx, p.BaseBackoff, i); err != nil {
				if haveBest {
					return best, bestEval, nil
				}
				var zero T
				return zero, state.EvaluationScore{}, err
			}
		}

		val, eval, err := attempt(ctx)
		if err != nil {
			lastErr = err
			logger.Warn("extraction attempt failed",
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", attempts),
				zap.Error(err),
			)
			continue
		}

		if eval.Relevance >= p.MinScore {
			return val, eval, nil
		}

		logger.Info("extraction below quality threshold",
			zap.Int("attempt", i+1),
			zap.Float64("relevance", eval.Relevance),
			zap.Float64("min_score", p.MinScore),
		)

		if !haveBest || eval.Relevance > bestEval.Relevance {
			best = val
			bestEval = eval
			haveBest = true
		}
	}

	if haveBest {
		logger.Info("returning best-effort extraction after exhausting retries",
			zap.Float64("relevance", bestEval.Relevance),
			zap.Float64("min_score", p.MinScore),
		)
		return best, bestEval, nil
	}

	var zero T
	if lastErr == nil {
		lastErr = fmt.Errorf("no attempts executed")
	}
	return zero, state.EvaluationScore{}, fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

// sleepBackoff waits the exponential backoff for the given retry number,
// honoring context cancellation.
func sleepBackoff(ctx context.Context, base time.Duration, retry int) error {
	if base <= 0 {
		return nil
	}
	delay := base * time.Duration(1<<(retry-1))
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
