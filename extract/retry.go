package extract

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"
)

// invokeWithRetry runs a stage function up to e.cfg.MaxAttempts times. A
// random jittered delay is slept before every attempt, including the first;
// the pacing spreads LLM request bursts rather than backing off. After
// exhausting attempts the final error is returned.
func invokeWithRetry[T any](ctx context.Context, e *Extractor, stage string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := pace(ctx, e.cfg.JitterMin, e.cfg.JitterMax); err != nil {
			return zero, err
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt == e.cfg.MaxAttempts {
			slog.Error("stage failed after retries",
				"stage", stage, "attempts", e.cfg.MaxAttempts, "error", err)
			break
		}
		slog.Warn("stage attempt failed",
			"stage", stage, "attempt", attempt, "error", err)
	}

	return zero, lastErr
}

// pace sleeps a random duration in [min, max], honoring context cancellation.
func pace(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min + 1)))
	}
	if d <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// firstLine returns the first non-empty line of s with surrounding
// whitespace and quotes removed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.Trim(line, `"'`)
		return strings.TrimSpace(line)
	}
	return ""
}
