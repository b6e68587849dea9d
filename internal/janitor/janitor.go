// Package janitor periodically removes expired OAuth2 state.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/kubarr/kubarr/internal/oauth2"
)

// Purger deletes expired authorization codes and token pairs.
type Purger interface {
	PurgeExpired(ctx context.Context) (oauth2.PurgeResult, error)
}

// Recorder observes purge results.
type Recorder interface {
	Purged(codes, tokens int64)
}

// Janitor runs Purger on a fixed interval.
type Janitor struct {
	purger   Purger
	recorder Recorder
	interval time.Duration
}

// New creates a Janitor. recorder may be nil.
func New(purger Purger, recorder Recorder, interval time.Duration) *Janitor {
	return &Janitor{
		purger:   purger,
		recorder: recorder,
		interval: interval,
	}
}

// Run purges once per interval until ctx is cancelled. A failed purge is
// logged and retried on the next tick.
func (j *Janitor) Run(ctx context.Context) error {
	slog.Info("janitor started", "interval", j.interval.String())
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("janitor stopped")
			return nil
		case <-ticker.C:
			j.purge(ctx)
		}
	}
}

func (j *Janitor) purge(ctx context.Context) {
	res, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("janitor: failed to purge expired rows", "error", err)
		}
		return
	}

	if j.recorder != nil {
		j.recorder.Purged(res.Codes, res.Tokens)
	}
	if res.Codes > 0 || res.Tokens > 0 {
		slog.Info("janitor: purged expired rows", "codes", res.Codes, "tokens", res.Tokens)
	}
}
