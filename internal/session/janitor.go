package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Janitor reclaims sessions whose user never picked a language: the session
// entry is removed and its artifact handed to the release callback. Without
// it an abandoned upload would leak a temp file indefinitely.
type Janitor struct {
	store    Store
	release  func(Session)
	interval time.Duration
	logger   zerolog.Logger
}

func NewJanitor(store Store, release func(Session), interval time.Duration, logger zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{
		store:    store,
		release:  release,
		interval: interval,
		logger:   logger.With().Str("service", "session-janitor").Logger(),
	}
}

// Run blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	expired, err := j.store.ReapExpired(ctx, time.Now())
	if err != nil {
		j.logger.Error().Err(err).Msg("reap failed")
		return
	}
	for _, sess := range expired {
		j.release(sess)
		j.logger.Info().Int64("user_id", sess.UserID).
			Time("expired_at", sess.ExpiresAt).
			Msg("reclaimed abandoned session")
	}
}
