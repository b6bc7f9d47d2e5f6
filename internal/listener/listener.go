package listener

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/phiphung-web/redirect/internal/engine"
	"github.com/phiphung-web/redirect/internal/observability"
	"github.com/phiphung-web/redirect/internal/storage"
)

// ListenAndRefresh rebuilds the engine snapshot whenever the admin side
// signals a domain/campaign change on the pg channel. Notification bursts
// are debounced; wait errors back off with jitter.
func ListenAndRefresh(ctx context.Context, st *storage.Store, eng *engine.Engine, channel string, baseBackoff time.Duration) {
	conn, err := st.PgxPool().Acquire(ctx)
	if err != nil {
		log.Error().Err(err).Msg("acquire conn for listen")
		return
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, "LISTEN "+channel); err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("listen")
		return
	}
	log.Info().Str("channel", channel).Msg("listening for config changes")

	var lastRefresh time.Time
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener stopped")
			return
		default:
			ntf, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				backoff := jitter(baseBackoff)
				log.Error().Err(err).Dur("retry_in", backoff).Msg("notify wait error")
				time.Sleep(backoff)
				continue
			}
			if time.Since(lastRefresh) < 200*time.Millisecond {
				continue // debounce burst of notifications
			}
			lastRefresh = time.Now()
			log.Info().Str("channel", ntf.Channel).Msg("config change; refreshing snapshot")
			refresh(ctx, st, eng)
		}
	}
}

// RefreshPeriodically is the safety net for missed notifications.
func RefreshPeriodically(ctx context.Context, st *storage.Store, eng *engine.Engine, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			refresh(ctx, st, eng)
		}
	}
}

func refresh(ctx context.Context, st *storage.Store, eng *engine.Engine) {
	if err := eng.BuildSnapshot(ctx, st); err != nil {
		log.Error().Err(err).Msg("refresh snapshot error")
		return
	}
	observability.SnapshotRefreshes.Inc()
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x-1.5x
	return time.Duration(float64(base) * factor)
}
