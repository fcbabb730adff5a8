package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/satchel-app/satchel/internal/connectivity"
)

// AutoConfig tunes the background sync loop.
type AutoConfig struct {
	// Debounce delays the pass fired on an offline-to-online transition so
	// a flapping link does not trigger a burst of passes.
	Debounce time.Duration
	// Interval is the periodic pass cadence while online. Zero disables
	// periodic passes.
	Interval time.Duration
}

// DefaultAutoConfig returns 3s debounce, 5m interval.
func DefaultAutoConfig() AutoConfig {
	return AutoConfig{Debounce: 3 * time.Second, Interval: 5 * time.Minute}
}

// RunAuto drives sync passes in the background until ctx is cancelled:
// one pass on each offline-to-online transition (debounced) and one every
// Interval while online. Connectivity transitions are forwarded to the
// event hub as offline/online events. Requires a monitor.
func (s *Syncer) RunAuto(ctx context.Context, cfg AutoConfig) error {
	if s.monitor == nil {
		return errors.New("auto sync requires a connectivity monitor")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultAutoConfig().Debounce
	}

	states, cancel := s.monitor.Subscribe()
	defer cancel()

	var ticker *time.Ticker
	var tick <-chan time.Time
	if cfg.Interval > 0 {
		ticker = time.NewTicker(cfg.Interval)
		tick = ticker.C
		defer ticker.Stop()
	}

	// timer is armed on reconnection; nil channel otherwise
	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return ctx.Err()

		case state, ok := <-states:
			if !ok {
				return nil
			}
			switch state {
			case connectivity.Online:
				s.events.Publish(Event{Type: EventOnline})
				slog.Debug("reconnected, scheduling sync", "debounce", cfg.Debounce)
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.NewTimer(cfg.Debounce)
				fire = debounce.C
			case connectivity.Offline:
				s.events.Publish(Event{Type: EventOffline})
				// A connectivity loss never aborts an in-flight pass; it
				// only stops new ones from being scheduled.
				if debounce != nil {
					debounce.Stop()
					debounce = nil
					fire = nil
				}
			}

		case <-fire:
			debounce = nil
			fire = nil
			s.runPass(ctx, "reconnect")

		case <-tick:
			if s.monitor.Online() {
				s.runPass(ctx, "interval")
			}
		}
	}
}

func (s *Syncer) runPass(ctx context.Context, trigger string) {
	summary, err := s.Sync(ctx)
	switch {
	case errors.Is(err, ErrOffline):
		slog.Debug("sync skipped, offline", "trigger", trigger)
	case err != nil:
		slog.Warn("background sync failed", "trigger", trigger, "err", err)
	case summary.Skipped:
		slog.Debug("sync already in flight", "trigger", trigger)
	}
}
