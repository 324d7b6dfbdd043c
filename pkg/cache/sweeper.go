package cache

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/meshwx/weather-proxy/pkg/logging"
)

// Sweeper periodically evicts expired entries from a store. Lazy removal
// on Get already keeps lookups correct; the sweep reclaims memory for
// keys that are never requested again.
type Sweeper struct {
	scheduler *gocron.Scheduler
	store     Store
	interval  time.Duration
	logger    zerolog.Logger
}

// NewSweeper creates a sweeper running EvictExpired every interval.
func NewSweeper(store Store, interval time.Duration) *Sweeper {
	return &Sweeper{
		scheduler: gocron.NewScheduler(time.UTC),
		store:     store,
		interval:  interval,
		logger:    logging.NewLogger("cache-sweeper"),
	}
}

// Start schedules the periodic sweep and starts the underlying scheduler.
func (s *Sweeper) Start() error {
	_, err := s.scheduler.Every(s.interval).Do(func() {
		removed := s.store.EvictExpired(context.Background())
		if removed > 0 {
			s.logger.Debug().Int("removed", removed).Msg("Evicted expired cache entries")
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future sweeps.
func (s *Sweeper) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
