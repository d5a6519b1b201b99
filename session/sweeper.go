package session

import (
	"context"
	"time"
)

// Sweeper periodically deletes expired sessions from a Store. Run it in a
// goroutine owned by the caller; it stops when the context is cancelled.
type Sweeper struct {
	store    Store
	interval time.Duration

	// OnSweep, when set, receives the number of rows removed by each pass.
	// Useful for wiring a metrics counter or a log line.
	OnSweep func(deleted int64)

	// OnError, when set, receives sweep failures. A failed pass does not
	// stop the loop.
	OnError func(err error)
}

// NewSweeper creates a Sweeper. interval must be positive.
func NewSweeper(store Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{store: store, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval. The first
// sweep happens after one full interval, not at startup.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.store.SweepExpired(ctx)
			if err != nil {
				if s.OnError != nil {
					s.OnError(err)
				}
				continue
			}
			if s.OnSweep != nil {
				s.OnSweep(deleted)
			}
		}
	}
}
