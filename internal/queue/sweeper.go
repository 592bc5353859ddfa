package queue

import (
	"context"
	"time"

	"github.com/teroku/taskqueue/pkg/log"
)

// StartSweeper runs a background loop that clears expired leases every
// interval. Lazy expiry in Get and Ack already gives the same observable
// results; the sweeper only keeps the persisted state closer to reality.
// onErr receives persistence failures and may be nil.
func (s *Store) StartSweeper(interval time.Duration, onErr func(error)) {
	s.mu.Lock()
	if s.sweepStop != nil {
		s.mu.Unlock()
		return
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.sweepStop, s.sweepDone = stop, done
	ticker := s.clock.Ticker(interval)
	s.mu.Unlock()

	s.logger.Info("lease sweeper started", log.Dur("interval", interval))
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n, err := s.ReclaimExpired(context.Background())
				if err != nil {
					if onErr != nil {
						onErr(err)
					}
					continue
				}
				if n > 0 {
					s.logger.Debug("expired leases reclaimed", log.Int("count", n))
				}
			}
		}
	}()
}

// StopSweeper stops the background sweeper and waits for it to exit.
func (s *Store) StopSweeper() {
	s.mu.Lock()
	stop, done := s.sweepStop, s.sweepDone
	s.sweepStop, s.sweepDone = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
