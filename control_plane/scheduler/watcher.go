package scheduler

import (
	"context"
	"errors"
	"log"
	"time"
)

// Start launches the completion watcher: a single poller that, once per
// PollInterval of real time, settles every executing request whose charge
// has been fully delivered in mock time.
func (s *Scheduler) Start(ctx context.Context) {
	go s.watch(ctx)
}

func (s *Scheduler) watch(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("completion watcher stopping (context cancelled)")
			return
		case <-ticker.C:
			s.sweepCompleted(ctx)
		}
	}
}

// sweepCompleted runs one polling round. It holds checkMu across the whole
// round so brake/recover cannot rewire queues between the completion test
// and the settlement.
func (s *Scheduler) sweepCompleted(ctx context.Context) {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()

	s.mu.Lock()
	var done []int
	for _, id := range s.pileIDs {
		r := s.piles[id].executing()
		if r == nil {
			continue
		}
		if s.completedAt(r, s.clock.Now()) {
			done = append(done, r.ID)
		}
	}
	s.mu.Unlock()

	for _, id := range done {
		log.Printf("[scheduler] request %d completed", id)
		if err := s.EndRequest(ctx, id); err != nil {
			if errors.Is(err, ErrMappingNotExisted) {
				// Cancelled between the check and the settle.
				continue
			}
			// A settlement that cannot persist leaves the station
			// books inconsistent; stop rather than limp on.
			log.Fatalf("settlement of request %d failed: %v", id, err)
		}
	}
}
