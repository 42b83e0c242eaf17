package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/votecommit/finalizer"
	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/storage"
	"github.com/vocdoni/votecommit/types"
)

// ElectionMonitor is a service that periodically closes the active elections
// whose voting window has ended. Closures that fail with a retryable error
// are attempted again on the next tick.
type ElectionMonitor struct {
	storage   *storage.Storage
	finalizer *finalizer.Finalizer
	interval  time.Duration
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewElectionMonitor creates a new ElectionMonitor service.
func NewElectionMonitor(stg *storage.Storage, fin *finalizer.Finalizer, interval time.Duration) *ElectionMonitor {
	return &ElectionMonitor{
		storage:   stg,
		finalizer: fin,
		interval:  interval,
		now:       time.Now,
	}
}

// Start begins monitoring. It returns an error if the service is already
// running or the interval is not positive.
func (em *ElectionMonitor) Start(ctx context.Context) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if em.cancel != nil {
		return fmt.Errorf("service already running")
	}
	if em.interval <= 0 {
		return fmt.Errorf("invalid monitor interval %s", em.interval)
	}
	ctx, em.cancel = context.WithCancel(ctx)

	em.wg.Add(1)
	go func() {
		defer em.wg.Done()
		ticker := time.NewTicker(em.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				em.closeExpired(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	log.Infow("election monitor started", "interval", em.interval.String())
	return nil
}

// Stop halts the monitor and waits for an ongoing sweep to finish.
func (em *ElectionMonitor) Stop() {
	em.mu.Lock()
	if em.cancel != nil {
		em.cancel()
		em.cancel = nil
	}
	em.mu.Unlock()
	em.wg.Wait()
}

// closeExpired closes every active election whose end time is not after
// now. It returns the number of elections closed.
func (em *ElectionMonitor) closeExpired(ctx context.Context) int {
	elections, err := em.storage.ListElections()
	if err != nil {
		log.Errorw(err, "could not list elections")
		return 0
	}
	now := em.now()
	closed := 0
	for _, e := range elections {
		if ctx.Err() != nil {
			return closed
		}
		if !e.IsActive || now.Before(e.EndTime) {
			continue
		}
		log.Debugw("found election to close by date", "electionId", e.ID, "endTime", e.EndTime)
		if _, err := em.finalizer.Close(ctx, e.ID); err != nil {
			switch {
			case errors.Is(err, types.ErrAlreadyClosed):
				// closed meanwhile through the API
			case types.IsRetryable(err):
				log.Warnw("election closure will be retried", "electionId", e.ID, "error", err)
			default:
				log.Errorw(err, fmt.Sprintf("could not close election %s", e.ID))
			}
			continue
		}
		closed++
	}
	return closed
}
