package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jononovo/5ducks-outreach/internal/pkg/distlock"
)

// =============================================================================
// DATA CLEANUP WORKER
// =============================================================================
// Drip sends that reached 'sent' or 'failed' are only kept for reporting.
// This worker deletes them once they are older than the retention window.
// Communication history is an audit log and is never touched here.
//
// Deletes run in batches to avoid long-running transactions.

const (
	DefaultCleanupInterval  = time.Hour
	DefaultCleanupRetention = 90 * 24 * time.Hour

	cleanupBatchSize = 10000
)

// SendPurger deletes terminal scheduled sends.
type SendPurger interface {
	// DeleteTerminalBefore deletes at most limit sent/failed rows last
	// updated before cutoff and returns how many were removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// DataCleanupWorker periodically removes old terminal drip sends.
type DataCleanupWorker struct {
	store      SendPurger
	lock       distlock.DistLock
	interval   time.Duration
	retention  time.Duration
	batchPause time.Duration
	now        func() time.Time
}

// NewDataCleanupWorker creates a cleanup worker. Non-positive durations
// take the defaults.
func NewDataCleanupWorker(store SendPurger, interval, retention time.Duration) *DataCleanupWorker {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if retention <= 0 {
		retention = DefaultCleanupRetention
	}
	return &DataCleanupWorker{
		store:      store,
		interval:   interval,
		retention:  retention,
		batchPause: 100 * time.Millisecond,
		now:        time.Now,
	}
}

// SetLock makes each cycle run on one replica only.
func (dc *DataCleanupWorker) SetLock(l distlock.DistLock) {
	dc.lock = l
}

// Start runs a cycle immediately and then every interval. It blocks until
// ctx is cancelled.
func (dc *DataCleanupWorker) Start(ctx context.Context) {
	log.Printf("[DataCleanup] Starting (interval=%s, retention=%s, batch_size=%d)", dc.interval, dc.retention, cleanupBatchSize)

	dc.runCycle(ctx)

	ticker := time.NewTicker(dc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[DataCleanup] Stopping")
			return
		case <-ticker.C:
			dc.runCycle(ctx)
		}
	}
}

func (dc *DataCleanupWorker) runCycle(ctx context.Context) {
	if dc.lock == nil {
		dc.Cleanup(ctx)
		return
	}
	err := distlock.Run(ctx, dc.lock, func(ctx context.Context) error {
		dc.Cleanup(ctx)
		return nil
	})
	if errors.Is(err, distlock.ErrNotAcquired) {
		log.Println("[DataCleanup] Another worker is cleaning up, skipping")
	} else if err != nil {
		log.Printf("[DataCleanup] Lock error: %v", err)
	}
}

// Cleanup deletes terminal sends older than the retention window in
// batches until none remain. It returns the number of deleted rows.
func (dc *DataCleanupWorker) Cleanup(ctx context.Context) int64 {
	start := time.Now()
	cutoff := dc.now().Add(-dc.retention)

	var total int64
	for {
		if ctx.Err() != nil {
			break
		}

		queryCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		n, err := dc.store.DeleteTerminalBefore(queryCtx, cutoff, cleanupBatchSize)
		cancel()
		if err != nil {
			log.Printf("[DataCleanup] Error deleting scheduled sends: %v", err)
			break
		}
		if n == 0 {
			break
		}
		total += n

		if n < cleanupBatchSize {
			break
		}
		time.Sleep(dc.batchPause)
	}

	if total > 0 {
		log.Printf("[DataCleanup] Removed %d terminal scheduled sends older than %s in %s",
			total, cutoff.Format(time.RFC3339), time.Since(start).Round(time.Millisecond))
	}
	return total
}
