/*
scheduler.go - Automated reconciliation scheduler

PURPOSE:
  Periodically reconciles yesterday and today so schedules reflect
  attendance even when nobody triggers reconciliation by hand. Late
  check-outs and next-morning imports land on yesterday's shifts, so
  yesterday is always included.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick is one ReconcileAndRecord over [yesterday, today]
  - Reconciliation is idempotent, so overlapping ticks only re-confirm
    statuses and write nothing
  - Records reconciliation runs for audit and UI display

CONFIGURATION:
  - CheckInterval: How often to check (default: 15 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReconciliationScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ReconcileAndRecord and the manual endpoints
  - reconcile/engine.go: ReconcileRange
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/store/sqlite"
)

// ReconciliationScheduler handles automated reconciliation.
type ReconciliationScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(handler *Handler) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Handler:       handler,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan bool)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *ReconciliationScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndProcess()

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndProcess()
		case <-rs.stop:
			return
		}
	}
}

func (rs *ReconciliationScheduler) checkAndProcess() reconcile.Summary {
	ctx := context.Background()
	today := rs.Handler.today()
	yesterday := today.AddDays(-1)

	log.Printf("[Scheduler] Reconciling %s..%s", yesterday, today)

	summary, err := rs.Handler.ReconcileAndRecord(ctx, sqlite.TriggerScheduled, yesterday, today, nil)
	if err != nil {
		log.Printf("[Scheduler] Error reconciling: %v", err)
		return summary
	}

	for _, e := range summary.Errors {
		log.Printf("[Scheduler] %s", e)
	}
	if summary.StatusChanges > 0 || len(summary.Errors) > 0 {
		log.Printf("[Scheduler] Completed: %d employees, %d changes, %d errors",
			summary.TotalProcessed, summary.StatusChanges, len(summary.Errors))
	}
	return summary
}

// RunNow triggers an immediate check (for testing/admin).
func (rs *ReconciliationScheduler) RunNow() reconcile.Summary {
	return rs.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (rs *ReconciliationScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(rs.CheckInterval)
}
