package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jononovo/5ducks-outreach/internal/domain"
	"github.com/jononovo/5ducks-outreach/internal/pkg/distlock"
)

// =============================================================================
// CAMPAIGN SCHEDULER WORKER
// =============================================================================
// Polls for campaigns with status='scheduled' whose schedule date has
// arrived, flips them to 'active', then runs the auto-send sweep so a
// freshly activated campaign can send in the same tick.
//
// There is no in-process re-entrancy guard: overlapping ticks are safe
// because activation is a conditional update and the auto-send sweep
// re-checks daily caps and already-contacted recipients on every run.

const DefaultSchedulerPollInterval = time.Minute

// CampaignActivator is the campaign persistence the scheduler needs.
type CampaignActivator interface {
	ListDueScheduled(ctx context.Context, now time.Time) ([]domain.Campaign, error)
	// ActivateScheduled sets status='active' and start_date only if the
	// campaign is still 'scheduled'. It reports whether a row changed.
	ActivateScheduled(ctx context.Context, id string, startDate time.Time) (bool, error)
}

// AutoSender runs the auto-send sweep over active campaigns.
type AutoSender interface {
	ProcessAutoSendCampaigns(ctx context.Context) error
}

// CampaignScheduler activates scheduled campaigns and triggers auto-send.
type CampaignScheduler struct {
	store        CampaignActivator
	autoSend     AutoSender
	lock         distlock.DistLock // optional; guards a check across replicas
	pollInterval time.Duration
	now          func() time.Time

	// Stats
	checks    int64
	activated int64
	errors    int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewCampaignScheduler creates a scheduler. autoSend may be nil, in which
// case only activation runs.
func NewCampaignScheduler(store CampaignActivator, autoSend AutoSender) *CampaignScheduler {
	return &CampaignScheduler{
		store:        store,
		autoSend:     autoSend,
		pollInterval: DefaultSchedulerPollInterval,
		now:          time.Now,
	}
}

// SetPollInterval overrides the default one-minute interval. Must be
// called before Start.
func (cs *CampaignScheduler) SetPollInterval(d time.Duration) {
	if d > 0 {
		cs.pollInterval = d
	}
}

// SetLock makes each check run only while holding l.
func (cs *CampaignScheduler) SetLock(l distlock.DistLock) {
	cs.lock = l
}

// Start begins polling and runs one check immediately. Starting a running
// scheduler is a no-op.
func (cs *CampaignScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.running {
		log.Printf("[CampaignScheduler] Already running")
		return
	}
	cs.running = true
	cs.ctx, cs.cancel = context.WithCancel(context.Background())

	log.Printf("[CampaignScheduler] Starting with poll interval: %v", cs.pollInterval)

	cs.wg.Add(1)
	go cs.schedulerLoop()
}

// Stop stops polling. Stopping a stopped scheduler is a no-op.
func (cs *CampaignScheduler) Stop() {
	cs.mu.Lock()
	if !cs.running {
		cs.mu.Unlock()
		return
	}
	cs.running = false
	cs.mu.Unlock()

	log.Printf("[CampaignScheduler] Stopping...")
	cs.cancel()
	cs.wg.Wait()
	log.Printf("[CampaignScheduler] Stopped. Checks: %d, Activated: %d",
		atomic.LoadInt64(&cs.checks), atomic.LoadInt64(&cs.activated))
}

// IsRunning reports whether the poll loop is active.
func (cs *CampaignScheduler) IsRunning() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.running
}

func (cs *CampaignScheduler) schedulerLoop() {
	defer cs.wg.Done()

	cs.runCheck(cs.ctx)

	ticker := time.NewTicker(cs.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cs.ctx.Done():
			return
		case <-ticker.C:
			cs.runCheck(cs.ctx)
		}
	}
}

func (cs *CampaignScheduler) runCheck(ctx context.Context) {
	if _, err := cs.TriggerCheck(ctx); err != nil {
		log.Printf("[CampaignScheduler] Check failed: %v", err)
	}
}

// TriggerCheck runs a check outside the timer, e.g. from the admin API.
// It returns how many campaigns this call activated.
func (cs *CampaignScheduler) TriggerCheck(ctx context.Context) (int, error) {
	if cs.lock == nil {
		return cs.CheckAndActivateScheduledCampaigns(ctx)
	}
	var n int
	err := distlock.Run(ctx, cs.lock, func(ctx context.Context) error {
		var err error
		n, err = cs.CheckAndActivateScheduledCampaigns(ctx)
		return err
	})
	if errors.Is(err, distlock.ErrNotAcquired) {
		log.Printf("[CampaignScheduler] Another worker is checking, skipping")
		return 0, nil
	}
	return n, err
}

// CheckAndActivateScheduledCampaigns activates every due campaign and then
// always runs the auto-send sweep.
func (cs *CampaignScheduler) CheckAndActivateScheduledCampaigns(ctx context.Context) (int, error) {
	atomic.AddInt64(&cs.checks, 1)

	due, err := cs.store.ListDueScheduled(ctx, cs.now())
	if err != nil {
		atomic.AddInt64(&cs.errors, 1)
		return 0, fmt.Errorf("list scheduled campaigns: %w", err)
	}

	activated := 0
	for i := range due {
		ok, err := cs.ActivateCampaign(ctx, &due[i])
		if err != nil {
			log.Printf("[CampaignScheduler] Activate %s: %v", due[i].ID, err)
			continue
		}
		if ok {
			activated++
		}
	}
	if len(due) > 0 {
		log.Printf("[CampaignScheduler] %d due campaigns, %d activated", len(due), activated)
	}

	if cs.autoSend != nil {
		if err := cs.autoSend.ProcessAutoSendCampaigns(ctx); err != nil {
			atomic.AddInt64(&cs.errors, 1)
			log.Printf("[CampaignScheduler] Auto-send sweep failed: %v", err)
		}
	}
	return activated, nil
}

// ActivateCampaign moves c from scheduled to active. It returns false when
// another tick or replica activated it first.
func (cs *CampaignScheduler) ActivateCampaign(ctx context.Context, c *domain.Campaign) (bool, error) {
	now := cs.now()
	ok, err := cs.store.ActivateScheduled(ctx, c.ID, now)
	if err != nil {
		atomic.AddInt64(&cs.errors, 1)
		return false, err
	}
	if !ok {
		log.Printf("[CampaignScheduler] Campaign %s (%s) was already activated", c.ID, c.Name)
		return false, nil
	}

	atomic.AddInt64(&cs.activated, 1)
	c.Status = domain.CampaignActive
	c.StartDate = &now
	log.Printf("[CampaignScheduler] Activated campaign %s (%s)", c.ID, c.Name)
	return true, nil
}
