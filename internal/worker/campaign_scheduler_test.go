package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jononovo/5ducks-outreach/internal/domain"
)

// =============================================================================
// CAMPAIGN SCHEDULER TESTS
// =============================================================================

type memCampaignStore struct {
	mu          sync.Mutex
	campaigns   map[string]*domain.Campaign
	startWrites int
	listErr     error
}

func newMemCampaignStore(cs ...domain.Campaign) *memCampaignStore {
	m := &memCampaignStore{campaigns: make(map[string]*domain.Campaign)}
	for i := range cs {
		c := cs[i]
		m.campaigns[c.ID] = &c
	}
	return m
}

func (m *memCampaignStore) ListDueScheduled(_ context.Context, now time.Time) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if c.Status == domain.CampaignScheduled && c.ScheduleAt != nil && !c.ScheduleAt.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCampaignStore) ActivateScheduled(_ context.Context, id string, startDate time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.Status != domain.CampaignScheduled {
		return false, nil
	}
	c.Status = domain.CampaignActive
	c.StartDate = &startDate
	m.startWrites++
	return true, nil
}

type countingAutoSender struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (a *countingAutoSender) ProcessAutoSendCampaigns(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.err
}

func (a *countingAutoSender) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

var schedNow = time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)

func scheduledCampaign(id string, at time.Time) domain.Campaign {
	return domain.Campaign{ID: id, Name: "Campaign " + id, Status: domain.CampaignScheduled, ScheduleAt: &at}
}

func newTestScheduler(store CampaignActivator, auto AutoSender) *CampaignScheduler {
	cs := NewCampaignScheduler(store, auto)
	cs.now = func() time.Time { return schedNow }
	return cs
}

func TestCampaignScheduler_NewScheduler(t *testing.T) {
	cs := NewCampaignScheduler(newMemCampaignStore(), nil)
	if cs.pollInterval != DefaultSchedulerPollInterval {
		t.Errorf("pollInterval = %v, want %v", cs.pollInterval, DefaultSchedulerPollInterval)
	}

	cs.SetPollInterval(0)
	if cs.pollInterval != DefaultSchedulerPollInterval {
		t.Error("SetPollInterval(0) should keep the default")
	}
}

func TestCampaignScheduler_ActivatesDueOnly(t *testing.T) {
	store := newMemCampaignStore(
		scheduledCampaign("due", schedNow.Add(-time.Minute)),
		scheduledCampaign("exact", schedNow),
		scheduledCampaign("future", schedNow.Add(time.Hour)),
	)
	auto := &countingAutoSender{}
	cs := newTestScheduler(store, auto)

	n, err := cs.CheckAndActivateScheduledCampaigns(context.Background())
	if err != nil {
		t.Fatalf("CheckAndActivateScheduledCampaigns() error: %v", err)
	}
	if n != 2 {
		t.Errorf("activated = %d, want 2", n)
	}
	if got := store.campaigns["future"].Status; got != domain.CampaignScheduled {
		t.Errorf("future campaign status = %s, want scheduled", got)
	}
	if sd := store.campaigns["due"].StartDate; sd == nil || !sd.Equal(schedNow) {
		t.Errorf("start date = %v, want %v", sd, schedNow)
	}
	if auto.count() != 1 {
		t.Errorf("auto-send sweeps = %d, want 1", auto.count())
	}
}

func TestCampaignScheduler_SweepRunsWithNothingDue(t *testing.T) {
	auto := &countingAutoSender{}
	cs := newTestScheduler(newMemCampaignStore(), auto)

	if _, err := cs.TriggerCheck(context.Background()); err != nil {
		t.Fatalf("TriggerCheck() error: %v", err)
	}
	if auto.count() != 1 {
		t.Errorf("auto-send should run even when no campaign was activated")
	}
}

func TestCampaignScheduler_AutoSendErrorIsNotFatal(t *testing.T) {
	auto := &countingAutoSender{err: errors.New("db down")}
	cs := newTestScheduler(newMemCampaignStore(), auto)

	if _, err := cs.TriggerCheck(context.Background()); err != nil {
		t.Errorf("auto-send error should be logged, got %v", err)
	}
}

func TestCampaignScheduler_ListError(t *testing.T) {
	store := newMemCampaignStore()
	store.listErr = errors.New("connection reset")
	auto := &countingAutoSender{}
	cs := newTestScheduler(store, auto)

	if _, err := cs.CheckAndActivateScheduledCampaigns(context.Background()); err == nil {
		t.Error("expected list error")
	}
	if auto.count() != 0 {
		t.Error("auto-send should not run when listing fails")
	}
}

func TestCampaignScheduler_ConcurrentActivation(t *testing.T) {
	store := newMemCampaignStore(scheduledCampaign("c1", schedNow.Add(-time.Minute)))
	cs := newTestScheduler(store, nil)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := scheduledCampaign("c1", schedNow)
			ok, err := cs.ActivateCampaign(context.Background(), &c)
			if err != nil {
				t.Errorf("ActivateCampaign() error: %v", err)
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("successful activations = %d, want exactly 1", wins)
	}
	if store.startWrites != 1 {
		t.Errorf("start date writes = %d, want 1", store.startWrites)
	}
}

func TestCampaignScheduler_StartStop(t *testing.T) {
	auto := &countingAutoSender{}
	cs := NewCampaignScheduler(newMemCampaignStore(), auto)
	cs.SetPollInterval(time.Hour)

	cs.Start()
	cs.Start() // no-op
	if !cs.IsRunning() {
		t.Fatal("scheduler should be running after Start()")
	}

	// Start performs an immediate check
	deadline := time.Now().Add(time.Second)
	for auto.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if auto.count() == 0 {
		t.Error("Start() should run an immediate check")
	}

	cs.Stop()
	cs.Stop() // no-op
	if cs.IsRunning() {
		t.Error("scheduler should not be running after Stop()")
	}
}
