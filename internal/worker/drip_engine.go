package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jononovo/5ducks-outreach/internal/calendar"
	"github.com/jononovo/5ducks-outreach/internal/domain"
	"github.com/jononovo/5ducks-outreach/internal/pkg/distlock"
	"github.com/jononovo/5ducks-outreach/internal/pkg/logger"
	"github.com/jononovo/5ducks-outreach/internal/retry"
	"github.com/jononovo/5ducks-outreach/internal/service/sending"
	"github.com/jononovo/5ducks-outreach/internal/templates"
)

// =============================================================================
// DRIP EMAIL ENGINE
// =============================================================================
// Enrolls recipients into named sequences and delivers each sequence event
// when it falls due. A single poller claims due rows in bounded batches and
// sends them one at a time. Failed sends stay 'scheduled' and are reclaimed
// on a later poll until the retry policy gives up.

const (
	DefaultDripPollInterval = 5 * time.Minute
	DefaultDripBatchSize    = 50

	// DefaultClaimLease hides a claimed row from other pollers while it is
	// being sent. A crashed worker's rows reappear once the lease runs out.
	DefaultClaimLease = 10 * time.Minute

	// DefaultSequenceName is ensured at startup by Initialize.
	DefaultSequenceName = "registration_welcome"

	cancelledReason  = "cancelled"
	suppressedReason = "recipient suppressed"
)

// ErrSequenceNotFound is returned by DripStore.GetSequenceByName.
var ErrSequenceNotFound = errors.New("sequence not found")

var errSuppressed = errors.New(suppressedReason)

// Suppressor reports addresses that must not be mailed.
type Suppressor interface {
	IsSuppressed(ctx context.Context, email string) (bool, error)
}

// DripStore is the persistence the drip engine needs.
type DripStore interface {
	// EnsureSequence creates seq (and its events) if no sequence with the
	// same name exists, and returns the stored sequence either way.
	EnsureSequence(ctx context.Context, seq *domain.Sequence) (*domain.Sequence, error)
	// GetSequenceByName returns the sequence with its active events in
	// ascending order.
	GetSequenceByName(ctx context.Context, name string) (*domain.Sequence, error)
	CreateScheduledSend(ctx context.Context, s *domain.ScheduledSend) error
	// ClaimDueSends returns up to limit rows with status 'scheduled' and
	// scheduled_for <= now, hiding them from other claimers for lease.
	ClaimDueSends(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.ScheduledSend, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, reason string) error
	// RecordRetry keeps the row scheduled, storing the attempt count and
	// error, and makes it due again at nextAttempt.
	RecordRetry(ctx context.Context, id string, attempts int, reason string, nextAttempt time.Time) error
	// CancelScheduled fails every still-scheduled row of a recipient in a
	// sequence and returns how many rows changed.
	CancelScheduled(ctx context.Context, sequenceID, email, reason string) (int64, error)
}

// DripConfig configures a DripEngine. Zero values take the defaults.
type DripConfig struct {
	PollInterval time.Duration
	BatchSize    int
	ClaimLease   time.Duration
	Retry        retry.Policy
	FromName     string
}

// DripStats is a snapshot of engine counters since startup.
type DripStats struct {
	Sent          int64      `json:"sent"`
	Failed        int64      `json:"failed"`
	Retried       int64      `json:"retried"`
	Suppressed    int64      `json:"suppressed"`
	SkippedCycles int64      `json:"skipped_cycles"`
	Polling       bool       `json:"polling"`
	LastPollAt    *time.Time `json:"last_poll_at,omitempty"`
}

// DripEngine schedules and delivers sequence emails.
type DripEngine struct {
	store  DripStore
	sender sending.Sender
	lock   distlock.DistLock // optional cross-process guard
	supp   Suppressor        // optional
	cfg    DripConfig
	now    func() time.Time

	// in-process re-entrancy guard for poll cycles
	busy atomic.Bool

	sent          atomic.Int64
	failed        atomic.Int64
	retried       atomic.Int64
	suppressed    atomic.Int64
	skippedCycles atomic.Int64
	lastPoll      atomic.Int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewDripEngine creates a drip engine.
func NewDripEngine(store DripStore, sender sending.Sender, cfg DripConfig) *DripEngine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultDripPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultDripBatchSize
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = DefaultClaimLease
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.Default()
	}
	return &DripEngine{store: store, sender: sender, cfg: cfg, now: time.Now}
}

// SetLock makes each poll cycle run only while holding l, so replicas
// polling the same database don't double-send.
func (e *DripEngine) SetLock(l distlock.DistLock) {
	e.lock = l
}

// SetSuppressor makes every send check the suppression list first.
func (e *DripEngine) SetSuppressor(sp Suppressor) {
	e.supp = sp
}

// checkSuppression returns errSuppressed for a blocked recipient. A failed
// lookup is returned as is and treated like a failed send.
func (e *DripEngine) checkSuppression(ctx context.Context, email string) error {
	if e.supp == nil {
		return nil
	}
	blocked, err := e.supp.IsSuppressed(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("suppression check: %w", err)
	}
	if blocked {
		return errSuppressed
	}
	return nil
}

// DefaultSequence is the welcome sequence every new registration joins.
func DefaultSequence() *domain.Sequence {
	return &domain.Sequence{
		Name:        DefaultSequenceName,
		Description: "Welcome emails for newly registered users",
		Events: []domain.SequenceEvent{
			{TemplateKey: templates.WelcomeRegistration, Order: 1, Delay: 0, DelayKind: domain.DelayHours, Active: true},
			{TemplateKey: templates.GettingStartedTips, Order: 2, Delay: 72, DelayKind: domain.DelayWorkingDays, Active: true},
			{TemplateKey: templates.CheckIn, Order: 3, Delay: 48, DelayKind: domain.DelayHours, Active: true},
		},
	}
}

// Initialize ensures the default sequence exists, then starts polling.
// The first poll runs immediately.
func (e *DripEngine) Initialize(ctx context.Context) error {
	seq, err := e.store.EnsureSequence(ctx, DefaultSequence())
	if err != nil {
		return fmt.Errorf("ensure default sequence: %w", err)
	}
	log.Printf("[DripEngine] Sequence %q ready with %d events", seq.Name, len(seq.Events))

	e.StartPolling()
	return nil
}

// StartPolling starts the poll loop. Calling it while running is a no-op.
func (e *DripEngine) StartPolling() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		log.Printf("[DripEngine] Polling already running")
		return
	}
	e.running = true
	e.ctx, e.cancel = context.WithCancel(context.Background())

	log.Printf("[DripEngine] Starting with poll interval: %v, batch size: %d", e.cfg.PollInterval, e.cfg.BatchSize)

	e.wg.Add(1)
	go e.pollLoop()
}

// StopPolling stops the poll loop and waits for an in-flight cycle.
func (e *DripEngine) StopPolling() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	log.Printf("[DripEngine] Stopping...")
	e.cancel()
	e.wg.Wait()
	log.Printf("[DripEngine] Stopped. Sent: %d, Failed: %d", e.sent.Load(), e.failed.Load())
}

func (e *DripEngine) pollLoop() {
	defer e.wg.Done()

	e.ProcessPendingEmails(e.ctx)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.ProcessPendingEmails(e.ctx)
		}
	}
}

// ProcessPendingEmails runs one poll cycle and returns how many rows it
// processed. A tick that arrives while a cycle is running is dropped.
func (e *DripEngine) ProcessPendingEmails(ctx context.Context) int {
	if !e.busy.CompareAndSwap(false, true) {
		e.skippedCycles.Add(1)
		log.Printf("[DripEngine] Previous cycle still running, skipping tick")
		return 0
	}
	defer e.busy.Store(false)

	e.lastPoll.Store(e.now().UnixNano())

	var processed int
	run := func(ctx context.Context) error {
		n, err := e.processBatch(ctx)
		processed = n
		return err
	}

	var err error
	if e.lock != nil {
		err = distlock.Run(ctx, e.lock, run)
		if errors.Is(err, distlock.ErrNotAcquired) {
			e.skippedCycles.Add(1)
			log.Printf("[DripEngine] Another worker holds the poll lock, skipping")
			return 0
		}
	} else {
		err = run(ctx)
	}
	if err != nil {
		log.Printf("[DripEngine] Poll cycle error: %v", err)
	}
	return processed
}

func (e *DripEngine) processBatch(ctx context.Context) (int, error) {
	due, err := e.store.ClaimDueSends(ctx, e.now(), e.cfg.ClaimLease, e.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claim due sends: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	log.Printf("[DripEngine] Processing %d due emails", len(due))
	for i := range due {
		if ctx.Err() != nil {
			return i, ctx.Err()
		}
		e.SendScheduledEmail(ctx, &due[i])
	}
	return len(due), nil
}

// templateVars builds the template variables for a scheduled send. Metadata
// keys are copied first so the recipient fields always win.
func templateVars(s *domain.ScheduledSend) templates.Vars {
	vars := make(templates.Vars, len(s.Metadata)+2)
	for k, v := range s.Metadata {
		vars[k] = v
	}
	if s.RecipientName != "" {
		vars["name"] = s.RecipientName
	}
	vars["email"] = s.RecipientEmail
	return vars
}

// SendScheduledEmail renders and sends one scheduled row and records the
// outcome. It reports whether the email was sent.
func (e *DripEngine) SendScheduledEmail(ctx context.Context, s *domain.ScheduledSend) bool {
	content := templates.BuildEmailFromTemplate(s.TemplateKey, templateVars(s))
	if content == nil {
		reason := "template not found: " + s.TemplateKey
		log.Printf("[DripEngine] Send %s: %s", s.ID, reason)
		if err := e.store.MarkFailed(ctx, s.ID, s.RetryCount, reason); err != nil {
			log.Printf("[DripEngine] Failed to mark %s failed: %v", s.ID, err)
		}
		e.failed.Add(1)
		return false
	}

	msg := &domain.EmailMessage{
		ID:       s.ID,
		To:       s.RecipientEmail,
		FromName: e.cfg.FromName,
		Content:  *content,
		Headers:  map[string]string{"X-Sequence-Event": s.EventID},
	}

	sendErr := e.checkSuppression(ctx, s.RecipientEmail)
	if errors.Is(sendErr, errSuppressed) {
		log.Printf("[DripEngine] Send %s skipped: %s is suppressed", s.ID, logger.RedactEmail(s.RecipientEmail))
		if err := e.store.MarkFailed(ctx, s.ID, s.RetryCount, suppressedReason); err != nil {
			log.Printf("[DripEngine] Failed to mark %s failed: %v", s.ID, err)
		}
		e.suppressed.Add(1)
		return false
	}
	if sendErr == nil {
		_, sendErr = sending.Deliver(ctx, e.sender, msg)
	}
	if sendErr == nil {
		e.markSent(ctx, s)
		e.sent.Add(1)
		log.Printf("[DripEngine] Sent %s to %s", s.TemplateKey, logger.RedactEmail(s.RecipientEmail))
		return true
	}

	decision := e.cfg.Retry.Decide(s.RetryCount)
	if !decision.Retry {
		log.Printf("[DripEngine] Send %s failed after %d attempts: %v", s.ID, decision.Attempts, sendErr)
		if err := e.store.MarkFailed(ctx, s.ID, decision.Attempts, sendErr.Error()); err != nil {
			log.Printf("[DripEngine] Failed to mark %s failed: %v", s.ID, err)
		}
		e.failed.Add(1)
		return false
	}

	log.Printf("[DripEngine] Send %s attempt %d failed, will retry: %v", s.ID, decision.Attempts, sendErr)
	if err := e.store.RecordRetry(ctx, s.ID, decision.Attempts, sendErr.Error(), e.now().Add(decision.Wait)); err != nil {
		log.Printf("[DripEngine] Failed to record retry for %s: %v", s.ID, err)
	}
	e.retried.Add(1)
	return false
}

// markSent records a delivered row, retrying once. A row left 'scheduled'
// after delivery is reclaimed once its lease expires and sent again, so
// that case is logged at error level with the row id.
func (e *DripEngine) markSent(ctx context.Context, s *domain.ScheduledSend) {
	err := e.store.MarkSent(ctx, s.ID, e.now())
	if err == nil {
		return
	}
	log.Printf("[DripEngine] Sent %s but failed to mark sent, retrying: %v", s.ID, err)
	if err = e.store.MarkSent(ctx, s.ID, e.now()); err == nil {
		return
	}
	logger.For("drip").Error("delivered send not marked sent, may be resent after lease",
		"send_id", s.ID,
		"recipient", s.RecipientEmail,
		"template", s.TemplateKey,
		"error", err)
}

// SendImmediate sends content to a single recipient right away, outside
// any sequence. Errors are logged, never returned.
func (e *DripEngine) SendImmediate(ctx context.Context, to string, content *domain.EmailContent, fromName string) bool {
	if content == nil {
		log.Printf("[DripEngine] SendImmediate to %s: no content", logger.RedactEmail(to))
		return false
	}
	if fromName == "" {
		fromName = e.cfg.FromName
	}
	if err := e.checkSuppression(ctx, to); err != nil {
		log.Printf("[DripEngine] SendImmediate to %s: %v", logger.RedactEmail(to), err)
		if errors.Is(err, errSuppressed) {
			e.suppressed.Add(1)
		}
		return false
	}
	msg := &domain.EmailMessage{
		ID:       uuid.New().String(),
		To:       domain.NormalizeEmail(to),
		FromName: fromName,
		Content:  *content,
	}
	if _, err := sending.Deliver(ctx, e.sender, msg); err != nil {
		log.Printf("[DripEngine] SendImmediate to %s failed: %v", logger.RedactEmail(to), err)
		return false
	}
	return true
}

// EnrollInSequence schedules every event of the named sequence for email.
// Event 1 is due now; each later event is offset from the previous event's
// resolved time. It returns true only if every event was stored.
func (e *DripEngine) EnrollInSequence(ctx context.Context, sequenceName, email, name string, metadata map[string]any) bool {
	seq, err := e.store.GetSequenceByName(ctx, sequenceName)
	if err != nil {
		log.Printf("[DripEngine] Enroll: sequence %q: %v", sequenceName, err)
		return false
	}
	if len(seq.Events) == 0 {
		log.Printf("[DripEngine] Enroll: sequence %q has no events", sequenceName)
		return false
	}
	email = domain.NormalizeEmail(email)
	if email == "" {
		log.Printf("[DripEngine] Enroll: empty email for sequence %q", sequenceName)
		return false
	}

	now := e.now()
	prev := now
	ok := true
	for _, ev := range seq.Events {
		at := now
		if ev.Order != 1 {
			at = calendar.ScheduledTime(prev, ev.Delay, ev.DelayKind)
		}
		prev = at

		send := &domain.ScheduledSend{
			ID:             uuid.New().String(),
			RecipientEmail: email,
			RecipientName:  name,
			SequenceID:     seq.ID,
			EventID:        ev.ID,
			TemplateKey:    ev.TemplateKey,
			Status:         domain.SendScheduled,
			ScheduledFor:   at,
			Metadata:       metadata,
			CreatedAt:      now,
		}
		if err := e.store.CreateScheduledSend(ctx, send); err != nil {
			log.Printf("[DripEngine] Enroll %s event %d: %v", logger.RedactEmail(email), ev.Order, err)
			ok = false
		}
	}
	if ok {
		log.Printf("[DripEngine] Enrolled %s in %q (%d events)", logger.RedactEmail(email), sequenceName, len(seq.Events))
	}
	return ok
}

// CancelEnrollment stops all remaining sends of a recipient in a sequence.
func (e *DripEngine) CancelEnrollment(ctx context.Context, sequenceName, email string) (int64, error) {
	seq, err := e.store.GetSequenceByName(ctx, sequenceName)
	if err != nil {
		return 0, err
	}
	n, err := e.store.CancelScheduled(ctx, seq.ID, domain.NormalizeEmail(email), cancelledReason)
	if err != nil {
		return 0, fmt.Errorf("cancel enrollment: %w", err)
	}
	log.Printf("[DripEngine] Cancelled %d pending sends for %s in %q", n, logger.RedactEmail(email), sequenceName)
	return n, nil
}

// Stats returns a snapshot of the engine counters.
func (e *DripEngine) Stats() DripStats {
	e.mu.Lock()
	polling := e.running
	e.mu.Unlock()

	st := DripStats{
		Sent:          e.sent.Load(),
		Failed:        e.failed.Load(),
		Retried:       e.retried.Load(),
		Suppressed:    e.suppressed.Load(),
		SkippedCycles: e.skippedCycles.Load(),
		Polling:       polling,
	}
	if ns := e.lastPoll.Load(); ns != 0 {
		t := time.Unix(0, ns)
		st.LastPollAt = &t
	}
	return st
}
