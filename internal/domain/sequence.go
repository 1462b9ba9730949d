package domain

import (
	"strings"
	"time"
)

// DelayKind selects how a sequence event's delay is interpreted.
type DelayKind string

const (
	// DelayHours adds literal hours, then snaps off weekends.
	DelayHours DelayKind = "hours"
	// DelayWorkingDays rounds hours up to whole working days.
	DelayWorkingDays DelayKind = "working_days"
)

// Valid reports whether k is a known delay kind.
func (k DelayKind) Valid() bool {
	return k == DelayHours || k == DelayWorkingDays
}

// Sequence is a named, ordered list of email events a recipient can be
// enrolled into.
type Sequence struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Events      []SequenceEvent `json:"events"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// SequenceEvent is one step of a sequence. Order is 1-based.
type SequenceEvent struct {
	ID          string    `json:"id" db:"id"`
	SequenceID  string    `json:"sequence_id" db:"sequence_id"`
	TemplateKey string    `json:"template_key" db:"template_key"`
	Order       int       `json:"event_order" db:"event_order"`
	Delay       int       `json:"delay_hours" db:"delay_hours"`
	DelayKind   DelayKind `json:"delay_type" db:"delay_type"`
	Active      bool      `json:"is_active" db:"is_active"`
}

// SendStatus enumerates the lifecycle of a scheduled send.
type SendStatus string

const (
	SendScheduled SendStatus = "scheduled"
	SendSent      SendStatus = "sent"
	SendFailed    SendStatus = "failed"
)

// IsTerminal returns true for sent and failed.
func (s SendStatus) IsTerminal() bool {
	return s == SendSent || s == SendFailed
}

// ScheduledSend is one delivery of one sequence event to one recipient.
type ScheduledSend struct {
	ID             string         `json:"id" db:"id"`
	RecipientEmail string         `json:"recipient_email" db:"recipient_email"`
	RecipientName  string         `json:"recipient_name,omitempty" db:"recipient_name"`
	SequenceID     string         `json:"sequence_id" db:"sequence_id"`
	EventID        string         `json:"event_id" db:"event_id"`
	TemplateKey    string         `json:"template_key" db:"template_key"`
	Status         SendStatus     `json:"status" db:"status"`
	ScheduledFor   time.Time      `json:"scheduled_for" db:"scheduled_for"`
	RetryCount     int            `json:"retry_count" db:"retry_count"`
	Metadata       map[string]any `json:"metadata,omitempty" db:"metadata"`
	LastError      string         `json:"last_error,omitempty" db:"last_error"`
	SentAt         *time.Time     `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
