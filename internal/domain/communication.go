package domain

import "time"

// CommunicationStatus is the outcome of a single send attempt.
type CommunicationStatus string

const (
	CommunicationSent   CommunicationStatus = "sent"
	CommunicationFailed CommunicationStatus = "failed"
)

// CommunicationHistory is an append-only audit row written once per send
// attempt. Rows are never updated after insert.
type CommunicationHistory struct {
	ID           string              `json:"id" db:"id"`
	UserID       string              `json:"user_id" db:"user_id"`
	ContactID    string              `json:"contact_id" db:"contact_id"`
	CompanyID    *string             `json:"company_id" db:"company_id"`
	CampaignID   string              `json:"campaign_id" db:"campaign_id"`
	TemplateID   string              `json:"template_id" db:"template_id"`
	Channel      string              `json:"channel" db:"channel"`
	Direction    string              `json:"direction" db:"direction"`
	Subject      string              `json:"subject" db:"subject"`
	Content      string              `json:"content" db:"content"`
	Status       CommunicationStatus `json:"status" db:"status"`
	ErrorMessage string              `json:"error_message,omitempty" db:"error_message"`
	SentAt       time.Time           `json:"sent_at" db:"sent_at"`
	Metadata     map[string]any      `json:"metadata,omitempty" db:"metadata"`
}
