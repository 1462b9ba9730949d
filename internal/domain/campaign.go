package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// Campaign represents an outreach campaign sending one template to the
// members of a contact list.
type Campaign struct {
	ID                  string         `json:"id" db:"id"`
	UserID              string         `json:"user_id" db:"user_id"`
	Name                string         `json:"name" db:"name"`
	Status              CampaignStatus `json:"status" db:"status"`
	ContactListID       *string        `json:"contact_list_id" db:"contact_list_id"`
	TemplateID          *string        `json:"email_template_id" db:"email_template_id"`
	ScheduleAt          *time.Time     `json:"schedule_date" db:"schedule_date"`
	StartDate           *time.Time     `json:"start_date" db:"start_date"`
	RequiresHumanReview bool           `json:"requires_human_review" db:"requires_human_review"`
	DailyLimit          int            `json:"daily_limit" db:"daily_limit"`
	DelayBetweenEmails  time.Duration  `json:"delay_between_emails" db:"delay_between_emails"`
	UnsubscribeLink     bool           `json:"unsubscribe_link" db:"unsubscribe_link"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at" db:"updated_at"`
}

// IsAutoSend reports whether the campaign sends without per-message review.
func (c *Campaign) IsAutoSend() bool {
	return c.Status == CampaignActive && !c.RequiresHumanReview && c.TemplateID != nil && *c.TemplateID != ""
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted
}

// EmailTemplate is a user-authored template containing merge fields.
type EmailTemplate struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Subject   string    `json:"subject" db:"subject"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
