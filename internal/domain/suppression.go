package domain

import "time"

// SuppressionReason explains why an address is suppressed.
type SuppressionReason string

const (
	SuppressionUnsubscribe SuppressionReason = "unsubscribe"
	SuppressionManual      SuppressionReason = "manual"
	SuppressionBounce      SuppressionReason = "bounce"
	SuppressionComplaint   SuppressionReason = "complaint"
)

// SuppressionSource records where a suppression came from.
type SuppressionSource string

const (
	SourceUnsubscribeLink SuppressionSource = "unsubscribe_link"
	SourceAdmin           SuppressionSource = "admin"
)

// Suppression blocks every future send to Email, drip and campaign alike.
type Suppression struct {
	ID         string            `json:"id" db:"id"`
	Email      string            `json:"email" db:"email"`
	Reason     SuppressionReason `json:"reason" db:"reason"`
	Source     SuppressionSource `json:"source" db:"source"`
	ContactID  string            `json:"contact_id,omitempty" db:"contact_id"`
	CampaignID string            `json:"campaign_id,omitempty" db:"campaign_id"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}
