package autosend

import (
	"context"
	"time"

	"github.com/jononovo/5ducks-outreach/internal/domain"
)

// Repository defines the data access contract for auto-send.
// Implementations must be safe for concurrent use.
type Repository interface {
	// ListAutoSendCampaigns returns active campaigns with human review
	// disabled and a template assigned.
	ListAutoSendCampaigns(ctx context.Context) ([]domain.Campaign, error)

	// GetTemplate returns ErrTemplateNotFound if the template doesn't exist.
	GetTemplate(ctx context.Context, id string) (*domain.EmailTemplate, error)

	// GetUser returns ErrUserNotFound if the user doesn't exist.
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// GetCompany returns ErrCompanyNotFound if the company doesn't exist.
	GetCompany(ctx context.Context, id string) (*domain.Company, error)

	// CountSentSince counts successful sends for a campaign at or after since.
	CountSentSince(ctx context.Context, campaignID string, since time.Time) (int, error)

	// GetUncontactedRecipients returns up to limit members of the list,
	// owned by userID, with a non-empty email and no communication history
	// row for campaignID.
	GetUncontactedRecipients(ctx context.Context, listID, userID, campaignID string, limit int) ([]domain.Contact, error)

	// CreateCommunicationHistory appends one history row.
	CreateCommunicationHistory(ctx context.Context, h *domain.CommunicationHistory) error

	// MarkContacted sets the contact's status to contacted, increments its
	// communication counter and stamps lastContactedAt.
	MarkContacted(ctx context.Context, contactID string, at time.Time) error
}
