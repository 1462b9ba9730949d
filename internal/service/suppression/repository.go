package suppression

import (
	"context"

	"github.com/jononovo/5ducks-outreach/internal/domain"
)

// Repository defines the data access contract for the suppression list.
// Emails passed in are already normalized.
type Repository interface {
	IsSuppressed(ctx context.Context, email string) (bool, error)

	// Suppress adds or reactivates an entry. An existing active entry keeps
	// its original reason.
	Suppress(ctx context.Context, s *domain.Suppression) error

	// Remove deactivates an entry. Returns ErrNotFound if none is active.
	Remove(ctx context.Context, email string) error

	// ContactEmail resolves a contact ID from an unsubscribe token.
	// Returns ErrContactNotFound if the contact is gone.
	ContactEmail(ctx context.Context, contactID string) (string, error)
}
