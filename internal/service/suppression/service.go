package suppression

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jononovo/5ducks-outreach/internal/domain"
	"github.com/jononovo/5ducks-outreach/internal/pkg/logger"
	"github.com/jononovo/5ducks-outreach/internal/tracking"
)

// Service implements suppression business logic. It is safe for concurrent use.
type Service struct {
	repo   Repository
	signer *tracking.Signer
	audit  *logger.Logger
}

// NewService creates a suppression service. signer may be nil, in which
// case Unsubscribe rejects every token.
func NewService(repo Repository, signer *tracking.Signer) *Service {
	return &Service{repo: repo, signer: signer, audit: logger.For("suppression")}
}

// IsSuppressed reports whether email must not receive mail.
func (s *Service) IsSuppressed(ctx context.Context, email string) (bool, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return false, nil
	}
	return s.repo.IsSuppressed(ctx, email)
}

// Suppress blocks email. Idempotent.
func (s *Service) Suppress(ctx context.Context, email string, reason domain.SuppressionReason, source domain.SuppressionSource) (*domain.Suppression, error) {
	return s.suppress(ctx, &domain.Suppression{
		Email:  email,
		Reason: reason,
		Source: source,
	})
}

// Remove lifts the suppression on email.
func (s *Service) Remove(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return ErrEmailRequired
	}
	if err := s.repo.Remove(ctx, email); err != nil {
		return err
	}
	s.audit.Info("suppression removed", "email", email)
	return nil
}

// Unsubscribe verifies a signed link token and suppresses the contact it
// names. Following the same link twice is harmless.
func (s *Service) Unsubscribe(ctx context.Context, token string) (*domain.Suppression, error) {
	if s.signer == nil {
		return nil, tracking.ErrInvalidToken
	}
	contactID, campaignID, err := s.signer.Verify(token)
	if err != nil {
		return nil, err
	}

	email, err := s.repo.ContactEmail(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("contact %s: %w", contactID, err)
	}

	entry, err := s.suppress(ctx, &domain.Suppression{
		Email:      email,
		Reason:     domain.SuppressionUnsubscribe,
		Source:     domain.SourceUnsubscribeLink,
		ContactID:  contactID,
		CampaignID: campaignID,
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) suppress(ctx context.Context, entry *domain.Suppression) (*domain.Suppression, error) {
	entry.Email = domain.NormalizeEmail(entry.Email)
	if entry.Email == "" {
		return nil, ErrEmailRequired
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if err := s.repo.Suppress(ctx, entry); err != nil {
		return nil, err
	}
	s.audit.Info("address suppressed",
		"email", entry.Email,
		"reason", entry.Reason,
		"source", entry.Source,
		"campaign_id", entry.CampaignID)
	return entry, nil
}
