package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/jononovo/5ducks-outreach/internal/domain"
	"github.com/jononovo/5ducks-outreach/internal/service/suppression"
)

// SuppressionRepo implements suppression.Repository against PostgreSQL.
type SuppressionRepo struct{ db *sql.DB }

// NewSuppressionRepo creates a Postgres-backed suppression repository.
func NewSuppressionRepo(db *sql.DB) *SuppressionRepo { return &SuppressionRepo{db: db} }

func (r *SuppressionRepo) IsSuppressed(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM email_suppressions WHERE email = $1 AND active = true)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("is suppressed: %w", err)
	}
	return exists, nil
}

// Suppress inserts or reactivates an entry. An already active entry is
// left untouched.
func (r *SuppressionRepo) Suppress(ctx context.Context, s *domain.Suppression) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_suppressions (id, email, reason, source, contact_id, campaign_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE
		SET reason = EXCLUDED.reason, source = EXCLUDED.source,
		    contact_id = EXCLUDED.contact_id, campaign_id = EXCLUDED.campaign_id,
		    active = true, updated_at = NOW()
		WHERE email_suppressions.active = false
	`, s.ID, s.Email, string(s.Reason), string(s.Source), stringToNull(s.ContactID), stringToNull(s.CampaignID))
	if err != nil {
		return fmt.Errorf("suppress: %w", err)
	}
	return nil
}

func (r *SuppressionRepo) Remove(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE email_suppressions SET active = false, updated_at = NOW() WHERE email = $1 AND active = true`,
		email,
	)
	if err != nil {
		return fmt.Errorf("remove suppression: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove suppression rows affected: %w", err)
	}
	if n == 0 {
		return suppression.ErrNotFound
	}
	return nil
}

func (r *SuppressionRepo) ContactEmail(ctx context.Context, contactID string) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx,
		`SELECT email FROM contacts WHERE id = $1 AND email IS NOT NULL AND email <> ''`,
		contactID,
	).Scan(&email)
	if err == sql.ErrNoRows {
		return "", suppression.ErrContactNotFound
	}
	if err != nil {
		return "", fmt.Errorf("contact email: %w", err)
	}
	return email, nil
}
