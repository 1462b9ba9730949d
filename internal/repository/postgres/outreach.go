package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jononovo/5ducks-outreach/internal/domain"
	"github.com/jononovo/5ducks-outreach/internal/service/autosend"
)

// OutreachRepo implements autosend.Repository against PostgreSQL.
type OutreachRepo struct{ db *sql.DB }

// NewOutreachRepo creates a Postgres-backed outreach repository.
func NewOutreachRepo(db *sql.DB) *OutreachRepo { return &OutreachRepo{db: db} }

func (r *OutreachRepo) ListAutoSendCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	out, err := queryCampaigns(ctx, r.db, `
		SELECT`+campaignColumns+`
		FROM campaigns
		WHERE status = 'active'
		  AND requires_human_review = false
		  AND email_template_id IS NOT NULL
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list auto-send campaigns: %w", err)
	}
	return out, nil
}

func (r *OutreachRepo) GetTemplate(ctx context.Context, id string) (*domain.EmailTemplate, error) {
	t := &domain.EmailTemplate{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, subject, content, created_at
		FROM email_templates
		WHERE id = $1
	`, id).Scan(&t.ID, &t.UserID, &t.Name, &t.Subject, &t.Content, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, autosend.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *OutreachRepo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, COALESCE(username, '')
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.Username)
	if err == sql.ErrNoRows {
		return nil, autosend.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *OutreachRepo) GetCompany(ctx context.Context, id string) (*domain.Company, error) {
	c := &domain.Company{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, COALESCE(website, ''), COALESCE(description, '')
		FROM companies
		WHERE id = $1
	`, id).Scan(&c.ID, &c.UserID, &c.Name, &c.Website, &c.Description)
	if err == sql.ErrNoRows {
		return nil, autosend.ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	return c, nil
}

func (r *OutreachRepo) CountSentSince(ctx context.Context, campaignID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM communication_history
		WHERE campaign_id = $1 AND status = 'sent' AND sent_at >= $2
	`, campaignID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sent: %w", err)
	}
	return n, nil
}

// GetUncontactedRecipients excludes any contact with a history row for the
// campaign, failed attempts included, so a sweep never repeats a contact.
// Suppressed addresses are excluded too.
func (r *OutreachRepo) GetUncontactedRecipients(ctx context.Context, listID, userID, campaignID string, limit int) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.company_id, c.name, COALESCE(c.role, ''), c.email,
		       c.contact_status, c.total_communications, c.last_contacted_at
		FROM contact_list_members m
		JOIN contacts c ON c.id = m.contact_id
		WHERE m.list_id = $1
		  AND c.user_id = $2
		  AND c.email IS NOT NULL AND c.email <> ''
		  AND NOT EXISTS (
		      SELECT 1 FROM communication_history h
		      WHERE h.contact_id = c.id AND h.campaign_id = $3
		  )
		  AND NOT EXISTS (
		      SELECT 1 FROM email_suppressions s
		      WHERE s.email = LOWER(TRIM(c.email)) AND s.active = true
		  )
		ORDER BY m.added_at, c.id
		LIMIT $4
	`, listID, userID, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("uncontacted recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		var (
			c         domain.Contact
			companyID sql.NullString
			lastAt    sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.UserID, &companyID, &c.Name, &c.Role, &c.Email,
			&c.ContactStatus, &c.TotalCommunications, &lastAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		c.CompanyID = nullStringPtr(companyID)
		c.LastContactedAt = nullTimePtr(lastAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *OutreachRepo) CreateCommunicationHistory(ctx context.Context, h *domain.CommunicationHistory) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	meta, err := marshalMetadata(h.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO communication_history
			(id, user_id, contact_id, company_id, campaign_id, template_id, channel,
			 direction, subject, content, status, error_message, sent_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, h.ID, h.UserID, h.ContactID, ptrToNull(h.CompanyID), stringToNull(h.CampaignID),
		stringToNull(h.TemplateID), h.Channel, h.Direction, h.Subject, h.Content,
		string(h.Status), stringToNull(h.ErrorMessage), h.SentAt, meta)
	if err != nil {
		return fmt.Errorf("create communication history: %w", err)
	}
	return nil
}

func (r *OutreachRepo) MarkContacted(ctx context.Context, contactID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contacts
		SET contact_status = 'contacted',
		    total_communications = total_communications + 1,
		    last_contacted_at = $2
		WHERE id = $1
	`, contactID, at)
	if err != nil {
		return fmt.Errorf("mark contacted: %w", err)
	}
	return nil
}
