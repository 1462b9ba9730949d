package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jononovo/5ducks-outreach/internal/domain"
)

const campaignColumns = `
	id, user_id, name, status, contact_list_id, email_template_id,
	schedule_date, start_date, requires_human_review, daily_limit,
	delay_between_emails_ms, unsubscribe_link, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(s rowScanner) (domain.Campaign, error) {
	var (
		c                 domain.Campaign
		listID, tplID     sql.NullString
		scheduleAt, start sql.NullTime
		delayMS           int64
	)
	err := s.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Status, &listID, &tplID,
		&scheduleAt, &start, &c.RequiresHumanReview, &c.DailyLimit,
		&delayMS, &c.UnsubscribeLink, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}
	c.ContactListID = nullStringPtr(listID)
	c.TemplateID = nullStringPtr(tplID)
	c.ScheduleAt = nullTimePtr(scheduleAt)
	c.StartDate = nullTimePtr(start)
	c.DelayBetweenEmails = time.Duration(delayMS) * time.Millisecond
	return c, nil
}

func queryCampaigns(ctx context.Context, db *sql.DB, q string, args ...interface{}) ([]domain.Campaign, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CampaignRepo implements worker.CampaignActivator against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

// ListDueScheduled returns scheduled campaigns whose schedule date is at or
// before now, oldest first.
func (r *CampaignRepo) ListDueScheduled(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	out, err := queryCampaigns(ctx, r.db, `
		SELECT`+campaignColumns+`
		FROM campaigns
		WHERE status = 'scheduled'
		  AND schedule_date IS NOT NULL
		  AND schedule_date <= $1
		ORDER BY schedule_date`, now)
	if err != nil {
		return nil, fmt.Errorf("list due campaigns: %w", err)
	}
	return out, nil
}

// ActivateScheduled flips a campaign to active only if it is still
// scheduled, so concurrent activations write start_date once.
func (r *CampaignRepo) ActivateScheduled(ctx context.Context, id string, startDate time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'active', start_date = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
	`, id, startDate)
	if err != nil {
		return false, fmt.Errorf("activate campaign: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("activate campaign rows affected: %w", err)
	}
	return n == 1, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func ptrToNull(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringToNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
