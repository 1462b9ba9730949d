package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jononovo/5ducks-outreach/internal/domain"
	"github.com/jononovo/5ducks-outreach/internal/worker"
)

// DripRepo implements worker.DripStore and worker.SendPurger against
// PostgreSQL.
type DripRepo struct{ db *sql.DB }

// NewDripRepo creates a Postgres-backed drip repository.
func NewDripRepo(db *sql.DB) *DripRepo { return &DripRepo{db: db} }

// EnsureSequence inserts seq and its events unless a sequence with the
// same name already exists. Concurrent callers race on the unique name
// and only the winner writes events.
func (r *DripRepo) EnsureSequence(ctx context.Context, seq *domain.Sequence) (*domain.Sequence, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	seqID := uuid.New().String()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO drip_sequences (id, name, description, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (name) DO NOTHING
	`, seqID, seq.Name, seq.Description)
	if err != nil {
		return nil, fmt.Errorf("insert sequence: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert sequence rows affected: %w", err)
	}
	if n == 1 {
		for _, ev := range seq.Events {
			kind := ev.DelayKind
			if !kind.Valid() {
				kind = domain.DelayHours
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO drip_sequence_events
					(id, sequence_id, template_key, event_order, delay_hours, delay_type, is_active)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, uuid.New().String(), seqID, ev.TemplateKey, ev.Order, ev.Delay, string(kind), ev.Active)
			if err != nil {
				return nil, fmt.Errorf("insert sequence event %d: %w", ev.Order, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return r.GetSequenceByName(ctx, seq.Name)
}

// GetSequenceByName returns the sequence and its active events in order.
func (r *DripRepo) GetSequenceByName(ctx context.Context, name string) (*domain.Sequence, error) {
	seq := &domain.Sequence{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, ''), created_at
		FROM drip_sequences
		WHERE name = $1
	`, name).Scan(&seq.ID, &seq.Name, &seq.Description, &seq.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, worker.ErrSequenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sequence: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sequence_id, template_key, event_order, delay_hours, delay_type, is_active
		FROM drip_sequence_events
		WHERE sequence_id = $1 AND is_active = true
		ORDER BY event_order
	`, seq.ID)
	if err != nil {
		return nil, fmt.Errorf("list sequence events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev domain.SequenceEvent
		if err := rows.Scan(&ev.ID, &ev.SequenceID, &ev.TemplateKey, &ev.Order, &ev.Delay, &ev.DelayKind, &ev.Active); err != nil {
			return nil, fmt.Errorf("scan sequence event: %w", err)
		}
		seq.Events = append(seq.Events, ev)
	}
	return seq, rows.Err()
}

// CreateScheduledSend inserts one scheduled send.
func (r *DripRepo) CreateScheduledSend(ctx context.Context, s *domain.ScheduledSend) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	meta, err := marshalMetadata(s.Metadata)
	if err != nil {
		return err
	}
	status := s.Status
	if status == "" {
		status = domain.SendScheduled
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO drip_scheduled_sends
			(id, recipient_email, recipient_name, sequence_id, event_id, template_key,
			 status, scheduled_for, retry_count, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, NOW(), NOW())
	`, s.ID, s.RecipientEmail, stringToNull(s.RecipientName), s.SequenceID, s.EventID,
		s.TemplateKey, string(status), s.ScheduledFor, meta)
	if err != nil {
		return fmt.Errorf("create scheduled send: %w", err)
	}
	return nil
}

// ClaimDueSends pushes due rows' scheduled_for out by lease and returns
// them with their original due time. SKIP LOCKED lets concurrent pollers
// claim disjoint rows.
func (r *DripRepo) ClaimDueSends(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.ScheduledSend, error) {
	rows, err := r.db.QueryContext(ctx, `
		WITH due AS (
			SELECT id, scheduled_for
			FROM drip_scheduled_sends
			WHERE status = 'scheduled' AND scheduled_for <= $1
			ORDER BY scheduled_for
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE drip_scheduled_sends s
		SET scheduled_for = $2, updated_at = NOW()
		FROM due
		WHERE s.id = due.id
		RETURNING s.id, s.recipient_email, COALESCE(s.recipient_name, ''), s.sequence_id,
		          s.event_id, s.template_key, s.status, due.scheduled_for, s.retry_count,
		          s.metadata, COALESCE(s.last_error, ''), s.created_at
	`, now, now.Add(lease), limit)
	if err != nil {
		return nil, fmt.Errorf("claim due sends: %w", err)
	}
	defer rows.Close()

	var out []domain.ScheduledSend
	for rows.Next() {
		var (
			s    domain.ScheduledSend
			meta []byte
		)
		if err := rows.Scan(&s.ID, &s.RecipientEmail, &s.RecipientName, &s.SequenceID,
			&s.EventID, &s.TemplateKey, &s.Status, &s.ScheduledFor, &s.RetryCount,
			&meta, &s.LastError, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scheduled send: %w", err)
		}
		if s.Metadata, err = unmarshalMetadata(meta); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING order is unspecified
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func (r *DripRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE drip_scheduled_sends
		SET status = 'sent', sent_at = $2, last_error = NULL, updated_at = NOW()
		WHERE id = $1
	`, id, sentAt)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

func (r *DripRepo) MarkFailed(ctx context.Context, id string, attempts int, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE drip_scheduled_sends
		SET status = 'failed', retry_count = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1
	`, id, attempts, reason)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (r *DripRepo) RecordRetry(ctx context.Context, id string, attempts int, reason string, nextAttempt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE drip_scheduled_sends
		SET retry_count = $2, last_error = $3, scheduled_for = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
	`, id, attempts, reason, nextAttempt)
	if err != nil {
		return fmt.Errorf("record retry: %w", err)
	}
	return nil
}

func (r *DripRepo) CancelScheduled(ctx context.Context, sequenceID, email, reason string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE drip_scheduled_sends
		SET status = 'failed', last_error = $3, updated_at = NOW()
		WHERE sequence_id = $1 AND recipient_email = $2 AND status = 'scheduled'
	`, sequenceID, email, reason)
	if err != nil {
		return 0, fmt.Errorf("cancel scheduled sends: %w", err)
	}
	return res.RowsAffected()
}

// DeleteTerminalBefore removes one batch of sent/failed rows. A missing
// table (migrations not applied yet) counts as nothing to delete.
func (r *DripRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM drip_scheduled_sends
		WHERE id IN (
			SELECT id FROM drip_scheduled_sends
			WHERE status IN ('sent', 'failed')
			  AND updated_at < $1
			LIMIT $2
		)
	`, cutoff, limit)
	if err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("delete terminal sends: %w", err)
	}
	return res.RowsAffected()
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "42P01"
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return b, nil
}

func unmarshalMetadata(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
