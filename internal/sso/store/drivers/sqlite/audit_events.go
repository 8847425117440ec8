package sqlite

import (
	"context"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
)

type auditEventsRepo struct {
	q querier
}

func (r *auditEventsRepo) CreateAuditEvent(ctx context.Context, e domain.AuditEvent) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audit_events (id, session_id, event, message, sensitive, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Event, e.Message, e.Sensitive, time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *auditEventsRepo) ListAuditEventsBySession(ctx context.Context, sessionID string) ([]domain.AuditEvent, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, session_id, event, message, sensitive, created_at
		FROM audit_events WHERE session_id = ?
		ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Event, &e.Message, &e.Sensitive, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *auditEventsRepo) DeleteSensitiveAuditEventsBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM audit_events WHERE sensitive = 1 AND created_at < ?`, cutoff.UTC())
	return err
}
