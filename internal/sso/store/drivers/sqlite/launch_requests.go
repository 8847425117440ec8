package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
)

type launchRequestsRepo struct {
	q querier
}

func (r *launchRequestsRepo) CreateLaunchRequest(ctx context.Context, req domain.LaunchRequest) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO lti_launch_requests (id, workspace_id, status, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		req.ID, req.WorkspaceID, req.Status, req.Message, now, now,
	)
	return mapConstraint(err)
}

func (r *launchRequestsRepo) GetLaunchRequest(ctx context.Context, id string) (domain.LaunchRequest, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, workspace_id, status, message, created_at, updated_at
		FROM lti_launch_requests WHERE id = ?`, id)

	var req domain.LaunchRequest
	err := row.Scan(&req.ID, &req.WorkspaceID, &req.Status, &req.Message, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return domain.LaunchRequest{}, mapNotFound(err)
	}
	return req, nil
}

func (r *launchRequestsRepo) UpdateLaunchStatus(ctx context.Context, id, status, message string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE lti_launch_requests SET status = ?, message = ?, updated_at = ?
		WHERE id = ?`,
		status, message, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *launchRequestsRepo) CreateLaunchEntry(ctx context.Context, e domain.LaunchEntry) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO lti_launch_entries (id, launch_request_id, kind, name, value, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.LaunchRequestID, e.Kind, e.Name, e.Value, time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *launchRequestsRepo) ListLaunchEntries(ctx context.Context, launchRequestID string) ([]domain.LaunchEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, launch_request_id, kind, name, value, created_at
		FROM lti_launch_entries WHERE launch_request_id = ?
		ORDER BY id ASC`, launchRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LaunchEntry
	for rows.Next() {
		var e domain.LaunchEntry
		if err := rows.Scan(&e.ID, &e.LaunchRequestID, &e.Kind, &e.Name, &e.Value, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
