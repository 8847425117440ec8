package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
)

type sessionHashesRepo struct {
	q querier
}

func (r *sessionHashesRepo) CreateSessionHash(ctx context.Context, h domain.LaunchSessionHash) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO lti_session_hashes
			(hash, status, consumer_configuration_id, subscription_id, cohort_id,
			 continue_to, user_id, launch_request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.Hash, h.Status, h.ConsumerConfigurationID, h.SubscriptionID, h.CohortID,
		h.ContinueTo, h.UserID, h.LaunchRequestID, time.Now().UTC(),
	)
	return mapConstraint(err)
}

// GetValidSessionHash filters out EXPIRED rows, so a consumed hash reads as
// not found rather than as an expired record.
func (r *sessionHashesRepo) GetValidSessionHash(ctx context.Context, hash string) (domain.LaunchSessionHash, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT hash, status, consumer_configuration_id, subscription_id, cohort_id,
		       continue_to, user_id, launch_request_id, created_at
		FROM lti_session_hashes
		WHERE hash = ? AND status = ?`, hash, domain.SessionHashValid)

	var h domain.LaunchSessionHash
	err := row.Scan(&h.Hash, &h.Status, &h.ConsumerConfigurationID, &h.SubscriptionID, &h.CohortID,
		&h.ContinueTo, &h.UserID, &h.LaunchRequestID, &h.CreatedAt)
	if err != nil {
		return domain.LaunchSessionHash{}, mapNotFound(err)
	}
	return h, nil
}

func (r *sessionHashesRepo) ExpireSessionHash(ctx context.Context, hash string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE lti_session_hashes SET status = ? WHERE hash = ? AND status = ?`,
		domain.SessionHashExpired, hash, domain.SessionHashValid,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *sessionHashesRepo) DeleteExpiredSessionHashesBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM lti_session_hashes WHERE status = ? AND created_at < ?`,
		domain.SessionHashExpired, cutoff.UTC(),
	)
	return err
}
