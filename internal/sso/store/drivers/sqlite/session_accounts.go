package sqlite

import (
	"context"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
)

type sessionAccountsRepo struct {
	q querier
}

func (r *sessionAccountsRepo) CreateSessionAccountRecord(ctx context.Context, rec domain.SessionAccountRecord) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO session_accounts (id, account_id, session_id, created_at)
		VALUES (?, ?, ?, ?)`,
		rec.ID, rec.AccountID, rec.SessionID, time.Now().UTC(),
	)
	return mapConstraint(err)
}
