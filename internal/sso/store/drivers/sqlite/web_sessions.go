package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
)

type webSessionsRepo struct {
	q querier
}

func (r *webSessionsRepo) CreateWebSession(ctx context.Context, t domain.WebSessionToken) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO web_session_tokens
			(token_hash, id, account_id, subscription_id, relying_party_id,
			 valid_until, invalidated_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TokenHash, t.ID, t.AccountID, t.SubscriptionID, t.RelyingPartyID,
		t.ValidUntil, mapOptionalTime(t.InvalidatedAt), time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *webSessionsRepo) GetWebSessionByHash(ctx context.Context, hash string) (domain.WebSessionToken, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT token_hash, id, account_id, subscription_id, relying_party_id,
		       valid_until, invalidated_at, created_at
		FROM web_session_tokens WHERE token_hash = ?`, hash)

	var t domain.WebSessionToken
	var invalidatedAt sql.NullTime
	err := row.Scan(&t.TokenHash, &t.ID, &t.AccountID, &t.SubscriptionID, &t.RelyingPartyID,
		&t.ValidUntil, &invalidatedAt, &t.CreatedAt)
	if err != nil {
		return domain.WebSessionToken{}, mapNotFound(err)
	}
	t.InvalidatedAt = mapNullTimePtr(invalidatedAt)
	return t, nil
}

func (r *webSessionsRepo) InvalidateWebSession(ctx context.Context, hash string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE web_session_tokens SET invalidated_at = ?
		WHERE token_hash = ? AND invalidated_at IS NULL`,
		time.Now().UTC(), hash,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *webSessionsRepo) DeleteExpiredWebSessions(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM web_session_tokens WHERE valid_until <= ?`, time.Now().UTC())
	return err
}
