package sqlite

import (
	"context"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
	"github.com/mercuryedu/mercury-sso/pkg/cryptox"
)

type accessTokensRepo struct {
	q querier
}

func (r *accessTokensRepo) CreateAccessTokenRecord(ctx context.Context, rec domain.AccessTokenRecord) error {
	sealed, err := cryptox.SealSecret([]byte(rec.AccessToken))
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO access_token_records
			(id, web_session_token_hash, state, relying_party_id,
			 access_token_enc, token_type, expires_in, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.WebSessionTokenHash, rec.State, rec.RelyingPartyID,
		sealed, rec.TokenType, rec.ExpiresIn, time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *accessTokensRepo) GetAccessTokenRecordBySession(ctx context.Context, webSessionTokenHash string) (domain.AccessTokenRecord, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, web_session_token_hash, state, relying_party_id,
		       access_token_enc, token_type, expires_in, created_at
		FROM access_token_records
		WHERE web_session_token_hash = ?
		ORDER BY created_at DESC LIMIT 1`, webSessionTokenHash)

	var rec domain.AccessTokenRecord
	var sealed []byte
	err := row.Scan(&rec.ID, &rec.WebSessionTokenHash, &rec.State, &rec.RelyingPartyID,
		&sealed, &rec.TokenType, &rec.ExpiresIn, &rec.CreatedAt)
	if err != nil {
		return domain.AccessTokenRecord{}, mapNotFound(err)
	}

	token, err := cryptox.OpenSecret(sealed)
	if err != nil {
		return domain.AccessTokenRecord{}, err
	}
	rec.AccessToken = string(token)

	return rec, nil
}
