package sqlite

import (
	"context"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
)

type statesRepo struct {
	q querier
}

func (r *statesRepo) CreateState(ctx context.Context, s domain.AuthenticationState) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO authentication_states
			(state, redirect_url, nonce, relying_party_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.State, s.RedirectURL, s.Nonce, s.RelyingPartyID, time.Now().UTC(), s.ExpiresAt,
	)
	return mapConstraint(err)
}

func (r *statesRepo) GetState(ctx context.Context, state string) (domain.AuthenticationState, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT state, redirect_url, nonce, relying_party_id, created_at, expires_at
		FROM authentication_states
		WHERE state = ? AND expires_at > ?`, state, time.Now().UTC())

	var s domain.AuthenticationState
	err := row.Scan(&s.State, &s.RedirectURL, &s.Nonce, &s.RelyingPartyID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return domain.AuthenticationState{}, mapNotFound(err)
	}
	return s, nil
}

func (r *statesRepo) DeleteState(ctx context.Context, state string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM authentication_states WHERE state = ?`, state)
	return err
}

func (r *statesRepo) DeleteExpiredStates(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM authentication_states WHERE expires_at <= ?`, time.Now().UTC())
	return err
}
