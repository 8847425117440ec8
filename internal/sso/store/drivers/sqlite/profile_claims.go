package sqlite

import (
	"context"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
)

type profileClaimsRepo struct {
	q querier
}

func (r *profileClaimsRepo) CreateProfileClaim(ctx context.Context, c domain.ProfileClaim) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO profile_claims
			(id, account_id, relying_party_id, name, value, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.AccountID, c.RelyingPartyID, c.Name, c.Value, time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *profileClaimsRepo) ListProfileClaimsByAccount(ctx context.Context, accountID string) ([]domain.ProfileClaim, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, account_id, relying_party_id, name, value, created_at
		FROM profile_claims WHERE account_id = ?
		ORDER BY created_at ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProfileClaim
	for rows.Next() {
		var c domain.ProfileClaim
		if err := rows.Scan(&c.ID, &c.AccountID, &c.RelyingPartyID, &c.Name, &c.Value, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
