package sqlite

import (
	"context"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
	"github.com/mercuryedu/mercury-sso/pkg/cryptox"
)

type credentialsRepo struct {
	q querier
}

func (r *credentialsRepo) CreateCredential(ctx context.Context, c domain.RelyingPartyCredential) error {
	sealed, err := cryptox.SealSecret([]byte(c.ClientSecret))
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO relying_party_credentials
			(id, subscription_id, issuer_url, client_id, client_secret_enc,
			 request_scope, log_debug, enforce_verified_email, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SubscriptionID, c.IssuerURL, c.ClientID, sealed,
		c.RequestScope, c.LogDebug, c.EnforceVerifiedEmail, time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *credentialsRepo) GetCredentialByID(ctx context.Context, id string) (domain.RelyingPartyCredential, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, subscription_id, issuer_url, client_id, client_secret_enc,
		       request_scope, log_debug, enforce_verified_email, created_at
		FROM relying_party_credentials WHERE id = ?`, id)

	var c domain.RelyingPartyCredential
	var sealed []byte
	err := row.Scan(&c.ID, &c.SubscriptionID, &c.IssuerURL, &c.ClientID, &sealed,
		&c.RequestScope, &c.LogDebug, &c.EnforceVerifiedEmail, &c.CreatedAt)
	if err != nil {
		return domain.RelyingPartyCredential{}, mapNotFound(err)
	}

	secret, err := cryptox.OpenSecret(sealed)
	if err != nil {
		return domain.RelyingPartyCredential{}, err
	}
	c.ClientSecret = string(secret)

	return c, nil
}
