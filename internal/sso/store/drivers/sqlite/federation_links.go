package sqlite

import (
	"context"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
)

type federationLinksRepo struct {
	q querier
}

func (r *federationLinksRepo) CreateFederationLink(ctx context.Context, l domain.FederationLink) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO federation_links
			(subscription_id, client_id, subject, account_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		l.SubscriptionID, l.ClientID, l.Subject, l.AccountID, time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *federationLinksRepo) GetFederationLink(ctx context.Context, subscriptionID, clientID, subject string) (domain.FederationLink, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT subscription_id, client_id, subject, account_id, created_at
		FROM federation_links
		WHERE subscription_id = ? AND client_id = ? AND subject = ?`,
		subscriptionID, clientID, subject)

	var l domain.FederationLink
	err := row.Scan(&l.SubscriptionID, &l.ClientID, &l.Subject, &l.AccountID, &l.CreatedAt)
	if err != nil {
		return domain.FederationLink{}, mapNotFound(err)
	}
	return l, nil
}
