package sqlite

import (
	"context"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
)

type accountLinksRepo struct {
	q querier
}

func (r *accountLinksRepo) CreateAccountLink(ctx context.Context, l domain.LTIAccountLink) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO lti_account_links
			(consumer_configuration_id, lti_user_id, account_id, created_at)
		VALUES (?, ?, ?, ?)`,
		l.ConsumerConfigurationID, l.LTIUserID, l.AccountID, time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *accountLinksRepo) GetAccountLink(ctx context.Context, consumerConfigurationID, ltiUserID string) (domain.LTIAccountLink, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT consumer_configuration_id, lti_user_id, account_id, created_at
		FROM lti_account_links
		WHERE consumer_configuration_id = ? AND lti_user_id = ?`,
		consumerConfigurationID, ltiUserID)

	var l domain.LTIAccountLink
	err := row.Scan(&l.ConsumerConfigurationID, &l.LTIUserID, &l.AccountID, &l.CreatedAt)
	if err != nil {
		return domain.LTIAccountLink{}, mapNotFound(err)
	}
	return l, nil
}
