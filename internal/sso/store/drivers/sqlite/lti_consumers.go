package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
	"github.com/mercuryedu/mercury-sso/pkg/cryptox"
)

type ltiConsumersRepo struct {
	q querier
}

func (r *ltiConsumersRepo) CreateConsumer(ctx context.Context, c domain.LTIConsumer) error {
	sealed, err := cryptox.SealSecret([]byte(c.Secret))
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO lti_consumers
			(id, workspace_id, consumer_key, secret_enc, log_debug, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.WorkspaceID, c.ConsumerKey, sealed, c.LogDebug, time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *ltiConsumersRepo) GetConsumerByWorkspace(ctx context.Context, workspaceID string) (domain.LTIConsumer, error) {
	return r.scanConsumer(r.q.QueryRowContext(ctx, `
		SELECT id, workspace_id, consumer_key, secret_enc, log_debug, created_at
		FROM lti_consumers WHERE workspace_id = ?`, workspaceID))
}

func (r *ltiConsumersRepo) GetConsumerByID(ctx context.Context, id string) (domain.LTIConsumer, error) {
	return r.scanConsumer(r.q.QueryRowContext(ctx, `
		SELECT id, workspace_id, consumer_key, secret_enc, log_debug, created_at
		FROM lti_consumers WHERE id = ?`, id))
}

func (r *ltiConsumersRepo) scanConsumer(row *sql.Row) (domain.LTIConsumer, error) {
	var c domain.LTIConsumer
	var sealed []byte
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.ConsumerKey, &sealed, &c.LogDebug, &c.CreatedAt)
	if err != nil {
		return domain.LTIConsumer{}, mapNotFound(err)
	}

	secret, err := cryptox.OpenSecret(sealed)
	if err != nil {
		return domain.LTIConsumer{}, err
	}
	c.Secret = string(secret)

	return c, nil
}
