package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
)

type accountsRepo struct {
	q querier
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO accounts
			(id, subscription_id, email, role, provision_source, ies_user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SubscriptionID, a.Email, a.Role, a.ProvisionSource,
		mapOptionalString(a.IESUserID), time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return r.scanAccount(r.q.QueryRowContext(ctx, `
		SELECT id, subscription_id, email, role, provision_source, ies_user_id, created_at
		FROM accounts WHERE id = ?`, id))
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, subscriptionID, email string) (domain.Account, error) {
	return r.scanAccount(r.q.QueryRowContext(ctx, `
		SELECT id, subscription_id, email, role, provision_source, ies_user_id, created_at
		FROM accounts WHERE subscription_id = ? AND email = ?`, subscriptionID, email))
}

func (r *accountsRepo) scanAccount(row *sql.Row) (domain.Account, error) {
	var a domain.Account
	var iesUserID sql.NullString
	err := row.Scan(&a.ID, &a.SubscriptionID, &a.Email, &a.Role, &a.ProvisionSource,
		&iesUserID, &a.CreatedAt)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	a.IESUserID = mapNullStringPtr(iesUserID)
	return a, nil
}

func (r *accountsRepo) UpdateIESUserID(ctx context.Context, accountID, iesUserID string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts SET ies_user_id = ? WHERE id = ?`, iesUserID, accountID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *accountsRepo) GetIdentityAttributes(ctx context.Context, accountID string) (domain.IdentityAttributes, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT account_id, given_name, family_name, honorific_prefix, honorific_suffix,
		       emails, updated_at
		FROM account_identity WHERE account_id = ?`, accountID)

	var attrs domain.IdentityAttributes
	var emails string
	err := row.Scan(&attrs.AccountID, &attrs.GivenName, &attrs.FamilyName,
		&attrs.HonorificPrefix, &attrs.HonorificSuffix, &emails, &attrs.UpdatedAt)
	if err != nil {
		return domain.IdentityAttributes{}, mapNotFound(err)
	}
	attrs.Emails = splitEmails(emails)
	return attrs, nil
}

func (r *accountsRepo) UpsertIdentityAttributes(ctx context.Context, attrs domain.IdentityAttributes) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO account_identity
			(account_id, given_name, family_name, honorific_prefix, honorific_suffix, emails, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id) DO UPDATE SET
			given_name = excluded.given_name,
			family_name = excluded.family_name,
			honorific_prefix = excluded.honorific_prefix,
			honorific_suffix = excluded.honorific_suffix,
			emails = excluded.emails,
			updated_at = excluded.updated_at`,
		attrs.AccountID, attrs.GivenName, attrs.FamilyName,
		attrs.HonorificPrefix, attrs.HonorificSuffix,
		joinEmails(attrs.Emails), time.Now().UTC(),
	)
	return err
}
