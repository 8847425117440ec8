package sqlite

import (
	"context"
	"database/sql"

	"github.com/mercuryedu/mercury-sso/internal/sso/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // nothing to close; caller will commit/rollback and outer DB stays open

// Ping is a no-op for transactions. The connection is already established
// when the transaction is created, so we just return nil.
func (t *txStore) Ping(ctx context.Context) error {
	return nil
}

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return sql.ErrTxDone
}

func (t *txStore) Credentials() store.Credentials                   { return &credentialsRepo{q: t.tx} }
func (t *txStore) AuthenticationStates() store.AuthenticationStates { return &statesRepo{q: t.tx} }
func (t *txStore) WebSessions() store.WebSessions                   { return &webSessionsRepo{q: t.tx} }
func (t *txStore) AccessTokens() store.AccessTokens                 { return &accessTokensRepo{q: t.tx} }
func (t *txStore) SessionAccounts() store.SessionAccounts           { return &sessionAccountsRepo{q: t.tx} }
func (t *txStore) Accounts() store.Accounts                         { return &accountsRepo{q: t.tx} }
func (t *txStore) FederationLinks() store.FederationLinks           { return &federationLinksRepo{q: t.tx} }
func (t *txStore) ProfileClaims() store.ProfileClaims               { return &profileClaimsRepo{q: t.tx} }
func (t *txStore) AuditEvents() store.AuditEvents                   { return &auditEventsRepo{q: t.tx} }
func (t *txStore) LTIConsumers() store.LTIConsumers                 { return &ltiConsumersRepo{q: t.tx} }
func (t *txStore) LaunchRequests() store.LaunchRequests             { return &launchRequestsRepo{q: t.tx} }
func (t *txStore) AccountLinks() store.AccountLinks                 { return &accountLinksRepo{q: t.tx} }
func (t *txStore) SessionHashes() store.SessionHashes               { return &sessionHashesRepo{q: t.tx} }

func (t *txStore) ApplyMigrations() error { return nil } // no-op; migrations should be applied before starting a tx
