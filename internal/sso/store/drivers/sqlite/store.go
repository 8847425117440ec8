package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/store"
	_ "modernc.org/sqlite"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the repos can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		dsn: dsn,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	// Ensure rollback is called if we panic or return early with error
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err // rollback happens in defer
	}

	return tx.Commit()
}

func (s *Store) Credentials() store.Credentials                   { return &credentialsRepo{q: s.db} }
func (s *Store) AuthenticationStates() store.AuthenticationStates { return &statesRepo{q: s.db} }
func (s *Store) WebSessions() store.WebSessions                   { return &webSessionsRepo{q: s.db} }
func (s *Store) AccessTokens() store.AccessTokens                 { return &accessTokensRepo{q: s.db} }
func (s *Store) SessionAccounts() store.SessionAccounts           { return &sessionAccountsRepo{q: s.db} }
func (s *Store) Accounts() store.Accounts                         { return &accountsRepo{q: s.db} }
func (s *Store) FederationLinks() store.FederationLinks           { return &federationLinksRepo{q: s.db} }
func (s *Store) ProfileClaims() store.ProfileClaims               { return &profileClaimsRepo{q: s.db} }
func (s *Store) AuditEvents() store.AuditEvents                   { return &auditEventsRepo{q: s.db} }
func (s *Store) LTIConsumers() store.LTIConsumers                 { return &ltiConsumersRepo{q: s.db} }
func (s *Store) LaunchRequests() store.LaunchRequests             { return &launchRequestsRepo{q: s.db} }
func (s *Store) AccountLinks() store.AccountLinks                 { return &accountLinksRepo{q: s.db} }
func (s *Store) SessionHashes() store.SessionHashes               { return &sessionHashesRepo{q: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapConstraint translates sqlite unique/primary-key violations into the
// store sentinel so callers need not know the driver's error text.
func mapConstraint(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed: UNIQUE") {
		return store.ErrAlreadyExists
	}
	return err
}

func mapNullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		val := ns.String
		return &val
	}
	return nil
}

func mapOptionalString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time
		return &val
	}
	return nil
}

func mapOptionalTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func joinEmails(emails []string) string {
	return strings.Join(emails, " ")
}

func splitEmails(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Fields(s)
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}
