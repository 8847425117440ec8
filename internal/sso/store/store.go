package store

import (
	"context"
	"errors"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and a Tx scope for multi-step operations that must be atomic.
type Store interface {
	Credentials() Credentials
	AuthenticationStates() AuthenticationStates
	WebSessions() WebSessions
	AccessTokens() AccessTokens
	SessionAccounts() SessionAccounts
	Accounts() Accounts
	FederationLinks() FederationLinks
	ProfileClaims() ProfileClaims
	AuditEvents() AuditEvents
	LTIConsumers() LTIConsumers
	LaunchRequests() LaunchRequests
	AccountLinks() AccountLinks
	SessionHashes() SessionHashes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Credentials interface {
	// GetCredentialByID returns a relying-party credential by id.
	GetCredentialByID(ctx context.Context, id string) (domain.RelyingPartyCredential, error)

	// CreateCredential inserts a new credential. The secret is stored sealed.
	CreateCredential(ctx context.Context, c domain.RelyingPartyCredential) error
}

type AuthenticationStates interface {
	// CreateState persists a fresh authentication state keyed by the state token.
	CreateState(ctx context.Context, s domain.AuthenticationState) error

	// GetState returns a non-expired state row.
	GetState(ctx context.Context, state string) (domain.AuthenticationState, error)

	// DeleteState removes a consumed state so it cannot be replayed.
	DeleteState(ctx context.Context, state string) error

	// DeleteExpiredStates is housekeeping.
	DeleteExpiredStates(ctx context.Context) error
}

type WebSessions interface {
	// CreateWebSession stores a minted session token record (by fingerprint).
	CreateWebSession(ctx context.Context, t domain.WebSessionToken) error

	// GetWebSessionByHash returns a session by its token fingerprint.
	GetWebSessionByHash(ctx context.Context, hash string) (domain.WebSessionToken, error)

	// InvalidateWebSession sets invalidated_at for the token fingerprint.
	InvalidateWebSession(ctx context.Context, hash string) error

	// DeleteExpiredWebSessions is housekeeping.
	DeleteExpiredWebSessions(ctx context.Context) error
}

type AccessTokens interface {
	// CreateAccessTokenRecord stores the provider token obtained in a callback.
	CreateAccessTokenRecord(ctx context.Context, r domain.AccessTokenRecord) error

	// GetAccessTokenRecordBySession returns the record for a web session fingerprint.
	GetAccessTokenRecordBySession(ctx context.Context, webSessionTokenHash string) (domain.AccessTokenRecord, error)
}

type SessionAccounts interface {
	// CreateSessionAccountRecord writes the session-to-account audit row.
	CreateSessionAccountRecord(ctx context.Context, r domain.SessionAccountRecord) error
}

type Accounts interface {
	// GetAccountByID returns an account by id.
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByEmail returns an account by normalized email within a subscription.
	GetAccountByEmail(ctx context.Context, subscriptionID, email string) (domain.Account, error)

	// CreateAccount inserts a provisioned account (id is ULID).
	CreateAccount(ctx context.Context, a domain.Account) error

	// UpdateIESUserID anchors an account to its external identity.
	UpdateIESUserID(ctx context.Context, accountID, iesUserID string) error

	// GetIdentityAttributes returns the reconciled identity row, if any.
	GetIdentityAttributes(ctx context.Context, accountID string) (domain.IdentityAttributes, error)

	// UpsertIdentityAttributes writes the full identity row for an account.
	UpsertIdentityAttributes(ctx context.Context, attrs domain.IdentityAttributes) error
}

type FederationLinks interface {
	// GetFederationLink returns the account mapping for a federation triple.
	GetFederationLink(ctx context.Context, subscriptionID, clientID, subject string) (domain.FederationLink, error)

	// CreateFederationLink persists a triple-to-account mapping. Existing links
	// are never overwritten; a duplicate returns ErrAlreadyExists.
	CreateFederationLink(ctx context.Context, l domain.FederationLink) error
}

type ProfileClaims interface {
	// CreateProfileClaim records a non-standard claim observed during login.
	CreateProfileClaim(ctx context.Context, c domain.ProfileClaim) error

	// ListProfileClaimsByAccount returns claims recorded for an account.
	ListProfileClaimsByAccount(ctx context.Context, accountID string) ([]domain.ProfileClaim, error)
}

type AuditEvents interface {
	// CreateAuditEvent appends one log line for a session or launch.
	CreateAuditEvent(ctx context.Context, e domain.AuditEvent) error

	// ListAuditEventsBySession returns the ordered trail for a session id.
	ListAuditEventsBySession(ctx context.Context, sessionID string) ([]domain.AuditEvent, error)

	// DeleteSensitiveAuditEventsBefore reaps debug rows older than the cutoff.
	DeleteSensitiveAuditEventsBefore(ctx context.Context, cutoff time.Time) error
}

type LTIConsumers interface {
	// GetConsumerByWorkspace returns the consumer configured for a workspace.
	GetConsumerByWorkspace(ctx context.Context, workspaceID string) (domain.LTIConsumer, error)

	// GetConsumerByID returns a consumer configuration by id.
	GetConsumerByID(ctx context.Context, id string) (domain.LTIConsumer, error)

	// CreateConsumer inserts a consumer. The shared secret is stored sealed.
	CreateConsumer(ctx context.Context, c domain.LTIConsumer) error
}

type LaunchRequests interface {
	// CreateLaunchRequest opens the audit anchor for one launch.
	CreateLaunchRequest(ctx context.Context, r domain.LaunchRequest) error

	// GetLaunchRequest returns a launch request by id.
	GetLaunchRequest(ctx context.Context, id string) (domain.LaunchRequest, error)

	// UpdateLaunchStatus transitions the launch state and records the message.
	UpdateLaunchStatus(ctx context.Context, id, status, message string) error

	// CreateLaunchEntry attaches a header/param/status line to a launch.
	CreateLaunchEntry(ctx context.Context, e domain.LaunchEntry) error

	// ListLaunchEntries returns the entries recorded for a launch.
	ListLaunchEntries(ctx context.Context, launchRequestID string) ([]domain.LaunchEntry, error)
}

type AccountLinks interface {
	// GetAccountLink returns the account for a (consumer, lti user) pair.
	GetAccountLink(ctx context.Context, consumerConfigurationID, ltiUserID string) (domain.LTIAccountLink, error)

	// CreateAccountLink persists the pair-to-account association.
	CreateAccountLink(ctx context.Context, l domain.LTIAccountLink) error
}

type SessionHashes interface {
	// CreateSessionHash stores a VALID single-use continuation hash.
	CreateSessionHash(ctx context.Context, h domain.LaunchSessionHash) error

	// GetValidSessionHash returns a hash row, filtering out EXPIRED ones.
	GetValidSessionHash(ctx context.Context, hash string) (domain.LaunchSessionHash, error)

	// ExpireSessionHash flips a hash to EXPIRED. Rows are never deleted here.
	ExpireSessionHash(ctx context.Context, hash string) error

	// DeleteExpiredSessionHashesBefore reaps old EXPIRED rows (housekeeping).
	DeleteExpiredSessionHashesBefore(ctx context.Context, cutoff time.Time) error
}
