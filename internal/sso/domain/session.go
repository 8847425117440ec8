package domain

import "time"

// Provider identifies which authentication pipeline issued a web session.
type Provider string

const (
	ProviderOIDC    Provider = "OIDC"
	ProviderIES     Provider = "IES"
	ProviderMyCloud Provider = "MYCLOUD"
	ProviderLTI     Provider = "LTI11"
)

// WebSessionToken is a minted platform session. The opaque token is returned
// to the caller once; only its fingerprint is stored.
type WebSessionToken struct {
	ID             string
	Token          string // opaque token, empty when loaded from the store
	TokenHash      string
	AccountID      string
	SubscriptionID string
	RelyingPartyID string
	ValidUntil     time.Time
	InvalidatedAt  *time.Time
	CreatedAt      time.Time
}

// WebSession is the provider-tagged result of a completed authentication
// flow. LTI launches additionally carry the external user id anchoring the
// downstream session.
type WebSession struct {
	Provider       Provider
	AccountID      string
	Token          *WebSessionToken
	ExternalUserID string // IES user id for LTI sessions
}

// AccessTokenRecord links a minted web session to the provider access token
// obtained during the callback, so logout can revoke it later. Append-only.
type AccessTokenRecord struct {
	ID                  string
	WebSessionTokenHash string
	State               string
	RelyingPartyID      string
	AccessToken         string // decrypted form, sealed at rest
	TokenType           string
	ExpiresIn           int64 // seconds, as reported by the provider
	CreatedAt           time.Time
}

// SessionAccountRecord is the append-only audit row linking a completed
// OIDC session to the account it resolved to.
type SessionAccountRecord struct {
	ID        string
	AccountID string
	SessionID string
	CreatedAt time.Time
}
