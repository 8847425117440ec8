package domain

import "time"

// AuthenticationState is the OIDC state row created when an authorization
// request is built. The state token doubles as the session id for audit
// logging. Single-use: deleted when a callback consumes it successfully,
// otherwise reaped by housekeeping after it expires.
type AuthenticationState struct {
	State          string // random token, primary key
	RedirectURL    string
	Nonce          string
	RelyingPartyID string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}
