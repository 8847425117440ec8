package domain

import "time"

// RelyingPartyCredential holds the registration of this platform with an
// external OpenID Connect provider. Immutable once created; looked up by
// id on every flow step.
type RelyingPartyCredential struct {
	ID                   string
	SubscriptionID       string
	IssuerURL            string
	ClientID             string
	ClientSecret         string // decrypted form, sealed at rest
	RequestScope         string // space-delimited, e.g. "openid email profile"
	LogDebug             bool   // emit sensitive audit rows for this credential
	EnforceVerifiedEmail bool
	CreatedAt            time.Time
}
