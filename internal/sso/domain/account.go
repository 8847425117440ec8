package domain

import "time"

// Account roles and provisioning sources.
const (
	RoleStudent = "STUDENT"
	RoleTeacher = "TEACHER"

	ProvisionSourceOIDC = "OIDC"
	ProvisionSourceIES  = "IES"
	ProvisionSourceLTI  = "LTI11"
)

type Account struct {
	ID              string
	SubscriptionID  string
	Email           string // normalized: trimmed, lowercased
	Role            string
	ProvisionSource string
	IESUserID       *string // external identity anchor, nullable
	CreatedAt       time.Time
}

// IdentityAttributes are the reconciled identity properties of an account.
// Verified emails accumulate in Emails and are never removed here.
type IdentityAttributes struct {
	AccountID       string
	GivenName       string
	FamilyName      string
	HonorificPrefix string
	HonorificSuffix string
	Emails          []string // verified email set
	UpdatedAt       time.Time
}

// HasEmail reports whether the normalized email is already recorded.
func (a *IdentityAttributes) HasEmail(email string) bool {
	for _, e := range a.Emails {
		if e == email {
			return true
		}
	}
	return false
}

// FederationLink maps an external (subscription, client, subject) triple to
// a local account. At most one account per triple; once established it is
// never silently overwritten.
type FederationLink struct {
	SubscriptionID string
	ClientID       string
	Subject        string
	AccountID      string
	CreatedAt      time.Time
}

// ProfileClaim records a non-standard JWT claim observed during a login.
type ProfileClaim struct {
	ID             string
	AccountID      string
	RelyingPartyID string
	Name           string
	Value          string
	CreatedAt      time.Time
}
