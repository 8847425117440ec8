package domain

import "time"

// OIDC session audit events, keyed by the state token acting as session id.
const (
	AuditStart                      = "START"
	AuditProcessCallback            = "PROCESS_CALLBACK"
	AuditAccountLocatedByFederation = "ACCOUNT_LOCATED_BY_FEDERATION"
	AuditAccountLocatedByEmail      = "ACCOUNT_LOCATED_BY_EMAIL"
	AuditAccountProvisioned         = "ACCOUNT_PROVISIONED"
	AuditProfileClaim               = "PROFILE_CLAIM"
	AuditRevocation                 = "REVOCATION"
	AuditSuccess                    = "SUCCESS"
	AuditError                      = "ERROR"
)

// AuditEvent is one write-ahead log line of an authentication flow.
// Sensitive rows carry raw protocol material (debug mode only) and are
// reaped early by housekeeping.
type AuditEvent struct {
	ID        string
	SessionID string
	Event     string
	Message   string
	Sensitive bool
	CreatedAt time.Time
}
