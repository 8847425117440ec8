package domain

import "time"

// LTIConsumer is the registration of an LTI 1.1 tool consumer for a
// workspace. The shared secret signs launch requests (OAuth1 HMAC).
type LTIConsumer struct {
	ID          string
	WorkspaceID string
	ConsumerKey string
	Secret      string // decrypted form, sealed at rest
	LogDebug    bool
	CreatedAt   time.Time
}

// Launch request lifecycle states.
const (
	LaunchStatusReceived           = "RECEIVED"
	LaunchStatusError              = "ERROR"
	LaunchStatusAccountLocated     = "ACCOUNT_LOCATED"
	LaunchStatusAccountProvisioned = "ACCOUNT_PROVISIONED"
	LaunchStatusSessionHashIssued  = "SESSION_HASH_ISSUED"
	LaunchStatusCompleted          = "COMPLETED"
)

// LaunchRequest is the audit anchor for one LTI tool launch. Entries attach
// headers, parameters, and status transitions to it; written regardless of
// whether the launch ultimately succeeds.
type LaunchRequest struct {
	ID          string
	WorkspaceID string
	Status      string
	Message     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Launch entry kinds.
const (
	LaunchEntryHeader = "header"
	LaunchEntryParam  = "param"
	LaunchEntryStatus = "status"
)

type LaunchEntry struct {
	ID              string
	LaunchRequestID string
	Kind            string
	Name            string
	Value           string
	CreatedAt       time.Time
}

// LTIAccountLink associates a consumer-scoped LTI user id with a local
// account so repeat launches skip provisioning.
type LTIAccountLink struct {
	ConsumerConfigurationID string
	LTIUserID               string
	AccountID               string
	CreatedAt               time.Time
}

// Session hash states. Consumption flips VALID to EXPIRED; rows are kept.
const (
	SessionHashValid   = "VALID"
	SessionHashExpired = "EXPIRED"
)

// LaunchSessionHash gates the single client-side continuation step of an
// LTI launch. Lookup filters EXPIRED rows, so a consumed hash cannot be
// replayed.
type LaunchSessionHash struct {
	Hash                    string
	Status                  string
	ConsumerConfigurationID string
	SubscriptionID          string
	CohortID                string
	ContinueTo              string
	UserID                  string
	LaunchRequestID         string
	CreatedAt               time.Time
}
