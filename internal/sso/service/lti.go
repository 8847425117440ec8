package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
	"github.com/mercuryedu/mercury-sso/internal/sso/ies"
	"github.com/mercuryedu/mercury-sso/internal/sso/ltisig"
	"github.com/mercuryedu/mercury-sso/internal/sso/store"
	"github.com/mercuryedu/mercury-sso/pkg/cryptox"
	"github.com/mercuryedu/mercury-sso/pkg/idx"
	"github.com/mercuryedu/mercury-sso/pkg/slogx"
)

var (
	ErrConsumerNotFound      = errors.New("lti consumer not configured for workspace")
	ErrMissingLaunchParam    = errors.New("required launch parameter missing")
	ErrPIUserIDNotFound      = errors.New("presented session token is not valid on the identity bridge")
	ErrExternalUserIDMissing = errors.New("account has no external user id anchor")
	ErrSessionHashNotFound   = errors.New("launch session hash not found or already consumed")
	ErrSessionHashMismatch   = errors.New("launch session hash belongs to a different launch")
)

// requiredLaunchParams must be present before any launch state is recorded.
var requiredLaunchParams = []string{
	"oauth_consumer_key",
	"lti_version",
	"lti_message_type",
	"resource_link_id",
	"user_id",
}

// Enroller places a launched account into the cohort named by the launch.
// The platform's enrolment subsystem implements this port.
type Enroller interface {
	Enroll(ctx context.Context, accountID, cohortID, externalUserID string) error
}

// NopEnroller satisfies Enroller without side effects, for deployments where
// enrolment is handled elsewhere.
type NopEnroller struct{}

func (NopEnroller) Enroll(ctx context.Context, accountID, cohortID, externalUserID string) error {
	return nil
}

// LaunchInput is one inbound LTI 1.1 launch as the HTTP layer saw it.
type LaunchInput struct {
	WorkspaceID    string
	SubscriptionID string
	Method         string
	URL            string
	Headers        map[string]string
	Params         url.Values

	// CookieToken is the identity-bridge session cookie presented alongside
	// the launch, if any. BearerToken is a stale platform session to revoke.
	CookieToken string
	BearerToken string

	ContinueTo string
	CohortID   string
}

// Continuation is returned when the launch cannot complete server-side and
// the browser must come back through the provisioning endpoint.
type Continuation struct {
	Hash            string
	LaunchRequestID string
}

// LaunchResult carries either a completed session or a continuation, never
// both.
type LaunchResult struct {
	Session      *domain.WebSession
	Continuation *Continuation
}

// LTI11Service authenticates LTI 1.1 tool launches. Every launch leaves an
// audit anchor with header entries; consumers in debug mode additionally get
// the launch parameters recorded.
type LTI11Service struct {
	Store    store.Store
	Sessions *WebSessionService
	Bridge   *ies.Client
	Enroller Enroller
}

// Authenticate processes a signed launch. Parameter validation happens before
// any state is written; everything after the launch request row is created is
// audited against it.
func (s *LTI11Service) Authenticate(ctx context.Context, in LaunchInput) (*LaunchResult, error) {
	_ = s.Sessions.Invalidate(ctx, in.BearerToken)

	for _, p := range requiredLaunchParams {
		if in.Params.Get(p) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingLaunchParam, p)
		}
	}

	launch := domain.LaunchRequest{
		ID:          idx.New().String(),
		WorkspaceID: in.WorkspaceID,
		Status:      domain.LaunchStatusReceived,
		Message:     "launch received",
	}
	if err := s.Store.LaunchRequests().CreateLaunchRequest(ctx, launch); err != nil {
		return nil, err
	}
	s.recordEntries(ctx, launch.ID, domain.LaunchEntryHeader, in.Headers)

	consumer, err := s.Store.LTIConsumers().GetConsumerByWorkspace(ctx, in.WorkspaceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, s.failLaunch(ctx, launch.ID, ErrConsumerNotFound)
		}
		return nil, s.failLaunch(ctx, launch.ID, err)
	}

	if consumer.LogDebug {
		params := make(map[string]string, len(in.Params))
		for name := range in.Params {
			params[name] = in.Params.Get(name)
		}
		s.recordEntries(ctx, launch.ID, domain.LaunchEntryParam, params)
	}

	if key := in.Params.Get("oauth_consumer_key"); key != consumer.ConsumerKey {
		return nil, s.failLaunch(ctx, launch.ID, &ltisig.SignatureError{Problem: "consumer_key_unknown: " + key})
	}

	if err := ltisig.Validate(in.Method, in.URL, in.Params, consumer.Secret); err != nil {
		return nil, s.failLaunch(ctx, launch.ID, err)
	}

	ltiUserID := in.Params.Get("user_id")

	link, err := s.Store.AccountLinks().GetAccountLink(ctx, consumer.ID, ltiUserID)
	switch {
	case err == nil:
		if err := s.Store.LaunchRequests().UpdateLaunchStatus(ctx, launch.ID,
			domain.LaunchStatusAccountLocated, "account located by lti user link"); err != nil {
			return nil, err
		}
		return s.completeLaunch(ctx, launch.ID, consumer, link.AccountID)

	case errors.Is(err, store.ErrNotFound):
		if in.CookieToken != "" {
			accountID, err := s.provisionFromBridge(ctx, launch.ID, consumer, in, ltiUserID)
			if err != nil {
				return nil, err
			}
			return s.completeLaunch(ctx, launch.ID, consumer, accountID)
		}
		return s.issueContinuation(ctx, launch.ID, consumer, in, ltiUserID)

	default:
		return nil, s.failLaunch(ctx, launch.ID, err)
	}
}

// issueContinuation mints a single-use session hash and hands the launch
// back to the browser for the provisioning round trip.
func (s *LTI11Service) issueContinuation(ctx context.Context, launchID string, consumer domain.LTIConsumer, in LaunchInput, ltiUserID string) (*LaunchResult, error) {
	hash := cryptox.FingerprintToken(ltiUserID + ":" + launchID)

	if err := s.Store.SessionHashes().CreateSessionHash(ctx, domain.LaunchSessionHash{
		Hash:                    hash,
		Status:                  domain.SessionHashValid,
		ConsumerConfigurationID: consumer.ID,
		SubscriptionID:          in.SubscriptionID,
		CohortID:                in.CohortID,
		ContinueTo:              in.ContinueTo,
		UserID:                  ltiUserID,
		LaunchRequestID:         launchID,
	}); err != nil {
		return nil, s.failLaunch(ctx, launchID, err)
	}

	if err := s.Store.LaunchRequests().UpdateLaunchStatus(ctx, launchID,
		domain.LaunchStatusSessionHashIssued, "continuation hash issued"); err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("lti launch needs browser continuation",
		"launch_request_id", launchID, "workspace_id", consumer.WorkspaceID)

	return &LaunchResult{Continuation: &Continuation{Hash: hash, LaunchRequestID: launchID}}, nil
}

// provisionFromBridge resolves the launch identity through the bridge using
// the presented cookie token, creating the local account and link if needed.
func (s *LTI11Service) provisionFromBridge(ctx context.Context, launchID string, consumer domain.LTIConsumer, in LaunchInput, ltiUserID string) (string, error) {
	info, err := s.Bridge.ValidateToken(ctx, in.CookieToken)
	if err != nil {
		return "", s.failLaunch(ctx, launchID, err)
	}
	if !info.Valid || info.PIUserID == "" {
		return "", s.failLaunch(ctx, launchID, ErrPIUserIDNotFound)
	}

	accountID, err := s.resolveBridgeAccount(ctx, launchID, consumer, in.SubscriptionID, info.PIUserID, ltiUserID, in.CohortID)
	if err != nil {
		return "", err
	}
	return accountID, nil
}

// resolveBridgeAccount provisions through the bridge, locates or creates the
// local account, anchors its external id, writes the lti link and enrols the
// account into the launch cohort.
func (s *LTI11Service) resolveBridgeAccount(ctx context.Context, launchID string, consumer domain.LTIConsumer, subscriptionID, piUserID, ltiUserID, cohortID string) (string, error) {
	result, err := s.Bridge.ProvisionAccount(ctx, ies.ProvisionRequest{
		PIUserID:       piUserID,
		SubscriptionID: subscriptionID,
	})
	if err != nil {
		return "", s.failLaunch(ctx, launchID, err)
	}

	email := strings.ToLower(strings.TrimSpace(result.Email))

	account, err := s.Store.Accounts().GetAccountByEmail(ctx, subscriptionID, email)
	switch {
	case err == nil:
		if err := s.Store.LaunchRequests().UpdateLaunchStatus(ctx, launchID,
			domain.LaunchStatusAccountLocated, "account located by bridge email"); err != nil {
			return "", err
		}

	case errors.Is(err, store.ErrNotFound):
		account = domain.Account{
			ID:              idx.New().String(),
			SubscriptionID:  subscriptionID,
			Email:           email,
			Role:            domain.RoleStudent,
			ProvisionSource: domain.ProvisionSourceLTI,
		}
		if err := s.Store.Accounts().CreateAccount(ctx, account); err != nil {
			return "", s.failLaunch(ctx, launchID, err)
		}
		if err := s.Store.LaunchRequests().UpdateLaunchStatus(ctx, launchID,
			domain.LaunchStatusAccountProvisioned, "account provisioned from bridge identity"); err != nil {
			return "", err
		}

	default:
		return "", s.failLaunch(ctx, launchID, err)
	}

	if err := s.Store.Accounts().UpdateIESUserID(ctx, account.ID, result.IESUserID); err != nil {
		return "", s.failLaunch(ctx, launchID, err)
	}

	err = s.Store.AccountLinks().CreateAccountLink(ctx, domain.LTIAccountLink{
		ConsumerConfigurationID: consumer.ID,
		LTIUserID:               ltiUserID,
		AccountID:               account.ID,
	})
	if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return "", s.failLaunch(ctx, launchID, err)
	}

	if cohortID != "" {
		if err := s.Enroller.Enroll(ctx, account.ID, cohortID, result.IESUserID); err != nil {
			return "", s.failLaunch(ctx, launchID, fmt.Errorf("enrolment failed: %w", err))
		}
	}

	return account.ID, nil
}

// completeLaunch mints the platform session for a resolved account. The
// account must already carry its external user id anchor.
func (s *LTI11Service) completeLaunch(ctx context.Context, launchID string, consumer domain.LTIConsumer, accountID string) (*LaunchResult, error) {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, s.failLaunch(ctx, launchID, err)
	}
	if account.IESUserID == nil || *account.IESUserID == "" {
		return nil, s.failLaunch(ctx, launchID, ErrExternalUserIDMissing)
	}

	token, err := s.Sessions.Create(ctx, account.ID, account.SubscriptionID, consumer.ID)
	if err != nil {
		return nil, s.failLaunch(ctx, launchID, fmt.Errorf("minting web session: %w", err))
	}

	if err := s.Store.LaunchRequests().UpdateLaunchStatus(ctx, launchID,
		domain.LaunchStatusCompleted, "session issued"); err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("lti launch completed",
		"launch_request_id", launchID, "account_id", account.ID)

	return &LaunchResult{Session: &domain.WebSession{
		Provider:       domain.ProviderLTI,
		AccountID:      account.ID,
		Token:          token,
		ExternalUserID: *account.IESUserID,
	}}, nil
}

// ProvisionAccount finishes a launch that was handed back to the browser.
// The hash is consumed up front, before any bridge call, so a replay fails
// even when the rest of this flow errors out.
func (s *LTI11Service) ProvisionAccount(ctx context.Context, hash, launchRequestID, cookieToken string) (*LaunchResult, error) {
	row, err := s.Store.SessionHashes().GetValidSessionHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionHashNotFound
		}
		return nil, err
	}
	if row.LaunchRequestID != launchRequestID {
		return nil, ErrSessionHashMismatch
	}

	if err := s.Store.SessionHashes().ExpireSessionHash(ctx, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionHashNotFound
		}
		return nil, err
	}

	consumer, err := s.Store.LTIConsumers().GetConsumerByID(ctx, row.ConsumerConfigurationID)
	if err != nil {
		return nil, s.failLaunch(ctx, launchRequestID, err)
	}

	info, err := s.Bridge.ValidateToken(ctx, cookieToken)
	if err != nil {
		return nil, s.failLaunch(ctx, launchRequestID, err)
	}
	if !info.Valid || info.PIUserID == "" {
		return nil, s.failLaunch(ctx, launchRequestID, ErrPIUserIDNotFound)
	}

	accountID, err := s.resolveBridgeAccount(ctx, launchRequestID, consumer,
		row.SubscriptionID, info.PIUserID, row.UserID, row.CohortID)
	if err != nil {
		return nil, err
	}

	result, err := s.completeLaunch(ctx, launchRequestID, consumer, accountID)
	if err != nil {
		return nil, err
	}
	if result.Session != nil && row.ContinueTo != "" {
		slogx.FromContext(ctx).Info("lti continuation target",
			"launch_request_id", launchRequestID, "continue_to", row.ContinueTo)
	}
	return result, nil
}

// recordEntries attaches a batch of name/value lines to a launch. Failures
// are logged and swallowed; the audit trail never blocks a launch.
func (s *LTI11Service) recordEntries(ctx context.Context, launchID, kind string, values map[string]string) {
	for name, value := range values {
		if err := s.Store.LaunchRequests().CreateLaunchEntry(ctx, domain.LaunchEntry{
			ID:              idx.New().String(),
			LaunchRequestID: launchID,
			Kind:            kind,
			Name:            name,
			Value:           value,
		}); err != nil {
			slogx.FromContext(ctx).Warn("failed to record launch entry",
				"launch_request_id", launchID, "kind", kind, "name", name, "error", err)
		}
	}
}

// failLaunch flips the launch to ERROR with the failure message before
// propagating the error.
func (s *LTI11Service) failLaunch(ctx context.Context, launchID string, err error) error {
	if uerr := s.Store.LaunchRequests().UpdateLaunchStatus(ctx, launchID,
		domain.LaunchStatusError, err.Error()); uerr != nil {
		slogx.FromContext(ctx).Warn("failed to record launch error",
			"launch_request_id", launchID, "error", uerr)
	}
	return err
}
