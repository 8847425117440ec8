package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
	"github.com/mercuryedu/mercury-sso/internal/sso/ies"
	"github.com/mercuryedu/mercury-sso/internal/sso/ltisig"
	"github.com/mercuryedu/mercury-sso/internal/sso/service"
	"github.com/mercuryedu/mercury-sso/internal/sso/store"
	"github.com/mercuryedu/mercury-sso/pkg/idx"
)

const launchURL = "https://sso.mercury.test/v1/sso/lti11/launch"

// fakeBridge is an in-process identity bridge answering token validation and
// account provisioning.
type fakeBridge struct {
	srv *httptest.Server

	tokenValid bool
	piUserID   string
	email      string
}

func newFakeBridge(t *testing.T) *fakeBridge {
	t.Helper()

	f := &fakeBridge{tokenValid: true, piUserID: "pi-user-1", email: "student@example.edu"}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tokens/validate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ies.TokenInfo{Valid: f.tokenValid, PIUserID: f.piUserID})
	})
	mux.HandleFunc("POST /v1/users/provision", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ies.ProvisionResult{
			IESUserID:  "ies-" + f.piUserID,
			Email:      f.email,
			GivenName:  "Sam",
			FamilyName: "Student",
		})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// recordingEnroller captures enrolment calls.
type recordingEnroller struct {
	calls []string
}

func (r *recordingEnroller) Enroll(ctx context.Context, accountID, cohortID, externalUserID string) error {
	r.calls = append(r.calls, fmt.Sprintf("%s/%s/%s", accountID, cohortID, externalUserID))
	return nil
}

func newLTIService(t *testing.T, st store.Store, bridge *fakeBridge, enroller service.Enroller) *service.LTI11Service {
	t.Helper()

	if enroller == nil {
		enroller = service.NopEnroller{}
	}
	return &service.LTI11Service{
		Store:    st,
		Sessions: &service.WebSessionService{Store: st},
		Bridge:   ies.NewClient(bridge.srv.URL, nil),
		Enroller: enroller,
	}
}

func registerConsumer(t *testing.T, st store.Store, workspaceID string, debug bool) domain.LTIConsumer {
	t.Helper()

	c := domain.LTIConsumer{
		ID:          idx.New().String(),
		WorkspaceID: workspaceID,
		ConsumerKey: "campus-lms",
		Secret:      "shared-secret",
		LogDebug:    debug,
	}
	require.NoError(t, st.LTIConsumers().CreateConsumer(context.Background(), c))
	return c
}

// signedLaunch builds a minimal valid launch parameter set and signs it with
// the consumer secret.
func signedLaunch(t *testing.T, secret, ltiUserID string) url.Values {
	t.Helper()

	params := url.Values{}
	params.Set("oauth_consumer_key", "campus-lms")
	params.Set("oauth_signature_method", ltisig.MethodHMACSHA1)
	params.Set("oauth_timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	params.Set("oauth_nonce", idx.New().String())
	params.Set("oauth_version", "1.0")
	params.Set("lti_version", "LTI-1p0")
	params.Set("lti_message_type", "basic-lti-launch-request")
	params.Set("resource_link_id", "rl-1")
	params.Set("user_id", ltiUserID)

	sig, err := ltisig.Sign(http.MethodPost, launchURL, params, secret, ltisig.MethodHMACSHA1)
	require.NoError(t, err)
	params.Set("oauth_signature", sig)
	return params
}

func launchInput(params url.Values) service.LaunchInput {
	return service.LaunchInput{
		WorkspaceID:    "ws-1",
		SubscriptionID: "sub-1",
		Method:         http.MethodPost,
		URL:            launchURL,
		Headers:        map[string]string{"User-Agent": "campus-lms/9.1", "Content-Type": "application/x-www-form-urlencoded"},
		Params:         params,
	}
}

func TestLaunchMissingParam(t *testing.T) {
	st := newTestStore(t)
	bridge := newFakeBridge(t)
	svc := newLTIService(t, st, bridge, nil)

	params := signedLaunch(t, "shared-secret", "lti-user-1")
	params.Del("resource_link_id")

	_, err := svc.Authenticate(context.Background(), launchInput(params))
	require.ErrorIs(t, err, service.ErrMissingLaunchParam)
}

func TestLaunchUnknownWorkspace(t *testing.T) {
	st := newTestStore(t)
	bridge := newFakeBridge(t)
	svc := newLTIService(t, st, bridge, nil)

	_, err := svc.Authenticate(context.Background(), launchInput(signedLaunch(t, "shared-secret", "lti-user-1")))
	require.ErrorIs(t, err, service.ErrConsumerNotFound)
}

func TestLaunchInvalidSignature(t *testing.T) {
	st := newTestStore(t)
	bridge := newFakeBridge(t)
	svc := newLTIService(t, st, bridge, nil)
	registerConsumer(t, st, "ws-1", false)

	params := signedLaunch(t, "wrong-secret", "lti-user-1")

	_, err := svc.Authenticate(context.Background(), launchInput(params))
	var sigErr *ltisig.SignatureError
	require.ErrorAs(t, err, &sigErr)
	require.Equal(t, "signature_invalid", sigErr.Problem)
}

func TestLaunchConsumerKeyMismatch(t *testing.T) {
	st := newTestStore(t)
	bridge := newFakeBridge(t)
	svc := newLTIService(t, st, bridge, nil)
	registerConsumer(t, st, "ws-1", false)

	// Correct workspace secret, wrong consumer key. The re-signed launch is
	// cryptographically valid, so only the key comparison can reject it.
	params := signedLaunch(t, "shared-secret", "lti-user-1")
	params.Set("oauth_consumer_key", "rogue-key")
	sig, err := ltisig.Sign(http.MethodPost, launchURL, params, "shared-secret", ltisig.MethodHMACSHA1)
	require.NoError(t, err)
	params.Set("oauth_signature", sig)

	result, err := svc.Authenticate(context.Background(), launchInput(params))
	require.Nil(t, result)
	var sigErr *ltisig.SignatureError
	require.ErrorAs(t, err, &sigErr)
	require.Equal(t, "consumer_key_unknown: rogue-key", sigErr.Problem)
}

func TestLaunchWithLinkedAccount(t *testing.T) {
	st := newTestStore(t)
	bridge := newFakeBridge(t)
	svc := newLTIService(t, st, bridge, nil)
	consumer := registerConsumer(t, st, "ws-1", false)
	ctx := context.Background()

	account := domain.Account{
		ID:              idx.New().String(),
		SubscriptionID:  "sub-1",
		Email:           "student@example.edu",
		Role:            domain.RoleStudent,
		ProvisionSource: domain.ProvisionSourceLTI,
	}
	require.NoError(t, st.Accounts().CreateAccount(ctx, account))
	require.NoError(t, st.Accounts().UpdateIESUserID(ctx, account.ID, "ies-pi-user-1"))
	require.NoError(t, st.AccountLinks().CreateAccountLink(ctx, domain.LTIAccountLink{
		ConsumerConfigurationID: consumer.ID,
		LTIUserID:               "lti-user-1",
		AccountID:               account.ID,
	}))

	result, err := svc.Authenticate(ctx, launchInput(signedLaunch(t, "shared-secret", "lti-user-1")))
	require.NoError(t, err)
	require.Nil(t, result.Continuation)
	require.NotNil(t, result.Session)
	require.Equal(t, domain.ProviderLTI, result.Session.Provider)
	require.Equal(t, account.ID, result.Session.AccountID)
	require.Equal(t, "ies-pi-user-1", result.Session.ExternalUserID)
	require.NotEmpty(t, result.Session.Token.Token)
}

func TestLaunchLinkedAccountWithoutAnchor(t *testing.T) {
	st := newTestStore(t)
	bridge := newFakeBridge(t)
	svc := newLTIService(t, st, bridge, nil)
	consumer := registerConsumer(t, st, "ws-1", false)
	ctx := context.Background()

	account := domain.Account{
		ID: idx.New().String(), SubscriptionID: "sub-1",
		Email: "student@example.edu", Role: domain.RoleStudent,
		ProvisionSource: domain.ProvisionSourceLTI,
	}
	require.NoError(t, st.Accounts().CreateAccount(ctx, account))
	require.NoError(t, st.AccountLinks().CreateAccountLink(ctx, domain.LTIAccountLink{
		ConsumerConfigurationID: consumer.ID,
		LTIUserID:               "lti-user-1",
		AccountID:               account.ID,
	}))

	_, err := svc.Authenticate(ctx, launchInput(signedLaunch(t, "shared-secret", "lti-user-1")))
	require.ErrorIs(t, err, service.ErrExternalUserIDMissing)
}

func TestLaunchWithCookieTokenProvisionsInline(t *testing.T) {
	st := newTestStore(t)
	bridge := newFakeBridge(t)
	enroller := &recordingEnroller{}
	svc := newLTIService(t, st, bridge, enroller)
	consumer := registerConsumer(t, st, "ws-1", false)
	ctx := context.Background()

	in := launchInput(signedLaunch(t, "shared-secret", "lti-user-1"))
	in.CookieToken = "bridge-cookie"
	in.CohortID = "cohort-7"

	result, err := svc.Authenticate(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, result.Session)

	account, err := st.Accounts().GetAccountByEmail(ctx, "sub-1", "student@example.edu")
	require.NoError(t, err)
	require.NotNil(t, account.IESUserID)
	require.Equal(t, "ies-pi-user-1", *account.IESUserID)

	link, err := st.AccountLinks().GetAccountLink(ctx, consumer.ID, "lti-user-1")
	require.NoError(t, err)
	require.Equal(t, account.ID, link.AccountID)

	require.Equal(t, []string{account.ID + "/cohort-7/ies-pi-user-1"}, enroller.calls)
}

func TestLaunchWithInvalidCookieToken(t *testing.T) {
	st := newTestStore(t)
	bridge := newFakeBridge(t)
	bridge.tokenValid = false
	svc := newLTIService(t, st, bridge, nil)
	registerConsumer(t, st, "ws-1", false)

	in := launchInput(signedLaunch(t, "shared-secret", "lti-user-1"))
	in.CookieToken = "stale-cookie"

	_, err := svc.Authenticate(context.Background(), in)
	require.ErrorIs(t, err, service.ErrPIUserIDNotFound)
}

func TestLaunchContinuationAndProvision(t *testing.T) {
	st := newTestStore(t)
	bridge := newFakeBridge(t)
	svc := newLTIService(t, st, bridge, nil)
	registerConsumer(t, st, "ws-1", true)
	ctx := context.Background()

	in := launchInput(signedLaunch(t, "shared-secret", "lti-user-1"))
	in.ContinueTo = "/course/42"
	in.CohortID = "cohort-7"

	result, err := svc.Authenticate(ctx, in)
	require.NoError(t, err)
	require.Nil(t, result.Session)
	require.NotNil(t, result.Continuation)

	cont := result.Continuation
	require.NotEmpty(t, cont.Hash)
	require.NotEmpty(t, cont.LaunchRequestID)

	launch, err := st.LaunchRequests().GetLaunchRequest(ctx, cont.LaunchRequestID)
	require.NoError(t, err)
	require.Equal(t, domain.LaunchStatusSessionHashIssued, launch.Status)

	t.Run("debug consumer records header and param entries", func(t *testing.T) {
		entries, err := st.LaunchRequests().ListLaunchEntries(ctx, cont.LaunchRequestID)
		require.NoError(t, err)

		kinds := map[string]int{}
		for _, e := range entries {
			kinds[e.Kind]++
		}
		require.Equal(t, 2, kinds[domain.LaunchEntryHeader])
		require.NotZero(t, kinds[domain.LaunchEntryParam])
	})

	t.Run("provision completes the launch", func(t *testing.T) {
		result, err := svc.ProvisionAccount(ctx, cont.Hash, cont.LaunchRequestID, "bridge-cookie")
		require.NoError(t, err)
		require.NotNil(t, result.Session)
		require.Equal(t, "ies-pi-user-1", result.Session.ExternalUserID)

		account, err := st.Accounts().GetAccountByEmail(ctx, "sub-1", "student@example.edu")
		require.NoError(t, err)
		require.Equal(t, result.Session.AccountID, account.ID)
		require.Equal(t, domain.ProvisionSourceLTI, account.ProvisionSource)

		launch, err := st.LaunchRequests().GetLaunchRequest(ctx, cont.LaunchRequestID)
		require.NoError(t, err)
		require.Equal(t, domain.LaunchStatusCompleted, launch.Status)
	})

	t.Run("hash is single use", func(t *testing.T) {
		_, err := svc.ProvisionAccount(ctx, cont.Hash, cont.LaunchRequestID, "bridge-cookie")
		require.ErrorIs(t, err, service.ErrSessionHashNotFound)
	})
}

func TestProvisionHashLaunchMismatch(t *testing.T) {
	st := newTestStore(t)
	bridge := newFakeBridge(t)
	svc := newLTIService(t, st, bridge, nil)
	registerConsumer(t, st, "ws-1", false)
	ctx := context.Background()

	result, err := svc.Authenticate(ctx, launchInput(signedLaunch(t, "shared-secret", "lti-user-1")))
	require.NoError(t, err)
	require.NotNil(t, result.Continuation)

	_, err = svc.ProvisionAccount(ctx, result.Continuation.Hash, "some-other-launch", "bridge-cookie")
	require.ErrorIs(t, err, service.ErrSessionHashMismatch)
}
