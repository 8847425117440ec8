package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
	"github.com/mercuryedu/mercury-sso/internal/sso/oidc"
	"github.com/mercuryedu/mercury-sso/internal/sso/store"
	"github.com/mercuryedu/mercury-sso/pkg/cryptox"
	"github.com/mercuryedu/mercury-sso/pkg/idx"
	"github.com/mercuryedu/mercury-sso/pkg/slogx"
)

var (
	ErrCredentialNotFound = errors.New("relying party credential not found")
	ErrStateNotFound      = errors.New("authentication state not found")
	ErrNonceMismatch      = errors.New("nonce mismatch between state and id token")
	ErrUnverifiedEmail    = errors.New("email not verified, provisioning refused")
)

// OpenIDConnectService drives the full relying-party pipeline: authorization
// request, callback processing with account resolution, and logout with
// provider-side revocation. Every step is audit-logged against the state
// token acting as session id.
type OpenIDConnectService struct {
	Store     store.Store
	Discovery *oidc.DiscoveryCache
	Exchanger *oidc.TokenExchanger
	Sessions  *WebSessionService

	CallbackURL       string
	LogoutRedirectURL string
	StateTTL          time.Duration
}

// BuildAuthenticationRequest constructs the provider authorization URI for a
// relying party. The state row is persisted before the metadata fetch;
// failures after that point are audited and leave the row behind, so a
// stale callback fails state validation rather than silently retrying.
func (s *OpenIDConnectService) BuildAuthenticationRequest(ctx context.Context, relyingPartyID, redirectTo, staleToken string) (string, error) {
	_ = s.Sessions.Invalidate(ctx, staleToken)

	cred, err := s.Store.Credentials().GetCredentialByID(ctx, relyingPartyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrCredentialNotFound
		}
		return "", err
	}

	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}
	nonce, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}

	row := domain.AuthenticationState{
		State:          state,
		RedirectURL:    redirectTo,
		Nonce:          nonce,
		RelyingPartyID: cred.ID,
		ExpiresAt:      time.Now().Add(s.stateTTL()),
	}
	if err := s.Store.AuthenticationStates().CreateState(ctx, row); err != nil {
		return "", err
	}

	recordAudit(ctx, s.Store, state, domain.AuditStart,
		fmt.Sprintf("authorization request for relying party %s", cred.ID), false)

	md, err := s.Discovery.Get(ctx, cred.IssuerURL)
	if err != nil {
		recordAudit(ctx, s.Store, state, domain.AuditError, err.Error(), false)
		return "", err
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("scope", cred.RequestScope)
	q.Set("client_id", cred.ClientID)
	q.Set("redirect_uri", s.CallbackURL)
	q.Set("state", state)
	q.Set("nonce", nonce)

	sep := "?"
	if strings.Contains(md.AuthorizationEndpoint, "?") {
		sep = "&"
	}
	// The authorize query is RFC 3986 encoded: spaces in the scope list are
	// %20, not the form-encoding '+'.
	redirect := md.AuthorizationEndpoint + sep + strings.ReplaceAll(q.Encode(), "+", "%20")

	slogx.FromContext(ctx).Info("authorization redirect built",
		"relying_party_id", cred.ID, "session_id", state, "redirect", redirect)

	return redirect, nil
}

// ProcessCallback consumes the provider's redirect: exchanges the code,
// validates the ID token claims against the stored nonce, resolves or
// provisions the local account, reconciles its identity, records profile
// claims and the access token, and mints the web session. Strictly
// sequential; any failure is audited and fatal to this invocation. The
// state row is deleted only after the SUCCESS audit line, making each state
// single-use.
func (s *OpenIDConnectService) ProcessCallback(ctx context.Context, code, state string) (*domain.WebSessionToken, error) {
	st, err := s.Store.AuthenticationStates().GetState(ctx, state)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}

	cred, err := s.Store.Credentials().GetCredentialByID(ctx, st.RelyingPartyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, s.fail(ctx, state, ErrCredentialNotFound)
		}
		return nil, s.fail(ctx, state, err)
	}

	recordAudit(ctx, s.Store, state, domain.AuditProcessCallback, "callback received", false)
	if cred.LogDebug {
		recordAudit(ctx, s.Store, state, domain.AuditProcessCallback,
			fmt.Sprintf("authorization code: %s", code), true)
	}

	tokens, err := s.Exchanger.Exchange(ctx, oidc.Credential{
		IssuerURL:    cred.IssuerURL,
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		LogDebug:     cred.LogDebug,
	}, code, state)
	if err != nil {
		return nil, s.fail(ctx, state, err)
	}

	claims, err := oidc.ParseIDToken(tokens.IDToken)
	if err != nil {
		return nil, s.fail(ctx, state, err)
	}

	if oidc.Nonce(claims) != st.Nonce {
		recordAudit(ctx, s.Store, state, domain.AuditError, "nonce mismatch", false)
		return nil, ErrNonceMismatch
	}

	identity, err := oidc.ExtractIdentity(claims)
	if err != nil {
		return nil, s.fail(ctx, state, err)
	}

	account, err := s.getFederatedAccount(ctx, state, cred, identity)
	if err != nil {
		return nil, s.fail(ctx, state, err)
	}

	if err := s.updateAccountProperties(ctx, account.ID, identity); err != nil {
		return nil, s.fail(ctx, state, err)
	}

	s.recordProfileClaims(ctx, state, cred, account.ID, claims)

	session, err := s.Sessions.Create(ctx, account.ID, cred.SubscriptionID, cred.ID)
	if err != nil {
		return nil, s.fail(ctx, state, fmt.Errorf("minting web session: %w", err))
	}

	if err := s.Store.AccessTokens().CreateAccessTokenRecord(ctx, domain.AccessTokenRecord{
		ID:                  idx.New().String(),
		WebSessionTokenHash: session.TokenHash,
		State:               state,
		RelyingPartyID:      cred.ID,
		AccessToken:         tokens.AccessToken,
		TokenType:           tokens.TokenType,
		ExpiresIn:           tokens.ExpiresIn,
	}); err != nil {
		return nil, s.fail(ctx, state, err)
	}

	recordAudit(ctx, s.Store, state, domain.AuditSuccess,
		fmt.Sprintf("session issued for account %s", account.ID), false)

	if err := s.Store.SessionAccounts().CreateSessionAccountRecord(ctx, domain.SessionAccountRecord{
		ID:        idx.New().String(),
		AccountID: account.ID,
		SessionID: state,
	}); err != nil {
		return nil, s.fail(ctx, state, err)
	}

	// Consume the state: a replayed callback with the same state now fails
	// the initial lookup instead of re-entering the flow
	if err := s.Store.AuthenticationStates().DeleteState(ctx, state); err != nil {
		slogx.FromContext(ctx).Warn("failed to delete consumed state", "session_id", state, "error", err)
	}

	return session, nil
}

// Logout invalidates the web session, best-effort revokes the provider
// access token, and returns the post-logout redirect URI.
func (s *OpenIDConnectService) Logout(ctx context.Context, rawToken, source string) (string, error) {
	session, err := s.Sessions.Get(ctx, rawToken)
	if err != nil {
		return "", err
	}
	_ = s.Sessions.Invalidate(ctx, rawToken)

	redirect := s.LogoutRedirectURL

	record, err := s.Store.AccessTokens().GetAccessTokenRecordBySession(ctx, session.TokenHash)
	if err != nil {
		// No provider token recorded: local invalidation is all there is
		return redirect, nil
	}

	cred, err := s.Store.Credentials().GetCredentialByID(ctx, record.RelyingPartyID)
	if err != nil {
		return redirect, nil
	}

	md, err := s.Discovery.Get(ctx, cred.IssuerURL)
	if err != nil {
		recordAudit(ctx, s.Store, record.State, domain.AuditRevocation,
			fmt.Sprintf("logout (%s): discovery failed: %v", source, err), false)
		return redirect, nil
	}
	if md.EndSessionEndpoint != "" {
		redirect = md.EndSessionEndpoint
	}

	if md.RevocationEndpoint != "" {
		if err := s.revokeAccessToken(ctx, md.RevocationEndpoint, cred, record.AccessToken); err != nil {
			// Revocation failure is audited, never fatal to logout
			recordAudit(ctx, s.Store, record.State, domain.AuditRevocation,
				fmt.Sprintf("logout (%s): revocation failed: %v", source, err), false)
		} else {
			recordAudit(ctx, s.Store, record.State, domain.AuditRevocation,
				fmt.Sprintf("logout (%s): provider token revoked", source), false)
		}
	}

	return redirect, nil
}

func (s *OpenIDConnectService) revokeAccessToken(ctx context.Context, endpoint string, cred domain.RelyingPartyCredential, accessToken string) error {
	form := url.Values{}
	form.Set("token", accessToken)
	form.Set("token_type_hint", "access_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(url.QueryEscape(cred.ClientID), url.QueryEscape(cred.ClientSecret))

	client := s.Exchanger.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("revocation endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// recordProfileClaims persists every claim outside the standard OIDC set as
// an external profile claim, one audit line each. Claim values are only
// written to the audit log in debug mode, as sensitive rows.
func (s *OpenIDConnectService) recordProfileClaims(ctx context.Context, state string, cred domain.RelyingPartyCredential, accountID string, claims map[string]any) {
	for _, nv := range oidc.ExtraClaims(claims) {
		name, value := nv[0], nv[1]
		if err := s.Store.ProfileClaims().CreateProfileClaim(ctx, domain.ProfileClaim{
			ID:             idx.New().String(),
			AccountID:      accountID,
			RelyingPartyID: cred.ID,
			Name:           name,
			Value:          value,
		}); err != nil {
			slogx.FromContext(ctx).Warn("failed to record profile claim",
				"session_id", state, "claim", name, "error", err)
			continue
		}
		recordAudit(ctx, s.Store, state, domain.AuditProfileClaim,
			fmt.Sprintf("recorded external claim %s", name), false)
		if cred.LogDebug {
			recordAudit(ctx, s.Store, state, domain.AuditProfileClaim,
				fmt.Sprintf("claim %s = %s", name, value), true)
		}
	}
}

// fail audits an error against the session before propagating it.
func (s *OpenIDConnectService) fail(ctx context.Context, state string, err error) error {
	recordAudit(ctx, s.Store, state, domain.AuditError, err.Error(), false)
	return err
}

func (s *OpenIDConnectService) stateTTL() time.Duration {
	if s.StateTTL <= 0 {
		return 10 * time.Minute
	}
	return s.StateTTL
}
