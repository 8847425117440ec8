package oidc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrTokenParse indicates the provider returned a success status with a body
// that does not parse as a token response.
var ErrTokenParse = errors.New("oidc: token response unparseable")

// TokenEndpointError is returned when the provider's token endpoint answers
// with a non-success status. The provider's error JSON is preserved verbatim
// for auditing and for the caller's response mapping.
type TokenEndpointError struct {
	Status int
	Body   string
}

func (e *TokenEndpointError) Error() string {
	return fmt.Sprintf("oidc: token endpoint returned %d: %s", e.Status, e.Body)
}

// TokenResponse is the parsed body of a successful code exchange.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// AuditFunc records one protocol audit line against a session. Sensitive
// lines carry raw protocol material and are only written in debug mode.
type AuditFunc func(ctx context.Context, sessionID, event, message string, sensitive bool)

// Credential is the slice of the relying-party registration the exchanger
// needs: where to go and how to authenticate.
type Credential struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	LogDebug     bool
}

// TokenExchanger performs the authorization-code-for-tokens exchange against
// a provider's token endpoint with HTTP Basic client authentication.
type TokenExchanger struct {
	Client      *http.Client
	Discovery   *DiscoveryCache
	CallbackURL string

	// Audit, when set, receives debug request/response lines and the
	// provider's error body on failure.
	Audit AuditFunc
}

// Exchange swaps an authorization code for the provider's tokens. The
// sessionID keys all audit lines emitted along the way.
func (x *TokenExchanger) Exchange(ctx context.Context, cred Credential, code, sessionID string) (*TokenResponse, error) {
	md, err := x.Discovery.Get(ctx, cred.IssuerURL)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", x.CallbackURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, md.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("oidc: building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(url.QueryEscape(cred.ClientID), url.QueryEscape(cred.ClientSecret))

	if cred.LogDebug {
		x.audit(ctx, sessionID, "TOKEN_REQUEST",
			fmt.Sprintf("POST %s grant_type=authorization_code redirect_uri=%s", md.TokenEndpoint, x.CallbackURL),
			true)
	}

	client := x.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oidc: calling token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("oidc: reading token response: %w", err)
	}

	if cred.LogDebug {
		x.audit(ctx, sessionID, "TOKEN_RESPONSE",
			fmt.Sprintf("status=%d body=%s", resp.StatusCode, string(body)),
			true)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		tokenErr := &TokenEndpointError{Status: resp.StatusCode, Body: string(body)}
		x.audit(ctx, sessionID, "TOKEN_ERROR", tokenErr.Error(), false)
		return nil, tokenErr
	}

	tr, err := parseTokenResponse(body)
	if err != nil {
		return nil, err
	}
	return tr, nil
}

func (x *TokenExchanger) audit(ctx context.Context, sessionID, event, message string, sensitive bool) {
	if x.Audit != nil {
		x.Audit(ctx, sessionID, event, message, sensitive)
	}
}
