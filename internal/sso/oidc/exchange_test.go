package oidc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/oidc"
	"github.com/stretchr/testify/require"
)

type fakeTokenEndpoint struct {
	status int
	body   any

	gotGrantType   string
	gotCode        string
	gotRedirectURI string
	gotUser        string
	gotPass        string
}

func (f *fakeTokenEndpoint) start(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(oidc.ProviderMetadata{
			Issuer:                srv.URL,
			AuthorizationEndpoint: srv.URL + "/authorize",
			TokenEndpoint:         srv.URL + "/token",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.gotGrantType = r.FormValue("grant_type")
		f.gotCode = r.FormValue("code")
		f.gotRedirectURI = r.FormValue("redirect_uri")
		f.gotUser, f.gotPass, _ = r.BasicAuth()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_ = json.NewEncoder(w).Encode(f.body)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newExchanger(srv *httptest.Server) *oidc.TokenExchanger {
	return &oidc.TokenExchanger{
		Client:      srv.Client(),
		Discovery:   oidc.NewDiscoveryCache(srv.Client(), 16, time.Minute),
		CallbackURL: "https://mercury.example/v1/sso/oidc/callback",
	}
}

func TestExchangeSuccess(t *testing.T) {
	t.Parallel()

	ep := &fakeTokenEndpoint{
		status: http.StatusOK,
		body: map[string]any{
			"access_token": "at-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     "header.payload.sig",
		},
	}
	srv := ep.start(t)

	x := newExchanger(srv)
	cred := oidc.Credential{IssuerURL: srv.URL, ClientID: "mercury-web", ClientSecret: "s3cret"}

	tr, err := x.Exchange(context.Background(), cred, "code-1", "session-1")
	require.NoError(t, err)
	require.Equal(t, "at-1", tr.AccessToken)
	require.Equal(t, "Bearer", tr.TokenType)
	require.EqualValues(t, 3600, tr.ExpiresIn)

	require.Equal(t, "authorization_code", ep.gotGrantType)
	require.Equal(t, "code-1", ep.gotCode)
	require.Equal(t, "https://mercury.example/v1/sso/oidc/callback", ep.gotRedirectURI)
	require.Equal(t, "mercury-web", ep.gotUser)
	require.Equal(t, "s3cret", ep.gotPass)
}

func TestExchangeProviderErrorIsPreserved(t *testing.T) {
	t.Parallel()

	ep := &fakeTokenEndpoint{
		status: http.StatusBadRequest,
		body:   map[string]string{"error": "invalid_grant", "error_description": "code expired"},
	}
	srv := ep.start(t)

	x := newExchanger(srv)
	var audited []string
	x.Audit = func(ctx context.Context, sessionID, event, message string, sensitive bool) {
		audited = append(audited, event)
	}

	cred := oidc.Credential{IssuerURL: srv.URL, ClientID: "c", ClientSecret: "s"}
	_, err := x.Exchange(context.Background(), cred, "stale-code", "session-1")

	var tokenErr *oidc.TokenEndpointError
	require.ErrorAs(t, err, &tokenErr)
	require.Equal(t, http.StatusBadRequest, tokenErr.Status)
	require.Contains(t, tokenErr.Body, "invalid_grant")
	require.Contains(t, audited, "TOKEN_ERROR")
}

func TestExchangeMalformedSuccessBody(t *testing.T) {
	t.Parallel()

	ep := &fakeTokenEndpoint{
		status: http.StatusOK,
		body:   map[string]string{"token_type": "Bearer"}, // no access_token / id_token
	}
	srv := ep.start(t)

	x := newExchanger(srv)
	cred := oidc.Credential{IssuerURL: srv.URL, ClientID: "c", ClientSecret: "s"}

	_, err := x.Exchange(context.Background(), cred, "code-1", "session-1")
	require.ErrorIs(t, err, oidc.ErrTokenParse)
}

func TestExchangeDebugModeAuditsRequestAndResponse(t *testing.T) {
	t.Parallel()

	ep := &fakeTokenEndpoint{
		status: http.StatusOK,
		body: map[string]any{
			"access_token": "at-1",
			"token_type":   "Bearer",
			"id_token":     "header.payload.sig",
		},
	}
	srv := ep.start(t)

	x := newExchanger(srv)
	type line struct {
		event     string
		sensitive bool
	}
	var audited []line
	x.Audit = func(ctx context.Context, sessionID, event, message string, sensitive bool) {
		audited = append(audited, line{event, sensitive})
	}

	cred := oidc.Credential{IssuerURL: srv.URL, ClientID: "c", ClientSecret: "s", LogDebug: true}
	_, err := x.Exchange(context.Background(), cred, "code-1", "session-1")
	require.NoError(t, err)

	require.Equal(t, []line{
		{"TOKEN_REQUEST", true},
		{"TOKEN_RESPONSE", true},
	}, audited)
}
