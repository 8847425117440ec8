package ies_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mercuryedu/mercury-sso/internal/sso/ies"
	"github.com/stretchr/testify/require"
)

func TestValidateToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/tokens/validate", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "cookie-token", payload["token"])

		_ = json.NewEncoder(w).Encode(ies.TokenInfo{Valid: true, PIUserID: "pi-1"})
	}))
	defer srv.Close()

	client := ies.NewClient(srv.URL, srv.Client())
	info, err := client.ValidateToken(context.Background(), "cookie-token")
	require.NoError(t, err)
	require.True(t, info.Valid)
	require.Equal(t, "pi-1", info.PIUserID)
}

func TestGetProfileNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := ies.NewClient(srv.URL, srv.Client())
	_, err := client.GetProfile(context.Background(), "missing")
	require.ErrorIs(t, err, ies.ErrUserNotFound)
}

func TestProvisionAccount(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/users/provision", r.URL.Path)

		var req ies.ProvisionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "pi-1", req.PIUserID)
		require.Equal(t, "sub-1", req.SubscriptionID)

		_ = json.NewEncoder(w).Encode(ies.ProvisionResult{
			IESUserID: "ies-9", Email: "a@b.com", GivenName: "A", FamilyName: "B",
		})
	}))
	defer srv.Close()

	client := ies.NewClient(srv.URL, srv.Client())
	result, err := client.ProvisionAccount(context.Background(), ies.ProvisionRequest{
		PIUserID: "pi-1", SubscriptionID: "sub-1",
	})
	require.NoError(t, err)
	require.Equal(t, "ies-9", result.IESUserID)
}

func TestBridgeErrorSurfacesStatusAndBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream_unavailable"}`))
	}))
	defer srv.Close()

	client := ies.NewClient(srv.URL, srv.Client())
	_, err := client.ValidateToken(context.Background(), "t")

	var apiErr *ies.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.Status)
	require.Contains(t, apiErr.Body, "upstream_unavailable")
}
