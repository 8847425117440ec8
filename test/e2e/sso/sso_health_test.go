package sso_test

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type healthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

// TestLivezEndpoint verifies the liveness check endpoint.
func TestLivezEndpoint(t *testing.T) {
	baseURL, cleanup := setupSSOContainer(t)
	defer cleanup()

	var health healthResponse
	status := getJSON(t, baseURL+"/livez", &health)

	require.Equal(t, 200, status)
	require.Equal(t, "ok", health.Status)
	require.NotEmpty(t, health.Version)
}

// TestReadyzEndpoint verifies the readiness check endpoint reports the
// database as healthy.
func TestReadyzEndpoint(t *testing.T) {
	baseURL, cleanup := setupSSOContainer(t)
	defer cleanup()

	var health healthResponse
	status := getJSON(t, baseURL+"/readyz", &health)

	require.Equal(t, 200, status)
	require.Equal(t, "ok", health.Status)
}
