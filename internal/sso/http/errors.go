package http

import (
	"errors"
	"net/http"

	"github.com/mercuryedu/mercury-sso/internal/sso/ltisig"
	"github.com/mercuryedu/mercury-sso/internal/sso/oidc"
	"github.com/mercuryedu/mercury-sso/internal/sso/service"
	"github.com/mercuryedu/mercury-sso/pkg/httpx"
)

// ErrorResponse is the OAuth2-style error body every failing endpoint returns.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	httpx.WriteJSON(w, status, ErrorResponse{Error: code, ErrorDescription: description})
}

// writeServiceError maps service-layer errors onto HTTP statuses. The service
// has already audited the failure; this only shapes the response.
func writeServiceError(w http.ResponseWriter, err error) {
	var sigErr *ltisig.SignatureError
	var tokenErr *oidc.TokenEndpointError

	switch {
	case errors.Is(err, service.ErrCredentialNotFound),
		errors.Is(err, service.ErrConsumerNotFound):
		writeError(w, http.StatusNotFound, "unknown_client", err.Error())

	case errors.Is(err, service.ErrStateNotFound):
		writeError(w, http.StatusBadRequest, "invalid_state", err.Error())

	case errors.Is(err, service.ErrNonceMismatch),
		errors.Is(err, service.ErrUnverifiedEmail),
		errors.Is(err, service.ErrPIUserIDNotFound):
		writeError(w, http.StatusUnauthorized, "access_denied", err.Error())

	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "invalid_token", err.Error())

	case errors.Is(err, service.ErrMissingLaunchParam),
		errors.Is(err, service.ErrExternalUserIDMissing),
		errors.Is(err, service.ErrSessionHashMismatch),
		errors.Is(err, oidc.ErrInvalidClaims),
		errors.Is(err, oidc.ErrTokenParse),
		errors.Is(err, service.ErrInvalidCredential),
		errors.Is(err, service.ErrInvalidLTIConsumer):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())

	case errors.Is(err, service.ErrSessionHashNotFound):
		writeError(w, http.StatusNotFound, "invalid_request", err.Error())

	case errors.Is(err, service.ErrCredentialExists),
		errors.Is(err, service.ErrConsumerExists):
		writeError(w, http.StatusConflict, "already_exists", err.Error())

	case errors.As(err, &sigErr):
		writeError(w, http.StatusUnauthorized, "invalid_signature", sigErr.Problem)

	case errors.As(err, &tokenErr):
		// The provider rejected the code exchange; its error body was audited
		writeError(w, http.StatusUnauthorized, "invalid_grant", "provider rejected the authorization code")

	case errors.Is(err, oidc.ErrDiscovery):
		writeError(w, http.StatusBadGateway, "provider_unavailable", err.Error())

	default:
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
