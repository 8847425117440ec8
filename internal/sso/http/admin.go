package http

import (
	"encoding/json"
	"net/http"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
	"github.com/mercuryedu/mercury-sso/internal/sso/service"
	"github.com/mercuryedu/mercury-sso/pkg/httpx"
)

// CredentialRequest registers an OIDC relying party.
type CredentialRequest struct {
	SubscriptionID       string `json:"subscription_id"`
	IssuerURL            string `json:"issuer_url"`
	ClientID             string `json:"client_id"`
	ClientSecret         string `json:"client_secret"`
	RequestScope         string `json:"request_scope,omitempty"`
	LogDebug             bool   `json:"log_debug,omitempty"`
	EnforceVerifiedEmail bool   `json:"enforce_verified_email,omitempty"`
}

// CredentialResponse echoes a registration without its secret.
type CredentialResponse struct {
	ID                   string `json:"id"`
	SubscriptionID       string `json:"subscription_id"`
	IssuerURL            string `json:"issuer_url"`
	ClientID             string `json:"client_id"`
	RequestScope         string `json:"request_scope"`
	LogDebug             bool   `json:"log_debug"`
	EnforceVerifiedEmail bool   `json:"enforce_verified_email"`
}

// ConsumerRequest registers an LTI 1.1 tool consumer for a workspace.
type ConsumerRequest struct {
	WorkspaceID string `json:"workspace_id"`
	ConsumerKey string `json:"consumer_key"`
	Secret      string `json:"secret"`
	LogDebug    bool   `json:"log_debug,omitempty"`
}

// ConsumerResponse echoes a consumer registration without its secret.
type ConsumerResponse struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	ConsumerKey string `json:"consumer_key"`
	LogDebug    bool   `json:"log_debug"`
}

// AdminHandler serves the operator registration endpoints. The router guards
// it with the admin bearer token.
type AdminHandler struct {
	Service *service.CredentialService
}

// HandleCreateCredential godoc
//
//	@Summary		Register an OIDC relying party
//	@Description	Stores a relying party credential. The client secret is sealed at rest and never
//	@Description	returned. Registrations are read-only after creation.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CredentialRequest	true	"Relying party registration"
//	@Success		201		{object}	CredentialResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/v1/sso/credentials [post].
func (h *AdminHandler) HandleCreateCredential(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	created, err := h.Service.AddCredential(r.Context(), domain.RelyingPartyCredential{
		SubscriptionID:       req.SubscriptionID,
		IssuerURL:            req.IssuerURL,
		ClientID:             req.ClientID,
		ClientSecret:         req.ClientSecret,
		RequestScope:         req.RequestScope,
		LogDebug:             req.LogDebug,
		EnforceVerifiedEmail: req.EnforceVerifiedEmail,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, CredentialResponse{
		ID:                   created.ID,
		SubscriptionID:       created.SubscriptionID,
		IssuerURL:            created.IssuerURL,
		ClientID:             created.ClientID,
		RequestScope:         created.RequestScope,
		LogDebug:             created.LogDebug,
		EnforceVerifiedEmail: created.EnforceVerifiedEmail,
	})
}

// HandleCreateConsumer godoc
//
//	@Summary		Register an LTI 1.1 tool consumer
//	@Description	Stores the consumer key and shared secret for a workspace. One consumer per
//	@Description	workspace; the secret is sealed at rest and never returned.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		ConsumerRequest	true	"Tool consumer registration"
//	@Success		201		{object}	ConsumerResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/v1/sso/consumers [post].
func (h *AdminHandler) HandleCreateConsumer(w http.ResponseWriter, r *http.Request) {
	var req ConsumerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	created, err := h.Service.AddConsumer(r.Context(), domain.LTIConsumer{
		WorkspaceID: req.WorkspaceID,
		ConsumerKey: req.ConsumerKey,
		Secret:      req.Secret,
		LogDebug:    req.LogDebug,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, ConsumerResponse{
		ID:          created.ID,
		WorkspaceID: created.WorkspaceID,
		ConsumerKey: created.ConsumerKey,
		LogDebug:    created.LogDebug,
	})
}
