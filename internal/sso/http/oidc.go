package http

import (
	"net/http"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/service"
	"github.com/mercuryedu/mercury-sso/pkg/httpx"
)

// SessionCookieName carries the opaque web session token back to the browser.
const SessionCookieName = "mercury_session"

// SessionResponse is the body returned when a flow mints a web session.
type SessionResponse struct {
	WebSessionToken string    `json:"web_session_token"`
	ValidUntil      time.Time `json:"valid_until"`
	AccountID       string    `json:"account_id"`
	Provider        string    `json:"provider,omitempty"`
	ExternalUserID  string    `json:"external_user_id,omitempty"`
}

// LogoutResponse tells the client where to send the browser after logout.
type LogoutResponse struct {
	RedirectTo string `json:"redirect_to"`
}

// OpenIDHandler serves the relying-party endpoints of the OIDC pipeline.
type OpenIDHandler struct {
	Service *service.OpenIDConnectService
}

// HandleAuthorize godoc
//
//	@Summary		Start an OpenID Connect login
//	@Description	Builds the provider authorization URI for the relying party and redirects the browser to it.
//	@Description	Any stale session token passed via invalidate_token is revoked first (best effort).
//	@Tags			OIDC
//	@Produce		json
//	@Param			relying_party_id	query	string	true	"Registered relying party credential id"
//	@Param			continue_to			query	string	false	"Application path to return to after login"
//	@Param			invalidate_token	query	string	false	"Stale web session token to revoke"
//	@Success		302	"Redirect to the provider authorization endpoint"
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/v1/sso/oidc/authorize [get].
func (h *OpenIDHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	relyingPartyID := r.URL.Query().Get("relying_party_id")
	if relyingPartyID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "relying_party_id is required")
		return
	}

	redirect, err := h.Service.BuildAuthenticationRequest(r.Context(),
		relyingPartyID,
		r.URL.Query().Get("continue_to"),
		r.URL.Query().Get("invalidate_token"),
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, redirect, http.StatusFound)
}

// HandleCallback godoc
//
//	@Summary		OpenID Connect redirect endpoint
//	@Description	Consumes the provider redirect: exchanges the authorization code, resolves or provisions
//	@Description	the account, and mints the platform web session. Each state is single use.
//	@Tags			OIDC
//	@Produce		json
//	@Param			code	query		string	true	"Authorization code"
//	@Param			state	query		string	true	"State issued at authorize time"
//	@Success		200		{object}	SessionResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Header			200		{string}	Cache-Control	"no-store"
//	@Router			/v1/sso/oidc/callback [get].
func (h *OpenIDHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "code and state are required")
		return
	}

	session, err := h.Service.ProcessCallback(r.Context(), code, state)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ValidUntil,
		HttpOnly: true,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})

	httpx.WriteJSON(w, http.StatusOK, SessionResponse{
		WebSessionToken: session.Token,
		ValidUntil:      session.ValidUntil,
		AccountID:       session.AccountID,
	})
}

// HandleLogout godoc
//
//	@Summary		End a web session
//	@Description	Invalidates the web session, best-effort revokes the provider access token, and returns
//	@Description	the post-logout redirect URI (the provider end_session endpoint when it publishes one).
//	@Tags			OIDC
//	@Produce		json
//	@Param			token	query		string	false	"Web session token (falls back to the session cookie)"
//	@Param			source	query		string	false	"Logout trigger, recorded in the audit trail"
//	@Success		200		{object}	LogoutResponse
//	@Failure		401		{object}	ErrorResponse
//	@Router			/v1/sso/oidc/logout [get].
func (h *OpenIDHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if c, err := r.Cookie(SessionCookieName); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "invalid_token", "no session token presented")
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = "user"
	}

	redirect, err := h.Service.Logout(r.Context(), token, source)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	httpx.WriteJSON(w, http.StatusOK, LogoutResponse{RedirectTo: redirect})
}
