package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
	"github.com/mercuryedu/mercury-sso/internal/sso/service"
	"github.com/mercuryedu/mercury-sso/pkg/httpx"
)

// BridgeCookieName is the identity-bridge session cookie that may accompany a
// launch when the student is already signed in on the bridge.
const BridgeCookieName = "ies_session"

// launchHeaders are the request headers recorded against every launch.
var launchHeaders = []string{"User-Agent", "Content-Type", "Referer", "X-Forwarded-For", "X-Request-ID"}

// ContinuationResponse is returned (202) when the launch needs the browser to
// come back through the provisioning endpoint.
type ContinuationResponse struct {
	Hash            string `json:"hash"`
	LaunchRequestID string `json:"launch_request_id"`
}

// ProvisionRequest finishes a launch continuation.
type ProvisionRequest struct {
	Hash            string `json:"hash"`
	LaunchRequestID string `json:"launch_request_id"`
	Token           string `json:"token,omitempty"` // bridge token, falls back to the bridge cookie
}

// LTIHandler serves the LTI 1.1 launch endpoints.
type LTIHandler struct {
	Service *service.LTI11Service
}

// HandleLaunch godoc
//
//	@Summary		LTI 1.1 tool launch
//	@Description	Validates the OAuth1-signed launch, resolves the account, and mints a web session.
//	@Description	When the account is unknown and no bridge cookie is present, a single-use continuation
//	@Description	hash is returned instead and the browser must complete the provisioning round trip.
//	@Tags			LTI
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			workspace_id		query		string	true	"Target workspace"
//	@Param			oauth_consumer_key	formData	string	true	"Tool consumer key"
//	@Param			oauth_signature		formData	string	true	"OAuth1 HMAC signature"
//	@Param			user_id				formData	string	true	"LTI user id"
//	@Success		200					{object}	SessionResponse
//	@Success		202					{object}	ContinuationResponse
//	@Failure		400					{object}	ErrorResponse
//	@Failure		401					{object}	ErrorResponse
//	@Failure		404					{object}	ErrorResponse
//	@Router			/v1/sso/lti11/launch [post].
func (h *LTIHandler) HandleLaunch(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		writeError(w, http.StatusBadRequest, "invalid_request", "launches must be form encoded")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		workspaceID = r.Form.Get("custom_workspace_id")
	}
	if workspaceID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "workspace_id is required")
		return
	}

	subscriptionID := r.Form.Get("custom_subscription_id")
	if subscriptionID == "" {
		subscriptionID = workspaceID
	}

	continueTo := r.Form.Get("custom_continue_to")
	if continueTo == "" {
		continueTo = r.Form.Get("launch_presentation_return_url")
	}

	headers := make(map[string]string, len(launchHeaders))
	for _, name := range launchHeaders {
		if v := r.Header.Get(name); v != "" {
			headers[name] = v
		}
	}

	in := service.LaunchInput{
		WorkspaceID:    workspaceID,
		SubscriptionID: subscriptionID,
		Method:         r.Method,
		URL:            requestURL(r),
		Headers:        headers,
		Params:         r.Form,
		BearerToken:    bearerToken(r),
		ContinueTo:     continueTo,
		CohortID:       r.Form.Get("custom_cohort_id"),
	}
	if c, err := r.Cookie(BridgeCookieName); err == nil {
		in.CookieToken = c.Value
	}

	result, err := h.Service.Authenticate(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if result.Continuation != nil {
		httpx.WriteJSON(w, http.StatusAccepted, ContinuationResponse{
			Hash:            result.Continuation.Hash,
			LaunchRequestID: result.Continuation.LaunchRequestID,
		})
		return
	}

	writeSession(w, r, result.Session)
}

// HandleProvision godoc
//
//	@Summary		Complete an LTI launch continuation
//	@Description	Consumes the single-use session hash issued at launch time, provisions the account
//	@Description	through the identity bridge, and mints the web session. A replayed hash fails.
//	@Tags			LTI
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ProvisionRequest	true	"Continuation hash and launch request id"
//	@Success		200		{object}	SessionResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/v1/sso/lti11/provision [post].
func (h *LTIHandler) HandleProvision(w http.ResponseWriter, r *http.Request) {
	var req ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Hash == "" || req.LaunchRequestID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "hash and launch_request_id are required")
		return
	}

	token := req.Token
	if token == "" {
		if c, err := r.Cookie(BridgeCookieName); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "access_denied", "no bridge session presented")
		return
	}

	result, err := h.Service.ProvisionAccount(r.Context(), req.Hash, req.LaunchRequestID, token)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSession(w, r, result.Session)
}

func writeSession(w http.ResponseWriter, r *http.Request, session *domain.WebSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token.Token,
		Path:     "/",
		Expires:  session.Token.ValidUntil,
		HttpOnly: true,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})

	httpx.WriteJSON(w, http.StatusOK, SessionResponse{
		WebSessionToken: session.Token.Token,
		ValidUntil:      session.Token.ValidUntil,
		AccountID:       session.AccountID,
		Provider:        string(session.Provider),
		ExternalUserID:  session.ExternalUserID,
	})
}

// requestURL reconstructs the absolute URL the tool consumer signed. Proxies
// must forward the original scheme and host.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host + r.URL.Path
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
