package httpx

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Middleware wraps an http.Handler with additional behaviour.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to a handler in declaration order: the first
// middleware in the list is the outermost wrapper.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RequireBearerToken guards administrative endpoints with a static bearer
// token. Credential and consumer registration are operator-only surfaces;
// end users never reach them.
func RequireBearerToken(token string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"error":             "admin_disabled",
					"error_description": "Administrative API is not configured.",
				})
				return
			}

			auth := r.Header.Get("Authorization")
			presented, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				WriteJSON(w, http.StatusUnauthorized, map[string]string{
					"error":             "unauthorized",
					"error_description": "A valid administrative token is required.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
