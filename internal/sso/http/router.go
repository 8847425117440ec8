package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/service"
	"github.com/mercuryedu/mercury-sso/internal/sso/store"
	"github.com/mercuryedu/mercury-sso/pkg/httpx"
	"github.com/mercuryedu/mercury-sso/pkg/slogx"

	_ "github.com/mercuryedu/mercury-sso/api/sso" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	adminToken   string

	store             store.Store
	OpenIDService     *service.OpenIDConnectService
	LTIService        *service.LTI11Service
	CredentialService *service.CredentialService
}

func NewRouter(buildVersion, adminToken string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		adminToken:   adminToken,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOIDC()
	r.registerLTI()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Mercury SSO API
//	@version		0.1.0
//	@description	Federated authentication engine for the Mercury educational platform: an OpenID
//	@description	Connect relying-party pipeline and an LTI 1.1 launch pipeline, both resolving to
//	@description	local accounts and minting opaque web session tokens.
//
//	@contact.name				Mercury Platform Team
//	@contact.url				https://github.com/mercuryedu/mercury-sso
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Admin bearer token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOIDC() {
	h := &OpenIDHandler{Service: r.OpenIDService}

	// GET /authorize - lenient rate limit (just builds a redirect)
	r.Mux.Handle("GET /v1/sso/oidc/authorize",
		httpx.Chain(http.HandlerFunc(h.HandleAuthorize),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// GET /callback - strict rate limit (code exchange, replay target)
	r.Mux.Handle("GET /v1/sso/oidc/callback",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /logout - moderate rate limit
	r.Mux.Handle("GET /v1/sso/oidc/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerLTI() {
	h := &LTIHandler{Service: r.LTIService}

	// POST /launch - strict rate limit by IP + consumer key (signed launches,
	// brute-force target for the shared secret)
	r.Mux.Handle("POST /v1/sso/lti11/launch",
		httpx.Chain(http.HandlerFunc(h.HandleLaunch),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "oauth_consumer_key"),
		),
	)

	// POST /provision - strict rate limit (single-use hash consumption)
	r.Mux.Handle("POST /v1/sso/lti11/provision",
		httpx.Chain(http.HandlerFunc(h.HandleProvision),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{Service: r.CredentialService}

	r.Mux.Handle("POST /v1/sso/credentials",
		httpx.Chain(http.HandlerFunc(h.HandleCreateCredential),
			httpx.RequireBearerToken(r.adminToken),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/sso/consumers",
		httpx.Chain(http.HandlerFunc(h.HandleCreateConsumer),
			httpx.RequireBearerToken(r.adminToken),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
