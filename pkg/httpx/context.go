package httpx

type ctxKey string

const (
	// CtxKeyAccountID carries the resolved account for an authenticated request.
	CtxKeyAccountID ctxKey = "account_id"
	// CtxKeyProvider carries the authentication provider that issued the session.
	CtxKeyProvider ctxKey = "provider"
)
