package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithSession returns a context whose logger tags every line with the SSO
// session (OIDC state) or LTI launch request driving the current flow.
func WithSession(ctx context.Context, sessionID string) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("session_id", sessionID))
}
