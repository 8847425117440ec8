package service

import (
	"context"
	"errors"
	"time"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
	"github.com/mercuryedu/mercury-sso/internal/sso/store"
	"github.com/mercuryedu/mercury-sso/pkg/cryptox"
	"github.com/mercuryedu/mercury-sso/pkg/idx"
)

var (
	ErrSessionNotFound = errors.New("web session not found")
	ErrSessionExpired  = errors.New("web session expired or invalidated")
)

// WebSessionService mints and invalidates the platform's opaque session
// tokens. Both the OIDC and LTI pipelines consume it as their issuance port.
type WebSessionService struct {
	Store    store.Store
	TokenTTL time.Duration
}

// Create mints a fresh opaque session token for an account. Only the token's
// fingerprint is persisted; the caller receives the one chance to read the
// raw token.
func (s *WebSessionService) Create(ctx context.Context, accountID, subscriptionID, relyingPartyID string) (*domain.WebSessionToken, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	token := domain.WebSessionToken{
		ID:             idx.New().String(),
		Token:          raw,
		TokenHash:      cryptox.FingerprintToken(raw),
		AccountID:      accountID,
		SubscriptionID: subscriptionID,
		RelyingPartyID: relyingPartyID,
		ValidUntil:     time.Now().Add(s.ttl()),
	}

	if err := s.Store.WebSessions().CreateWebSession(ctx, token); err != nil {
		return nil, err
	}
	return &token, nil
}

// Get returns the live session for a raw token. Invalidated or expired
// sessions read as ErrSessionExpired.
func (s *WebSessionService) Get(ctx context.Context, rawToken string) (domain.WebSessionToken, error) {
	t, err := s.Store.WebSessions().GetWebSessionByHash(ctx, cryptox.FingerprintToken(rawToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.WebSessionToken{}, ErrSessionNotFound
		}
		return domain.WebSessionToken{}, err
	}
	if t.InvalidatedAt != nil || time.Now().After(t.ValidUntil) {
		return domain.WebSessionToken{}, ErrSessionExpired
	}
	return t, nil
}

// Invalidate revokes a raw session token. Unknown tokens are not an error:
// stale-token invalidation at flow start is best-effort.
func (s *WebSessionService) Invalidate(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	// Unknown or already-invalidated tokens are fine
	_ = s.Store.WebSessions().InvalidateWebSession(ctx, cryptox.FingerprintToken(rawToken))
	return nil
}

func (s *WebSessionService) ttl() time.Duration {
	if s.TokenTTL <= 0 {
		return 12 * time.Hour
	}
	return s.TokenTTL
}
