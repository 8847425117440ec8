package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
	"github.com/mercuryedu/mercury-sso/internal/sso/store"
	"github.com/mercuryedu/mercury-sso/pkg/idx"
)

var (
	ErrCredentialExists   = errors.New("relying party credential already exists")
	ErrConsumerExists     = errors.New("lti consumer already exists for workspace")
	ErrInvalidCredential  = errors.New("invalid credential registration")
	ErrInvalidLTIConsumer = errors.New("invalid lti consumer registration")
)

// CredentialService manages the operator-created registrations: relying
// party credentials for OIDC providers and tool consumers for LTI 1.1.
// Both are read-only after creation.
type CredentialService struct {
	Store store.Store
}

// AddCredential registers a relying party. The client secret is sealed at
// rest by the store driver. An empty id gets a fresh ULID.
func (s *CredentialService) AddCredential(ctx context.Context, cred domain.RelyingPartyCredential) (domain.RelyingPartyCredential, error) {
	if cred.SubscriptionID == "" || cred.IssuerURL == "" || cred.ClientID == "" || cred.ClientSecret == "" {
		return domain.RelyingPartyCredential{}, fmt.Errorf("%w: subscription_id, issuer_url, client_id and client_secret are required", ErrInvalidCredential)
	}
	if !strings.HasPrefix(cred.IssuerURL, "https://") && !strings.HasPrefix(cred.IssuerURL, "http://") {
		return domain.RelyingPartyCredential{}, fmt.Errorf("%w: issuer_url must be an absolute URL", ErrInvalidCredential)
	}
	if cred.ID == "" {
		cred.ID = idx.New().String()
	}
	if cred.RequestScope == "" {
		cred.RequestScope = "openid email profile"
	}

	if err := s.Store.Credentials().CreateCredential(ctx, cred); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.RelyingPartyCredential{}, ErrCredentialExists
		}
		return domain.RelyingPartyCredential{}, err
	}
	return cred, nil
}

// GetCredential returns a credential by id.
func (s *CredentialService) GetCredential(ctx context.Context, id string) (domain.RelyingPartyCredential, error) {
	cred, err := s.Store.Credentials().GetCredentialByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.RelyingPartyCredential{}, ErrCredentialNotFound
		}
		return domain.RelyingPartyCredential{}, err
	}
	return cred, nil
}

// AddConsumer registers an LTI 1.1 tool consumer for a workspace. One
// consumer per workspace; the shared secret is sealed at rest.
func (s *CredentialService) AddConsumer(ctx context.Context, c domain.LTIConsumer) (domain.LTIConsumer, error) {
	if c.WorkspaceID == "" || c.ConsumerKey == "" || c.Secret == "" {
		return domain.LTIConsumer{}, fmt.Errorf("%w: workspace_id, consumer_key and secret are required", ErrInvalidLTIConsumer)
	}
	if c.ID == "" {
		c.ID = idx.New().String()
	}

	if err := s.Store.LTIConsumers().CreateConsumer(ctx, c); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.LTIConsumer{}, ErrConsumerExists
		}
		return domain.LTIConsumer{}, err
	}
	return c, nil
}
