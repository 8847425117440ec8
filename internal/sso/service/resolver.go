package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mercuryedu/mercury-sso/internal/sso/domain"
	"github.com/mercuryedu/mercury-sso/internal/sso/oidc"
	"github.com/mercuryedu/mercury-sso/internal/sso/store"
	"github.com/mercuryedu/mercury-sso/pkg/idx"
)

// getFederatedAccount resolves a local account for a federated identity.
// Resolution order, first match wins, each branch audited distinctly:
//
//  1. federation link by (subscription, client, subject)
//  2. lookup by normalized email, then self-heal the missing link
//  3. provision a new STUDENT account, then write the link
//
// Post-condition: a federation link for the triple exists and points at the
// returned account, so every later call with the same subject hits branch 1.
func (s *OpenIDConnectService) getFederatedAccount(ctx context.Context, sessionID string, cred domain.RelyingPartyCredential, id oidc.Identity) (domain.Account, error) {
	link, err := s.Store.FederationLinks().GetFederationLink(ctx, cred.SubscriptionID, cred.ClientID, id.Subject)
	if err == nil {
		account, err := s.Store.Accounts().GetAccountByID(ctx, link.AccountID)
		if err != nil {
			return domain.Account{}, err
		}
		recordAudit(ctx, s.Store, sessionID, domain.AuditAccountLocatedByFederation,
			fmt.Sprintf("account %s located by federation link", account.ID), false)
		return account, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, err
	}

	account, err := s.Store.Accounts().GetAccountByEmail(ctx, cred.SubscriptionID, id.Email)
	if err == nil {
		recordAudit(ctx, s.Store, sessionID, domain.AuditAccountLocatedByEmail,
			fmt.Sprintf("account %s located by email", account.ID), false)
		if err := s.persistFederationLink(ctx, cred, id.Subject, account.ID); err != nil {
			return domain.Account{}, err
		}
		return account, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, err
	}

	// Provisioning policy gate: no account is created for an unverified
	// email when the credential demands verification
	if cred.EnforceVerifiedEmail && !id.EmailVerified {
		return domain.Account{}, ErrUnverifiedEmail
	}

	account = domain.Account{
		ID:              idx.New().String(),
		SubscriptionID:  cred.SubscriptionID,
		Email:           id.Email,
		Role:            domain.RoleStudent,
		ProvisionSource: domain.ProvisionSourceOIDC,
	}
	if err := s.Store.Accounts().CreateAccount(ctx, account); err != nil {
		return domain.Account{}, err
	}
	recordAudit(ctx, s.Store, sessionID, domain.AuditAccountProvisioned,
		fmt.Sprintf("account %s provisioned for subject", account.ID), false)

	if err := s.persistFederationLink(ctx, cred, id.Subject, account.ID); err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

// persistFederationLink writes the triple-to-account mapping. A concurrent
// login may have raced the same write; an existing link wins and is kept.
func (s *OpenIDConnectService) persistFederationLink(ctx context.Context, cred domain.RelyingPartyCredential, subject, accountID string) error {
	err := s.Store.FederationLinks().CreateFederationLink(ctx, domain.FederationLink{
		SubscriptionID: cred.SubscriptionID,
		ClientID:       cred.ClientID,
		Subject:        subject,
		AccountID:      accountID,
	})
	if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return err
	}
	return nil
}

// updateAccountProperties idempotently reconciles the stored identity
// attributes with the incoming claims. Repeated logins with unchanged claims
// perform zero writes. A lone given or family name updates just that name;
// the other is left as stored.
func (s *OpenIDConnectService) updateAccountProperties(ctx context.Context, accountID string, id oidc.Identity) error {
	attrs, err := s.Store.Accounts().GetIdentityAttributes(ctx, accountID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		// First-time data for this account
		attrs = domain.IdentityAttributes{
			AccountID:  accountID,
			GivenName:  id.GivenName,
			FamilyName: id.FamilyName,
		}
		if id.EmailVerified {
			attrs.Emails = []string{id.Email}
		}
		return s.Store.Accounts().UpsertIdentityAttributes(ctx, attrs)
	}

	dirty := false

	if id.GivenName != "" && id.GivenName != attrs.GivenName {
		attrs.GivenName = id.GivenName
		dirty = true
	}
	if id.FamilyName != "" && id.FamilyName != attrs.FamilyName {
		attrs.FamilyName = id.FamilyName
		dirty = true
	}

	// Verified emails accumulate and are never removed here
	if id.EmailVerified && !attrs.HasEmail(id.Email) {
		attrs.Emails = append(attrs.Emails, id.Email)
		dirty = true
	}

	if !dirty {
		return nil
	}
	return s.Store.Accounts().UpsertIdentityAttributes(ctx, attrs)
}
