package oidc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidClaims indicates a required identity claim is missing or
// malformed.
var ErrInvalidClaims = errors.New("oidc: invalid identity claims")

// Identity is the validated identity extracted from an ID token.
type Identity struct {
	Subject       string
	Email         string // normalized: trimmed, lowercased
	EmailVerified bool
	GivenName     string
	FamilyName    string
}

// standardClaims are never recorded as external profile claims. They are
// either protocol plumbing or already captured as identity attributes.
var standardClaims = map[string]struct{}{
	"iss": {}, "aud": {}, "exp": {}, "iat": {}, "nbf": {}, "jti": {},
	"azp": {}, "nonce": {}, "at_hash": {}, "c_hash": {}, "sid": {},
	"auth_time": {}, "sub": {}, "email": {}, "email_verified": {},
	"given_name": {}, "family_name": {},
}

func parseTokenResponse(body []byte) (*TokenResponse, error) {
	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenParse, err)
	}
	if tr.AccessToken == "" || tr.IDToken == "" {
		return nil, fmt.Errorf("%w: missing access_token or id_token", ErrTokenParse)
	}
	return &tr, nil
}

// ParseIDToken parses the claim set of an ID token without signature
// verification. The token arrives inside the TLS-authenticated token-endpoint
// response from the provider we just authenticated to with our client
// secret; the channel is the trust anchor.
func ParseIDToken(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenParse, err)
	}
	return claims, nil
}

// Nonce returns the nonce claim, empty when absent.
func Nonce(claims jwt.MapClaims) string {
	if v, ok := claims["nonce"].(string); ok {
		return v
	}
	return ""
}

// ExtractIdentity validates and normalizes the identity claims.
// Requirements: sub and email present, at least one of given_name and
// family_name present. email_verified defaults to false when absent.
func ExtractIdentity(claims jwt.MapClaims) (Identity, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: missing sub", ErrInvalidClaims)
	}

	email, _ := claims["email"].(string)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Identity{}, fmt.Errorf("%w: missing email", ErrInvalidClaims)
	}

	givenName, _ := claims["given_name"].(string)
	familyName, _ := claims["family_name"].(string)
	if givenName == "" && familyName == "" {
		return Identity{}, fmt.Errorf("%w: at least one of given_name and family_name is required", ErrInvalidClaims)
	}

	verified, _ := claims["email_verified"].(bool)

	return Identity{
		Subject:       sub,
		Email:         email,
		EmailVerified: verified,
		GivenName:     givenName,
		FamilyName:    familyName,
	}, nil
}

// ExtraClaims returns the non-standard claims as a sorted name/value list,
// ready to be recorded as external profile claims. Non-string values are
// rendered as JSON.
func ExtraClaims(claims jwt.MapClaims) [][2]string {
	var out [][2]string
	for name, value := range claims {
		if _, ok := standardClaims[name]; ok {
			continue
		}
		s, ok := value.(string)
		if !ok {
			b, err := json.Marshal(value)
			if err != nil {
				continue
			}
			s = string(b)
		}
		out = append(out, [2]string{name, s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
