package oidc_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mercuryedu/mercury-sso/internal/sso/oidc"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func TestParseIDToken(t *testing.T) {
	t.Parallel()

	raw := signedToken(t, jwt.MapClaims{"sub": "u1", "nonce": "n1"})

	claims, err := oidc.ParseIDToken(raw)
	require.NoError(t, err)
	require.Equal(t, "u1", claims["sub"])
	require.Equal(t, "n1", oidc.Nonce(claims))

	_, err = oidc.ParseIDToken("not-a-jwt")
	require.ErrorIs(t, err, oidc.ErrTokenParse)
}

func TestExtractIdentity(t *testing.T) {
	t.Parallel()

	base := jwt.MapClaims{
		"sub":            "u1",
		"email":          "  A@B.Com ",
		"email_verified": true,
		"given_name":     "A",
		"family_name":    "B",
	}

	t.Run("happy path normalizes email", func(t *testing.T) {
		id, err := oidc.ExtractIdentity(base)
		require.NoError(t, err)
		require.Equal(t, "u1", id.Subject)
		require.Equal(t, "a@b.com", id.Email)
		require.True(t, id.EmailVerified)
	})

	t.Run("missing sub fails", func(t *testing.T) {
		claims := jwt.MapClaims{"email": "a@b.com", "given_name": "A"}
		_, err := oidc.ExtractIdentity(claims)
		require.ErrorIs(t, err, oidc.ErrInvalidClaims)
	})

	t.Run("missing email fails", func(t *testing.T) {
		claims := jwt.MapClaims{"sub": "u1", "given_name": "A"}
		_, err := oidc.ExtractIdentity(claims)
		require.ErrorIs(t, err, oidc.ErrInvalidClaims)
	})

	t.Run("one name is enough", func(t *testing.T) {
		claims := jwt.MapClaims{"sub": "u1", "email": "a@b.com", "family_name": "B"}
		id, err := oidc.ExtractIdentity(claims)
		require.NoError(t, err)
		require.Empty(t, id.GivenName)
		require.Equal(t, "B", id.FamilyName)
	})

	t.Run("both names absent fails", func(t *testing.T) {
		claims := jwt.MapClaims{"sub": "u1", "email": "a@b.com"}
		_, err := oidc.ExtractIdentity(claims)
		require.ErrorIs(t, err, oidc.ErrInvalidClaims)
	})

	t.Run("email_verified defaults to false", func(t *testing.T) {
		claims := jwt.MapClaims{"sub": "u1", "email": "a@b.com", "given_name": "A"}
		id, err := oidc.ExtractIdentity(claims)
		require.NoError(t, err)
		require.False(t, id.EmailVerified)
	})
}

func TestExtraClaimsFiltersStandardSet(t *testing.T) {
	t.Parallel()

	claims := jwt.MapClaims{
		"sub": "u1", "email": "a@b.com", "nonce": "n1", "exp": 123,
		"department": "physics",
		"campus_ids": []any{"c1", "c2"},
	}

	extra := oidc.ExtraClaims(claims)
	require.Equal(t, [][2]string{
		{"campus_ids", `["c1","c2"]`},
		{"department", "physics"},
	}, extra)
}
