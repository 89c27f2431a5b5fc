package auth

import (
	"context"
	"crypto"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/storefront/internal/apperr"
)

const (
	testIssuer   = "https://idp.example.com/pool"
	testAudience = "client-123"
)

func accessClaims(mutate func(c jwt.MapClaims)) jwt.MapClaims {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":       testIssuer,
		"sub":       "user-1",
		"aud":       testAudience,
		"token_use": "access",
		"email":     "user1@example.com",
		"iat":       now.Unix(),
		"exp":       now.Add(time.Hour).Unix(),
	}
	if mutate != nil {
		mutate(claims)
	}
	return claims
}

func signToken(t *testing.T, method jwt.SigningMethod, kid string, key crypto.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	tokenStr, err := token.SignedString(key)
	require.NoError(t, err)
	return tokenStr
}

func TestJWKSVerifier(t *testing.T) {
	ctx := context.Background()
	rsaKey := generateRSAKey(t)
	ecKey := generateECKey(t)

	jwks := newFakeJWKS(t)
	jwks.setKeys(rsaJWK("rsa-1", &rsaKey.PublicKey), ecJWK("ec-1", &ecKey.PublicKey))

	v := NewJWKSVerifier(NewJWKSCache(jwks.jwksURL(), nil, time.Hour), testIssuer, testAudience)

	t.Run("valid RS256 token", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodRS256, "rsa-1", rsaKey, accessClaims(nil))

		claims, err := v.Verify(ctx, token)
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.Subject)
		require.Equal(t, "user1@example.com", claims.Email)
	})

	t.Run("valid ES256 token with client_id instead of aud", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodES256, "ec-1", ecKey, accessClaims(func(c jwt.MapClaims) {
			delete(c, "aud")
			c["client_id"] = testAudience
		}))

		claims, err := v.Verify(ctx, token)
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.Subject)
	})

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "issuer mismatch",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodRS256, "rsa-1", rsaKey, accessClaims(func(c jwt.MapClaims) {
					c["iss"] = "https://evil.example.com"
				}))
			},
		},
		{
			name: "audience mismatch",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodRS256, "rsa-1", rsaKey, accessClaims(func(c jwt.MapClaims) {
					c["aud"] = "someone-else"
				}))
			},
		},
		{
			name: "id token",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodRS256, "rsa-1", rsaKey, accessClaims(func(c jwt.MapClaims) {
					c["token_use"] = "id"
				}))
			},
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodRS256, "rsa-1", rsaKey, accessClaims(func(c jwt.MapClaims) {
					c["exp"] = time.Now().Add(-time.Minute).Unix()
				}))
			},
		},
		{
			name: "missing exp",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodRS256, "rsa-1", rsaKey, accessClaims(func(c jwt.MapClaims) {
					delete(c, "exp")
				}))
			},
		},
		{
			name: "missing sub",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodRS256, "rsa-1", rsaKey, accessClaims(func(c jwt.MapClaims) {
					delete(c, "sub")
				}))
			},
		},
		{
			name: "missing kid",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodRS256, "", rsaKey, accessClaims(nil))
			},
		},
		{
			name: "signed by a key outside the key set",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodRS256, "rsa-1", generateRSAKey(t), accessClaims(nil))
			},
		},
		{
			name: "HS256 is not accepted",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodHS256, "rsa-1", []byte("secret"), accessClaims(nil))
			},
		},
		{
			name: "garbage",
			token: func(t *testing.T) string {
				return "not-a-jwt"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(ctx, tt.token(t))
			require.ErrorIs(t, err, apperr.ErrUnauthorized)
		})
	}
}

func TestJWKSVerifier_RotatedKey(t *testing.T) {
	ctx := context.Background()
	oldKey := generateRSAKey(t)
	newKey := generateRSAKey(t)

	jwks := newFakeJWKS(t)
	jwks.setKeys(rsaJWK("old", &oldKey.PublicKey))

	v := NewJWKSVerifier(NewJWKSCache(jwks.jwksURL(), nil, time.Hour), testIssuer, testAudience)

	_, err := v.Verify(ctx, signToken(t, jwt.SigningMethodRS256, "old", oldKey, accessClaims(nil)))
	require.NoError(t, err)
	require.Equal(t, int32(1), jwks.hits.Load())

	t.Run("unknown kid forces one refresh", func(t *testing.T) {
		jwks.setKeys(rsaJWK("old", &oldKey.PublicKey), rsaJWK("new", &newKey.PublicKey))

		claims, err := v.Verify(ctx, signToken(t, jwt.SigningMethodRS256, "new", newKey, accessClaims(nil)))
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.Subject)
		require.Equal(t, int32(2), jwks.hits.Load())
		require.Equal(t, int32(1), jwks.noCache.Load())
	})

	t.Run("unknown kids inside the refresh window do not refetch", func(t *testing.T) {
		for range 5 {
			_, err := v.Verify(ctx, signToken(t, jwt.SigningMethodRS256, "never", newKey, accessClaims(nil)))
			require.ErrorIs(t, err, apperr.ErrUnauthorized)
		}
		require.Equal(t, int32(2), jwks.hits.Load())
	})
}

func TestJWKSVerifier_EmptyAudience(t *testing.T) {
	ctx := context.Background()
	rsaKey := generateRSAKey(t)

	jwks := newFakeJWKS(t)
	jwks.setKeys(rsaJWK("rsa-1", &rsaKey.PublicKey))

	v := NewJWKSVerifier(NewJWKSCache(jwks.jwksURL(), nil, time.Hour), testIssuer, "")

	tests := []struct {
		name   string
		mutate func(c jwt.MapClaims)
	}{
		{name: "other app client", mutate: func(c jwt.MapClaims) { c["aud"] = "some-other-app-client" }},
		{name: "no aud or client_id", mutate: func(c jwt.MapClaims) { delete(c, "aud") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(ctx, signToken(t, jwt.SigningMethodRS256, "rsa-1", rsaKey, accessClaims(tt.mutate)))
			require.ErrorIs(t, err, apperr.ErrUnauthorized)
		})
	}
}

func TestHMACVerifier(t *testing.T) {
	ctx := context.Background()
	secret := []byte("local-secret")
	v := NewHMACVerifier(secret, DefaultIssuer)

	t.Run("issued token verifies", func(t *testing.T) {
		token, err := IssueToken(secret, DefaultIssuer, "dev-user", "dev@example.com", "Dev", time.Hour)
		require.NoError(t, err)

		claims, err := v.Verify(ctx, token)
		require.NoError(t, err)
		require.Equal(t, &Claims{Subject: "dev-user", Email: "dev@example.com", Name: "Dev"}, claims)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := IssueToken([]byte("other"), DefaultIssuer, "dev-user", "", "", time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(ctx, token)
		require.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := IssueToken(secret, "someone-else", "dev-user", "", "", time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(ctx, token)
		require.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := IssueToken(secret, DefaultIssuer, "dev-user", "", "", -time.Minute)
		require.NoError(t, err)

		_, err = v.Verify(ctx, token)
		require.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("RS256 token is not accepted", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodRS256, "rsa-1", generateRSAKey(t), accessClaims(func(c jwt.MapClaims) {
			c["iss"] = DefaultIssuer
		}))

		_, err := v.Verify(ctx, token)
		require.ErrorIs(t, err, apperr.ErrUnauthorized)
	})
}

func TestNewVerifier(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "unknown mode", cfg: Config{Mode: "magic"}, wantErr: `unknown auth mode: "magic"`},
		{name: "jwks without url", cfg: Config{Mode: ModeJWKS, Issuer: testIssuer}, wantErr: "JWKS URL not provided"},
		{name: "jwks without issuer", cfg: Config{Mode: ModeJWKS, JWKSURL: "https://idp/jwks"}, wantErr: "issuer not provided"},
		{name: "jwks without audience", cfg: Config{Mode: ModeJWKS, Issuer: testIssuer, JWKSURL: "https://idp/jwks"}, wantErr: "audience not provided"},
		{name: "local without secret", cfg: Config{Mode: ModeLocal}, wantErr: "local secret not provided"},
		{name: "jwks", cfg: Config{Mode: ModeJWKS, Issuer: testIssuer, Audience: testAudience, JWKSURL: "https://idp/jwks"}},
		{name: "local", cfg: Config{Mode: ModeLocal, LocalSecret: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVerifier(tt.cfg)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				require.Nil(t, v)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, v)
		})
	}
}
