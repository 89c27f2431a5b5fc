package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storefront/internal/apperr"
)

// Verification modes. The mode is chosen by configuration only.
const (
	ModeJWKS  = "jwks"
	ModeLocal = "local"
)

// TokenUseAccess is the only token_use value accepted.
const TokenUseAccess = "access"

// Claims are the identity claims extracted from a verified access token.
type Claims struct {
	Subject string
	Email   string
	Name    string
}

// Verifier checks a bearer credential and returns its identity claims.
// Every failure is of kind apperr.ErrUnauthorized.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Config selects and configures a Verifier.
type Config struct {
	Mode     string
	Issuer   string
	Audience string // expected aud, or client_id for providers that omit aud on access tokens

	JWKSURL         string
	RefreshInterval time.Duration
	HTTPClient      *http.Client

	LocalSecret string
}

// NewVerifier builds the verifier for cfg.Mode.
func NewVerifier(cfg Config) (Verifier, error) {
	switch cfg.Mode {
	case ModeJWKS:
		if cfg.JWKSURL == "" {
			return nil, errors.New("JWKS URL not provided")
		}
		if cfg.Issuer == "" {
			return nil, errors.New("issuer not provided")
		}
		if cfg.Audience == "" {
			return nil, errors.New("audience not provided")
		}
		keys := NewJWKSCache(cfg.JWKSURL, cfg.HTTPClient, cfg.RefreshInterval)
		return NewJWKSVerifier(keys, cfg.Issuer, cfg.Audience), nil
	case ModeLocal:
		if cfg.LocalSecret == "" {
			return nil, errors.New("local secret not provided")
		}
		return NewHMACVerifier([]byte(cfg.LocalSecret), cfg.Issuer), nil
	default:
		return nil, fmt.Errorf("unknown auth mode: %q", cfg.Mode)
	}
}

// JWKSVerifier verifies RS256/ES256 tokens signed by keys from a rotating key set.
type JWKSVerifier struct {
	keys     KeySet
	issuer   string
	audience string
}

// NewJWKSVerifier creates a verifier using keys, requiring iss == issuer and aud or
// client_id == audience. An empty audience matches no token.
func NewJWKSVerifier(keys KeySet, issuer, audience string) *JWKSVerifier {
	return &JWKSVerifier{
		keys:     keys,
		issuer:   issuer,
		audience: audience,
	}
}

// Verify implements Verifier.
func (v *JWKSVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	claims := jwt.MapClaims{}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("missing kid")
		}

		key, err := v.keys.Get(ctx, kid)
		if errors.Is(err, ErrKeyNotFound) {
			// the provider may have rotated keys since the last fetch
			log.Debug().Str("kid", kid).Msg("Unknown kid, refreshing key set")
			if err := v.keys.Refresh(ctx); err != nil {
				return nil, err
			}
			key, err = v.keys.Get(ctx, kid)
		}
		return key, err
	},
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, apperr.Unauthorized("invalid token: %v", err)
	}

	if !matchesAudience(claims, v.audience) {
		return nil, apperr.Unauthorized("token audience mismatch")
	}

	return extractClaims(claims)
}

// HMACVerifier verifies HS256 tokens signed with a local secret.
type HMACVerifier struct {
	secret []byte
	issuer string
}

// NewHMACVerifier creates a verifier for tokens signed with secret. An empty issuer is not checked.
func NewHMACVerifier(secret []byte, issuer string) *HMACVerifier {
	return &HMACVerifier{
		secret: secret,
		issuer: issuer,
	}
}

// Verify implements Verifier.
func (v *HMACVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, apperr.Unauthorized("invalid token: %v", err)
	}

	return extractClaims(claims)
}

func matchesAudience(claims jwt.MapClaims, audience string) bool {
	if audience == "" {
		return false
	}

	aud, err := claims.GetAudience()
	if err == nil && slices.Contains(aud, audience) {
		return true
	}

	clientID, _ := claims["client_id"].(string)
	return clientID == audience
}

func extractClaims(claims jwt.MapClaims) (*Claims, error) {
	if use, _ := claims["token_use"].(string); use != TokenUseAccess {
		return nil, apperr.Unauthorized("token_use must be %q", TokenUseAccess)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, apperr.Unauthorized("missing sub claim")
	}

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return &Claims{
		Subject: sub,
		Email:   email,
		Name:    name,
	}, nil
}
