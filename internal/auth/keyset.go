package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storefront/internal/telemetry"
)

// DefaultKeySetTTL is how long a fetched key set is trusted before it is fetched again.
const DefaultKeySetTTL = time.Hour

// DefaultMinRefreshInterval is the minimum time between forced key set fetches.
const DefaultMinRefreshInterval = time.Minute

// ErrKeyNotFound is returned when a kid is not present in the key set.
var ErrKeyNotFound = errors.New("key not found in key set")

// KeySet provides the identity provider's signing keys by kid.
type KeySet interface {
	// Get returns the public key for kid, fetching the key set when the cached copy has expired.
	// Returns ErrKeyNotFound when the kid is not in the key set.
	Get(ctx context.Context, kid string) (crypto.PublicKey, error)

	// Refresh fetches the key set, bypassing any cached copy. Implementations may skip the fetch
	// when a forced fetch happened recently.
	Refresh(ctx context.Context) error
}

// JWKSCache is a KeySet backed by a published JWKS document.
type JWKSCache struct {
	jwksURL            string
	httpClient         *http.Client
	ttl                time.Duration
	minRefreshInterval time.Duration

	mu          sync.RWMutex
	keys        map[string]crypto.PublicKey // kid → public key
	expiresAt   time.Time
	lastRefresh time.Time
}

// NewJWKSCache creates a key set cache for jwksURL. A zero ttl uses DefaultKeySetTTL.
func NewJWKSCache(jwksURL string, httpClient *http.Client, ttl time.Duration) *JWKSCache {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	if ttl <= 0 {
		ttl = DefaultKeySetTTL
	}

	return &JWKSCache{
		jwksURL:            jwksURL,
		httpClient:         httpClient,
		ttl:                ttl,
		minRefreshInterval: DefaultMinRefreshInterval,
	}
}

// Get implements KeySet.
func (c *JWKSCache) Get(ctx context.Context, kid string) (crypto.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	fresh := c.keys != nil && time.Now().Before(c.expiresAt)
	c.mu.RUnlock()

	if fresh {
		if !ok {
			return nil, fmt.Errorf("kid %q: %w", kid, ErrKeyNotFound)
		}
		log.Debug().Str("kid", kid).Msg("JWKS cache hit")
		return key, nil
	}

	if err := c.fetch(ctx, false); err != nil {
		return nil, err
	}

	c.mu.RLock()
	key, ok = c.keys[kid]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("kid %q: %w", kid, ErrKeyNotFound)
	}
	return key, nil
}

// Refresh implements KeySet. At most one forced fetch runs per minRefreshInterval; tokens
// carrying unknown kids inside that window are checked against the current keys.
func (c *JWKSCache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if !c.lastRefresh.IsZero() && time.Since(c.lastRefresh) < c.minRefreshInterval {
		c.mu.Unlock()
		log.Debug().Str("jwks_url", c.jwksURL).Msg("Skipping JWKS refresh, refreshed recently")
		return nil
	}
	c.lastRefresh = time.Now()
	c.mu.Unlock()

	telemetry.GetMetrics().KeySetRefreshesTotal.Add(ctx, 1)
	return c.fetch(ctx, true)
}

func (c *JWKSCache) fetch(ctx context.Context, force bool) error {
	log.Debug().Str("jwks_url", c.jwksURL).Bool("force", force).Msg("Fetching JWKS")

	keys, err := backoff.Retry(ctx, func() (map[string]crypto.PublicKey, error) {
		return c.download(ctx, force)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	c.mu.Lock()
	c.keys = keys
	c.expiresAt = time.Now().Add(c.ttl)
	c.mu.Unlock()

	log.Info().Int("total_keys", len(keys)).Msg("Cached JWKS")
	return nil
}

func (c *JWKSCache) download(ctx context.Context, force bool) (map[string]crypto.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create JWKS request: %w", err))
	}
	if force {
		req.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("JWKS request failed: %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("JWKS request failed: %s", resp.Status))
	}

	var jwks struct {
		Keys []map[string]any `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode JWKS: %w", err))
	}
	// drain so a caching transport can store the response
	_, _ = io.Copy(io.Discard, resp.Body)

	keys := make(map[string]crypto.PublicKey, len(jwks.Keys))
	for _, jwk := range jwks.Keys {
		kid, ok := jwk["kid"].(string)
		if !ok || kid == "" {
			log.Warn().Msg("JWK missing kid")
			continue
		}

		key, err := parseJWK(jwk)
		if err != nil {
			log.Warn().Err(err).Str("kid", kid).Msg("Failed to parse JWK")
			continue
		}

		keys[kid] = key
	}

	return keys, nil
}

// parseJWK parses an RSA or EC JSON Web Key into a public key.
func parseJWK(jwk map[string]any) (crypto.PublicKey, error) {
	kty, _ := jwk["kty"].(string)
	switch kty {
	case "RSA":
		return parseRSAJWK(jwk)
	case "EC":
		return parseECJWK(jwk)
	default:
		return nil, fmt.Errorf("unsupported key type: %q", kty)
	}
}

func parseRSAJWK(jwk map[string]any) (*rsa.PublicKey, error) {
	n, err := jwkBigInt(jwk, "n")
	if err != nil {
		return nil, err
	}

	e, err := jwkBigInt(jwk, "e")
	if err != nil {
		return nil, err
	}
	if !e.IsInt64() || e.Int64() > int64(^uint32(0)>>1) {
		return nil, errors.New("RSA exponent out of range")
	}

	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func parseECJWK(jwk map[string]any) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv, _ := jwk["crv"].(string); crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	default:
		return nil, fmt.Errorf("unsupported curve: %q", crv)
	}

	x, err := jwkBigInt(jwk, "x")
	if err != nil {
		return nil, err
	}

	y, err := jwkBigInt(jwk, "y")
	if err != nil {
		return nil, err
	}

	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

func jwkBigInt(jwk map[string]any, name string) (*big.Int, error) {
	s, ok := jwk[name].(string)
	if !ok || s == "" {
		return nil, fmt.Errorf("missing %s", name)
	}

	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}

	return new(big.Int).SetBytes(b), nil
}
