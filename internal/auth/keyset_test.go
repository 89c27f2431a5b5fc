package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeJWKS serves a mutable key set and counts fetches.
type fakeJWKS struct {
	*httptest.Server

	mu      sync.Mutex
	keys    []map[string]any
	status  int
	hits    atomic.Int32
	noCache atomic.Int32
}

func newFakeJWKS(t *testing.T) *fakeJWKS {
	t.Helper()

	f := &fakeJWKS{status: http.StatusOK}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if r.Header.Get("Cache-Control") == "no-cache" {
			f.noCache.Add(1)
		}

		f.mu.Lock()
		defer f.mu.Unlock()

		if f.status != http.StatusOK {
			w.WriteHeader(f.status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": f.keys})
	}))
	t.Cleanup(f.Close)

	return f
}

func (f *fakeJWKS) jwksURL() string {
	return f.Server.URL + "/.well-known/jwks.json"
}

func (f *fakeJWKS) setKeys(keys ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = keys
}

func (f *fakeJWKS) setStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func generateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func generateECKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func rsaJWK(kid string, key *rsa.PublicKey) map[string]any {
	return map[string]any{
		"kty": "RSA",
		"kid": kid,
		"alg": "RS256",
		"use": "sig",
		"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
}

func ecJWK(kid string, key *ecdsa.PublicKey) map[string]any {
	return map[string]any{
		"kty": "EC",
		"kid": kid,
		"crv": "P-256",
		"x":   base64.RawURLEncoding.EncodeToString(key.X.FillBytes(make([]byte, 32))),
		"y":   base64.RawURLEncoding.EncodeToString(key.Y.FillBytes(make([]byte, 32))),
	}
}

func TestJWKSCache_Get(t *testing.T) {
	ctx := context.Background()
	rsaKey := generateRSAKey(t)
	ecKey := generateECKey(t)

	jwks := newFakeJWKS(t)
	jwks.setKeys(rsaJWK("rsa-1", &rsaKey.PublicKey), ecJWK("ec-1", &ecKey.PublicKey), map[string]any{"kty": "oct", "kid": "sym"})

	cache := NewJWKSCache(jwks.jwksURL(), nil, time.Hour)

	t.Run("parses RSA and EC keys", func(t *testing.T) {
		key, err := cache.Get(ctx, "rsa-1")
		require.NoError(t, err)
		require.True(t, rsaKey.PublicKey.Equal(key))

		key, err = cache.Get(ctx, "ec-1")
		require.NoError(t, err)
		require.True(t, ecKey.PublicKey.Equal(key))
	})

	t.Run("serves from cache while fresh", func(t *testing.T) {
		_, err := cache.Get(ctx, "rsa-1")
		require.NoError(t, err)
		require.Equal(t, int32(1), jwks.hits.Load())
	})

	t.Run("unknown kid does not refetch while fresh", func(t *testing.T) {
		_, err := cache.Get(ctx, "missing")
		require.ErrorIs(t, err, ErrKeyNotFound)
		require.Equal(t, int32(1), jwks.hits.Load())
	})

	t.Run("unsupported key types are skipped", func(t *testing.T) {
		_, err := cache.Get(ctx, "sym")
		require.ErrorIs(t, err, ErrKeyNotFound)
	})
}

func TestJWKSCache_Refresh(t *testing.T) {
	ctx := context.Background()
	oldKey := generateRSAKey(t)
	newKey := generateRSAKey(t)

	jwks := newFakeJWKS(t)
	jwks.setKeys(rsaJWK("old", &oldKey.PublicKey))

	cache := NewJWKSCache(jwks.jwksURL(), nil, time.Hour)

	_, err := cache.Get(ctx, "old")
	require.NoError(t, err)

	jwks.setKeys(rsaJWK("new", &newKey.PublicKey))

	_, err = cache.Get(ctx, "new")
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, cache.Refresh(ctx))
	require.Equal(t, int32(1), jwks.noCache.Load())

	key, err := cache.Get(ctx, "new")
	require.NoError(t, err)
	require.True(t, newKey.PublicKey.Equal(key))

	_, err = cache.Get(ctx, "old")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestJWKSCache_RefreshThrottled(t *testing.T) {
	ctx := context.Background()
	key := generateRSAKey(t)

	jwks := newFakeJWKS(t)
	jwks.setKeys(rsaJWK("k", &key.PublicKey))

	cache := NewJWKSCache(jwks.jwksURL(), nil, time.Hour)

	for range 10 {
		require.NoError(t, cache.Refresh(ctx))
	}
	require.Equal(t, int32(1), jwks.noCache.Load())

	t.Run("refreshes again once the window passes", func(t *testing.T) {
		cache.minRefreshInterval = 10 * time.Millisecond
		time.Sleep(20 * time.Millisecond)

		require.NoError(t, cache.Refresh(ctx))
		require.Equal(t, int32(2), jwks.noCache.Load())
	})
}

func TestJWKSCache_Expiry(t *testing.T) {
	ctx := context.Background()
	key := generateRSAKey(t)

	jwks := newFakeJWKS(t)
	jwks.setKeys(rsaJWK("k", &key.PublicKey))

	cache := NewJWKSCache(jwks.jwksURL(), nil, 10*time.Millisecond)

	_, err := cache.Get(ctx, "k")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, int32(2), jwks.hits.Load())
}

func TestJWKSCache_FetchErrors(t *testing.T) {
	ctx := context.Background()

	jwks := newFakeJWKS(t)
	jwks.setStatus(http.StatusNotFound)

	cache := NewJWKSCache(jwks.jwksURL(), nil, time.Hour)

	_, err := cache.Get(ctx, "k")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrKeyNotFound)
	// client errors are not retried
	require.Equal(t, int32(1), jwks.hits.Load())
}
