package shc

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// JWKSPath is where an issuer publishes its signing keys, relative to iss.
const JWKSPath = "/.well-known/jwks.json"

// DefaultJWKSCacheTTL is the default time-to-live for cached issuer keys.
const DefaultJWKSCacheTTL = 5 * time.Minute

const maxJWKSBytes = 64 << 10

// KeyResolver finds the public key an issuer signed with.
type KeyResolver interface {
	ResolveKey(ctx context.Context, issuer, kid string) (*ecdsa.PublicKey, error)
}

// JWK is a single JSON Web Key as published by health card issuers.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// JWKSet is the document served at JWKSPath.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// failureBackoff bounds how often a failing issuer endpoint is retried.
const failureBackoff = 30 * time.Second

type issuerKeys struct {
	keys      map[string]*ecdsa.PublicKey
	err       error
	fetchedAt time.Time
}

// JWKSCache caches each trusted issuer's keys with a configurable TTL. Keys
// are only ever fetched for issuers on the trust list, over https.
type JWKSCache struct {
	mu      sync.RWMutex
	issuers map[string]*issuerKeys
	trusted map[string]bool
	ttl     time.Duration
	client  *http.Client
	now     func() time.Time
	group   singleflight.Group
}

// NewJWKSCache creates a cache for the trusted issuers. A nil client gets a 10
// second timeout.
func NewJWKSCache(ttl time.Duration, client *http.Client, trusted []string) *JWKSCache {
	if ttl <= 0 {
		ttl = DefaultJWKSCacheTTL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	c := &JWKSCache{
		issuers: make(map[string]*issuerKeys),
		trusted: make(map[string]bool, len(trusted)),
		ttl:     ttl,
		client:  client,
		now:     time.Now,
	}
	for _, iss := range trusted {
		if IsHTTPSURL(iss) {
			c.trusted[iss] = true
		}
	}
	return c
}

// IsHTTPSURL reports whether s is an absolute https URL with a host.
func IsHTTPSURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme == "https" && u.Host != ""
}

// ResolveKey returns the issuer's key for kid. The key set is fetched when it
// is not cached or has expired; a kid missing from a fresh set is reported
// without another fetch.
func (c *JWKSCache) ResolveKey(ctx context.Context, issuer, kid string) (*ecdsa.PublicKey, error) {
	if issuer == "" {
		return nil, ErrMissingIssuer
	}
	if !c.trusted[issuer] {
		return nil, fmt.Errorf("%w: %w: %s", ErrKeyNotFound, ErrUntrustedIssuer, issuer)
	}

	c.mu.RLock()
	entry := c.issuers[issuer]
	c.mu.RUnlock()

	if entry == nil || c.expired(entry) {
		var err error
		if entry, err = c.refresh(ctx, issuer); err != nil {
			return nil, err
		}
	}
	if entry.err != nil {
		return nil, fmt.Errorf("fetching keys for %s: %w", issuer, entry.err)
	}
	key, ok := entry.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: kid %q from %s", ErrKeyNotFound, kid, issuer)
	}
	return key, nil
}

func (c *JWKSCache) expired(e *issuerKeys) bool {
	ttl := c.ttl
	if e.err != nil && failureBackoff < ttl {
		ttl = failureBackoff
	}
	return c.now().Sub(e.fetchedAt) > ttl
}

// refresh fetches an issuer's key set once for all concurrent callers and
// records the result, failures included.
func (c *JWKSCache) refresh(ctx context.Context, issuer string) (*issuerKeys, error) {
	v, err, _ := c.group.Do(issuer, func() (interface{}, error) {
		keys, err := c.fetch(ctx, issuer)
		entry := &issuerKeys{keys: keys, err: err, fetchedAt: c.now()}
		if ctx.Err() != nil {
			// A cancelled caller says nothing about the issuer.
			return nil, ctx.Err()
		}
		c.mu.Lock()
		c.issuers[issuer] = entry
		c.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*issuerKeys), nil
}

func (c *JWKSCache) fetch(ctx context.Context, issuer string) (map[string]*ecdsa.PublicKey, error) {
	endpoint := strings.TrimSuffix(issuer, "/") + JWKSPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var set JWKSet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&set); err != nil {
		return nil, fmt.Errorf("decoding JWKS response: %w", err)
	}

	keys := make(map[string]*ecdsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "EC" || k.Crv != "P-256" {
			continue
		}
		pub, err := ParseECPublicKey(k)
		if err != nil {
			continue // skip malformed keys
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

// ParseECPublicKey converts a P-256 JWK to an *ecdsa.PublicKey.
func ParseECPublicKey(k JWK) (*ecdsa.PublicKey, error) {
	xBytes, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, fmt.Errorf("decoding x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(k.Y)
	if err != nil {
		return nil, fmt.Errorf("decoding y coordinate: %w", err)
	}

	curve := elliptic.P256()
	x := new(big.Int).SetBytes(xBytes)
	y := new(big.Int).SetBytes(yBytes)
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("key %q is not on P-256", k.Kid)
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// NewJWK publishes pub under kid. Used by tooling and tests that act as an
// issuer.
func NewJWK(kid string, pub *ecdsa.PublicKey) JWK {
	return JWK{
		Kty: "EC",
		Kid: kid,
		Use: "sig",
		Alg: "ES256",
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(pub.X.FillBytes(make([]byte, 32))),
		Y:   base64.RawURLEncoding.EncodeToString(pub.Y.FillBytes(make([]byte, 32))),
	}
}

// StaticKeys resolves keys from a fixed in-memory set, keyed by issuer then
// kid.
type StaticKeys map[string]map[string]*ecdsa.PublicKey

func (s StaticKeys) ResolveKey(_ context.Context, issuer, kid string) (*ecdsa.PublicKey, error) {
	if key, ok := s[issuer][kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid %q from %s", ErrKeyNotFound, kid, issuer)
}
