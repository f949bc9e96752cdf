package shc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func trustedCache(srv *httptest.Server, ttl time.Duration) *JWKSCache {
	return NewJWKSCache(ttl, srv.Client(), []string{srv.URL})
}

func TestJWKSCache_ResolveKey(t *testing.T) {
	key := newTestKey(t)
	srv, hits := jwksServer(t, NewJWK(testKid, &key.PublicKey))
	cache := trustedCache(srv, time.Minute)

	got, err := cache.ResolveKey(context.Background(), srv.URL, testKid)
	if err != nil {
		t.Fatalf("ResolveKey: %v", err)
	}
	if !got.Equal(&key.PublicKey) {
		t.Error("resolved key does not match the published key")
	}

	if _, err := cache.ResolveKey(context.Background(), srv.URL, testKid); err != nil {
		t.Fatalf("ResolveKey (cached): %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 fetch, got %d", hits.Load())
	}
}

func TestJWKSCache_Expiry(t *testing.T) {
	key := newTestKey(t)
	srv, hits := jwksServer(t, NewJWK(testKid, &key.PublicKey))
	cache := trustedCache(srv, time.Minute)
	now := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	if _, err := cache.ResolveKey(context.Background(), srv.URL, testKid); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.ResolveKey(context.Background(), srv.URL, testKid); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected a refetch after expiry, got %d fetches", hits.Load())
	}
}

func TestJWKSCache_UnknownKidWaitsForExpiry(t *testing.T) {
	key := newTestKey(t)
	srv, hits := jwksServer(t, NewJWK(testKid, &key.PublicKey))
	cache := trustedCache(srv, time.Minute)
	now := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := cache.ResolveKey(context.Background(), srv.URL, "other"); !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound, got %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("unknown kids within the TTL should not refetch, got %d fetches", hits.Load())
	}

	now = now.Add(2 * time.Minute)
	cache.ResolveKey(context.Background(), srv.URL, "other")
	if hits.Load() != 2 {
		t.Errorf("expected a refetch once the set expired, got %d fetches", hits.Load())
	}
}

func TestJWKSCache_UntrustedIssuerIsNeverFetched(t *testing.T) {
	key := newTestKey(t)
	srv, hits := jwksServer(t, NewJWK(testKid, &key.PublicKey))
	cache := NewJWKSCache(time.Minute, srv.Client(), []string{IssuerCDPH})

	for _, iss := range []string{srv.URL, srv.URL + "/internal-admin", strings.Replace(srv.URL, "https://", "http://", 1)} {
		_, err := cache.ResolveKey(context.Background(), iss, testKid)
		if !errors.Is(err, ErrUntrustedIssuer) || !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("%s: expected an untrusted issuer error, got %v", iss, err)
		}
	}
	if hits.Load() != 0 {
		t.Errorf("expected no requests to untrusted issuers, got %d", hits.Load())
	}
}

func TestJWKSCache_PlainHTTPIsNeverTrusted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"keys":[]}`))
	}))
	defer srv.Close()
	cache := NewJWKSCache(time.Minute, srv.Client(), []string{srv.URL})

	if _, err := cache.ResolveKey(context.Background(), srv.URL, testKid); !errors.Is(err, ErrUntrustedIssuer) {
		t.Errorf("expected ErrUntrustedIssuer for an http issuer, got %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("expected no requests, got %d", hits.Load())
	}
}

func TestJWKSCache_SkipsNonP256Keys(t *testing.T) {
	key := newTestKey(t)
	rsaLike := JWK{Kty: "RSA", Kid: "rsa"}
	bad := NewJWK("bad", &key.PublicKey)
	bad.Y = bad.X
	srv, _ := jwksServer(t, rsaLike, bad, NewJWK(testKid, &key.PublicKey))
	cache := trustedCache(srv, time.Minute)

	for _, kid := range []string{"rsa", "bad"} {
		if _, err := cache.ResolveKey(context.Background(), srv.URL, kid); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("kid %q: expected ErrKeyNotFound, got %v", kid, err)
		}
	}
	if _, err := cache.ResolveKey(context.Background(), srv.URL, testKid); err != nil {
		t.Errorf("expected the valid key to resolve: %v", err)
	}
}

func TestJWKSCache_EndpointErrorsBackOff(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	cache := trustedCache(srv, 0)
	now := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := cache.ResolveKey(context.Background(), srv.URL, testKid); err == nil {
			t.Fatal("expected an error for a failing JWKS endpoint")
		}
	}
	if hits.Load() != 1 {
		t.Errorf("expected failures to be cached, got %d requests", hits.Load())
	}

	now = now.Add(failureBackoff + time.Second)
	cache.ResolveKey(context.Background(), srv.URL, testKid)
	if hits.Load() != 2 {
		t.Errorf("expected a retry after the backoff, got %d requests", hits.Load())
	}

	if _, err := cache.ResolveKey(context.Background(), "", testKid); !errors.Is(err, ErrMissingIssuer) {
		t.Errorf("expected ErrMissingIssuer, got %v", err)
	}
}

func TestIsHTTPSURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{IssuerCDPH, true},
		{"http://myvaccinerecord.cdph.ca.gov/creds", false},
		{"https://", false},
		{"/creds", false},
		{"file:///etc/passwd", false},
	}
	for _, tt := range tests {
		if got := IsHTTPSURL(tt.in); got != tt.want {
			t.Errorf("IsHTTPSURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStaticKeys(t *testing.T) {
	key := newTestKey(t)
	keys := StaticKeys{IssuerExample: {testKid: &key.PublicKey}}

	if _, err := keys.ResolveKey(context.Background(), IssuerExample, testKid); err != nil {
		t.Errorf("ResolveKey: %v", err)
	}
	if _, err := keys.ResolveKey(context.Background(), IssuerCDPH, testKid); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}
