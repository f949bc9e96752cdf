package shc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

const testKid = "3Kfdg-XwP-7gXyywtUfUADwBumDOPKMQx-iELL11W9s"

const testBundle = `{
  "resourceType": "Bundle",
  "type": "collection",
  "entry": [
    {"fullUrl": "resource:0", "resource": {"resourceType": "Patient", "name": [{"family": "Anyperson", "given": ["John", "B."]}], "birthDate": "1951-01-20"}},
    {"fullUrl": "resource:1", "resource": {"resourceType": "Immunization", "status": "completed",
      "vaccineCode": {"coding": [{"system": "http://hl7.org/fhir/sid/cvx", "code": "207"}]},
      "patient": {"reference": "resource:0"}, "occurrenceDateTime": "2021-01-01",
      "performer": [{"actor": {"display": "ABC General Hospital"}}], "lotNumber": "0000001"}},
    {"fullUrl": "resource:2", "resource": {"resourceType": "Immunization", "status": "completed",
      "vaccineCode": {"coding": [{"system": "http://hl7.org/fhir/sid/cvx", "code": "207"}]},
      "patient": {"reference": "resource:0"}, "occurrenceDateTime": "2021-01-29T10:15:00-08:00",
      "performer": [{"actor": {"display": "ABC General Hospital"}}], "lotNumber": "0000007"}}
  ]
}`

func newTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func encodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// signCard builds a compact JWS the way an issuer would.
func signCard(t *testing.T, key *ecdsa.PrivateKey, header Header, iss, bundle string) string {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"iss": iss,
		"nbf": 1620847989.0,
		"vc": map[string]any{
			"type": []string{"https://smarthealth.cards#health-card"},
			"credentialSubject": map[string]any{
				"fhirVersion": "4.0.1",
				"fhirBundle":  json.RawMessage(bundle),
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if header.Zip == "DEF" {
		if payload, err = Deflate(payload); err != nil {
			t.Fatalf("deflate: %v", err)
		}
	}
	h, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	signingString := encodeSegment(h) + "." + encodeSegment(payload)
	sig, err := jwt.SigningMethodES256.Sign(signingString, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signingString + "." + encodeSegment(sig)
}

func defaultHeader() Header {
	return Header{Alg: "ES256", Zip: "DEF", Kid: testKid}
}

// jwksServer serves the key set for an issuer rooted at the server's https
// URL and counts every request it sees.
func jwksServer(t *testing.T, keys ...JWK) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != JWKSPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(JWKSet{Keys: keys})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}
