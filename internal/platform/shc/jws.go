package shc

import (
	"bytes"
	"compress/flate"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultMaxPayloadBytes caps the inflated payload size.
const DefaultMaxPayloadBytes = 1 << 20

// Header is the protected header of a health card JWS.
type Header struct {
	Alg string `json:"alg"`
	Zip string `json:"zip,omitempty"`
	Kid string `json:"kid,omitempty"`
}

// JWS is a parsed compact serialization. Payload is already inflated.
type JWS struct {
	Header        Header
	Payload       []byte
	SigningString string
	Signature     []byte
	Raw           string
}

// Payload is the verifiable credential carried by a health card.
type Payload struct {
	Issuer    string               `json:"iss"`
	NotBefore float64              `json:"nbf,omitempty"`
	VC        VerifiableCredential `json:"vc"`
}

type VerifiableCredential struct {
	Type              []string          `json:"type"`
	CredentialSubject CredentialSubject `json:"credentialSubject"`
}

type CredentialSubject struct {
	FHIRVersion string          `json:"fhirVersion,omitempty"`
	FHIRBundle  json.RawMessage `json:"fhirBundle"`
}

// ParseJWS splits and decodes a compact JWS. The signature is not checked.
func ParseJWS(compact string, maxPayload int) (*JWS, error) {
	parts := strings.Split(compact, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedJWS, len(parts))
	}
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayloadBytes
	}

	p := jwt.NewParser()
	headerBytes, err := p.DecodeSegment(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedJWS, err)
	}
	var h Header
	if err := json.Unmarshal(headerBytes, &h); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedJWS, err)
	}
	if h.Alg != jwt.SigningMethodES256.Alg() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlg, h.Alg)
	}

	body, err := p.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformedJWS, err)
	}
	switch h.Zip {
	case "":
		if len(body) > maxPayload {
			return nil, ErrPayloadTooLarge
		}
	case "DEF":
		body, err = inflate(body, maxPayload)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedZip, h.Zip)
	}

	sig, err := p.DecodeSegment(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformedJWS, err)
	}

	return &JWS{
		Header:        h,
		Payload:       body,
		SigningString: parts[0] + "." + parts[1],
		Signature:     sig,
		Raw:           compact,
	}, nil
}

// DecodePayload unmarshals the credential payload.
func (j *JWS) DecodePayload() (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformedJWS, err)
	}
	return &p, nil
}

func inflate(data []byte, limit int) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: inflate payload: %v", ErrMalformedJWS, err)
	}
	if len(out) > limit {
		return nil, ErrPayloadTooLarge
	}
	return out, nil
}

// Deflate compresses a payload the way health card issuers do.
func Deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
