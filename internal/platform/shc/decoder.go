package shc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vaxcheck/vaxcheck/internal/domain/vaccination"
)

// Options configures a Decoder.
type Options struct {
	// VerifySignatures enables ES256 verification against the issuer's keys.
	// Keys must be set when it is true.
	VerifySignatures bool
	Keys             KeyResolver
	MaxPayloadBytes  int
}

// Decoder turns health card QR text or a compact JWS into a verified
// vaccination.Credential.
type Decoder struct {
	opts Options
}

func NewDecoder(opts Options) *Decoder {
	if opts.MaxPayloadBytes <= 0 {
		opts.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	return &Decoder{opts: opts}
}

// Decode accepts "shc:/..." QR text or a bare compact JWS.
func (d *Decoder) Decode(ctx context.Context, raw string) (*vaccination.Credential, error) {
	raw = strings.TrimSpace(raw)
	compact := raw
	if IsNumeric(raw) {
		var err error
		compact, err = DecodeNumeric(raw)
		if err != nil {
			return nil, err
		}
	}

	jws, err := ParseJWS(compact, d.opts.MaxPayloadBytes)
	if err != nil {
		return nil, err
	}
	payload, err := jws.DecodePayload()
	if err != nil {
		return nil, err
	}
	if payload.Issuer == "" {
		return nil, ErrMissingIssuer
	}

	if d.opts.VerifySignatures {
		if err := d.verify(ctx, jws, payload.Issuer); err != nil {
			return nil, err
		}
	}

	bundle, err := ConvertBundle(payload.VC.CredentialSubject.FHIRBundle)
	if err != nil {
		return nil, err
	}

	cred := &vaccination.Credential{
		Bundle: bundle,
		Issuer: vaccination.Issuer{URL: payload.Issuer, Name: IssuerName(payload.Issuer)},
		Raw:    jws.Raw,
	}
	if jws.Header.Kid != "" {
		kid := jws.Header.Kid
		cred.KeyID = &kid
	}
	return cred, nil
}

func (d *Decoder) verify(ctx context.Context, jws *JWS, issuer string) error {
	if d.opts.Keys == nil {
		return errors.New("signature verification enabled without a key resolver")
	}
	key, err := d.opts.Keys.ResolveKey(ctx, issuer, jws.Header.Kid)
	if err != nil {
		return err
	}
	if err := jwt.SigningMethodES256.Verify(jws.SigningString, jws.Signature, key); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
