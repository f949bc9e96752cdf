package shc

import "errors"

var (
	ErrChunkedCredential = errors.New("chunked health card QR codes are not supported")
	ErrMalformedNumeric  = errors.New("malformed numeric health card")
	ErrMalformedJWS      = errors.New("malformed compact JWS")
	ErrUnsupportedAlg    = errors.New("unsupported JWS algorithm")
	ErrUnsupportedZip    = errors.New("unsupported JWS compression")
	ErrPayloadTooLarge   = errors.New("credential payload too large")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrKeyNotFound       = errors.New("signing key not found")
	ErrUntrustedIssuer   = errors.New("issuer is not on the trust list")
	ErrMissingIssuer     = errors.New("credential has no issuer")
	ErrNotHealthCard     = errors.New("credential does not carry a FHIR bundle")
)
