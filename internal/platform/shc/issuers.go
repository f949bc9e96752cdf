package shc

// Issuer URLs with a known display name.
const (
	IssuerCDPH     = "https://myvaccinerecord.cdph.ca.gov/creds"
	IssuerLAWallet = "https://healthcardcert.lawallet.com"
	IssuerExample  = "https://spec.smarthealth.cards/examples/issuer"
)

var issuerNames = map[string]string{
	IssuerCDPH:     "California Department of Public Health",
	IssuerLAWallet: "Louisiana Department of Health",
	IssuerExample:  "SMART Health Cards Example Issuer",
}

// IssuerName returns the display name for iss, or "" when it is unknown.
func IssuerName(iss string) string {
	return issuerNames[iss]
}

// DefaultTrustedIssuers are the production issuers whose keys may be fetched
// when no trust list is configured. The example issuer's private key is
// public, so it is never trusted by default.
var DefaultTrustedIssuers = []string{IssuerCDPH, IssuerLAWallet}
