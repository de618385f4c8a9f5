package celauth

import "strings"

// OpenIDCase is the transient result of one successful external
// authentication: who the provider says the user is, and how much we
// trust the asserted email.
type OpenIDCase struct {
	// ClaimedID is the stable claimed identifier (e.g. a claimed URI).
	ClaimedID string

	// DisplayID is the identifier as shown to humans.
	DisplayID string

	// Email is the address asserted by the provider, if any.
	Email string

	// Credible is true when the asserting provider is trusted enough that
	// the address needs no independent proof.
	Credible bool
}

// NormalizeEmail canonicalizes an address for use as a key: whitespace is
// trimmed and the domain part is lower-cased. The local part is left alone
// since its case sensitivity is the receiving server's business.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}
