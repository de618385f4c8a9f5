package celauth

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"
)

// DefaultCodeTTL is how long a confirmation code stays valid after issuance.
const DefaultCodeTTL = 12 * time.Hour

// codeEncoding keeps codes short and transcribable (no padding, no
// lowercase/uppercase ambiguity in the base32 alphabet).
var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewConfirmationCode generates a cryptographically secure one-time code.
// Five random bytes give 2^40 (about a trillion) possibilities, which makes
// guessing impractical for a code that lives at most DefaultCodeTTL.
func NewConfirmationCode() (string, error) {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate confirmation code: %w", err)
	}
	return codeEncoding.EncodeToString(b), nil
}
