package celauth

import (
	"errors"
)

// Error codes for the closed taxonomy of caller-actionable auth failures.
// None of these signal a systemic failure; each one drives a workflow
// decision in the caller (re-prompt, pick another identity, confirm first).
const (
	ErrCodeNotLoggedIn            = "not_logged_in"
	ErrCodeAccountExists          = "account_exists"
	ErrCodeAccountConflict        = "account_conflict"
	ErrCodeInvalidCode            = "invalid_confirmation_code"
	ErrCodeAddressAccountConflict = "address_account_conflict"
	ErrCodeNotEligible            = "account_not_creatable"
)

// AuthError is an expected, caller-actionable authentication outcome.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Is reports code equality so callers can branch with errors.Is against the
// package sentinels regardless of how the error was constructed.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewAuthError creates an AuthError with the given code and message.
func NewAuthError(code string, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

// Sentinel values for the error taxonomy. Compare with errors.Is.
var (
	// ErrNotLoggedIn - the operation requires an active login identity and
	// the session has none.
	ErrNotLoggedIn = NewAuthError(ErrCodeNotLoggedIn, "not logged in")

	// ErrAccountAlreadyExists - CreateAccount invoked on an identity that is
	// already linked to an account.
	ErrAccountAlreadyExists = NewAuthError(ErrCodeAccountExists, "account already exists")

	// ErrAccountConflict - a login-time join would merge two distinct,
	// already-linked accounts. Always rejected, never auto-resolved.
	ErrAccountConflict = NewAuthError(ErrCodeAccountConflict, "login identities resolve to conflicting accounts")

	// ErrInvalidConfirmationCode - the code is unknown, already used, or past
	// its expiration. No state was mutated.
	ErrInvalidConfirmationCode = NewAuthError(ErrCodeInvalidCode, "invalid or expired confirmation code")

	// ErrAddressAccountConflict - a just-confirmed address is owned by an
	// account different from the identity's.
	ErrAddressAccountConflict = NewAuthError(ErrCodeAddressAccountConflict, "address is owned by a different account")
)

// ErrAddressNotFree is returned by RegistryStore.Assign when the address
// already has an account assignment. Assign must never overwrite one.
var ErrAddressNotFree = errors.New("address is not free")

// ErrLoginNotFound is returned by store reads for an unknown login identity.
var ErrLoginNotFound = errors.New("login identity not found")

// IsAuthError reports whether err belongs to the celauth error taxonomy, and
// returns the typed value when it does.
func IsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
