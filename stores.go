package celauth

import "time"

// LoginIdentity is one externally authenticated identity, independent of any
// account link. It carries at most one current email claim.
type LoginIdentity struct {
	ID        string    `json:"id"`         // stable claimed identifier
	DisplayID string    `json:"display_id"` // human-facing form of the identifier
	Account   string    `json:"account"`    // linked account id, "" when unlinked
	Address   string    `json:"address"`    // currently claimed email address, "" when none
	Confirmed bool      `json:"confirmed"`  // claim proven via a mailed code
	Credible  bool      `json:"credible"`   // claim vouched for by the provider
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasClaim reports whether the identity currently claims an address.
func (l *LoginIdentity) HasClaim() bool {
	return l.Address != ""
}

// RegistryStore is the durable source of truth for identities, address
// assignments and confirmation codes.
//
// Two operations are load-bearing for concurrency correctness and must be
// implemented as atomic conditional updates, not read-then-write:
//
//   - Assign succeeds only while the address has no assignment and must
//     never overwrite one (return ErrAddressNotFree otherwise).
//   - AddAddress assigns only when the address is free or already owned by
//     the given account, reporting false on any other owner.
//
// Code consumption in ConfirmEmail must be at-most-once: two concurrent
// validations of the same code must not both succeed.
type RegistryStore interface {
	// NoteOpenID records the identity for a claimed identifier, creating it
	// on first sight. Idempotent: the same case always yields the same id.
	NoteOpenID(c *OpenIDCase) (string, error)

	// GetLogin returns a snapshot of one identity, or ErrLoginNotFound.
	GetLogin(loginid string) (*LoginIdentity, error)

	// LoginIDs lists every identity linked to the account.
	LoginIDs(account string) ([]string, error)

	// Account returns the account linked to an identity, "" when none.
	Account(loginid string) (string, error)

	// SetAccount links an identity to an account.
	SetAccount(loginid, account string) error

	// SetAddress records the identity's current claim. Re-claiming the same
	// address keeps its confirmed state (credibility only upgrades); a
	// different address replaces the claim as unconfirmed.
	SetAddress(loginid, address string, credible bool) error

	// Disclaim withdraws the identity's claim unless it is confirmed.
	Disclaim(loginid string) error

	// IsFreeAddress reports whether no account holds the address.
	IsFreeAddress(address string) (bool, error)

	// Assign gives a free address to an account (atomic; see above).
	Assign(address, account string) error

	// AssignedAccount returns the account holding the address, "" when free.
	AssignedAccount(address string) (string, error)

	// AddAddress gives the address to the account unless another account
	// already holds it (atomic; see above).
	AddAddress(account, address string) (bool, error)

	// RemoveAddress releases the assignment iff the account holds it.
	RemoveAddress(account, address string) error

	// CreateAccount allocates a fresh account via the store's accountant and
	// links the identity to it.
	CreateAccount(loginid string) (string, error)

	// SaveConfirmationCode binds a live code to an address for ttl.
	SaveConfirmationCode(code, address string, ttl time.Duration) error

	// ConfirmEmail validates and consumes a code, marking the identity's
	// claim for the bound address confirmed and credible. An account-linked
	// identity claiming a different address keeps that claim untouched; the
	// code is still consumed and the bound address still returned, so the
	// caller can grant it to the account. Returns the bound address, or ""
	// when the code is unknown, used or expired.
	ConfirmEmail(loginid, code string) (string, error)
}

// CodeStore is the confirmation-code slice of RegistryStore, split out so a
// store can delegate code storage to a TTL-native backend (stores/redis).
type CodeStore interface {
	// SaveConfirmationCode binds a live code to an address for ttl. Code
	// values must be unique while live.
	SaveConfirmationCode(code, address string, ttl time.Duration) error

	// ConsumeConfirmationCode validates a code and removes its usability for
	// subsequent lookups. Returns the bound address, "" when the code is
	// unknown, used or expired. At-most-once under concurrency.
	ConsumeConfirmationCode(code string) (string, error)
}

// SessionStore holds the per-caller ephemeral login state.
type SessionStore interface {
	// LoginID returns the current identity, "" when anonymous.
	LoginID() string

	// SetLoginID makes the identity current.
	SetLoginID(loginid string) error

	// Clear drops all session auth state.
	Clear() error

	// Update is a flush hook invoked after every state-affecting gate
	// operation, letting the implementation refresh any cached authorization
	// projection (cookies, middleware user objects, etc).
	Update() error
}
