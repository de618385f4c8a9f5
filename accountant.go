package celauth

import (
	"github.com/google/uuid"
)

// Accountant is the host application's account ledger. Stores delegate to it
// for account id allocation and for pre-existing address ownership the host
// knows about from outside this library (imported users, billing records).
type Accountant interface {
	// AssignedAccount returns the account the host already considers owner
	// of the address, "" when it knows of none.
	AssignedAccount(address string) (string, error)

	// CreateAccount allocates a fresh, never-before-used account id. The
	// claimed addresses of the requesting identity are provided so hosts can
	// seed profile data; they may be ignored.
	CreateAccount(addresses []string) (string, error)
}

// UUIDAccountant allocates random account ids and knows of no outside
// ownership. Suitable as the default for applications whose account records
// live entirely behind the registry store.
type UUIDAccountant struct{}

func (a *UUIDAccountant) AssignedAccount(address string) (string, error) {
	return "", nil
}

func (a *UUIDAccountant) CreateAccount(addresses []string) (string, error) {
	return uuid.NewString(), nil
}
