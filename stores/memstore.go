// Package stores provides the in-memory reference implementation of the
// celauth collaborator contracts. It is the executable semantics the
// durable stores (stores/gorm, stores/gae) are written against, and what
// the library's own tests run on.
package stores

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/panyam/celauth"
)

// SequenceAccountant allocates small sequential account ids ("1", "2", ...)
// and knows of no outside ownership. Handy in tests and demos; production
// setups want celauth.UUIDAccountant or their own ledger.
type SequenceAccountant struct {
	mu   sync.Mutex
	next int
}

func (a *SequenceAccountant) AssignedAccount(address string) (string, error) {
	return "", nil
}

func (a *SequenceAccountant) CreateAccount(addresses []string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	return strconv.Itoa(a.next), nil
}

type memCode struct {
	address   string
	expiresAt time.Time
}

// MemRegistryStore is a mutex-guarded, map-backed celauth.RegistryStore.
// The single lock trivially gives Assign, AddAddress and code consumption
// their required atomicity.
type MemRegistryStore struct {
	mu              sync.Mutex
	logins          map[string]*celauth.LoginIdentity
	addressAccounts map[string]string
	codes           map[string]memCode
	accountant      celauth.Accountant

	// Now supplies the clock for code expiry. Overridable in tests.
	Now func() time.Time
}

// NewMemRegistryStore creates an empty in-memory store delegating account
// allocation to the given accountant.
func NewMemRegistryStore(accountant celauth.Accountant) *MemRegistryStore {
	return &MemRegistryStore{
		logins:          map[string]*celauth.LoginIdentity{},
		addressAccounts: map[string]string{},
		codes:           map[string]memCode{},
		accountant:      accountant,
		Now:             time.Now,
	}
}

func (s *MemRegistryStore) NoteOpenID(c *celauth.OpenIDCase) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loginid := c.ClaimedID
	if _, ok := s.logins[loginid]; !ok {
		now := s.Now()
		s.logins[loginid] = &celauth.LoginIdentity{
			ID:        loginid,
			DisplayID: c.DisplayID,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return loginid, nil
}

func (s *MemRegistryStore) GetLogin(loginid string) (*celauth.LoginIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	login, ok := s.logins[loginid]
	if !ok {
		return nil, celauth.ErrLoginNotFound
	}
	snapshot := *login
	return &snapshot, nil
}

func (s *MemRegistryStore) LoginIDs(account string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, login := range s.logins {
		if login.Account == account {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemRegistryStore) Account(loginid string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if login, ok := s.logins[loginid]; ok {
		return login.Account, nil
	}
	return "", nil
}

func (s *MemRegistryStore) SetAccount(loginid, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	login, ok := s.logins[loginid]
	if !ok {
		return celauth.ErrLoginNotFound
	}
	login.Account = account
	login.UpdatedAt = s.Now()
	return nil
}

func (s *MemRegistryStore) SetAddress(loginid, address string, credible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	login, ok := s.logins[loginid]
	if !ok {
		return celauth.ErrLoginNotFound
	}
	if login.Address == address {
		// Same claim again; credibility only upgrades.
		login.Credible = login.Credible || credible
	} else {
		login.Address = address
		login.Credible = credible
		login.Confirmed = false
	}
	login.UpdatedAt = s.Now()
	return nil
}

func (s *MemRegistryStore) Disclaim(loginid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	login, ok := s.logins[loginid]
	if !ok {
		return celauth.ErrLoginNotFound
	}
	if login.Confirmed {
		return nil
	}
	login.Address = ""
	login.Credible = false
	login.UpdatedAt = s.Now()
	return nil
}

func (s *MemRegistryStore) IsFreeAddress(address string) (bool, error) {
	account, err := s.AssignedAccount(address)
	return account == "", err
}

func (s *MemRegistryStore) Assign(address, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addressAccounts[address] != "" {
		return celauth.ErrAddressNotFree
	}
	s.addressAccounts[address] = account
	return nil
}

func (s *MemRegistryStore) AssignedAccount(address string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignedAccountLocked(address)
}

func (s *MemRegistryStore) assignedAccountLocked(address string) (string, error) {
	if account := s.addressAccounts[address]; account != "" {
		return account, nil
	}
	// The host application may already consider the address owned.
	account, err := s.accountant.AssignedAccount(address)
	if err != nil {
		return "", err
	}
	if account != "" {
		s.addressAccounts[address] = account
	}
	return account, nil
}

func (s *MemRegistryStore) AddAddress(account, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, err := s.assignedAccountLocked(address)
	if err != nil {
		return false, err
	}
	if owner == "" {
		s.addressAccounts[address] = account
		return true, nil
	}
	return owner == account, nil
}

func (s *MemRegistryStore) RemoveAddress(account, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addressAccounts[address] == account {
		delete(s.addressAccounts, address)
	}
	return nil
}

func (s *MemRegistryStore) CreateAccount(loginid string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	login, ok := s.logins[loginid]
	if !ok {
		return "", celauth.ErrLoginNotFound
	}
	var addresses []string
	if login.Address != "" {
		addresses = append(addresses, login.Address)
	}
	account, err := s.accountant.CreateAccount(addresses)
	if err != nil {
		return "", err
	}
	login.Account = account
	login.UpdatedAt = s.Now()
	return account, nil
}

func (s *MemRegistryStore) SaveConfirmationCode(code, address string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[code]; ok {
		return fmt.Errorf("confirmation code collision for %q", code)
	}
	s.codes[code] = memCode{address: address, expiresAt: s.Now().Add(ttl)}
	return nil
}

func (s *MemRegistryStore) ConfirmEmail(loginid, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	login, ok := s.logins[loginid]
	if !ok {
		return "", celauth.ErrLoginNotFound
	}
	rec, ok := s.codes[code]
	if !ok {
		return "", nil
	}
	// Consumed either way; an expired code behaves as if absent.
	delete(s.codes, code)
	if s.Now().After(rec.expiresAt) {
		return "", nil
	}
	if login.Account != "" && login.HasClaim() && login.Address != rec.address {
		// A linked identity keeps its claim. Ownership is proven, so the
		// address still reaches the account through the caller's grant.
		return rec.address, nil
	}
	login.Address = rec.address
	login.Confirmed = true
	login.Credible = true
	login.UpdatedAt = s.Now()
	return rec.address, nil
}

// AssignmentSnapshot returns a copy of the address assignment table. Used by
// tests to assert nothing moved after a rejected operation.
func (s *MemRegistryStore) AssignmentSnapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.addressAccounts))
	for k, v := range s.addressAccounts {
		out[k] = v
	}
	return out
}

// SeedAssignment pre-assigns an address to an account, for tests and
// imports.
func (s *MemRegistryStore) SeedAssignment(address, account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addressAccounts[address] = account
}
