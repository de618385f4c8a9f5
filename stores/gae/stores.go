// Package gae provides a Google Cloud Datastore backed celauth.RegistryStore.
// Datastore transactions supply the compare-and-set semantics for address
// assignment and one-shot code consumption.
package gae

import (
	"context"
	"errors"
	"sort"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	"github.com/panyam/celauth"
)

// Kind constants for Datastore entities
const (
	KindLoginIdentity    = "LoginIdentity"
	KindEmailAddress     = "EmailAddress"
	KindConfirmationCode = "ConfirmationCode"
)

// LoginEntity is the Datastore shape of a login identity. The entity key
// name is the claimed id.
type LoginEntity struct {
	ClaimedID string    `datastore:"claimed_id"`
	DisplayID string    `datastore:"display_id,noindex"`
	Account   string    `datastore:"account"`
	Address   string    `datastore:"address"`
	Confirmed bool      `datastore:"confirmed,noindex"`
	Credible  bool      `datastore:"credible,noindex"`
	CreatedAt time.Time `datastore:"created_at,noindex"`
	UpdatedAt time.Time `datastore:"updated_at,noindex"`
}

func (e *LoginEntity) toLogin() *celauth.LoginIdentity {
	return &celauth.LoginIdentity{
		ID:        e.ClaimedID,
		DisplayID: e.DisplayID,
		Account:   e.Account,
		Address:   e.Address,
		Confirmed: e.Confirmed,
		Credible:  e.Credible,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// AddressEntity records one address assignment; key name is the address.
type AddressEntity struct {
	Address   string    `datastore:"address"`
	Account   string    `datastore:"account"`
	UpdatedAt time.Time `datastore:"updated_at,noindex"`
}

// CodeEntity is one live confirmation code; key name is the code value.
type CodeEntity struct {
	Code      string    `datastore:"code,noindex"`
	Address   string    `datastore:"address,noindex"`
	ExpiresAt time.Time `datastore:"expires_at,noindex"`
	CreatedAt time.Time `datastore:"created_at,noindex"`
}

// RegistryStore implements celauth.RegistryStore using Cloud Datastore.
type RegistryStore struct {
	client     *datastore.Client
	namespace  string
	accountant celauth.Accountant
	ctx        context.Context
}

// NewRegistryStore creates a Datastore-backed registry store.
func NewRegistryStore(client *datastore.Client, namespace string, accountant celauth.Accountant) *RegistryStore {
	return &RegistryStore{
		client:     client,
		namespace:  namespace,
		accountant: accountant,
		ctx:        context.Background(),
	}
}

// WithContext returns a copy of the store bound to the given context.
func (s *RegistryStore) WithContext(ctx context.Context) *RegistryStore {
	return &RegistryStore{
		client:     s.client,
		namespace:  s.namespace,
		accountant: s.accountant,
		ctx:        ctx,
	}
}

func (s *RegistryStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

// =============================================================================
// Login identities
// =============================================================================

func (s *RegistryStore) NoteOpenID(c *celauth.OpenIDCase) (string, error) {
	key := s.namespacedKey(KindLoginIdentity, c.ClaimedID)
	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		var entity LoginEntity
		err := tx.Get(key, &entity)
		if err == nil {
			return nil
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		now := time.Now()
		_, err = tx.Put(key, &LoginEntity{
			ClaimedID: c.ClaimedID,
			DisplayID: c.DisplayID,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return c.ClaimedID, nil
}

func (s *RegistryStore) getEntity(loginid string) (*LoginEntity, error) {
	var entity LoginEntity
	err := s.client.Get(s.ctx, s.namespacedKey(KindLoginIdentity, loginid), &entity)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, celauth.ErrLoginNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (s *RegistryStore) GetLogin(loginid string) (*celauth.LoginIdentity, error) {
	entity, err := s.getEntity(loginid)
	if err != nil {
		return nil, err
	}
	return entity.toLogin(), nil
}

func (s *RegistryStore) LoginIDs(account string) ([]string, error) {
	query := datastore.NewQuery(KindLoginIdentity).
		Namespace(s.namespace).
		FilterField("account", "=", account).
		KeysOnly()
	var ids []string
	it := s.client.Run(s.ctx, query)
	for {
		key, err := it.Next(nil)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, key.Name)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RegistryStore) Account(loginid string) (string, error) {
	entity, err := s.getEntity(loginid)
	if errors.Is(err, celauth.ErrLoginNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return entity.Account, nil
}

func (s *RegistryStore) mutateLogin(loginid string, mutate func(e *LoginEntity) error) error {
	key := s.namespacedKey(KindLoginIdentity, loginid)
	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		var entity LoginEntity
		if err := tx.Get(key, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return celauth.ErrLoginNotFound
			}
			return err
		}
		if err := mutate(&entity); err != nil {
			return err
		}
		entity.UpdatedAt = time.Now()
		_, err := tx.Put(key, &entity)
		return err
	})
	return err
}

func (s *RegistryStore) SetAccount(loginid, account string) error {
	return s.mutateLogin(loginid, func(e *LoginEntity) error {
		e.Account = account
		return nil
	})
}

func (s *RegistryStore) SetAddress(loginid, address string, credible bool) error {
	return s.mutateLogin(loginid, func(e *LoginEntity) error {
		if e.Address == address {
			e.Credible = e.Credible || credible
		} else {
			e.Address = address
			e.Credible = credible
			e.Confirmed = false
		}
		return nil
	})
}

func (s *RegistryStore) Disclaim(loginid string) error {
	return s.mutateLogin(loginid, func(e *LoginEntity) error {
		if !e.Confirmed {
			e.Address = ""
			e.Credible = false
		}
		return nil
	})
}

func (s *RegistryStore) CreateAccount(loginid string) (string, error) {
	entity, err := s.getEntity(loginid)
	if err != nil {
		return "", err
	}
	var addresses []string
	if entity.Address != "" {
		addresses = append(addresses, entity.Address)
	}
	account, err := s.accountant.CreateAccount(addresses)
	if err != nil {
		return "", err
	}
	err = s.mutateLogin(loginid, func(e *LoginEntity) error {
		e.Account = account
		return nil
	})
	if err != nil {
		return "", err
	}
	return account, nil
}

// =============================================================================
// Address assignment
// =============================================================================

func (s *RegistryStore) IsFreeAddress(address string) (bool, error) {
	account, err := s.AssignedAccount(address)
	return account == "", err
}

func (s *RegistryStore) Assign(address, account string) error {
	key := s.namespacedKey(KindEmailAddress, address)
	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		var entity AddressEntity
		err := tx.Get(key, &entity)
		if err != nil && !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		if entity.Account != "" {
			return celauth.ErrAddressNotFree
		}
		_, err = tx.Put(key, &AddressEntity{
			Address:   address,
			Account:   account,
			UpdatedAt: time.Now(),
		})
		return err
	})
	return err
}

func (s *RegistryStore) AssignedAccount(address string) (string, error) {
	var entity AddressEntity
	err := s.client.Get(s.ctx, s.namespacedKey(KindEmailAddress, address), &entity)
	if err != nil && !errors.Is(err, datastore.ErrNoSuchEntity) {
		return "", err
	}
	if entity.Account != "" {
		return entity.Account, nil
	}
	account, err := s.accountant.AssignedAccount(address)
	if err != nil {
		return "", err
	}
	if account != "" {
		if err := s.Assign(address, account); err != nil && !errors.Is(err, celauth.ErrAddressNotFree) {
			return "", err
		}
	}
	return account, nil
}

func (s *RegistryStore) AddAddress(account, address string) (bool, error) {
	err := s.Assign(address, account)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, celauth.ErrAddressNotFree) {
		return false, err
	}
	owner, err := s.AssignedAccount(address)
	if err != nil {
		return false, err
	}
	return owner == account, nil
}

func (s *RegistryStore) RemoveAddress(account, address string) error {
	key := s.namespacedKey(KindEmailAddress, address)
	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		var entity AddressEntity
		err := tx.Get(key, &entity)
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil
		}
		if err != nil {
			return err
		}
		if entity.Account != account {
			return nil
		}
		return tx.Delete(key)
	})
	return err
}

// =============================================================================
// Confirmation codes
// =============================================================================

func (s *RegistryStore) SaveConfirmationCode(code, address string, ttl time.Duration) error {
	now := time.Now()
	key := s.namespacedKey(KindConfirmationCode, code)
	_, err := s.client.Put(s.ctx, key, &CodeEntity{
		Code:      code,
		Address:   address,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	return err
}

func (s *RegistryStore) ConfirmEmail(loginid, code string) (string, error) {
	if _, err := s.getEntity(loginid); err != nil {
		return "", err
	}
	codeKey := s.namespacedKey(KindConfirmationCode, code)
	address := ""
	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		address = ""
		var entity CodeEntity
		err := tx.Get(codeKey, &entity)
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil
		}
		if err != nil {
			return err
		}
		// Single use: the delete and the claim update commit together.
		if err := tx.Delete(codeKey); err != nil {
			return err
		}
		if time.Now().After(entity.ExpiresAt) {
			return nil
		}
		loginKey := s.namespacedKey(KindLoginIdentity, loginid)
		var login LoginEntity
		if err := tx.Get(loginKey, &login); err != nil {
			return err
		}
		address = entity.Address
		if login.Account != "" && login.Address != "" && login.Address != address {
			// A linked identity keeps its claim; the proven address is
			// granted to the account by the caller instead.
			return nil
		}
		login.Address = entity.Address
		login.Confirmed = true
		login.Credible = true
		login.UpdatedAt = time.Now()
		_, err = tx.Put(loginKey, &login)
		return err
	})
	if err != nil {
		return "", err
	}
	return address, nil
}
