// Package gorm provides the relational celauth.RegistryStore. Free-address
// assignment and address granting are compare-and-set UPDATEs so concurrent
// claimers cannot both win; code consumption rides on the atomicity of a
// single conditional DELETE.
package gorm

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/panyam/celauth"
)

// AutoMigrate runs database migrations for all celauth tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&LoginIdentityModel{},
		&EmailAddressModel{},
		&ConfirmationCodeModel{},
	)
}

// RegistryStore implements celauth.RegistryStore using GORM.
type RegistryStore struct {
	db         *gorm.DB
	accountant celauth.Accountant
	codes      celauth.CodeStore
}

// Option configures a RegistryStore.
type Option func(*RegistryStore)

// WithCodeStore delegates confirmation-code storage to an external backend,
// typically the TTL-native store in stores/redis. Without it codes live in
// the confirmation_codes table.
func WithCodeStore(codes celauth.CodeStore) Option {
	return func(s *RegistryStore) { s.codes = codes }
}

// NewRegistryStore creates a GORM-backed registry store.
func NewRegistryStore(db *gorm.DB, accountant celauth.Accountant, opts ...Option) *RegistryStore {
	out := &RegistryStore{db: db, accountant: accountant}
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// =============================================================================
// Login identities
// =============================================================================

func (s *RegistryStore) NoteOpenID(c *celauth.OpenIDCase) (string, error) {
	model := &LoginIdentityModel{ClaimedID: c.ClaimedID}
	err := s.db.Where("claimed_id = ?", c.ClaimedID).
		Attrs(&LoginIdentityModel{ClaimedID: c.ClaimedID, DisplayID: c.DisplayID}).
		FirstOrCreate(model).Error
	if err != nil {
		return "", err
	}
	return model.ClaimedID, nil
}

func (s *RegistryStore) getModel(loginid string) (*LoginIdentityModel, error) {
	var model LoginIdentityModel
	err := s.db.Where("claimed_id = ?", loginid).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, celauth.ErrLoginNotFound
	}
	if err != nil {
		return nil, err
	}
	return &model, nil
}

func (s *RegistryStore) GetLogin(loginid string) (*celauth.LoginIdentity, error) {
	model, err := s.getModel(loginid)
	if err != nil {
		return nil, err
	}
	return model.ToLogin(), nil
}

func (s *RegistryStore) LoginIDs(account string) ([]string, error) {
	var ids []string
	err := s.db.Model(&LoginIdentityModel{}).
		Where("account = ?", account).
		Order("claimed_id").
		Pluck("claimed_id", &ids).Error
	return ids, err
}

func (s *RegistryStore) Account(loginid string) (string, error) {
	model, err := s.getModel(loginid)
	if errors.Is(err, celauth.ErrLoginNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return model.Account, nil
}

func (s *RegistryStore) SetAccount(loginid, account string) error {
	res := s.db.Model(&LoginIdentityModel{}).
		Where("claimed_id = ?", loginid).
		Update("account", account)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return celauth.ErrLoginNotFound
	}
	return nil
}

func (s *RegistryStore) SetAddress(loginid, address string, credible bool) error {
	model, err := s.getModel(loginid)
	if err != nil {
		return err
	}
	updates := map[string]any{"address": address}
	if model.Address == address {
		updates["credible"] = model.Credible || credible
	} else {
		updates["credible"] = credible
		updates["confirmed"] = false
	}
	return s.db.Model(model).Updates(updates).Error
}

func (s *RegistryStore) Disclaim(loginid string) error {
	return s.db.Model(&LoginIdentityModel{}).
		Where("claimed_id = ? AND confirmed = ?", loginid, false).
		Updates(map[string]any{"address": "", "credible": false}).Error
}

func (s *RegistryStore) CreateAccount(loginid string) (string, error) {
	model, err := s.getModel(loginid)
	if err != nil {
		return "", err
	}
	var addresses []string
	if model.Address != "" {
		addresses = append(addresses, model.Address)
	}
	account, err := s.accountant.CreateAccount(addresses)
	if err != nil {
		return "", err
	}
	if err := s.db.Model(model).Update("account", account).Error; err != nil {
		return "", err
	}
	return account, nil
}

// =============================================================================
// Address assignment
// =============================================================================

func (s *RegistryStore) ensureAddressRow(address string) error {
	model := &EmailAddressModel{Address: address}
	return s.db.Where("address = ?", address).FirstOrCreate(model).Error
}

func (s *RegistryStore) IsFreeAddress(address string) (bool, error) {
	account, err := s.AssignedAccount(address)
	return account == "", err
}

func (s *RegistryStore) Assign(address, account string) error {
	if err := s.ensureAddressRow(address); err != nil {
		return err
	}
	// Assign iff currently free; the WHERE clause is the compare-and-set.
	res := s.db.Model(&EmailAddressModel{}).
		Where("address = ? AND account = ?", address, "").
		Update("account", account)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return celauth.ErrAddressNotFree
	}
	return nil
}

func (s *RegistryStore) AssignedAccount(address string) (string, error) {
	var model EmailAddressModel
	err := s.db.Where("address = ?", address).First(&model).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	if model.Account != "" {
		return model.Account, nil
	}
	// Fall back to the host application's ledger and cache a positive hit.
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
	return s.db.Model(&EmailAddressModel{}).
		Where("address = ? AND account = ?", address, account).
		Update("account", "").Error
}

// =============================================================================
// Confirmation codes
// =============================================================================

func (s *RegistryStore) SaveConfirmationCode(code, address string, ttl time.Duration) error {
	if s.codes != nil {
		return s.codes.SaveConfirmationCode(code, address, ttl)
	}
	model := &ConfirmationCodeModel{
		Code:      code,
		Address:   address,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.db.Create(model).Error; err != nil {
		return fmt.Errorf("failed to save confirmation code: %w", err)
	}
	return nil
}

// consumeCode removes the code and returns its address while it was live.
// The conditional DELETE makes consumption at-most-once: of two concurrent
// confirmations only one sees RowsAffected == 1.
func (s *RegistryStore) consumeCode(code string) (string, error) {
	if s.codes != nil {
		return s.codes.ConsumeConfirmationCode(code)
	}
	var model ConfirmationCodeModel
	err := s.db.Where("code = ?", code).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	res := s.db.Where("code = ?", code).Delete(&ConfirmationCodeModel{})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		// Someone else consumed it between the read and the delete.
		return "", nil
	}
	if time.Now().After(model.ExpiresAt) {
		return "", nil
	}
	return model.Address, nil
}

func (s *RegistryStore) ConfirmEmail(loginid, code string) (string, error) {
	model, err := s.getModel(loginid)
	if err != nil {
		return "", err
	}
	address, err := s.consumeCode(code)
	if err != nil || address == "" {
		return "", err
	}
	if model.Account != "" && model.Address != "" && model.Address != address {
		// A linked identity keeps its claim; the proven address is granted
		// to the account by the caller instead.
		return address, nil
	}
	err = s.db.Model(&LoginIdentityModel{}).
		Where("claimed_id = ?", loginid).
		Updates(map[string]any{
			"address":   address,
			"confirmed": true,
			"credible":  true,
		}).Error
	if err != nil {
		return "", err
	}
	return address, nil
}
