package gorm

import (
	"time"

	"github.com/panyam/celauth"
)

// LoginIdentityModel is the GORM model for login identities.
type LoginIdentityModel struct {
	ClaimedID string    `gorm:"primaryKey;size:255"`
	DisplayID string    `gorm:"size:255"`
	Account   string    `gorm:"size:64;index"`
	Address   string    `gorm:"size:255"`
	Confirmed bool      `gorm:"default:false"`
	Credible  bool      `gorm:"default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (LoginIdentityModel) TableName() string {
	return "login_identities"
}

func (m *LoginIdentityModel) ToLogin() *celauth.LoginIdentity {
	return &celauth.LoginIdentity{
		ID:        m.ClaimedID,
		DisplayID: m.DisplayID,
		Account:   m.Account,
		Address:   m.Address,
		Confirmed: m.Confirmed,
		Credible:  m.Credible,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// EmailAddressModel is the GORM model for address assignment. A row with an
// empty Account means the address is known but free.
type EmailAddressModel struct {
	Address   string    `gorm:"primaryKey;size:255"`
	Account   string    `gorm:"size:64;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (EmailAddressModel) TableName() string {
	return "email_addresses"
}

// ConfirmationCodeModel is the GORM model for live confirmation codes.
type ConfirmationCodeModel struct {
	Code      string    `gorm:"primaryKey;size:64"`
	Address   string    `gorm:"size:255;index"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ConfirmationCodeModel) TableName() string {
	return "confirmation_codes"
}
