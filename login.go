package celauth

import (
	"errors"
	"fmt"
	"log/slog"
)

// LoginView is the read/decision view scoped to one login identity. All
// methods read through to the registry store, so a view stays accurate
// across the operations of a request.
type LoginView struct {
	store   RegistryStore
	loginid string
}

// LoginID returns the identity this view is scoped to.
func (v *LoginView) LoginID() string {
	return v.loginid
}

func (v *LoginView) login() (*LoginIdentity, error) {
	return v.store.GetLogin(v.loginid)
}

// Account returns the identity's linked account, "" when unlinked.
func (v *LoginView) Account() (string, error) {
	return v.store.Account(v.loginid)
}

// Address returns the currently claimed address, "" when none.
func (v *LoginView) Address() (string, error) {
	login, err := v.login()
	if err != nil {
		return "", err
	}
	return login.Address, nil
}

// Confirmed reports whether the current claim has been proven by code.
func (v *LoginView) Confirmed() (bool, error) {
	login, err := v.login()
	if err != nil {
		return false, err
	}
	return login.Confirmed, nil
}

// Credible reports whether the current claim was vouched for by the
// authenticating provider.
func (v *LoginView) Credible() (bool, error) {
	login, err := v.login()
	if err != nil {
		return false, err
	}
	return login.Credible, nil
}

// MustJoinAccount reports whether this identity cannot originate a new
// account because its claimed address already belongs to one: the identity
// has to be joined to the address's owner instead.
func (v *LoginView) MustJoinAccount() (bool, error) {
	login, err := v.login()
	if err != nil {
		return false, err
	}
	if login.Account != "" || !login.HasClaim() {
		return false, nil
	}
	owner, err := v.store.AssignedAccount(login.Address)
	if err != nil {
		return false, err
	}
	return owner != "", nil
}

// ConfirmationRequired reports whether proof of address ownership is
// mandatory before any account interaction proceeds. That is the case while
// the claim is unconfirmed and either some account already owns the address
// (an unproven claim there could be an impersonation attempt) or the claim
// arrived without provider credibility.
func (v *LoginView) ConfirmationRequired() (bool, error) {
	login, err := v.login()
	if err != nil {
		return false, err
	}
	if !login.HasClaim() || login.Confirmed {
		return false, nil
	}
	if !login.Credible {
		return true, nil
	}
	owner, err := v.store.AssignedAccount(login.Address)
	if err != nil {
		return false, err
	}
	return owner != "", nil
}

// CanCreateAccount reports whether the identity may originate a brand new
// account: it has none yet, its claimed address (if any) is free, and no
// confirmation is outstanding.
func (v *LoginView) CanCreateAccount() (bool, error) {
	login, err := v.login()
	if err != nil {
		return false, err
	}
	if login.Account != "" {
		return false, nil
	}
	required, err := v.ConfirmationRequired()
	if err != nil || required {
		return false, err
	}
	if !login.HasClaim() {
		return true, nil
	}
	return v.store.IsFreeAddress(login.Address)
}

// CreateAccount allocates a new account for the identity and, when the
// claimed address is still free, assigns the address to it. Eligibility is
// the caller's contract (check CanCreateAccount first); an accountant that
// cannot allocate an id is a programming error, not a user-facing outcome.
func (v *LoginView) CreateAccount() (string, error) {
	account, err := v.store.CreateAccount(v.loginid)
	if err != nil {
		return "", fmt.Errorf("accountant could not allocate an account for %s: %w", v.loginid, err)
	}
	login, err := v.login()
	if err != nil {
		return "", err
	}
	if login.HasClaim() {
		err := v.store.Assign(login.Address, account)
		if errors.Is(err, ErrAddressNotFree) {
			// Lost a race for the address. The account stands; the address
			// stays with whoever won.
			slog.Warn("claimed address taken during account creation",
				"loginid", v.loginid, "address", login.Address)
		} else if err != nil {
			return "", err
		}
	}
	return account, nil
}
