package celauth

import (
	"log/slog"
	"sort"
	"time"
)

// Registry implements the claim and confirmation protocol over a registry
// store. It owns no session state; the Gate layers that on top.
type Registry struct {
	store  RegistryStore
	mailer Mailer

	// CodeTTL bounds confirmation code lifetime. Defaults to DefaultCodeTTL.
	CodeTTL time.Duration
}

// NewRegistry creates a registry over the given store and mailer.
func NewRegistry(store RegistryStore, mailer Mailer) *Registry {
	return &Registry{store: store, mailer: mailer, CodeTTL: DefaultCodeTTL}
}

// Store exposes the underlying registry store.
func (r *Registry) Store() RegistryStore {
	return r.store
}

// Login returns the read/decision view for one identity.
func (r *Registry) Login(loginid string) *LoginView {
	return &LoginView{store: r.store, loginid: loginid}
}

func (r *Registry) codeTTL() time.Duration {
	if r.CodeTTL > 0 {
		return r.CodeTTL
	}
	return DefaultCodeTTL
}

// HandleOpenID records the outcome of one successful external
// authentication: the identity is looked up or created (idempotently), and
// the asserted address becomes its current claim with the case's
// credibility. Returns the identity id.
//
// An identity that is already linked to an account keeps its existing claim;
// a different address asserted for it is logged and ignored, since
// re-keying a linked identity is not supported.
func (r *Registry) HandleOpenID(c *OpenIDCase) (string, error) {
	loginid, err := r.store.NoteOpenID(c)
	if err != nil {
		return "", err
	}
	address := NormalizeEmail(c.Email)
	if address == "" {
		return loginid, nil
	}
	login, err := r.store.GetLogin(loginid)
	if err != nil {
		return "", err
	}
	if login.Account != "" && login.HasClaim() && login.Address != address {
		slog.Warn("ignoring address re-claim on linked identity",
			"loginid", loginid, "claimed", address, "current", login.Address)
		return loginid, nil
	}
	if err := r.store.SetAddress(loginid, address, c.Credible); err != nil {
		return "", err
	}
	return loginid, nil
}

// JoinLogins reconciles the session's previous identity with a newly
// authenticated one. When exactly one of the two is linked to an account the
// other is absorbed into it. When both are linked to distinct accounts the
// join is rejected with ErrAccountConflict and nothing is mutated. When
// neither is linked nothing happens; a later CreateAccount settles it.
func (r *Registry) JoinLogins(previous, current string) error {
	if previous == "" || current == "" || previous == current {
		return nil
	}
	prevAccount, err := r.store.Account(previous)
	if err != nil {
		return err
	}
	curAccount, err := r.store.Account(current)
	if err != nil {
		return err
	}
	switch {
	case prevAccount != "" && curAccount != "" && prevAccount != curAccount:
		return ErrAccountConflict
	case prevAccount == curAccount:
		return nil
	case prevAccount != "":
		return r.store.SetAccount(current, prevAccount)
	default:
		return r.store.SetAccount(previous, curAccount)
	}
}

// RemindPendingClaim re-issues a confirmation code for the identity's
// unconfirmed claim. No code goes out when confirmation would be redundant
// (identity and address already resolve to the same account) or futile (they
// resolve to two different accounts, a conflict confirmation cannot fix).
func (r *Registry) RemindPendingClaim(loginid string) error {
	login, err := r.store.GetLogin(loginid)
	if err != nil {
		return err
	}
	if !login.HasClaim() || login.Confirmed {
		return nil
	}
	owner, err := r.store.AssignedAccount(login.Address)
	if err != nil {
		return err
	}
	if login.Account != "" && owner != "" {
		// Same account: nothing left to prove. Different accounts: a code
		// cannot resolve the conflict either way.
		return nil
	}
	return r.IssueCode(login.Address)
}

// IssueCode generates, persists and mails a confirmation code for an
// address. The code is durably recorded before the mailer runs, and a mail
// failure is logged rather than surfaced: delivery problems delay
// confirmation, they never corrupt claim state.
func (r *Registry) IssueCode(address string) error {
	code, err := NewConfirmationCode()
	if err != nil {
		return err
	}
	if err := r.store.SaveConfirmationCode(code, address, r.codeTTL()); err != nil {
		return err
	}
	if err := r.mailer.SendCode(code, address); err != nil {
		slog.Warn("confirmation code mail failed", "address", address, "err", err)
	}
	return nil
}

// ConfirmEmail validates a mailed code on behalf of an identity. A missing,
// used or expired code yields ErrInvalidConfirmationCode with no state
// change. On success the bound claim is confirmed and credible; then either
// the address joins the identity's account (ErrAddressAccountConflict when a
// different account owns it) or, for an accountless identity, the identity
// adopts the address's owning account - safe now that ownership is proven.
func (r *Registry) ConfirmEmail(code, loginid string) error {
	address, err := r.store.ConfirmEmail(loginid, code)
	if err != nil {
		return err
	}
	if address == "" {
		return ErrInvalidConfirmationCode
	}
	account, err := r.store.Account(loginid)
	if err != nil {
		return err
	}
	if account != "" {
		granted, err := r.store.AddAddress(account, address)
		if err != nil {
			return err
		}
		if !granted {
			return ErrAddressAccountConflict
		}
		return nil
	}
	owner, err := r.store.AssignedAccount(address)
	if err != nil {
		return err
	}
	if owner != "" {
		return r.store.SetAccount(loginid, owner)
	}
	return nil
}

// addresses returns the distinct claimed addresses across a set of
// identities, sorted for stable output.
func (r *Registry) addresses(loginids []string) ([]string, error) {
	seen := map[string]bool{}
	for _, lid := range loginids {
		login, err := r.store.GetLogin(lid)
		if err != nil {
			return nil, err
		}
		if login.HasClaim() {
			seen[login.Address] = true
		}
	}
	return sortedKeys(seen), nil
}

// addressesPending returns the addresses claimed by at least one of the
// identities and confirmed by none of them. An address any member has
// proven is settled for the whole equivalence class.
func (r *Registry) addressesPending(loginids []string) ([]string, error) {
	claimed := map[string]bool{}
	confirmed := map[string]bool{}
	for _, lid := range loginids {
		login, err := r.store.GetLogin(lid)
		if err != nil {
			return nil, err
		}
		if !login.HasClaim() {
			continue
		}
		claimed[login.Address] = true
		if login.Confirmed {
			confirmed[login.Address] = true
		}
	}
	pending := map[string]bool{}
	for a := range claimed {
		if !confirmed[a] {
			pending[a] = true
		}
	}
	return sortedKeys(pending), nil
}

// addressesConfirmed returns the addresses confirmed by at least one of the
// identities.
func (r *Registry) addressesConfirmed(loginids []string) ([]string, error) {
	confirmed := map[string]bool{}
	for _, lid := range loginids {
		login, err := r.store.GetLogin(lid)
		if err != nil {
			return nil, err
		}
		if login.HasClaim() && login.Confirmed {
			confirmed[login.Address] = true
		}
	}
	return sortedKeys(confirmed), nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
