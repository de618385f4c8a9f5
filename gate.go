package celauth

// Gate is the session-bound command surface. It composes a Registry with a
// per-caller session: every command runs against the session's current
// identity and signals the session after any state-affecting operation.
type Gate struct {
	*Registry
	session *CelSession
}

// NewGate wires a gate from its three collaborators. For durable setups the
// store typically comes from stores/gorm or stores/gae and the session from
// an ScsSessionStore bound to the request.
func NewGate(store RegistryStore, session SessionStore, mailer Mailer) *Gate {
	return &Gate{
		Registry: NewRegistry(store, mailer),
		session:  NewCelSession(session),
	}
}

// NewGateWithRegistry shares one registry across gates, one session each.
func NewGateWithRegistry(registry *Registry, session SessionStore) *Gate {
	return &Gate{Registry: registry, session: NewCelSession(session)}
}

// LoginID returns the session's current identity, "" when anonymous.
func (g *Gate) LoginID() string {
	return g.session.LoginID()
}

// Account returns the current identity's linked account, "" when anonymous
// or unlinked.
func (g *Gate) Account() (string, error) {
	loginid := g.LoginID()
	if loginid == "" {
		return "", nil
	}
	return g.store.Account(loginid)
}

// View returns the decision view for the current identity, nil when
// anonymous.
func (g *Gate) View() *LoginView {
	loginid := g.LoginID()
	if loginid == "" {
		return nil
	}
	return g.Registry.Login(loginid)
}

// loginids returns the equivalence class of the current identity: every
// identity reachable via its account, or just itself while unlinked.
func (g *Gate) loginids() ([]string, error) {
	loginid := g.LoginID()
	if loginid == "" {
		return nil, nil
	}
	account, err := g.store.Account(loginid)
	if err != nil {
		return nil, err
	}
	if account == "" {
		return []string{loginid}, nil
	}
	return g.store.LoginIDs(account)
}

// Login switches the session to a freshly authenticated identity. The
// identity is recorded along with its claimed address, its account state is
// joined with the previous session identity's, and a confirmation code goes
// out if the claim still needs proof. On ErrAccountConflict the session is
// left pointing at the previous identity.
func (g *Gate) Login(c *OpenIDCase) error {
	loginid, err := g.HandleOpenID(c)
	if err != nil {
		return err
	}
	if err := g.JoinLogins(g.LoginID(), loginid); err != nil {
		return err
	}
	if err := g.RemindPendingClaim(loginid); err != nil {
		return err
	}
	return g.session.SetLoginID(loginid)
}

// Logout clears the session identity. Durable state is untouched.
func (g *Gate) Logout() error {
	return g.session.Clear()
}

// Claim issues a confirmation code for an address. It works while anonymous;
// when a session identity exists the address additionally becomes its
// current (uncredible) claim, subject to the linked-identity re-claim rule.
func (g *Gate) Claim(address string) error {
	address = NormalizeEmail(address)
	if loginid := g.LoginID(); loginid != "" {
		login, err := g.store.GetLogin(loginid)
		if err != nil {
			return err
		}
		linkedElsewhere := login.Account != "" && login.HasClaim() && login.Address != address
		if !linkedElsewhere {
			if err := g.store.SetAddress(loginid, address, false); err != nil {
				return err
			}
		}
	}
	return g.IssueCode(address)
}

// ConfirmationRequired reports whether the current identity must prove its
// claim before account interactions may proceed. Anonymous callers have
// nothing to prove.
func (g *Gate) ConfirmationRequired() (bool, error) {
	view := g.View()
	if view == nil {
		return false, nil
	}
	return view.ConfirmationRequired()
}

// CanCreateAccount reports whether the current identity may originate a new
// account. False while anonymous.
func (g *Gate) CanCreateAccount() (bool, error) {
	view := g.View()
	if view == nil {
		return false, nil
	}
	return view.CanCreateAccount()
}

// CreateAccount allocates a new account for the current identity and
// assigns its free claimed address to it. Fails with ErrNotLoggedIn,
// ErrAccountAlreadyExists, or a generic eligibility AuthError.
func (g *Gate) CreateAccount() (string, error) {
	view := g.View()
	if view == nil {
		return "", ErrNotLoggedIn
	}
	account, err := view.Account()
	if err != nil {
		return "", err
	}
	if account != "" {
		return "", ErrAccountAlreadyExists
	}
	ok, err := view.CanCreateAccount()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", NewAuthError(ErrCodeNotEligible, "account can not be created")
	}
	account, err = view.CreateAccount()
	if err != nil {
		return "", err
	}
	return account, g.session.AccountUpdate()
}

// ConfirmEmail validates a mailed code for the current identity and
// refreshes the session's authorization projection, since an account may
// have just become linked.
func (g *Gate) ConfirmEmail(code string) error {
	loginid := g.LoginID()
	if loginid == "" {
		return ErrNotLoggedIn
	}
	if err := g.Registry.ConfirmEmail(code, loginid); err != nil {
		return err
	}
	return g.session.AccountUpdate()
}

// Addresses returns the distinct addresses claimed across the current
// identity's equivalence class.
func (g *Gate) Addresses() ([]string, error) {
	loginids, err := g.loginids()
	if err != nil {
		return nil, err
	}
	return g.addresses(loginids)
}

// AddressesPending returns the class's addresses still awaiting proof: an
// address counts as pending only while no identity in the class has
// confirmed it.
func (g *Gate) AddressesPending() ([]string, error) {
	loginids, err := g.loginids()
	if err != nil {
		return nil, err
	}
	return g.addressesPending(loginids)
}

// AddressesConfirmed returns the class's addresses proven by at least one
// identity.
func (g *Gate) AddressesConfirmed() ([]string, error) {
	loginids, err := g.loginids()
	if err != nil {
		return nil, err
	}
	return g.addressesConfirmed(loginids)
}

// AddressesJoinable lists the credible claimed addresses of the current
// accountless identity that some account already owns - the accounts this
// identity could join by proving or re-authenticating. Empty once linked.
func (g *Gate) AddressesJoinable() ([]string, error) {
	view := g.View()
	if view == nil {
		return nil, nil
	}
	account, err := view.Account()
	if err != nil || account != "" {
		return nil, err
	}
	login, err := g.store.GetLogin(view.LoginID())
	if err != nil {
		return nil, err
	}
	if !login.HasClaim() || !login.Credible {
		return nil, nil
	}
	free, err := g.store.IsFreeAddress(login.Address)
	if err != nil {
		return nil, err
	}
	if free {
		return nil, nil
	}
	return []string{login.Address}, nil
}

// DisclaimPending withdraws every unconfirmed claim across the current
// identity's equivalence class and releases any pending assignment those
// addresses hold on the account. Confirmed claims are untouched.
func (g *Gate) DisclaimPending() error {
	loginids, err := g.loginids()
	if err != nil {
		return err
	}
	account, err := g.Account()
	if err != nil {
		return err
	}
	if account != "" {
		pending, err := g.addressesPending(loginids)
		if err != nil {
			return err
		}
		for _, address := range pending {
			if err := g.store.RemoveAddress(account, address); err != nil {
				return err
			}
		}
	}
	for _, lid := range loginids {
		if err := g.store.Disclaim(lid); err != nil {
			return err
		}
	}
	return g.session.AccountUpdate()
}
