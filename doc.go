// Package celauth reconciles federated login identities with durable user
// accounts, using ownership of an email address as the linking mechanism.
//
// CelAuth separates the problem into three layers: login identities, email
// address assignments, and accounts. A login identity is one externally
// authenticated identifier (an OpenID-style claimed URI). An account is the
// durable identity your application cares about. The claimed email address is
// the bridge: two login identities that can both prove ownership of the same
// address belong to the same account.
//
// # Trust model
//
// A claim arrives either "credible" (the authenticating provider is trusted
// to assert the address) or not. A credible claim on a free address is enough
// to create a brand new account. Anything weaker - an unproven claim, or any
// claim against an address some account already owns - requires a one-time
// confirmation code mailed to the address before the identity may interact
// with account state. This blocks the classic spoof where a hostile identity
// claims someone else's address to take over their account.
//
// # Architecture
//
// Registry: records identities and claims, issues and validates confirmation
// codes, and joins the account state of two identities when evidence shows
// they are the same person. Conflicting joins (two identities already linked
// to distinct accounts) are always rejected, never auto-merged.
//
// LoginView: read-only decision logic scoped to one identity - may it create
// an account, must it join an existing one, is confirmation outstanding.
//
// Gate: the session-bound command surface. Composes a Registry with a
// SessionStore and exposes Login, Logout, Claim, ConfirmEmail, CreateAccount
// and the address queries.
//
// # Basic Usage
//
// Set up a registry store and a gate per request:
//
//	import (
//	    "github.com/panyam/celauth"
//	    "github.com/panyam/celauth/stores"
//	)
//
//	store := stores.NewMemRegistryStore(&celauth.UUIDAccountant{})
//	gate := celauth.NewGate(store, sessionStore, &celauth.ConsoleMailer{})
//
//	if err := gate.Login(openidCase); err != nil { ... }
//	if ok, _ := gate.CanCreateAccount(); ok {
//	    account, err := gate.CreateAccount()
//	    ...
//	}
//
// Durable stores live in the stores/gorm and stores/gae subpackages; the
// in-memory store in stores/ is the reference implementation the tests run
// against. All collaborators (store, session, mailer, OpenID helper) are
// injected through constructors - there is no package-level mutable state.
package celauth
