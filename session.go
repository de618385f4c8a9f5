package celauth

import (
	"context"
	"fmt"

	"github.com/alexedwards/scs/v2"
)

// CelSession wraps a SessionStore with the invariants the gate relies on:
// at most one current login identity, and Update fired on account changes.
type CelSession struct {
	store SessionStore
}

// NewCelSession wraps a session store.
func NewCelSession(store SessionStore) *CelSession {
	return &CelSession{store: store}
}

// LoginID returns the current identity, "" when anonymous.
func (s *CelSession) LoginID() string {
	return s.store.LoginID()
}

// SetLoginID makes loginid the current identity.
func (s *CelSession) SetLoginID(loginid string) error {
	if loginid == "" {
		return fmt.Errorf("refusing to set empty loginid; use Clear to log out")
	}
	if err := s.store.SetLoginID(loginid); err != nil {
		return err
	}
	return s.store.Update()
}

// Clear drops all session authentication state.
func (s *CelSession) Clear() error {
	if err := s.store.Clear(); err != nil {
		return err
	}
	return s.store.Update()
}

// AccountUpdate tells the session its identity's account linkage may have
// changed so any cached authorization projection can be refreshed.
func (s *CelSession) AccountUpdate() error {
	return s.store.Update()
}

// ScsSessionStore adapts an alexedwards/scs session manager to the
// SessionStore contract. One value is constructed per request, bound to the
// request context the manager's LoadAndSave middleware populated; scs
// commits the session when the middleware unwinds, so Update is a no-op.
type ScsSessionStore struct {
	Manager *scs.SessionManager
	Ctx     context.Context

	// Key is the session key holding the loginid. Defaults to
	// "celauthLoginID".
	Key string
}

// NewScsSessionStore binds a session manager to one request's context.
func NewScsSessionStore(manager *scs.SessionManager, ctx context.Context) *ScsSessionStore {
	return &ScsSessionStore{Manager: manager, Ctx: ctx}
}

func (s *ScsSessionStore) key() string {
	if s.Key == "" {
		return "celauthLoginID"
	}
	return s.Key
}

func (s *ScsSessionStore) LoginID() string {
	return s.Manager.GetString(s.Ctx, s.key())
}

func (s *ScsSessionStore) SetLoginID(loginid string) error {
	s.Manager.Put(s.Ctx, s.key(), loginid)
	return nil
}

func (s *ScsSessionStore) Clear() error {
	s.Manager.Remove(s.Ctx, s.key())
	return nil
}

func (s *ScsSessionStore) Update() error {
	return nil
}
