package stores

import "sync"

// MemSessionStore is a single-caller in-memory celauth.SessionStore. It
// counts Update calls so tests can assert the flush hook fired.
type MemSessionStore struct {
	mu      sync.Mutex
	loginid string

	// Updates counts how many times Update has been invoked.
	Updates int
}

func NewMemSessionStore() *MemSessionStore {
	return &MemSessionStore{}
}

func (s *MemSessionStore) LoginID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginid
}

func (s *MemSessionStore) SetLoginID(loginid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginid = loginid
	return nil
}

func (s *MemSessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginid = ""
	return nil
}

func (s *MemSessionStore) Update() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Updates++
	return nil
}
