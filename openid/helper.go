package openid

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/panyam/celauth"
)

// Helper drives one round trip through an external federation provider.
// Implementations are injected wherever a login flow is built; there is no
// package-level current helper.
type Helper interface {
	// InitialResponse begins the flow for userURL and returns where to send
	// the user agent next (a redirect URL, or provider-specific markup).
	InitialResponse(w http.ResponseWriter, r *http.Request, userURL, returnURL string) (string, error)

	// MakeCase completes the flow from the provider's callback request and
	// yields the authenticated case.
	MakeCase(r *http.Request) (*celauth.OpenIDCase, error)
}

// TestHelper intercepts identifiers on the example.com/org/net domains so
// integration tests and demos can authenticate without a live provider; any
// other identifier is delegated to the wrapped real helper.
//
// Conventions: a URL fragment becomes the local part of the asserted email
// ("https://example.com/joe#joe" asserts joe@example.com), and only
// example.com identities are credible.
type TestHelper struct {
	Real Helper

	mu   sync.Mutex
	next *celauth.OpenIDCase
}

// NewTestHelper wraps a real helper, which may be nil in pure-test setups.
func NewTestHelper(real Helper) *TestHelper {
	return &TestHelper{Real: real}
}

func testDomain(host string) bool {
	switch host {
	case "example.com", "example.org", "example.net":
		return true
	}
	return false
}

func (h *TestHelper) InitialResponse(w http.ResponseWriter, r *http.Request, userURL, returnURL string) (string, error) {
	u, err := url.Parse(userURL)
	if err != nil {
		return "", fmt.Errorf("bad user url %q: %w", userURL, err)
	}
	if !testDomain(u.Host) {
		if h.Real == nil {
			return "", fmt.Errorf("no real helper configured for %q", userURL)
		}
		return h.Real.InitialResponse(w, r, userURL, returnURL)
	}
	email := ""
	if u.Fragment != "" {
		email = u.Fragment + "@" + u.Host
		u.Fragment = ""
		userURL = u.String()
	}
	h.mu.Lock()
	h.next = &celauth.OpenIDCase{
		ClaimedID: userURL,
		DisplayID: userURL,
		Email:     email,
		Credible:  u.Host == "example.com",
	}
	h.mu.Unlock()
	return returnURL, nil
}

func (h *TestHelper) MakeCase(r *http.Request) (*celauth.OpenIDCase, error) {
	h.mu.Lock()
	c := h.next
	h.next = nil
	h.mu.Unlock()
	if c == nil {
		if h.Real == nil {
			return nil, fmt.Errorf("no pending test case and no real helper configured")
		}
		return h.Real.MakeCase(r)
	}
	return c, nil
}
