package openid

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/panyam/celauth"
)

// LiveHelper completes a real provider exchange over golang.org/x/oauth2.
// It authenticates against one configured endpoint; applications offering
// several providers hold one LiveHelper per Choices entry.
type LiveHelper struct {
	// Config carries the client credentials and the provider endpoint.
	Config *oauth2.Config

	// UserInfoURL is where the provider serves the authenticated profile
	// (must include an email field).
	UserInfoURL string

	// Providers decides claim credibility. Defaults to DefaultProviders.
	Providers *Choices

	// StateCookie names the CSRF state cookie. Defaults to "oauthstate".
	StateCookie string
}

func (h *LiveHelper) stateCookie() string {
	if h.StateCookie == "" {
		return "oauthstate"
	}
	return h.StateCookie
}

func (h *LiveHelper) choices() *Choices {
	if h.Providers == nil {
		return DefaultProviders
	}
	return h.Providers
}

// InitialResponse sets the state cookie and returns the provider's
// authorization URL; userURL is ignored since the endpoint is fixed by
// Config.
func (h *LiveHelper) InitialResponse(w http.ResponseWriter, r *http.Request, userURL, returnURL string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:    h.stateCookie(),
		Value:   state,
		Path:    "/",
		Expires: time.Now().Add(time.Hour),
	})
	return h.Config.AuthCodeURL(state), nil
}

// MakeCase validates the state cookie, exchanges the callback code and maps
// the provider's userinfo document onto an OpenIDCase.
func (h *LiveHelper) MakeCase(r *http.Request) (*celauth.OpenIDCase, error) {
	cookie, err := r.Cookie(h.stateCookie())
	if err != nil || cookie.Value == "" {
		return nil, fmt.Errorf("oauth state cookie missing")
	}
	if r.FormValue("state") != cookie.Value {
		return nil, fmt.Errorf("oauth state mismatch")
	}
	token, err := h.Config.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	userInfo, err := h.fetchUserInfo(r, token)
	if err != nil {
		return nil, err
	}
	claimedID, _ := userInfo["sub"].(string)
	if claimedID == "" {
		claimedID, _ = userInfo["id"].(string)
	}
	if claimedID == "" {
		return nil, fmt.Errorf("provider userinfo has no subject")
	}
	claimedID = h.Config.Endpoint.AuthURL + "#" + claimedID
	email, _ := userInfo["email"].(string)
	display := claimedID
	if name, ok := userInfo["name"].(string); ok && name != "" {
		display = name
	}
	return &celauth.OpenIDCase{
		ClaimedID: claimedID,
		DisplayID: display,
		Email:     email,
		Credible:  email != "" && h.choices().CredibleEmail(h.Config.Endpoint.AuthURL, email),
	}, nil
}

func (h *LiveHelper) fetchUserInfo(r *http.Request, token *oauth2.Token) (map[string]any, error) {
	client := h.Config.Client(r.Context(), token)
	resp, err := client.Get(h.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("userinfo fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo fetch returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var userInfo map[string]any
	if err := json.Unmarshal(data, &userInfo); err != nil {
		return nil, fmt.Errorf("bad userinfo payload: %w", err)
	}
	return userInfo, nil
}
