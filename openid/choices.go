// Package openid holds the OpenID-style provider facade the celauth gate
// consumes. The facade is an injected collaborator: the gate only ever sees
// the OpenIDCase a Helper produces, never the protocol underneath.
package openid

import "net/url"

// Provider is one federation choice offered to users.
type Provider struct {
	ID   string // short stable id ("google")
	Text string // human label ("Google")
	URL  string // the provider's identifier endpoint
}

// Choices is an ordered provider table with credibility lookups: an email
// asserted by a claimed identifier hosted on a listed provider's domain
// counts as credible.
type Choices struct {
	providers []Provider
}

// NewChoices creates a provider table.
func NewChoices(providers []Provider) *Choices {
	return &Choices{providers: providers}
}

// IDs returns every provider id, each prefixed with idPrefix.
func (c *Choices) IDs(idPrefix string) []string {
	out := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, idPrefix+p.ID)
	}
	return out
}

// Texts returns the human labels in table order.
func (c *Choices) Texts() []string {
	out := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, p.Text)
	}
	return out
}

// URLsByID maps prefixed provider ids to their endpoints.
func (c *Choices) URLsByID(idPrefix string) map[string]string {
	out := make(map[string]string, len(c.providers))
	for _, p := range c.providers {
		out[idPrefix+p.ID] = p.URL
	}
	return out
}

// CredibleEmail reports whether an email asserted under claimedID deserves
// credibility: true when the claimed identifier's host matches a listed
// provider's host.
func (c *Choices) CredibleEmail(claimedID, email string) bool {
	claimed, err := url.Parse(claimedID)
	if err != nil {
		return false
	}
	for _, p := range c.providers {
		endpoint, err := url.Parse(p.URL)
		if err != nil {
			continue
		}
		if claimed.Host == endpoint.Host {
			return true
		}
	}
	return false
}

// DefaultProviders is the stock provider table.
var DefaultProviders = NewChoices([]Provider{
	{ID: "google", Text: "Google", URL: "https://www.google.com/accounts/o8/id"},
	{ID: "yahoo", Text: "Yahoo!", URL: "https://me.yahoo.com/"},
	{ID: "aol", Text: "AOL", URL: "https://openid.aol.com/"},
	{ID: "stackexchange", Text: "StackExchange", URL: "https://openid.stackexchange.com/"},
	{ID: "launchpad", Text: "Launchpad", URL: "https://login.launchpad.net/"},
	{ID: "intuit", Text: "Intuit", URL: "https://openid.intuit.com/openid/xrds"},
})
