package celauth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/panyam/celauth"
	"github.com/panyam/celauth/stores"
)

func newRegistry(t *testing.T) (*celauth.Registry, *stores.MemRegistryStore, *recordingMailer) {
	t.Helper()
	store := stores.NewMemRegistryStore(&stores.SequenceAccountant{})
	mailer := &recordingMailer{}
	return celauth.NewRegistry(store, mailer), store, mailer
}

func TestHandleOpenIDIdempotent(t *testing.T) {
	registry, store, _ := newRegistry(t)
	c := newCase("com", "joe")

	first, err := registry.HandleOpenID(c)
	if err != nil {
		t.Fatal(err)
	}
	second, err := registry.HandleOpenID(c)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("HandleOpenID returned %q then %q", first, second)
	}
	login, err := store.GetLogin(first)
	if err != nil {
		t.Fatal(err)
	}
	if login.Address != "joe@example.com" || !login.Credible {
		t.Errorf("claim state = %+v", login)
	}
}

func TestHandleOpenIDPreservesConfirmedClaim(t *testing.T) {
	registry, store, mailer := newRegistry(t)
	c := newCase("org", "joe")
	loginid, err := registry.HandleOpenID(c)
	if err != nil {
		t.Fatal(err)
	}
	if err := registry.RemindPendingClaim(loginid); err != nil {
		t.Fatal(err)
	}
	if err := registry.ConfirmEmail(mailer.TakeCode(t), loginid); err != nil {
		t.Fatal(err)
	}

	// The same assertion arriving again must not reset the proof.
	if _, err := registry.HandleOpenID(c); err != nil {
		t.Fatal(err)
	}
	login, _ := store.GetLogin(loginid)
	if !login.Confirmed {
		t.Error("re-asserting the same address dropped the confirmed flag")
	}
}

func TestHandleOpenIDIgnoresReclaimOnLinkedIdentity(t *testing.T) {
	registry, store, _ := newRegistry(t)
	loginid, err := registry.HandleOpenID(newCase("com", "joe"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := registry.Login(loginid).CreateAccount(); err != nil {
		t.Fatal(err)
	}

	if _, err := registry.HandleOpenID(newCase("com", "joe", "other@example.com")); err != nil {
		t.Fatal(err)
	}
	login, _ := store.GetLogin(loginid)
	if login.Address != "joe@example.com" {
		t.Errorf("linked identity re-keyed to %q", login.Address)
	}
}

func TestJoinLogins(t *testing.T) {
	link := func(t *testing.T, registry *celauth.Registry, tld, name string, account string) string {
		t.Helper()
		loginid, err := registry.HandleOpenID(newCase(tld, name))
		if err != nil {
			t.Fatal(err)
		}
		if account != "" {
			if err := registry.Store().SetAccount(loginid, account); err != nil {
				t.Fatal(err)
			}
		}
		return loginid
	}

	tests := []struct {
		name        string
		prevAccount string
		curAccount  string
		wantErr     error
		wantPrev    string
		wantCur     string
	}{
		{"neither linked", "", "", nil, "", ""},
		{"previous linked absorbs current", "1", "", nil, "1", "1"},
		{"current linked absorbs previous", "", "2", nil, "2", "2"},
		{"already same account", "3", "3", nil, "3", "3"},
		{"distinct accounts conflict", "1", "2", celauth.ErrAccountConflict, "1", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, store, _ := newRegistry(t)
			prev := link(t, registry, "com", "prev", tt.prevAccount)
			cur := link(t, registry, "com", "cur", tt.curAccount)

			err := registry.JoinLogins(prev, cur)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("JoinLogins() error = %v, want %v", err, tt.wantErr)
			}
			if got, _ := store.Account(prev); got != tt.wantPrev {
				t.Errorf("previous account = %q, want %q", got, tt.wantPrev)
			}
			if got, _ := store.Account(cur); got != tt.wantCur {
				t.Errorf("current account = %q, want %q", got, tt.wantCur)
			}
		})
	}
}

func TestJoinLoginsTrivialCases(t *testing.T) {
	registry, _, _ := newRegistry(t)
	loginid, _ := registry.HandleOpenID(newCase("com", "joe"))
	if err := registry.JoinLogins("", loginid); err != nil {
		t.Errorf("empty previous: %v", err)
	}
	if err := registry.JoinLogins(loginid, loginid); err != nil {
		t.Errorf("self join: %v", err)
	}
}

func TestRemindPendingClaim(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, registry *celauth.Registry, store *stores.MemRegistryStore) string
		wantCode bool
	}{
		{
			name: "unconfirmed free claim gets a code",
			setup: func(t *testing.T, registry *celauth.Registry, store *stores.MemRegistryStore) string {
				loginid, _ := registry.HandleOpenID(newCase("com", "joe"))
				return loginid
			},
			wantCode: true,
		},
		{
			name: "no claim, no code",
			setup: func(t *testing.T, registry *celauth.Registry, store *stores.MemRegistryStore) string {
				loginid, _ := registry.HandleOpenID(&celauth.OpenIDCase{ClaimedID: "https://example.com/bare"})
				return loginid
			},
			wantCode: false,
		},
		{
			name: "identity and address on the same account is redundant",
			setup: func(t *testing.T, registry *celauth.Registry, store *stores.MemRegistryStore) string {
				loginid, _ := registry.HandleOpenID(newCase("com", "joe"))
				store.SetAccount(loginid, "7")
				store.SeedAssignment("joe@example.com", "7")
				return loginid
			},
			wantCode: false,
		},
		{
			name: "identity and address on different accounts is unresolvable",
			setup: func(t *testing.T, registry *celauth.Registry, store *stores.MemRegistryStore) string {
				loginid, _ := registry.HandleOpenID(newCase("com", "joe"))
				store.SetAccount(loginid, "7")
				store.SeedAssignment("joe@example.com", "8")
				return loginid
			},
			wantCode: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, store, mailer := newRegistry(t)
			loginid := tt.setup(t, registry, store)
			mailer.LastCode = ""
			if err := registry.RemindPendingClaim(loginid); err != nil {
				t.Fatal(err)
			}
			if got := mailer.LastCode != ""; got != tt.wantCode {
				t.Errorf("code issued = %v, want %v", got, tt.wantCode)
			}
		})
	}
}

func TestRemindPendingClaimSkipsConfirmed(t *testing.T) {
	registry, _, mailer := newRegistry(t)
	loginid, _ := registry.HandleOpenID(newCase("org", "joe"))
	registry.RemindPendingClaim(loginid)
	if err := registry.ConfirmEmail(mailer.TakeCode(t), loginid); err != nil {
		t.Fatal(err)
	}
	mailer.LastCode = ""
	if err := registry.RemindPendingClaim(loginid); err != nil {
		t.Fatal(err)
	}
	if mailer.LastCode != "" {
		t.Error("confirmed claim got another code")
	}
}

func TestConfirmEmailUnknownCode(t *testing.T) {
	registry, store, _ := newRegistry(t)
	loginid, _ := registry.HandleOpenID(newCase("com", "joe"))
	before, _ := store.GetLogin(loginid)

	err := registry.ConfirmEmail("NOSUCHCODE", loginid)
	if !errors.Is(err, celauth.ErrInvalidConfirmationCode) {
		t.Fatalf("expected ErrInvalidConfirmationCode, got %v", err)
	}
	after, _ := store.GetLogin(loginid)
	if *after != *before {
		t.Errorf("claim state changed: %+v -> %+v", before, after)
	}
}

func TestConfirmEmailExpiredCode(t *testing.T) {
	registry, store, mailer := newRegistry(t)
	now := time.Now()
	store.Now = func() time.Time { return now }

	loginid, _ := registry.HandleOpenID(newCase("com", "joe"))
	if err := registry.RemindPendingClaim(loginid); err != nil {
		t.Fatal(err)
	}
	code := mailer.TakeCode(t)

	now = now.Add(celauth.DefaultCodeTTL + time.Minute)
	err := registry.ConfirmEmail(code, loginid)
	if !errors.Is(err, celauth.ErrInvalidConfirmationCode) {
		t.Fatalf("expected ErrInvalidConfirmationCode for expired code, got %v", err)
	}
	login, _ := store.GetLogin(loginid)
	if login.Confirmed {
		t.Error("expired code confirmed the claim")
	}
}

func TestConfirmEmailSingleUse(t *testing.T) {
	registry, _, mailer := newRegistry(t)
	loginid, _ := registry.HandleOpenID(newCase("com", "joe"))
	registry.RemindPendingClaim(loginid)
	code := mailer.TakeCode(t)

	if err := registry.ConfirmEmail(code, loginid); err != nil {
		t.Fatal(err)
	}
	if err := registry.ConfirmEmail(code, loginid); !errors.Is(err, celauth.ErrInvalidConfirmationCode) {
		t.Fatalf("second use: expected ErrInvalidConfirmationCode, got %v", err)
	}
}

func TestConfirmEmailAdoptsOwningAccount(t *testing.T) {
	registry, store, mailer := newRegistry(t)
	store.SeedAssignment("admin@example.org", "9")
	loginid, _ := registry.HandleOpenID(newCase("org", "admin"))
	registry.RemindPendingClaim(loginid)

	if err := registry.ConfirmEmail(mailer.TakeCode(t), loginid); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.Account(loginid); got != "9" {
		t.Errorf("adopted account = %q, want 9", got)
	}
}

func TestConfirmEmailAddressAccountConflict(t *testing.T) {
	registry, store, mailer := newRegistry(t)
	store.SeedAssignment("joe@example.com", "50")

	loginid, _ := registry.HandleOpenID(newCase("com", "joe"))
	if err := store.SetAccount(loginid, "60"); err != nil {
		t.Fatal(err)
	}
	registry.RemindPendingClaim(loginid)
	// The remind guard withholds codes for unresolvable conflicts, so mint
	// one directly the way Gate.Claim would.
	if err := registry.IssueCode("joe@example.com"); err != nil {
		t.Fatal(err)
	}
	code := mailer.TakeCode(t)

	err := registry.ConfirmEmail(code, loginid)
	if !errors.Is(err, celauth.ErrAddressAccountConflict) {
		t.Fatalf("expected ErrAddressAccountConflict, got %v", err)
	}
	// Ownership was proven even though the grant failed.
	login, _ := store.GetLogin(loginid)
	if !login.Confirmed {
		t.Error("proof discarded on conflict")
	}
	if owner, _ := store.AssignedAccount("joe@example.com"); owner != "50" {
		t.Errorf("assignment moved to %q", owner)
	}
}
