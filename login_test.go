package celauth_test

import (
	"testing"

	"github.com/panyam/celauth"
	"github.com/panyam/celauth/stores"
)

// viewState describes one identity's durable state for the decision table.
type viewState struct {
	account   string
	address   string
	confirmed bool
	credible  bool
	owner     string // account holding the address, "" when free
}

func newView(t *testing.T, state viewState) (*celauth.LoginView, *stores.MemRegistryStore) {
	t.Helper()
	store := stores.NewMemRegistryStore(&stores.SequenceAccountant{})
	registry := celauth.NewRegistry(store, &recordingMailer{})
	loginid, err := registry.HandleOpenID(&celauth.OpenIDCase{
		ClaimedID: "https://example.com/subject",
		Email:     state.address,
		Credible:  state.credible,
	})
	if err != nil {
		t.Fatal(err)
	}
	if state.confirmed {
		if err := store.SetAddress(loginid, state.address, true); err != nil {
			t.Fatal(err)
		}
		if err := store.SaveConfirmationCode("TESTCODE", state.address, celauth.DefaultCodeTTL); err != nil {
			t.Fatal(err)
		}
		if _, err := store.ConfirmEmail(loginid, "TESTCODE"); err != nil {
			t.Fatal(err)
		}
	}
	if state.account != "" {
		if err := store.SetAccount(loginid, state.account); err != nil {
			t.Fatal(err)
		}
	}
	if state.owner != "" {
		store.SeedAssignment(state.address, state.owner)
	}
	return registry.Login(loginid), store
}

func TestLoginViewDecisions(t *testing.T) {
	tests := []struct {
		name         string
		state        viewState
		wantMustJoin bool
		wantConfirm  bool
		wantCreate   bool
	}{
		{
			name:       "no claim at all",
			state:      viewState{},
			wantCreate: true,
		},
		{
			name:        "credible claim on a free address",
			state:       viewState{address: "a@example.com", credible: true},
			wantCreate:  true,
			wantConfirm: false,
		},
		{
			name:        "incredible claim on a free address",
			state:       viewState{address: "a@example.com"},
			wantConfirm: true,
		},
		{
			name:         "credible claim on an owned address",
			state:        viewState{address: "a@example.com", credible: true, owner: "9"},
			wantMustJoin: true,
			wantConfirm:  true,
		},
		{
			name:         "incredible claim on an owned address",
			state:        viewState{address: "a@example.com", owner: "9"},
			wantMustJoin: true,
			wantConfirm:  true,
		},
		{
			name:       "confirmed claim on a free address",
			state:      viewState{address: "a@example.com", confirmed: true},
			wantCreate: true,
		},
		{
			name:         "confirmed claim on an owned address",
			state:        viewState{address: "a@example.com", confirmed: true, owner: "9"},
			wantMustJoin: true,
		},
		{
			name:  "already linked to an account",
			state: viewState{address: "a@example.com", credible: true, account: "5"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, _ := newView(t, tt.state)
			if got, err := view.MustJoinAccount(); err != nil || got != tt.wantMustJoin {
				t.Errorf("MustJoinAccount() = %v, %v; want %v", got, err, tt.wantMustJoin)
			}
			if got, err := view.ConfirmationRequired(); err != nil || got != tt.wantConfirm {
				t.Errorf("ConfirmationRequired() = %v, %v; want %v", got, err, tt.wantConfirm)
			}
			if got, err := view.CanCreateAccount(); err != nil || got != tt.wantCreate {
				t.Errorf("CanCreateAccount() = %v, %v; want %v", got, err, tt.wantCreate)
			}
		})
	}
}

func TestLoginViewCreateAccountAssignsAddress(t *testing.T) {
	view, store := newView(t, viewState{address: "a@example.com", credible: true})
	account, err := view.CreateAccount()
	if err != nil {
		t.Fatal(err)
	}
	if account == "" {
		t.Fatal("empty account id")
	}
	if owner, _ := store.AssignedAccount("a@example.com"); owner != account {
		t.Errorf("address owned by %q, want %q", owner, account)
	}
}

func TestLoginViewCreateAccountLosesAddressRace(t *testing.T) {
	view, store := newView(t, viewState{address: "a@example.com", credible: true})
	store.SeedAssignment("a@example.com", "99")

	account, err := view.CreateAccount()
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := view.Account(); got != account {
		t.Errorf("account = %q, want %q", got, account)
	}
	if owner, _ := store.AssignedAccount("a@example.com"); owner != "99" {
		t.Errorf("address reassigned to %q", owner)
	}
}
