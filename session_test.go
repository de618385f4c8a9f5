package celauth_test

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"

	"github.com/panyam/celauth"
	"github.com/panyam/celauth/stores"
)

func TestCelSessionRejectsEmptyLoginID(t *testing.T) {
	session := celauth.NewCelSession(stores.NewMemSessionStore())
	if err := session.SetLoginID(""); err == nil {
		t.Fatal("expected an error for empty loginid")
	}
	if err := session.SetLoginID("login-1"); err != nil {
		t.Fatal(err)
	}
	if got := session.LoginID(); got != "login-1" {
		t.Errorf("LoginID() = %q", got)
	}
	if err := session.Clear(); err != nil {
		t.Fatal(err)
	}
	if got := session.LoginID(); got != "" {
		t.Errorf("LoginID() after Clear = %q", got)
	}
}

func TestScsSessionStoreRoundTrip(t *testing.T) {
	manager := scs.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		store := celauth.NewScsSessionStore(manager, r.Context())
		if err := celauth.NewCelSession(store).SetLoginID("login-42"); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		store := celauth.NewScsSessionStore(manager, r.Context())
		io.WriteString(w, store.LoginID())
	})
	server := httptest.NewServer(manager.LoadAndSave(mux))
	defer server.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	client := server.Client()
	client.Jar = jar

	if _, err := client.Get(server.URL + "/login"); err != nil {
		t.Fatal(err)
	}
	resp, err := client.Get(server.URL + "/whoami")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "login-42" {
		t.Errorf("second request saw loginid %q, want login-42", body)
	}
}

func TestScsSessionStoreCustomKey(t *testing.T) {
	manager := scs.New()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		store := celauth.NewScsSessionStore(manager, r.Context())
		store.Key = "uid"
		store.SetLoginID("login-7")
		if manager.GetString(r.Context(), "uid") != "login-7" {
			http.Error(w, "key not honored", http.StatusInternalServerError)
		}
	})
	server := httptest.NewServer(manager.LoadAndSave(mux))
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
