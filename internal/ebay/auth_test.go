package ebay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTokenServer returns an httptest server serving client-credentials
// tokens, counting how many requests it received.
func newTokenServer(t *testing.T, expiresIn int, requests *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*requests++

		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type mismatch: got %s", got)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":%d}`, *requests, expiresIn)
	}))
}

func TestTokenProvider_CachesToken(t *testing.T) {
	var requests int
	srv := newTokenServer(t, 7200, &requests)
	defer srv.Close()

	p := NewTokenProvider(srv.URL, "client-id", "client-secret", "scope")

	tok1, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	tok2, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("second Token failed: %v", err)
	}

	if tok1 != tok2 {
		t.Errorf("expected cached token, got %s then %s", tok1, tok2)
	}
	if requests != 1 {
		t.Errorf("expected 1 token request, got %d", requests)
	}
}

func TestTokenProvider_RefreshesNearExpiry(t *testing.T) {
	var requests int
	srv := newTokenServer(t, 7200, &requests)
	defer srv.Close()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := NewTokenProvider(srv.URL, "client-id", "client-secret", "scope",
		WithClock(func() time.Time { return now }),
	)

	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	// Still well within validity: no refresh.
	now = now.Add(1 * time.Hour)
	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected no refresh at 1h, got %d requests", requests)
	}

	// Inside the expiry margin: refresh.
	now = now.Add(1 * time.Hour).Add(-30 * time.Second)
	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if requests != 2 {
		t.Errorf("expected refresh inside expiry margin, got %d requests", requests)
	}
}

func TestTokenProvider_Invalidate(t *testing.T) {
	var requests int
	srv := newTokenServer(t, 7200, &requests)
	defer srv.Close()

	p := NewTokenProvider(srv.URL, "client-id", "client-secret", "scope")

	tok1, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	p.Invalidate()

	tok2, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token after Invalidate failed: %v", err)
	}

	if tok1 == tok2 {
		t.Errorf("expected a fresh token after Invalidate, got %s twice", tok1)
	}
	if requests != 2 {
		t.Errorf("expected 2 token requests, got %d", requests)
	}
}

func TestTokenProvider_MissingCredentials(t *testing.T) {
	p := NewTokenProvider("http://unused", "", "", "scope")

	_, err := p.Token(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
}

func TestTokenProvider_EndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewTokenProvider(srv.URL, "client-id", "client-secret", "scope")

	_, err := p.Token(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth on 500, got %v", err)
	}
}
