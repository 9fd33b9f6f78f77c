package auth_test

import (
	"context"
	"errors"
	"net/url"
	"os"
	"testing"

	"photokiosk/internal/auth"
	"photokiosk/internal/testsupport"
)

func TestRefreshPersistsBeforeReturning(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	cfg := testsupport.NewConfig(t, testsupport.WithGoogle(fake))
	store := auth.NewFileStore(cfg.TokenPath())
	if _, err := store.Save(auth.Credential{AccessToken: "access-0", RefreshToken: "refresh-0", TokenType: "Bearer", ExpiresIn: 10}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	refresher, err := auth.NewRefresher(cfg, store, auth.WithHTTPClient(fake.Client()))
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}
	token, err := refresher.Refresh(context.Background(), "refresh-0")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if token != "access-1" {
		t.Fatalf("unexpected access token %q", token)
	}

	cred, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cred.AccessToken != "access-1" || cred.ExpiresIn != 3599 {
		t.Fatalf("refreshed token not persisted: %#v", cred)
	}
	if cred.RefreshToken != "refresh-0" {
		t.Fatalf("refresh token must survive a response without one: %#v", cred)
	}
}

func TestRefreshRejectedLeavesStoreUntouched(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	fake.RejectRefresh = true
	cfg := testsupport.NewConfig(t, testsupport.WithGoogle(fake))
	store := auth.NewFileStore(cfg.TokenPath())
	if _, err := store.Save(auth.Credential{AccessToken: "access-0", RefreshToken: "refresh-0"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before, err := os.ReadFile(cfg.TokenPath())
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	refresher, err := auth.NewRefresher(cfg, store, auth.WithHTTPClient(fake.Client()))
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}
	_, err = refresher.Refresh(context.Background(), "refresh-0")

	var authErr *auth.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if !errors.Is(err, auth.ErrExchangeRejected) || authErr.StatusCode != 400 {
		t.Fatalf("unexpected auth error: %v", err)
	}
	after, err := os.ReadFile(cfg.TokenPath())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("store modified by rejected refresh:\nbefore %s\nafter  %s", before, after)
	}
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	refresher, err := auth.NewRefresher(cfg, auth.NewFileStore(cfg.TokenPath()))
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}
	if _, err := refresher.Refresh(context.Background(), " "); !errors.Is(err, auth.ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
}

func TestExchangeStoresCredential(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	cfg := testsupport.NewConfig(t, testsupport.WithGoogle(fake))
	store := auth.NewFileStore(cfg.TokenPath())
	refresher, err := auth.NewRefresher(cfg, store, auth.WithHTTPClient(fake.Client()))
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}

	if _, err := refresher.Exchange(context.Background(), "bad-code"); !errors.Is(err, auth.ErrExchangeRejected) {
		t.Fatalf("expected rejection for bad code, got %v", err)
	}

	cred, err := refresher.Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if cred.AccessToken == "" || cred.RefreshToken != "refresh-0" {
		t.Fatalf("unexpected credential: %#v", cred)
	}
	stored, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.RefreshToken != "refresh-0" {
		t.Fatalf("credential not persisted: %#v", stored)
	}
}

func TestAuthorizeURLRequestsOfflineAccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	refresher, err := auth.NewRefresher(cfg, auth.NewFileStore(cfg.TokenPath()))
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}

	raw := refresher.AuthorizeURL("state-123")
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := parsed.Query()
	checks := map[string]string{
		"client_id":     "test-client",
		"access_type":   "offline",
		"prompt":        "consent",
		"response_type": "code",
		"state":         "state-123",
		"scope":         cfg.Google.Scope,
		"redirect_uri":  cfg.Google.RedirectURI,
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestRefreshReportsUnreachableEndpointAsTransient(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	cfg := testsupport.NewConfig(t, testsupport.WithGoogle(fake))
	cfg.Google.TokenURL = "http://127.0.0.1:1/token"
	store := auth.NewFileStore(cfg.TokenPath())

	refresher, err := auth.NewRefresher(cfg, store)
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}
	_, err = refresher.Refresh(context.Background(), "refresh-0")
	if !auth.IsTransient(err) || !errors.Is(err, auth.ErrTokenEndpointUnavailable) {
		t.Fatalf("expected transient token endpoint error, got %v", err)
	}
	if auth.IsAuthError(err) {
		t.Fatalf("an unreachable endpoint must not ask for re-authorization: %v", err)
	}
	if cred, _ := store.Load(); cred.AccessToken != "" {
		t.Fatalf("store must stay untouched, got %#v", cred)
	}
}
