package auth_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"photokiosk/internal/auth"
)

func TestFileStoreLoadMissingFile(t *testing.T) {
	store := auth.NewFileStore(filepath.Join(t.TempDir(), "missing.json"))

	cred, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cred != (auth.Credential{}) {
		t.Fatalf("expected zero credential, got %#v", cred)
	}
}

func TestFileStoreSaveMergesAndNeverErasesRefreshToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	now := time.Unix(1_700_000_000, 0)
	store := auth.NewFileStore(path, auth.WithStoreClock(func() time.Time { return now }))

	if _, err := store.Save(auth.Credential{AccessToken: "a1", RefreshToken: "r1", TokenType: "Bearer", ExpiresIn: 3599}); err != nil {
		t.Fatalf("save initial: %v", err)
	}

	now = now.Add(time.Hour)
	merged, err := store.Save(auth.Credential{AccessToken: "a2", ExpiresIn: 1800})
	if err != nil {
		t.Fatalf("save refresh: %v", err)
	}
	if merged.RefreshToken != "r1" {
		t.Fatalf("refresh token erased: %#v", merged)
	}
	if merged.AccessToken != "a2" || merged.ExpiresIn != 1800 || merged.TokenType != "Bearer" {
		t.Fatalf("unexpected merge result: %#v", merged)
	}
	if merged.SavedAt != now.Unix() {
		t.Fatalf("saved_at not stamped: got %d want %d", merged.SavedAt, now.Unix())
	}

	reloaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if reloaded != merged {
		t.Fatalf("reloaded credential mismatch: got %#v want %#v", reloaded, merged)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", info.Mode().Perm())
	}
}

func TestFileStoreSaveReplacesCorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := auth.NewFileStore(path)

	if _, err := store.Load(); err == nil {
		t.Fatal("expected decode error for corrupt record")
	}
	saved, err := store.Save(auth.Credential{AccessToken: "a1", RefreshToken: "r1"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.AccessToken != "a1" || saved.RefreshToken != "r1" {
		t.Fatalf("unexpected credential: %#v", saved)
	}
}

func TestFileStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store := auth.NewFileStore(path)
	if _, err := store.Save(auth.Credential{RefreshToken: "r1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second clear should be a no-op: %v", err)
	}
	cred, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cred.Linked() {
		t.Fatalf("expected empty credential after clear, got %#v", cred)
	}
}

func TestCredentialStale(t *testing.T) {
	saved := time.Unix(1_700_000_000, 0)
	cred := auth.Credential{AccessToken: "a", ExpiresIn: 3600, SavedAt: saved.Unix()}
	margin := time.Minute

	cases := []struct {
		name string
		cred auth.Credential
		now  time.Time
		want bool
	}{
		{name: "fresh", cred: cred, now: saved.Add(30 * time.Minute), want: false},
		{name: "inside margin", cred: cred, now: saved.Add(59 * time.Minute), want: true},
		{name: "expired", cred: cred, now: saved.Add(2 * time.Hour), want: true},
		{name: "no access token", cred: auth.Credential{RefreshToken: "r"}, now: saved, want: true},
		{name: "unknown lifetime", cred: auth.Credential{AccessToken: "a"}, now: saved.Add(48 * time.Hour), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cred.Stale(tc.now, margin); got != tc.want {
				t.Fatalf("Stale() = %v, want %v", got, tc.want)
			}
		})
	}
}
