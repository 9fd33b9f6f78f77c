package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"photokiosk/internal/auth"
	"photokiosk/internal/config"
)

// FakeItem is one media item in the fake picker selection.
type FakeItem struct {
	ID       string
	MimeType string
	Filename string
	Body     []byte
	// ResponseType overrides the Content-Type served for the media bytes.
	ResponseType string
	// NoBaseURL omits the base URL from the listing.
	NoBaseURL bool
	// FailDownload answers media requests with 500.
	FailDownload bool
	// TopLevel places baseUrl/mimeType/filename on the item rather than mediaFile.
	TopLevel bool
}

// FakeGoogle emulates the OAuth token endpoint, the Photos Picker API and
// media byte hosting on one httptest server.
type FakeGoogle struct {
	server *httptest.Server

	mu sync.Mutex

	// AccessToken is the token the API endpoints currently accept.
	AccessToken   string
	RefreshToken  string
	RejectRefresh bool
	// RejectAPI forces the next N API requests to answer 401 regardless of token.
	RejectAPI int

	SessionTTL   time.Duration
	PollInterval string
	Ready        bool
	FailCreate   bool
	PageSize     int
	Items        []FakeItem

	TokenRequests   int
	RefreshRequests int
	SessionCreates  int
	SessionGets     int
	DeletedSessions []string
	ListRequests    int
	MediaRequests   []string
	AuthHeaders     []string

	issued   int
	sessions map[string]time.Time
}

// NewFakeGoogle starts a fake server and registers cleanup.
func NewFakeGoogle(t testing.TB) *FakeGoogle {
	t.Helper()
	f := &FakeGoogle{
		AccessToken:  "access-0",
		RefreshToken: "refresh-0",
		SessionTTL:   30 * time.Minute,
		PollInterval: "5s",
		PageSize:     100,
		sessions:     map[string]time.Time{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", f.handleToken)
	mux.HandleFunc("POST /v1/sessions", f.authorized(f.handleCreateSession))
	mux.HandleFunc("GET /v1/sessions/{id}", f.authorized(f.handleGetSession))
	mux.HandleFunc("DELETE /v1/sessions/{id}", f.authorized(f.handleDeleteSession))
	mux.HandleFunc("GET /v1/mediaItems", f.authorized(f.handleListItems))
	mux.HandleFunc("GET /media/{ref}", f.authorized(f.handleMedia))

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the server base URL.
func (f *FakeGoogle) URL() string { return f.server.URL }

// Client returns an HTTP client bound to the fake server.
func (f *FakeGoogle) Client() *http.Client { return f.server.Client() }

// Lock exposes the fake's mutex so tests can read counters consistently.
func (f *FakeGoogle) Lock() { f.mu.Lock() }

// Unlock releases the fake's mutex.
func (f *FakeGoogle) Unlock() { f.mu.Unlock() }

// SeedCredential stores a credential that the fake accepts.
func SeedCredential(t testing.TB, cfg *config.Config, cred auth.Credential) {
	t.Helper()
	if _, err := auth.NewFileStore(cfg.TokenPath()).Save(cred); err != nil {
		t.Fatalf("seed credential: %v", err)
	}
}

// SeedValidCredential stores the fake's current tokens with a one hour lifetime.
func (f *FakeGoogle) SeedValidCredential(t testing.TB, cfg *config.Config) {
	t.Helper()
	f.mu.Lock()
	cred := auth.Credential{AccessToken: f.AccessToken, RefreshToken: f.RefreshToken, TokenType: "Bearer", ExpiresIn: 3600}
	f.mu.Unlock()
	SeedCredential(t, cfg, cred)
}

func (f *FakeGoogle) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		header := r.Header.Get("Authorization")
		f.AuthHeaders = append(f.AuthHeaders, header)
		reject := f.RejectAPI > 0 || header != "Bearer "+f.AccessToken
		if f.RejectAPI > 0 {
			f.RejectAPI--
		}
		f.mu.Unlock()
		if reject {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"code": 401, "status": "UNAUTHENTICATED"}})
			return
		}
		next(w, r)
	}
}

func (f *FakeGoogle) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TokenRequests++

	switch r.PostForm.Get("grant_type") {
	case "refresh_token":
		f.RefreshRequests++
		if f.RejectRefresh || r.PostForm.Get("refresh_token") != f.RefreshToken {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		f.issued++
		f.AccessToken = fmt.Sprintf("access-%d", f.issued)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": f.AccessToken,
			"expires_in":   3599,
			"token_type":   "Bearer",
			"scope":        "https://www.googleapis.com/auth/photospicker.mediaitems.readonly",
		})
	case "authorization_code":
		if r.PostForm.Get("code") != "good-code" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		f.issued++
		f.AccessToken = fmt.Sprintf("access-%d", f.issued)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  f.AccessToken,
			"refresh_token": f.RefreshToken,
			"expires_in":    3599,
			"token_type":    "Bearer",
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (f *FakeGoogle) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreate {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backend unavailable"})
		return
	}
	f.SessionCreates++
	id := fmt.Sprintf("session-%d", f.SessionCreates)
	expire := time.Now().Add(f.SessionTTL).UTC()
	f.sessions[id] = expire
	writeJSON(w, http.StatusOK, f.sessionPayload(id, expire))
}

func (f *FakeGoogle) handleGetSession(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SessionGets++
	id := r.PathValue("id")
	expire, ok := f.sessions[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, f.sessionPayload(id, expire))
}

func (f *FakeGoogle) sessionPayload(id string, expire time.Time) map[string]any {
	return map[string]any{
		"id":            id,
		"pickerUri":     "https://photos.google.com/picker/" + id,
		"expireTime":    expire.Format(time.RFC3339Nano),
		"mediaItemsSet": f.Ready,
		"pollingConfig": map[string]any{
			"pollInterval": f.PollInterval,
			"timeoutIn":    "1800s",
		},
	}
}

func (f *FakeGoogle) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := r.PathValue("id")
	f.DeletedSessions = append(f.DeletedSessions, id)
	delete(f.sessions, id)
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (f *FakeGoogle) handleListItems(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListRequests++
	if _, ok := f.sessions[r.URL.Query().Get("sessionId")]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	start, _ := strconv.Atoi(r.URL.Query().Get("pageToken"))
	size := f.PageSize
	if size <= 0 {
		size = 100
	}
	end := min(start+size, len(f.Items))

	items := make([]map[string]any, 0, end-start)
	for _, item := range f.Items[start:end] {
		base := ""
		if !item.NoBaseURL {
			base = f.server.URL + "/media/" + item.ID
		}
		entry := map[string]any{"id": item.ID, "type": "PHOTO"}
		if strings.HasPrefix(item.MimeType, "video/") {
			entry["type"] = "VIDEO"
		}
		file := map[string]any{"mimeType": item.MimeType, "filename": item.Filename}
		if base != "" {
			file["baseUrl"] = base
		}
		if item.TopLevel {
			for k, v := range file {
				entry[k] = v
			}
		} else {
			entry["mediaFile"] = file
		}
		items = append(items, entry)
	}

	payload := map[string]any{"mediaItems": items}
	if end < len(f.Items) {
		payload["nextPageToken"] = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, payload)
}

func (f *FakeGoogle) handleMedia(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	f.mu.Lock()
	f.MediaRequests = append(f.MediaRequests, ref)
	id, _, _ := strings.Cut(ref, "=")
	var found *FakeItem
	for i := range f.Items {
		if f.Items[i].ID == id {
			found = &f.Items[i]
			break
		}
	}
	f.mu.Unlock()

	if found == nil {
		http.NotFound(w, r)
		return
	}
	if found.FailDownload {
		http.Error(w, "backend error", http.StatusInternalServerError)
		return
	}
	contentType := found.ResponseType
	if contentType == "" {
		contentType = found.MimeType
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(found.Body)
}

// MediaRequestFor returns the recorded media path requested for id.
func (f *FakeGoogle) MediaRequestFor(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ref := range f.MediaRequests {
		if ref == id || strings.HasPrefix(ref, id+"=") {
			return ref
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
