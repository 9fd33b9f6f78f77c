package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"photokiosk/internal/mediacache"
	"photokiosk/internal/picker"
)

type sessionResponse struct {
	SessionID    string    `json:"session_id"`
	PickingURI   string    `json:"picking_uri"`
	AutocloseURI string    `json:"autoclose_uri"`
	ExpireTime   time.Time `json:"expire_time"`
	Result       string    `json:"result,omitempty"`
}

type pollResponse struct {
	Ready           bool    `json:"ready"`
	IntervalSeconds float64 `json:"interval"`
	TimeoutSeconds  float64 `json:"timeout,omitempty"`
	Renewed         bool    `json:"renewed,omitempty"`
	sessionResponse
}

type cacheResponse struct {
	Entries []mediacache.Entry `json:"entries"`
}

type authResponse struct {
	Authorized bool `json:"authorized"`
}

func newSessionResponse(sess picker.Session) sessionResponse {
	return sessionResponse{
		SessionID:    sess.ID,
		PickingURI:   sess.PickingURI,
		AutocloseURI: sess.AutocloseURI(),
		ExpireTime:   sess.ExpireTime,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.kiosk.Status(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	consent, _ := s.kiosk.AuthorizeURL()
	http.Redirect(w, r, consent, http.StatusFound)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if reason := strings.TrimSpace(query.Get("error")); reason != "" {
		s.writeError(w, http.StatusBadRequest, "authorization denied: "+reason)
		return
	}
	if err := s.kiosk.VerifyState(query.Get("state")); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	code := strings.TrimSpace(query.Get("code"))
	if code == "" {
		s.writeError(w, http.StatusBadRequest, "authorization failed: missing code")
		return
	}
	if _, err := s.kiosk.CompleteAuthorization(r.Context(), code); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, authResponse{Authorized: true})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, result, err := s.kiosk.EnsureSession(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	resp := newSessionResponse(sess)
	resp.Result = result.String()
	status := http.StatusOK
	if result != picker.SessionReused {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	result, err := s.kiosk.Poll(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pollResponse{
		Ready:           result.Ready,
		IntervalSeconds: result.Interval.Seconds(),
		TimeoutSeconds:  result.Timeout.Seconds(),
		Renewed:         result.Renewed,
		sessionResponse: newSessionResponse(result.Session),
	})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	result, err := s.kiosk.FetchAndCache(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCacheList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.kiosk.Entries(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cacheResponse{Entries: entries})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.kiosk.ClearCache(r.Context()); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	ordinal, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || ordinal < 0 {
		s.writeError(w, http.StatusNotFound, "invalid media index")
		return
	}
	var kind mediacache.Kind
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		kind, err = mediacache.ParseKind(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	f, entry, err := s.kiosk.OpenMedia(r.Context(), ordinal, kind)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	defer f.Close()

	if entry.ContentType != "" {
		w.Header().Set("Content-Type", entry.ContentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, entry.DisplayName, entry.CachedAt, f)
}
