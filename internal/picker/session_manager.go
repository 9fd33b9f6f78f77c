package picker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"photokiosk/internal/auth"
	"photokiosk/internal/config"
	"photokiosk/internal/logging"
)

const (
	minPollInterval = time.Second
	// defaultSessionLifetime applies when a create response carries neither
	// expireTime nor pollingConfig.timeoutIn.
	defaultSessionLifetime = 30 * time.Minute
	deleteTimeout          = 10 * time.Second
)

// SessionAPI is the subset of Client used by SessionManager.
type SessionAPI interface {
	CreateSession(ctx context.Context) (SessionInfo, error)
	GetSession(ctx context.Context, id string) (SessionInfo, error)
	DeleteSession(ctx context.Context, id string) error
}

// Session describes the active remote picking session.
type Session struct {
	ID         string    `json:"session_id"`
	PickingURI string    `json:"picking_uri"`
	ExpireTime time.Time `json:"expire_time"`
}

// AutocloseURI returns the picking URI that closes the picker tab once the
// selection is done.
func (s Session) AutocloseURI() string {
	if s.PickingURI == "" {
		return ""
	}
	return strings.TrimRight(s.PickingURI, "/") + "/autoclose"
}

// EnsureResult reports how EnsureSession satisfied the request.
type EnsureResult int

const (
	SessionReused EnsureResult = iota
	SessionCreated
	SessionRenewed
)

func (r EnsureResult) String() string {
	switch r {
	case SessionCreated:
		return "created"
	case SessionRenewed:
		return "renewed"
	default:
		return "reused"
	}
}

// PollResult is the outcome of one poll cycle.
type PollResult struct {
	Session  Session
	Ready    bool
	Interval time.Duration
	Timeout  time.Duration
	Created  bool
	Renewed  bool
}

// ManagerOption customises SessionManager construction.
type ManagerOption func(*SessionManager)

// WithManagerClock overrides the clock used for expiry decisions.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithManagerLogger attaches a logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *SessionManager) {
		m.logger = logging.NewComponentLogger(logger, "picker")
	}
}

// SessionManager owns at most one remote picking session.
type SessionManager struct {
	api         SessionAPI
	buffer      time.Duration
	defaultPoll time.Duration
	now         func() time.Time
	logger      *slog.Logger

	mu      sync.Mutex
	current *Session
	// claimed holds sessions a fetch is reading; renewal leaves them to Consume.
	claimed map[string]bool
}

// NewSessionManager builds a manager using the configured renewal buffer and
// default poll interval.
func NewSessionManager(cfg *config.Config, api SessionAPI, opts ...ManagerOption) *SessionManager {
	m := &SessionManager{
		api:         api,
		buffer:      max(cfg.RenewalBuffer(), time.Minute),
		defaultPoll: max(time.Duration(cfg.Picker.DefaultPollSeconds)*time.Second, minPollInterval),
		now:         time.Now,
		logger:      logging.NewNop(),
		claimed:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the held session, if any.
func (m *SessionManager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

// Claim returns the held session and marks it as being fetched. A renewal
// while claimed replaces the session without deleting the claimed one;
// Consume releases the claim.
func (m *SessionManager) Claim() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, false
	}
	m.claimed[m.current.ID] = true
	return *m.current, true
}

// EnsureSession returns a session with more than the renewal buffer left
// before expiry, creating or replacing the held one when needed.
func (m *SessionManager) EnsureSession(ctx context.Context) (Session, EnsureResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(ctx)
}

func (m *SessionManager) ensureLocked(ctx context.Context) (Session, EnsureResult, error) {
	if m.current != nil && m.current.ExpireTime.Sub(m.now()) > m.buffer {
		return *m.current, SessionReused, nil
	}

	previous := m.current
	created, err := m.create(ctx)
	if err != nil {
		return Session{}, SessionReused, err
	}
	m.current = &created

	if previous == nil {
		m.logger.Info("picker session created",
			logging.String(logging.FieldSessionID, created.ID),
			logging.String("expire_time", created.ExpireTime.Format(time.RFC3339)),
		)
		return created, SessionCreated, nil
	}

	m.logger.Info("picker session renewed",
		logging.String(logging.FieldSessionID, created.ID),
		logging.String("replaced_session_id", previous.ID),
		logging.String("expire_time", created.ExpireTime.Format(time.RFC3339)),
	)
	if m.claimed[previous.ID] {
		m.logger.Debug("replaced session is still being fetched; deletion deferred",
			logging.String(logging.FieldSessionID, previous.ID))
	} else {
		m.deleteBestEffort(ctx, previous.ID, "renewal")
	}
	return created, SessionRenewed, nil
}

func (m *SessionManager) create(ctx context.Context) (Session, error) {
	info, err := m.api.CreateSession(ctx)
	if err != nil {
		return Session{}, &SessionError{Op: "create", Err: err}
	}
	if info.ID == "" || info.PickerURI == "" {
		return Session{}, &SessionError{Op: "create", Err: ErrInvalidSession}
	}
	expire := info.ExpireTime
	if expire.IsZero() {
		lifetime := info.TimeoutIn
		if lifetime <= 0 {
			lifetime = defaultSessionLifetime
		}
		expire = m.now().Add(lifetime)
	}
	return Session{ID: info.ID, PickingURI: info.PickerURI, ExpireTime: expire}, nil
}

// Poll ensures a session and reports whether its selection is complete.
func (m *SessionManager) Poll(ctx context.Context) (PollResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ensured, err := m.ensureLocked(ctx)
	if err != nil {
		return PollResult{}, err
	}

	info, err := m.api.GetSession(ctx, sess.ID)
	if err != nil {
		if auth.StatusCode(err) == http.StatusNotFound {
			m.current = nil
			m.logger.Info("picker session no longer exists; forgetting it",
				logging.String(logging.FieldSessionID, sess.ID))
		}
		return PollResult{}, &SessionError{Op: "poll", SessionID: sess.ID, Err: err}
	}
	if !info.ExpireTime.IsZero() {
		m.current.ExpireTime = info.ExpireTime
		sess.ExpireTime = info.ExpireTime
	}

	interval := info.PollInterval
	if interval <= 0 {
		interval = m.defaultPoll
	}
	return PollResult{
		Session:  sess,
		Ready:    info.MediaItemsSet,
		Interval: max(interval, minPollInterval),
		Timeout:  info.TimeoutIn,
		Created:  ensured == SessionCreated,
		Renewed:  ensured == SessionRenewed,
	}, nil
}

// WaitReady polls until the selection is complete or ctx ends, sleeping the
// server-suggested interval between cycles.
func (m *SessionManager) WaitReady(ctx context.Context, onPoll func(PollResult)) (PollResult, error) {
	for {
		result, err := m.Poll(ctx)
		if err != nil {
			return PollResult{}, err
		}
		if onPoll != nil {
			onPoll(result)
		}
		if result.Ready {
			return result, nil
		}
		timer := time.NewTimer(result.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, fmt.Errorf("wait for selection: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// Consume deletes sessionID remotely and releases its claim. The held session
// is forgotten only when it is sessionID, so a replacement created meanwhile
// survives. Deletion failures are logged, never returned.
func (m *SessionManager) Consume(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	m.mu.Lock()
	delete(m.claimed, sessionID)
	if m.current != nil && m.current.ID == sessionID {
		m.current = nil
	}
	m.mu.Unlock()

	m.deleteBestEffort(ctx, sessionID, "consume")
}

func (m *SessionManager) deleteBestEffort(ctx context.Context, id, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()

	if err := m.api.DeleteSession(ctx, id); err != nil {
		if auth.StatusCode(err) == http.StatusNotFound || errors.Is(err, context.Canceled) {
			m.logger.Debug("picker session delete skipped",
				logging.String(logging.FieldSessionID, id), logging.Error(err))
			return
		}
		logging.WarnWithContext(m.logger, "picker session delete failed", "session_delete_failed",
			logging.String(logging.FieldSessionID, id),
			logging.String("reason", reason),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the remote session lingers until it expires"),
			logging.String(logging.FieldErrorHint, "no action needed; Google expires sessions automatically"),
		)
		return
	}
	m.logger.Debug("picker session deleted",
		logging.String(logging.FieldSessionID, id), logging.String("reason", reason))
}
