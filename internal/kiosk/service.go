package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"photokiosk/internal/acquire"
	"photokiosk/internal/auth"
	"photokiosk/internal/config"
	"photokiosk/internal/convert"
	"photokiosk/internal/logging"
	"photokiosk/internal/mediacache"
	"photokiosk/internal/picker"
)

const stateLifetime = 10 * time.Minute

// Option customises Service construction.
type Option func(*options)

type options struct {
	httpClient auth.HTTPDoer
	converter  convert.Converter
	noConvert  bool
	now        func() time.Time
}

// WithHTTPClient routes token, API and download requests through client.
func WithHTTPClient(client auth.HTTPDoer) Option {
	return func(o *options) { o.httpClient = client }
}

// WithConverter overrides the detected image converter. A nil converter
// disables conversion.
func WithConverter(conv convert.Converter) Option {
	return func(o *options) {
		o.converter = conv
		o.noConvert = conv == nil
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Status summarises the kiosk for the status endpoint and CLI.
type Status struct {
	Authorized bool            `json:"authorized"`
	Session    *picker.Session `json:"session,omitempty"`
	Entries    int             `json:"entries"`
	Images     int             `json:"images"`
	Videos     int             `json:"videos"`
	DataDir    string          `json:"data_dir"`
}

// Service coordinates authorization, picking sessions and the media cache.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time

	store     *auth.FileStore
	refresher *auth.Refresher
	executor  *auth.Executor
	sessions  *picker.SessionManager
	index     *mediacache.Index
	pipeline  *acquire.Pipeline

	lockPath string
	lock     *flock.Flock
	writeMu  sync.Mutex

	stateMu sync.Mutex
	states  map[string]time.Time
}

// New opens the cache index and assembles the service.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("kiosk requires config")
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	authOpts := []auth.Option{auth.WithLogger(logger), auth.WithClock(o.now)}
	if o.httpClient != nil {
		authOpts = append(authOpts, auth.WithHTTPClient(o.httpClient), auth.WithDownloadClient(o.httpClient))
	}
	store := auth.NewFileStore(cfg.TokenPath(), auth.WithStoreLogger(logger), auth.WithStoreClock(o.now))
	refresher, err := auth.NewRefresher(cfg, store, authOpts...)
	if err != nil {
		return nil, err
	}
	executor, err := auth.NewExecutor(cfg, store, refresher, authOpts...)
	if err != nil {
		return nil, err
	}
	client := picker.NewClient(cfg, executor)
	sessions := picker.NewSessionManager(cfg, client,
		picker.WithManagerLogger(logger), picker.WithManagerClock(o.now))

	index, err := mediacache.Open(cfg, logger)
	if err != nil {
		return nil, err
	}

	conv := o.converter
	if conv == nil && !o.noConvert {
		conv = convert.Detect(cfg, logger)
	}
	pipeline, err := acquire.NewPipeline(cfg, acquire.Dependencies{
		Lister:     client,
		Downloader: executor,
		Sessions:   sessions,
		Index:      index,
		Converter:  conv,
		Logger:     logger,
	})
	if err != nil {
		_ = index.Close()
		return nil, err
	}

	return &Service{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "kiosk"),
		now:       o.now,
		store:     store,
		refresher: refresher,
		executor:  executor,
		sessions:  sessions,
		index:     index,
		pipeline:  pipeline,
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
		states:    map[string]time.Time{},
	}, nil
}

// Close releases the cache index.
func (s *Service) Close() error {
	if s == nil || s.index == nil {
		return nil
	}
	return s.index.Close()
}

// Entries returns the cached slideshow in ordinal order.
func (s *Service) Entries(ctx context.Context) ([]mediacache.Entry, error) {
	return s.index.Read(ctx)
}

// OpenMedia opens the cached file at ordinal. The caller closes it.
func (s *Service) OpenMedia(ctx context.Context, ordinal int, kind mediacache.Kind) (*os.File, mediacache.Entry, error) {
	return s.index.Open(ctx, ordinal, kind)
}

// EnsureSession returns a picking session that will not expire imminently.
func (s *Service) EnsureSession(ctx context.Context) (picker.Session, picker.EnsureResult, error) {
	return s.sessions.EnsureSession(ctx)
}

// CurrentSession returns the held picking session, if any.
func (s *Service) CurrentSession() (picker.Session, bool) {
	return s.sessions.Current()
}

// Poll reports whether the user finished picking.
func (s *Service) Poll(ctx context.Context) (picker.PollResult, error) {
	return s.sessions.Poll(ctx)
}

// WaitReady polls until the selection is complete or ctx ends.
func (s *Service) WaitReady(ctx context.Context, onPoll func(picker.PollResult)) (picker.PollResult, error) {
	return s.sessions.WaitReady(ctx, onPoll)
}

// FetchAndCache acquires the current session's selection into the cache.
// The session is consumed whatever the outcome.
func (s *Service) FetchAndCache(ctx context.Context) (acquire.Result, error) {
	if _, ok := s.sessions.Current(); !ok {
		return acquire.Result{}, &acquire.FetchError{Op: "list", Err: picker.ErrNoSession}
	}
	unlock, err := s.acquireLock()
	if err != nil {
		return acquire.Result{}, err
	}
	defer unlock()

	sess, ok := s.sessions.Claim()
	if !ok {
		return acquire.Result{}, &acquire.FetchError{Op: "list", Err: picker.ErrNoSession}
	}

	runID := uuid.NewString()
	s.logger.Info("acquisition starting",
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldSessionID, sess.ID))
	return s.pipeline.FetchAndCache(ctx, acquire.Run{ID: runID, Session: sess})
}

// ClearCache removes every cached file and index row.
func (s *Service) ClearCache(ctx context.Context) error {
	unlock, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()
	return s.index.Clear(ctx)
}

func (s *Service) acquireLock() (func(), error) {
	if !s.writeMu.TryLock() {
		return nil, ErrBusy
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		s.writeMu.Unlock()
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !ok {
		s.writeMu.Unlock()
		return nil, ErrBusy
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release cache lock",
				logging.String("lock", s.lockPath), logging.Error(err))
		}
		s.writeMu.Unlock()
	}, nil
}

// AuthorizeURL returns a consent URL with a fresh single-use state value.
func (s *Service) AuthorizeURL() (string, string) {
	state := uuid.NewString()
	now := s.now()
	s.stateMu.Lock()
	for key, issued := range s.states {
		if now.Sub(issued) > stateLifetime {
			delete(s.states, key)
		}
	}
	s.states[state] = now
	s.stateMu.Unlock()
	return s.refresher.AuthorizeURL(state), state
}

// VerifyState consumes a state value issued by AuthorizeURL.
func (s *Service) VerifyState(state string) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	issued, ok := s.states[state]
	delete(s.states, state)
	if !ok || s.now().Sub(issued) > stateLifetime {
		return ErrInvalidState
	}
	return nil
}

// CompleteAuthorization exchanges an authorization code and stores the credential.
func (s *Service) CompleteAuthorization(ctx context.Context, code string) (auth.Credential, error) {
	cred, err := s.refresher.Exchange(ctx, code)
	if err != nil {
		return auth.Credential{}, err
	}
	s.logger.Info("kiosk authorized", logging.Bool("has_refresh_token", cred.RefreshToken != ""))
	return cred, nil
}

// Authorized reports whether a refresh-capable credential is stored.
func (s *Service) Authorized() (bool, error) {
	cred, err := s.store.Load()
	if err != nil {
		return false, err
	}
	return cred.Linked(), nil
}

// SignOut releases the picking session and forgets the stored credential.
func (s *Service) SignOut(ctx context.Context) error {
	if sess, ok := s.sessions.Current(); ok {
		s.sessions.Consume(ctx, sess.ID)
	}
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	s.logger.Info("signed out")
	return nil
}

// Status reports authorization, session and cache counts.
func (s *Service) Status(ctx context.Context) (Status, error) {
	status := Status{DataDir: s.cfg.Paths.DataDir}
	authorized, err := s.Authorized()
	if err != nil {
		return status, err
	}
	status.Authorized = authorized
	if sess, ok := s.sessions.Current(); ok {
		status.Session = &sess
	}
	entries, err := s.index.Read(ctx)
	if err != nil {
		return status, err
	}
	status.Entries = len(entries)
	for _, entry := range entries {
		if entry.Kind == mediacache.KindVideo {
			status.Videos++
		} else {
			status.Images++
		}
	}
	return status, nil
}
