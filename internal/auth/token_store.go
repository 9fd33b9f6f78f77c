package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"photokiosk/internal/fileutil"
	"photokiosk/internal/logging"
)

// TokenStore abstracts persistence for the delegated credential.
type TokenStore interface {
	Load() (Credential, error)
	Save(partial Credential) (Credential, error)
	Clear() error
}

// StoreOption customises FileStore construction.
type StoreOption func(*FileStore)

// WithStoreClock overrides the clock used to stamp saved_at.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *FileStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStoreLogger attaches a logger for persistence events.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *FileStore) {
		s.logger = logging.NewComponentLogger(logger, "token-store")
	}
}

// FileStore writes the credential record to a JSON file on disk.
type FileStore struct {
	path   string
	now    func() time.Time
	logger *slog.Logger

	mu sync.Mutex
}

// NewFileStore builds a FileStore rooted at the provided path.
func NewFileStore(path string, opts ...StoreOption) *FileStore {
	s := &FileStore{path: path, now: time.Now, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the location of the credential file.
func (s *FileStore) Path() string { return s.path }

// Load reads the credential from disk. A missing file resolves to an empty record.
func (s *FileStore) Load() (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *FileStore) loadLocked() (Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credential{}, nil
		}
		return Credential{}, fmt.Errorf("read credential: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	return cred, nil
}

// Save merges partial into the stored record and persists the result with
// restricted permissions. Empty fields in partial keep their stored values.
func (s *FileStore) Save(partial Credential) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked()
	if err != nil {
		// An unreadable record cannot contribute fields; overwrite it.
		logging.WarnWithContext(s.logger, "existing credential unreadable; replacing", "credential_corrupt",
			logging.Error(err),
			logging.String(logging.FieldImpact, "previously stored fields are discarded"),
			logging.String(logging.FieldErrorHint, "re-run authorization if the refresh token was lost"),
		)
		current = Credential{}
	}

	merged := current.merge(partial)
	merged.SavedAt = s.now().Unix()

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return Credential{}, fmt.Errorf("encode credential: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return Credential{}, fmt.Errorf("write credential: %w", err)
	}
	s.logger.Debug("credential persisted",
		logging.Bool("has_refresh_token", merged.RefreshToken != ""),
		logging.Int64("expires_in", merged.ExpiresIn),
	)
	return merged, nil
}

// Clear removes the stored credential.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential: %w", err)
	}
	return nil
}
