package mediacache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"photokiosk/internal/config"
	"photokiosk/internal/logging"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Index is the SQLite-backed local cache index.
type Index struct {
	db       *sql.DB
	path     string
	mediaDir string
	logger   *slog.Logger
}

// Open initializes or connects to the cache database and applies migrations.
func Open(cfg *config.Config, logger *slog.Logger) (*Index, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.CacheDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	idx := &Index{
		db:       db,
		path:     dbPath,
		mediaDir: cfg.MediaDir(),
		logger:   logging.NewComponentLogger(logger, "mediacache"),
	}
	if err := idx.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// Close closes the underlying database connection.
func (i *Index) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

// MediaDir returns the directory holding cached files.
func (i *Index) MediaDir() string { return i.mediaDir }

// NewRunDir creates the directory an acquisition run downloads into.
func (i *Index) NewRunDir(runID string) (string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	dir := filepath.Join(i.mediaDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}
	return dir, nil
}

// DiscardRunDir removes a run directory that will not be promoted.
func (i *Index) DiscardRunDir(dir string) {
	if rel, err := filepath.Rel(i.mediaDir, dir); err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		i.logger.Warn("failed to remove discarded run directory",
			logging.String("dir", dir), logging.Error(err),
			logging.String(logging.FieldEventType, "run_dir_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the directory manually"),
			logging.String(logging.FieldImpact, "disk space is not reclaimed"))
	}
}

// Read returns all entries ordered by ordinal. An empty cache yields an empty slice.
func (i *Index) Read(ctx context.Context) ([]Entry, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT ordinal, rel_path, kind, display_name, content_type, size_bytes, run_id, cached_at
        FROM cache_entries ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("query cache entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		entry, err := i.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache entries: %w", err)
	}
	return entries, nil
}

// Get returns the entry at ordinal or ErrNotFound.
func (i *Index) Get(ctx context.Context, ordinal int) (Entry, error) {
	row := i.db.QueryRowContext(ctx, `SELECT ordinal, rel_path, kind, display_name, content_type, size_bytes, run_id, cached_at
        FROM cache_entries WHERE ordinal = ?`, ordinal)
	entry, err := i.scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: index %d", ErrNotFound, ordinal)
	}
	return entry, err
}

// Open returns the cached file at ordinal, verifying its kind when kind is non-empty.
func (i *Index) Open(ctx context.Context, ordinal int, kind Kind) (*os.File, Entry, error) {
	entry, err := i.Get(ctx, ordinal)
	if err != nil {
		return nil, Entry{}, err
	}
	if kind != "" && entry.Kind != kind {
		return nil, Entry{}, fmt.Errorf("%w: index %d is %s, not %s", ErrKindMismatch, ordinal, entry.Kind, kind)
	}
	f, err := os.Open(entry.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Entry{}, fmt.Errorf("%w: file for index %d missing", ErrNotFound, ordinal)
		}
		return nil, Entry{}, fmt.Errorf("open cached file: %w", err)
	}
	return f, entry, nil
}

// Write atomically replaces the index with entries, whose ordinals must be
// exactly 0..n-1, then removes media directories no longer referenced.
func (i *Index) Write(ctx context.Context, entries []Entry) error {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Ordinal < sorted[b].Ordinal })

	relPaths := make([]string, len(sorted))
	for n, entry := range sorted {
		if entry.Ordinal != n {
			return fmt.Errorf("%w: ordinals must be dense from 0, found %d at position %d", ErrInvalidEntries, entry.Ordinal, n)
		}
		if entry.Kind != KindImage && entry.Kind != KindVideo {
			return fmt.Errorf("%w: index %d has kind %q", ErrInvalidEntries, n, entry.Kind)
		}
		rel, err := i.relative(entry.Path)
		if err != nil {
			return err
		}
		relPaths[n] = rel
	}

	err := retryOnBusy(ctx, func() error {
		return i.replace(ctx, sorted, relPaths)
	})
	if err != nil {
		return err
	}
	i.logger.Info("cache index replaced", logging.Int("entries", len(sorted)))
	i.prune(relPaths)
	return nil
}

func (i *Index) replace(ctx context.Context, entries []Entry, relPaths []string) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_entries"); err != nil {
		return fmt.Errorf("clear cache entries: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cache_entries
        (ordinal, rel_path, kind, display_name, content_type, size_bytes, run_id, cached_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for n, entry := range entries {
		cachedAt := entry.CachedAt
		if cachedAt.IsZero() {
			cachedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			entry.Ordinal, relPaths[n], string(entry.Kind), entry.DisplayName,
			entry.ContentType, entry.SizeBytes, entry.RunID, cachedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert cache entry %d: %w", entry.Ordinal, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache index: %w", err)
	}
	return nil
}

// Clear removes every entry and every cached file.
func (i *Index) Clear(ctx context.Context) error {
	err := retryOnBusy(ctx, func() error {
		_, err := i.db.ExecContext(ctx, "DELETE FROM cache_entries")
		return err
	})
	if err != nil {
		return fmt.Errorf("clear cache entries: %w", err)
	}
	children, err := os.ReadDir(i.mediaDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read media directory: %w", err)
	}
	var errs []error
	for _, child := range children {
		if err := os.RemoveAll(filepath.Join(i.mediaDir, child.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("remove cached media: %w", errors.Join(errs...))
	}
	i.logger.Info("cache cleared")
	return nil
}

// prune removes top-level media directories and files that no kept path lives under.
func (i *Index) prune(keptRelPaths []string) {
	keep := make(map[string]struct{}, len(keptRelPaths))
	for _, rel := range keptRelPaths {
		top, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
		keep[top] = struct{}{}
	}
	children, err := os.ReadDir(i.mediaDir)
	if err != nil {
		return
	}
	for _, child := range children {
		if _, ok := keep[child.Name()]; ok {
			continue
		}
		if err := os.RemoveAll(filepath.Join(i.mediaDir, child.Name())); err != nil {
			i.logger.Warn("failed to prune stale media",
				logging.String("name", child.Name()), logging.Error(err),
				logging.String(logging.FieldEventType, "cache_prune_failed"),
				logging.String(logging.FieldErrorHint, "run 'photokiosk cache clear' to reclaim space"),
				logging.String(logging.FieldImpact, "stale files remain on disk"))
		}
	}
}

func (i *Index) relative(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(i.mediaDir, path)
	}
	rel, err := filepath.Rel(i.mediaDir, filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside the media directory", ErrInvalidEntries, path)
	}
	return rel, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (i *Index) scanEntry(row scanner) (Entry, error) {
	var (
		entry    Entry
		rel      string
		kind     string
		cachedAt string
	)
	if err := row.Scan(&entry.Ordinal, &rel, &kind, &entry.DisplayName, &entry.ContentType, &entry.SizeBytes, &entry.RunID, &cachedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan cache entry: %w", err)
	}
	entry.Path = filepath.Join(i.mediaDir, rel)
	entry.Kind = Kind(kind)
	if t, err := time.Parse(time.RFC3339Nano, cachedAt); err == nil {
		entry.CachedAt = t
	}
	return entry, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
