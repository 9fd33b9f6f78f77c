package mediacache_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"photokiosk/internal/config"
	"photokiosk/internal/logging"
	"photokiosk/internal/mediacache"
	"photokiosk/internal/testsupport"
)

func openIndex(t *testing.T, cfg *config.Config) *mediacache.Index {
	t.Helper()
	idx, err := mediacache.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func stageRun(t *testing.T, idx *mediacache.Index, runID string, names ...string) []mediacache.Entry {
	t.Helper()
	dir, err := idx.NewRunDir(runID)
	if err != nil {
		t.Fatalf("NewRunDir: %v", err)
	}
	entries := make([]mediacache.Entry, 0, len(names))
	for n, name := range names {
		path := filepath.Join(dir, name)
		testsupport.WriteFile(t, path, int64(10*(n+1)))
		kind := mediacache.KindImage
		if filepath.Ext(name) == ".mp4" {
			kind = mediacache.KindVideo
		}
		entries = append(entries, mediacache.Entry{
			Ordinal:     n,
			Path:        path,
			Kind:        kind,
			DisplayName: name,
			SizeBytes:   int64(10 * (n + 1)),
			RunID:       runID,
		})
	}
	return entries
}

func TestReadEmptyIndex(t *testing.T) {
	idx := openIndex(t, testsupport.NewConfig(t))

	entries, err := idx.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", entries)
	}
}

func TestWriteReadRoundTripSurvivesReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	idx := openIndex(t, cfg)
	ctx := context.Background()

	written := stageRun(t, idx, "run-a", "0000_beach.jpg", "0001_clip.mp4", "0002_sunset.png")
	if err := idx.Write(ctx, written); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openIndex(t, cfg)
	entries, err := reopened.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for n, entry := range entries {
		if entry.Ordinal != n || entry.Path != written[n].Path || entry.Kind != written[n].Kind {
			t.Fatalf("entry %d mismatch: got %#v want %#v", n, entry, written[n])
		}
		if entry.CachedAt.IsZero() {
			t.Fatalf("entry %d missing cached_at", n)
		}
	}
}

func TestWriteRejectsSparseOrdinalsAndKeepsPrevious(t *testing.T) {
	idx := openIndex(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := stageRun(t, idx, "run-a", "0000_a.jpg")
	if err := idx.Write(ctx, first); err != nil {
		t.Fatalf("Write: %v", err)
	}

	bad := stageRun(t, idx, "run-b", "0000_x.jpg", "0001_y.jpg")
	bad[1].Ordinal = 5
	if err := idx.Write(ctx, bad); !errors.Is(err, mediacache.ErrInvalidEntries) {
		t.Fatalf("expected ErrInvalidEntries, got %v", err)
	}

	outside := []mediacache.Entry{{Ordinal: 0, Path: "/etc/passwd", Kind: mediacache.KindImage}}
	if err := idx.Write(ctx, outside); !errors.Is(err, mediacache.ErrInvalidEntries) {
		t.Fatalf("expected path outside media dir to be rejected, got %v", err)
	}

	entries, err := idx.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != first[0].Path {
		t.Fatalf("previous index must be untouched, got %#v", entries)
	}
}

func TestWritePrunesReplacedRunDirectories(t *testing.T) {
	idx := openIndex(t, testsupport.NewConfig(t))
	ctx := context.Background()

	old := stageRun(t, idx, "run-old", "0000_a.jpg")
	if err := idx.Write(ctx, old); err != nil {
		t.Fatalf("Write old: %v", err)
	}
	next := stageRun(t, idx, "run-new", "0000_b.jpg", "0001_c.jpg")
	if err := idx.Write(ctx, next); err != nil {
		t.Fatalf("Write new: %v", err)
	}

	if _, err := os.Stat(filepath.Dir(old[0].Path)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected old run directory removed, stat err=%v", err)
	}
	for _, entry := range next {
		if _, err := os.Stat(entry.Path); err != nil {
			t.Fatalf("new file missing: %v", err)
		}
	}
}

func TestGetAndOpen(t *testing.T) {
	idx := openIndex(t, testsupport.NewConfig(t))
	ctx := context.Background()
	entries := stageRun(t, idx, "run-a", "0000_a.jpg", "0001_b.mp4")
	if err := idx.Write(ctx, entries); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := idx.Get(ctx, 7); !errors.Is(err, mediacache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := idx.Open(ctx, 0, mediacache.KindVideo); !errors.Is(err, mediacache.ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}

	f, entry, err := idx.Open(ctx, 1, mediacache.KindVideo)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if int64(len(data)) != entry.SizeBytes {
		t.Fatalf("unexpected file size %d, want %d", len(data), entry.SizeBytes)
	}
}

func TestClearRemovesEntriesAndFiles(t *testing.T) {
	idx := openIndex(t, testsupport.NewConfig(t))
	ctx := context.Background()
	entries := stageRun(t, idx, "run-a", "0000_a.jpg")
	if err := idx.Write(ctx, entries); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err := idx.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty index, got %d entries", len(got))
	}
	children, err := os.ReadDir(idx.MediaDir())
	if err != nil {
		t.Fatalf("read media dir: %v", err)
	}
	if len(children) != 0 {
		t.Fatalf("expected empty media dir, found %d children", len(children))
	}
}

func TestParseKind(t *testing.T) {
	if k, err := mediacache.ParseKind(" Video "); err != nil || k != mediacache.KindVideo {
		t.Fatalf("ParseKind video: %v %v", k, err)
	}
	if _, err := mediacache.ParseKind("audio"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestNewRunDirRejectsTraversal(t *testing.T) {
	idx := openIndex(t, testsupport.NewConfig(t))
	for _, id := range []string{"", "..", "a/b"} {
		if _, err := idx.NewRunDir(id); err == nil {
			t.Fatalf("expected error for run id %q", id)
		}
	}
}
