package acquire_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"photokiosk/internal/acquire"
	"photokiosk/internal/auth"
	"photokiosk/internal/config"
	"photokiosk/internal/convert"
	"photokiosk/internal/mediacache"
	"photokiosk/internal/picker"
	"photokiosk/internal/testsupport"
)

type harness struct {
	cfg      *config.Config
	fake     *testsupport.FakeGoogle
	manager  *picker.SessionManager
	index    *mediacache.Index
	pipeline *acquire.Pipeline
}

func newHarness(t *testing.T, fake *testsupport.FakeGoogle) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithGoogle(fake))
	fake.SeedValidCredential(t, cfg)

	store := auth.NewFileStore(cfg.TokenPath())
	refresher, err := auth.NewRefresher(cfg, store, auth.WithHTTPClient(fake.Client()))
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}
	exec, err := auth.NewExecutor(cfg, store, refresher,
		auth.WithHTTPClient(fake.Client()), auth.WithDownloadClient(fake.Client()))
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	client := picker.NewClient(cfg, exec)
	manager := picker.NewSessionManager(cfg, client)

	index, err := mediacache.Open(cfg, nil)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { _ = index.Close() })

	pipeline, err := acquire.NewPipeline(cfg, acquire.Dependencies{
		Lister:     client,
		Downloader: exec,
		Sessions:   manager,
		Index:      index,
		Converter:  convert.NewDecoderConverter(),
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return &harness{cfg: cfg, fake: fake, manager: manager, index: index, pipeline: pipeline}
}

func (h *harness) run(t *testing.T) (acquire.Result, error) {
	t.Helper()
	sess, _, err := h.manager.EnsureSession(context.Background())
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	return h.pipeline.FetchAndCache(context.Background(), acquire.Run{ID: "run-1", Session: sess})
}

func (h *harness) assertConsumed(t *testing.T) {
	t.Helper()
	if _, ok := h.manager.Current(); ok {
		t.Fatal("expected session to be forgotten after the run")
	}
	h.fake.Lock()
	defer h.fake.Unlock()
	if !slices.Contains(h.fake.DeletedSessions, "session-1") {
		t.Fatalf("expected session-1 deleted remotely, got %v", h.fake.DeletedSessions)
	}
}

func TestFetchAndCacheVideosAcrossPages(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	fake.PageSize = 2
	fake.Items = []testsupport.FakeItem{
		{ID: "v1", MimeType: "video/mp4", Filename: "beach.mp4", Body: []byte("video-one")},
		{ID: "v2", MimeType: "video/mp4", Filename: "party.mp4", Body: []byte("video-two")},
		{ID: "v3", MimeType: "video/quicktime", Filename: "dog.mov", Body: []byte("video-three")},
	}
	h := newHarness(t, fake)

	result, err := h.run(t)
	if err != nil {
		t.Fatalf("FetchAndCache: %v", err)
	}
	if result.Downloaded != 3 || result.Skipped != 0 || result.Listed != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}

	fake.Lock()
	listCalls := fake.ListRequests
	fake.Unlock()
	if listCalls != 2 {
		t.Fatalf("expected 2 list calls, got %d", listCalls)
	}
	for _, id := range []string{"v1", "v2", "v3"} {
		if got := fake.MediaRequestFor(id); got != id+"=dv" {
			t.Fatalf("expected streaming request for %s, got %q", id, got)
		}
	}

	entries, err := h.index.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for n, entry := range entries {
		if entry.Ordinal != n || entry.Kind != mediacache.KindVideo {
			t.Fatalf("unexpected entry %d: %+v", n, entry)
		}
		if !strings.HasPrefix(filepath.Base(entry.Path), "000") {
			t.Fatalf("expected ordinal-prefixed file name, got %q", entry.Path)
		}
	}
	if filepath.Ext(entries[2].Path) != ".mov" {
		t.Fatalf("expected .mov extension, got %q", entries[2].Path)
	}
	data, err := os.ReadFile(entries[1].Path)
	if err != nil || string(data) != "video-two" {
		t.Fatalf("unexpected cached bytes %q (%v)", data, err)
	}
	h.assertConsumed(t)
}

func TestFetchAndCacheRequestsSizedImages(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	fake.Items = []testsupport.FakeItem{
		{ID: "p1", MimeType: "image/png", Filename: "sunset.png", Body: testsupport.PNGBytes(t, 4, 4)},
		{ID: "p2", MimeType: "image/jpeg", Filename: "top.jpg", Body: []byte("jpeg"), TopLevel: true},
	}
	h := newHarness(t, fake)

	if _, err := h.run(t); err != nil {
		t.Fatalf("FetchAndCache: %v", err)
	}
	for _, id := range []string{"p1", "p2"} {
		if got := fake.MediaRequestFor(id); got != id+"=w1920-h1080" {
			t.Fatalf("expected sized request for %s, got %q", id, got)
		}
	}
	entries, _ := h.index.Read(context.Background())
	if len(entries) != 2 || entries[0].Kind != mediacache.KindImage || entries[1].DisplayName != "top.jpg" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestFetchAndCacheSkipsFailedDownloads(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	fake.Items = []testsupport.FakeItem{
		{ID: "a", MimeType: "image/jpeg", Filename: "a.jpg", Body: []byte("a")},
		{ID: "b", MimeType: "image/jpeg", Filename: "b.jpg", FailDownload: true},
		{ID: "c", MimeType: "image/jpeg", Filename: "c.jpg", Body: []byte("c")},
		{ID: "d", MimeType: "image/jpeg", Filename: "d.jpg", Body: nil},
	}
	h := newHarness(t, fake)

	result, err := h.run(t)
	if err != nil {
		t.Fatalf("FetchAndCache: %v", err)
	}
	if result.Downloaded != 2 || result.Skipped != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	entries, _ := h.index.Read(context.Background())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].DisplayName != "a.jpg" || entries[1].DisplayName != "c.jpg" || entries[1].Ordinal != 1 {
		t.Fatalf("expected dense ordinals in listing order, got %+v", entries)
	}
	h.assertConsumed(t)
}

func TestFetchAndCacheEmptySelectionKeepsIndex(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	fake.Items = []testsupport.FakeItem{{ID: "a", MimeType: "image/jpeg", Filename: "a.jpg", Body: []byte("a")}}
	h := newHarness(t, fake)
	if _, err := h.run(t); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before, _ := h.index.Read(context.Background())

	fake.Lock()
	fake.Items = nil
	fake.Unlock()
	sess, _, err := h.manager.EnsureSession(context.Background())
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	_, err = h.pipeline.FetchAndCache(context.Background(), acquire.Run{ID: "run-2", Session: sess})
	if !errors.Is(err, acquire.ErrEmptySelection) {
		t.Fatalf("expected ErrEmptySelection, got %v", err)
	}
	after, _ := h.index.Read(context.Background())
	if len(after) != len(before) || after[0].Path != before[0].Path {
		t.Fatalf("expected index untouched, before=%+v after=%+v", before, after)
	}
	if _, err := os.Stat(after[0].Path); err != nil {
		t.Fatalf("expected cached file kept: %v", err)
	}
	if _, ok := h.manager.Current(); ok {
		t.Fatal("expected session consumed after empty selection")
	}
	fake.Lock()
	defer fake.Unlock()
	if !slices.Contains(fake.DeletedSessions, sess.ID) {
		t.Fatalf("expected %s deleted, got %v", sess.ID, fake.DeletedSessions)
	}
}

func TestFetchAndCacheDropsItemsWithoutLocator(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	fake.Items = []testsupport.FakeItem{
		{ID: "a", MimeType: "image/jpeg", Filename: "a.jpg", NoBaseURL: true},
		{ID: "b", MimeType: "image/jpeg", Filename: "b.jpg", Body: []byte("b")},
	}
	h := newHarness(t, fake)

	result, err := h.run(t)
	if err != nil {
		t.Fatalf("FetchAndCache: %v", err)
	}
	if result.Dropped != 1 || result.Downloaded != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if fake.MediaRequestFor("a") != "" {
		t.Fatal("dropped item must not be requested")
	}
}

func TestFetchAndCacheConvertsBMP(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	fake.Items = []testsupport.FakeItem{
		{ID: "bmp", MimeType: "image/bmp", Filename: "scan.bmp", Body: testsupport.BMPBytes(t, 8, 8)},
	}
	h := newHarness(t, fake)

	result, err := h.run(t)
	if err != nil {
		t.Fatalf("FetchAndCache: %v", err)
	}
	if result.Converted != 1 {
		t.Fatalf("expected one conversion, got %+v", result)
	}
	entries, _ := h.index.Read(context.Background())
	if len(entries) != 1 || entries[0].ContentType != "image/jpeg" || filepath.Ext(entries[0].Path) != ".jpg" {
		t.Fatalf("unexpected converted entry: %+v", entries)
	}
	if !strings.Contains(filepath.Base(entries[0].Path), "scan") {
		t.Fatalf("expected display name stem in file name, got %q", entries[0].Path)
	}
}

func TestFetchAndCacheAllFailedKeepsIndex(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	fake.Items = []testsupport.FakeItem{
		{ID: "a", MimeType: "image/jpeg", Filename: "a.jpg", FailDownload: true},
		{ID: "b", MimeType: "video/mp4", Filename: "b.mp4", FailDownload: true},
	}
	h := newHarness(t, fake)

	result, err := h.run(t)
	if !errors.Is(err, acquire.ErrNoneDownloaded) {
		t.Fatalf("expected ErrNoneDownloaded, got %v", err)
	}
	var fetchErr *acquire.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Op != "download" {
		t.Fatalf("expected FetchError for download, got %#v", err)
	}
	if result.Skipped != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	entries, _ := h.index.Read(context.Background())
	if len(entries) != 0 {
		t.Fatalf("expected empty index, got %+v", entries)
	}
	leftovers, _ := os.ReadDir(h.index.MediaDir())
	if len(leftovers) != 0 {
		t.Fatalf("expected run directory discarded, found %d entries", len(leftovers))
	}
	h.assertConsumed(t)
}

func TestFetchAndCacheWithoutSession(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	h := newHarness(t, fake)

	_, err := h.pipeline.FetchAndCache(context.Background(), acquire.Run{ID: "run-x"})
	if !errors.Is(err, picker.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

type failingIndex struct {
	*mediacache.Index
}

func (failingIndex) Write(context.Context, []mediacache.Entry) error {
	return errors.New("disk full")
}

func TestFetchAndCachePersistFailure(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	fake.Items = []testsupport.FakeItem{{ID: "a", MimeType: "image/jpeg", Filename: "a.jpg", Body: []byte("a")}}
	h := newHarness(t, fake)

	store := auth.NewFileStore(h.cfg.TokenPath())
	refresher, _ := auth.NewRefresher(h.cfg, store, auth.WithHTTPClient(fake.Client()))
	exec, _ := auth.NewExecutor(h.cfg, store, refresher,
		auth.WithHTTPClient(fake.Client()), auth.WithDownloadClient(fake.Client()))
	client := picker.NewClient(h.cfg, exec)
	pipeline, err := acquire.NewPipeline(h.cfg, acquire.Dependencies{
		Lister: client, Downloader: exec, Sessions: h.manager, Index: failingIndex{h.index},
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	sess, _, err := h.manager.EnsureSession(context.Background())
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	_, err = pipeline.FetchAndCache(context.Background(), acquire.Run{ID: "run-p", Session: sess})
	if !errors.Is(err, acquire.ErrPersistFailure) {
		t.Fatalf("expected ErrPersistFailure, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(h.index.MediaDir(), "run-p")); !os.IsNotExist(statErr) {
		t.Fatalf("expected run directory removed, stat err=%v", statErr)
	}
	h.assertConsumed(t)
}

func TestFetchAndCacheIgnoresCallerCancellation(t *testing.T) {
	fake := testsupport.NewFakeGoogle(t)
	fake.Items = []testsupport.FakeItem{
		{ID: "p1", MimeType: "image/jpeg", Filename: "one.jpg", Body: []byte("one")},
		{ID: "p2", MimeType: "image/jpeg", Filename: "two.jpg", Body: []byte("two")},
	}
	h := newHarness(t, fake)
	sess, _, err := h.manager.EnsureSession(context.Background())
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := h.pipeline.FetchAndCache(ctx, acquire.Run{ID: "run-1", Session: sess})
	if err != nil {
		t.Fatalf("FetchAndCache: %v", err)
	}
	if result.Downloaded != 2 {
		t.Fatalf("expected both items downloaded, got %+v", result)
	}
	entries, _ := h.index.Read(context.Background())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	h.assertConsumed(t)
}
