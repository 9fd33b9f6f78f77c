package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"photokiosk/internal/config"
	"photokiosk/internal/convert"
	"photokiosk/internal/fileutil"
	"photokiosk/internal/logging"
	"photokiosk/internal/mediacache"
	"photokiosk/internal/picker"
	"photokiosk/internal/textutil"
)

const consumeTimeout = 10 * time.Second

// Lister lists a session's selection. picker.Client satisfies it.
type Lister interface {
	ListAllMediaItems(ctx context.Context, sessionID string) ([]picker.MediaItem, error)
}

// Downloader opens an authorized media stream. auth.Executor satisfies it.
type Downloader interface {
	Stream(ctx context.Context, url string) (*http.Response, error)
}

// Consumer releases the picking session a run fetched once the run ends.
// picker.SessionManager satisfies it.
type Consumer interface {
	Consume(ctx context.Context, sessionID string)
}

// Index is the cache storage the pipeline writes. mediacache.Index satisfies it.
type Index interface {
	NewRunDir(runID string) (string, error)
	DiscardRunDir(dir string)
	Write(ctx context.Context, entries []mediacache.Entry) error
}

// Run carries the state one acquisition works against.
type Run struct {
	ID      string
	Session picker.Session
}

// Result summarises an acquisition run.
type Result struct {
	RunID      string `json:"run_id"`
	SessionID  string `json:"session_id"`
	Listed     int    `json:"listed"`
	Dropped    int    `json:"dropped"`
	Downloaded int    `json:"downloaded"`
	Skipped    int    `json:"skipped"`
	Converted  int    `json:"converted"`
}

// Dependencies groups the collaborators a Pipeline needs.
type Dependencies struct {
	Lister     Lister
	Downloader Downloader
	Sessions   Consumer
	Index      Index
	// Converter is optional; nil keeps unrenderable images as downloaded.
	Converter convert.Converter
	Logger    *slog.Logger
}

// Pipeline turns a completed selection into cached files.
type Pipeline struct {
	deps    Dependencies
	width   int
	height  int
	workers int
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewPipeline builds a Pipeline from configuration.
func NewPipeline(cfg *config.Config, deps Dependencies) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if deps.Lister == nil || deps.Downloader == nil || deps.Sessions == nil || deps.Index == nil {
		return nil, errors.New("acquire: lister, downloader, sessions and index are required")
	}
	p := &Pipeline{
		deps:    deps,
		width:   cfg.Acquire.TargetWidth,
		height:  cfg.Acquire.TargetHeight,
		workers: max(cfg.Acquire.DownloadWorkers, 1),
		logger:  logging.NewComponentLogger(deps.Logger, "acquire"),
	}
	if cfg.Acquire.DownloadsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.Acquire.DownloadsPerSecond), p.workers)
	}
	return p, nil
}

type downloaded struct {
	ref         Reference
	partPath    string
	contentType string
	kind        mediacache.Kind
	size        int64
	converted   bool
}

// FetchAndCache downloads the selection of run.Session and replaces the
// cache index with the items that succeeded. The batch ignores cancellation
// of ctx and runs to completion; per-request timeouts bound each call.
func (p *Pipeline) FetchAndCache(ctx context.Context, run Run) (result Result, err error) {
	ctx = context.WithoutCancel(ctx)
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	ctx = logging.WithRunID(ctx, run.ID)
	logger := logging.WithContext(ctx, p.logger).With(logging.String(logging.FieldSessionID, run.Session.ID))
	result = Result{RunID: run.ID, SessionID: run.Session.ID}

	defer func() {
		consumeCtx, cancel := context.WithTimeout(ctx, consumeTimeout)
		defer cancel()
		p.deps.Sessions.Consume(consumeCtx, run.Session.ID)
	}()

	if run.Session.ID == "" {
		return result, &FetchError{Op: "list", Err: picker.ErrNoSession}
	}

	items, err := p.deps.Lister.ListAllMediaItems(ctx, run.Session.ID)
	if err != nil {
		return result, &FetchError{Op: "list", Err: err}
	}
	refs, dropped := references(items)
	result.Listed = len(items)
	result.Dropped = len(dropped)
	for _, item := range dropped {
		logging.WarnWithContext(logger, "selected item has no download url; dropping", "item_without_locator",
			logging.String("item_id", item.ID),
			logging.String("display_name", item.DisplayName()),
			logging.String(logging.FieldImpact, "the item is missing from the slideshow"),
			logging.String(logging.FieldErrorHint, "pick the item again or check it is still in the library"),
		)
	}
	if len(refs) == 0 {
		logger.Info("selection is empty; keeping current cache", logging.Int("listed", len(items)))
		return result, &FetchError{Op: "list", Err: ErrEmptySelection}
	}
	logger.Info("selection listed", logging.Int("references", len(refs)), logging.Int("dropped", len(dropped)))

	runDir, err := p.deps.Index.NewRunDir(run.ID)
	if err != nil {
		return result, persistError("prepare", err)
	}
	promoted := false
	defer func() {
		if !promoted {
			p.deps.Index.DiscardRunDir(runDir)
		}
	}()

	outcomes := p.downloadAll(ctx, logger, runDir, refs)

	entries := make([]mediacache.Entry, 0, len(refs))
	for _, out := range outcomes {
		if out == nil {
			result.Skipped++
			continue
		}
		ordinal := len(entries)
		ext := extensionFor(out.contentType, out.ref.DisplayName, out.kind)
		name := fmt.Sprintf("%04d_%s%s", ordinal, textutil.FileStem(out.ref.DisplayName), ext)
		final := filepath.Join(runDir, name)
		if err := os.Rename(out.partPath, final); err != nil {
			return result, persistError("persist", err)
		}
		if out.converted {
			result.Converted++
		}
		entries = append(entries, mediacache.Entry{
			Ordinal:     ordinal,
			Path:        final,
			Kind:        out.kind,
			DisplayName: out.ref.DisplayName,
			ContentType: out.contentType,
			SizeBytes:   out.size,
			RunID:       run.ID,
		})
	}
	result.Downloaded = len(entries)

	if len(entries) == 0 {
		logging.ErrorWithContext(logger, "every selected item failed to download; keeping current cache", "download_all_failed",
			logging.Int("skipped", result.Skipped),
			logging.String(logging.FieldErrorHint, "check network connectivity and pick again"),
		)
		return result, &FetchError{Op: "download", Err: ErrNoneDownloaded}
	}

	if err := p.deps.Index.Write(ctx, entries); err != nil {
		return result, persistError("finalize", err)
	}
	promoted = true

	logger.Info("acquisition complete",
		logging.Int("downloaded", result.Downloaded),
		logging.Int("skipped", result.Skipped),
		logging.Int("dropped", result.Dropped),
		logging.Int("converted", result.Converted),
	)
	return result, nil
}

// downloadAll fetches refs with bounded parallelism. The returned slice is
// indexed by Reference.Position; nil marks a skipped item.
func (p *Pipeline) downloadAll(ctx context.Context, logger *slog.Logger, dir string, refs []Reference) []*downloaded {
	outcomes := make([]*downloaded, len(refs))
	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, ref := range refs {
		g.Go(func() error {
			itemLogger := logger.With(logging.Int(logging.FieldOrdinal, ref.Position))
			out, err := p.download(ctx, itemLogger, dir, ref)
			if err != nil {
				logging.WarnWithContext(itemLogger, "media download failed; skipping item", "download_failed",
					logging.String("display_name", ref.DisplayName),
					logging.String("content_type", ref.ContentType),
					logging.Error(err),
					logging.String(logging.FieldImpact, "the item is missing from the slideshow"),
					logging.String(logging.FieldErrorHint, "fetch again to retry skipped items"),
				)
				return nil
			}
			outcomes[ref.Position] = out
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (p *Pipeline) download(ctx context.Context, logger *slog.Logger, dir string, ref Reference) (*downloaded, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	kind := Classify(ref.ContentType)
	resp, err := p.deps.Downloader.Stream(ctx, MediaURL(ref, p.width, p.height))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	part := filepath.Join(dir, fmt.Sprintf(".part-%04d", ref.Position))
	size, err := fileutil.WriteStreamAtomic(part, resp.Body, 0o644)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		_ = os.Remove(part)
		return nil, errors.New("empty response body")
	}

	contentType := convert.NormalizeType(resp.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" || !strings.Contains(contentType, "/") {
		contentType = convert.NormalizeType(ref.ContentType)
	}
	out := &downloaded{ref: ref, partPath: part, contentType: contentType, kind: kind, size: size}
	logger.Debug("media downloaded", logging.String("content_type", contentType), logging.Int64("bytes", size))

	if kind == mediacache.KindImage && !convert.Renderable(contentType) {
		p.convert(ctx, logger, out)
	}
	return out, nil
}

// convert rewrites out as JPEG when a converter accepts its type. Failure
// keeps the original bytes and content type.
func (p *Pipeline) convert(ctx context.Context, logger *slog.Logger, out *downloaded) {
	conv := p.deps.Converter
	if conv == nil || !conv.CanConvert(out.contentType) {
		logger.Debug("no converter for content type; keeping original", logging.String("content_type", out.contentType))
		return
	}
	target := out.partPath + ".jpg"
	if err := convert.Run(ctx, conv, out.contentType, out.partPath, target); err != nil {
		_ = os.Remove(target)
		logging.WarnWithContext(logger, "image conversion failed; keeping original", "convert_failed",
			logging.String("content_type", out.contentType),
			logging.String("converter", conv.Name()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the original file is cached and may not display"),
			logging.String(logging.FieldErrorHint, "install ffmpeg for HEIC/AVIF support"),
		)
		return
	}
	info, err := os.Stat(target)
	if err != nil {
		return
	}
	_ = os.Remove(out.partPath)
	out.partPath = target
	out.contentType = "image/jpeg"
	out.size = info.Size()
	out.converted = true
}
