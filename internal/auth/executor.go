package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"photokiosk/internal/config"
	"photokiosk/internal/logging"
)

// TokenRefresher trades a refresh token for a fresh, persisted access token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// Response is a fully buffered response from Executor.Do.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Executor performs authorized requests against Google APIs.
type Executor struct {
	store          TokenStore
	refresher      TokenRefresher
	client         HTTPDoer
	downloadClient HTTPDoer
	margin         time.Duration
	maxBody        int64
	now            func() time.Time
	logger         *slog.Logger

	refreshMu sync.Mutex
}

// NewExecutor builds an Executor that reads credentials from store and
// refreshes them through refresher.
func NewExecutor(cfg *config.Config, store TokenStore, refresher TokenRefresher, opts ...Option) (*Executor, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil || refresher == nil {
		return nil, errors.New("token store and refresher are required")
	}
	o := buildOptions(cfg, opts)
	return &Executor{
		store:          store,
		refresher:      refresher,
		client:         o.client,
		downloadClient: o.downloadClient,
		margin:         cfg.RefreshMargin(),
		maxBody:        o.maxBody,
		now:            o.now,
		logger:         logging.NewComponentLogger(o.logger, "executor"),
	}, nil
}

// Do sends an authorized request and buffers the response body. Non-2xx
// responses are returned as *HTTPError.
func (e *Executor) Do(ctx context.Context, method, url string, body []byte) (*Response, error) {
	resp, err := e.send(ctx, e.client, method, url, body, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, url, err)
	}
	if int64(len(data)) > e.maxBody {
		return nil, fmt.Errorf("%s %s: response exceeds %d bytes", method, url, e.maxBody)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Stream sends an authorized GET using the download client and returns the
// open 2xx response. The caller closes the body.
func (e *Executor) Stream(ctx context.Context, url string) (*http.Response, error) {
	return e.send(ctx, e.downloadClient, http.MethodGet, url, nil, "")
}

// DoJSON encodes in (when non-nil) as the request body and decodes the
// response into out (when non-nil).
func (e *Executor) DoJSON(ctx context.Context, method, url string, in, out any) error {
	var body []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = data
	}
	resp, err := e.Do(ctx, method, url, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, url, err)
	}
	return nil
}

func (e *Executor) send(ctx context.Context, client HTTPDoer, method, url string, body []byte, accept string) (*http.Response, error) {
	token, err := e.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := e.attempt(ctx, client, method, url, body, accept, token)
	if err != nil {
		return nil, err
	}
	if !rejected(resp.StatusCode) {
		return checkStatus(method, url, resp, nil)
	}

	drain(resp)
	e.logger.Info("request rejected; refreshing access token",
		logging.String("method", method),
		logging.Int("status", resp.StatusCode),
	)
	token, err = e.refresh(ctx, token.value)
	if err != nil {
		return nil, err
	}
	resp, err = e.attempt(ctx, client, method, url, body, accept, token)
	if err != nil {
		return nil, err
	}
	if rejected(resp.StatusCode) {
		return checkStatus(method, url, resp, ErrUnauthorized)
	}
	return checkStatus(method, url, resp, nil)
}

func (e *Executor) attempt(ctx context.Context, client HTTPDoer, method, url string, body []byte, accept string, token bearer) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", token.header())
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	return resp, nil
}

type bearer struct {
	tokenType string
	value     string
}

func (b bearer) header() string { return authorizationHeader(b.tokenType, b.value) }

// accessToken returns the stored access token, refreshing first when it is
// missing or inside the refresh margin.
func (e *Executor) accessToken(ctx context.Context) (bearer, error) {
	cred, err := e.store.Load()
	if err != nil {
		return bearer{}, fmt.Errorf("load credential: %w", err)
	}
	if !cred.Linked() {
		return bearer{}, &AuthError{Op: "authorize", Err: ErrNotAuthorized}
	}
	if !cred.Stale(e.now(), e.margin) {
		return bearer{tokenType: cred.TokenType, value: cred.AccessToken}, nil
	}
	return e.refresh(ctx, cred.AccessToken)
}

// refresh obtains a new access token. Concurrent callers that observed the same
// rejected token share one refresh.
func (e *Executor) refresh(ctx context.Context, rejectedToken string) (bearer, error) {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	cred, err := e.store.Load()
	if err != nil {
		return bearer{}, fmt.Errorf("load credential: %w", err)
	}
	if cred.AccessToken != "" && cred.AccessToken != rejectedToken && !cred.Stale(e.now(), e.margin) {
		return bearer{tokenType: cred.TokenType, value: cred.AccessToken}, nil
	}
	if cred.RefreshToken == "" {
		if cred.AccessToken == "" {
			return bearer{}, &AuthError{Op: "authorize", Err: ErrNotAuthorized}
		}
		return bearer{}, &AuthError{Op: "refresh", Err: ErrNoRefreshToken}
	}

	token, err := e.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return bearer{}, err
	}
	// The refresh may change the token type; use the record it saved.
	tokenType := cred.TokenType
	if saved, err := e.store.Load(); err == nil && saved.AccessToken == token {
		tokenType = saved.TokenType
	}
	return bearer{tokenType: tokenType, value: token}, nil
}

func rejected(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func checkStatus(method, url string, resp *http.Response, cause error) (*http.Response, error) {
	if cause == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return nil, &HTTPError{
		Method:     method,
		URL:        url,
		StatusCode: resp.StatusCode,
		Body:       truncateBody(data),
		Err:        cause,
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
