package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"photokiosk/internal/config"
	"photokiosk/internal/logging"
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Option customises Refresher and Executor construction.
type Option func(*options)

type options struct {
	client         HTTPDoer
	downloadClient HTTPDoer
	now            func() time.Time
	logger         *slog.Logger
	maxBody        int64
}

// WithHTTPClient overrides the HTTP client used for token and API calls.
func WithHTTPClient(client HTTPDoer) Option {
	return func(o *options) { o.client = client }
}

// WithDownloadClient overrides the HTTP client used by Executor.Stream.
func WithDownloadClient(client HTTPDoer) Option {
	return func(o *options) { o.downloadClient = client }
}

// WithClock overrides the wall clock (used in tests).
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMaxBodyBytes caps how much of a buffered response Executor.Do reads.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) { o.maxBody = n }
}

func buildOptions(cfg *config.Config, opts []Option) options {
	o := options{now: time.Now, maxBody: 8 << 20}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: cfg.RequestTimeout()}
	}
	if o.downloadClient == nil {
		o.downloadClient = &http.Client{Timeout: cfg.DownloadTimeout()}
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Refresher exchanges grants at the OAuth token endpoint and persists the results.
type Refresher struct {
	google config.Google
	store  TokenStore
	client HTTPDoer
	logger *slog.Logger
}

// NewRefresher builds a Refresher for the configured OAuth client.
func NewRefresher(cfg *config.Config, store TokenStore, opts ...Option) (*Refresher, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("token store is nil")
	}
	o := buildOptions(cfg, opts)
	return &Refresher{
		google: cfg.Google,
		store:  store,
		client: o.client,
		logger: logging.NewComponentLogger(o.logger, "auth"),
	}, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// Refresh trades refreshToken for a new access token. The merged credential is
// persisted before the token is returned; a rejection leaves the store untouched.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", &AuthError{Op: "refresh", Err: ErrNoRefreshToken}
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {r.google.ClientID},
		"client_secret": {r.google.ClientSecret},
	}
	cred, err := r.grant(ctx, "refresh", form)
	if err != nil {
		return "", err
	}
	r.logger.Info("access token refreshed",
		logging.Int64("expires_in", cred.ExpiresIn),
		logging.Bool("has_refresh_token", cred.RefreshToken != ""),
	)
	return cred.AccessToken, nil
}

// Exchange completes the authorization-code grant and persists the credential.
func (r *Refresher) Exchange(ctx context.Context, code string) (Credential, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Credential{}, &AuthError{Op: "exchange", Err: errors.New("authorization code is empty")}
	}
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {r.google.ClientID},
		"client_secret": {r.google.ClientSecret},
		"redirect_uri":  {r.google.RedirectURI},
	}
	cred, err := r.grant(ctx, "exchange", form)
	if err != nil {
		return Credential{}, err
	}
	if cred.RefreshToken == "" {
		logging.WarnWithContext(r.logger, "authorization completed without refresh token", "refresh_token_missing",
			logging.String(logging.FieldImpact, "the kiosk stops working when the access token expires"),
			logging.String(logging.FieldErrorHint, "revoke the app at myaccount.google.com/permissions and authorize again"),
		)
	}
	r.logger.Info("authorization completed", logging.Int64("expires_in", cred.ExpiresIn))
	return cred, nil
}

// AuthorizeURL returns the consent page URL carrying state.
func (r *Refresher) AuthorizeURL(state string) string {
	params := url.Values{
		"client_id":              {r.google.ClientID},
		"redirect_uri":           {r.google.RedirectURI},
		"response_type":          {"code"},
		"scope":                  {r.google.Scope},
		"access_type":            {"offline"},
		"prompt":                 {"consent"},
		"include_granted_scopes": {"true"},
	}
	if state != "" {
		params.Set("state", state)
	}
	sep := "?"
	if strings.Contains(r.google.AuthURL, "?") {
		sep = "&"
	}
	return r.google.AuthURL + sep + params.Encode()
}

func (r *Refresher) grant(ctx context.Context, op string, form url.Values) (Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.google.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		logging.WarnWithContext(r.logger, "token endpoint unreachable", "token_endpoint_unavailable",
			logging.String("op", op),
			logging.Error(err),
			logging.String(logging.FieldImpact, "requests fail until the token endpoint answers"),
			logging.String(logging.FieldErrorHint, "check network connectivity and retry"),
		)
		return Credential{}, &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Credential{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.Error("token endpoint rejected request",
			logging.String("op", op),
			logging.Int("status", resp.StatusCode),
			logging.String(logging.FieldEventType, "token_"+op+"_rejected"),
			logging.String(logging.FieldErrorHint, "check google.client_id, client_secret and redirect_uri, then re-authorize"),
		)
		return Credential{}, &AuthError{Op: op, StatusCode: resp.StatusCode, Body: truncateBody(data), Err: ErrExchangeRejected}
	}

	var tok tokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		return Credential{}, fmt.Errorf("decode token response: %w", err)
	}
	if strings.TrimSpace(tok.AccessToken) == "" {
		return Credential{}, &AuthError{Op: op, StatusCode: resp.StatusCode, Body: "response carried no access_token", Err: ErrExchangeRejected}
	}

	saved, err := r.store.Save(Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    tok.ExpiresIn,
	})
	if err != nil {
		return Credential{}, fmt.Errorf("persist refreshed credential: %w", err)
	}
	return saved, nil
}
