package picker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"photokiosk/internal/config"
)

// JSONDoer performs an authorized JSON request. auth.Executor satisfies it.
type JSONDoer interface {
	DoJSON(ctx context.Context, method, url string, in, out any) error
}

// Client calls the Picker API endpoints.
type Client struct {
	baseURL  string
	pageSize int
	doer     JSONDoer
}

// NewClient builds a Client for the configured API base URL.
func NewClient(cfg *config.Config, doer JSONDoer) *Client {
	pageSize := cfg.Picker.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.Picker.BaseURL, "/"),
		pageSize: pageSize,
		doer:     doer,
	}
}

// CreateSession opens a new picking session.
func (c *Client) CreateSession(ctx context.Context) (SessionInfo, error) {
	var payload sessionPayload
	if err := c.doer.DoJSON(ctx, http.MethodPost, c.baseURL+"/sessions", struct{}{}, &payload); err != nil {
		return SessionInfo{}, err
	}
	return payload.info(), nil
}

// GetSession fetches the current state of a session.
func (c *Client) GetSession(ctx context.Context, id string) (SessionInfo, error) {
	var payload sessionPayload
	if err := c.doer.DoJSON(ctx, http.MethodGet, c.baseURL+"/sessions/"+url.PathEscape(id), nil, &payload); err != nil {
		return SessionInfo{}, err
	}
	return payload.info(), nil
}

// DeleteSession removes a session and its selection.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.doer.DoJSON(ctx, http.MethodDelete, c.baseURL+"/sessions/"+url.PathEscape(id), nil, nil)
}

// ListMediaItems returns one page of the session's selection.
func (c *Client) ListMediaItems(ctx context.Context, sessionID, pageToken string) (MediaPage, error) {
	params := url.Values{
		"sessionId": {sessionID},
		"pageSize":  {strconv.Itoa(c.pageSize)},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	var page MediaPage
	if err := c.doer.DoJSON(ctx, http.MethodGet, c.baseURL+"/mediaItems?"+params.Encode(), nil, &page); err != nil {
		return MediaPage{}, err
	}
	return page, nil
}

// ListAllMediaItems follows nextPageToken until the listing is exhausted.
func (c *Client) ListAllMediaItems(ctx context.Context, sessionID string) ([]MediaItem, error) {
	var (
		items []MediaItem
		token string
		seen  = map[string]struct{}{}
	)
	for {
		page, err := c.ListMediaItems(ctx, sessionID, token)
		if err != nil {
			return nil, fmt.Errorf("list media items: %w", err)
		}
		items = append(items, page.MediaItems...)
		token = strings.TrimSpace(page.NextPageToken)
		if token == "" {
			return items, nil
		}
		if _, dup := seen[token]; dup {
			return nil, fmt.Errorf("list media items: page token %q repeated", token)
		}
		seen[token] = struct{}{}
	}
}
