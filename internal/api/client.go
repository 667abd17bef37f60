// internal/api/client.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pathoscope/wsiview/internal/engine"
	"github.com/pathoscope/wsiview/pkg/core"
)

// ErrNotFound matches a StatusError carrying 404.
var ErrNotFound = errors.New("not found")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s returned status %d", e.Op, e.StatusCode)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to the slide tile server.
type Client struct {
	baseURL    string
	tileFormat string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithTileFormat selects the tile extension, "jpg" or "png".
func WithTileFormat(ext string) Option {
	return func(c *Client) {
		c.tileFormat = ext
	}
}

// New creates a new API client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tileFormat: "jpg",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Healthcheck checks if the tile server is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "healthcheck", "/health", &body); err != nil {
		return err
	}
	if body.Status != "" && body.Status != "ok" {
		return fmt.Errorf("healthcheck reported status %q", body.Status)
	}
	return nil
}

// ListSlides returns the slides the server can serve.
func (c *Client) ListSlides(ctx context.Context) ([]core.SlideItem, error) {
	var body struct {
		Items []core.SlideItem `json:"items"`
	}
	if err := c.getJSON(ctx, "slides", "/api/slides", &body); err != nil {
		return nil, err
	}
	return body.Items, nil
}

// SlideInfo returns the extents and pyramid shape of one slide.
func (c *Client) SlideInfo(ctx context.Context, slideID string) (core.SlideInfo, error) {
	var info core.SlideInfo
	if err := c.getJSON(ctx, "slide info", "/api/slides/"+url.PathEscape(slideID)+"/info", &info); err != nil {
		return core.SlideInfo{}, err
	}
	return info, nil
}

// ServerLevel converts an engine level (0 = most zoomed out) to the
// server's level index (0 = full resolution).
func ServerLevel(levelCount, engineLevel int) int {
	return levelCount - 1 - engineLevel
}

// TileURL builds the URL of one tile addressed by engine level.
func (c *Client) TileURL(slideID string, levelCount, engineLevel, x, y int) string {
	return fmt.Sprintf("%s/api/slides/%s/tiles/%d/%d_%d.%s",
		c.baseURL, url.PathEscape(slideID), ServerLevel(levelCount, engineLevel), x, y, c.tileFormat)
}

// TileSource describes a slide as a tile engine source.
func (c *Client) TileSource(slideID string, info core.SlideInfo) engine.TileSource {
	return engine.TileSource{
		Width:    info.Width,
		Height:   info.Height,
		TileSize: info.TileSize,
		MinLevel: 0,
		MaxLevel: info.MaxLevel(),
		TileURL: func(level, x, y int) string {
			return c.TileURL(slideID, info.LevelCount, level, x, y)
		},
	}
}

// FetchTile downloads one tile.
func (c *Client) FetchTile(ctx context.Context, slideID string, levelCount, engineLevel, x, y int) ([]byte, error) {
	resp, err := c.get(ctx, "tile", c.TileURL(slideID, levelCount, engineLevel, x, y))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading tile: %w", err)
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	resp, err := c.get(ctx, op, c.baseURL+path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

// get performs a GET and turns non-2xx responses into a *StatusError.
func (c *Client) get(ctx context.Context, op, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	return resp, nil
}

// readDetail extracts the server's {"detail": "..."} error message.
func readDetail(r io.Reader) string {
	var body struct {
		Detail string `json:"detail"`
	}
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || json.Unmarshal(data, &body) != nil {
		return ""
	}
	return body.Detail
}
