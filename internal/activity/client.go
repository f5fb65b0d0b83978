package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Defaults for Client.
const (
	DefaultFetchTimeout      = 30 * time.Second
	DefaultFetchRetries      = 2
	DefaultCompletedEndpoint = "/api/completed"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// retryable reports whether a failed fetch is worth repeating.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}

// Client reads activity data from the stats service over HTTP.
//
// Every request gets its own timeout and is retried a bounded number of
// times with linear backoff. Client is safe for concurrent use.
type Client struct {
	baseURL           string
	completedEndpoint string
	http              *http.Client
	timeout           time.Duration
	retries           int
	backoff           time.Duration
	logger            *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithFetchTimeout sets the per-request timeout.
func WithFetchTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how many times a failed request is repeated.
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the delay unit between retries.
func WithBackoff(d time.Duration) ClientOption {
	return func(c *Client) { c.backoff = d }
}

// WithCompletedEndpoint overrides the finished-items endpoint path.
func WithCompletedEndpoint(path string) ClientOption {
	return func(c *Client) {
		if path != "" {
			c.completedEndpoint = path
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the stats service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:           strings.TrimRight(baseURL, "/"),
		completedEndpoint: DefaultCompletedEndpoint,
		http:              &http.Client{},
		timeout:           DefaultFetchTimeout,
		retries:           DefaultFetchRetries,
		backoff:           500 * time.Millisecond,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Source = (*Client)(nil)

// getJSON fetches path and decodes the body into out, retrying transient failures.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * c.backoff
			c.logger.Debug("retrying fetch", "path", path, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = c.fetch(ctx, path, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(lastErr) {
			break
		}
	}
	return lastErr
}

func (c *Client) fetch(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{URL: u, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}

// Users implements Source. Accepts {"users": [...]} or a bare list.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/users", &raw); err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}

	var rows []wireUser
	var wrapped struct {
		Users []wireUser `json:"users"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Users != nil {
		rows = wrapped.Users
	} else if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("users: unrecognized payload")
	}

	users := make([]User, 0, len(rows))
	for _, r := range rows {
		u := r.user()
		if u.ID == "" {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// Finished implements Source.
func (c *Client) Finished(ctx context.Context) ([]UserFinished, error) {
	var payload wireCompleted
	if err := c.getJSON(ctx, c.completedEndpoint, &payload); err != nil {
		return nil, fmt.Errorf("finished items: %w", err)
	}

	out := make([]UserFinished, 0, len(payload.Users))
	for _, w := range payload.Users {
		u := w.user()
		if u.ID == "" || u.Username == "" {
			continue
		}

		seen := make(map[string]bool, len(w.FinishedDates)+len(w.FinishedIDs))
		items := make([]FinishedItem, 0, len(w.FinishedDates)+len(w.FinishedIDs))
		for id, ms := range w.FinishedDates {
			if id == "" {
				continue
			}
			seen[id] = true
			items = append(items, FinishedItem{ItemID: id, FinishedAt: millis(ms)})
		}
		for _, id := range w.FinishedIDs {
			if id == "" || seen[string(id)] {
				continue
			}
			seen[string(id)] = true
			items = append(items, FinishedItem{ItemID: string(id)})
		}
		sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })

		out = append(out, UserFinished{User: u, Items: items})
	}
	return out, nil
}

// Sessions implements Source.
func (c *Client) Sessions(ctx context.Context) (map[string][]Session, error) {
	var payload wireSessions
	if err := c.getJSON(ctx, "/api/listening-sessions", &payload); err != nil {
		return nil, fmt.Errorf("listening sessions: %w", err)
	}

	out := make(map[string][]Session, len(payload.Users))
	for _, u := range payload.Users {
		if u.UserID == "" {
			continue
		}
		for _, w := range u.Sessions {
			s := w.session()
			if s.StartedAt.IsZero() {
				continue
			}
			out[string(u.UserID)] = append(out[string(u.UserID)], s)
		}
	}
	return out, nil
}

// SeriesIndex implements Source. Members are sorted by sequence; members
// without a sequence sort last in their original order.
func (c *Client) SeriesIndex(ctx context.Context) ([]Series, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/series", &raw); err != nil {
		return nil, fmt.Errorf("series index: %w", err)
	}

	var rows []wireSeries
	var wrapped struct {
		Series []wireSeries `json:"series"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Series != nil {
		rows = wrapped.Series
	} else if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("series index: unrecognized payload")
	}

	out := make([]Series, 0, len(rows))
	for _, w := range rows {
		s := Series{
			ID:   firstNonEmpty(string(w.SeriesID), string(w.ID)),
			Name: firstNonEmpty(w.Name, w.SeriesName, w.Title),
		}
		if s.ID == "" {
			continue
		}
		for _, b := range w.Books {
			id := firstNonEmpty(string(b.LibraryItemID), string(b.ID))
			if id == "" {
				continue
			}
			s.Items = append(s.Items, SeriesEntry{ItemID: id, Sequence: float64(b.Sequence)})
		}
		SortSeriesItems(s.Items)
		out = append(out, s)
	}
	return out, nil
}

// SortSeriesItems orders entries by sequence, with unsequenced (zero) entries last.
func SortSeriesItems(items []SeriesEntry) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Sequence, items[j].Sequence
		switch {
		case a <= 0:
			return false
		case b <= 0:
			return true
		default:
			return a < b
		}
	})
}

// Item implements Source.
func (c *Client) Item(ctx context.Context, itemID string) (ItemMeta, error) {
	var w wireItem
	if err := c.getJSON(ctx, "/api/item/"+url.PathEscape(itemID), &w); err != nil {
		return ItemMeta{}, fmt.Errorf("item %s: %w", itemID, err)
	}
	return w.meta(itemID), nil
}

// ListeningTime implements Source.
func (c *Client) ListeningTime(ctx context.Context) (map[string]float64, error) {
	var payload wireListeningTime
	if err := c.getJSON(ctx, "/api/listening-time", &payload); err != nil {
		return nil, fmt.Errorf("listening time: %w", err)
	}

	out := make(map[string]float64)
	if len(payload.ByUser) > 0 {
		for id, row := range payload.ByUser {
			out[id] = float64(row.ListeningSeconds)
		}
		return out, nil
	}
	for _, row := range payload.Users {
		id := firstNonEmpty(string(row.UserID), string(row.ID))
		if id == "" {
			continue
		}
		out[id] = float64(row.ListeningSeconds)
	}
	return out, nil
}
