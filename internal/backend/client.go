// Package backend is the HTTP client for the chat backend's REST surface:
// the identity lookup and the historical message fetch.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/matheus3301/tchat/internal/session"
	"github.com/matheus3301/tchat/internal/store"
	"github.com/matheus3301/tchat/internal/wire"
)

// Client calls the backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given base URL, e.g. "http://localhost:8000".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type userRead struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FetchIdentity resolves the current user from GET /users/me. The identity
// is required before the channel can be opened.
func (c *Client) FetchIdentity(ctx context.Context) (session.Identity, error) {
	var u userRead
	if err := c.getJSON(ctx, "/users/me", &u); err != nil {
		return session.Identity{}, fmt.Errorf("fetch identity: %w", err)
	}
	id := session.Identity{UserID: u.ID, DisplayName: u.Name}
	if !id.Valid() {
		return session.Identity{}, fmt.Errorf("fetch identity: backend returned user id %d", u.ID)
	}
	return id, nil
}

// FetchHistory retrieves the historical snapshot from GET /messages. The
// backend returns the newest messages oldest-first; records that fail to
// decode abort the fetch since a partial history would be misleading.
func (c *Client) FetchHistory(ctx context.Context) ([]store.Message, error) {
	var records []wire.Record
	if err := c.getJSON(ctx, "/messages", &records); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	msgs := make([]store.Message, 0, len(records))
	for _, r := range records {
		m, err := r.Message()
		if err != nil {
			return nil, fmt.Errorf("fetch history: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
