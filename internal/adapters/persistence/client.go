// Package persistence is the HTTP client for the collaborator CRUD API.
// Durability lives there; this layer only hands records over and degrades
// gracefully when the collaborator is unreachable.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dkeye/tandem/internal/domain"
	"github.com/dkeye/tandem/internal/session"
)

// TokenSource supplies the current bearer token, empty when logged out.
type TokenSource func() string

type Client struct {
	base  string
	http  *http.Client
	token TokenSource
}

func NewClient(baseURL string, token TokenSource) *Client {
	return &Client{
		base:  baseURL,
		http:  &http.Client{Timeout: 10 * time.Second},
		token: token,
	}
}

// Authenticate exchanges credentials for a bearer token. A collaborator
// rejection maps to session.ErrInvalidCredentials.
func (c *Client) Authenticate(ctx context.Context, creds session.Credentials) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	status, err := c.post(ctx, "/login", creds, &out)
	if err != nil {
		return "", err
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		return "", session.ErrInvalidCredentials
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login: unexpected status %d", status)
	}
	return out.Token, nil
}

// Renew exchanges a soon-to-expire token for a fresh one.
func (c *Client) Renew(ctx context.Context, token string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	status, err := c.postWithToken(ctx, "/refresh-token", token, nil, &out)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", session.ErrRenewalFailed, status)
	}
	return out.Token, nil
}

// SaveMessage hands a routed message over for durable storage.
func (c *Client) SaveMessage(ctx context.Context, m *domain.Message) error {
	status, err := c.post(ctx, "/messages", m, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("save message: unexpected status %d", status)
	}
	return nil
}

// SaveNotification persists an accepted notification.
func (c *Client) SaveNotification(ctx context.Context, n *domain.Notification) error {
	status, err := c.post(ctx, "/notifications", n, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("save notification: unexpected status %d", status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) (int, error) {
	token := ""
	if c.token != nil {
		token = c.token()
	}
	return c.postWithToken(ctx, path, token, in, out)
}

func (c *Client) postWithToken(ctx context.Context, path, token string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshal %s request: %w", path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusMultipleChoices {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}
