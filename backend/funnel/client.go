package funnel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a Remote that talks to the funnel item endpoints of the API server.
type Client struct {
	BaseURL    string // e.g. http://127.0.0.1:8080/api
	SessionID  string
	HTTPClient *http.Client
}

func NewClient(baseURL, sessionID string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		SessionID:  sessionID,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// RequestError is returned when the server answers with a non-2xx status.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body any, dst any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("X-Authentication", c.SessionID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RequestError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) List(ctx context.Context) ([]Item, error) {
	var items []Item
	err := c.do(ctx, http.MethodGet, "/funnel_items", nil, &items)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) Patch(ctx context.Context, id string, stage Stage) (*Item, error) {
	var item Item
	err := c.do(ctx, http.MethodPatch, "/funnel_items/"+url.PathEscape(id), map[string]Stage{"stage": stage}, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
