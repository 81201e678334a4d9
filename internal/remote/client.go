// Package remote talks to a running stocksage server: the assistant's
// /api/chat endpoint and the watchlist listing.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stocksage/internal/chat"
)

type Client struct {
	client *resty.Client
}

type WatchlistItem struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"company_name"`
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(endpoint, "/"))
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	return &Client{client: client}
}

// Send posts req to /api/chat. Network errors, non-2xx statuses and bodies
// without a "message" string are all returned as errors.
func (c *Client) Send(ctx context.Context, req chat.Request) (chat.Response, error) {
	if req.History == nil {
		req.History = []chat.HistoryMessage{}
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/api/chat")
	if err != nil {
		return chat.Response{}, fmt.Errorf("request chat: %w", err)
	}
	if !resp.IsSuccess() {
		return chat.Response{}, fmt.Errorf("chat status %d", resp.StatusCode())
	}

	var payload struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return chat.Response{}, fmt.Errorf("decode chat response: %w", err)
	}
	if payload.Message == nil {
		return chat.Response{}, fmt.Errorf("chat response missing message")
	}
	return chat.Response{Message: *payload.Message}, nil
}

func (c *Client) Watchlist(ctx context.Context) ([]WatchlistItem, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get("/api/v1/watchlist")
	if err != nil {
		return nil, fmt.Errorf("request watchlist: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("watchlist status %d", resp.StatusCode())
	}
	var payload struct {
		OK    bool            `json:"ok"`
		Error string          `json:"error"`
		Items []WatchlistItem `json:"items"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("decode watchlist: %w", err)
	}
	if !payload.OK {
		return nil, fmt.Errorf("watchlist error: %s", payload.Error)
	}
	return payload.Items, nil
}
