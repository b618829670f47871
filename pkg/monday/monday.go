// Package monday is a read-only client for the monday.com GraphQL API. It is
// used to pull board/item metadata and free text into engagement context.
package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseSizeBytes = 2 << 20

type Config struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.monday.com/v2"`
	APIKey  string        `envconfig:"API_KEY" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
}

type Board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ItemRef is a board item reference without its detail fields.
type ItemRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Item struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	ColumnValues []ColumnValue `json:"column_values"`
	Updates      []Update      `json:"updates"`
}

type ColumnValue struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

type Update struct {
	TextBody  string `json:"text_body"`
	CreatedAt string `json:"created_at"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("monday base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// SearchBoards lists recently used boards, optionally filtered by name substring.
func (c *Client) SearchBoards(ctx context.Context, apiKey, term string) ([]Board, error) {
	query := `query { boards(limit: 20, order_by: used_at) { id name } }`

	var payload struct {
		Boards []Board `json:"boards"`
	}
	if err := c.query(ctx, apiKey, query, nil, &payload); err != nil {
		return nil, err
	}

	if strings.TrimSpace(term) == "" {
		return payload.Boards, nil
	}

	lowered := strings.ToLower(term)
	filtered := make([]Board, 0, len(payload.Boards))
	for _, b := range payload.Boards {
		if strings.Contains(strings.ToLower(b.Name), lowered) {
			filtered = append(filtered, b)
		}
	}
	return filtered, nil
}

// BoardItems lists items on one board.
func (c *Client) BoardItems(ctx context.Context, apiKey, boardID string) ([]ItemRef, error) {
	query := `query ($boardId: [ID!]!) {
		boards(ids: $boardId) {
			items_page(limit: 50) { items { id name } }
		}
	}`

	var payload struct {
		Boards []struct {
			ItemsPage struct {
				Items []ItemRef `json:"items"`
			} `json:"items_page"`
		} `json:"boards"`
	}
	if err := c.query(ctx, apiKey, query, map[string]any{"boardId": []string{boardID}}, &payload); err != nil {
		return nil, err
	}
	if len(payload.Boards) == 0 {
		return nil, nil
	}
	return payload.Boards[0].ItemsPage.Items, nil
}

// ItemDetails fetches one item with its column values and recent updates.
// Returns nil when the item does not exist.
func (c *Client) ItemDetails(ctx context.Context, apiKey, itemID string) (*Item, error) {
	query := `query ($itemId: [ID!]!) {
		items(ids: $itemId) {
			id
			name
			column_values { id title text }
			updates(limit: 10) { text_body created_at }
		}
	}`

	var payload struct {
		Items []Item `json:"items"`
	}
	if err := c.query(ctx, apiKey, query, map[string]any{"itemId": []string{itemID}}, &payload); err != nil {
		return nil, err
	}
	if len(payload.Items) == 0 {
		return nil, nil
	}
	return &payload.Items[0], nil
}

// ExtractContext flattens an item into free text usable as engagement context.
func ExtractContext(item *Item) string {
	if item == nil {
		return ""
	}

	lines := []string{"Project: " + item.Name}
	for _, col := range item.ColumnValues {
		if strings.TrimSpace(col.Text) == "" {
			continue
		}
		lines = append(lines, col.Title+": "+col.Text)
	}

	if len(item.Updates) > 0 {
		lines = append(lines, "", "Recent Updates:")
		updates := item.Updates
		if len(updates) > 5 {
			updates = updates[:5]
		}
		for _, u := range updates {
			lines = append(lines, "- "+u.TextBody)
		}
	}

	return strings.Join(lines, "\n")
}

func (c *Client) query(ctx context.Context, apiKey, query string, variables map[string]any, out any) error {
	if strings.TrimSpace(apiKey) == "" {
		return errors.New("monday api key is required")
	}

	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("marshal monday query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build monday request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute monday request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read monday response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("monday http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("decode monday response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return fmt.Errorf("monday graphql error: %s", parsed.Errors[0].Message)
	}

	if out != nil && len(parsed.Data) > 0 {
		if err := json.Unmarshal(parsed.Data, out); err != nil {
			return fmt.Errorf("decode monday data: %w", err)
		}
	}
	return nil
}
