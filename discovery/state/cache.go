package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/brightline-consulting/discovery/discovery/contract"
)

var (
	ErrCacheMiss      = errors.New("cache entry not found")
	ErrNilState       = errors.New("conversation state is nil")
	ErrInvalidSession = errors.New("session id is empty")
)

const (
	sessionKeyPrefix = "session:"
	adminKeyPrefix   = "admin:"
	configKeyPrefix  = "config:"

	defaultSessionTTL = 2 * time.Hour
	defaultAdminTTL   = 24 * time.Hour

	maxResponseSizeBytes = 2 << 20
)

// CacheOption customizes UpstashRedisCache.
type CacheOption func(*UpstashRedisCache)

func WithSessionTTL(ttl time.Duration) CacheOption {
	return func(c *UpstashRedisCache) {
		c.sessionTTL = ttl
	}
}

func WithAdminTTL(ttl time.Duration) CacheOption {
	return func(c *UpstashRedisCache) {
		c.adminTTL = ttl
	}
}

func WithHTTPClient(client *http.Client) CacheOption {
	return func(c *UpstashRedisCache) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// UpstashRedisCache is the fast mirror of in-flight conversation state and the
// admin token/config store, backed by Upstash Redis over REST. TTL expiry is
// the only eviction mechanism.
type UpstashRedisCache struct {
	baseURL    string
	token      string
	httpClient *http.Client
	sessionTTL time.Duration
	adminTTL   time.Duration
}

var (
	_ contractx.StateCache  = (*UpstashRedisCache)(nil)
	_ contractx.AdminTokens = (*UpstashRedisCache)(nil)
	_ contractx.ConfigStore = (*UpstashRedisCache)(nil)
)

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

func NewUpstashRedisCache(cfg UpstashRedisConfig, opts ...CacheOption) (*UpstashRedisCache, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cache := &UpstashRedisCache{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		sessionTTL: defaultSessionTTL,
		adminTTL:   defaultAdminTTL,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(cache)
		}
	}

	if cache.sessionTTL <= 0 || cache.adminTTL <= 0 {
		return nil, errors.New("ttl must be > 0")
	}

	return cache, nil
}

/* --------------------------- conversation state --------------------------- */

func (c *UpstashRedisCache) LoadState(ctx context.Context, sessionID string) (*contractx.ConversationState, error) {
	key, err := sessionKey(sessionID)
	if err != nil {
		return nil, err
	}

	raw, err := c.get(ctx, key)
	if err != nil {
		return nil, err
	}

	var st contractx.ConversationState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("unmarshal conversation state: %w", err)
	}
	return &st, nil
}

func (c *UpstashRedisCache) SaveState(ctx context.Context, st *contractx.ConversationState) error {
	if st == nil {
		return ErrNilState
	}
	key, err := sessionKey(st.SessionID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal conversation state: %w", err)
	}

	return c.set(ctx, key, string(payload), c.sessionTTL)
}

func (c *UpstashRedisCache) DeleteState(ctx context.Context, sessionID string) error {
	key, err := sessionKey(sessionID)
	if err != nil {
		return err
	}
	_, err = c.exec(ctx, []any{"DEL", key})
	return err
}

/* ------------------------------ admin tokens ------------------------------ */

func (c *UpstashRedisCache) SaveAdminToken(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("admin token is empty")
	}
	return c.set(ctx, adminKeyPrefix+token, "1", c.adminTTL)
}

func (c *UpstashRedisCache) ValidateAdminToken(ctx context.Context, token string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}
	_, err := c.get(ctx, adminKeyPrefix+token)
	if errors.Is(err, ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

/* ------------------------------ config values ----------------------------- */

func (c *UpstashRedisCache) GetConfigValue(ctx context.Context, key string) (string, error) {
	val, err := c.get(ctx, configKeyPrefix+key)
	if errors.Is(err, ErrCacheMiss) {
		return "", nil
	}
	return val, err
}

func (c *UpstashRedisCache) SetConfigValue(ctx context.Context, key, value string) error {
	// Config entries do not expire.
	return c.set(ctx, configKeyPrefix+key, value, 0)
}

/* ------------------------------ REST plumbing ----------------------------- */

func sessionKey(sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrInvalidSession
	}
	return sessionKeyPrefix + sessionID, nil
}

func (c *UpstashRedisCache) get(ctx context.Context, key string) (string, error) {
	resp, err := c.exec(ctx, []any{"GET", key})
	if err != nil {
		return "", err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return "", ErrCacheMiss
	}

	var value string
	if err := json.Unmarshal(result, &value); err != nil {
		return "", fmt.Errorf("decode cache payload: %w", err)
	}
	return value, nil
}

func (c *UpstashRedisCache) set(ctx context.Context, key, value string, ttl time.Duration) error {
	cmd := []any{"SET", key, value}
	if ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(ttl))
	}
	_, err := c.exec(ctx, cmd)
	return err
}

func (c *UpstashRedisCache) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if c == nil {
		return nil, errors.New("nil cache")
	}
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
