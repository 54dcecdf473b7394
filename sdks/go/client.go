package ignitiongateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// Client talks to the Ignition LLM Gateway action API. It submits actions
// for execution and requests advisory policy evaluations.
type Client struct {
	serverAddr string
	apiKey     string
	failMode   string
	timeout    time.Duration
	httpClient *http.Client

	// Cache fields, Evaluate decisions only.
	cache        sync.Map
	cacheTTL     time.Duration
	cacheMaxSize int
	cacheCount   int64
	cacheMu      sync.Mutex

	logger *slog.Logger
}

// cacheEntry is a cached evaluation response with expiry.
type cacheEntry struct {
	response  *EvaluateResponse
	expiresAt time.Time
	createdAt time.Time
}

// NewClient creates a gateway client. It reads configuration from IGNGW_*
// environment variables by default; options override the defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		serverAddr:   os.Getenv("IGNGW_SERVER_ADDR"),
		apiKey:       os.Getenv("IGNGW_API_KEY"),
		failMode:     envOrDefault("IGNGW_FAIL_MODE", "closed"),
		timeout:      parseDurationEnv("IGNGW_TIMEOUT", 10*time.Second),
		cacheTTL:     parseDurationEnv("IGNGW_CACHE_TTL", 5*time.Second),
		cacheMaxSize: 1000,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: c.timeout,
		}
	}

	return c
}

// Execute submits an action for authorization and execution. Handler-level
// failures come back as a Result with status "failure" and a nil error.
// Authorization denials return a *DeniedError; unconfirmed destructive
// actions return a *ConfirmationRequiredError. Execute never fails open.
func (c *Client) Execute(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	httpStatus, body, err := c.doRequest(ctx, "/v1/actions", req)
	if err != nil {
		return nil, &ServerUnreachableError{Cause: err}
	}

	switch httpStatus {
	case http.StatusOK, http.StatusBadRequest:
		var result ActionResult
		if err := json.Unmarshal(body, &result); err != nil || result.Status == "" {
			return nil, httpError(httpStatus, body)
		}
		return &result, nil

	case http.StatusForbidden:
		var result ActionResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, httpError(httpStatus, body)
		}
		return nil, &DeniedError{
			CorrelationID: result.CorrelationID,
			Message:       result.Message,
		}

	case http.StatusConflict:
		var result ActionResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, httpError(httpStatus, body)
		}
		return nil, &ConfirmationRequiredError{
			CorrelationID: result.CorrelationID,
			Message:       result.Message,
		}

	default:
		return nil, httpError(httpStatus, body)
	}
}

// Evaluate requests the advisory policy decision for an action without
// executing it. Allow decisions are cached client-side for the configured
// TTL. When the gateway is unreachable and fail mode is "open", Evaluate
// returns an allow decision instead of an error.
func (c *Client) Evaluate(ctx context.Context, req ActionRequest) (*EvaluateResponse, error) {
	cacheKey := c.buildCacheKey(req)
	if resp, ok := c.getFromCache(cacheKey); ok {
		return resp, nil
	}

	httpStatus, body, err := c.doRequest(ctx, "/v1/actions/evaluate", req)
	if err != nil {
		if c.failMode == "open" {
			c.logger.Warn("gateway unreachable, failing open",
				"server_addr", c.serverAddr,
				"error", err,
			)
			return &EvaluateResponse{
				Effect: EffectAllow,
				Reason: "gateway unreachable, fail-open",
			}, nil
		}
		return nil, &ServerUnreachableError{Cause: err}
	}

	if httpStatus != http.StatusOK {
		return nil, httpError(httpStatus, body)
	}

	var resp EvaluateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if resp.Effect == EffectAllow {
		c.putInCache(cacheKey, &resp)
	}
	return &resp, nil
}

// Check is a convenience wrapper around Evaluate that returns a boolean.
// It reports true only for an allow decision.
func (c *Client) Check(ctx context.Context, req ActionRequest) (bool, error) {
	resp, err := c.Evaluate(ctx, req)
	if err != nil {
		return false, err
	}
	return resp.Effect == EffectAllow, nil
}

// doRequest posts the request body and returns the raw status and body.
// A non-nil error means the server could not be reached at all.
func (c *Client) doRequest(ctx context.Context, path string, body any) (int, []byte, error) {
	url := strings.TrimRight(c.serverAddr, "/") + path

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return httpResp.StatusCode, respBody, nil
}

// httpError wraps an unexpected HTTP status as a GatewayError.
func httpError(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		msg = e.Error
	}
	return &GatewayError{
		Code: fmt.Sprintf("HTTP_%d", status),
		Err:  fmt.Errorf("server returned %d: %s", status, msg),
	}
}

// buildCacheKey derives a cache key from the evaluation request. Two requests
// with the same action shape share a key; the correlation ID is excluded so
// retries hit the cache.
func (c *Client) buildCacheKey(req ActionRequest) string {
	keyed := req
	keyed.CorrelationID = ""
	h := sha256.New()
	reqBytes, _ := json.Marshal(keyed)
	h.Write(reqBytes)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// getFromCache retrieves a cached decision if it exists and hasn't expired.
func (c *Client) getFromCache(key string) (*EvaluateResponse, bool) {
	val, ok := c.cache.Load(key)
	if !ok {
		return nil, false
	}
	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.cache.Delete(key)
		c.cacheMu.Lock()
		c.cacheCount--
		c.cacheMu.Unlock()
		return nil, false
	}
	return entry.response, true
}

// putInCache stores a decision in the cache.
func (c *Client) putInCache(key string, resp *EvaluateResponse) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	// Best-effort eviction: drop expired entries first, then the oldest.
	if c.cacheCount >= int64(c.cacheMaxSize) {
		now := time.Now()
		evicted := 0
		c.cache.Range(func(k, v any) bool {
			entry := v.(*cacheEntry)
			if now.After(entry.expiresAt) {
				c.cache.Delete(k)
				evicted++
			}
			return evicted < 100
		})
		c.cacheCount -= int64(evicted)

		if c.cacheCount >= int64(c.cacheMaxSize) {
			var oldest time.Time
			var oldestKey any
			c.cache.Range(func(k, v any) bool {
				entry := v.(*cacheEntry)
				if oldest.IsZero() || entry.createdAt.Before(oldest) {
					oldest = entry.createdAt
					oldestKey = k
				}
				return true
			})
			if oldestKey != nil {
				c.cache.Delete(oldestKey)
				c.cacheCount--
			}
		}
	}

	c.cache.Store(key, &cacheEntry{
		response:  resp,
		expiresAt: time.Now().Add(c.cacheTTL),
		createdAt: time.Now(),
	})
	c.cacheCount++
}

// Helper functions for env var parsing.

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func parseDurationEnv(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return defaultVal
}
