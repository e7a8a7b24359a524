package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config holds the upstream API client configuration.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Breaker      BreakerConfig
}

// BreakerConfig tunes the circuit breaker in front of the upstream API.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Timeout:      15 * time.Second,
		MaxRetries:   2,
		RetryWaitMin: 200 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		Breaker: BreakerConfig{
			Name:         "ride-api",
			MaxRequests:  1,
			Interval:     60 * time.Second,
			Timeout:      30 * time.Second,
			FailureRatio: 0.5,
			MinRequests:  5,
		},
	}
}

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = gobreaker.ErrOpenState

// Client is the thin REST client for the ride-sharing API. The bearer token
// it attaches is owned by the session store, which is the only caller of
// SetBearerToken and ClearBearerToken.
type Client struct {
	baseURL    string
	httpClient *http.Client
	config     Config
	breaker    *gobreaker.CircuitBreaker[*http.Response]

	mu    sync.RWMutex
	token string
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "ride-api"
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	breakerCfg := cfg.Breaker
	settings := gobreaker.Settings{
		Name:        breakerCfg.Name,
		MaxRequests: breakerCfg.MaxRequests,
		Interval:    breakerCfg.Interval,
		Timeout:     breakerCfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerCfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= breakerCfg.FailureRatio
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("backend circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	}
	breakerState.WithLabelValues(breakerCfg.Name).Set(0)

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		config:  cfg,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
	}
}

// breakerSuccess keeps callers that gave up from counting against the
// upstream.
func breakerSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

func (c *Client) SetBearerToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

func (c *Client) ClearBearerToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do performs one API call. body is JSON encoded when non-nil and out is
// decoded from a 2xx response when non-nil.
func (c *Client) do(ctx context.Context, operation string, method string, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", operation, err)
		}
		payload = encoded
	}

	started := time.Now()
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.send(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}
		// 5xx trips the breaker; 4xx is the caller's problem.
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, parseResponseError(resp)
		}
		return resp, nil
	})
	requestDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(operation, outcomeLabel(err)).Inc()
		return fmt.Errorf("%s: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respErr := parseResponseError(resp)
		requestsTotal.WithLabelValues(operation, outcomeLabel(respErr)).Inc()
		return fmt.Errorf("%s: %w", operation, respErr)
	}
	defer func() { _ = resp.Body.Close() }()

	requestsTotal.WithLabelValues(operation, "ok").Inc()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}
	return nil
}

// send issues the request, retrying network failures and 5xx answers for
// idempotent reads only.
func (c *Client) send(ctx context.Context, method string, path string, payload []byte) (*http.Response, error) {
	retries := 0
	if method == http.MethodGet {
		retries = c.config.MaxRetries
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			wait := c.config.RetryWaitMin * time.Duration(1<<uint(attempt-1))
			if c.config.RetryWaitMax > 0 && wait > c.config.RetryWaitMax {
				wait = c.config.RetryWaitMax
			}

			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := c.newRequest(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isRetryable(err) && attempt < retries {
				continue
			}
			return nil, fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
		}

		if resp.StatusCode >= http.StatusInternalServerError && resp.StatusCode != http.StatusNotImplemented && attempt < retries {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			continue
		}

		return resp, nil
	}
}

func (c *Client) newRequest(ctx context.Context, method string, path string, payload []byte) (*http.Request, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
