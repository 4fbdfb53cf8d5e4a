package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"linkgrid/go-client/internal/domains/contracts"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultReadRetries    = 2
	maxResponseBytes      = 4 << 20
)

type Config struct {
	BaseURL string
	// Token is consulted per request so a refreshed session token is picked
	// up without rebuilding the client.
	Token       func() string
	Timeout     time.Duration
	ReadRetries uint64
	Logger      *slog.Logger
}

// Client is the HTTP half of the remote service surface. Mutations are
// issued exactly once; only reads are retried, with exponential backoff, and
// only on transport failures.
type Client struct {
	baseURL     string
	token       func() string
	httpClient  *http.Client
	readRetries uint64
	logger      *slog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: gateway base url is required", contracts.ErrValidation)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	retries := cfg.ReadRetries
	if retries == 0 {
		retries = defaultReadRetries
	}
	token := cfg.Token
	if token == nil {
		token = func() string { return "" }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:     base,
		token:       token,
		httpClient:  &http.Client{Timeout: timeout},
		readRetries: retries,
		logger:      logger,
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// do issues one request and decodes the response envelope into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryNetwork,
			fmt.Errorf("%w: %v", contracts.ErrNetwork, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryNetwork,
			fmt.Errorf("%w: %v", contracts.ErrNetwork, err))
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI,
					fmt.Errorf("malformed response body: %w", err))
			}
			return c.failureFromStatus(resp.StatusCode, "")
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (len(raw) > 0 && !env.Success) {
		return c.failureFromStatus(resp.StatusCode, envFailure(env))
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI,
			fmt.Errorf("malformed response payload: %w", err))
	}
	return nil
}

// doRead wraps do with a retry schedule. Only transport failures are
// retried; a typed API failure is final.
func (c *Client) doRead(ctx context.Context, path string, out any) error {
	schedule := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.readRetries), ctx)
	return backoff.Retry(func() error {
		err := c.do(ctx, http.MethodGet, path, nil, out)
		if err == nil {
			return nil
		}
		if contracts.ErrorCategory(err) != contracts.ErrorCategoryNetwork {
			return backoff.Permanent(err)
		}
		c.logger.Debug("retrying read after transport failure", "path", path, "error", err)
		return err
	}, schedule)
}

func envFailure(env envelope) string {
	if env.Error != "" {
		return env.Error
	}
	return env.Message
}

func (c *Client) failureFromStatus(status int, code string) error {
	if sentinel := contracts.FailureFromCode(code); sentinel != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI,
			fmt.Errorf("%w: %s", sentinel, code))
	}
	var sentinel error
	switch {
	case status == http.StatusBadRequest:
		sentinel = contracts.ErrValidation
	case status == http.StatusNotFound:
		sentinel = contracts.ErrNotFound
	case status == http.StatusConflict:
		sentinel = contracts.ErrConflict
	case status >= 500:
		sentinel = contracts.ErrServer
	default:
		sentinel = contracts.ErrServer
	}
	return contracts.WrapCategorizedError(contracts.ErrorCategoryAPI,
		fmt.Errorf("%w: http status %d", sentinel, status))
}
