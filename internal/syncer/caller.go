package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// CallResult is the classified-enough shape of an HTTP response: the engine
// only needs the status line and the raw body.
type CallResult struct {
	StatusCode int
	Status     string
	Body       []byte
}

// Caller performs one HTTP call. A returned error means a transport failure;
// HTTP error statuses come back in the CallResult.
type Caller interface {
	Call(ctx context.Context, method, endpoint string, body json.RawMessage) (*CallResult, error)
}

// TokenSource supplies a bearer token from externally-managed credential
// storage. An empty token means "send no authorization header".
type TokenSource interface {
	Token() string
}

// EnvTokenSource reads the token from an environment variable on every call,
// so external credential rotation is picked up without a restart.
type EnvTokenSource struct {
	Var string
}

func (s EnvTokenSource) Token() string {
	return os.Getenv(s.Var)
}

// StaticTokenSource returns a fixed token. Used in tests.
type StaticTokenSource string

func (s StaticTokenSource) Token() string { return string(s) }

// HTTPCaller dispatches JSON requests against a base URL.
type HTTPCaller struct {
	BaseURL string
	Tokens  TokenSource
	Client  *http.Client
}

func NewHTTPCaller(baseURL string, tokens TokenSource, timeout time.Duration) *HTTPCaller {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCaller{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Tokens:  tokens,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPCaller) Call(ctx context.Context, method, endpoint string, body json.RawMessage) (*CallResult, error) {
	url := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		url = c.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Tokens != nil {
		if token := c.Tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &CallResult{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       respBody,
	}, nil
}
