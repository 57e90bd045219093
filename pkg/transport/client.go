// Package transport posts JSON to upstream HTTP APIs and returns the decoded
// response body without interpreting it.
package transport

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

	"go.uber.org/zap"
)

const (
	DefaultTimeout = 10 * time.Second

	// maxErrorBody caps how much of a non-2xx body is kept on StatusError.
	maxErrorBody = 2048
)

// Options tune a single request. Zero values fall back to the client defaults.
type Options struct {
	Timeout time.Duration
	Headers map[string]string
}

type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	headers    map[string]string
	logger     *zap.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHeader adds a header sent on every request unless overridden per call.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		headers:    map[string]string{"Content-Type": "application/json"},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post sends body to http://host:port/path. See PostURL.
func (c *Client) Post(ctx context.Context, host, port, path string, body any, opts Options) (any, error) {
	return c.PostURL(ctx, BuildURL(host, port, path), body, opts)
}

// PostURL sends body as JSON and returns the decoded response.
//
// body may be JSON text (string, []byte, json.RawMessage) or any value
// encoding/json can marshal. Text is decoded first so the wire form is the
// same canonical encoding either way. Numbers in the response are decoded as
// json.Number.
func (c *Client) PostURL(ctx context.Context, url string, body any, opts Options) (any, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Op: "create request", URL: url, Err: err}
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("api call", zap.String("url", url), zap.ByteString("request", payload))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("api call failed", zap.String("url", url), zap.Error(err))
		return nil, &TransportError{Op: "post", URL: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read response", URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("api call returned error status",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url, Body: truncate(string(data), maxErrorBody)}
	}

	decoded, err := decodeBody(data)
	if err != nil {
		return nil, &TransportError{Op: "decode response", URL: url, Err: err}
	}

	c.logger.Debug("api response", zap.String("url", url), zap.Int("status", resp.StatusCode))
	return decoded, nil
}

// BuildURL joins the endpoint parts as http://host:port/path.
func BuildURL(host, port, path string) string {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("http://%s:%s%s", host, port, path)
}

func encodeBody(body any) ([]byte, error) {
	var text []byte
	switch v := body.(type) {
	case string:
		text = []byte(v)
	case []byte:
		text = v
	case json.RawMessage:
		text = v
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("transport: encode request body: %w", err)
		}
		return data, nil
	}

	var parsed any
	if err := json.Unmarshal(text, &parsed); err != nil {
		return nil, fmt.Errorf("transport: request body is not valid JSON: %w", err)
	}
	data, err := json.Marshal(parsed)
	if err != nil {
		return nil, fmt.Errorf("transport: encode request body: %w", err)
	}
	return data, nil
}

func decodeBody(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty response body")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
