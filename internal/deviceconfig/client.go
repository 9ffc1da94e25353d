package deviceconfig

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/canbridge/internal/logging"
	"github.com/muurk/canbridge/internal/version"
)

const (
	// DefaultTimeout is the default per-request deadline
	DefaultTimeout = 5 * time.Second

	// DefaultPort is the adapter's HTTP port
	DefaultPort = 80

	// DefaultAPIPrefix is prepended to the status and config paths
	DefaultAPIPrefix = "/api"

	// maxBodySize caps how much of a response is read; the adapter's
	// documents are well under 2 KB
	maxBodySize = 64 * 1024
)

// Client talks to the adapter's JSON API.
//
// Each call is a single attempt: the client never retries. Callers decide
// when to try again.
type Client struct {
	// BaseURL is the base URL for the adapter (e.g., "http://192.168.2.163:80")
	BaseURL string

	// APIPrefix is the path prefix of the JSON API (default "/api")
	APIPrefix string

	// Timeout is the per-request deadline; 0 disables it
	Timeout time.Duration

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client
}

// NewClient creates a new adapter client
// host: adapter IP address or hostname (e.g., "192.168.2.163")
// port: adapter HTTP port (typically 80)
func NewClient(host string, port int) *Client {
	return NewClientWithURL("http://" + net.JoinHostPort(host, strconv.Itoa(port)))
}

// NewClientWithURL creates a new client with a full base URL
// baseURL: Full base URL (e.g., "http://192.168.2.163:80")
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIPrefix:  DefaultAPIPrefix,
		Timeout:    DefaultTimeout,
		HTTPClient: &http.Client{},
	}
}

// SetTimeout sets the per-request deadline. Zero means no deadline.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.Timeout = timeout
}

// SetAPIPrefix changes the path prefix of the JSON API.
func (c *Client) SetAPIPrefix(prefix string) {
	prefix = strings.TrimRight(prefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	c.APIPrefix = prefix
}

// StatusURL returns the full status endpoint URL.
func (c *Client) StatusURL() string {
	return c.BaseURL + c.APIPrefix + "/status"
}

// ConfigURL returns the full configuration endpoint URL.
func (c *Client) ConfigURL() string {
	return c.BaseURL + c.APIPrefix + "/config"
}

// host returns the host part of BaseURL for error context.
func (c *Client) host() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return c.BaseURL
	}
	return u.Hostname()
}

// withDeadline applies the client timeout to ctx.
func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

// do runs one request and returns the status code and body.
func (c *Client) do(ctx context.Context, method, target string, body io.Reader, contentType string) (int, []byte, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, NewNetworkError(fmt.Sprintf("failed to create %s request", method), err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		devErr := ClassifyNetworkError(err, c.host())
		devErr.Message = fmt.Sprintf("%s %s failed", method, target)
		logging.LogHTTPExchange(method, target, 0, time.Since(start), devErr)
		return 0, nil, devErr
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		devErr := ClassifyNetworkError(err, c.host())
		devErr.Message = "failed to read response body"
		logging.LogHTTPExchange(method, target, resp.StatusCode, time.Since(start), devErr)
		return resp.StatusCode, nil, devErr
	}

	logging.LogHTTPExchange(method, target, resp.StatusCode, time.Since(start), nil)
	logging.LogRawBytes("Response body", data)
	return resp.StatusCode, data, nil
}

// get fetches a JSON document, rejecting non-2xx responses.
func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	code, body, err := c.do(ctx, http.MethodGet, target, nil, "")
	if err != nil {
		return nil, err
	}
	if code < 200 || code > 299 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(code)
		}
		return nil, NewHTTPError(code, fmt.Sprintf("unexpected status code %d: %s", code, msg))
	}
	return body, nil
}

// GetStatus fetches the current status snapshot.
func (c *Client) GetStatus(ctx context.Context) (*StatusSnapshot, error) {
	body, err := c.get(ctx, c.StatusURL())
	if err != nil {
		return nil, err
	}
	snap, err := ParseStatusSnapshot(body)
	if err != nil {
		return nil, NewParseError("status is not valid JSON", err)
	}
	return snap, nil
}

// GetConfiguration fetches the adapter configuration.
func (c *Client) GetConfiguration(ctx context.Context) (ConfigRecord, error) {
	body, err := c.get(ctx, c.ConfigURL())
	if err != nil {
		return nil, err
	}
	rec, err := ParseConfigRecord(body)
	if err != nil {
		return nil, NewParseError("configuration is not a JSON object", err)
	}
	if missing := rec.MissingKeys(); len(missing) > 0 {
		logging.Warn("Configuration is missing known keys", zap.Strings("keys", missing))
	}
	return rec, nil
}

// PostConfiguration submits form-encoded settings.
//
// Any HTTP response is returned as a SubmitResponse, including non-2xx
// ones: the adapter explains rejections in the body. Only transport
// failures produce an error.
func (c *Client) PostConfiguration(ctx context.Context, form url.Values) (*SubmitResponse, error) {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	logging.LogFormSubmission(c.ConfigURL(), keys)

	code, body, err := c.do(ctx, http.MethodPost, c.ConfigURL(),
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, err
	}
	return &SubmitResponse{StatusCode: code, Body: string(body)}, nil
}

// Ping checks that the status endpoint answers with JSON.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetStatus(ctx)
	return err
}
