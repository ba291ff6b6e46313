// Package transport performs single delivery attempts against the collector.
// It never retries; retry policy belongs to the offline queue and its scheduler.
package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/telemetry-sdk/internal/metrics"
	"github.com/example/telemetry-sdk/internal/request"
)

// ErrTransport wraps every failed attempt: network errors and non-2xx replies.
var ErrTransport = errors.New("transport failure")

// ChecksumParam carries the tamper-protection signature.
const ChecksumParam = "checksum256"

// maxResponseBody bounds how much of a collector reply is kept.
const maxResponseBody = 64 << 10

// Response is the collector reply to a successful attempt.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport sends one request per call.
type Transport interface {
	Get(ctx context.Context, url string, params request.Params) (*Response, error)
	Post(ctx context.Context, url string, params request.Params) (*Response, error)
}

// Send dispatches params with the given method.
func Send(ctx context.Context, t Transport, method request.Method, url string, params request.Params) (*Response, error) {
	if method == request.MethodPost {
		return t.Post(ctx, url, params)
	}
	return t.Get(ctx, url, params)
}

// Checksum computes the tamper-protection signature for an encoded parameter string.
func Checksum(encoded, salt string) string {
	sum := sha256.Sum256([]byte(encoded + salt))
	return hex.EncodeToString(sum[:])
}

// HTTPTransport implements Transport over net/http.
type HTTPTransport struct {
	client *http.Client
	salt   atomic.Value // string
}

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithSalt enables request signing.
func WithSalt(salt string) Option {
	return func(t *HTTPTransport) { t.salt.Store(salt) }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) { t.client = c }
}

// NewHTTPTransport creates a transport whose attempts time out after timeout.
func NewHTTPTransport(timeout time.Duration, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{client: &http.Client{Timeout: timeout}}
	t.salt.Store("")
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetSalt enables (or with "" disables) request signing.
func (t *HTTPTransport) SetSalt(salt string) {
	t.salt.Store(salt)
}

// sign returns the encoded parameters, with the checksum appended when a salt is set.
func (t *HTTPTransport) sign(params request.Params) string {
	encoded := params.Encode()
	salt, _ := t.salt.Load().(string)
	if salt == "" {
		return encoded
	}
	return encoded + "&" + ChecksumParam + "=" + Checksum(encoded, salt)
}

func (t *HTTPTransport) Get(ctx context.Context, url string, params request.Params) (*Response, error) {
	target := url
	if q := t.sign(params); q != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		target = url + sep + q
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	return t.do(req, string(request.MethodGet))
}

func (t *HTTPTransport) Post(ctx context.Context, url string, params request.Params) (*Response, error) {
	body := t.sign(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.do(req, string(request.MethodPost))
}

func (t *HTTPTransport) do(req *http.Request, method string) (*Response, error) {
	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		metrics.RecordDeliveryAttempt(method, "error", time.Since(start))
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordDeliveryAttempt(method, strconv.Itoa(resp.StatusCode), time.Since(start))
		return nil, fmt.Errorf("%w: %s %s returned status %d: %s", ErrTransport, method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	metrics.RecordDeliveryAttempt(method, "success", time.Since(start))
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
