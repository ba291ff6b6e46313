package client

import (
	"time"

	"github.com/go-kit/log"

	"github.com/example/telemetry-sdk/internal/device"
	"github.com/example/telemetry-sdk/internal/request"
	"github.com/example/telemetry-sdk/internal/scheduler"
	"github.com/example/telemetry-sdk/internal/session"
	"github.com/example/telemetry-sdk/internal/transport"
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	DefaultHeartbeat   = session.DefaultHeartbeat
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTransport replaces the HTTP transport.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithHTTPTimeout sets the per-attempt timeout of the default transport.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpTimeout = d }
}

// WithDefaultMethod sets the method used for requests short enough for GET.
func WithDefaultMethod(m request.Method) Option {
	return func(c *Client) { c.defaultMethod = m }
}

// WithProperties sets the device description sent with sessions and crashes.
func WithProperties(p device.Properties) Option {
	return func(c *Client) { c.props = p }
}

// WithClock replaces the wall clock for request timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithScheduler tunes the drain scheduler.
func WithScheduler(cfg scheduler.Config) Option {
	return func(c *Client) { c.schedCfg = cfg }
}

// WithHeartbeat sets the session_duration reporting interval.
func WithHeartbeat(d time.Duration) Option {
	return func(c *Client) { c.heartbeat = d }
}

// WithSDK overrides the sdk_name and sdk_version reported with every request.
func WithSDK(name, version string) Option {
	return func(c *Client) {
		c.builder.SDKName = name
		c.builder.SDKVersion = version
	}
}
