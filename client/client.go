// Package client is the entry point of the telemetry SDK. A Client collects
// sessions, events, views, crashes and user data and relays them to an
// analytics collector. Requests that cannot be delivered are kept in a
// durable queue and replayed in order once the collector is reachable.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/sourcegraph/conc"

	"github.com/example/telemetry-sdk/internal/device"
	"github.com/example/telemetry-sdk/internal/events"
	"github.com/example/telemetry-sdk/internal/logging"
	"github.com/example/telemetry-sdk/internal/metrics"
	"github.com/example/telemetry-sdk/internal/queue"
	"github.com/example/telemetry-sdk/internal/request"
	"github.com/example/telemetry-sdk/internal/scheduler"
	"github.com/example/telemetry-sdk/internal/session"
	"github.com/example/telemetry-sdk/internal/storage"
	"github.com/example/telemetry-sdk/internal/transport"
)

var (
	// ErrNotInitialized is returned by operations that need Init first.
	ErrNotInitialized = errors.New("client is not initialized")
	// ErrInvalidConfig is returned by Init for a missing URL or app key.
	ErrInvalidConfig = errors.New("invalid client configuration")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("client is closed")
)

// Enqueue reasons, used as metric labels.
const (
	reasonNotInitialized = "not_initialized"
	reasonDeliveryFailed = "delivery_failed"
)

type saltSetter interface {
	SetSalt(salt string)
}

// Client owns the delivery pipeline of one application instance.
type Client struct {
	store     storage.Store
	logger    log.Logger
	queue     *queue.Queue
	builder   *request.Builder
	transport transport.Transport
	sched     *scheduler.Scheduler
	sessions  *session.Tracker
	timer     *events.Timer
	props     device.Properties
	now       func() time.Time

	httpTimeout   time.Duration
	heartbeat     time.Duration
	schedCfg      scheduler.Config
	defaultMethod request.Method
	startedAt     time.Time

	// lifetime bounds background work; cancelled by Close.
	lifetime context.Context
	cancel   context.CancelFunc

	mu             sync.RWMutex
	initialized    bool
	closed         bool
	baseURL        string
	appKey         string
	identity       *device.Identity
	manualSessions bool
	background     bool

	forcePost atomic.Bool

	hbMu     sync.Mutex
	hbCancel context.CancelFunc
	hbWG     *conc.WaitGroup
}

// New creates a client over store and restores any backlog left by a
// previous process. A backlog that cannot be read is logged and dropped; it
// does not prevent the client from working.
func New(ctx context.Context, store storage.Store, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}

	c := &Client{
		store:         store,
		builder:       request.NewBuilder(),
		now:           time.Now,
		httpTimeout:   DefaultHTTPTimeout,
		heartbeat:     DefaultHeartbeat,
		defaultMethod: request.MethodGet,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = logging.OrNop(c.logger)
	c.builder.Now = c.now
	c.startedAt = c.now()
	if c.transport == nil {
		c.transport = transport.NewHTTPTransport(c.httpTimeout)
	}
	if c.props == nil {
		c.props = device.Static{}
	}
	c.sessions = session.NewTracker(c.props)
	c.timer = events.NewTimer(c.now)
	c.queue = queue.New(store, log.With(c.logger, "module", "queue"))
	c.sched = scheduler.New(c.drain, c.schedCfg, log.With(c.logger, "module", "scheduler"))
	c.lifetime, c.cancel = context.WithCancel(context.Background())

	if err := c.queue.Restore(ctx); err != nil {
		level.Warn(c.logger).Log("msg", "offline queue could not be restored", "err", err)
	}
	return c, nil
}

// Init configures the collector endpoint and resolves the device id, then
// starts the drain scheduler. Requests submitted before Init are kept and
// delivered by the scheduler's first pass. Calling Init again reconfigures
// the client and restarts the scheduler.
func (c *Client) Init(ctx context.Context, baseURL, appKey, deviceID string) error {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" || strings.TrimSpace(appKey) == "" {
		return fmt.Errorf("%w: base URL and app key are required", ErrInvalidConfig)
	}
	if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base URL %q is not absolute", ErrInvalidConfig, baseURL)
	}

	identity, err := device.Load(ctx, c.store, deviceID)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.baseURL = baseURL
	c.appKey = appKey
	c.identity = identity
	c.initialized = true
	c.mu.Unlock()

	c.sched.Start(c.lifetime)
	level.Info(c.logger).Log("msg", "client initialized", "collector", baseURL, "device_id", identity.ID(), "pending", c.queue.Len())
	return nil
}

// IsInitialized reports whether Init succeeded.
func (c *Client) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// DeviceID returns the current device id, or "" before Init.
func (c *Client) DeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return ""
	}
	return c.identity.ID()
}

// Pending returns the number of undelivered requests.
func (c *Client) Pending() int {
	return c.queue.Len()
}

// Flush drains the offline queue now. It returns how many requests were
// delivered and the error that stopped the pass, if any.
func (c *Client) Flush(ctx context.Context) (int, error) {
	if !c.IsInitialized() {
		return 0, ErrNotInitialized
	}
	return c.drain(ctx)
}

// SetHTTPPostForced makes the next request use POST regardless of its size.
func (c *Client) SetHTTPPostForced(forced bool) {
	c.forcePost.Store(forced)
}

// EnableParameterTamperingProtection signs every request with salt. It only
// affects transports that support signing, which the default one does.
func (c *Client) EnableParameterTamperingProtection(salt string) {
	if s, ok := c.transport.(saltSetter); ok {
		s.SetSalt(salt)
		return
	}
	level.Warn(c.logger).Log("msg", "transport does not support request signing")
}

// Close stops the session heartbeat and the scheduler. Queued requests stay
// in the store for the next process.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.stopHeartbeat()
	c.sched.Stop()
	c.cancel()
	return nil
}

// submit is the single path every producer goes through. Before Init the
// raw params are queued and decorated at replay. After Init the request is
// decorated and attempted once; on failure it is queued verbatim and the
// scheduler is nudged.
func (c *Client) submit(ctx context.Context, payload request.Payload) error {
	params, err := request.Flatten(payload)
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	if !c.IsInitialized() {
		c.queue.Enqueue(ctx, queue.Entry{Endpoint: request.Endpoint, Params: params})
		metrics.RecordEnqueued(reasonNotInitialized)
		level.Debug(c.logger).Log("msg", "queued request until init", "pending", c.queue.Len())
		return nil
	}

	entry := c.prepare(params, c.forcePost.Swap(false))
	if err := c.deliver(ctx, entry); err != nil {
		c.queue.Enqueue(ctx, entry)
		metrics.RecordEnqueued(reasonDeliveryFailed)
		level.Debug(c.logger).Log("msg", "delivery failed, request queued", "method", entry.Method, "err", err)
		c.sched.Trigger()
	}
	return nil
}

// prepare decorates params and picks the method.
func (c *Client) prepare(params request.Params, forced bool) queue.Entry {
	c.mu.RLock()
	deviceID, appKey, method := c.identity.ID(), c.appKey, c.defaultMethod
	c.mu.RUnlock()

	decorated := c.builder.Decorate(params, deviceID, appKey)
	return queue.Entry{
		Endpoint:  request.Endpoint,
		Method:    request.Classify(decorated.Encode(), method, forced),
		Decorated: true,
		Params:    decorated,
	}
}

func (c *Client) deliver(ctx context.Context, entry queue.Entry) error {
	c.mu.RLock()
	target := c.baseURL + entry.Endpoint
	c.mu.RUnlock()

	_, err := transport.Send(ctx, c.transport, entry.Method, target, entry.Params)
	return err
}

// replay sends a queued entry. Entries queued before Init get their
// decoration now; others go out exactly as first attempted.
func (c *Client) replay(ctx context.Context, entry queue.Entry) error {
	if !entry.Decorated {
		prepared := c.prepare(entry.Params, false)
		entry.Params, entry.Method, entry.Decorated = prepared.Params, prepared.Method, true
	}
	if entry.Method == "" {
		entry.Method = c.defaultMethod
	}
	return c.deliver(ctx, entry)
}

func (c *Client) drain(ctx context.Context) (int, error) {
	if !c.IsInitialized() {
		return 0, ErrNotInitialized
	}
	return c.queue.Drain(ctx, queue.SenderFunc(c.replay))
}
