// Package scheduler decides when the offline queue is drained.
//
// A pass runs after an initial delay on Start, on a fixed periodic tick, when
// the application returns to the foreground, and opportunistically after a
// request is queued. Opportunistic triggers are coalesced, spaced by a
// minimum gap and held off after a failed pass.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/example/telemetry-sdk/internal/logging"
	"github.com/example/telemetry-sdk/internal/metrics"
)

const (
	DefaultInitialDelay = time.Second
	DefaultInterval     = 60 * time.Second
	DefaultMinGap       = 2 * time.Second
	DefaultMaxHoldOff   = 5 * time.Minute
)

// Trigger names, used as metric labels.
const (
	TriggerStart      = "start"
	TriggerTick       = "tick"
	TriggerForeground = "foreground"
	TriggerEnqueue    = "enqueue"
)

// DrainFunc runs one drain pass and reports how many entries it delivered.
type DrainFunc func(ctx context.Context) (int, error)

// Config controls pass timing. Zero values fall back to the defaults.
type Config struct {
	InitialDelay time.Duration
	Interval     time.Duration
	// MinGap is the minimum spacing between opportunistic passes.
	MinGap time.Duration
	// MaxHoldOff caps how long opportunistic passes are suppressed after
	// consecutive failures.
	MaxHoldOff time.Duration
}

func (c Config) withDefaults() Config {
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MinGap <= 0 {
		c.MinGap = DefaultMinGap
	}
	if c.MaxHoldOff <= 0 {
		c.MaxHoldOff = DefaultMaxHoldOff
	}
	return c
}

// Scheduler owns the single periodic drain task of a client.
type Scheduler struct {
	drain  DrainFunc
	cfg    Config
	logger log.Logger
	now    func() time.Time

	trigger    chan struct{}
	foreground chan struct{}

	limiter *rate.Limiter

	holdMu    sync.Mutex
	holdOff   *backoff.ExponentialBackOff
	holdUntil time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      *conc.WaitGroup
	running bool
}

// New creates a stopped scheduler.
func New(drain DrainFunc, cfg Config, logger log.Logger) *Scheduler {
	cfg = cfg.withDefaults()

	holdOff := backoff.NewExponentialBackOff()
	holdOff.InitialInterval = cfg.MinGap
	holdOff.MaxInterval = cfg.MaxHoldOff

	return &Scheduler{
		drain:      drain,
		cfg:        cfg,
		logger:     logging.OrNop(logger),
		now:        time.Now,
		trigger:    make(chan struct{}, 1),
		foreground: make(chan struct{}, 1),
		limiter:    rate.NewLimiter(rate.Every(cfg.MinGap), 1),
		holdOff:    holdOff,
	}
}

// Start launches the loop. Starting a running scheduler stops the previous
// loop first, so repeated initialization never leaves a second timer behind.
func (s *Scheduler) Start(ctx context.Context) {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg = &conc.WaitGroup{}
	s.running = true
	// the start pass covers the first gap; opportunistic passes begin after it
	s.limiter.Allow()
	s.wg.Go(func() { s.run(loopCtx) })
	level.Debug(s.logger).Log("msg", "drain scheduler started", "initial_delay", s.cfg.InitialDelay, "interval", s.cfg.Interval)
}

// Stop cancels the loop and waits for an in-flight pass to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, wg := s.cancel, s.wg
	s.cancel, s.wg = nil, nil
	s.running = false
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	wg.Wait()
	level.Debug(s.logger).Log("msg", "drain scheduler stopped")
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Trigger requests an opportunistic pass. It never blocks; triggers that
// arrive while one is pending are merged.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Foreground requests an immediate pass, bypassing the minimum gap and any
// failure hold-off.
func (s *Scheduler) Foreground() {
	select {
	case s.foreground <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	timer := time.NewTimer(s.cfg.InitialDelay)
	defer timer.Stop()
	first := true

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			trigger := TriggerTick
			if first {
				trigger, first = TriggerStart, false
			}
			s.pass(ctx, trigger)
			timer.Reset(s.cfg.Interval)
		case <-s.foreground:
			s.pass(ctx, TriggerForeground)
		case <-s.trigger:
			if !s.allowOpportunistic() {
				metrics.RecordDrainPass(TriggerEnqueue, "skipped")
				continue
			}
			s.pass(ctx, TriggerEnqueue)
		}
	}
}

func (s *Scheduler) allowOpportunistic() bool {
	s.holdMu.Lock()
	held := s.now().Before(s.holdUntil)
	s.holdMu.Unlock()
	if held {
		return false
	}
	return s.limiter.Allow()
}

func (s *Scheduler) pass(ctx context.Context, trigger string) {
	delivered, err := s.drain(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.holdMu.Lock()
		wait := s.holdOff.NextBackOff()
		if wait == backoff.Stop {
			wait = s.cfg.MaxHoldOff
		}
		s.holdUntil = s.now().Add(wait)
		s.holdMu.Unlock()

		metrics.RecordDrainPass(trigger, "failed")
		level.Debug(s.logger).Log("msg", "drain pass failed", "trigger", trigger, "delivered", delivered, "hold_off", wait, "err", err)
		return
	}

	s.holdMu.Lock()
	s.holdOff.Reset()
	s.holdUntil = time.Time{}
	s.holdMu.Unlock()

	metrics.RecordDrainPass(trigger, "ok")
	if delivered > 0 {
		level.Debug(s.logger).Log("msg", "drain pass delivered backlog", "trigger", trigger, "delivered", delivered)
	}
}
