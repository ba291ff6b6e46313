package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	"github.com/sourcegraph/conc"
)

// AppState is the application lifecycle state reported by the host.
type AppState string

const (
	StateActive     AppState = "active"
	StateBackground AppState = "background"
	StateInactive   AppState = "inactive"
)

// ParseAppState maps a state name to an AppState.
func ParseAppState(s string) (AppState, error) {
	switch st := AppState(strings.ToLower(strings.TrimSpace(s))); st {
	case StateActive, StateBackground, StateInactive:
		return st, nil
	default:
		return "", fmt.Errorf("unknown app state %q", s)
	}
}

// Begin initializes the client and starts a session.
func (c *Client) Begin(ctx context.Context, baseURL, appKey, deviceID string) error {
	if err := c.Init(ctx, baseURL, appKey, deviceID); err != nil {
		return fmt.Errorf("unable to initialize: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("unable to start session: %w", err)
	}
	return nil
}

// Start begins a session and its periodic session_duration heartbeat. A
// session that is already open is ended first.
func (c *Client) Start(ctx context.Context) error {
	if !c.IsInitialized() {
		return ErrNotInitialized
	}
	if err := c.Stop(ctx); err != nil {
		return err
	}

	payload, ok := c.sessions.Begin(c.now())
	if !ok {
		return nil
	}
	if err := c.submit(ctx, payload); err != nil {
		return err
	}
	c.startHeartbeat()
	level.Debug(c.logger).Log("msg", "session started")
	return nil
}

// Stop ends the current session, if any.
func (c *Client) Stop(ctx context.Context) error {
	c.stopHeartbeat()
	payload, ok := c.sessions.End(c.now())
	if !ok {
		return nil
	}
	level.Debug(c.logger).Log("msg", "session ended", "duration", payload["session_duration"])
	return c.submit(ctx, payload)
}

// SetManualSessionHandling disables the automatic session handling done by
// HandleStateChange. Start and Stop must then be called by the app.
func (c *Client) SetManualSessionHandling(manual bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manualSessions = manual
}

// HandleStateChange reacts to the app moving between foreground and
// background. Going to the background ends the session. Returning to the
// foreground starts a new one and drains the backlog immediately. Signals
// are ignored before Init and in manual session mode.
func (c *Client) HandleStateChange(ctx context.Context, state AppState) error {
	c.mu.Lock()
	if !c.initialized || c.manualSessions {
		c.mu.Unlock()
		return nil
	}
	wasBackground := c.background
	switch state {
	case StateBackground:
		c.background = true
	case StateActive:
		c.background = false
	}
	c.mu.Unlock()

	switch {
	case state == StateBackground && !wasBackground:
		level.Debug(c.logger).Log("msg", "app moved to background")
		return c.Stop(ctx)
	case state == StateActive && wasBackground:
		level.Debug(c.logger).Log("msg", "app returned to foreground")
		c.sched.Foreground()
		return c.Start(ctx)
	}
	return nil
}

func (c *Client) startHeartbeat() {
	c.hbMu.Lock()
	defer c.hbMu.Unlock()
	if c.hbCancel != nil || c.heartbeat <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(c.lifetime)
	c.hbCancel = cancel
	c.hbWG = &conc.WaitGroup{}
	c.hbWG.Go(func() {
		ticker := time.NewTicker(c.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				payload, ok := c.sessions.Heartbeat(c.now())
				if !ok {
					return
				}
				// the loop context is cancelled on Stop; a heartbeat already
				// taken must still reach the queue
				if err := c.submit(c.lifetime, payload); err != nil {
					level.Warn(c.logger).Log("msg", "session heartbeat failed", "err", err)
				}
			}
		}
	})
}

func (c *Client) stopHeartbeat() {
	c.hbMu.Lock()
	cancel, wg := c.hbCancel, c.hbWG
	c.hbCancel, c.hbWG = nil, nil
	c.hbMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	wg.Wait()
}
