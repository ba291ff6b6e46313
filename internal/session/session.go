// Package session tracks the lifetime of an analytics session and produces
// the begin, heartbeat and end payloads reported to the collector.
package session

import (
	"sync"
	"time"

	"github.com/example/telemetry-sdk/internal/device"
	"github.com/example/telemetry-sdk/internal/metrics"
	"github.com/example/telemetry-sdk/internal/request"
)

// DefaultHeartbeat is the interval between session_duration updates.
const DefaultHeartbeat = 60 * time.Second

// Tracker holds the in-memory session state. It is not persisted: a process
// restart starts a new session.
type Tracker struct {
	props device.Properties

	mu       sync.Mutex
	active   bool
	started  time.Time
	reported time.Time
}

// NewTracker returns an inactive tracker reporting props with begin_session.
func NewTracker(props device.Properties) *Tracker {
	if props == nil {
		props = device.Static{}
	}
	return &Tracker{props: props}
}

// Begin opens a session. It returns false if one is already open.
func (t *Tracker) Begin(now time.Time) (request.Payload, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return nil, false
	}
	t.active = true
	t.started = now
	t.reported = now
	metrics.SessionStarted()

	return request.Payload{
		"begin_session": 1,
		"metrics":       t.props.Metrics(),
	}, true
}

// Heartbeat reports the time elapsed since the last report. It returns false
// when no session is open.
func (t *Tracker) Heartbeat(now time.Time) (request.Payload, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return nil, false
	}
	return request.Payload{"session_duration": t.elapsedLocked(now)}, true
}

// End closes the session, reporting the time since the last report.
func (t *Tracker) End(now time.Time) (request.Payload, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return nil, false
	}
	t.active = false
	metrics.SessionEnded()

	return request.Payload{
		"end_session":      1,
		"session_duration": t.elapsedLocked(now),
	}, true
}

// Active reports whether a session is open.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Started returns when the current or last session began.
func (t *Tracker) Started() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// elapsedLocked returns whole seconds since the last report. The fractional
// remainder carries over to the next report.
func (t *Tracker) elapsedLocked(now time.Time) int64 {
	secs := int64(now.Sub(t.reported) / time.Second)
	if secs < 0 {
		secs = 0
	}
	t.reported = t.reported.Add(time.Duration(secs) * time.Second)
	return secs
}
