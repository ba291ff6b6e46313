// Package events shapes custom, timed, view and push events into collector
// payloads.
package events

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/telemetry-sdk/internal/request"
)

// Reserved event keys.
const (
	ViewKey       = "[CLY]_view"
	PushOpenKey   = "[CLY]_push_open"
	PushActionKey = "[CLY]_push_action"
	PushSentKey   = "[CLY]_push_sent"
)

var (
	// ErrUnknownEvent is returned when ending a timed event that was never started.
	ErrUnknownEvent = errors.New("unknown timed event")
	// ErrEmptyKey is returned for events without a key.
	ErrEmptyKey = errors.New("event key must not be empty")
)

// Event is one custom event occurrence.
type Event struct {
	Key          string         `json:"key"`
	Count        int            `json:"count"`
	Sum          *float64       `json:"sum,omitempty"`
	Dur          *float64       `json:"dur,omitempty"`
	Segmentation map[string]any `json:"segmentation,omitempty"`
}

// Normalize validates the key and defaults Count to 1.
func (e Event) Normalize() (Event, error) {
	e.Key = strings.TrimSpace(e.Key)
	if e.Key == "" {
		return e, ErrEmptyKey
	}
	if e.Count <= 0 {
		e.Count = 1
	}
	return e, nil
}

// Payload wraps events into the collector's events field.
func Payload(evs ...Event) (request.Payload, error) {
	out := make([]Event, 0, len(evs))
	for _, e := range evs {
		n, err := e.Normalize()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return request.Payload{"events": out}, nil
}

// View is the event recorded when the user opens a screen. segment is the
// platform name.
func View(name, segment string) Event {
	return Event{
		Key:   ViewKey,
		Count: 1,
		Segmentation: map[string]any{
			"name":    name,
			"segment": segment,
			"visit":   1,
		},
	}
}

// Float returns a pointer to v, for Event.Sum and Event.Dur.
func Float(v float64) *float64 { return &v }

// Timer tracks timed events between Start and End.
type Timer struct {
	now func() time.Time

	mu      sync.Mutex
	started map[string]time.Time
}

// NewTimer returns a Timer using now, or the wall clock when now is nil.
func NewTimer(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now, started: make(map[string]time.Time)}
}

// Start begins timing key. Starting a running key restarts it.
func (t *Timer) Start(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started[key] = t.now()
	return nil
}

// End stops timing key and returns the event with its duration in seconds.
func (t *Timer) End(key string) (Event, error) {
	key = strings.TrimSpace(key)
	t.mu.Lock()
	defer t.mu.Unlock()
	began, ok := t.started[key]
	if !ok {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, key)
	}
	delete(t.started, key)

	dur := t.now().Sub(began).Seconds()
	if dur < 0 {
		dur = 0
	}
	return Event{Key: key, Count: 1, Dur: Float(dur)}, nil
}

// Pending returns how many timed events are running.
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.started)
}
