// Package queue implements the offline delivery queue: an ordered backlog of
// undelivered collector requests, mirrored to durable storage on every change
// and drained strictly head first.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/example/telemetry-sdk/internal/logging"
	"github.com/example/telemetry-sdk/internal/metrics"
	"github.com/example/telemetry-sdk/internal/request"
	"github.com/example/telemetry-sdk/internal/storage"
)

// Entry is one undelivered request. It carries everything needed to replay
// it later.
//
// Decorated entries were built and attempted once already; they are replayed
// with exactly these params and method. Undecorated entries were queued
// before the client was initialized and still need device and time fields.
type Entry struct {
	ID        string         `json:"id"`
	Endpoint  string         `json:"endpoint"`
	Method    request.Method `json:"method,omitempty"`
	Decorated bool           `json:"decorated"`
	Params    request.Params `json:"params"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sender replays a single entry. A nil error means the collector accepted it.
type Sender interface {
	Send(ctx context.Context, entry Entry) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, entry Entry) error

func (f SenderFunc) Send(ctx context.Context, entry Entry) error { return f(ctx, entry) }

// Queue is a FIFO of entries backed by a storage key.
type Queue struct {
	store  storage.Store
	key    string
	logger log.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries []Entry
	loaded  bool
	loadErr error

	draining atomic.Bool
}

// New returns an empty queue persisted under storage.QueueKey. Call Restore
// to load a backlog left by a previous process.
func New(store storage.Store, logger log.Logger) *Queue {
	return &Queue{
		store:  store,
		key:    storage.QueueKey,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

// Restore loads the persisted backlog. A missing key yields an empty queue.
// A read failure or a malformed document also yields an empty queue; the
// error is returned so the caller can report it, but the queue stays usable.
//
// The backlog is loaded once per Queue. The first mutation loads it too, so
// entries enqueued before Restore land behind the restored ones and never
// overwrite them. Later calls only repeat the outcome of that load.
func (q *Queue) Restore(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.loaded {
		q.loadLocked(ctx)
	}
	return q.loadErr
}

// loadLocked merges the persisted backlog in front of the in-memory entries.
func (q *Queue) loadLocked(ctx context.Context) {
	q.loaded = true
	raw, err := q.store.Get(ctx, q.key)
	var restored []Entry
	switch {
	case errors.Is(err, storage.ErrNotFound):
		err = nil
	case err != nil:
		level.Warn(q.logger).Log("msg", "failed to read persisted queue, starting empty", "err", err)
	default:
		restored, err = Decode(raw)
		if err != nil {
			level.Warn(q.logger).Log("msg", "discarding malformed persisted queue", "err", err)
		}
	}
	q.loadErr = err

	pending := len(q.entries)
	q.entries = append(restored, q.entries...)
	if pending > 0 {
		q.persistLocked(ctx)
	}
	metrics.SetQueueDepth(len(q.entries))
	level.Debug(q.logger).Log("msg", "queue restored", "restored", len(restored), "depth", len(q.entries))
}

// Enqueue appends entry to the tail and persists the queue. It assigns an ID
// and creation time when missing. Persistence failures are logged only: the
// in-memory queue stays authoritative for this process.
func (q *Queue) Enqueue(ctx context.Context, entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = q.now().UTC()
	}
	if entry.Endpoint == "" {
		entry.Endpoint = request.Endpoint
	}
	entry.Params = entry.Params.Clone()

	q.mu.Lock()
	if !q.loaded {
		q.loadLocked(ctx)
	}
	q.entries = append(q.entries, entry)
	depth := len(q.entries)
	q.persistLocked(ctx)
	q.mu.Unlock()

	metrics.SetQueueDepth(depth)
	level.Debug(q.logger).Log("msg", "request queued", "id", entry.ID, "decorated", entry.Decorated, "depth", depth)
	return entry
}

// Drain replays entries head first until the queue is empty or a replay
// fails. A failure stops the pass and leaves the failed entry at the head.
// Only one pass runs at a time; a call made while another pass is running
// returns immediately with (0, nil), since the running pass re-reads the
// head after every success and so picks up anything enqueued meanwhile.
func (q *Queue) Drain(ctx context.Context, sender Sender) (int, error) {
	if !q.draining.CompareAndSwap(false, true) {
		level.Debug(q.logger).Log("msg", "drain already in progress")
		return 0, nil
	}
	defer q.draining.Store(false)

	delivered := 0
	for {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		head, ok := q.Head()
		if !ok {
			return delivered, nil
		}
		if err := sender.Send(ctx, head); err != nil {
			level.Debug(q.logger).Log("msg", "replay failed, suspending drain", "id", head.ID, "delivered", delivered, "err", err)
			return delivered, err
		}
		q.popHead(ctx, head.ID)
		delivered++
	}
}

// Draining reports whether a drain pass is running.
func (q *Queue) Draining() bool {
	return q.draining.Load()
}

// Head returns a copy of the oldest entry.
func (q *Queue) Head() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return Entry{}, false
	}
	head := q.entries[0]
	head.Params = head.Params.Clone()
	return head, true
}

// popHead removes the head if it is still the entry with the given id.
func (q *Queue) popHead(ctx context.Context, id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 || q.entries[0].ID != id {
		return
	}
	q.entries[0] = Entry{}
	q.entries = q.entries[1:]
	q.persistLocked(ctx)
	metrics.SetQueueDepth(len(q.entries))
}

// DropHead removes the oldest entry without delivering it. It is the only
// way, besides Clear, to get past an entry the collector will never accept.
func (q *Queue) DropHead(ctx context.Context) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.loaded {
		q.loadLocked(ctx)
	}
	if len(q.entries) == 0 {
		return Entry{}, false
	}
	head := q.entries[0]
	q.entries[0] = Entry{}
	q.entries = q.entries[1:]
	q.persistLocked(ctx)
	metrics.SetQueueDepth(len(q.entries))
	level.Info(q.logger).Log("msg", "dropped head of queue", "id", head.ID)
	return head, true
}

// Clear removes every entry, including a backlog that was never restored.
func (q *Queue) Clear(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.loaded = true
	q.entries = nil
	q.persistLocked(ctx)
	metrics.SetQueueDepth(0)
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Entries returns a copy of the queue in replay order.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	for i, e := range q.entries {
		e.Params = e.Params.Clone()
		out[i] = e
	}
	return out
}

// persistLocked writes the whole queue. Callers hold q.mu, so snapshots reach
// the store in mutation order.
func (q *Queue) persistLocked(ctx context.Context) {
	raw, err := Encode(q.entries)
	if err != nil {
		level.Error(q.logger).Log("msg", "failed to encode queue", "err", err)
		return
	}
	if err := q.store.Set(ctx, q.key, raw); err != nil {
		level.Warn(q.logger).Log("msg", "failed to persist queue, keeping it in memory", "depth", len(q.entries), "err", err)
	}
}
