// Package storage provides the string-keyed durable store the SDK uses to
// keep its offline queue and device identifier across process restarts.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/example/telemetry-sdk/internal/metrics"
)

var (
	// ErrNotFound is returned by Get when the key has never been set or was removed.
	ErrNotFound = errors.New("storage: key not found")
	// ErrStorage wraps every failure of the underlying medium.
	ErrStorage = errors.New("storage failure")
)

// Keys used by the SDK core.
const (
	QueueKey    = "offline_queue"
	DeviceIDKey = "device_id"
)

// Store is the get/set/remove contract over string keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

type scoped struct {
	store     Store
	namespace string
}

// Scoped returns a Store that prefixes every key with namespace.
func Scoped(store Store, namespace string) Store {
	if namespace == "" {
		return store
	}
	return &scoped{store: store, namespace: namespace}
}

func (s *scoped) Get(ctx context.Context, key string) (string, error) {
	return s.store.Get(ctx, s.namespace+key)
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.namespace+key, value)
}

func (s *scoped) Remove(ctx context.Context, key string) error {
	return s.store.Remove(ctx, s.namespace+key)
}

// observe records the metrics for a single store operation.
func observe(backend, operation string, start time.Time, err error) {
	status := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "miss"
	case err != nil:
		status = "error"
	}
	metrics.RecordStorageOperation(backend, operation, status, time.Since(start))
}
