// Package device resolves the stable device identifier and describes the
// host the SDK runs on.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/example/telemetry-sdk/internal/storage"
)

// ErrEmptyID is returned when changing to a blank identifier.
var ErrEmptyID = errors.New("device id must not be empty")

// Identity is the device identifier, mirrored to durable storage.
type Identity struct {
	store storage.Store

	mu sync.RWMutex
	id string
}

// Load resolves the device id. A previously stored id wins, then the
// supplied one, then a freshly generated UUID. Whatever is chosen is
// persisted, so a later process gets the same id.
func Load(ctx context.Context, store storage.Store, supplied string) (*Identity, error) {
	stored, err := store.Get(ctx, storage.DeviceIDKey)
	switch {
	case err == nil && strings.TrimSpace(stored) != "":
		return &Identity{store: store, id: stored}, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("loading device id: %w", err)
	}

	id := strings.TrimSpace(supplied)
	if id == "" {
		id = uuid.NewString()
	}
	if err := store.Set(ctx, storage.DeviceIDKey, id); err != nil {
		return nil, fmt.Errorf("persisting device id: %w", err)
	}
	return &Identity{store: store, id: id}, nil
}

// ID returns the current identifier.
func (i *Identity) ID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.id
}

// Change replaces the identifier and persists it. It returns the previous id.
// The in-memory id only changes once the store accepted the new one.
func (i *Identity) Change(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrEmptyID
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.store.Set(ctx, storage.DeviceIDKey, id); err != nil {
		return "", fmt.Errorf("persisting device id: %w", err)
	}
	old := i.id
	i.id = id
	return old, nil
}
