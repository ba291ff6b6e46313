package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/telemetry-sdk/internal/queue"
	"github.com/example/telemetry-sdk/internal/request"
	"github.com/example/telemetry-sdk/internal/storage"
	"github.com/example/telemetry-sdk/internal/testutils"
)

func seededStore(t *testing.T) storage.Store {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	q := queue.New(store, nil)
	q.Enqueue(ctx, queue.Entry{Endpoint: request.Endpoint, Params: request.Params{"begin_session": "1"}})
	q.Enqueue(ctx, queue.Entry{
		Endpoint:  request.Endpoint,
		Method:    request.MethodPost,
		Decorated: true,
		Params:    request.Params{"events": "[]", "app_key": "k", "device_id": "d"},
	})
	return store
}

func runCommand(t *testing.T, store storage.Store, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), store, args, &out, testutils.TestLogger("queue-inspect", true))
	return out.String(), err
}

func TestList(t *testing.T) {
	out, err := runCommand(t, seededStore(t), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "2 queued request(s)")
	assert.Contains(t, out, "begin_session")
	assert.Contains(t, out, "POST")
	assert.Contains(t, out, "decorated=true  events")
}

func TestDropHeadAndClear(t *testing.T) {
	store := seededStore(t)

	out, err := runCommand(t, store, "drop-head")
	require.NoError(t, err)
	assert.Contains(t, out, "(begin_session), 1 left")

	out, err = runCommand(t, store, "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared 1 request(s)")

	out, err = runCommand(t, store, "drop-head")
	require.NoError(t, err)
	assert.Contains(t, out, "queue is empty")

	raw, err := store.Get(context.Background(), storage.QueueKey)
	require.NoError(t, err)
	assert.Equal(t, `{"version":1,"entries":[]}`, raw)
}

func TestClearRecoversMalformedQueue(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), storage.QueueKey, "not json"))

	_, err := runCommand(t, store, "list")
	assert.ErrorIs(t, err, queue.ErrMalformedPersisted)

	out, err := runCommand(t, store, "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared 0 request(s)")
}

func TestDevice(t *testing.T) {
	store := storage.NewMemoryStore()
	out, err := runCommand(t, store, "device")
	require.NoError(t, err)
	assert.Contains(t, out, "no device id stored")

	require.NoError(t, store.Set(context.Background(), storage.DeviceIDKey, "dev-42"))
	out, err = runCommand(t, store, "device")
	require.NoError(t, err)
	assert.Equal(t, "dev-42\n", out)
}

func TestUsageErrors(t *testing.T) {
	_, err := runCommand(t, storage.NewMemoryStore())
	assert.ErrorIs(t, err, errUsage)

	_, err = runCommand(t, storage.NewMemoryStore(), "explode")
	assert.ErrorIs(t, err, errUsage)
}
