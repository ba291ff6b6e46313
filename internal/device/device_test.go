package device

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/telemetry-sdk/internal/storage"
	"github.com/example/telemetry-sdk/internal/testutils/mocks"
)

func TestLoadPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		supplied string
		expected string
	}{
		{"stored id wins over supplied", "stored-id", "supplied-id", "stored-id"},
		{"supplied id used when nothing stored", "", "supplied-id", "supplied-id"},
		{"supplied id is trimmed", "", "  padded  ", "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemoryStore()
			if tt.stored != "" {
				require.NoError(t, store.Set(ctx, storage.DeviceIDKey, tt.stored))
			}

			id, err := Load(ctx, store, tt.supplied)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, id.ID())

			persisted, err := store.Get(ctx, storage.DeviceIDKey)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, persisted)
		})
	}
}

func TestLoadGeneratesStableID(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first, err := Load(ctx, store, "")
	require.NoError(t, err)
	assert.Len(t, first.ID(), 36)

	second, err := Load(ctx, store, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())
}

func TestLoadStorageFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("backend down")

	store := mocks.NewMockStore()
	store.SetGetError(boom)
	_, err := Load(ctx, store, "x")
	assert.ErrorIs(t, err, boom)

	store = mocks.NewMockStore()
	store.SetSetError(boom)
	_, err = Load(ctx, store, "x")
	assert.ErrorIs(t, err, boom)
}

func TestChange(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockStore()
	id, err := Load(ctx, store, "old")
	require.NoError(t, err)

	old, err := id.Change(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "old", old)
	assert.Equal(t, "new", id.ID())

	_, err = id.Change(ctx, " ")
	assert.ErrorIs(t, err, ErrEmptyID)

	store.SetSetError(errors.New("backend down"))
	_, err = id.Change(ctx, "newer")
	assert.Error(t, err)
	assert.Equal(t, "new", id.ID(), "id must not change when it cannot be persisted")
}

func TestStaticMetricsSkipsEmpty(t *testing.T) {
	s := Static{OS: "linux", AppVersion: "2.1.0", Carrier: ""}
	assert.Equal(t, map[string]string{KeyOS: "linux", KeyAppVersion: "2.1.0"}, s.Metrics())
	assert.JSONEq(t, `{"_os":"linux","_app_version":"2.1.0"}`, MetricsJSON(s))
}

func TestHostLocale(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "de_DE.UTF-8")

	h := Host("1.0.0")
	assert.Equal(t, "de_DE", h.Locale)
	assert.Equal(t, "1.0.0", h.AppVersion)
	assert.NotEmpty(t, h.OS)
}
