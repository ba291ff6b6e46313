package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/telemetry-sdk/internal/request"
)

func TestPayloadDefaultsCount(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		expected string
	}{
		{
			name:     "count defaults to one",
			event:    Event{Key: "app_open"},
			expected: `[{"key":"app_open","count":1}]`,
		},
		{
			name:     "explicit count kept",
			event:    Event{Key: "level_up", Count: 3},
			expected: `[{"key":"level_up","count":3}]`,
		},
		{
			name:     "sum and segmentation",
			event:    Event{Key: "purchase", Sum: Float(9.99), Segmentation: map[string]any{"sku": "pro"}},
			expected: `[{"key":"purchase","count":1,"sum":9.99,"segmentation":{"sku":"pro"}}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Payload(tt.event)
			require.NoError(t, err)
			params, err := request.Flatten(payload)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, params["events"])
		})
	}
}

func TestPayloadRejectsEmptyKey(t *testing.T) {
	_, err := Payload(Event{Key: "  "})
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestView(t *testing.T) {
	v := View("Settings", "Linux")
	assert.Equal(t, ViewKey, v.Key)
	assert.Equal(t, map[string]any{"name": "Settings", "segment": "Linux", "visit": 1}, v.Segmentation)
}

func TestTimer(t *testing.T) {
	now := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	timer := NewTimer(func() time.Time { return now })

	require.NoError(t, timer.Start("checkout"))
	assert.Equal(t, 1, timer.Pending())

	now = now.Add(2500 * time.Millisecond)
	ev, err := timer.End("checkout")
	require.NoError(t, err)
	assert.Equal(t, "checkout", ev.Key)
	assert.Equal(t, 1, ev.Count)
	require.NotNil(t, ev.Dur)
	assert.InDelta(t, 2.5, *ev.Dur, 1e-9)
	assert.Equal(t, 0, timer.Pending())

	_, err = timer.End("checkout")
	assert.ErrorIs(t, err, ErrUnknownEvent)

	assert.ErrorIs(t, timer.Start(""), ErrEmptyKey)
}

func TestPush(t *testing.T) {
	token := PushToken("Android", "tok-123", PushDevelopment)
	assert.Equal(t, request.Payload{"token_session": 1, "test_mode": 1, "android_token": "tok-123"}, token)

	assert.Equal(t, PushOpenKey, PushOpen("m1").Key)
	assert.Equal(t, map[string]any{"i": "m1"}, PushOpen("m1").Segmentation)
	assert.Equal(t, map[string]any{"i": "m2", "b": 1}, PushAction("m2", 1).Segmentation)
	assert.Equal(t, PushSentKey, PushSent("m3").Key)
}
