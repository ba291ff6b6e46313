package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/telemetry-sdk/client"
	"github.com/example/telemetry-sdk/internal/scheduler"
	"github.com/example/telemetry-sdk/internal/storage"
	"github.com/example/telemetry-sdk/internal/testutils"
	"github.com/example/telemetry-sdk/internal/testutils/mocks"
	"github.com/example/telemetry-sdk/internal/transport"
)

func newTestAgent(t *testing.T) (*Agent, *client.Client, *mocks.MockTransport) {
	t.Helper()
	tr := mocks.NewMockTransport()
	c, err := client.New(context.Background(), storage.NewMemoryStore(),
		client.WithTransport(tr),
		client.WithLogger(testutils.TestLogger("client", true)),
		client.WithHeartbeat(0),
		client.WithScheduler(scheduler.Config{InitialDelay: time.Hour, Interval: time.Hour, MinGap: time.Hour}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.Init(context.Background(), "https://collector.example.com", "app", "dev-1"))
	return NewAgent(c, testutils.TestLogger(serviceName, true)), c, tr
}

func TestHealthHandler(t *testing.T) {
	agent, _, _ := newTestAgent(t)
	rec := httptest.NewRecorder()
	agent.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, true, resp["initialized"])
	assert.Equal(t, "dev-1", resp["device_id"])
}

func TestLifecycleHandler(t *testing.T) {
	tests := []struct {
		name   string
		method string
		state  string
		status int
	}{
		{"background", http.MethodPost, "background", http.StatusOK},
		{"active", http.MethodPost, "ACTIVE", http.StatusOK},
		{"unknown state", http.MethodPost, "sleeping", http.StatusBadRequest},
		{"wrong method", http.MethodGet, "active", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent, _, _ := newTestAgent(t)
			rec := httptest.NewRecorder()
			agent.Routes().ServeHTTP(rec, httptest.NewRequest(tt.method, "/lifecycle?state="+tt.state, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestLifecycleEndsAndRestartsSession(t *testing.T) {
	agent, c, tr := newTestAgent(t)
	require.NoError(t, c.Start(context.Background()))
	mux := agent.Routes()

	for _, state := range []string{"background", "active"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/lifecycle?state="+state, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	sent := tr.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "1", sent[0].Params["begin_session"])
	assert.Equal(t, "1", sent[1].Params["end_session"])
	assert.Equal(t, "1", sent[2].Params["begin_session"])
}

func TestEventsHandler(t *testing.T) {
	agent, _, tr := newTestAgent(t)
	mux := agent.Routes()

	body := `[{"key":"purchase","count":2,"sum":9.5},{"key":"open"}]`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Params["events"], `"key":"purchase"`)
	assert.Contains(t, sent[0].Params["events"], `"key":"open","count":1`)

	for _, bad := range []string{`not json`, `[]`, `[{"key":" "}]`} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(bad)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestFlushHandler(t *testing.T) {
	agent, c, tr := newTestAgent(t)
	mux := agent.Routes()

	tr.SetError(fmt.Errorf("%w: offline", transport.ErrTransport))
	require.NoError(t, c.RecordEvent(context.Background(), client.Event{Key: "queued"}))
	require.Equal(t, 1, c.Pending())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/flush", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, 1, c.Pending())

	tr.SetError(nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/flush", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["sent"])
	assert.Equal(t, float64(0), resp["pending"])
}
