package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/telemetry-sdk/internal/request"
)

type captured struct {
	method      string
	query       url.Values
	body        string
	contentType string
}

func newCollector(t *testing.T, status int, seen chan<- captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen <- captured{
			method:      r.Method,
			query:       r.URL.Query(),
			body:        string(body),
			contentType: r.Header.Get("Content-Type"),
		}
		w.WriteHeader(status)
		w.Write([]byte(`{"result":"Success"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPTransportGet(t *testing.T) {
	seen := make(chan captured, 1)
	srv := newCollector(t, http.StatusOK, seen)
	tr := NewHTTPTransport(time.Second)

	resp, err := tr.Get(context.Background(), srv.URL+request.Endpoint, request.Params{"app_key": "k", "events": `[{"key":"a"}]`})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"result":"Success"}`, string(resp.Body))

	got := <-seen
	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "k", got.query.Get("app_key"))
	assert.Equal(t, `[{"key":"a"}]`, got.query.Get("events"))
	assert.Empty(t, got.body)
}

func TestHTTPTransportPost(t *testing.T) {
	seen := make(chan captured, 1)
	srv := newCollector(t, http.StatusOK, seen)
	tr := NewHTTPTransport(time.Second)

	_, err := tr.Post(context.Background(), srv.URL+request.Endpoint, request.Params{"device_id": "d1"})
	require.NoError(t, err)

	got := <-seen
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "application/x-www-form-urlencoded", got.contentType)
	assert.Equal(t, "device_id=d1", got.body)
	assert.Empty(t, got.query)
}

func TestHTTPTransportSigning(t *testing.T) {
	seen := make(chan captured, 1)
	srv := newCollector(t, http.StatusOK, seen)
	tr := NewHTTPTransport(time.Second, WithSalt("pepper"))
	params := request.Params{"app_key": "k", "device_id": "d"}

	_, err := tr.Get(context.Background(), srv.URL+request.Endpoint, params)
	require.NoError(t, err)

	got := <-seen
	assert.Equal(t, Checksum(params.Encode(), "pepper"), got.query.Get(ChecksumParam))
}

func TestHTTPTransportFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"server error", http.StatusInternalServerError},
		{"bad request", http.StatusBadRequest},
		{"redirect-less 3xx", http.StatusNotModified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make(chan captured, 1)
			srv := newCollector(t, tt.status, seen)
			tr := NewHTTPTransport(time.Second)

			_, err := tr.Get(context.Background(), srv.URL, request.Params{"a": "b"})
			assert.ErrorIs(t, err, ErrTransport)
		})
	}
}

func TestHTTPTransportUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	tr := NewHTTPTransport(200 * time.Millisecond)
	_, err := tr.Post(context.Background(), addr, request.Params{"a": "b"})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestHTTPTransportTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(20 * time.Millisecond)
	_, err := tr.Get(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestSendDispatchesByMethod(t *testing.T) {
	seen := make(chan captured, 2)
	srv := newCollector(t, http.StatusOK, seen)
	tr := NewHTTPTransport(time.Second)

	_, err := Send(context.Background(), tr, request.MethodPost, srv.URL, request.Params{"a": "1"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, (<-seen).method)

	_, err = Send(context.Background(), tr, request.MethodGet, srv.URL, request.Params{"a": "1"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, (<-seen).method)
}
