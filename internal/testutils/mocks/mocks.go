package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/telemetry-sdk/internal/influx"
	"github.com/example/telemetry-sdk/internal/request"
	"github.com/example/telemetry-sdk/internal/storage"
	"github.com/example/telemetry-sdk/internal/transport"
)

// SentRequest is one call observed by MockTransport.
type SentRequest struct {
	Method request.Method
	URL    string
	Params request.Params
}

// MockTransport is a mock implementation of transport.Transport for testing
type MockTransport struct {
	mu       sync.Mutex
	sent     []SentRequest
	attempts int
	err      error
	delay    time.Duration
	failFunc func(attempt int, params request.Params) error
}

// NewMockTransport creates a transport that accepts every request
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// SetError makes every attempt fail with err (nil restores success)
func (m *MockTransport) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay sets a delay for each attempt to simulate latency
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
}

// SetFailFunc decides per attempt (1-based) whether it fails
func (m *MockTransport) SetFailFunc(fn func(attempt int, params request.Params) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFunc = fn
}

// FailWhen fails every attempt whose params contain key=value
func (m *MockTransport) FailWhen(key, value string) {
	m.SetFailFunc(func(_ int, params request.Params) error {
		if params[key] == value {
			return fmt.Errorf("%w: simulated rejection of %s=%s", transport.ErrTransport, key, value)
		}
		return nil
	})
}

func (m *MockTransport) Get(ctx context.Context, url string, params request.Params) (*transport.Response, error) {
	return m.send(ctx, request.MethodGet, url, params)
}

func (m *MockTransport) Post(ctx context.Context, url string, params request.Params) (*transport.Response, error) {
	return m.send(ctx, request.MethodPost, url, params)
}

func (m *MockTransport) send(ctx context.Context, method request.Method, url string, params request.Params) (*transport.Response, error) {
	m.mu.Lock()
	m.attempts++
	attempt := m.attempts
	delay := m.delay
	err := m.err
	failFunc := m.failFunc
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", transport.ErrTransport, ctx.Err())
		}
	}
	if err == nil && failFunc != nil {
		err = failFunc(attempt, params)
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sent = append(m.sent, SentRequest{Method: method, URL: url, Params: params.Clone()})
	m.mu.Unlock()
	return &transport.Response{StatusCode: 200, Body: []byte(`{"result":"Success"}`)}, nil
}

// Sent returns the requests that succeeded, in order
func (m *MockTransport) Sent() []SentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentRequest, len(m.sent))
	copy(out, m.sent)
	return out
}

// Attempts returns the number of attempts, successful or not
func (m *MockTransport) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Reset clears all data and resets the mock
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.attempts = 0
	m.err = nil
	m.delay = 0
	m.failFunc = nil
}

// MockStore wraps an in-memory store and can be told to fail
type MockStore struct {
	*storage.MemoryStore

	mu      sync.Mutex
	getErr  error
	setErr  error
	setCall int
}

// NewMockStore creates a new mock store
func NewMockStore() *MockStore {
	return &MockStore{MemoryStore: storage.NewMemoryStore()}
}

// SetGetError makes every Get fail
func (m *MockStore) SetGetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// SetSetError makes every Set fail
func (m *MockStore) SetSetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setErr = err
}

// SetCalls returns the number of Set calls made
func (m *MockStore) SetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCall
}

func (m *MockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	err := m.getErr
	m.mu.Unlock()
	if err != nil {
		return "", err
	}
	return m.MemoryStore.Get(ctx, key)
}

func (m *MockStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	m.setCall++
	err := m.setErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.MemoryStore.Set(ctx, key, value)
}

// MockInfluxWriter records requests in memory instead of writing to InfluxDB
type MockInfluxWriter struct {
	mu      sync.Mutex
	records []influx.RequestRecord
	err     error
	closed  bool
}

// NewMockInfluxWriter creates an empty writer
func NewMockInfluxWriter() *MockInfluxWriter {
	return &MockInfluxWriter{}
}

// SetError makes every call fail with err
func (m *MockInfluxWriter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockInfluxWriter) WriteRequest(ctx context.Context, record influx.RequestRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

// QueryRecentRequests returns the newest records first
func (m *MockInfluxWriter) QueryRecentRequests(ctx context.Context, deviceID string, limit int) ([]influx.RequestRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []influx.RequestRecord{}
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if deviceID == "" || m.records[i].DeviceID == deviceID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *MockInfluxWriter) DeleteRequests(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	kept := m.records[:0]
	for _, r := range m.records {
		if deviceID != "" && r.DeviceID != deviceID {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}

// Records returns everything written, oldest first
func (m *MockInfluxWriter) Records() []influx.RequestRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]influx.RequestRecord, len(m.records))
	copy(out, m.records)
	return out
}

func (m *MockInfluxWriter) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}
