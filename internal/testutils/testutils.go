package testutils

import (
	"io"
	"os"
	"time"

	"github.com/go-kit/log"

	"github.com/example/telemetry-sdk/internal/logging"
)

// TestLogger creates a logger for testing that can be silenced
func TestLogger(component string, silent bool) log.Logger {
	if silent {
		return logging.New(io.Discard, component, false)
	}
	return logging.New(os.Stdout, component, true)
}

// FixedClock returns a clock that always reports t
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// SampleEvents returns event payloads used across tests
func SampleEvents() []map[string]any {
	return []map[string]any{
		{"key": "app_open", "count": 1},
		{"key": "purchase", "count": 1, "sum": 9.99, "segmentation": map[string]any{"sku": "pro-monthly"}},
		{"key": "level_up", "count": 3, "segmentation": map[string]any{"level": 7}},
	}
}

// SetupTestEnvironment sets up common environment variables for testing
func SetupTestEnvironment() {
	os.Setenv("COLLECTOR_URL", "http://test-collector:8080")
	os.Setenv("APP_KEY", "test-app-key")
	os.Setenv("STORAGE_BACKEND", "memory")
	os.Setenv("DRAIN_INTERVAL", "5s")
	os.Setenv("HTTP_METHOD", "POST")
}

// CleanupTestEnvironment cleans up test environment variables
func CleanupTestEnvironment() {
	os.Unsetenv("COLLECTOR_URL")
	os.Unsetenv("APP_KEY")
	os.Unsetenv("STORAGE_BACKEND")
	os.Unsetenv("DRAIN_INTERVAL")
	os.Unsetenv("HTTP_METHOD")
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}
	return condition()
}
