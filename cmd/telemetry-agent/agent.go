package main

import (
	"context"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/goccy/go-json"

	"github.com/example/telemetry-sdk/client"
	"github.com/example/telemetry-sdk/internal/metrics"
)

const serviceName = "telemetry-agent"

// sdk is the part of the client the agent's endpoints drive.
type sdk interface {
	RecordEvent(ctx context.Context, evs ...client.Event) error
	HandleStateChange(ctx context.Context, state client.AppState) error
	Flush(ctx context.Context) (int, error)
	Pending() int
	DeviceID() string
	IsInitialized() bool
}

// Agent exposes a running SDK client over a small local HTTP API so a host
// process can feed it lifecycle changes and events.
type Agent struct {
	sdk    sdk
	logger log.Logger
}

func NewAgent(s sdk, logger log.Logger) *Agent {
	return &Agent{sdk: s, logger: logger}
}

// Routes registers the agent endpoints.
func (a *Agent) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/lifecycle", metrics.HTTPMiddleware(serviceName, a.lifecycleHandler))
	mux.HandleFunc("/events", metrics.HTTPMiddleware(serviceName, a.eventsHandler))
	mux.HandleFunc("/flush", metrics.HTTPMiddleware(serviceName, a.flushHandler))
	mux.Handle("/metrics", metrics.MetricsHandler())
	return mux
}

func (a *Agent) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"initialized": a.sdk.IsInitialized(),
		"device_id":   a.sdk.DeviceID(),
		"pending":     a.sdk.Pending(),
	})
}

// lifecycleHandler forwards ?state=active|background|inactive to the client.
func (a *Agent) lifecycleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	state, err := client.ParseAppState(r.URL.Query().Get("state"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.sdk.HandleStateChange(r.Context(), state); err != nil {
		level.Error(a.logger).Log("msg", "state change failed", "state", state, "err", err)
		http.Error(w, "State change failed", http.StatusInternalServerError)
		return
	}
	level.Info(a.logger).Log("msg", "app state changed", "state", state)
	writeJSON(w, http.StatusOK, map[string]string{"state": string(state)})
}

// eventsHandler records a JSON array of events.
func (a *Agent) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var evs []client.Event
	if err := json.NewDecoder(r.Body).Decode(&evs); err != nil {
		level.Warn(a.logger).Log("msg", "invalid events body", "err", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(evs) == 0 {
		http.Error(w, "No events", http.StatusBadRequest)
		return
	}
	// Delivery failures are queued by the client; only invalid events fail here.
	if err := a.sdk.RecordEvent(r.Context(), evs...); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": len(evs), "pending": a.sdk.Pending()})
}

func (a *Agent) flushHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sent, err := a.sdk.Flush(r.Context())
	resp := map[string]any{"sent": sent, "pending": a.sdk.Pending()}
	if err != nil {
		level.Warn(a.logger).Log("msg", "flush stopped early", "sent", sent, "err", err)
		resp["error"] = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
