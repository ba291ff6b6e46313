package main

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/goccy/go-json"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/example/telemetry-sdk/internal/influx"
	"github.com/example/telemetry-sdk/internal/metrics"
	"github.com/example/telemetry-sdk/internal/request"
	"github.com/example/telemetry-sdk/internal/security"
	"github.com/example/telemetry-sdk/internal/transport"
)

const (
	serviceName    = "collector"
	maxBodyBytes   = 1 << 20
	defaultLimit   = 100
	maxLimit       = 1000
	resultSuccess  = "Success"
	paramDeviceID  = "device_id"
	paramAppKey    = "app_key"
	paramTimestamp = "timestamp"
)

// RequestStore persists received SDK requests.
type RequestStore interface {
	WriteRequest(ctx context.Context, record influx.RequestRecord) error
	QueryRecentRequests(ctx context.Context, deviceID string, limit int) ([]influx.RequestRecord, error)
	DeleteRequests(ctx context.Context, deviceID string) error
}

type CollectorService struct {
	store    RequestStore
	verifier *security.Verifier
	logger   log.Logger
	now      func() time.Time
}

func NewCollectorService(store RequestStore, verifier *security.Verifier, logger log.Logger) *CollectorService {
	return &CollectorService{store: store, verifier: verifier, logger: logger, now: time.Now}
}

// Routes wires the ingest, query, health, metrics and documentation endpoints.
func (cs *CollectorService) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(request.Endpoint, metrics.HTTPMiddleware(serviceName, cs.handleIngest))
	mux.Handle("/api/v1/requests", security.APIKeyMiddleware(metrics.HTTPMiddleware(serviceName, cs.handleRequests)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", metrics.MetricsHandler())
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)
	return mux
}

// @Summary Ingest an SDK request
// @Description Accepts one request from the telemetry SDK as a query string (GET) or form body (POST). When a salt is configured the trailing checksum256 parameter must match.
// @Tags ingest
// @Param app_key query string true "Application key"
// @Param device_id query string true "Device identifier"
// @Param timestamp query int false "Client time in milliseconds"
// @Param checksum256 query string false "sha256 of the encoded parameters and the salt"
// @Produce json
// @Success 200 {object} ResultResponse
// @Failure 400 {object} ResultResponse
// @Failure 401 {object} ResultResponse
// @Failure 403 {object} ResultResponse
// @Failure 500 {object} ResultResponse
// @Router /i [get]
// @Router /i [post]
func (cs *CollectorService) handleIngest(w http.ResponseWriter, r *http.Request) {
	var raw string
	switch r.Method {
	case http.MethodGet:
		raw = r.URL.RawQuery
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeResult(w, http.StatusBadRequest, "Unreadable body")
			return
		}
		raw = string(body)
	default:
		writeResult(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := cs.verifier.VerifyChecksum(raw); err != nil {
		level.Warn(cs.logger).Log("msg", "rejected request", "reason", err, "remote", r.RemoteAddr)
		writeResult(w, http.StatusForbidden, "Request does not match checksum")
		return
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		writeResult(w, http.StatusBadRequest, "Malformed parameters")
		return
	}
	params := make(map[string]string, len(values))
	for k := range values {
		if k != transport.ChecksumParam {
			params[k] = values.Get(k)
		}
	}

	if err := cs.verifier.VerifyAppKey(params[paramAppKey]); err != nil {
		writeResult(w, http.StatusUnauthorized, "App does not exist")
		return
	}
	if params[paramDeviceID] == "" {
		writeResult(w, http.StatusBadRequest, "Missing parameter "+paramDeviceID)
		return
	}

	record := influx.RequestRecord{
		DeviceID: params[paramDeviceID],
		AppKey:   params[paramAppKey],
		Method:   r.Method,
		Kind:     RequestKind(params),
		Params:   params,
		Time:     cs.requestTime(params),
	}
	if err := cs.store.WriteRequest(r.Context(), record); err != nil {
		level.Error(cs.logger).Log("msg", "failed to store request", "device_id", record.DeviceID, "err", err)
		metrics.RecordDatabaseOperation(serviceName, "write", "error")
		writeResult(w, http.StatusInternalServerError, "Storage unavailable")
		return
	}
	metrics.RecordDatabaseOperation(serviceName, "write", "success")
	level.Debug(cs.logger).Log("msg", "request stored", "device_id", record.DeviceID, "kind", record.Kind, "method", record.Method)
	writeResult(w, http.StatusOK, resultSuccess)
}

// @Summary List received requests
// @Description Returns the most recent requests of the last 24 hours, newest first. DELETE removes stored requests.
// @Tags requests
// @Security ApiKeyAuth
// @Param device_id query string false "Restrict to one device"
// @Param limit query int false "Maximum number of requests (default: 100, max: 1000)"
// @Produce json
// @Success 200 {object} RequestsResponse
// @Failure 400 {object} ResultResponse
// @Failure 500 {object} ResultResponse
// @Router /api/v1/requests [get]
// @Router /api/v1/requests [delete]
func (cs *CollectorService) handleRequests(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get(paramDeviceID)
	switch r.Method {
	case http.MethodGet:
		limit := defaultLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				writeResult(w, http.StatusBadRequest, "Invalid limit")
				return
			}
			limit = min(n, maxLimit)
		}
		records, err := cs.store.QueryRecentRequests(r.Context(), deviceID, limit)
		if err != nil {
			level.Error(cs.logger).Log("msg", "query failed", "err", err)
			metrics.RecordDatabaseOperation(serviceName, "query", "error")
			writeResult(w, http.StatusInternalServerError, "Query failed")
			return
		}
		metrics.RecordDatabaseOperation(serviceName, "query", "success")
		writeJSON(w, http.StatusOK, RequestsResponse{Count: len(records), Requests: records})
	case http.MethodDelete:
		if err := cs.store.DeleteRequests(r.Context(), deviceID); err != nil {
			level.Error(cs.logger).Log("msg", "delete failed", "device_id", deviceID, "err", err)
			metrics.RecordDatabaseOperation(serviceName, "delete", "error")
			writeResult(w, http.StatusInternalServerError, "Delete failed")
			return
		}
		metrics.RecordDatabaseOperation(serviceName, "delete", "success")
		level.Info(cs.logger).Log("msg", "requests deleted", "device_id", deviceID)
		writeResult(w, http.StatusOK, resultSuccess)
	default:
		writeResult(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// requestTime uses the client timestamp (ms) when present and sane.
func (cs *CollectorService) requestTime(params map[string]string) time.Time {
	if ms, err := strconv.ParseInt(params[paramTimestamp], 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC()
	}
	return cs.now().UTC()
}

// RequestKind names what an SDK request carries, for tagging.
func RequestKind(params map[string]string) string {
	has := func(k string) bool { _, ok := params[k]; return ok }
	switch {
	case has("begin_session"):
		return "session_begin"
	case has("end_session"):
		return "session_end"
	case has("session_duration"):
		return "session_update"
	case has("crash"):
		return "crash"
	case has("events"):
		return "events"
	case has("user_details"):
		return "user_details"
	case has("old_device_id"):
		return "device_change"
	case has("token_session"):
		return "push_token"
	case has("location"), has("country_code"), has("city"):
		return "location"
	default:
		return "other"
	}
}

func writeResult(w http.ResponseWriter, status int, result string) {
	writeJSON(w, status, ResultResponse{Result: result})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
