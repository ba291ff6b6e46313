package influx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Measurement holds one point per collector request.
const Measurement = "sdk_request"

// RequestRecord is one request received by the collector.
type RequestRecord struct {
	DeviceID string            `json:"device_id"`
	AppKey   string            `json:"app_key"`
	Method   string            `json:"method"`
	Kind     string            `json:"kind"`
	Params   map[string]string `json:"params"`
	Time     time.Time         `json:"time"`
}

type InfluxWriter struct {
	client influxdb2.Client
	org    string
	bucket string
}

func NewInfluxWriter(url, token, org, bucket string) *InfluxWriter {
	client := influxdb2.NewClient(url, token)
	return &InfluxWriter{client: client, org: org, bucket: bucket}
}

// WriteRequest stores record as a point tagged by device, app, method and
// kind. The parameters are kept as a JSON string field.
func (iw *InfluxWriter) WriteRequest(ctx context.Context, record RequestRecord) error {
	raw, err := json.Marshal(record.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	writeAPI := iw.client.WriteAPIBlocking(iw.org, iw.bucket)
	p := influxdb2.NewPoint(
		Measurement,
		map[string]string{
			"device_id": record.DeviceID,
			"app_key":   record.AppKey,
			"method":    record.Method,
			"kind":      record.Kind,
		},
		map[string]interface{}{
			"params":      string(raw),
			"param_count": len(record.Params),
		},
		record.Time,
	)
	return writeAPI.WritePoint(ctx, p)
}

func (iw *InfluxWriter) Close() {
	iw.client.Close()
}

// QueryRecentRequests fetches the most recent requests of the last 24h,
// optionally restricted to one device.
func (iw *InfluxWriter) QueryRecentRequests(ctx context.Context, deviceID string, limit int) ([]RequestRecord, error) {
	queryAPI := iw.client.QueryAPI(iw.org)
	filter := fmt.Sprintf(`r._measurement == "%s" and r._field == "params"`, Measurement)
	if deviceID != "" {
		filter += fmt.Sprintf(` and r.device_id == "%s"`, escapeFlux(deviceID))
	}
	flux := fmt.Sprintf(`from(bucket: "%s") |> range(start: -24h) |> filter(fn: (r) => %s) |> group() |> sort(columns:["_time"], desc:true) |> limit(n:%d)`,
		iw.bucket, filter, limit)
	result, err := queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	return iw.parseQueryResults(result)
}

// DeleteRequests removes stored requests, all of them or those of one device.
func (iw *InfluxWriter) DeleteRequests(ctx context.Context, deviceID string) error {
	predicate := fmt.Sprintf(`_measurement="%s"`, Measurement)
	if deviceID != "" {
		predicate += fmt.Sprintf(` AND device_id="%s"`, escapeFlux(deviceID))
	}
	return iw.client.DeleteAPI().DeleteWithName(ctx, iw.org, iw.bucket, time.Unix(0, 0), time.Now(), predicate)
}

func escapeFlux(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// parseQueryResults is a helper function to parse query results into RequestRecord structs
func (iw *InfluxWriter) parseQueryResults(result *api.QueryTableResult) ([]RequestRecord, error) {
	records := []RequestRecord{}
	for result.Next() {
		rec := RequestRecord{Time: result.Record().Time()}
		rec.DeviceID = stringValue(result.Record().ValueByKey("device_id"))
		rec.AppKey = stringValue(result.Record().ValueByKey("app_key"))
		rec.Method = stringValue(result.Record().ValueByKey("method"))
		rec.Kind = stringValue(result.Record().ValueByKey("kind"))
		if raw := stringValue(result.Record().Value()); raw != "" {
			if err := json.Unmarshal([]byte(raw), &rec.Params); err != nil {
				return nil, fmt.Errorf("decoding params of %s: %w", rec.DeviceID, err)
			}
		}
		records = append(records, rec)
	}
	if result.Err() != nil {
		return nil, result.Err()
	}
	return records, nil
}

func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
