// Package request turns producer payloads into the flat, decorated parameter
// sets sent to the collector, and decides how each one travels.
package request

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	// DefaultSDKName and DefaultSDKVersion identify this SDK on every request.
	DefaultSDKName    = "telemetry-sdk-go"
	DefaultSDKVersion = "1.0.0"

	// Endpoint is the collector ingestion path.
	Endpoint = "/i"

	// MaxGetLength is the longest encoded parameter string sent as a GET
	// query before the request is switched to POST.
	MaxGetLength = 2000
)

// Method is the HTTP verb used to deliver a request.
type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

// ParseMethod accepts "GET"/"POST" in any case and defaults to GET.
func ParseMethod(s string) Method {
	if strings.EqualFold(s, string(MethodPost)) {
		return MethodPost
	}
	return MethodGet
}

// Payload is what producers hand in: arbitrary values keyed by field name.
type Payload map[string]any

// Params is the flat wire form: one string per field.
type Params map[string]string

// Clone returns a copy that can be modified independently.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Values converts to url.Values.
func (p Params) Values() url.Values {
	v := make(url.Values, len(p))
	for k, s := range p {
		v.Set(k, s)
	}
	return v
}

// Encode is the canonical form: keys sorted, URL-encoded.
func (p Params) Encode() string {
	return p.Values().Encode()
}

// Keys returns the field names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flatten converts a payload into Params. Strings, booleans and numbers are
// formatted directly; maps, slices and structs are JSON-encoded, which is how
// the collector expects fields like events, metrics and user_details.
func Flatten(payload Payload) (Params, error) {
	params := make(Params, len(payload))
	for key, value := range payload {
		s, err := formatValue(value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		params[key] = s
	}
	return params, nil
}

func formatValue(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case json.Number:
		return v.String(), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}

// Builder decorates parameters with identification and time fields.
type Builder struct {
	SDKName    string
	SDKVersion string
	Now        func() time.Time
}

// NewBuilder returns a Builder using the wall clock and the default SDK identity.
func NewBuilder() *Builder {
	return &Builder{SDKName: DefaultSDKName, SDKVersion: DefaultSDKVersion, Now: time.Now}
}

// Decorate returns a copy of params with device id, app key, timestamp (ms),
// hour (0-23), dow (0-6, Sunday is 0), tz (offset in minutes), sdk_name and
// sdk_version set. The input is not modified.
func (b *Builder) Decorate(params Params, deviceID, appKey string) Params {
	now := b.now()
	out := params.Clone()
	_, offset := now.Zone()

	out["device_id"] = deviceID
	out["app_key"] = appKey
	out["timestamp"] = strconv.FormatInt(now.UnixMilli(), 10)
	out["hour"] = strconv.Itoa(now.Hour())
	out["dow"] = strconv.Itoa(int(now.Weekday()))
	out["tz"] = strconv.Itoa(offset / 60)
	out["sdk_name"] = b.SDKName
	out["sdk_version"] = b.SDKVersion
	return out
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

// Classify picks the delivery method for an encoded parameter string: POST
// when it is longer than MaxGetLength or when forced, else the default.
func Classify(encoded string, defaultMethod Method, forced bool) Method {
	if forced || len(encoded) > MaxGetLength {
		return MethodPost
	}
	return defaultMethod
}
