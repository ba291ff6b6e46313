package device

import (
	"os"
	"runtime"
	"strings"

	"github.com/goccy/go-json"
)

// Metric keys understood by the collector.
const (
	KeyOS         = "_os"
	KeyOSVersion  = "_os_version"
	KeyDevice     = "_device"
	KeyResolution = "_resolution"
	KeyAppVersion = "_app_version"
	KeyLocale     = "_locale"
	KeyCarrier    = "_carrier"
	KeyDensity    = "_density"
	KeyStore      = "_store"
)

// Properties describes the device for session metrics and crash reports.
type Properties interface {
	Metrics() map[string]string
}

// Static is a fixed property set, typically filled in by the embedding app.
type Static struct {
	OS         string
	OSVersion  string
	Device     string
	Resolution string
	AppVersion string
	Locale     string
	Carrier    string
	Density    string
	Store      string
}

// Metrics returns the non-empty properties keyed by their metric names.
func (s Static) Metrics() map[string]string {
	out := make(map[string]string, 9)
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put(KeyOS, s.OS)
	put(KeyOSVersion, s.OSVersion)
	put(KeyDevice, s.Device)
	put(KeyResolution, s.Resolution)
	put(KeyAppVersion, s.AppVersion)
	put(KeyLocale, s.Locale)
	put(KeyCarrier, s.Carrier)
	put(KeyDensity, s.Density)
	put(KeyStore, s.Store)
	return out
}

// Host derives what it can from the running process. appVersion is supplied
// by the caller since the process cannot know it.
func Host(appVersion string) Static {
	device, _ := os.Hostname()
	return Static{
		OS:         runtime.GOOS,
		OSVersion:  runtime.GOARCH,
		Device:     device,
		AppVersion: appVersion,
		Locale:     locale(),
	}
}

func locale() string {
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(env); v != "" && v != "C" && v != "POSIX" {
			// en_US.UTF-8 -> en_US
			if i := strings.IndexByte(v, '.'); i > 0 {
				v = v[:i]
			}
			return v
		}
	}
	return ""
}

// MetricsJSON encodes the metrics of p as the JSON object sent with
// begin_session.
func MetricsJSON(p Properties) string {
	raw, err := json.Marshal(p.Metrics())
	if err != nil {
		return "{}"
	}
	return string(raw)
}
