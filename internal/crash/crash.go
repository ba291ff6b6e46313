// Package crash builds crash report payloads.
package crash

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/telemetry-sdk/internal/device"
	"github.com/example/telemetry-sdk/internal/request"
)

// Report describes one crash or handled error.
type Report struct {
	// Name is a short title. When empty the first line of Error is used.
	Name string
	// Error is the error text or stack trace.
	Error    string
	NonFatal bool
	Logs     string
	Custom   map[string]string
	// Background is true when the app was in the background at crash time.
	Background bool
}

// FromError builds a report for err with the current goroutine's stack.
func FromError(err error, nonFatal bool) Report {
	return Report{
		Name:     fmt.Sprintf("%T", err),
		Error:    err.Error() + "\n\n" + string(debug.Stack()),
		NonFatal: nonFatal,
	}
}

// Payload renders r as the collector's crash field. started is the process
// start time used for _run.
func Payload(r Report, props device.Properties, started, now time.Time) request.Payload {
	crash := map[string]any{}
	if props != nil {
		m := props.Metrics()
		for _, k := range []string{device.KeyOS, device.KeyOSVersion, device.KeyDevice, device.KeyResolution, device.KeyAppVersion} {
			if v, ok := m[k]; ok {
				crash[k] = v
			}
		}
	}

	name := r.Name
	if name == "" {
		name, _, _ = strings.Cut(strings.TrimSpace(r.Error), "\n")
	}
	crash["_name"] = name
	crash["_error"] = r.Error
	crash["_nonfatal"] = r.NonFatal
	crash["_background"] = r.Background
	if r.Logs != "" {
		crash["_logs"] = r.Logs
	}
	run := int64(0)
	if !started.IsZero() && now.After(started) {
		run = int64(now.Sub(started) / time.Second)
	}
	crash["_run"] = run
	if len(r.Custom) > 0 {
		crash["_custom"] = r.Custom
	}
	return request.Payload{"crash": crash}
}
