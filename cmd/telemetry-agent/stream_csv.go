package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	"github.com/goccy/go-json"

	"github.com/example/telemetry-sdk/client"
)

const csvFields = 5

// ReplayCSV records every event row of the CSV file at filePath, pausing
// delay between rows. It returns the number of rows recorded.
// CSV format: key,count,sum,dur,segmentation (segmentation is a JSON object)
func (a *Agent) ReplayCSV(ctx context.Context, filePath string, delay time.Duration) (int, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	level.Info(a.logger).Log("msg", "starting CSV replay", "path", filePath, "delay", delay)

	recordCount, line := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return recordCount, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return recordCount, err
		}
		line++

		// Skip header row
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "key") {
			continue
		}

		ev, err := parseEventRecord(rec)
		if err != nil {
			level.Warn(a.logger).Log("msg", "skipping CSV row", "line", line, "err", err)
			continue
		}
		if err := a.sdk.RecordEvent(ctx, ev); err != nil {
			level.Warn(a.logger).Log("msg", "event rejected", "line", line, "key", ev.Key, "err", err)
			continue
		}
		recordCount++

		// Log every 10th record to show activity without flooding logs
		if recordCount%10 == 0 {
			level.Info(a.logger).Log("msg", "replayed events", "count", recordCount, "pending", a.sdk.Pending())
		}

		select {
		case <-ctx.Done():
			return recordCount, ctx.Err()
		case <-time.After(delay):
		}
	}

	level.Info(a.logger).Log("msg", "CSV replay complete", "events", recordCount)
	return recordCount, nil
}

// parseEventRecord turns one CSV row into an event. Empty count defaults to
// one; empty sum, dur and segmentation are omitted.
func parseEventRecord(rec []string) (client.Event, error) {
	if len(rec) < csvFields {
		return client.Event{}, fmt.Errorf("incomplete record (only %d fields)", len(rec))
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}

	ev := client.Event{Key: rec[0], Count: 1}
	if rec[1] != "" {
		n, err := strconv.Atoi(rec[1])
		if err != nil {
			return ev, fmt.Errorf("invalid count %q: %w", rec[1], err)
		}
		ev.Count = n
	}
	for _, f := range []struct {
		raw string
		dst **float64
	}{{rec[2], &ev.Sum}, {rec[3], &ev.Dur}} {
		if f.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return ev, fmt.Errorf("invalid number %q: %w", f.raw, err)
		}
		*f.dst = &v
	}
	if rec[4] != "" {
		if err := json.Unmarshal([]byte(rec[4]), &ev.Segmentation); err != nil {
			return ev, fmt.Errorf("invalid segmentation: %w", err)
		}
	}
	return ev, nil
}
