package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/telemetry-sdk/internal/testutils"
)

func TestReplayCSV(t *testing.T) {
	agent, _, tr := newTestAgent(t)
	path := testutils.CreateTestEventsCSV(t, t.TempDir())

	n, err := agent.ReplayCSV(context.Background(), path, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	sent := tr.Sent()
	require.Len(t, sent, 3)
	assert.Contains(t, sent[0].Params["events"], `"key":"app_open"`)
	assert.Contains(t, sent[1].Params["events"], `"sum":9.99`)
	assert.Contains(t, sent[1].Params["events"], `"segmentation":{"sku":"pro-monthly"}`)
	assert.Contains(t, sent[2].Params["events"], `"dur":42.5`)
}

func TestReplayCSVSkipsBadRows(t *testing.T) {
	agent, _, tr := newTestAgent(t)
	path := testutils.TempFile(t, t.TempDir(), "events-*.csv", "key,count,sum,dur,segmentation\n"+
		"ok,1,,,\n"+
		"short,1\n"+
		"badcount,x,,,\n"+
		"badseg,1,,,not-json\n"+
		" ,1,,,\n"+
		"also_ok,,,,\n")

	n, err := agent.ReplayCSV(context.Background(), path, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, tr.Sent(), 2)
}

func TestReplayCSVMissingFile(t *testing.T) {
	agent, _, _ := newTestAgent(t)
	_, err := agent.ReplayCSV(context.Background(), "/nonexistent/events.csv", 0)
	assert.Error(t, err)
}

func TestReplayCSVStopsOnCancel(t *testing.T) {
	agent, _, _ := newTestAgent(t)
	path := testutils.CreateTestEventsCSV(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := agent.ReplayCSV(ctx, path, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestParseEventRecord(t *testing.T) {
	ev, err := parseEventRecord([]string{" purchase ", "3", "1.5", "", `{"tier":"gold"}`})
	require.NoError(t, err)
	assert.Equal(t, "purchase", ev.Key)
	assert.Equal(t, 3, ev.Count)
	require.NotNil(t, ev.Sum)
	assert.Equal(t, 1.5, *ev.Sum)
	assert.Nil(t, ev.Dur)
	assert.Equal(t, "gold", ev.Segmentation["tier"])

	_, err = parseEventRecord([]string{"a", "1"})
	assert.Error(t, err)
}
