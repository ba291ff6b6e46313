package queue

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// schemaVersion is bumped whenever the persisted layout changes.
const schemaVersion = 1

// ErrMalformedPersisted reports a persisted queue that could not be decoded
// or carries an unknown schema version.
var ErrMalformedPersisted = errors.New("malformed persisted queue")

type envelope struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Encode serializes entries into the versioned persisted form.
func Encode(entries []Entry) (string, error) {
	if entries == nil {
		entries = []Entry{}
	}
	raw, err := json.Marshal(envelope{Version: schemaVersion, Entries: entries})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Decode parses the persisted form. An empty string decodes to no entries.
func Decode(raw string) ([]Entry, error) {
	if len(bytes.TrimSpace([]byte(raw))) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPersisted, err)
	}
	if env.Version != schemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrMalformedPersisted, env.Version)
	}
	for i, e := range env.Entries {
		if e.ID == "" || e.Endpoint == "" {
			return nil, fmt.Errorf("%w: entry %d is missing id or endpoint", ErrMalformedPersisted, i)
		}
	}
	return env.Entries, nil
}
