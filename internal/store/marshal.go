package store

import (
	"fmt"
	"time"

	"github.com/roach88/relinq/internal/canon"
)

// marshalSnapshot converts a snapshot to canonical JSON TEXT for storage.
func marshalSnapshot(snap canon.Object) (string, error) {
	data, err := canon.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}

// unmarshalSnapshot parses stored snapshot TEXT. Snapshots are always
// objects.
func unmarshalSnapshot(data string) (canon.Object, error) {
	v, err := canon.Decode([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	obj, ok := v.(canon.Object)
	if !ok {
		return nil, fmt.Errorf("unmarshal snapshot: got %T, want object", v)
	}
	return obj, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at: %w", err)
	}
	return t, nil
}
