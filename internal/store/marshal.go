package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/scriptdelta/internal/ir"
)

// marshalPayload converts v to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so identical records store identical bytes.
func marshalPayload(v any) (string, error) {
	generic, err := ir.ToCanonicalValue(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	data, err := ir.MarshalCanonical(generic)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses JSON TEXT into v.
func unmarshalPayload(data string, v any) error {
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
