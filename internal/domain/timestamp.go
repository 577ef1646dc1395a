package domain

import (
	"encoding/json"
	"time"
)

// Older records wrote naive UTC timestamps without an offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is an iteration creation time. Values that cannot be parsed are
// kept verbatim so rewriting a payload never alters them.
type Timestamp struct {
	time.Time
	raw string
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func parseTimestamp(v any) Timestamp {
	s, ok := v.(string)
	if !ok || s == "" {
		return Timestamp{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t.UTC()}
		}
	}
	return Timestamp{raw: s}
}

func (t Timestamp) value() any {
	if t.raw != "" {
		return t.raw
	}
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.value())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = parseTimestamp(v)
	return nil
}
