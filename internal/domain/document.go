package domain

import (
	"encoding/json"
	"strconv"
)

// Document is a semi-structured JSON object as produced by an analysis provider.
type Document map[string]any

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

// String returns the value under key when it is a non-empty string.
func (d Document) String(key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok && s != ""
}

// Number returns the value under key when it is numeric.
func (d Document) Number(key string) (float64, bool) {
	return toFloat(d[key])
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Document(t).Clone())
	case Document:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// asDocument converts a decoded JSON value to a Document. Nil and non-object
// values yield nil.
func asDocument(v any) Document {
	switch t := v.(type) {
	case Document:
		return t
	case map[string]any:
		return Document(t)
	default:
		return nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}
