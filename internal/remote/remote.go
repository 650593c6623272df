// Package remote defines the document backend the sync workers push to.
package remote

import (
	"context"
	"encoding/json"
	"maps"
	"strconv"
	"time"
)

// Sentinel is a placeholder field value the backend resolves at write time.
type Sentinel string

// ServerTimestamp is replaced by the backend's clock when a document is written.
const ServerTimestamp Sentinel = "__server_timestamp__"

// Document is a stored remote document.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// SetOptions controls how Set combines fields with an existing document.
type SetOptions struct {
	// Merge keeps fields of the existing document that are not being written.
	Merge bool
}

// SetOp is one write of a batch.
type SetOp struct {
	Collection string         `json:"collection" validate:"required"`
	ID         string         `json:"id" validate:"required"`
	Fields     map[string]any `json:"fields" validate:"required"`
	Merge      bool           `json:"merge"`
}

// Backend is the remote document store.
type Backend interface {
	// Get returns an error of KindNotFound if the document does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)
	Set(ctx context.Context, collection, id string, fields map[string]any, opts SetOptions) error
	// BatchCommit applies every op atomically: all of them or none.
	BatchCommit(ctx context.Context, ops []SetOp) error
}

// ResolveSentinels returns a copy of fields with sentinels replaced.
// Values arriving over JSON are plain strings and are matched too.
func ResolveSentinels(fields map[string]any, now time.Time) map[string]any {
	out := maps.Clone(fields)
	if out == nil {
		out = map[string]any{}
	}
	for k, v := range out {
		switch val := v.(type) {
		case Sentinel:
			if val == ServerTimestamp {
				out[k] = now.UTC().Format(time.RFC3339Nano)
			}
		case string:
			if val == string(ServerTimestamp) {
				out[k] = now.UTC().Format(time.RFC3339Nano)
			}
		}
	}
	return out
}

// MergeFields combines existing and incoming according to opts.
func MergeFields(existing, incoming map[string]any, opts SetOptions) map[string]any {
	if !opts.Merge || existing == nil {
		return maps.Clone(incoming)
	}
	out := maps.Clone(existing)
	maps.Copy(out, incoming)
	return out
}

// String returns the string field key, or "".
func (d *Document) String(key string) string {
	s, _ := d.Fields[key].(string)
	return s
}

// Int64 returns the numeric field key, accepting every shape JSON decoding
// can produce.
func (d *Document) Int64(key string) (int64, bool) {
	switch v := d.Fields[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Strings returns the string list field key.
func (d *Document) Strings(key string) []string {
	switch v := d.Fields[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Time returns a timestamp field stored as RFC3339 text or unix milliseconds.
func (d *Document) Time(key string) (time.Time, bool) {
	if s, ok := d.Fields[key].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, s)
		return t, err == nil
	}
	if ms, ok := d.Int64(key); ok {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}
