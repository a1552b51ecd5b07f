package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// State is the canonical flat representation of an entity. It is what audit
// entries, exports, and saved snapshots carry, and it round-trips exactly
// through NodeFromState / ConnectionFromState.
type State map[string]any

// ToState converts n to its canonical state.
func (n Node) ToState() State {
	return State{
		"id":      n.ID,
		"content": n.Content,
		"summary": n.Summary,
		"position": map[string]any{
			"x": n.Position.X,
			"y": n.Position.Y,
		},
		"color":      n.Color,
		"size":       n.Size,
		"tags":       append([]string{}, n.Tags...),
		"confidence": n.Confidence,
		"evidence":   append([]string{}, n.Evidence...),
		"created_at": FormatTime(n.CreatedAt),
		"updated_at": FormatTime(n.UpdatedAt),
		"version":    n.Version,
		"is_deleted": n.IsDeleted,
	}
}

// ToState converts c to its canonical state.
func (c Connection) ToState() State {
	return State{
		"id":          c.ID,
		"source_id":   c.SourceID,
		"target_id":   c.TargetID,
		"conn_type":   string(c.ConnType),
		"description": c.Description,
		"strength":    c.Strength,
		"created_at":  FormatTime(c.CreatedAt),
		"updated_at":  FormatTime(c.UpdatedAt),
		"version":     c.Version,
		"is_deleted":  c.IsDeleted,
	}
}

// NodeFromState rebuilds a Node from a state map. Missing or mistyped
// fields fall back to defaults; a missing id gets a fresh one, so the node
// cannot be referenced by any imported connection.
func NodeFromState(s State) Node {
	pos, _ := s["position"].(map[string]any)
	return Node{
		ID:      toString(s["id"], uuid.NewString()),
		Content: toString(s["content"], ""),
		Summary: toString(s["summary"], ""),
		Position: Position{
			X: toFloat(pos["x"], 0),
			Y: toFloat(pos["y"], 0),
		},
		Color:      toString(s["color"], DefaultColor),
		Size:       toFloat(s["size"], DefaultSize),
		Tags:       toStringList(s["tags"]),
		Confidence: toFloat(s["confidence"], DefaultConfidence),
		Evidence:   toStringList(s["evidence"]),
		CreatedAt:  toTime(s["created_at"]),
		UpdatedAt:  toTime(s["updated_at"]),
		Version:    toInt(s["version"], 1),
		IsDeleted:  toBool(s["is_deleted"], false),
	}
}

// ConnectionFromState rebuilds a Connection from a state map. An unknown
// conn_type degrades to DefaultConnType.
func ConnectionFromState(s State) Connection {
	ct := ConnType(toString(s["conn_type"], string(DefaultConnType)))
	if !ct.Valid() {
		ct = DefaultConnType
	}
	return Connection{
		ID:          toString(s["id"], uuid.NewString()),
		SourceID:    toString(s["source_id"], ""),
		TargetID:    toString(s["target_id"], ""),
		ConnType:    ct,
		Description: toString(s["description"], ""),
		Strength:    toFloat(s["strength"], DefaultStrength),
		CreatedAt:   toTime(s["created_at"]),
		UpdatedAt:   toTime(s["updated_at"]),
		Version:     toInt(s["version"], 1),
		IsDeleted:   toBool(s["is_deleted"], false),
	}
}

// EncodeState serializes s to JSON TEXT for storage.
// HTML escaping is disabled and keys are sorted, so equal states encode to
// identical text.
func EncodeState(s State) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// DecodeState parses JSON TEXT produced by EncodeState.
// Empty input yields a nil state.
func DecodeState(data string) (State, error) {
	if data == "" {
		return nil, nil
	}
	var s State
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return s, nil
}

// EncodeList serializes a string list column.
func EncodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// DecodeList parses a string list column. Malformed text yields an empty
// list rather than an error so one bad row cannot hide the rest.
func DecodeList(data string) []string {
	var raw []any
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return []string{}
	}
	return toStringList(raw)
}

func toString(v any, def string) string {
	switch val := v.(type) {
	case nil:
		return def
	case string:
		return norm.NFC.String(val)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// toFloat coerces v to a finite float64, falling back to def.
func toFloat(v any, def float64) float64 {
	f, ok := parseFloat(v)
	if !ok {
		return def
	}
	return finiteOr(f, def)
}

func parseFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f, true
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toInt(v any, def int64) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			return i
		}
	}
	return def
}

func toBool(v any, def bool) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case int64:
		return val != 0
	case int:
		return val != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no", "":
			return false
		}
	}
	return def
}

func toStringList(v any) []string {
	switch val := v.(type) {
	case []string:
		return cleanList(val)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, toString(item, ""))
		}
		return out
	}
	return []string{}
}

func toTime(v any) time.Time {
	if s, ok := v.(string); ok {
		if t, err := ParseTime(s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
