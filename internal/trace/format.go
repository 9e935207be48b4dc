package trace

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Format is the encoding of written events.
type Format uint8

const (
	FormatAuto Format = iota
	FormatText
	FormatNDJSON
)

// ParseFormat parses a format name; "json" is an alias of ndjson.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson", "json":
		return FormatNDJSON, nil
	}
	return FormatAuto, fmt.Errorf("invalid trace format %q (expected auto|text|ndjson)", s)
}

// FormatEvent renders ev as one line, newline included.
func FormatEvent(ev *Event, format Format) []byte {
	if format == FormatNDJSON {
		return eventJSON(ev)
	}
	return eventText(ev)
}

type jsonEvent struct {
	Time       string            `json:"time"`
	Seq        uint64            `json:"seq"`
	Kind       string            `json:"kind"`
	Scope      string            `json:"scope"`
	SpanID     uint64            `json:"span_id,omitempty"`
	ParentID   uint64            `json:"parent_id,omitempty"`
	Generation int               `json:"generation,omitempty"`
	Method     string            `json:"method,omitempty"`
	Name       string            `json:"name"`
	Detail     string            `json:"detail,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

func eventJSON(ev *Event) []byte {
	data, _ := json.Marshal(jsonEvent{ //nolint:errchkjson // plain strings and integers
		Time:       ev.Time.Format("2006-01-02T15:04:05.000000Z07:00"),
		Seq:        ev.Seq,
		Kind:       ev.Kind.String(),
		Scope:      ev.Scope.String(),
		SpanID:     ev.SpanID,
		ParentID:   ev.ParentID,
		Generation: ev.Generation,
		Method:     ev.Method,
		Name:       ev.Name,
		Detail:     ev.Detail,
		Extra:      ev.Extra,
	})
	return append(data, '\n')
}

var kindMarks = map[Kind]string{
	KindSpanBegin: "→",
	KindSpanEnd:   "←",
	KindPoint:     "•",
	KindHeartbeat: "♡",
	KindReject:    "✗",
}

// eventText renders "#seq gN  → name [method] (detail) {k=v}", indented by
// scope.
func eventText(ev *Event) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%06d ", ev.Seq)
	if ev.Generation > 0 {
		fmt.Fprintf(&sb, "g%d ", ev.Generation)
	}
	if ev.Scope > ScopeSession {
		sb.WriteString(strings.Repeat("  ", int(ev.Scope-ScopeSession)))
	}
	if mark, ok := kindMarks[ev.Kind]; ok {
		sb.WriteString(mark)
		sb.WriteByte(' ')
	}
	sb.WriteString(ev.Name)
	if ev.Method != "" {
		fmt.Fprintf(&sb, " [%s]", ev.Method)
	}
	if ev.Detail != "" {
		fmt.Fprintf(&sb, " (%s)", ev.Detail)
	}
	if len(ev.Extra) > 0 {
		pairs := make([]string, 0, len(ev.Extra))
		for _, k := range slices.Sorted(maps.Keys(ev.Extra)) {
			pairs = append(pairs, k+"="+ev.Extra[k])
		}
		fmt.Fprintf(&sb, " {%s}", strings.Join(pairs, ", "))
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}
