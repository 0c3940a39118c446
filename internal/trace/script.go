// Package trace implements the headless deterministic driver: it expands
// a scripted input timeline into raw key edges, drives the input
// processor and application manager at prescribed virtual times, and
// records every host-ABI call into a byte-exact JSON trace for golden
// comparison.
package trace

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fdb/fri3d-wasm-badge/internal/input"
)

// ScriptEvent is one line of the input script JSON: `{time_ms, key, type,
// duration_ms?}`.
type ScriptEvent struct {
	TimeMs     uint32  `json:"time_ms"`
	Key        string  `json:"key"`
	Kind       string  `json:"type"`
	DurationMs *uint32 `json:"duration_ms,omitempty"`
}

// Error is a script parse/expansion failure.
type Error struct {
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("trace: script error: %s: %v", e.Details, e.Err)
	}
	return fmt.Sprintf("trace: script error: %s", e.Details)
}
func (e *Error) Unwrap() error { return e.Err }

func parseKey(name string) (input.Key, bool) {
	switch name {
	case "up", "Up":
		return input.Up, true
	case "down", "Down":
		return input.Down, true
	case "left", "Left":
		return input.Left, true
	case "right", "Right":
		return input.Right, true
	case "ok", "Ok", "OK":
		return input.Ok, true
	case "back", "Back":
		return input.Back, true
	default:
		return 0, false
	}
}

// ParseScript decodes the JSON array of script events.
func ParseScript(data []byte) ([]ScriptEvent, error) {
	var events []ScriptEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, &Error{Details: "invalid JSON", Err: err}
	}
	return events, nil
}

// RawEdge is an expanded press/release ready to drive input.Processor.
type RawEdge struct {
	Key     input.Key
	Pressed bool
	AtMs    uint32
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

// Expand turns the script into a flat, stably sorted sequence of raw
// press/release edges, applying the duration defaults and clamps for
// short_press/long_press/repeat.
func Expand(events []ScriptEvent) ([]RawEdge, error) {
	var edges []RawEdge
	for i, ev := range events {
		key, ok := parseKey(ev.Key)
		if !ok {
			return nil, &Error{Details: fmt.Sprintf("event %d: unknown key %q", i, ev.Key)}
		}
		switch ev.Kind {
		case "press":
			edges = append(edges, RawEdge{Key: key, Pressed: true, AtMs: ev.TimeMs})
		case "release":
			edges = append(edges, RawEdge{Key: key, Pressed: false, AtMs: ev.TimeMs})
		case "short_press":
			dur := uint32(10)
			if ev.DurationMs != nil {
				dur = *ev.DurationMs
			}
			dur = clamp(dur, 1, input.LongPressMs-1)
			edges = append(edges,
				RawEdge{Key: key, Pressed: true, AtMs: ev.TimeMs},
				RawEdge{Key: key, Pressed: false, AtMs: ev.TimeMs + dur},
			)
		case "long_press":
			dur := uint32(input.LongPressMs + 50)
			if ev.DurationMs != nil {
				dur = *ev.DurationMs
			}
			if dur < input.LongPressMs {
				dur = input.LongPressMs
			}
			edges = append(edges,
				RawEdge{Key: key, Pressed: true, AtMs: ev.TimeMs},
				RawEdge{Key: key, Pressed: false, AtMs: ev.TimeMs + dur},
			)
		case "repeat":
			minDur := uint32(input.LongPressMs + input.RepeatIntervalMs)
			dur := minDur + 50
			if ev.DurationMs != nil {
				dur = *ev.DurationMs
			}
			if dur < minDur {
				dur = minDur
			}
			edges = append(edges,
				RawEdge{Key: key, Pressed: true, AtMs: ev.TimeMs},
				RawEdge{Key: key, Pressed: false, AtMs: ev.TimeMs + dur},
			)
		default:
			return nil, &Error{Details: fmt.Sprintf("event %d: unknown type %q", i, ev.Kind)}
		}
	}

	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.AtMs != b.AtMs {
			return a.AtMs < b.AtMs
		}
		if a.Pressed != b.Pressed {
			return a.Pressed // Press (true) sorts before Release (false)
		}
		return a.Key < b.Key
	})
	return edges, nil
}
