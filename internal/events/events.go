// Package events fans out JSON events (ledger transitions, audits, mirror writes) to SSE clients.
package events

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	TypeRunStarted  = "run.started"
	TypeRunFinished = "run.finished"
	TypeAuditDone   = "audit.done"
	TypeMirrorWrite = "mirror.write"
	// Line events are "line." + the ledger state, e.g. "line.SUCCESS".
	TypeLinePrefix = "line."
)

type Event struct {
	Type    string          `json:"type"`
	Version int             `json:"v"`
	At      time.Time       `json:"at"`
	RunID   string          `json:"run_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(runID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:    typ,
		Version: v,
		At:      time.Now().UTC(),
		RunID:   runID,
		Data:    raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}

// Filter selects events for one subscriber. Zero fields match everything.
type Filter struct {
	RunID      string `json:"run,omitempty"`
	TypePrefix string `json:"type,omitempty"`
}

func (f Filter) Empty() bool { return f.RunID == "" && f.TypePrefix == "" }

// Match reports whether the serialized event passes f. Payloads that do not decode
// only pass the empty filter.
func (f Filter) Match(evt string) bool {
	if f.Empty() {
		return true
	}
	var e Event
	if err := json.Unmarshal([]byte(evt), &e); err != nil {
		return false
	}
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	return strings.HasPrefix(e.Type, f.TypePrefix)
}
