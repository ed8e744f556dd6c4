package poll

import (
	"sort"
	"sync"
)

// State is where one input line is in its lifecycle.
type State string

const (
	StateRead        State = "READ"
	StateParsed      State = "PARSED"
	StateSkipped     State = "SKIPPED"
	StateParseFailed State = "PARSE_FAILED"
	StatePosted      State = "POSTED"
	StateSuccess     State = "SUCCESS"
	StateSync        State = "SYNC"
	StateSyncFailed  State = "SYNC_FAILED"
	StateFailed      State = "FAILED"
)

func (s State) Final() bool {
	switch s {
	case StateSkipped, StateParseFailed, StateSuccess, StateSyncFailed, StateFailed:
		return true
	}
	return false
}

type Entry struct {
	Line          int      `json:"line"`
	Batch         int      `json:"batch"`
	State         State    `json:"state"`
	Company       string   `json:"company,omitempty"`
	RequisitionID string   `json:"requisition_id,omitempty"`
	LanguageCode  string   `json:"language_code,omitempty"`
	Operation     string   `json:"operation,omitempty"`
	Name          string   `json:"name,omitempty"`
	Errors        []string `json:"errors,omitempty"`

	errs []error
}

// Errs are the errors recorded against the line, in order.
func (e Entry) Errs() []error { return e.errs }

// Ledger tracks every line of one run. Only the orchestrator goroutine writes to it.
type Ledger struct {
	mu      sync.Mutex
	entries map[int]*Entry
	onMove  func(Entry)
}

func newLedger(onMove func(Entry)) *Ledger {
	return &Ledger{entries: map[int]*Entry{}, onMove: onMove}
}

func (l *Ledger) read(line, batch int) *Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := &Entry{Line: line, Batch: batch, State: StateRead}
	l.entries[line] = e
	return e
}

func (l *Ledger) identify(e *Entry, id Ident) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.Company = id.Company
	e.RequisitionID = id.RequisitionID
	e.LanguageCode = id.LanguageCode
}

func (l *Ledger) move(e *Entry, to State, err error) {
	l.mu.Lock()
	e.State = to
	if err != nil {
		e.errs = append(e.errs, err)
		e.Errors = append(e.Errors, err.Error())
	}
	snapshot := *e
	l.mu.Unlock()

	if l.onMove != nil {
		l.onMove(snapshot)
	}
}

func (l *Ledger) post(e *Entry, op string) {
	l.mu.Lock()
	e.Operation = op
	l.mu.Unlock()
	l.move(e, StatePosted, nil)
}

func (l *Ledger) succeed(e *Entry, name string) {
	l.mu.Lock()
	e.Name = name
	l.mu.Unlock()
	l.move(e, StateSuccess, nil)
}

func (l *Ledger) Get(line int) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[line]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns a copy of every entry ordered by line number.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}
