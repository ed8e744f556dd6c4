package poll

import (
	"time"
)

type Counts struct {
	Success     int `json:"success"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	ParseFailed int `json:"parse_failed"`
	SyncFailed  int `json:"sync_failed"`
}

// Total is every line that reached a final state.
func (c Counts) Total() int {
	return c.Success + c.Skipped + c.Failed + c.ParseFailed + c.SyncFailed
}

type Report struct {
	RunID      string    `json:"run_id"`
	File       string    `json:"file"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Batches    int       `json:"batches"`
	Counts     Counts    `json:"counts"`
	// Problems holds every line that neither succeeded nor was skipped.
	Problems []Entry `json:"problems,omitempty"`
}

func buildReport(runID, file string, started, finished time.Time, batches int, entries []Entry) *Report {
	r := &Report{
		RunID:      runID,
		File:       file,
		StartedAt:  started,
		FinishedAt: finished,
		Batches:    batches,
	}
	for _, e := range entries {
		switch e.State {
		case StateSuccess:
			r.Counts.Success++
			continue
		case StateSkipped:
			r.Counts.Skipped++
			continue
		case StateParseFailed:
			r.Counts.ParseFailed++
		case StateSyncFailed:
			r.Counts.SyncFailed++
		default:
			r.Counts.Failed++
		}
		r.Problems = append(r.Problems, e)
	}
	return r
}
