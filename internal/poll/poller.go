package poll

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"

	"ctsmirror/internal/logging"
)

var ErrRunInProgress = errors.New("a batch run is already in progress")

// RunStatus is what GET /batches/status reports.
type RunStatus struct {
	Running   bool    `json:"running"`
	File      string  `json:"file,omitempty"`
	LastRunAt string  `json:"last_run_at,omitempty"`
	LastOkAt  string  `json:"last_ok_at,omitempty"`
	LastError string  `json:"last_error,omitempty"`
	Last      *Report `json:"last,omitempty"`
}

// Runner runs at most one orchestrator run at a time in the background.
type Runner struct {
	orch    *Orchestrator
	log     *logging.Logger
	running atomic.Bool
	status  atomic.Value
}

func NewRunner(orch *Orchestrator, log *logging.Logger) *Runner {
	if log == nil {
		log = logging.Nop()
	}
	r := &Runner{orch: orch, log: log}
	r.status.Store(RunStatus{})
	return r
}

func (r *Runner) Status() RunStatus {
	return r.status.Load().(RunStatus)
}

// Start kicks off a run over path and returns immediately. done, if non-nil, is called
// with the outcome once the run ends.
func (r *Runner) Start(ctx context.Context, path string, done func(*Report, error)) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}

	st := r.Status()
	st.Running = true
	st.File = path
	st.LastRunAt = time.Now().Format(time.RFC3339)
	r.status.Store(st)

	go func() {
		rep, err := r.orch.Run(ctx, path)

		st := r.Status()
		st.Running = false
		st.Last = rep
		if err != nil {
			st.LastError = err.Error()
			r.log.Error("batch run failed", "file", path, "err", err)
		} else {
			st.LastError = ""
			st.LastOkAt = time.Now().Format(time.RFC3339)
		}
		r.status.Store(st)
		r.running.Store(false)

		if done != nil {
			done(rep, err)
		}
	}()
	return nil
}
