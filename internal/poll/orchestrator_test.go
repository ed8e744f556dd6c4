package poll

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/key"
	"ctsmirror/internal/logging"
	"ctsmirror/internal/reconcile"
	"ctsmirror/internal/resolve"
	"ctsmirror/internal/store"
	"ctsmirror/internal/talent"
	"ctsmirror/internal/talent/talenttest"
)

type fixture struct {
	db      *store.DB
	remote  *talenttest.Service
	company domain.Company
	cfg     Config
	pub     *recorder
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(evt string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	remote := talenttest.New()
	c, err := remote.CreateCompany(ctx, "projects/p1", domain.Company{ExternalID: "acme", DisplayName: "Acme"})
	require.NoError(t, err)
	require.NoError(t, db.Insert(ctx, key.Company("p1", key.None(), "acme"), store.Row{
		Kind: domain.KindCompany, ExternalID: "acme", Name: c.Name,
	}))

	return &fixture{
		db:      db,
		remote:  remote,
		company: c,
		pub:     &recorder{},
		cfg: Config{
			Project:           "p1",
			BatchSize:         2,
			ConcurrentBatches: 1,
			PollInterval:      time.Millisecond,
			MaxPollWait:       5 * time.Second,
		},
	}
}

func (f *fixture) orchestrator() *Orchestrator {
	log := logging.Nop()
	return New(f.cfg, Deps{
		DB:         f.db,
		Remote:     f.remote,
		Resolver:   resolve.New(f.db, f.remote, f.cfg.Project, "en", log),
		Reconciler: reconcile.New(f.db, log, nil),
		Log:        log,
		Publisher:  f.pub,
	})
}

func jobLineJSON(company, reqID string) string {
	return fmt.Sprintf(`{"requisition_id":%q,"title":"Engineer","description":"<p>Build things</p>","company":%q,"language_code":"en"}`, reqID, company)
}

func writeInput(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func mirroredJobs(t *testing.T, db *store.DB) []store.Row {
	t.Helper()
	rows, err := db.All(context.Background(), domain.KindJob)
	require.NoError(t, err)
	return rows
}

func TestRunCreatesJobs(t *testing.T) {
	f := newFixture(t)
	path := writeInput(t, jobLineJSON("acme", "R1"), jobLineJSON("acme", "R2"), jobLineJSON("acme", "R3"))

	rep, err := f.orchestrator().Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, Counts{Success: 3}, rep.Counts)
	assert.Equal(t, 2, rep.Batches)
	assert.Empty(t, rep.Problems)
	assert.Equal(t, 2, f.remote.Calls("BatchCreateJobs"))

	rows := mirroredJobs(t, f.db)
	require.Len(t, rows, 3)
	assert.Equal(t, "p1-acme-R1-en", rows[0].Key)
	assert.Equal(t, f.company.Name, rows[0].CompanyName)
	assert.NotEmpty(t, rows[0].Name)
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	path := writeInput(t, jobLineJSON("acme", "R1"), jobLineJSON("acme", "R2"))
	o := f.orchestrator()

	_, err := o.Run(context.Background(), path)
	require.NoError(t, err)
	calls := f.remote.Calls("BatchCreateJobs")

	rep, err := o.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, Counts{Skipped: 2}, rep.Counts)
	assert.Equal(t, calls, f.remote.Calls("BatchCreateJobs"))
	assert.Len(t, mirroredJobs(t, f.db), 2)
}

func TestPreFilterSkipsMirroredAndRepeatedLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Insert(ctx, key.Job("p1", key.None(), "acme", "R1", "en"), store.Row{
		Kind: domain.KindJob, ExternalID: "R1", LanguageCode: "en", Name: "projects/p1/jobs/old", CompanyName: f.company.Name,
	}))

	path := writeInput(t, jobLineJSON("acme", "R1"), jobLineJSON("acme", "R2"), jobLineJSON("acme", "R2"))
	rep, err := f.orchestrator().Run(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, Counts{Success: 1, Skipped: 2}, rep.Counts)
	assert.Len(t, mirroredJobs(t, f.db), 2)
}

func TestRepeatAfterMalformedLineIsPosted(t *testing.T) {
	f := newFixture(t)
	path := writeInput(t,
		`{"requisition_id":"R1","description":"x","company":"acme","language_code":"en"}`,
		jobLineJSON("acme", "R1"),
	)

	rep, err := f.orchestrator().Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, Counts{Success: 1, ParseFailed: 1}, rep.Counts)
	rows := mirroredJobs(t, f.db)
	require.Len(t, rows, 1)
	assert.Equal(t, "p1-acme-R1-en", rows[0].Key)
}

func TestRepeatAfterRemoteFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	f.remote.FailFirst = map[string]int{"R1": 13}
	path := writeInput(t, jobLineJSON("acme", "R1"), jobLineJSON("acme", "R1"), jobLineJSON("acme", "R1"))

	rep, err := f.orchestrator().Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, Counts{Success: 1, Failed: 1, Skipped: 1}, rep.Counts)
	assert.Equal(t, 2, rep.Batches)
	assert.Equal(t, 2, f.remote.Calls("BatchCreateJobs"))
	assert.Len(t, mirroredJobs(t, f.db), 1)

	lines := map[int]Entry{}
	for _, p := range rep.Problems {
		lines[p.Line] = p
	}
	assert.Equal(t, StateFailed, lines[1].State)
	assert.NotContains(t, lines, 2)
}

func TestRepeatOnLastLineIsRetriedAfterInput(t *testing.T) {
	f := newFixture(t)
	f.remote.FailFirst = map[string]int{"R1": 13}
	path := writeInput(t, jobLineJSON("acme", "R1"), jobLineJSON("acme", "R1"))

	rep, err := f.orchestrator().Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, Counts{Success: 1, Failed: 1}, rep.Counts)
	assert.Equal(t, 2, rep.Batches)
	assert.Equal(t, 2, f.remote.Calls("BatchCreateJobs"))
	assert.Len(t, mirroredJobs(t, f.db), 1)
}

func TestRunAggregatesLineErrors(t *testing.T) {
	f := newFixture(t)
	f.remote.ItemCodes = map[string]int{"R6": 3}

	path := writeInput(t,
		jobLineJSON("acme", "R1"),
		`{"requisition_id": "R2",`,
		`{"requisition_id":"R3","description":"x","company":"acme","language_code":"en"}`,
		jobLineJSON("globex", "R4"),
		"   ",
		jobLineJSON("acme", "R6"),
	)
	rep, err := f.orchestrator().Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, Counts{Success: 1, ParseFailed: 3, Failed: 2}, rep.Counts)
	assert.Equal(t, 6, rep.Counts.Total())

	lines := map[int]Entry{}
	for _, p := range rep.Problems {
		lines[p.Line] = p
	}
	require.Len(t, lines, 5)

	assert.Equal(t, StateParseFailed, lines[2].State)
	assert.Equal(t, StateParseFailed, lines[3].State)
	assert.Equal(t, "R3", lines[3].RequisitionID)
	assert.Contains(t, lines[3].Errors[0], "line 3")
	assert.Contains(t, lines[3].Errors[0], "title is required")

	assert.Equal(t, StateFailed, lines[4].State)
	var nf *domain.NotFoundError
	require.ErrorAs(t, lines[4].Errs()[0], &nf)
	assert.Equal(t, "globex", nf.ID)

	assert.Equal(t, StateParseFailed, lines[5].State)

	assert.Equal(t, StateFailed, lines[6].State)
	assert.Equal(t, "R6", lines[6].RequisitionID)
	var rc *talent.RemoteCallError
	require.ErrorAs(t, lines[6].Errs()[0], &rc)
	assert.Equal(t, 3, rc.Code)
	assert.NotEmpty(t, lines[6].Operation)
}

func TestRunSyncsExistingRemoteJob(t *testing.T) {
	f := newFixture(t)
	f.remote.OpaqueConflicts = true
	existing, err := f.remote.CreateJob(context.Background(), "projects/p1", domain.Job{
		Company: f.company.Name, RequisitionID: "R1", LanguageCode: "en",
	})
	require.NoError(t, err)

	rep, err := f.orchestrator().Run(context.Background(), writeInput(t, jobLineJSON("acme", "R1")))
	require.NoError(t, err)
	assert.Equal(t, Counts{Success: 1}, rep.Counts)

	rows := mirroredJobs(t, f.db)
	require.Len(t, rows, 1)
	assert.Equal(t, existing.Name, rows[0].Name)
}

func TestRunSyncFailure(t *testing.T) {
	f := newFixture(t)
	f.remote.ItemCodes = map[string]int{"R1": talent.CodeAlreadyExists}

	rep, err := f.orchestrator().Run(context.Background(), writeInput(t, jobLineJSON("acme", "R1")))
	require.NoError(t, err)
	assert.Equal(t, Counts{SyncFailed: 1}, rep.Counts)
	require.Len(t, rep.Problems, 1)
	require.ErrorIs(t, rep.Problems[0].Errs()[0], reconcile.ErrUnparseableConflict)
	assert.Empty(t, mirroredJobs(t, f.db))
}

func TestRunPollTimeout(t *testing.T) {
	f := newFixture(t)
	f.remote.NeverFinish = true
	f.cfg.MaxPollWait = 20 * time.Millisecond

	rep, err := f.orchestrator().Run(context.Background(), writeInput(t, jobLineJSON("acme", "R1"), jobLineJSON("acme", "R2")))
	require.NoError(t, err)
	assert.Equal(t, Counts{Failed: 2}, rep.Counts)

	for _, p := range rep.Problems {
		require.ErrorIs(t, p.Errs()[0], ErrPollTimeout)
		var rc *talent.RemoteCallError
		require.ErrorAs(t, p.Errs()[0], &rc)
		assert.True(t, rc.Exhausted)
	}
	assert.Empty(t, mirroredJobs(t, f.db))
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t)
	f.remote.NeverFinish = true
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	rep, err := f.orchestrator().Run(ctx, writeInput(t, jobLineJSON("acme", "R1"), jobLineJSON("acme", "R2"), jobLineJSON("acme", "R3")))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, rep)
	assert.Equal(t, 2, rep.Counts.Failed)
	assert.Equal(t, 1, rep.Batches)
}

func TestRunSubmitFailure(t *testing.T) {
	f := newFixture(t)
	f.remote.BatchErr = &talent.RemoteCallError{Op: "batch create jobs", Code: 500, Err: fmt.Errorf("backend error")}

	rep, err := f.orchestrator().Run(context.Background(), writeInput(t, jobLineJSON("acme", "R1")))
	require.NoError(t, err)
	assert.Equal(t, Counts{Failed: 1}, rep.Counts)
	assert.Contains(t, rep.Problems[0].Errors[0], "backend error")
}

func TestRunConcurrentBatches(t *testing.T) {
	f := newFixture(t)
	f.cfg.BatchSize = 1
	f.cfg.ConcurrentBatches = 3
	f.remote.PollsToDone = 2

	var lines []string
	for i := 1; i <= 5; i++ {
		lines = append(lines, jobLineJSON("acme", fmt.Sprintf("R%d", i)))
	}
	rep, err := f.orchestrator().Run(context.Background(), writeInput(t, lines...))
	require.NoError(t, err)

	assert.Equal(t, Counts{Success: 5}, rep.Counts)
	assert.Equal(t, 5, rep.Batches)
	assert.Equal(t, 5, f.remote.Calls("BatchCreateJobs"))
	assert.Len(t, mirroredJobs(t, f.db), 5)
}

func TestRunTenantScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tn, err := f.remote.CreateTenant(ctx, "projects/p1", domain.Tenant{ExternalID: "t1"})
	require.NoError(t, err)
	require.NoError(t, f.db.Insert(ctx, key.Tenant("p1", "t1"), store.Row{Kind: domain.KindTenant, ExternalID: "t1", Name: tn.Name}))
	c, err := f.remote.CreateCompany(ctx, tn.Name, domain.Company{ExternalID: "acme"})
	require.NoError(t, err)
	require.NoError(t, f.db.Insert(ctx, key.Company("p1", key.Some("t1"), "acme"), store.Row{
		Kind: domain.KindCompany, ExternalID: "acme", Name: c.Name, TenantName: tn.Name,
	}))

	f.cfg.Tenant = "t1"
	rep, err := f.orchestrator().Run(ctx, writeInput(t, jobLineJSON("acme", "R1")))
	require.NoError(t, err)
	assert.Equal(t, Counts{Success: 1}, rep.Counts)

	rows, err := f.db.PointLookup(ctx, domain.KindJob, []key.Key{key.Job("p1", key.Some("t1"), "acme", "R1", "en")})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, tn.Name, rows[0].TenantName)
	assert.Equal(t, c.Name, rows[0].CompanyName)
}

func TestRunSystemicErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.orchestrator().Run(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"))
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)

	f.cfg.Tenant = "unknown"
	_, err = f.orchestrator().Run(context.Background(), writeInput(t, jobLineJSON("acme", "R1")))
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, domain.KindTenant, nf.Kind)

	f.cfg.Tenant = ""
	f.cfg.Project = ""
	_, err = f.orchestrator().Run(context.Background(), writeInput(t, jobLineJSON("acme", "R1")))
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestRunPublishesFinalStates(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator().Run(context.Background(), writeInput(t, jobLineJSON("acme", "R1"), "{"))
	require.NoError(t, err)

	f.pub.mu.Lock()
	defer f.pub.mu.Unlock()
	require.Len(t, f.pub.events, 4)
	assert.Contains(t, f.pub.events[0], `"type":"run.started"`)
	assert.Contains(t, f.pub.events[3], `"type":"run.finished"`)

	joined := strings.Join(f.pub.events, "\n")
	assert.Contains(t, joined, `"type":"line.SUCCESS"`)
	assert.Contains(t, joined, `"type":"line.PARSE_FAILED"`)
}

func TestRunnerSingleRun(t *testing.T) {
	f := newFixture(t)
	f.remote.NeverFinish = true
	f.cfg.MaxPollWait = 50 * time.Millisecond
	runner := NewRunner(f.orchestrator(), logging.Nop())

	done := make(chan *Report, 1)
	path := writeInput(t, jobLineJSON("acme", "R1"))
	require.NoError(t, runner.Start(context.Background(), path, func(r *Report, _ error) { done <- r }))
	require.ErrorIs(t, runner.Start(context.Background(), path, nil), ErrRunInProgress)
	assert.True(t, runner.Status().Running)

	rep := <-done
	assert.Equal(t, 1, rep.Counts.Failed)

	st := runner.Status()
	assert.False(t, st.Running)
	assert.Equal(t, path, st.File)
	assert.Same(t, rep, st.Last)
}
