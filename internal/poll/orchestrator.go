// Package poll runs batch job creation: it partitions an input file, submits each batch as
// a remote batch operation, polls the operations and records every line's outcome.
package poll

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ctsmirror/internal/batch"
	"ctsmirror/internal/domain"
	"ctsmirror/internal/events"
	"ctsmirror/internal/key"
	"ctsmirror/internal/logging"
	"ctsmirror/internal/metrics"
	"ctsmirror/internal/reconcile"
	"ctsmirror/internal/resolve"
	"ctsmirror/internal/store"
	"ctsmirror/internal/talent"
)

// ErrPollTimeout is recorded on lines whose operation outlived max_poll_wait.
var ErrPollTimeout = errors.New("batch operation did not finish within max poll wait")

type Config struct {
	Project string
	// Tenant is the tenant external id; empty for project-scoped companies.
	Tenant string

	BatchSize         int
	ConcurrentBatches int
	PollInterval      time.Duration
	MaxPollWait       time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.ConcurrentBatches <= 0 {
		c.ConcurrentBatches = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxPollWait <= 0 {
		c.MaxPollWait = 10 * time.Minute
	}
	return c
}

// Publisher receives serialized ledger events; *events.Hub satisfies it.
type Publisher interface {
	Publish(evt string)
}

type Orchestrator struct {
	cfg        Config
	db         *store.DB
	remote     talent.Service
	resolver   *resolve.Resolver
	reconciler *reconcile.Reconciler
	log        *logging.Logger
	metrics    *metrics.Metrics
	pub        Publisher

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type Deps struct {
	DB         *store.DB
	Remote     talent.Service
	Resolver   *resolve.Resolver
	Reconciler *reconcile.Reconciler
	Log        *logging.Logger
	Metrics    *metrics.Metrics
	Publisher  Publisher
}

func New(cfg Config, d Deps) *Orchestrator {
	log := d.Log
	if log == nil {
		log = logging.Nop()
	}
	return &Orchestrator{
		cfg:        cfg.withDefaults(),
		db:         d.DB,
		remote:     d.Remote,
		resolver:   d.Resolver,
		reconciler: d.Reconciler,
		log:        log,
		metrics:    d.Metrics,
		pub:        d.Publisher,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// run is the state of one Run call. Everything here is touched only by the orchestrator goroutine.
type run struct {
	id     string
	ledger *Ledger
	tenant key.Segment
	parent string
	// claimed holds the keys of lines submitted in this run that have not failed.
	claimed map[string]bool
	// held are repeats of a claimed key, decided once the claiming line settles.
	held map[string][]line
	// carry are held lines whose claim failed; they go first into the next group.
	carry     []line
	companies map[string]store.Row
}

type line struct {
	entry *Entry
	text  string
}

// pending is one batch worth of parsed lines waiting to be submitted.
type pending struct {
	batchID int
	entries []*Entry
	keys    []key.Key
	jobs    []domain.Job
	op      talent.Operation
	err     error
}

// Run processes the file at path. Per-line problems end up in the report; only systemic
// failures (bad arguments, missing file, store errors, cancellation) are returned as errors,
// in which case the report covers the lines handled so far.
func (o *Orchestrator) Run(ctx context.Context, path string) (*Report, error) {
	started := o.now()
	defer o.metrics.RunStarted()()

	r := &run{
		id:        uuid.NewString(),
		claimed:   map[string]bool{},
		held:      map[string][]line{},
		companies: map[string]store.Row{},
	}
	r.ledger = newLedger(func(e Entry) { o.publish(r.id, e) })
	log := o.log.With("run", r.id)

	if err := (key.Key{Project: o.cfg.Project}).Validate(); err != nil {
		return nil, err
	}
	tenant, parent, err := o.resolver.CompanyParent(ctx, o.cfg.Tenant)
	if err != nil {
		return nil, err
	}
	r.tenant, r.parent = tenant, parent

	reader, err := batch.Open(path, o.cfg.BatchSize, o.cfg.ConcurrentBatches)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	log.Info("batch run started", "file", path, "size", o.cfg.BatchSize, "width", o.cfg.ConcurrentBatches)
	if o.pub != nil {
		o.pub.Publish(events.MakeEvent(r.id, events.TypeRunStarted, 1, map[string]string{"file": path}))
	}

	batches := 0
	var runErr error
	for {
		group, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			runErr = err
			break
		}
		batches += len(group)

		if err := o.runGroup(ctx, r, group); err != nil {
			runErr = err
			break
		}
	}
	for runErr == nil && len(r.carry) > 0 {
		batches++
		runErr = o.runGroup(ctx, r, batch.Group{{ID: batches}})
	}

	rep := buildReport(r.id, path, started, o.now(), batches, r.ledger.Entries())
	for _, e := range r.ledger.Entries() {
		o.metrics.Line(string(e.State))
	}
	log.Info("batch run finished",
		"success", rep.Counts.Success,
		"skipped", rep.Counts.Skipped,
		"failed", rep.Counts.Failed,
		"parse_failed", rep.Counts.ParseFailed,
		"sync_failed", rep.Counts.SyncFailed,
	)
	if o.pub != nil {
		o.pub.Publish(events.MakeEvent(r.id, events.TypeRunFinished, 1, rep.Counts))
	}
	return rep, runErr
}

func (o *Orchestrator) runGroup(ctx context.Context, r *run, group batch.Group) error {
	work := make([]*pending, 0, len(group))
	for i, b := range group {
		var lines []line
		if i == 0 {
			lines, r.carry = r.carry, nil
		}
		for _, l := range b.Lines {
			lines = append(lines, line{entry: r.ledger.read(l.Number, b.ID), text: l.Text})
		}
		p, err := o.prepare(ctx, r, b.ID, lines)
		if err != nil {
			return err
		}
		work = append(work, p)
	}

	o.dispatch(ctx, r, work)
	o.await(ctx, r, work)

	for _, p := range work {
		if err := o.settle(ctx, r, p); err != nil {
			return err
		}
	}
	o.release(r, work)
	return ctx.Err()
}

// prepare pre-filters and parses the lines of one batch.
func (o *Orchestrator) prepare(ctx context.Context, r *run, batchID int, lines []line) (*pending, error) {
	p := &pending{batchID: batchID}

	type candidate struct {
		line
		key key.Key
	}
	var cands []candidate
	var lookup []key.Key
	queued := map[string]bool{}

	for _, l := range lines {
		id, err := ReadIdent(l.text)
		if err != nil {
			r.ledger.move(l.entry, StateParseFailed, &domain.ParseError{Line: l.entry.Line, Err: err})
			continue
		}
		r.ledger.identify(l.entry, id)

		c := candidate{line: l}
		if id.complete() {
			c.key = key.Job(o.cfg.Project, r.tenant, id.Company, id.RequisitionID, id.LanguageCode)
			ks := c.key.String()
			if r.claimed[ks] {
				r.held[ks] = append(r.held[ks], l)
				continue
			}
			if !queued[ks] {
				queued[ks] = true
				lookup = append(lookup, c.key)
			}
		}
		cands = append(cands, c)
	}

	existing := map[string]bool{}
	if len(lookup) > 0 {
		rows, err := o.db.PointLookup(ctx, domain.KindJob, lookup)
		if err != nil {
			return nil, errors.Wrapf(err, "pre-filter batch %d", batchID)
		}
		for _, row := range rows {
			existing[row.Key] = true
		}
	}

	for _, c := range cands {
		ks := ""
		if c.key.Project != "" {
			ks = c.key.String()
			if existing[ks] {
				r.ledger.move(c.entry, StateSkipped, nil)
				continue
			}
			if r.claimed[ks] {
				r.held[ks] = append(r.held[ks], c.line)
				continue
			}
		}

		posting, err := ParseJob(c.text)
		if err != nil {
			r.ledger.move(c.entry, StateParseFailed, &domain.ParseError{Line: c.entry.Line, Err: err})
			continue
		}
		r.ledger.move(c.entry, StateParsed, nil)

		company, err := o.company(ctx, r, posting.CompanyID)
		if err != nil {
			var nf *domain.NotFoundError
			if !errors.As(err, &nf) {
				return nil, err
			}
			r.ledger.move(c.entry, StateFailed, err)
			continue
		}

		posting.Job.Company = company.Name
		if ks != "" {
			r.claimed[ks] = true
		}
		p.entries = append(p.entries, c.entry)
		p.keys = append(p.keys, c.key)
		p.jobs = append(p.jobs, posting.Job)
	}
	return p, nil
}

// release drops the claims of lines that did not succeed and decides the held repeats:
// a repeat of a successful line is skipped, a repeat of a failed one is carried forward.
func (o *Orchestrator) release(r *run, work []*pending) {
	for _, p := range work {
		for i, e := range p.entries {
			if e.State != StateSuccess {
				delete(r.claimed, p.keys[i].String())
			}
		}
	}

	for ks, lines := range r.held {
		if r.claimed[ks] {
			for _, l := range lines {
				r.ledger.move(l.entry, StateSkipped, nil)
			}
			continue
		}
		r.carry = append(r.carry, lines...)
	}
	clear(r.held)
	sort.Slice(r.carry, func(i, j int) bool { return r.carry[i].entry.Line < r.carry[j].entry.Line })
}

func (o *Orchestrator) company(ctx context.Context, r *run, externalID string) (store.Row, error) {
	if row, ok := r.companies[externalID]; ok {
		return row, nil
	}
	row, err := o.resolver.Company(ctx, r.tenant, externalID)
	if err != nil {
		return store.Row{}, err
	}
	r.companies[externalID] = row
	return row, nil
}

// dispatch submits the non-empty batches, at most ConcurrentBatches at a time.
func (o *Orchestrator) dispatch(ctx context.Context, r *run, work []*pending) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.ConcurrentBatches)

	for _, p := range work {
		if len(p.jobs) == 0 {
			continue
		}
		p := p
		g.Go(func() error {
			op, err := o.remote.BatchCreateJobs(gctx, r.parent, p.jobs)
			p.op, p.err = op, err
			return nil
		})
	}
	_ = g.Wait()

	for _, p := range work {
		switch {
		case len(p.jobs) == 0:
		case p.err != nil:
			o.log.Warn("batch submit failed", "run", r.id, "batch", p.batchID, "err", p.err)
			o.metrics.Batch("submit_failed")
			for _, e := range p.entries {
				r.ledger.move(e, StateFailed, p.err)
			}
		default:
			o.log.Debug("batch submitted", "run", r.id, "batch", p.batchID, "operation", p.op.Name(), "jobs", len(p.jobs))
			for _, e := range p.entries {
				r.ledger.post(e, p.op.Name())
			}
		}
	}
}

// await polls the submitted operations round-robin until all are done, the poll
// budget runs out or ctx is cancelled.
func (o *Orchestrator) await(ctx context.Context, r *run, work []*pending) {
	start := o.now()
	defer func() { o.metrics.PollWait(o.now().Sub(start)) }()

	pctx, cancel := context.WithTimeout(ctx, o.cfg.MaxPollWait)
	defer cancel()

	var inflight []*pending
	for _, p := range work {
		if p.op != nil && p.err == nil {
			inflight = append(inflight, p)
		}
	}

	for len(inflight) > 0 {
		next := inflight[:0]
		for _, p := range inflight {
			if p.op.Done() {
				continue
			}
			done, err := p.op.Poll(pctx)
			if err != nil && pctx.Err() == nil {
				p.err = err
				continue
			}
			if !done {
				next = append(next, p)
			}
		}
		inflight = next
		if len(inflight) == 0 {
			return
		}
		if err := o.sleep(pctx, o.cfg.PollInterval); err != nil {
			break
		}
	}

	cause := ErrPollTimeout
	if ctx.Err() != nil {
		cause = ctx.Err()
	}
	for _, p := range inflight {
		p.err = &talent.RemoteCallError{Op: "poll " + p.op.Name(), Exhausted: true, Err: cause}
	}
}

// settle classifies each item of a finished batch and writes the mirror.
func (o *Orchestrator) settle(ctx context.Context, r *run, p *pending) error {
	if p.op == nil {
		return nil
	}
	if p.err != nil {
		o.log.Warn("batch failed", "run", r.id, "batch", p.batchID, "operation", p.op.Name(), "err", p.err)
		o.metrics.Batch("failed")
		for _, e := range p.entries {
			r.ledger.move(e, StateFailed, p.err)
		}
		return nil
	}

	res, err := p.op.Result()
	if err == nil && len(res.Items) != len(p.entries) {
		err = errors.Errorf("operation %s returned %d results for %d jobs", p.op.Name(), len(res.Items), len(p.entries))
	}
	if err != nil {
		o.metrics.Batch("failed")
		for _, e := range p.entries {
			r.ledger.move(e, StateFailed, err)
		}
		return nil
	}
	o.metrics.Batch("ok")

	tenantName := ""
	if r.tenant.IsSet() {
		tenantName = r.parent
	}

	for i, item := range res.Items {
		e, k, job := p.entries[i], p.keys[i], p.jobs[i]
		ref := domain.Ref{
			Type:         domain.KindJob,
			ExternalID:   job.RequisitionID,
			LanguageCode: job.LanguageCode,
			CompanyName:  job.Company,
			TenantName:   tenantName,
			ProjectID:    o.cfg.Project,
		}

		switch item.Code {
		case talent.CodeOK:
			err := o.db.Insert(ctx, k, store.Row{
				Kind:         domain.KindJob,
				ExternalID:   ref.ExternalID,
				Name:         item.Job.Name,
				LanguageCode: ref.LanguageCode,
				CompanyName:  ref.CompanyName,
				TenantName:   ref.TenantName,
				ProjectID:    ref.ProjectID,
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.ledger.move(e, StateFailed, errors.Wrap(err, "created remotely but not mirrored"))
				continue
			}
			o.metrics.MirrorWrite(string(domain.KindJob), "create")
			r.ledger.succeed(e, item.Job.Name)

		case talent.CodeAlreadyExists:
			conflict := &talent.ConflictError{Kind: domain.KindJob, Name: item.Job.Name, Message: item.Message}
			r.ledger.move(e, StateSync, nil)
			if _, err := o.reconciler.Reconcile(ctx, k, ref, conflict); err != nil {
				r.ledger.move(e, StateSyncFailed, err)
				continue
			}
			name, _ := reconcile.ExistingName(domain.KindJob, conflict)
			r.ledger.succeed(e, name)

		default:
			r.ledger.move(e, StateFailed, &talent.RemoteCallError{
				Op:   "create job " + ref.ExternalID,
				Code: item.Code,
				Err:  errors.New(item.Message),
			})
		}
	}
	return nil
}

func (o *Orchestrator) publish(runID string, e Entry) {
	if o.pub == nil || !e.State.Final() {
		return
	}
	o.pub.Publish(events.MakeEvent(runID, events.TypeLinePrefix+string(e.State), 1, e))
}
