package reconcile

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/logging"
	"ctsmirror/internal/metrics"
	"ctsmirror/internal/store"
	"ctsmirror/internal/talent"
)

type AuditReport struct {
	Checked int         `json:"checked"`
	Missing []store.Row `json:"missing"`
	Pruned  int         `json:"pruned"`
	Took    string      `json:"took"`
}

// Auditor compares every mirror row with the remote service.
type Auditor struct {
	db      *store.DB
	remote  talent.Service
	prune   bool
	log     *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewAuditor(db *store.DB, remote talent.Service, prune bool, log *logging.Logger, m *metrics.Metrics) *Auditor {
	if log == nil {
		log = logging.Nop()
	}
	return &Auditor{db: db, remote: remote, prune: prune, log: log, metrics: m, now: time.Now}
}

// children before parents so pruning never strands a job below a deleted company row
var auditOrder = []domain.Kind{domain.KindJob, domain.KindCompany, domain.KindTenant}

// Run gets each mirrored entity remotely. Rows the remote no longer has are reported and,
// when pruning is on, deleted. Any other remote error stops the audit.
func (a *Auditor) Run(ctx context.Context) (AuditReport, error) {
	start := a.now()
	var rep AuditReport

	for _, kind := range auditOrder {
		rows, err := a.db.All(ctx, kind)
		if err != nil {
			return rep, err
		}

		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			rep.Checked++

			err := a.get(ctx, kind, row.Name)
			if err == nil {
				continue
			}
			if !talent.IsNotFound(err) {
				return rep, errors.Wrapf(err, "audit %s %s", kind, row.Key)
			}

			a.log.Warn("remote entity missing", "kind", kind, "key", row.Key, "name", row.Name)
			a.metrics.AuditMissing(string(kind))
			rep.Missing = append(rep.Missing, row)

			if a.prune {
				n, err := a.db.Delete(ctx, kind, row.Name)
				if err != nil {
					return rep, err
				}
				rep.Pruned += int(n)
				a.metrics.MirrorWrite(string(kind), "prune")
			}
		}

		if err := a.db.Touch(ctx, kind); err != nil {
			return rep, err
		}
	}

	rep.Took = a.now().Sub(start).String()
	a.metrics.AuditDone(a.now())
	a.log.Info("audit done", "checked", rep.Checked, "missing", len(rep.Missing), "pruned", rep.Pruned)
	return rep, nil
}

func (a *Auditor) get(ctx context.Context, kind domain.Kind, name string) error {
	var err error
	switch kind {
	case domain.KindTenant:
		_, err = a.remote.GetTenant(ctx, name)
	case domain.KindCompany:
		_, err = a.remote.GetCompany(ctx, name)
	case domain.KindJob:
		_, err = a.remote.GetJob(ctx, name)
	}
	return err
}
