// Package reconcile converges the local mirror with the remote service after a create
// reported that the entity already exists.
package reconcile

import (
	"context"

	"github.com/go-faster/errors"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/key"
	"ctsmirror/internal/logging"
	"ctsmirror/internal/metrics"
	"ctsmirror/internal/store"
	"ctsmirror/internal/talent"
)

var ErrUnparseableConflict = errors.New("conflict does not name the existing resource")

type Reconciler struct {
	db      *store.DB
	log     *logging.Logger
	metrics *metrics.Metrics
}

func New(db *store.DB, log *logging.Logger, m *metrics.Metrics) *Reconciler {
	if log == nil {
		log = logging.Nop()
	}
	return &Reconciler{db: db, log: log, metrics: m}
}

// ExistingName is the resource name carried by an already-exists error, or ok=false.
func ExistingName(kind domain.Kind, conflict error) (string, bool) {
	var ce *talent.ConflictError
	msg := ""
	if errors.As(conflict, &ce) {
		if ce.Name != "" {
			return ce.Name, true
		}
		msg = ce.Message
	} else if conflict != nil {
		msg = conflict.Error()
	}

	k, name, ok := talent.ParseConflict(msg)
	if !ok || k != kind {
		return "", false
	}
	return name, true
}

// Reconcile records the remote entity named by conflict under k. It reports true once the
// mirror holds a row for k with that name, whether it wrote the row or found it there.
func (r *Reconciler) Reconcile(ctx context.Context, k key.Key, attempt domain.Ref, conflict error) (bool, error) {
	name, ok := ExistingName(attempt.Type, conflict)
	if !ok {
		return false, errors.Wrapf(ErrUnparseableConflict, "%s %s", attempt.Type, attempt.ExternalID)
	}

	row := store.Row{
		Kind:         attempt.Type,
		ExternalID:   attempt.ExternalID,
		Name:         name,
		LanguageCode: attempt.LanguageCode,
		CompanyName:  attempt.CompanyName,
		TenantName:   attempt.TenantName,
		ProjectID:    attempt.ProjectID,
		Suspended:    attempt.Suspended,
	}

	err := r.db.Insert(ctx, k, row)
	switch {
	case err == nil:
		r.log.Info("mirror synced", "kind", attempt.Type, "key", k.String(), "name", name)
		r.metrics.MirrorWrite(string(attempt.Type), "sync")
		return true, nil
	case errors.Is(err, store.ErrDuplicateKey):
		rows, lerr := r.db.PointLookup(ctx, attempt.Type, []key.Key{k})
		if lerr != nil {
			return false, lerr
		}
		if len(rows) == 1 && rows[0].Name == name {
			return true, nil
		}
		return false, errors.Wrapf(err, "mirror holds a different %s for %s", attempt.Type, k.String())
	default:
		return false, errors.Wrapf(err, "sync %s %s", attempt.Type, k.String())
	}
}
