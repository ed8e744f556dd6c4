package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/key"
	"ctsmirror/internal/logging"
	"ctsmirror/internal/store"
	"ctsmirror/internal/talent"
	"ctsmirror/internal/talent/talenttest"
)

func openStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func companyAttempt() domain.Ref {
	return domain.Ref{Type: domain.KindCompany, ExternalID: "acme", ProjectID: "p1"}
}

func TestReconcileFromMessage(t *testing.T) {
	db := openStore(t)
	r := New(db, logging.Nop(), nil)
	k := key.Company("p1", key.None(), "acme")

	conflict := &talent.ConflictError{
		Kind:    domain.KindCompany,
		Message: "Company projects/p1/companies/123 already exists. Request ID for tracking: x",
	}
	ok, err := r.Reconcile(context.Background(), k, companyAttempt(), conflict)
	require.NoError(t, err)
	assert.True(t, ok)

	rows, err := db.PointLookup(context.Background(), domain.KindCompany, []key.Key{k})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "p1-acme", rows[0].Key)
	assert.Equal(t, "projects/p1/companies/123", rows[0].Name)
	assert.Equal(t, "acme", rows[0].ExternalID)
}

func TestReconcileUsesTypedName(t *testing.T) {
	db := openStore(t)
	r := New(db, logging.Nop(), nil)

	conflict := &talent.ConflictError{Kind: domain.KindCompany, Name: "projects/p1/companies/9", Message: "opaque"}
	ok, err := r.Reconcile(context.Background(), key.Company("p1", key.None(), "acme"), companyAttempt(), conflict)
	require.NoError(t, err)
	assert.True(t, ok)

	rows, err := db.All(context.Background(), domain.KindCompany)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "projects/p1/companies/9", rows[0].Name)
}

func TestReconcileIsIdempotent(t *testing.T) {
	db := openStore(t)
	r := New(db, logging.Nop(), nil)
	k := key.Company("p1", key.None(), "acme")
	conflict := &talent.ConflictError{Kind: domain.KindCompany, Name: "projects/p1/companies/9"}

	for i := 0; i < 2; i++ {
		ok, err := r.Reconcile(context.Background(), k, companyAttempt(), conflict)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	other := &talent.ConflictError{Kind: domain.KindCompany, Name: "projects/p1/companies/10"}
	ok, err := r.Reconcile(context.Background(), k, companyAttempt(), other)
	require.ErrorIs(t, err, store.ErrDuplicateKey)
	assert.False(t, ok)
}

func TestReconcileUnparseable(t *testing.T) {
	db := openStore(t)
	r := New(db, logging.Nop(), nil)
	k := key.Company("p1", key.None(), "acme")

	cases := []error{
		errors.New("ALREADY_EXISTS"),
		&talent.ConflictError{Kind: domain.KindCompany, Message: "Tenant projects/p1/tenants/1 already exists"},
		nil,
	}
	for _, c := range cases {
		ok, err := r.Reconcile(context.Background(), k, companyAttempt(), c)
		require.ErrorIs(t, err, ErrUnparseableConflict)
		assert.False(t, ok)
	}

	rows, err := db.All(context.Background(), domain.KindCompany)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReconcileJobNeedsCompanyRow(t *testing.T) {
	db := openStore(t)
	r := New(db, logging.Nop(), nil)

	attempt := domain.Ref{Type: domain.KindJob, ExternalID: "R1", LanguageCode: "en", CompanyName: "projects/p1/companies/1"}
	conflict := errors.New("Job projects/p1/jobs/5 already exists.")

	ok, err := r.Reconcile(context.Background(), key.Job("p1", key.None(), "acme", "R1", "en"), attempt, conflict)
	require.ErrorIs(t, err, store.ErrUnknownParent)
	assert.False(t, ok)
}

func TestAuditReportsAndPrunes(t *testing.T) {
	ctx := context.Background()
	for _, prune := range []bool{false, true} {
		db := openStore(t)
		remote := talenttest.New()

		live, err := remote.CreateCompany(ctx, "projects/p1", domain.Company{ExternalID: "acme"})
		require.NoError(t, err)
		require.NoError(t, db.Insert(ctx, key.Company("p1", key.None(), "acme"), store.Row{
			Kind: domain.KindCompany, ExternalID: "acme", Name: live.Name,
		}))
		require.NoError(t, db.Insert(ctx, key.Company("p1", key.None(), "gone"), store.Row{
			Kind: domain.KindCompany, ExternalID: "gone", Name: "projects/p1/companies/404",
		}))

		rep, err := NewAuditor(db, remote, prune, logging.Nop(), nil).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, rep.Checked)
		require.Len(t, rep.Missing, 1)
		assert.Equal(t, "gone", rep.Missing[0].ExternalID)

		rows, err := db.All(ctx, domain.KindCompany)
		require.NoError(t, err)
		if prune {
			assert.Equal(t, 1, rep.Pruned)
			assert.Len(t, rows, 1)
		} else {
			assert.Zero(t, rep.Pruned)
			assert.Len(t, rows, 2)
		}

		ts, err := db.SyncTime(ctx, domain.KindTenant)
		require.NoError(t, err)
		assert.False(t, ts.IsZero())
	}
}
