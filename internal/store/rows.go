package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/key"
)

var (
	ErrDuplicateKey  = errors.New("mirror row already exists")
	ErrUnknownParent = errors.New("parent row is not mirrored")
)

// Row is one mirrored entity. Key is the rendered composite key.
type Row struct {
	Kind         domain.Kind
	Key          string
	ExternalID   string
	Name         string
	LanguageCode string
	CompanyName  string
	TenantName   string
	ProjectID    string
	Suspended    bool
	CreateTime   time.Time
}

func (r Row) Ref() domain.Ref {
	return domain.Ref{
		Type:         r.Kind,
		ExternalID:   r.ExternalID,
		Name:         r.Name,
		LanguageCode: r.LanguageCode,
		CompanyName:  r.CompanyName,
		TenantName:   r.TenantName,
		ProjectID:    r.ProjectID,
		Suspended:    r.Suspended,
		CreateTime:   r.CreateTime,
	}
}

// Insert appends a row under k. There is no update path: an existing key is ErrDuplicateKey,
// and a job or tenant-scoped company whose parent row is missing is ErrUnknownParent.
func (d *DB) Insert(ctx context.Context, k key.Key, r Row) error {
	t, err := tableFor(r.Kind)
	if err != nil {
		return err
	}
	if err := k.Validate(); err != nil {
		return err
	}
	if r.Name == "" {
		return domain.Invalid("name", "resource name is required for %s %q", r.Kind, r.ExternalID)
	}

	r.Key = k.String()
	if r.ProjectID == "" {
		r.ProjectID = k.Project
	}
	if r.CreateTime.IsZero() {
		r.CreateTime = d.now().UTC()
	}

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	exists, err := keyExists(ctx, tx, t, r.Key)
	if err != nil {
		return errors.Wrapf(err, "insert %s", r.Kind)
	}
	if exists {
		return errors.Wrapf(ErrDuplicateKey, "%s %s", r.Kind, r.Key)
	}

	if err := checkParent(ctx, tx, r.Kind, k); err != nil {
		return err
	}

	suspended := 0
	if r.Suspended {
		suspended = 1
	}
	created := r.CreateTime.Unix()

	switch r.Kind {
	case domain.KindTenant:
		_, err = tx.ExecContext(ctx, `
INSERT INTO tenant (tenant_key, external_id, tenant_name, project_id, suspended, create_time)
VALUES (?, ?, ?, ?, ?, ?);`,
			r.Key, r.ExternalID, r.Name, r.ProjectID, suspended, created)
	case domain.KindCompany:
		_, err = tx.ExecContext(ctx, `
INSERT INTO company (company_key, external_id, company_name, tenant_name, project_id, suspended, create_time)
VALUES (?, ?, ?, ?, ?, ?, ?);`,
			r.Key, r.ExternalID, r.Name, r.TenantName, r.ProjectID, suspended, created)
	case domain.KindJob:
		_, err = tx.ExecContext(ctx, `
INSERT INTO job (job_key, external_id, language_code, job_name, company_name, tenant_name, project_id, suspended, create_time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			r.Key, r.ExternalID, r.LanguageCode, r.Name, r.CompanyName, r.TenantName, r.ProjectID, suspended, created)
	}
	if err != nil {
		return errors.Wrapf(err, "insert %s %s", r.Kind, r.Key)
	}

	if err := touch(ctx, tx, t.name, d.now()); err != nil {
		return err
	}
	return tx.Commit()
}

func checkParent(ctx context.Context, tx *sql.Tx, kind domain.Kind, k key.Key) error {
	var parent key.Key
	var parentTable table

	switch kind {
	case domain.KindJob:
		if !k.Company.IsSet() {
			return domain.Invalid("company", "job key needs a company segment")
		}
		parent, parentTable = k.CompanyKey(), tables[domain.KindCompany]
	case domain.KindCompany:
		if !k.Tenant.IsSet() {
			return nil
		}
		parent, parentTable = k.TenantKey(), tables[domain.KindTenant]
	default:
		return nil
	}

	ok, err := keyExists(ctx, tx, parentTable, parent.String())
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrUnknownParent, "%s %s", parentTable.name, parent.String())
	}
	return nil
}

func keyExists(ctx context.Context, tx *sql.Tx, t table, k string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM `+t.name+` WHERE `+t.keyCol+` = ? LIMIT 1;`, k).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PointLookup returns the rows for the given keys in one query. Keys that are not mirrored
// are simply absent from the result; compare lengths to detect misses.
func (d *DB) PointLookup(ctx context.Context, kind domain.Kind, keys []key.Key) ([]Row, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		s := k.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		args = append(args, s)
	}
	if len(args) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	query := `SELECT ` + t.cols + ` FROM ` + t.name +
		` WHERE ` + t.keyCol + ` IN (` + placeholders + `) ORDER BY ` + t.keyCol + `;`

	return d.query(ctx, kind, query, args...)
}

// PrefixLookup returns every row strictly below prefix in the hierarchy.
func (d *DB) PrefixLookup(ctx context.Context, kind domain.Kind, prefix key.Key) ([]Row, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	if err := prefix.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT ` + t.cols + ` FROM ` + t.name +
		` WHERE instr(` + t.keyCol + `, ?) = 1 ORDER BY ` + t.keyCol + `;`

	return d.query(ctx, kind, query, prefix.Prefix())
}

func (d *DB) All(ctx context.Context, kind domain.Kind) ([]Row, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	return d.query(ctx, kind, `SELECT `+t.cols+` FROM `+t.name+` ORDER BY `+t.keyCol+`;`)
}

// Delete removes the rows mirroring the given remote resource.
func (d *DB) Delete(ctx context.Context, kind domain.Kind, resourceName string) (int64, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM `+t.name+` WHERE `+t.nameCol+` = ?;`, resourceName)
	if err != nil {
		return 0, errors.Wrapf(err, "delete %s %s", kind, resourceName)
	}
	n, _ := res.RowsAffected()

	if n > 0 {
		if err := touch(ctx, tx, t.name, d.now()); err != nil {
			return 0, err
		}
	}
	return n, tx.Commit()
}

func (d *DB) query(ctx context.Context, kind domain.Kind, query string, args ...any) ([]Row, error) {
	rows, err := d.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", kind)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r := Row{Kind: kind}
		var suspended int
		var created int64
		if err := rows.Scan(
			&r.Key,
			&r.ExternalID,
			&r.Name,
			&r.LanguageCode,
			&r.CompanyName,
			&r.TenantName,
			&r.ProjectID,
			&suspended,
			&created,
		); err != nil {
			return nil, err
		}
		r.Suspended = suspended != 0
		r.CreateTime = time.Unix(created, 0).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
