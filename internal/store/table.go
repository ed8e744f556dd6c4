package store

import (
	"database/sql"
	"fmt"

	"github.com/go-faster/errors"

	"ctsmirror/internal/domain"
)

const schemaVersion = 1

type table struct {
	name    string
	keyCol  string
	nameCol string
	ddl     string

	// cols is the select list in Row scan order:
	// key, external_id, name, language_code, company_name, tenant_name, project_id, suspended, create_time
	cols string
}

var metadataTable = table{
	name: "metadata",
	ddl: `
CREATE TABLE IF NOT EXISTS metadata (
  table_name TEXT PRIMARY KEY,
  sync_time INTEGER NOT NULL DEFAULT 0
);`,
}

var tables = map[domain.Kind]table{
	domain.KindTenant: {
		name:    "tenant",
		keyCol:  "tenant_key",
		nameCol: "tenant_name",
		ddl: `
CREATE TABLE IF NOT EXISTS tenant (
  tenant_key TEXT PRIMARY KEY,
  external_id TEXT NOT NULL,
  tenant_name TEXT NOT NULL,
  project_id TEXT NOT NULL,
  suspended INTEGER NOT NULL DEFAULT 0,
  create_time INTEGER NOT NULL
);`,
		cols: `tenant_key, external_id, tenant_name, '', '', '', project_id, suspended, create_time`,
	},
	domain.KindCompany: {
		name:    "company",
		keyCol:  "company_key",
		nameCol: "company_name",
		ddl: `
CREATE TABLE IF NOT EXISTS company (
  company_key TEXT PRIMARY KEY,
  external_id TEXT NOT NULL,
  company_name TEXT NOT NULL,
  tenant_name TEXT NOT NULL DEFAULT '',
  project_id TEXT NOT NULL,
  suspended INTEGER NOT NULL DEFAULT 0,
  create_time INTEGER NOT NULL
);`,
		cols: `company_key, external_id, company_name, '', '', COALESCE(tenant_name, ''), project_id, suspended, create_time`,
	},
	domain.KindJob: {
		name:    "job",
		keyCol:  "job_key",
		nameCol: "job_name",
		ddl: `
CREATE TABLE IF NOT EXISTS job (
  job_key TEXT PRIMARY KEY,
  external_id TEXT NOT NULL,
  language_code TEXT NOT NULL,
  job_name TEXT NOT NULL,
  company_name TEXT NOT NULL,
  tenant_name TEXT NOT NULL DEFAULT '',
  project_id TEXT NOT NULL,
  suspended INTEGER NOT NULL DEFAULT 0,
  create_time INTEGER NOT NULL
);`,
		cols: `job_key, external_id, job_name, language_code, company_name, COALESCE(tenant_name, ''), project_id, suspended, create_time`,
	},
}

// schemaOrder is creation order; metadata first so the others can be stamped.
var schemaOrder = []table{
	metadataTable,
	tables[domain.KindTenant],
	tables[domain.KindCompany],
	tables[domain.KindJob],
}

func tableFor(kind domain.Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, errors.Errorf("no mirror table for kind %q", kind)
	}
	return t, nil
}

// Migrate checks every expected table and creates the missing ones.
// It returns the names of the tables it created.
func Migrate(db *sql.DB) ([]string, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var created []string
	for _, t := range schemaOrder {
		ok, err := tableExists(tx, t.name)
		if err != nil {
			return nil, errors.Wrapf(err, "check table %s", t.name)
		}
		if ok {
			continue
		}
		if _, err := tx.Exec(t.ddl); err != nil {
			return nil, errors.Wrapf(err, "create table %s", t.name)
		}
		created = append(created, t.name)
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_company_name
ON company(company_name);
`); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_job_name
ON job(job_name);
`); err != nil {
		return nil, err
	}

	// Mirrors written before jobs were tracked per locale have no language_code.
	if !columnExists(tx, "job", "language_code") {
		if _, err := tx.Exec(`ALTER TABLE job ADD COLUMN language_code TEXT NOT NULL DEFAULT '';`); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion)); err != nil {
		return nil, err
	}

	return created, tx.Commit()
}

func tableExists(tx *sql.Tx, name string) (bool, error) {
	var one int
	err := tx.QueryRow(`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ? LIMIT 1;`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func columnExists(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, table, col string) bool {
	query := fmt.Sprintf(`
SELECT 1
FROM pragma_table_info('%s')
WHERE name = ?
LIMIT 1;
`, table)

	var one int
	err := q.QueryRow(query, col).Scan(&one)
	return err == nil
}
