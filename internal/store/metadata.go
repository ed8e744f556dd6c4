package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-faster/errors"

	"ctsmirror/internal/domain"
)

// SyncTime is the last time the table for kind was written or audited. Zero if never.
func (d *DB) SyncTime(ctx context.Context, kind domain.Kind) (time.Time, error) {
	t, err := tableFor(kind)
	if err != nil {
		return time.Time{}, err
	}

	var ts int64
	err = d.Pool.QueryRowContext(ctx,
		`SELECT sync_time FROM metadata WHERE table_name = ? LIMIT 1;`,
		t.name,
	).Scan(&ts)

	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(ts, 0).UTC(), nil
}

func (d *DB) Touch(ctx context.Context, kind domain.Kind) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := touch(ctx, tx, t.name, d.now()); err != nil {
		return err
	}
	return tx.Commit()
}

func touch(ctx context.Context, tx *sql.Tx, tableName string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO metadata(table_name, sync_time)
VALUES(?, ?)
ON CONFLICT(table_name) DO UPDATE SET
  sync_time = excluded.sync_time;
`, tableName, now.UTC().Unix())
	if err != nil {
		return errors.Wrapf(err, "stamp %s", tableName)
	}
	return nil
}
