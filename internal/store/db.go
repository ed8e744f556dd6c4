package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

var ErrLocked = errors.New("mirror database is in use by another process")

type DB struct {
	Pool *sql.DB

	// Created lists the tables Migrate had to create on open.
	Created []string

	lock *flock.Flock
	now  func() time.Time
}

func Open(path string) (*DB, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "lock mirror")
	}
	if !locked {
		return nil, ErrLocked
	}

	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, errors.Wrap(err, "open mirror")
	}

	// one writer, one connection: every read and write is serialized through it
	pool.SetMaxOpenConns(1)
	pool.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		_ = lock.Unlock()
		return nil, errors.Wrap(err, "ping mirror")
	}

	created, err := Migrate(pool)
	if err != nil {
		_ = pool.Close()
		_ = lock.Unlock()
		return nil, errors.Wrap(err, "migrate mirror")
	}

	return &DB{Pool: pool, Created: created, lock: lock, now: time.Now}, nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	err := d.Pool.Close()
	if d.lock != nil {
		_ = d.lock.Unlock()
	}
	return err
}

// Checkpoint folds the WAL back into the main database file.
func (d *DB) Checkpoint(ctx context.Context) error {
	_, err := d.Pool.ExecContext(ctx, `PRAGMA wal_checkpoint(FULL);`)
	return err
}
