package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// migrationOrder lists the files under migrations/ in application order.
var migrationOrder = []string{"001_initial"}

// SQLStore is a Store backed by a single sqlite file.
type SQLStore struct {
	db *sql.DB
}

// Open opens the sqlite database at path and applies pending migrations.
func Open(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("journal: failed to open database: %w", err)
	}
	// One writer at a time; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: failed to ping database: %w", err)
	}

	s := &SQLStore{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema applies every migration not yet recorded.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("journal: failed to create migrations table: %w", err)
	}

	for _, version := range migrationOrder {
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
		if err != nil {
			return fmt.Errorf("journal: failed to check migration %s: %w", version, err)
		}
		if count > 0 {
			continue
		}

		migrationSQL, err := migrations.ReadFile("migrations/" + version + ".sql")
		if err != nil {
			return fmt.Errorf("journal: failed to read migration %s: %w", version, err)
		}
		if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
			return fmt.Errorf("journal: failed to execute migration %s: %w", version, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("journal: failed to record migration %s: %w", version, err)
		}
	}
	return nil
}

// Record inserts rec, assigning an id when it has none.
func (s *SQLStore) Record(ctx context.Context, rec Record) error {
	rec = prepare(rec)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles (id, session, run, job, inputs, outputs, mismatches, started_at, elapsed_ns, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Session, rec.Run, rec.Job,
		encodeSet(rec.Inputs), encodeSet(rec.Outputs),
		rec.Mismatches, rec.Started, int64(rec.Elapsed), rec.Error,
	)
	if err != nil {
		return fmt.Errorf("journal: insert cycle: %w", err)
	}
	return nil
}

const selectCycles = `SELECT id, session, run, job, inputs, outputs, mismatches, started_at, elapsed_ns, error FROM cycles`

// Get returns the record with id, or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, selectCycles+" WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// Recent returns up to limit records, newest first.
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, selectCycles+" ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query cycles: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec             Record
		inputs, outputs string
		elapsed         int64
	)
	err := sc.Scan(&rec.ID, &rec.Session, &rec.Run, &rec.Job, &inputs, &outputs,
		&rec.Mismatches, &rec.Started, &elapsed, &rec.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("journal: scan cycle: %w", err)
	}
	rec.Elapsed = time.Duration(elapsed)
	rec.Started = rec.Started.UTC()
	if rec.Inputs, err = decodeSet(inputs); err != nil {
		return Record{}, fmt.Errorf("journal: decode inputs of %s: %w", rec.ID, err)
	}
	if rec.Outputs, err = decodeSet(outputs); err != nil {
		return Record{}, fmt.Errorf("journal: decode outputs of %s: %w", rec.ID, err)
	}
	return rec, nil
}
