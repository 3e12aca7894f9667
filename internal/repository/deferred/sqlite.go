package deferred

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/kailas-cloud/solango/internal/domain"
	domdef "github.com/kailas-cloud/solango/internal/domain/deferred"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS deferred_records (
	id         TEXT PRIMARY KEY,
	method     TEXT NOT NULL,
	record_key TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS deferred_records_created ON deferred_records (created_at, id);
CREATE TABLE IF NOT EXISTS index_queue (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	type_key   TEXT NOT NULL,
	record_id  TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

// SQLite stores records in a single table of a SQLite database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// WithClock overrides the timestamp source.
func (s *SQLite) WithClock(now func() time.Time) *SQLite {
	s.now = now
	return s
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Enqueue stores a new record.
func (s *SQLite) Enqueue(
	ctx context.Context, method domdef.Method, payload, docKey, errMsg string,
) (domdef.Record, error) {
	rec, err := domdef.New(method, payload, docKey, errMsg, s.now())
	if err != nil {
		return domdef.Record{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deferred_records (id, method, record_key, payload, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Method), rec.DocKey, rec.Payload, rec.Error,
		rec.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return domdef.Record{}, fmt.Errorf("insert deferred: %w", err)
	}
	return rec, nil
}

// List returns all records oldest first.
func (s *SQLite) List(ctx context.Context) ([]domdef.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, method, record_key, payload, error, created_at FROM deferred_records`)
	if err != nil {
		return nil, fmt.Errorf("query deferred: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domdef.Record
	for rows.Next() {
		var rec domdef.Record
		var method, created string
		if err := rows.Scan(&rec.ID, &method, &rec.DocKey, &rec.Payload, &rec.Error, &created); err != nil {
			return nil, fmt.Errorf("scan deferred: %w", err)
		}
		if rec.Method, err = domdef.ParseMethod(method); err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("record %s: parse created_at: %w", rec.ID, err)
		}
		rec.Timestamp = ts.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deferred: %w", err)
	}
	// RFC3339Nano text does not sort chronologically.
	slices.SortFunc(out, domdef.Compare)
	return out, nil
}

// Remove deletes a record.
func (s *SQLite) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM deferred_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// Update replaces the error message of a record.
func (s *SQLite) Update(ctx context.Context, id, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE deferred_records SET error = ? WHERE id = ?`, errMsg, id)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s: %w", id, domain.ErrDeferredNotFound)
	}
	return nil
}

// Push queues a record key. Ids come from the table sequence, so they
// order the queue without relying on clock resolution.
func (s *SQLite) Push(ctx context.Context, typeKey, recordID string) (domdef.Pending, error) {
	p, err := domdef.NewPending(typeKey, recordID, s.now())
	if err != nil {
		return domdef.Pending{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO index_queue (type_key, record_id, created_at) VALUES (?, ?, ?)`,
		p.TypeKey, p.RecordID, p.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return domdef.Pending{}, fmt.Errorf("insert queued key: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domdef.Pending{}, fmt.Errorf("insert queued key: %w", err)
	}
	p.ID = strconv.FormatInt(id, 10)
	return p, nil
}

// Pending returns the queued keys in insertion order.
func (s *SQLite) Pending(ctx context.Context) ([]domdef.Pending, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type_key, record_id, created_at FROM index_queue ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query queued keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domdef.Pending
	for rows.Next() {
		var (
			p       domdef.Pending
			id      int64
			created string
		)
		if err := rows.Scan(&id, &p.TypeKey, &p.RecordID, &created); err != nil {
			return nil, fmt.Errorf("scan queued key: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("queued key %d: parse created_at: %w", id, err)
		}
		p.ID, p.Timestamp = strconv.FormatInt(id, 10), ts.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queued keys: %w", err)
	}
	return out, nil
}

// Ack removes queued keys by id.
func (s *SQLite) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return fmt.Errorf("ack queued key %q: %w", id, domain.ErrInvalidKey)
		}
		args[i] = n
	}
	q := `DELETE FROM index_queue WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("ack %d queued keys: %w", len(ids), err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
