package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect captures the differences between the SQL backends.
type Dialect struct {
	Driver      string
	placeholder func(n int) string
	schema      string
}

// Postgres is the dialect for github.com/lib/pq.
var Postgres = Dialect{
	Driver:      "postgres",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	schema: `
		CREATE TABLE IF NOT EXISTS investments (
			id          TEXT        PRIMARY KEY,
			title       TEXT        NOT NULL,
			slug        TEXT        NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_investments_slug ON investments(slug);

		CREATE TABLE IF NOT EXISTS investment_details (
			id                       TEXT          PRIMARY KEY,
			investment_id            TEXT          NOT NULL REFERENCES investments(id),
			minimum_investment       TEXT,
			minimum_investment_value NUMERIC(18,4),
			annual_yield             TEXT,
			annual_yield_value       NUMERIC(10,4),
			due_date                 TEXT,
			extraction_date          TIMESTAMPTZ,
			created_at               TIMESTAMPTZ   NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_details_investment ON investment_details(investment_id);
		CREATE INDEX IF NOT EXISTS idx_details_created    ON investment_details(created_at);
	`,
}

// SQLite is the dialect for modernc.org/sqlite.
var SQLite = Dialect{
	Driver:      "sqlite",
	placeholder: func(int) string { return "?" },
	schema: `
		PRAGMA foreign_keys = ON;

		CREATE TABLE IF NOT EXISTS investments (
			id          TEXT     PRIMARY KEY,
			title       TEXT     NOT NULL,
			slug        TEXT     NOT NULL,
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_investments_slug ON investments(slug);

		CREATE TABLE IF NOT EXISTS investment_details (
			id                       TEXT     PRIMARY KEY,
			investment_id            TEXT     NOT NULL REFERENCES investments(id),
			minimum_investment       TEXT,
			minimum_investment_value NUMERIC,
			annual_yield             TEXT,
			annual_yield_value       NUMERIC,
			due_date                 TEXT,
			extraction_date          DATETIME,
			created_at               DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_details_investment ON investment_details(investment_id);
		CREATE INDEX IF NOT EXISTS idx_details_created    ON investment_details(created_at);
	`,
}

// SQLStore persists investments and their details in a relational database.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenPostgres connects to PostgreSQL, waiting for it to accept connections,
// and runs schema migrations.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open(Postgres.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	return newSQLStore(ctx, db, Postgres)
}

// OpenSQLite opens (or creates) the SQLite database at path and runs schema
// migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open(SQLite.Driver, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// PRAGMA foreign_keys is per connection.
	db.SetMaxOpenConns(1)

	return newSQLStore(ctx, db, SQLite)
}

func newSQLStore(ctx context.Context, db *sql.DB, d Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", d.Driver, err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.schema)
	return err
}

func (s *SQLStore) FindOne(ctx context.Context, collection, field string, value any) (*Ref, error) {
	if err := checkField(collection, field); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT id FROM %s WHERE %s = %s ORDER BY created_at, id LIMIT 1",
		collection, field, s.dialect.placeholder(1))

	var id string
	err := s.db.QueryRowContext(ctx, query, value).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: find %s by %s: %w", s.dialect.Driver, collection, field, err)
	}
	return &Ref{Collection: collection, ID: id}, nil
}

func (s *SQLStore) NewRef(collection string) Ref {
	return Ref{Collection: collection, ID: uuid.NewString()}
}

func (s *SQLStore) Batch() Batch {
	return &sqlBatch{store: s}
}

func (s *SQLStore) Count(ctx context.Context, collection string) (int, error) {
	if _, ok := collectionFields[collection]; !ok {
		return 0, ErrUnknownCollection
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: count %s: %w", s.dialect.Driver, collection, err)
	}
	return n, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type sqlBatch struct {
	store *SQLStore
	ops   []op
}

func (b *sqlBatch) Set(ref Ref, fields Fields) {
	b.ops = append(b.ops, op{kind: opSet, ref: ref, fields: fields})
}

func (b *sqlBatch) Update(ref Ref, fields Fields) {
	b.ops = append(b.ops, op{kind: opUpdate, ref: ref, fields: fields})
}

func (b *sqlBatch) Len() int { return len(b.ops) }

// Commit applies every staged write in one transaction.
func (b *sqlBatch) Commit(ctx context.Context) error {
	driver := b.store.dialect.Driver
	for _, o := range b.ops {
		if err := checkFields(o.ref.Collection, o.fields); err != nil {
			return fmt.Errorf("%s: commit %s/%s: %w", driver, o.ref.Collection, o.ref.ID, err)
		}
	}

	tx, err := b.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", driver, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, o := range b.ops {
		if o.kind == opUpdate && len(sortedNames(o.fields)) == 0 {
			continue
		}
		query, args := b.statement(o)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%s: write %s/%s: %w", driver, o.ref.Collection, o.ref.ID, err)
		}
		if o.kind == opUpdate {
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return fmt.Errorf("%s: update %s/%s: document not found", driver, o.ref.Collection, o.ref.ID)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", driver, err)
	}
	return nil
}

func (b *sqlBatch) statement(o op) (string, []any) {
	ph := b.store.dialect.placeholder
	names := sortedNames(o.fields)

	switch o.kind {
	case opSet:
		cols := append([]string{"id"}, names...)
		marks := make([]string, len(cols))
		args := make([]any, 0, len(cols))
		args = append(args, o.ref.ID)
		for i := range cols {
			marks[i] = ph(i + 1)
		}
		for _, n := range names {
			args = append(args, o.fields[n])
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			o.ref.Collection, strings.Join(cols, ", "), strings.Join(marks, ", ")), args

	default:
		sets := make([]string, len(names))
		args := make([]any, 0, len(names)+1)
		for i, n := range names {
			sets[i] = fmt.Sprintf("%s = %s", n, ph(i+1))
			args = append(args, o.fields[n])
		}
		args = append(args, o.ref.ID)
		return fmt.Sprintf("UPDATE %s SET %s WHERE id = %s",
			o.ref.Collection, strings.Join(sets, ", "), ph(len(names)+1)), args
	}
}

func sortedNames(fields Fields) []string {
	names := make([]string, 0, len(fields))
	for n := range fields {
		if n == "id" {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
