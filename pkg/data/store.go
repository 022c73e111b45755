package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"
)

const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"
)

var (
	// ErrNotFound is returned when no work matches a lookup.
	ErrNotFound = errors.New("work not found")
	// ErrConflict is returned when a write would give a slug or identifier to a second title.
	ErrConflict = errors.New("store conflict")
	// ErrInvalid is returned for works missing a required field.
	ErrInvalid = errors.New("invalid work")
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS works (
	identifier TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL UNIQUE,
	slug       TEXT UNIQUE,
	creators   TEXT NOT NULL,
	status     TEXT NOT NULL
)`

const selectWork = `SELECT identifier, name, slug, creators, status FROM works`

// Repository is the metadata store. It is owned by a single caller; the pool
// is limited to one connection so writes are serialized.
type Repository struct {
	db     *sql.DB
	driver string
	path   string
}

// Open opens (creating if needed) the store at path using the given driver.
func Open(ctx context.Context, driver, path string) (*Repository, error) {
	switch driver {
	case "":
		driver = DriverDuckDB
	case DriverDuckDB, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}
	db.SetMaxOpenConns(1)

	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}

	repo := &Repository{db: db, driver: driver, path: path}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return repo, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Path returns the database file location.
func (r *Repository) Path() string {
	return r.path
}

// Upsert stores work keyed by its name. An existing row keeps its identity and
// takes the incoming identifier, slug, creators and status.
func (r *Repository) Upsert(ctx context.Context, work *Work) (*Work, error) {
	if work == nil {
		return nil, fmt.Errorf("%w: nil work", ErrInvalid)
	}
	if work.Name == "" || work.Identifier == "" || work.Slug == "" {
		return nil, fmt.Errorf("%w: name, identifier and slug are required", ErrInvalid)
	}
	incoming := *work
	if incoming.Status == "" {
		incoming.Status = StatusUnknown
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var owner string
	err = tx.QueryRowContext(ctx,
		`SELECT name FROM works WHERE (slug = ? OR identifier = ?) AND name <> ? LIMIT 1`,
		incoming.Slug, incoming.Identifier, incoming.Name,
	).Scan(&owner)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: slug %q or identifier %q already belongs to %q",
			ErrConflict, incoming.Slug, incoming.Identifier, owner)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("check conflicts: %w", err)
	}

	existing, err := scanWork(tx.QueryRowContext(ctx, selectWork+` WHERE name = ?`, incoming.Name))
	switch {
	case errors.Is(err, ErrNotFound):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO works (identifier, name, slug, creators, status) VALUES (?, ?, ?, ?, ?)`,
			incoming.Identifier, incoming.Name, incoming.Slug, incoming.Creators, string(incoming.Status),
		)
		if err != nil {
			return nil, r.wrapWriteErr("insert work", err)
		}
	case err != nil:
		return nil, err
	default:
		if err := updateChanged(ctx, tx, existing, &incoming); err != nil {
			return nil, r.wrapWriteErr("update work", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, r.wrapWriteErr("commit upsert", err)
	}
	return &incoming, nil
}

// updateChanged only touches columns whose value differs, which keeps repeated
// identical upserts from writing at all.
func updateChanged(ctx context.Context, tx *sql.Tx, existing, incoming *Work) error {
	var (
		sets []string
		args []any
	)
	if existing.Identifier != incoming.Identifier {
		sets = append(sets, "identifier = ?")
		args = append(args, incoming.Identifier)
	}
	if existing.Slug != incoming.Slug {
		sets = append(sets, "slug = ?")
		args = append(args, incoming.Slug)
	}
	if existing.Creators != incoming.Creators {
		sets = append(sets, "creators = ?")
		args = append(args, incoming.Creators)
	}
	if existing.Status != incoming.Status {
		sets = append(sets, "status = ?")
		args = append(args, string(incoming.Status))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, incoming.Name)
	_, err := tx.ExecContext(ctx, `UPDATE works SET `+strings.Join(sets, ", ")+` WHERE name = ?`, args...)
	return err
}

// GetBySlug returns the work stored under slug or ErrNotFound.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Work, error) {
	work, err := scanWork(r.db.QueryRowContext(ctx, selectWork+` WHERE slug = ?`, slug))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, slug)
	}
	return work, err
}

// ListByStatus returns every work with the given status ordered by name.
func (r *Repository) ListByStatus(ctx context.Context, status Status) ([]*Work, error) {
	return r.query(ctx, selectWork+` WHERE status = ? ORDER BY name`, string(status))
}

// List returns the whole library ordered by name.
func (r *Repository) List(ctx context.Context) ([]*Work, error) {
	return r.query(ctx, selectWork+` ORDER BY name`)
}

// DeleteBySlug removes the work stored under slug. Deleting a missing slug is a no-op.
func (r *Repository) DeleteBySlug(ctx context.Context, slug string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM works WHERE slug = ?`, slug); err != nil {
		return fmt.Errorf("delete work %q: %w", slug, err)
	}
	return nil
}

// Reset drops and recreates the schema.
func (r *Repository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS works`); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return tx.Commit()
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]*Work, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query works: %w", err)
	}
	defer rows.Close()

	var works []*Work
	for rows.Next() {
		work, err := scanWork(rows)
		if err != nil {
			return nil, err
		}
		works = append(works, work)
	}
	return works, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWork(row rowScanner) (*Work, error) {
	var (
		work   Work
		slug   sql.NullString
		status string
	)
	err := row.Scan(&work.Identifier, &work.Name, &slug, &work.Creators, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan work: %w", err)
	}
	work.Slug = slug.String
	work.Status = Status(status)
	return &work, nil
}

func (r *Repository) wrapWriteErr(op string, err error) error {
	if isConstraintViolation(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConstraintViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "constraint error")
}
