package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/biobot-lab/biobot/internal/errors"
)

const schema = `CREATE TABLE IF NOT EXISTS experiments (
	idx INTEGER PRIMARY KEY,
	id  TEXT NOT NULL UNIQUE
)`

// SQLiteRegistry stores one row per experiment. Appends run in an immediate
// transaction, which takes the database write lock before the read.
type SQLiteRegistry struct {
	db   *sql.DB
	path string
}

// NewSQLiteRegistry opens (creating if needed) the database at path.
func NewSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	dsn := "file:" + path + "?_txlock=immediate&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		// A file that exists but is not a usable database is corrupt.
		return nil, errors.NewRegistryCorruptError(path, err)
	}
	return &SQLiteRegistry{db: db, path: path}, nil
}

func (r *SQLiteRegistry) Location() string { return r.path }

func (r *SQLiteRegistry) Close() error { return r.db.Close() }

func (r *SQLiteRegistry) Load(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM experiments ORDER BY idx`)
	if err != nil {
		return nil, fmt.Errorf("select experiments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewRegistryCorruptError(r.path, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRegistry) Append(ctx context.Context, id string) (retIdx int, retErr error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return -1, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM experiments WHERE id = ?`, id).Scan(&exists); err != nil {
		return -1, fmt.Errorf("check experiment: %w", err)
	}
	if exists > 0 {
		return -1, errors.NewAlreadyExistsError("experiment", id)
	}

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(idx) + 1, 0) FROM experiments`).Scan(&next); err != nil {
		return -1, fmt.Errorf("next index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO experiments (idx, id) VALUES (?, ?)`, next, id); err != nil {
		return -1, fmt.Errorf("insert experiment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return -1, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func (r *SQLiteRegistry) Resolve(ctx context.Context, index int) (string, error) {
	if index < 0 {
		return "", errors.NewNotFoundError("experiment", strconv.Itoa(index))
	}
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM experiments WHERE idx = ?`, index).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.NewNotFoundError("experiment", strconv.Itoa(index))
	}
	if err != nil {
		return "", fmt.Errorf("resolve experiment: %w", err)
	}
	return id, nil
}

func (r *SQLiteRegistry) Len(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM experiments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count experiments: %w", err)
	}
	return n, nil
}
