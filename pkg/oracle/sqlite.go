// Package oracle keeps a second copy of the world's boxes in SQLite and
// answers overlap queries with plain SQL, so the spatial index can be
// checked against an independent implementation.
package oracle

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"spatialdb/pkg/core"
	"spatialdb/pkg/core/spatial"
)

var axes = [3]string{"x", "y", "z"}

type SQLiteOracle struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// Open opens the oracle at path; ":memory:" keeps it in memory.
func Open(path string, logger *slog.Logger) (*SQLiteOracle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	query := `
	CREATE TABLE IF NOT EXISTS bodies (
		id   TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		xmin REAL, xmax REAL,
		ymin REAL, ymax REAL,
		zmin REAL, zmax REAL
	);
	CREATE INDEX IF NOT EXISTS bodies_x ON bodies (xmin, xmax);`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("init table: %w", err)
	}

	if _, err := db.Exec(`PRAGMA synchronous = OFF;`); err != nil {
		logger.Warn("failed to set PRAGMA", "err", err)
	}
	return &SQLiteOracle{db: db, logger: logger.With("component", "Oracle")}, nil
}

const upsert = "INSERT OR REPLACE INTO bodies (id, kind, xmin, xmax, ymin, ymax, zmin, zmax) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"

func row(b *core.Body) []any {
	return []any{b.ID, b.Kind, b.Min(0), b.Max(0), b.Min(1), b.Max(1), b.Min(2), b.Max(2)}
}

func (o *SQLiteOracle) Put(b *core.Body) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.db.Exec(upsert, row(b)...)
	return err
}

// BatchPut writes all bodies in one transaction.
func (o *SQLiteOracle) BatchPut(bodies []*core.Body) error {
	if len(bodies) == 0 {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	tx, err := o.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(upsert)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bodies {
		if _, err := stmt.Exec(row(b)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("put %s: %w", b.ID, err)
		}
	}
	return tx.Commit()
}

func (o *SQLiteOracle) Remove(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.db.Exec("DELETE FROM bodies WHERE id = ?", id)
	return err
}

func (o *SQLiteOracle) Count() (int, error) {
	var n int
	err := o.db.QueryRow("SELECT COUNT(*) FROM bodies").Scan(&n)
	return n, err
}

// Overlapping returns, in id order, the ids of every body intersecting the
// closed box [lo, hi] on its first len(lo) axes.
func (o *SQLiteOracle) Overlapping(lo, hi []float64) ([]string, error) {
	if len(lo) != len(hi) || len(lo) == 0 || len(lo) > len(axes) {
		return nil, fmt.Errorf("overlapping: bad box with %d/%d bounds", len(lo), len(hi))
	}
	conds := make([]string, 0, 2*len(lo))
	args := make([]any, 0, 2*len(lo))
	for i := range lo {
		conds = append(conds, axes[i]+"min <= ?", axes[i]+"max >= ?")
		args = append(args, hi[i], lo[i])
	}
	query := "SELECT id FROM bodies WHERE " + strings.Join(conds, " AND ") + " ORDER BY id ASC"

	o.mu.Lock()
	defer o.mu.Unlock()
	rows, err := o.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Sync replaces the oracle's contents with the world's bodies.
func (o *SQLiteOracle) Sync(w *core.World) error {
	o.mu.Lock()
	_, err := o.db.Exec("DELETE FROM bodies")
	o.mu.Unlock()
	if err != nil {
		return err
	}
	return o.BatchPut(w.Bodies(0, 0))
}

// ErrMismatch is returned by Check when the world and the oracle disagree.
var ErrMismatch = errors.New("oracle mismatch")

// Check runs the same overlap query against w and the oracle.
func (o *SQLiteOracle) Check(w *core.World, lo, hi []float64) error {
	want, err := o.Overlapping(lo, hi)
	if err != nil {
		return err
	}
	where := spatial.Overlaps(core.Space(len(lo)), lo, hi)
	bodies, err := w.Query(where, 0, 0)
	if err != nil {
		return err
	}
	got := make([]string, len(bodies))
	for i, b := range bodies {
		got[i] = b.ID
	}
	if !slices.Equal(got, want) {
		o.logger.Error("query mismatch", "lo", lo, "hi", hi, "world", len(got), "oracle", len(want))
		return fmt.Errorf("box %v..%v: world %d ids, oracle %d ids: %w", lo, hi, len(got), len(want), ErrMismatch)
	}
	return nil
}

func (o *SQLiteOracle) Close() error {
	return o.db.Close()
}
