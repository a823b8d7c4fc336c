// Package audit persists the retouch task log in SQLite.
package audit

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/retouch"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("audit: task not found")

const schema = `
CREATE TABLE IF NOT EXISTS repair_tasks (
	id          TEXT PRIMARY KEY,
	tool        TEXT NOT NULL,
	source_x    REAL NOT NULL,
	source_y    REAL NOT NULL,
	target_x    REAL NOT NULL,
	target_y    REAL NOT NULL,
	radius      REAL NOT NULL,
	feathering  REAL NOT NULL,
	strength    REAL NOT NULL,
	region_x0   INTEGER NOT NULL,
	region_y0   INTEGER NOT NULL,
	region_x1   INTEGER NOT NULL,
	region_y1   INTEGER NOT NULL,
	mask        BLOB,
	before      BLOB,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS repair_tasks_created ON repair_tasks(created_at);
`

// Store is a SQLite-backed retouch.Recorder.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// one connection keeps :memory: databases shared and writes serialised
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

func encodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Record implements retouch.Recorder.
func (s *Store) Record(t retouch.RepairTask) error {
	return s.RecordContext(context.Background(), t)
}

// RecordContext inserts t.
func (s *Store) RecordContext(ctx context.Context, t retouch.RepairTask) error {
	var mask, before []byte
	var err error
	if t.Mask != nil {
		if mask, err = encodePNG(t.Mask); err != nil {
			return fmt.Errorf("encode mask: %w", err)
		}
	}
	if t.Before != nil {
		if before, err = encodePNG(t.Before); err != nil {
			return fmt.Errorf("encode before: %w", err)
		}
	}
	c, r := t.Context, t.Region
	_, err = s.db.ExecContext(ctx, `INSERT INTO repair_tasks
		(id, tool, source_x, source_y, target_x, target_y, radius, feathering, strength,
		 region_x0, region_y0, region_x1, region_y1, mask, before, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Tool), c.SourceX, c.SourceY, c.TargetX, c.TargetY, c.Radius, c.Feathering, c.Strength,
		r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, mask, before, t.Timestamp.UnixMicro())
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return nil
}

const selectCols = `id, tool, source_x, source_y, target_x, target_y, radius, feathering, strength,
	region_x0, region_y0, region_x1, region_y1, mask, before, created_at`

type scanner interface{ Scan(dest ...any) error }

func scanTask(row scanner) (retouch.RepairTask, error) {
	var (
		t         retouch.RepairTask
		tool      string
		x0, y0    int
		x1, y1    int
		mask, pre []byte
		created   int64
	)
	c := &t.Context
	if err := row.Scan(&t.ID, &tool, &c.SourceX, &c.SourceY, &c.TargetX, &c.TargetY, &c.Radius, &c.Feathering, &c.Strength,
		&x0, &y0, &x1, &y1, &mask, &pre, &created); err != nil {
		return t, err
	}
	t.Tool = retouch.Tool(tool)
	t.Region = image.Rect(x0, y0, x1, y1)
	t.Timestamp = time.UnixMicro(created)
	if len(mask) > 0 {
		m, err := png.Decode(bytes.NewReader(mask))
		if err != nil {
			return t, fmt.Errorf("task %s mask: %w", t.ID, err)
		}
		a := image.NewAlpha(m.Bounds())
		for y := m.Bounds().Min.Y; y < m.Bounds().Max.Y; y++ {
			for x := m.Bounds().Min.X; x < m.Bounds().Max.X; x++ {
				_, _, _, al := m.At(x, y).RGBA()
				a.Pix[a.PixOffset(x, y)] = uint8(al >> 8)
			}
		}
		t.Mask = a
	}
	if len(pre) > 0 {
		img, err := raster.DecodeBytes(pre)
		if err != nil {
			return t, fmt.Errorf("task %s before: %w", t.ID, err)
		}
		t.Before = img
	}
	return t, nil
}

// Get loads one task.
func (s *Store) Get(ctx context.Context, id string) (retouch.RepairTask, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM repair_tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, err
}

// List returns up to limit tasks, newest first. A non-positive limit
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]retouch.RepairTask, error) {
	q := `SELECT ` + selectCols + ` FROM repair_tasks ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	var out []retouch.RepairTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Count reports how many tasks of tool are stored; an empty tool counts all.
func (s *Store) Count(ctx context.Context, tool retouch.Tool) (int, error) {
	var n int
	var err error
	if tool == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM repair_tasks`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM repair_tasks WHERE tool = ?`, string(tool)).Scan(&n)
	}
	return n, err
}
