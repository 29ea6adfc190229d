/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"synthbox/internal/bbox"
	applog "synthbox/internal/log"
	"synthbox/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	CatalogFileName = "catalog.sqlite"

	// schemaVersion tracks the catalog schema.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2

	// fixed width so timestamps sort as text
	tsLayout = "2006-01-02T15:04:05.000000000Z"
)

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Catalog records generation runs and the images and labels they produced.
type Catalog struct {
	db      *sql.DB
	dialect dialect
}

// CatalogPath returns the default SQLite catalog file for a layout.
func CatalogPath(l Layout) string {
	return filepath.Join(l.StateDir(), CatalogFileName)
}

// IsPostgresDSN reports whether dsn selects the Postgres driver.
func IsPostgresDSN(dsn string) bool {
	d := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://")
}

// WithPassword sets the password of a Postgres URL DSN. Other DSNs and an
// empty password are returned unchanged.
func WithPassword(dsn, password string) (string, error) {
	if password == "" || !IsPostgresDSN(dsn) {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	name := ""
	if u.User != nil {
		name = u.User.Username()
	}
	u.User = url.UserPassword(name, password)
	return u.String(), nil
}

// OpenCatalog opens the catalog at dsn: a postgres:// URL uses pgx, anything
// else is taken as an SQLite file path. The schema is created and migrated.
func OpenCatalog(ctx context.Context, dsn string) (*Catalog, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "catalog_open")
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("catalog dsn is required")
	}
	c := &Catalog{}
	var err error
	if IsPostgresDSN(dsn) {
		c.dialect = dialectPostgres
		c.db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := c.db.PingContext(ctx); err != nil {
			_ = c.db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
		// Convert to forward slashes for the SQLite URI.
		uri := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(dsn))
		c.db, err = sql.Open("sqlite", uri)
		if err != nil {
			l.Error("sqlite open failed", slog.Any("err", err))
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// Set reasonable connection pool limits for embedded usage.
		c.db.SetMaxOpenConns(1)
		c.db.SetMaxIdleConns(1)
		if _, err := c.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			_ = c.db.Close()
			l.Error("enable WAL failed", slog.Any("err", err))
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
		if _, err := c.db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
			l.Warn("enable foreign_keys failed", slog.Any("err", err))
		}
	}
	for _, step := range []func(context.Context) error{c.ensureVersion, c.ensureSchema, c.runMigrations} {
		if err := step(ctx); err != nil {
			_ = c.db.Close()
			l.Error("prepare catalog failed", slog.Any("err", err))
			return nil, err
		}
	}
	l.Debug("catalog ready", slog.Bool("postgres", c.dialect == dialectPostgres))
	return c, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

// DB exposes the handle for maintenance queries.
func (c *Catalog) DB() *sql.DB { return c.db }

// rebind rewrites ? placeholders to $n for Postgres.
func (c *Catalog) rebind(q string) string {
	if c.dialect != dialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (c *Catalog) exec(ctx context.Context, e execer, q string, args ...any) error {
	_, err := e.ExecContext(ctx, c.rebind(q), args...)
	return err
}

func (c *Catalog) ensureVersion(ctx context.Context) error {
	if err := c.exec(ctx, c.db, `CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("create version table: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var cur int
	err := c.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh catalogs start at 1 and migrate up
		if err := c.exec(ctx, c.db, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`,
			1, version.String(), now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if err := c.exec(ctx, c.db, `UPDATE version SET app=?, updated_at=? WHERE id=1`, version.String(), now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// ensureSchema creates the v1 tables. Later versions are reached through migrations.
func (c *Catalog) ensureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id           TEXT PRIMARY KEY,
			seed         BIGINT NOT NULL,
			config       TEXT,
			started_at   TEXT NOT NULL,
			finished_at  TEXT,
			generated    INTEGER NOT NULL DEFAULT 0,
			failed       INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS images (
			run_id      TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx         INTEGER NOT NULL,
			image_path  TEXT    NOT NULL,
			label_path  TEXT    NOT NULL,
			vis_path    TEXT,
			skipped     INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT    NOT NULL,
			PRIMARY KEY (run_id, idx)
		)`,
		`CREATE TABLE IF NOT EXISTS labels (
			run_id    TEXT    NOT NULL,
			idx       INTEGER NOT NULL,
			n         INTEGER NOT NULL,
			class     INTEGER NOT NULL,
			x_center  DOUBLE PRECISION NOT NULL,
			y_center  DOUBLE PRECISION NOT NULL,
			width     DOUBLE PRECISION NOT NULL,
			height    DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, idx, n),
			FOREIGN KEY (run_id, idx) REFERENCES images(run_id, idx) ON DELETE CASCADE
		)`,
	}
	for _, q := range ddl {
		if err := c.exec(ctx, c.db, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func (c *Catalog) runMigrations(ctx context.Context) error {
	var cur int
	if err := c.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_labels_class ON labels(class)`,
				`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
			}
		}
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if err := c.exec(ctx, tx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if err := c.exec(ctx, tx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// SchemaVersion returns the stored schema version.
func (c *Catalog) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := c.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}

// BeginRun registers a new run with its config snapshot and returns its id.
func (c *Catalog) BeginRun(ctx context.Context, configSnapshot []byte, seed int64) (uuid.UUID, error) {
	id := uuid.New()
	err := c.exec(ctx, c.db, `INSERT INTO runs (id, seed, config, started_at) VALUES (?, ?, ?, ?)`,
		id.String(), seed, string(configSnapshot), time.Now().UTC().Format(tsLayout))
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// ImageRecord is one generated image with its labels.
type ImageRecord struct {
	Index     int
	ImagePath string
	LabelPath string
	VisPath   string
	Skipped   int
	Labels    []bbox.Label
}

// RecordImage stores an image and its labels in one transaction. Recording
// the same index twice replaces the earlier record.
func (c *Catalog) RecordImage(ctx context.Context, run uuid.UUID, rec ImageRecord) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	rid := run.String()
	if err = c.exec(ctx, tx, `DELETE FROM labels WHERE run_id=? AND idx=?`, rid, rec.Index); err != nil {
		return fmt.Errorf("clear labels: %w", err)
	}
	if err = c.exec(ctx, tx, `DELETE FROM images WHERE run_id=? AND idx=?`, rid, rec.Index); err != nil {
		return fmt.Errorf("clear image: %w", err)
	}
	if err = c.exec(ctx, tx, `INSERT INTO images (run_id, idx, image_path, label_path, vis_path, skipped, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rid, rec.Index, rec.ImagePath, rec.LabelPath, rec.VisPath, rec.Skipped, time.Now().UTC().Format(tsLayout)); err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	for i, lb := range rec.Labels {
		if err = c.exec(ctx, tx, `INSERT INTO labels (run_id, idx, n, class, x_center, y_center, width, height) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rid, rec.Index, i, lb.ClassIndex, lb.XCenter, lb.YCenter, lb.Width, lb.Height); err != nil {
			return fmt.Errorf("insert label: %w", err)
		}
	}
	return tx.Commit()
}

// FinishRun stamps the end time and final counts of a run.
func (c *Catalog) FinishRun(ctx context.Context, run uuid.UUID, generated, failed int) error {
	res, err := c.db.ExecContext(ctx, c.rebind(`UPDATE runs SET finished_at=?, generated=?, failed=? WHERE id=?`),
		time.Now().UTC().Format(tsLayout), generated, failed, run.String())
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// LatestRun returns the most recently started run.
func (c *Catalog) LatestRun(ctx context.Context) (uuid.UUID, error) {
	var s string
	err := c.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY started_at DESC LIMIT 1`).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrRunNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(s)
}

// Summary aggregates a run for reporting.
type Summary struct {
	Run        uuid.UUID
	Seed       int64
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Generated  int
	Failed     int
	Skipped    int

	// per image, ordered by index
	ObjectsPerImage []float64
	// normalized w*h of every label
	BoxAreas    []float64
	ClassCounts map[int]int
}

func (c *Catalog) Summary(ctx context.Context, run uuid.UUID) (Summary, error) {
	s := Summary{Run: run, ClassCounts: map[int]int{}}
	rid := run.String()
	var started string
	var finished sql.NullString
	err := c.db.QueryRowContext(ctx, c.rebind(`SELECT seed, started_at, finished_at, generated, failed FROM runs WHERE id=?`), rid).
		Scan(&s.Seed, &started, &finished, &s.Generated, &s.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrRunNotFound
	}
	if err != nil {
		return s, fmt.Errorf("read run: %w", err)
	}
	s.StartedAt, _ = time.Parse(tsLayout, started)
	if finished.Valid {
		s.FinishedAt, _ = time.Parse(tsLayout, finished.String)
	}

	rows, err := c.db.QueryContext(ctx, c.rebind(`SELECT i.idx, i.skipped, COUNT(l.n) FROM images i
		LEFT JOIN labels l ON l.run_id = i.run_id AND l.idx = i.idx
		WHERE i.run_id=? GROUP BY i.idx, i.skipped ORDER BY i.idx`), rid)
	if err != nil {
		return s, fmt.Errorf("read images: %w", err)
	}
	for rows.Next() {
		var idx, skipped, n int
		if err := rows.Scan(&idx, &skipped, &n); err != nil {
			_ = rows.Close()
			return s, err
		}
		s.Skipped += skipped
		s.ObjectsPerImage = append(s.ObjectsPerImage, float64(n))
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return s, err
	}
	if err := rows.Close(); err != nil {
		return s, err
	}

	rows, err = c.db.QueryContext(ctx, c.rebind(`SELECT class, width, height FROM labels WHERE run_id=? ORDER BY idx, n`), rid)
	if err != nil {
		return s, fmt.Errorf("read labels: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var class int
		var w, h float64
		if err := rows.Scan(&class, &w, &h); err != nil {
			return s, err
		}
		s.ClassCounts[class]++
		s.BoxAreas = append(s.BoxAreas, w*h)
	}
	return s, rows.Err()
}
