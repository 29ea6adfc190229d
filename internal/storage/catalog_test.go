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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"synthbox/internal/bbox"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	l := NewLayout(t.TempDir(), "", "", "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := OpenCatalog(ctx, CatalogPath(l))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOpenCatalogFreshSchema(t *testing.T) {
	c := openTestCatalog(t)
	v, err := c.SchemaVersion(context.Background())
	require.NoError(t, err)
	require.Equal(t, schemaVersion, v)
	var cnt int
	require.NoError(t, c.DB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name='idx_labels_class'`).Scan(&cnt))
	require.Equal(t, 1, cnt)
}

func TestRunLifecycleAndSummary(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()
	run, err := c.BeginRun(ctx, []byte("generation: {seed: 3}"), 3)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, run)

	require.NoError(t, c.RecordImage(ctx, run, ImageRecord{
		Index: 0, ImagePath: "a.png", LabelPath: "a.txt",
		Labels: []bbox.Label{
			{ClassIndex: 0, XCenter: 0.5, YCenter: 0.5, Width: 0.1, Height: 0.2},
			{ClassIndex: 1, XCenter: 0.2, YCenter: 0.2, Width: 0.1, Height: 0.1},
		},
	}))
	require.NoError(t, c.RecordImage(ctx, run, ImageRecord{
		Index: 1, ImagePath: "b.png", LabelPath: "b.txt", Skipped: 2,
		Labels: []bbox.Label{{ClassIndex: 1, XCenter: 0.5, YCenter: 0.5, Width: 0.5, Height: 0.5}},
	}))
	// re-recording replaces
	require.NoError(t, c.RecordImage(ctx, run, ImageRecord{
		Index: 1, ImagePath: "b.png", LabelPath: "b.txt", Skipped: 1,
		Labels: []bbox.Label{{ClassIndex: 1, XCenter: 0.5, YCenter: 0.5, Width: 0.5, Height: 0.5}},
	}))
	require.NoError(t, c.FinishRun(ctx, run, 2, 0))

	latest, err := c.LatestRun(ctx)
	require.NoError(t, err)
	require.Equal(t, run, latest)

	s, err := c.Summary(ctx, run)
	require.NoError(t, err)
	require.Equal(t, int64(3), s.Seed)
	require.Equal(t, 2, s.Generated)
	require.Equal(t, 1, s.Skipped)
	require.False(t, s.FinishedAt.IsZero())
	require.Equal(t, []float64{2, 1}, s.ObjectsPerImage)
	require.Equal(t, map[int]int{0: 1, 1: 2}, s.ClassCounts)
	require.Len(t, s.BoxAreas, 3)
	require.InDelta(t, 0.02, s.BoxAreas[0], 1e-12)
}

func TestUnknownRun(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()
	_, err := c.Summary(ctx, uuid.New())
	require.True(t, errors.Is(err, ErrRunNotFound))
	require.ErrorIs(t, c.FinishRun(ctx, uuid.New(), 1, 0), ErrRunNotFound)
	_, err = c.LatestRun(ctx)
	require.ErrorIs(t, err, ErrRunNotFound)
}

// An older catalog at schema 1 gains the v2 indexes on open.
func TestMigrationsUpgradeV1ToV2(t *testing.T) {
	path := filepath.Join(t.TempDir(), CatalogFileName)
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.ToSlash(path)))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stmts := []string{
		`CREATE TABLE version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z');`,
	}
	for _, q := range stmts {
		_, err := db.ExecContext(ctx, q)
		require.NoError(t, err, q)
	}
	require.NoError(t, db.Close())

	c, err := OpenCatalog(ctx, path)
	require.NoError(t, err)
	defer c.Close()
	v, err := c.SchemaVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestRebind(t *testing.T) {
	c := &Catalog{dialect: dialectPostgres}
	require.Equal(t, "SELECT a FROM t WHERE x=$1 AND y=$2", c.rebind("SELECT a FROM t WHERE x=? AND y=?"))
	c.dialect = dialectSQLite
	require.Equal(t, "x=?", c.rebind("x=?"))
}

func TestWithPassword(t *testing.T) {
	got, err := WithPassword("postgres://bob@db:5432/sdg?sslmode=disable", "pw")
	require.NoError(t, err)
	require.Equal(t, "postgres://bob:pw@db:5432/sdg?sslmode=disable", got)
	got, err = WithPassword("/tmp/catalog.sqlite", "pw")
	require.NoError(t, err)
	require.Equal(t, "/tmp/catalog.sqlite", got)
}

// Runs against a live server when SDG_TEST_PG_DSN is set.
func TestPostgresCatalog(t *testing.T) {
	dsn := os.Getenv("SDG_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SDG_TEST_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := OpenCatalog(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	defer c.Close()
	run, err := c.BeginRun(ctx, nil, 1)
	require.NoError(t, err)
	require.NoError(t, c.RecordImage(ctx, run, ImageRecord{Index: 0, ImagePath: "a", LabelPath: "b",
		Labels: []bbox.Label{{ClassIndex: 2, XCenter: 0.5, YCenter: 0.5, Width: 0.1, Height: 0.1}}}))
	require.NoError(t, c.FinishRun(ctx, run, 1, 0))
	s, err := c.Summary(ctx, run)
	require.NoError(t, err)
	require.Equal(t, map[int]int{2: 1}, s.ClassCounts)
}
