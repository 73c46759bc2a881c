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
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mangascript/internal/domain"

	_ "modernc.org/sqlite"
)

func samplePages() []domain.Page {
	return []domain.Page{
		{Name: "001.png", Text: "Hello there\n\nSFX: boom goes the door", Tags: domain.Tags{3: domain.TagSFX, 9: domain.TagBox}},
		{Name: "002.png", Text: "Quiet night\nThe door creaks", Tags: domain.Tags{1: domain.TagBox, 2: domain.TagOutside}},
		{Name: "003.png"},
	}
}

func openRaw(t *testing.T, root string) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(IndexPath(root)))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestIndexInitCreatesWALAndMetaVersion(t *testing.T) {
	root := t.TempDir()
	db0, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("InitOrOpenIndex: %v", err)
	}
	_ = db0.Close()
	if _, err := os.Stat(IndexPath(root)); err != nil {
		t.Fatalf("index file missing: %v", err)
	}
	db := openRaw(t, root)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" && mode != "WAL" {
		t.Fatalf("expected WAL mode, got %s", mode)
	}
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('meta','version','lines','fts_lines','page_history')").Scan(&cnt); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if cnt != 5 {
		t.Fatalf("expected 5 tables, got %d", cnt)
	}
	var schema int
	if err := db.QueryRowContext(ctx, "SELECT schema FROM version WHERE id=1").Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("schema = %d, want %d", schema, schemaVersion)
	}
}

func TestRebuildIndexStoresNonBlankLines(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	if err := RebuildIndex(ctx, root, samplePages()); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	db := openRaw(t, root)
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lines").Scan(&cnt); err != nil {
		t.Fatalf("count lines: %v", err)
	}
	if cnt != 4 {
		t.Fatalf("expected 4 indexed lines, got %d", cnt)
	}
	var tag string
	if err := db.QueryRowContext(ctx, "SELECT tag FROM lines WHERE page_idx=0 AND line_no=3").Scan(&tag); err != nil {
		t.Fatalf("read tag: %v", err)
	}
	if tag != string(domain.TagSFX) {
		t.Fatalf("tag = %q", tag)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fts_lines WHERE fts_lines MATCH 'door'").Scan(&cnt); err != nil {
		t.Fatalf("fts query: %v", err)
	}
	if cnt != 2 {
		t.Fatalf("expected FTS to find 2 lines, got %d", cnt)
	}

	// a second build replaces rather than appends
	if err := UpdateIndex(ctx, root, samplePages()[:1]); err != nil {
		t.Fatalf("UpdateIndex: %v", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fts_lines WHERE fts_lines MATCH 'door'").Scan(&cnt); err != nil {
		t.Fatalf("fts query: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected FTS to follow deletes, got %d", cnt)
	}
}
