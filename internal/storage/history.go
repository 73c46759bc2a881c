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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mangascript/internal/domain"
)

// language=SQL
// dialect=SQLite
const insertPageHistorySQL = `INSERT INTO page_history(page_name, ts, text, tags) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestPageHistorySQL = `SELECT text, tags FROM page_history WHERE page_name = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listPageHistorySQL = `SELECT ts, text, tags FROM page_history WHERE page_name = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const prunePageHistorySQL = `DELETE FROM page_history WHERE page_name = ? AND id NOT IN (
	SELECT id FROM page_history WHERE page_name = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// PageRevision is one recorded state of a page.
type PageRevision struct {
	TS   time.Time
	Name string
	Text string
	Tags domain.Tags
}

// SavePageHistory records a revision for every page whose text or tags differ from
// its latest recorded revision. Pages that never had text are skipped until they do.
// It returns the number of revisions written.
func SavePageHistory(ctx context.Context, root string, pages []domain.Page, ts time.Time) (int, error) {
	if strings.TrimSpace(root) == "" {
		return 0, errors.New("project root is required")
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	stamp := ts.UTC().Format(time.RFC3339Nano)
	n := 0
	for _, p := range pages {
		tagsJSON, err := encodeTags(p.Tags)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		var prevText, prevTags string
		err = tx.QueryRowContext(ctx, selectLatestPageHistorySQL, p.Name).Scan(&prevText, &prevTags)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if !p.HasText() && len(p.Tags) == 0 {
				continue
			}
		case err != nil:
			_ = tx.Rollback()
			return 0, fmt.Errorf("read latest revision: %w", err)
		default:
			if prevText == p.Text && prevTags == tagsJSON {
				continue
			}
		}
		if _, err := tx.ExecContext(ctx, insertPageHistorySQL, p.Name, stamp, p.Text, tagsJSON); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert revision: %w", err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// ListPageHistory returns up to limit most recent revisions of the named page, newest first.
func ListPageHistory(ctx context.Context, root, name string, limit int) ([]PageRevision, error) {
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listPageHistorySQL, name, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []PageRevision
	for rows.Next() {
		var tsStr, txt, tagsJSON string
		if err := rows.Scan(&tsStr, &txt, &tagsJSON); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(time.RFC3339Nano, tsStr)
		var tags domain.Tags
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
			return nil, fmt.Errorf("decode revision tags: %w", err)
		}
		out = append(out, PageRevision{TS: ts, Name: name, Text: txt, Tags: tags})
	}
	return out, rows.Err()
}

// PrunePageHistory keeps at most keepLast revisions of the named page.
func PrunePageHistory(ctx context.Context, root, name string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, prunePageHistorySQL, name, name, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func encodeTags(t domain.Tags) (string, error) {
	if t == nil {
		t = domain.Tags{}
	}
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}
