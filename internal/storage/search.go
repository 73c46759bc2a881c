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
	"strings"

	"mangascript/internal/domain"
)

// SearchQuery describes a line search.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT); empty matches every line.
// Tags restricts results to lines carrying one of the given tags; domain.TagNone selects untagged lines.
// PageFrom/PageTo are inclusive 1-based page numbers; 0 means unset.
// Limit/Offset implement pagination; Limit defaults to 100.
type SearchQuery struct {
	Text     string
	Tags     []domain.Tag
	PageFrom int
	PageTo   int
	Limit    int
	Offset   int
}

// SearchResult is a single matching line. Page and Line are 1-based.
type SearchResult struct {
	LineID   int64
	Page     int
	PageName string
	Line     int
	Tag      domain.Tag
	Text     string
}

// Search runs q against the folder index.
func Search(ctx context.Context, root string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("project root is required")
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	sb.WriteString("SELECT l.line_id, l.page_idx, l.page_name, l.line_no, l.tag, l.text\n")
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString("FROM fts_lines JOIN lines l ON fts_lines.rowid = l.line_id\n")
		sb.WriteString("WHERE fts_lines MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("FROM lines l\nWHERE 1=1\n")
	}
	if len(q.Tags) > 0 {
		sb.WriteString(" AND l.tag IN (" + placeholders(len(q.Tags)) + ")\n")
		for _, t := range q.Tags {
			args = append(args, string(t))
		}
	}
	// page_idx is 0-based
	if q.PageFrom > 0 {
		sb.WriteString(" AND l.page_idx >= ?\n")
		args = append(args, q.PageFrom-1)
	}
	if q.PageTo > 0 {
		sb.WriteString(" AND l.page_idx <= ?\n")
		args = append(args, q.PageTo-1)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := max(q.Offset, 0)
	sb.WriteString("ORDER BY l.page_idx, l.line_no\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var tag string
		if err := rows.Scan(&r.LineID, &r.Page, &r.PageName, &r.Line, &tag, &r.Text); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Page++
		r.Tag = domain.Tag(tag)
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
