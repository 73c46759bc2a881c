/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"strings"
	"testing"

	"mangascript/internal/domain"
	"mangascript/internal/storage"
)

func TestLineRows(t *testing.T) {
	rows := lineRows("Hello\nBOOM", domain.Tags{2: domain.TagSFX, 7: domain.TagBox}, []int{1})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0] != "  1*      Hello" {
		t.Fatalf("row 1 = %q", rows[0])
	}
	if rows[1] != "  2  SFX: BOOM" {
		t.Fatalf("row 2 = %q", rows[1])
	}
}

func TestPageLabelAndTitle(t *testing.T) {
	if got := pageLabel(0, domain.Page{Name: "a.png", Text: "x"}); got != "• 1  a.png" {
		t.Fatalf("pageLabel = %q", got)
	}
	if got := pageLabel(2, domain.Page{Name: "c.png", Text: "  "}); got != "  3  c.png" {
		t.Fatalf("pageLabel = %q", got)
	}
	if got := windowTitle("", 0, 0); got != "Manga Script Editor" {
		t.Fatalf("windowTitle = %q", got)
	}
	if got := windowTitle("/x/vol1", 1, 9); got != "Manga Script Editor - vol1 (2/9)" {
		t.Fatalf("windowTitle = %q", got)
	}
}

func TestSearchRowAndKeyHelp(t *testing.T) {
	got := searchRow(storage.SearchResult{Page: 3, Line: 2, Tag: domain.TagOutside, Text: " off panel "})
	if got != "p3:2  OT: off panel" {
		t.Fatalf("searchRow = %q", got)
	}
	h := keyHelp()
	if !strings.HasPrefix(h, `1=""  2=()`) || !strings.HasSuffix(h, "0=clear") {
		t.Fatalf("keyHelp = %q", h)
	}
}
