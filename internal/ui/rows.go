/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"mangascript/internal/domain"
	"mangascript/internal/storage"
)

// tagColumn is wide enough for the longest tag.
const tagColumn = 4

// lineRow renders one entry of the line gutter: number, selection mark, tag and text.
func lineRow(n int, line string, tag domain.Tag, selected bool) string {
	mark := " "
	if selected {
		mark = "*"
	}
	return fmt.Sprintf("%3d%s %-*s %s", n, mark, tagColumn, string(tag), line)
}

// lineRows renders the gutter for a live buffer. Tags on lines past the end are not shown.
func lineRows(text string, tags domain.Tags, selection []int) []string {
	sel := make(map[int]bool, len(selection))
	for _, n := range selection {
		sel[n] = true
	}
	lines := domain.SplitLines(text)
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = lineRow(i+1, line, tags.Effective(i+1), sel[i+1])
	}
	return out
}

// pageLabel is the page list entry; pages with text are marked.
func pageLabel(i int, p domain.Page) string {
	mark := " "
	if p.HasText() {
		mark = "•"
	}
	return fmt.Sprintf("%s %d  %s", mark, i+1, p.Name)
}

// windowTitle names the window after the open folder and page.
func windowTitle(root string, i, n int) string {
	if root == "" {
		return "Manga Script Editor"
	}
	if i < 0 {
		return fmt.Sprintf("Manga Script Editor - %s", filepath.Base(root))
	}
	return fmt.Sprintf("Manga Script Editor - %s (%d/%d)", filepath.Base(root), i+1, n)
}

// searchRow renders one search hit.
func searchRow(r storage.SearchResult) string {
	tag := ""
	if r.Tag != domain.TagNone {
		tag = string(r.Tag) + " "
	}
	return fmt.Sprintf("p%d:%d  %s%s", r.Page, r.Line, tag, strings.TrimSpace(r.Text))
}

// keyHelp lists the tag shortcuts for the status bar.
func keyHelp() string {
	parts := make([]string, 0, len(domain.TagTable))
	for _, s := range domain.TagTable {
		name := string(s.Tag)
		if s.Tag == domain.TagNone {
			name = "clear"
		}
		parts = append(parts, fmt.Sprintf("%c=%s", s.Key, name))
	}
	return strings.Join(parts, "  ")
}
