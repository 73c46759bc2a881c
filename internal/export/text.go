/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders pages into the text reports, the JSON snapshot and the PDF script.
package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mangascript/internal/domain"
	"mangascript/internal/editor"
)

// Source provides the pages to export. Implementations flush pending edits first;
// *editor.Session does.
type Source interface {
	AllPages() []domain.Page
}

var (
	pageRule   = strings.Repeat("-", 50)
	footerRule = strings.Repeat("=", 50)
)

func pagesOf(src Source) ([]domain.Page, error) {
	if src == nil {
		return nil, editor.ErrNoPagesLoaded
	}
	pages := src.AllPages()
	if len(pages) == 0 {
		return nil, editor.ErrNoPagesLoaded
	}
	return pages, nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// renderLine applies the shared line convention: tagged non-blank lines get "<tag> ",
// blank lines come out empty.
func renderLine(line string, tag domain.Tag) string {
	if blank(line) {
		return ""
	}
	if tag != domain.TagNone {
		return string(tag) + " " + line
	}
	return line
}

func writePageLines(b *strings.Builder, p domain.Page) {
	for i, line := range p.Lines() {
		b.WriteString(renderLine(line, p.Tags.Effective(i+1)))
		b.WriteByte('\n')
	}
}

// taggedLines returns the rendered lines of p that carry a non-empty tag.
// Tags on lines past the end of the text or on blank lines are ignored.
func taggedLines(p domain.Page) []string {
	var out []string
	for i, line := range p.Lines() {
		if tag := p.Tags.Effective(i + 1); tag != domain.TagNone && !blank(line) {
			out = append(out, renderLine(line, tag))
		}
	}
	return out
}

func nonBlankLines(p domain.Page) int {
	n := 0
	for _, line := range p.Lines() {
		if !blank(line) {
			n++
		}
	}
	return n
}

// Detected renders the pages that have text as "<name>:" blocks, the layout DetectedFormat reads.
func Detected(src Source) (string, error) {
	pages, err := pagesOf(src)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, p := range pages {
		if !p.HasText() {
			continue
		}
		b.WriteString(p.Name + ":\n")
		writePageLines(&b, p)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// AllPages renders every page under a "PAGE n:" header.
func AllPages(src Source) (string, error) {
	pages, err := pagesOf(src)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, p := range pages {
		writePageHeader(&b, i)
		writePageLines(&b, p)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Page renders page i (0-based) alone.
func Page(src Source, i int) (string, error) {
	pages, err := pagesOf(src)
	if err != nil {
		return "", err
	}
	if i < 0 || i >= len(pages) {
		return "", fmt.Errorf("%w: %d", editor.ErrPageOutOfRange, i+1)
	}
	var b strings.Builder
	writePageHeader(&b, i)
	writePageLines(&b, pages[i])
	return b.String(), nil
}

func writePageHeader(b *strings.Builder, i int) {
	fmt.Fprintf(b, "PAGE %d:\n%s\n", i+1, pageRule)
}

// TaggedOnly renders only tagged lines, grouped per page, followed by a completion footer.
func TaggedOnly(src Source) (string, error) {
	pages, err := pagesOf(src)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, p := range pages {
		lines := taggedLines(p)
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "PAGE %d:\n%s\n\n", i+1, strings.Join(lines, "\n"))
	}
	st := ComputeStats(pages)
	fmt.Fprintf(&b, "\n%s\nSTATISTICS:\nTotal Lines: %d\nTagged Lines: %d\nCompletion: %s%%\n",
		footerRule, st.TotalLines, st.TaggedLines, st.CompletionString())
	return b.String(), nil
}

// TagCount is one row of the tag breakdown.
type TagCount struct {
	Tag   domain.Tag
	Count int
}

// Stats aggregates line and tag counts over all pages. Only non-blank lines count;
// a line is tagged when it carries a non-empty tag.
type Stats struct {
	Pages         int
	PagesWithText int
	TotalLines    int
	TaggedLines   int
	Breakdown     []TagCount // by count desc, ties in shortcut order
}

func (s Stats) UntaggedLines() int { return s.TotalLines - s.TaggedLines }

// Completion is the tagged share of all lines in percent, 0 without lines.
func (s Stats) Completion() float64 {
	if s.TotalLines == 0 {
		return 0
	}
	return float64(s.TaggedLines) / float64(s.TotalLines) * 100
}

// CompletionString formats Completion with one decimal, or "0" without lines.
func (s Stats) CompletionString() string {
	if s.TotalLines == 0 {
		return "0"
	}
	return strconv.FormatFloat(s.Completion(), 'f', 1, 64)
}

func ComputeStats(pages []domain.Page) Stats {
	st := Stats{Pages: len(pages)}
	counts := map[domain.Tag]int{}
	for _, p := range pages {
		if p.HasText() {
			st.PagesWithText++
		}
		st.TotalLines += nonBlankLines(p)
		for i, line := range p.Lines() {
			tag := p.Tags.Effective(i + 1)
			if tag == domain.TagNone || blank(line) {
				continue
			}
			st.TaggedLines++
			counts[tag]++
		}
	}
	for tag, n := range counts {
		st.Breakdown = append(st.Breakdown, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(st.Breakdown, func(i, j int) bool {
		a, b := st.Breakdown[i], st.Breakdown[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Tag.Rank() < b.Tag.Rank()
	})
	return st
}

// Statistics renders the statistics report.
func Statistics(src Source) (string, error) {
	pages, err := pagesOf(src)
	if err != nil {
		return "", err
	}
	st := ComputeStats(pages)
	var b strings.Builder
	fmt.Fprintf(&b, "MANGA SCRIPT EDITOR - STATISTICS\n%s\n\n", footerRule)
	fmt.Fprintf(&b, "Total Pages: %d\nPages with Text: %d\n", st.Pages, st.PagesWithText)
	fmt.Fprintf(&b, "Total Lines: %d\nTagged Lines: %d\nUntagged Lines: %d\n", st.TotalLines, st.TaggedLines, st.UntaggedLines())
	fmt.Fprintf(&b, "Completion: %s%%\n\nTAG BREAKDOWN:\n", st.CompletionString())
	for _, tc := range st.Breakdown {
		share := float64(tc.Count) / float64(st.TaggedLines) * 100
		fmt.Fprintf(&b, "%s: %d (%.1f%%)\n", tc.Tag, tc.Count, share)
	}
	return b.String(), nil
}

// Snapshot renders the lossless JSON snapshot with two-space indentation.
func Snapshot(src Source) ([]byte, error) {
	pages, err := pagesOf(src)
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(domain.NewSnapshot(pages), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}
