/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"errors"
	"maps"
	"slices"
	"testing"
	"time"

	"mangascript/internal/domain"
	"mangascript/internal/log"
	"mangascript/internal/script"
)

type recordingViewer struct {
	activated []int
	counts    []int
	last      domain.Page
}

func (v *recordingViewer) OnPageActivated(i int, p domain.Page) {
	v.activated = append(v.activated, i)
	v.last = p
}
func (v *recordingViewer) OnPageCountChanged(n int) { v.counts = append(v.counts, n) }

// steppingClock advances one second per call so that undo never coalesces.
func steppingClock() func() time.Time {
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newSession(t *testing.T, names ...string) (*Session, *recordingViewer) {
	t.Helper()
	v := &recordingViewer{}
	s := NewSession(nil, Options{Viewer: v, Logger: log.Discard(), Clock: steppingClock()})
	pages := make([]domain.Page, len(names))
	for i, n := range names {
		pages[i] = domain.Page{Name: n}
	}
	s.LoadPages(pages)
	return s, v
}

func TestLoadPagesActivatesFirst(t *testing.T) {
	s, v := newSession(t, "1.png", "2.png")
	if s.Current() != 0 {
		t.Fatalf("expected page 0 active, got %d", s.Current())
	}
	if !slices.Equal(v.counts, []int{2}) || !slices.Equal(v.activated, []int{0}) {
		t.Fatalf("unexpected viewer calls: counts=%v activated=%v", v.counts, v.activated)
	}
}

func TestRangeSelectFromHighestLine(t *testing.T) {
	s, _ := newSession(t, "1.png")
	if err := s.SetText("a\nb\nc\nd\ne\nf"); err != nil {
		t.Fatalf("set text: %v", err)
	}
	if err := s.ToggleLine(5, false); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := s.ToggleLine(2, true); err != nil {
		t.Fatalf("range toggle: %v", err)
	}
	if got := s.Selection(); !slices.Equal(got, []int{2, 3, 4, 5}) {
		t.Fatalf("selection = %v, want [2 3 4 5]", got)
	}
	// the anchor is the highest selected line, not the first clicked one
	if err := s.ToggleLine(6, true); err != nil {
		t.Fatalf("range toggle: %v", err)
	}
	if got := s.Selection(); !slices.Equal(got, []int{2, 3, 4, 5, 6}) {
		t.Fatalf("selection = %v", got)
	}
	if err := s.ToggleLine(3, false); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got := s.Selection(); !slices.Equal(got, []int{2, 4, 5, 6}) {
		t.Fatalf("selection = %v", got)
	}
}

func TestToggleLineOutOfRange(t *testing.T) {
	s, _ := newSession(t, "1.png")
	_ = s.SetText("one\ntwo")
	for _, n := range []int{0, 3, -1} {
		if err := s.ToggleLine(n, false); !errors.Is(err, ErrLineOutOfRange) {
			t.Fatalf("ToggleLine(%d) err = %v, want ErrLineOutOfRange", n, err)
		}
	}
}

func TestApplyAndClearSelectionTags(t *testing.T) {
	s, _ := newSession(t, "1.png")
	_ = s.SetText("a\nb\nc")
	if err := s.ApplyTagToSelection(domain.TagSFX); !errors.Is(err, ErrEmptySelection) {
		t.Fatalf("expected ErrEmptySelection, got %v", err)
	}
	_ = s.ToggleLine(1, false)
	_ = s.ToggleLine(3, false)
	if err := s.ApplyTagToSelection(domain.TagSFX); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(s.Selection()) != 0 {
		t.Fatalf("selection must be cleared after apply")
	}
	if !maps.Equal(s.Tags(), domain.Tags{1: domain.TagSFX, 3: domain.TagSFX}) {
		t.Fatalf("unexpected tags %v", s.Tags())
	}

	_ = s.ToggleLine(1, false)
	if err := s.ApplyTagToSelection(domain.TagNone); err != nil {
		t.Fatalf("apply none: %v", err)
	}
	if v, ok := s.Tags()[1]; !ok || v != domain.TagNone {
		t.Fatalf("explicit empty tag must be stored, got %v", s.Tags())
	}

	_ = s.ToggleLine(1, false)
	_ = s.ToggleLine(3, false)
	if err := s.ClearSelectionTags(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(s.Tags()) != 0 {
		t.Fatalf("expected no tags after clear, got %v", s.Tags())
	}
	if err := s.ApplyTagToSelection(domain.Tag("XX:")); err == nil {
		t.Fatalf("expected error for unknown tag")
	}
}

func TestSetLineTagAndShortcuts(t *testing.T) {
	s, _ := newSession(t, "1.png")
	_ = s.SetText("a\nb")
	if err := s.TagLineWithKey(2, '4'); err != nil {
		t.Fatalf("tag with key: %v", err)
	}
	if s.Tags()[2] != domain.TagOutside {
		t.Fatalf("expected OT: on line 2, got %v", s.Tags())
	}
	if err := s.TagLineWithKey(2, '0'); err != nil {
		t.Fatalf("clear with key: %v", err)
	}
	if _, ok := s.Tags()[2]; ok {
		t.Fatalf("key 0 must delete the tag, got %v", s.Tags())
	}
	if err := s.TagLineWithKey(1, 'q'); !errors.Is(err, ErrUnknownShortcut) {
		t.Fatalf("expected ErrUnknownShortcut, got %v", err)
	}
	if err := s.SetLineTag(3, domain.TagSFX); !errors.Is(err, ErrLineOutOfRange) {
		t.Fatalf("expected ErrLineOutOfRange, got %v", err)
	}
}

func TestFlushOnSwitchKeepsEdits(t *testing.T) {
	s, _ := newSession(t, "1.png", "2.png")
	_ = s.SetText("first\npage")
	_ = s.SetLineTag(2, domain.TagBubble)
	if err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if s.Text() != "" || len(s.Tags()) != 0 {
		t.Fatalf("page 2 should start empty, got %q %v", s.Text(), s.Tags())
	}
	_ = s.SetText("second")
	if err := s.Prev(); err != nil {
		t.Fatalf("prev: %v", err)
	}
	if s.Text() != "first\npage" || !maps.Equal(s.Tags(), domain.Tags{2: domain.TagBubble}) {
		t.Fatalf("page 1 edits lost: %q %v", s.Text(), s.Tags())
	}
	pages := s.AllPages()
	if pages[1].Text != "second" {
		t.Fatalf("page 2 edits lost: %q", pages[1].Text)
	}
}

func TestStoreDoesNotAliasLiveTags(t *testing.T) {
	s, _ := newSession(t, "1.png")
	_ = s.SetText("a")
	_ = s.SetLineTag(1, domain.TagSFX)
	s.Flush()
	_ = s.SetLineTag(1, domain.TagBox)
	p, _ := s.Store().Page(0)
	if p.Tags[1] != domain.TagSFX {
		t.Fatalf("store changed without flush: %v", p.Tags)
	}
}

func TestStaleTagsPersistAfterShortening(t *testing.T) {
	s, _ := newSession(t, "1.png")
	_ = s.SetText("a\nb\nc")
	_ = s.SetLineTag(3, domain.TagSFX)
	_ = s.ToggleLine(3, false)
	_ = s.SetText("a")
	if s.Tags()[3] != domain.TagSFX {
		t.Fatalf("tag on a removed line must persist: %v", s.Tags())
	}
	if len(s.Selection()) != 0 {
		t.Fatalf("selection beyond the text must be dropped: %v", s.Selection())
	}
}

func TestNavigationBounds(t *testing.T) {
	s, _ := newSession(t, "1.png", "2.png", "3.png")
	if err := s.Prev(); err != nil || s.Current() != 0 {
		t.Fatalf("prev on first page: err=%v current=%d", err, s.Current())
	}
	_ = s.Last()
	if err := s.Next(); err != nil || s.Current() != 2 {
		t.Fatalf("next on last page: err=%v current=%d", err, s.Current())
	}
	if err := s.Activate(3); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
	empty := NewSession(nil, Options{Logger: log.Discard()})
	if err := empty.Next(); !errors.Is(err, ErrNoPagesLoaded) {
		t.Fatalf("expected ErrNoPagesLoaded, got %v", err)
	}
	if err := empty.SetText("x"); !errors.Is(err, ErrNoActivePage) {
		t.Fatalf("expected ErrNoActivePage, got %v", err)
	}
}

func TestImportRefreshesActivePage(t *testing.T) {
	s, v := newSession(t, "1.png", "2.png")
	_ = s.Next()
	_ = s.SetText("unsaved on page 2")
	res, err := s.Import("1.png:\nHello\nOT: World\n")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Format != "detected" || len(res.Updates) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if s.Text() != "unsaved on page 2" {
		t.Fatalf("unmatched active page lost its edits: %q", s.Text())
	}
	pages := s.AllPages()
	if pages[0].Text != "Hello\nWorld" || pages[0].Tags[2] != domain.TagOutside {
		t.Fatalf("page 1 not imported: %+v", pages[0])
	}

	if _, err := s.Import("PAGE 2:\nBeta\n"); err != nil {
		t.Fatalf("import multipage: %v", err)
	}
	if s.Text() != "Beta" || v.last.Text != "Beta" {
		t.Fatalf("live buffer not refreshed: %q / viewer %q", s.Text(), v.last.Text)
	}
}

func TestImportRawFallback(t *testing.T) {
	s, _ := newSession(t, "1.png", "2.png")
	_ = s.Next()
	_ = s.SetLineTag(1, domain.TagSFX)
	res, err := s.Import("free text\r\nwithout markers")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Format != FormatRaw || res.Updates[0].Index != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if s.Text() != "free text\nwithout markers" || s.Tags()[1] != domain.TagSFX {
		t.Fatalf("raw import must replace text only: %q %v", s.Text(), s.Tags())
	}
	pages := s.AllPages()
	if pages[0].Text != "" {
		t.Fatalf("other pages must be untouched: %q", pages[0].Text)
	}

	empty := NewSession(nil, Options{Logger: log.Discard()})
	if _, err := empty.Import("x"); !errors.Is(err, ErrNoPagesLoaded) {
		t.Fatalf("expected ErrNoPagesLoaded, got %v", err)
	}
}

func TestImportOutOfRangePagesKeepsActiveText(t *testing.T) {
	s, _ := newSession(t, "1.png", "2.png")
	_ = s.SetText("keep me")
	res, err := s.Import("PAGE 5:\nfive\nPAGE 9:\nnine\n")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Format != "multipage" || len(res.Updates) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if s.Text() != "keep me" {
		t.Fatalf("active page overwritten: %q", s.Text())
	}
	if pages := s.AllPages(); pages[0].Text != "keep me" || pages[1].Text != "" {
		t.Fatalf("pages changed: %+v", pages)
	}
}

func TestImportAutoSpaceOption(t *testing.T) {
	s := NewSession(nil, Options{Logger: log.Discard(), AutoSpace: true})
	s.LoadPages([]domain.Page{{Name: "1.png"}})
	if _, err := s.Import("1.png:\nA\nSFX: B\n"); err != nil {
		t.Fatalf("import: %v", err)
	}
	if s.Text() != "A\n\nB" || s.Tags()[3] != domain.TagSFX {
		t.Fatalf("unexpected spaced import: %q %v", s.Text(), s.Tags())
	}
	if _, err := s.ImportWith("1.png:\nC\nD\n", script.Chain(script.Options{})); err != nil {
		t.Fatalf("import: %v", err)
	}
	if s.Text() != "C\nD" {
		t.Fatalf("explicit chain must not auto-space: %q", s.Text())
	}
}

func TestUndoRedoTextAndTags(t *testing.T) {
	s, _ := newSession(t, "1.png", "2.png")
	_ = s.SetText("a\nb")
	_ = s.SetLineTag(2, domain.TagSFX)
	_ = s.SetText("a\nb\nc")

	if !s.Undo() || s.Text() != "a\nb" || s.Tags()[2] != domain.TagSFX {
		t.Fatalf("undo text: %q %v", s.Text(), s.Tags())
	}
	if !s.Undo() || len(s.Tags()) != 0 {
		t.Fatalf("undo tag: %v", s.Tags())
	}
	if !s.Redo() || s.Tags()[2] != domain.TagSFX {
		t.Fatalf("redo tag: %v", s.Tags())
	}

	// history is per page and survives switching
	_ = s.Next()
	if s.Undo() {
		t.Fatalf("page 2 has no history")
	}
	_ = s.Prev()
	if !s.Undo() || s.Text() != "a\nb" || len(s.Tags()) != 0 {
		t.Fatalf("undo after switch: %q %v", s.Text(), s.Tags())
	}

	_, _ = s.Import("1.png:\nimported\n")
	if s.Text() != "imported" {
		t.Fatalf("import not applied: %q", s.Text())
	}
	if !s.Undo() || s.Text() != "a\nb" {
		t.Fatalf("import should be undoable, got %q", s.Text())
	}
}

func TestCanUndoFollowsActivePage(t *testing.T) {
	s, _ := newSession(t, "1.png", "2.png")
	if s.CanUndo() || s.CanRedo() {
		t.Fatalf("fresh session reports history")
	}
	_ = s.SetText("a")
	if !s.CanUndo() || s.CanRedo() {
		t.Fatalf("expected undo after an edit")
	}
	_ = s.Next()
	if s.CanUndo() {
		t.Fatalf("history of page 1 leaked to page 2")
	}
	_ = s.Prev()
	if !s.Undo() || s.CanUndo() || !s.CanRedo() {
		t.Fatalf("expected only redo after undo")
	}
	if _, pages, snaps := s.UndoStats(); pages != 1 || snaps != 0 {
		t.Fatalf("unexpected undo stats: pages=%d snapshots=%d", pages, snaps)
	}
}
