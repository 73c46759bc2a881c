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
	"fmt"
	"log/slog"
	"sort"
	"time"

	"mangascript/internal/domain"
	"mangascript/internal/script"
	"mangascript/internal/undo"
)

var (
	ErrNoActivePage    = errors.New("no active page")
	ErrNoPagesLoaded   = errors.New("no pages loaded")
	ErrEmptySelection  = errors.New("no lines selected")
	ErrLineOutOfRange  = errors.New("line out of range")
	ErrPageOutOfRange  = errors.New("page out of range")
	ErrUnknownShortcut = errors.New("no tag bound to key")
)

// FormatRaw is the Result.Format of an import that fell back to the active page.
const FormatRaw = "raw"

// Options configure a Session.
type Options struct {
	Viewer    Viewer
	Logger    *slog.Logger
	Undo      undo.Config
	AutoSpace bool             // default for Import
	Clock     func() time.Time // undo timestamps, time.Now when nil
}

// Session edits one page of a PageStore at a time. The page's text and tags are checked
// out into a live buffer and checked back in before the active page changes, so the store
// never aliases the buffer. A Session is not safe for concurrent use.
type Session struct {
	store     *PageStore
	viewer    Viewer
	log       *slog.Logger
	undo      *undo.Manager
	now       func() time.Time
	autoSpace bool

	current   int
	text      string
	tags      domain.Tags
	selection map[int]struct{}
}

func NewSession(store *PageStore, opts Options) *Session {
	if store == nil {
		store = NewPageStore(nil)
	}
	s := &Session{
		store:     store,
		viewer:    opts.Viewer,
		log:       opts.Logger,
		undo:      undo.NewManager(opts.Undo),
		now:       opts.Clock,
		autoSpace: opts.AutoSpace,
		current:   -1,
		tags:      domain.Tags{},
		selection: map[int]struct{}{},
	}
	if s.viewer == nil {
		s.viewer = nopViewer{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SetViewer replaces the viewer and tells it the current state.
func (s *Session) SetViewer(v Viewer) {
	if v == nil {
		v = nopViewer{}
	}
	s.viewer = v
	v.OnPageCountChanged(s.store.Len())
	if p, err := s.ActivePage(); err == nil {
		v.OnPageActivated(s.current, p)
	}
}

func (s *Session) Store() *PageStore { return s.store }

// Current returns the active page index or -1.
func (s *Session) Current() int { return s.current }

// LoadPages replaces the collection with a freshly loaded folder and activates the first page.
// Unflushed edits of the old collection are discarded with it.
func (s *Session) LoadPages(pages []domain.Page) {
	s.store.Replace(pages)
	s.undo.Reset()
	s.current = -1
	s.text, s.tags = "", domain.Tags{}
	s.clearSelection()
	s.viewer.OnPageCountChanged(s.store.Len())
	if s.store.Len() > 0 {
		_ = s.Activate(0)
	}
}

// Activate flushes the live buffer and checks out page i.
func (s *Session) Activate(i int) error {
	if s.store.Len() == 0 {
		return ErrNoPagesLoaded
	}
	if i < 0 || i >= s.store.Len() {
		return fmt.Errorf("%w: %d", ErrPageOutOfRange, i+1)
	}
	s.Flush()
	s.checkout(i)
	return nil
}

func (s *Session) First() error { return s.Activate(0) }
func (s *Session) Last() error  { return s.Activate(s.store.Len() - 1) }

// Prev activates the previous page; on the first page it does nothing.
func (s *Session) Prev() error {
	if s.current <= 0 {
		return s.noActive()
	}
	return s.Activate(s.current - 1)
}

// Next activates the next page; on the last page it does nothing.
func (s *Session) Next() error {
	if s.current < 0 {
		return s.noActive()
	}
	if s.current >= s.store.Len()-1 {
		return nil
	}
	return s.Activate(s.current + 1)
}

func (s *Session) noActive() error {
	if s.store.Len() == 0 {
		return ErrNoPagesLoaded
	}
	if s.current < 0 {
		return ErrNoActivePage
	}
	return nil
}

// Flush checks the live buffer back into the active page.
func (s *Session) Flush() {
	if s.current < 0 {
		return
	}
	s.store.Checkin(s.current, s.text, s.tags)
}

func (s *Session) checkout(i int) {
	text, tags, _ := s.store.Checkout(i)
	s.current = i
	s.text, s.tags = text, tags
	s.clearSelection()
	s.notifyActive()
}

func (s *Session) notifyActive() {
	if p, err := s.ActivePage(); err == nil {
		s.viewer.OnPageActivated(s.current, p)
	}
}

// ActivePage returns the active page with the live buffer applied. It does not flush.
func (s *Session) ActivePage() (domain.Page, error) {
	p, ok := s.store.Page(s.current)
	if !ok {
		return domain.Page{}, ErrNoActivePage
	}
	p.Text = s.text
	p.Tags = s.tags.Clone()
	return p, nil
}

// AllPages flushes the live buffer and returns copies of every page.
func (s *Session) AllPages() []domain.Page {
	s.Flush()
	return s.store.Pages()
}

// Text returns the live buffer.
func (s *Session) Text() string { return s.text }

// Tags returns a copy of the live tag map.
func (s *Session) Tags() domain.Tags { return s.tags.Clone() }

// LineCount is the number of lines of the live buffer, 0 without an active page.
func (s *Session) LineCount() int {
	if s.current < 0 {
		return 0
	}
	return domain.LineCount(s.text)
}

// SetText replaces the live buffer. Tags on lines that no longer exist are kept; the
// selection is trimmed to the new line count.
func (s *Session) SetText(text string) error {
	if s.current < 0 {
		return ErrNoActivePage
	}
	if text == s.text {
		return nil
	}
	s.pushUndo()
	s.text = text
	n := s.LineCount()
	for ln := range s.selection {
		if ln > n {
			delete(s.selection, ln)
		}
	}
	return nil
}

// ToggleLine flips line n in the selection. With extend and a non-empty selection it
// instead adds every line between the highest selected line and n.
func (s *Session) ToggleLine(n int, extend bool) error {
	if err := s.checkLine(n); err != nil {
		return err
	}
	if extend && len(s.selection) > 0 {
		top := 0
		for ln := range s.selection {
			top = max(top, ln)
		}
		for ln := min(top, n); ln <= max(top, n); ln++ {
			s.selection[ln] = struct{}{}
		}
		return nil
	}
	if _, ok := s.selection[n]; ok {
		delete(s.selection, n)
	} else {
		s.selection[n] = struct{}{}
	}
	return nil
}

// Selection returns the selected line numbers in ascending order.
func (s *Session) Selection() []int {
	out := make([]int, 0, len(s.selection))
	for ln := range s.selection {
		out = append(out, ln)
	}
	sort.Ints(out)
	return out
}

func (s *Session) ClearSelection() { s.clearSelection() }

func (s *Session) clearSelection() { s.selection = map[int]struct{}{} }

// ApplyTagToSelection stores tag for every selected line. TagNone is stored explicitly.
// The selection is cleared afterwards.
func (s *Session) ApplyTagToSelection(tag domain.Tag) error {
	if !tag.Valid() {
		return fmt.Errorf("apply tag: %w", unknownTag(tag))
	}
	return s.editSelection(func(ln int) { s.tags[ln] = tag })
}

// ClearSelectionTags removes the tags of every selected line and clears the selection.
func (s *Session) ClearSelectionTags() error {
	return s.editSelection(func(ln int) { delete(s.tags, ln) })
}

func (s *Session) editSelection(fn func(ln int)) error {
	if s.current < 0 {
		return ErrNoActivePage
	}
	if len(s.selection) == 0 {
		return ErrEmptySelection
	}
	s.pushUndo()
	for ln := range s.selection {
		fn(ln)
	}
	s.clearSelection()
	return nil
}

// SetLineTag tags line n, or removes its tag when tag is TagNone.
func (s *Session) SetLineTag(n int, tag domain.Tag) error {
	if !tag.Valid() {
		return fmt.Errorf("set line tag: %w", unknownTag(tag))
	}
	if err := s.checkLine(n); err != nil {
		return err
	}
	s.pushUndo()
	if tag == domain.TagNone {
		delete(s.tags, n)
	} else {
		s.tags[n] = tag
	}
	return nil
}

// TagLineWithKey applies the shortcut bound to key to line n.
func (s *Session) TagLineWithKey(n int, key rune) error {
	tag, ok := domain.TagForKey(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownShortcut, key)
	}
	return s.SetLineTag(n, tag)
}

func (s *Session) checkLine(n int) error {
	if s.current < 0 {
		return ErrNoActivePage
	}
	if n < 1 || n > s.LineCount() {
		return fmt.Errorf("%w: %d of %d", ErrLineOutOfRange, n, s.LineCount())
	}
	return nil
}

func unknownTag(tag domain.Tag) error {
	_, err := domain.ParseTag(string(tag))
	return err
}

func (s *Session) pushUndo() {
	s.undo.PushSnapshot(undo.Snapshot{Page: s.current, Text: s.text, Tags: s.tags, TS: s.now()})
}

// Undo restores the active page's previous text and tags.
func (s *Session) Undo() bool {
	if s.current < 0 {
		return false
	}
	prev, ok := s.undo.Undo(s.current, s.state())
	if ok {
		s.restore(prev)
	}
	return ok
}

// Redo reapplies the edit reverted by the last Undo.
func (s *Session) Redo() bool {
	if s.current < 0 {
		return false
	}
	next, ok := s.undo.Redo(s.current, s.state())
	if ok {
		s.restore(next)
	}
	return ok
}

// CanUndo reports whether the active page has an edit to undo.
func (s *Session) CanUndo() bool { return s.current >= 0 && s.undo.CanUndo(s.current) }

// CanRedo reports whether the active page has an undone edit to reapply.
func (s *Session) CanRedo() bool { return s.current >= 0 && s.undo.CanRedo(s.current) }

// UndoStats reports the memory held by undo history across all pages.
func (s *Session) UndoStats() (bytes, pages, snapshots int) { return s.undo.Stats() }

func (s *Session) state() undo.Snapshot {
	return undo.Snapshot{Page: s.current, Text: s.text, Tags: s.tags, TS: s.now()}
}

func (s *Session) restore(snap undo.Snapshot) {
	s.text = snap.Text
	s.tags = snap.Tags.Clone()
	if s.tags == nil {
		s.tags = domain.Tags{}
	}
	s.clearSelection()
	s.notifyActive()
}

// Import parses doc with the default detector chain and the session's auto-space setting.
func (s *Session) Import(doc string) (script.Result, error) {
	return s.ImportWith(doc, script.Chain(script.Options{AutoSpace: s.autoSpace}))
}

// ImportWith runs doc through chain. Matched pages get the detected content, unmatched pages
// are left alone. When nothing matches, the whole document becomes the active page's text.
// The live buffer is flushed first and refreshed afterwards.
func (s *Session) ImportWith(doc string, chain []script.Detector) (script.Result, error) {
	if s.store.Len() == 0 {
		return script.Result{}, ErrNoPagesLoaded
	}
	s.Flush()
	res, err := script.Detect(doc, s.store.Names(), chain)
	switch {
	case errors.Is(err, script.ErrFormatNotRecognized):
		if s.current < 0 {
			return script.Result{}, fmt.Errorf("%w: %w", err, ErrNoActivePage)
		}
		res = script.Result{Format: FormatRaw, Updates: []script.Update{{
			Index: s.current,
			Name:  s.store.Names()[s.current],
			Text:  script.Normalize(doc),
		}}}
	case err != nil:
		return script.Result{}, err
	}

	for _, u := range res.Updates {
		text, tags, ok := s.store.Checkout(u.Index)
		if !ok {
			continue
		}
		s.undo.PushSnapshot(undo.Snapshot{Page: u.Index, Text: text, Tags: tags, TS: s.now()})
		if u.Tags != nil {
			tags = u.Tags
		}
		s.store.Checkin(u.Index, u.Text, tags)
	}
	s.log.Info("script imported", slog.String("format", res.Format), slog.Int("pages", len(res.Updates)), slog.Int("tags", res.TagCount()))

	s.viewer.OnPageCountChanged(s.store.Len())
	if s.current >= 0 {
		s.checkout(s.current)
	}
	return res, nil
}
