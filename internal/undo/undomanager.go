/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"sync"
	"time"

	"mangascript/internal/domain"
)

// Snapshot is the text and tag state of one page at time TS.
type Snapshot struct {
	Page int
	Text string
	Tags domain.Tags
	TS   time.Time
}

// size estimates the memory held by the snapshot.
func (s Snapshot) size() int { return len(s.Text) + 16*len(s.Tags) }

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerPage limits the undo depth per page (0 means unlimited).
	MaxPerPage int
	// MinInterval merges edits on the same page made within the interval into one undo step.
	MinInterval time.Duration
}

// Manager keeps undo/redo stacks per page. Callers push the state from before an edit;
// Undo and Redo swap it with the state the caller currently shows.
// It is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex
	// per-page stacks
	undo map[int][]Snapshot
	redo map[int][]Snapshot
	// accounting, undo stacks only
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	return &Manager{cfg: cfg, undo: make(map[int][]Snapshot), redo: make(map[int][]Snapshot)}
}

// PushSnapshot records the state before an edit and clears the page's redo stack.
// Within MinInterval of the previous push for the same page the older state is kept,
// so a burst of typing undoes in one step.
func (m *Manager) PushSnapshot(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Tags = s.Tags.Clone()
	stack := m.undo[s.Page]
	m.redo[s.Page] = nil
	if n := len(stack); n > 0 {
		last := stack[n-1]
		if s.TS.Sub(last.TS) < m.cfg.MinInterval {
			stack[n-1].TS = s.TS
			return
		}
	}
	m.undo[s.Page] = append(stack, s)
	m.totalBytes += s.size()
	m.enforceCapsLocked(s.Page)
}

// Undo returns the previous state of page and saves current for Redo.
func (m *Manager) Undo(page int, current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[page]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[page] = stack[:len(stack)-1]
	m.totalBytes -= s.size()
	current.Page = page
	current.Tags = current.Tags.Clone()
	m.redo[page] = append(m.redo[page], current)
	return s, true
}

// Redo reverts the last Undo of page and saves current for Undo.
func (m *Manager) Redo(page int, current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[page]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[page] = r[:len(r)-1]
	current.Page = page
	current.Tags = current.Tags.Clone()
	m.undo[page] = append(m.undo[page], current)
	m.totalBytes += current.size()
	m.enforceCapsLocked(page)
	return s, true
}

// CanUndo reports whether page has undo history.
func (m *Manager) CanUndo(page int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[page]) > 0
}

// CanRedo reports whether page has an undone edit to reapply.
func (m *Manager) CanRedo(page int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[page]) > 0
}

// Reset drops all history, e.g. when a new folder replaces the pages.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = make(map[int][]Snapshot)
	m.redo = make(map[int][]Snapshot)
	m.totalBytes = 0
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, pages int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pages = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, pages, totalSnapshots
}

func (m *Manager) enforceCapsLocked(page int) {
	if m.cfg.MaxPerPage > 0 {
		stack := m.undo[page]
		if len(stack) > m.cfg.MaxPerPage {
			toDrop := len(stack) - m.cfg.MaxPerPage
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= stack[i].size()
			}
			m.undo[page] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune the oldest entry across all pages.
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldestPage, found := 0, false
		var oldestTS time.Time
		for p, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldestPage, oldestTS, found = p, stack[0].TS, true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldestPage]
		m.totalBytes -= stack[0].size()
		m.undo[oldestPage] = stack[1:]
		if len(m.undo[oldestPage]) == 0 {
			delete(m.undo, oldestPage)
		}
	}
}
