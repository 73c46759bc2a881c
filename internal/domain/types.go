/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "strings"

// This file defines the core data model of the manga script editor: pages loaded from an
// image folder, their script text and the sparse per-line tag mapping.

// ImageRef describes the page image as seen by the folder loader.
// The core never looks inside; it is carried along for the viewer.
type ImageRef struct {
	Path   string `json:"path,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Format string `json:"format,omitempty"` // jpeg, png, gif, webp
}

// Page is one manga image plus its script text and line tags.
// Name is the source filename and is unique within a folder.
type Page struct {
	Name  string
	Image ImageRef
	Text  string
	Tags  Tags
}

// HasText reports whether the page carries any non-whitespace text.
func (p Page) HasText() bool { return strings.TrimSpace(p.Text) != "" }

// Lines splits the page text into lines. Line n (1-based) is Lines()[n-1].
func (p Page) Lines() []string { return SplitLines(p.Text) }

// Clone returns a copy that shares no mutable state with p.
func (p Page) Clone() Page {
	c := p
	c.Tags = p.Tags.Clone()
	return c
}

// SplitLines splits text on '\n'. An empty text is a single empty line, matching
// what an editor shows for an empty buffer.
func SplitLines(text string) []string { return strings.Split(text, "\n") }

// LineCount returns the number of lines an editor shows for text.
func LineCount(text string) int { return strings.Count(text, "\n") + 1 }

// Snapshot is the lossless JSON export of all pages.
// It is the only format meant to be read back.
type Snapshot struct {
	Pages []SnapshotPage `json:"pages"`
}

// SnapshotPage is the serialized form of a Page. Tags keys are line numbers as strings.
type SnapshotPage struct {
	Name    string `json:"name"`
	Text    string `json:"text"`
	Tags    Tags   `json:"tags"`
	HasText bool   `json:"hasText"`
}

// NewSnapshot builds a snapshot from pages in order.
func NewSnapshot(pages []Page) Snapshot {
	s := Snapshot{Pages: make([]SnapshotPage, 0, len(pages))}
	for _, p := range pages {
		tags := p.Tags.Clone()
		if tags == nil {
			tags = Tags{}
		}
		s.Pages = append(s.Pages, SnapshotPage{Name: p.Name, Text: p.Text, Tags: tags, HasText: p.HasText()})
	}
	return s
}
