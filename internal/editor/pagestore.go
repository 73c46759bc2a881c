/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor holds the page collection and the editing session that works on one page
// at a time: live text buffer, line tags, line selection and undo history.
package editor

import (
	"mangascript/internal/domain"
)

// PageStore owns the ordered page collection. Every accessor hands out copies; edits come
// back through Checkin.
type PageStore struct {
	pages []domain.Page
}

func NewPageStore(pages []domain.Page) *PageStore {
	s := &PageStore{}
	s.Replace(pages)
	return s
}

// Replace swaps the whole collection, e.g. after loading another folder.
func (s *PageStore) Replace(pages []domain.Page) {
	s.pages = make([]domain.Page, len(pages))
	for i, p := range pages {
		s.pages[i] = p.Clone()
	}
}

func (s *PageStore) Len() int { return len(s.pages) }

// Page returns a copy of page i.
func (s *PageStore) Page(i int) (domain.Page, bool) {
	if i < 0 || i >= len(s.pages) {
		return domain.Page{}, false
	}
	return s.pages[i].Clone(), true
}

// Pages returns copies of all pages in order.
func (s *PageStore) Pages() []domain.Page {
	out := make([]domain.Page, len(s.pages))
	for i, p := range s.pages {
		out[i] = p.Clone()
	}
	return out
}

func (s *PageStore) Names() []string {
	out := make([]string, len(s.pages))
	for i, p := range s.pages {
		out[i] = p.Name
	}
	return out
}

// IndexOf returns the index of the page named name, or -1.
func (s *PageStore) IndexOf(name string) int {
	for i, p := range s.pages {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Checkout copies the text and tags of page i out for editing.
func (s *PageStore) Checkout(i int) (string, domain.Tags, bool) {
	if i < 0 || i >= len(s.pages) {
		return "", nil, false
	}
	p := s.pages[i]
	tags := p.Tags.Clone()
	if tags == nil {
		tags = domain.Tags{}
	}
	return p.Text, tags, true
}

// Checkin stores text and a copy of tags into page i.
func (s *PageStore) Checkin(i int, text string, tags domain.Tags) bool {
	if i < 0 || i >= len(s.pages) {
		return false
	}
	s.pages[i].Text = text
	s.pages[i].Tags = tags.Clone()
	return true
}
