/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"errors"
	"strings"

	"mangascript/internal/domain"
)

// ErrFormatNotRecognized is returned when no detector in the chain matched any loaded page.
var ErrFormatNotRecognized = errors.New("script format not recognized")

// Update assigns new content to the page at Index.
// A nil Tags leaves the page's existing tags untouched.
type Update struct {
	Index int
	Name  string
	Text  string
	Tags  domain.Tags
}

// Result is what a detector extracted from a document.
type Result struct {
	Format  string
	Updates []Update
}

// TagCount sums the tags carried by all updates.
func (r Result) TagCount() int {
	n := 0
	for _, u := range r.Updates {
		n += len(u.Tags)
	}
	return n
}

// Detector recognises one script layout. Detect reports false when the document does not
// match any of the given page names, in which case the next detector is tried.
type Detector interface {
	Name() string
	Detect(doc string, names []string) (Result, bool)
}

// Options tune the default detector chain.
type Options struct {
	AutoSpace bool
}

// Chain returns the detectors in the order they are tried.
func Chain(opts Options) []Detector {
	return []Detector{
		DetectedFormat{AutoSpace: opts.AutoSpace},
		MultiPageFormat{},
	}
}

// Detect runs doc through the chain and returns the first successful result.
func Detect(doc string, names []string, chain []Detector) (Result, error) {
	doc = Normalize(doc)
	for _, d := range chain {
		if res, ok := d.Detect(doc, names); ok {
			res.Format = d.Name()
			return res, nil
		}
	}
	return Result{}, ErrFormatNotRecognized
}

// Normalize converts CRLF and lone CR line endings to LF.
func Normalize(doc string) string {
	if !strings.Contains(doc, "\r") {
		return doc
	}
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	return strings.ReplaceAll(doc, "\r", "\n")
}
