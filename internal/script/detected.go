/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"regexp"
	"strings"

	"mangascript/internal/domain"
)

var reHeading = regexp.MustCompile(`(?i)^([\w\-.]+\.(?:jpe?g|png|gif|webp)):?\s*$`)

// DetectedFormat parses documents made of blocks headed by a page filename:
//
//	001.png:
//	OT: Hello
//	World
//
// Body lines starting with a tag prefix and one space are tagged, the prefix is stripped.
type DetectedFormat struct {
	AutoSpace bool
}

func (DetectedFormat) Name() string { return "detected" }

type block struct {
	name  string
	lines []string
	tags  domain.Tags
}

func (d DetectedFormat) Detect(doc string, names []string) (Result, bool) {
	blocks := map[string]block{}
	var cur *block
	commit := func() {
		if cur == nil {
			return
		}
		if b, ok := cur.finish(d.AutoSpace); ok {
			blocks[b.name] = b
		}
		cur = nil
	}
	for _, line := range strings.Split(doc, "\n") {
		if m := reHeading.FindStringSubmatch(line); m != nil {
			commit()
			cur = &block{name: m[1], tags: domain.Tags{}}
			continue
		}
		if cur == nil {
			continue
		}
		text, tag, ok := SplitPrefix(line)
		if ok {
			cur.tags[len(cur.lines)+1] = tag
		}
		cur.lines = append(cur.lines, text)
	}
	commit()

	var res Result
	for i, name := range names {
		b, ok := blocks[name]
		if !ok {
			continue
		}
		res.Updates = append(res.Updates, Update{Index: i, Name: name, Text: strings.Join(b.lines, "\n"), Tags: b.tags})
	}
	return res, len(res.Updates) > 0
}

// finish drops trailing blank lines and optionally spaces the block out.
// A block left without lines is reported as empty.
func (b block) finish(autoSpace bool) (block, bool) {
	n := len(b.lines)
	for n > 0 && strings.TrimSpace(b.lines[n-1]) == "" {
		n--
	}
	if n == 0 {
		return b, false
	}
	b.lines = b.lines[:n]
	for ln := range b.tags {
		if ln > n {
			delete(b.tags, ln)
		}
	}
	if !autoSpace {
		return b, true
	}
	spaced, remap := AutoSpaceLines(b.lines)
	tags := make(domain.Tags, len(b.tags))
	for ln, tag := range b.tags {
		tags[remap[ln-1]+1] = tag
	}
	b.lines, b.tags = spaced, tags
	return b, true
}

// SplitPrefix reports whether line starts with a known tag followed by exactly one space
// and returns the remaining text. Prefixes are tested in priority order.
func SplitPrefix(line string) (string, domain.Tag, bool) {
	for _, tag := range domain.PrefixTags {
		p := string(tag) + " "
		if strings.HasPrefix(line, p) {
			return line[len(p):], tag, true
		}
	}
	return line, domain.TagNone, false
}
