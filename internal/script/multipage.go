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
	"strconv"
	"strings"
)

// pagePattern is a section header plus the marker that ends the section body.
type pagePattern struct {
	header *regexp.Regexp
	end    *regexp.Regexp
}

var pagePatterns = []pagePattern{
	{
		header: regexp.MustCompile(`(?i)(?:PAGE|Image)[\s:]*(\d+)[^\n]*\n`),
		end:    regexp.MustCompile(`(?i)\[?(?:PAGE|Image)[\s:]*\d+`),
	},
	{
		header: regexp.MustCompile(`(?i)\[(?:PAGE|Image)[\s:]*(\d+)\][^\n]*\n`),
		end:    regexp.MustCompile(`(?i)\[(?:PAGE|Image)[\s:]*\d+\]`),
	},
}

// MultiPageFormat assigns free text to pages by number, using "PAGE 3:", "Image 3" or
// "[PAGE 3]" section markers. Page n is the n-th loaded page. Tags are not touched.
type MultiPageFormat struct{}

func (MultiPageFormat) Name() string { return "multipage" }

// Detect uses the first pattern with any section. Sections numbered outside the loaded pages are
// dropped, so a match can carry no updates at all; it still stops the chain.
func (MultiPageFormat) Detect(doc string, names []string) (Result, bool) {
	for _, p := range pagePatterns {
		sections := p.sections(doc)
		if len(sections) == 0 {
			continue
		}
		var res Result
		for _, s := range sections {
			idx := s.number - 1
			if idx < 0 || idx >= len(names) {
				continue
			}
			res.Updates = append(res.Updates, Update{Index: idx, Name: names[idx], Text: strings.TrimSpace(s.body)})
		}
		return res, true
	}
	return Result{}, false
}

type section struct {
	number int
	body   string
}

// sections scans doc for headers. A body runs from the end of its header line up to the
// next end marker or the end of the document.
func (p pagePattern) sections(doc string) []section {
	var out []section
	pos := 0
	for pos < len(doc) {
		loc := p.header.FindStringSubmatchIndex(doc[pos:])
		if loc == nil {
			break
		}
		num := doc[pos+loc[2] : pos+loc[3]]
		start := pos + loc[1]
		end := len(doc)
		if e := p.end.FindStringIndex(doc[start:]); e != nil {
			end = start + e[0]
		}
		if n, err := strconv.Atoi(num); err == nil {
			out = append(out, section{number: n, body: doc[start:end]})
		}
		pos = end
	}
	return out
}
