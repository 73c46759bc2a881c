/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package natsort orders filenames the way people number pages: page2 before page10.
package natsort

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	collMu sync.Mutex
	coll   = collate.New(language.Und)
)

// Compare returns -1, 0 or +1. Both strings are split into maximal runs of decimal digits (any
// script, so full-width １２ counts) and non-digits. Digit runs compare by numeric value and
// sort before text runs; text runs compare with the root locale collator. When all compared runs
// tie the string with fewer runs sorts first, and remaining ties are broken byte-wise so that
// only identical strings compare equal.
func Compare(a, b string) int {
	ra, rb := runs(a), runs(b)
	n := len(ra)
	if len(rb) < n {
		n = len(rb)
	}
	for i := 0; i < n; i++ {
		var c int
		da, db := isDigitRun(ra[i]), isDigitRun(rb[i])
		switch {
		case da && db:
			c = compareNumeric(digitValues(ra[i]), digitValues(rb[i]))
		case da:
			c = -1
		case db:
			c = 1
		default:
			c = collateCompare(ra[i], rb[i])
		}
		if c != 0 {
			return c
		}
	}
	switch {
	case len(ra) < len(rb):
		return -1
	case len(ra) > len(rb):
		return 1
	}
	return strings.Compare(a, b)
}

// Less is Compare(a, b) < 0.
func Less(a, b string) bool { return Compare(a, b) < 0 }

// Strings sorts s in place in natural order.
func Strings(s []string) {
	sort.SliceStable(s, func(i, j int) bool { return Less(s[i], s[j]) })
}

func collateCompare(a, b string) int {
	collMu.Lock()
	defer collMu.Unlock()
	return coll.CompareString(a, b)
}

// compareNumeric compares two ASCII digit strings of any length without converting them.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func runs(s string) []string {
	var out []string
	start, prev := 0, false
	for i, r := range s {
		d := unicode.IsDigit(r)
		if i > 0 && d != prev {
			out = append(out, s[start:i])
			start = i
		}
		prev = d
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func isDigitRun(run string) bool {
	r, _ := utf8.DecodeRuneInString(run)
	return unicode.IsDigit(r)
}

// digitValues rewrites a digit run of any script as ASCII digits.
func digitValues(run string) string {
	var b strings.Builder
	b.Grow(len(run))
	for _, r := range run {
		b.WriteByte(byte('0' + digitValue(r)))
	}
	return b.String()
}

// digitValue returns the value of a decimal digit. Unicode encodes every decimal digit set as
// ten consecutive code points starting at zero, so the value is the position within the run
// of consecutive digits that ends at r.
func digitValue(r rune) int {
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	n := 0
	for unicode.IsDigit(r - rune(n+1)) {
		n++
	}
	return n % 10
}
