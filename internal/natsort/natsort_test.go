/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package natsort

import (
	"math/rand"
	"slices"
	"testing"
)

func TestCompareFilenames(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"p2.png", "p10.png", -1},
		{"page2.png", "page10.png", -1},
		{"page10.png", "page10a.png", -1},
		{"page10a.png", "page10.png", 1},
		{"007.jpg", "7.jpg", -1}, // numeric tie, byte-wise tie-break
		{"ページ２.png", "ページ10.png", -1},
		{"１２.png", "9.png", 1},
		{"１２.png", "12.png", 1},
		{"9.png", "a.png", -1},
		{"²a", "19é", 1}, // superscripts are text, digit runs come first
		{"a.png", "a.png", 0},
		{"chapter1", "chapter1-2", -1},
		{"99999999999999999999999.png", "100000000000000000000000.png", -1},
		{"", "a", -1},
	}
	for _, c := range cases {
		got := Compare(c.a, c.b)
		if sign(got) != c.want {
			t.Fatalf("Compare(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestStringsSortsPages(t *testing.T) {
	in := []string{"page10.png", "page1.png", "page10a.png", "page2.png"}
	Strings(in)
	want := []string{"page1.png", "page2.png", "page10.png", "page10a.png"}
	if !slices.Equal(in, want) {
		t.Fatalf("got %v, want %v", in, want)
	}
}

func TestCompareIsTotalOrder(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	alphabet := []rune("ab0129-._Pé１２٣²")
	gen := func() string {
		n := r.Intn(8)
		b := make([]rune, n)
		for i := range b {
			b[i] = alphabet[r.Intn(len(alphabet))]
		}
		return string(b)
	}
	var pool []string
	pool = append(pool, "２a", "9", "19é")
	for i := 0; i < 80; i++ {
		pool = append(pool, gen())
	}
	for _, a := range pool {
		if Compare(a, a) != 0 {
			t.Fatalf("not reflexive for %q", a)
		}
		for _, b := range pool {
			ab, ba := sign(Compare(a, b)), sign(Compare(b, a))
			if ab != -ba {
				t.Fatalf("not antisymmetric for %q, %q", a, b)
			}
			if ab == 0 && a != b {
				t.Fatalf("distinct strings compare equal: %q, %q", a, b)
			}
			for _, c := range pool {
				if Less(a, b) && Less(b, c) && !Less(a, c) {
					t.Fatalf("not transitive: %q < %q < %q", a, b, c)
				}
			}
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func TestDigitValue(t *testing.T) {
	cases := map[rune]int{'0': 0, '7': 7, '１': 1, '９': 9, '٣': 3, '𝟘': 0, '𝟡': 9, '𝟬': 0, '𝟵': 9}
	for r, want := range cases {
		if got := digitValue(r); got != want {
			t.Fatalf("digitValue(%q) = %d, want %d", r, got, want)
		}
	}
}
