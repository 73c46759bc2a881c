/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"strings"

	"mangascript/internal/domain"
)

// AutoSpace inserts one blank line between every pair of adjacent non-blank lines.
// Existing blank separators are kept as they are. AutoSpace(AutoSpace(x)) == AutoSpace(x).
func AutoSpace(text string) string {
	out, _ := AutoSpaceLines(domain.SplitLines(text))
	return strings.Join(out, "\n")
}

// AutoSpaceLines is AutoSpace over a line slice. remap[i] is the index of input line i in out.
func AutoSpaceLines(lines []string) (out []string, remap []int) {
	out = make([]string, 0, len(lines)*2)
	remap = make([]int, len(lines))
	for i, line := range lines {
		remap[i] = len(out)
		out = append(out, line)
		if i+1 < len(lines) && !blank(line) && !blank(lines[i+1]) {
			out = append(out, "")
		}
	}
	return out, remap
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
