/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Tag is a short categorical prefix marking the kind of a script line.
// The empty tag is an explicit "no tag" marker and differs from an absent key.
type Tag string

const (
	TagNone    Tag = ""
	TagBubble  Tag = `""`
	TagThought Tag = "()"
	TagLinked  Tag = "::"
	TagOutside Tag = "OT:"
	TagSmall   Tag = "ST:"
	TagSFX     Tag = "SFX:"
	TagSplit   Tag = "//"
	TagBox     Tag = "[]"
	TagDash    Tag = "--"
)

// PrefixTags lists the non-empty tags in detection priority order.
// Import matching tests them in this order, first hit wins.
var PrefixTags = []Tag{TagBubble, TagThought, TagLinked, TagOutside, TagSmall, TagSFX, TagSplit, TagBox, TagDash}

// Shortcut binds a single key to a tag.
type Shortcut struct {
	Key rune
	Tag Tag
}

// TagTable is the keyboard shortcut table. Key '0' maps to TagNone, which removes a line's tag.
var TagTable = []Shortcut{
	{'1', TagBubble}, {'2', TagThought}, {'3', TagLinked}, {'4', TagOutside}, {'5', TagSmall},
	{'6', TagSFX}, {'7', TagSplit}, {'8', TagBox}, {'9', TagDash}, {'0', TagNone},
}

// TagForKey looks up the shortcut table.
func TagForKey(key rune) (Tag, bool) {
	for _, s := range TagTable {
		if s.Key == key {
			return s.Tag, true
		}
	}
	return TagNone, false
}

// Valid reports whether t is one of the ten known tag strings.
func (t Tag) Valid() bool {
	if t == TagNone {
		return true
	}
	for _, p := range PrefixTags {
		if p == t {
			return true
		}
	}
	return false
}

// Label returns a human readable name for the tag.
func (t Tag) Label() string {
	switch t {
	case TagBubble:
		return "speech bubble"
	case TagThought:
		return "thought bubble"
	case TagLinked:
		return "linked bubble"
	case TagOutside:
		return "off-bubble text"
	case TagSmall:
		return "small text"
	case TagSFX:
		return "sound effect"
	case TagSplit:
		return "split bubble"
	case TagBox:
		return "narration box"
	case TagDash:
		return "continuation"
	default:
		return "none"
	}
}

// Rank is the position of t in the shortcut table, used as a stable tie-break.
func (t Tag) Rank() int {
	for i, s := range TagTable {
		if s.Tag == t {
			return i
		}
	}
	return len(TagTable)
}

// ParseTag validates a user supplied tag string.
func ParseTag(s string) (Tag, error) {
	t := Tag(s)
	if !t.Valid() {
		return TagNone, fmt.Errorf("unknown tag %q", s)
	}
	return t, nil
}

func (t *Tag) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTag(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Tags maps 1-based line numbers to tags. Entries may reference lines past the
// current end of the text; readers filter against the line count.
type Tags map[int]Tag

// Clone copies the mapping. A nil mapping stays nil.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	c := make(Tags, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}

// Lines returns the tagged line numbers in ascending order.
func (t Tags) Lines() []int {
	out := make([]int, 0, len(t))
	for n := range t {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Effective returns the tag printed for line n, or TagNone when the line has none.
func (t Tags) Effective(n int) Tag {
	if t == nil {
		return TagNone
	}
	return t[n]
}

func (t *Tags) UnmarshalJSON(b []byte) error {
	var raw map[string]Tag
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Tags, len(raw))
	for k, v := range raw {
		n, err := strconv.Atoi(k)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid line number %q", k)
		}
		out[n] = v
	}
	*t = out
	return nil
}
