/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mangascript/internal/domain"
)

func sampleSnapshot() domain.Snapshot {
	return domain.NewSnapshot([]domain.Page{
		{Name: "001.png", Text: "Hello\nSFX: boom", Tags: domain.Tags{2: domain.TagSFX}},
		{Name: "002.png"},
	})
}

func TestSaveAndOpenRoundTrip(t *testing.T) {
	root := t.TempDir()
	if err := Save(root, sampleSnapshot()); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if len(got.Pages) != 2 || got.Pages[0].Text != "Hello\nSFX: boom" || got.Pages[0].Tags[2] != domain.TagSFX {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if !got.Pages[0].HasText || got.Pages[1].HasText {
		t.Fatalf("hasText not preserved: %+v", got)
	}
}

func TestOpenWithoutProject(t *testing.T) {
	if _, err := Open(t.TempDir()); !errors.Is(err, ErrNoProject) {
		t.Fatalf("expected ErrNoProject, got %v", err)
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	if err := Save(root, sampleSnapshot()); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := Save(root, domain.Snapshot{Pages: []domain.SnapshotPage{}}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	baks, err := Backups(root)
	if err != nil {
		t.Fatalf("Backups error: %v", err)
	}
	if len(baks) == 0 {
		t.Fatalf("expected at least one backup file, found 0")
	}
	for _, b := range baks {
		if !strings.HasPrefix(filepath.Base(b), ProjectFileName+".") {
			t.Fatalf("unexpected backup name %q", b)
		}
	}
}

func TestOpenFallsBackToLatestBackupOnCorruption(t *testing.T) {
	root := t.TempDir()
	if err := Save(root, sampleSnapshot()); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	// a second save moves the first file into backups/
	if err := Save(root, sampleSnapshot()); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := os.WriteFile(ProjectPath(root), []byte("{ this is not json"), 0o644); err != nil {
		t.Fatalf("corrupt project: %v", err)
	}
	got, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if len(got.Pages) != 2 || got.Pages[0].Name != "001.png" {
		t.Fatalf("backup content mismatch: %+v", got)
	}
}

func TestValidateRejectsUnknownTags(t *testing.T) {
	bad := []string{
		`{"pages":[{"name":"a.png","text":"x","tags":{"1":"XYZ:"}}]}`,
		`{"pages":[{"name":"a.png","text":"x","tags":{"0":"SFX:"}}]}`,
		`{"pages":[{"name":"a.png","text":"x","tags":{"one":"SFX:"}}]}`,
		`{"pages":[{"text":"x","tags":{}}]}`,
		`{}`,
	}
	for _, doc := range bad {
		if err := Validate([]byte(doc)); err == nil {
			t.Fatalf("expected validation error for %s", doc)
		}
	}
	ok := `{"pages":[{"name":"a.png","text":"x","tags":{"1":"","2":"\"\"","3":"//"}}]}`
	if err := Validate([]byte(ok)); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}
}

func TestOpenRejectsInvalidProjectWithoutBackup(t *testing.T) {
	root := t.TempDir()
	doc := `{"pages":[{"name":"a.png","text":"x","tags":{"1":"BAD"}}]}`
	if err := os.WriteFile(ProjectPath(root), []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Open(root)
	if err == nil || errors.Is(err, ErrNoProject) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyMergesByName(t *testing.T) {
	pages := []domain.Page{{Name: "002.png"}, {Name: "003.png", Text: "keep"}, {Name: "001.png"}}
	n := Apply(pages, sampleSnapshot())
	if n != 2 {
		t.Fatalf("expected 2 pages updated, got %d", n)
	}
	if pages[2].Text != "Hello\nSFX: boom" || pages[2].Tags[2] != domain.TagSFX {
		t.Fatalf("001.png not applied: %+v", pages[2])
	}
	if pages[0].Text != "" || pages[0].Tags == nil {
		t.Fatalf("002.png should be empty with non-nil tags: %+v", pages[0])
	}
	if pages[1].Text != "keep" {
		t.Fatalf("page missing from snapshot must be untouched: %+v", pages[1])
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	root := t.TempDir()
	path, err := AutosaveCrashSnapshot(root, sampleSnapshot())
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(got.Pages) != 2 {
		t.Fatalf("snapshot content mismatch: %+v", got)
	}
	if _, err := os.Stat(ProjectPath(root)); !os.IsNotExist(err) {
		t.Fatalf("autosave must not create project.json")
	}
}
