/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"mangascript/internal/domain"
)

const (
	ProjectFileName  = "project.json"
	AutosaveFileName = "project.autosave.json"
	BackupsDirName   = "backups"
)

// ErrNoProject is returned by Open when neither project.json nor a backup of it exists.
var ErrNoProject = errors.New("no project file")

//go:embed project.schema.json
var projectSchema []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(projectSchema))
	})
	return schema, schemaErr
}

// ProjectPath returns the location of the canonical project file for a folder.
func ProjectPath(root string) string { return filepath.Join(root, ProjectFileName) }

// Validate checks raw project bytes against the embedded JSON schema.
func Validate(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate project: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("project does not conform to schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Decode validates and parses a project snapshot.
func Decode(data []byte) (domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := Validate(data); err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("parse project: %w", err)
	}
	return snap, nil
}

// Open loads <root>/project.json. If the file cannot be read, parsed or validated,
// the latest backup is used instead.
func Open(root string) (domain.Snapshot, error) {
	path := ProjectPath(root)
	b, err := os.ReadFile(path)
	if err != nil {
		snap, berr := openFromLatestBackup(root)
		if berr != nil {
			if errors.Is(err, os.ErrNotExist) && errors.Is(berr, os.ErrNotExist) {
				return domain.Snapshot{}, ErrNoProject
			}
			return domain.Snapshot{}, fmt.Errorf("open project: %w; backup attempt: %v", err, berr)
		}
		return snap, nil
	}
	snap, derr := Decode(b)
	if derr != nil {
		bsnap, berr := openFromLatestBackup(root)
		if berr != nil {
			return domain.Snapshot{}, fmt.Errorf("%w; backup attempt: %v", derr, berr)
		}
		return bsnap, nil
	}
	return snap, nil
}

// Save writes snap to <root>/project.json with transactional semantics and a
// timestamped backup of the previous file (if present).
func Save(root string, snap domain.Snapshot) error {
	if strings.TrimSpace(root) == "" {
		return errors.New("root path is required")
	}
	data, err := encode(snap)
	if err != nil {
		return err
	}
	bdir := filepath.Join(root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	path := ProjectPath(root)
	if _, statErr := os.Stat(path); statErr == nil {
		stamp := time.Now().Format("20060102-150405")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", ProjectFileName, stamp))
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup current project: %w", cerr)
		}
	}
	return replaceFile(path, data)
}

// AutosaveCrashSnapshot writes snap next to project.json without touching it or
// its backups. It returns the path written.
func AutosaveCrashSnapshot(root string, snap domain.Snapshot) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", errors.New("root path is required")
	}
	data, err := encode(snap)
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, AutosaveFileName)
	if err := replaceFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Apply copies text and tags from snap onto pages with the same name.
// Pages missing from snap are left alone; snapshot entries without a page are ignored.
// It returns the number of pages updated.
func Apply(pages []domain.Page, snap domain.Snapshot) int {
	byName := make(map[string]domain.SnapshotPage, len(snap.Pages))
	for _, sp := range snap.Pages {
		byName[sp.Name] = sp
	}
	n := 0
	for i := range pages {
		sp, ok := byName[pages[i].Name]
		if !ok {
			continue
		}
		pages[i].Text = sp.Text
		pages[i].Tags = sp.Tags.Clone()
		if pages[i].Tags == nil {
			pages[i].Tags = domain.Tags{}
		}
		n++
	}
	return n
}

func encode(snap domain.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal project: %w", err)
	}
	return append(data, '\n'), nil
}

// replaceFile writes to a temp file in the target directory, then renames over path.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", base, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp %s: %w", base, werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", base, rerr)
	}
	return nil
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies src to dst, overwriting dst.
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// Backups lists project backups oldest first. The timestamp in the name sorts lexicographically.
func Backups(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, ProjectFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

// openFromLatestBackup tries the newest backup that still validates.
func openFromLatestBackup(root string) (domain.Snapshot, error) {
	candidates, err := Backups(root)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read backups dir: %w", err)
	}
	if len(candidates) == 0 {
		return domain.Snapshot{}, fmt.Errorf("no backups found: %w", os.ErrNotExist)
	}
	var lastErr error
	for i := len(candidates) - 1; i >= 0; i-- {
		b, err := os.ReadFile(candidates[i])
		if err != nil {
			lastErr = fmt.Errorf("read backup: %w", err)
			continue
		}
		snap, err := Decode(b)
		if err != nil {
			lastErr = err
			continue
		}
		return snap, nil
	}
	return domain.Snapshot{}, lastErr
}
