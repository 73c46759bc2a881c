/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package workspace binds an image folder to its editing session and its project file.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mangascript/internal/config"
	"mangascript/internal/domain"
	"mangascript/internal/editor"
	"mangascript/internal/export"
	"mangascript/internal/folder"
	applog "mangascript/internal/log"
	"mangascript/internal/script"
	"mangascript/internal/storage"
	"mangascript/internal/undo"
)

// historyKeep is the number of revisions kept per page after a save.
const historyKeep = 50

// Workspace is an open image folder: its pages, the editing session and the project file.
type Workspace struct {
	root    string
	cfg     config.AppConfig
	loader  *folder.Loader
	session *editor.Session
	log     *slog.Logger
	now     func() time.Time
}

// Open loads the page images of dir, applies an existing project.json and activates page 1.
func Open(ctx context.Context, dir string, cfg config.AppConfig) (*Workspace, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("folder is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve folder: %w", err)
	}
	l := applog.WithComponent("workspace").With(slog.String("folder", abs))
	loader, err := folder.NewLoader(folder.Options{Ignore: cfg.Folder.Ignore, Workers: cfg.Folder.Workers, Logger: l})
	if err != nil {
		return nil, err
	}
	w := &Workspace{root: abs, cfg: cfg, loader: loader, log: l, now: time.Now}
	w.session = editor.NewSession(editor.NewPageStore(nil), editor.Options{
		Logger:    l,
		AutoSpace: cfg.Editor.AutoSpace,
		Undo: undo.Config{
			MaxBytes:    cfg.Editor.UndoMaxBytes(),
			MaxPerPage:  cfg.Editor.UndoPerPage,
			MinInterval: 750 * time.Millisecond,
		},
	})
	pages, err := w.loadPages(ctx)
	if err != nil {
		return nil, err
	}
	w.session.LoadPages(pages)
	return w, nil
}

func (w *Workspace) loadPages(ctx context.Context) ([]domain.Page, error) {
	pages, err := w.loader.Load(ctx, w.root)
	if err != nil {
		return nil, err
	}
	snap, err := storage.Open(w.root)
	switch {
	case errors.Is(err, storage.ErrNoProject):
	case err != nil:
		return nil, fmt.Errorf("open project: %w", err)
	default:
		n := storage.Apply(pages, snap)
		w.log.Info("project applied", slog.Int("pages", n))
	}
	return pages, nil
}

// Root is the absolute image folder path.
func (w *Workspace) Root() string { return w.root }

// Session is the editing session. It must only be used from one goroutine.
func (w *Workspace) Session() *editor.Session { return w.session }

// Config returns the configuration the workspace was opened with.
func (w *Workspace) Config() config.AppConfig { return w.cfg }

// Pages returns a flushed copy of every page.
func (w *Workspace) Pages() []domain.Page { return w.session.AllPages() }

// Reload re-reads the folder after images were added or removed. Text and tags of pages
// that still exist are kept; the first page is activated.
func (w *Workspace) Reload(ctx context.Context) error {
	current := domain.NewSnapshot(w.session.AllPages())
	pages, err := w.loader.Load(ctx, w.root)
	if err != nil {
		return err
	}
	storage.Apply(pages, current)
	w.session.LoadPages(pages)
	return nil
}

// Save flushes the session and writes project.json. Page history and the search index
// are refreshed afterwards; failures there are logged, not returned.
func (w *Workspace) Save(ctx context.Context) error {
	pages := w.session.AllPages()
	if err := storage.Save(w.root, domain.NewSnapshot(pages)); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	l := applog.WithOperation(w.log, "save")
	if n, err := storage.SavePageHistory(ctx, w.root, pages, w.now()); err != nil {
		l.Warn("page history not recorded", slog.Any("err", err))
	} else if n > 0 {
		for _, p := range pages {
			if _, err := storage.PrunePageHistory(ctx, w.root, p.Name, historyKeep); err != nil {
				l.Warn("page history not pruned", slog.String("page", p.Name), slog.Any("err", err))
				break
			}
		}
	}
	if err := storage.UpdateIndex(ctx, w.root, pages); err != nil {
		l.Warn("index not updated", slog.Any("err", err))
	}
	l.Info("project saved", slog.Int("pages", len(pages)))
	ub, up, us := w.session.UndoStats()
	l.Debug("undo history", slog.Int("bytes", ub), slog.Int("pages", up), slog.Int("snapshots", us))
	return nil
}

// AutosaveCrash writes the current pages to project.autosave.json.
func (w *Workspace) AutosaveCrash() (string, error) {
	return storage.AutosaveCrashSnapshot(w.root, domain.NewSnapshot(w.session.AllPages()))
}

// Import runs doc through the detector chain, falling back to the active page.
func (w *Workspace) Import(doc string) (script.Result, error) {
	return w.session.Import(doc)
}

// ImportFile reads a script file and imports it.
func (w *Workspace) ImportFile(path string) (script.Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return script.Result{}, fmt.Errorf("read script: %w", err)
	}
	return w.Import(string(b))
}

// ExportDir is the configured export directory for this folder.
func (w *Workspace) ExportDir() string { return w.cfg.Export.ExportDir(w.root) }

// Export writes formats into outDir. Empty formats use the configured defaults and an empty
// outDir the configured export directory. FormatPage exports the active page.
func (w *Workspace) Export(formats []export.Format, outDir string) ([]string, error) {
	if len(formats) == 0 {
		fs, err := export.ParseFormats(w.cfg.Export.Formats)
		if err != nil {
			return nil, fmt.Errorf("configured export formats: %w", err)
		}
		formats = fs
	}
	if outDir == "" {
		outDir = w.ExportDir()
	}
	written, err := export.WriteFiles(w.session, export.BatchOptions{
		Formats: formats,
		OutDir:  outDir,
		Page:    max(w.session.Current(), 0),
		PDF: export.PDFOptions{
			Title:    filepath.Base(w.root),
			FontSize: w.cfg.Export.PDFFontSize,
			FontFile: w.cfg.Export.PDFFont,
		},
	})
	if err != nil {
		return written, err
	}
	w.log.Info("export finished", slog.Int("files", len(written)), slog.String("dir", outDir))
	return written, nil
}

// RebuildIndex recreates the search index from the current pages.
func (w *Workspace) RebuildIndex(ctx context.Context) error {
	return storage.RebuildIndex(ctx, w.root, w.session.AllPages())
}

// Search queries the folder index. The index reflects the last save or rebuild.
func (w *Workspace) Search(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error) {
	if _, err := storage.DetectAndRebuildIndex(ctx, w.root, w.session.AllPages()); err != nil {
		return nil, err
	}
	return storage.Search(ctx, w.root, q)
}

// History lists saved revisions of page i, newest first.
func (w *Workspace) History(ctx context.Context, i, limit int) ([]storage.PageRevision, error) {
	p, ok := w.session.Store().Page(i)
	if !ok {
		return nil, editor.ErrPageOutOfRange
	}
	return storage.ListPageHistory(ctx, w.root, p.Name, limit)
}

// WatchScript re-imports path whenever it changes and saves the result, until ctx is done.
// onImport, when set, is called after every import attempt.
func (w *Workspace) WatchScript(ctx context.Context, path string, onImport func(script.Result, error)) error {
	sw, err := folder.NewScriptWatcher(path, 0, w.log)
	if err != nil {
		return err
	}
	return sw.Run(ctx, func() {
		res, err := w.ImportFile(path)
		if err == nil {
			err = w.Save(ctx)
		}
		if err != nil {
			w.log.Warn("watched import failed", slog.String("path", path), slog.Any("err", err))
		}
		if onImport != nil {
			onImport(res, err)
		}
	})
}
