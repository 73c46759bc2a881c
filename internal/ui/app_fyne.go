//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"mangascript/internal/config"
	"mangascript/internal/crash"
	"mangascript/internal/domain"
	"mangascript/internal/editor"
	"mangascript/internal/export"
	applog "mangascript/internal/log"
	"mangascript/internal/storage"
	"mangascript/internal/workspace"
)

// Run starts the desktop viewer. Pass an optional image folder to open immediately.
func Run(dir string) error {
	dotenvErr := config.LoadDotEnv()
	cfg, cerr := config.Load()
	applog.Init(applog.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File})
	l := applog.WithComponent("ui")
	if dotenvErr != nil {
		l.Warn(".env not loaded", slog.Any("err", dotenvErr))
	}
	if cerr != nil {
		l.Warn("config not loaded", slog.Any("err", cerr))
	}
	l.Info("starting UI")

	cur := &openWorkspace{}
	defer crash.Recover(cur)

	fyneApp := app.NewWithID("mangascript")
	w := fyneApp.NewWindow(windowTitle("", -1, 0))
	prefs := fyneApp.Preferences()
	w.Resize(fyne.NewSize(float32(max(prefs.IntWithFallback("window.width", 1200), 800)), float32(max(prefs.IntWithFallback("window.height", 800), 600))))

	v := newViewer(w, l)
	w.SetContent(v.content())

	open := func(path string) {
		ws, err := workspace.Open(context.Background(), path, cfg)
		if err != nil {
			l.Error("open folder failed", slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		cur.ws = ws
		v.attach(ws)
		addRecentFolder(prefs, ws.Root())
	}

	recentMenu := fyne.NewMenuItem("Open Recent", nil)
	refreshRecent := func() {
		var items []*fyne.MenuItem
		for _, p := range loadRecentFolders(prefs) {
			items = append(items, fyne.NewMenuItem(p, func() { open(p) }))
		}
		recentMenu.ChildMenu = fyne.NewMenu("", items...)
		recentMenu.Disabled = len(items) == 0
	}
	refreshRecent()

	openItem := fyne.NewMenuItem("Open Folder…", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil {
				l.Error("open dialog error", slog.Any("err", err))
				return
			}
			if uri == nil {
				return
			}
			open(uri.Path())
			refreshRecent()
		}, w)
	})
	importItem := fyne.NewMenuItem("Import Script…", v.importDialog)
	saveItem := fyne.NewMenuItem("Save", v.save)
	exportMenu := fyne.NewMenuItem("Export", nil)
	exportMenu.ChildMenu = fyne.NewMenu("",
		fyne.NewMenuItem("Save set (text + JSON)", func() { v.export(string(export.PresetSave)) }),
		fyne.NewMenuItem("Review set (reports)", func() { v.export(string(export.PresetReview)) }),
		fyne.NewMenuItem("PDF script", func() { v.export(string(export.FormatPDF)) }),
		fyne.NewMenuItem("Current page", func() { v.export(string(export.FormatPage)) }),
	)
	fileMenu := fyne.NewMenu("File", openItem, recentMenu, fyne.NewMenuItemSeparator(), importItem, saveItem, exportMenu)
	editMenu := fyne.NewMenu("Edit",
		v.undoItem,
		v.redoItem,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Clear Tags of Selection", func() { v.applyKey('0') }),
		fyne.NewMenuItem("Clear Selection", v.clearSelection),
	)
	goMenu := fyne.NewMenu("Go",
		fyne.NewMenuItem("First Page", func() { v.navigate((*editor.Session).First) }),
		fyne.NewMenuItem("Previous Page", func() { v.navigate((*editor.Session).Prev) }),
		fyne.NewMenuItem("Next Page", func() { v.navigate((*editor.Session).Next) }),
		fyne.NewMenuItem("Last Page", func() { v.navigate((*editor.Session).Last) }),
	)
	v.editMenu = editMenu
	v.refreshUndo()
	w.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, goMenu))

	c := w.Canvas()
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { v.save() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { v.undo() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { v.redo() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyPageDown, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { v.navigate((*editor.Session).Next) })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyPageUp, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { v.navigate((*editor.Session).Prev) })
	// Digits reach the canvas only while the script entry is not focused.
	c.SetOnTypedRune(func(r rune) { v.applyKey(r) })

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		if cur.ws != nil {
			v.save()
		}
		w.Close()
	})

	if strings.TrimSpace(dir) != "" {
		open(dir)
	}
	w.ShowAndRun()
	return nil
}

// openWorkspace lets the crash handler reach whatever folder is open when a panic happens.
type openWorkspace struct{ ws *workspace.Workspace }

func (o *openWorkspace) Root() string {
	if o.ws == nil {
		return ""
	}
	return o.ws.Root()
}

func (o *openWorkspace) AutosaveCrash() (string, error) {
	if o.ws == nil {
		return "", fmt.Errorf("no folder open")
	}
	return o.ws.AutosaveCrash()
}

// viewer renders the session and forwards user input to it. It implements editor.Viewer.
type viewer struct {
	w  fyne.Window
	l  *slog.Logger
	ws *workspace.Workspace
	s  *editor.Session

	// syncing suppresses change callbacks while the viewer itself updates widgets.
	syncing bool

	pageNames []string
	lines     []string
	hits      []storage.SearchResult
	hitRows   []string

	image     *canvas.Image
	pagesList *widget.List
	linesList *widget.List
	hitsList  *widget.List
	entry     *widget.Entry
	search    *widget.Entry
	status    *widget.Label

	editMenu *fyne.Menu
	undoItem *fyne.MenuItem
	redoItem *fyne.MenuItem
}

var _ editor.Viewer = (*viewer)(nil)

func newViewer(w fyne.Window, l *slog.Logger) *viewer {
	v := &viewer{w: w, l: l}
	v.image = canvas.NewImageFromResource(nil)
	v.image.FillMode = canvas.ImageFillContain
	v.image.SetMinSize(fyne.NewSize(360, 480))

	v.pagesList = widget.NewList(
		func() int { return len(v.pageNames) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) { o.(*widget.Label).SetText(v.pageNames[i]) },
	)
	v.pagesList.OnSelected = func(id widget.ListItemID) {
		if v.s == nil || v.syncing || int(id) == v.s.Current() {
			return
		}
		if err := v.s.Activate(int(id)); err != nil {
			v.setStatus(err.Error())
		}
	}

	v.linesList = widget.NewList(
		func() int { return len(v.lines) },
		func() fyne.CanvasObject {
			lbl := widget.NewLabel("")
			lbl.TextStyle = fyne.TextStyle{Monospace: true}
			return lbl
		},
		func(i widget.ListItemID, o fyne.CanvasObject) { o.(*widget.Label).SetText(v.lines[i]) },
	)
	v.linesList.OnSelected = func(id widget.ListItemID) {
		v.linesList.Unselect(id)
		if v.s == nil {
			return
		}
		// clicks accumulate; Escape or a page switch clears
		if err := v.s.ToggleLine(int(id)+1, true); err != nil {
			v.setStatus(err.Error())
		}
		v.refreshLines()
	}

	v.entry = widget.NewMultiLineEntry()
	v.entry.SetPlaceHolder("Script text for this page. One balloon per line.")
	v.entry.OnChanged = func(text string) {
		if v.s == nil || v.syncing {
			return
		}
		if err := v.s.SetText(text); err != nil {
			v.setStatus(err.Error())
			return
		}
		v.refreshLines()
	}

	v.hitsList = widget.NewList(
		func() int { return len(v.hitRows) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) { o.(*widget.Label).SetText(v.hitRows[i]) },
	)
	v.hitsList.OnSelected = func(id widget.ListItemID) {
		if v.s == nil || int(id) >= len(v.hits) {
			return
		}
		_ = v.s.Activate(v.hits[id].Page - 1)
	}
	v.search = widget.NewEntry()
	v.search.SetPlaceHolder("Search saved lines…")
	v.search.OnSubmitted = v.runSearch

	v.status = widget.NewLabel("Open an image folder to start. " + keyHelp())
	v.undoItem = fyne.NewMenuItem("Undo", v.undo)
	v.redoItem = fyne.NewMenuItem("Redo", v.redo)
	v.refreshUndo()
	return v
}

func (v *viewer) content() fyne.CanvasObject {
	left := container.NewBorder(widget.NewLabel("Pages"), nil, nil, nil, v.pagesList)
	tagPane := container.NewBorder(widget.NewLabel("Lines (click to select, keys 0-9 tag)"), nil, nil, nil, v.linesList)
	searchPane := container.NewBorder(v.search, nil, nil, nil, v.hitsList)
	right := container.NewVSplit(v.entry, container.NewAppTabs(
		container.NewTabItem("Tags", tagPane),
		container.NewTabItem("Search", searchPane),
	))
	center := container.NewHSplit(container.NewStack(canvas.NewRectangle(color.RGBA{R: 30, G: 30, B: 34, A: 255}), v.image), right)
	split := container.NewHSplit(left, center)
	split.Offset = 0.18
	return container.NewBorder(nil, v.status, nil, nil, split)
}

// attach binds a freshly opened workspace and shows its current page.
func (v *viewer) attach(ws *workspace.Workspace) {
	v.ws = ws
	v.s = ws.Session()
	v.s.SetViewer(v)
	v.setStatus(fmt.Sprintf("Opened %s", ws.Root()))
}

// OnPageCountChanged implements editor.Viewer.
func (v *viewer) OnPageCountChanged(int) {
	v.refreshPages()
}

// OnPageActivated implements editor.Viewer.
func (v *viewer) OnPageActivated(i int, p domain.Page) {
	v.syncing = true
	defer func() { v.syncing = false }()
	v.image.File = p.Image.Path
	v.image.Resource = nil
	v.image.Refresh()
	v.entry.SetText(p.Text)
	v.pagesList.Select(i)
	v.refreshPages()
	v.refreshLines()
	if v.ws != nil {
		v.w.SetTitle(windowTitle(v.ws.Root(), i, v.s.Store().Len()))
	}
}

func (v *viewer) refreshPages() {
	if v.s == nil {
		v.pageNames = nil
	} else {
		pages := v.s.Store().Pages()
		v.pageNames = make([]string, len(pages))
		for i, p := range pages {
			if i == v.s.Current() {
				p.Text = v.s.Text()
			}
			v.pageNames[i] = pageLabel(i, p)
		}
	}
	v.pagesList.Refresh()
}

func (v *viewer) refreshLines() {
	if v.s == nil || v.s.Current() < 0 {
		v.lines = nil
	} else {
		v.lines = lineRows(v.s.Text(), v.s.Tags(), v.s.Selection())
	}
	v.linesList.Refresh()
	v.refreshUndo()
}

// refreshUndo enables the Undo and Redo items only when the active page has history.
func (v *viewer) refreshUndo() {
	if v.undoItem == nil {
		return
	}
	v.undoItem.Disabled = v.s == nil || !v.s.CanUndo()
	v.redoItem.Disabled = v.s == nil || !v.s.CanRedo()
	if v.editMenu != nil {
		v.editMenu.Refresh()
	}
}

func (v *viewer) setStatus(msg string) { v.status.SetText(msg) }

func (v *viewer) navigate(step func(*editor.Session) error) {
	if v.s == nil {
		return
	}
	if err := step(v.s); err != nil {
		v.setStatus(err.Error())
	}
}

// applyKey tags the selected lines with the tag bound to key.
func (v *viewer) applyKey(key rune) {
	if v.s == nil {
		return
	}
	if key == 0x1b {
		v.clearSelection()
		return
	}
	tag, ok := domain.TagForKey(key)
	if !ok {
		return
	}
	var err error
	if tag == domain.TagNone {
		err = v.s.ClearSelectionTags()
	} else {
		err = v.s.ApplyTagToSelection(tag)
	}
	if err != nil {
		v.setStatus(err.Error())
		return
	}
	v.setStatus(fmt.Sprintf("Tagged with %s", tag.Label()))
	v.refreshLines()
}

func (v *viewer) clearSelection() {
	if v.s == nil {
		return
	}
	v.s.ClearSelection()
	v.refreshLines()
}

func (v *viewer) undo() {
	if v.s != nil && !v.s.Undo() {
		v.setStatus("Nothing to undo.")
	}
}

func (v *viewer) redo() {
	if v.s != nil && !v.s.Redo() {
		v.setStatus("Nothing to redo.")
	}
}

func (v *viewer) save() {
	if v.ws == nil {
		return
	}
	if err := v.ws.Save(context.Background()); err != nil {
		v.l.Error("save failed", slog.Any("err", err))
		dialog.ShowError(err, v.w)
		return
	}
	v.setStatus(fmt.Sprintf("Saved %s at %s", storage.ProjectFileName, time.Now().Format("15:04:05")))
}

func (v *viewer) export(name string) {
	if v.ws == nil {
		return
	}
	formats, err := export.ParseFormats([]string{name})
	if err == nil {
		var written []string
		written, err = v.ws.Export(formats, "")
		if err == nil {
			v.setStatus(fmt.Sprintf("Exported %d file(s) to %s", len(written), v.ws.ExportDir()))
			return
		}
	}
	v.l.Error("export failed", slog.Any("err", err))
	dialog.ShowError(err, v.w)
}

func (v *viewer) importDialog() {
	if v.ws == nil {
		dialog.ShowInformation("Import Script", "Open an image folder first.", v.w)
		return
	}
	dialog.ShowFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil || r == nil {
			return
		}
		path := r.URI().Path()
		_ = r.Close()
		res, err := v.ws.ImportFile(path)
		if err != nil {
			dialog.ShowError(err, v.w)
			return
		}
		v.setStatus(fmt.Sprintf("Imported %s: %d page(s), %d tag(s)", res.Format, len(res.Updates), res.TagCount()))
	}, v.w)
}

// runSearch queries the index off the UI goroutine. Only the folder path is shared.
func (v *viewer) runSearch(text string) {
	if v.ws == nil {
		return
	}
	root := v.ws.Root()
	v.setStatus("Searching…")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		res, err := storage.Search(ctx, root, storage.SearchQuery{Text: text, Limit: 200})
		fyne.Do(func() {
			if err != nil {
				v.l.Error("search failed", slog.Any("err", err))
				v.setStatus("Search failed.")
				return
			}
			v.hits = res
			v.hitRows = v.hitRows[:0]
			for _, r := range res {
				v.hitRows = append(v.hitRows, searchRow(r))
			}
			v.hitsList.Refresh()
			v.setStatus(fmt.Sprintf("%d line(s) found.", len(res)))
		})
	}()
}

// Recent folder persistence
const recentPrefsKey = "recent.folders"
const recentMax = 10

func loadRecentFolders(p fyne.Preferences) []string {
	raw := p.StringWithFallback(recentPrefsKey, "")
	var items []string
	if strings.TrimSpace(raw) != "" {
		_ = json.Unmarshal([]byte(raw), &items)
	}
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := os.Stat(s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

func saveRecentFolders(p fyne.Preferences, items []string) {
	if len(items) > recentMax {
		items = items[:recentMax]
	}
	b, _ := json.Marshal(items)
	p.SetString(recentPrefsKey, string(b))
}

func addRecentFolder(p fyne.Preferences, path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	abs, _ := filepath.Abs(path)
	rec := loadRecentFolders(p)
	out := make([]string, 0, 1+len(rec))
	out = append(out, abs)
	for _, s := range rec {
		// de-dup, ignoring case
		if strings.EqualFold(s, abs) {
			continue
		}
		out = append(out, s)
	}
	saveRecentFolders(p, out)
}
