/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package folder turns a directory of page images into pages and watches script files.
package folder

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"sync/atomic"

	"github.com/gobwas/glob"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"mangascript/internal/domain"
	"mangascript/internal/natsort"
)

// ErrSuperseded is returned by a load that finished after a newer load had started.
var ErrSuperseded = errors.New("folder load superseded")

var reImage = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp)$`)

// IsImage reports whether name has a supported page image extension.
func IsImage(name string) bool { return reImage.MatchString(name) }

// Options configure a Loader.
type Options struct {
	Ignore  []string // glob patterns matched against file names
	Workers int      // concurrent metadata reads, GOMAXPROCS when <= 0
	Logger  *slog.Logger
}

// Loader reads page image folders. Every Load starts a new generation; only the latest
// generation may deliver pages.
type Loader struct {
	ignore  []glob.Glob
	workers int
	log     *slog.Logger
	gen     atomic.Uint64

	afterRead func() // test hook, runs before the generation check
}

func NewLoader(opts Options) (*Loader, error) {
	l := &Loader{workers: opts.Workers, log: opts.Logger}
	if l.workers <= 0 {
		l.workers = runtime.GOMAXPROCS(0)
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	for _, p := range opts.Ignore {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("ignore pattern %q: %w", p, err)
		}
		l.ignore = append(l.ignore, g)
	}
	return l, nil
}

func (l *Loader) ignored(name string) bool {
	for _, g := range l.ignore {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Load lists the page images in dir, reads their dimensions concurrently and returns one
// empty page per image in natural filename order. Images that cannot be decoded still
// become pages, without dimensions.
func (l *Loader) Load(ctx context.Context, dir string) ([]domain.Page, error) {
	gen := l.gen.Add(1)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read folder: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsImage(e.Name()) || l.ignored(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}

	pages := make([]domain.Page, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pages[i] = domain.Page{Name: name, Image: l.readImage(filepath.Join(dir, name)), Tags: domain.Tags{}}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if l.afterRead != nil {
		l.afterRead()
	}
	if l.gen.Load() != gen {
		return nil, ErrSuperseded
	}
	sort.SliceStable(pages, func(i, j int) bool { return natsort.Less(pages[i].Name, pages[j].Name) })
	l.log.Info("folder loaded", slog.String("dir", dir), slog.Int("pages", len(pages)))
	return pages, nil
}

func (l *Loader) readImage(path string) domain.ImageRef {
	ref := domain.ImageRef{Path: path}
	f, err := os.Open(path)
	if err != nil {
		l.log.Warn("open image", slog.String("file", path), slog.Any("err", err))
		return ref
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		l.log.Warn("image metadata unreadable", slog.String("file", path), slog.Any("err", err))
		return ref
	}
	ref.Width, ref.Height, ref.Format = cfg.Width, cfg.Height, format
	return ref
}
