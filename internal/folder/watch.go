/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package folder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ScriptWatcher reports changes to a single script file.
type ScriptWatcher struct {
	path     string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	log      *slog.Logger
}

// NewScriptWatcher starts watching the directory of path. Editors often replace files
// instead of writing them, so the directory is watched rather than the file.
func NewScriptWatcher(path string, debounce time.Duration, logger *slog.Logger) (*ScriptWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve script path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &ScriptWatcher{path: abs, debounce: debounce, fsw: fsw, log: logger}, nil
}

// Run calls fn once per burst of writes to the script until ctx is done.
// fn runs on the Run goroutine.
func (w *ScriptWatcher) Run(ctx context.Context, fn func()) error {
	defer w.fsw.Close()
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !(ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create)) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			fn()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("script watcher error", slog.Any("err", err))
		}
	}
}

// Watch is NewScriptWatcher followed by Run.
func Watch(ctx context.Context, path string, debounce time.Duration, fn func()) error {
	w, err := NewScriptWatcher(path, debounce, nil)
	if err != nil {
		return err
	}
	return w.Run(ctx, fn)
}
