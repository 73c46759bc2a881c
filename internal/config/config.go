/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type EditorConfig struct {
	AutoSpace   bool `yaml:"auto_space"`
	UndoPerPage int  `yaml:"undo_per_page"`
	UndoMaxKB   int  `yaml:"undo_max_kb"`
}

type FolderConfig struct {
	Ignore  []string `yaml:"ignore"` // glob patterns on file names
	Workers int      `yaml:"workers"`
}

type ExportConfig struct {
	OutDir      string   `yaml:"out_dir"` // relative paths resolve against the image folder
	Formats     []string `yaml:"formats"`
	PDFFontSize float64  `yaml:"pdf_font_size"`
	// PDFFont is a TrueType font for the PDF script. Without it only Latin-1 text renders.
	PDFFont string `yaml:"pdf_font"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Editor        EditorConfig  `yaml:"editor"`
	Folder        FolderConfig  `yaml:"folder"`
	Export        ExportConfig  `yaml:"export"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Editor:        EditorConfig{AutoSpace: false, UndoPerPage: 100, UndoMaxKB: 2048},
		Folder:        FolderConfig{Ignore: []string{".*", "*_thumb.*"}, Workers: 0},
		Export:        ExportConfig{OutDir: "exports", Formats: []string{"save"}, PDFFontSize: 11},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile    = "MSE_CONFIG"
	EnvAutoSpace     = "MSE_AUTO_SPACE"
	EnvFolderWorkers = "MSE_FOLDER_WORKERS"
	EnvExportDir     = "MSE_EXPORT_DIR"
	EnvExportFormats = "MSE_EXPORT_FORMATS"
	EnvPDFFont       = "MSE_PDF_FONT"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "MSE_LOG_LEVEL"
	EnvLogFormat = "MSE_LOG_FORMAT"
	EnvLogSource = "MSE_LOG_SOURCE"
	EnvLogFile   = "MSE_LOG_FILE"
)

// ConfigPath returns the per-user config file path. MSE_CONFIG replaces it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "MangaScript")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "MangaScript")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "mangascript")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none) into the
// process environment. Variables that are already set win. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the user config file (if present), applies defaults and merges environment overrides.
// A malformed file is reported; the returned config still holds defaults plus env overrides.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	var perr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			perr = fmt.Errorf("parse %s: %w", path, err)
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, perr
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.Editor.AutoSpace = src.Editor.AutoSpace
	if src.Editor.UndoPerPage > 0 {
		dst.Editor.UndoPerPage = src.Editor.UndoPerPage
	}
	if src.Editor.UndoMaxKB > 0 {
		dst.Editor.UndoMaxKB = src.Editor.UndoMaxKB
	}
	if src.Folder.Ignore != nil {
		dst.Folder.Ignore = src.Folder.Ignore
	}
	if src.Folder.Workers > 0 {
		dst.Folder.Workers = src.Folder.Workers
	}
	if strings.TrimSpace(src.Export.OutDir) != "" {
		dst.Export.OutDir = strings.TrimSpace(src.Export.OutDir)
	}
	if len(src.Export.Formats) > 0 {
		dst.Export.Formats = src.Export.Formats
	}
	if src.Export.PDFFontSize > 0 {
		dst.Export.PDFFontSize = src.Export.PDFFontSize
	}
	if strings.TrimSpace(src.Export.PDFFont) != "" {
		dst.Export.PDFFont = strings.TrimSpace(src.Export.PDFFont)
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvAutoSpace)); v != "" {
		cfg.Editor.AutoSpace = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvFolderWorkers)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Folder.Workers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportDir)); v != "" {
		cfg.Export.OutDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportFormats)); v != "" {
		var fs []string
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fs = append(fs, f)
			}
		}
		cfg.Export.Formats = fs
	}
	if v := strings.TrimSpace(os.Getenv(EnvPDFFont)); v != "" {
		cfg.Export.PDFFont = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"editor.auto_space": EnvAutoSpace,
	"folder.workers":    EnvFolderWorkers,
	"export.out_dir":    EnvExportDir,
	"export.formats":    EnvExportFormats,
	"export.pdf_font":   EnvPDFFont,
	"logging.level":     EnvLogLevel,
	"logging.format":    EnvLogFormat,
	"logging.source":    EnvLogSource,
	"logging.file":      EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// UndoMaxBytes converts the configured undo budget to bytes.
func (e EditorConfig) UndoMaxBytes() int {
	if e.UndoMaxKB <= 0 {
		return Defaults().Editor.UndoMaxKB * 1024
	}
	return e.UndoMaxKB * 1024
}

// ExportDir resolves the export directory for an image folder.
func (x ExportConfig) ExportDir(folder string) string {
	if x.OutDir == "" {
		return filepath.Join(folder, Defaults().Export.OutDir)
	}
	if filepath.IsAbs(x.OutDir) {
		return x.OutDir
	}
	return filepath.Join(folder, x.OutDir)
}
