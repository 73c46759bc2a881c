/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mangascript/internal/log"
)

// Format names one export artifact.
type Format string

const (
	FormatDetected Format = "detected"
	FormatAll      Format = "all"
	FormatTagged   Format = "tagged"
	FormatStats    Format = "stats"
	FormatJSON     Format = "json"
	FormatPDF      Format = "pdf"
	FormatPage     Format = "page"
)

// PresetName represents a named set of formats.
type PresetName string

const (
	// PresetSave is what saving a project writes: the re-importable text and the snapshot.
	PresetSave PresetName = "save"
	// PresetReview writes the human readable reports.
	PresetReview PresetName = "review"
	// PresetPrint writes the PDF script.
	PresetPrint PresetName = "print"
)

// AllFormats lists every single format in a stable order.
var AllFormats = []Format{FormatDetected, FormatAll, FormatTagged, FormatStats, FormatJSON, FormatPDF, FormatPage}

// FileName returns the file a format is written to. page is 0-based and only used by FormatPage.
func FileName(f Format, page int) string {
	switch f {
	case FormatDetected:
		return "detected_text.txt"
	case FormatAll:
		return "all_pages.txt"
	case FormatTagged:
		return "tagged_script.txt"
	case FormatStats:
		return "statistics.txt"
	case FormatJSON:
		return "project.json"
	case FormatPDF:
		return "script.pdf"
	case FormatPage:
		return fmt.Sprintf("page_%d.txt", page+1)
	}
	return ""
}

// ParseFormats normalizes and validates format names. Preset names expand to their formats.
func ParseFormats(names []string) ([]Format, error) {
	var out []Format
	seen := map[Format]bool{}
	add := func(f Format) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if fs := presetFormats(PresetName(n)); fs != nil {
			for _, f := range fs {
				add(f)
			}
			continue
		}
		f := Format(n)
		if FileName(f, 0) == "" {
			return nil, fmt.Errorf("unknown format: %s", n)
		}
		add(f)
	}
	return out, nil
}

func presetFormats(p PresetName) []Format {
	switch p {
	case PresetSave:
		return []Format{FormatDetected, FormatJSON}
	case PresetReview:
		return []Format{FormatAll, FormatTagged, FormatStats}
	case PresetPrint:
		return []Format{FormatPDF}
	}
	return nil
}

// BatchOptions controls WriteFiles.
type BatchOptions struct {
	Formats []Format // empty means PresetSave
	OutDir  string   // created when missing
	Page    int      // 0-based page for FormatPage
	PDF     PDFOptions
}

// WriteFiles renders the requested formats into OutDir and returns the written paths.
// All formats are rendered before the first file is written, so a failing renderer leaves
// no partial batch behind.
func WriteFiles(src Source, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetFormats(PresetSave)
	}
	if strings.TrimSpace(opt.OutDir) == "" {
		return nil, fmt.Errorf("export: output directory is empty")
	}
	type artifact struct {
		name string
		data []byte
	}
	var arts []artifact
	for _, f := range formats {
		data, err := Render(src, f, opt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		arts = append(arts, artifact{name: FileName(f, opt.Page), data: data})
	}

	if err := os.MkdirAll(opt.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	l := log.WithComponent("export")
	var written []string
	for _, a := range arts {
		p := filepath.Join(opt.OutDir, a.name)
		if err := os.WriteFile(p, a.data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", a.name, err)
		}
		written = append(written, p)
		l.Debug("export written", "file", p, "bytes", len(a.data))
	}
	return written, nil
}

// Render produces the bytes of a single format.
func Render(src Source, f Format, opt BatchOptions) ([]byte, error) {
	var (
		s   string
		err error
	)
	switch f {
	case FormatDetected:
		s, err = Detected(src)
	case FormatAll:
		s, err = AllPages(src)
	case FormatTagged:
		s, err = TaggedOnly(src)
	case FormatStats:
		s, err = Statistics(src)
	case FormatPage:
		s, err = Page(src, opt.Page)
	case FormatJSON:
		return Snapshot(src)
	case FormatPDF:
		var buf bytes.Buffer
		if _, err := WritePDF(&buf, src, opt.PDF); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown format: %s", f)
	}
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}
