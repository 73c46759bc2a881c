/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"io"
	"os"

	"github.com/jung-kurt/gofpdf"

	"mangascript/internal/domain"
	"mangascript/internal/version"
)

// RGB is a PDF text color.
type RGB struct{ R, G, B int }

// PDFOptions controls the script PDF. Sizes are points.
// Without FontFile the built-in Helvetica is used and text is translated to cp1252, so
// characters outside Latin-1 (Japanese included) print as '?'. FontFile embeds a UTF-8
// TrueType font instead.
type PDFOptions struct {
	Title     string
	FontSize  float64 // body size, 11 when zero
	TagColor  RGB     // color of tag prefixes, dark red when zero
	SkipEmpty bool    // omit pages without text
	FontFile  string  // optional .ttf path
}

const embeddedFamily = "script"

// WritePDF renders one PDF page per manga page with its script lines and returns the
// number of PDF pages written.
func WritePDF(w io.Writer, src Source, opt PDFOptions) (int, error) {
	pages, err := pagesOf(src)
	if err != nil {
		return 0, err
	}
	size := opt.FontSize
	if size <= 0 {
		size = 11
	}
	tagCol := opt.TagColor
	if tagCol == (RGB{}) {
		tagCol = RGB{R: 160, G: 20, B: 20}
	}
	title := opt.Title
	if title == "" {
		title = "Manga Script"
	}
	lineH := size * 1.35

	pdf := gofpdf.New("P", "pt", "A4", "")
	family, tr, err := setupFont(pdf, opt.FontFile)
	if err != nil {
		return 0, err
	}
	pdf.SetTitle(title, true)
	pdf.SetCreator("mangascript "+version.String(), true)
	pdf.SetMargins(56, 56, 56)
	pdf.SetAutoPageBreak(true, 56)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-40)
		pdf.SetFont(family, "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	for i, p := range pages {
		if opt.SkipEmpty && !p.HasText() {
			continue
		}
		pdf.AddPage()
		pdf.SetFont(family, "B", size+3)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, lineH*1.4, tr(fmt.Sprintf("PAGE %d: %s", i+1, p.Name)), "B", 1, "L", false, 0, "")
		pdf.Ln(lineH / 2)
		writePDFLines(pdf, family, tr, p, size, lineH, tagCol)
	}
	if pdf.PageCount() == 0 {
		pdf.AddPage()
	}
	if err := pdf.Error(); err != nil {
		return 0, fmt.Errorf("render pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return 0, fmt.Errorf("write pdf: %w", err)
	}
	return pdf.PageCount(), nil
}

func writePDFLines(pdf *gofpdf.Fpdf, family string, tr func(string) string, p domain.Page, size, lineH float64, tagCol RGB) {
	for n, line := range p.Lines() {
		if blank(line) {
			pdf.Ln(lineH)
			continue
		}
		if tag := p.Tags.Effective(n + 1); tag != domain.TagNone {
			pdf.SetFont(family, "B", size)
			pdf.SetTextColor(tagCol.R, tagCol.G, tagCol.B)
			pdf.Write(lineH, tr(string(tag)+" "))
		}
		pdf.SetFont(family, "", size)
		pdf.SetTextColor(0, 0, 0)
		pdf.Write(lineH, tr(line))
		pdf.Ln(lineH)
	}
}

// setupFont registers fontFile for all styles used by the script PDF. UTF-8 fonts need no
// translation; the built-in font gets the cp1252 translator.
func setupFont(pdf *gofpdf.Fpdf, fontFile string) (string, func(string) string, error) {
	if fontFile == "" {
		return "Helvetica", pdf.UnicodeTranslatorFromDescriptor(""), nil
	}
	b, err := os.ReadFile(fontFile)
	if err != nil {
		return "", nil, fmt.Errorf("read pdf font: %w", err)
	}
	for _, style := range []string{"", "B", "I"} {
		pdf.AddUTF8FontFromBytes(embeddedFamily, style, b)
	}
	if err := pdf.Error(); err != nil {
		return "", nil, fmt.Errorf("load pdf font %s: %w", fontFile, err)
	}
	return embeddedFamily, func(s string) string { return s }, nil
}
