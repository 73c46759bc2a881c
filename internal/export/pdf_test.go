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
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"mangascript/internal/domain"
)

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	n, err := WritePDF(&buf, sample(), PDFOptions{Title: "Chapter 1"})
	if err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected one PDF page per manga page, got %d", n)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}

	buf.Reset()
	n, err = WritePDF(&buf, sample(), PDFOptions{SkipEmpty: true, FontSize: 14})
	if err != nil || n != 2 {
		t.Fatalf("skip empty: n=%d err=%v", n, err)
	}
}

func TestWritePDFNonLatinText(t *testing.T) {
	var buf bytes.Buffer
	src := pages{{Name: "1.png", Text: "Grüße – «ok»", Tags: domain.Tags{1: domain.TagBubble}}}
	if _, err := WritePDF(&buf, src, PDFOptions{}); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
}

func TestWritePDFEmbeddedFont(t *testing.T) {
	fontPath := filepath.Join(t.TempDir(), "goregular.ttf")
	if err := os.WriteFile(fontPath, goregular.TTF, 0o644); err != nil {
		t.Fatalf("write font: %v", err)
	}
	src := pages{{Name: "1.png", Text: "Привет\nΚαλημέρα", Tags: domain.Tags{2: domain.TagSFX}}}

	var builtin, embedded bytes.Buffer
	if _, err := WritePDF(&builtin, src, PDFOptions{}); err != nil {
		t.Fatalf("builtin font: %v", err)
	}
	n, err := WritePDF(&embedded, src, PDFOptions{FontFile: fontPath})
	if err != nil || n != 1 {
		t.Fatalf("embedded font: n=%d err=%v", n, err)
	}
	if embedded.Len() <= builtin.Len() {
		t.Fatalf("font not embedded: %d <= %d bytes", embedded.Len(), builtin.Len())
	}

	if _, err := WritePDF(&bytes.Buffer{}, src, PDFOptions{FontFile: filepath.Join(t.TempDir(), "missing.ttf")}); err == nil {
		t.Fatalf("expected error for a missing font file")
	}
}
