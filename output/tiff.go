// seehuhn.de/go/bandrender - a banded page rasterizer
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package output

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"seehuhn.de/go/bandrender/band"
)

// TIFFWriter writes every page to its own TIFF file.  The page is
// assembled in memory and encoded by EndPage.
type TIFFWriter struct {
	pattern string
	opts    tiff.Options

	page pageState
	img  *image.Gray
	y    int

	// Files lists the files written so far.
	Files []string
}

// NewTIFF returns a writer which stores page n in the file given by
// pattern.  If pattern contains a "%d" verb it is formatted with the page
// number, otherwise the page number is inserted before the extension:
// "out.tif" becomes "out-1.tif", "out-2.tif" and so on.
func NewTIFF(pattern string, deflate bool) *TIFFWriter {
	w := &TIFFWriter{pattern: pattern}
	if deflate {
		w.opts.Compression = tiff.Deflate
	}
	return w
}

// FileName returns the file name used for page n.
func (w *TIFFWriter) FileName(n int) string {
	if strings.Contains(w.pattern, "%") {
		return fmt.Sprintf(w.pattern, n)
	}
	ext := filepath.Ext(w.pattern)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(w.pattern, ext), n, ext)
}

// WriteHeader starts a new page.
func (w *TIFFWriter) WriteHeader(hdr band.Header) error {
	if err := w.page.begin(hdr); err != nil {
		return err
	}
	r := image.Rect(0, 0, hdr.Width, hdr.Height)
	if w.img == nil || w.img.Rect != r {
		w.img = image.NewGray(r)
	}
	w.y = 0
	return nil
}

// WriteBand copies rows into the page image.  Packed black and white rows
// are expanded to gray values 0 and 255.
func (w *TIFFWriter) WriteBand(stride, height int, pix []byte) error {
	if err := w.page.band(stride, height, pix); err != nil {
		return err
	}
	width := w.page.hdr.Width
	for y := range height {
		row := w.img.Pix[(w.y+y)*w.img.Stride : (w.y+y)*w.img.Stride+width]
		src := pix[y*stride:]
		if w.page.hdr.BitsPerPixel == 1 {
			unpackMono(row, src, width, 0, 255)
		} else {
			copy(row, src[:width])
		}
	}
	w.y += height
	return nil
}

// EndPage writes the page file.
func (w *TIFFWriter) EndPage() error {
	if err := w.page.end(); err != nil {
		return err
	}
	name := w.FileName(w.page.hdr.Page)
	fd, err := os.Create(name)
	if err != nil {
		return err
	}
	err = tiff.Encode(fd, w.img, &w.opts)
	if cerr := fd.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("output: %s: %w", name, err)
	}
	w.Files = append(w.Files, name)
	return nil
}

// Rewind discards the current page.  Nothing has been written yet, so this
// always succeeds.
func (w *TIFFWriter) Rewind() error {
	if !w.page.open {
		return errNoPage
	}
	w.page.open = false
	return nil
}

// Close implements Writer.  All files are complete after EndPage.
func (w *TIFFWriter) Close() error {
	return nil
}
