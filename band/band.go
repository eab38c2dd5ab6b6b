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

// Package band holds the pixel storage for one horizontal strip of a page.
//
// A page is rendered as a sequence of bands.  Each band covers the full
// page width and a range of device rows starting at Y0.  Buffers are meant
// to be reused: Resize keeps the allocated memory whenever it is large
// enough, so a worker rendering many bands allocates only when the band
// geometry grows.
package band

import (
	"fmt"
	"slices"
)

// Paper is the gray value of an unpainted pixel.
const Paper = 0xFF

// monoThreshold is the lowest gray value which is still packed as white.
const monoThreshold = 0x80

// Buffer is an 8-bit gray pixel buffer for one band of a page.
// Gray values run from 0 (black) to 255 (white).
type Buffer struct {
	Width  int // pixels per row
	Y0     int // device row of the first buffer row
	Height int // number of rows
	Stride int // bytes per row

	// Pix holds Height rows of Stride bytes each.  Only the first
	// Stride*Height bytes are valid, the remaining capacity is kept for
	// later use.
	Pix []byte
}

// New allocates a buffer for the given band geometry.
func New(width, y0, height int) *Buffer {
	b := &Buffer{}
	b.Resize(width, y0, height)
	return b
}

// Resize changes the band geometry.  The pixel memory is reused if it is
// large enough.  The pixel contents are undefined after Resize; call Clear
// before painting.
func (b *Buffer) Resize(width, y0, height int) {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("band: invalid size %dx%d", width, height))
	}
	b.Width = width
	b.Y0 = y0
	b.Height = height
	b.Stride = width
	n := b.Stride * b.Height
	b.Pix = slices.Grow(b.Pix[:0], n)[:n]
}

// Size returns the number of bytes a band of the given geometry occupies.
func Size(width, height int) int64 {
	return int64(width) * int64(height)
}

// Clear paints the whole band with the paper color.
func (b *Buffer) Clear() {
	pix := b.Bytes()
	for i := range pix {
		pix[i] = Paper
	}
}

// Bytes returns the pixel data of the band, row by row.
func (b *Buffer) Bytes() []byte {
	return b.Pix[:b.Stride*b.Height]
}

// Row returns the pixels of device row y, which must lie inside the band.
func (b *Buffer) Row(y int) []byte {
	i := y - b.Y0
	if i < 0 || i >= b.Height {
		panic(fmt.Sprintf("band: row %d outside band [%d,%d)", y, b.Y0, b.Y0+b.Height))
	}
	return b.Pix[i*b.Stride : i*b.Stride+b.Width]
}

// Contains reports whether device row y is part of the band.
func (b *Buffer) Contains(y int) bool {
	return y >= b.Y0 && y < b.Y0+b.Height
}

// MonoStride returns the number of bytes per row of the packed 1-bit form.
func MonoStride(width int) int {
	return (width + 7) >> 3
}

// PackMono converts the band to one bit per pixel, packed most significant
// bit first, with rows padded to whole bytes.  A set bit is a black pixel,
// following the PBM convention.  Pixels darker than 50% gray are black.
//
// The packed data is written into dst, which is grown as needed, and the
// resulting slice is returned.
func (b *Buffer) PackMono(dst []byte) []byte {
	stride := MonoStride(b.Width)
	n := stride * b.Height
	dst = slices.Grow(dst[:0], n)[:n]
	clear(dst)

	for row := range b.Height {
		src := b.Pix[row*b.Stride : row*b.Stride+b.Width]
		out := dst[row*stride : (row+1)*stride]
		for x, v := range src {
			if v < monoThreshold {
				out[x>>3] |= 0x80 >> (x & 7)
			}
		}
	}
	return dst
}

// Header describes the raster image of one page.  It is passed to the
// output writer before the first band of the page.
type Header struct {
	Page         int     // page number, starting at 1
	Width        int     // pixels per row
	Height       int     // total number of rows
	Components   int     // color components per pixel
	BitsPerPixel int     // 8 for gray, 1 for packed black and white
	Resolution   float64 // dots per inch
}

// Stride returns the number of bytes per row for the header's pixel format.
func (h Header) Stride() int {
	if h.BitsPerPixel == 1 {
		return MonoStride(h.Width)
	}
	return h.Width * h.Components * h.BitsPerPixel / 8
}
