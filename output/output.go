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

// Package output writes rendered pages to files.
//
// The netpbm formats (PGM, PBM and PAM) are written as a stream: all pages
// go into one file, one image after the other.  TIFF output writes one file
// per page.  A page which is abandoned before EndPage can be discarded
// with Rewind.
package output

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"seehuhn.de/go/bandrender/band"
)

// Format selects an output file format.
type Format int

const (
	PGM  Format = iota // netpbm gray map, 8 bits per pixel
	PBM                // netpbm bitmap, 1 bit per pixel
	PAM                // netpbm arbitrary map, gray or black and white
	TIFF               // one TIFF file per page
)

func (f Format) String() string {
	switch f {
	case PGM:
		return "pgm"
	case PBM:
		return "pbm"
	case PAM:
		return "pam"
	case TIFF:
		return "tiff"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat converts a format name, as returned by Format.String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "pgm":
		return PGM, nil
	case "pbm":
		return PBM, nil
	case "pam":
		return PAM, nil
	case "tif", "tiff":
		return TIFF, nil
	}
	return 0, fmt.Errorf("unknown output format %q", s)
}

// Mono reports whether the format needs 1-bit pages.  PAM takes both.
func (f Format) Mono() bool {
	return f == PBM
}

// Writer receives pages band by band.
type Writer interface {
	WriteHeader(hdr band.Header) error
	WriteBand(stride, height int, pix []byte) error
	EndPage() error
	Rewind() error
	Close() error
}

var (
	errCannotRewind = errors.New("output: page already written")
	errNoPage       = errors.New("output: no page started")
)

// Create opens the output for the given format.  For the streaming
// formats, the name "-" selects standard output.  For TIFF, name is a
// pattern for the page file names, see NewTIFF.
//
// If compress is set, streams are written as one zstd frame per page, and
// TIFF files use deflate compression.
func Create(name string, format Format, compress bool) (Writer, error) {
	if format == TIFF {
		if name == "-" {
			return nil, errors.New("output: TIFF cannot be written to standard output")
		}
		return NewTIFF(name, compress), nil
	}

	var s *Stream
	var c *Compressed
	var err error
	if name == "-" {
		if compress {
			c, err = NewCompressed(os.Stdout, format)
		} else {
			s, err = NewStream(os.Stdout, format)
		}
	} else {
		var fd *os.File
		fd, err = os.Create(name)
		if err != nil {
			return nil, err
		}
		if compress {
			c, err = NewCompressed(fd, format)
			if c != nil {
				c.closer = fd
			}
		} else {
			s, err = NewStream(fd, format)
			if s != nil {
				s.closer = fd
			}
		}
		if err != nil {
			fd.Close()
		}
	}
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}
	return s, nil
}

// pageState checks that the bands of a page fit the header.
type pageState struct {
	hdr  band.Header
	rows int
	open bool
}

func (p *pageState) begin(hdr band.Header) error {
	if p.open {
		return fmt.Errorf("output: page %d started before page %d ended", hdr.Page, p.hdr.Page)
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return fmt.Errorf("output: invalid page size %dx%d", hdr.Width, hdr.Height)
	}
	if hdr.BitsPerPixel != 1 && hdr.BitsPerPixel != 8 || hdr.Components != 1 {
		return fmt.Errorf("output: unsupported pixel format, %d components with %d bits",
			hdr.Components, hdr.BitsPerPixel)
	}
	p.hdr = hdr
	p.rows = 0
	p.open = true
	return nil
}

func (p *pageState) band(stride, height int, pix []byte) error {
	if !p.open {
		return errNoPage
	}
	if stride != p.hdr.Stride() {
		return fmt.Errorf("output: page %d: stride %d, want %d", p.hdr.Page, stride, p.hdr.Stride())
	}
	if height <= 0 || p.rows+height > p.hdr.Height {
		return fmt.Errorf("output: page %d: band of %d rows at row %d overruns height %d",
			p.hdr.Page, height, p.rows, p.hdr.Height)
	}
	if len(pix) < stride*height {
		return fmt.Errorf("output: page %d: short band", p.hdr.Page)
	}
	p.rows += height
	return nil
}

func (p *pageState) end() error {
	if !p.open {
		return errNoPage
	}
	if p.rows != p.hdr.Height {
		return fmt.Errorf("output: page %d ended after %d of %d rows", p.hdr.Page, p.rows, p.hdr.Height)
	}
	p.open = false
	return nil
}

// unpackMono expands packed bits (1 is black) to one byte per pixel.
func unpackMono(dst, src []byte, width int, black, white byte) []byte {
	dst = dst[:0]
	for x := range width {
		if src[x>>3]&(0x80>>(x&7)) != 0 {
			dst = append(dst, black)
		} else {
			dst = append(dst, white)
		}
	}
	return dst
}
