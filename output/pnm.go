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
	"bufio"
	"fmt"
	"io"

	"seehuhn.de/go/bandrender/band"
)

// bufferSize should hold a typical page, so that a page can be discarded
// before any of it reaches a non-seekable destination.
const bufferSize = 1 << 20

// truncater is implemented by *os.File.
type truncater interface {
	io.Seeker
	Truncate(size int64) error
}

// Stream writes pages in one of the netpbm formats.
type Stream struct {
	dst    io.Writer
	bw     *bufio.Writer
	format Format
	closer io.Closer

	page      pageState
	seekable  bool  // dst can be truncated and repositioned
	base      int64 // offset of the stream in dst, if seekable
	written   int64
	pageStart int64

	row []byte
}

// NewStream returns a writer for one of the formats PGM, PBM and PAM.
func NewStream(w io.Writer, format Format) (*Stream, error) {
	if format == TIFF {
		return nil, fmt.Errorf("output: %s is not a streaming format", format)
	}
	s := &Stream{
		dst:    w,
		bw:     bufio.NewWriterSize(w, bufferSize),
		format: format,
	}
	if t, ok := w.(truncater); ok {
		if pos, err := t.Seek(0, io.SeekCurrent); err == nil {
			s.base = pos
			s.seekable = true
		}
	}
	return s, nil
}

func (s *Stream) write(p []byte) error {
	n, err := s.bw.Write(p)
	s.written += int64(n)
	return err
}

// WriteHeader starts a new page.
func (s *Stream) WriteHeader(hdr band.Header) error {
	switch {
	case s.format == PGM && hdr.BitsPerPixel != 8:
		return fmt.Errorf("output: PGM needs 8 bits per pixel, not %d", hdr.BitsPerPixel)
	case s.format == PBM && hdr.BitsPerPixel != 1:
		return fmt.Errorf("output: PBM needs 1 bit per pixel, not %d", hdr.BitsPerPixel)
	}
	if err := s.page.begin(hdr); err != nil {
		return err
	}

	// Earlier pages go out now, so that the buffer holds only this page.
	if err := s.bw.Flush(); err != nil {
		return err
	}
	s.pageStart = s.written

	var head string
	switch s.format {
	case PGM:
		head = fmt.Sprintf("P5\n# page %d, %g dpi\n%d %d\n255\n", hdr.Page, hdr.Resolution, hdr.Width, hdr.Height)
	case PBM:
		head = fmt.Sprintf("P4\n# page %d, %g dpi\n%d %d\n", hdr.Page, hdr.Resolution, hdr.Width, hdr.Height)
	case PAM:
		maxVal, tuple := 255, "GRAYSCALE"
		if hdr.BitsPerPixel == 1 {
			maxVal, tuple = 1, "BLACKANDWHITE"
		}
		head = fmt.Sprintf("P7\nWIDTH %d\nHEIGHT %d\nDEPTH 1\nMAXVAL %d\nTUPLTYPE %s\nENDHDR\n",
			hdr.Width, hdr.Height, maxVal, tuple)
	}
	return s.write([]byte(head))
}

// WriteBand appends rows to the current page.
func (s *Stream) WriteBand(stride, height int, pix []byte) error {
	if err := s.page.band(stride, height, pix); err != nil {
		return err
	}
	hdr := &s.page.hdr
	if s.format == PAM && hdr.BitsPerPixel == 1 {
		for y := range height {
			s.row = unpackMono(s.row, pix[y*stride:], hdr.Width, 0, 1)
			if err := s.write(s.row); err != nil {
				return err
			}
		}
		return nil
	}
	return s.write(pix[:stride*height])
}

// EndPage finishes the page and flushes it to the destination.
func (s *Stream) EndPage() error {
	if err := s.page.end(); err != nil {
		return err
	}
	return s.bw.Flush()
}

// Rewind discards the current page.  This works if the page has not yet
// left the internal buffer, or if the destination can be truncated.
// Otherwise Rewind returns an error and leaves the stream unchanged.
func (s *Stream) Rewind() error {
	if !s.page.open {
		return errNoPage
	}
	if int64(s.bw.Buffered()) == s.written-s.pageStart {
		s.bw.Reset(s.dst)
	} else {
		// a pipe or terminal has the methods but cannot seek
		t, ok := s.dst.(truncater)
		if !ok || !s.seekable {
			return errCannotRewind
		}
		s.bw.Reset(s.dst)
		if err := t.Truncate(s.base + s.pageStart); err != nil {
			return err
		}
		if _, err := t.Seek(s.base+s.pageStart, io.SeekStart); err != nil {
			return err
		}
	}
	s.written = s.pageStart
	s.page.open = false
	return nil
}

// Close flushes buffered data.  If the Stream was created by Create, the
// file is closed as well.
func (s *Stream) Close() error {
	err := s.bw.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
