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
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"seehuhn.de/go/bandrender/band"
)

// Compressed writes a netpbm stream as a sequence of zstd frames, one per
// page.  Each page is collected in memory first, so a page can always be
// discarded before it is written.  The output decompresses to the same
// bytes a Stream would have written.
type Compressed struct {
	out    io.Writer
	closer io.Closer
	enc    *zstd.Encoder

	page  bytes.Buffer
	s     *Stream
	frame []byte
}

// NewCompressed returns a compressing writer for PGM, PBM or PAM pages.
func NewCompressed(w io.Writer, format Format) (*Compressed, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	c := &Compressed{out: w, enc: enc}
	c.s, err = NewStream(&c.page, format)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return c, nil
}

// WriteHeader starts a new page.
func (c *Compressed) WriteHeader(hdr band.Header) error {
	c.page.Reset()
	return c.s.WriteHeader(hdr)
}

// WriteBand appends rows to the current page.
func (c *Compressed) WriteBand(stride, height int, pix []byte) error {
	return c.s.WriteBand(stride, height, pix)
}

// EndPage compresses the page and writes it out as one frame.
func (c *Compressed) EndPage() error {
	if err := c.s.EndPage(); err != nil {
		return err
	}
	c.frame = c.enc.EncodeAll(c.page.Bytes(), c.frame[:0])
	c.page.Reset()
	if _, err := c.out.Write(c.frame); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

// Rewind discards the current page.
func (c *Compressed) Rewind() error {
	if !c.s.page.open {
		return errNoPage
	}
	c.s.bw.Reset(&c.page)
	c.s.page.open = false
	c.page.Reset()
	return nil
}

// Close releases the encoder.  If the writer was created by Create, the
// file is closed as well.
func (c *Compressed) Close() error {
	c.enc.Close()
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
