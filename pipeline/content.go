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

package pipeline

import (
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"

	"seehuhn.de/go/bandrender/band"
)

// Content is the drawable content of a page: either the raw page
// description or a display list built from it.
//
// Render paints the part of the page covered by dst, with ctm mapping page
// space to device space.  The band is cleared to paper white before the
// call.  Render is called concurrently by several workers, each with its own
// buffer, and must not modify the content.  Implementations poll
// cookie.Aborted and return ErrInterrupted when it reports true.
type Content interface {
	Render(dst *band.Buffer, ctm matrix.Matrix, cookie *Cookie) error
}

// DisplayList is pre-interpreted page content which can be replayed for
// every band more cheaply than the raw page.
type DisplayList interface {
	Content

	// Size estimates the memory held by the list, in bytes.
	Size() int64
}

// ListBuilder is implemented by content which can be pre-interpreted into
// a display list.  An error means that no list is available; rendering then
// proceeds from the raw content.
type ListBuilder interface {
	BuildList(ctm matrix.Matrix, cookie *Cookie) (DisplayList, error)
}

// Source is one loaded page.
type Source interface {
	Content

	// Bounds returns the page area in page space (points, y downwards).
	Bounds() rect.Rect
}

// Document is a sequence of pages.
type Document interface {
	PageCount() int

	// LoadPage interprets page n, counting from 1.
	LoadPage(n int) (Source, error)
}

// BandWriter receives the finished image, band by band.  For every page,
// WriteHeader is called once, then WriteBand once per band in top to bottom
// order, then EndPage.  Any error returned by a BandWriter is fatal for the
// run.
type BandWriter interface {
	WriteHeader(hdr band.Header) error
	WriteBand(stride, height int, pix []byte) error
	EndPage() error
}

// Rewinder is implemented by band writers which can discard the output of
// the current, unfinished page.  Without it, a page which fails after some
// output was written cannot be retried.
type Rewinder interface {
	Rewind() error
}

// pageOutput forwards one page to a BandWriter.  The header is held back
// until the first band is ready, so an attempt which fails before its
// first band leaves no output behind.
type pageOutput struct {
	w     BandWriter
	hdr   band.Header
	dirty bool
}

func (o *pageOutput) begin(hdr band.Header) {
	o.hdr = hdr
}

func (o *pageOutput) WriteBand(stride, height int, pix []byte) error {
	if !o.dirty {
		o.dirty = true
		if err := o.w.WriteHeader(o.hdr); err != nil {
			return err
		}
	}
	return o.w.WriteBand(stride, height, pix)
}

func (o *pageOutput) EndPage() error {
	err := o.w.EndPage()
	o.dirty = false
	return err
}

// discard removes partial output before a retry.
func (o *pageOutput) discard() error {
	if !o.dirty {
		return nil
	}
	r, ok := o.w.(Rewinder)
	if !ok {
		return ErrCannotRewind
	}
	if err := r.Rewind(); err != nil {
		return err
	}
	o.dirty = false
	return nil
}
