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

// Package display implements display lists: page content which has been
// interpreted once and can be replayed cheaply for every band.
//
// A List stores paint items in page space, together with the device rows
// each item can touch under the transformation the list was built for.
// When a band is rendered, items outside the band are skipped.
package display

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/path"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/pdf/graphics"

	"seehuhn.de/go/bandrender/band"
	"seehuhn.de/go/bandrender/pipeline"
	"seehuhn.de/go/bandrender/raster"
)

// Op selects how the path of an item is painted.
type Op int

const (
	FillNonZero Op = iota
	FillEvenOdd
	Stroke
)

func (op Op) String() string {
	switch op {
	case FillNonZero:
		return "nonzero"
	case FillEvenOdd:
		return "evenodd"
	case Stroke:
		return "stroke"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

// StrokeStyle holds the line parameters of a stroked item.  Lengths are
// in page space units.
type StrokeStyle struct {
	Width      float64
	Cap        graphics.LineCapStyle
	Join       graphics.LineJoinStyle
	MiterLimit float64
	Dash       []float64
	DashPhase  float64
}

// DefaultStroke returns the PDF default line parameters.
func DefaultStroke() StrokeStyle {
	return StrokeStyle{
		Width:      1,
		Cap:        graphics.LineCapButt,
		Join:       graphics.LineJoinMiter,
		MiterLimit: 10,
	}
}

// Item is one paint operation.
type Item struct {
	Path   *path.Data
	Op     Op
	Stroke StrokeStyle // used if Op is Stroke
	Gray   float64     // paint color, 0 is black and 1 is white
}

// Rows returns the range of device rows the item can touch under ctm.
// The range is conservative: rows outside [y0, y1) receive no coverage.
func (it *Item) Rows(ctm matrix.Matrix) (y0, y1 int, ok bool) {
	if len(it.Path.Coords) == 0 {
		return 0, 0, false
	}
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for _, c := range it.Path.Coords {
		// Curves stay inside the hull of their control points.
		y := ctm[1]*c.X + ctm[3]*c.Y + ctm[5]
		yMin = min(yMin, y)
		yMax = max(yMax, y)
	}
	if it.Op == Stroke {
		pad := it.Stroke.Width / 2 * max(it.Stroke.MiterLimit, math.Sqrt2)
		pad *= math.Sqrt(ctm[0]*ctm[0] + ctm[1]*ctm[1] + ctm[2]*ctm[2] + ctm[3]*ctm[3])
		yMin -= pad
		yMax += pad
	}
	if math.IsNaN(yMin) || math.IsNaN(yMax) {
		return 0, 0, false
	}
	return int(math.Floor(yMin)) - 1, int(math.Ceil(yMax)) + 1, true
}

// entry is an item together with its device rows.
type entry struct {
	Item
	y0, y1 int
}

// List is a display list for one page.  A List is not modified while it
// is rendered, so all workers can replay it concurrently.
type List struct {
	ctm   matrix.Matrix
	items []entry
	size  int64
}

// NewList returns an empty list for pages rendered with the given
// transformation.
func NewList(ctm matrix.Matrix) *List {
	return &List{ctm: ctm}
}

// Add appends an item.  Items without any visible rows are dropped.
func (l *List) Add(it Item) {
	y0, y1, ok := it.Rows(l.ctm)
	if !ok {
		return
	}
	l.items = append(l.items, entry{Item: it, y0: y0, y1: y1})
	l.size += itemSize(&it)
}

// Len returns the number of items in the list.
func (l *List) Len() int {
	return len(l.items)
}

// Size estimates the memory used by the list, in bytes.
func (l *List) Size() int64 {
	return l.size
}

func itemSize(it *Item) int64 {
	return 96 + int64(len(it.Path.Cmds)) + 16*int64(len(it.Path.Coords)) + 8*int64(len(it.Stroke.Dash))
}

// Render paints the items which touch the band.  If ctm differs from the
// transformation the list was built for, no items are skipped.
func (l *List) Render(dst *band.Buffer, ctm matrix.Matrix, cookie *pipeline.Cookie) error {
	cull := ctm == l.ctm
	bandEnd := dst.Y0 + dst.Height
	for i := range l.items {
		e := &l.items[i]
		if cull && (e.y1 <= dst.Y0 || e.y0 >= bandEnd) {
			continue
		}
		if cookie.Aborted() {
			return pipeline.ErrInterrupted
		}
		if err := Draw(dst, ctm, &e.Item, cookie); err != nil {
			return err
		}
	}
	return nil
}

var rasterizers = sync.Pool{
	New: func() any { return raster.NewRasterizer(rect.Rect{}) },
}

// Draw paints a single item into the band.  The coverage of the item is
// blended with the existing pixels.
func Draw(dst *band.Buffer, ctm matrix.Matrix, it *Item, cookie *pipeline.Cookie) error {
	r := rasterizers.Get().(*raster.Rasterizer)
	defer rasterizers.Put(r)

	r.Reset(rect.Rect{
		LLx: 0,
		LLy: float64(dst.Y0),
		URx: float64(dst.Width),
		URy: float64(dst.Y0 + dst.Height),
	})
	r.CTM = ctm
	r.Interrupt = cookie.Aborted

	gray := float32(min(max(it.Gray, 0), 1) * 255)
	emit := func(y, xMin int, coverage []float32) {
		row := dst.Row(y)[xMin:]
		for i, c := range coverage {
			if c <= 0 {
				continue
			}
			c = min(c, 1)
			p := float32(row[i])
			row[i] = uint8(p + (gray-p)*c + 0.5)
		}
	}

	var err error
	switch it.Op {
	case FillNonZero:
		err = r.FillNonZero(it.Path, emit)
	case FillEvenOdd:
		err = r.FillEvenOdd(it.Path, emit)
	case Stroke:
		s := &it.Stroke
		r.Width = s.Width
		r.Cap = s.Cap
		r.Join = s.Join
		r.MiterLimit = s.MiterLimit
		r.Dash = s.Dash
		r.DashPhase = s.DashPhase
		err = r.Stroke(it.Path.Iter(), emit)
	default:
		err = fmt.Errorf("display: unknown paint operation %s", it.Op)
	}
	if errors.Is(err, raster.ErrInterrupted) {
		return pipeline.ErrInterrupted
	}
	return err
}
