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

package raster

import (
	"cmp"
	"errors"
	"math"
	"slices"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/path"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
	"seehuhn.de/go/pdf/graphics"
)

// ErrInterrupted is returned by the fill and stroke methods when the
// Interrupt callback asked the rasterizer to stop.
var ErrInterrupted = errors.New("raster: interrupted")

// EmitFunc receives the coverage of one scanline. The coverage slice starts
// at device column xMin and is valid only during the call.
type EmitFunc func(y, xMin int, coverage []float32)

// edge is a line segment in device coordinates.
type edge struct {
	x0, y0 float64
	x1, y1 float64
	dxdy   float64
}

func (e *edge) yMin() float64 { return min(e.y0, e.y1) }
func (e *edge) yMax() float64 { return max(e.y0, e.y1) }

// xAt returns the x coordinate of the edge at height y.
func (e *edge) xAt(y float64) float64 { return e.x0 + (y-e.y0)*e.dxdy }

// Rasterizer converts vector paths to pixel coverage values, the fraction of
// each pixel's area covered by the filled or stroked path, ranging from 0
// (outside) to 1 (inside).
//
// Output is restricted to the Clip rectangle. When a page is rendered in
// horizontal bands, Clip covers the rows of the current band.  The coverage
// of a scanline does not depend on which band it falls into, so banded
// output is identical to rendering the page in one piece.
//
// Create one instance and reuse it, calling Reset between bands.  Internal
// buffers grow as needed but never shrink.
//
// A Rasterizer is not safe for concurrent use.
type Rasterizer struct {
	// CTM transforms from user space to device space. Must be non-singular.
	CTM matrix.Matrix

	// Clip bounds output to this device-coordinate rectangle.
	// Coordinates must be integer-aligned.
	Clip rect.Rect

	// Flatness controls curve approximation accuracy in device pixels.
	// Typical values: 0.25–1.0. Must be positive.
	Flatness float64

	// Width sets stroke thickness in user-space units.
	// Must be positive for stroke operations.
	Width float64

	// Cap sets the style for stroke endpoints (butt, round, or square).
	Cap graphics.LineCapStyle

	// Join sets the style for stroke corners (miter, round, or bevel).
	Join graphics.LineJoinStyle

	// MiterLimit caps miter join length. Must be at least 1.0.
	MiterLimit float64

	// Dash specifies alternating on/off lengths in user-space units.
	// Nil means solid (no dashing).
	Dash []float64

	// DashPhase offsets into the dash pattern in user-space units.
	DashPhase float64

	// Interrupt, if set, is polled once per scanline and periodically
	// while a path is flattened, dashed or outlined.  When it returns
	// true the current operation stops with ErrInterrupted.
	Interrupt func() bool

	// smallPathThreshold is the maximum bounding box area (in pixels) for
	// using 2D buffers (Approach A). Paths with larger bounding boxes use
	// the active edge list (Approach B).
	smallPathThreshold int

	cover       []float32 // cover change per pixel; reused as output
	area        []float32 // signed area within each pixel
	edges       []edge
	activeIdx   []int  // indices of active edges, in edge order
	rowHasEdges []bool // Approach A: rows touched by at least one edge

	// device space bounding box of edges
	bboxEmpty        bool
	devXMin, devXMax float64
	devYMin, devYMax float64

	work           int // geometry steps since startEdges
	pts, dashPts   []vec.Vec2
	subs, dashSubs []subpath
	dots           []dot
	ring           []vec.Vec2
}

// NewRasterizer returns a Rasterizer with the given clip rectangle and
// PDF default values for other parameters.
func NewRasterizer(clip rect.Rect) *Rasterizer {
	r := &Rasterizer{}
	r.Reset(clip)
	return r
}

// Reset restores the default parameters and sets a new clip rectangle.
// Buffer capacity is kept, so resetting a used Rasterizer does not allocate.
func (r *Rasterizer) Reset(clip rect.Rect) {
	r.CTM = matrix.Identity
	r.Clip = clip
	r.Flatness = defaultFlatness
	r.Width = 1.0
	r.Cap = graphics.LineCapButt
	r.Join = graphics.LineJoinMiter
	r.MiterLimit = defaultMiterLimit
	r.Dash = nil
	r.DashPhase = 0
	r.Interrupt = nil
	r.smallPathThreshold = smallPathThreshold
}

// FillNonZero fills the path using the nonzero winding rule.
func (r *Rasterizer) FillNonZero(p *path.Data, emit EmitFunc) error {
	return r.fill(p, fillNonZero, emit)
}

// FillEvenOdd fills the path using the even-odd rule.
func (r *Rasterizer) FillEvenOdd(p *path.Data, emit EmitFunc) error {
	return r.fill(p, fillEvenOdd, emit)
}

type fillRule int

const (
	fillNonZero fillRule = iota
	fillEvenOdd
)

func (r *Rasterizer) fill(p *path.Data, rule fillRule, emit EmitFunc) error {
	if err := r.collectPathEdges(p); err != nil {
		return err
	}
	return r.rasterize(rule, emit)
}

// startEdges clears the edge list and the interrupt poll counter.
func (r *Rasterizer) startEdges() {
	r.edges = r.edges[:0]
	r.bboxEmpty = true
	r.work = 0
}

// collectPathEdges builds the device space edge list of a fill path.
// Open subpaths are closed implicitly.
func (r *Rasterizer) collectPathEdges(p *path.Data) error {
	r.startEdges()

	var cur, first vec.Vec2
	var ctrl [4]vec.Vec2
	k := 0
	for _, cmd := range p.Cmds {
		if r.poll() {
			return ErrInterrupted
		}
		switch cmd {
		case path.CmdMoveTo:
			if cur != first {
				r.addEdge(cur, first)
			}
			cur = p.Coords[k]
			first = cur
			k++
		case path.CmdLineTo:
			r.addEdge(cur, p.Coords[k])
			cur = p.Coords[k]
			k++
		case path.CmdQuadTo:
			ctrl[0], ctrl[1], ctrl[2] = cur, p.Coords[k], p.Coords[k+1]
			r.flattenCurve(ctrl[:3], r.addEdge)
			cur = p.Coords[k+1]
			k += 2
		case path.CmdCubeTo:
			ctrl[0], ctrl[1], ctrl[2], ctrl[3] = cur, p.Coords[k], p.Coords[k+1], p.Coords[k+2]
			r.flattenCurve(ctrl[:4], r.addEdge)
			cur = p.Coords[k+2]
			k += 3
		case path.CmdClose:
			if cur != first {
				r.addEdge(cur, first)
			}
			cur = first
		}
	}
	if cur != first {
		r.addEdge(cur, first)
	}
	return nil
}

// addEdge maps the user space segment a-b to device space and appends it
// to the edge list.  Horizontal segments do not change coverage and are
// dropped.
func (r *Rasterizer) addEdge(a, b vec.Vec2) {
	m := r.CTM
	x0 := m[0]*a.X + m[2]*a.Y + m[4]
	y0 := m[1]*a.X + m[3]*a.Y + m[5]
	x1 := m[0]*b.X + m[2]*b.Y + m[4]
	y1 := m[1]*b.X + m[3]*b.Y + m[5]

	dy := y1 - y0
	if math.Abs(dy) < horizontalEdgeThreshold {
		return
	}
	r.edges = append(r.edges, edge{x0: x0, y0: y0, x1: x1, y1: y1, dxdy: (x1 - x0) / dy})

	if r.bboxEmpty {
		r.devXMin, r.devXMax = x0, x0
		r.devYMin, r.devYMax = y0, y0
		r.bboxEmpty = false
	}
	r.devXMin = min(r.devXMin, x0, x1)
	r.devXMax = max(r.devXMax, x0, x1)
	r.devYMin = min(r.devYMin, y0, y1)
	r.devYMax = max(r.devYMax, y0, y1)
}

// linear applies the linear part of the CTM to a direction vector.
func (r *Rasterizer) linear(v vec.Vec2) vec.Vec2 {
	m := r.CTM
	return vec.Vec2{X: m[0]*v.X + m[2]*v.Y, Y: m[1]*v.X + m[3]*v.Y}
}

// flattenCurve replaces a quadratic (three control points) or cubic
// (four control points) Bézier curve by line segments, calling emit for
// each segment in user space.  The number of segments keeps the device
// space deviation below Flatness.
func (r *Rasterizer) flattenCurve(ctrl []vec.Vec2, emit func(a, b vec.Vec2)) {
	var dev float64
	for i := 0; i+2 < len(ctrl); i++ {
		dd := r.linear(ctrl[i].Sub(ctrl[i+1].Mul(2)).Add(ctrl[i+2]))
		dev = max(dev, dd.Length())
	}
	if len(ctrl) == 3 {
		dev /= 4
	} else {
		dev *= 0.75
	}

	n := 1
	if dev > r.Flatness {
		n = int(math.Ceil(math.Sqrt(dev / r.Flatness)))
	}

	var tmp [4]vec.Vec2
	last := ctrl[len(ctrl)-1]
	prev := ctrl[0]
	for i := 1; i < n; i++ {
		pt := bezier(tmp[:len(ctrl)], ctrl, float64(i)/float64(n))
		emit(prev, pt)
		prev = pt
	}
	emit(prev, last)
}

// bezier evaluates a Bézier curve at t using de Casteljau's algorithm.
// tmp must have the same length as ctrl.
func bezier(tmp, ctrl []vec.Vec2, t float64) vec.Vec2 {
	copy(tmp, ctrl)
	for k := len(tmp) - 1; k > 0; k-- {
		for j := range k {
			tmp[j] = tmp[j].Mul(1 - t).Add(tmp[j+1].Mul(t))
		}
	}
	return tmp[0]
}

// rasterize turns the collected edge list into coverage, choosing the
// buffer layout by the clipped bounding box size.
func (r *Rasterizer) rasterize(rule fillRule, emit EmitFunc) error {
	xMin, xMax, yMin, yMax, ok := r.clippedBBox()
	if !ok {
		return nil
	}

	// Scanline sums are accumulated in edge order.  Sorting once here
	// makes that order the same for both approaches and for every clip.
	slices.SortStableFunc(r.edges, func(a, b edge) int {
		return cmp.Compare(a.yMin(), b.yMin())
	})

	if (xMax-xMin)*(yMax-yMin) < r.smallPathThreshold {
		return r.fillSmallPath(xMin, xMax, yMin, yMax, rule, emit)
	}
	return r.fillLargePath(xMin, xMax, yMin, yMax, rule, emit)
}

// clippedBBox returns the bounding box of the edge list in integer device
// coordinates, clamped to the clip rectangle.
func (r *Rasterizer) clippedBBox() (xMin, xMax, yMin, yMax int, ok bool) {
	if len(r.edges) == 0 {
		return 0, 0, 0, 0, false
	}

	xMin = max(int(math.Floor(r.devXMin)), int(r.Clip.LLx))
	xMax = min(int(math.Floor(r.devXMax))+1, int(r.Clip.URx))
	yMin = max(int(math.Floor(r.devYMin)), int(r.Clip.LLy))
	yMax = min(int(math.Floor(r.devYMax))+1, int(r.Clip.URy))

	if xMin >= xMax || yMin >= yMax {
		return 0, 0, 0, 0, false
	}
	return xMin, xMax, yMin, yMax, true
}

// interrupted polls the Interrupt callback.
func (r *Rasterizer) interrupted() bool {
	return r.Interrupt != nil && r.Interrupt()
}

// poll counts one unit of geometry work and polls the Interrupt callback
// every pollInterval units.
func (r *Rasterizer) poll() bool {
	r.work++
	return r.work%pollInterval == 0 && r.interrupted()
}

// fillSmallPath rasterises using 2D buffers (Approach A).
// xMin, xMax, yMin, yMax define the path's bounding box (already clamped to clip).
func (r *Rasterizer) fillSmallPath(xMin, xMax, yMin, yMax int, rule fillRule, emit EmitFunc) error {
	width := xMax - xMin
	height := yMax - yMin

	size := width * height
	r.cover = slices.Grow(r.cover[:0], size)[:size]
	r.area = slices.Grow(r.area[:0], size)[:size]
	clear(r.cover)
	clear(r.area)

	r.rowHasEdges = slices.Grow(r.rowHasEdges[:0], height)[:height]
	clear(r.rowHasEdges)

	for i := range r.edges {
		e := &r.edges[i]
		top := max(int(math.Floor(e.yMin())), yMin)
		bot := min(int(math.Floor(e.yMax()))+1, yMax)
		for y := top; y < bot; y++ {
			row := y - yMin
			off := row * width
			if accumulate(e, y, r.cover[off:off+width], r.area[off:off+width], xMin, xMax) {
				r.rowHasEdges[row] = true
			}
		}
	}

	for row := range height {
		if r.interrupted() {
			return ErrInterrupted
		}
		if !r.rowHasEdges[row] {
			continue
		}
		off := row * width
		line := r.cover[off : off+width]
		integrate(line, r.area[off:off+width], rule)
		if xOff, span := nonZeroSpan(line); span != nil {
			emit(yMin+row, xMin+xOff, span)
		}
	}
	return nil
}

// fillLargePath rasterises using 1D buffers and an active edge list (Approach B).
// The edge list must be sorted by y_min.
func (r *Rasterizer) fillLargePath(xMin, xMax, yMin, yMax int, rule fillRule, emit EmitFunc) error {
	width := xMax - xMin

	r.cover = slices.Grow(r.cover[:0], width)[:width]
	r.area = slices.Grow(r.area[:0], width)[:width]

	r.activeIdx = r.activeIdx[:0]
	next := 0

	for y := yMin; y < yMax; y++ {
		if r.interrupted() {
			return ErrInterrupted
		}
		yf := float64(y)

		// Drop finished edges, keeping the remaining ones in edge order.
		active := r.activeIdx[:0]
		for _, idx := range r.activeIdx {
			if r.edges[idx].yMax() > yf {
				active = append(active, idx)
			}
		}
		r.activeIdx = active

		// Edges which already ended above the first clipped row are
		// skipped.
		for next < len(r.edges) && r.edges[next].yMin() < yf+1 {
			if r.edges[next].yMax() > yf {
				r.activeIdx = append(r.activeIdx, next)
			}
			next++
		}
		if len(r.activeIdx) == 0 {
			continue
		}

		clear(r.cover)
		clear(r.area)
		touched := false
		for _, idx := range r.activeIdx {
			if accumulate(&r.edges[idx], y, r.cover, r.area, xMin, xMax) {
				touched = true
			}
		}
		if !touched {
			continue
		}

		integrate(r.cover, r.area, rule)
		if xOff, span := nonZeroSpan(r.cover); span != nil {
			emit(y, xMin+xOff, span)
		}
	}
	return nil
}

// accumulate adds the part of e inside scanline y to the cover and area
// buffers of that row, which start at device column x0 and end before x1.
// It reports whether the edge has a non-empty part inside the scanline.
//
// The edge is cut at pixel column boundaries.  Each piece adds its signed
// height to the cover of its column and the part of that height lying to
// the right of the piece to the area.  Pieces left of x0 act on column x0
// as a whole, pieces right of x1 do not affect the row.
func accumulate(e *edge, y int, cover, area []float32, x0, x1 int) bool {
	yTop := max(float64(y), e.yMin())
	yBot := min(float64(y+1), e.yMax())
	if yBot <= yTop {
		return false
	}
	sign := 1.0
	if e.y1 < e.y0 {
		sign = -1
	}

	xa, xb := e.xAt(yTop), e.xAt(yBot)
	if xa > xb {
		xa, xb = xb, xa
	}
	first := int(math.Floor(xa))
	last := int(math.Floor(xb))
	if first == last {
		deposit(cover, area, first, x0, x1, sign*(yBot-yTop), (xa+xb)/2)
		return true
	}

	dydx := math.Abs(1 / e.dxdy)
	if first < x0 {
		right := min(xb, float64(x0))
		deposit(cover, area, x0-1, x0, x1, sign*(right-xa)*dydx, (xa+right)/2)
		xa, first = right, x0
	}
	for pix := first; pix <= last; pix++ {
		if pix >= x1 {
			break
		}
		left := max(xa, float64(pix))
		right := min(xb, float64(pix+1))
		if right <= left {
			continue
		}
		deposit(cover, area, pix, x0, x1, sign*(right-left)*dydx, (left+right)/2)
	}
	return true
}

// deposit adds an edge piece of signed height dy, centred at xMid in
// column pix.
func deposit(cover, area []float32, pix, x0, x1 int, dy, xMid float64) {
	switch {
	case pix < x0:
		cover[0] += float32(dy)
		area[0] += float32(dy)
	case pix < x1:
		i := pix - x0
		cover[i] += float32(dy)
		area[i] += float32(dy * (float64(pix+1) - xMid))
	}
}

// integrate converts the cover and area sums of one row into coverage,
// which is written back into cover.
func integrate(cover, area []float32, rule fillRule) {
	var acc float32
	for i := range cover {
		raw := acc + area[i]
		acc += cover[i]

		if raw < 0 {
			raw = -raw
		}
		if rule == fillEvenOdd {
			raw -= 2 * float32(math.Floor(float64(raw)/2))
			if raw > 1 {
				raw = 2 - raw
			}
		} else if raw > 1 {
			raw = 1
		}
		cover[i] = raw
	}
}

// nonZeroSpan returns the part of row between the first and last non-zero
// entries, together with its offset.  It returns nil if the row is all
// zero.
func nonZeroSpan(row []float32) (int, []float32) {
	lo := slices.IndexFunc(row, func(c float32) bool { return c != 0 })
	if lo < 0 {
		return 0, nil
	}
	hi := len(row)
	for row[hi-1] == 0 {
		hi--
	}
	return lo, row[lo:hi]
}

// Default values for rasterizer parameters.
const (
	// defaultFlatness is the default curve flattening tolerance in device
	// pixels.
	defaultFlatness = 0.25

	// defaultMiterLimit matches the PDF default.
	defaultMiterLimit = 10.0
)

const (
	// horizontalEdgeThreshold is the minimum vertical extent for an edge
	// to contribute to coverage.
	horizontalEdgeThreshold = 1e-10

	// smallPathThreshold is the maximum bounding box area (in pixels) for
	// using 2D buffers (Approach A).  Larger paths use the active edge list.
	smallPathThreshold = 65536

	// pollInterval is the number of geometry steps between two calls of
	// the Interrupt callback.
	pollInterval = 64
)
