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
	"math"

	"seehuhn.de/go/geom/path"
	"seehuhn.de/go/geom/vec"
	"seehuhn.de/go/pdf/graphics"
)

// subpath is a run of flattened points pts[start:end].  Closed subpaths
// do not repeat their first point at the end.
type subpath struct {
	start, end int
	closed     bool
}

// dot is a stroke piece of zero length.  Dir is the path direction at the
// dot, or zero if the path has none there.
type dot struct {
	at, dir vec.Vec2
}

// Stroke renders the path as a stroked outline using Width, Cap, Join,
// MiterLimit, Dash, and DashPhase.
//
// The outline is the union of one quadrilateral per flattened segment
// together with polygons for the joins and caps.  All of them are filled
// in one pass with the nonzero rule, so overlaps are painted once.
func (r *Rasterizer) Stroke(p path.Path, emit EmitFunc) error {
	r.startEdges()
	if err := r.flattenStroke(p); err != nil {
		return err
	}

	pts, subs := r.pts, r.subs
	if dashing(r.Dash) {
		if err := r.dash(); err != nil {
			return err
		}
		pts, subs = r.dashPts, r.dashSubs
	}

	d := r.Width / 2
	for _, dt := range r.dots {
		r.dotCap(dt, d)
	}
	for _, s := range subs {
		if err := r.outline(pts[s.start:s.end], s.closed, d); err != nil {
			return err
		}
	}
	return r.rasterize(fillNonZero, emit)
}

// dashing reports whether the pattern has a positive total length.
func dashing(pattern []float64) bool {
	for _, l := range pattern {
		if l > 0 {
			return true
		}
	}
	return false
}

// flattenStroke converts p into subpaths of straight segments, stored in
// r.pts and r.subs.  Subpaths which collapse to a single point are
// recorded in r.dots.
func (r *Rasterizer) flattenStroke(p path.Path) error {
	r.pts = r.pts[:0]
	r.subs = r.subs[:0]
	r.dots = r.dots[:0]

	start := -1 // index of the first point of the open subpath
	drawn := false
	finish := func(closed bool) {
		if start < 0 {
			return
		}
		end := len(r.pts)
		if closed && end-start > 1 && r.pts[end-1].Sub(r.pts[start]).Length() <= zeroLengthThreshold {
			end--
			r.pts = r.pts[:end]
		}
		if end-start == 1 {
			// a lone moveto paints nothing
			if drawn || closed {
				r.dots = append(r.dots, dot{at: r.pts[start]})
			}
			r.pts = r.pts[:start]
		} else {
			r.subs = append(r.subs, subpath{start: start, end: end, closed: closed})
		}
		start = -1
		drawn = false
	}
	stop := false
	lineTo := func(a, b vec.Vec2) {
		stop = stop || r.poll()
		drawn = true
		if start < 0 {
			start = len(r.pts)
			r.pts = append(r.pts, a)
		}
		if b.Sub(r.pts[len(r.pts)-1]).Length() > zeroLengthThreshold {
			r.pts = append(r.pts, b)
		}
	}

	var cur, first vec.Vec2
	var ctrl [4]vec.Vec2
	for cmd, c := range p {
		if stop {
			return ErrInterrupted
		}
		switch cmd {
		case path.CmdMoveTo:
			stop = r.poll()
			finish(false)
			cur, first = c[0], c[0]
			start = len(r.pts)
			r.pts = append(r.pts, cur)
		case path.CmdLineTo:
			lineTo(cur, c[0])
			cur = c[0]
		case path.CmdQuadTo:
			ctrl[0], ctrl[1], ctrl[2] = cur, c[0], c[1]
			r.flattenCurve(ctrl[:3], lineTo)
			cur = c[1]
		case path.CmdCubeTo:
			ctrl[0], ctrl[1], ctrl[2], ctrl[3] = cur, c[0], c[1], c[2]
			r.flattenCurve(ctrl[:4], lineTo)
			cur = c[2]
		case path.CmdClose:
			if start >= 0 {
				lineTo(cur, first)
				finish(true)
			}
			cur = first
		}
	}
	if stop {
		return ErrInterrupted
	}
	finish(false)
	return nil
}

// dash splits the flattened subpaths into the "on" pieces of the dash
// pattern, stored in r.dashPts and r.dashSubs.  Pieces of zero length are
// appended to r.dots.  The pattern restarts at every subpath.
func (r *Rasterizer) dash() error {
	r.dashPts = r.dashPts[:0]
	r.dashSubs = r.dashSubs[:0]

	pattern := r.Dash
	period := 0.0
	for _, l := range pattern {
		period += l
	}
	if len(pattern)%2 == 1 {
		period *= 2
	}
	phase := math.Mod(r.DashPhase, period)
	if phase < 0 {
		phase += period
	}
	idx0, on0 := 0, true
	for phase > 0 && phase >= pattern[idx0] {
		phase -= pattern[idx0]
		idx0 = (idx0 + 1) % len(pattern)
		on0 = !on0
	}
	left0 := pattern[idx0] - phase

	for _, s := range r.subs {
		idx, on, left := idx0, on0, left0

		q := r.pts[s.start:s.end]
		n := len(q)
		segs := n - 1
		if s.closed {
			segs = n
		}

		piece := -1
		var dir vec.Vec2
		add := func(pt vec.Vec2) {
			if len(r.dashPts) == piece || pt.Sub(r.dashPts[len(r.dashPts)-1]).Length() > zeroLengthThreshold {
				r.dashPts = append(r.dashPts, pt)
			}
		}
		end := func() {
			if len(r.dashPts)-piece == 1 {
				r.dots = append(r.dots, dot{at: r.dashPts[piece], dir: dir})
				r.dashPts = r.dashPts[:piece]
			} else {
				r.dashSubs = append(r.dashSubs, subpath{start: piece, end: len(r.dashPts)})
			}
			piece = -1
		}

		for i := range segs {
			a, b := q[i], q[(i+1)%n]
			l := b.Sub(a).Length()
			dir = b.Sub(a).Mul(1 / l)
			if on && piece < 0 {
				piece = len(r.dashPts)
				add(a)
			}

			pos := 0.0
			for left <= l-pos {
				if r.poll() {
					return ErrInterrupted
				}
				pos += left
				pt := a.Add(dir.Mul(pos))
				if on {
					add(pt)
					end()
				} else {
					piece = len(r.dashPts)
					add(pt)
				}
				on = !on
				idx = (idx + 1) % len(pattern)
				left = pattern[idx]
			}
			left -= l - pos
			if on {
				add(b)
			}
		}
		if on && piece >= 0 {
			end()
		}
	}
	return nil
}

// outline adds the stroke polygons of one subpath of flattened points.
func (r *Rasterizer) outline(q []vec.Vec2, closed bool, d float64) error {
	n := len(q)
	segs := n - 1
	if closed {
		segs = n
	}

	var tFirst, tPrev vec.Vec2
	for i := range segs {
		if r.poll() {
			return ErrInterrupted
		}
		a, b := q[i], q[(i+1)%n]
		t := b.Sub(a)
		t = t.Mul(1 / t.Length())
		off := normal(t).Mul(d)
		r.polygon(a.Add(off), b.Add(off), b.Sub(off), a.Sub(off))

		if i == 0 {
			tFirst = t
		} else {
			r.join(a, tPrev, t, d)
		}
		tPrev = t
	}

	if closed {
		r.join(q[0], tPrev, tFirst, d)
	} else {
		r.lineCap(q[0], tFirst.Mul(-1), d)
		r.lineCap(q[n-1], tPrev, d)
	}
	return nil
}

// normal returns t rotated by 90 degrees.
func normal(t vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: -t.Y, Y: t.X}
}

// join adds the polygon filling the gap at vertex p between a segment
// with direction t1 and the following segment with direction t2.
func (r *Rasterizer) join(p, t1, t2 vec.Vec2, d float64) {
	cross := t1.X*t2.Y - t1.Y*t2.X
	cos := t1.X*t2.X + t1.Y*t2.Y
	if math.Abs(cross) < collinearityThreshold && cos > 0 {
		return
	}
	if r.Join == graphics.LineJoinRound {
		r.circle(p, d)
		return
	}

	// offsets towards the outside of the turn
	s := d
	if cross > 0 {
		s = -d
	}
	o1 := normal(t1).Mul(s)
	o2 := normal(t2).Mul(s)

	if r.Join == graphics.LineJoinMiter && 1+cos > 1e-12 {
		ratio := math.Sqrt(2 / (1 + cos))
		if ratio <= r.MiterLimit {
			bis := o1.Add(o2)
			tip := p.Add(bis.Mul(d * ratio / bis.Length()))
			r.polygon(p, p.Add(o1), tip, p.Add(o2))
			return
		}
	}
	r.polygon(p, p.Add(o1), p.Add(o2))
}

// lineCap adds the cap at the end point p of an open subpath.  out points
// away from the stroke.
func (r *Rasterizer) lineCap(p, out vec.Vec2, d float64) {
	switch r.Cap {
	case graphics.LineCapRound:
		r.circle(p, d)
	case graphics.LineCapSquare:
		side := normal(out).Mul(d)
		tip := p.Add(out.Mul(d))
		r.polygon(p.Add(side), tip.Add(side), tip.Sub(side), p.Sub(side))
	}
}

// dotCap paints a stroke piece of zero length.  Round caps give a disc,
// square caps a square aligned with the path direction.  Butt caps and
// square caps without a direction paint nothing.
func (r *Rasterizer) dotCap(dt dot, d float64) {
	switch r.Cap {
	case graphics.LineCapRound:
		r.circle(dt.at, d)
	case graphics.LineCapSquare:
		if dt.dir == (vec.Vec2{}) {
			return
		}
		along := dt.dir.Mul(d)
		side := normal(dt.dir).Mul(d)
		p := dt.at
		r.polygon(p.Sub(along).Add(side), p.Add(along).Add(side),
			p.Add(along).Sub(side), p.Sub(along).Sub(side))
	}
}

// circle adds a polygon approximating the circle of radius rad around c.
// The number of vertices keeps the device space error below Flatness.
func (r *Rasterizer) circle(c vec.Vec2, rad float64) {
	scale := max(r.linear(vec.Vec2{X: 1}).Length(), r.linear(vec.Vec2{Y: 1}).Length())
	devRad := rad * scale

	n := 8
	if devRad > r.Flatness {
		n = max(n, int(math.Ceil(math.Pi/math.Acos(1-r.Flatness/devRad))))
	}
	n = min(n, maxCircleVertices)

	r.ring = r.ring[:0]
	for i := range n {
		a := 2 * math.Pi * float64(i) / float64(n)
		r.ring = append(r.ring, vec.Vec2{X: c.X + rad*math.Cos(a), Y: c.Y + rad*math.Sin(a)})
	}
	r.polygon(r.ring...)
}

// polygon adds the closed polygon through vs to the edge list.  All
// polygons are added with positive orientation, so that the nonzero rule
// fills their union.
func (r *Rasterizer) polygon(vs ...vec.Vec2) {
	var area float64
	for i, a := range vs {
		b := vs[(i+1)%len(vs)]
		area += a.X*b.Y - b.X*a.Y
	}
	if area > 0 {
		for i, a := range vs {
			r.addEdge(a, vs[(i+1)%len(vs)])
		}
	} else if area < 0 {
		for i := len(vs) - 1; i >= 0; i-- {
			r.addEdge(vs[i], vs[(i+len(vs)-1)%len(vs)])
		}
	}
}

const (
	// zeroLengthThreshold is the minimum length for a stroke segment.
	zeroLengthThreshold = 1e-10

	// collinearityThreshold is used to detect nearly collinear segments
	// where no join is needed.
	collinearityThreshold = 1e-6

	maxCircleVertices = 1024
)
