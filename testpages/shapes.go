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

package testpages

import (
	"math"

	"seehuhn.de/go/geom/path"
	"seehuhn.de/go/geom/vec"
)

// kappa is the control point distance for approximating a quarter circle
// with a cubic Bezier curve.
const kappa = 0.5522847498307936

func pt(x, y float64) vec.Vec2 {
	return vec.Vec2{X: x, Y: y}
}

// Rectangle builds an axis-aligned rectangle.
func Rectangle(x1, y1, x2, y2 float64) *path.Data {
	return (&path.Data{}).
		MoveTo(pt(x1, y1)).
		LineTo(pt(x2, y1)).
		LineTo(pt(x2, y2)).
		LineTo(pt(x1, y2)).
		Close()
}

// Triangle builds a closed triangle.
func Triangle(x1, y1, x2, y2, x3, y3 float64) *path.Data {
	return (&path.Data{}).
		MoveTo(pt(x1, y1)).
		LineTo(pt(x2, y2)).
		LineTo(pt(x3, y3)).
		Close()
}

// Star builds a self-intersecting five-pointed star.
func Star(cx, cy, r float64) *path.Data {
	var pts [5]vec.Vec2
	for i := range pts {
		angle := float64(i)*2*math.Pi/5 - math.Pi/2
		pts[i] = pt(cx+r*math.Cos(angle), cy+r*math.Sin(angle))
	}

	// connect every second point
	p := (&path.Data{}).MoveTo(pts[0])
	for _, i := range []int{2, 4, 1, 3} {
		p = p.LineTo(pts[i])
	}
	return p.Close()
}

// Ellipse builds an ellipse from four cubic curves.
func Ellipse(cx, cy, rx, ry float64) *path.Data {
	kx, ky := rx*kappa, ry*kappa
	return (&path.Data{}).
		MoveTo(pt(cx+rx, cy)).
		CubeTo(pt(cx+rx, cy-ky), pt(cx+kx, cy-ry), pt(cx, cy-ry)).
		CubeTo(pt(cx-kx, cy-ry), pt(cx-rx, cy-ky), pt(cx-rx, cy)).
		CubeTo(pt(cx-rx, cy+ky), pt(cx-kx, cy+ry), pt(cx, cy+ry)).
		CubeTo(pt(cx+kx, cy+ry), pt(cx+rx, cy+ky), pt(cx+rx, cy)).
		Close()
}

// Circle builds a circle from four cubic curves.
func Circle(cx, cy, r float64) *path.Data {
	return Ellipse(cx, cy, r, r)
}

// Ring builds a circle with a hole, drawn in opposite directions so that
// both fill rules leave the hole empty.
func Ring(cx, cy, outer, inner float64) *path.Data {
	p := Circle(cx, cy, outer)
	k := inner * kappa
	return p.
		MoveTo(pt(cx+inner, cy)).
		CubeTo(pt(cx+inner, cy+k), pt(cx+k, cy+inner), pt(cx, cy+inner)).
		CubeTo(pt(cx-k, cy+inner), pt(cx-inner, cy+k), pt(cx-inner, cy)).
		CubeTo(pt(cx-inner, cy-k), pt(cx-k, cy-inner), pt(cx, cy-inner)).
		CubeTo(pt(cx+k, cy-inner), pt(cx+inner, cy-k), pt(cx+inner, cy)).
		Close()
}

// Wave builds an open S-shaped curve from two quadratic segments.
func Wave(x1, y1, x2, y2, height float64) *path.Data {
	midX, midY := (x1+x2)/2, (y1+y2)/2
	return (&path.Data{}).
		MoveTo(pt(x1, y1)).
		QuadTo(pt((x1+midX)/2, y1-height), pt(midX, midY)).
		QuadTo(pt((midX+x2)/2, y2+height), pt(x2, y2))
}

// Spiral builds an open Archimedean spiral from line segments.
func Spiral(cx, cy, rMin, rMax, turns float64) *path.Data {
	steps := max(int(turns*32), 8)
	total := turns * 2 * math.Pi
	growth := (rMax - rMin) / total

	p := (&path.Data{}).MoveTo(pt(cx+rMin, cy))
	for i := 1; i <= steps; i++ {
		angle := float64(i) / float64(steps) * total
		r := rMin + growth*angle
		p = p.LineTo(pt(cx+r*math.Cos(angle), cy+r*math.Sin(angle)))
	}
	return p
}

// Zigzag builds an open zigzag line with the given number of segments.
func Zigzag(x1, cy, x2, amplitude float64, segments int) *path.Data {
	dx := (x2 - x1) / float64(segments)
	p := (&path.Data{}).MoveTo(pt(x1, cy))
	for i := 1; i <= segments; i++ {
		y := cy + amplitude
		if i%2 == 1 {
			y = cy - amplitude
		}
		p = p.LineTo(pt(x1+float64(i)*dx, y))
	}
	return p
}

// Grid builds rows × cols rectangles filling the given area, separated by
// gaps.  All rectangles are subpaths of one path.
func Grid(x, y, width, height float64, rows, cols int, gap float64) *path.Data {
	cw := width / float64(cols)
	ch := height / float64(rows)
	p := &path.Data{}
	for row := range rows {
		for col := range cols {
			x1 := x + float64(col)*cw + gap
			y1 := y + float64(row)*ch + gap
			x2 := x + float64(col+1)*cw - gap
			y2 := y + float64(row+1)*ch - gap
			p = p.
				MoveTo(pt(x1, y1)).
				LineTo(pt(x2, y1)).
				LineTo(pt(x2, y2)).
				LineTo(pt(x1, y2)).
				Close()
		}
	}
	return p
}
