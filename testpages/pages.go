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

// Package testpages provides built-in sample pages.
//
// The pages exercise the features of the rasterizer: both fill rules,
// curves, all cap and join styles, dash patterns, and paths large enough
// to span many bands.  They are used by the tests and by the -builtin
// option of the bandrender command.
package testpages

import (
	"seehuhn.de/go/geom/path"

	"seehuhn.de/go/bandrender/pagefile"
)

// Sample is a named sample page.
type Sample struct {
	Name string
	Page *pagefile.Page
}

func fill(rule string, gray float64, p *path.Data) pagefile.Op {
	return pagefile.Op{Fill: rule, Gray: gray, Path: pagefile.FormatPath(p)}
}

func stroke(s pagefile.StrokeSpec, gray float64, p *path.Data) pagefile.Op {
	return pagefile.Op{Stroke: &s, Gray: gray, Path: pagefile.SegmentPath(p)}
}

// All returns the sample pages, in a fixed order.
func All() []Sample {
	return []Sample{
		{"fills", fills()},
		{"curves", curves()},
		{"strokes", strokes()},
		{"dashes", dashes()},
		{"grid", grid()},
		{"layers", layers()},
	}
}

// Document returns all sample pages as one document.
func Document() *pagefile.File {
	f := &pagefile.File{}
	for _, s := range All() {
		f.Pages = append(f.Pages, s.Page)
	}
	return f
}

// Lookup returns the sample page with the given name.
func Lookup(name string) (*pagefile.Page, bool) {
	for _, s := range All() {
		if s.Name == name {
			return s.Page, true
		}
	}
	return nil, false
}

func fills() *pagefile.Page {
	return &pagefile.Page{
		Size: [2]float64{240, 180},
		Ops: []pagefile.Op{
			fill("nonzero", 0.9, Rectangle(10, 10, 230, 170)),
			fill("nonzero", 0, Triangle(20, 150, 60, 30, 100, 150)),
			fill("nonzero", 0.3, Star(150, 60, 45)),
			fill("evenodd", 0.3, Star(150, 130, 35)),
			fill("nonzero", 0.6, Rectangle(20.5, 20.25, 40.75, 40.5)),
		},
	}
}

func curves() *pagefile.Page {
	return &pagefile.Page{
		Size: [2]float64{240, 240},
		Ops: []pagefile.Op{
			fill("nonzero", 0.2, Ellipse(120, 60, 100, 40)),
			fill("evenodd", 0, Ring(70, 160, 50, 25)),
			fill("nonzero", 0.5, Ring(180, 160, 50, 25)),
			fill("nonzero", 0.8, Circle(120, 120, 0.8)),
		},
	}
}

func strokes() *pagefile.Page {
	ops := []pagefile.Op{}
	joins := []string{"miter", "round", "bevel"}
	for i, join := range joins {
		y := 40 + float64(i)*50
		ops = append(ops, stroke(pagefile.StrokeSpec{Width: 8, Join: join}, 0.1, Zigzag(20, y, 140, 15, 6)))
	}
	caps := []string{"butt", "round", "square"}
	for i, c := range caps {
		x := 170 + float64(i)*25
		ops = append(ops, stroke(pagefile.StrokeSpec{Width: 10, Cap: c}, 0.4, Wave(x, 30, x, 170, 10)))
	}
	ops = append(ops,
		stroke(pagefile.StrokeSpec{Width: 0.5}, 0, Rectangle(5, 5, 235, 195)),
		stroke(pagefile.StrokeSpec{Width: 3, Join: "miter", Miter: 1.5}, 0.7, Triangle(30, 190, 120, 175, 30, 160)),
	)
	return &pagefile.Page{Size: [2]float64{240, 200}, Ops: ops}
}

func dashes() *pagefile.Page {
	return &pagefile.Page{
		Size: [2]float64{240, 240},
		Ops: []pagefile.Op{
			stroke(pagefile.StrokeSpec{Width: 3, Cap: "round", Dash: []float64{8, 4}}, 0, Spiral(120, 120, 10, 100, 3)),
			stroke(pagefile.StrokeSpec{Width: 4, Dash: []float64{12, 3, 2, 3}, Phase: 5}, 0.5, Rectangle(10, 10, 230, 230)),
			stroke(pagefile.StrokeSpec{Width: 2, Cap: "round", Dash: []float64{0, 6}}, 0.2, Circle(120, 120, 60)),
		},
	}
}

// grid is large enough for the rasterizer to switch to its active edge
// list when the page is rendered in one piece.
func grid() *pagefile.Page {
	return &pagefile.Page{
		Size: [2]float64{400, 400},
		Ops: []pagefile.Op{
			fill("nonzero", 0.2, Grid(20, 20, 360, 360, 12, 12, 2)),
			fill("evenodd", 0.7, Grid(0, 0, 400, 400, 3, 3, 30)),
		},
	}
}

func layers() *pagefile.Page {
	ops := []pagefile.Op{}
	for i := range 8 {
		x := 20 + float64(i)*22
		ops = append(ops, fill("nonzero", float64(i)/8, Circle(x, 60+float64(i)*10, 40)))
	}
	ops = append(ops, stroke(pagefile.StrokeSpec{Width: 1.5, Join: "round"}, 1, Star(120, 110, 60)))
	return &pagefile.Page{Size: [2]float64{240, 220}, Ops: ops}
}
