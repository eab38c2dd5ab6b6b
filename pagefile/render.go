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

package pagefile

import (
	"fmt"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"

	"seehuhn.de/go/bandrender/band"
	"seehuhn.de/go/bandrender/display"
	"seehuhn.de/go/bandrender/pipeline"
)

// PageCount returns the number of pages in the file.
func (f *File) PageCount() int {
	return len(f.Pages)
}

// LoadPage returns page n, counting from 1.
func (f *File) LoadPage(n int) (pipeline.Source, error) {
	if n < 1 || n > len(f.Pages) {
		return nil, fmt.Errorf("page %d out of range", n)
	}
	return f.Pages[n-1], nil
}

// Bounds returns the page area in points.
func (p *Page) Bounds() rect.Rect {
	return rect.Rect{URx: p.Size[0], URy: p.Size[1]}
}

// item parses operation i.
func (p *Page) item(i int) (display.Item, error) {
	op := &p.Ops[i]
	geom, err := op.Path.Parse()
	if err != nil {
		return display.Item{}, fmt.Errorf("op %d: %w", i+1, err)
	}
	it := display.Item{Path: geom, Gray: op.Gray}
	if op.Stroke != nil {
		it.Op = display.Stroke
		it.Stroke, err = op.Stroke.Style()
	} else {
		it.Op, err = fillOp(op.Fill)
	}
	if err != nil {
		return display.Item{}, fmt.Errorf("op %d: %w", i+1, err)
	}
	return it, nil
}

// Render interprets the page for one band.  Every path is parsed again.
func (p *Page) Render(dst *band.Buffer, ctm matrix.Matrix, cookie *pipeline.Cookie) error {
	for i := range p.Ops {
		if cookie.Aborted() {
			return pipeline.ErrInterrupted
		}
		it, err := p.item(i)
		if err != nil {
			return err
		}
		y0, y1, ok := it.Rows(ctm)
		if !ok || y1 <= dst.Y0 || y0 >= dst.Y0+dst.Height {
			continue
		}
		if err := display.Draw(dst, ctm, &it, cookie); err != nil {
			return err
		}
	}
	return nil
}

// BuildList interprets the page once, for replay in every band.
func (p *Page) BuildList(ctm matrix.Matrix, cookie *pipeline.Cookie) (pipeline.DisplayList, error) {
	l := display.NewList(ctm)
	for i := range p.Ops {
		if cookie.Aborted() {
			return nil, pipeline.ErrInterrupted
		}
		it, err := p.item(i)
		if err != nil {
			return nil, err
		}
		l.Add(it)
	}
	return l, nil
}

// Items parses all operations of the page.
func (p *Page) Items() ([]display.Item, error) {
	items := make([]display.Item, 0, len(p.Ops))
	for i := range p.Ops {
		it, err := p.item(i)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}
