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


// Command pagepdf converts a page description file to PDF, one file per
// page.  The PDF files can be rendered with an independent rasterizer,
// for example Ghostscript, to check the output of bandrender.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/path"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/document"
	"seehuhn.de/go/pdf/graphics/color"

	"seehuhn.de/go/bandrender/display"
	"seehuhn.de/go/bandrender/pagefile"
)

func main() {
	outDir := flag.String("d", ".", "output directory")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: pagepdf [-d dir] file.yaml")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	in := flag.Arg(0)
	doc, err := pagefile.Load(in)
	if err != nil {
		log.Fatal(err)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal(err)
	}

	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	for i, page := range doc.Pages {
		name := filepath.Join(*outDir, fmt.Sprintf("%s-%d.pdf", base, i+1))
		if err := writePDF(page, name); err != nil {
			log.Fatalf("page %d: %v", i+1, err)
		}
	}
}

func writePDF(p *pagefile.Page, name string) error {
	items, err := p.Items()
	if err != nil {
		return err
	}

	paper := &pdf.Rectangle{URx: p.Size[0], URy: p.Size[1]}
	page, err := document.CreateSinglePage(name, paper, pdf.V1_7, nil)
	if err != nil {
		return err
	}

	// Page files have y pointing down.
	page.Transform(matrix.Matrix{1, 0, 0, -1, 0, p.Size[1]})

	for i := range items {
		it := &items[i]
		if it.Op == display.Stroke {
			page.SetStrokeColor(color.DeviceGray(it.Gray))
			page.SetLineWidth(it.Stroke.Width)
			page.SetLineCap(it.Stroke.Cap)
			page.SetLineJoin(it.Stroke.Join)
			page.SetMiterLimit(it.Stroke.MiterLimit)
			page.SetLineDash(it.Stroke.Dash, it.Stroke.DashPhase)
		} else {
			page.SetFillColor(color.DeviceGray(it.Gray))
		}

		// PDF has no quadratic segments.
		for cmd, pts := range it.Path.Iter().ToCubic() {
			switch cmd {
			case path.CmdMoveTo:
				page.MoveTo(pts[0].X, pts[0].Y)
			case path.CmdLineTo:
				page.LineTo(pts[0].X, pts[0].Y)
			case path.CmdCubeTo:
				page.CurveTo(pts[0].X, pts[0].Y, pts[1].X, pts[1].Y, pts[2].X, pts[2].Y)
			case path.CmdClose:
				page.ClosePath()
			}
		}

		switch it.Op {
		case display.FillNonZero:
			page.Fill()
		case display.FillEvenOdd:
			page.FillEvenOdd()
		case display.Stroke:
			page.Stroke()
		}
	}

	return page.Close()
}
