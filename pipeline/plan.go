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
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"

	"seehuhn.de/go/bandrender/band"
)

// ColorModel selects the pixel format of the output.
type ColorModel int

const (
	Gray ColorModel = iota // 8 bits per pixel
	Mono                   // 1 bit per pixel, black and white
)

func (m ColorModel) String() string {
	switch m {
	case Gray:
		return "gray"
	case Mono:
		return "mono"
	default:
		return fmt.Sprintf("ColorModel(%d)", int(m))
	}
}

// ParseColorModel converts a name as returned by ColorModel.String.
func ParseColorModel(s string) (ColorModel, error) {
	switch strings.ToLower(s) {
	case "gray", "grey":
		return Gray, nil
	case "mono", "bw":
		return Mono, nil
	}
	return 0, fmt.Errorf("unknown color model %q", s)
}

// Descriptor describes how one page maps to the raster image.  It is
// computed once per page and does not change between render attempts.
type Descriptor struct {
	Page       int
	Bounds     rect.Rect     // page area in page space
	CTM        matrix.Matrix // page space to device space
	Resolution float64       // dots per inch
	Rotation   int           // degrees, multiple of 90
	Model      ColorModel

	// Target is the device area covered by the page.  It always starts at
	// (0, 0).
	Target image.Rectangle
}

// snap absorbs rounding noise before device coordinates are converted to
// whole pixels.
const snap = 1e-6

// NewDescriptor computes the device geometry of page n.  Page space uses
// points with y pointing down.
func NewDescriptor(n int, bounds rect.Rect, resolution float64, rotation int, model ColorModel) (*Descriptor, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("invalid resolution %g", resolution)
	}
	if rotation%90 != 0 {
		return nil, fmt.Errorf("rotation %d is not a multiple of 90", rotation)
	}
	if bounds.URx <= bounds.LLx || bounds.URy <= bounds.LLy {
		return nil, errors.New("empty page")
	}

	s := resolution / 72
	ctm := matrix.Scale(s, s)
	if rotation%360 != 0 {
		ctm = ctm.RotateDeg(float64(rotation))
	}

	xMin, yMin := math.Inf(1), math.Inf(1)
	xMax, yMax := math.Inf(-1), math.Inf(-1)
	for _, c := range [4][2]float64{
		{bounds.LLx, bounds.LLy}, {bounds.URx, bounds.LLy},
		{bounds.LLx, bounds.URy}, {bounds.URx, bounds.URy},
	} {
		x, y := apply(ctm, c[0], c[1])
		xMin, xMax = min(xMin, x), max(xMax, x)
		yMin, yMax = min(yMin, y), max(yMax, y)
	}
	ctm = ctm.Translate(-xMin, -yMin)

	w := int(math.Ceil(xMax - xMin - snap))
	h := int(math.Ceil(yMax - yMin - snap))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("page is smaller than one pixel at %g dpi", resolution)
	}

	return &Descriptor{
		Page:       n,
		Bounds:     bounds,
		CTM:        ctm,
		Resolution: resolution,
		Rotation:   rotation,
		Model:      model,
		Target:     image.Rect(0, 0, w, h),
	}, nil
}

// apply maps a point through m.
func apply(m matrix.Matrix, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// Header returns the output header for the page.
func (d *Descriptor) Header() band.Header {
	hdr := band.Header{
		Page:         d.Page,
		Width:        d.Target.Dx(),
		Height:       d.Target.Dy(),
		Components:   1,
		BitsPerPixel: 8,
		Resolution:   d.Resolution,
	}
	if d.Model == Mono {
		hdr.BitsPerPixel = 1
	}
	return hdr
}

// Plan holds the resource parameters of one render attempt.  Within one
// page, Workers and Multiplier only ever decrease and UseList, once false,
// stays false.
type Plan struct {
	PageHeight    int  // device rows
	MinBandHeight int  // bands are a multiple of this height
	Multiplier    int  // band height multiplier, at least 1
	Workers       int  // workers used, 0 renders on the calling goroutine
	UseList       bool // replay the cached display list
}

// BandHeight returns the effective band height.
func (p Plan) BandHeight() int {
	return p.MinBandHeight * p.Multiplier
}

// Bands returns the number of bands needed to cover the page.
func (p Plan) Bands() int {
	bh := p.BandHeight()
	return (p.PageHeight + bh - 1) / bh
}

// BandRows returns the first row and the height of band b.  The last band
// is clamped to the page height.
func (p Plan) BandRows(b int) (y0, height int) {
	bh := p.BandHeight()
	y0 = b * bh
	return y0, min(bh, p.PageHeight-y0)
}

// Degradation steps, in ladder order.
const (
	stepWorkers    = "workers"
	stepBandHeight = "band height"
	stepList       = "display list"
)

// degrade applies the next step of the degradation ladder.  It returns
// false if the plan cannot be reduced any further.
func (p *Plan) degrade() (string, bool) {
	switch {
	case p.Workers > 1:
		p.Workers /= 2
		return stepWorkers, true
	case p.Multiplier > 1:
		p.Multiplier /= 2
		return stepBandHeight, true
	case p.UseList:
		p.UseList = false
		return stepList, true
	default:
		return "", false
	}
}

// initialMultiplier chooses the largest band height multiplier for which
// one band of the given width fits into budget bytes.  A budget of zero
// renders the whole page as a single band.
func initialMultiplier(width, height, minBand int, budget int64) int {
	most := max((height+minBand-1)/minBand, 1)
	if budget <= 0 {
		return most
	}
	m := budget / band.Size(width, minBand)
	return int(max(1, min(m, int64(most))))
}
