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
	"errors"
	"image"
	"image/draw"
	"math"
	"testing"

	"golang.org/x/image/vector"
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/path"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
	"seehuhn.de/go/pdf/graphics"
)

type sample struct {
	name string
	ctm  matrix.Matrix
	draw func(r *Rasterizer, emit EmitFunc) error
}

func polygon(pts ...float64) *path.Data {
	p := &path.Data{}
	p.MoveTo(vec.Vec2{X: pts[0], Y: pts[1]})
	for i := 2; i+1 < len(pts); i += 2 {
		p.LineTo(vec.Vec2{X: pts[i], Y: pts[i+1]})
	}
	return p.Close()
}

// star returns a five-pointed star.  Drawn as one self-intersecting
// outline, its centre has winding number 2.
func star(cx, cy, r float64) *path.Data {
	p := &path.Data{}
	for i := range 5 {
		a := float64(2*i)*2*math.Pi/5 - math.Pi/2
		v := vec.Vec2{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
		if i == 0 {
			p.MoveTo(v)
		} else {
			p.LineTo(v)
		}
	}
	return p.Close()
}

func blob() *path.Data {
	return (&path.Data{}).
		MoveTo(vec.Vec2{X: 8, Y: 30}).
		CubeTo(vec.Vec2{X: 8, Y: 2}, vec.Vec2{X: 55, Y: 2}, vec.Vec2{X: 55, Y: 30}).
		QuadTo(vec.Vec2{X: 55, Y: 58}, vec.Vec2{X: 30, Y: 50}).
		Close()
}

var samples = []sample{
	{"nonzero", matrix.Identity, func(r *Rasterizer, emit EmitFunc) error {
		return r.FillNonZero(star(32, 32, 28), emit)
	}},
	{"evenodd", matrix.Identity, func(r *Rasterizer, emit EmitFunc) error {
		return r.FillEvenOdd(star(32, 32, 28), emit)
	}},
	{"curves", matrix.Scale(0.9, 1.1).Translate(1.5, 0.25), func(r *Rasterizer, emit EmitFunc) error {
		return r.FillNonZero(blob(), emit)
	}},
	{"stroke", matrix.Identity, func(r *Rasterizer, emit EmitFunc) error {
		r.Width = 5
		r.Join = graphics.LineJoinRound
		r.Cap = graphics.LineCapSquare
		return r.Stroke(polygon(6, 6, 58, 20, 10, 58).Iter(), emit)
	}},
	{"dashed", matrix.RotateDeg(10).Translate(4, -2), func(r *Rasterizer, emit EmitFunc) error {
		r.Width = 3
		r.Cap = graphics.LineCapRound
		r.Dash = []float64{7, 4}
		r.DashPhase = 2
		return r.Stroke(blob().Iter(), emit)
	}},
}

const size = 64

// render draws s into a size×size coverage grid, one band of the given
// height at a time.
func render(t testing.TB, s sample, bandHeight, threshold int) []float32 {
	t.Helper()
	grid := make([]float32, size*size)
	emit := func(y, xMin int, coverage []float32) {
		copy(grid[y*size+xMin:], coverage)
	}
	r := NewRasterizer(rect.Rect{})
	for y0 := 0; y0 < size; y0 += bandHeight {
		r.Reset(rect.Rect{LLy: float64(y0), URx: size, URy: float64(min(y0+bandHeight, size))})
		r.CTM = s.ctm
		r.smallPathThreshold = threshold
		if err := s.draw(r, emit); err != nil {
			t.Fatal(err)
		}
	}
	return grid
}

func compare(t *testing.T, what string, want, got []float32) {
	t.Helper()
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("%s: pixel (%d,%d) is %g, want %g", what, i%size, i/size, got[i], want[i])
			return
		}
	}
}

// TestTriangleCoverage checks exact coverage values for a simple triangle.
// The edge y = x/10 gives pixel x the coverage (2x+1)/20.
func TestTriangleCoverage(t *testing.T) {
	r := NewRasterizer(rect.Rect{URx: 10, URy: 1})
	coverage := make([]float32, 10)
	emit := func(y, xMin int, cov []float32) {
		if y == 0 {
			copy(coverage[xMin:], cov)
		}
	}
	if err := r.FillNonZero(polygon(0, 0, 10, 0, 10, 1), emit); err != nil {
		t.Fatal(err)
	}

	const epsilon = 1e-6
	for x := range 10 {
		want := float32(2*x+1) / 20
		if math.Abs(float64(coverage[x]-want)) > epsilon {
			t.Errorf("pixel %d: coverage %.4f, want %.4f", x, coverage[x], want)
		}
	}
}

func TestApproachesAgree(t *testing.T) {
	for _, s := range samples {
		t.Run(s.name, func(t *testing.T) {
			a := render(t, s, size, 1<<30)
			b := render(t, s, size, 0)
			compare(t, "A/B", a, b)
		})
	}
}

func TestBandsMatchWholePage(t *testing.T) {
	for _, s := range samples {
		t.Run(s.name, func(t *testing.T) {
			whole := render(t, s, size, smallPathThreshold)
			for _, h := range []int{1, 7, 16, 33} {
				compare(t, s.name, whole, render(t, s, h, smallPathThreshold))
			}
		})
	}
}

func TestInterrupt(t *testing.T) {
	for _, threshold := range []int{0, 1 << 30} {
		r := NewRasterizer(rect.Rect{URx: size, URy: size})
		r.smallPathThreshold = threshold
		rows := 0
		r.Interrupt = func() bool {
			rows++
			return rows > 3
		}
		emitted := 0
		err := r.FillNonZero(star(32, 32, 28), func(int, int, []float32) { emitted++ })
		if !errors.Is(err, ErrInterrupted) {
			t.Errorf("threshold %d: got %v, want ErrInterrupted", threshold, err)
		}
		if emitted > 3 {
			t.Errorf("threshold %d: %d rows emitted after interrupt", threshold, emitted)
		}
	}
}

// TestStrokeInterruptDuringDashing uses a pattern so fine that dashing
// the line alone would take a very long time.  The Interrupt callback
// must stop the stroke before all dashes are generated.
func TestStrokeInterruptDuringDashing(t *testing.T) {
	line := (&path.Data{}).MoveTo(vec.Vec2{X: 2, Y: 32}).LineTo(vec.Vec2{X: 1e6, Y: 32})

	r := NewRasterizer(rect.Rect{URx: size, URy: size})
	r.Dash = []float64{1e-3, 1e-3}
	calls := 0
	r.Interrupt = func() bool {
		calls++
		return true
	}
	err := r.Stroke(line.Iter(), func(y, _ int, _ []float32) {
		t.Errorf("row %d emitted after interrupt", y)
	})
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("got %v, want ErrInterrupted", err)
	}
	if calls != 1 {
		t.Errorf("Interrupt called %d times, want 1", calls)
	}
	if n := len(r.dashSubs) + len(r.dots); n > pollInterval {
		t.Errorf("%d dashes generated after interrupt", n)
	}
}

func TestStrokeInterruptDuringFlattening(t *testing.T) {
	p := &path.Data{}
	p.MoveTo(vec.Vec2{X: 0, Y: 0})
	for i := range 10000 {
		p.LineTo(vec.Vec2{X: float64(i % 64), Y: float64(i%2) * 60})
	}

	r := NewRasterizer(rect.Rect{URx: size, URy: size})
	r.Interrupt = func() bool { return true }
	err := r.Stroke(p.Iter(), func(y, _ int, _ []float32) {
		t.Errorf("row %d emitted after interrupt", y)
	})
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("got %v, want ErrInterrupted", err)
	}
	if len(r.pts) > 2*pollInterval {
		t.Errorf("%d points flattened after interrupt", len(r.pts))
	}
}

// paint strokes p onto a size×size grid.
func paint(t *testing.T, r *Rasterizer, p *path.Data) []float32 {
	t.Helper()
	grid := make([]float32, size*size)
	err := r.Stroke(p.Iter(), func(y, xMin int, coverage []float32) {
		copy(grid[y*size+xMin:], coverage)
	})
	if err != nil {
		t.Fatal(err)
	}
	return grid
}

func TestStrokeCaps(t *testing.T) {
	line := (&path.Data{}).MoveTo(vec.Vec2{X: 10, Y: 20}).LineTo(vec.Vec2{X: 50, Y: 20})
	cases := []struct {
		cap        graphics.LineCapStyle
		xMin, xMax int // fully covered columns in rows 18 to 21
	}{
		{graphics.LineCapButt, 10, 50},
		{graphics.LineCapSquare, 8, 52},
	}
	for _, c := range cases {
		r := NewRasterizer(rect.Rect{URx: size, URy: size})
		r.Width = 4
		r.Cap = c.cap
		grid := paint(t, r, line)
		for y := range size {
			for x := range size {
				want := float32(0)
				if y >= 18 && y < 22 && x >= c.xMin && x < c.xMax {
					want = 1
				}
				if got := grid[y*size+x]; math.Abs(float64(got-want)) > 1e-5 {
					t.Fatalf("cap %d: pixel (%d,%d) is %g, want %g", c.cap, x, y, got, want)
				}
			}
		}
	}

	r := NewRasterizer(rect.Rect{URx: size, URy: size})
	r.Width = 4
	r.Cap = graphics.LineCapRound
	grid := paint(t, r, line)
	if c := grid[19*size+8]; c <= 0.5 || c > 1 {
		t.Errorf("round cap: pixel (8,19) is %g", c)
	}
	if c := grid[18*size+8]; c <= 0 || c >= 1 {
		t.Errorf("round cap: pixel (8,18) is %g, want partial coverage", c)
	}
}

// TestStrokeJoins looks at the pixel just outside the corner of a right
// angle, which only a miter join covers.
func TestStrokeJoins(t *testing.T) {
	corner := (&path.Data{}).
		MoveTo(vec.Vec2{X: 10, Y: 10}).
		LineTo(vec.Vec2{X: 40, Y: 10}).
		LineTo(vec.Vec2{X: 40, Y: 40})
	const outside = 8*size + 41

	r := NewRasterizer(rect.Rect{URx: size, URy: size})
	r.Width = 4
	r.Join = graphics.LineJoinMiter
	if c := paint(t, r, corner)[outside]; math.Abs(float64(c)-1) > 1e-5 {
		t.Errorf("miter: coverage %g, want 1", c)
	}

	r.Join = graphics.LineJoinBevel
	if c := paint(t, r, corner)[outside]; c != 0 {
		t.Errorf("bevel: coverage %g, want 0", c)
	}

	r.Join = graphics.LineJoinRound
	if c := paint(t, r, corner)[outside]; c <= 0 || c >= 1 {
		t.Errorf("round: coverage %g, want partial coverage", c)
	}

	// sqrt(2) exceeds the limit, so the miter falls back to a bevel
	r.Join = graphics.LineJoinMiter
	r.MiterLimit = 1.2
	if c := paint(t, r, corner)[outside]; c != 0 {
		t.Errorf("limited miter: coverage %g, want 0", c)
	}
}

// TestStrokeZeroLengthDashes checks that "on" dashes of length zero are
// drawn as round dots, and are invisible with butt caps.
func TestStrokeZeroLengthDashes(t *testing.T) {
	line := (&path.Data{}).MoveTo(vec.Vec2{X: 5, Y: 32}).LineTo(vec.Vec2{X: 60, Y: 32})

	r := NewRasterizer(rect.Rect{URx: size, URy: size})
	r.Width = 4
	r.Dash = []float64{0, 10}
	r.Cap = graphics.LineCapRound
	grid := paint(t, r, line)
	for x := 5; x < 60; x += 10 {
		if c := grid[32*size+x]; math.Abs(float64(c)-1) > 1e-5 {
			t.Errorf("dot at x=%d: coverage %g, want 1", x, c)
		}
	}
	if c := grid[32*size+10]; c > 1e-5 {
		t.Errorf("gap at x=10: coverage %g, want 0", c)
	}

	r.Cap = graphics.LineCapButt
	for i, c := range paint(t, r, line) {
		if c != 0 {
			t.Fatalf("butt caps: pixel (%d,%d) is %g", i%size, i/size, c)
		}
	}
}

func TestOutsideClip(t *testing.T) {
	r := NewRasterizer(rect.Rect{LLy: 40, URx: size, URy: 50})
	err := r.FillNonZero(polygon(0, 0, 20, 0, 20, 20), func(y, _ int, _ []float32) {
		t.Errorf("row %d emitted outside the clip", y)
	})
	if err != nil {
		t.Fatal(err)
	}
}

// TestAgainstVector compares a simple polygon with x/image/vector, which
// also computes exact area coverage.
func TestAgainstVector(t *testing.T) {
	pts := []float64{4.5, 3, 60, 10.25, 50, 61, 30, 30.5, 2, 52}

	ref := vector.NewRasterizer(size, size)
	ref.MoveTo(float32(pts[0]), float32(pts[1]))
	for i := 2; i < len(pts); i += 2 {
		ref.LineTo(float32(pts[i]), float32(pts[i+1]))
	}
	ref.ClosePath()
	want := image.NewAlpha(image.Rect(0, 0, size, size))
	ref.Draw(want, want.Bounds(), image.Opaque, image.Point{})

	got := make([]byte, size*size)
	r := NewRasterizer(rect.Rect{URx: size, URy: size})
	err := r.FillNonZero(polygon(pts...), func(y, xMin int, cov []float32) {
		for i, c := range cov {
			got[y*size+xMin+i] = uint8(min(c, 1)*255 + 0.5)
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	for i, v := range want.Pix {
		d := int(v) - int(got[i])
		if d < -2 || d > 2 {
			t.Errorf("pixel (%d,%d): %d, x/image/vector has %d", i%size, i/size, got[i], v)
			return
		}
	}
}

func BenchmarkRasterize(b *testing.B) {
	r := NewRasterizer(rect.Rect{})
	emit := func(y, xMin int, coverage []float32) {}
	for b.Loop() {
		for _, s := range samples {
			r.Reset(rect.Rect{URx: size, URy: size})
			r.CTM = s.ctm
			s.draw(r, emit)
		}
	}
}

func BenchmarkVector(b *testing.B) {
	dst := image.NewAlpha(image.Rect(0, 0, size, size))
	z := vector.NewRasterizer(size, size)
	for b.Loop() {
		z.Reset(size, size)
		for i := range 5 {
			a := float64(2*i)*2*math.Pi/5 - math.Pi/2
			x, y := float32(32+28*math.Cos(a)), float32(32+28*math.Sin(a))
			if i == 0 {
				z.MoveTo(x, y)
			} else {
				z.LineTo(x, y)
			}
		}
		z.ClosePath()
		z.DrawOp = draw.Src
		z.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})
	}
}
