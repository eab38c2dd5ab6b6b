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
	"math"
	"testing"

	"seehuhn.de/go/geom/rect"
)

func TestBandRowsCoverPage(t *testing.T) {
	for height := 1; height <= 100; height++ {
		for _, minBand := range []int{1, 3, 16} {
			plan := Plan{
				PageHeight:    height,
				MinBandHeight: minBand,
				Multiplier:    initialMultiplier(50, height, minBand, 0),
				Workers:       4,
			}
			for {
				next := 0
				for b := range plan.Bands() {
					y0, h := plan.BandRows(b)
					if y0 != next || h <= 0 || h > plan.BandHeight() {
						t.Fatalf("H=%d %+v: band %d is rows [%d,%d)", height, plan, b, y0, y0+h)
					}
					next = y0 + h
				}
				if next != height {
					t.Fatalf("H=%d %+v: bands cover %d rows", height, plan, next)
				}
				if _, ok := plan.degrade(); !ok {
					break
				}
			}
		}
	}
}

func TestDegradeLadder(t *testing.T) {
	plan := Plan{PageHeight: 1000, MinBandHeight: 10, Multiplier: 9, Workers: 7, UseList: true}
	want := []struct {
		step       string
		workers    int
		multiplier int
		list       bool
	}{
		{stepWorkers, 3, 9, true},
		{stepWorkers, 1, 9, true},
		{stepBandHeight, 1, 4, true},
		{stepBandHeight, 1, 2, true},
		{stepBandHeight, 1, 1, true},
		{stepList, 1, 1, false},
	}
	for i, w := range want {
		step, ok := plan.degrade()
		if !ok || step != w.step || plan.Workers != w.workers ||
			plan.Multiplier != w.multiplier || plan.UseList != w.list {
			t.Fatalf("step %d: %q %+v", i, step, plan)
		}
	}
	if step, ok := plan.degrade(); ok {
		t.Errorf("ladder continues with %q", step)
	}
}

func TestDegradeWithoutWorkers(t *testing.T) {
	plan := Plan{PageHeight: 100, MinBandHeight: 10, Multiplier: 2}
	if step, _ := plan.degrade(); step != stepBandHeight || plan.Workers != 0 {
		t.Errorf("got %q with %d workers", step, plan.Workers)
	}
}

func TestInitialMultiplier(t *testing.T) {
	cases := []struct {
		width, height, minBand int
		budget                 int64
		want                   int
	}{
		{100, 1000, 10, 0, 100},
		{100, 1000, 10, 1, 1},
		{100, 1000, 10, 100 * 10 * 7, 7},
		{100, 1000, 10, 100*10*7 + 999, 7},
		{100, 1000, 10, 1 << 40, 100},
		{100, 5, 10, 1 << 40, 1},
		{100, 1001, 10, 0, 101},
	}
	for _, c := range cases {
		got := initialMultiplier(c.width, c.height, c.minBand, c.budget)
		if got != c.want {
			t.Errorf("initialMultiplier(%d, %d, %d, %d) = %d, want %d",
				c.width, c.height, c.minBand, c.budget, got, c.want)
		}
	}
}

func TestDescriptor(t *testing.T) {
	letter := rect.Rect{URx: 612, URy: 792}
	cases := []struct {
		res      float64
		rotation int
		w, h     int
	}{
		{72, 0, 612, 792},
		{144, 0, 1224, 1584},
		{144, 90, 1584, 1224},
		{100, 180, 850, 1100},
		{72, -90, 792, 612},
		{72, 360, 612, 792},
	}
	for _, c := range cases {
		d, err := NewDescriptor(1, letter, c.res, c.rotation, Gray)
		if err != nil {
			t.Fatal(err)
		}
		if d.Target.Dx() != c.w || d.Target.Dy() != c.h || d.Target.Min.X != 0 || d.Target.Min.Y != 0 {
			t.Errorf("%g dpi, %d°: target %v", c.res, c.rotation, d.Target)
		}

		// every page corner must land on a corner of the target
		for _, pt := range [][2]float64{{0, 0}, {612, 0}, {0, 792}, {612, 792}} {
			x, y := apply(d.CTM, pt[0], pt[1])
			onX := math.Abs(x) < 1e-6 || math.Abs(x-float64(c.w)) < 1e-6
			onY := math.Abs(y) < 1e-6 || math.Abs(y-float64(c.h)) < 1e-6
			if !onX || !onY {
				t.Errorf("%g dpi, %d°: corner %v maps to (%g, %g)", c.res, c.rotation, pt, x, y)
			}
		}
	}
}

func TestDescriptorErrors(t *testing.T) {
	page := rect.Rect{URx: 100, URy: 100}
	if _, err := NewDescriptor(1, rect.Rect{}, 72, 0, Gray); err == nil {
		t.Error("empty page accepted")
	}
	if _, err := NewDescriptor(1, page, 0, 0, Gray); err == nil {
		t.Error("zero resolution accepted")
	}
	if _, err := NewDescriptor(1, page, 72, 30, Gray); err == nil {
		t.Error("rotation by 30° accepted")
	}
	if _, err := NewDescriptor(1, rect.Rect{URx: 0.001, URy: 100}, 72, 0, Gray); err == nil {
		t.Error("page narrower than a pixel accepted")
	}
}

func TestDescriptorHeader(t *testing.T) {
	d, err := NewDescriptor(3, rect.Rect{URx: 72, URy: 36}, 300, 0, Mono)
	if err != nil {
		t.Fatal(err)
	}
	hdr := d.Header()
	if hdr.Page != 3 || hdr.Width != 300 || hdr.Height != 150 || hdr.BitsPerPixel != 1 {
		t.Errorf("header %+v", hdr)
	}
	if hdr.Stride() != 38 {
		t.Errorf("stride %d, want 38", hdr.Stride())
	}
}

func TestParseColorModel(t *testing.T) {
	for _, m := range []ColorModel{Gray, Mono} {
		got, err := ParseColorModel(m.String())
		if err != nil || got != m {
			t.Errorf("%s: got %v, %v", m, got, err)
		}
	}
	if _, err := ParseColorModel("cmyk"); err == nil {
		t.Error("cmyk accepted")
	}
}

func TestErrorClasses(t *testing.T) {
	cases := []struct {
		err       error
		fatal     bool
		retryable bool
	}{
		{&RenderError{Band: 1, Err: ErrNoMemory}, false, true},
		{&RenderError{Band: 1, Err: ErrInterrupted}, true, false},
		{&OutputError{Page: 1, Err: errFake}, true, false},
		{&PageError{Page: 1, Attempts: 3, Err: errFake}, false, false},
		{errFake, false, false},
	}
	for _, c := range cases {
		if IsFatal(c.err) != c.fatal || IsRetryable(c.err) != c.retryable {
			t.Errorf("%v: fatal=%t retryable=%t", c.err, IsFatal(c.err), IsRetryable(c.err))
		}
	}
	var re *RenderError
	err := &PageError{Page: 2, Attempts: 1, Err: &RenderError{Band: 5, Err: ErrNoMemory}}
	if !errors.As(err, &re) || re.Band != 5 || !errors.Is(err, ErrNoMemory) {
		t.Errorf("unwrapping %v failed", err)
	}
}
