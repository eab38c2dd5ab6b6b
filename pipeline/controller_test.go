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
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"seehuhn.de/go/bandrender/band"
)

func checkMonotonic(t *testing.T, plans []Plan) {
	t.Helper()
	for i := 1; i < len(plans); i++ {
		prev, cur := plans[i-1], plans[i]
		if cur.Workers > prev.Workers || cur.Multiplier > prev.Multiplier || (cur.UseList && !prev.UseList) {
			t.Errorf("attempt %d: %+v follows %+v", i+1, cur, prev)
		}
	}
}

func TestLadderExhausted(t *testing.T) {
	alwaysFail := func(*band.Buffer) error { return errFake }

	cases := []struct {
		list bool
		want [][3]int // workers, multiplier, list
	}{
		{false, [][3]int{{4, 8, 0}, {2, 8, 0}, {1, 8, 0}, {1, 4, 0}, {1, 2, 0}, {1, 1, 0}}},
		{true, [][3]int{{4, 8, 1}, {2, 8, 1}, {1, 8, 1}, {1, 4, 1}, {1, 2, 1}, {1, 1, 1}, {1, 1, 0}}},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("list%t", c.list), func(t *testing.T) {
			p := newTestPipeline(t, Options{Threads: 4, MinBandHeight: 16, DisplayList: true})
			var plans []Plan
			p.attemptHook = func(_ int, plan Plan) { plans = append(plans, plan) }

			var src Source = newPage(&stripes{fail: alwaysFail}, 64, 128)
			if c.list {
				src = &listPage{
					rawPage: *newPage(&stripes{fail: alwaysFail}, 64, 128),
					list:    &stripes{fail: alwaysFail},
					size:    100,
				}
			}
			doc := &testDoc{pages: []Source{src}}
			sum, err := p.RenderDocument(context.Background(), doc, newRecorder())

			var pe *PageError
			if !errors.As(err, &pe) || pe.Page != 1 || pe.Attempts != len(c.want) {
				t.Fatalf("got %v, want PageError after %d attempts", err, len(c.want))
			}
			if !errors.Is(err, errFake) || IsFatal(err) {
				t.Errorf("wrong classification of %v", err)
			}
			if len(plans) != len(c.want) {
				t.Fatalf("got %d attempts, want %d", len(plans), len(c.want))
			}
			for i, plan := range plans {
				got := [3]int{plan.Workers, plan.Multiplier, 0}
				if plan.UseList {
					got[2] = 1
				}
				if got != c.want[i] {
					t.Errorf("attempt %d: got %v, want %v", i+1, got, c.want[i])
				}
			}
			checkMonotonic(t, plans)
			if sum.Retries != len(c.want)-1 {
				t.Errorf("%d retries", sum.Retries)
			}
			if used := p.Memory().InUse(); used != 0 {
				t.Errorf("%d bytes still reserved", used)
			}
		})
	}
}

// TestLadderRecovers fails while the display list is in use.
func TestLadderRecovers(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := newTestPipeline(t, Options{Threads: 3, MinBandHeight: 8, DisplayList: true, Logger: zap.New(core)})
	var plans []Plan
	p.attemptHook = func(_ int, plan Plan) { plans = append(plans, plan) }

	src := &listPage{
		rawPage: *newPage(&stripes{}, 20, 40),
		list:    &stripes{fail: func(*band.Buffer) error { return errFake }},
		size:    10,
	}
	task := prepare(t, p, src)
	w := newRecorder()
	if err := p.RenderPage(task, w, nil); err != nil {
		t.Fatal(err)
	}
	checkMonotonic(t, plans)
	last := plans[len(plans)-1]
	if last.UseList || last.Workers != 1 || last.Multiplier != 1 {
		t.Errorf("succeeded with %+v", last)
	}
	if logs.FilterMessage("retrying with fewer resources").FilterField(zap.String("reduced", stepList)).Len() != 1 {
		t.Error("dropping the display list was not logged")
	}

	// The next page starts with full resources again, but the list of
	// this page stays dropped.
	plans = nil
	if err := p.RenderPage(task, newRecorder(), nil); err != nil {
		t.Fatal(err)
	}
	if plans[0].Workers != 3 || plans[0].Multiplier != task.Plan.Multiplier || plans[0].UseList {
		t.Errorf("second render started with %+v", plans[0])
	}
}

// TestLadderFlaky fails on a fraction of the bands and checks that the
// resources never grow within a page.
func TestLadderFlaky(t *testing.T) {
	for seed := range 5 {
		p := newTestPipeline(t, Options{Threads: 4, MinBandHeight: 4})
		var plans []Plan
		p.attemptHook = func(_ int, plan Plan) { plans = append(plans, plan) }

		s := &stripes{}
		s.fail = func(dst *band.Buffer) error {
			if (int(s.calls.Load())+seed)%3 == 0 && dst.Height > 4 {
				return errFake
			}
			return nil
		}
		w := &rewinder{recorder: newRecorder()}
		err := p.RenderPage(prepare(t, p, newPage(s, 16, 64)), w, nil)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		checkMonotonic(t, plans)
	}
}
