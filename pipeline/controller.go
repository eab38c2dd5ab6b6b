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
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Task is a page which has been loaded and prepared for rendering.
type Task struct {
	Desc *Descriptor
	Plan Plan // resources for the first attempt

	src      Source
	list     DisplayList
	listSize int64
}

// content returns what the plan renders from.
func (t *Task) content(plan Plan) Content {
	if plan.UseList && t.list != nil {
		return t.list
	}
	return t.src
}

// dropList frees the display list.  It is not rebuilt for this page.
func (t *Task) dropList(mem *Memory) {
	if t.list == nil {
		return
	}
	t.list = nil
	mem.Release(t.listSize)
	t.listSize = 0
}

// RenderPage renders a prepared page on the calling goroutine, retrying
// with fewer resources on failure.  See renderPage.
func (p *Pipeline) RenderPage(t *Task, w BandWriter, cookie *Cookie) error {
	return p.renderPage(t, w, cookie, "foreground")
}

// renderPage is the degradation controller.  Every attempt renders the whole
// page.  When an attempt fails with a retryable error, the partial output is
// discarded and the next attempt uses fewer resources: first half the
// workers, down to one; then half the band height, down to the minimum;
// finally no display list.  When no step is left, the page fails with a
// PageError.
//
// Output errors and interruption are never retried.
func (p *Pipeline) renderPage(t *Task, w BandWriter, cookie *Cookie, mode string) error {
	page := t.Desc.Page
	plan := t.Plan
	if t.list == nil {
		plan.UseList = false
	}
	out := &pageOutput{w: w}
	log := p.log.With(zap.Int("page", page), zap.String("mode", mode))

	start := time.Now()
	for attempt := 1; ; attempt++ {
		if p.attemptHook != nil {
			p.attemptHook(page, plan)
		}

		err := p.drawPage(t, plan, t.content(plan), out, cookie.child())
		if err == nil {
			log.Debug("page rendered",
				zap.Int("attempts", attempt),
				zap.Int("bands", plan.Bands()),
				zap.Duration("elapsed", time.Since(start)))
			return nil
		}
		if cookie.Aborted() {
			return fmt.Errorf("page %d: %w", page, ErrInterrupted)
		}
		if IsFatal(err) {
			return err
		}

		log.Warn("render attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("workers", plan.Workers),
			zap.Int("band_height", plan.BandHeight()),
			zap.Bool("display_list", plan.UseList),
			zap.Error(err))

		if derr := out.discard(); derr != nil {
			return &OutputError{Page: page, Err: fmt.Errorf("%w: %w", derr, err)}
		}

		step, ok := plan.degrade()
		if !ok {
			return &PageError{Page: page, Attempts: attempt, Err: err}
		}
		if step == stepList {
			t.dropList(p.mem)
		}
		p.retries.Add(1)
		log.Info("retrying with fewer resources",
			zap.String("reduced", step),
			zap.Int("workers", plan.Workers),
			zap.Int("band_height", plan.BandHeight()),
			zap.Bool("display_list", plan.UseList))
	}
}
