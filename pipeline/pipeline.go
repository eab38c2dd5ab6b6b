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

// Package pipeline renders pages into raster images, band by band.
//
// A page is split into horizontal bands which are rendered in parallel by a
// fixed pool of workers and passed to a BandWriter in top to bottom order.
// When rendering fails, for example because the memory limit is reached,
// the page is attempted again with fewer workers, smaller bands and finally
// without the cached display list.  Optionally a background goroutine
// renders page N while the caller loads page N+1.
//
// All long-lived goroutines are created by New and stopped by Close.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"seehuhn.de/go/bandrender/band"
)

// Options configures a Pipeline.
type Options struct {
	// Threads is the size of the worker pool.  With 0 threads, bands are
	// rendered on the goroutine which drives the page.
	Threads int

	// MinBandHeight is the granularity of the band height, in rows.
	// Bands are always a multiple of this height, except for the last
	// band of a page.
	MinBandHeight int

	// BandMemory is the memory budget for one band, in bytes.  It sets the
	// initial band height.  0 renders every page as a single band.
	BandMemory int64

	// MemoryLimit caps the total memory of all bands in flight plus
	// display lists, in bytes.  0 means no limit.
	MemoryLimit int64

	Resolution float64 // dots per inch, default 72
	Rotation   int     // degrees clockwise, multiple of 90
	Model      ColorModel

	// DisplayList pre-interprets each page into a display list, if the
	// page content supports it.
	DisplayList bool

	// Background renders pages on a separate goroutine while the next
	// page is loaded.
	Background bool

	// KeepGoing skips pages which fail, instead of aborting the run.
	// Output errors always abort.
	KeepGoing bool

	// Logger receives diagnostics.  Nil disables logging.
	Logger *zap.Logger
}

// Summary reports the outcome of RenderDocument.
type Summary struct {
	Pages    int   // pages in the document
	Rendered int   // pages written successfully
	Failed   []int // pages which were skipped
	Retries  int   // render attempts repeated with fewer resources
	Peak     int64 // peak reserved memory in bytes
}

// Pipeline owns the worker pool, the optional background stage and the
// memory accounting of a run.  A Pipeline renders one page at a time.
type Pipeline struct {
	opts Options
	log  *zap.Logger
	mem  *Memory
	pool *Pool
	bg   *background

	// band buffer for rendering without workers
	buf  band.Buffer
	mono []byte

	retries atomic.Int64

	// attemptHook, if set, is called before every render attempt.
	attemptHook func(page int, plan Plan)
}

// New validates opts and starts the worker goroutines.
func New(opts Options) (*Pipeline, error) {
	if opts.Threads < 0 {
		return nil, fmt.Errorf("invalid number of threads %d", opts.Threads)
	}
	if opts.MinBandHeight <= 0 {
		opts.MinBandHeight = 1
	}
	if opts.Resolution == 0 {
		opts.Resolution = 72
	}
	if opts.Resolution < 0 || opts.BandMemory < 0 || opts.MemoryLimit < 0 {
		return nil, errors.New("resolution and memory sizes must not be negative")
	}
	if opts.Rotation%90 != 0 {
		return nil, fmt.Errorf("rotation %d is not a multiple of 90", opts.Rotation)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	p := &Pipeline{
		opts: opts,
		log:  log,
		mem:  NewMemory(opts.MemoryLimit),
	}
	if opts.Threads > 0 {
		p.pool = NewPool(opts.Threads, p.mem, log)
	}
	if opts.Background {
		p.bg = newBackground(p)
	}
	log.Info("pipeline started",
		zap.Int("threads", opts.Threads),
		zap.Int("min_band_height", opts.MinBandHeight),
		zap.String("band_memory", humanize.IBytes(uint64(opts.BandMemory))),
		zap.Bool("background", opts.Background),
		zap.Bool("display_list", opts.DisplayList))
	return p, nil
}

// Close stops all goroutines.  It must be called exactly once, after the
// last page has been rendered.
func (p *Pipeline) Close() {
	if p.bg != nil {
		p.bg.Close()
	}
	if p.pool != nil {
		p.pool.Close()
	}
}

// Memory returns the pipeline's memory accountant.
func (p *Pipeline) Memory() *Memory {
	return p.mem
}

// Prepare computes the page geometry and the initial render plan for page
// n.  If display lists are enabled and src supports them, the list is built
// here; failure to build it is not an error, the page is then rendered from
// src directly.
func (p *Pipeline) Prepare(n int, src Source, cookie *Cookie) (*Task, error) {
	d, err := NewDescriptor(n, src.Bounds(), p.opts.Resolution, p.opts.Rotation, p.opts.Model)
	if err != nil {
		return nil, &PageError{Page: n, Err: err}
	}
	width, height := d.Target.Dx(), d.Target.Dy()

	workers := 0
	if p.pool != nil {
		workers = p.pool.Size()
	}
	t := &Task{
		Desc: d,
		Plan: Plan{
			PageHeight:    height,
			MinBandHeight: p.opts.MinBandHeight,
			Multiplier:    initialMultiplier(width, height, p.opts.MinBandHeight, p.opts.BandMemory),
			Workers:       workers,
		},
		src: src,
	}

	if lb, ok := src.(ListBuilder); ok && p.opts.DisplayList {
		p.buildList(t, lb, cookie)
	}
	return t, nil
}

func (p *Pipeline) buildList(t *Task, lb ListBuilder, cookie *Cookie) {
	log := p.log.With(zap.Int("page", t.Desc.Page))

	list, err := lb.BuildList(t.Desc.CTM, cookie)
	if err != nil {
		log.Warn("no display list", zap.Error(err))
		return
	}
	size := list.Size()
	if err := p.mem.Reserve(size); err != nil {
		log.Warn("no display list", zap.Error(err))
		return
	}
	t.list = list
	t.listSize = size
	t.Plan.UseList = true
	log.Debug("display list built", zap.String("size", humanize.IBytes(uint64(size))))
}

// Release frees resources held by a task after its last render.
func (p *Pipeline) Release(t *Task) {
	t.dropList(p.mem)
}

// RenderDocument renders all pages of doc to w.  Cancelling ctx stops the
// page in progress at the next cookie check and ends the run with the
// context's error.
//
// A page which cannot be loaded or rendered ends the run with a PageError,
// unless KeepGoing is set; then it is recorded in the summary and skipped.
// Output errors always end the run.
func (p *Pipeline) RenderDocument(ctx context.Context, doc Document, w BandWriter) (*Summary, error) {
	cookie := NewCookie()
	stop := context.AfterFunc(ctx, cookie.Abort)
	defer stop()

	sum := &Summary{Pages: doc.PageCount()}
	err := p.renderPages(ctx, doc, w, cookie, sum)
	if p.bg != nil && p.bg.Active() {
		// an earlier error left a page in flight; let it finish
		if t, _ := p.bg.Wait(); t != nil {
			p.Release(t)
		}
	}
	sum.Retries = int(p.retries.Load())
	sum.Peak = p.mem.Peak()
	if err != nil && ctx.Err() != nil && errors.Is(err, ErrInterrupted) {
		err = ctx.Err()
	}
	return sum, err
}

func (p *Pipeline) renderPages(ctx context.Context, doc Document, w BandWriter, cookie *Cookie, sum *Summary) error {
	for n := 1; n <= sum.Pages; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		t, err := p.loadPage(doc, n, cookie)

		if p.bg != nil {
			// The previous page must be finished before this one can
			// take the slot.
			if ferr := p.finishBackground(sum, w, cookie); ferr != nil {
				if t != nil {
					p.Release(t)
				}
				return ferr
			}
		}
		if err != nil {
			if err := p.pageDone(sum, n, err); err != nil {
				return err
			}
			continue
		}

		if p.bg != nil {
			p.bg.Start(t, w, cookie)
			continue
		}
		err = p.RenderPage(t, w, cookie)
		p.Release(t)
		if err := p.pageDone(sum, n, err); err != nil {
			return err
		}
	}
	if p.bg != nil {
		return p.finishBackground(sum, w, cookie)
	}
	return nil
}

// loadPage interprets page n and prepares it for rendering.
func (p *Pipeline) loadPage(doc Document, n int, cookie *Cookie) (*Task, error) {
	src, err := doc.LoadPage(n)
	if err != nil {
		return nil, &PageError{Page: n, Err: err}
	}
	return p.Prepare(n, src, cookie)
}

// finishBackground waits for the page in flight.  A page which exhausted
// its degradation ladder in the background is rendered once more on the
// calling goroutine, with a fresh ladder, before it is given up.
func (p *Pipeline) finishBackground(sum *Summary, w BandWriter, cookie *Cookie) error {
	t, err := p.bg.Wait()
	if t == nil {
		return nil
	}
	var pe *PageError
	if errors.As(err, &pe) {
		p.log.Warn("background render failed, retrying solo",
			zap.Int("page", t.Desc.Page), zap.Error(err))
		err = p.renderPage(t, w, cookie, "solo")
	}
	p.Release(t)
	return p.pageDone(sum, t.Desc.Page, err)
}

// pageDone records the outcome of page n.  It returns the error which
// should end the run, if any.
func (p *Pipeline) pageDone(sum *Summary, n int, err error) error {
	if err == nil {
		sum.Rendered++
		return nil
	}
	var pe *PageError
	if errors.As(err, &pe) && p.opts.KeepGoing {
		p.log.Error("page skipped", zap.Int("page", n), zap.Error(err))
		sum.Failed = append(sum.Failed, n)
		return nil
	}
	return err
}
