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
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"seehuhn.de/go/geom/matrix"

	"seehuhn.de/go/bandrender/band"
)

// Job describes one band to render.
type Job struct {
	Band    int // band index, counting from 0 at the top of the page
	Y0      int // first device row
	Height  int // number of rows
	Width   int // pixels per row
	CTM     matrix.Matrix
	Content Content
	Cookie  *Cookie
	Mono    bool // pack the result to one bit per pixel
}

// Band is a rendered band.  Pix belongs to the worker which rendered it and
// stays valid until the next job is dispatched to that worker.
type Band struct {
	Index  int
	Stride int
	Height int
	Pix    []byte
}

type result struct {
	band Band
	err  error
}

// worker is a long-lived goroutine with its own band buffer.  The start
// and stop channels have capacity one, so that a worker holds at most one
// job and one result.
type worker struct {
	id    int
	start chan Job
	stop  chan result

	buf  band.Buffer
	mono []byte

	// owned by the dispatching goroutine
	busy     bool
	reserved int64
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range w.start {
		b, err := renderBand(&w.buf, &w.mono, job)
		w.stop <- result{band: b, err: err}
	}
}

// renderBand renders one job into buf.  Panics in the content are turned
// into errors, so that a broken page cannot take down a worker.
func renderBand(buf *band.Buffer, mono *[]byte, job Job) (b Band, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RenderError{Band: job.Band, Err: fmt.Errorf("panic: %v\n%s", r, debug.Stack())}
		}
	}()

	if job.Cookie.Aborted() {
		return Band{}, &RenderError{Band: job.Band, Err: ErrInterrupted}
	}

	buf.Resize(job.Width, job.Y0, job.Height)
	buf.Clear()
	if err := job.Content.Render(buf, job.CTM, job.Cookie); err != nil {
		return Band{}, &RenderError{Band: job.Band, Err: err}
	}
	job.Cookie.bandDone()

	b = Band{Index: job.Band, Height: job.Height}
	if job.Mono {
		*mono = buf.PackMono(*mono)
		b.Stride = band.MonoStride(job.Width)
		b.Pix = *mono
	} else {
		b.Stride = buf.Stride
		b.Pix = buf.Bytes()
	}
	return b, nil
}

// Pool is a fixed set of band workers.  The workers are started by NewPool
// and live until Close; they are reused for all bands of all pages.
//
// Dispatch and Collect must be called from a single goroutine at a time.
// Every dispatched job must be collected before the next job is dispatched
// to the same worker.
type Pool struct {
	workers []*worker
	mem     *Memory
	log     *zap.Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewPool starts n workers.  Band memory is reserved from mem for as long
// as a job is outstanding.
func NewPool(n int, mem *Memory, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	if mem == nil {
		mem = NewMemory(0)
	}
	p := &Pool{
		workers: make([]*worker, n),
		mem:     mem,
		log:     log,
	}
	p.wg.Add(n)
	for i := range n {
		w := &worker{
			id:    i,
			start: make(chan Job, 1),
			stop:  make(chan result, 1),
		}
		p.workers[i] = w
		go w.run(&p.wg)
	}
	log.Debug("worker pool started", zap.Int("workers", n))
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Busy reports whether worker i has a job which has not been collected.
func (p *Pool) Busy(i int) bool {
	return p.workers[i].busy
}

// Dispatch hands a job to worker i.  If the band's memory cannot be
// reserved, the job is not started and a RenderError is returned.
func (p *Pool) Dispatch(i int, job Job) error {
	w := p.workers[i]
	if w.busy {
		panic(fmt.Sprintf("pipeline: worker %d still has band %d outstanding", i, job.Band))
	}
	if p.closed.Load() {
		panic("pipeline: dispatch on closed pool")
	}

	need := band.Size(job.Width, job.Height)
	if err := p.mem.Reserve(need); err != nil {
		return &RenderError{Band: job.Band, Err: err}
	}
	w.reserved = need
	w.busy = true
	w.start <- job
	return nil
}

// Collect waits for worker i to finish its job and returns the result.
func (p *Pool) Collect(i int) (Band, error) {
	w := p.workers[i]
	if !w.busy {
		panic(fmt.Sprintf("pipeline: collect from idle worker %d", i))
	}
	res := <-w.stop
	w.busy = false
	p.mem.Release(w.reserved)
	w.reserved = 0
	return res.band, res.err
}

// drain collects and discards all outstanding jobs.
func (p *Pool) drain() {
	for i, w := range p.workers {
		if w.busy {
			_, _ = p.Collect(i)
		}
	}
}

// Close stops all workers and waits for them to exit.  Outstanding jobs
// run to completion first.  Calling Close more than once has no effect.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		close(w.start)
	}
	p.wg.Wait()
	p.drain()
	p.log.Debug("worker pool stopped", zap.Int("workers", len(p.workers)))
}
