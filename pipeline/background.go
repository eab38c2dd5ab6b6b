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
	"sync"
)

// bgJob is a page handed to the background stage.
type bgJob struct {
	task   *Task
	w      BandWriter
	cookie *Cookie
}

// bgResult is the outcome of a background page.
type bgResult struct {
	task *Task
	err  error
}

// background renders one page at a time on a dedicated goroutine, so that
// the caller can load the next page meanwhile.  The stage has a single
// slot: Start may only be called after the previous page has been
// collected with Wait.  This limits the pipeline depth to one page and
// guarantees that the band writer is used by only one goroutine at a time.
//
// Start and Wait must be called from a single goroutine.
type background struct {
	p      *Pipeline
	start  chan bgJob
	stop   chan bgResult
	active bool
	wg     sync.WaitGroup
}

func newBackground(p *Pipeline) *background {
	b := &background{
		p:     p,
		start: make(chan bgJob, 1),
		stop:  make(chan bgResult, 1),
	}
	b.wg.Add(1)
	go b.run()
	return b
}

func (b *background) run() {
	defer b.wg.Done()
	for job := range b.start {
		err := b.p.renderPage(job.task, job.w, job.cookie, "background")
		b.stop <- bgResult{task: job.task, err: err}
	}
}

// Active reports whether a page has been started and not yet collected.
func (b *background) Active() bool {
	return b.active
}

// Start hands a page to the background goroutine and returns immediately.
func (b *background) Start(t *Task, w BandWriter, cookie *Cookie) {
	if b.active {
		panic("pipeline: background page started while another is in flight")
	}
	b.active = true
	b.start <- bgJob{task: t, w: w, cookie: cookie}
}

// Submit hands t to the background goroutine.  If a page is still in
// flight, Submit first blocks until it is finished and returns it together
// with its error; otherwise it returns nil, nil.
func (b *background) Submit(t *Task, w BandWriter, cookie *Cookie) (*Task, error) {
	prev, err := b.Wait()
	b.Start(t, w, cookie)
	return prev, err
}

// Wait blocks until the page in flight is finished and returns it together
// with its error.  If no page is in flight, Wait returns nil, nil.
func (b *background) Wait() (*Task, error) {
	if !b.active {
		return nil, nil
	}
	res := <-b.stop
	b.active = false
	return res.task, res.err
}

// Close stops the background goroutine.  A page still in flight is
// finished first and its result discarded.
func (b *background) Close() {
	close(b.start)
	b.wg.Wait()
	if b.active {
		<-b.stop
		b.active = false
	}
}
