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
	"go.uber.org/zap"

	"seehuhn.de/go/bandrender/band"
)

// drawPage renders all bands of one page and passes them to out, in order.
//
// Band b is always rendered by worker b % plan.Workers, and the bands are
// collected in index order.  Waiting for the specific worker which owns the
// next band, rather than for whichever worker finishes first, keeps the
// output in order no matter how the workers' completion times interleave.
//
// On failure, all outstanding jobs are aborted through the cookie and
// collected before drawPage returns, so the pool is idle again.
func (p *Pipeline) drawPage(t *Task, plan Plan, content Content, out *pageOutput, cookie *Cookie) error {
	d := t.Desc
	width := d.Target.Dx()
	bands := plan.Bands()

	out.begin(d.Header())

	job := func(b int) Job {
		y0, h := plan.BandRows(b)
		return Job{
			Band:    b,
			Y0:      y0,
			Height:  h,
			Width:   width,
			CTM:     d.CTM,
			Content: content,
			Cookie:  cookie,
			Mono:    d.Model == Mono,
		}
	}

	n := plan.Workers
	if n == 0 {
		return p.drawPageSync(d.Page, bands, job, out)
	}

	fail := func(err error) error {
		cookie.Abort()
		p.pool.drain()
		return err
	}

	for b := range min(n, bands) {
		if err := p.pool.Dispatch(b, job(b)); err != nil {
			return fail(err)
		}
	}
	for b := range bands {
		i := b % n
		res, err := p.pool.Collect(i)
		if err != nil {
			return fail(err)
		}
		if err := out.WriteBand(res.Stride, res.Height, res.Pix); err != nil {
			return fail(&OutputError{Page: d.Page, Err: err})
		}
		p.log.Debug("band written",
			zap.Int("page", d.Page), zap.Int("band", b), zap.Int("worker", i))

		if next := b + n; next < bands {
			if err := p.pool.Dispatch(i, job(next)); err != nil {
				return fail(err)
			}
		}
	}

	if err := out.EndPage(); err != nil {
		return &OutputError{Page: d.Page, Err: err}
	}
	return nil
}

// drawPageSync renders the bands one after another on the calling
// goroutine, using the pipeline's own band buffer.
func (p *Pipeline) drawPageSync(page, bands int, job func(int) Job, out *pageOutput) error {
	for b := range bands {
		j := job(b)
		need := band.Size(j.Width, j.Height)
		if err := p.mem.Reserve(need); err != nil {
			return &RenderError{Band: b, Err: err}
		}
		res, err := renderBand(&p.buf, &p.mono, j)
		p.mem.Release(need)
		if err != nil {
			return err
		}
		if err := out.WriteBand(res.Stride, res.Height, res.Pix); err != nil {
			return &OutputError{Page: page, Err: err}
		}
	}
	if err := out.EndPage(); err != nil {
		return &OutputError{Page: page, Err: err}
	}
	return nil
}
