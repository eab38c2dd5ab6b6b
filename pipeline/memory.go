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
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// Memory accounts for the pixel and display list memory of a run.  A
// reservation which would push the total above the limit fails with
// ErrNoMemory; this is the resource exhaustion the degradation ladder
// recovers from.
//
// Memory is safe for concurrent use.
type Memory struct {
	limit int64 // 0 means unlimited
	used  atomic.Int64
	peak  atomic.Int64
}

// NewMemory returns an accountant with the given limit in bytes.
// A limit of 0 disables the check.
func NewMemory(limit int64) *Memory {
	return &Memory{limit: limit}
}

// Reserve claims n bytes.
func (m *Memory) Reserve(n int64) error {
	for {
		used := m.used.Load()
		if m.limit > 0 && used+n > m.limit {
			return fmt.Errorf("%w: need %s, %s of %s in use", ErrNoMemory,
				humanize.IBytes(uint64(n)), humanize.IBytes(uint64(used)), humanize.IBytes(uint64(m.limit)))
		}
		if m.used.CompareAndSwap(used, used+n) {
			m.updatePeak(used + n)
			return nil
		}
	}
}

// Release returns n previously reserved bytes.
func (m *Memory) Release(n int64) {
	if m.used.Add(-n) < 0 {
		panic("pipeline: memory released twice")
	}
}

// InUse returns the number of reserved bytes.
func (m *Memory) InUse() int64 {
	return m.used.Load()
}

// Peak returns the largest number of bytes reserved at any one time.
func (m *Memory) Peak() int64 {
	return m.peak.Load()
}

func (m *Memory) updatePeak(v int64) {
	for {
		p := m.peak.Load()
		if v <= p || m.peak.CompareAndSwap(p, v) {
			return
		}
	}
}
