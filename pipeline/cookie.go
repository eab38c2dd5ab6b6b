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

import "sync/atomic"

// Cookie is a cooperative cancellation token.  Content implementations poll
// Aborted at convenient points and stop early when it returns true.  There
// is no forcible termination: an aborted band runs until its next check.
//
// Cookies form a tree.  Aborting a cookie aborts all cookies derived from it,
// but not its parent.  The zero value and the nil pointer are valid cookies
// which are never aborted (the nil cookie cannot be aborted either).
type Cookie struct {
	parent   *Cookie
	abort    atomic.Bool
	progress atomic.Int64
}

// NewCookie returns a fresh cookie.
func NewCookie() *Cookie {
	return &Cookie{}
}

// Abort asks all work using c, or a cookie derived from c, to stop.
func (c *Cookie) Abort() {
	if c != nil {
		c.abort.Store(true)
	}
}

// Aborted reports whether c or one of its ancestors has been aborted.
func (c *Cookie) Aborted() bool {
	for ; c != nil; c = c.parent {
		if c.abort.Load() {
			return true
		}
	}
	return false
}

// Progress returns the number of bands completed under c and the cookies
// derived from it.
func (c *Cookie) Progress() int64 {
	if c == nil {
		return 0
	}
	return c.progress.Load()
}

func (c *Cookie) child() *Cookie {
	return &Cookie{parent: c}
}

func (c *Cookie) bandDone() {
	for ; c != nil; c = c.parent {
		c.progress.Add(1)
	}
}
