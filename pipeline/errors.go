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
	"fmt"
)

var (
	// ErrInterrupted is returned when rendering was stopped through the
	// cookie, for example because the caller's context was cancelled.
	ErrInterrupted = errors.New("pipeline: interrupted")

	// ErrNoMemory is returned when a band or display list would exceed
	// the configured memory limit.
	ErrNoMemory = errors.New("pipeline: memory limit exceeded")

	// ErrCannotRewind is reported when a page must be retried after output
	// was written, but the band writer cannot discard the partial page.
	ErrCannotRewind = errors.New("pipeline: partial page output cannot be discarded")
)

// RenderError reports a failure to render one band.  Render errors are
// retryable: the page can be attempted again with fewer resources.
type RenderError struct {
	Band int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("band %d: %v", e.Band, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// OutputError reports a failure of the band writer.  Output errors are
// fatal, since part of the page may already have been written.
type OutputError struct {
	Page int
	Err  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("page %d: output: %v", e.Page, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

// PageError reports a page which could not be rendered, either because
// the page could not be loaded or because every step of the degradation
// ladder failed.  Other pages are not affected.
type PageError struct {
	Page     int
	Attempts int // number of render attempts, 0 if the page never got that far
	Err      error
}

func (e *PageError) Error() string {
	if e.Attempts == 0 {
		return fmt.Sprintf("page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("page %d: failed after %d attempts: %v", e.Page, e.Attempts, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	var out *OutputError
	return errors.As(err, &out) || errors.Is(err, ErrInterrupted)
}

// IsRetryable reports whether a page may be attempted again after err.
func IsRetryable(err error) bool {
	var re *RenderError
	return errors.As(err, &re) && !IsFatal(err)
}
