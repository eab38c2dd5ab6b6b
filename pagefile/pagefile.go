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

// Package pagefile reads and writes page description files.
//
// A page description file lists pages, each with a size in points and a
// sequence of paint operations:
//
//	pages:
//	  - size: [612, 792]
//	    ops:
//	      - fill: nonzero
//	        gray: 0.5
//	        path: M 72 72 L 540 72 L 540 720 Z
//	      - stroke: {width: 2, cap: round, join: bevel, dash: [6, 3]}
//	        gray: 0
//	        path: M 72 400 C 200 300 400 500 540 400
//
// Coordinates are in points with y pointing down.  JSON files with the
// same structure are accepted as well.
//
// Pages implement the pipeline's Source interface.  Paths are kept in their
// textual form and parsed again for every band, unless a display list is
// built with BuildList.
package pagefile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"seehuhn.de/go/pdf/graphics"

	"seehuhn.de/go/bandrender/display"
)

// File is the top level of a page description file.
type File struct {
	Pages []*Page `yaml:"pages"`
}

// Page is one page of a file.
type Page struct {
	Size [2]float64 `yaml:"size"` // width and height in points
	Ops  []Op       `yaml:"ops"`
}

// Op is a single paint operation.  Exactly one of Fill and Stroke is set.
type Op struct {
	Fill   string      `yaml:"fill,omitempty"` // "nonzero" or "evenodd"
	Stroke *StrokeSpec `yaml:"stroke,omitempty"`
	Gray   float64     `yaml:"gray"` // 0 is black, 1 is white
	Path   Path        `yaml:"path"`
}

// StrokeSpec gives the line parameters of a stroke operation.  Zero
// values select the PDF defaults.
type StrokeSpec struct {
	Width float64   `yaml:"width,omitempty"`
	Cap   string    `yaml:"cap,omitempty"`
	Join  string    `yaml:"join,omitempty"`
	Miter float64   `yaml:"miter,omitempty"`
	Dash  []float64 `yaml:"dash,omitempty,flow"`
	Phase float64   `yaml:"phase,omitempty"`
}

var (
	capNames = map[string]graphics.LineCapStyle{
		"butt":   graphics.LineCapButt,
		"round":  graphics.LineCapRound,
		"square": graphics.LineCapSquare,
	}
	joinNames = map[string]graphics.LineJoinStyle{
		"miter": graphics.LineJoinMiter,
		"round": graphics.LineJoinRound,
		"bevel": graphics.LineJoinBevel,
	}
)

// CapName returns the file name of a line cap style.
func CapName(c graphics.LineCapStyle) string {
	for name, v := range capNames {
		if v == c {
			return name
		}
	}
	return "butt"
}

// JoinName returns the file name of a line join style.
func JoinName(j graphics.LineJoinStyle) string {
	for name, v := range joinNames {
		if v == j {
			return name
		}
	}
	return "miter"
}

// Style converts the stroke parameters, filling in defaults.
func (s *StrokeSpec) Style() (display.StrokeStyle, error) {
	st := display.DefaultStroke()
	if !finite(s.Width, s.Miter, s.Phase) || !finite(s.Dash...) {
		return st, errors.New("stroke parameters must be finite")
	}
	if s.Width < 0 {
		return st, fmt.Errorf("negative line width %g", s.Width)
	} else if s.Width > 0 {
		st.Width = s.Width
	}
	if s.Cap != "" {
		c, ok := capNames[strings.ToLower(s.Cap)]
		if !ok {
			return st, fmt.Errorf("unknown line cap %q", s.Cap)
		}
		st.Cap = c
	}
	if s.Join != "" {
		j, ok := joinNames[strings.ToLower(s.Join)]
		if !ok {
			return st, fmt.Errorf("unknown line join %q", s.Join)
		}
		st.Join = j
	}
	if s.Miter != 0 {
		if s.Miter < 1 {
			return st, fmt.Errorf("miter limit %g is less than 1", s.Miter)
		}
		st.MiterLimit = s.Miter
	}
	if len(s.Dash) > 0 {
		total := 0.0
		for _, d := range s.Dash {
			if d < 0 {
				return st, fmt.Errorf("negative dash length %g", d)
			}
			total += d
		}
		if total == 0 {
			return st, errors.New("dash lengths are all zero")
		}
		st.Dash = s.Dash
		st.DashPhase = s.Phase
	}
	return st, nil
}

func (op *Op) check() error {
	switch {
	case op.Fill != "" && op.Stroke != nil:
		return errors.New("both fill and stroke given")
	case op.Fill == "" && op.Stroke == nil:
		return errors.New("neither fill nor stroke given")
	case op.Stroke != nil:
		if _, err := op.Stroke.Style(); err != nil {
			return err
		}
	default:
		if _, err := fillOp(op.Fill); err != nil {
			return err
		}
	}
	if !(op.Gray >= 0 && op.Gray <= 1) {
		return fmt.Errorf("gray value %g outside [0, 1]", op.Gray)
	}
	if op.Path.IsEmpty() {
		return errors.New("missing path")
	}
	return nil
}

// finite reports whether none of xs is infinite or NaN.
func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return false
		}
	}
	return true
}

func fillOp(rule string) (display.Op, error) {
	switch strings.ToLower(rule) {
	case "nonzero":
		return display.FillNonZero, nil
	case "evenodd":
		return display.FillEvenOdd, nil
	}
	return 0, fmt.Errorf("unknown fill rule %q", rule)
}

// Check validates the structure of the file.  Paths are not parsed.
func (f *File) Check() error {
	if len(f.Pages) == 0 {
		return errors.New("no pages")
	}
	for i, p := range f.Pages {
		if p == nil {
			return fmt.Errorf("page %d: empty", i+1)
		}
		if !finite(p.Size[0], p.Size[1]) || p.Size[0] <= 0 || p.Size[1] <= 0 {
			return fmt.Errorf("page %d: invalid size %gx%g", i+1, p.Size[0], p.Size[1])
		}
		for j := range p.Ops {
			if err := p.Ops[j].check(); err != nil {
				return fmt.Errorf("page %d, op %d: %w", i+1, j+1, err)
			}
		}
	}
	return nil
}

// Read decodes and checks a page description file.
func Read(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	f := &File{}
	if err := dec.Decode(f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty page description")
		}
		return nil, err
	}
	if err := f.Check(); err != nil {
		return nil, err
	}
	return f, nil
}

// Load reads a page description file from disk.
func Load(name string) (*File, error) {
	fd, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	f, err := Read(fd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}

// Write encodes f as YAML.
func (f *File) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}
