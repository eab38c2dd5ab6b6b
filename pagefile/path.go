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

package pagefile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	"seehuhn.de/go/geom/path"
	"seehuhn.de/go/geom/vec"
)

// Path is the outline of a paint operation, as found in the file.  In YAML
// it is written either as a string using SVG-like syntax
//
//	M 10 10 L 100 10 Q 120 50 100 100 C 80 120 20 120 10 100 Z
//
// or as a list of segments
//
//	- {cmd: M, pts: [[10, 10]]}
//	- {cmd: L, pts: [[100, 10]]}
//
// The path is only parsed when a page is rendered.
type Path struct {
	Text     string
	Segments []Segment
}

// Segment is one path command with its points.
type Segment struct {
	Cmd string      `yaml:"cmd" json:"cmd"`
	Pts [][]float64 `yaml:"pts" json:"pts"`
}

// IsEmpty reports whether the path has no commands.
func (p Path) IsEmpty() bool {
	return strings.TrimSpace(p.Text) == "" && len(p.Segments) == 0
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Path) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		p.Segments = nil
		return node.Decode(&p.Text)
	case yaml.SequenceNode:
		p.Text = ""
		return node.Decode(&p.Segments)
	default:
		return fmt.Errorf("line %d: path must be a string or a list of segments", node.Line)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (p Path) MarshalYAML() (any, error) {
	if p.Segments != nil {
		return p.Segments, nil
	}
	return p.Text, nil
}

// Parse converts the path into geometry.
func (p Path) Parse() (*path.Data, error) {
	if p.Segments != nil {
		return parseSegments(p.Segments)
	}
	return ParsePath(p.Text)
}

// ParsePath parses a path string.  The commands M, L, Q, C and Z take
// 1, 1, 2, 3 and 0 points, respectively.  Coordinates are separated by
// white space or commas.
func ParsePath(s string) (*path.Data, error) {
	var segs []Segment
	var cur *Segment
	var coords []float64

	flush := func() error {
		if cur == nil {
			return nil
		}
		if len(coords)%2 != 0 {
			return fmt.Errorf("%s: odd number of coordinates", cur.Cmd)
		}
		for i := 0; i < len(coords); i += 2 {
			cur.Pts = append(cur.Pts, []float64{coords[i], coords[i+1]})
		}
		segs = append(segs, *cur)
		coords = coords[:0]
		return nil
	}

	for _, tok := range tokenize(s) {
		if c := tok[0]; c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' {
			if err := flush(); err != nil {
				return nil, err
			}
			cur = &Segment{Cmd: tok}
			continue
		}
		if cur == nil {
			return nil, errors.New("path must start with a command")
		}
		x, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q", tok)
		}
		coords = append(coords, x)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return parseSegments(segs)
}

// tokenize splits a path string into command letters and numbers.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	var tokens []string
	for _, f := range fields {
		// "M10" is "M 10"; exponents like "1e-3" are left alone
		if c := f[0]; len(f) > 1 && (c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			tokens = append(tokens, f[:1], f[1:])
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

var pointCount = map[string]int{"M": 1, "L": 1, "Q": 2, "C": 3, "Z": 0}

func parseSegments(segs []Segment) (*path.Data, error) {
	p := &path.Data{}
	open := false
	for i, seg := range segs {
		n, ok := pointCount[seg.Cmd]
		if !ok {
			return nil, fmt.Errorf("segment %d: unknown command %q", i, seg.Cmd)
		}
		if len(seg.Pts) != n {
			return nil, fmt.Errorf("segment %d: %s needs %d points, got %d", i, seg.Cmd, n, len(seg.Pts))
		}
		pts := make([]vec.Vec2, n)
		for j, xy := range seg.Pts {
			if len(xy) != 2 {
				return nil, fmt.Errorf("segment %d: point %d has %d coordinates", i, j, len(xy))
			}
			if !finite(xy...) {
				return nil, fmt.Errorf("segment %d: point %d is not finite", i, j)
			}
			pts[j] = vec.Vec2{X: xy[0], Y: xy[1]}
		}
		if seg.Cmd != "M" && !open {
			return nil, fmt.Errorf("segment %d: %s without current point", i, seg.Cmd)
		}

		switch seg.Cmd {
		case "M":
			p = p.MoveTo(pts[0])
			open = true
		case "L":
			p = p.LineTo(pts[0])
		case "Q":
			p = p.QuadTo(pts[0], pts[1])
		case "C":
			p = p.CubeTo(pts[0], pts[1], pts[2])
		case "Z":
			p = p.Close()
		}
	}
	if len(p.Cmds) == 0 {
		return nil, errors.New("empty path")
	}
	return p, nil
}

// FormatPath writes geometry as a path string which ParsePath reads back.
func FormatPath(p *path.Data) Path {
	var b strings.Builder
	for cmd, pts := range p.Iter() {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(cmdName(cmd))
		for _, pt := range pts {
			b.WriteByte(' ')
			b.WriteString(strconv.FormatFloat(pt.X, 'g', -1, 64))
			b.WriteByte(' ')
			b.WriteString(strconv.FormatFloat(pt.Y, 'g', -1, 64))
		}
	}
	return Path{Text: b.String()}
}

// SegmentPath writes geometry as a list of segments.
func SegmentPath(p *path.Data) Path {
	segs := []Segment{}
	for cmd, pts := range p.Iter() {
		seg := Segment{Cmd: cmdName(cmd), Pts: make([][]float64, len(pts))}
		for i, pt := range pts {
			seg.Pts[i] = []float64{pt.X, pt.Y}
		}
		segs = append(segs, seg)
	}
	return Path{Segments: segs}
}

func cmdName(cmd path.Command) string {
	switch cmd {
	case path.CmdMoveTo:
		return "M"
	case path.CmdLineTo:
		return "L"
	case path.CmdQuadTo:
		return "Q"
	case path.CmdCubeTo:
		return "C"
	case path.CmdClose:
		return "Z"
	default:
		return "?"
	}
}
