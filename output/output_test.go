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

package output

import (
	"bytes"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/image/tiff"

	"seehuhn.de/go/bandrender/band"
)

func grayHeader(page, w, h int) band.Header {
	return band.Header{Page: page, Width: w, Height: h, Components: 1, BitsPerPixel: 8, Resolution: 72}
}

func monoHeader(page, w, h int) band.Header {
	return band.Header{Page: page, Width: w, Height: h, Components: 1, BitsPerPixel: 1, Resolution: 72}
}

// writePage sends a page in bands of bh rows.
func writePage(t *testing.T, w Writer, hdr band.Header, pix []byte, bh int) {
	t.Helper()
	if err := w.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	stride := hdr.Stride()
	for y := 0; y < hdr.Height; y += bh {
		h := min(bh, hdr.Height-y)
		if err := w.WriteBand(stride, h, pix[y*stride:(y+h)*stride]); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.EndPage(); err != nil {
		t.Fatal(err)
	}
}

func grayPixels(w, h int) []byte {
	pix := make([]byte, w*h)
	for i := range pix {
		pix[i] = byte(i * 37)
	}
	return pix
}

func TestPGM(t *testing.T) {
	buf := &bytes.Buffer{}
	s, err := NewStream(buf, PGM)
	if err != nil {
		t.Fatal(err)
	}
	pix := grayPixels(5, 7)
	writePage(t, s, grayHeader(1, 5, 7), pix, 3)
	writePage(t, s, grayHeader(2, 5, 7), pix, 7)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	one := "P5\n# page 1, 72 dpi\n5 7\n255\n" + string(pix)
	two := "P5\n# page 2, 72 dpi\n5 7\n255\n" + string(pix)
	if got := buf.String(); got != one+two {
		t.Errorf("got %q", got)
	}
}

func TestPBM(t *testing.T) {
	buf := &bytes.Buffer{}
	s, _ := NewStream(buf, PBM)
	pix := []byte{0b10100000, 0b01000000}
	writePage(t, s, monoHeader(1, 3, 2), pix, 1)
	if want := "P4\n# page 1, 72 dpi\n3 2\n" + string(pix); buf.String() != want {
		t.Errorf("got %q", buf.String())
	}

	if err := s.WriteHeader(grayHeader(2, 3, 2)); err == nil {
		t.Error("gray page accepted by PBM writer")
	}
}

func TestPAM(t *testing.T) {
	buf := &bytes.Buffer{}
	s, _ := NewStream(buf, PAM)
	writePage(t, s, monoHeader(1, 3, 2), []byte{0b10100000, 0b01000000}, 2)
	want := "P7\nWIDTH 3\nHEIGHT 2\nDEPTH 1\nMAXVAL 1\nTUPLTYPE BLACKANDWHITE\nENDHDR\n" +
		"\x00\x01\x00" + "\x01\x00\x01"
	if buf.String() != want {
		t.Errorf("got %q", buf.String())
	}

	buf.Reset()
	writePage(t, s, grayHeader(2, 2, 1), []byte{7, 9}, 1)
	if !strings.HasSuffix(buf.String(), "TUPLTYPE GRAYSCALE\nENDHDR\n\x07\x09") {
		t.Errorf("got %q", buf.String())
	}
}

func TestBandChecks(t *testing.T) {
	s, _ := NewStream(io.Discard, PGM)
	if err := s.WriteBand(4, 1, make([]byte, 4)); err == nil {
		t.Error("band before header accepted")
	}
	if err := s.WriteHeader(grayHeader(1, 4, 4)); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteHeader(grayHeader(2, 4, 4)); err == nil {
		t.Error("nested page accepted")
	}
	if err := s.WriteBand(5, 1, make([]byte, 5)); err == nil {
		t.Error("wrong stride accepted")
	}
	if err := s.WriteBand(4, 3, make([]byte, 12)); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteBand(4, 2, make([]byte, 8)); err == nil {
		t.Error("band overrunning the page accepted")
	}
	if err := s.WriteBand(4, 1, make([]byte, 2)); err == nil {
		t.Error("short band accepted")
	}
	if err := s.EndPage(); err == nil {
		t.Error("incomplete page accepted")
	}
	if err := s.WriteBand(4, 1, make([]byte, 4)); err != nil {
		t.Fatal(err)
	}
	if err := s.EndPage(); err != nil {
		t.Error(err)
	}
}

func TestRewindBuffered(t *testing.T) {
	buf := &bytes.Buffer{}
	s, _ := NewStream(buf, PGM)
	pix := grayPixels(4, 4)
	writePage(t, s, grayHeader(1, 4, 4), pix, 4)
	first := buf.String()

	if err := s.WriteHeader(grayHeader(2, 4, 4)); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteBand(4, 2, pix[:8]); err != nil {
		t.Fatal(err)
	}
	if err := s.Rewind(); err != nil {
		t.Fatal(err)
	}
	writePage(t, s, grayHeader(2, 4, 4), pix, 1)
	want := first + "P5\n# page 2, 72 dpi\n4 4\n255\n" + string(pix)
	if buf.String() != want {
		t.Error("rewound page left traces")
	}
}

// TestRewindLargePage writes a page which does not fit into the buffer.
func TestRewindLargePage(t *testing.T) {
	const width, height = 2000, 1000
	pix := grayPixels(width, height)

	t.Run("file", func(t *testing.T) {
		name := filepath.Join(t.TempDir(), "out.pgm")
		w, err := Create(name, PGM, false)
		if err != nil {
			t.Fatal(err)
		}
		writePage(t, w, grayHeader(1, 4, 1), []byte{1, 2, 3, 4}, 1)
		if err := w.WriteHeader(grayHeader(2, width, height)); err != nil {
			t.Fatal(err)
		}
		if err := w.WriteBand(width, height-1, pix[:width*(height-1)]); err != nil {
			t.Fatal(err)
		}
		if err := w.Rewind(); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(name)
		if err != nil {
			t.Fatal(err)
		}
		if want := "P5\n# page 1, 72 dpi\n4 1\n255\n\x01\x02\x03\x04"; string(data) != want {
			t.Errorf("file holds %d bytes after rewind", len(data))
		}
	})

	t.Run("pipe", func(t *testing.T) {
		s, _ := NewStream(&bytes.Buffer{}, PGM)
		if err := s.WriteHeader(grayHeader(1, width, height)); err != nil {
			t.Fatal(err)
		}
		if err := s.WriteBand(width, height, pix); err != nil {
			t.Fatal(err)
		}
		if err := s.Rewind(); err != errCannotRewind {
			t.Errorf("got %v, want %v", err, errCannotRewind)
		}
	})

	// *os.File for a pipe has Seek and Truncate, but neither works.
	t.Run("os pipe", func(t *testing.T) {
		r, w, err := os.Pipe()
		if err != nil {
			t.Fatal(err)
		}
		drained := make(chan struct{})
		go func() {
			io.Copy(io.Discard, r)
			close(drained)
		}()
		defer func() {
			w.Close()
			<-drained
			r.Close()
		}()

		s, _ := NewStream(w, PGM)
		if err := s.WriteHeader(grayHeader(1, width, height)); err != nil {
			t.Fatal(err)
		}
		if err := s.WriteBand(width, height, pix); err != nil {
			t.Fatal(err)
		}
		buffered, written := s.bw.Buffered(), s.written
		if err := s.Rewind(); err != errCannotRewind {
			t.Errorf("got %v, want %v", err, errCannotRewind)
		}
		if s.bw.Buffered() != buffered || s.written != written || !s.page.open {
			t.Error("failed rewind changed the stream")
		}
	})
}

func TestCompressed(t *testing.T) {
	plain := &bytes.Buffer{}
	s, _ := NewStream(plain, PGM)
	packed := &bytes.Buffer{}
	c, err := NewCompressed(packed, PGM)
	if err != nil {
		t.Fatal(err)
	}

	pix := grayPixels(30, 20)
	for page := 1; page <= 3; page++ {
		writePage(t, s, grayHeader(page, 30, 20), pix, 7)

		// a false start which is discarded
		if err := c.WriteHeader(grayHeader(page, 30, 20)); err != nil {
			t.Fatal(err)
		}
		if err := c.WriteBand(30, 5, pix[:150]); err != nil {
			t.Fatal(err)
		}
		if err := c.Rewind(); err != nil {
			t.Fatal(err)
		}
		writePage(t, c, grayHeader(page, 30, 20), pix, 5)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	dec, err := zstd.NewReader(packed)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plain.Bytes()) {
		t.Error("decompressed stream differs")
	}
}

func TestTIFF(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(filepath.Join(dir, "page.tif"), TIFF, true)
	if err != nil {
		t.Fatal(err)
	}
	pix := grayPixels(9, 6)
	writePage(t, w, grayHeader(1, 9, 6), pix, 4)
	writePage(t, w, monoHeader(2, 9, 1), []byte{0xF8, 0x00}, 1)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	files := w.(*TIFFWriter).Files
	if len(files) != 2 || filepath.Base(files[0]) != "page-1.tif" {
		t.Fatalf("files %v", files)
	}

	img := decodeTIFF(t, files[0])
	gray, ok := img.(*image.Gray)
	if !ok || !bytes.Equal(gray.Pix, pix) {
		t.Error("page 1 differs")
	}
	img = decodeTIFF(t, files[1])
	for x := range 9 {
		want := uint8(255)
		if x < 5 {
			want = 0
		}
		if got := img.(*image.Gray).GrayAt(x, 0).Y; got != want {
			t.Errorf("page 2, pixel %d: got %d, want %d", x, got, want)
		}
	}
}

func decodeTIFF(t *testing.T, name string) image.Image {
	t.Helper()
	fd, err := os.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer fd.Close()
	img, err := tiff.Decode(fd)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestFileName(t *testing.T) {
	cases := []struct{ pattern, want string }{
		{"out.tif", "out-3.tif"},
		{"dir/p%03d.tiff", "dir/p003.tiff"},
		{"noext", "noext-3"},
	}
	for _, c := range cases {
		if got := NewTIFF(c.pattern, false).FileName(3); got != c.want {
			t.Errorf("%q: got %q, want %q", c.pattern, got, c.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range []Format{PGM, PBM, PAM, TIFF} {
		if got, err := ParseFormat(f.String()); err != nil || got != f {
			t.Errorf("%s: got %v, %v", f, got, err)
		}
	}
	if _, err := ParseFormat("png"); err == nil {
		t.Error("png accepted")
	}
	if _, err := Create("-", TIFF, false); err == nil {
		t.Error("TIFF to standard output accepted")
	}
}
