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


// Command mkpages writes the built-in sample pages as a page description
// file, for use with bandrender and pagepdf.
package main

import (
	"flag"
	"log"
	"os"

	"seehuhn.de/go/bandrender/pagefile"
	"seehuhn.de/go/bandrender/testpages"
)

func main() {
	outName := flag.String("o", "testdata/samples.yaml", "output file, \"-\" for stdout")
	only := flag.String("page", "", "write only the named sample page")
	flag.Parse()

	doc := testpages.Document()
	if *only != "" {
		page, ok := testpages.Lookup(*only)
		if !ok {
			log.Fatalf("unknown sample page %q", *only)
		}
		doc = &pagefile.File{Pages: []*pagefile.Page{page}}
	}

	if *outName == "-" {
		if err := doc.Write(os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	f, err := os.Create(*outName)
	if err != nil {
		log.Fatal(err)
	}
	if err := doc.Write(f); err != nil {
		f.Close()
		log.Fatal(err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}
}
