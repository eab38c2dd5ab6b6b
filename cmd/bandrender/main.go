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


// Command bandrender rasterizes page description files.
//
// Usage:
//
//	bandrender [flags] [-o output] file.yaml
//	bandrender [flags] [-o output] -builtin all
//
// Pages are rendered in horizontal bands by a pool of worker threads and
// written as netpbm images (one after the other in a single stream) or as
// one TIFF file per page.  Settings come from an optional configuration
// file, a .env file, BANDRENDER_* environment variables and the flags
// below, in this order.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"seehuhn.de/go/bandrender/internal/config"
	"seehuhn.de/go/bandrender/internal/logging"
	"seehuhn.de/go/bandrender/output"
	"seehuhn.de/go/bandrender/pagefile"
	"seehuhn.de/go/bandrender/pipeline"
	"seehuhn.de/go/bandrender/testpages"
)

// errPagesFailed signals that some pages were skipped.
var errPagesFailed = errors.New("some pages failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stderr)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	case errors.Is(err, errPagesFailed):
		os.Exit(3)
	default:
		color.New(color.FgRed).Fprintf(os.Stderr, "bandrender: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("bandrender", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "read settings from this YAML file")
	envFile := fs.String("env", ".env", "read BANDRENDER_* settings from this file")
	outName := fs.String("o", "-", "output file, or a file name pattern for TIFF")
	builtin := fs.String("builtin", "", "render a built-in sample page, or \"all\"")
	list := fs.Bool("list", false, "list the built-in sample pages and exit")
	overrides := config.BindFlags(fs)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: bandrender [flags] (file.yaml | -builtin name)")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *list {
		for _, s := range testpages.All() {
			fmt.Fprintf(stderr, "%-10s %gx%g pt, %d ops\n", s.Name, s.Page.Size[0], s.Page.Size[1], len(s.Page.Ops))
		}
		return nil
	}

	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		return err
	}
	if err := overrides.Apply(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	doc, err := openDocument(fs.Args(), *builtin)
	if err != nil {
		return err
	}

	log, closeLog, err := logging.New(logging.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
		Color: !color.NoColor,
	})
	if err != nil {
		return err
	}
	defer closeLog()
	log = log.With(zap.String("run", uuid.New().String()[:8]))

	format, err := output.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	w, err := output.Create(*outName, format, cfg.Compress)
	if err != nil {
		return err
	}

	opt, err := cfg.Pipeline(log)
	if err != nil {
		w.Close()
		return err
	}
	p, err := pipeline.New(opt)
	if err != nil {
		w.Close()
		return err
	}

	start := time.Now()
	sum, err := p.RenderDocument(ctx, doc, w)
	p.Close()
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if sum != nil {
		report(stderr, sum, time.Since(start))
	}
	if err != nil {
		return err
	}
	if len(sum.Failed) > 0 {
		return errPagesFailed
	}
	return nil
}

// openDocument returns the pages selected on the command line.
func openDocument(args []string, builtin string) (*pagefile.File, error) {
	switch {
	case builtin != "" && len(args) > 0:
		return nil, errors.New("give either a file or -builtin, not both")
	case builtin == "all":
		return testpages.Document(), nil
	case builtin != "":
		page, ok := testpages.Lookup(builtin)
		if !ok {
			return nil, fmt.Errorf("unknown sample page %q (try -list)", builtin)
		}
		return &pagefile.File{Pages: []*pagefile.Page{page}}, nil
	case len(args) != 1:
		return nil, errors.New("expected exactly one page file")
	}
	return pagefile.Load(args[0])
}

func report(w io.Writer, sum *pipeline.Summary, elapsed time.Duration) {
	bold := color.New(color.Bold)
	if len(sum.Failed) == 0 && sum.Rendered == sum.Pages {
		bold.Add(color.FgGreen)
	} else {
		bold.Add(color.FgYellow)
	}
	bold.Fprintf(w, "%d of %d pages rendered", sum.Rendered, sum.Pages)
	color.New(color.FgHiBlack).Fprintf(w, " in %v, %d retries, peak band memory %s\n",
		elapsed.Round(time.Millisecond), sum.Retries, humanize.IBytes(uint64(sum.Peak)))

	if len(sum.Failed) > 0 {
		pages := make([]string, len(sum.Failed))
		for i, n := range sum.Failed {
			pages[i] = fmt.Sprint(n)
		}
		color.New(color.FgRed).Fprintf(w, "failed pages: %s\n", strings.Join(pages, ", "))
	}
}
