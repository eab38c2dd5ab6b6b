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


// Package config collects the settings of a rendering run.
//
// Settings are applied in layers.  Later layers override earlier ones:
//
//  1. built-in defaults
//  2. a YAML configuration file
//  3. a .env file
//  4. BANDRENDER_* environment variables
//  5. command line flags
//
// Byte sizes accept units, for example "64MiB" or "500 kB".
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"seehuhn.de/go/bandrender/output"
	"seehuhn.de/go/bandrender/pipeline"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "BANDRENDER_"

// Config holds the settings of a rendering run.
type Config struct {
	Threads       int     `yaml:"threads"`
	MinBandHeight int     `yaml:"min_band_height"`
	BandMemory    Bytes   `yaml:"band_memory"`
	MemoryLimit   Bytes   `yaml:"memory_limit"`
	Resolution    float64 `yaml:"resolution"`
	Rotation      int     `yaml:"rotation"`
	Color         string  `yaml:"color"`
	Format        string  `yaml:"format"`
	Compress      bool    `yaml:"compress"`
	DisplayList   bool    `yaml:"display_list"`
	Background    bool    `yaml:"background"`
	KeepGoing     bool    `yaml:"keep_going"`
	LogLevel      string  `yaml:"log_level"`
	LogFile       string  `yaml:"log_file"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Threads:       max(runtime.NumCPU()-1, 0),
		MinBandHeight: 16,
		BandMemory:    4 << 20,
		Resolution:    72,
		Color:         "gray",
		Format:        "pgm",
		DisplayList:   true,
		LogLevel:      "info",
	}
}

// Bytes is a byte count which reads and prints with units.
type Bytes int64

func (b Bytes) String() string {
	if b == 0 {
		return "0"
	}
	return humanize.IBytes(uint64(b))
}

// ParseBytes converts strings like "16MiB" to a byte count.
func ParseBytes(s string) (Bytes, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("%s: too large", s)
	}
	return Bytes(n), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *Bytes) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseBytes(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*b = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (b Bytes) MarshalYAML() (any, error) {
	return b.String(), nil
}

type field struct {
	key   string
	usage string
	flag  bool
	set   func(c *Config, v string) error
}

func intField(key, usage string, p func(*Config) *int) field {
	return field{key: key, usage: usage, set: func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*p(c) = n
		return nil
	}}
}

func bytesField(key, usage string, p func(*Config) *Bytes) field {
	return field{key: key, usage: usage, set: func(c *Config, v string) error {
		n, err := ParseBytes(v)
		if err != nil {
			return err
		}
		*p(c) = n
		return nil
	}}
}

func stringField(key, usage string, p func(*Config) *string) field {
	return field{key: key, usage: usage, set: func(c *Config, v string) error {
		*p(c) = strings.TrimSpace(v)
		return nil
	}}
}

func boolField(key, usage string, p func(*Config) *bool) field {
	return field{key: key, usage: usage, flag: true, set: func(c *Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*p(c) = b
		return nil
	}}
}

var fields = []field{
	intField("threads", "number of band rendering threads", func(c *Config) *int { return &c.Threads }),
	intField("min_band_height", "band height granularity in rows", func(c *Config) *int { return &c.MinBandHeight }),
	bytesField("band_memory", "memory budget per band", func(c *Config) *Bytes { return &c.BandMemory }),
	bytesField("memory_limit", "limit for all band memory in flight (0 = none)", func(c *Config) *Bytes { return &c.MemoryLimit }),
	{key: "resolution", usage: "output resolution in dpi", set: func(c *Config, v string) error {
		x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return err
		}
		c.Resolution = x
		return nil
	}},
	intField("rotation", "page rotation in degrees clockwise", func(c *Config) *int { return &c.Rotation }),
	stringField("color", "color model (gray or mono)", func(c *Config) *string { return &c.Color }),
	stringField("format", "output format (pgm, pbm, pam or tiff)", func(c *Config) *string { return &c.Format }),
	boolField("compress", "compress the output", func(c *Config) *bool { return &c.Compress }),
	boolField("display_list", "pre-interpret pages into display lists", func(c *Config) *bool { return &c.DisplayList }),
	boolField("background", "render pages in the background", func(c *Config) *bool { return &c.Background }),
	boolField("keep_going", "skip failing pages", func(c *Config) *bool { return &c.KeepGoing }),
	stringField("log_level", "log level (debug, info, warn, error, off)", func(c *Config) *string { return &c.LogLevel }),
	stringField("log_file", "write JSON logs to this file", func(c *Config) *string { return &c.LogFile }),
}

func lookup(key string) (field, bool) {
	key = strings.ReplaceAll(strings.ToLower(key), "-", "_")
	for _, f := range fields {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}

// Set changes a single setting.  Keys use the YAML names; dashes
// may be used in place of underscores.
func (c *Config) Set(key, value string) error {
	f, ok := lookup(key)
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	if err := f.set(c, value); err != nil {
		return fmt.Errorf("%s: %w", f.key, err)
	}
	return nil
}

// Load reads the configuration.  Empty file names skip the
// corresponding layer.  A missing .env file is not an error.
func Load(file, envFile string) (*Config, error) {
	c := Default()

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}

	var dotenv map[string]string
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", envFile, err)
		}
		dotenv = m
	}

	for _, f := range fields {
		name := EnvPrefix + strings.ToUpper(f.key)
		v, ok := os.LookupEnv(name)
		if !ok {
			v, ok = dotenv[name]
		}
		if !ok {
			continue
		}
		if err := f.set(c, v); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	return c, nil
}

// Overrides records settings given on the command line.
type Overrides struct {
	pairs [][2]string
}

// BindFlags defines one flag per setting on fs.  Flag names use dashes,
// e.g. -min-band-height.  The recorded values are applied by Apply.
func BindFlags(fs *flag.FlagSet) *Overrides {
	o := &Overrides{}
	for _, f := range fields {
		name := strings.ReplaceAll(f.key, "_", "-")
		record := func(v string) error {
			o.pairs = append(o.pairs, [2]string{f.key, v})
			return nil
		}
		if f.flag {
			fs.BoolFunc(name, f.usage, record)
		} else {
			fs.Func(name, f.usage, record)
		}
	}
	return o
}

// Apply copies the recorded flag values into c.
func (o *Overrides) Apply(c *Config) error {
	for _, kv := range o.pairs {
		if err := c.Set(kv[0], kv[1]); err != nil {
			return fmt.Errorf("-%s: %w", strings.ReplaceAll(kv[0], "_", "-"), err)
		}
	}
	return nil
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	var errs []error
	if c.Threads < 0 {
		errs = append(errs, fmt.Errorf("threads must not be negative, got %d", c.Threads))
	}
	if c.MinBandHeight < 1 {
		errs = append(errs, fmt.Errorf("min_band_height must be positive, got %d", c.MinBandHeight))
	}
	if c.BandMemory < 0 || c.MemoryLimit < 0 {
		errs = append(errs, errors.New("memory sizes must not be negative"))
	}
	if c.Resolution <= 0 || c.Resolution > 10000 {
		errs = append(errs, fmt.Errorf("resolution must be in (0, 10000], got %g", c.Resolution))
	}
	if c.Rotation%90 != 0 {
		errs = append(errs, fmt.Errorf("rotation must be a multiple of 90, got %d", c.Rotation))
	}
	model, err := pipeline.ParseColorModel(c.Color)
	if err != nil {
		errs = append(errs, err)
	}
	format, err := output.ParseFormat(c.Format)
	if err != nil {
		errs = append(errs, err)
	} else if model == pipeline.Mono && format == output.PGM {
		errs = append(errs, fmt.Errorf("format %s cannot hold mono output", format))
	} else if model == pipeline.Gray && format.Mono() {
		errs = append(errs, fmt.Errorf("format %s needs color mono", format))
	}
	return errors.Join(errs...)
}

// Pipeline returns the pipeline options for c.
func (c *Config) Pipeline(log *zap.Logger) (pipeline.Options, error) {
	model, err := pipeline.ParseColorModel(c.Color)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Threads:       c.Threads,
		MinBandHeight: c.MinBandHeight,
		BandMemory:    int64(c.BandMemory),
		MemoryLimit:   int64(c.MemoryLimit),
		Resolution:    c.Resolution,
		Rotation:      c.Rotation,
		Model:         model,
		DisplayList:   c.DisplayList,
		Background:    c.Background,
		KeepGoing:     c.KeepGoing,
		Logger:        log,
	}, nil
}
