// Package config handles engine.toml configuration and source unit
// description files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/chazu/fninfo/vm"
)

// FileName is the configuration file FindAndLoad looks for.
const FileName = "engine.toml"

// Config represents an engine.toml configuration.
type Config struct {
	Flags Flags `toml:"flags"`
	Flush Flush `toml:"flush"`
	Log   Log   `toml:"log"`

	// Dir is the directory containing the engine.toml file (set at load time).
	Dir string `toml:"-"`
}

// Flags mirrors vm.EngineFlags.
type Flags struct {
	LazySourcePositions    bool `toml:"lazy-source-positions"`
	PreciseBinaryCoverage  bool `toml:"precise-binary-coverage"`
	MaxInlinedBytecodeSize int  `toml:"max-inlined-bytecode-size"`
	TraceFlushBytecode     bool `toml:"trace-flush-bytecode"`
	TraceOpt               bool `toml:"trace-opt"`
}

// Flush configures the bytecode flusher.
type Flush struct {
	Enabled  bool          `toml:"enabled"`
	Interval time.Duration `toml:"interval"`
	OldAge   int           `toml:"old-age"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no engine.toml exists.
func Default() *Config {
	return &Config{
		Flags: Flags{MaxInlinedBytecodeSize: vm.DefaultMaxInlinedBytecodeSize},
		Flush: Flush{Interval: vm.DefaultFlushInterval, OldAge: vm.DefaultFlushOldAge},
	}
}

// Load parses the engine.toml file in dir. Keys missing from the file keep
// their defaults.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a configuration file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	cfg.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// FindAndLoad walks up from startDir to find an engine.toml file, then
// loads it. Returns Default() if none is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) validate() error {
	if c.Flags.MaxInlinedBytecodeSize < 0 {
		return fmt.Errorf("flags.max-inlined-bytecode-size must not be negative, got %d", c.Flags.MaxInlinedBytecodeSize)
	}
	if c.Flush.Interval < 0 {
		return fmt.Errorf("flush.interval must not be negative, got %s", c.Flush.Interval)
	}
	if c.Flush.OldAge < 0 {
		return fmt.Errorf("flush.old-age must not be negative, got %d", c.Flush.OldAge)
	}
	return nil
}

// EngineFlags converts the [flags] table.
func (c *Config) EngineFlags() vm.EngineFlags {
	return vm.EngineFlags{
		LazySourcePositions:    c.Flags.LazySourcePositions,
		PreciseBinaryCoverage:  c.Flags.PreciseBinaryCoverage,
		MaxInlinedBytecodeSize: c.Flags.MaxInlinedBytecodeSize,
		TraceFlushBytecode:     c.Flags.TraceFlushBytecode,
		TraceOpt:               c.Flags.TraceOpt,
	}
}

// Apply sets iso's flags and, when any trace flag is on, routes code
// tracing to the log.
func (c *Config) Apply(iso *vm.Isolate) {
	iso.SetFlags(c.EngineFlags())
	if c.Flags.TraceFlushBytecode || c.Flags.TraceOpt {
		iso.SetTracer(vm.NewLogTraceSink())
	}
}

// NewFlusher creates a flusher for iso from the [flush] table. The flusher
// is not started; it is disabled unless flush.enabled is set.
func (c *Config) NewFlusher(iso *vm.Isolate) *vm.BytecodeFlusher {
	f := vm.NewBytecodeFlusher(iso, c.Flush.Interval, c.Flush.OldAge)
	f.SetEnabled(c.Flush.Enabled)
	return f
}

// ConfigureLogging sets up the commonlog backend from the [log] table.
// verbosityDelta is added to the configured verbosity, as command line
// -v flags do.
func (c *Config) ConfigureLogging(verbosityDelta int) {
	var path *string
	if c.Log.File != "" {
		file := c.Log.File
		if !filepath.IsAbs(file) && c.Dir != "" {
			file = filepath.Join(c.Dir, file)
		}
		path = &file
	}
	commonlog.Configure(c.Log.Verbosity+verbosityDelta, path)
}
