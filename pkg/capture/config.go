package capture

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/amirkhaki/branchtrace/pkg/trace"
)

// Config holds the capture pipeline configuration. Precedence, lowest to
// highest: built-in defaults, a TOML config file, environment variables
// (the host's launch mechanism usually only lets an operator set those),
// then whatever the caller sets explicitly.
//
// Environment variables:
//   - BRANCHTRACE_OUT: output directory for trace files
//   - BRANCHTRACE_PREFIX: trace file name prefix
//   - BRANCHTRACE_SCHEMA: "packed" or "tagged"
type Config struct {
	// OutDir is the directory trace files are created in.
	OutDir string `toml:"out_dir"`

	// Prefix is the leading component of every trace file name.
	Prefix string `toml:"prefix"`

	// Schema selects the on-disk record layout for every file of the run.
	Schema string `toml:"schema"`
}

// DefaultConfig returns the well-known defaults used when nothing else is
// configured.
func DefaultConfig() Config {
	return Config{
		OutDir: "/tmp",
		Prefix: "branchtrace",
		Schema: trace.Packed.String(),
	}
}

// LoadConfig reads a TOML config file over the defaults. An empty path just
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return cfg, nil
}

// WithEnv overlays the BRANCHTRACE_* environment variables onto c.
func (c Config) WithEnv() Config {
	if v := os.Getenv("BRANCHTRACE_OUT"); v != "" {
		c.OutDir = v
	}
	if v := os.Getenv("BRANCHTRACE_PREFIX"); v != "" {
		c.Prefix = v
	}
	if v := os.Getenv("BRANCHTRACE_SCHEMA"); v != "" {
		c.Schema = v
	}
	return c
}

// validate checks c and resolves the schema.
func (c Config) validate() (trace.Schema, error) {
	if c.OutDir == "" {
		return 0, fmt.Errorf("output directory must not be empty")
	}
	if c.Prefix == "" {
		return 0, fmt.Errorf("trace file prefix must not be empty")
	}
	schema, err := trace.ParseSchema(c.Schema)
	if err != nil {
		return 0, err
	}
	return schema, nil
}
