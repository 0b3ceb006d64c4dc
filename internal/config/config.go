// Package config implements the pipeline's on-disk configuration: a
// JSON file loaded at startup, mutated by command handlers, and saved
// back out only when something actually asked for it.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/binrts/binrts/internal/errs"
)

const DefaultConfigDir = ".binrts"

// Options are the resolver/visualiser/engine knobs that survive across
// invocations of the binrts CLI.
type Options struct {
	Root           string   `json:"root"`
	Ext            string   `json:"ext"`
	SourceRegex    string   `json:"source_regex"`
	Extracted      bool     `json:"extracted"`
	Debug          bool     `json:"debug"`
	Accurate       bool     `json:"accurate"`
	ModuleAllow    []string `json:"module_allow"`
	CountMode      bool     `json:"count_mode"`
	DumpBBSize     bool     `json:"dump_bb_size"`
	RuntimeDump    bool     `json:"runtime_dump"`
}

// Config is the load/mutate/save-if-wanted lifecycle used by every
// binrts subcommand.
type Config struct {
	dir      string
	Options  Options
	wantSave bool
}

func NewConfig(dir string) *Config {
	if dir == "" {
		dir = DefaultConfigDir
	}
	return &Config{dir: dir}
}

func (c *Config) path() string {
	return filepath.Join(c.dir, "options.json")
}

// Dir returns the config directory, for callers (like the resolver's
// persisted cache snapshot) that keep their own files alongside
// options.json.
func (c *Config) Dir() string {
	return c.dir
}

// Load reads options.json if present, then overlays BINRTS_ROOT from the
// environment (via viper.AutomaticEnv). No other option is read from
// the environment.
func (c *Config) Load() error {
	if _, err := os.Stat(c.path()); os.IsNotExist(err) {
		c.Options = Options{Ext: ".log"}
	} else {
		js, err := os.ReadFile(c.path())
		if err != nil {
			return errs.Wrapf(err, "config: read %q", c.path())
		}
		if err := json.Unmarshal(js, &c.Options); err != nil {
			return errs.Wrapf(err, "config: parse %q", c.path())
		}
	}

	v := viper.New()
	v.SetEnvPrefix("binrts")
	v.AutomaticEnv()
	if v.IsSet("root") {
		c.Options.Root = v.GetString("root")
	}
	return nil
}

// WantSave marks this config for persistence at the end of the current
// command, the way the teacher's handlers call it after mutating
// targets.
func (c *Config) WantSave() {
	c.wantSave = true
}

func (c *Config) Save() error {
	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		if err := os.MkdirAll(c.dir, 0755); err != nil {
			return errs.Wrapf(err, "config: mkdir %q", c.dir)
		}
	}
	js, err := json.MarshalIndent(c.Options, "", "  ")
	if err != nil {
		return errs.Wrap(err, "config: marshal options")
	}
	if err := os.WriteFile(c.path(), js, 0644); err != nil {
		return errs.Wrapf(err, "config: write %q", c.path())
	}
	return nil
}

func (c *Config) SaveIfWant() error {
	if c.wantSave {
		return c.Save()
	}
	return nil
}
