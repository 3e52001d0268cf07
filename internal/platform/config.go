package platform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the project file looked up by FindRoot.
const ConfigFile = "strata.yaml"

// Config is the content of a strata.yaml project file.
type Config struct {
	URI      string        `yaml:"uri"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
	ReadOnly bool          `yaml:"read_only"`
	Schemas  SchemaConfig  `yaml:"schemas"`
}

// SchemaConfig locates the schema definition files.
type SchemaConfig struct {
	Dir     string `yaml:"dir"`
	Pattern string `yaml:"pattern"`
}

// LoadConfig reads a project file. A missing file yields an empty Config.
// Relative schema directories are resolved against the file's directory.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Schemas.Dir != "" && !filepath.IsAbs(cfg.Schemas.Dir) {
		cfg.Schemas.Dir = filepath.Join(filepath.Dir(path), cfg.Schemas.Dir)
	}
	return cfg, nil
}

// Options translates the file into engine options.
func (c *Config) Options() []Option {
	var opts []Option
	if c.Database != "" {
		opts = append(opts, WithDatabase(c.Database))
	}
	if c.Timeout > 0 {
		opts = append(opts, WithTimeout(c.Timeout))
	}
	if c.ReadOnly {
		opts = append(opts, WithReadOnly(true))
	}
	if c.Schemas.Dir != "" {
		opts = append(opts, WithSchemaDir(c.Schemas.Dir), WithSchemaPattern(c.Schemas.Pattern))
	}
	return opts
}
