package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// DefaultPattern matches schema files anywhere below the schema directory.
const DefaultPattern = "**/*.{yaml,yml}"

// file is the on-disk layout of a schema definition file.
type file struct {
	Types []Type `yaml:"types"`
}

// Parse decodes the type declarations of one schema file.
// A file may hold several YAML documents.
func Parse(data []byte) ([]Type, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var types []Type
	for {
		var f file
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		types = append(types, f.Types...)
	}
	return types, nil
}

// Match lists the files below dir matching a doublestar pattern, sorted.
func Match(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid schema pattern %q", pattern)
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to match schema files: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// LoadFiles reads every schema file below dir matching pattern and compiles
// the declarations together, so a hierarchy may span several files.
func LoadFiles(dir, pattern string) (*Registry, error) {
	matches, err := Match(dir, pattern)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no schema files in %s matching %q", dir, pattern)
	}

	fsys := os.DirFS(dir)
	var defs []Type
	for _, rel := range matches {
		data, err := fs.ReadFile(fsys, rel)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file: %w", err)
		}
		types, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Join(dir, rel), err)
		}
		defs = append(defs, types...)
	}
	return Compile(defs...)
}
