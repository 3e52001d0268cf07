package platform

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(`
uri: mongodb://localhost:27017
database: forms
timeout: 3s
schemas:
  dir: schemas
  pattern: "*.yaml"
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017", cfg.URI)
	assert.Equal(t, "forms", cfg.Database)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, filepath.Join(dir, "schemas"), cfg.Schemas.Dir)
	assert.Equal(t, "*.yaml", cfg.Schemas.Pattern)

	o := defaultOptions()
	for _, opt := range cfg.Options() {
		opt(o)
	}
	assert.Equal(t, "forms", o.database)
	assert.Equal(t, 3*time.Second, o.timeout)
	assert.Equal(t, filepath.Join(dir, "schemas"), o.schemaDir)
	assert.Equal(t, "*.yaml", o.schemaPattern)
}

func TestLoadConfig_Missing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), ConfigFile))
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
	assert.Empty(t, cfg.Options())
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte("adapter: fs\n"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
