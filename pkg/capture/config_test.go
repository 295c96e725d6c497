package capture_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirkhaki/branchtrace/pkg/capture"
)

func TestDefaultConfig(t *testing.T) {
	cfg := capture.DefaultConfig()
	assert.Equal(t, "/tmp", cfg.OutDir)
	assert.Equal(t, "branchtrace", cfg.Prefix)
	assert.Equal(t, "packed", cfg.Schema)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
out_dir = "/var/tmp/traces"
schema = "tagged"
`), 0o644))

	cfg, err := capture.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/tmp/traces", cfg.OutDir)
	assert.Equal(t, "tagged", cfg.Schema)
	// Unset keys keep their defaults.
	assert.Equal(t, "branchtrace", cfg.Prefix)
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := capture.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, capture.DefaultConfig(), cfg)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := capture.LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestWithEnv(t *testing.T) {
	t.Setenv("BRANCHTRACE_OUT", "/tmp/env-traces")
	t.Setenv("BRANCHTRACE_SCHEMA", "tagged")

	cfg := capture.DefaultConfig().WithEnv()
	assert.Equal(t, "/tmp/env-traces", cfg.OutDir)
	assert.Equal(t, "tagged", cfg.Schema)
	assert.Equal(t, "branchtrace", cfg.Prefix)
}
