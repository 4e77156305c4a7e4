package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, 6, cfg.Pipeline.HopCap)
	require.Equal(t, 256, cfg.Pipeline.MaxUpdates)
	require.False(t, cfg.Feed.Enabled)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadParsesYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  hop_cap: 4
  max_updates: 10
feed:
  enabled: true
  ws_url: "wss://example.invalid/ws"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Pipeline.HopCap)
	require.Equal(t, 10, cfg.Pipeline.MaxUpdates)
	require.True(t, cfg.Feed.Enabled)
	require.Equal(t, "wss://example.invalid/ws", cfg.Feed.WSURL)
}

func TestLoadRejectsFeedEnabledWithoutURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feed:\n  enabled: true\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverridesTakePrecedenceOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  hop_cap: 4\n"), 0o600))

	t.Setenv("PIPELINE_HOP_CAP", "3")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Pipeline.HopCap)
}

func TestToPipelineConfigCopiesTunables(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	pc := cfg.ToPipelineConfig()
	require.Equal(t, cfg.Pipeline.HopCap, pc.HopCap)
	require.Equal(t, cfg.Pipeline.MaxRateBound, pc.MaxRateBound)
}
