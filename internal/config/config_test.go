package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.ListenAddress)
	require.Equal(t, 2049, cfg.ListenPort)
	require.Equal(t, 111, cfg.PortmapPort)
	require.Equal(t, "INFO", cfg.Logging.Level)
	require.True(t, cfg.Cache.Enabled)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
listen_port: 3049
root_path: /srv/export
exports:
  - path: /srv/export/data
    clients: ["192.168.1.0/24"]
    read_only: true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3049, cfg.ListenPort)
	require.Equal(t, "/srv/export", cfg.RootPath)
	require.Len(t, cfg.Exports, 1)
	require.True(t, cfg.Exports[0].ReadOnly)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_port: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestBuildExportTableAppliesSquashDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.RootSquash = true
	cfg.Exports = []ExportConfig{{Path: "/export/a"}}

	table, err := BuildExportTable(cfg)
	require.NoError(t, err)
	all := table.All()
	require.Len(t, all, 1)
	require.True(t, all[0].RootSquash)
}
