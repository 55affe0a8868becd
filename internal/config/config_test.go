package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, "ovrly.OverlayState", cfg.SharedRegion)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.InDelta(t, 0.75, float64(cfg.Interaction.GripThreshold), 1e-6)
	assert.Equal(t, 50, cfg.Interaction.HitMarginPx)

	// The file was written.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestManager_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	require.NoError(t, m.SetPort(9999))
	require.NoError(t, m.SetLogLevel("debug"))

	m2, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, m2.GetPort())
	assert.Equal(t, "debug", m2.GetLogLevel())
}

func TestManager_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_port: 7070\n"), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)
	cfg := m.Get()
	assert.Equal(t, 7070, cfg.ServerPort)
	// Unset fields fall back to defaults.
	assert.Equal(t, "ovrly.OverlayState", cfg.SharedRegion)
	assert.InDelta(t, 10.0, float64(cfg.Interaction.MaxHeadDistance), 1e-6)
}
