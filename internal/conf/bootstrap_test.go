package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "InstantMBTA/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestNewBootstrap_SingleStationDefaults(t *testing.T) {
	configPath := writeConfig(t, `mode: single-station
station: Oak Grove
track:
  - route: Orange Line
    direction: inbound
    count: 2
`)

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)
	require.NotNil(t, bc)

	assert.Equal(t, ModeSingleStation, bc.Mode)
	assert.Equal(t, "Oak Grove", bc.Station)
	require.Len(t, bc.Tracks, 1)
	assert.Equal(t, "Orange Line", bc.Tracks[0].Route)
	assert.Equal(t, 2, bc.Tracks[0].Count)

	// Defaults
	assert.Equal(t, "12h", bc.Display.TimeFormat)
	assert.True(t, bc.Display.Abbreviate)
	assert.Equal(t, 60*time.Second, bc.Display.Refresh)
	assert.Equal(t, "https://api-v3.mbta.com", bc.API.BaseURL)
	assert.Equal(t, 30*time.Second, bc.API.Timeout)
	assert.Equal(t, 5, bc.Breaker.FailureThreshold)
	assert.Equal(t, 60*time.Second, bc.Breaker.Cooldown)
	assert.Equal(t, "info", bc.Log.Level)
}

func TestNewBootstrap_APIKeyFromEnv(t *testing.T) {
	configPath := writeConfig(t, `mode: bidirectional
station: Malden Center
route: Orange Line
inbound:
  show: 2
outbound:
  show: 3
`)
	t.Setenv("MBTA_API_KEY", "test-api-key")

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)

	assert.Equal(t, "test-api-key", bc.API.Key)
	assert.Equal(t, 2, bc.Inbound.Show)
	assert.Equal(t, 3, bc.Outbound.Show)
}

func TestNewBootstrap_JourneyMode(t *testing.T) {
	configPath := writeConfig(t, `mode: journey
route: Red Line
from: Central Square
to: Harvard Square
`)

	bc, err := NewBootstrap(configPath)
	require.NoError(t, err)
	assert.Equal(t, "Red Line", bc.Route)
	assert.Equal(t, "Central Square", bc.From)
	assert.Equal(t, "Harvard Square", bc.To)
}

func TestNewBootstrap_MissingFile(t *testing.T) {
	_, err := NewBootstrap("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidate_UnknownMode(t *testing.T) {
	configPath := writeConfig(t, `mode: triangular
station: Oak Grove
`)
	_, err := NewBootstrap(configPath)
	require.Error(t, err)
	var cfgErr *apperrors.ConfigValidationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidate_SingleStationRequiresTracks(t *testing.T) {
	configPath := writeConfig(t, `mode: single-station
station: Oak Grove
`)
	_, err := NewBootstrap(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracked route")
}

func TestValidate_JourneyRequiresBothStations(t *testing.T) {
	configPath := writeConfig(t, `mode: journey
route: Red Line
from: Central Square
`)
	_, err := NewBootstrap(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'to' station")
}

func TestValidate_TimeoutMustBeBelowRefresh(t *testing.T) {
	configPath := writeConfig(t, `mode: journey
route: Red Line
from: Central Square
to: Harvard Square
display:
  refresh: 10s
api:
  timeout: 30s
`)
	_, err := NewBootstrap(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh interval")
}

func TestValidate_BadTrackDirection(t *testing.T) {
	configPath := writeConfig(t, `mode: single-station
station: Oak Grove
track:
  - route: Orange Line
    direction: sideways
`)
	_, err := NewBootstrap(configPath)
	assert.Error(t, err)
}
