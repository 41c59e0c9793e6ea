package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), AdsctlDir)

	cfg, err := Initialize(dir, Config{
		AccountID:    "123-456-7890",
		MerchantID:   "555001",
		SnapshotRoot: "/data/snapshots",
		RuleConfig:   "/data/rules.yaml",
	})
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Dir())
	assert.DirExists(t, cfg.PlansPath())
	assert.DirExists(t, cfg.ReportsPath())

	loaded, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "123-456-7890", loaded.AccountID)
	assert.Equal(t, "555001", loaded.MerchantID)
	assert.Equal(t, "/data/snapshots", loaded.SnapshotRoot)
	assert.Equal(t, filepath.Join(dir, DatabaseFile), loaded.DatabasePath())
}

func TestInitializeRefusesExisting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), AdsctlDir)
	_, err := Initialize(dir, Config{AccountID: "1"})
	require.NoError(t, err)

	_, err = Initialize(dir, Config{AccountID: "2"})
	assert.ErrorContains(t, err, "already initialized")
}

func TestLoadFromMissing(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	assert.ErrorContains(t, err, "adsctl init")
}

func TestSaveRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), AdsctlDir)
	cfg, err := Initialize(dir, Config{AccountID: "123"})
	require.NoError(t, err)

	cfg.OpTimeoutSeconds = 45
	require.NoError(t, cfg.Save())

	loaded, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, 45, loaded.OpTimeoutSeconds)

	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "op_timeout_seconds = 45")
}
