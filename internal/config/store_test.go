package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_SynthesizesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	store, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), store.Snapshot())

	_, statErr := os.Stat(path)
	require.NoError(t, statErr, "default config should have been persisted to disk")
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	store, err := Load(path, nil)
	require.NoError(t, err)

	cfg := store.Snapshot()
	cfg.LogLevel = "debug"
	cfg.Plugins["sample"] = PluginConfig{Enabled: false, Settings: map[string]interface{}{"retries": 3}}
	require.NoError(t, store.Save(cfg))

	reloaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "debug", reloaded.Snapshot().LogLevel)
	assert.False(t, reloaded.GetPluginEnabled("sample"))
}

func TestLoad_FallsBackOnMalformedFileWithoutOverwriting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	original := "not: [valid, yaml"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	store, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), store.Snapshot())

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(onDisk), "malformed file must not be overwritten")
}

func TestLoad_FallsBackWhenSchemaInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	// plugins_dir missing required field -> schema violation
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	store, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), store.Snapshot())
}

func TestGetPluginEnabled_DefaultsTrueWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	store, err := Load(filepath.Join(dir, "config.yaml"), nil)
	require.NoError(t, err)

	assert.True(t, store.GetPluginEnabled("unknown-plugin"))
}

func TestSetPluginEnabled_PersistsAndDefaultsSurvive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	store, err := Load(path, nil)
	require.NoError(t, err)

	require.NoError(t, store.SetPluginEnabled("alpha", false))
	assert.False(t, store.GetPluginEnabled("alpha"))

	reloaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.False(t, reloaded.GetPluginEnabled("alpha"))
}

func TestSetPluginSetting_MergesRatherThanReplaces(t *testing.T) {
	dir := t.TempDir()
	store, err := Load(filepath.Join(dir, "config.yaml"), nil)
	require.NoError(t, err)

	require.NoError(t, store.SetPluginSetting("alpha", "timeout", 30))
	require.NoError(t, store.SetPluginSetting("alpha", "retries", 3))

	settings := store.GetPluginSettings("alpha")
	assert.EqualValues(t, 30, settings["timeout"])
	assert.EqualValues(t, 3, settings["retries"])
}

func TestReload_PicksUpExternalChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	store, err := Load(path, nil)
	require.NoError(t, err)

	cfg := store.Snapshot()
	cfg.LogLevel = "warn"
	require.NoError(t, store.Save(cfg))

	require.NoError(t, store.Reload())
	assert.Equal(t, "warn", store.Snapshot().LogLevel)
}

func TestReload_KeepsPreviousSnapshotOnMalformedDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	store, err := Load(path, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))
	require.NoError(t, store.Reload())
	assert.Equal(t, Default(), store.Snapshot())
}
