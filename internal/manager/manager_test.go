package manager

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plughost/plughost/pkg/plugin"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	mgr, report, err := Init(path, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Loaded)
	t.Cleanup(mgr.Close)
	return mgr
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"io error is transient", plugin.NewError(plugin.KindIoError, "", "disk full", nil), true},
		{"plain execution failure is not", plugin.NewError(plugin.KindExecutionFailed, "p", "bad input", nil), false},
		{"sentinel-prefixed execution failure is transient", plugin.NewError(plugin.KindExecutionFailed, "p", "transient: warming up", nil), true},
		{"not found is never transient", plugin.NewError(plugin.KindNotFound, "p", "missing", nil), false},
		{"non-plugin error is not transient", assertError{}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, isTransient(c.err))
		})
	}
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestExecutionOptions_Normalization(t *testing.T) {
	assert.Equal(t, 1, ExecutionOptions{}.normalized().MaxAttempts)
	assert.Equal(t, 1, ExecutionOptions{MaxAttempts: -5}.normalized().MaxAttempts)
	assert.Equal(t, 3, ExecutionOptions{MaxAttempts: 3}.normalized().MaxAttempts)
}

func TestExecute_UnknownPluginIsNotFound(t *testing.T) {
	mgr := newTestManager(t)

	result := mgr.Execute("ghost", "in", DefaultExecutionOptions())
	require.NotNil(t, result.Err)
	assert.True(t, plugin.IsKind(result.Err, plugin.KindNotFound))
	assert.False(t, result.Success())
}

func TestExecute_DisabledConfigOnlyPluginReportsNotFoundNotDisabled(t *testing.T) {
	// A plugin that is merely mentioned in config but never loaded is
	// NotFound at execute time: disabled-ness is only meaningful for a
	// plugin the registry actually knows about.
	mgr := newTestManager(t)
	require.NoError(t, mgr.Store().SetPluginEnabled("ghost", false))

	result := mgr.Execute("ghost", "in", DefaultExecutionOptions())
	require.NotNil(t, result.Err)
	assert.True(t, plugin.IsKind(result.Err, plugin.KindNotFound))
}

func TestEnableDisable_UnknownNameIsNotFound(t *testing.T) {
	mgr := newTestManager(t)
	err := mgr.Enable("ghost")
	require.Error(t, err)
	assert.True(t, plugin.IsKind(err, plugin.KindNotFound))
}

func TestEnableDisable_ConfigOnlyPluginCanBePreEnabled(t *testing.T) {
	mgr := newTestManager(t)
	require.NoError(t, mgr.Store().SetPluginSetting("ghost", "k", "v"))

	require.NoError(t, mgr.Enable("ghost"))
	assert.True(t, mgr.Store().GetPluginEnabled("ghost"))

	require.NoError(t, mgr.Disable("ghost"))
	assert.False(t, mgr.Store().GetPluginEnabled("ghost"))
}

func TestList_UnionsConfigOnlyEntries(t *testing.T) {
	mgr := newTestManager(t)
	require.NoError(t, mgr.Store().SetPluginEnabled("ghost", true))

	list := mgr.List()
	require.Len(t, list, 1)
	assert.Equal(t, "ghost", list[0].Name)
	assert.False(t, list[0].Loaded)
	assert.True(t, list[0].Enabled)
}

func TestExecuteMany_PreservesOrderAndLength(t *testing.T) {
	mgr := newTestManager(t)

	reqs := []ExecRequest{
		{Name: "a", Input: "1"},
		{Name: "b", Input: "2"},
		{Name: "c", Input: "3"},
	}
	results := mgr.ExecuteMany(reqs, DefaultExecutionOptions())

	require.Len(t, results, len(reqs))
	for i, req := range reqs {
		assert.Equal(t, req.Name, results[i].PluginName)
	}
}

func TestReloadConfig_DoesNotRescanPlugins(t *testing.T) {
	mgr := newTestManager(t)
	require.NoError(t, mgr.ReloadConfig())
	assert.Empty(t, mgr.List())
}
