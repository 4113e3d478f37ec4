package loader

import (
	"plugin"
	"testing"

	"github.com/stretchr/testify/require"
)

func withFakePluginOpen(t *testing.T, openCount *int) {
	t.Helper()
	orig := pluginOpen
	pluginOpen = func(path string) (*plugin.Plugin, error) {
		*openCount++
		return &plugin.Plugin{}, nil
	}
	t.Cleanup(func() { pluginOpen = orig })
}

func TestManagerOpenCachesByPath(t *testing.T) {
	var opens int
	withFakePluginOpen(t, &opens)

	m := NewManager()
	h1, err := m.Open("/tmp/main-1.so")
	require.NoError(t, err)
	h2, err := m.Open("/tmp/main-1.so")
	require.NoError(t, err)

	require.Same(t, h1, h2)
	require.Equal(t, 1, opens, "second Open of the same path must not call plugin.Open again")
}

func TestManagerOpenDistinctPathsAreIndependent(t *testing.T) {
	var opens int
	withFakePluginOpen(t, &opens)

	m := NewManager()
	_, err := m.Open("/tmp/a.so")
	require.NoError(t, err)
	_, err = m.Open("/tmp/b.so")
	require.NoError(t, err)
	require.Equal(t, 2, opens)
}

func TestRefreshMainOpensNewPathAndForgetsOld(t *testing.T) {
	var opens int
	withFakePluginOpen(t, &opens)

	m := NewManager()
	_, err := m.Open("/tmp/main-gen1.so")
	require.NoError(t, err)
	require.True(t, m.IsOpen("/tmp/main-gen1.so"))

	h, err := m.RefreshMain("/tmp/main-gen2.so", "/tmp/main-gen1.so")
	require.NoError(t, err)
	require.Equal(t, "/tmp/main-gen2.so", h.Path)
	require.False(t, m.IsOpen("/tmp/main-gen1.so"))
	require.True(t, m.IsOpen("/tmp/main-gen2.so"))
}

func TestCloseForgetsPath(t *testing.T) {
	var opens int
	withFakePluginOpen(t, &opens)

	m := NewManager()
	_, err := m.Open("/tmp/x.so")
	require.NoError(t, err)
	m.Close("/tmp/x.so")
	require.False(t, m.IsOpen("/tmp/x.so"))
}

func TestOpenPropagatesPluginOpenError(t *testing.T) {
	orig := pluginOpen
	pluginOpen = func(path string) (*plugin.Plugin, error) {
		return nil, require.AnError
	}
	t.Cleanup(func() { pluginOpen = orig })

	m := NewManager()
	_, err := m.Open("/tmp/missing.so")
	require.Error(t, err)
}
