package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRuntimeLinkArgsEmptyWhenUnset(t *testing.T) {
	c := defaultConfig()
	require.Nil(t, c.runtimeLinkArgs())
}

func TestRuntimeLinkArgsSplitsPathIntoDashLDashL(t *testing.T) {
	c := defaultConfig()
	WithRuntimeLibrary("/opt/nbjit/lib/libnbjitrt.so")(c)
	require.Equal(t, []string{"-L/opt/nbjit/lib", "-lnbjitrt"}, c.runtimeLinkArgs())
}

func TestRuntimeLinkArgsHandlesNameWithoutLibPrefix(t *testing.T) {
	c := defaultConfig()
	WithRuntimeLibrary("/opt/nbjit/lib/nbjitrt.so")(c)
	require.Equal(t, []string{"-L/opt/nbjit/lib", "-lnbjitrt"}, c.runtimeLinkArgs())
}
