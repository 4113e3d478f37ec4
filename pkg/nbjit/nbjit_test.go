package nbjit

import (
	"context"
	"os"
	"path/filepath"
	"plugin"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nbjit/engine/internal/astmodel"
	"github.com/nbjit/engine/internal/loader"
)

func fakeCC(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler script is POSIX shell only")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fakecc.sh")
	script := "#!/bin/sh\nout=\"\"\nprev=\"\"\nfor a in \"$@\"; do\n  if [ \"$prev\" = \"-o\" ]; then out=\"$a\"; fi\n  prev=\"$a\"\ndone\n[ -n \"$out\" ] && touch \"$out\"\nexit 0\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	restore := loader.SetPluginOpenForTesting(func(string) (*plugin.Plugin, error) {
		return &plugin.Plugin{}, nil
	})
	t.Cleanup(restore)

	e, err := New(WithCC(fakeCC(t)), WithTempDir(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngineRunCellReachesClassification(t *testing.T) {
	e := newTestEngine(t)
	root := astmodel.Block(
		astmodel.Assign("n", astmodel.Int(5)),
		astmodel.Annotation("hole",
			astmodel.Assign("total", astmodel.BinOp("*", astmodel.Var("n"), astmodel.Int(2))),
		),
		astmodel.Call("println", astmodel.Var("total")),
	)

	_, err := e.RunCell(context.Background(), root, "cellA")
	require.Error(t, err) // invokeEntry fails against the fake plugin; classification still ran.

	stats := e.Stats()
	require.Equal(t, 1, stats.Cells)
}

func TestEngineRunPureCellFailsInvokeAgainstFakePlugin(t *testing.T) {
	e := newTestEngine(t)
	root := astmodel.Block(astmodel.Assign("x", astmodel.Int(1)))

	// *plugin.Plugin.Lookup cannot be faked to succeed (it is a concrete
	// method on an unexported-field struct), so invocation fails here even
	// though compilation and partial evaluation both ran cleanly. A pure
	// cell only joins Stats().PureCells once invocation succeeds.
	_, cached, err := e.RunPureCell(context.Background(), root, "pureA")
	require.Error(t, err)
	require.False(t, cached)
	require.Equal(t, 0, e.Stats().PureCells)

	require.NoError(t, e.CleanupCell("pureA"))
}
