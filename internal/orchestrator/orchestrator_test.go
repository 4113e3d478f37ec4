package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"plugin"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nbjit/engine/internal/astmodel"
	"github.com/nbjit/engine/internal/backend"
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

func withFakePluginOpen(t *testing.T) *loader.Manager {
	t.Helper()
	restore := loader.SetPluginOpenForTesting(func(string) (*plugin.Plugin, error) { return &plugin.Plugin{}, nil })
	t.Cleanup(restore)
	return loader.NewManager()
}

func buildOpt(t *testing.T) Options {
	return Options{
		Backend: backend.Options{CC: fakeCC(t)},
		Loader:  withFakePluginOpen(t),
	}
}

// exercises a program with no holes at all: main builds and loads on its own.
func TestBuildWithNoHolesProducesMainOnly(t *testing.T) {
	root := astmodel.Block(
		astmodel.Assign("x", astmodel.Int(1)),
		astmodel.Assign("y", astmodel.BinOp("+", astmodel.Var("x"), astmodel.Int(2))),
	)
	rec, err := Build(context.Background(), root, buildOpt(t))
	require.NoError(t, err)
	require.Empty(t, rec.Holes)
	require.FileExists(t, rec.MainSharedObj)
	require.NotNil(t, rec.MainHandle)
}

// a single hole that assigns its result, guarded by a name bound before it.
func TestBuildWithSingleAssigningHoleCompilesHoleAndMain(t *testing.T) {
	root := astmodel.Block(
		astmodel.Assign("n", astmodel.Int(5)),
		astmodel.Annotation("hole",
			astmodel.Assign("total", astmodel.BinOp("*", astmodel.Var("n"), astmodel.Int(2))),
		),
		astmodel.Call("println", astmodel.Var("total")),
	)
	rec, err := Build(context.Background(), root, buildOpt(t))
	require.NoError(t, err)
	require.Len(t, rec.Holes, 1)

	h := rec.Holes[0]
	require.Equal(t, "hole_0", h.Name)
	require.Equal(t, []string{"n"}, h.Params)
	require.FileExists(t, h.SharedObject)
	require.NotNil(t, h.Handle)
	require.FileExists(t, rec.MainSharedObj)
}

// a hole with no assignment target compiles to a bare call in main.
func TestBuildWithSideEffectOnlyHoleHasNoTarget(t *testing.T) {
	root := astmodel.Block(
		astmodel.Assign("n", astmodel.Int(7)),
		astmodel.Annotation("hole",
			astmodel.Call("println", astmodel.Var("n")),
		),
	)
	rec, err := Build(context.Background(), root, buildOpt(t))
	require.NoError(t, err)
	require.Len(t, rec.Holes, 1)
	require.Equal(t, []string{"n"}, rec.Holes[0].Params)
}

func TestCallArgsForHoleIntersectsInBoundOrder(t *testing.T) {
	bound := []string{"a", "b", "c"}
	guard := []string{"c", "a"}
	require.Equal(t, []string{"a", "c"}, callArgsForHole(guard, bound))
}

func TestAssignmentTargetFindsFirstAssignStatement(t *testing.T) {
	body := astmodel.Block(astmodel.Assign("r", astmodel.Int(1)), astmodel.Call("println", astmodel.Var("r")))
	require.Equal(t, "r", assignmentTarget(body))
}

func TestAssignmentTargetEmptyWhenFirstStatementIsNotAssign(t *testing.T) {
	body := astmodel.Block(astmodel.Call("println", astmodel.Int(1)))
	require.Equal(t, "", assignmentTarget(body))
}

func TestSubstituteHolesReplacesNestedOccurrence(t *testing.T) {
	tree := astmodel.If(astmodel.Bool(true), astmodel.Block(astmodel.Hole(nil, 0)), nil)
	repl := map[int]*astmodel.Expr{0: astmodel.Call("hole_0")}
	out := substituteHoles(tree, repl)
	require.Equal(t, astmodel.KindCall, out.Then.Stmts[0].Kind)
}

func TestFlattenBlocksSplicesNestedBlock(t *testing.T) {
	tree := astmodel.Block(astmodel.Block(astmodel.Assign("a", astmodel.Int(1))), astmodel.Assign("b", astmodel.Int(2)))
	out := flattenBlocks(tree)
	require.Len(t, out.Stmts, 2)
	require.Equal(t, astmodel.KindAssign, out.Stmts[0].Kind)
}

// A hole body that divides by a literal zero fails to fold, but that must
// never surface as a compile error (spec §7): CompileHole falls back to
// lowering the hole unevaluated instead.
func TestCompileHoleFoldFailureFallsBackToUnevaluatedBody(t *testing.T) {
	body := astmodel.Block(astmodel.Assign("total", astmodel.BinOp("/", astmodel.Int(1), astmodel.Int(0))))
	artifact, err := CompileHole(context.Background(), 0, body, nil, "total", buildOpt(t))
	require.NoError(t, err)
	require.FileExists(t, artifact.SharedObject)
	require.NotNil(t, artifact.Handle)
}

func TestCompileMainFoldFailureFallsBackToUnevaluatedBody(t *testing.T) {
	main := astmodel.Block(astmodel.Assign("total", astmodel.BinOp("/", astmodel.Int(1), astmodel.Int(0))))
	soPath, handle, err := CompileMain(context.Background(), main, nil, buildOpt(t))
	require.NoError(t, err)
	require.FileExists(t, soPath)
	require.NotNil(t, handle)
}

// if a later hole fails to compile, every earlier hole's shared object and
// loader handle from the same Build call must be rolled back (spec §7)
// rather than leaked.
func TestBuildRollsBackEarlierHolesWhenALaterHoleFails(t *testing.T) {
	root := astmodel.Block(
		astmodel.Assign("n", astmodel.Int(5)),
		astmodel.Annotation("hole",
			astmodel.Assign("total", astmodel.BinOp("*", astmodel.Var("n"), astmodel.Int(2))),
		),
		astmodel.Annotation("hole",
			// "missing" is never bound anywhere, so the partial evaluator
			// leaves it symbolic and the IR builder rejects it as an
			// undefined reference, failing this hole's compile.
			astmodel.Assign("bad", astmodel.Var("missing")),
		),
		astmodel.Call("println", astmodel.Var("total"), astmodel.Var("bad")),
	)
	opt := buildOpt(t)
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	rec, err := Build(context.Background(), root, opt)
	require.Error(t, err)
	require.Nil(t, rec)
	// hole 0 compiled into its own backend workspace before hole 1 failed;
	// rollbackHoles must have removed it.
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// directly exercises rollbackHoles: both the loader handle and the on-disk
// workspace for a rolled-back hole must be gone afterward.
func TestRollbackHolesClosesHandlesAndRemovesSharedObjects(t *testing.T) {
	opt := buildOpt(t)
	body := astmodel.Block(astmodel.Assign("total", astmodel.BinOp("*", astmodel.Var("n"), astmodel.Int(2))))
	artifact, err := CompileHole(context.Background(), 0, body, []string{"n"}, "total", opt)
	require.NoError(t, err)
	require.True(t, opt.Loader.IsOpen(artifact.SharedObject))
	require.FileExists(t, artifact.SharedObject)

	rollbackHoles(opt, []HoleArtifact{*artifact})

	require.False(t, opt.Loader.IsOpen(artifact.SharedObject))
	require.NoFileExists(t, artifact.SharedObject)
}

// if the loader fails to open a hole's freshly compiled shared object, the
// workspace backend.Compile just produced for it must not be left behind.
func TestCompileHoleRemovesWorkspaceWhenLoaderOpenFails(t *testing.T) {
	restore := loader.SetPluginOpenForTesting(func(string) (*plugin.Plugin, error) {
		return nil, errors.New("simulated open failure")
	})
	defer restore()

	opt := Options{Backend: backend.Options{CC: fakeCC(t)}, Loader: loader.NewManager()}
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	body := astmodel.Block(astmodel.Assign("total", astmodel.BinOp("*", astmodel.Var("n"), astmodel.Int(2))))
	artifact, err := CompileHole(context.Background(), 0, body, []string{"n"}, "total", opt)
	require.Error(t, err)
	require.Nil(t, artifact)
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// same leak, but for CompileMain's shared object.
func TestCompileMainRemovesWorkspaceWhenLoaderOpenFails(t *testing.T) {
	restore := loader.SetPluginOpenForTesting(func(string) (*plugin.Plugin, error) {
		return nil, errors.New("simulated open failure")
	})
	defer restore()

	opt := Options{Backend: backend.Options{CC: fakeCC(t)}, Loader: loader.NewManager()}
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	main := astmodel.Block(astmodel.Assign("total", astmodel.Int(1)))
	soPath, handle, err := CompileMain(context.Background(), main, nil, opt)
	require.Error(t, err)
	require.Empty(t, soPath)
	require.Nil(t, handle)
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries)
}
