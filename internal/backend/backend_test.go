package backend

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nbjit/engine/internal/nbjiterr"
)

// fakeCC writes a tiny shell script standing in for clang: it just creates
// whatever file "-o" names, so Compile's three-step sequence can be
// exercised without a real toolchain on the test machine.
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

func TestCompileProducesSharedObjectAndRemovesObjectFile(t *testing.T) {
	cc := fakeCC(t)
	result, err := Compile(context.Background(), "; fake ir text", "out.so", Options{CC: cc})
	require.NoError(t, err)
	defer result.Cleanup()

	require.FileExists(t, result.SharedObjectPath)
	require.Equal(t, "out.so", filepath.Base(result.SharedObjectPath))

	objPath := filepath.Join(filepath.Dir(result.SharedObjectPath), "module.o")
	require.NoFileExists(t, objPath)
}

func TestCompileWithoutCCAndWithoutPathCompilerFails(t *testing.T) {
	t.Setenv("NBJIT_CC", "")
	t.Setenv("PATH", "")
	_, err := Compile(context.Background(), "ir", "out.so", Options{})
	require.Error(t, err)
	require.True(t, nbjiterr.Is(err, nbjiterr.BackendFailure))
}

func TestCompileHonorsExplicitCCOption(t *testing.T) {
	cc := fakeCC(t)
	result, err := Compile(context.Background(), "ir", "lib.so", Options{CC: cc, ExtraLinkArgs: []string{"-lnbjitrt"}})
	require.NoError(t, err)
	defer result.Cleanup()
	require.FileExists(t, result.SharedObjectPath)
}

func TestCleanupRemovesWorkDir(t *testing.T) {
	cc := fakeCC(t)
	result, err := Compile(context.Background(), "ir", "out.so", Options{CC: cc})
	require.NoError(t, err)
	dir := filepath.Dir(result.SharedObjectPath)
	result.Cleanup()
	require.NoDirExists(t, dir)
}
