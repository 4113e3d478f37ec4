// Package backend drives the external C toolchain that turns a rendered
// LLVM-IR module into a loadable shared object. It never calls into LLVM
// itself; emission and optimization are delegated entirely to clang/cc, the
// way spec §4.4 describes.
package backend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/nbjit/engine/internal/nbjiterr"
)

// Options configures one compile. CC overrides the resolved compiler
// (default: $NBJIT_CC, then "clang", then "cc"); ExtraLinkArgs passes
// through flags the caller needs (e.g. -L/-l for libnbjitrt).
type Options struct {
	CC            string
	ExtraLinkArgs []string
	KeepWorkDir   bool
}

// Result names the finished shared object on disk. Callers own removing it
// once the dynamic loader has mapped it (spec §4.7 — or the session
// discards the whole generation).
type Result struct {
	SharedObjectPath string
	workDir          string
}

// Cleanup removes the temporary workspace backend created, if any.
func (r *Result) Cleanup() {
	if r.workDir != "" {
		_ = os.RemoveAll(r.workDir)
	}
}

func resolveCC(opt Options) (string, error) {
	if opt.CC != "" {
		return opt.CC, nil
	}
	if env := os.Getenv("NBJIT_CC"); env != "" {
		return env, nil
	}
	if path, err := exec.LookPath("clang"); err == nil {
		return path, nil
	}
	if path, err := exec.LookPath("cc"); err == nil {
		return path, nil
	}
	return "", nbjiterr.New(nbjiterr.BackendFailure, "no C compiler found on PATH; set NBJIT_CC")
}

// Compile writes irText to a temp workspace, compiles it to a relocatable
// object, links that object into a shared object, and removes the
// intermediate object file — spec §4.4's three-step sequence.
func Compile(ctx context.Context, irText string, soName string, opt Options) (*Result, error) {
	cc, err := resolveCC(opt)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "nbjit-backend-*")
	if err != nil {
		return nil, nbjiterr.Wrap(nbjiterr.BackendFailure, "creating backend workspace", err)
	}
	result := &Result{workDir: workDir}
	if !opt.KeepWorkDir {
		defer func() {
			if err != nil {
				result.Cleanup()
			}
		}()
	}

	llPath := filepath.Join(workDir, "module.ll")
	if err = os.WriteFile(llPath, []byte(irText), 0o644); err != nil {
		return nil, nbjiterr.Wrap(nbjiterr.BackendFailure, "writing rendered IR", err)
	}

	objPath := filepath.Join(workDir, "module.o")
	compileArgs := []string{"-O1", "-c", llPath, "-o", objPath}
	if err = runTool(ctx, cc, workDir, compileArgs); err != nil {
		return nil, nbjiterr.Wrap(nbjiterr.BackendFailure, "compiling IR to object", err)
	}

	soPath := filepath.Join(workDir, soName)
	linkArgs := []string{"-shared", "-O1", objPath, "-o", soPath}
	linkArgs = append(linkArgs, opt.ExtraLinkArgs...)
	if err = runTool(ctx, cc, workDir, linkArgs); err != nil {
		return nil, nbjiterr.Wrap(nbjiterr.BackendFailure, "linking shared object", err)
	}

	if err = os.Remove(objPath); err != nil {
		return nil, nbjiterr.Wrap(nbjiterr.BackendFailure, "removing intermediate object file", err)
	}

	result.SharedObjectPath = soPath
	return result, nil
}

func runTool(ctx context.Context, tool, dir string, args []string) error {
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w\n%s", tool, args, err, out)
	}
	return nil
}
