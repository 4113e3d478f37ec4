// Package bench provides reproducible micro-benchmarks for the selective JIT
// engine. Run via: go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// Unlike a value cache, every distinct cell shape here triggers a real
// compile the first time it is seen, so the benchmarks intentionally
// distinguish a cold path (first submission, pays compile cost) from a warm
// path (resubmission, alias-hit, no compile):
//
//  1. RunCellColdUnique  - every id is new content: full rebuild every call
//  2. RunCellWarmAlias   - same content resubmitted: alias hit every call
//  3. RunCellHoleChurn   - main shape fixed, hole body varies: hole-only update
//  4. RunPureCellWarm    - content-free cell: no compile, cached value path
//
// Requires a C compiler on PATH (requireCC looks for clang, cc, or gcc);
// skips otherwise, since internal/backend has no pure-Go code path.
//
// NOTE: classification-correctness tests live in internal/session; this file
// is only for relative performance across the classification rows.
package bench

import (
	"context"
	"fmt"
	"os/exec"
	"testing"

	"github.com/nbjit/engine/internal/astmodel"
	"github.com/nbjit/engine/pkg/nbjit"
)

func requireCC(b *testing.B) {
	b.Helper()
	for _, cc := range []string{"clang", "cc", "gcc"} {
		if _, err := exec.LookPath(cc); err == nil {
			return
		}
	}
	b.Skip("no C compiler found on PATH; internal/backend requires one")
}

func newBenchEngine(b *testing.B) *nbjit.Engine {
	b.Helper()
	e, err := nbjit.New(nbjit.WithTempDir(b.TempDir()))
	if err != nil {
		b.Fatalf("engine init: %v", err)
	}
	b.Cleanup(func() { _ = e.Close() })
	return e
}

func holeCellAST(op string, k int64) *astmodel.Expr {
	return astmodel.Block(
		astmodel.Assign("n", astmodel.Int(5)),
		astmodel.Annotation("hole",
			astmodel.Assign("total", astmodel.BinOp(op, astmodel.Var("n"), astmodel.Int(k))),
		),
		astmodel.Call("println", astmodel.Var("total")),
	)
}

func pureCellAST(n int64) *astmodel.Expr {
	return astmodel.Block(astmodel.Assign("x", astmodel.Int(n)))
}

func BenchmarkRunCellColdUnique(b *testing.B) {
	requireCC(b)
	e := newBenchEngine(b)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		root := holeCellAST("*", int64(i))
		id := fmt.Sprintf("cold-%d", i)
		if _, err := e.RunCell(ctx, root, id); err != nil {
			b.Fatalf("RunCell: %v", err)
		}
	}
}

func BenchmarkRunCellWarmAlias(b *testing.B) {
	requireCC(b)
	e := newBenchEngine(b)
	ctx := context.Background()
	root := holeCellAST("*", 2)
	if _, err := e.RunCell(ctx, root, "warm-seed"); err != nil {
		b.Fatalf("seed RunCell: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.RunCell(ctx, root, "warm-seed"); err != nil {
			b.Fatalf("RunCell: %v", err)
		}
	}
}

func BenchmarkRunCellHoleChurn(b *testing.B) {
	requireCC(b)
	e := newBenchEngine(b)
	ctx := context.Background()
	if _, err := e.RunCell(ctx, holeCellAST("*", 2), "churn"); err != nil {
		b.Fatalf("seed RunCell: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		root := holeCellAST("*", int64(i%50))
		if _, err := e.RunCell(ctx, root, "churn"); err != nil {
			b.Fatalf("RunCell: %v", err)
		}
	}
}

func BenchmarkRunPureCellWarm(b *testing.B) {
	requireCC(b)
	e := newBenchEngine(b)
	ctx := context.Background()
	root := pureCellAST(7)
	if _, _, err := e.RunPureCell(ctx, root, "pure-seed"); err != nil {
		b.Fatalf("seed RunPureCell: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, cached, err := e.RunPureCell(ctx, root, "pure-seed"); err != nil {
			b.Fatalf("RunPureCell: %v", err)
		} else if !cached {
			b.Fatalf("expected cached result on resubmission")
		}
	}
}
