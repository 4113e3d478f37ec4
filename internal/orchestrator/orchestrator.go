// Package orchestrator implements spec §4.6's split-compile pipeline: it
// takes one rewritten program, partially evaluates each hole in isolation,
// compiles and loads every hole as its own shared object, then rewrites main
// to call the compiled holes and compiles and loads main itself. The result
// is a CellRecord the session cache can classify and reuse across requests
// that share structure.
//
// Build runs all seven steps unconditionally; internal/session drives the
// exported per-step primitives (Rewrite, CallArgsForHole, CompileHole,
// CompileMain, ...) directly so it can skip recompiling holes and main a
// cache classification determined are unaffected by a resubmission.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nbjit/engine/internal/astmodel"
	"github.com/nbjit/engine/internal/backend"
	"github.com/nbjit/engine/internal/irgen"
	"github.com/nbjit/engine/internal/loader"
	"github.com/nbjit/engine/internal/nbjiterr"
	"github.com/nbjit/engine/internal/partial"
	"github.com/nbjit/engine/internal/rewriter"
)

// EntryFunctionName is the exported symbol main's compiled unit carries,
// matching internal/loader.EntryPointSymbol.
const EntryFunctionName = loader.EntryPointSymbol

// HoleArtifact is one hole's compiled unit plus the bookkeeping the
// rewritten main and the session cache need to call and reuse it.
type HoleArtifact struct {
	Ordinal      int
	Name         string
	Params       []string
	Target       string
	ReturnBoxed  bool
	BodyFinger   uint64
	GuardFinger  uint64
	SharedObject string
	Handle       *loader.Handle
}

// CellRecord is the orchestrator's output (spec §4.6/§4.8): the compiled
// main unit, every hole's compiled unit, and the fingerprints the session
// cache uses to classify a subsequent request against this one.
type CellRecord struct {
	MainFingerprint uint64
	MainSharedObj   string
	MainHandle      *loader.Handle
	Holes           []HoleArtifact
}

// Options configures one compile step (a hole, main, or a full Build).
type Options struct {
	Backend backend.Options
	Loader  *loader.Manager
}

// Rewrite is step 1: run the hole rewriter, returning main plus the bound
// names visible immediately before each hole (needed for step 2's
// call-argument computation; the rewriter's own Result only carries guard
// sets, not bound order).
func Rewrite(root *astmodel.Expr) (*rewriter.Result, [][]string, error) {
	rw, err := rewriter.Rewrite(root)
	if err != nil {
		return nil, nil, err
	}
	return rw, boundNamesBeforeHole(rw.Main, len(rw.Holes)), nil
}

// CallArgsForHole is step 2.
func CallArgsForHole(guardSet, boundSoFar []string) []string {
	return callArgsForHole(guardSet, boundSoFar)
}

// AssignmentTarget is step 3.
func AssignmentTarget(body *astmodel.Expr) string {
	return assignmentTarget(body)
}

// SubstituteHoles and FlattenBlocks implement step 5's main reconstruction.
func SubstituteHoles(e *astmodel.Expr, replacements map[int]*astmodel.Expr) *astmodel.Expr {
	return substituteHoles(e, replacements)
}

func FlattenBlocks(e *astmodel.Expr) *astmodel.Expr {
	return flattenBlocks(e)
}

// HoleCallReplacement builds the replacement node for a single hole: a
// `target = hole_name(args...)` assignment when target is non-empty, or a
// bare `hole_name(args...)` call otherwise.
func HoleCallReplacement(holeName string, args []string, target string) *astmodel.Expr {
	var call *astmodel.Expr
	if len(args) == 0 {
		call = astmodel.Call(holeName)
	} else {
		callArgs := make([]*astmodel.Expr, len(args))
		for i, a := range args {
			callArgs[i] = astmodel.Var(a)
		}
		call = astmodel.Call(holeName, callArgs...)
	}
	if target != "" {
		return astmodel.Assign(target, call)
	}
	return call
}

// Build runs the full seven-step split-compile algorithm over root and
// returns the resulting CellRecord, recompiling every hole and main
// unconditionally. internal/session uses this for a cache miss's "full
// rebuild" classification; other classifications call the exported
// per-step primitives directly to avoid recompiling unaffected units.
func Build(ctx context.Context, root *astmodel.Expr, opt Options) (*CellRecord, error) {
	if opt.Loader == nil {
		return nil, nbjiterr.New(nbjiterr.InvalidAST, "orchestrator.Build requires a loader.Manager")
	}

	rw, boundBefore, err := Rewrite(root)
	if err != nil {
		return nil, err
	}

	holes := make([]HoleArtifact, len(rw.Holes))
	replacements := make(map[int]*astmodel.Expr, len(rw.Holes))

	for i, hb := range rw.Holes {
		args := CallArgsForHole(rw.GuardSyms[i], boundBefore[i])
		target := AssignmentTarget(hb.Body)

		artifact, err := CompileHole(ctx, i, hb.Body, args, target, opt)
		if err != nil {
			rollbackHoles(opt, holes[:i])
			return nil, err
		}
		holes[i] = *artifact
		replacements[i] = HoleCallReplacement(artifact.Name, args, target)
	}

	rewrittenMain := FlattenBlocks(SubstituteHoles(rw.Main, replacements))

	soPath, handle, err := CompileMain(ctx, rewrittenMain, holes, opt)
	if err != nil {
		rollbackHoles(opt, holes)
		return nil, err
	}

	return &CellRecord{
		MainFingerprint: astmodel.Fingerprint(root),
		MainSharedObj:   soPath,
		MainHandle:      handle,
		Holes:           holes,
	}, nil
}

// CompileHole implements step 4: partially evaluate a hole body against its
// own parameter list as the dynamic set, recover its assignment target's
// final value, lower the result to a standalone function named for its
// ordinal, and compile and load it as its own shared object.
func CompileHole(ctx context.Context, ordinal int, body *astmodel.Expr, params []string, target string, opt Options) (*HoleArtifact, error) {
	name := fmt.Sprintf("hole_%d", ordinal)

	env := partial.NewEnv(nil, params)
	evaled, err := partial.Eval(body, env)
	foldFailed := false
	if err != nil {
		if !nbjiterr.Is(err, nbjiterr.PartialEvalFailure) {
			return nil, nbjiterr.Wrap(nbjiterr.PartialEvalFailure, fmt.Sprintf("evaluating hole %d", ordinal), err)
		}
		// A fold failure (division/modulo by zero, an operator the folder
		// does not recognize) must not surface to the caller of run_cell per
		// spec §7: fall back to lowering the hole's original, unevaluated
		// body instead of failing the whole compile.
		foldFailed = true
		evaled = astmodel.DeepCopy(body)
	}

	var retVal *astmodel.Expr
	if target != "" {
		if v, ok := env.Lookup(target); ok && !foldFailed {
			retVal = v
		} else {
			retVal = astmodel.Var(target)
		}
	}

	stmts := blockStmts(evaled)
	// Drop a trailing bare reference to the target: it was the hole's last
	// visible effect and is superseded by the explicit Return below.
	if target != "" && len(stmts) > 0 {
		if last := stmts[len(stmts)-1]; last.Kind == astmodel.KindVar && last.Str == target {
			stmts = stmts[:len(stmts)-1]
		}
	}
	if retVal != nil {
		stmts = append(stmts, astmodel.Return(retVal))
	}

	fn := astmodel.Function(name, params, astmodel.Block(stmts...))

	b := irgen.NewBuilder()
	irFn, err := b.BuildFunction(fn)
	if err != nil {
		return nil, err
	}
	returnBoxed := irFn.Sig.RetType.Equal(irgen.CarrierBoxed.IRType())

	soName := fmt.Sprintf("hole_%d.so", ordinal)
	res, err := backend.Compile(ctx, b.Module().String(), soName, opt.Backend)
	if err != nil {
		return nil, err
	}
	handle, err := opt.Loader.Open(res.SharedObjectPath)
	if err != nil {
		os.RemoveAll(filepath.Dir(res.SharedObjectPath))
		return nil, err
	}

	return &HoleArtifact{
		Ordinal:      ordinal,
		Name:         name,
		Params:       params,
		Target:       target,
		ReturnBoxed:  returnBoxed,
		BodyFinger:   astmodel.Fingerprint(body),
		GuardFinger:  astmodel.Fingerprint(astmodel.Block(body)),
		SharedObject: res.SharedObjectPath,
		Handle:       handle,
	}, nil
}

// CompileMain implements steps 6: partially evaluate the rewritten main with
// an empty dynamic set, declare every hole as an extern using the signature
// recorded by CompileHole, build, compile, and load it.
func CompileMain(ctx context.Context, rewrittenMain *astmodel.Expr, holes []HoleArtifact, opt Options) (soPath string, handle *loader.Handle, err error) {
	mainEnv := partial.NewEnv(nil, nil)
	evaledMainBody, err := partial.Eval(rewrittenMain, mainEnv)
	if err != nil {
		if !nbjiterr.Is(err, nbjiterr.PartialEvalFailure) {
			return "", nil, nbjiterr.Wrap(nbjiterr.PartialEvalFailure, "evaluating rewritten main", err)
		}
		// Same fold-failure fallback as CompileHole: lower main unevaluated
		// rather than fail the compile over a fold the evaluator can't do.
		evaledMainBody = astmodel.DeepCopy(rewrittenMain)
	}
	if evaledMainBody == nil {
		evaledMainBody = astmodel.Block()
	}

	mainBuilder := irgen.NewBuilder()
	for _, h := range holes {
		ret := irgen.CarrierInt
		if h.ReturnBoxed {
			ret = irgen.CarrierBoxed
		}
		mainBuilder.DeclareExtern(irgen.ExternSignature{Name: h.Name, ParamCount: len(h.Params), Ret: ret})
	}
	if _, err := mainBuilder.BuildFunction(astmodel.Function(EntryFunctionName, nil, evaledMainBody)); err != nil {
		return "", nil, err
	}

	mainSO, err := backend.Compile(ctx, mainBuilder.Module().String(), "main.so", opt.Backend)
	if err != nil {
		return "", nil, err
	}
	h, err := opt.Loader.Open(mainSO.SharedObjectPath)
	if err != nil {
		os.RemoveAll(filepath.Dir(mainSO.SharedObjectPath))
		return "", nil, err
	}
	return mainSO.SharedObjectPath, h, nil
}

// rollbackHoles closes the loader handle and removes the compiled workspace
// for every hole already produced in a Build call that later failed (spec
// §7): a hole compiled earlier in the same submission must not leak its
// shared object or open handle just because a later hole or main failed.
func rollbackHoles(opt Options, holes []HoleArtifact) {
	for _, h := range holes {
		if h.SharedObject == "" {
			continue
		}
		if opt.Loader != nil {
			opt.Loader.Close(h.SharedObject)
		}
		os.RemoveAll(filepath.Dir(h.SharedObject))
	}
}

func blockStmts(e *astmodel.Expr) []*astmodel.Expr {
	if e == nil {
		return nil
	}
	if e.Kind == astmodel.KindBlock {
		return append([]*astmodel.Expr{}, e.Stmts...)
	}
	return []*astmodel.Expr{e}
}
