package irgen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/nbjit/engine/internal/astmodel"
	"github.com/nbjit/engine/internal/nbjiterr"
)

// ExternSignature describes a call target outside this module: either a
// hole's already-compiled function (known return carrier, parameters
// coerced to int64 per spec §4.3 "Calls" case (c)) or an arbitrary foreign
// symbol.
type ExternSignature struct {
	Name       string
	ParamCount int
	Ret        Carrier
}

// Builder accumulates one LLVM module. A fresh Builder is created per
// orchestrator compile step (main or a single hole); runtime declarations
// are emitted once per Builder since a module only ever links one object.
type Builder struct {
	module    *ir.Module
	runtime   map[string]*ir.Func
	known     map[string]Carrier // functions already emitted in this module
	externs   map[string]*ir.Func
	externRet map[string]Carrier
	strTab    map[string]*ir.Global
	strCount  int
}

func NewBuilder() *Builder {
	m := ir.NewModule()
	return &Builder{
		module:    m,
		runtime:   declareRuntimeFuncs(m),
		known:     map[string]Carrier{},
		externs:   map[string]*ir.Func{},
		externRet: map[string]Carrier{},
		strTab:    map[string]*ir.Global{},
	}
}

func (b *Builder) Module() *ir.Module { return b.module }

// DeclareExtern registers an external call target (spec §4.3 case (c)): a
// function not defined in this module, whose parameters the builder coerces
// to 64-bit integer at the call site.
func (b *Builder) DeclareExtern(sig ExternSignature) {
	if _, ok := b.externs[sig.Name]; ok {
		return
	}
	params := make([]*ir.Param, sig.ParamCount)
	for i := range params {
		params[i] = ir.NewParam("", types.I64)
	}
	b.externs[sig.Name] = b.module.NewFunc(sig.Name, sig.Ret.IRType(), params...)
	b.externRet[sig.Name] = sig.Ret
}

// BuildFunction lowers a single astmodel.Expr function definition (spec
// §4.3's sole input shape) into an exported LLVM function in this Builder's
// module, running verification before returning.
func (b *Builder) BuildFunction(fn *astmodel.Expr) (*ir.Func, error) {
	if fn == nil || fn.Kind != astmodel.KindFunction {
		return nil, nbjiterr.New(nbjiterr.IRBuildError, "BuildFunction requires a Function node")
	}

	paramCarriers := make([]Carrier, len(fn.Params))
	for i, p := range fn.Params {
		if paramIsBoxed(fn.Body, p) {
			paramCarriers[i] = CarrierBoxed
		} else {
			paramCarriers[i] = CarrierInt
		}
	}
	retCarrier := CarrierInt
	if inferReturnBoxed(fn.Body) {
		retCarrier = CarrierBoxed
	}

	irParams := make([]*ir.Param, len(fn.Params))
	for i, p := range fn.Params {
		irParams[i] = ir.NewParam(p, paramCarriers[i].IRType())
	}

	irFn := b.module.NewFunc(fn.Str, retCarrier.IRType(), irParams...)
	b.known[fn.Str] = retCarrier

	entry := irFn.NewBlock("entry")
	fb := &funcBuilder{b: b, fn: irFn, retCarrier: retCarrier, cur: entry, sc: newScope(nil)}

	for i, p := range fn.Params {
		slot := entry.NewAlloca(paramCarriers[i].IRType())
		entry.NewStore(irFn.Params[i], slot)
		fb.sc.define(p, slot, paramCarriers[i])
	}

	lastVal, lastCarrier, err := fb.buildBody(fn.Body)
	if err != nil {
		return nil, err
	}
	if fb.cur.Term == nil {
		ret, err := fb.coerceReturn(lastVal, lastCarrier)
		if err != nil {
			return nil, err
		}
		fb.cur.NewRet(ret)
	}

	if err := verifyFunc(irFn); err != nil {
		return nil, err
	}
	return irFn, nil
}

// funcBuilder carries the mutable state threaded through one function's
// lowering: the block currently being appended to, the scope chain, and
// the enclosing loop's break/continue targets.
type funcBuilder struct {
	b          *Builder
	fn         *ir.Func
	retCarrier Carrier
	cur        *ir.Block
	sc         *scope
	loops      []loopCtx
	blockSeq   int
}

type loopCtx struct {
	breakTarget    *ir.Block
	continueTarget *ir.Block
}

func (fb *funcBuilder) newBlock(prefix string) *ir.Block {
	fb.blockSeq++
	return fb.fn.NewBlock(fmt.Sprintf("%s%d", prefix, fb.blockSeq))
}

func effectiveCarrier(c Carrier) Carrier {
	if c == CarrierBool {
		return CarrierInt
	}
	return c
}

// coerceTo converts v from one carrier representation to another, boxing or
// unboxing through the runtime library when either side is CarrierBoxed.
func (fb *funcBuilder) coerceTo(v value.Value, from, to Carrier) (value.Value, error) {
	if from == to {
		return v, nil
	}
	switch {
	case from == CarrierBool && to == CarrierInt:
		return fb.cur.NewZExt(v, types.I64), nil
	case from == CarrierInt && to == CarrierFloat:
		return fb.cur.NewSIToFP(v, types.Double), nil
	case from == CarrierFloat && to == CarrierInt:
		return fb.cur.NewFPToSI(v, types.I64), nil
	case from == CarrierBool && to == CarrierFloat:
		widened := fb.cur.NewZExt(v, types.I64)
		return fb.cur.NewSIToFP(widened, types.Double), nil
	case to == CarrierBoxed && from == CarrierInt:
		return fb.cur.NewCall(fb.b.runtime["box_int"], v), nil
	case to == CarrierBoxed && from == CarrierFloat:
		return fb.cur.NewCall(fb.b.runtime["box_float"], v), nil
	case to == CarrierBoxed && from == CarrierBool:
		widened := fb.cur.NewZExt(v, types.I64)
		return fb.cur.NewCall(fb.b.runtime["box_int"], widened), nil
	case from == CarrierBoxed && to == CarrierInt:
		return fb.cur.NewCall(fb.b.runtime["unbox_int"], v), nil
	case from == CarrierBoxed && to == CarrierFloat:
		return fb.cur.NewCall(fb.b.runtime["unbox_float"], v), nil
	}
	return nil, nbjiterr.New(nbjiterr.IRBuildError, fmt.Sprintf("no coercion from %s to %s", from, to))
}

// coerceReturn implements spec §4.3's prologue/epilogue rule: "float → int
// via truncation, boolean → int via zero-extension, boxed → int via
// unbox_int, null-pointer when the body produced no value and the return is
// boxed."
func (fb *funcBuilder) coerceReturn(v value.Value, carrier Carrier) (value.Value, error) {
	if v == nil {
		if fb.retCarrier == CarrierBoxed {
			return constant.NewNull(types.NewPointer(types.I8)), nil
		}
		return constant.NewInt(types.I64, 0), nil
	}
	return fb.coerceTo(v, carrier, fb.retCarrier)
}

// buildBody evaluates a Then/Else/loop-body position, which the grammar
// normally fills with a Block but which astmodel does not require to be one
// (the partial evaluator treats these positions as plain Expr values too).
func (fb *funcBuilder) buildBody(e *astmodel.Expr) (value.Value, Carrier, error) {
	if e == nil {
		return nil, 0, nil
	}
	if e.Kind == astmodel.KindBlock {
		return fb.buildStmts(e.Stmts)
	}
	return fb.buildStmts([]*astmodel.Expr{e})
}

// buildStmts evaluates a statement sequence, returning the last
// expression-valued result (used for implicit-return / branch-value
// propagation) and stopping early if a terminator (Return/Break/Continue)
// has already closed the current block.
func (fb *funcBuilder) buildStmts(stmts []*astmodel.Expr) (value.Value, Carrier, error) {
	var lastVal value.Value
	var lastCarrier Carrier
	for _, s := range stmts {
		if fb.cur.Term != nil {
			break
		}
		v, c, err := fb.buildStmt(s)
		if err != nil {
			return nil, 0, err
		}
		if v != nil {
			lastVal, lastCarrier = v, c
		}
	}
	return lastVal, lastCarrier, nil
}

func (fb *funcBuilder) buildStmt(s *astmodel.Expr) (value.Value, Carrier, error) {
	switch s.Kind {
	case astmodel.KindAssign:
		return nil, 0, fb.buildAssign(s)
	case astmodel.KindIndexSet:
		return fb.buildIndexSet(s)
	case astmodel.KindReturn:
		v, c, err := fb.evalExpr(s.Value)
		if err != nil {
			return nil, 0, err
		}
		ret, err := fb.coerceReturn(v, c)
		if err != nil {
			return nil, 0, err
		}
		fb.cur.NewRet(ret)
		return nil, 0, nil
	case astmodel.KindBreak:
		if len(fb.loops) == 0 {
			return nil, 0, nbjiterr.New(nbjiterr.IRBuildError, "break outside a loop")
		}
		fb.cur.NewBr(fb.loops[len(fb.loops)-1].breakTarget)
		return nil, 0, nil
	case astmodel.KindContinue:
		if len(fb.loops) == 0 {
			return nil, 0, nbjiterr.New(nbjiterr.IRBuildError, "continue outside a loop")
		}
		fb.cur.NewBr(fb.loops[len(fb.loops)-1].continueTarget)
		return nil, 0, nil
	case astmodel.KindIf:
		return fb.buildIf(s)
	case astmodel.KindFor:
		return nil, 0, fb.buildFor(s)
	case astmodel.KindWhile:
		return nil, 0, fb.buildWhile(s)
	case astmodel.KindHole:
		return nil, 0, nbjiterr.New(nbjiterr.IRBuildError, "unresolved hole reached the IR builder; the orchestrator must substitute hole calls before emission")
	default:
		return fb.evalExpr(s)
	}
}

func (fb *funcBuilder) buildAssign(s *astmodel.Expr) error {
	val, carrier, err := fb.evalExpr(s.Rhs)
	if err != nil {
		return err
	}
	declCarrier := effectiveCarrier(carrier)
	b, exists := fb.sc.lookup(s.Str)
	if !exists {
		slot := fb.cur.NewAlloca(declCarrier.IRType())
		fb.sc.define(s.Str, slot, declCarrier)
		b, _ = fb.sc.lookup(s.Str)
	}
	coerced, err := fb.coerceTo(val, carrier, b.carrier)
	if err != nil {
		return err
	}
	fb.cur.NewStore(coerced, b.slot)
	return nil
}

// buildIndexSet lowers a[key] = value via the runtime's dict_set, which
// returns the (possibly reallocated) dict — if the container is a bare
// variable the result is written back to its slot so later reads observe
// the update.
func (fb *funcBuilder) buildIndexSet(s *astmodel.Expr) (value.Value, Carrier, error) {
	container, containerCarrier, err := fb.evalExpr(s.Lhs)
	if err != nil {
		return nil, 0, err
	}
	key, keyCarrier, err := fb.evalExpr(s.Rhs)
	if err != nil {
		return nil, 0, err
	}
	val, valCarrier, err := fb.evalExpr(s.Value)
	if err != nil {
		return nil, 0, err
	}
	containerBoxed, err := fb.coerceTo(container, containerCarrier, CarrierBoxed)
	if err != nil {
		return nil, 0, err
	}
	keyBoxed, err := fb.coerceTo(key, keyCarrier, CarrierBoxed)
	if err != nil {
		return nil, 0, err
	}
	valBoxed, err := fb.coerceTo(val, valCarrier, CarrierBoxed)
	if err != nil {
		return nil, 0, err
	}
	result := fb.cur.NewCall(fb.b.runtime["dict_set"], containerBoxed, valBoxed, keyBoxed)
	if s.Lhs.Kind == astmodel.KindVar {
		if b, ok := fb.sc.lookup(s.Lhs.Str); ok {
			fb.cur.NewStore(result, b.slot)
		}
	}
	return result, CarrierBoxed, nil
}

func (fb *funcBuilder) globalCString(s string) value.Value {
	if g, ok := fb.b.strTab[s]; ok {
		return fb.gepFirstElem(g)
	}
	fb.b.strCount++
	data := constant.NewCharArrayFromString(s + "\x00")
	g := fb.b.module.NewGlobalDef(fmt.Sprintf(".str.%d", fb.b.strCount), data)
	fb.b.strTab[s] = g
	return fb.gepFirstElem(g)
}

func (fb *funcBuilder) gepFirstElem(g *ir.Global) value.Value {
	zero := constant.NewInt(types.I64, 0)
	return constant.NewGetElementPtr(g.ContentType, g, zero, zero)
}

func (fb *funcBuilder) evalExpr(e *astmodel.Expr) (value.Value, Carrier, error) {
	if e == nil {
		return nil, 0, nil
	}
	switch e.Kind {
	case astmodel.KindLiteral:
		return fb.evalLiteral(e)
	case astmodel.KindQuoted:
		strPtr := fb.globalCString(e.Str)
		sym := fb.cur.NewCall(fb.b.runtime["symbol_from_cstr"], strPtr)
		return sym, CarrierBoxed, nil
	case astmodel.KindVar:
		b, ok := fb.sc.lookup(e.Str)
		if !ok {
			return nil, 0, nbjiterr.New(nbjiterr.IRBuildError, "reference to undefined variable: "+e.Str)
		}
		return fb.cur.NewLoad(b.carrier.IRType(), b.slot), b.carrier, nil
	case astmodel.KindBinOp:
		return fb.evalBinOp(e)
	case astmodel.KindCall:
		return fb.evalCall(e)
	case astmodel.KindIndexGet:
		return fb.evalIndexGet(e)
	case astmodel.KindIndexSet:
		return fb.buildIndexSet(e)
	case astmodel.KindIf:
		return fb.buildIf(e)
	case astmodel.KindBlock:
		child := newScope(fb.sc)
		saved := fb.sc
		fb.sc = child
		v, c, err := fb.buildStmts(e.Stmts)
		fb.sc = saved
		return v, c, err
	case astmodel.KindLet:
		return fb.evalLet(e)
	case astmodel.KindAssign:
		return nil, 0, fb.buildAssign(e)
	case astmodel.KindFor, astmodel.KindWhile, astmodel.KindReturn, astmodel.KindBreak, astmodel.KindContinue:
		// Tail-position statement inside an expression context (e.g. the
		// last binding's body in a Let); buildStmt already handles these.
		return fb.buildStmt(e)
	}
	return nil, 0, nbjiterr.New(nbjiterr.IRBuildError, fmt.Sprintf("%s nodes are not supported by the IR builder's type model", e.Kind))
}

func (fb *funcBuilder) evalLiteral(e *astmodel.Expr) (value.Value, Carrier, error) {
	switch e.LitKind {
	case astmodel.LitInt:
		return constant.NewInt(types.I64, e.Int), CarrierInt, nil
	case astmodel.LitFloat:
		return constant.NewFloat(types.Double, e.Float), CarrierFloat, nil
	case astmodel.LitBool:
		var bv int64
		if e.Bool {
			bv = 1
		}
		return constant.NewInt(types.I1, bv), CarrierBool, nil
	case astmodel.LitString:
		return fb.globalCString(e.Str), CarrierBoxed, nil
	}
	return nil, 0, nbjiterr.New(nbjiterr.IRBuildError, "unknown literal kind")
}

func (fb *funcBuilder) evalIndexGet(e *astmodel.Expr) (value.Value, Carrier, error) {
	container, containerCarrier, err := fb.evalExpr(e.Lhs)
	if err != nil {
		return nil, 0, err
	}
	key, keyCarrier, err := fb.evalExpr(e.Rhs)
	if err != nil {
		return nil, 0, err
	}
	containerBoxed, err := fb.coerceTo(container, containerCarrier, CarrierBoxed)
	if err != nil {
		return nil, 0, err
	}
	keyBoxed, err := fb.coerceTo(key, keyCarrier, CarrierBoxed)
	if err != nil {
		return nil, 0, err
	}
	return fb.cur.NewCall(fb.b.runtime["dict_get"], containerBoxed, keyBoxed), CarrierBoxed, nil
}

func (fb *funcBuilder) evalLet(e *astmodel.Expr) (value.Value, Carrier, error) {
	child := newScope(fb.sc)
	saved := fb.sc
	fb.sc = child
	for _, binding := range e.Bindings {
		val, carrier, err := fb.evalExpr(binding.Init)
		if err != nil {
			fb.sc = saved
			return nil, 0, err
		}
		declCarrier := effectiveCarrier(carrier)
		slot := fb.cur.NewAlloca(declCarrier.IRType())
		coerced, err := fb.coerceTo(val, carrier, declCarrier)
		if err != nil {
			fb.sc = saved
			return nil, 0, err
		}
		fb.cur.NewStore(coerced, slot)
		fb.sc.define(binding.Name, slot, declCarrier)
	}
	v, c, err := fb.evalExpr(e.Body)
	fb.sc = saved
	return v, c, err
}

func (fb *funcBuilder) evalBinOp(e *astmodel.Expr) (value.Value, Carrier, error) {
	if e.Op == "&&" || e.Op == "||" {
		return fb.evalShortCircuit(e)
	}

	lhs, lhsCarrier, err := fb.evalExpr(e.Lhs)
	if err != nil {
		return nil, 0, err
	}
	rhs, rhsCarrier, err := fb.evalExpr(e.Rhs)
	if err != nil {
		return nil, 0, err
	}

	result := Promote(lhsCarrier, rhsCarrier)
	lhsC, err := fb.coerceTo(lhs, lhsCarrier, result)
	if err != nil {
		return nil, 0, err
	}
	rhsC, err := fb.coerceTo(rhs, rhsCarrier, result)
	if err != nil {
		return nil, 0, err
	}

	if IsComparison(e.Op) {
		v, err := fb.emitComparison(e.Op, lhsC, rhsC, result)
		return v, CarrierBool, err
	}
	v, err := fb.emitArith(e.Op, lhsC, rhsC, result)
	return v, result, err
}

func (fb *funcBuilder) emitArith(op string, lhs, rhs value.Value, carrier Carrier) (value.Value, error) {
	isFloat := carrier == CarrierFloat
	switch op {
	case "+":
		if isFloat {
			return fb.cur.NewFAdd(lhs, rhs), nil
		}
		return fb.cur.NewAdd(lhs, rhs), nil
	case "-":
		if isFloat {
			return fb.cur.NewFSub(lhs, rhs), nil
		}
		return fb.cur.NewSub(lhs, rhs), nil
	case "*":
		if isFloat {
			return fb.cur.NewFMul(lhs, rhs), nil
		}
		return fb.cur.NewMul(lhs, rhs), nil
	case "/":
		if isFloat {
			return fb.cur.NewFDiv(lhs, rhs), nil
		}
		return fb.cur.NewSDiv(lhs, rhs), nil
	case "%":
		if isFloat {
			return fb.cur.NewFRem(lhs, rhs), nil
		}
		return fb.cur.NewSRem(lhs, rhs), nil
	}
	return nil, nbjiterr.New(nbjiterr.IRBuildError, "unsupported arithmetic operator: "+op)
}

func (fb *funcBuilder) emitComparison(op string, lhs, rhs value.Value, operandCarrier Carrier) (value.Value, error) {
	if operandCarrier == CarrierFloat {
		pred, err := fpPred(op)
		if err != nil {
			return nil, err
		}
		return fb.cur.NewFCmp(pred, lhs, rhs), nil
	}
	pred, err := iPred(op)
	if err != nil {
		return nil, err
	}
	return fb.cur.NewICmp(pred, lhs, rhs), nil
}

func iPred(op string) (enum.IPred, error) {
	switch op {
	case "<":
		return enum.IPredSLT, nil
	case ">":
		return enum.IPredSGT, nil
	case "<=":
		return enum.IPredSLE, nil
	case ">=":
		return enum.IPredSGE, nil
	case "==":
		return enum.IPredEQ, nil
	case "!=":
		return enum.IPredNE, nil
	}
	return 0, nbjiterr.New(nbjiterr.IRBuildError, "unsupported integer comparison: "+op)
}

func fpPred(op string) (enum.FPred, error) {
	switch op {
	case "<":
		return enum.FPredOLT, nil
	case ">":
		return enum.FPredOGT, nil
	case "<=":
		return enum.FPredOLE, nil
	case ">=":
		return enum.FPredOGE, nil
	case "==":
		return enum.FPredOEQ, nil
	case "!=":
		return enum.FPredONE, nil
	}
	return 0, nbjiterr.New(nbjiterr.IRBuildError, "unsupported float comparison: "+op)
}

// evalShortCircuit compiles && / || as a two-block diamond with a phi, per
// spec §4.3: "a phi that selects the short-circuit constant or the
// evaluated right-hand side."
func (fb *funcBuilder) evalShortCircuit(e *astmodel.Expr) (value.Value, Carrier, error) {
	lhs, lhsCarrier, err := fb.evalExpr(e.Lhs)
	if err != nil {
		return nil, 0, err
	}
	lhsBool, err := fb.coerceTo(lhs, lhsCarrier, CarrierBool)
	if err != nil {
		return nil, 0, err
	}

	rhsBlock := fb.newBlock("sc.rhs")
	mergeBlock := fb.newBlock("sc.merge")
	shortCircuitBlock := fb.cur

	if e.Op == "&&" {
		fb.cur.NewCondBr(lhsBool, rhsBlock, mergeBlock)
	} else {
		fb.cur.NewCondBr(lhsBool, mergeBlock, rhsBlock)
	}

	fb.cur = rhsBlock
	rhs, rhsCarrier, err := fb.evalExpr(e.Rhs)
	if err != nil {
		return nil, 0, err
	}
	rhsBool, err := fb.coerceTo(rhs, rhsCarrier, CarrierBool)
	if err != nil {
		return nil, 0, err
	}
	rhsExit := fb.cur
	rhsExit.NewBr(mergeBlock)

	fb.cur = mergeBlock
	shortCircuitConst := constant.NewInt(types.I1, 0)
	if e.Op == "||" {
		shortCircuitConst = constant.NewInt(types.I1, 1)
	}
	phi := fb.cur.NewPhi(
		ir.NewIncoming(shortCircuitConst, shortCircuitBlock),
		ir.NewIncoming(rhsBool, rhsExit),
	)
	return phi, CarrierBool, nil
}

// buildIf emits then/else/merge blocks with a phi reconciling both branches,
// per spec §4.3: "the result type inferred from the then branch."
func (fb *funcBuilder) buildIf(e *astmodel.Expr) (value.Value, Carrier, error) {
	cond, condCarrier, err := fb.evalExpr(e.Cond)
	if err != nil {
		return nil, 0, err
	}
	condBool, err := fb.coerceTo(cond, condCarrier, CarrierBool)
	if err != nil {
		return nil, 0, err
	}

	thenBlock := fb.newBlock("if.then")
	elseBlock := fb.newBlock("if.else")
	mergeBlock := fb.newBlock("if.merge")
	fb.cur.NewCondBr(condBool, thenBlock, elseBlock)

	fb.cur = thenBlock
	childThen := newScope(fb.sc)
	fb.sc = childThen
	thenVal, thenCarrier, err := fb.buildBody(e.Then)
	if err != nil {
		return nil, 0, err
	}
	thenExit := fb.cur
	if thenExit.Term == nil {
		thenExit.NewBr(mergeBlock)
	}

	fb.cur = elseBlock
	childElse := newScope(childThen.parent)
	fb.sc = childElse
	var elseVal value.Value
	if e.Else != nil {
		elseVal, _, err = fb.buildBody(e.Else)
		if err != nil {
			return nil, 0, err
		}
	}
	elseExit := fb.cur
	if elseExit.Term == nil {
		elseExit.NewBr(mergeBlock)
	}
	fb.sc = childThen.parent

	fb.cur = mergeBlock
	if thenExit.Term != nil && elseExit.Term != nil {
		// Both branches returned/broke; nothing reaches merge. Leave merge
		// unreachable-but-present so callers always have a current block.
		return nil, 0, nil
	}
	if thenVal == nil && elseVal == nil {
		return nil, 0, nil
	}
	if thenVal == nil {
		thenVal, thenCarrier = elseVal, thenCarrier
	}
	if elseVal == nil {
		elseVal = thenVal
	}
	incomings := make([]*ir.Incoming, 0, 2)
	if thenExit.Term == nil {
		incomings = append(incomings, ir.NewIncoming(thenVal, thenExit))
	}
	if elseExit.Term == nil {
		incomings = append(incomings, ir.NewIncoming(elseVal, elseExit))
	}
	if len(incomings) == 1 {
		return incomings[0].X, thenCarrier, nil
	}
	return fb.cur.NewPhi(incomings...), thenCarrier, nil
}

// buildFor lowers a static-range loop into cond/body/inc/end blocks per spec
// §4.3: "a cond / body / inc / end loop with signed <= termination and a +1
// increment in the loop variable's type."
func (fb *funcBuilder) buildFor(e *astmodel.Expr) error {
	start, startCarrier, err := fb.evalExpr(e.RangeStart)
	if err != nil {
		return err
	}
	end, endCarrier, err := fb.evalExpr(e.RangeEnd)
	if err != nil {
		return err
	}
	loopCarrier := Promote(startCarrier, endCarrier)
	startC, err := fb.coerceTo(start, startCarrier, loopCarrier)
	if err != nil {
		return err
	}
	endC, err := fb.coerceTo(end, endCarrier, loopCarrier)
	if err != nil {
		return err
	}

	slot := fb.cur.NewAlloca(loopCarrier.IRType())
	fb.cur.NewStore(startC, slot)

	condBlock := fb.newBlock("for.cond")
	bodyBlock := fb.newBlock("for.body")
	incBlock := fb.newBlock("for.inc")
	endBlock := fb.newBlock("for.end")
	fb.cur.NewBr(condBlock)

	fb.cur = condBlock
	cur := fb.cur.NewLoad(loopCarrier.IRType(), slot)
	pred, err := iPred("<=")
	if err != nil {
		return err
	}
	var cmp value.Value
	if loopCarrier == CarrierFloat {
		fpp, _ := fpPred("<=")
		cmp = fb.cur.NewFCmp(fpp, cur, endC)
	} else {
		cmp = fb.cur.NewICmp(pred, cur, endC)
	}
	fb.cur.NewCondBr(cmp, bodyBlock, endBlock)

	fb.cur = bodyBlock
	child := newScope(fb.sc)
	savedScope := fb.sc
	fb.sc = child
	fb.sc.define(e.Str, slot, loopCarrier)
	fb.loops = append(fb.loops, loopCtx{breakTarget: endBlock, continueTarget: incBlock})
	_, _, err = fb.buildBody(e.Body)
	fb.loops = fb.loops[:len(fb.loops)-1]
	fb.sc = savedScope
	if err != nil {
		return err
	}
	if fb.cur.Term == nil {
		fb.cur.NewBr(incBlock)
	}

	fb.cur = incBlock
	curInc := fb.cur.NewLoad(loopCarrier.IRType(), slot)
	one := value.Value(constant.NewInt(types.I64, 1))
	if loopCarrier == CarrierFloat {
		one = constant.NewFloat(types.Double, 1)
		fb.cur.NewStore(fb.cur.NewFAdd(curInc, one), slot)
	} else {
		fb.cur.NewStore(fb.cur.NewAdd(curInc, one), slot)
	}
	fb.cur.NewBr(condBlock)

	fb.cur = endBlock
	return nil
}

// buildWhile lowers a While as the same skeleton as buildFor without an
// induction variable.
func (fb *funcBuilder) buildWhile(e *astmodel.Expr) error {
	condBlock := fb.newBlock("while.cond")
	bodyBlock := fb.newBlock("while.body")
	endBlock := fb.newBlock("while.end")
	fb.cur.NewBr(condBlock)

	fb.cur = condBlock
	cond, condCarrier, err := fb.evalExpr(e.Cond)
	if err != nil {
		return err
	}
	condBool, err := fb.coerceTo(cond, condCarrier, CarrierBool)
	if err != nil {
		return err
	}
	fb.cur.NewCondBr(condBool, bodyBlock, endBlock)

	fb.cur = bodyBlock
	child := newScope(fb.sc)
	savedScope := fb.sc
	fb.sc = child
	fb.loops = append(fb.loops, loopCtx{breakTarget: endBlock, continueTarget: condBlock})
	_, _, err = fb.buildBody(e.Body)
	fb.loops = fb.loops[:len(fb.loops)-1]
	fb.sc = savedScope
	if err != nil {
		return err
	}
	if fb.cur.Term == nil {
		fb.cur.NewBr(condBlock)
	}

	fb.cur = endBlock
	return nil
}

// evalCall lowers spec §4.3's three call cases: an already-emitted function
// in this module, a runtime-library name, or a forwarded external call with
// int64-coerced parameters. A single-argument call to "println" is lowered
// to printf with a format string chosen from the argument's IR type, and a
// dictionary construction (dictConstructorName) to the runtime's dict_new.
func (fb *funcBuilder) evalCall(e *astmodel.Expr) (value.Value, Carrier, error) {
	if e.Str == "println" && len(e.Args) == 1 {
		return fb.evalPrintln(e.Args[0])
	}
	if isDictConstruction(e) {
		return fb.cur.NewCall(fb.b.runtime["dict_new"]), CarrierBoxed, nil
	}

	if ret, ok := fb.b.known[e.Str]; ok {
		args, err := fb.evalArgsCoerced(e.Args, ret)
		if err != nil {
			return nil, 0, err
		}
		callee := fb.b.module.Funcs[fb.fnIndex(e.Str)]
		return fb.cur.NewCall(callee, args...), ret, nil
	}

	if sig, ok := runtimeSignatureByName(e.Str); ok {
		args := make([]value.Value, len(e.Args))
		for i, a := range e.Args {
			v, c, err := fb.evalExpr(a)
			if err != nil {
				return nil, 0, err
			}
			want := CarrierBoxed
			if i < len(sig.params) {
				want = sig.params[i]
			}
			coerced, err := fb.coerceTo(v, c, want)
			if err != nil {
				return nil, 0, err
			}
			args[i] = coerced
		}
		return fb.cur.NewCall(fb.b.runtime[e.Str], args...), sig.ret, nil
	}

	if extFn, ok := fb.b.externs[e.Str]; ok {
		args, err := fb.evalArgsCoerced(e.Args, CarrierInt)
		if err != nil {
			return nil, 0, err
		}
		return fb.cur.NewCall(extFn, args...), fb.b.externRet[e.Str], nil
	}

	return nil, 0, nbjiterr.New(nbjiterr.IRBuildError, "call to unknown function: "+e.Str)
}

func (fb *funcBuilder) fnIndex(name string) int {
	for i, f := range fb.b.module.Funcs {
		if f.Name() == name {
			return i
		}
	}
	return -1
}

func (fb *funcBuilder) evalArgsCoerced(args []*astmodel.Expr, want Carrier) ([]value.Value, error) {
	out := make([]value.Value, len(args))
	for i, a := range args {
		v, c, err := fb.evalExpr(a)
		if err != nil {
			return nil, err
		}
		coerced, err := fb.coerceTo(v, c, want)
		if err != nil {
			return nil, err
		}
		out[i] = coerced
	}
	return out, nil
}

var printfDecl *ir.Func

func (fb *funcBuilder) printf() *ir.Func {
	if f, ok := fb.b.externs["printf"]; ok {
		return f
	}
	f := fb.b.module.NewFunc("printf", types.I32, ir.NewParam("", types.NewPointer(types.I8)))
	f.Sig.Variadic = true
	fb.b.externs["printf"] = f
	return f
}

func (fb *funcBuilder) evalPrintln(arg *astmodel.Expr) (value.Value, Carrier, error) {
	v, c, err := fb.evalExpr(arg)
	if err != nil {
		return nil, 0, err
	}
	var format string
	switch c {
	case CarrierInt:
		format = "%lld\n"
	case CarrierFloat:
		format = "%f\n"
	case CarrierBool:
		widened, err := fb.coerceTo(v, c, CarrierInt)
		if err != nil {
			return nil, 0, err
		}
		v, c = widened, CarrierInt
		format = "%lld\n"
	case CarrierBoxed:
		asInt, err := fb.coerceTo(v, c, CarrierInt)
		if err != nil {
			return nil, 0, err
		}
		v, c = asInt, CarrierInt
		format = "%lld\n"
	}
	fmtPtr := fb.globalCString(format)
	call := fb.cur.NewCall(fb.printf(), fmtPtr, v)
	return call, CarrierInt, nil
}
