// Package partial implements the partial evaluator from spec §4.2: given an
// expression, an initial binding map, and a dynamic set of names that must
// remain symbolic, it folds everything decidable under those bindings and
// emits a semantically equivalent, possibly smaller, tree. internal/rewriter
// produces the trees this package consumes; internal/irgen consumes this
// package's output.
package partial

import "github.com/nbjit/engine/internal/astmodel"

// Eval partially evaluates e under env, returning the folded (or partially
// folded) tree. A nil result with a nil error means e was a statement that
// folded away entirely (an eliminated non-dynamic assignment, a dead If
// branch with no else); callers evaluating a Block must drop nil results
// rather than treat them as an error.
func Eval(e *astmodel.Expr, env *Env) (*astmodel.Expr, error) {
	if e == nil {
		return nil, nil
	}

	switch e.Kind {
	case astmodel.KindLiteral, astmodel.KindQuoted, astmodel.KindBreak, astmodel.KindContinue, astmodel.KindHole:
		return astmodel.DeepCopy(e), nil

	case astmodel.KindVar:
		if v, ok := env.Lookup(e.Str); ok {
			return astmodel.DeepCopy(v), nil
		}
		return astmodel.Var(e.Str), nil

	case astmodel.KindBinOp:
		return evalBinOp(e, env)

	case astmodel.KindCall:
		args, err := evalSlice(e.Args, env)
		if err != nil {
			return nil, err
		}
		return astmodel.Call(e.Str, args...), nil

	case astmodel.KindAssign:
		rhs, err := Eval(e.Rhs, env)
		if err != nil {
			return nil, err
		}
		env.Set(e.Str, rhs)
		if env.IsDynamic(e.Str) {
			return astmodel.Assign(e.Str, rhs), nil
		}
		return nil, nil

	case astmodel.KindIndexGet:
		lhs, err := Eval(e.Lhs, env)
		if err != nil {
			return nil, err
		}
		rhs, err := Eval(e.Rhs, env)
		if err != nil {
			return nil, err
		}
		return astmodel.IndexGet(lhs, rhs), nil

	case astmodel.KindIndexSet:
		lhs, err := Eval(e.Lhs, env)
		if err != nil {
			return nil, err
		}
		key, err := Eval(e.Rhs, env)
		if err != nil {
			return nil, err
		}
		val, err := Eval(e.Value, env)
		if err != nil {
			return nil, err
		}
		return astmodel.IndexSet(lhs, key, val), nil

	case astmodel.KindIf:
		return evalIf(e, env)

	case astmodel.KindFor:
		return evalFor(e, env)

	case astmodel.KindWhile:
		return evalWhile(e, env)

	case astmodel.KindLet:
		return evalLet(e, env)

	case astmodel.KindBlock:
		stmts, err := evalBlockStmts(e.Stmts, env)
		if err != nil {
			return nil, err
		}
		return astmodel.Block(stmts...), nil

	case astmodel.KindFunction:
		body, err := Eval(e.Body, env)
		if err != nil {
			return nil, err
		}
		return astmodel.Function(e.Str, append([]string(nil), e.Params...), body), nil

	case astmodel.KindReturn:
		val, err := Eval(e.Value, env)
		if err != nil {
			return nil, err
		}
		return astmodel.Return(val), nil

	case astmodel.KindTuple:
		elems, err := evalSlice(e.Elems, env)
		if err != nil {
			return nil, err
		}
		return astmodel.Tuple(elems...), nil

	case astmodel.KindVector:
		elems, err := evalSlice(e.Elems, env)
		if err != nil {
			return nil, err
		}
		return astmodel.Vector(elems...), nil

	case astmodel.KindAnnotation:
		args, err := evalSlice(e.Args, env)
		if err != nil {
			return nil, err
		}
		return astmodel.Annotation(e.Str, args...), nil
	}

	return astmodel.DeepCopy(e), nil
}

func evalSlice(in []*astmodel.Expr, env *Env) ([]*astmodel.Expr, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]*astmodel.Expr, len(in))
	for i, e := range in {
		v, err := Eval(e, env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// evalBlockStmts evaluates a statement sequence in order, dropping any
// statement that folds away to nil.
func evalBlockStmts(in []*astmodel.Expr, env *Env) ([]*astmodel.Expr, error) {
	out := make([]*astmodel.Expr, 0, len(in))
	for _, stmt := range in {
		v, err := Eval(stmt, env)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

func evalBinOp(e *astmodel.Expr, env *Env) (*astmodel.Expr, error) {
	if e.Op == opAnd || e.Op == opOr {
		return evalLogical(e, env)
	}

	lhs, err := Eval(e.Lhs, env)
	if err != nil {
		return nil, err
	}
	rhs, err := Eval(e.Rhs, env)
	if err != nil {
		return nil, err
	}
	if lhs.IsLiteral() && rhs.IsLiteral() {
		numeric := isNumericLit(lhs) && isNumericLit(rhs)
		if isArithOrCompare(e.Op) && numeric {
			return foldArith(e.Op, lhs, rhs)
		}
		if (e.Op == "==" || e.Op == "!=") && lhs.LitKind == rhs.LitKind {
			return foldEquality(e.Op, lhs, rhs)
		}
	}
	return astmodel.BinOp(e.Op, lhs, rhs), nil
}

func foldEquality(op string, lhs, rhs *astmodel.Expr) (*astmodel.Expr, error) {
	var eq bool
	switch lhs.LitKind {
	case astmodel.LitBool:
		eq = lhs.Bool == rhs.Bool
	case astmodel.LitString:
		eq = lhs.Str == rhs.Str
	case astmodel.LitInt:
		eq = lhs.Int == rhs.Int
	case astmodel.LitFloat:
		eq = lhs.Float == rhs.Float
	}
	if op == "!=" {
		eq = !eq
	}
	return astmodel.Bool(eq), nil
}

// evalLogical implements && / || short-circuit folding per spec §4.2: "∧
// with a literal false yields literal false regardless of the other side;
// ∨ with a literal true yields literal true."
func evalLogical(e *astmodel.Expr, env *Env) (*astmodel.Expr, error) {
	lhs, err := Eval(e.Lhs, env)
	if err != nil {
		return nil, err
	}

	if lhs.IsLiteral() && lhs.LitKind == astmodel.LitBool {
		if e.Op == opAnd && !lhs.Bool {
			return astmodel.Bool(false), nil
		}
		if e.Op == opOr && lhs.Bool {
			return astmodel.Bool(true), nil
		}
		rhs, err := Eval(e.Rhs, env)
		if err != nil {
			return nil, err
		}
		if rhs.IsLiteral() && rhs.LitKind == astmodel.LitBool {
			if e.Op == opAnd {
				return astmodel.Bool(lhs.Bool && rhs.Bool), nil
			}
			return astmodel.Bool(lhs.Bool || rhs.Bool), nil
		}
		return astmodel.BinOp(e.Op, lhs, rhs), nil
	}

	rhs, err := Eval(e.Rhs, env)
	if err != nil {
		return nil, err
	}
	return astmodel.BinOp(e.Op, lhs, rhs), nil
}

func evalIf(e *astmodel.Expr, env *Env) (*astmodel.Expr, error) {
	cond, err := Eval(e.Cond, env)
	if err != nil {
		return nil, err
	}
	if cond.IsLiteral() && cond.LitKind == astmodel.LitBool {
		if cond.Bool {
			return Eval(e.Then, env)
		}
		return Eval(e.Else, env)
	}

	thenEnv := env.Clone()
	then, err := Eval(e.Then, thenEnv)
	if err != nil {
		return nil, err
	}
	var els *astmodel.Expr
	if e.Else != nil {
		elseEnv := env.Clone()
		els, err = Eval(e.Else, elseEnv)
		if err != nil {
			return nil, err
		}
	}

	for _, n := range assignedNames(e.Then) {
		env.Forget(n)
	}
	for _, n := range assignedNames(e.Else) {
		env.Forget(n)
	}
	return astmodel.If(cond, then, els), nil
}

// MaxUnrollLength is the spec §4.2 unroll threshold: literal integer ranges
// start..end (end inclusive, end-start+1 iterations) of length <=
// MaxUnrollLength are fully unrolled. Exported as a package variable rather
// than a constant so internal/session's WithUnrollLimit option can tune it;
// session.New assigns it process-wide, so the last Session constructed sets
// the limit every Session uses. The teacher's own config.go exposes
// similar knobs (capBytes, ttl) as functional options rather than constants.
var MaxUnrollLength = 10

func evalFor(e *astmodel.Expr, env *Env) (*astmodel.Expr, error) {
	start, err := Eval(e.RangeStart, env)
	if err != nil {
		return nil, err
	}
	end, err := Eval(e.RangeEnd, env)
	if err != nil {
		return nil, err
	}

	if start.IsLiteral() && start.LitKind == astmodel.LitInt && end.IsLiteral() && end.LitKind == astmodel.LitInt {
		length := end.Int - start.Int + 1
		if length >= 0 && length <= int64(MaxUnrollLength) {
			var out []*astmodel.Expr
			for i := start.Int; i <= end.Int; i++ {
				env.Set(e.Str, astmodel.Int(i))
				body, err := Eval(e.Body, env)
				if err != nil {
					return nil, err
				}
				if body == nil {
					continue
				}
				if body.Kind == astmodel.KindBlock {
					out = append(out, body.Stmts...)
				} else {
					out = append(out, body)
				}
			}
			env.Forget(e.Str)
			if len(out) == 0 {
				return nil, nil
			}
			return astmodel.Block(out...), nil
		}
	}

	bodyEnv := env.Clone()
	bodyEnv.Forget(e.Str)
	body, err := Eval(e.Body, bodyEnv)
	if err != nil {
		return nil, err
	}
	for _, n := range assignedNames(e.Body) {
		env.Forget(n)
	}
	return astmodel.For(e.Str, start, end, body), nil
}

func evalWhile(e *astmodel.Expr, env *Env) (*astmodel.Expr, error) {
	cond, err := Eval(e.Cond, env)
	if err != nil {
		return nil, err
	}
	if cond.IsLiteral() && cond.LitKind == astmodel.LitBool && !cond.Bool {
		return nil, nil
	}

	bodyEnv := env.Clone()
	body, err := Eval(e.Body, bodyEnv)
	if err != nil {
		return nil, err
	}
	for _, n := range assignedNames(e.Body) {
		env.Forget(n)
	}
	return astmodel.While(cond, body), nil
}

func evalLet(e *astmodel.Expr, env *Env) (*astmodel.Expr, error) {
	var remaining []astmodel.Binding
	for _, b := range e.Bindings {
		init, err := Eval(b.Init, env)
		if err != nil {
			return nil, err
		}
		env.Set(b.Name, init)
		if env.IsDynamic(b.Name) {
			remaining = append(remaining, astmodel.Binding{Name: b.Name, Init: init})
		}
	}

	body, err := Eval(e.Body, env)
	if err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		return body, nil
	}
	return astmodel.Let(remaining, body), nil
}
