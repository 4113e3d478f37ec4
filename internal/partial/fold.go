package partial

import (
	"github.com/nbjit/engine/internal/astmodel"
	"github.com/nbjit/engine/internal/nbjiterr"
)

// foldArith folds a binary arithmetic or comparison operator over two
// literal operands, per spec §4.2: "Integers and floats promote to floats
// in mixed arithmetic." Booleans are not valid arithmetic operands; callers
// must route && and || through foldLogical instead.
func foldArith(op string, lhs, rhs *astmodel.Expr) (*astmodel.Expr, error) {
	if lhs.LitKind == astmodel.LitFloat || rhs.LitKind == astmodel.LitFloat {
		return foldFloat(op, litAsFloat(lhs), litAsFloat(rhs))
	}
	return foldInt(op, lhs.Int, rhs.Int)
}

func litAsFloat(e *astmodel.Expr) float64 {
	if e.LitKind == astmodel.LitFloat {
		return e.Float
	}
	return float64(e.Int)
}

func foldInt(op string, a, b int64) (*astmodel.Expr, error) {
	switch op {
	case "+":
		return astmodel.Int(a + b), nil
	case "-":
		return astmodel.Int(a - b), nil
	case "*":
		return astmodel.Int(a * b), nil
	case "/":
		if b == 0 {
			return nil, nbjiterr.New(nbjiterr.PartialEvalFailure, "integer division by zero")
		}
		return astmodel.Int(a / b), nil
	case "%":
		if b == 0 {
			return nil, nbjiterr.New(nbjiterr.PartialEvalFailure, "integer modulo by zero")
		}
		return astmodel.Int(a % b), nil
	case "<":
		return astmodel.Bool(a < b), nil
	case ">":
		return astmodel.Bool(a > b), nil
	case "<=":
		return astmodel.Bool(a <= b), nil
	case ">=":
		return astmodel.Bool(a >= b), nil
	case "==":
		return astmodel.Bool(a == b), nil
	case "!=":
		return astmodel.Bool(a != b), nil
	}
	return nil, nbjiterr.New(nbjiterr.PartialEvalFailure, "unsupported integer operator: "+op)
}

func foldFloat(op string, a, b float64) (*astmodel.Expr, error) {
	switch op {
	case "+":
		return astmodel.Float(a + b), nil
	case "-":
		return astmodel.Float(a - b), nil
	case "*":
		return astmodel.Float(a * b), nil
	case "/":
		return astmodel.Float(a / b), nil
	case "<":
		return astmodel.Bool(a < b), nil
	case ">":
		return astmodel.Bool(a > b), nil
	case "<=":
		return astmodel.Bool(a <= b), nil
	case ">=":
		return astmodel.Bool(a >= b), nil
	case "==":
		return astmodel.Bool(a == b), nil
	case "!=":
		return astmodel.Bool(a != b), nil
	}
	return nil, nbjiterr.New(nbjiterr.PartialEvalFailure, "unsupported float operator: "+op)
}

const (
	opAnd = "&&"
	opOr  = "||"
)

func isNumericLit(e *astmodel.Expr) bool {
	return e.LitKind == astmodel.LitInt || e.LitKind == astmodel.LitFloat
}

func isArithOrCompare(op string) bool {
	switch op {
	case "+", "-", "*", "/", "%", "<", ">", "<=", ">=", "==", "!=":
		return true
	}
	return false
}
