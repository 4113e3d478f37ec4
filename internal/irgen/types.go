// Package irgen implements spec §4.3's IR builder: it lowers a single
// astmodel.Expr function definition into an in-memory LLVM module using
// github.com/llir/llvm, the pack's closest pure-Go, cgo-free code-emission
// library (no example repo ships a native code generator; the teacher's
// domain is caching, not compilation — see DESIGN.md for why this dependency
// was adopted rather than hand-rolled).
package irgen

import "github.com/llir/llvm/ir/types"

// Carrier is the IR builder's type model from spec §4.3: three primitive
// carrier types plus one opaque boxed pointer used for dictionaries,
// symbols, and any value crossing a runtime call.
type Carrier uint8

const (
	CarrierInt Carrier = iota
	CarrierFloat
	CarrierBool
	CarrierBoxed
)

func (c Carrier) String() string {
	switch c {
	case CarrierInt:
		return "int64"
	case CarrierFloat:
		return "float64"
	case CarrierBool:
		return "bool"
	case CarrierBoxed:
		return "boxed"
	default:
		return "invalid"
	}
}

// IRType returns the LLVM type backing c: i64, double, i1, or i8* for the
// boxed pointer (the runtime support library treats every boxed value as an
// opaque pointer-width handle).
func (c Carrier) IRType() types.Type {
	switch c {
	case CarrierFloat:
		return types.Double
	case CarrierBool:
		return types.I1
	case CarrierBoxed:
		return types.NewPointer(types.I8)
	default:
		return types.I64
	}
}

// Promote implements spec §4.3's arithmetic promotion rules: "Integers and
// floats promote to floats in mixed arithmetic. Booleans in a mixed
// arithmetic context widen to integer first."
func Promote(a, b Carrier) Carrier {
	if a == CarrierBool {
		a = CarrierInt
	}
	if b == CarrierBool {
		b = CarrierInt
	}
	if a == CarrierFloat || b == CarrierFloat {
		return CarrierFloat
	}
	return CarrierInt
}

// IsArithComparable reports whether op is one of the arithmetic or ordering
// operators the builder lowers via Promote, as opposed to the two logical
// short-circuit operators compiled as control-flow diamonds.
func IsArithComparable(op string) bool {
	switch op {
	case "+", "-", "*", "/", "%", "<", ">", "<=", ">=", "==", "!=":
		return true
	}
	return false
}

func IsComparison(op string) bool {
	switch op {
	case "<", ">", "<=", ">=", "==", "!=":
		return true
	}
	return false
}
