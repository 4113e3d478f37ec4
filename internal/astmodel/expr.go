// Package astmodel defines the tagged-variant expression tree shared by every
// compilation stage: the hole rewriter, the partial evaluator, and the IR
// builder all consume and produce astmodel.Expr values. Nodes are immutable
// after construction; every transformation in this codebase builds new trees
// instead of mutating existing ones.
package astmodel

// Kind tags the variant stored in an Expr. Go has no native sum type, so we
// follow the single-struct-plus-enum-tag-plus-union-of-variants approach the
// specification calls for explicitly.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindLiteral
	KindQuoted
	KindVar
	KindBinOp
	KindCall
	KindAssign
	KindIndexGet
	KindIndexSet
	KindIf
	KindFor
	KindWhile
	KindLet
	KindBlock
	KindFunction
	KindReturn
	KindBreak
	KindContinue
	KindTuple
	KindVector
	KindHole
	KindAnnotation
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "Literal"
	case KindQuoted:
		return "Quoted"
	case KindVar:
		return "Var"
	case KindBinOp:
		return "BinOp"
	case KindCall:
		return "Call"
	case KindAssign:
		return "Assign"
	case KindIndexGet:
		return "IndexGet"
	case KindIndexSet:
		return "IndexSet"
	case KindIf:
		return "If"
	case KindFor:
		return "For"
	case KindWhile:
		return "While"
	case KindLet:
		return "Let"
	case KindBlock:
		return "Block"
	case KindFunction:
		return "Function"
	case KindReturn:
		return "Return"
	case KindBreak:
		return "Break"
	case KindContinue:
		return "Continue"
	case KindTuple:
		return "Tuple"
	case KindVector:
		return "Vector"
	case KindHole:
		return "Hole"
	case KindAnnotation:
		return "Annotation"
	default:
		return "Invalid"
	}
}

// LitKind distinguishes the primitive payload carried by a KindLiteral node.
type LitKind uint8

const (
	LitInt LitKind = iota
	LitFloat
	LitBool
	LitString
)

// Binding is a single name/value pair inside a Let node.
type Binding struct {
	Name string
	Init *Expr
}

// Expr is the single struct used for every node variant. Only the fields
// relevant to Kind are meaningful; the rest are left zero. Position metadata
// is intentionally absent — it is stripped before a tree ever reaches the
// core (see Fingerprint in hash.go) and callers needing diagnostics attach it
// out of band.
type Expr struct {
	Kind Kind

	// KindLiteral
	LitKind LitKind
	Int     int64
	Float   float64
	Bool    bool
	Str     string

	// KindQuoted, KindVar: Str holds the name.
	// KindAnnotation: Str holds the annotation name, Args holds its arguments.

	// KindBinOp
	Op       string
	Lhs, Rhs *Expr

	// KindCall: Str holds the callee name, Args holds arguments.
	// KindAssign: Str holds the target name, Rhs holds the value.
	// KindIndexGet: Lhs=container, Rhs=key.
	// KindIndexSet: Lhs=container, Rhs=key, Value=value.
	Value *Expr

	// KindIf: Cond, Then, Else (Else may be nil).
	Cond, Then, Else *Expr

	// KindFor: Str is the loop variable; RangeStart/RangeEnd bound the range;
	// Body is the loop body.
	RangeStart, RangeEnd *Expr
	Body                 *Expr

	// KindWhile: Cond, Body.
	// KindLet: Bindings, Body.
	Bindings []Binding

	// KindBlock: Stmts.
	// KindFunction: Str is the name, Params the parameter names, Body the
	// block.
	Stmts  []*Expr
	Params []string

	// KindReturn: Value may be nil.
	// KindTuple, KindVector: Elems.
	Elems []*Expr

	// KindCall, KindAnnotation
	Args []*Expr

	// KindHole
	GuardSyms []string
	Ordinal   int
}

// Literal constructors.

func Int(v int64) *Expr    { return &Expr{Kind: KindLiteral, LitKind: LitInt, Int: v} }
func Float(v float64) *Expr { return &Expr{Kind: KindLiteral, LitKind: LitFloat, Float: v} }
func Bool(v bool) *Expr    { return &Expr{Kind: KindLiteral, LitKind: LitBool, Bool: v} }
func String(v string) *Expr { return &Expr{Kind: KindLiteral, LitKind: LitString, Str: v} }

func Quoted(name string) *Expr { return &Expr{Kind: KindQuoted, Str: name} }
func Var(name string) *Expr    { return &Expr{Kind: KindVar, Str: name} }

func BinOp(op string, lhs, rhs *Expr) *Expr {
	return &Expr{Kind: KindBinOp, Op: op, Lhs: lhs, Rhs: rhs}
}

func Call(callee string, args ...*Expr) *Expr {
	return &Expr{Kind: KindCall, Str: callee, Args: args}
}

func Assign(target string, rhs *Expr) *Expr {
	return &Expr{Kind: KindAssign, Str: target, Rhs: rhs}
}

func IndexGet(container, key *Expr) *Expr {
	return &Expr{Kind: KindIndexGet, Lhs: container, Rhs: key}
}

func IndexSet(container, key, value *Expr) *Expr {
	return &Expr{Kind: KindIndexSet, Lhs: container, Rhs: key, Value: value}
}

func If(cond, then, els *Expr) *Expr {
	return &Expr{Kind: KindIf, Cond: cond, Then: then, Else: els}
}

func For(loopVar string, start, end, body *Expr) *Expr {
	return &Expr{Kind: KindFor, Str: loopVar, RangeStart: start, RangeEnd: end, Body: body}
}

func While(cond, body *Expr) *Expr {
	return &Expr{Kind: KindWhile, Cond: cond, Body: body}
}

func Let(bindings []Binding, body *Expr) *Expr {
	return &Expr{Kind: KindLet, Bindings: bindings, Body: body}
}

func Block(stmts ...*Expr) *Expr { return &Expr{Kind: KindBlock, Stmts: stmts} }

func Function(name string, params []string, body *Expr) *Expr {
	return &Expr{Kind: KindFunction, Str: name, Params: params, Body: body}
}

func Return(value *Expr) *Expr { return &Expr{Kind: KindReturn, Value: value} }

func Break() *Expr    { return &Expr{Kind: KindBreak} }
func Continue() *Expr { return &Expr{Kind: KindContinue} }

func Tuple(elems ...*Expr) *Expr  { return &Expr{Kind: KindTuple, Elems: elems} }
func Vector(elems ...*Expr) *Expr { return &Expr{Kind: KindVector, Elems: elems} }

func Hole(guardSyms []string, ordinal int) *Expr {
	return &Expr{Kind: KindHole, GuardSyms: guardSyms, Ordinal: ordinal}
}

func Annotation(name string, args ...*Expr) *Expr {
	return &Expr{Kind: KindAnnotation, Str: name, Args: args}
}

// IsLiteral reports whether e is a fully-folded literal.
func (e *Expr) IsLiteral() bool { return e != nil && e.Kind == KindLiteral }
