// Package rewriter implements the hole rewriter described in spec §4.1: it
// walks a normalized AST once, converting recognized hole annotations into
// explicit astmodel.Hole nodes with a fresh monotonic ordinal, then walks the
// rewritten main block once more to compute every hole's guard-symbol set.
//
// The first walk is Walker.visit, one recursive method that copies every
// structural field of a node, rather than a generic ast.Visitor-style
// interface: astmodel.Expr is a closed tagged-variant sum type (see
// internal/astmodel), not an open interface hierarchy like go/ast, so a
// direct recursive walk is the idiomatic fit and avoids an unnecessary
// interface indirection on every node.
package rewriter

import (
	"github.com/nbjit/engine/internal/astmodel"
	"github.com/nbjit/engine/internal/nbjiterr"
)

// HoleAnnotationName is the annotation recognized as a hole marker before
// normalization. Any other Annotation node passes through untouched, per
// spec §4.1 ("Annotations unrelated to holes pass through untouched").
const HoleAnnotationName = "hole"

// HoleBlock is the body of a single hole after extraction: a Block
// expression with the hole marker removed and the original statements
// preserved (spec §3).
type HoleBlock struct {
	Body *astmodel.Expr // always Kind == KindBlock
}

// Result is the output of Rewrite: a normalized main block, the parallel
// list of hole bodies, and each hole's guard-symbol set, all indexed by
// ordinal.
type Result struct {
	Main       *astmodel.Expr // Kind == KindBlock
	Holes      []HoleBlock
	GuardSyms  [][]string
}

// Walker carries the mutable state threaded through one Rewrite call: the
// next hole ordinal to assign and the accumulated hole bodies.
type Walker struct {
	nextOrdinal int
	holeBodies  []*astmodel.Expr
}

// Rewrite normalizes root into a main block with holes replaced, and returns
// the extracted hole bodies and guard sets. root must itself be a block
// (or promotable to one — a single top-level expression is wrapped) since
// the rewriter's guard-set computation requires a statement sequence to scan
// backwards from each hole.
func Rewrite(root *astmodel.Expr) (*Result, error) {
	if root == nil {
		return nil, nbjiterr.New(nbjiterr.InvalidAST, "nil AST root")
	}

	block := root
	if block.Kind != astmodel.KindBlock {
		block = astmodel.Block(root)
	}

	w := &Walker{}
	newStmts := make([]*astmodel.Expr, 0, len(block.Stmts))
	for _, stmt := range block.Stmts {
		rewritten, err := w.visit(stmt)
		if err != nil {
			return nil, err
		}
		newStmts = append(newStmts, rewritten)
	}
	main := astmodel.Block(newStmts...)

	guardSyms, err := computeGuardSets(main, len(w.holeBodies))
	if err != nil {
		return nil, err
	}

	holes := make([]HoleBlock, len(w.holeBodies))
	for i, body := range w.holeBodies {
		holes[i] = HoleBlock{Body: body}
		guardSyms[i] = ExtendGuardWithBody(guardSyms[i], body)
	}
	patchGuardSyms(main, guardSyms)

	return &Result{Main: main, Holes: holes, GuardSyms: guardSyms}, nil
}

// visit walks e, converting any top-level or nested hole annotation into an
// explicit Hole node. It rejects nested holes (a hole whose own body
// contains another hole) per §4.1's validation rule.
func (w *Walker) visit(e *astmodel.Expr) (*astmodel.Expr, error) {
	if e == nil {
		return nil, nil
	}

	if e.Kind == astmodel.KindAnnotation && e.Str == HoleAnnotationName {
		return w.extractHole(e)
	}

	cp := *e
	var err error
	if cp.Lhs, err = w.visit(e.Lhs); err != nil {
		return nil, err
	}
	if cp.Rhs, err = w.visit(e.Rhs); err != nil {
		return nil, err
	}
	if cp.Value, err = w.visit(e.Value); err != nil {
		return nil, err
	}
	if cp.Cond, err = w.visit(e.Cond); err != nil {
		return nil, err
	}
	if cp.Then, err = w.visit(e.Then); err != nil {
		return nil, err
	}
	if cp.Else, err = w.visit(e.Else); err != nil {
		return nil, err
	}
	if cp.RangeStart, err = w.visit(e.RangeStart); err != nil {
		return nil, err
	}
	if cp.RangeEnd, err = w.visit(e.RangeEnd); err != nil {
		return nil, err
	}
	if cp.Body, err = w.visit(e.Body); err != nil {
		return nil, err
	}
	if e.Bindings != nil {
		cp.Bindings = make([]astmodel.Binding, len(e.Bindings))
		for i, b := range e.Bindings {
			init, err := w.visit(b.Init)
			if err != nil {
				return nil, err
			}
			cp.Bindings[i] = astmodel.Binding{Name: b.Name, Init: init}
		}
	}
	if cp.Stmts, err = w.visitSlice(e.Stmts); err != nil {
		return nil, err
	}
	if cp.Elems, err = w.visitSlice(e.Elems); err != nil {
		return nil, err
	}
	if cp.Args, err = w.visitSlice(e.Args); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (w *Walker) visitSlice(in []*astmodel.Expr) ([]*astmodel.Expr, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]*astmodel.Expr, len(in))
	for i, e := range in {
		v, err := w.visit(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// extractHole converts a hole annotation node into an explicit Hole node,
// recording its body for later guard-set computation. A hole body that is a
// single expression is promoted to a one-statement block so every hole
// presents a uniform Block shape downstream (§4.1's "tie-break" rule).
func (w *Walker) extractHole(ann *astmodel.Expr) (*astmodel.Expr, error) {
	if len(ann.Args) != 1 {
		return nil, nbjiterr.New(nbjiterr.InvalidAST, "hole annotation must wrap exactly one expression").
			WithSuggestion("write @hole <single statement>, not @hole(a, b)")
	}
	body := ann.Args[0]
	if astmodel.ContainsAnnotation(body, HoleAnnotationName) {
		return nil, nbjiterr.New(nbjiterr.InvalidAST, "nested hole: a hole body may not itself contain a hole")
	}

	block := body
	if block.Kind != astmodel.KindBlock {
		block = astmodel.Block(body)
	}

	ordinal := w.nextOrdinal
	w.nextOrdinal++
	w.holeBodies = append(w.holeBodies, block)

	// Guard syms are filled in once the whole main block is known; a
	// placeholder Hole node is emitted here and patched by patchGuardSyms.
	return astmodel.Hole(nil, ordinal), nil
}
