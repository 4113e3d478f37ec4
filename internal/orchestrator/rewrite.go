package orchestrator

import "github.com/nbjit/engine/internal/astmodel"

// substituteHoles walks e and replaces every Hole node whose ordinal has an
// entry in replacements with that replacement expression. The rewriter
// permits a hole annotation anywhere its generic walk recurses, not only at
// block-statement position, so this walk mirrors that full recursion rather
// than assuming holes sit only in Stmts.
func substituteHoles(e *astmodel.Expr, replacements map[int]*astmodel.Expr) *astmodel.Expr {
	if e == nil {
		return nil
	}
	if e.Kind == astmodel.KindHole {
		if r, ok := replacements[e.Ordinal]; ok {
			return r
		}
		return e
	}

	cp := *e
	cp.Lhs = substituteHoles(e.Lhs, replacements)
	cp.Rhs = substituteHoles(e.Rhs, replacements)
	cp.Value = substituteHoles(e.Value, replacements)
	cp.Cond = substituteHoles(e.Cond, replacements)
	cp.Then = substituteHoles(e.Then, replacements)
	cp.Else = substituteHoles(e.Else, replacements)
	cp.RangeStart = substituteHoles(e.RangeStart, replacements)
	cp.RangeEnd = substituteHoles(e.RangeEnd, replacements)
	cp.Body = substituteHoles(e.Body, replacements)
	if e.Bindings != nil {
		cp.Bindings = make([]astmodel.Binding, len(e.Bindings))
		for i, b := range e.Bindings {
			cp.Bindings[i] = astmodel.Binding{Name: b.Name, Init: substituteHoles(b.Init, replacements)}
		}
	}
	cp.Stmts = substituteSlice(e.Stmts, replacements)
	cp.Elems = substituteSlice(e.Elems, replacements)
	cp.Args = substituteSlice(e.Args, replacements)
	return &cp
}

func substituteSlice(in []*astmodel.Expr, replacements map[int]*astmodel.Expr) []*astmodel.Expr {
	if in == nil {
		return nil
	}
	out := make([]*astmodel.Expr, len(in))
	for i, e := range in {
		out[i] = substituteHoles(e, replacements)
	}
	return out
}

// flattenBlocks collapses any Block whose Stmts directly contain another
// Block, splicing the inner statements inline — the "flatten immediate
// nested blocks" cleanup spec §4.6 step 5 calls for after a single-statement
// Hole substitution leaves a block nested one level deeper than necessary.
func flattenBlocks(e *astmodel.Expr) *astmodel.Expr {
	if e == nil {
		return nil
	}

	cp := *e
	cp.Lhs = flattenBlocks(e.Lhs)
	cp.Rhs = flattenBlocks(e.Rhs)
	cp.Value = flattenBlocks(e.Value)
	cp.Cond = flattenBlocks(e.Cond)
	cp.Then = flattenBlocks(e.Then)
	cp.Else = flattenBlocks(e.Else)
	cp.RangeStart = flattenBlocks(e.RangeStart)
	cp.RangeEnd = flattenBlocks(e.RangeEnd)
	cp.Body = flattenBlocks(e.Body)
	if e.Bindings != nil {
		cp.Bindings = make([]astmodel.Binding, len(e.Bindings))
		for i, b := range e.Bindings {
			cp.Bindings[i] = astmodel.Binding{Name: b.Name, Init: flattenBlocks(b.Init)}
		}
	}
	cp.Elems = flattenSlice(e.Elems)
	cp.Args = flattenSlice(e.Args)

	if e.Kind == astmodel.KindBlock {
		var out []*astmodel.Expr
		for _, s := range e.Stmts {
			fs := flattenBlocks(s)
			if fs.Kind == astmodel.KindBlock {
				out = append(out, fs.Stmts...)
			} else {
				out = append(out, fs)
			}
		}
		cp.Stmts = out
		return &cp
	}

	cp.Stmts = flattenSlice(e.Stmts)
	return &cp
}

func flattenSlice(in []*astmodel.Expr) []*astmodel.Expr {
	if in == nil {
		return nil
	}
	out := make([]*astmodel.Expr, len(in))
	for i, e := range in {
		out[i] = flattenBlocks(e)
	}
	return out
}
