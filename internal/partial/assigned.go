package partial

import "github.com/nbjit/engine/internal/astmodel"

// assignedNames returns the ordered, deduplicated list of names that e
// assigns to anywhere in its subtree: Assign targets and For loop variables.
// It does not descend into Hole nodes, which are opaque at this stage. Used
// to widen the enclosing Env after a symbolic branch: any name assigned
// inside a branch not taken for certain must be forgotten rather than left
// with a possibly-stale folded value.
func assignedNames(e *astmodel.Expr) []string {
	seen := map[string]bool{}
	var order []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			order = append(order, n)
		}
	}
	var walk func(*astmodel.Expr)
	walk = func(n *astmodel.Expr) {
		if n == nil {
			return
		}
		switch n.Kind {
		case astmodel.KindHole:
			return
		case astmodel.KindAssign:
			add(n.Str)
			walk(n.Rhs)
			return
		case astmodel.KindFor:
			add(n.Str)
			walk(n.RangeStart)
			walk(n.RangeEnd)
			walk(n.Body)
			return
		}
		walk(n.Lhs)
		walk(n.Rhs)
		walk(n.Value)
		walk(n.Cond)
		walk(n.Then)
		walk(n.Else)
		walk(n.RangeStart)
		walk(n.RangeEnd)
		walk(n.Body)
		for _, b := range n.Bindings {
			walk(b.Init)
		}
		for _, s := range n.Stmts {
			walk(s)
		}
		for _, el := range n.Elems {
			walk(el)
		}
		for _, a := range n.Args {
			walk(a)
		}
	}
	walk(e)
	return order
}
