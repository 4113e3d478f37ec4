package astmodel

// Visit calls fn for e and, in pre-order, every descendant. fn may return
// false to stop descending into the current node's children (it is still
// called for siblings). Visit does not recurse into KindHole guard lists —
// those are names, not subtrees.
func Visit(e *Expr, fn func(*Expr) bool) {
	if e == nil {
		return
	}
	if !fn(e) {
		return
	}
	Visit(e.Lhs, fn)
	Visit(e.Rhs, fn)
	Visit(e.Value, fn)
	Visit(e.Cond, fn)
	Visit(e.Then, fn)
	Visit(e.Else, fn)
	Visit(e.RangeStart, fn)
	Visit(e.RangeEnd, fn)
	Visit(e.Body, fn)
	for _, b := range e.Bindings {
		Visit(b.Init, fn)
	}
	for _, s := range e.Stmts {
		Visit(s, fn)
	}
	for _, el := range e.Elems {
		Visit(el, fn)
	}
	for _, a := range e.Args {
		Visit(a, fn)
	}
}

// FreeVars returns the ordered, deduplicated list of names referenced or
// bound anywhere within e (Var references, Assign targets and For loop
// variables), in pre-order traversal order except that an Assign target is
// listed after the names in its right-hand side. This is the building
// block the hole rewriter uses to compute guard-symbol sets (§3, §4.1): a
// name belongs in a hole's guard set if it is a free variable of the hole
// body or of any statement preceding the hole.
func FreeVars(e *Expr) []string {
	seen := make(map[string]bool)
	var order []string
	var visit func(n *Expr) bool
	visit = func(n *Expr) bool {
		switch n.Kind {
		case KindVar:
			if !seen[n.Str] {
				seen[n.Str] = true
				order = append(order, n.Str)
			}
		case KindAssign:
			Visit(n.Rhs, visit)
			if !seen[n.Str] {
				seen[n.Str] = true
				order = append(order, n.Str)
			}
			return false
		case KindFor:
			if !seen[n.Str] {
				seen[n.Str] = true
				order = append(order, n.Str)
			}
		}
		return true
	}
	Visit(e, visit)
	return order
}

// ContainsHole reports whether e contains a KindHole node anywhere in its
// subtree. Used by the rewriter to reject nested holes (§4.1 validation).
func ContainsHole(e *Expr) bool {
	found := false
	Visit(e, func(n *Expr) bool {
		if n.Kind == KindHole {
			found = true
			return false
		}
		return !found
	})
	return found
}

// ContainsAnnotation reports whether e contains an Annotation node with the
// given name anywhere in its subtree.
func ContainsAnnotation(e *Expr, name string) bool {
	found := false
	Visit(e, func(n *Expr) bool {
		if n.Kind == KindAnnotation && n.Str == name {
			found = true
			return false
		}
		return !found
	})
	return found
}
