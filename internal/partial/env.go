package partial

import "github.com/nbjit/engine/internal/astmodel"

// Env is the binding map plus dynamic set from spec §4.2: a name folds iff
// it is bound in the map and not in the dynamic set. Bindings may hold any
// expression, not only literals — a name bound to a non-literal expression
// still substitutes at every reference, it just won't itself fold further
// until the substituted expression does.
type Env struct {
	bindings map[string]*astmodel.Expr
	dynamic  map[string]bool
}

// NewEnv constructs an Env from an initial binding map and the set of names
// that must remain symbolic (typically a hole's guard names).
func NewEnv(initial map[string]*astmodel.Expr, dynamicNames []string) *Env {
	b := make(map[string]*astmodel.Expr, len(initial))
	for k, v := range initial {
		b[k] = v
	}
	d := make(map[string]bool, len(dynamicNames))
	for _, n := range dynamicNames {
		d[n] = true
	}
	return &Env{bindings: b, dynamic: d}
}

// Lookup returns the bound value for name, but only if name is not in the
// dynamic set — a dynamic name never folds regardless of what is in the
// binding map.
func (e *Env) Lookup(name string) (*astmodel.Expr, bool) {
	if e.dynamic[name] {
		return nil, false
	}
	v, ok := e.bindings[name]
	return v, ok
}

// IsDynamic reports whether name is in the dynamic set.
func (e *Env) IsDynamic(name string) bool { return e.dynamic[name] }

// Set records a new binding for name, overwriting any previous one.
func (e *Env) Set(name string, value *astmodel.Expr) {
	e.bindings[name] = value
}

// Forget removes any known value for name, making future references to it
// symbolic again without adding it to the dynamic set. Used after a
// symbolic If/For/While branch to conservatively widen bindings that may
// have been reassigned inside the branch (spec §9, "refrains from
// propagating bindings produced inside either branch").
func (e *Env) Forget(name string) {
	delete(e.bindings, name)
}

// Clone returns an independent copy of e. Mutations to the clone (via Set or
// Forget) never affect the receiver; used to evaluate a branch whose
// bindings must not leak back into the enclosing scope until widened.
func (e *Env) Clone() *Env {
	b := make(map[string]*astmodel.Expr, len(e.bindings))
	for k, v := range e.bindings {
		b[k] = v
	}
	d := make(map[string]bool, len(e.dynamic))
	for k, v := range e.dynamic {
		d[k] = v
	}
	return &Env{bindings: b, dynamic: d}
}
