package irgen

import "github.com/llir/llvm/ir"

// binding is a local variable's stack slot and the carrier type it was
// allocated with.
type binding struct {
	slot    *ir.InstAlloca
	carrier Carrier
}

// scope is one level of the per-scope symbol table from spec §4.3: "If,
// For, While, and function bodies each open a nested scope. A scope lookup
// walks outward until a binding is found."
type scope struct {
	vars   map[string]*binding
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]*binding), parent: parent}
}

func (s *scope) define(name string, slot *ir.InstAlloca, c Carrier) {
	s.vars[name] = &binding{slot: slot, carrier: c}
}

func (s *scope) lookup(name string) (*binding, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.vars[name]; ok {
			return b, true
		}
	}
	return nil, false
}
