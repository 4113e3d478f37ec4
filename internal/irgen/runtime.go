package irgen

import "github.com/llir/llvm/ir"

// runtimeSignature describes one function exported by the runtime support
// library (spec §4.5). Carrier types here drive both the declaration's IR
// type and the boxing/unboxing the builder inserts around call sites.
type runtimeSignature struct {
	name   string
	params []Carrier
	ret    Carrier
}

// runtimeSignatures is the fixed table of runtime entry points. dict_set
// returns the (mutated) dict so callers can chain index-set expressions the
// way the surface language's assignment-free index-set syntax expects.
var runtimeSignatures = []runtimeSignature{
	{name: "dict_new", params: nil, ret: CarrierBoxed},
	{name: "dict_get", params: []Carrier{CarrierBoxed, CarrierBoxed}, ret: CarrierBoxed},
	{name: "dict_set", params: []Carrier{CarrierBoxed, CarrierBoxed, CarrierBoxed}, ret: CarrierBoxed},
	{name: "symbol_from_cstr", params: []Carrier{CarrierBoxed}, ret: CarrierBoxed},
	{name: "box_int", params: []Carrier{CarrierInt}, ret: CarrierBoxed},
	{name: "box_float", params: []Carrier{CarrierFloat}, ret: CarrierBoxed},
	{name: "unbox_int", params: []Carrier{CarrierBoxed}, ret: CarrierInt},
	{name: "unbox_float", params: []Carrier{CarrierBoxed}, ret: CarrierFloat},
}

func runtimeSignatureByName(name string) (runtimeSignature, bool) {
	for _, s := range runtimeSignatures {
		if s.name == name {
			return s, true
		}
	}
	return runtimeSignature{}, false
}

func declareRuntimeFuncs(m *ir.Module) map[string]*ir.Func {
	out := make(map[string]*ir.Func, len(runtimeSignatures))
	for _, sig := range runtimeSignatures {
		params := make([]*ir.Param, len(sig.params))
		for i, c := range sig.params {
			params[i] = ir.NewParam("", c.IRType())
		}
		out[sig.name] = m.NewFunc(sig.name, sig.ret.IRType(), params...)
	}
	return out
}
