package irgen

import (
	"fmt"

	"github.com/llir/llvm/ir"

	"github.com/nbjit/engine/internal/nbjiterr"
)

// verifyFunc runs a lightweight structural check in place of an LLVM-C
// verifier (github.com/llir/llvm ships no cgo-free equivalent): every block
// must end in exactly one terminator, and every phi's incoming list must
// name a predecessor block that actually branches to it.
func verifyFunc(fn *ir.Func) error {
	preds := make(map[string]map[string]bool, len(fn.Blocks))
	for _, b := range fn.Blocks {
		if b.Term == nil {
			return nbjiterr.New(nbjiterr.VerificationFailure, fmt.Sprintf("block %q has no terminator", b.LocalIdent.Name()))
		}
		for _, succ := range b.Term.Succs() {
			name := succ.LocalIdent.Name()
			if preds[name] == nil {
				preds[name] = map[string]bool{}
			}
			preds[name][b.LocalIdent.Name()] = true
		}
	}

	for _, b := range fn.Blocks {
		for _, inst := range b.Insts {
			phi, ok := inst.(*ir.InstPhi)
			if !ok {
				continue
			}
			want := preds[b.LocalIdent.Name()]
			for _, inc := range phi.Incs {
				name := inc.Pred.LocalIdent.Name()
				if !want[name] {
					return nbjiterr.New(nbjiterr.VerificationFailure, fmt.Sprintf("phi in block %q names %q as predecessor but that block does not branch to it", b.LocalIdent.Name(), name))
				}
			}
		}
	}

	return nil
}
