package astmodel

// hash.go computes the 64-bit structural fingerprint used as the cache key
// throughout internal/session. Two trees with the same fingerprint are
// assumed (per the specification) to compile to the same artifact, so the
// encoding below strips everything but shape: Kind tags, operator/name
// strings, and literal payloads. Source positions never existed on Expr in
// the first place (see expr.go), so there is nothing to strip there.
//
// We use xxhash64 (github.com/cespare/xxhash/v2) rather than hand-rolled
// FNV or the standard library's hash/maphash: it is already a transitive
// dependency pulled in by Badger (see internal/session/contentindex.go) and is
// the fastest non-cryptographic 64-bit hash available in the module's
// dependency graph, which matters because every cell submission fingerprints
// its whole AST on the hot path.
import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

var digestPool = sync.Pool{
	New: func() any { return xxhash.New() },
}

// Fingerprint returns the structural fingerprint of e. A nil tree hashes to
// the fixed sentinel 0; callers should treat 0 as "absent" rather than a
// valid fingerprint, which is safe because a real tree's probability of
// colliding with 0 is negligible and the cache only ever compares
// fingerprints for equality, never orders them.
func Fingerprint(e *Expr) uint64 {
	if e == nil {
		return 0
	}
	d := digestPool.Get().(*xxhash.Digest)
	d.Reset()
	defer digestPool.Put(d)

	var buf [8]byte
	writeNode(d, &buf, e)
	return d.Sum64()
}

func writeNode(d *xxhash.Digest, buf *[8]byte, e *Expr) {
	if e == nil {
		d.Write([]byte{0xFF}) // nil marker, distinct from any Kind byte
		return
	}
	d.Write([]byte{byte(e.Kind)})

	switch e.Kind {
	case KindLiteral:
		d.Write([]byte{byte(e.LitKind)})
		switch e.LitKind {
		case LitInt:
			binary.LittleEndian.PutUint64(buf[:], uint64(e.Int))
			d.Write(buf[:])
		case LitFloat:
			binary.LittleEndian.PutUint64(buf[:], mathFloatBits(e.Float))
			d.Write(buf[:])
		case LitBool:
			if e.Bool {
				d.Write([]byte{1})
			} else {
				d.Write([]byte{0})
			}
		case LitString:
			d.Write([]byte(e.Str))
		}
	case KindQuoted, KindVar:
		d.Write([]byte(e.Str))
	case KindBinOp:
		d.Write([]byte(e.Op))
		writeNode(d, buf, e.Lhs)
		writeNode(d, buf, e.Rhs)
	case KindCall:
		d.Write([]byte(e.Str))
		writeNodes(d, buf, e.Args)
	case KindAssign:
		d.Write([]byte(e.Str))
		writeNode(d, buf, e.Rhs)
	case KindIndexGet:
		writeNode(d, buf, e.Lhs)
		writeNode(d, buf, e.Rhs)
	case KindIndexSet:
		writeNode(d, buf, e.Lhs)
		writeNode(d, buf, e.Rhs)
		writeNode(d, buf, e.Value)
	case KindIf:
		writeNode(d, buf, e.Cond)
		writeNode(d, buf, e.Then)
		writeNode(d, buf, e.Else)
	case KindFor:
		d.Write([]byte(e.Str))
		writeNode(d, buf, e.RangeStart)
		writeNode(d, buf, e.RangeEnd)
		writeNode(d, buf, e.Body)
	case KindWhile:
		writeNode(d, buf, e.Cond)
		writeNode(d, buf, e.Body)
	case KindLet:
		binary.LittleEndian.PutUint64(buf[:], uint64(len(e.Bindings)))
		d.Write(buf[:])
		for _, b := range e.Bindings {
			d.Write([]byte(b.Name))
			writeNode(d, buf, b.Init)
		}
		writeNode(d, buf, e.Body)
	case KindBlock:
		writeNodes(d, buf, e.Stmts)
	case KindFunction:
		d.Write([]byte(e.Str))
		for _, p := range e.Params {
			d.Write([]byte(p))
		}
		writeNode(d, buf, e.Body)
	case KindReturn:
		writeNode(d, buf, e.Value)
	case KindBreak, KindContinue:
		// no payload
	case KindTuple, KindVector:
		writeNodes(d, buf, e.Elems)
	case KindHole:
		binary.LittleEndian.PutUint64(buf[:], uint64(e.Ordinal))
		d.Write(buf[:])
		for _, g := range e.GuardSyms {
			d.Write([]byte(g))
		}
	case KindAnnotation:
		d.Write([]byte(e.Str))
		writeNodes(d, buf, e.Args)
	}
}

func writeNodes(d *xxhash.Digest, buf *[8]byte, nodes []*Expr) {
	binary.LittleEndian.PutUint64(buf[:], uint64(len(nodes)))
	d.Write(buf[:])
	for _, n := range nodes {
		writeNode(d, buf, n)
	}
}
