package astmodel

import "testing"

func TestFingerprintStable(t *testing.T) {
	a := BinOp("+", Var("x"), Int(5))
	b := BinOp("+", Var("x"), Int(5))
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("structurally identical trees hashed differently")
	}
}

func TestFingerprintSensitiveToShape(t *testing.T) {
	a := BinOp("+", Var("x"), Int(5))
	b := BinOp("+", Var("x"), Int(6))
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatalf("distinct trees hashed identically")
	}
}

func TestFingerprintIgnoresNothingButPosition(t *testing.T) {
	// Two Block trees built independently should still match; there is no
	// position metadata on Expr to begin with, so this mostly guards against
	// accidental inclusion of pointer identity in the hash.
	mk := func() *Expr {
		return Block(
			Assign("x", Int(10)),
			Hole([]string{"x"}, 0),
			Return(Var("x")),
		)
	}
	if Fingerprint(mk()) != Fingerprint(mk()) {
		t.Fatalf("independently constructed identical trees hashed differently")
	}
}

func TestDeepCopyIndependence(t *testing.T) {
	orig := Block(Assign("x", Int(1)), Return(Var("x")))
	cp := DeepCopy(orig)

	if Fingerprint(orig) != Fingerprint(cp) {
		t.Fatalf("copy diverged structurally")
	}
	cp.Stmts[0].Rhs.Int = 99
	if orig.Stmts[0].Rhs.Int == 99 {
		t.Fatalf("mutating copy affected original: DeepCopy aliased a node")
	}
}

func TestFreeVarsOrderAndDedup(t *testing.T) {
	e := Block(
		Assign("a", Int(1)),
		Assign("b", BinOp("+", Var("a"), Var("c"))),
		Return(BinOp("+", Var("a"), Var("b"))),
	)
	got := FreeVars(e)
	want := []string{"a", "c", "b"}
	if len(got) != len(want) {
		t.Fatalf("FreeVars = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("FreeVars = %v, want %v", got, want)
		}
	}
}

func TestContainsHole(t *testing.T) {
	withHole := Block(Assign("x", Int(1)), Hole(nil, 0))
	withoutHole := Block(Assign("x", Int(1)))

	if !ContainsHole(withHole) {
		t.Fatalf("expected hole to be found")
	}
	if ContainsHole(withoutHole) {
		t.Fatalf("did not expect a hole to be found")
	}
}
