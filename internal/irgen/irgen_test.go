package irgen

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/stretchr/testify/require"

	"github.com/nbjit/engine/internal/astmodel"
)

func TestPromoteWidensBoolBeforeFloat(t *testing.T) {
	require.Equal(t, CarrierInt, Promote(CarrierBool, CarrierInt))
	require.Equal(t, CarrierFloat, Promote(CarrierBool, CarrierFloat))
	require.Equal(t, CarrierFloat, Promote(CarrierInt, CarrierFloat))
	require.Equal(t, CarrierInt, Promote(CarrierInt, CarrierInt))
}

func TestBuildFunctionSimpleArithmeticReturnsInt(t *testing.T) {
	// fn add(a, b) { return a + b }
	fn := astmodel.Function("add", []string{"a", "b"}, astmodel.Block(
		astmodel.Return(astmodel.BinOp("+", astmodel.Var("a"), astmodel.Var("b"))),
	))

	b := NewBuilder()
	irFn, err := b.BuildFunction(fn)
	require.NoError(t, err)
	require.Equal(t, "add", irFn.Name())
	require.Len(t, irFn.Params, 2)
	require.NotEmpty(t, irFn.Blocks)
}

func TestBuildFunctionParamAssignedDictIsBoxed(t *testing.T) {
	// fn store(d) { d = dict() ; return 0 }
	fn := astmodel.Function("store", []string{"d"}, astmodel.Block(
		astmodel.Assign("d", astmodel.Call("dict")),
		astmodel.Return(astmodel.Int(0)),
	))

	b := NewBuilder()
	irFn, err := b.BuildFunction(fn)
	require.NoError(t, err)
	require.True(t, irFn.Params[0].Typ.Equal(CarrierBoxed.IRType()))
}

func TestBuildFunctionReturningDictConstructionIsBoxed(t *testing.T) {
	fn := astmodel.Function("make", nil, astmodel.Block(
		astmodel.Return(astmodel.Call("dict")),
	))

	b := NewBuilder()
	irFn, err := b.BuildFunction(fn)
	require.NoError(t, err)
	require.True(t, irFn.Sig.RetType.Equal(CarrierBoxed.IRType()))
}

func TestBuildFunctionIfWithBothBranchesReturningIsTerminated(t *testing.T) {
	fn := astmodel.Function("choose", []string{"x"}, astmodel.Block(
		astmodel.If(
			astmodel.BinOp(">", astmodel.Var("x"), astmodel.Int(0)),
			astmodel.Block(astmodel.Return(astmodel.Int(1))),
			astmodel.Block(astmodel.Return(astmodel.Int(-1))),
		),
	))

	b := NewBuilder()
	irFn, err := b.BuildFunction(fn)
	require.NoError(t, err)
	for _, blk := range irFn.Blocks {
		require.NotNil(t, blk.Term, "block %s must be terminated", blk.LocalIdent.Name())
	}
}

func TestBuildFunctionForLoopAccumulates(t *testing.T) {
	// fn sum(n) { total = 0; for i in 0..n { total = total + i }; return total }
	fn := astmodel.Function("sum", []string{"n"}, astmodel.Block(
		astmodel.Assign("total", astmodel.Int(0)),
		astmodel.For("i", astmodel.Int(0), astmodel.Var("n"), astmodel.Block(
			astmodel.Assign("total", astmodel.BinOp("+", astmodel.Var("total"), astmodel.Var("i"))),
		)),
		astmodel.Return(astmodel.Var("total")),
	))

	b := NewBuilder()
	irFn, err := b.BuildFunction(fn)
	require.NoError(t, err)
	require.True(t, len(irFn.Blocks) >= 5) // entry, cond, body, inc, end (+ trailing)
}

func TestBuildFunctionShortCircuitAndProducesPhi(t *testing.T) {
	fn := astmodel.Function("both", []string{"a", "b"}, astmodel.Block(
		astmodel.Return(astmodel.BinOp("&&",
			astmodel.BinOp(">", astmodel.Var("a"), astmodel.Int(0)),
			astmodel.BinOp(">", astmodel.Var("b"), astmodel.Int(0)),
		)),
	))

	b := NewBuilder()
	irFn, err := b.BuildFunction(fn)
	require.NoError(t, err)
	hasPhi := false
	for _, blk := range irFn.Blocks {
		for _, inst := range blk.Insts {
			if _, ok := inst.(*ir.InstPhi); ok {
				hasPhi = true
			}
		}
	}
	require.True(t, hasPhi)
}

func TestBuildFunctionCallToUnknownFunctionErrors(t *testing.T) {
	fn := astmodel.Function("f", nil, astmodel.Block(
		astmodel.Return(astmodel.Call("not_declared_anywhere")),
	))

	b := NewBuilder()
	_, err := b.BuildFunction(fn)
	require.Error(t, err)
}

func TestBuildFunctionIndexGetCallsRuntime(t *testing.T) {
	fn := astmodel.Function("get", []string{"d", "k"}, astmodel.Block(
		astmodel.Assign("d", astmodel.Call("dict")),
		astmodel.Return(astmodel.IndexGet(astmodel.Var("d"), astmodel.Var("k"))),
	))

	b := NewBuilder()
	irFn, err := b.BuildFunction(fn)
	require.NoError(t, err)
	require.True(t, irFn.Sig.RetType.Equal(CarrierInt.IRType()))
}

func TestDeclareExternThenCallCoercesArgsToInt(t *testing.T) {
	b := NewBuilder()
	b.DeclareExtern(ExternSignature{Name: "legacy_helper", ParamCount: 1, Ret: CarrierInt})

	fn := astmodel.Function("wraps", []string{"x"}, astmodel.Block(
		astmodel.Return(astmodel.Call("legacy_helper", astmodel.Var("x"))),
	))
	_, err := b.BuildFunction(fn)
	require.NoError(t, err)
}
