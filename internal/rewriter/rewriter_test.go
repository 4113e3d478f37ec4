package rewriter

import (
	"testing"

	"github.com/nbjit/engine/internal/astmodel"
	"github.com/nbjit/engine/internal/nbjiterr"
	"github.com/stretchr/testify/require"
)

func hole(body *astmodel.Expr) *astmodel.Expr {
	return astmodel.Annotation(HoleAnnotationName, body)
}

func TestRewriteNoHolesPassesThrough(t *testing.T) {
	root := astmodel.Block(
		astmodel.Assign("x", astmodel.Int(1)),
		astmodel.Assign("y", astmodel.BinOp("+", astmodel.Var("x"), astmodel.Int(1))),
	)

	res, err := Rewrite(root)
	require.NoError(t, err)
	require.Len(t, res.Holes, 0)
	require.Equal(t, astmodel.KindBlock, res.Main.Kind)
	require.Len(t, res.Main.Stmts, 2)
}

func TestRewriteSingleHoleGuardSetIsNamesBoundBefore(t *testing.T) {
	root := astmodel.Block(
		astmodel.Assign("a", astmodel.Int(1)),
		astmodel.Assign("b", astmodel.Int(2)),
		hole(astmodel.BinOp("+", astmodel.Var("a"), astmodel.Var("b"))),
		astmodel.Assign("c", astmodel.Int(3)),
	)

	res, err := Rewrite(root)
	require.NoError(t, err)
	require.Len(t, res.Holes, 1)
	require.Equal(t, []string{"a", "b"}, res.GuardSyms[0])

	// The Hole node in Main should carry the same guard set.
	holeNode := res.Main.Stmts[2]
	require.Equal(t, astmodel.KindHole, holeNode.Kind)
	require.Equal(t, 0, holeNode.Ordinal)
	require.Equal(t, []string{"a", "b"}, holeNode.GuardSyms)
}

func TestRewriteHoleGuardSetIncludesOwnBodyFreeVars(t *testing.T) {
	root := astmodel.Block(
		astmodel.Assign("a", astmodel.Int(1)),
		hole(astmodel.BinOp("+", astmodel.Var("a"), astmodel.Var("extra"))),
	)

	res, err := Rewrite(root)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "extra"}, res.GuardSyms[0])
}

func TestRewriteMultipleHolesOrdinalsAndIndependentGuards(t *testing.T) {
	root := astmodel.Block(
		astmodel.Assign("a", astmodel.Int(1)),
		hole(astmodel.Var("a")),
		astmodel.Assign("b", astmodel.Int(2)),
		hole(astmodel.Var("b")),
	)

	res, err := Rewrite(root)
	require.NoError(t, err)
	require.Len(t, res.Holes, 2)
	require.Equal(t, []string{"a"}, res.GuardSyms[0])
	require.Equal(t, []string{"a", "b"}, res.GuardSyms[1])
	require.Equal(t, 0, res.Main.Stmts[1].Ordinal)
	require.Equal(t, 1, res.Main.Stmts[3].Ordinal)
}

func TestRewriteSingleExpressionHolePromotedToBlock(t *testing.T) {
	root := astmodel.Block(hole(astmodel.Int(1)))

	res, err := Rewrite(root)
	require.NoError(t, err)
	require.Equal(t, astmodel.KindBlock, res.Holes[0].Body.Kind)
	require.Len(t, res.Holes[0].Body.Stmts, 1)
}

func TestRewriteNestedHoleRejected(t *testing.T) {
	root := astmodel.Block(hole(hole(astmodel.Int(1))))

	_, err := Rewrite(root)
	require.Error(t, err)
	require.True(t, nbjiterr.Is(err, nbjiterr.InvalidAST))
}

func TestRewriteHoleAnnotationWithWrongArgCountRejected(t *testing.T) {
	root := astmodel.Block(astmodel.Annotation(HoleAnnotationName, astmodel.Int(1), astmodel.Int(2)))

	_, err := Rewrite(root)
	require.Error(t, err)
	require.True(t, nbjiterr.Is(err, nbjiterr.InvalidAST))
}

func TestRewriteHoleInsideIfBranchSeesOuterBindings(t *testing.T) {
	root := astmodel.Block(
		astmodel.Assign("a", astmodel.Int(1)),
		astmodel.If(astmodel.Var("a"), astmodel.Block(hole(astmodel.Var("a"))), nil),
	)

	res, err := Rewrite(root)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, res.GuardSyms[0])
}

func TestRewriteUnrelatedAnnotationPassesThrough(t *testing.T) {
	root := astmodel.Block(astmodel.Annotation("inline", astmodel.Int(1)))

	res, err := Rewrite(root)
	require.NoError(t, err)
	require.Len(t, res.Holes, 0)
	require.Equal(t, astmodel.KindAnnotation, res.Main.Stmts[0].Kind)
	require.Equal(t, "inline", res.Main.Stmts[0].Str)
}

func TestRewriteNonBlockRootIsPromoted(t *testing.T) {
	res, err := Rewrite(astmodel.Assign("x", astmodel.Int(1)))
	require.NoError(t, err)
	require.Equal(t, astmodel.KindBlock, res.Main.Kind)
	require.Len(t, res.Main.Stmts, 1)
}

func TestRewriteNilRootRejected(t *testing.T) {
	_, err := Rewrite(nil)
	require.Error(t, err)
	require.True(t, nbjiterr.Is(err, nbjiterr.InvalidAST))
}
