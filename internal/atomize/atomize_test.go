package atomize_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jjc/grammar"
	"jjc/internal/atomize"
	"jjc/internal/reveal"
	"jjc/internal/tast"
	"jjc/internal/validate"
)

func mustAtomize(t *testing.T, src string) *reveal.Program {
	t.Helper()
	cst, err := grammar.Parse("t.jj", src)
	require.NoError(t, err)
	checked, err := validate.Validate(cst)
	require.NoError(t, err)
	return atomize.Atomize(reveal.Reveal(checked))
}

func findFunc(prog *reveal.Program, name string) *reveal.FuncDecl {
	for _, fd := range prog.Funcs {
		if fd.Name == name {
			return fd
		}
	}
	return nil
}

// isAtom mirrors atomize's own notion of an atomic expression, used here
// purely to assert the invariant from the outside.
func isAtom(e tast.Expr) bool {
	switch e.(type) {
	case *tast.IntLit, *tast.BoolLit, *tast.UnitLit, *tast.VarExpr, *reveal.FunRef:
		return true
	default:
		return false
	}
}

func TestAtomizeLiftsNestedArithmetic(t *testing.T) {
	prog := mustAtomize(t, `
	fn main() -> I64 {
		let a = 1;
		let b = 2;
		let c = 3;
		return a + b * c;
	}
	`)
	fd := findFunc(prog, "main")
	require.NotNil(t, fd)

	ret, ok := fd.Body.Tail.(*tast.ReturnExpr)
	require.True(t, ok)
	bin, ok := ret.Value.(*tast.BinaryExpr)
	require.True(t, ok)
	require.True(t, isAtom(bin.L), "left operand of + must be atomic")
	require.True(t, isAtom(bin.R), "right operand of + must be atomic, got %T", bin.R)

	// The nested b*c must have been hoisted into a let ahead of the return.
	require.NotEmpty(t, fd.Body.Stmts)
	last := fd.Body.Stmts[len(fd.Body.Stmts)-1]
	letStmt, ok := last.(*tast.LetStmt)
	require.True(t, ok, "expected the hoisted multiplication to be a let, got %T", last)
	_, ok = letStmt.Expr.(*tast.BinaryExpr)
	require.True(t, ok)
}

func TestAtomizeLeavesTopLevelArithmeticInPlace(t *testing.T) {
	prog := mustAtomize(t, `
	fn main() -> I64 {
		let a = 1;
		let b = 2;
		return a + b;
	}
	`)
	fd := findFunc(prog, "main")
	ret, ok := fd.Body.Tail.(*tast.ReturnExpr)
	require.True(t, ok)
	_, ok = ret.Value.(*tast.BinaryExpr)
	require.True(t, ok, "a top-level a+b needs no hoisting since both operands are already atomic")
}

func TestAtomizeAtomizesCallArguments(t *testing.T) {
	prog := mustAtomize(t, `
	fn add(a: I64, b: I64) -> I64 { a + b }
	fn main() -> I64 {
		let x = 1;
		return add(x + 1, x * 2);
	}
	`)
	fd := findFunc(prog, "main")
	ret, ok := fd.Body.Tail.(*tast.ReturnExpr)
	require.True(t, ok)
	call, ok := ret.Value.(*tast.CallExpr)
	require.True(t, ok)
	for _, a := range call.Args {
		require.True(t, isAtom(a), "every call argument must be atomic, got %T", a)
	}
}
