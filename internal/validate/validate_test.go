package validate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jjc/grammar"
	"jjc/internal/ast"
	jjerrors "jjc/internal/errors"
	"jjc/internal/validate"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := grammar.Parse("t.jj", src)
	require.NoError(t, err)
	return prog
}

// code extracts the *errors.CompilerError code from a Validate failure, or
// fails the test if err isn't that shape.
func code(t *testing.T, err error) string {
	t.Helper()
	ce, ok := err.(*jjerrors.CompilerError)
	require.True(t, ok, "expected a *errors.CompilerError, got %T: %v", err, err)
	return ce.Code
}

func TestValidateAcceptsArithmeticAndControlFlow(t *testing.T) {
	src := `
	fn add(a: I64, b: I64) -> I64 {
		a + b
	}
	fn main() -> I64 {
		let x = 0;
		let i = 0;
		loop {
			if i == 5 {
				break;
			};
			x = add(x, i);
			i = i + 1;
		};
		return x;
	}
	`
	cst := mustParse(t, src)
	out, err := validate.Validate(cst)
	require.NoError(t, err)
	require.Len(t, out.Funcs, 2)
	require.True(t, out.Main.Valid())
}

func TestValidateStructFieldAccess(t *testing.T) {
	src := `
	struct Point { x: I64, y: I64 }
	fn main() -> I64 {
		let p = Point { x: 1, y: 2 };
		return p.x + p.y;
	}
	`
	cst := mustParse(t, src)
	_, err := validate.Validate(cst)
	require.NoError(t, err)
}

func TestValidateRejectsMissingMain(t *testing.T) {
	cst := mustParse(t, `fn helper() -> I64 { 1 }`)
	_, err := validate.Validate(cst)
	require.Error(t, err)
	require.Equal(t, jjerrors.NoMain, code(t, err))
}

func TestValidateRejectsUndeclaredVar(t *testing.T) {
	cst := mustParse(t, `fn main() -> I64 { return y; }`)
	_, err := validate.Validate(cst)
	require.Equal(t, jjerrors.UndeclaredVar, code(t, err))
}

func TestValidateRejectsDuplicateParam(t *testing.T) {
	cst := mustParse(t, `
	fn f(a: I64, a: I64) -> I64 { a }
	fn main() -> I64 { return 0; }
	`)
	_, err := validate.Validate(cst)
	require.Equal(t, jjerrors.DuplicateArg, code(t, err))
}

func TestValidateRejectsBreakOutsideLoop(t *testing.T) {
	cst := mustParse(t, `fn main() -> I64 { break; return 0; }`)
	_, err := validate.Validate(cst)
	require.Equal(t, jjerrors.BreakOutsideLoop, code(t, err))
}

func TestValidateAcceptsU64LiteralBeyondI64Range(t *testing.T) {
	cst := mustParse(t, `
	fn main() -> I64 {
		let x: U64 = 18446744073709551615;
		return 0;
	}
	`)
	_, err := validate.Validate(cst)
	require.NoError(t, err)
}

func TestValidateRejectsI64LiteralBeyondI64Range(t *testing.T) {
	cst := mustParse(t, `fn main() -> I64 { return 18446744073709551615; }`)
	_, err := validate.Validate(cst)
	require.Equal(t, jjerrors.IntegerOutOfBounds, code(t, err))
}

func TestValidateRejectsUnsizedStruct(t *testing.T) {
	cst := mustParse(t, `
	struct A { b: B }
	struct B { a: A }
	fn main() -> I64 { return 0; }
	`)
	_, err := validate.Validate(cst)
	require.Equal(t, jjerrors.UnsizedType, code(t, err))
}

func TestValidateRejectsMismatchedIfBranches(t *testing.T) {
	cst := mustParse(t, `
	fn main() -> I64 {
		let c = true;
		let x = if c { 1 } else { true };
		return 0;
	}
	`)
	_, err := validate.Validate(cst)
	require.Equal(t, jjerrors.IfExpectEqual, code(t, err))
}

func TestValidateRejectsArgCountMismatch(t *testing.T) {
	cst := mustParse(t, `
	fn f(a: I64) -> I64 { a }
	fn main() -> I64 { return f(1, 2); }
	`)
	_, err := validate.Validate(cst)
	require.Equal(t, jjerrors.ArgCountMismatch, code(t, err))
}
