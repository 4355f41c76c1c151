package eliminate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jjc/grammar"
	"jjc/internal/atomize"
	"jjc/internal/eliminate"
	"jjc/internal/explicate"
	"jjc/internal/reveal"
	"jjc/internal/validate"
)

func mustEliminate(t *testing.T, src string) *eliminate.Program {
	t.Helper()
	cst, err := grammar.Parse("t.jj", src)
	require.NoError(t, err)
	checked, err := validate.Validate(cst)
	require.NoError(t, err)
	explicated := explicate.Explicate(atomize.Atomize(reveal.Reveal(checked)))
	return eliminate.Eliminate(explicated)
}

func findFunc(prog *eliminate.Program, name string) *eliminate.Func {
	for _, fd := range prog.Funcs {
		if fd.Name == name {
			return fd
		}
	}
	return nil
}

func TestEliminateLeavesScalarFunctionsUntouched(t *testing.T) {
	prog := mustEliminate(t, `
	fn main() -> I64 {
		let a = 1;
		let b = 2;
		return a + b;
	}
	`)
	fn := findFunc(prog, "main")
	require.NotNil(t, fn)
	require.Empty(t, fn.Params)
	require.Len(t, fn.Rets, 1)
}

func TestEliminateFlattensStructParamsAndFieldAccess(t *testing.T) {
	prog := mustEliminate(t, `
	struct Point { x: I64, y: I64 }
	fn sum(p: Point) -> I64 {
		return p.x + p.y;
	}
	fn main() -> I64 {
		let p = Point { x: 1, y: 2 };
		return sum(p);
	}
	`)
	sum := findFunc(prog, "sum")
	require.NotNil(t, sum)
	require.Len(t, sum.Params, 2, "a two-field struct parameter must expand to two scalar parameters")

	main := findFunc(prog, "main")
	require.NotNil(t, main)

	var sawAssignToXField, sawAssignToYField int
	for _, b := range main.Blocks {
		for _, s := range b.Stmts {
			if as, ok := s.(*eliminate.AssignStmt); ok {
				switch as.Sym.Name {
				case "p.x":
					sawAssignToXField++
				case "p.y":
					sawAssignToYField++
				}
			}
		}
	}
	require.Equal(t, 1, sawAssignToXField, "struct literal construction must scalarize into one assign per field")
	require.Equal(t, 1, sawAssignToYField)

	// The call to sum(p) must have been expanded into two scalar arguments.
	var sawCallStmt bool
	for _, b := range main.Blocks {
		for _, s := range b.Stmts {
			if cs, ok := s.(*eliminate.CallStmt); ok {
				sawCallStmt = true
				require.Len(t, cs.Call.Args, 2)
			}
		}
	}
	require.True(t, sawCallStmt)
}

func TestEliminateReturnsStructAsMultipleValues(t *testing.T) {
	prog := mustEliminate(t, `
	struct Pair { a: I64, b: I64 }
	fn make() -> Pair {
		return Pair { a: 10, b: 20 };
	}
	fn main() -> I64 {
		return 0;
	}
	`)
	fn := findFunc(prog, "make")
	require.NotNil(t, fn)
	require.Len(t, fn.Rets, 2)

	for _, b := range fn.Blocks {
		if ret, ok := b.Term.(*eliminate.Return); ok {
			require.Len(t, ret.Values, 2)
		}
	}
}
