package explicate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jjc/grammar"
	"jjc/internal/atomize"
	"jjc/internal/explicate"
	"jjc/internal/reveal"
	"jjc/internal/validate"
)

func mustExplicate(t *testing.T, src string) *explicate.Program {
	t.Helper()
	cst, err := grammar.Parse("t.jj", src)
	require.NoError(t, err)
	checked, err := validate.Validate(cst)
	require.NoError(t, err)
	return explicate.Explicate(atomize.Atomize(reveal.Reveal(checked)))
}

func findFunc(prog *explicate.Program, name string) *explicate.Func {
	for _, fd := range prog.Funcs {
		if fd.Name == name {
			return fd
		}
	}
	return nil
}

// requireClosed asserts every block in fn terminates in exactly one
// terminator and that the entry label names a block that actually exists.
func requireClosed(t *testing.T, fn *explicate.Func) {
	t.Helper()
	byLabel := map[int64]*explicate.Block{}
	for _, b := range fn.Blocks {
		require.NotNil(t, b.Term, "block %s falls off the end without a terminator", b.Label)
		byLabel[b.Label.ID()] = b
	}
	_, ok := byLabel[fn.Entry.ID()]
	require.True(t, ok, "entry label must name a real block")
}

func TestExplicateStraightLineFunctionIsOneBlock(t *testing.T) {
	prog := mustExplicate(t, `
	fn main() -> I64 {
		let a = 1;
		let b = 2;
		return a + b;
	}
	`)
	fn := findFunc(prog, "main")
	require.NotNil(t, fn)
	requireClosed(t, fn)
	require.Len(t, fn.Blocks, 1)
	ret, ok := fn.Blocks[0].Term.(*explicate.Return)
	require.True(t, ok)
	require.NotNil(t, ret.Value)
}

func TestExplicateIfWithReturningBranchesEndsInOneIfStmt(t *testing.T) {
	prog := mustExplicate(t, `
	fn main() -> I64 {
		let c = true;
		if c { return 1; } else { return 2; };
		return 0;
	}
	`)
	fn := findFunc(prog, "main")
	requireClosed(t, fn)

	var ifCount, retCount int
	for _, b := range fn.Blocks {
		switch b.Term.(type) {
		case *explicate.IfStmt:
			ifCount++
		case *explicate.Return:
			retCount++
		}
	}
	require.Equal(t, 1, ifCount)
	require.GreaterOrEqual(t, retCount, 2)
}

func TestExplicateLoopWithBreakValueProducesResultJoin(t *testing.T) {
	prog := mustExplicate(t, `
	fn main() -> I64 {
		let i = 0;
		let r = loop {
			i = i + 1;
			if i == 3 {
				break i;
			};
		};
		return r;
	}
	`)
	fn := findFunc(prog, "main")
	requireClosed(t, fn)

	var gotos, ifs int
	for _, b := range fn.Blocks {
		switch b.Term.(type) {
		case *explicate.Goto:
			gotos++
		case *explicate.IfStmt:
			ifs++
		}
	}
	require.Equal(t, 1, ifs)
	require.GreaterOrEqual(t, gotos, 2, "expect at least the loop-entry goto and the break's goto to cont")
}

func TestExplicateDiscardedCallIsKeptForSideEffect(t *testing.T) {
	prog := mustExplicate(t, `
	fn main() -> I64 {
		print(1);
		return 0;
	}
	`)
	fn := findFunc(prog, "main")
	requireClosed(t, fn)

	var sawEval bool
	for _, b := range fn.Blocks {
		for _, s := range b.Stmts {
			if _, ok := s.(*explicate.EvalStmt); ok {
				sawEval = true
			}
		}
	}
	require.True(t, sawEval, "a discarded call must still appear as an EvalStmt so its side effect survives")
}
