package xselect_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jjc/grammar"
	"jjc/internal/atomize"
	"jjc/internal/eliminate"
	"jjc/internal/explicate"
	"jjc/internal/reveal"
	xselect "jjc/internal/select"
	"jjc/internal/symtab"
	"jjc/internal/validate"
)

func mustSelect(t *testing.T, src string) *xselect.Program {
	t.Helper()
	cst, err := grammar.Parse("t.jj", src)
	require.NoError(t, err)
	checked, err := validate.Validate(cst)
	require.NoError(t, err)
	eliminated := eliminate.Eliminate(explicate.Explicate(atomize.Atomize(reveal.Reveal(checked))))
	return xselect.Select(eliminated)
}

func findFunc(prog *xselect.Program, name string) *xselect.Func {
	for _, fd := range prog.Funcs {
		if fd.Name == name {
			return fd
		}
	}
	return nil
}

func allInstr(fn *xselect.Func) []xselect.Instr {
	var out []xselect.Instr
	for _, b := range fn.Blocks {
		out = append(out, b.Instr...)
	}
	return out
}

func TestSelectLowersAdditionToMovqAddq(t *testing.T) {
	prog := mustSelect(t, `
	fn main() -> I64 {
		let a = 1;
		let b = 2;
		return a + b;
	}
	`)
	fn := findFunc(prog, "main")
	require.NotNil(t, fn)

	var sawAddIntoRax bool
	for _, ins := range allInstr(fn) {
		if add, ok := ins.(xselect.Addq); ok {
			if reg, ok := add.Dst.(xselect.MReg); ok && reg.Reg == xselect.RAX {
				sawAddIntoRax = true
			}
		}
	}
	require.True(t, sawAddIntoRax, "return a+b must addq directly into rax")
}

func TestSelectLowersComparisonToCmpSetccAnd(t *testing.T) {
	prog := mustSelect(t, `
	fn main() -> I64 {
		let a = 1;
		let b = 2;
		let c = a == b;
		return 0;
	}
	`)
	fn := findFunc(prog, "main")
	require.NotNil(t, fn)

	var sawCmp, sawSetcc, sawAnd bool
	for _, ins := range allInstr(fn) {
		switch x := ins.(type) {
		case xselect.Cmpq:
			sawCmp = true
		case xselect.SetCC:
			sawSetcc = true
			require.Equal(t, xselect.CondEQ, x.Cond)
		case xselect.Andq:
			sawAnd = true
		}
	}
	require.True(t, sawCmp && sawSetcc && sawAnd, "a==b must lower to cmpq; setcc; andq $1")
}

func TestSelectIfLowersToCmpJccJmp(t *testing.T) {
	prog := mustSelect(t, `
	fn main() -> I64 {
		let c = true;
		if c { return 1; } else { return 2; };
		return 0;
	}
	`)
	fn := findFunc(prog, "main")
	require.NotNil(t, fn)

	var sawJcc bool
	for _, ins := range allInstr(fn) {
		if jcc, ok := ins.(xselect.Jcc); ok {
			sawJcc = true
			require.Equal(t, xselect.CondNE, jcc.Cond)
		}
	}
	require.True(t, sawJcc)
}

func TestSelectCallPlacesArgsInSysVRegisters(t *testing.T) {
	prog := mustSelect(t, `
	fn add(a: I64, b: I64) -> I64 { a + b }
	fn main() -> I64 {
		let x = 1;
		return add(x, x);
	}
	`)
	fn := findFunc(prog, "main")
	require.NotNil(t, fn)

	var sawDIArg, sawSIArg, sawCall bool
	for _, ins := range allInstr(fn) {
		switch x := ins.(type) {
		case xselect.Movq:
			if reg, ok := x.Dst.(xselect.MReg); ok {
				if reg.Reg == xselect.RDI {
					sawDIArg = true
				}
				if reg.Reg == xselect.RSI {
					sawSIArg = true
				}
			}
		case xselect.CallDirect:
			sawCall = true
		}
	}
	require.True(t, sawDIArg, "first argument must be placed in rdi")
	require.True(t, sawSIArg, "second argument must be placed in rsi")
	require.True(t, sawCall, "a call to a known function must be direct")
}

func TestSelectPrintCallIsDirectAndTargetsThePrintIntrinsic(t *testing.T) {
	prog := mustSelect(t, `
	fn main() -> I64 {
		print(7);
		return 0;
	}
	`)
	printFn := findFunc(prog, "print")
	require.NotNil(t, printFn, "Select must always emit the print intrinsic")
	require.True(t, printFn.Intrinsic)

	main := findFunc(prog, "main")
	require.NotNil(t, main)

	var target symtab.Symbol
	var found bool
	for _, ins := range allInstr(main) {
		if cd, ok := ins.(xselect.CallDirect); ok {
			target = cd.Target
			found = true
		}
	}
	require.True(t, found, "print(7) must lower to a direct call")
	require.True(t, target.Equal(printFn.Sym), "the call site must target the exact symbol the print intrinsic was built with")
}
