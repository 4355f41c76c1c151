package regalloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jjc/grammar"
	"jjc/internal/atomize"
	"jjc/internal/eliminate"
	"jjc/internal/explicate"
	"jjc/internal/regalloc"
	"jjc/internal/reveal"
	xselect "jjc/internal/select"
	"jjc/internal/validate"
)

func mustAllocate(t *testing.T, src string) *xselect.Program {
	t.Helper()
	cst, err := grammar.Parse("t.jj", src)
	require.NoError(t, err)
	checked, err := validate.Validate(cst)
	require.NoError(t, err)
	eliminated := eliminate.Eliminate(explicate.Explicate(atomize.Atomize(reveal.Reveal(checked))))
	return regalloc.Allocate(xselect.Select(eliminated))
}

func findFunc(prog *xselect.Program, name string) *xselect.Func {
	for _, fd := range prog.Funcs {
		if fd.Name == name {
			return fd
		}
	}
	return nil
}

func noVRegsRemain(t *testing.T, fn *xselect.Func) {
	t.Helper()
	check := func(a xselect.Arg) {
		if _, ok := a.(xselect.VReg); ok {
			t.Fatalf("found an unallocated VReg in %s after Allocate", fn.Name)
		}
	}
	for _, b := range fn.Blocks {
		for _, ins := range b.Instr {
			switch x := ins.(type) {
			case xselect.Movq:
				check(x.Src)
				check(x.Dst)
			case xselect.Addq:
				check(x.Src)
				check(x.Dst)
			case xselect.Subq:
				check(x.Src)
				check(x.Dst)
			case xselect.Cmpq:
				check(x.L)
				check(x.R)
			case xselect.SetCC:
				check(x.Dst)
			}
		}
	}
}

func TestAllocateReplacesEveryVRegWithARealHome(t *testing.T) {
	prog := mustAllocate(t, `
	fn main() -> I64 {
		let a = 1;
		let b = 2;
		let c = 3;
		let d = 4;
		return a + b + c + d;
	}
	`)
	fn := findFunc(prog, "main")
	require.NotNil(t, fn)
	noVRegsRemain(t, fn)
}

func TestAllocateStackSpaceIsSixteenByteAligned(t *testing.T) {
	prog := mustAllocate(t, `
	fn main() -> I64 {
		let a = 1;
		let b = 2;
		let c = 3;
		let d = 4;
		let e = 5;
		let f = 6;
		let g = 7;
		let h = 8;
		let i = 9;
		let j = 10;
		let k = 11;
		let l = 12;
		let m = 13;
		let n = 14;
		return a + b + c + d + e + f + g + h + i + j + k + l + m + n;
	}
	`)
	fn := findFunc(prog, "main")
	require.NotNil(t, fn)
	require.Equal(t, 0, fn.FixedStackSpace%16, "stack_space must be 16-byte aligned")
}

func TestAllocateIntrinsicsPassThroughUnchanged(t *testing.T) {
	prog := mustAllocate(t, `
	fn main() -> I64 {
		print(1);
		return 0;
	}
	`)
	printFn := findFunc(prog, "print")
	require.NotNil(t, printFn)
	require.True(t, printFn.Intrinsic)
	require.NotZero(t, printFn.FixedStackSpace)
}

func TestCoalesceDefaultsOff(t *testing.T) {
	require.False(t, regalloc.Coalesce, `move-coalescing must default off, matching spec.md's "an implementer may omit it"`)
}

func TestCoalesceStillProducesAFullyAllocatedFunction(t *testing.T) {
	prev := regalloc.Coalesce
	regalloc.Coalesce = true
	defer func() { regalloc.Coalesce = prev }()

	prog := mustAllocate(t, `
	fn main() -> I64 {
		let a = 1;
		let b = a;
		return b;
	}
	`)
	fn := findFunc(prog, "main")
	require.NotNil(t, fn)
	noVRegsRemain(t, fn)
}

func TestPatchNeverLeavesTwoMemoryOperandsTogether(t *testing.T) {
	prog := mustAllocate(t, `
	fn main() -> I64 {
		let a = 1;
		let b = 2;
		let c = 3;
		let d = 4;
		let e = 5;
		let f = 6;
		let g = 7;
		let h = 8;
		let i = 9;
		let j = 10;
		let k = 11;
		let l = 12;
		let m = 13;
		let n = 14;
		return a + b + c + d + e + f + g + h + i + j + k + l + m + n;
	}
	`)
	fn := findFunc(prog, "main")
	require.NotNil(t, fn)

	isMem := func(a xselect.Arg) bool { _, ok := a.(xselect.Deref); return ok }
	for _, b := range fn.Blocks {
		for _, ins := range b.Instr {
			switch x := ins.(type) {
			case xselect.Movq:
				require.False(t, isMem(x.Src) && isMem(x.Dst), "movq must not have two memory operands")
			case xselect.Addq:
				require.False(t, isMem(x.Src) && isMem(x.Dst), "addq must not have two memory operands")
			case xselect.Subq:
				require.False(t, isMem(x.Src) && isMem(x.Dst), "subq must not have two memory operands")
			case xselect.Cmpq:
				require.False(t, isMem(x.L) && isMem(x.R), "cmpq must not have two memory operands")
			}
		}
	}
}
