package conclude_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jjc/grammar"
	"jjc/internal/atomize"
	"jjc/internal/conclude"
	"jjc/internal/eliminate"
	"jjc/internal/explicate"
	"jjc/internal/regalloc"
	"jjc/internal/reveal"
	xselect "jjc/internal/select"
	"jjc/internal/symtab"
	"jjc/internal/validate"
)

func mustConclude(t *testing.T, src string) *xselect.Program {
	t.Helper()
	cst, err := grammar.Parse("t.jj", src)
	require.NoError(t, err)
	checked, err := validate.Validate(cst)
	require.NoError(t, err)
	eliminated := eliminate.Eliminate(explicate.Explicate(atomize.Atomize(reveal.Reveal(checked))))
	return conclude.Conclude(regalloc.Allocate(xselect.Select(eliminated)))
}

func findFunc(prog *xselect.Program, name string) *xselect.Func {
	for _, fd := range prog.Funcs {
		if fd.Name == name {
			return fd
		}
	}
	return nil
}

func TestConcludeAddsPrologueAndEpilogue(t *testing.T) {
	prog := mustConclude(t, `
	fn main() -> I64 {
		return 1;
	}
	`)
	main := findFunc(prog, "main")
	require.NotNil(t, main)

	var entryBlock, exitBlock *xselect.Block
	for _, b := range main.Blocks {
		if b.Label.Equal(main.Entry) {
			entryBlock = b
		}
		if b.Label.Equal(main.Exit) {
			exitBlock = b
		}
	}
	require.NotNil(t, entryBlock)
	require.NotNil(t, exitBlock)

	push, ok := entryBlock.Instr[0].(xselect.Pushq)
	require.True(t, ok)
	require.Equal(t, xselect.RBP, push.Src.(xselect.MReg).Reg)

	mov, ok := entryBlock.Instr[1].(xselect.Movq)
	require.True(t, ok)
	require.Equal(t, xselect.RSP, mov.Src.(xselect.MReg).Reg)
	require.Equal(t, xselect.RBP, mov.Dst.(xselect.MReg).Reg)

	last := exitBlock.Instr[len(exitBlock.Instr)-1]
	_, isRet := last.(xselect.Retq)
	require.True(t, isRet, "every function's exit block must end in retq")
}

func TestConcludePadsOddCalleeSavedCountToKeepCallqAligned(t *testing.T) {
	sym := symtab.New("odd")
	entry := symtab.New("odd.entry")
	exit := symtab.New("odd.exit")
	fn := &xselect.Func{
		Sym: sym, Name: "odd",
		Entry: entry, Exit: exit,
		FixedStackSpace: 16,
		Blocks: []*xselect.Block{{
			Label: entry,
			Instr: []xselect.Instr{
				xselect.Movq{Src: xselect.Imm{Value: 1}, Dst: xselect.MReg{Reg: xselect.RBX}},
				xselect.Movq{Src: xselect.Imm{Value: 2}, Dst: xselect.MReg{Reg: xselect.R12}},
				xselect.Movq{Src: xselect.Imm{Value: 3}, Dst: xselect.MReg{Reg: xselect.R13}},
				xselect.CallDirect{Target: sym},
				xselect.Jmp{Target: exit},
			},
		}},
	}

	prog := conclude.Conclude(&xselect.Program{Funcs: []*xselect.Func{fn}, Main: sym})
	out := findFunc(prog, "odd")
	require.NotNil(t, out)

	var entryBlock, exitBlock *xselect.Block
	for _, b := range out.Blocks {
		if b.Label.Equal(out.Entry) {
			entryBlock = b
		}
		if b.Label.Equal(out.Exit) {
			exitBlock = b
		}
	}
	require.NotNil(t, entryBlock)
	require.NotNil(t, exitBlock)

	// prologue: pushq rbp, movq rsp,rbp, subq frame, push rbx, push r12,
	// push r13 (three callee-saved registers, an odd count), then the
	// alignment pad before the function body begins.
	pad, ok := entryBlock.Instr[6].(xselect.Subq)
	require.True(t, ok, "expected an alignment-padding subq after an odd count of callee-saved pushes")
	require.Equal(t, int64(8), pad.Src.(xselect.Imm).Value)
	require.Equal(t, xselect.RSP, pad.Dst.(xselect.MReg).Reg)

	addBack, ok := exitBlock.Instr[0].(xselect.Addq)
	require.True(t, ok, "expected the matching addq undoing the pad before popping callee-saved registers back")
	require.Equal(t, int64(8), addBack.Src.(xselect.Imm).Value)
	require.Equal(t, xselect.RSP, addBack.Dst.(xselect.MReg).Reg)
}

func TestConcludeSynthesizesAProgramEntryThatExits(t *testing.T) {
	prog := mustConclude(t, `
	fn main() -> I64 {
		return 42;
	}
	`)
	entry := findFunc(prog, "_start")
	require.NotNil(t, entry)
	require.True(t, entry.Sym.Equal(prog.Main), "Program.Main must point at the synthesized entry")

	var sawCallMain, sawExitSyscall bool
	for _, b := range entry.Blocks {
		for i, ins := range b.Instr {
			if _, ok := ins.(xselect.CallDirect); ok {
				sawCallMain = true
			}
			if mv, ok := ins.(xselect.Movq); ok {
				if imm, ok := mv.Src.(xselect.Imm); ok && imm.Value == 60 {
					if i+1 < len(b.Instr) {
						if _, ok := b.Instr[i+1].(xselect.Syscall); ok {
							sawExitSyscall = true
						}
					}
				}
			}
		}
	}
	require.True(t, sawCallMain)
	require.True(t, sawExitSyscall)
}
