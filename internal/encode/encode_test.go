package encode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jjc/internal/encode"
	xselect "jjc/internal/select"
	"jjc/internal/symtab"
)

// These fixed byte vectors are transcribed from the original compiler's
// emit/{unary,mul_div,push_pop}.rs test tables, which pin down NEG/MUL/
// DIV/PUSH/POP's exact REX + opcode + ModR/M bytes.
func oneInstrFunc(sym symtab.Symbol, instrs ...xselect.Instr) *xselect.Func {
	entry := symtab.New("entry")
	return &xselect.Func{Sym: sym, Name: "f", Entry: entry, Exit: entry, Blocks: []*xselect.Block{{Label: entry, Instr: instrs}}}
}

func TestEncodeMulMatchesReferenceBytes(t *testing.T) {
	sym := symtab.New("f")
	prog := &xselect.Program{Main: sym, Funcs: []*xselect.Func{
		oneInstrFunc(sym, xselect.Mulq{Src: xselect.MReg{Reg: xselect.R15}}),
	}}
	out, err := encode.Encode(prog)
	require.NoError(t, err)
	require.Equal(t, []byte{0x49, 0xF7, 0xE7}, out.Code)
}

func TestEncodeDivMatchesReferenceBytes(t *testing.T) {
	sym := symtab.New("f")
	prog := &xselect.Program{Main: sym, Funcs: []*xselect.Func{
		oneInstrFunc(sym, xselect.Divq{Src: xselect.MReg{Reg: xselect.RDX}}),
	}}
	out, err := encode.Encode(prog)
	require.NoError(t, err)
	require.Equal(t, []byte{0x48, 0xF7, 0xF2}, out.Code)
}

func TestEncodePushRegMatchesReferenceBytes(t *testing.T) {
	sym := symtab.New("f")
	prog := &xselect.Program{Main: sym, Funcs: []*xselect.Func{
		oneInstrFunc(sym, xselect.Pushq{Src: xselect.MReg{Reg: xselect.R14}}),
	}}
	out, err := encode.Encode(prog)
	require.NoError(t, err)
	require.Equal(t, []byte{0x41, 0x56}, out.Code)
}

func TestEncodePopDerefMatchesReferenceBytes(t *testing.T) {
	sym := symtab.New("f")
	prog := &xselect.Program{Main: sym, Funcs: []*xselect.Func{
		oneInstrFunc(sym, xselect.Popq{Dst: xselect.Deref{Base: xselect.RDX, Offset: 2147483647}}),
	}}
	out, err := encode.Encode(prog)
	require.NoError(t, err)
	require.Equal(t, []byte{0x8F, 0x82, 0xFF, 0xFF, 0xFF, 0x7F}, out.Code)
}

func TestEncodeRetqAndSyscall(t *testing.T) {
	sym := symtab.New("f")
	prog := &xselect.Program{Main: sym, Funcs: []*xselect.Func{
		oneInstrFunc(sym, xselect.Syscall{}, xselect.Retq{}),
	}}
	out, err := encode.Encode(prog)
	require.NoError(t, err)
	require.Equal(t, []byte{0x0F, 0x05, 0xC3}, out.Code)
}

func TestEncodeJmpResolvesRel32ToTargetBlock(t *testing.T) {
	sym := symtab.New("f")
	entry := symtab.New("entry")
	target := symtab.New("target")
	fn := &xselect.Func{Sym: sym, Name: "f", Entry: entry, Exit: target, Blocks: []*xselect.Block{
		{Label: entry, Instr: []xselect.Instr{xselect.Jmp{Target: target}}},
		{Label: target, Instr: []xselect.Instr{xselect.Retq{}}},
	}}
	prog := &xselect.Program{Main: sym, Funcs: []*xselect.Func{fn}}
	out, err := encode.Encode(prog)
	require.NoError(t, err)
	// jmp rel32 is 5 bytes (E9 + 4-byte disp); target is the next byte.
	require.Equal(t, byte(0xE9), out.Code[0])
	require.Equal(t, byte(0xC3), out.Code[5])
	rel := int32(uint32(out.Code[1]) | uint32(out.Code[2])<<8 | uint32(out.Code[3])<<16 | uint32(out.Code[4])<<24)
	require.Equal(t, int32(0), rel, "jmp immediately followed by its target has a zero displacement")
}

func TestEncodeSetCCOnALEmitsRexPrefix(t *testing.T) {
	sym := symtab.New("f")
	prog := &xselect.Program{Main: sym, Funcs: []*xselect.Func{
		oneInstrFunc(sym, xselect.SetCC{Cond: xselect.CondEQ, Dst: xselect.MReg{Reg: xselect.RAX}}),
	}}
	out, err := encode.Encode(prog)
	require.NoError(t, err)
	// REX.B=0 + 0F 94 C0, matching special.rs's literal AL-targeted form.
	require.Equal(t, []byte{0x40, 0x0F, 0x94, 0xC0}, out.Code)
}

func TestEncodeEntryOffsetPointsAtMainFunction(t *testing.T) {
	other := symtab.New("other")
	main := symtab.New("main")
	prog := &xselect.Program{Main: main, Funcs: []*xselect.Func{
		oneInstrFunc(other, xselect.Retq{}),
		oneInstrFunc(main, xselect.Retq{}),
	}}
	out, err := encode.Encode(prog)
	require.NoError(t, err)
	require.Equal(t, int64(1), out.EntryOffset, "main's single-byte retq starts right after other's")
}
