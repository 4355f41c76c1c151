package xselect

import "jjc/internal/symtab"

// The read/print intrinsics (spec.md §6) are hand-built directly at the
// instruction level rather than lowered from a jj function body: jj itself
// has no way to express a syscall, and the ELF format spec.md §4.6
// describes has exactly one PT_LOAD segment, marked R+X with no write
// permission and no data/bss section — so any scratch memory these two
// need (a decimal-digit buffer, a one-byte I/O staging slot) can only live
// on the stack, in each intrinsic's own frame. Both bypass Allocate
// entirely (Intrinsic: true): every operand below already names a real
// machine register or a fixed [rbp+off] stack slot, so there is nothing
// left for a coloring pass to assign.
//
// Because jj's word size is a qword and spec.md's §4.6 instruction
// families are all qword-oriented (no byte-store opcode is listed),
// each decimal digit is staged in its own 8-byte stack slot and written
// with a `write(2)`/`read(2)` syscall of length 1 — the kernel only
// touches the requested byte count, so the slot's upper 7 bytes are never
// observed.

const (
	// digitSlots covers every base-10 digit of a signed 64-bit value
	// (max 19 digits) with room to spare.
	digitSlots  = 20
	bufOff      = -8 * digitSlots // lowest-addressed digit slot
	signOff     = bufOff - 8
	newlineOff  = signOff - 8
	ioStackSize = -newlineOff // 16-byte aligned: 20*8 + 8 + 8 = 176
)

// printIntrinsic builds print's body under sym, the symbol Validate minted
// for it (or a freshly minted one if the program never calls print).
func printIntrinsic(sym symtab.Symbol) *Func {
	entry := symtab.New("print.entry")
	neg := symtab.New("print.neg")
	convert := symtab.New("print.convert")
	zeroCase := symtab.New("print.zero")
	digitLoop := symtab.New("print.digit")
	writeSign := symtab.New("print.sign")
	writeInit := symtab.New("print.write_init")
	writeLoop := symtab.New("print.write")
	writeNewline := symtab.New("print.newline")
	exit := symtab.New("print.exit")

	digitSlot := func(idxReg Reg) Deref {
		return Deref{Base: RBP, Index: idxReg, Scale: 8, Offset: bufOff}
	}

	blocks := []*Block{
		{Label: entry, Instr: []Instr{
			Movq{Src: MReg{RDI}, Dst: MReg{RAX}},
			Movq{Src: Imm{0}, Dst: MReg{R8}},  // sign flag
			Movq{Src: Imm{0}, Dst: MReg{RCX}}, // digit count
			Cmpq{L: Imm{0}, R: MReg{RAX}},
			Jcc{Cond: CondGE, Target: convert},
			Jmp{Target: neg},
		}},
		{Label: neg, Instr: []Instr{
			Movq{Src: Imm{1}, Dst: MReg{R8}},
			Negq{Dst: MReg{RAX}},
			Jmp{Target: convert},
		}},
		{Label: convert, Instr: []Instr{
			Cmpq{L: Imm{0}, R: MReg{RAX}},
			Jcc{Cond: CondNE, Target: digitLoop},
			Jmp{Target: zeroCase},
		}},
		{Label: zeroCase, Instr: []Instr{
			Movq{Src: Imm('0'), Dst: digitSlot(RCX)},
			Addq{Src: Imm{1}, Dst: MReg{RCX}},
			Jmp{Target: writeSign},
		}},
		{Label: digitLoop, Instr: []Instr{
			Movq{Src: Imm{10}, Dst: MReg{R9}},
			Cqo{},
			Divq{Src: MReg{R9}},
			Addq{Src: Imm('0'), Dst: MReg{RDX}},
			Movq{Src: MReg{RDX}, Dst: digitSlot(RCX)},
			Addq{Src: Imm{1}, Dst: MReg{RCX}},
			Cmpq{L: Imm{0}, R: MReg{RAX}},
			Jcc{Cond: CondNE, Target: digitLoop},
			Jmp{Target: writeSign},
		}},
		{Label: writeSign, Instr: []Instr{
			Cmpq{L: Imm{0}, R: MReg{R8}},
			Jcc{Cond: CondEQ, Target: writeInit},
			Movq{Src: Imm('-'), Dst: Deref{Base: RBP, Offset: signOff}},
			Leaq{Src: Deref{Base: RBP, Offset: signOff}, Dst: MReg{RSI}},
			Movq{Src: Imm{1}, Dst: MReg{RAX}}, // sys_write
			Movq{Src: Imm{1}, Dst: MReg{RDI}}, // fd 1
			Movq{Src: Imm{1}, Dst: MReg{RDX}}, // len 1
			Syscall{},
			Jmp{Target: writeInit},
		}},
		{Label: writeInit, Instr: []Instr{
			Subq{Src: Imm{1}, Dst: MReg{RCX}}, // rcx = index of the last digit written
		}},
		{Label: writeLoop, Instr: []Instr{
			Cmpq{L: Imm{0}, R: MReg{RCX}},
			Jcc{Cond: CondLT, Target: writeNewline},
			Leaq{Src: digitSlot(RCX), Dst: MReg{RSI}},
			Movq{Src: Imm{1}, Dst: MReg{RAX}},
			Movq{Src: Imm{1}, Dst: MReg{RDI}},
			Movq{Src: Imm{1}, Dst: MReg{RDX}},
			Syscall{},
			Subq{Src: Imm{1}, Dst: MReg{RCX}},
			Jmp{Target: writeLoop},
		}},
		{Label: writeNewline, Instr: []Instr{
			Movq{Src: Imm('\n'), Dst: Deref{Base: RBP, Offset: newlineOff}},
			Leaq{Src: Deref{Base: RBP, Offset: newlineOff}, Dst: MReg{RSI}},
			Movq{Src: Imm{1}, Dst: MReg{RAX}},
			Movq{Src: Imm{1}, Dst: MReg{RDI}},
			Movq{Src: Imm{1}, Dst: MReg{RDX}},
			Syscall{},
			Jmp{Target: exit},
		}},
	}
	// writeInit falls through into writeLoop in source order, but every
	// other block ends in an explicit jump; give writeInit one too so the
	// encoder never has to know about fallthrough.
	for _, b := range blocks {
		if b.Label == writeInit {
			b.Instr = append(b.Instr, Jmp{Target: writeLoop})
		}
	}

	return &Func{
		Sym: sym, Name: "print",
		ParamSyms: []symtab.Symbol{symtab.New("n")},
		NumRets:   1, // flattened Unit still occupies one return slot
		Entry:     entry, Exit: exit, Blocks: blocks,
		Intrinsic: true, FixedStackSpace: ioStackSize,
	}
}

const readStackSize = 16 // one 8-byte staging slot, 16-byte aligned

// readIntrinsic builds read's body under sym, the symbol Validate minted
// for it (or a freshly minted one if the program never calls read).
func readIntrinsic(sym symtab.Symbol) *Func {
	entry := symtab.New("read.entry")
	loop := symtab.New("read.loop")
	negSign := symtab.New("read.negsign")
	done := symtab.New("read.done")
	finish := symtab.New("read.finish")
	exit := symtab.New("read.exit")

	slot := Deref{Base: RBP, Offset: -8}

	blocks := []*Block{
		{Label: entry, Instr: []Instr{
			Movq{Src: Imm{0}, Dst: MReg{R9}},  // accumulator
			Movq{Src: Imm{0}, Dst: MReg{R10}}, // sign flag
			Movq{Src: Imm{0}, Dst: slot},      // clear the staging slot's upper bytes
			Jmp{Target: loop},
		}},
		{Label: loop, Instr: []Instr{
			Leaq{Src: slot, Dst: MReg{RSI}},
			Movq{Src: Imm{0}, Dst: MReg{RAX}}, // sys_read
			Movq{Src: Imm{0}, Dst: MReg{RDI}}, // fd 0
			Movq{Src: Imm{1}, Dst: MReg{RDX}}, // len 1
			Syscall{},
			Cmpq{L: Imm{0}, R: MReg{RAX}},
			Jcc{Cond: CondEQ, Target: done}, // EOF
			Movq{Src: slot, Dst: MReg{R11}},
			Cmpq{L: Imm('-'), R: MReg{R11}},
			Jcc{Cond: CondEQ, Target: negSign},
			Cmpq{L: Imm('0'), R: MReg{R11}},
			Jcc{Cond: CondLT, Target: done}, // not a digit (includes '\n')
			Cmpq{L: Imm('9'), R: MReg{R11}},
			Jcc{Cond: CondGT, Target: done},
			Movq{Src: MReg{R9}, Dst: MReg{RAX}},
			Movq{Src: Imm{10}, Dst: MReg{RDX}},
			Mulq{Src: MReg{RDX}},
			Subq{Src: Imm('0'), Dst: MReg{R11}},
			Addq{Src: MReg{R11}, Dst: MReg{RAX}},
			Movq{Src: MReg{RAX}, Dst: MReg{R9}},
			Jmp{Target: loop},
		}},
		{Label: negSign, Instr: []Instr{
			Movq{Src: Imm{1}, Dst: MReg{R10}},
			Jmp{Target: loop},
		}},
		{Label: done, Instr: []Instr{
			Cmpq{L: Imm{0}, R: MReg{R10}},
			Jcc{Cond: CondEQ, Target: finish},
			Negq{Dst: MReg{R9}},
			Jmp{Target: finish},
		}},
		{Label: finish, Instr: []Instr{
			Movq{Src: MReg{R9}, Dst: MReg{RAX}},
			Jmp{Target: exit},
		}},
	}

	return &Func{
		Sym: sym, Name: "read",
		ParamSyms: nil,
		NumRets:   1,
		Entry:     entry, Exit: exit, Blocks: blocks,
		Intrinsic: true, FixedStackSpace: readStackSize,
	}
}
