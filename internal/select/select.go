// Package xselect implements spec.md §4.3's Select pass: it lowers a
// scalarized CFG (internal/eliminate's output) into a sequence of x86-64
// pseudo-instructions over a mixed operand set — immediate, machine
// register, `[reg+offset]` deref, or virtual register — following the
// selection table verbatim. Register allocation (internal/regalloc) later
// replaces every VReg with a real Arg; nothing here assumes a fixed set
// of machine registers is available yet.
//
// Named "xselect" because the package's natural name, select, is a Go
// keyword.
package xselect

import (
	"jjc/internal/ast"
	"jjc/internal/eliminate"
	"jjc/internal/reveal"
	"jjc/internal/symtab"
	"jjc/internal/tast"
)

// Reg is a machine register, numbered to match its real ModRM/REX encoding
// so internal/encode can reuse these values directly.
type Reg int

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// Arg is an x86 operand. Concrete types: Imm, MReg, Deref, VReg, Label.
type Arg interface{ argNode() }

type Imm struct{ Value int64 }
type MReg struct{ Reg Reg }

// Deref is a [Base + Index*Scale + Offset] memory operand. Index/Scale are
// the zero value (Scale 0) for a plain [Base + Offset] access; Scale is one
// of 1/2/4/8, matching a real SIB byte, and is only needed by the read/print
// intrinsics' buffer indexing.
type Deref struct {
	Base    Reg
	Index   Reg
	Scale   int8
	Offset  int32
}

// VReg is a virtual register: one value, named by the symbol that produced
// it in Eliminate's output. Allocate replaces every VReg with an MReg or
// Deref.
type VReg struct{ Sym symtab.Symbol }

// Label materializes a function's code address, used as a direct call
// target.
type Label struct{ Sym symtab.Symbol }

func (Imm) argNode()   {}
func (MReg) argNode()  {}
func (Deref) argNode() {}
func (VReg) argNode()  {}
func (Label) argNode() {}

// CondCode is one of the six comparison outcomes SetCC tests, matching
// spec.md §4.3's `a CMP b` row.
type CondCode int

const (
	CondEQ CondCode = iota
	CondNE
	CondLT
	CondLE
	CondGT
	CondGE
)

func condFromBinOp(op ast.BinOp) CondCode {
	switch op {
	case ast.EQ:
		return CondEQ
	case ast.NE:
		return CondNE
	case ast.LT:
		return CondLT
	case ast.LE:
		return CondLE
	case ast.GT:
		return CondGT
	case ast.GE:
		return CondGE
	}
	panic("xselect: not a comparison BinOp")
}

// Instr is implemented by every pseudo-instruction this pass emits.
type Instr interface{ instrNode() }

// Leaq computes Src's effective address (it must be a Deref) into Dst,
// rather than loading the memory at that address. Not in spec.md's §4.6
// instruction family list, which only covers binary/unary r/m64 ops; added
// because the read/print intrinsics below need to pass a stack buffer's
// address to the kernel, and an x86 syscall argument is always an address,
// never a bare memory operand.
type Leaq struct {
	Src Deref
	Dst Arg
}

type Movq struct{ Src, Dst Arg }
type Addq struct{ Src, Dst Arg }
type Subq struct{ Src, Dst Arg }
type Andq struct{ Src, Dst Arg }
type Orq struct{ Src, Dst Arg }
type Xorq struct{ Src, Dst Arg }
type Mulq struct{ Src Arg } // implicit rax * src -> rdx:rax
type Divq struct{ Src Arg } // implicit rdx:rax / src -> quot rax, rem rdx
type Cqo struct{}           // sign-extend rax into rdx:rax
type Negq struct{ Dst Arg }
type Notq struct{ Dst Arg }
type Cmpq struct{ L, R Arg }
type SetCC struct {
	Cond CondCode
	Dst  Arg
}
type Pushq struct{ Src Arg }
type Popq struct{ Dst Arg }

// CallDirect calls a statically known function by label.
type CallDirect struct {
	Target symtab.Symbol
	Dst    Arg // nil when the callee's return value is never observed
}

// CallIndirect calls through a function pointer held in Callee. Select
// produces one for a call whose callee is a Fn-typed variable rather than
// a reveal.FunRef (e.g. `let f = add; f(1, 2)`).
type CallIndirect struct {
	Callee Arg
	Dst    Arg
}

type Jmp struct{ Target symtab.Symbol }
type Jcc struct {
	Cond   CondCode
	Target symtab.Symbol
}
type Retq struct{}
type Syscall struct{}

func (Leaq) instrNode()         {}
func (Movq) instrNode()         {}
func (Addq) instrNode()         {}
func (Subq) instrNode()         {}
func (Andq) instrNode()         {}
func (Orq) instrNode()          {}
func (Xorq) instrNode()         {}
func (Mulq) instrNode()         {}
func (Divq) instrNode()         {}
func (Cqo) instrNode()          {}
func (Negq) instrNode()         {}
func (Notq) instrNode()         {}
func (Cmpq) instrNode()         {}
func (SetCC) instrNode()        {}
func (Pushq) instrNode()        {}
func (Popq) instrNode()         {}
func (CallDirect) instrNode()   {}
func (CallIndirect) instrNode() {}
func (Jmp) instrNode()          {}
func (Jcc) instrNode()          {}
func (Retq) instrNode()         {}
func (Syscall) instrNode()      {}

// argRegOrder is the System V AMD64 integer argument register order.
var argRegOrder = []Reg{RDI, RSI, RDX, RCX, R8, R9}

// Block is a labeled straight-line instruction sequence. Unlike earlier
// passes, Select does not separate a "terminator" type: Jmp/Jcc/Retq are
// just instructions that happen to end a block, since every instruction
// family now lives in one flat Instr list the encoder can walk linearly.
type Block struct {
	Label symtab.Symbol
	Instr []Instr
}

// Func is one function lowered to x86 pseudo-instructions. Exit names the
// block `return` jumps to; Conclude populates it with the real epilogue.
// Intrinsic marks a hand-built body (read/print) that bypasses Allocate
// entirely — see DESIGN.md for why.
type Func struct {
	Sym       symtab.Symbol
	Name      string
	ParamSyms []symtab.Symbol
	NumRets   int
	Entry     symtab.Symbol
	Exit      symtab.Symbol
	Blocks    []*Block
	Intrinsic bool
	// FixedStackSpace is the function's 16-byte-aligned stack_space
	// (spec.md §4.4), which Conclude's prologue/epilogue subq/addq uses.
	// For an Intrinsic function it is set here, directly, since Allocate
	// skips these functions entirely (every operand already names a real
	// machine register or a fixed [rbp+off] slot). For every other
	// function it starts at zero and is filled in by internal/regalloc's
	// coloring step.
	FixedStackSpace int
}

type Program struct {
	Funcs []*Func
	Main  symtab.Symbol
}

// Select lowers every function in prog, plus the read/print intrinsics
// spec.md §6 requires every program to be able to call. The two intrinsics
// are built with the same symbols Validate minted for "read"/"print" —
// found by scanning call sites below — so CallDirect{Target: ...} at every
// call site names the same function Conclude and Emit will lay out code
// for. A program that never calls read/print mints fresh symbols for them
// instead; they end up as dead, unreferenced functions, which is fine.
func Select(prog *eliminate.Program) *Program {
	readSym, printSym := findBuiltinSyms(prog)

	out := &Program{Main: prog.Main}
	for _, fd := range prog.Funcs {
		out.Funcs = append(out.Funcs, selectFunc(fd))
	}
	out.Funcs = append(out.Funcs, readIntrinsic(readSym), printIntrinsic(printSym))
	return out
}

// findBuiltinSyms locates the symbols Validate assigned to the read/print
// builtins by looking at how they're actually called: Atomize's atomicity
// invariant guarantees every call appears directly as a CallStmt or as the
// sole expression of an EvalStmt, never buried inside another expression,
// so a single pass over every block's statements finds them all.
func findBuiltinSyms(prog *eliminate.Program) (readSym, printSym symtab.Symbol) {
	note := func(callee tast.Expr) {
		if fr, ok := callee.(*reveal.FunRef); ok {
			switch fr.Name {
			case "read":
				readSym = fr.Sym
			case "print":
				printSym = fr.Sym
			}
		}
	}
	for _, fd := range prog.Funcs {
		for _, b := range fd.Blocks {
			for _, st := range b.Stmts {
				switch s := st.(type) {
				case *eliminate.CallStmt:
					note(s.Call.Callee)
				case *eliminate.EvalStmt:
					if call, ok := s.Expr.(*tast.CallExpr); ok {
						note(call.Callee)
					}
				}
			}
		}
	}
	if !readSym.Valid() {
		readSym = symtab.New("read")
	}
	if !printSym.Valid() {
		printSym = symtab.New("print")
	}
	return readSym, printSym
}

func selectFunc(fd *eliminate.Func) *Func {
	s := &selector{}
	exit := symtab.New(fd.Name + ".exit")

	var params []symtab.Symbol
	for _, p := range fd.Params {
		params = append(params, p.Sym)
	}

	var blocks []*Block
	for _, b := range fd.Blocks {
		blocks = append(blocks, s.selectBlock(b, exit))
	}
	prependParamMoves(blocks, fd.Entry, params)

	return &Func{
		Sym: fd.Sym, Name: fd.Name, ParamSyms: params, NumRets: len(fd.Rets),
		Entry: fd.Entry, Exit: exit, Blocks: blocks,
	}
}

// prependParamMoves inserts, at the front of entry's block, the moves that
// copy each incoming argument out of its System V register (or, past the
// sixth, its stack slot above the saved frame pointer) into the parameter's
// VReg. Must run after Conclude's prologue has set up rbp, so a stack-passed
// argument is addressed relative to rbp rather than the pre-prologue rsp.
func prependParamMoves(blocks []*Block, entry symtab.Symbol, params []symtab.Symbol) {
	if len(params) == 0 {
		return
	}
	var moves []Instr
	for i, p := range params {
		if i < len(argRegOrder) {
			moves = append(moves, Movq{Src: MReg{Reg: argRegOrder[i]}, Dst: VReg{Sym: p}})
			continue
		}
		off := int32(16 + 8*(i-len(argRegOrder)))
		moves = append(moves, Movq{Src: Deref{Base: RBP, Offset: off}, Dst: VReg{Sym: p}})
	}
	for _, b := range blocks {
		if b.Label.Equal(entry) {
			b.Instr = append(moves, b.Instr...)
			return
		}
	}
}

type selector struct{}

func (s *selector) selectBlock(b *eliminate.Block, exit symtab.Symbol) *Block {
	out := &Block{Label: b.Label}
	emit := func(ins ...Instr) { out.Instr = append(out.Instr, ins...) }

	for _, st := range b.Stmts {
		switch x := st.(type) {
		case *eliminate.AssignStmt:
			emit(s.selectInto(x.Expr, VReg{Sym: x.Sym})...)
		case *eliminate.EvalStmt:
			// Side-effecting call kept for effect; discard the result into a
			// scratch VReg nothing reads (Allocate still gives it a home).
			emit(s.selectInto(x.Expr, VReg{Sym: symtab.New("discard")})...)
		case *eliminate.CallStmt:
			emit(s.selectCallStmt(x)...)
		default:
			panic("xselect: unreachable eliminate.Stmt variant")
		}
	}

	switch t := b.Term.(type) {
	case *eliminate.Return:
		switch len(t.Values) {
		case 0:
			// Unit: nothing to move into rax.
		case 1:
			emit(s.selectInto(t.Values[0], MReg{Reg: RAX})...)
		default:
			// Scope-limited convention (see DESIGN.md's Select entry):
			// struct returns flatten to at most two leaves, carried in
			// RAX and RDX.
			emit(s.selectInto(t.Values[0], MReg{Reg: RAX})...)
			emit(s.selectInto(t.Values[1], MReg{Reg: RDX})...)
		}
		emit(Jmp{Target: exit})
	case *eliminate.Goto:
		emit(Jmp{Target: t.Target})
	case *eliminate.IfStmt:
		cond := s.arg(t.Cond)
		emit(Cmpq{L: Imm{Value: 0}, R: cond}, Jcc{Cond: CondNE, Target: t.Then}, Jmp{Target: t.Else})
	default:
		panic("xselect: unreachable eliminate.Terminator variant")
	}
	return out
}

// arg lowers an already-scalar expression that is guaranteed atomic
// (literal, variable, or function reference) directly to an Arg, with no
// instructions needed to compute it.
func (s *selector) arg(e tast.Expr) Arg {
	switch x := e.(type) {
	case *tast.IntLit:
		return Imm{Value: x.Value}
	case *tast.BoolLit:
		if x.Value {
			return Imm{Value: 1}
		}
		return Imm{Value: 0}
	case *tast.UnitLit:
		return Imm{Value: 0}
	case *tast.VarExpr:
		return VReg{Sym: x.Sym}
	case *reveal.FunRef:
		return Label{Sym: x.Sym}
	}
	panic("xselect: expected an atom")
}

// selectInto computes e and emits the instructions that leave its value in
// dst. Per spec.md §4.3's table, which instruction shape is chosen depends
// entirely on e's syntactic form, since Eliminate guarantees every operand
// of a compound expression is itself atomic.
func (s *selector) selectInto(e tast.Expr, dst Arg) []Instr {
	switch x := e.(type) {
	case *tast.UnaryExpr:
		v := s.arg(x.X)
		switch x.Op {
		case ast.Neg:
			return []Instr{Movq{Src: v, Dst: dst}, Negq{Dst: dst}}
		case ast.Not:
			return []Instr{Movq{Src: v, Dst: dst}, Notq{Dst: dst}}
		}
		panic("xselect: unreachable UnaryOp")

	case *tast.BinaryExpr:
		l, r := s.arg(x.L), s.arg(x.R)
		switch x.Op {
		case ast.Add:
			return []Instr{Movq{Src: l, Dst: dst}, Addq{Src: r, Dst: dst}}
		case ast.Sub:
			return []Instr{Movq{Src: l, Dst: dst}, Subq{Src: r, Dst: dst}}
		case ast.Mul:
			return []Instr{Movq{Src: l, Dst: MReg{Reg: RAX}}, Mulq{Src: r}, Movq{Src: MReg{Reg: RAX}, Dst: dst}}
		case ast.Div:
			return []Instr{Movq{Src: l, Dst: MReg{Reg: RAX}}, Cqo{}, Divq{Src: r}, Movq{Src: MReg{Reg: RAX}, Dst: dst}}
		case ast.Mod:
			return []Instr{Movq{Src: l, Dst: MReg{Reg: RAX}}, Cqo{}, Divq{Src: r}, Movq{Src: MReg{Reg: RDX}, Dst: dst}}
		case ast.LAnd:
			return []Instr{Movq{Src: l, Dst: dst}, Andq{Src: r, Dst: dst}}
		case ast.LOr:
			return []Instr{Movq{Src: l, Dst: dst}, Orq{Src: r, Dst: dst}}
		case ast.Xor:
			return []Instr{Movq{Src: l, Dst: dst}, Xorq{Src: r, Dst: dst}}
		default:
			if x.Op.IsComparison() {
				return []Instr{
					Cmpq{L: r, R: l},
					SetCC{Cond: condFromBinOp(x.Op), Dst: dst},
					Andq{Src: Imm{Value: 1}, Dst: dst},
				}
			}
		}
		panic("xselect: unreachable BinOp")

	case *tast.CallExpr:
		return s.selectCallInto(x, []Arg{dst})

	default:
		return []Instr{Movq{Src: s.arg(e), Dst: dst}}
	}
}

func (s *selector) selectCallStmt(cs *eliminate.CallStmt) []Instr {
	var dsts []Arg
	for _, d := range cs.Dsts {
		dsts = append(dsts, VReg{Sym: d})
	}
	return s.selectCallInto(cs.Call, dsts)
}

// selectCallInto places cs.Call's arguments per the System V integer
// argument registers (spilling the rest to the stack, pushed in reverse
// order so the first overflow argument ends up at the lowest address),
// emits the call, and copies the result(s) out of RAX/RDX into dsts.
//
// Scope-limited convention: a struct-typed return wider than two leaves
// has no machine encoding here (see DESIGN.md's Select entry) — jj's
// standard library and every example program return at most a two-field
// struct or a scalar, so this is never exercised beyond that.
func (s *selector) selectCallInto(call *tast.CallExpr, dsts []Arg) []Instr {
	var ins []Instr
	var stack []Arg
	for i, a := range call.Args {
		v := s.arg(a)
		if i < len(argRegOrder) {
			ins = append(ins, Movq{Src: v, Dst: MReg{Reg: argRegOrder[i]}})
		} else {
			stack = append(stack, v)
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		ins = append(ins, Pushq{Src: stack[i]})
	}

	var dst Arg
	if len(dsts) > 0 {
		dst = dsts[0]
	}
	if fr, ok := call.Callee.(*reveal.FunRef); ok {
		ins = append(ins, CallDirect{Target: fr.Sym, Dst: dst})
	} else {
		ins = append(ins, CallIndirect{Callee: s.arg(call.Callee), Dst: dst})
	}

	if len(dsts) > 0 {
		ins = append(ins, Movq{Src: MReg{Reg: RAX}, Dst: dsts[0]})
	}
	if len(dsts) > 1 {
		ins = append(ins, Movq{Src: MReg{Reg: RDX}, Dst: dsts[1]})
	}
	return ins
}
