// Package explicate implements spec.md §4.2's Explicate pass: it lowers the
// remaining structured control (if/loop/break/continue/return) into a
// per-function control-flow graph of basic blocks, each ending in exactly
// one terminator (Return, Goto, or IfStmt). Straight-line code inside a
// block is untouched; only control constructs force a block boundary.
package explicate

import (
	"jjc/internal/reveal"
	"jjc/internal/symtab"
	"jjc/internal/tast"
	"jjc/internal/types"
)

// Program is a lowered jj program: every function is now a CFG instead of
// nested structured control.
type Program struct {
	Funcs   []*Func
	Structs *types.Registry
	Main    symtab.Symbol
}

// Func is one function's CFG. Blocks[0] is not necessarily the entry block
// once later passes reorder things; Entry always names it by label.
type Func struct {
	Sym    symtab.Symbol
	Name   string
	Params []*tast.Param
	Ret    types.Type
	Entry  symtab.Symbol
	Blocks []*Block
}

// Block is a label, a straight-line statement list, and exactly one
// terminator (spec.md's Block closure invariant).
type Block struct {
	Label symtab.Symbol
	Stmts []Stmt
	Term  Terminator
}

// Stmt is implemented by AssignStmt and EvalStmt.
type Stmt interface{ stmtNode() }

// AssignStmt stores an expression's value into sym.
type AssignStmt struct {
	Sym  symtab.Symbol
	Expr tast.Expr
}

// EvalStmt evaluates an expression and discards its value — the shape a
// call kept for its side effect takes (e.g. a bare `print(x);`).
type EvalStmt struct{ Expr tast.Expr }

func (*AssignStmt) stmtNode() {}
func (*EvalStmt) stmtNode()   {}

// Terminator is implemented by Return, Goto, and IfStmt.
type Terminator interface{ termNode() }

type Return struct{ Value tast.Expr }
type Goto struct{ Target symtab.Symbol }
type IfStmt struct {
	Cond       tast.Expr
	Then, Else symtab.Symbol
}

func (*Return) termNode() {}
func (*Goto) termNode()   {}
func (*IfStmt) termNode() {}

// Explicate lowers every function in prog to a CFG.
func Explicate(prog *reveal.Program) *Program {
	out := &Program{Structs: prog.Structs, Main: prog.Main}
	for _, fd := range prog.Funcs {
		out.Funcs = append(out.Funcs, explicateFunc(fd))
	}
	return out
}

func explicateFunc(fd *reveal.FuncDecl) *Func {
	b := &builder{blocks: map[int64]*Block{}}
	entry := b.newBlock()
	b.startBlock(entry)
	b.stmts(fd.Body.Stmts)
	b.explicateInto(tailOrUnit(fd.Body), dest{kind: destReturn})

	// Every jump opens a fresh block for whatever follows it; one that
	// nothing followed is empty and unterminated, and is dropped here.
	blocks := b.ordered[:0]
	for _, blk := range b.ordered {
		if blk.Term == nil && len(blk.Stmts) == 0 {
			continue
		}
		blocks = append(blocks, blk)
	}

	return &Func{
		Sym: fd.Sym, Name: fd.Name, Params: fd.Params, Ret: fd.Ret,
		Entry: entry.Label, Blocks: blocks,
	}
}

func tailOrUnit(blk *tast.Block) tast.Expr {
	if blk.Tail != nil {
		return blk.Tail
	}
	return tast.NewUnitLit(blk.Pos)
}

// destKind picks what an explicated expression's value should become:
// stored into a variable, discarded, or returned from the function.
type destKind int

const (
	destAssign destKind = iota
	destDiscard
	destReturn
)

type dest struct {
	kind destKind
	sym  symtab.Symbol
}

// loopCtx records one enclosing loop's jump targets and, if the loop's type
// carries a value, the symbol every `break` assigns into before jumping to
// cont (spec.md §4.2: "break v ... assigns v into the loop's result
// temporary and Goto's the continuation block").
type loopCtx struct {
	head, cont symtab.Symbol
	resultSym  symtab.Symbol
	hasResult  bool
}

type builder struct {
	blocks  map[int64]*Block
	ordered []*Block
	cur     *Block
	loops   []loopCtx
}

func (b *builder) newBlock() *Block {
	label := symtab.New("bb")
	blk := &Block{Label: label}
	b.blocks[label.ID()] = blk
	b.ordered = append(b.ordered, blk)
	return blk
}

func (b *builder) startBlock(blk *Block) { b.cur = blk }
func (b *builder) emit(s Stmt)           { b.cur.Stmts = append(b.cur.Stmts, s) }
func (b *builder) terminate(t Terminator) { b.cur.Term = t }

// stmts lowers a straight-line statement list, descending into any control
// construct it contains.
func (b *builder) stmts(list []tast.Stmt) {
	for _, st := range list {
		switch s := st.(type) {
		case *tast.LetStmt:
			b.explicateInto(s.Expr, dest{kind: destAssign, sym: s.Sym})
		case *tast.AssignStmt:
			b.explicateInto(s.Expr, dest{kind: destAssign, sym: s.Sym})
		case *tast.ExprStmt:
			b.explicateInto(s.Expr, dest{kind: destDiscard})
		default:
			panic("explicate: unreachable tast.Stmt variant")
		}
	}
}

// explicateInto lowers e and routes its value according to d: if e is a
// control construct (if/loop/break/continue/return), this may emit several
// blocks and change b.cur to wherever control falls through to afterward.
func (b *builder) explicateInto(e tast.Expr, d dest) {
	switch x := e.(type) {
	case *tast.IfExpr:
		thn, els := b.newBlock(), b.newBlock()
		b.terminate(&IfStmt{Cond: x.Cond, Then: thn.Label, Else: els.Label})

		if d.kind == destReturn {
			b.startBlock(thn)
			b.stmts(x.Then.Stmts)
			b.explicateInto(tailOrUnit(x.Then), d)
			b.startBlock(els)
			b.stmts(x.Else.Stmts)
			b.explicateInto(tailOrUnit(x.Else), d)
			return
		}

		cont := b.newBlock()
		b.startBlock(thn)
		b.stmts(x.Then.Stmts)
		b.explicateInto(tailOrUnit(x.Then), d)
		b.terminate(&Goto{Target: cont.Label})

		b.startBlock(els)
		b.stmts(x.Else.Stmts)
		b.explicateInto(tailOrUnit(x.Else), d)
		b.terminate(&Goto{Target: cont.Label})

		b.startBlock(cont)

	case *tast.LoopExpr:
		head, cont := b.newBlock(), b.newBlock()
		hasResult := x.TypeOf().Kind != types.Unit && x.TypeOf().Kind != types.Never
		var resultSym symtab.Symbol
		if hasResult {
			resultSym = symtab.New("loopval")
		}
		b.terminate(&Goto{Target: head.Label})

		b.loops = append(b.loops, loopCtx{head: head.Label, cont: cont.Label, resultSym: resultSym, hasResult: hasResult})
		b.startBlock(head)
		b.stmts(x.Body.Stmts)
		if x.Body.Tail != nil {
			b.explicateInto(x.Body.Tail, dest{kind: destDiscard})
		}
		b.terminate(&Goto{Target: head.Label})
		b.loops = b.loops[:len(b.loops)-1]

		b.startBlock(cont)
		if hasResult {
			b.explicateInto(tast.NewVarExpr(x.Node(), x.TypeOf(), resultSym, "loopval"), d)
		} else {
			b.explicateInto(tast.NewUnitLit(x.Node()), d)
		}

	case *tast.BreakExpr:
		lc := b.loops[len(b.loops)-1]
		if lc.hasResult {
			val := x.Value
			if val == nil {
				val = tast.NewUnitLit(x.Node())
			}
			b.emit(&AssignStmt{Sym: lc.resultSym, Expr: val})
		}
		b.terminate(&Goto{Target: lc.cont})
		b.startBlock(b.newBlock())

	case *tast.ContinueExpr:
		lc := b.loops[len(b.loops)-1]
		b.terminate(&Goto{Target: lc.head})
		b.startBlock(b.newBlock())

	case *tast.ReturnExpr:
		val := x.Value
		if val == nil {
			val = tast.NewUnitLit(x.Node())
		}
		b.terminate(&Return{Value: val})
		b.startBlock(b.newBlock())

	default:
		switch d.kind {
		case destAssign:
			b.emit(&AssignStmt{Sym: d.sym, Expr: e})
		case destDiscard:
			b.emit(&EvalStmt{Expr: e})
		case destReturn:
			b.terminate(&Return{Value: e})
			b.startBlock(b.newBlock())
		}
	}
}
