// Package reveal implements spec.md §4.2's Reveal pass: it rewrites every
// VarExpr that actually names a top-level function into a FunRef node, so
// later passes can tell a function pointer value apart from an ordinary
// variable without re-deriving it from the symbol table each time.
package reveal

import (
	"jjc/internal/ast"
	"jjc/internal/symtab"
	"jjc/internal/tast"
	"jjc/internal/types"
)

// Program mirrors tast.Program with function occurrences made explicit.
type Program struct {
	Funcs   []*FuncDecl
	Structs *types.Registry
	Main    symtab.Symbol
}

type FuncDecl struct {
	Sym    symtab.Symbol
	Name   string
	Params []*tast.Param
	Ret    types.Type
	Body   *tast.Block
	Pos    ast.Position
}

// Reveal walks prog and returns a new tree with function references made
// explicit. prog is not mutated: every node with a child is rebuilt, while
// leaf nodes and parameters are shared with prog.
func Reveal(prog *tast.Program) *Program {
	funcSyms := make(map[int64]bool, len(prog.Funcs))
	for _, fd := range prog.Funcs {
		funcSyms[fd.Sym.ID()] = true
	}
	r := &revealer{funcSyms: funcSyms}

	out := &Program{Structs: prog.Structs, Main: prog.Main}
	for _, fd := range prog.Funcs {
		out.Funcs = append(out.Funcs, &FuncDecl{
			Sym:    fd.Sym,
			Name:   fd.Name,
			Params: fd.Params,
			Ret:    fd.Ret,
			Pos:    fd.Pos,
			Body:   r.revealBlock(fd.Body),
		})
	}
	return out
}

type revealer struct {
	funcSyms map[int64]bool
}

func (r *revealer) revealBlock(b *tast.Block) *tast.Block {
	out := &tast.Block{Type: b.Type, Pos: b.Pos}
	for _, st := range b.Stmts {
		out.Stmts = append(out.Stmts, r.revealStmt(st))
	}
	if b.Tail != nil {
		out.Tail = r.revealExpr(b.Tail)
	}
	return out
}

func (r *revealer) revealStmt(s tast.Stmt) tast.Stmt {
	switch st := s.(type) {
	case *tast.LetStmt:
		return &tast.LetStmt{Sym: st.Sym, Name: st.Name, Type: st.Type, Expr: r.revealExpr(st.Expr)}
	case *tast.AssignStmt:
		return &tast.AssignStmt{Sym: st.Sym, Name: st.Name, Expr: r.revealExpr(st.Expr)}
	case *tast.ExprStmt:
		return &tast.ExprStmt{Expr: r.revealExpr(st.Expr)}
	}
	panic("reveal: unreachable tast.Stmt variant")
}

func (r *revealer) revealExpr(e tast.Expr) tast.Expr {
	switch x := e.(type) {
	case *tast.VarExpr:
		if r.funcSyms[x.Sym.ID()] || x.Name == "read" || x.Name == "print" {
			return NewFunRef(x.Node(), x.TypeOf(), x.Sym, x.Name)
		}
		return x
	case *tast.UnaryExpr:
		return tast.NewUnaryExpr(x.Node(), x.TypeOf(), x.Op, r.revealExpr(x.X))
	case *tast.BinaryExpr:
		return tast.NewBinaryExpr(x.Node(), x.TypeOf(), x.Op, r.revealExpr(x.L), r.revealExpr(x.R))
	case *tast.IfExpr:
		return tast.NewIfExpr(x.Node(), x.TypeOf(), r.revealExpr(x.Cond), r.revealBlock(x.Then), r.revealBlock(x.Else))
	case *tast.LoopExpr:
		return tast.NewLoopExpr(x.Node(), x.TypeOf(), r.revealBlock(x.Body))
	case *tast.BreakExpr:
		var v tast.Expr
		if x.Value != nil {
			v = r.revealExpr(x.Value)
		}
		return tast.NewBreakExpr(x.Node(), v)
	case *tast.ReturnExpr:
		var v tast.Expr
		if x.Value != nil {
			v = r.revealExpr(x.Value)
		}
		return tast.NewReturnExpr(x.Node(), v)
	case *tast.CallExpr:
		args := make([]tast.Expr, len(x.Args))
		for i, a := range x.Args {
			args[i] = r.revealExpr(a)
		}
		return tast.NewCallExpr(x.Node(), x.TypeOf(), r.revealExpr(x.Callee), args)
	case *tast.FieldAccessExpr:
		return tast.NewFieldAccessExpr(x.Node(), x.TypeOf(), r.revealExpr(x.Receiver), x.Field)
	case *tast.StructLitExpr:
		fields := make([]*tast.StructLitField, len(x.Fields))
		for i, f := range x.Fields {
			fields[i] = &tast.StructLitField{Name: f.Name, Expr: r.revealExpr(f.Expr)}
		}
		return tast.NewStructLitExpr(x.Node(), x.TypeOf(), x.StructSym, fields)
	default:
		// IntLit, BoolLit, UnitLit, ContinueExpr, FunRef carry no children.
		return e
	}
}

// FunRef is a resolved reference to a top-level function, distinguished
// from an ordinary VarExpr so Select can tell a direct call from a call
// through a function-pointer-typed variable (spec.md §4.2).
type FunRef struct {
	pos  ast.Position
	ty   types.Type
	Sym  symtab.Symbol
	Name string
}

func NewFunRef(pos ast.Position, ty types.Type, sym symtab.Symbol, name string) *FunRef {
	return &FunRef{pos: pos, ty: ty, Sym: sym, Name: name}
}

func (f *FunRef) Node() ast.Position  { return f.pos }
func (f *FunRef) TypeOf() types.Type { return f.ty }
