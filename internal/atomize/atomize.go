// Package atomize implements spec.md §4.2's Atomize pass: it rewrites every
// compound operand of a primitive operator, call, or branch condition into a
// variable reference, introducing a fresh `let` ahead of the statement that
// needs it. After this pass runs, only a handful of syntactic shapes ever sit
// directly under an operator (spec.md's Atomicity invariant).
package atomize

import (
	"jjc/internal/reveal"
	"jjc/internal/symtab"
	"jjc/internal/tast"
)

// Atomize returns a new program satisfying the Atomicity invariant. The tree
// shape is unchanged from reveal.Program — atomicity only constrains what
// can appear directly under an operator, not the overall representation.
func Atomize(prog *reveal.Program) *reveal.Program {
	out := &reveal.Program{Structs: prog.Structs, Main: prog.Main}
	for _, fd := range prog.Funcs {
		out.Funcs = append(out.Funcs, &reveal.FuncDecl{
			Sym: fd.Sym, Name: fd.Name, Params: fd.Params, Ret: fd.Ret, Pos: fd.Pos,
			Body: atomizeBlock(fd.Body),
		})
	}
	return out
}

func atomizeBlock(b *tast.Block) *tast.Block {
	out := &tast.Block{Type: b.Type, Pos: b.Pos}
	for _, st := range b.Stmts {
		atomizeStmtInto(st, &out.Stmts)
	}
	if b.Tail != nil {
		var pre []tast.Stmt
		tail := atomizeExpr(b.Tail, &pre)
		out.Stmts = append(out.Stmts, pre...)
		out.Tail = tail
	}
	return out
}

func atomizeStmtInto(s tast.Stmt, dst *[]tast.Stmt) {
	var pre []tast.Stmt
	switch st := s.(type) {
	case *tast.LetStmt:
		e := atomizeExpr(st.Expr, &pre)
		*dst = append(*dst, pre...)
		*dst = append(*dst, &tast.LetStmt{Sym: st.Sym, Name: st.Name, Type: st.Type, Expr: e})
	case *tast.AssignStmt:
		e := atomizeExpr(st.Expr, &pre)
		*dst = append(*dst, pre...)
		*dst = append(*dst, &tast.AssignStmt{Sym: st.Sym, Name: st.Name, Expr: e})
	case *tast.ExprStmt:
		e := atomizeExpr(st.Expr, &pre)
		*dst = append(*dst, pre...)
		*dst = append(*dst, &tast.ExprStmt{Expr: e})
	default:
		panic("atomize: unreachable tast.Stmt variant")
	}
}

// atom atomizes e and, if the result still isn't a literal or a variable,
// lifts it into a fresh let appended to pre and returns a reference to it.
func atom(e tast.Expr, pre *[]tast.Stmt) tast.Expr {
	e = atomizeExpr(e, pre)
	if isAtomic(e) {
		return e
	}
	sym := symtab.New("tmp")
	*pre = append(*pre, &tast.LetStmt{Sym: sym, Name: "tmp", Type: e.TypeOf(), Expr: e})
	return tast.NewVarExpr(e.Node(), e.TypeOf(), sym, "tmp")
}

func isAtomic(e tast.Expr) bool {
	switch e.(type) {
	case *tast.IntLit, *tast.BoolLit, *tast.UnitLit, *tast.VarExpr, *reveal.FunRef:
		return true
	default:
		return false
	}
}

// atomizeExpr recurses through e, atomizing the operand of every operator
// site named in spec.md's Atomicity invariant: primitive operands, call
// callee/arguments, and (via the IfExpr case below) branch conditions.
func atomizeExpr(e tast.Expr, pre *[]tast.Stmt) tast.Expr {
	switch x := e.(type) {
	case *tast.UnaryExpr:
		return tast.NewUnaryExpr(x.Node(), x.TypeOf(), x.Op, atom(x.X, pre))
	case *tast.BinaryExpr:
		return tast.NewBinaryExpr(x.Node(), x.TypeOf(), x.Op, atom(x.L, pre), atom(x.R, pre))
	case *tast.IfExpr:
		cond := atom(x.Cond, pre)
		return tast.NewIfExpr(x.Node(), x.TypeOf(), cond, atomizeBlock(x.Then), atomizeBlock(x.Else))
	case *tast.LoopExpr:
		return tast.NewLoopExpr(x.Node(), x.TypeOf(), atomizeBlock(x.Body))
	case *tast.BreakExpr:
		var v tast.Expr
		if x.Value != nil {
			v = atomizeExpr(x.Value, pre)
		}
		return tast.NewBreakExpr(x.Node(), v)
	case *tast.ReturnExpr:
		var v tast.Expr
		if x.Value != nil {
			v = atomizeExpr(x.Value, pre)
		}
		return tast.NewReturnExpr(x.Node(), v)
	case *tast.CallExpr:
		callee := atom(x.Callee, pre)
		args := make([]tast.Expr, len(x.Args))
		for i, a := range x.Args {
			args[i] = atom(a, pre)
		}
		return tast.NewCallExpr(x.Node(), x.TypeOf(), callee, args)
	case *tast.FieldAccessExpr:
		return tast.NewFieldAccessExpr(x.Node(), x.TypeOf(), atom(x.Receiver, pre), x.Field)
	case *tast.StructLitExpr:
		fields := make([]*tast.StructLitField, len(x.Fields))
		for i, f := range x.Fields {
			fields[i] = &tast.StructLitField{Name: f.Name, Expr: atom(f.Expr, pre)}
		}
		return tast.NewStructLitExpr(x.Node(), x.TypeOf(), x.StructSym, fields)
	default:
		return e // IntLit, BoolLit, UnitLit, VarExpr, FunRef, ContinueExpr
	}
}
