package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"

	"jjc/internal/ast"
)

// Lower converts a parsed concrete syntax tree into the clean internal/ast
// shape that Validate consumes, folding each precedence level's left+tail
// list into a left-associative chain of ast.BinaryExpr nodes.
func Lower(cst *Program) *ast.Program {
	prog := &ast.Program{}
	for _, item := range cst.Items {
		switch {
		case item.Func != nil:
			prog.Funcs = append(prog.Funcs, lowerFunc(item.Func))
		case item.Struct != nil:
			prog.Structs = append(prog.Structs, lowerStruct(item.Struct))
		}
	}
	return prog
}

func pos(p lexer.Position) ast.Position {
	return ast.Position{Filename: p.Filename, Offset: p.Offset, Line: p.Line, Column: p.Column}
}

// setSpan records n's source span; every lowered node has one.
func setSpan(n interface{ SetSpan(from, to ast.Position) }, from, to ast.Position) {
	n.SetSpan(from, to)
}

func lowerFunc(f *FuncDecl) *ast.FuncDecl {
	ret := ast.TypeExpr{Name: "Unit"}
	if f.Ret != nil {
		ret = lowerType(f.Ret)
	}
	params := make([]*ast.Param, len(f.Params))
	for i, p := range f.Params {
		params[i] = &ast.Param{Name: p.Name, Type: lowerType(p.Type)}
		setSpan(params[i], pos(p.Pos), pos(p.EndPos))
	}
	decl := &ast.FuncDecl{Name: f.Name, Params: params, Ret: ret, Body: lowerBlock(f.Body)}
	setSpan(decl, pos(f.Pos), pos(f.EndPos))
	return decl
}

func lowerType(t *TypeExpr) ast.TypeExpr {
	te := ast.TypeExpr{Name: t.Name}
	setSpan(&te, pos(t.Pos), pos(t.EndPos))
	return te
}

func lowerStruct(s *StructDecl) *ast.StructDecl {
	fields := make([]*ast.FieldDecl, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = &ast.FieldDecl{Name: f.Name, Type: lowerType(f.Type)}
		setSpan(fields[i], pos(f.Pos), pos(f.EndPos))
	}
	decl := &ast.StructDecl{Name: s.Name, Fields: fields}
	setSpan(decl, pos(s.Pos), pos(s.EndPos))
	return decl
}

func lowerBlock(b *Block) *ast.Block {
	blk := &ast.Block{}
	setSpan(blk, pos(b.Pos), pos(b.EndPos))
	for _, s := range b.Stmts {
		blk.Stmts = append(blk.Stmts, lowerStmt(s))
	}
	if b.Tail != nil {
		blk.Tail = lowerValue(b.Tail)
	}
	return blk
}

func lowerStmt(s *Stmt) ast.Stmt {
	switch {
	case s.Let != nil:
		l := s.Let
		stmt := &ast.LetStmt{Name: l.Name, Expr: lowerValue(l.Value)}
		if l.Type != nil {
			t := lowerType(l.Type)
			stmt.Type = &t
		}
		setSpan(stmt, pos(l.Pos), pos(l.EndPos))
		return stmt
	case s.Assign != nil:
		a := s.Assign
		stmt := &ast.AssignStmt{Name: a.Name, Expr: lowerValue(a.Value)}
		setSpan(stmt, pos(a.Pos), pos(a.EndPos))
		return stmt
	case s.Return != nil:
		r := s.Return
		e := &ast.ReturnExpr{}
		if r.Value != nil {
			e.Value = lowerValue(r.Value)
		}
		setSpan(e, pos(r.Pos), pos(r.EndPos))
		stmt := &ast.ExprStmt{Expr: e}
		setSpan(stmt, pos(r.Pos), pos(r.EndPos))
		return stmt
	case s.Break != nil:
		br := s.Break
		e := &ast.BreakExpr{}
		if br.Value != nil {
			e.Value = lowerValue(br.Value)
		}
		setSpan(e, pos(br.Pos), pos(br.EndPos))
		stmt := &ast.ExprStmt{Expr: e}
		setSpan(stmt, pos(br.Pos), pos(br.EndPos))
		return stmt
	case s.Continue != nil:
		c := s.Continue
		e := &ast.ContinueExpr{}
		setSpan(e, pos(c.Pos), pos(c.EndPos))
		stmt := &ast.ExprStmt{Expr: e}
		setSpan(stmt, pos(c.Pos), pos(c.EndPos))
		return stmt
	case s.ExprStmt != nil:
		es := s.ExprStmt
		stmt := &ast.ExprStmt{Expr: lowerExpr(es.Expr)}
		setSpan(stmt, pos(es.Pos), pos(es.EndPos))
		return stmt
	default:
		panic("grammar: empty Stmt alternation")
	}
}

func lowerValue(v *ValueExpr) ast.Expr {
	if v.StructLit != nil {
		sl := v.StructLit
		fields := make([]*ast.StructLitField, len(sl.Fields))
		for i, f := range sl.Fields {
			field := &ast.StructLitField{Name: f.Name, Expr: lowerValue(f.Value)}
			setSpan(field, pos(f.Pos), pos(f.EndPos))
			fields[i] = field
		}
		e := &ast.StructLitExpr{StructName: sl.Name, Fields: fields}
		setSpan(e, pos(sl.Pos), pos(sl.EndPos))
		return e
	}
	return lowerExpr(v.Plain)
}

func lowerExpr(e *Expr) ast.Expr { return lowerOr(e.Or) }

func lowerOr(e *OrExpr) ast.Expr {
	left := lowerAnd(e.Left)
	for _, t := range e.Rest {
		right := lowerAnd(t.Right)
		left = binNode(ast.LOr, left, right)
	}
	return left
}

func lowerAnd(e *AndExpr) ast.Expr {
	left := lowerXor(e.Left)
	for _, t := range e.Rest {
		right := lowerXor(t.Right)
		left = binNode(ast.LAnd, left, right)
	}
	return left
}

func lowerXor(e *XorExpr) ast.Expr {
	left := lowerEq(e.Left)
	for _, t := range e.Rest {
		right := lowerEq(t.Right)
		left = binNode(ast.Xor, left, right)
	}
	return left
}

func lowerEq(e *EqExpr) ast.Expr {
	left := lowerRel(e.Left)
	for _, t := range e.Rest {
		op := ast.EQ
		if t.Op == "!=" {
			op = ast.NE
		}
		right := lowerRel(t.Right)
		left = binNode(op, left, right)
	}
	return left
}

func lowerRel(e *RelExpr) ast.Expr {
	left := lowerAdd(e.Left)
	for _, t := range e.Rest {
		var op ast.BinOp
		switch t.Op {
		case "<":
			op = ast.LT
		case "<=":
			op = ast.LE
		case ">":
			op = ast.GT
		default:
			op = ast.GE
		}
		right := lowerAdd(t.Right)
		left = binNode(op, left, right)
	}
	return left
}

func lowerAdd(e *AddExpr) ast.Expr {
	left := lowerMul(e.Left)
	for _, t := range e.Rest {
		op := ast.Add
		if t.Op == "-" {
			op = ast.Sub
		}
		right := lowerMul(t.Right)
		left = binNode(op, left, right)
	}
	return left
}

func lowerMul(e *MulExpr) ast.Expr {
	left := lowerUnary(e.Left)
	for _, t := range e.Rest {
		var op ast.BinOp
		switch t.Op {
		case "*":
			op = ast.Mul
		case "/":
			op = ast.Div
		default:
			op = ast.Mod
		}
		right := lowerUnary(t.Right)
		left = binNode(op, left, right)
	}
	return left
}

func binNode(op ast.BinOp, l, r ast.Expr) ast.Expr {
	n := &ast.BinaryExpr{Op: op, L: l, R: r}
	setSpan(n, l.Pos(), r.End())
	return n
}

func lowerUnary(e *UnaryExpr) ast.Expr {
	x := lowerPostfix(e.X)
	if e.Op == nil {
		return x
	}
	op := ast.Neg
	if *e.Op == "!" {
		op = ast.Not
	}
	n := &ast.UnaryExpr{Op: op, X: x}
	setSpan(n, pos(e.Pos), pos(e.EndPos))
	return n
}

func lowerPostfix(e *PostfixExpr) ast.Expr {
	cur := lowerPrimary(e.Primary)
	for _, pf := range e.Postfixes {
		switch {
		case pf.Field != nil:
			n := &ast.FieldAccessExpr{Receiver: cur, Field: *pf.Field}
			setSpan(n, cur.Pos(), pos(pf.EndPos))
			cur = n
		case pf.Call != nil:
			args := make([]ast.Expr, len(pf.Call.Values))
			for i, a := range pf.Call.Values {
				args[i] = lowerValue(a)
			}
			n := &ast.CallExpr{Callee: cur, Args: args}
			setSpan(n, cur.Pos(), pos(pf.EndPos))
			cur = n
		}
	}
	return cur
}

func lowerPrimary(p *PrimaryExpr) ast.Expr {
	switch {
	case p.Int != nil:
		n := &ast.IntLit{Value: *p.Int}
		setSpan(n, pos(p.Pos), pos(p.EndPos))
		return n
	case p.Bool != nil:
		n := &ast.BoolLit{Value: *p.Bool == "true"}
		setSpan(n, pos(p.Pos), pos(p.EndPos))
		return n
	case p.Unit != nil:
		n := &ast.UnitLit{}
		setSpan(n, pos(p.Unit.Pos), pos(p.Unit.EndPos))
		return n
	case p.If != nil:
		ie := p.If
		elseBlk := &ast.Block{}
		if ie.Else != nil {
			elseBlk = lowerBlock(ie.Else)
		} else {
			setSpan(elseBlk, pos(ie.EndPos), pos(ie.EndPos))
		}
		n := &ast.IfExpr{Cond: lowerExpr(ie.Cond), Then: lowerBlock(ie.Then), Else: elseBlk}
		setSpan(n, pos(ie.Pos), pos(ie.EndPos))
		return n
	case p.Loop != nil:
		n := &ast.LoopExpr{Body: lowerBlock(p.Loop.Body)}
		setSpan(n, pos(p.Loop.Pos), pos(p.Loop.EndPos))
		return n
	case p.Paren != nil:
		n := &ast.ParenExpr{X: lowerExpr(p.Paren)}
		setSpan(n, pos(p.Pos), pos(p.EndPos))
		return n
	case p.Ident != nil:
		n := &ast.IdentExpr{Name: *p.Ident}
		setSpan(n, pos(p.Pos), pos(p.EndPos))
		return n
	default:
		panic("grammar: empty PrimaryExpr alternation")
	}
}
