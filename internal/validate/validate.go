// Package validate implements the first stage of the compiler pipeline
// (spec.md §4.1): uniquify, union-find type inference, and the struct
// sized-check. It turns an internal/ast.Program into an internal/tast.Program
// in which every binder has a unique symtab.Symbol and every expression
// carries a resolved types.Type.
package validate

import (
	"jjc/internal/ast"
	jjerrors "jjc/internal/errors"
	"jjc/internal/symtab"
	"jjc/internal/tast"
	"jjc/internal/types"
)

// Validate runs uniquify, type inference, and the sized-check over prog,
// returning the first error encountered.
func Validate(prog *ast.Program) (*tast.Program, error) {
	structSyms := make(map[string]symtab.Symbol, len(prog.Structs))
	for _, sd := range prog.Structs {
		if _, dup := structSyms[sd.Name]; dup {
			return nil, jjerrors.New(jjerrors.DuplicateGlobal, sd.Pos(), "struct `%s` declared more than once", sd.Name)
		}
		structSyms[sd.Name] = symtab.New(sd.Name)
	}

	reg := types.NewRegistry()
	for _, sd := range prog.Structs {
		fields := make([]types.Field, len(sd.Fields))
		for i, f := range sd.Fields {
			ft, err := resolveTypeExpr(&f.Type, structSyms)
			if err != nil {
				return nil, err
			}
			fields[i] = types.Field{Name: f.Name, Type: ft}
		}
		reg.Define(&types.StructDef{Sym: structSyms[sd.Name], Name: sd.Name, Fields: fields})
	}

	if err := checkSized(prog.Structs, structSyms, reg); err != nil {
		return nil, err
	}

	funcSyms := make(map[string]symtab.Symbol, len(prog.Funcs)+2)
	funcTypes := make(map[string]types.Type, len(prog.Funcs)+2)
	for _, fd := range prog.Funcs {
		if _, dup := funcSyms[fd.Name]; dup {
			return nil, jjerrors.New(jjerrors.DuplicateFunction, fd.Pos(), "function `%s` declared more than once", fd.Name)
		}
		funcSyms[fd.Name] = symtab.New(fd.Name)
		params := make([]types.Type, len(fd.Params))
		for i, p := range fd.Params {
			pt, err := resolveTypeExpr(&p.Type, structSyms)
			if err != nil {
				return nil, err
			}
			params[i] = pt
		}
		ret, err := resolveTypeExpr(&fd.Ret, structSyms)
		if err != nil {
			return nil, err
		}
		funcTypes[fd.Name] = types.Fn(params, ret)
	}

	mainSym, ok := funcSyms["main"]
	if !ok {
		return nil, jjerrors.New(jjerrors.NoMain, ast.Position{}, "program has no `main` function")
	}

	// read/print are exposed as standard-library functions after validation
	// (spec.md §3); they get real symbols here so calls to them resolve like
	// any other function.
	funcSyms["read"] = symtab.New("read")
	funcTypes["read"] = types.Fn(nil, types.Prim(types.I64))
	funcSyms["print"] = symtab.New("print")
	funcTypes["print"] = types.Fn([]types.Type{types.Prim(types.I64)}, types.Prim(types.Unit))

	c := &checker{
		reg:        reg,
		structSyms: structSyms,
		funcSyms:   funcSyms,
		funcTypes:  funcTypes,
	}

	out := &tast.Program{Structs: reg, Main: mainSym}
	for _, fd := range prog.Funcs {
		tf, err := c.checkFunc(fd, funcSyms[fd.Name], funcTypes[fd.Name])
		if err != nil {
			return nil, err
		}
		out.Funcs = append(out.Funcs, tf)
	}
	return out, nil
}

func resolveTypeExpr(te *ast.TypeExpr, structSyms map[string]symtab.Symbol) (types.Type, error) {
	switch te.Name {
	case "I64":
		return types.Prim(types.I64), nil
	case "U64":
		return types.Prim(types.U64), nil
	case "Bool":
		return types.Prim(types.Bool), nil
	case "Unit":
		return types.Prim(types.Unit), nil
	}
	if sym, ok := structSyms[te.Name]; ok {
		return types.NamedVar(sym, te.Name), nil
	}
	return types.Type{}, jjerrors.New(jjerrors.SymbolShouldBeStruct, te.Pos(), "unknown type `%s`", te.Name)
}

// checker holds the state shared across one function body's traversal:
// the struct/function tables built from the whole program, plus the loop
// stack used to unify break-expression types (spec.md §4.1, "loop body may
// contribute to the loop type via break").
type checker struct {
	reg        *types.Registry
	structSyms map[string]symtab.Symbol
	funcSyms   map[string]symtab.Symbol
	funcTypes  map[string]types.Type
	curRet     types.Type
	loops      []*loopCtx
}

// loopCtx tracks one enclosing loop's result-type unification variable: every
// break within it binds/unifies against v, and the loop's own type is
// whatever v resolves to once the body has been fully walked (spec.md
// §4.1's "loop body may contribute to the loop type via break bdy").
type loopCtx struct {
	uf *unionFind
	v  int
}

func (c *checker) checkFunc(fd *ast.FuncDecl, sym symtab.Symbol, fnTy types.Type) (*tast.FuncDecl, error) {
	sc := newScope()
	seen := make(map[string]bool, len(fd.Params))
	params := make([]*tast.Param, len(fd.Params))
	for i, p := range fd.Params {
		if seen[p.Name] {
			return nil, jjerrors.New(jjerrors.DuplicateArg, p.Pos(), "parameter `%s` repeated in `%s`'s signature", p.Name, fd.Name)
		}
		seen[p.Name] = true
		psym := symtab.New(p.Name)
		pty := fnTy.Params[i]
		sc.declare(p.Name, binding{sym: psym, typ: pty})
		params[i] = &tast.Param{Sym: psym, Name: p.Name, Type: pty}
	}

	c.curRet = *fnTy.Ret
	body, err := c.checkBlock(fd.Body, sc)
	if err != nil {
		return nil, err
	}
	// A body ending in a `return e;` statement takes that return as its
	// tail, so the body's type is the return's Never.
	if n := len(body.Stmts); body.Tail == nil && n > 0 {
		if es, ok := body.Stmts[n-1].(*tast.ExprStmt); ok {
			if ret, ok := es.Expr.(*tast.ReturnExpr); ok {
				body.Stmts, body.Tail, body.Type = body.Stmts[:n-1], ret, ret.TypeOf()
			}
		}
	}
	if body.Type.Kind != types.Never && !types.Equal(body.Type, *fnTy.Ret) {
		return nil, jjerrors.New(jjerrors.MismatchedFnReturn, fd.Body.End(),
			"function `%s` declares return type %s but its body has type %s", fd.Name, fnTy.Ret, body.Type)
	}

	return &tast.FuncDecl{Sym: sym, Name: fd.Name, Params: params, Ret: *fnTy.Ret, Body: body, Pos: fd.Pos()}, nil
}

func (c *checker) checkBlock(b *ast.Block, sc *scope) (*tast.Block, error) {
	sc.push()
	defer sc.pop()

	out := &tast.Block{Pos: b.Pos()}
	for _, st := range b.Stmts {
		ts, err := c.checkStmt(st, sc)
		if err != nil {
			return nil, err
		}
		out.Stmts = append(out.Stmts, ts)
	}
	if b.Tail != nil {
		te, err := c.checkExprHint(b.Tail, nil, sc)
		if err != nil {
			return nil, err
		}
		out.Tail = te
		out.Type = te.TypeOf()
	} else {
		out.Type = types.Prim(types.Unit)
	}
	return out, nil
}

func (c *checker) checkStmt(s ast.Stmt, sc *scope) (tast.Stmt, error) {
	switch st := s.(type) {
	case *ast.LetStmt:
		var hint *types.Type
		if st.Type != nil {
			t, err := resolveTypeExpr(st.Type, c.structSyms)
			if err != nil {
				return nil, err
			}
			hint = &t
		}
		ve, err := c.checkExprHint(st.Expr, hint, sc)
		if err != nil {
			return nil, err
		}
		declTy := ve.TypeOf()
		if hint != nil && !types.Equal(*hint, declTy) {
			return nil, jjerrors.New(jjerrors.MismatchedLetBinding, st.Pos(),
				"`let %s` is annotated %s but its initializer has type %s", st.Name, hint, declTy)
		}
		sym := symtab.New(st.Name)
		sc.declare(st.Name, binding{sym: sym, typ: declTy})
		return &tast.LetStmt{Sym: sym, Name: st.Name, Type: declTy, Expr: ve}, nil

	case *ast.AssignStmt:
		b, ok := sc.lookup(st.Name)
		if !ok {
			return nil, jjerrors.New(jjerrors.UndeclaredVar, st.Pos(), "assignment to undeclared name `%s`", st.Name)
		}
		ve, err := c.checkExprHint(st.Expr, &b.typ, sc)
		if err != nil {
			return nil, err
		}
		if !types.Equal(b.typ, ve.TypeOf()) {
			return nil, jjerrors.New(jjerrors.MismatchedAssignBinding, st.Pos(),
				"cannot assign %s to `%s` of type %s", ve.TypeOf(), st.Name, b.typ)
		}
		return &tast.AssignStmt{Sym: b.sym, Name: st.Name, Expr: ve}, nil

	case *ast.ExprStmt:
		ve, err := c.checkExprHint(st.Expr, nil, sc)
		if err != nil {
			return nil, err
		}
		return &tast.ExprStmt{Expr: ve}, nil
	}
	panic("validate: unreachable ast.Stmt variant")
}
