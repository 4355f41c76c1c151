package validate

import (
	"strconv"

	"jjc/internal/ast"
	jjerrors "jjc/internal/errors"
	"jjc/internal/tast"
	"jjc/internal/types"
)

// parseIntLitBits interprets raw (the literal's decimal digits, as the
// lexer accepted them) against kind's range, returning its two's
// complement bit pattern as an int64 — the same raw-bits convention
// internal/select's Imm already treats U64 operands under. Grounded on
// the original compiler's validate_lit.rs, which likewise keeps an
// integer literal as a string through parsing and only parses (and
// bounds-checks) it here, at the point its type is known.
func parseIntLitBits(raw string, kind types.Kind, pos ast.Position) (int64, error) {
	if kind == types.U64 {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, jjerrors.New(jjerrors.IntegerOutOfBounds, pos, "integer literal `%s` does not fit in U64", raw)
		}
		return int64(v), nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, jjerrors.New(jjerrors.IntegerOutOfBounds, pos, "integer literal `%s` does not fit in I64", raw)
	}
	return v, nil
}

// checkExprHint type-checks e, optionally propagating an expected type into
// positions where jj's surface syntax is ambiguous about which integer kind
// a bare literal means (spec.md §4.1: "equal to I64, or to the element type
// hinted by the literal").
func (c *checker) checkExprHint(e ast.Expr, hint *types.Type, sc *scope) (tast.Expr, error) {
	switch x := e.(type) {
	case *ast.IntLit:
		ty := types.Prim(types.I64)
		if hint != nil && types.IsInteger(*hint) {
			ty = *hint
		}
		bits, err := parseIntLitBits(x.Value, ty.Kind, x.Pos())
		if err != nil {
			return nil, err
		}
		return tast.NewIntLit(x.Pos(), ty, bits), nil

	case *ast.BoolLit:
		return tast.NewBoolLit(x.Pos(), x.Value), nil

	case *ast.UnitLit:
		return tast.NewUnitLit(x.Pos()), nil

	case *ast.ParenExpr:
		return c.checkExprHint(x.X, hint, sc)

	case *ast.IdentExpr:
		if b, ok := sc.lookup(x.Name); ok {
			return tast.NewVarExpr(x.Pos(), b.typ, b.sym, x.Name), nil
		}
		if sym, ok := c.funcSyms[x.Name]; ok {
			return tast.NewVarExpr(x.Pos(), c.funcTypes[x.Name], sym, x.Name), nil
		}
		return nil, jjerrors.New(jjerrors.UndeclaredVar, x.Pos(), "use of undeclared name `%s`", x.Name)

	case *ast.UnaryExpr:
		return c.checkUnary(x, sc)

	case *ast.BinaryExpr:
		return c.checkBinary(x, sc)

	case *ast.IfExpr:
		return c.checkIf(x, sc)

	case *ast.LoopExpr:
		return c.checkLoop(x, sc)

	case *ast.BreakExpr:
		return c.checkBreak(x, sc)

	case *ast.ContinueExpr:
		if len(c.loops) == 0 {
			return nil, jjerrors.New(jjerrors.ContinueOutsideLoop, x.Pos(), "`continue` outside of a loop")
		}
		return tast.NewContinueExpr(x.Pos()), nil

	case *ast.ReturnExpr:
		return c.checkReturn(x, sc)

	case *ast.CallExpr:
		return c.checkCall(x, sc)

	case *ast.FieldAccessExpr:
		return c.checkFieldAccess(x, sc)

	case *ast.StructLitExpr:
		return c.checkStructLit(x, sc)
	}
	panic("validate: unreachable ast.Expr variant")
}

func (c *checker) checkUnary(x *ast.UnaryExpr, sc *scope) (tast.Expr, error) {
	inner, err := c.checkExprHint(x.X, nil, sc)
	if err != nil {
		return nil, err
	}
	ty := inner.TypeOf()
	switch x.Op {
	case ast.Not:
		if ty.Kind != types.Bool {
			return nil, jjerrors.New(jjerrors.OperandExpect, x.Pos(), "`!` requires a Bool operand, found %s", ty)
		}
	case ast.Neg:
		if !types.IsInteger(ty) {
			return nil, jjerrors.New(jjerrors.OperandExpect, x.Pos(), "unary `-` requires an integer operand, found %s", ty)
		}
		if ty.Kind == types.U64 {
			return nil, jjerrors.New(jjerrors.IntegerOutOfBounds, x.Pos(), "negation of an unsigned value is out of range")
		}
	}
	return tast.NewUnaryExpr(x.Pos(), ty, x.Op, inner), nil
}

func (c *checker) checkBinary(x *ast.BinaryExpr, sc *scope) (tast.Expr, error) {
	l, err := c.checkExprHint(x.L, nil, sc)
	if err != nil {
		return nil, err
	}
	var hint *types.Type
	if types.IsInteger(l.TypeOf()) {
		t := l.TypeOf()
		hint = &t
	}
	r, err := c.checkExprHint(x.R, hint, sc)
	if err != nil {
		return nil, err
	}

	switch {
	case x.Op.IsLogical():
		if l.TypeOf().Kind != types.Bool || r.TypeOf().Kind != types.Bool {
			return nil, jjerrors.New(jjerrors.OperandExpect, x.Pos(), "`%s` requires Bool operands", x.Op)
		}
		return tast.NewBinaryExpr(x.Pos(), types.Prim(types.Bool), x.Op, l, r), nil

	case x.Op.IsComparison():
		if x.Op == ast.EQ || x.Op == ast.NE {
			if !types.Equal(l.TypeOf(), r.TypeOf()) {
				return nil, jjerrors.New(jjerrors.OperandEqual, x.Pos(), "`%s` requires both operands to have the same type, found %s and %s", x.Op, l.TypeOf(), r.TypeOf())
			}
		} else {
			if !types.IsInteger(l.TypeOf()) || !types.IsInteger(r.TypeOf()) {
				return nil, jjerrors.New(jjerrors.OperandExpect, x.Pos(), "`%s` requires integer operands", x.Op)
			}
			if !types.Equal(l.TypeOf(), r.TypeOf()) {
				return nil, jjerrors.New(jjerrors.OperandEqual, x.Pos(), "`%s` requires both operands to have the same type, found %s and %s", x.Op, l.TypeOf(), r.TypeOf())
			}
		}
		return tast.NewBinaryExpr(x.Pos(), types.Prim(types.Bool), x.Op, l, r), nil

	default: // arithmetic
		if !types.IsInteger(l.TypeOf()) || !types.IsInteger(r.TypeOf()) {
			return nil, jjerrors.New(jjerrors.OperandExpect, x.Pos(), "`%s` requires integer operands, found %s and %s", x.Op, l.TypeOf(), r.TypeOf())
		}
		uf := newUnionFind()
		lv, rv := uf.fresh(), uf.fresh()
		uf.bindType(lv, l.TypeOf())
		uf.bindType(rv, r.TypeOf())
		if !uf.union(lv, rv) {
			return nil, jjerrors.New(jjerrors.OperandEqual, x.Pos(), "`%s` requires both operands to have the same type, found %s and %s", x.Op, l.TypeOf(), r.TypeOf())
		}
		resultTy, _ := uf.resolve(lv)
		return tast.NewBinaryExpr(x.Pos(), resultTy, x.Op, l, r), nil
	}
}

func (c *checker) checkIf(x *ast.IfExpr, sc *scope) (tast.Expr, error) {
	cond, err := c.checkExprHint(x.Cond, nil, sc)
	if err != nil {
		return nil, err
	}
	if cond.TypeOf().Kind != types.Bool {
		return nil, jjerrors.New(jjerrors.IfExpectBool, x.Cond.Pos(), "`if` condition must be Bool, found %s", cond.TypeOf())
	}
	thenBlk, err := c.checkBlock(x.Then, sc)
	if err != nil {
		return nil, err
	}
	elseBlk, err := c.checkBlock(x.Else, sc)
	if err != nil {
		return nil, err
	}

	// Join the branch types through a unification variable, same join point
	// the constraint solver uses for every other merge site (spec.md §4.1).
	uf := newUnionFind()
	v := uf.fresh()
	uf.bindType(v, thenBlk.Type)
	if !uf.bindType(v, elseBlk.Type) {
		return nil, jjerrors.New(jjerrors.IfExpectEqual, x.Pos(),
			"`if` branches have different types: %s vs %s", thenBlk.Type, elseBlk.Type)
	}
	joined, _ := uf.resolve(v)
	return tast.NewIfExpr(x.Pos(), joined, cond, thenBlk, elseBlk), nil
}

func (c *checker) checkLoop(x *ast.LoopExpr, sc *scope) (tast.Expr, error) {
	uf := newUnionFind()
	lc := &loopCtx{uf: uf, v: uf.fresh()}
	c.loops = append(c.loops, lc)
	body, err := c.checkBlock(x.Body, sc)
	c.loops = c.loops[:len(c.loops)-1]
	if err != nil {
		return nil, err
	}
	ty, ok := uf.resolve(lc.v)
	if !ok {
		ty = types.Prim(types.Never) // no break was ever reached
	}
	return tast.NewLoopExpr(x.Pos(), ty, body), nil
}

func (c *checker) checkBreak(x *ast.BreakExpr, sc *scope) (tast.Expr, error) {
	if len(c.loops) == 0 {
		return nil, jjerrors.New(jjerrors.BreakOutsideLoop, x.Pos(), "`break` outside of a loop")
	}
	lc := c.loops[len(c.loops)-1]
	var val tast.Expr
	valTy := types.Prim(types.Unit)
	if x.Value != nil {
		v, err := c.checkExprHint(x.Value, nil, sc)
		if err != nil {
			return nil, err
		}
		val = v
		valTy = v.TypeOf()
	}
	if !lc.uf.bindType(lc.v, valTy) {
		prev, _ := lc.uf.resolve(lc.v)
		return nil, jjerrors.New(jjerrors.TypeMismatchEqual, x.Pos(),
			"`break` value has type %s, but an earlier `break` in this loop had type %s", valTy, prev)
	}
	return tast.NewBreakExpr(x.Pos(), val), nil
}

func (c *checker) checkReturn(x *ast.ReturnExpr, sc *scope) (tast.Expr, error) {
	var val tast.Expr
	valTy := types.Prim(types.Unit)
	if x.Value != nil {
		v, err := c.checkExprHint(x.Value, &c.curRet, sc)
		if err != nil {
			return nil, err
		}
		val = v
		valTy = v.TypeOf()
	}
	if !types.Equal(valTy, c.curRet) {
		return nil, jjerrors.New(jjerrors.MismatchedFnReturn, x.Pos(),
			"returned value has type %s, function returns %s", valTy, c.curRet)
	}
	return tast.NewReturnExpr(x.Pos(), val), nil
}

func (c *checker) checkCall(x *ast.CallExpr, sc *scope) (tast.Expr, error) {
	callee, err := c.checkExprHint(x.Callee, nil, sc)
	if err != nil {
		return nil, err
	}
	fnTy := callee.TypeOf()
	if fnTy.Kind != types.FnKind {
		return nil, jjerrors.New(jjerrors.SymbolShouldBeVariable, x.Callee.Pos(), "called value is not a function")
	}
	if len(x.Args) != len(fnTy.Params) {
		return nil, jjerrors.New(jjerrors.ArgCountMismatch, x.Pos(),
			"call supplies %d argument(s), expected %d", len(x.Args), len(fnTy.Params))
	}
	args := make([]tast.Expr, len(x.Args))
	for i, a := range x.Args {
		pt := fnTy.Params[i]
		ta, err := c.checkExprHint(a, &pt, sc)
		if err != nil {
			return nil, err
		}
		if !types.Equal(ta.TypeOf(), pt) {
			return nil, jjerrors.New(jjerrors.TypeMismatchExpect, a.Pos(),
				"argument %d has type %s, expected %s", i+1, ta.TypeOf(), pt)
		}
		args[i] = ta
	}
	return tast.NewCallExpr(x.Pos(), *fnTy.Ret, callee, args), nil
}

func (c *checker) checkFieldAccess(x *ast.FieldAccessExpr, sc *scope) (tast.Expr, error) {
	recv, err := c.checkExprHint(x.Receiver, nil, sc)
	if err != nil {
		return nil, err
	}
	def, ok := c.reg.LookupType(recv.TypeOf())
	if !ok {
		return nil, jjerrors.New(jjerrors.TypeShouldBeStruct, x.Receiver.Pos(), "field access on non-struct type %s", recv.TypeOf())
	}
	ft, ok := def.FieldType(x.Field)
	if !ok {
		return nil, jjerrors.New(jjerrors.UnknownStructField, x.Pos(), "struct `%s` has no field `%s`", def.Name, x.Field)
	}
	return tast.NewFieldAccessExpr(x.Pos(), ft, recv, x.Field), nil
}

func (c *checker) checkStructLit(x *ast.StructLitExpr, sc *scope) (tast.Expr, error) {
	sym, ok := c.structSyms[x.StructName]
	if !ok {
		return nil, jjerrors.New(jjerrors.SymbolShouldBeStruct, x.Pos(), "unknown struct `%s`", x.StructName)
	}
	def, _ := c.reg.Lookup(sym)

	provided := make(map[string]*ast.StructLitField, len(x.Fields))
	for _, f := range x.Fields {
		if _, dup := provided[f.Name]; dup {
			return nil, jjerrors.New(jjerrors.VariableConstructDuplicateField, f.Pos(), "field `%s` repeated in struct literal", f.Name)
		}
		provided[f.Name] = f
	}
	for _, f := range def.Fields {
		if _, ok := provided[f.Name]; !ok {
			return nil, jjerrors.New(jjerrors.VariableConstructMissingField, x.Pos(), "struct literal is missing field `%s`", f.Name)
		}
	}

	fields := make([]*tast.StructLitField, len(x.Fields))
	for i, f := range x.Fields {
		declTy, ok := def.FieldType(f.Name)
		if !ok {
			return nil, jjerrors.New(jjerrors.UnknownStructField, f.Pos(), "struct `%s` has no field `%s`", def.Name, f.Name)
		}
		ve, err := c.checkExprHint(f.Expr, &declTy, sc)
		if err != nil {
			return nil, err
		}
		if !types.Equal(ve.TypeOf(), declTy) {
			return nil, jjerrors.New(jjerrors.TypeMismatchExpect, f.Pos(), "field `%s` has type %s, expected %s", f.Name, ve.TypeOf(), declTy)
		}
		fields[i] = &tast.StructLitField{Name: f.Name, Expr: ve}
	}
	return tast.NewStructLitExpr(x.Pos(), types.NamedVar(sym, def.Name), sym, fields), nil
}
