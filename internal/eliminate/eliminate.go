// Package eliminate implements spec.md §4.2's Eliminate pass: every
// struct-typed variable is replaced by one scalar per leaf field, threaded
// through a (symbol, field-path) -> fresh-symbol map. Struct construction
// becomes parallel scalar assignments, field access resolves directly to
// the matching scalar, and nested structs flatten recursively. Function
// parameter lists and return positions are expanded in lockstep, so by the
// time Select sees a program, no value is wider than one machine word.
package eliminate

import (
	"strings"

	"jjc/internal/explicate"
	"jjc/internal/reveal"
	"jjc/internal/symtab"
	"jjc/internal/tast"
	"jjc/internal/types"
)

type Program struct {
	Funcs   []*Func
	Structs *types.Registry
	Main    symtab.Symbol
}

type ScalarParam struct {
	Sym  symtab.Symbol
	Name string
	Type types.Type
}

// Func is scalar-valued throughout: Rets lists one type per flattened
// return slot (always at least one, since a Unit return still flattens to
// a single Unit-typed slot).
type Func struct {
	Sym    symtab.Symbol
	Name   string
	Params []*ScalarParam
	Rets   []types.Type
	Entry  symtab.Symbol
	Blocks []*Block
}

type Block struct {
	Label symtab.Symbol
	Stmts []Stmt
	Term  Terminator
}

type Stmt interface{ stmtNode() }

type AssignStmt struct {
	Sym  symtab.Symbol
	Expr tast.Expr
}

type EvalStmt struct{ Expr tast.Expr }

// CallStmt captures a call's one or more return slots together, since a
// single call instruction produces them all at once — unlike AssignStmt,
// which always stores the value of one already-evaluated expression.
type CallStmt struct {
	Dsts []symtab.Symbol
	Call *tast.CallExpr
}

func (*AssignStmt) stmtNode() {}
func (*EvalStmt) stmtNode()   {}
func (*CallStmt) stmtNode()   {}

type Terminator interface{ termNode() }

// Return carries one value per flattened return slot.
type Return struct{ Values []tast.Expr }
type Goto struct{ Target symtab.Symbol }
type IfStmt struct {
	Cond       tast.Expr
	Then, Else symtab.Symbol
}

func (*Return) termNode() {}
func (*Goto) termNode()   {}
func (*IfStmt) termNode() {}

// Eliminate scalarizes every function in prog.
func Eliminate(prog *explicate.Program) *Program {
	out := &Program{Structs: prog.Structs, Main: prog.Main}
	for _, fd := range prog.Funcs {
		out.Funcs = append(out.Funcs, eliminateFunc(fd, prog.Structs))
	}
	return out
}

// leaf is one scalar field reached by walking a chain of field names from
// a struct-typed root; path is empty for an already-scalar type.
type leaf struct {
	path []string
	typ  types.Type
}

func flatten(reg *types.Registry, t types.Type, prefix []string) []leaf {
	if def, ok := reg.LookupType(t); ok {
		var out []leaf
		for _, f := range def.Fields {
			out = append(out, flatten(reg, f.Type, append(append([]string{}, prefix...), f.Name))...)
		}
		return out
	}
	return []leaf{{path: append([]string{}, prefix...), typ: t}}
}

func flattenTypes(reg *types.Registry, t types.Type) []types.Type {
	leaves := flatten(reg, t, nil)
	out := make([]types.Type, len(leaves))
	for i, lf := range leaves {
		out[i] = lf.typ
	}
	return out
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func hasPrefix(full, prefix []string) bool {
	if len(full) < len(prefix) {
		return false
	}
	for i := range prefix {
		if full[i] != prefix[i] {
			return false
		}
	}
	return true
}

// leafBinding is one flattened scalar belonging to an original struct-typed
// symbol: path names the field chain from the root, sym is the fresh
// variable standing in for it.
type leafBinding struct {
	path []string
	sym  symtab.Symbol
	typ  types.Type
}

type elim struct {
	reg     *types.Registry
	scalars map[int64][]leafBinding
}

// ensureScalars returns sym's flattened leaf bindings, allocating them on
// first use, or nil if t is already scalar (nothing to flatten).
func (e *elim) ensureScalars(sym symtab.Symbol, t types.Type) []leafBinding {
	if binds, ok := e.scalars[sym.ID()]; ok {
		return binds
	}
	leaves := flatten(e.reg, t, nil)
	if len(leaves) == 1 && len(leaves[0].path) == 0 {
		e.scalars[sym.ID()] = nil
		return nil
	}
	binds := make([]leafBinding, len(leaves))
	for i, lf := range leaves {
		name := sym.Name + "." + strings.Join(lf.path, ".")
		binds[i] = leafBinding{path: lf.path, sym: symtab.New(name), typ: lf.typ}
	}
	e.scalars[sym.ID()] = binds
	return binds
}

func eliminateFunc(fd *explicate.Func, reg *types.Registry) *Func {
	e := &elim{reg: reg, scalars: map[int64][]leafBinding{}}

	var params []*ScalarParam
	for _, p := range fd.Params {
		binds := e.ensureScalars(p.Sym, p.Type)
		if binds == nil {
			params = append(params, &ScalarParam{Sym: p.Sym, Name: p.Name, Type: p.Type})
			continue
		}
		for _, b := range binds {
			params = append(params, &ScalarParam{Sym: b.sym, Name: b.sym.Name, Type: b.typ})
		}
	}

	var blocks []*Block
	for _, b := range fd.Blocks {
		blocks = append(blocks, e.eliminateBlock(b))
	}

	return &Func{
		Sym: fd.Sym, Name: fd.Name, Params: params, Rets: flattenTypes(reg, fd.Ret),
		Entry: fd.Entry, Blocks: blocks,
	}
}

func (e *elim) eliminateBlock(b *explicate.Block) *Block {
	out := &Block{Label: b.Label}
	for _, st := range b.Stmts {
		out.Stmts = append(out.Stmts, e.eliminateStmt(st)...)
	}
	term, extra := e.eliminateTerm(b.Term)
	out.Stmts = append(out.Stmts, extra...)
	out.Term = term
	return out
}

func (e *elim) eliminateStmt(s explicate.Stmt) []Stmt {
	switch st := s.(type) {
	case *explicate.AssignStmt:
		return e.eliminateAssign(st.Sym, st.Expr)
	case *explicate.EvalStmt:
		return []Stmt{&EvalStmt{Expr: e.eliminateScalar(st.Expr)}}
	}
	panic("eliminate: unreachable explicate.Stmt variant")
}

func (e *elim) eliminateAssign(sym symtab.Symbol, rhs tast.Expr) []Stmt {
	if call, ok := rhs.(*tast.CallExpr); ok {
		callE := e.eliminateCall(call)
		binds := e.ensureScalars(sym, rhs.TypeOf())
		if binds == nil {
			return []Stmt{&CallStmt{Dsts: []symtab.Symbol{sym}, Call: callE}}
		}
		dsts := make([]symtab.Symbol, len(binds))
		for i, b := range binds {
			dsts[i] = b.sym
		}
		return []Stmt{&CallStmt{Dsts: dsts, Call: callE}}
	}

	binds := e.ensureScalars(sym, rhs.TypeOf())
	if binds == nil {
		return []Stmt{&AssignStmt{Sym: sym, Expr: e.eliminateScalar(rhs)}}
	}
	values := e.eliminateValue(rhs, binds)
	out := make([]Stmt, len(binds))
	for i, b := range binds {
		out[i] = &AssignStmt{Sym: b.sym, Expr: values[i]}
	}
	return out
}

// eliminateValue lowers a struct-typed rhs (a variable, a struct literal,
// or field access into a nested struct) to one value per leaf in binds.
func (e *elim) eliminateValue(rhs tast.Expr, binds []leafBinding) []tast.Expr {
	switch x := rhs.(type) {
	case *tast.VarExpr:
		src := e.ensureScalars(x.Sym, x.TypeOf())
		out := make([]tast.Expr, len(src))
		for i, b := range src {
			out[i] = tast.NewVarExpr(x.Node(), b.typ, b.sym, b.sym.Name)
		}
		return out
	case *tast.StructLitExpr:
		return e.eliminateStructLitLeaves(x)
	case *tast.FieldAccessExpr:
		src, path, ok := e.resolveFieldChain(x)
		if !ok {
			panic("eliminate: struct-valued field access did not resolve to a flattened variable")
		}
		var out []tast.Expr
		for _, b := range src {
			if hasPrefix(b.path, path) {
				out = append(out, tast.NewVarExpr(x.Node(), b.typ, b.sym, b.sym.Name))
			}
		}
		return out
	default:
		panic("eliminate: unexpected struct-typed expression shape")
	}
}

func (e *elim) eliminateStructLitLeaves(x *tast.StructLitExpr) []tast.Expr {
	def, ok := e.reg.Lookup(x.StructSym)
	if !ok {
		panic("eliminate: struct literal references an unknown struct symbol")
	}
	byName := make(map[string]tast.Expr, len(x.Fields))
	for _, f := range x.Fields {
		byName[f.Name] = f.Expr
	}
	var out []tast.Expr
	for _, f := range def.Fields {
		fv, ok := byName[f.Name]
		if !ok {
			panic("eliminate: struct literal missing field " + f.Name)
		}
		out = append(out, e.expandArg(fv)...)
	}
	return out
}

// resolveFieldChain walks a (possibly nested) field-access chain back to
// its root variable, returning that root's leaf bindings and the field
// path named by the access.
func (e *elim) resolveFieldChain(x *tast.FieldAccessExpr) ([]leafBinding, []string, bool) {
	switch r := x.Receiver.(type) {
	case *tast.VarExpr:
		binds := e.ensureScalars(r.Sym, r.TypeOf())
		if binds == nil {
			return nil, nil, false
		}
		return binds, []string{x.Field}, true
	case *tast.FieldAccessExpr:
		binds, path, ok := e.resolveFieldChain(r)
		if !ok {
			return nil, nil, false
		}
		return binds, append(path, x.Field), true
	default:
		return nil, nil, false
	}
}

// expandArg lowers one already-atomic argument (per Atomize's invariant,
// every call argument and struct-literal field value is a literal or a
// variable) to one or more scalar arguments.
func (e *elim) expandArg(a tast.Expr) []tast.Expr {
	v, ok := a.(*tast.VarExpr)
	if !ok {
		return []tast.Expr{a}
	}
	binds := e.ensureScalars(v.Sym, v.TypeOf())
	if binds == nil {
		return []tast.Expr{v}
	}
	out := make([]tast.Expr, len(binds))
	for i, b := range binds {
		out[i] = tast.NewVarExpr(v.Node(), b.typ, b.sym, b.sym.Name)
	}
	return out
}

// eliminateScalar rewrites an expression known to evaluate to a scalar,
// descending into operator operands and call arguments.
func (e *elim) eliminateScalar(expr tast.Expr) tast.Expr {
	switch x := expr.(type) {
	case *tast.VarExpr:
		if binds, ok := e.scalars[x.Sym.ID()]; ok && binds != nil {
			panic("eliminate: struct-typed variable used directly where a scalar was expected")
		}
		return x
	case *reveal.FunRef:
		return x
	case *tast.UnaryExpr:
		return tast.NewUnaryExpr(x.Node(), x.TypeOf(), x.Op, e.eliminateScalar(x.X))
	case *tast.BinaryExpr:
		return tast.NewBinaryExpr(x.Node(), x.TypeOf(), x.Op, e.eliminateScalar(x.L), e.eliminateScalar(x.R))
	case *tast.CallExpr:
		return e.eliminateCall(x)
	case *tast.FieldAccessExpr:
		binds, path, ok := e.resolveFieldChain(x)
		if !ok {
			return x
		}
		for _, b := range binds {
			if pathEqual(b.path, path) {
				return tast.NewVarExpr(x.Node(), b.typ, b.sym, b.sym.Name)
			}
		}
		panic("eliminate: field path not found among flattened leaves")
	default:
		return x // IntLit, BoolLit, UnitLit
	}
}

func (e *elim) eliminateCall(x *tast.CallExpr) *tast.CallExpr {
	callee := e.eliminateScalar(x.Callee)
	var args []tast.Expr
	for _, a := range x.Args {
		args = append(args, e.expandArg(a)...)
	}
	return tast.NewCallExpr(x.Node(), x.TypeOf(), callee, args)
}

func (e *elim) eliminateTerm(t explicate.Terminator) (Terminator, []Stmt) {
	switch x := t.(type) {
	case *explicate.Return:
		if call, ok := x.Value.(*tast.CallExpr); ok {
			callE := e.eliminateCall(call)
			rets := flattenTypes(e.reg, call.TypeOf())
			dsts := make([]symtab.Symbol, len(rets))
			vals := make([]tast.Expr, len(rets))
			for i, rt := range rets {
				sym := symtab.New("ret")
				dsts[i] = sym
				vals[i] = tast.NewVarExpr(call.Node(), rt, sym, "ret")
			}
			return &Return{Values: vals}, []Stmt{&CallStmt{Dsts: dsts, Call: callE}}
		}
		if lit, ok := x.Value.(*tast.StructLitExpr); ok {
			return &Return{Values: e.eliminateStructLitLeaves(lit)}, nil
		}
		if v, ok := x.Value.(*tast.VarExpr); ok {
			if binds := e.ensureScalars(v.Sym, v.TypeOf()); binds != nil {
				vals := make([]tast.Expr, len(binds))
				for i, b := range binds {
					vals[i] = tast.NewVarExpr(v.Node(), b.typ, b.sym, b.sym.Name)
				}
				return &Return{Values: vals}, nil
			}
		}
		return &Return{Values: []tast.Expr{e.eliminateScalar(x.Value)}}, nil
	case *explicate.Goto:
		return &Goto{Target: x.Target}, nil
	case *explicate.IfStmt:
		return &IfStmt{Cond: e.eliminateScalar(x.Cond), Then: x.Then, Else: x.Else}, nil
	}
	panic("eliminate: unreachable explicate.Terminator variant")
}
