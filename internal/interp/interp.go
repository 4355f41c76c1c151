// Package interp is the reference interpreter oracle spec.md §8 requires:
// a tree-walking evaluator over the typed AST (internal/tast) that gives
// every well-typed program a semantics independent of the x86 backend, so
// the compiled executable's behavior can be checked against it.
//
// Grounded on the original compiler's interpreter.rs and
// interpreter/value.rs: the IO trait (read/print, with a StdIO and a
// TestIO implementation for capturing output in tests) and the Val enum
// (Int/Bool/Unit/Function, tagged union over the interpreter's own
// values rather than reusing jj's AST literal type) are carried over
// directly as interp.IO and interp.Value.
package interp

import (
	"bufio"
	"fmt"
	"io"

	"jjc/internal/ast"
	"jjc/internal/symtab"
	"jjc/internal/tast"
)

// IO abstracts the two builtins, read and print, so the interpreter can
// be driven from a real terminal or from a fixed, recorded input script
// in tests.
type IO interface {
	Read() int64
	Print(v int64)
}

// StdIO reads lines from an io.Reader and writes each print as a line to
// an io.Writer, mirroring interpreter.rs's StdIO.
type StdIO struct {
	in  *bufio.Scanner
	out io.Writer
}

func NewStdIO(in io.Reader, out io.Writer) *StdIO {
	return &StdIO{in: bufio.NewScanner(in), out: out}
}

func (s *StdIO) Read() int64 {
	if !s.in.Scan() {
		panic("interp: read past end of input")
	}
	var v int64
	if _, err := fmt.Sscanf(s.in.Text(), "%d", &v); err != nil {
		panic(fmt.Sprintf("interp: input line %q is not a valid integer", s.in.Text()))
	}
	return v
}

func (s *StdIO) Print(v int64) {
	fmt.Fprintf(s.out, "%d\n", v)
}

// TestIO replays a fixed list of inputs and records every print, for use
// as the oracle side of an equivalence test (mirrors interpreter.rs's
// TestIO).
type TestIO struct {
	Inputs  []int64
	Outputs []int64
	next    int
}

func NewTestIO(inputs ...int64) *TestIO { return &TestIO{Inputs: inputs} }

func (t *TestIO) Read() int64 {
	if t.next >= len(t.Inputs) {
		panic("interp: test tried to read more input than was available")
	}
	v := t.Inputs[t.next]
	t.next++
	return v
}

func (t *TestIO) Print(v int64) { t.Outputs = append(t.Outputs, v) }

// Value is the interpreter's own tagged union over a running program's
// runtime values — interpreter/value.rs's Val. A struct instance keeps its
// field values in the string-keyed Fields map, which carries them across a
// `.field` access.
type Value struct {
	Kind   ValueKind
	Int    int64
	Bool   bool
	Fn     symtab.Symbol
	Fields map[string]Value
}

type ValueKind int

const (
	VInt ValueKind = iota
	VBool
	VUnit
	VFunc
	VStruct
)

func IntVal(v int64) Value   { return Value{Kind: VInt, Int: v} }
func BoolVal(v bool) Value   { return Value{Kind: VBool, Bool: v} }
func UnitVal() Value         { return Value{Kind: VUnit} }
func FuncVal(s symtab.Symbol) Value { return Value{Kind: VFunc, Fn: s} }

func (v Value) AsInt() int64 {
	if v.Kind != VInt {
		panic("interp: value is not an int")
	}
	return v.Int
}

func (v Value) AsBool() bool {
	if v.Kind != VBool {
		panic("interp: value is not a bool")
	}
	return v.Bool
}

// control distinguishes the non-local exits an expression's evaluation
// can trigger: Explicate's break/continue/return terminators exist
// precisely because structured control needs this kind of unwinding, so
// the tree-walker threads the same three signals through Go's call stack
// using panicked control values rather than multi-value returns, which
// would otherwise have to be threaded through every single eval call.
type control struct {
	kind  controlKind
	value Value
}

type controlKind int

const (
	ctrlBreak controlKind = iota
	ctrlContinue
	ctrlReturn
)

// Interp walks a validated program, evaluating main with the given IO.
type Interp struct {
	prog  *tast.Program
	io    IO
	funcs map[int64]*tast.FuncDecl
}

func New(prog *tast.Program, io IO) *Interp {
	funcs := make(map[int64]*tast.FuncDecl, len(prog.Funcs))
	for _, fd := range prog.Funcs {
		funcs[fd.Sym.ID()] = fd
	}
	return &Interp{prog: prog, io: io, funcs: funcs}
}

// Run evaluates main() to completion and returns its result.
func (in *Interp) Run() (result Value) {
	main, ok := in.funcs[in.prog.Main.ID()]
	if !ok {
		panic("interp: program has no main function")
	}
	defer func() {
		if r := recover(); r != nil {
			c, ok := r.(control)
			if !ok {
				panic(r)
			}
			if c.kind != ctrlReturn {
				panic("interp: break/continue escaped every enclosing loop")
			}
			result = c.value
		}
	}()
	result = in.evalBlock(main.Body, newEnv(nil))
	return result
}

// env is a chain of scopes keyed by resolved symbol id — uniquify
// (internal/validate) already guarantees every binder is distinct, so a
// flat per-call map with lexical fallthrough to the enclosing call's
// frame is unnecessary; each call gets its own root env and nested
// blocks push a child scope for shadowing within loops.
type env struct {
	parent *env
	vars   map[int64]Value
}

func newEnv(parent *env) *env { return &env{parent: parent, vars: map[int64]Value{}} }

func (e *env) get(sym symtab.Symbol) (Value, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[sym.ID()]; ok {
			return v, true
		}
	}
	return Value{}, false
}

func (e *env) set(sym symtab.Symbol, v Value) {
	for s := e; s != nil; s = s.parent {
		if _, ok := s.vars[sym.ID()]; ok {
			s.vars[sym.ID()] = v
			return
		}
	}
	e.vars[sym.ID()] = v
}

func (e *env) define(sym symtab.Symbol, v Value) { e.vars[sym.ID()] = v }

func (in *Interp) evalBlock(b *tast.Block, parent *env) Value {
	e := newEnv(parent)
	for _, stmt := range b.Stmts {
		in.evalStmt(stmt, e)
	}
	if b.Tail != nil {
		return in.evalExpr(b.Tail, e)
	}
	return UnitVal()
}

func (in *Interp) evalStmt(s tast.Stmt, e *env) {
	switch x := s.(type) {
	case *tast.LetStmt:
		e.define(x.Sym, in.evalExpr(x.Expr, e))
	case *tast.AssignStmt:
		e.set(x.Sym, in.evalExpr(x.Expr, e))
	case *tast.ExprStmt:
		in.evalExpr(x.Expr, e)
	default:
		panic(fmt.Sprintf("interp: unhandled statement %T", s))
	}
}

func (in *Interp) evalExpr(x tast.Expr, e *env) Value {
	switch x := x.(type) {
	case *tast.IntLit:
		return IntVal(x.Value)
	case *tast.BoolLit:
		return BoolVal(x.Value)
	case *tast.UnitLit:
		return UnitVal()
	case *tast.VarExpr:
		if v, ok := e.get(x.Sym); ok {
			return v
		}
		if fd, ok := in.funcs[x.Sym.ID()]; ok {
			return FuncVal(fd.Sym)
		}
		return FuncVal(x.Sym) // read / print: no FuncDecl, resolved by name at the call site
	case *tast.UnaryExpr:
		return in.evalUnary(x, e)
	case *tast.BinaryExpr:
		return in.evalBinary(x, e)
	case *tast.IfExpr:
		if in.evalExpr(x.Cond, e).AsBool() {
			return in.evalBlock(x.Then, e)
		}
		return in.evalBlock(x.Else, e)
	case *tast.LoopExpr:
		return in.evalLoop(x, e)
	case *tast.BreakExpr:
		v := UnitVal()
		if x.Value != nil {
			v = in.evalExpr(x.Value, e)
		}
		panic(control{kind: ctrlBreak, value: v})
	case *tast.ContinueExpr:
		panic(control{kind: ctrlContinue})
	case *tast.ReturnExpr:
		v := UnitVal()
		if x.Value != nil {
			v = in.evalExpr(x.Value, e)
		}
		panic(control{kind: ctrlReturn, value: v})
	case *tast.CallExpr:
		return in.evalCall(x, e)
	case *tast.FieldAccessExpr:
		recv := in.evalExpr(x.Receiver, e)
		if recv.Kind != VStruct {
			panic("interp: field access on a non-struct value")
		}
		return recv.Fields[x.Field]
	case *tast.StructLitExpr:
		fields := make(map[string]Value, len(x.Fields))
		for _, f := range x.Fields {
			fields[f.Name] = in.evalExpr(f.Expr, e)
		}
		return Value{Kind: VStruct, Fields: fields}
	default:
		panic(fmt.Sprintf("interp: unhandled expression %T", x))
	}
}

// evalLoop runs body repeatedly, catching ctrlBreak (exits with its
// value) and ctrlContinue (restarts the body) while letting ctrlReturn
// propagate to the enclosing call's recover.
func (in *Interp) evalLoop(x *tast.LoopExpr, e *env) Value {
	for {
		done, result := in.runLoopBody(x, e)
		if done {
			return result
		}
	}
}

func (in *Interp) runLoopBody(x *tast.LoopExpr, e *env) (done bool, result Value) {
	defer func() {
		if r := recover(); r != nil {
			c, ok := r.(control)
			if !ok {
				panic(r)
			}
			switch c.kind {
			case ctrlBreak:
				done, result = true, c.value
			case ctrlContinue:
				done, result = false, Value{}
			default:
				panic(r)
			}
		}
	}()
	in.evalBlock(x.Body, e)
	return false, Value{}
}

func (in *Interp) evalUnary(x *tast.UnaryExpr, e *env) Value {
	v := in.evalExpr(x.X, e)
	switch x.Op {
	case ast.Neg:
		return IntVal(-v.AsInt())
	case ast.Not:
		return BoolVal(!v.AsBool())
	default:
		panic("interp: unknown unary operator")
	}
}

func (in *Interp) evalBinary(x *tast.BinaryExpr, e *env) Value {
	// && and || short-circuit; every other operator evaluates both sides.
	if x.Op == ast.LAnd {
		l := in.evalExpr(x.L, e)
		if !l.AsBool() {
			return BoolVal(false)
		}
		return BoolVal(in.evalExpr(x.R, e).AsBool())
	}
	if x.Op == ast.LOr {
		l := in.evalExpr(x.L, e)
		if l.AsBool() {
			return BoolVal(true)
		}
		return BoolVal(in.evalExpr(x.R, e).AsBool())
	}

	l, r := in.evalExpr(x.L, e), in.evalExpr(x.R, e)
	if x.Op.IsComparison() {
		return BoolVal(compare(x.Op, l, r))
	}
	if x.Op == ast.Xor {
		return BoolVal(l.AsBool() != r.AsBool())
	}
	a, b := l.AsInt(), r.AsInt()
	switch x.Op {
	case ast.Add:
		return IntVal(a + b)
	case ast.Sub:
		return IntVal(a - b)
	case ast.Mul:
		return IntVal(a * b)
	case ast.Div:
		return IntVal(a / b)
	case ast.Mod:
		return IntVal(a % b)
	default:
		panic("interp: unknown binary operator")
	}
}

func compare(op ast.BinOp, l, r Value) bool {
	if l.Kind == VBool {
		a, b := l.AsBool(), r.AsBool()
		switch op {
		case ast.EQ:
			return a == b
		case ast.NE:
			return a != b
		default:
			panic("interp: ordering comparison on Bool")
		}
	}
	a, b := l.AsInt(), r.AsInt()
	switch op {
	case ast.LT:
		return a < b
	case ast.LE:
		return a <= b
	case ast.GT:
		return a > b
	case ast.GE:
		return a >= b
	case ast.EQ:
		return a == b
	case ast.NE:
		return a != b
	default:
		panic("interp: unknown comparison operator")
	}
}

func (in *Interp) evalCall(x *tast.CallExpr, e *env) Value {
	if name, ok := builtinName(x.Callee); ok {
		switch name {
		case "read":
			return IntVal(in.io.Read())
		case "print":
			in.io.Print(in.evalExpr(x.Args[0], e).AsInt())
			return UnitVal()
		}
	}

	callee := in.evalExpr(x.Callee, e)
	fd, ok := in.funcs[callee.Fn.ID()]
	if !ok {
		panic("interp: call to an unknown function")
	}
	args := make([]Value, len(x.Args))
	for i, a := range x.Args {
		args[i] = in.evalExpr(a, e)
	}

	callEnv := newEnv(nil)
	for i, p := range fd.Params {
		callEnv.define(p.Sym, args[i])
	}

	var result Value
	func() {
		defer func() {
			if r := recover(); r != nil {
				c, ok := r.(control)
				if !ok || c.kind != ctrlReturn {
					panic(r)
				}
				result = c.value
			}
		}()
		result = in.evalBlock(fd.Body, callEnv)
	}()
	return result
}

// builtinName recognizes a direct call to read/print by name: Validate
// seeds these two names into its function-symbol table with no backing
// FuncDecl (internal/validate/validate.go), so they are identified here
// the same way internal/reveal tells a variable reference from a
// function reference, by name rather than by a resolvable body.
func builtinName(callee tast.Expr) (string, bool) {
	v, ok := callee.(*tast.VarExpr)
	if !ok {
		return "", false
	}
	if v.Name == "read" || v.Name == "print" {
		return v.Name, true
	}
	return "", false
}
