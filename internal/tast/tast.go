// Package tast is the typed AST that Validate produces (spec.md §4.1): every
// binder carries a resolved symtab.Symbol instead of a bare name, and every
// expression carries a resolved types.Type instead of surface syntax. Reveal
// consumes this directly; it is the last representation shaped like source
// structure rather than a control-flow graph.
package tast

import (
	"jjc/internal/ast"
	"jjc/internal/symtab"
	"jjc/internal/types"
)

// Program is the root of a Validate result: every top-level function, the
// struct registry built while uniquifying, and the entry function's symbol.
type Program struct {
	Funcs   []*FuncDecl
	Structs *types.Registry
	Main    symtab.Symbol
}

// FuncDecl is a top-level function, its parameters and return type fully
// resolved.
type FuncDecl struct {
	Sym    symtab.Symbol
	Name   string
	Params []*Param
	Ret    types.Type
	Body   *Block
	Pos    ast.Position
}

// Param is one resolved function parameter.
type Param struct {
	Sym  symtab.Symbol
	Name string
	Type types.Type
}

// Block is a sequence of statements plus an optional tail expression; Type
// is the tail's type, or Unit if there is no tail.
type Block struct {
	Stmts []Stmt
	Tail  Expr
	Type  types.Type
	Pos   ast.Position
}

// Stmt is implemented by LetStmt, AssignStmt, ExprStmt.
type Stmt interface{ stmtNode() }

type LetStmt struct {
	Sym  symtab.Symbol
	Name string
	Type types.Type
	Expr Expr
}

type AssignStmt struct {
	Sym  symtab.Symbol
	Name string
	Expr Expr
}

type ExprStmt struct{ Expr Expr }

func (*LetStmt) stmtNode()    {}
func (*AssignStmt) stmtNode() {}
func (*ExprStmt) stmtNode()   {}

// Expr is implemented by every typed expression node. TypeOf returns its
// resolved type; Validate guarantees no PartialType::Var remains once this
// tree exists.
type Expr interface {
	Node() ast.Position
	TypeOf() types.Type
}

type exprBase struct {
	Pos ast.Position
	Ty  types.Type
}

func (e exprBase) Node() ast.Position  { return e.Pos }
func (e exprBase) TypeOf() types.Type { return e.Ty }

type IntLit struct {
	exprBase
	Value int64
}

type BoolLit struct {
	exprBase
	Value bool
}

type UnitLit struct{ exprBase }

// VarExpr is a resolved reference to a binding: a parameter, a let, or a
// top-level function. Reveal (spec.md §4.2) decides whether Sym names a
// function and rewrites those occurrences to FunRef.
type VarExpr struct {
	exprBase
	Sym  symtab.Symbol
	Name string
}

type UnaryExpr struct {
	exprBase
	Op ast.UnaryOp
	X  Expr
}

type BinaryExpr struct {
	exprBase
	Op   ast.BinOp
	L, R Expr
}

type IfExpr struct {
	exprBase
	Cond Expr
	Then *Block
	Else *Block
}

type LoopExpr struct {
	exprBase
	Body *Block
}

type BreakExpr struct {
	exprBase
	Value Expr // nil for a bare break
}

type ContinueExpr struct{ exprBase }

type ReturnExpr struct {
	exprBase
	Value Expr // nil for a bare return
}

type CallExpr struct {
	exprBase
	Callee Expr
	Args   []Expr
}

type FieldAccessExpr struct {
	exprBase
	Receiver Expr
	Field    string
}

type StructLitField struct {
	Name string
	Expr Expr
}

type StructLitExpr struct {
	exprBase
	StructSym symtab.Symbol
	Fields    []*StructLitField
}

// Constructors below exist because exprBase's own type name is unexported:
// a package outside tast can set the promoted Pos/Ty fields after the fact,
// but cannot name "exprBase" in a composite literal, so Validate builds every
// typed expression node through one of these instead.

func NewIntLit(pos ast.Position, ty types.Type, value int64) *IntLit {
	return &IntLit{exprBase: exprBase{Pos: pos, Ty: ty}, Value: value}
}

func NewBoolLit(pos ast.Position, value bool) *BoolLit {
	return &BoolLit{exprBase: exprBase{Pos: pos, Ty: types.Prim(types.Bool)}, Value: value}
}

func NewUnitLit(pos ast.Position) *UnitLit {
	return &UnitLit{exprBase: exprBase{Pos: pos, Ty: types.Prim(types.Unit)}}
}

func NewVarExpr(pos ast.Position, ty types.Type, sym symtab.Symbol, name string) *VarExpr {
	return &VarExpr{exprBase: exprBase{Pos: pos, Ty: ty}, Sym: sym, Name: name}
}

func NewUnaryExpr(pos ast.Position, ty types.Type, op ast.UnaryOp, x Expr) *UnaryExpr {
	return &UnaryExpr{exprBase: exprBase{Pos: pos, Ty: ty}, Op: op, X: x}
}

func NewBinaryExpr(pos ast.Position, ty types.Type, op ast.BinOp, l, r Expr) *BinaryExpr {
	return &BinaryExpr{exprBase: exprBase{Pos: pos, Ty: ty}, Op: op, L: l, R: r}
}

func NewIfExpr(pos ast.Position, ty types.Type, cond Expr, then, els *Block) *IfExpr {
	return &IfExpr{exprBase: exprBase{Pos: pos, Ty: ty}, Cond: cond, Then: then, Else: els}
}

func NewLoopExpr(pos ast.Position, ty types.Type, body *Block) *LoopExpr {
	return &LoopExpr{exprBase: exprBase{Pos: pos, Ty: ty}, Body: body}
}

func NewBreakExpr(pos ast.Position, value Expr) *BreakExpr {
	return &BreakExpr{exprBase: exprBase{Pos: pos, Ty: types.Prim(types.Never)}, Value: value}
}

func NewContinueExpr(pos ast.Position) *ContinueExpr {
	return &ContinueExpr{exprBase: exprBase{Pos: pos, Ty: types.Prim(types.Never)}}
}

func NewReturnExpr(pos ast.Position, value Expr) *ReturnExpr {
	return &ReturnExpr{exprBase: exprBase{Pos: pos, Ty: types.Prim(types.Never)}, Value: value}
}

func NewCallExpr(pos ast.Position, ty types.Type, callee Expr, args []Expr) *CallExpr {
	return &CallExpr{exprBase: exprBase{Pos: pos, Ty: ty}, Callee: callee, Args: args}
}

func NewFieldAccessExpr(pos ast.Position, ty types.Type, recv Expr, field string) *FieldAccessExpr {
	return &FieldAccessExpr{exprBase: exprBase{Pos: pos, Ty: ty}, Receiver: recv, Field: field}
}

func NewStructLitExpr(pos ast.Position, ty types.Type, sym symtab.Symbol, fields []*StructLitField) *StructLitExpr {
	return &StructLitExpr{exprBase: exprBase{Pos: pos, Ty: ty}, StructSym: sym, Fields: fields}
}
