// Package ast defines the AST shape that Validate consumes (spec.md §1, §3):
// a set of top-level function and struct definitions plus a distinguished
// `main` entry, with every node carrying a source span. Building this tree
// from source text is the job of the grammar collaborator (package
// jjc/grammar); this package only fixes the shape.
package ast

import "fmt"

// Position is a source location: a 1-based line/column pair plus a byte
// offset, matching participle's lexer.Position shape field-for-field so the
// grammar package can copy positions across without any adaptation.
type Position struct {
	Filename string
	Offset   int
	Line     int
	Column   int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// Node is implemented by every AST node; it carries the node's source span.
type Node interface {
	Pos() Position
	End() Position
}

type span struct {
	From, To Position
}

func (s span) Pos() Position { return s.From }
func (s span) End() Position { return s.To }

// SetSpan records a node's source span. Only grammar.Lower calls this, once
// per node, immediately after construction.
func (s *span) SetSpan(from, to Position) { s.From, s.To = from, to }

// Program is the root of an AST: an unordered set of top-level definitions.
// Validate rejects a Program with no Funcs entry named "main".
type Program struct {
	Funcs   []*FuncDecl
	Structs []*StructDecl
}

// FuncDecl is a top-level function definition.
type FuncDecl struct {
	span
	Name   string
	Params []*Param
	Ret    TypeExpr // Unit if the source omitted "-> T"
	Body   *Block
}

// Param is one function parameter.
type Param struct {
	span
	Name string
	Type TypeExpr
}

// StructDecl is a top-level struct type definition.
type StructDecl struct {
	span
	Name   string
	Fields []*FieldDecl
}

// FieldDecl is one field of a struct definition.
type FieldDecl struct {
	span
	Name string
	Type TypeExpr
}

// TypeExpr names a type the way surface syntax spells it: one of the
// built-in primitive names, or a struct name resolved by Validate.
type TypeExpr struct {
	span
	Name string
}

// Block is "{" stmt* expr? "}" — a sequence of statements followed by an
// optional tail expression giving the block its value. A Block with no tail
// has type Unit.
type Block struct {
	span
	Stmts []Stmt
	Tail  Expr // nil if the block has no tail expression
}

func (b *Block) exprNode() {}
