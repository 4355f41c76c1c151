// Package types defines the closed set of jj types and the struct-definition
// registry that gives Var types meaning.
package types

import (
	"fmt"
	"strings"

	"jjc/internal/symtab"
)

// Kind distinguishes the type variants named in spec.md §3.
type Kind int

const (
	I64 Kind = iota
	U64
	Bool
	Unit
	Never
	FnKind
	Var // nominal reference to a user type definition
)

// Type is one of the closed set of jj types: I64, U64, Bool, Unit, Never,
// Fn{Params, Ret}, or Var{Sym} (a nominal reference resolved against a
// Registry of struct definitions).
type Type struct {
	Kind   Kind
	Params []Type // only for FnKind
	Ret    *Type  // only for FnKind
	Sym    symtab.Symbol
	Name   string // display name for Var, e.g. the struct's source name
}

func Prim(k Kind) Type { return Type{Kind: k} }

func Fn(params []Type, ret Type) Type {
	return Type{Kind: FnKind, Params: params, Ret: &ret}
}

func NamedVar(sym symtab.Symbol, name string) Type {
	return Type{Kind: Var, Sym: sym, Name: name}
}

// Equal reports structural equality, descending into Fn parameter/return
// types and comparing Var types by their resolved Symbol.
func Equal(a, b Type) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case FnKind:
		if len(a.Params) != len(b.Params) {
			return false
		}
		for i := range a.Params {
			if !Equal(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return Equal(*a.Ret, *b.Ret)
	case Var:
		return a.Sym.Equal(b.Sym)
	default:
		return true
	}
}

// IsInteger reports whether t is one of the integer primitive kinds.
func IsInteger(t Type) bool { return t.Kind == I64 || t.Kind == U64 }

func (t Type) String() string {
	switch t.Kind {
	case I64:
		return "I64"
	case U64:
		return "U64"
	case Bool:
		return "Bool"
	case Unit:
		return "Unit"
	case Never:
		return "Never"
	case FnKind:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		return fmt.Sprintf("Fn(%s) -> %s", strings.Join(parts, ", "), t.Ret.String())
	case Var:
		return t.Name
	default:
		return "?"
	}
}

// Field is one ordered (name, type) pair of a struct definition.
type Field struct {
	Name string
	Type Type
}

// StructDef is a user type definition: an ordered list of fields. Enum is
// reserved (spec.md §3, §9) and never constructed by Validate.
type StructDef struct {
	Sym    symtab.Symbol
	Name   string
	Fields []Field
}

// FieldType returns the declared type of a field, or false if absent.
func (d *StructDef) FieldType(name string) (Type, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return Type{}, false
}

// Registry maps struct symbols to their definitions. Built once by Validate
// and read-only afterward.
type Registry struct {
	structs map[int64]*StructDef
}

func NewRegistry() *Registry {
	return &Registry{structs: make(map[int64]*StructDef)}
}

func (r *Registry) Define(def *StructDef) {
	r.structs[def.Sym.ID()] = def
}

func (r *Registry) Lookup(sym symtab.Symbol) (*StructDef, bool) {
	d, ok := r.structs[sym.ID()]
	return d, ok
}

// LookupType resolves a Var type to its StructDef.
func (r *Registry) LookupType(t Type) (*StructDef, bool) {
	if t.Kind != Var {
		return nil, false
	}
	return r.Lookup(t.Sym)
}
