package validate

import (
	"jjc/internal/ast"
	jjerrors "jjc/internal/errors"
	"jjc/internal/symtab"
	"jjc/internal/types"
)

// checkSized is Validate's third sub-phase (spec.md §4.1): a struct type is
// unsized if its fields form a cycle back to itself, since a struct is laid
// out inline rather than behind a pointer. DFS with a three-color mark
// catches the cycle and names the struct where it closes.
func checkSized(decls []*ast.StructDecl, syms map[string]symtab.Symbol, reg *types.Registry) error {
	const (
		white = iota
		gray
		black
	)
	color := make(map[int64]int, len(decls))
	byName := make(map[string]*ast.StructDecl, len(decls))
	for _, d := range decls {
		byName[d.Name] = d
	}

	var visit func(name string) error
	visit = func(name string) error {
		d, ok := byName[name]
		if !ok {
			return nil
		}
		sym := syms[name]
		switch color[sym.ID()] {
		case black:
			return nil
		case gray:
			return jjerrors.New(jjerrors.UnsizedType, d.Pos(), "struct `%s` is recursive without indirection", name)
		}
		color[sym.ID()] = gray
		def, _ := reg.Lookup(sym)
		for _, f := range def.Fields {
			if f.Type.Kind != types.Var {
				continue
			}
			if err := visit(f.Type.Name); err != nil {
				return err
			}
		}
		color[sym.ID()] = black
		return nil
	}

	for _, d := range decls {
		if err := visit(d.Name); err != nil {
			return err
		}
	}
	return nil
}
