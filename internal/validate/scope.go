package validate

import (
	"jjc/internal/symtab"
	"jjc/internal/types"
)

// binding is what a name resolves to within a lexical scope: a concrete
// unique symbol plus its type.
type binding struct {
	sym symtab.Symbol
	typ types.Type
}

// scope is a stack of name->binding frames, innermost last. Uniquify (spec.md
// §4.1) pushes a frame per block/function and resolves references to the
// innermost visible binding.
type scope struct {
	frames []map[string]binding
}

func newScope() *scope {
	s := &scope{}
	s.push()
	return s
}

func (s *scope) push() { s.frames = append(s.frames, map[string]binding{}) }

func (s *scope) pop() { s.frames = s.frames[:len(s.frames)-1] }

func (s *scope) declare(name string, b binding) { s.frames[len(s.frames)-1][name] = b }

func (s *scope) lookup(name string) (binding, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if b, ok := s.frames[i][name]; ok {
			return b, true
		}
	}
	return binding{}, false
}
