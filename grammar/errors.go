package grammar

import (
	"github.com/alecthomas/participle/v2"

	"jjc/internal/ast"
	jjerrors "jjc/internal/errors"
)

// toCompilerError adapts a participle parse failure into the same
// *errors.CompilerError shape every later pass uses, so the CLI has one
// rendering path for every stage of the pipeline.
func toCompilerError(source string, err error) error {
	pe, ok := err.(participle.Error)
	if !ok {
		return jjerrors.New(jjerrors.ParseError, ast.Position{}, "%s", err.Error())
	}
	p := pe.Position()
	pos := ast.Position{Filename: p.Filename, Offset: p.Offset, Line: p.Line, Column: p.Column}
	return jjerrors.New(jjerrors.ParseError, pos, "%s", pe.Message())
}
