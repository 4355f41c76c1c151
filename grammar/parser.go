package grammar

import (
	"fmt"

	"github.com/alecthomas/participle/v2"

	"jjc/internal/ast"
)

var parser = buildParser()

func buildParser() *participle.Parser[Program] {
	p, err := participle.Build[Program](
		participle.Lexer(Lexer),
		participle.Elide("Whitespace", "Comment"),
		// Disambiguates "Name { ... }" struct literals from a bare Name,
		// and "()" from a parenthesized expression, by peeking ahead.
		participle.UseLookahead(4),
	)
	if err != nil {
		panic(fmt.Errorf("grammar: parser build failed: %w", err))
	}
	return p
}

// Parse turns jj source text into an internal/ast.Program. filename is used
// only for diagnostics.
func Parse(filename, source string) (*ast.Program, error) {
	cst, err := parser.ParseString(filename, source)
	if err != nil {
		return nil, toCompilerError(source, err)
	}
	return Lower(cst), nil
}
