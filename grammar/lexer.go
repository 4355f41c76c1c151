// Package grammar is the parse collaborator (spec.md §1): it turns jj
// source text into an internal/ast.Program. Per spec.md, the concrete
// surface grammar itself is outside this spec's scope — only the AST
// shape it must produce (jjc/internal/ast) is specified — but a working
// parser is included so the pipeline runs end to end. It is built the way
// the teacher builds its own parser: a participle.v2 stateful lexer plus a
// struct-tag grammar, lowered into the clean AST afterward.
package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes jj source. Keywords are not their own token kind; like
// the teacher's grammar package, they are recognized as literal string
// matches against Ident tokens directly in the grammar tags in grammar.go.
var Lexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `//[^\n]*`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Integer", `[0-9]+`, nil},
		{"Operator", `->|==|!=|<=|>=|&&|\|\||[-+*/%<>=!^]`, nil},
		{"Punctuation", `[{}(),;:.]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
