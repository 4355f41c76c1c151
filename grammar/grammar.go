package grammar

import "github.com/alecthomas/participle/v2/lexer"

// Program is the concrete parse tree's root: an unordered sequence of
// top-level items. Lower (in lower.go) turns this into an internal/ast.Program.
type Program struct {
	Pos, EndPos lexer.Position
	Items       []*Item `@@*`
}

type Item struct {
	Pos, EndPos lexer.Position
	Func        *FuncDecl   `  @@`
	Struct      *StructDecl `| @@`
}

type FuncDecl struct {
	Pos, EndPos lexer.Position
	Name        string      `"fn" @Ident "("`
	Params      []*Param    `[ @@ { "," @@ } ] ")"`
	Ret         *TypeExpr   `[ "->" @@ ]`
	Body        *Block      `@@`
}

type Param struct {
	Pos, EndPos lexer.Position
	Name        string    `@Ident ":"`
	Type        *TypeExpr `@@`
}

type TypeExpr struct {
	Pos, EndPos lexer.Position
	Name        string `@Ident`
}

type StructDecl struct {
	Pos, EndPos lexer.Position
	Name        string       `"struct" @Ident "{"`
	Fields      []*FieldDecl `[ @@ { "," @@ } ] "}"`
}

type FieldDecl struct {
	Pos, EndPos lexer.Position
	Name        string    `@Ident ":"`
	Type        *TypeExpr `@@`
}

// Block is "{" stmt* tail? "}". Every non-tail Stmt is required to end in
// ";"; the optional Tail has none, which is what lets participle's
// backtracking repetition correctly stop consuming statements and fall
// through to the tail instead of misparsing it as one more ExprStmt.
type Block struct {
	Pos, EndPos lexer.Position
	Stmts       []*Stmt `"{" @@*`
	Tail        *ValueExpr `[ @@ ] "}"`
}

type Stmt struct {
	Pos, EndPos lexer.Position
	Let         *LetStmt    `  @@`
	Assign      *AssignStmt `| @@`
	Return      *ReturnStmt `| @@`
	Break       *BreakStmt  `| @@`
	Continue    *ContinueStmt `| @@`
	ExprStmt    *ExprStmt   `| @@`
}

type LetStmt struct {
	Pos, EndPos lexer.Position
	Name        string     `"let" @Ident`
	Type        *TypeExpr  `[ ":" @@ ]`
	Value       *ValueExpr `"=" @@ ";"`
}

type AssignStmt struct {
	Pos, EndPos lexer.Position
	Name        string     `@Ident "="`
	Value       *ValueExpr `@@ ";"`
}

type ReturnStmt struct {
	Pos, EndPos lexer.Position
	Value       *ValueExpr `"return" [ @@ ] ";"`
}

type BreakStmt struct {
	Pos, EndPos lexer.Position
	Value       *ValueExpr `"break" [ @@ ] ";"`
}

type ContinueStmt struct {
	Pos, EndPos lexer.Position
	Mark        string `"continue" ";"`
}

type ExprStmt struct {
	Pos, EndPos lexer.Position
	Expr        *Expr `@@ ";"`
}

// ValueExpr disambiguates struct-literal syntax ("Name { field: expr, ... }")
// from a bare identifier at the handful of positions where a struct literal
// is unambiguous: let/assign right-hand sides, return/break values,
// struct-literal field values, block tails and call arguments. participle's bounded lookahead (set when the
// parser is built) decides between the two alternatives by peeking past the
// identifier for a following "{". If/loop conditions and operator operands
// use Expr directly, which never parses a bare struct literal — the same
// restriction Rust makes for control-flow heads, and for the same reason.
type ValueExpr struct {
	Pos, EndPos lexer.Position
	StructLit   *StructLitExpr `  @@`
	Plain       *Expr          `| @@`
}

type StructLitExpr struct {
	Pos, EndPos lexer.Position
	Name        string            `@Ident "{"`
	Fields      []*StructLitField `[ @@ { "," @@ } ] "}"`
}

type StructLitField struct {
	Pos, EndPos lexer.Position
	Name        string     `@Ident ":"`
	Value       *ValueExpr `@@`
}

// Expr is the top of the binary-operator precedence cascade (lowest
// precedence first): || then && then ^ then ==/!= then relational then
// +/- then */ /%  then unary then postfix then primary.
type Expr struct {
	Pos, EndPos lexer.Position
	Or          *OrExpr `@@`
}

type OrExpr struct {
	Pos, EndPos lexer.Position
	Left        *AndExpr   `@@`
	Rest        []*OrTail  `{ @@ }`
}
type OrTail struct {
	Op    string     `@"||"`
	Right *AndExpr   `@@`
}

type AndExpr struct {
	Pos, EndPos lexer.Position
	Left        *XorExpr   `@@`
	Rest        []*AndTail `{ @@ }`
}
type AndTail struct {
	Op    string   `@"&&"`
	Right *XorExpr `@@`
}

type XorExpr struct {
	Pos, EndPos lexer.Position
	Left        *EqExpr    `@@`
	Rest        []*XorTail `{ @@ }`
}
type XorTail struct {
	Op    string  `@"^"`
	Right *EqExpr `@@`
}

type EqExpr struct {
	Pos, EndPos lexer.Position
	Left        *RelExpr  `@@`
	Rest        []*EqTail `{ @@ }`
}
type EqTail struct {
	Op    string   `@( "==" | "!=" )`
	Right *RelExpr `@@`
}

type RelExpr struct {
	Pos, EndPos lexer.Position
	Left        *AddExpr   `@@`
	Rest        []*RelTail `{ @@ }`
}
type RelTail struct {
	Op    string   `@( "<=" | ">=" | "<" | ">" )`
	Right *AddExpr `@@`
}

type AddExpr struct {
	Pos, EndPos lexer.Position
	Left        *MulExpr   `@@`
	Rest        []*AddTail `{ @@ }`
}
type AddTail struct {
	Op    string   `@( "+" | "-" )`
	Right *MulExpr `@@`
}

type MulExpr struct {
	Pos, EndPos lexer.Position
	Left        *UnaryExpr `@@`
	Rest        []*MulTail `{ @@ }`
}
type MulTail struct {
	Op    string     `@( "*" | "/" | "%" )`
	Right *UnaryExpr `@@`
}

type UnaryExpr struct {
	Pos, EndPos lexer.Position
	Op          *string      `[ @( "-" | "!" ) ]`
	X           *PostfixExpr `@@`
}

// PostfixExpr chains field accesses and calls onto a primary expression:
// "recv.field", "callee(args)", or a mix thereof.
type PostfixExpr struct {
	Pos, EndPos lexer.Position
	Primary     *PrimaryExpr `@@`
	Postfixes   []*Postfix   `{ @@ }`
}

type Postfix struct {
	Pos, EndPos lexer.Position
	Field       *string `  "." @Ident`
	Call        *Args   `| "(" @@ ")"`
}

type Args struct {
	Pos, EndPos lexer.Position
	Values      []*ValueExpr `[ @@ { "," @@ } ]`
}

type PrimaryExpr struct {
	Pos, EndPos lexer.Position
	Int         *string   `  @Integer`
	Bool        *string   `| @( "true" | "false" )`
	Unit        *UnitExpr `| @@`
	If          *IfExpr   `| @@`
	Loop        *LoopExpr `| @@`
	Paren       *Expr     `| "(" @@ ")"`
	Ident       *string   `| @Ident`
}

// UnitExpr matches the literal "()"; tried before Paren so that an empty
// parenthesized pair is not mistaken for a missing inner expression.
type UnitExpr struct {
	Pos, EndPos lexer.Position
	Close       string `"(" ")"`
}

type IfExpr struct {
	Pos, EndPos lexer.Position
	Cond        *Expr  `"if" @@`
	Then        *Block `@@`
	Else        *Block `[ "else" @@ ]`
}

type LoopExpr struct {
	Pos, EndPos lexer.Position
	Body        *Block `"loop" @@`
}
