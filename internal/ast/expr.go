package ast

// Stmt is implemented by LetStmt, AssignStmt, and ExprStmt.
type Stmt interface {
	Node
	stmtNode()
}

// LetStmt introduces a new binding: "let name[: Type] = expr;"
type LetStmt struct {
	span
	Name string
	Type *TypeExpr // nil if the annotation was omitted
	Expr Expr
}

// AssignStmt rebinds an existing mutable variable: "name = expr;"
type AssignStmt struct {
	span
	Name string
	Expr Expr
}

// ExprStmt evaluates an expression for its side effect, discarding the
// value ("expr;"). Return/break/continue reach Validate as bare ExprStmts
// wrapping a ReturnExpr/BreakExpr/ContinueExpr.
type ExprStmt struct {
	span
	Expr Expr
}

func (*LetStmt) stmtNode()  {}
func (*AssignStmt) stmtNode() {}
func (*ExprStmt) stmtNode() {}

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

// UnaryOp enumerates the unary operators of spec.md §3.
type UnaryOp int

const (
	Neg UnaryOp = iota
	Not
)

// BinOp enumerates the binary operators of spec.md §3.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Mod
	LAnd
	LOr
	Xor
	LT
	LE
	GT
	GE
	EQ
	NE
)

// IsComparison reports whether op produces a Bool result.
func (op BinOp) IsComparison() bool {
	switch op {
	case LT, LE, GT, GE, EQ, NE:
		return true
	default:
		return false
	}
}

// IsLogical reports whether op requires and produces Bool operands.
func (op BinOp) IsLogical() bool {
	switch op {
	case LAnd, LOr, Xor:
		return true
	default:
		return false
	}
}

func (op BinOp) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	case LAnd:
		return "&&"
	case LOr:
		return "||"
	case Xor:
		return "^"
	case LT:
		return "<"
	case LE:
		return "<="
	case GT:
		return ">"
	case GE:
		return ">="
	case EQ:
		return "=="
	case NE:
		return "!="
	default:
		return "?"
	}
}

func (op UnaryOp) String() string {
	if op == Neg {
		return "-"
	}
	return "!"
}

// IntLit is an integer literal, held as its raw decimal digits: the
// lexer's Integer token accepts any non-negative run of digits, wider
// than any single jj integer type, so interpreting it against a
// concrete width (and rejecting what doesn't fit) is internal/validate's
// job, not the parser's.
type IntLit struct {
	span
	Value string
}

// BoolLit is a boolean literal.
type BoolLit struct {
	span
	Value bool
}

// UnitLit is the unit literal "()".
type UnitLit struct {
	span
}

// IdentExpr is a name reference. Reveal (spec.md §4.2) later decides whether
// this resolves to a variable (stays IdentExpr, or is lowered to a Var node)
// or a top-level function (becomes a FunRef node).
type IdentExpr struct {
	span
	Name string
}

// UnaryExpr is "op x".
type UnaryExpr struct {
	span
	Op UnaryOp
	X  Expr
}

// BinaryExpr is "l op r".
type BinaryExpr struct {
	span
	Op   BinOp
	L, R Expr
}

// IfExpr is "if cond thenBlock else elseBlock". jj has no else-less if: an
// omitted else is parsed as an empty Block (type Unit), which Validate's
// "branch types must unify" rule then requires the then-branch to also be
// Unit-typed.
type IfExpr struct {
	span
	Cond Expr
	Then *Block
	Else *Block
}

// LoopExpr is "loop body". Its type is the type of the value passed to
// "break", or Never if the loop contains no break.
type LoopExpr struct {
	span
	Body *Block
}

// BreakExpr is "break [value]". Its own expression type is Never.
type BreakExpr struct {
	span
	Value Expr // nil for a bare "break"
}

// ContinueExpr is "continue". Its expression type is Never.
type ContinueExpr struct {
	span
}

// ReturnExpr is "return [value]". Its expression type is Never.
type ReturnExpr struct {
	span
	Value Expr // nil for a bare "return", inferred as Unit
}

// CallExpr is "callee(args...)".
type CallExpr struct {
	span
	Callee Expr
	Args   []Expr
}

// FieldAccessExpr is "receiver.field".
type FieldAccessExpr struct {
	span
	Receiver Expr
	Field    string
}

// StructLitField is one "name: expr" entry of a struct literal.
type StructLitField struct {
	span
	Name string
	Expr Expr
}

// StructLitExpr is "StructName { field: expr, ... }".
type StructLitExpr struct {
	span
	StructName string
	Fields     []*StructLitField
}

// ParenExpr is "(expr)", kept only to preserve source spans; it carries no
// semantics of its own and Validate/Reveal simply recurse through it.
type ParenExpr struct {
	span
	X Expr
}

func (*IntLit) exprNode()          {}
func (*BoolLit) exprNode()         {}
func (*UnitLit) exprNode()         {}
func (*IdentExpr) exprNode()       {}
func (*UnaryExpr) exprNode()       {}
func (*BinaryExpr) exprNode()      {}
func (*IfExpr) exprNode()          {}
func (*LoopExpr) exprNode()        {}
func (*BreakExpr) exprNode()       {}
func (*ContinueExpr) exprNode()    {}
func (*ReturnExpr) exprNode()      {}
func (*CallExpr) exprNode()        {}
func (*FieldAccessExpr) exprNode() {}
func (*StructLitExpr) exprNode()   {}
func (*ParenExpr) exprNode()       {}
