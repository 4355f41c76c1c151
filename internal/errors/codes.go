// Package errors defines the structured diagnostics produced by every
// fallible pass (spec.md §7): each failure is a *CompilerError carrying an
// error code, a message, and a source span.
package errors

// Error codes, one per failure named in spec.md §7. The taxonomy mirrors
// the teacher's E0xxx numbering convention (internal/errors/codes.go in
// kanso): ranges group related failures so a reader can place an unfamiliar
// code at a glance.
const (
	// E01xx: name resolution (uniquify)
	UndeclaredVar      = "E0101"
	NoMain             = "E0102"
	DuplicateFunction  = "E0103"
	DuplicateArg       = "E0104"
	DuplicateGlobal    = "E0105"
	ModifyImmutable    = "E0106"
	BreakOutsideLoop   = "E0107"
	ContinueOutsideLoop = "E0108"

	// E02xx: type checking (constraint solving)
	TypeMismatchExpect      = "E0201"
	TypeMismatchEqual       = "E0202"
	ArgCountMismatch        = "E0203"
	IfExpectBool            = "E0204"
	IfExpectEqual           = "E0205"
	OperandExpect           = "E0206"
	OperandEqual            = "E0207"
	MismatchedFnReturn      = "E0208"
	MismatchedLetBinding    = "E0209"
	MismatchedAssignBinding = "E0210"
	SymbolShouldBeVariable  = "E0211"
	SymbolShouldBeStruct    = "E0212"
	UnknownStructField      = "E0213"
	VariableConstructMissingField   = "E0214"
	VariableConstructDuplicateField = "E0215"
	TypeShouldBeStruct      = "E0216"
	IntegerOutOfBounds      = "E0217"

	// E03xx: struct sizing
	UnsizedType = "E0301"

	// E09xx: parse / I/O
	ParseError = "E0901"
	IOError    = "E0902"
)

// descriptions gives a short human-readable gloss for each code, returned
// by Describe. Reporter.Format prints the error's own Message instead.
var descriptions = map[string]string{
	UndeclaredVar:                    "use of an undeclared name",
	NoMain:                           "program has no `main` function",
	DuplicateFunction:                "function name declared more than once",
	DuplicateArg:                     "parameter name repeated in a function signature",
	DuplicateGlobal:                  "top-level name declared more than once",
	ModifyImmutable:                  "assignment to an immutable binding",
	BreakOutsideLoop:                 "`break` outside of a loop",
	ContinueOutsideLoop:              "`continue` outside of a loop",
	TypeMismatchExpect:               "expression type does not match the type required here",
	TypeMismatchEqual:                "two expressions were required to have the same type but do not",
	ArgCountMismatch:                 "call supplies the wrong number of arguments",
	IfExpectBool:                     "`if` condition must be Bool",
	IfExpectEqual:                    "`if` branches must have the same type",
	OperandExpect:                    "operator applied to an operand of the wrong type",
	OperandEqual:                     "operator requires both operands to have the same type",
	MismatchedFnReturn:               "returned value does not match the function's declared return type",
	MismatchedLetBinding:             "`let` initializer does not match its type annotation",
	MismatchedAssignBinding:          "assigned value does not match the variable's type",
	SymbolShouldBeVariable:           "name resolves to a function, not a variable",
	SymbolShouldBeStruct:             "name does not resolve to a struct type",
	UnknownStructField:               "struct has no field with this name",
	VariableConstructMissingField:    "struct literal is missing a required field",
	VariableConstructDuplicateField:  "struct literal repeats a field",
	TypeShouldBeStruct:               "field access on a non-struct type",
	IntegerOutOfBounds:               "integer literal does not fit in its type",
	UnsizedType:                      "struct definition is recursive without indirection",
	ParseError:                       "syntax error",
	IOError:                          "input/output error",
}

// Describe returns the canonical one-line description of a code.
func Describe(code string) string {
	if d, ok := descriptions[code]; ok {
		return d
	}
	return "unknown error"
}
