package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"jjc/internal/ast"
)

// CompilerError is a single structured diagnostic: a code, a message, a
// source span, and optional supplementary notes. Every fallible pass
// (spec.md §7) returns errors in this shape; nothing lower in the pipeline
// wraps or reinterprets them.
type CompilerError struct {
	Code     string
	Message  string
	Pos      ast.Position
	EndPos   ast.Position
	Notes    []string
	HelpText string
}

func New(code string, pos ast.Position, format string, args ...interface{}) *CompilerError {
	return &CompilerError{Code: code, Message: fmt.Sprintf(format, args...), Pos: pos, EndPos: pos}
}

func (e *CompilerError) Error() string {
	return fmt.Sprintf("%s: [%s] %s", e.Pos, e.Code, e.Message)
}

func (e *CompilerError) WithNote(note string) *CompilerError {
	e.Notes = append(e.Notes, note)
	return e
}

func (e *CompilerError) WithHelp(help string) *CompilerError {
	e.HelpText = help
	return e
}

// Reporter renders CompilerErrors against their originating source, in the
// caret-pointing style of a Rust-like compiler diagnostic (modeled on the
// teacher's errors.ErrorReporter.FormatError).
type Reporter struct {
	filename string
	lines    []string
}

func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders one error as a multi-line, colorized diagnostic.
func (r *Reporter) Format(err *CompilerError) string {
	var b strings.Builder

	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()

	fmt.Fprintf(&b, "%s[%s]: %s\n", red("error"), err.Code, err.Message)

	width := lineNumberWidth(err.Pos.Line)
	indent := strings.Repeat(" ", width)
	fmt.Fprintf(&b, "%s %s %s:%d:%d\n", indent, dim("-->"), r.filename, err.Pos.Line, err.Pos.Column)
	fmt.Fprintf(&b, "%s %s\n", indent, dim("│"))

	if err.Pos.Line >= 1 && err.Pos.Line <= len(r.lines) {
		line := r.lines[err.Pos.Line-1]
		fmt.Fprintf(&b, "%s %s %s\n", bold(pad(err.Pos.Line, width)), dim("│"), line)
		marker := strings.Repeat(" ", max0(err.Pos.Column-1)) + red("^")
		fmt.Fprintf(&b, "%s %s %s\n", indent, dim("│"), marker)
	}

	for _, note := range err.Notes {
		noteColor := color.New(color.FgBlue).SprintFunc()
		fmt.Fprintf(&b, "%s %s %s %s\n", indent, dim("│"), noteColor("note:"), note)
	}
	if err.HelpText != "" {
		helpColor := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(&b, "%s %s %s %s\n", indent, dim("│"), helpColor("help:"), err.HelpText)
	}
	b.WriteString("\n")
	return b.String()
}

func lineNumberWidth(line int) int {
	w := len(fmt.Sprintf("%d", line))
	if w < 3 {
		return 3
	}
	return w
}

func pad(n, width int) string {
	return fmt.Sprintf("%*d", width, n)
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
