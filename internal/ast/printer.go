package ast

import (
	"fmt"
	"strings"
)

// Print renders a Program as an indented tree. The CLI's --display parse
// dump does not call it; it prints the Program with %+v.
func Print(p *Program) string {
	var b strings.Builder
	for _, s := range p.Structs {
		printStruct(&b, s)
	}
	for _, f := range p.Funcs {
		printFunc(&b, f)
	}
	return b.String()
}

func printStruct(b *strings.Builder, s *StructDecl) {
	fmt.Fprintf(b, "struct %s {\n", s.Name)
	for _, f := range s.Fields {
		fmt.Fprintf(b, "  %s: %s,\n", f.Name, f.Type.Name)
	}
	b.WriteString("}\n")
}

func printFunc(b *strings.Builder, f *FuncDecl) {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s: %s", p.Name, p.Type.Name)
	}
	fmt.Fprintf(b, "fn %s(%s) -> %s ", f.Name, strings.Join(params, ", "), f.Ret.Name)
	printBlock(b, f.Body, 0)
	b.WriteString("\n")
}

func printBlock(b *strings.Builder, blk *Block, depth int) {
	indent := strings.Repeat("  ", depth+1)
	b.WriteString("{\n")
	for _, s := range blk.Stmts {
		b.WriteString(indent)
		printStmt(b, s, depth+1)
		b.WriteString("\n")
	}
	if blk.Tail != nil {
		b.WriteString(indent)
		printExpr(b, blk.Tail, depth+1)
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("}")
}

func printStmt(b *strings.Builder, s Stmt, depth int) {
	switch n := s.(type) {
	case *LetStmt:
		fmt.Fprintf(b, "let %s = ", n.Name)
		printExpr(b, n.Expr, depth)
		b.WriteString(";")
	case *AssignStmt:
		fmt.Fprintf(b, "%s = ", n.Name)
		printExpr(b, n.Expr, depth)
		b.WriteString(";")
	case *ExprStmt:
		printExpr(b, n.Expr, depth)
		b.WriteString(";")
	}
}

func printExpr(b *strings.Builder, e Expr, depth int) {
	switch n := e.(type) {
	case *IntLit:
		fmt.Fprintf(b, "%s", n.Value)
	case *BoolLit:
		fmt.Fprintf(b, "%t", n.Value)
	case *UnitLit:
		b.WriteString("()")
	case *IdentExpr:
		b.WriteString(n.Name)
	case *UnaryExpr:
		fmt.Fprintf(b, "%s", n.Op)
		printExpr(b, n.X, depth)
	case *BinaryExpr:
		printExpr(b, n.L, depth)
		fmt.Fprintf(b, " %s ", n.Op)
		printExpr(b, n.R, depth)
	case *IfExpr:
		b.WriteString("if ")
		printExpr(b, n.Cond, depth)
		b.WriteString(" ")
		printBlock(b, n.Then, depth)
		b.WriteString(" else ")
		printBlock(b, n.Else, depth)
	case *LoopExpr:
		b.WriteString("loop ")
		printBlock(b, n.Body, depth)
	case *BreakExpr:
		b.WriteString("break")
		if n.Value != nil {
			b.WriteString(" ")
			printExpr(b, n.Value, depth)
		}
	case *ContinueExpr:
		b.WriteString("continue")
	case *ReturnExpr:
		b.WriteString("return")
		if n.Value != nil {
			b.WriteString(" ")
			printExpr(b, n.Value, depth)
		}
	case *CallExpr:
		printExpr(b, n.Callee, depth)
		b.WriteString("(")
		for i, a := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			printExpr(b, a, depth)
		}
		b.WriteString(")")
	case *FieldAccessExpr:
		printExpr(b, n.Receiver, depth)
		fmt.Fprintf(b, ".%s", n.Field)
	case *StructLitExpr:
		fmt.Fprintf(b, "%s { ", n.StructName)
		for i, f := range n.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%s: ", f.Name)
			printExpr(b, f.Expr, depth)
		}
		b.WriteString(" }")
	case *ParenExpr:
		b.WriteString("(")
		printExpr(b, n.X, depth)
		b.WriteString(")")
	case *Block:
		printBlock(b, n, depth)
	default:
		b.WriteString("<?>")
	}
}
