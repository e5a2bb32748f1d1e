package compiler

import (
	"fmt"
	"io"
	"strings"
)

const indentUnit = "  "

type printer struct {
	w   io.Writer
	err error
}

func (pr *printer) line(depth int, format string, args ...any) {
	if pr.err != nil {
		return
	}
	_, pr.err = fmt.Fprintf(pr.w, strings.Repeat(indentUnit, depth)+format+"\n", args...)
}

func (pr *printer) block(b *Block, depth int) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		pr.stmt(s, depth)
	}
}

func (pr *printer) stmt(s Statement, depth int) {
	switch n := s.(type) {
	case *Block:
		pr.block(n, depth)
	case *If:
		pr.line(depth, "IF %s", n.Cond)
		pr.block(n.Body, depth+1)
		pr.line(depth, "END IF")
	case *IfElse:
		pr.line(depth, "IF %s", n.Cond)
		pr.block(n.Then, depth+1)
		pr.line(depth, "ELSE")
		pr.block(n.Else, depth+1)
		pr.line(depth, "END IF")
	case *While:
		pr.line(depth, "WHILE %s", n.Cond)
		pr.block(n.Body, depth+1)
		pr.line(depth, "END WHILE")
	case *Call:
		pr.line(depth, "CALL %s", n.Name)
	default:
		if pr.err == nil {
			pr.err = fmt.Errorf("unhandled statement %T", s)
		}
	}
}

// Format writes p as canonical BL source: instructions in declaration
// order, two-space indentation, one statement per line.
func Format(w io.Writer, p *Program) error {
	pr := &printer{w: w}
	pr.line(0, "PROGRAM %s IS", p.Name)
	for _, name := range p.Context.Names() {
		body, _ := p.Context.Lookup(name)
		pr.line(0, "")
		pr.line(1, "INSTRUCTION %s IS", name)
		pr.block(body, 2)
		pr.line(1, "END %s", name)
	}
	pr.line(0, "")
	pr.line(0, "BEGIN")
	pr.block(p.Body, 1)
	pr.line(0, "END %s", p.Name)
	return pr.err
}

// Sprint returns Format's output as a string.
func Sprint(p *Program) string {
	var sb strings.Builder
	if err := Format(&sb, p); err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return sb.String()
}

// FormatStatement writes a single statement at the given indentation depth.
func FormatStatement(w io.Writer, s Statement, depth int) error {
	pr := &printer{w: w}
	pr.stmt(s, depth)
	return pr.err
}
