package compiler

import (
	"fmt"
	"strings"
)

// LexicalError reports a lexeme that matches no BL terminal.
type LexicalError struct {
	Line   int
	Lexeme string
}

func (e *LexicalError) Error() string {
	return fmt.Sprintf("line %d: unrecognized token %q", e.Line, e.Lexeme)
}

// SyntaxError reports a grammar violation at a specific token.
type SyntaxError struct {
	Token   Token
	Rule    string // grammar rule being parsed, e.g. "InstructionDef"
	Msg     string
	Snippet string // trimmed source line, empty when unavailable
}

func (e *SyntaxError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "line %d: %s: %s", e.Token.Line, e.Rule, e.Msg)
	if e.Snippet != "" {
		fmt.Fprintf(&sb, "\n  |> %s", e.Snippet)
	}
	return sb.String()
}

// UndefinedInstructionError reports a CALL to a name that is neither a
// primitive nor declared in the program context.
type UndefinedInstructionError struct {
	Name string
	Line int
}

func (e *UndefinedInstructionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: undefined instruction %q", e.Line, e.Name)
	}
	return fmt.Sprintf("undefined instruction %q", e.Name)
}

// RecursionError reports a CALL that re-enters an instruction whose
// expansion is already in progress. Path lists the cycle, starting and
// ending with Name.
type RecursionError struct {
	Name string
	Path []string
}

func (e *RecursionError) Error() string {
	if len(e.Path) > 1 {
		return fmt.Sprintf("recursive instruction %q: %s", e.Name, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("recursive instruction %q", e.Name)
}

// ResourceExhaustedError reports that a nesting, inlining depth or output
// size bound was exceeded.
type ResourceExhaustedError struct {
	Resource string // "nesting", "depth" or "output"
	Limit    int
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("%s limit of %d exceeded", e.Resource, e.Limit)
}
