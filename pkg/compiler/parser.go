package compiler

import (
	"fmt"
	"strings"

	"blc/pkg/opcode"
)

// DefaultMaxNesting bounds how deeply IF/WHILE statements may nest.
const DefaultMaxNesting = 256

// Parser consumes a TokenQueue and builds a Program.
//
// Grammar:
//
//	program        = "PROGRAM" IDENTIFIER "IS" { instructionDef }
//	                 "BEGIN" block "END" IDENTIFIER EOF
//	instructionDef = "INSTRUCTION" IDENTIFIER "IS" block "END" IDENTIFIER
//	block          = { statement }
//	statement      = "IF" CONDITION block [ "ELSE" block ] "END" "IF"
//	               | "WHILE" CONDITION block "END" "WHILE"
//	               | "CALL" IDENTIFIER
//
// Every parse routine consumes exactly the tokens of its rule and leaves the
// queue at the first token it did not use.
type Parser struct {
	q           *TokenQueue
	sourceLines []string
	isPrimitive func(string) bool
	maxNesting  int
	depth       int
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithInstructionSet makes the parser reject instruction definitions that
// shadow a primitive of set.
func WithInstructionSet(set *opcode.Set) ParserOption {
	return func(p *Parser) { p.isPrimitive = set.IsPrimitive }
}

// WithMaxNesting bounds statement nesting.
func WithMaxNesting(n int) ParserOption {
	return func(p *Parser) { p.maxNesting = n }
}

// WithSource attaches the raw text so errors can quote the offending line.
func WithSource(src string) ParserOption {
	return func(p *Parser) { p.sourceLines = strings.Split(src, "\n") }
}

func NewParser(q *TokenQueue, opts ...ParserOption) *Parser {
	p := &Parser{
		q:           q,
		isPrimitive: opcode.Default().IsPrimitive,
		maxNesting:  DefaultMaxNesting,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// errorf builds a SyntaxError at tok quoting the source line when available.
func (p *Parser) errorf(tok Token, rule string, format string, args ...any) error {
	snippet := ""
	if idx := tok.Line - 1; idx >= 0 && idx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[idx])
	}
	return &SyntaxError{Token: tok, Rule: rule, Msg: fmt.Sprintf(format, args...), Snippet: snippet}
}

// describe renders a token for error messages.
func describe(tok Token) string {
	if tok.Type == EOF {
		return "end of input"
	}
	return fmt.Sprintf("%s %q", tok.Type, tok.Lexeme)
}

// expect consumes the front token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType, rule string) (Token, error) {
	tok := p.q.Front()
	if tok.Type != tt {
		return tok, p.errorf(tok, rule, "expected %s, got %s", tt, describe(tok))
	}
	return p.q.Dequeue(), nil
}

// expectName consumes the closing identifier of a PROGRAM or INSTRUCTION
// and checks it repeats the opening one.
func (p *Parser) expectName(open Token, rule string) error {
	tok, err := p.expect(IDENTIFIER, rule)
	if err != nil {
		return err
	}
	if tok.Lexeme != open.Lexeme {
		return p.errorf(tok, rule, "closing name %q does not match %q opened on line %d",
			tok.Lexeme, open.Lexeme, open.Line)
	}
	return nil
}

// parseBlock parses statements until a token that cannot start one.
func (p *Parser) parseBlock() (*Block, error) {
	b := &Block{Line: p.q.Front().Line}
	for {
		switch p.q.Front().Type {
		case IF, WHILE, CALL:
			stmt, err := p.ParseStatement()
			if err != nil {
				return nil, err
			}
			b.Append(stmt)
		default:
			return b, nil
		}
	}
}

// ParseStatement parses a single IF, WHILE or CALL statement.
func (p *Parser) ParseStatement() (Statement, error) {
	tok := p.q.Front()
	switch tok.Type {
	case IF:
		return p.nested(p.parseIf)
	case WHILE:
		return p.nested(p.parseWhile)
	case CALL:
		return p.parseCall()
	default:
		return nil, p.errorf(tok, "Statement", "expected IF, WHILE or CALL, got %s", describe(tok))
	}
}

// nested runs parse one nesting level deeper.
func (p *Parser) nested(parse func() (Statement, error)) (Statement, error) {
	if p.depth >= p.maxNesting {
		return nil, &ResourceExhaustedError{Resource: "nesting", Limit: p.maxNesting}
	}
	p.depth++
	defer func() { p.depth-- }()
	return parse()
}

// parseCondition consumes the condition after IF / WHILE.
func (p *Parser) parseCondition(rule string) (string, error) {
	tok, err := p.expect(CONDITION, rule)
	if err != nil {
		return "", err
	}
	return tok.Lexeme, nil
}

// parseIf parses IF cond block [ELSE block] END IF
func (p *Parser) parseIf() (Statement, error) {
	ifTok, err := p.expect(IF, "IfStatement")
	if err != nil {
		return nil, err
	}
	cond, err := p.parseCondition("IfStatement")
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	var stmt Statement
	if p.q.Front().Type == ELSE {
		p.q.Dequeue()
		els, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt = &IfElse{Cond: cond, Then: then, Else: els, Line: ifTok.Line}
	} else {
		stmt = &If{Cond: cond, Body: then, Line: ifTok.Line}
	}

	if _, err := p.expect(END, "IfStatement"); err != nil {
		return nil, err
	}
	if _, err := p.expect(IF, "IfStatement"); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseWhile parses WHILE cond block END WHILE
func (p *Parser) parseWhile() (Statement, error) {
	whileTok, err := p.expect(WHILE, "WhileStatement")
	if err != nil {
		return nil, err
	}
	cond, err := p.parseCondition("WhileStatement")
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(END, "WhileStatement"); err != nil {
		return nil, err
	}
	if _, err := p.expect(WHILE, "WhileStatement"); err != nil {
		return nil, err
	}
	return &While{Cond: cond, Body: body, Line: whileTok.Line}, nil
}

// parseCall parses CALL name
func (p *Parser) parseCall() (Statement, error) {
	callTok, err := p.expect(CALL, "CallStatement")
	if err != nil {
		return nil, err
	}
	name, err := p.expect(IDENTIFIER, "CallStatement")
	if err != nil {
		return nil, err
	}
	return &Call{Name: name.Lexeme, Line: callTok.Line}, nil
}

// parseInstruction parses INSTRUCTION name IS block END name into ctx.
func (p *Parser) parseInstruction(ctx *Context) error {
	const rule = "InstructionDef"
	if _, err := p.expect(INSTRUCTION, rule); err != nil {
		return err
	}
	name, err := p.expect(IDENTIFIER, rule)
	if err != nil {
		return err
	}
	if p.isPrimitive(name.Lexeme) {
		return p.errorf(name, rule, "instruction %q redefines a primitive", name.Lexeme)
	}
	if ctx.Has(name.Lexeme) {
		return p.errorf(name, rule, "instruction %q already defined", name.Lexeme)
	}
	if _, err := p.expect(IS, rule); err != nil {
		return err
	}
	body, err := p.parseBlock()
	if err != nil {
		return err
	}
	if _, err := p.expect(END, rule); err != nil {
		return err
	}
	if err := p.expectName(name, rule); err != nil {
		return err
	}
	return ctx.Add(name.Lexeme, body)
}

// ParseInto resets prog and fills it from the queue. On error prog is left
// in its constructed state.
func (p *Parser) ParseInto(prog *Program) error {
	prog.Reset()
	parsed, err := p.parseProgram()
	if err != nil {
		return err
	}
	*prog = *parsed
	return nil
}

// Parse parses a complete program. The queue holds only EOF afterwards.
func (p *Parser) Parse() (*Program, error) {
	return p.parseProgram()
}

func (p *Parser) parseProgram() (*Program, error) {
	const rule = "Program"
	if _, err := p.expect(PROGRAM, rule); err != nil {
		return nil, err
	}
	name, err := p.expect(IDENTIFIER, rule)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(IS, rule); err != nil {
		return nil, err
	}

	prog := NewProgram()
	prog.Name = name.Lexeme
	for p.q.Front().Type == INSTRUCTION {
		if err := p.parseInstruction(prog.Context); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(BEGIN, rule); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	prog.Body = body
	if _, err := p.expect(END, rule); err != nil {
		return nil, err
	}
	if err := p.expectName(name, rule); err != nil {
		return nil, err
	}
	if tok := p.q.Front(); tok.Type != EOF {
		return nil, p.errorf(tok, rule, "unexpected %s after end of program", describe(tok))
	}
	return prog, nil
}

// Parse parses a program from q with the default instruction set.
func Parse(q *TokenQueue) (*Program, error) {
	return NewParser(q).Parse()
}

// ParseString lexes and parses src.
func ParseString(src string) (*Program, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	return NewParser(NewTokenQueue(tokens), WithSource(src)).Parse()
}
