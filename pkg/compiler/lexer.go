package compiler

import (
	"bufio"
	"io"
	"strings"

	"blc/pkg/opcode"

	"github.com/ethereum/go-ethereum/log"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"PROGRAM":     PROGRAM,
	"IS":          IS,
	"INSTRUCTION": INSTRUCTION,
	"BEGIN":       BEGIN,
	"END":         END,
	"IF":          IF,
	"ELSE":        ELSE,
	"WHILE":       WHILE,
	"CALL":        CALL,
}

var conditions = func() map[string]bool {
	m := make(map[string]bool, len(opcode.ConditionNames))
	for _, name := range opcode.ConditionNames {
		m[name] = true
	}
	return m
}()

// Lexer splits a line-oriented source into whitespace-delimited tokens.
type Lexer struct {
	// Strict makes an unrecognized lexeme a LexicalError. When false the
	// lexeme is dropped with a warning.
	Strict bool
	Log    log.Logger
}

func newLexer() *Lexer {
	return &Lexer{Strict: true, Log: log.Root()}
}

// isIdentifier reports whether s matches [A-Za-z][A-Za-z0-9-]*.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r == '-' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}

// classify returns the token type of a single lexeme.
func classify(lexeme string) (TokenType, bool) {
	if kw, ok := keywords[lexeme]; ok {
		return kw, true
	}
	if conditions[lexeme] {
		return CONDITION, true
	}
	if isIdentifier(lexeme) {
		return IDENTIFIER, true
	}
	return EOF, false
}

// stripComment drops everything from "//" to end of line.
func stripComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		return line[:i]
	}
	return line
}

// Tokenize reads r line by line and returns the token queue, EOF last. Lines
// have no length limit. A nil Log logs to the root logger.
func (l *Lexer) Tokenize(r io.Reader) (*TokenQueue, error) {
	logger := l.Log
	if logger == nil {
		logger = log.Root()
	}
	var (
		tokens []Token
		line   int
	)
	br := bufio.NewReader(r)
	for {
		text, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if text == "" && err == io.EOF {
			break
		}
		line++
		for _, lexeme := range strings.Fields(stripComment(text)) {
			tt, ok := classify(lexeme)
			if !ok {
				if l.Strict {
					return nil, &LexicalError{Line: line, Lexeme: lexeme}
				}
				logger.Warn("Skipping unrecognized token", "line", line, "lexeme", lexeme)
				continue
			}
			tokens = append(tokens, Token{Type: tt, Lexeme: lexeme, Line: line})
		}
		if err == io.EOF {
			break
		}
	}
	if line == 0 {
		line = 1
	}
	tokens = append(tokens, Token{Type: EOF, Lexeme: "", Line: line})
	return NewTokenQueue(tokens), nil
}

// Lex tokenises src with strict lexing and returns all tokens including the
// final EOF token.
func Lex(src string) ([]Token, error) {
	q, err := newLexer().Tokenize(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	return q.Tokens(), nil
}
