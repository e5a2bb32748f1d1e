package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	IDENTIFIER // instruction / program name
	CONDITION  // next-is-empty, random, true, ...

	// Keywords
	PROGRAM
	IS
	INSTRUCTION
	BEGIN
	END
	IF
	ELSE
	WHILE
	CALL
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	EOF:         "EOF",
	IDENTIFIER:  "IDENTIFIER",
	CONDITION:   "CONDITION",
	PROGRAM:     "PROGRAM",
	IS:          "IS",
	INSTRUCTION: "INSTRUCTION",
	BEGIN:       "BEGIN",
	END:         "END",
	IF:          "IF",
	ELSE:        "ELSE",
	WHILE:       "WHILE",
	CALL:        "CALL",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// IsKeyword reports whether tt is one of the reserved words.
func (tt TokenType) IsKeyword() bool {
	return tt >= PROGRAM && tt <= CALL
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Line   int    // 1-based source line
}

func (t Token) String() string {
	return fmt.Sprintf("%-11s %-20q  line %d", t.Type, t.Lexeme, t.Line)
}

// TokenQueue is the FIFO the parser drains. The last token is always EOF;
// once only EOF remains, Front keeps returning it.
type TokenQueue struct {
	tokens []Token
	head   int
}

// NewTokenQueue wraps tokens, appending an EOF sentinel when missing.
func NewTokenQueue(tokens []Token) *TokenQueue {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != EOF {
		line := 1
		if len(tokens) > 0 {
			line = tokens[len(tokens)-1].Line
		}
		tokens = append(tokens, Token{Type: EOF, Line: line})
	}
	return &TokenQueue{tokens: tokens}
}

// Len returns the number of tokens not yet consumed, EOF included.
func (q *TokenQueue) Len() int {
	return len(q.tokens) - q.head
}

// Front returns the next token without consuming it.
func (q *TokenQueue) Front() Token {
	return q.At(0)
}

// At returns the token offset positions past the front.
func (q *TokenQueue) At(offset int) Token {
	i := q.head + offset
	if i >= len(q.tokens) {
		return q.tokens[len(q.tokens)-1]
	}
	return q.tokens[i]
}

// Dequeue consumes and returns the front token. EOF is never consumed.
func (q *TokenQueue) Dequeue() Token {
	tok := q.Front()
	if tok.Type != EOF {
		q.head++
	}
	return tok
}

// Tokens returns the unconsumed tokens, EOF included.
func (q *TokenQueue) Tokens() []Token {
	return q.tokens[q.head:]
}
