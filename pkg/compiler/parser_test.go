package compiler

import (
	"strings"
	"testing"

	"blc/pkg/opcode"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ignoreLines compares ASTs by shape only.
var ignoreLines = cmpopts.IgnoreFields(Block{}, "Line")

func ignorePositions() cmp.Option {
	return cmp.Options{
		ignoreLines,
		cmpopts.IgnoreFields(If{}, "Line"),
		cmpopts.IgnoreFields(IfElse{}, "Line"),
		cmpopts.IgnoreFields(While{}, "Line"),
		cmpopts.IgnoreFields(Call{}, "Line"),
	}
}

func blk(stmts ...Statement) *Block { return &Block{Stmts: stmts} }
func call(name string) *Call        { return &Call{Name: name} }

// TestParse verifies that Parse produces the correct AST for valid inputs.
func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantName     string
		wantContext  map[string]*Block
		wantOrder    []string
		expectedBody *Block
	}{
		{
			name:         "Empty program",
			input:        "PROGRAM p IS BEGIN END p",
			wantName:     "p",
			expectedBody: blk(),
		},
		{
			name:         "Calls",
			input:        "PROGRAM p IS BEGIN CALL move CALL turnleft END p",
			wantName:     "p",
			expectedBody: blk(call("move"), call("turnleft")),
		},
		{
			name: "Instructions in order",
			input: `PROGRAM walker IS
				INSTRUCTION turnaround IS CALL turnleft CALL turnleft END turnaround
				INSTRUCTION step IS CALL move END step
				BEGIN CALL turnaround CALL step END walker`,
			wantName: "walker",
			wantContext: map[string]*Block{
				"turnaround": blk(call("turnleft"), call("turnleft")),
				"step":       blk(call("move")),
			},
			wantOrder:    []string{"turnaround", "step"},
			expectedBody: blk(call("turnaround"), call("step")),
		},
		{
			name:     "If",
			input:    "PROGRAM p IS BEGIN IF next-is-wall CALL turnleft END IF END p",
			wantName: "p",
			expectedBody: blk(
				&If{Cond: "next-is-wall", Body: blk(call("turnleft"))},
			),
		},
		{
			name:     "If else",
			input:    "PROGRAM p IS BEGIN IF next-is-enemy CALL infect ELSE CALL move END IF END p",
			wantName: "p",
			expectedBody: blk(
				&IfElse{Cond: "next-is-enemy", Then: blk(call("infect")), Else: blk(call("move"))},
			),
		},
		{
			name:     "Empty branches",
			input:    "PROGRAM p IS BEGIN IF random ELSE END IF WHILE true END WHILE END p",
			wantName: "p",
			expectedBody: blk(
				&IfElse{Cond: "random", Then: blk(), Else: blk()},
				&While{Cond: "true", Body: blk()},
			),
		},
		{
			name: "Nested",
			input: `PROGRAM p IS BEGIN
				WHILE true
					IF next-is-empty
						CALL move
					ELSE
						IF random CALL turnleft ELSE CALL turnright END IF
					END IF
				END WHILE
			END p`,
			wantName: "p",
			expectedBody: blk(
				&While{Cond: "true", Body: blk(
					&IfElse{
						Cond: "next-is-empty",
						Then: blk(call("move")),
						Else: blk(&IfElse{Cond: "random", Then: blk(call("turnleft")), Else: blk(call("turnright"))}),
					},
				)},
			),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prog, err := ParseString(tc.input)
			require.NoError(t, err)

			assert.Equal(t, tc.wantName, prog.Name)
			if diff := cmp.Diff(tc.expectedBody, prog.Body, ignorePositions()); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, len(tc.wantContext), prog.Context.Len())
			if tc.wantOrder != nil {
				assert.Equal(t, tc.wantOrder, prog.Context.Names())
			}
			for name, want := range tc.wantContext {
				got, ok := prog.Context.Lookup(name)
				require.True(t, ok, "instruction %q missing", name)
				if diff := cmp.Diff(want, got, ignorePositions()); diff != "" {
					t.Errorf("instruction %q mismatch (-want +got):\n%s", name, diff)
				}
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantRule string
		wantMsg  string
		wantLine int
	}{
		{
			name:     "Missing PROGRAM",
			input:    "BEGIN END p",
			wantRule: "Program",
			wantMsg:  "expected PROGRAM",
			wantLine: 1,
		},
		{
			name:     "Mismatched program name",
			input:    "PROGRAM p IS\nBEGIN\nEND q",
			wantRule: "Program",
			wantMsg:  `closing name "q" does not match "p"`,
			wantLine: 3,
		},
		{
			name:     "Mismatched instruction name",
			input:    "PROGRAM p IS\nINSTRUCTION a IS CALL move END b\nBEGIN END p",
			wantRule: "InstructionDef",
			wantMsg:  `closing name "b" does not match "a"`,
			wantLine: 2,
		},
		{
			name:     "Duplicate instruction",
			input:    "PROGRAM p IS\nINSTRUCTION a IS END a\nINSTRUCTION a IS CALL move END a\nBEGIN END p",
			wantRule: "InstructionDef",
			wantMsg:  `instruction "a" already defined`,
			wantLine: 3,
		},
		{
			name:     "Instruction shadows primitive",
			input:    "PROGRAM p IS INSTRUCTION move IS END move BEGIN END p",
			wantRule: "InstructionDef",
			wantMsg:  "redefines a primitive",
			wantLine: 1,
		},
		{
			name:     "Keyword as name",
			input:    "PROGRAM p IS BEGIN CALL WHILE END p",
			wantRule: "CallStatement",
			wantMsg:  `expected IDENTIFIER, got WHILE "WHILE"`,
			wantLine: 1,
		},
		{
			name:     "Condition as call",
			input:    "PROGRAM p IS BEGIN CALL random END p",
			wantRule: "CallStatement",
			wantMsg:  "expected IDENTIFIER, got CONDITION",
			wantLine: 1,
		},
		{
			name:     "Missing condition",
			input:    "PROGRAM p IS BEGIN IF move END IF END p",
			wantRule: "IfStatement",
			wantMsg:  "expected CONDITION",
			wantLine: 1,
		},
		{
			name:     "END WHILE closes IF",
			input:    "PROGRAM p IS BEGIN\nIF true CALL move END WHILE\nEND p",
			wantRule: "IfStatement",
			wantMsg:  `expected IF, got WHILE "WHILE"`,
			wantLine: 2,
		},
		{
			name:     "Bare identifier statement",
			input:    "PROGRAM p IS BEGIN move END p",
			wantRule: "Program",
			wantMsg:  `expected END, got IDENTIFIER "move"`,
			wantLine: 1,
		},
		{
			name:     "Truncated",
			input:    "PROGRAM p IS BEGIN WHILE true CALL move",
			wantRule: "WhileStatement",
			wantMsg:  "got end of input",
			wantLine: 1,
		},
		{
			name:     "Trailing tokens",
			input:    "PROGRAM p IS BEGIN END p\nCALL move",
			wantRule: "Program",
			wantMsg:  "after end of program",
			wantLine: 2,
		},
		{
			name:     "Instruction after BEGIN",
			input:    "PROGRAM p IS BEGIN INSTRUCTION a IS END a END p",
			wantRule: "Program",
			wantMsg:  "expected END, got INSTRUCTION",
			wantLine: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseString(tc.input)
			require.Error(t, err)
			var synErr *SyntaxError
			require.ErrorAs(t, err, &synErr)
			assert.Equal(t, tc.wantRule, synErr.Rule)
			assert.Contains(t, synErr.Msg, tc.wantMsg)
			assert.Equal(t, tc.wantLine, synErr.Token.Line)
		})
	}
}

func TestParse_ErrorSnippet(t *testing.T) {
	src := "PROGRAM p IS\n  BEGIN\n    CALL move\n  END q\n"
	_, err := ParseString(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4")
	assert.Contains(t, err.Error(), "|> END q")
}

func TestParse_DrainsQueue(t *testing.T) {
	tokens, err := Lex("PROGRAM p IS BEGIN CALL move END p")
	require.NoError(t, err)
	q := NewTokenQueue(tokens)

	_, err = NewParser(q).Parse()
	require.NoError(t, err)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, EOF, q.Front().Type)
}

func TestParseStatement_LeavesRest(t *testing.T) {
	tokens, err := Lex("WHILE true CALL move END WHILE CALL skip")
	require.NoError(t, err)
	q := NewTokenQueue(tokens)
	p := NewParser(q)

	stmt, err := p.ParseStatement()
	require.NoError(t, err)
	assert.Equal(t, WHILE_STMT, stmt.Kind())
	assert.Equal(t, CALL, q.Front().Type)

	stmt, err = p.ParseStatement()
	require.NoError(t, err)
	assert.Equal(t, &Call{Name: "skip", Line: 1}, stmt)
	assert.Equal(t, EOF, q.Front().Type)
}

func TestParseInto_Resets(t *testing.T) {
	prog := NewProgram()
	require.NoError(t, NewParser(mustQueue(t, "PROGRAM a IS INSTRUCTION x IS END x BEGIN CALL x END a")).ParseInto(prog))
	assert.Equal(t, "a", prog.Name)
	assert.Equal(t, 1, prog.Context.Len())

	err := NewParser(mustQueue(t, "PROGRAM b IS BEGIN CALL move END c")).ParseInto(prog)
	require.Error(t, err)
	assert.Equal(t, DefaultProgramName, prog.Name)
	assert.Equal(t, 0, prog.Context.Len())
	assert.Equal(t, 0, prog.Body.Len())

	require.NoError(t, NewParser(mustQueue(t, "PROGRAM b IS BEGIN CALL move END b")).ParseInto(prog))
	assert.Equal(t, "b", prog.Name)
	assert.Equal(t, 0, prog.Context.Len(), "instructions of the previous parse must not survive")
}

func TestParse_CustomInstructionSet(t *testing.T) {
	set, err := opcode.NewSet(map[string]int{"turn": 7}, nil)
	require.NoError(t, err)

	// move is not a primitive of this machine, so it may be defined.
	src := "PROGRAM p IS INSTRUCTION move IS CALL turn END move BEGIN CALL move END p"
	_, err = NewParser(mustQueue(t, src), WithInstructionSet(set)).Parse()
	require.NoError(t, err)

	src = "PROGRAM p IS INSTRUCTION turn IS END turn BEGIN END p"
	_, err = NewParser(mustQueue(t, src), WithInstructionSet(set)).Parse()
	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)
}

func TestParse_NestingLimit(t *testing.T) {
	depth := 10
	src := "PROGRAM p IS BEGIN " + strings.Repeat("WHILE true ", depth) + strings.Repeat("END WHILE ", depth) + "END p"

	_, err := NewParser(mustQueue(t, src), WithMaxNesting(depth)).Parse()
	require.NoError(t, err)

	_, err = NewParser(mustQueue(t, src), WithMaxNesting(depth-1)).Parse()
	var resErr *ResourceExhaustedError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "nesting", resErr.Resource)
	assert.Equal(t, depth-1, resErr.Limit)
}

func mustQueue(t *testing.T, src string) *TokenQueue {
	t.Helper()
	tokens, err := Lex(src)
	require.NoError(t, err)
	return NewTokenQueue(tokens)
}
