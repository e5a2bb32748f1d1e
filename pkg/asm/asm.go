// Package asm converts BL opcode streams to and from a textual listing and
// checks their block structure.
//
// A listing has one instruction per line. Block bodies are indented but
// indentation is not significant. A line may start with the decimal offset
// of its instruction followed by a colon; the assembler checks it.
//
//	0000: WHILE true
//	0002:   IF next-is-wall
//	0004:     turnleft
//	0005:   ELSE
//	0006:     move
//	0007:   END
//	0008: END
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"blc/pkg/opcode"
)

// Assembler turns a listing back into opcodes for one instruction set.
type Assembler struct {
	set *opcode.Set
}

type parsedLine struct {
	lineNo   int
	offset   int // -1 when the line carries no offset
	mnemonic string
	operands []string
}

func NewAssembler(set *opcode.Set) *Assembler {
	if set == nil {
		set = opcode.Default()
	}
	return &Assembler{set: set}
}

// Assemble encodes a listing with the default instruction set.
func Assemble(listing string) ([]int, map[int]int, error) {
	return NewAssembler(nil).Assemble(listing)
}

// Assemble returns the encoded program and a source map from code offset to
// listing line. Block structure is not checked here; see Verify.
func (a *Assembler) Assemble(listing string) ([]int, map[int]int, error) {
	lines := strings.Split(listing, "\n")

	parsed, err := a.pass1(lines)
	if err != nil {
		return nil, nil, err
	}
	return a.pass2(parsed)
}

// pass1 parses every line and checks offsets against the running address.
func (a *Assembler) pass1(lines []string) ([]parsedLine, error) {
	var (
		address int
		out     []parsedLine
	)
	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, err
		}
		if p.offset >= 0 && p.offset != address {
			return nil, fmt.Errorf("offset %d on line %d does not match address %d", p.offset, lineNo, address)
		}
		if p.mnemonic == "" {
			continue
		}
		length, err := a.instructionLength(p)
		if err != nil {
			return nil, err
		}
		address += length
		out = append(out, p)
	}
	return out, nil
}

func (a *Assembler) pass2(lines []parsedLine) ([]int, map[int]int, error) {
	program := make([]int, 0, len(lines))
	sourceMap := make(map[int]int, len(lines))

	for _, p := range lines {
		sourceMap[len(program)] = p.lineNo

		switch p.mnemonic {
		case ".CODE":
			val, err := parseCode(p.operands[0], p.lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, val)

		case "IF", "WHILE":
			cond, ok := a.set.Condition(p.operands[0])
			if !ok {
				return nil, nil, fmt.Errorf("unknown condition '%s' on line %d", p.operands[0], p.lineNo)
			}
			op := opcode.If
			if p.mnemonic == "WHILE" {
				op = opcode.While
			}
			program = append(program, op, cond)

		case "ELSE":
			program = append(program, opcode.Else)

		case "END":
			program = append(program, opcode.End)

		default:
			code, _ := a.set.Primitive(p.mnemonic)
			program = append(program, code)
		}
	}
	return program, sourceMap, nil
}

// instructionLength validates the operand count of p and returns the number
// of codes it assembles to.
func (a *Assembler) instructionLength(p parsedLine) (int, error) {
	want, length := 0, 1
	switch p.mnemonic {
	case ".CODE":
		want = 1
	case "IF", "WHILE":
		want, length = 1, 2
	case "ELSE", "END":
	default:
		if !a.set.IsPrimitive(p.mnemonic) {
			return 0, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
		}
	}
	if len(p.operands) != want {
		return 0, fmt.Errorf("%s expects %d operand(s) on line %d", p.mnemonic, want, p.lineNo)
	}
	return length, nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo, offset: -1}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	if colon := strings.IndexByte(line, ':'); colon >= 0 {
		prefix := strings.TrimSpace(line[:colon])
		off, err := strconv.Atoi(prefix)
		if err != nil || off < 0 {
			return p, fmt.Errorf("invalid offset '%s' on line %d", prefix, lineNo)
		}
		p.offset = off
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	fields := strings.Fields(line)
	p.mnemonic = fields[0]
	// Control markers and directives are case insensitive; primitive
	// names are matched exactly.
	switch upper := strings.ToUpper(fields[0]); upper {
	case "IF", "ELSE", "WHILE", "END", ".CODE":
		p.mnemonic = upper
	}
	if len(fields) > 1 {
		p.operands = fields[1:]
	}
	return p, nil
}

func stripComments(line string) string {
	semicolon := strings.Index(line, ";")
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if semicolon >= 0 {
		cut = semicolon
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

// parseCode accepts any non-negative int, so every stream readable from an
// opcode file survives a disassemble/assemble round trip.
func parseCode(token string, lineNo int) (int, error) {
	value, err := strconv.ParseUint(token, 0, strconv.IntSize-1)
	if err != nil {
		return 0, fmt.Errorf("invalid code '%s' on line %d", token, lineNo)
	}
	return int(value), nil
}
