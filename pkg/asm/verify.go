package asm

import (
	"fmt"

	"blc/pkg/opcode"
)

// VerifyError describes an opcode stream verification failure.
type VerifyError struct {
	Offset  int
	Message string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify error at offset %d: %s", e.Offset, e.Message)
}

// Verify checks that code is a well formed opcode stream for set:
//  1. every code is a primitive of set or a control marker
//  2. IF and WHILE are followed by a condition code
//  3. ELSE only appears once inside an open IF
//  4. every IF and WHILE is closed by END, and END closes something
//
// All violations are reported in stream order, unclosed blocks last.
func Verify(code []int, set *opcode.Set) []VerifyError {
	var errs []VerifyError
	open := walk(code, set, func(ins Instruction) {
		if ins.Err != "" {
			errs = append(errs, VerifyError{Offset: ins.Offset, Message: ins.Err})
		}
	})
	for i := len(open) - 1; i >= 0; i-- {
		errs = append(errs, VerifyError{
			Offset:  open[i].offset,
			Message: fmt.Sprintf("unterminated %s", name(open[i].op)),
		})
	}
	return errs
}

// Instruction is one decoded element of an opcode stream. Cond is -1 for
// codes that take no condition.
type Instruction struct {
	Offset int
	Op     int
	Cond   int
	Depth  int
	Err    string
}

// Len is the number of codes the instruction occupies.
func (ins Instruction) Len() int {
	if ins.Cond >= 0 {
		return 2
	}
	return 1
}

type frame struct {
	op      int // opcode.If or opcode.While
	offset  int
	hasElse bool
}

// walk decodes code into instructions, tracking block depth. Malformed
// input is decoded best effort with Err set on the offending instruction.
// The blocks still open at the end of the stream are returned.
func walk(code []int, set *opcode.Set, fn func(Instruction)) []frame {
	var stack []frame
	for pc := 0; pc < len(code); {
		ins := Instruction{Offset: pc, Op: code[pc], Cond: -1, Depth: len(stack)}
		pc++

		switch ins.Op {
		case opcode.If, opcode.While:
			switch {
			case pc >= len(code):
				ins.Err = fmt.Sprintf("%s without condition at end of stream", name(ins.Op))
			default:
				ins.Cond = code[pc]
				pc++
				if _, ok := set.ConditionName(ins.Cond); !ok {
					ins.Err = fmt.Sprintf("%s followed by non-condition code %d", name(ins.Op), ins.Cond)
				}
			}
			stack = append(stack, frame{op: ins.Op, offset: ins.Offset})

		case opcode.Else:
			switch {
			case len(stack) == 0:
				ins.Err = "ELSE outside IF"
			case stack[len(stack)-1].op != opcode.If:
				ins.Err = "ELSE inside WHILE"
			case stack[len(stack)-1].hasElse:
				ins.Err = "second ELSE in IF"
			default:
				stack[len(stack)-1].hasElse = true
			}
			if ins.Depth > 0 {
				ins.Depth--
			}

		case opcode.End:
			if len(stack) == 0 {
				ins.Err = "END without IF or WHILE"
			} else {
				stack = stack[:len(stack)-1]
				ins.Depth--
			}

		default:
			if _, ok := set.PrimitiveName(ins.Op); !ok {
				ins.Err = fmt.Sprintf("unknown opcode %d", ins.Op)
			}
		}
		fn(ins)
	}
	return stack
}

func name(op int) string {
	if n, ok := opcode.ControlName(op); ok {
		return n
	}
	return fmt.Sprint(op)
}
