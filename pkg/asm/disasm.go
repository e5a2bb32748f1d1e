package asm

import (
	"fmt"
	"strings"

	"blc/pkg/opcode"
)

const indentUnit = "  "

// Mnemonic renders ins in listing syntax. Codes that do not decode under set
// are written as .CODE directives.
func Mnemonic(ins Instruction, set *opcode.Set) string {
	if ctl, ok := opcode.ControlName(ins.Op); ok {
		if ins.Op != opcode.If && ins.Op != opcode.While {
			return ctl
		}
		if ins.Cond < 0 {
			return fmt.Sprintf(".CODE %d", ins.Op)
		}
		if cond, ok := set.ConditionName(ins.Cond); ok {
			return ctl + " " + cond
		}
		return fmt.Sprintf(".CODE %d\n.CODE %d", ins.Op, ins.Cond)
	}
	if prim, ok := set.PrimitiveName(ins.Op); ok {
		return prim
	}
	return fmt.Sprintf(".CODE %d", ins.Op)
}

// Instructions decodes code. The first structural problem is returned as a
// *VerifyError along with everything decoded.
func Instructions(code []int, set *opcode.Set) ([]Instruction, error) {
	var (
		out   []Instruction
		first *VerifyError
	)
	open := walk(code, set, func(ins Instruction) {
		out = append(out, ins)
		if ins.Err != "" && first == nil {
			first = &VerifyError{Offset: ins.Offset, Message: ins.Err}
		}
	})
	if first == nil && len(open) > 0 {
		last := open[len(open)-1]
		first = &VerifyError{Offset: last.offset, Message: "unterminated " + name(last.op)}
	}
	if first != nil {
		return out, first
	}
	return out, nil
}

// Disassemble writes code as a block-indented listing, one instruction per
// line. With offsets set every line is prefixed by its code offset, which
// Assemble accepts and checks. Malformed streams are still listed in full;
// the error reports the first problem.
func Disassemble(code []int, set *opcode.Set, offsets bool) (string, error) {
	if set == nil {
		set = opcode.Default()
	}
	instrs, err := Instructions(code, set)

	var sb strings.Builder
	for _, ins := range instrs {
		text := Mnemonic(ins, set)
		for i, part := range strings.Split(text, "\n") {
			if offsets {
				fmt.Fprintf(&sb, "%04d: ", ins.Offset+i)
			}
			sb.WriteString(strings.Repeat(indentUnit, ins.Depth))
			sb.WriteString(part)
			sb.WriteByte('\n')
		}
	}
	return sb.String(), err
}
