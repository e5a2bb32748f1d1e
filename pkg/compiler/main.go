// Package compiler provides the BL lexer, parser, call-graph validator and
// code generator that lower a BL program into a flat opcode sequence for the
// BL virtual machine.
//
// Pipeline: BL source → Lex → Parse → Validate → Generate → []int opcodes
package compiler
