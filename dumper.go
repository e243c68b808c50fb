package main

import (
	"fmt"
	"io"
)

// disassembleOne writes one instruction at addr to w and returns the
// address of the next instruction.
func disassembleOne(w io.Writer, code []int, addr int) int {
	op := Op(code[addr])
	if op.hasOperand() && addr+1 < len(code) {
		fmt.Fprintf(w, "%4d: %-5s %d\n", addr, op, code[addr+1])
		return addr + 2
	}
	fmt.Fprintf(w, "%4d: %-5s\n", addr, op)
	return addr + 1
}

// traceEmitted dumps every instruction emitted since from, under a header
// naming the line the lexer has reached once the declaration is parsed (the
// line of the token after it). Called once per top level declaration
// rather than per statement: coarser than the reference's line-by-line
// echo, but keeps the tracer out of the hot parsing path for function
// bodies with many statements on one source line.
func (c *Compiler) traceEmitted(from uint) {
	if c.traceSource == nil {
		return
	}
	end := int(c.code.Len())
	code := c.code.Slice()
	fmt.Fprintf(c.traceSource, "%d:\n", c.line)
	for addr := int(from); addr < end; {
		addr = disassembleOne(c.traceSource, code, addr)
	}
}

// traceStep writes the current instruction to vm.trace before it executes,
// in the same "addr: OP operand" shape disassembleOne uses for the source
// trace, so -s and -d output line up visually.
func (vm *VM) traceStep(op Op) {
	addr := vm.pc - 1
	if op.hasOperand() {
		fmt.Fprintf(vm.trace, "%4d: %-5s %d\n", addr, op, vm.code[vm.pc])
	} else {
		fmt.Fprintf(vm.trace, "%4d: %-5s\n", addr, op)
	}
}
