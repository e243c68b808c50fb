package main

import "fmt"

// CompileError reports a single fatal diagnostic tied to a source line. The
// compiler halts on the first one raised: there is no error recovery or
// multi-error accumulation, matching the reference compiler's behavior.
type CompileError struct {
	Line int
	Msg  string
}

func (e CompileError) Error() string {
	return fmt.Sprintf("%d: %s", e.Line, e.Msg)
}

// fail raises a CompileError for the current line. Parser and emitter code
// call this instead of returning an error, and rely on the panic/recover
// boundary in Compile to turn it back into a normal error return.
func (c *Compiler) fail(format string, args ...interface{}) {
	panic(CompileError{Line: c.line, Msg: fmt.Sprintf(format, args...)})
}

// UnknownOpcodeError is raised by the VM when it fetches a code word outside
// the defined opcode range, which only happens if the code segment has been
// corrupted (or a bug in the emitter).
type UnknownOpcodeError struct {
	PC int
	Op int
}

func (e UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode %d at pc=%d", e.Op, e.PC)
}

// RuntimeFault reports a VM execution error that isn't a clean OpEXIT: pc
// leaving the code segment, division by zero, or printf called without a
// format argument. Memory accesses are not checked and do not produce one.
type RuntimeFault struct {
	PC  int
	Msg string
}

func (e RuntimeFault) Error() string {
	return fmt.Sprintf("pc=%d: %s", e.PC, e.Msg)
}
