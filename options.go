package main

import (
	"context"
	"io"
	"time"
)

// CompilerOption configures a Compiler constructed by Compile.
type CompilerOption interface {
	applyCompiler(c *Compiler)
}

// VMOption configures a VM constructed by NewVM.
type VMOption interface {
	applyVM(vm *VM)
}

type coption struct{ apply func(c *Compiler) }

func (o coption) applyCompiler(c *Compiler) { o.apply(c) }

type voption struct{ apply func(vm *VM) }

func (o voption) applyVM(vm *VM) { o.apply(vm) }

// CompilerOptions composes multiple CompilerOption values into one.
func CompilerOptions(opts ...CompilerOption) CompilerOption {
	return coption{func(c *Compiler) {
		for _, opt := range opts {
			opt.applyCompiler(c)
		}
	}}
}

// VMOptions composes multiple VMOption values into one.
func VMOptions(opts ...VMOption) VMOption {
	return voption{func(vm *VM) {
		for _, opt := range opts {
			opt.applyVM(vm)
		}
	}}
}

// WithSourceTrace enables the "-s" trace: after each top-level declaration,
// w receives the lexer's current line number followed by a disassembly of
// the bytecode emitted for that declaration. Source text is not echoed, and
// the output is per declaration, not per source line.
func WithSourceTrace(w io.Writer) CompilerOption {
	return coption{func(c *Compiler) { c.traceSource = w }}
}

// WithMemLimit caps the code and data segment sizes, in words and bytes
// respectively. A zero limit (the default) leaves the pools unbounded other
// than available memory.
func WithMemLimit(words, bytes uint) CompilerOption {
	return coption{func(c *Compiler) {
		c.code.Limit = words
		c.data.Limit = bytes
	}}
}

// WithDisasmTrace enables the "-d" per-instruction disassembly trace during
// VM execution.
func WithDisasmTrace(w io.Writer) VMOption {
	return voption{func(vm *VM) { vm.trace = w }}
}

// WithArgs sets argv beyond argv[0] (the compiled program's own name),
// forwarded to the compiled program's main(argc, argv) the way the
// reference forwards its own trailing command-line arguments.
func WithArgs(args ...string) VMOption {
	return voption{func(vm *VM) { vm.args = args }}
}

// WithStdin overrides the VM's stdin stream, which the READ host bridge
// reads for fd 0 while no file opened through OPEN holds fd 0 (in tests, it
// scripts a program's input deterministically). OPEN maps no path to it.
func WithStdin(r io.Reader) VMOption {
	return voption{func(vm *VM) { vm.stdin = r }}
}

// WithStdout overrides the VM's stdout stream, where PRTF output is
// written. The disassembly trace goes to the WithDisasmTrace writer.
func WithStdout(w io.Writer) VMOption {
	return voption{func(vm *VM) { vm.stdout = w }}
}

// WithHeapLimit caps total bytes obtainable through the MALC host bridge.
func WithHeapLimit(n uint) VMOption {
	return voption{func(vm *VM) { vm.heapLimit = n }}
}

// WithTimeout bounds total VM execution time; Run returns context.
// DeadlineExceeded once it elapses. A zero duration (the default) leaves
// execution unbounded other than the caller's own context.
func WithTimeout(d time.Duration) VMOption {
	return voption{func(vm *VM) { vm.timeout = d }}
}

func contextWithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
