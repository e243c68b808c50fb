// Package main implements a one-pass compiler and bytecode stack machine
// for a small, strict subset of C: no structs, no typedefs, no floating
// point, no preprocessor beyond discarding '#' lines, and a small built-in
// syscall surface (open/read/close/printf/malloc/free/memset/memcmp/exit)
// standing in for a libc. Source is parsed and emitted to bytecode in a
// single pass with no intermediate syntax tree, and the resulting program
// runs immediately on the VM -- there is no separate compile-then-link
// step, matching the reference this was built to replace the capabilities
// of.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/100061144/c4-analysis/internal/logio"
)

func main() {
	var (
		memLimit uint
		timeout  time.Duration
		srcTrace bool
		disasm   bool
	)
	flag.UintVar(&memLimit, "mem-limit", 0, "cap the code and data segment sizes (0 = unbounded)")
	flag.DurationVar(&timeout, "timeout", 0, "bound total VM execution time (0 = unbounded)")
	flag.BoolVar(&srcTrace, "s", false, "print the bytecode emitted for each top-level declaration while compiling, then exit without running")
	flag.BoolVar(&disasm, "d", false, "print each instruction as the VM executes it")
	flag.Parse()

	log := logio.Logger{}
	log.SetOutput(os.Stdout)
	defer func() {
		if log.ExitCode() != 0 {
			os.Exit(-1)
		}
	}()

	args := flag.Args()
	if len(args) < 1 {
		log.Errorf("usage: %s [flags] file.c [args...]", os.Args[0])
		return
	}
	name, progArgs := args[0], args[1:]

	src, err := loadSource(name, int64(memLimit))
	if err != nil {
		log.Errorf("%v", err)
		return
	}

	ctx := context.Background()

	var copts []CompilerOption
	if srcTrace {
		copts = append(copts, WithSourceTrace(os.Stdout))
	}
	if memLimit > 0 {
		copts = append(copts, WithMemLimit(memLimit, memLimit))
	}

	result, err := Compile(ctx, src, copts...)
	if err != nil {
		log.Errorf("%v", err)
		return
	}

	// -s is a trace-only mode: it prints the source/bytecode correlation
	// and exits without running the compiled program.
	if srcTrace {
		return
	}

	vopts := []VMOption{WithArgs(progArgs...)}
	if disasm {
		vopts = append(vopts, WithDisasmTrace(os.Stdout))
	}
	if memLimit > 0 {
		vopts = append(vopts, WithHeapLimit(memLimit))
	}
	if timeout != 0 {
		vopts = append(vopts, WithTimeout(timeout))
	}

	vm := NewVM(result, vopts...)
	status, err := vm.Run(ctx)
	if err != nil {
		log.Errorf("%v", err)
		return
	}
	if status != 0 {
		fmt.Fprintf(os.Stderr, "exit(%d)\n", status)
		os.Exit(status)
	}
}
