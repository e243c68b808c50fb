package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// asmProgram builds a CompileResult straight from an opcode stream, for
// tests that want to drive the VM below the level of the compiler.
func asmProgram(code []int, data []byte, entry int) CompileResult {
	return CompileResult{Code: code, Data: data, Entry: entry}
}

func TestVMArithmetic(t *testing.T) {
	// main: ENT 0; IMM 3; PSH; IMM 4; ADD; LEV
	code := []int{
		int(OpENT), 0,
		int(OpIMM), 3,
		int(OpPSH),
		int(OpIMM), 4,
		int(OpADD),
		int(OpLEV),
	}
	vm := NewVM(asmProgram(code, nil, 0))
	status, err := vm.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, status)
}

func TestVMDivisionByZeroFaults(t *testing.T) {
	code := []int{
		int(OpENT), 0,
		int(OpIMM), 1,
		int(OpPSH),
		int(OpIMM), 0,
		int(OpDIV),
		int(OpLEV),
	}
	vm := NewVM(asmProgram(code, nil, 0))
	_, err := vm.Run(context.Background())
	require.Error(t, err)
	require.IsType(t, RuntimeFault{}, err)
}

func TestVMComparisonOps(t *testing.T) {
	code := []int{
		int(OpENT), 0,
		int(OpIMM), 5,
		int(OpPSH),
		int(OpIMM), 3,
		int(OpGT), // 5 > 3 == 1
		int(OpLEV),
	}
	vm := NewVM(asmProgram(code, nil, 0))
	status, err := vm.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, status)
}

func TestVMGlobalLoadStore(t *testing.T) {
	data := make([]byte, 8)
	code := []int{
		int(OpENT), 0,
		int(OpIMM), 0, // address of global
		int(OpPSH),
		int(OpIMM), 99,
		int(OpSI), // mem[0] = 99
		int(OpIMM), 0,
		int(OpLI), // a = mem[0]
		int(OpLEV),
	}
	vm := NewVM(asmProgram(code, data, 0))
	status, err := vm.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 99, status)
}

func TestVMMallocReturnsHeapAddress(t *testing.T) {
	// main(): return malloc(4);
	code := []int{
		int(OpENT), 0,
		int(OpIMM), 4,
		int(OpPSH),
		int(OpMALC),
		int(OpADJ), 1,
		int(OpLEV),
	}
	vm := NewVM(asmProgram(code, nil, 0))
	status, err := vm.Run(context.Background())
	require.NoError(t, err)
	require.True(t, status >= heapBase)
}

func TestVMMallocFreeReuse(t *testing.T) {
	m := &memory{heap: make([]byte, 256)}
	a := m.malloc(16)
	require.Equal(t, heapBase, a)
	m.freeBlock(a)
	b := m.malloc(16)
	require.Equal(t, a, b, "freed block should be reused by a same-size malloc")
}

func TestVMMemsetAndMemcmp(t *testing.T) {
	// main(): p = malloc(4); memset(p, 'x', 4); return memcmp(p, p, 4);
	code := []int{
		int(OpENT), 1, // one local slot to hold p
		int(OpIMM), 4,
		int(OpPSH),
		int(OpMALC),
		int(OpADJ), 1,
		int(OpLEA), -1,
		int(OpPSH),
		int(OpLI),
		int(OpSI), // p = malloc(4); note: LEA -1 then loaded/stored below instead
	}
	_ = code

	// Hand-assembling the local store above is fiddly; drive memset/memcmp
	// directly against a fixed data-segment address instead.
	prog := []int{
		int(OpENT), 0,
		// memset(0, 'x', 4)
		int(OpIMM), 0,
		int(OpPSH),
		int(OpIMM), int('x'),
		int(OpPSH),
		int(OpIMM), 4,
		int(OpPSH),
		int(OpMSET),
		int(OpADJ), 3,
		// memcmp(0, 0, 4)
		int(OpIMM), 0,
		int(OpPSH),
		int(OpIMM), 0,
		int(OpPSH),
		int(OpIMM), 4,
		int(OpPSH),
		int(OpMCMP),
		int(OpADJ), 3,
		int(OpLEV),
	}
	data := make([]byte, 8)
	vm := NewVM(asmProgram(prog, data, 0))
	status, err := vm.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, status)
}

func TestVMPrintfHostBridge(t *testing.T) {
	data := []byte("hi\n\x00")
	for len(data)%WordSize != 0 {
		data = append(data, 0)
	}
	code := []int{
		int(OpENT), 0,
		int(OpIMM), 0, // address of "hi\n"
		int(OpPSH),
		int(OpPRTF), 1,
		int(OpADJ), 1,
		int(OpLEV),
	}
	var out bytes.Buffer
	vm := NewVM(asmProgram(code, data, 0), WithStdout(&out))
	_, err := vm.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hi\n", out.String())
}

func TestVMArgsForwarded(t *testing.T) {
	// main(argc, argv) { return argc; }
	code := []int{
		int(OpENT), 0,
		int(OpLEA), 3, // argc is the first declared param
		int(OpLI),
		int(OpLEV),
	}
	vm := NewVM(asmProgram(code, nil, 0), WithArgs("one", "two"))
	status, err := vm.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, status) // argv[0] + two forwarded args
}

func TestVMTimeout(t *testing.T) {
	// An infinite loop: JMP back to self.
	code := []int{
		int(OpENT), 0,
		int(OpJMP), 2,
	}
	vm := NewVM(asmProgram(code, nil, 0), WithTimeout(1))
	_, err := vm.Run(context.Background())
	require.Error(t, err)
}
