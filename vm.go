package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/100061144/c4-analysis/internal/flushio"
)

const (
	// stackBase and heapBase partition the VM's int-addressed memory into
	// three zones: the compiled data segment (and argv block) starting at
	// 0, a fixed-size stack zone, and a bump-allocated heap zone. The code
	// segment is kept out of this address space entirely -- pc indexes
	// directly into a separate []int, not into these bytes -- since
	// nothing in the language can take a function's address and no
	// instruction ever loads through pc, only through LEA/IMM-derived
	// addresses into data, stack, or heap.
	stackBase = 1 << 30
	heapBase  = 1 << 31

	defaultStackSize = 1 << 20
	defaultHeapSize  = 1 << 24
)

// memBlock records a live or freed heap allocation for the bump-allocator
// FREE/MALC bridge: first-fit reuse of freed blocks, no coalescing.
type memBlock struct {
	addr int
	size int
}

// memory is the VM's zoned, byte-addressed data space.
type memory struct {
	low   []byte // data segment + argv block, address 0..
	stack []byte // stackBase..stackBase+len(stack)
	heap  []byte // heapBase..heapBase+len(heap)

	heapTop int
	free    []memBlock
	sizes   map[int]int
}

func (m *memory) zone(addr int) (buf []byte, off int) {
	switch {
	case addr >= heapBase:
		return m.heap, addr - heapBase
	case addr >= stackBase:
		return m.stack, addr - stackBase
	default:
		return m.low, addr
	}
}

func (m *memory) readByte(addr int) byte {
	buf, off := m.zone(addr)
	return buf[off]
}

func (m *memory) writeByte(addr int, v byte) {
	buf, off := m.zone(addr)
	buf[off] = v
}

func (m *memory) readWord(addr int) int {
	buf, off := m.zone(addr)
	v := 0
	for i := WordSize - 1; i >= 0; i-- {
		v = v<<8 | int(buf[off+i])
	}
	return v
}

func (m *memory) writeWord(addr int, v int) {
	buf, off := m.zone(addr)
	for i := 0; i < WordSize; i++ {
		buf[off+i] = byte(v)
		v >>= 8
	}
}

func (m *memory) malloc(n int) int {
	if n <= 0 {
		return 0
	}
	for i, blk := range m.free {
		if blk.size >= n {
			m.free = append(m.free[:i], m.free[i+1:]...)
			return blk.addr
		}
	}
	if m.heapTop+n > len(m.heap) {
		return 0
	}
	addr := heapBase + m.heapTop
	m.heapTop += n
	if m.sizes == nil {
		m.sizes = make(map[int]int)
	}
	m.sizes[addr] = n
	return addr
}

// freeBlock returns addr's block to the free list for reuse by a later
// malloc of equal or smaller size. addr's original size is recovered from
// the sizes map recorded at allocation time, since C's free takes no size
// argument. An unknown or non-heap address is silently ignored, matching
// free(NULL) being a no-op.
func (m *memory) freeBlock(addr int) {
	if addr < heapBase {
		return
	}
	if n, ok := m.sizes[addr]; ok {
		m.free = append(m.free, memBlock{addr, n})
	}
}

// VM executes a compiled program's code segment against a zoned memory
// image, bridging a fixed set of host syscalls (OPEN/READ/CLOS/PRTF/MALC/
// FREE/MSET/MCMP/EXIT) the compiled program cannot otherwise reach.
type VM struct {
	code []int
	mem  memory

	pc, sp, bp, a int

	files map[int]*os.File
	nextF int

	trace     io.Writer
	stdin     io.Reader
	stdout    io.Writer
	args      []string
	heapLimit uint
	timeout   time.Duration
}

// NewVM assembles a VM ready to run result's code and data segments.
// Arguments set with WithArgs are forwarded as argv[1:] to the compiled program's own main,
// mirroring the reference compiler's own argv forwarding to the program it
// compiles and runs.
func NewVM(result CompileResult, opts ...VMOption) *VM {
	vm := &VM{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		files:  make(map[int]*os.File),
	}
	for _, opt := range opts {
		opt.applyVM(vm)
	}

	heapSize := defaultHeapSize
	if vm.heapLimit > 0 {
		heapSize = int(vm.heapLimit)
	}

	vm.mem.low = append([]byte(nil), result.Data...)
	vm.mem.stack = make([]byte, defaultStackSize)
	vm.mem.heap = make([]byte, heapSize)

	code := append([]int(nil), result.Code...)
	tailAddr := len(code)
	code = append(code, int(OpPSH), int(OpEXIT))
	vm.code = code

	argv := append([]string{"a.out"}, vm.args...)
	argvPtr := vm.writeArgv(argv)

	// Mirror a normal call: arguments pushed left to right (argc, then
	// argv) followed by the return address, so main's own ENT sees
	// exactly the frame layout a JSR-based call would have produced.
	vm.sp = stackBase + len(vm.mem.stack)
	vm.bp = vm.sp
	vm.push(len(argv))
	vm.push(argvPtr)
	vm.push(tailAddr)
	vm.pc = result.Entry

	return vm
}

// writeArgv appends argv's strings and a NUL-terminated-pointer array onto
// the end of the data segment, returning the address of the pointer array.
func (vm *VM) writeArgv(argv []string) int {
	ptrs := make([]int, len(argv))
	for i, s := range argv {
		buf := append([]byte(s), 0)
		addr := len(vm.mem.low)
		vm.mem.low = append(vm.mem.low, buf...)
		for len(vm.mem.low)%WordSize != 0 {
			vm.mem.low = append(vm.mem.low, 0)
		}
		ptrs[i] = addr
	}
	arrAddr := len(vm.mem.low)
	for _, p := range ptrs {
		b := make([]byte, WordSize)
		v := p
		for i := 0; i < WordSize; i++ {
			b[i] = byte(v)
			v >>= 8
		}
		vm.mem.low = append(vm.mem.low, b...)
	}
	return arrAddr
}

func (vm *VM) push(v int) {
	vm.sp -= WordSize
	vm.mem.writeWord(vm.sp, v)
}

func (vm *VM) pop() int {
	v := vm.mem.readWord(vm.sp)
	vm.sp += WordSize
	return v
}

func (vm *VM) fetch() int {
	v := vm.code[vm.pc]
	vm.pc++
	return v
}

// Run executes the VM's program to completion, returning its exit status
// (from either EXIT or falling through main's LEV) and any runtime error.
func (vm *VM) Run(ctx context.Context) (status int, err error) {
	ctx, cancel := contextWithTimeout(ctx, vm.timeout)
	defer cancel()

	out := flushio.NewWriteFlusher(vm.stdout)
	defer out.Flush()
	defer func() {
		for fd, f := range vm.files {
			f.Close()
			delete(vm.files, fd)
		}
	}()

	steps := 0
	for {
		steps++
		if steps%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		if vm.pc < 0 || vm.pc >= len(vm.code) {
			return 0, RuntimeFault{vm.pc, "pc out of range"}
		}
		op := Op(vm.fetch())

		if vm.trace != nil {
			vm.traceStep(op)
		}

		switch op {
		case OpLEA:
			off := vm.fetch()
			vm.a = vm.bp + off*WordSize
		case OpIMM:
			vm.a = vm.fetch()
		case OpJMP:
			vm.pc = vm.fetch()
		case OpJSR:
			target := vm.fetch()
			vm.push(vm.pc)
			vm.pc = target
		case OpBZ:
			target := vm.fetch()
			if vm.a == 0 {
				vm.pc = target
			}
		case OpBNZ:
			target := vm.fetch()
			if vm.a != 0 {
				vm.pc = target
			}
		case OpENT:
			n := vm.fetch()
			vm.push(vm.bp)
			vm.bp = vm.sp
			vm.sp -= n * WordSize
		case OpADJ:
			n := vm.fetch()
			vm.sp += n * WordSize
		case OpLEV:
			vm.sp = vm.bp
			vm.bp = vm.pop()
			vm.pc = vm.pop()
		case OpLI:
			vm.a = vm.mem.readWord(vm.a)
		case OpLC:
			vm.a = int(vm.mem.readByte(vm.a))
		case OpSI:
			addr := vm.pop()
			vm.mem.writeWord(addr, vm.a)
		case OpSC:
			addr := vm.pop()
			vm.mem.writeByte(addr, byte(vm.a))
			vm.a = int(byte(vm.a))
		case OpPSH:
			vm.push(vm.a)

		case OpOR:
			vm.a = vm.pop() | vm.a
		case OpXOR:
			vm.a = vm.pop() ^ vm.a
		case OpAND:
			vm.a = vm.pop() & vm.a
		case OpEQ:
			vm.a = boolInt(vm.pop() == vm.a)
		case OpNE:
			vm.a = boolInt(vm.pop() != vm.a)
		case OpLT:
			vm.a = boolInt(vm.pop() < vm.a)
		case OpGT:
			vm.a = boolInt(vm.pop() > vm.a)
		case OpLE:
			vm.a = boolInt(vm.pop() <= vm.a)
		case OpGE:
			vm.a = boolInt(vm.pop() >= vm.a)
		case OpSHL:
			vm.a = vm.pop() << uint(vm.a)
		case OpSHR:
			vm.a = vm.pop() >> uint(vm.a)
		case OpADD:
			vm.a = vm.pop() + vm.a
		case OpSUB:
			vm.a = vm.pop() - vm.a
		case OpMUL:
			vm.a = vm.pop() * vm.a
		case OpDIV:
			divisor := vm.a
			if divisor == 0 {
				return 0, RuntimeFault{vm.pc, "division by zero"}
			}
			vm.a = vm.pop() / divisor
		case OpMOD:
			divisor := vm.a
			if divisor == 0 {
				return 0, RuntimeFault{vm.pc, "division by zero"}
			}
			vm.a = vm.pop() % divisor

		case OpEXIT:
			return vm.pop(), nil

		case OpPRTF:
			nargs := vm.fetch()
			if err := vm.printf(out, nargs); err != nil {
				return 0, err
			}

		default:
			if op.isSystemCall() {
				if err := vm.syscall(op); err != nil {
					return 0, err
				}
				continue
			}
			return 0, UnknownOpcodeError{vm.pc - 1, int(op)}
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
