package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/100061144/c4-analysis/internal/runeio"
)

// peekArg reads the j-th (0-based, source order) argument of a nargs-ary
// call without adjusting sp: every host bridge reads its operands this way
// and leaves the trailing ADJ, already emitted by the call site, to perform
// the actual stack cleanup.
func (vm *VM) peekArg(nargs, j int) int {
	return vm.mem.readWord(vm.sp + (nargs-1-j)*WordSize)
}

func (vm *VM) readCString(addr int) string {
	var buf []byte
	for {
		b := vm.mem.readByte(addr)
		if b == 0 {
			break
		}
		buf = append(buf, b)
		addr++
	}
	return string(buf)
}

// syscall dispatches the fixed-arity host bridges. PRTF is handled
// separately by the exec loop since its arity is variable.
func (vm *VM) syscall(op Op) error {
	switch op {
	case OpOPEN:
		path := vm.readCString(vm.peekArg(2, 0))
		flags := vm.peekArg(2, 1)
		vm.a = vm.doOpen(path, flags)

	case OpREAD:
		fd := vm.peekArg(3, 0)
		bufAddr := vm.peekArg(3, 1)
		count := vm.peekArg(3, 2)
		n, err := vm.doRead(fd, bufAddr, count)
		if err != nil {
			return err
		}
		vm.a = n

	case OpCLOS:
		vm.a = vm.doClose(vm.peekArg(1, 0))

	case OpMALC:
		vm.a = vm.mem.malloc(vm.peekArg(1, 0))

	case OpFREE:
		vm.mem.freeBlock(vm.peekArg(1, 0))
		vm.a = 0

	case OpMSET:
		addr := vm.peekArg(3, 0)
		val := byte(vm.peekArg(3, 1))
		count := vm.peekArg(3, 2)
		for i := 0; i < count; i++ {
			vm.mem.writeByte(addr+i, val)
		}
		vm.a = addr

	case OpMCMP:
		addr1 := vm.peekArg(3, 0)
		addr2 := vm.peekArg(3, 1)
		count := vm.peekArg(3, 2)
		diff := 0
		for i := 0; i < count; i++ {
			b1 := vm.mem.readByte(addr1 + i)
			b2 := vm.mem.readByte(addr2 + i)
			if b1 != b2 {
				diff = int(b1) - int(b2)
				break
			}
		}
		vm.a = diff

	default:
		return UnknownOpcodeError{vm.pc, int(op)}
	}
	return nil
}

// doOpen bridges the compiled program's open() to a real host file. Only
// the read/write distinction in flags is honored: the reference's own
// use of open is limited to reading source and writing simple output.
func (vm *VM) doOpen(path string, flags int) int {
	var f *os.File
	var err error
	if flags == 0 {
		f, err = os.Open(path)
	} else {
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	}
	if err != nil {
		return -1
	}
	fd := vm.nextF
	vm.nextF++
	vm.files[fd] = f
	return fd
}

func (vm *VM) doRead(fd, bufAddr, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}
	var r io.Reader
	if f, ok := vm.files[fd]; ok {
		r = f
	} else if fd == 0 {
		r = vm.stdin
	} else {
		return -1, nil
	}
	buf := make([]byte, count)
	n, err := r.Read(buf)
	for i := 0; i < n; i++ {
		vm.mem.writeByte(bufAddr+i, buf[i])
	}
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (vm *VM) doClose(fd int) int {
	f, ok := vm.files[fd]
	if !ok {
		return -1
	}
	delete(vm.files, fd)
	if err := f.Close(); err != nil {
		return -1
	}
	return 0
}

// printf implements the PRTF host bridge: nargs stack words, the format
// string first (it is pushed first, so it is the deepest), are peeked (not
// popped) and rendered against a small C-format-string subset.
func (vm *VM) printf(w io.Writer, nargs int) error {
	if nargs < 1 {
		return RuntimeFault{vm.pc, "printf called with no format argument"}
	}
	vals := make([]int, nargs)
	for i := 0; i < nargs; i++ {
		vals[i] = vm.peekArg(nargs, i)
	}
	format := vm.readCString(vals[0])
	args := vals[1:]

	var buf bytes.Buffer
	ai := 0
	next := func() int {
		if ai < len(args) {
			v := args[ai]
			ai++
			return v
		}
		return 0
	}

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			buf.WriteByte(c)
			continue
		}
		i++
		for i < len(format) && format[i] == 'l' {
			i++
		}
		if i >= len(format) {
			break
		}
		switch format[i] {
		case 'd':
			fmt.Fprintf(&buf, "%d", next())
		case 'u':
			fmt.Fprintf(&buf, "%d", uint32(next()))
		case 'x':
			fmt.Fprintf(&buf, "%x", next())
		case 'c':
			buf.WriteByte(byte(next()))
		case 's':
			buf.WriteString(vm.readCString(next()))
		case '%':
			buf.WriteByte('%')
		default:
			buf.WriteByte('%')
			buf.WriteByte(format[i])
		}
	}

	// The format string and the %s/%c arguments both come from the
	// compiled program; route the rendered line through the ANSI rune
	// writer rather than a raw byte Write, so C1 control runes are written
	// in their 7-bit ESC form and bytes that are not valid UTF-8 become
	// U+FFFD. ASCII control bytes, ESC included, pass through unchanged.
	n, err := runeio.WriteANSIString(w, buf.String())
	vm.a = n
	return err
}
