// exe_loader.go - PS-X EXE executable loader

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const exeSignature = "PS-X EXE"

// ExeHeader mirrors the 2KB PS-X EXE header: an 8-byte signature, a region
// marker (unused by this loader), the entry point/GP/load address/size,
// and the uninitialized-data (bss) range to zero before execution starts.
type ExeHeader struct {
	PC          uint32
	GP          uint32
	LoadAddress uint32
	FileSize    uint32
	BssStart    uint32
	BssSize     uint32
	StackFP     uint32
}

// Executable is a loaded PS-X EXE: its parsed header plus the raw code
// image read from offset 0x800.
type Executable struct {
	Header ExeHeader
	Code   []byte
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// LoadExecutable reads a PS-X EXE from path, preferring a memory-mapped
// read (cheap for the occasional multi-hundred-KB homebrew binary) and
// falling back to a plain read for filesystems where mmap isn't available.
func LoadExecutable(path string) (*Executable, error) {
	data, err := readExeFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 0x800 {
		return nil, fmt.Errorf("exe_loader: %s is too small to contain a PS-X EXE header", path)
	}

	if string(data[0:8]) != exeSignature {
		return nil, fmt.Errorf("exe_loader: %s has no PS-X EXE signature", path)
	}

	h := ExeHeader{
		PC:          le32(data[0x10:]),
		GP:          le32(data[0x14:]),
		LoadAddress: le32(data[0x18:]),
		FileSize:    le32(data[0x1C:]),
		BssStart:    le32(data[0x28:]),
		BssSize:     le32(data[0x2C:]),
	}
	spBase := le32(data[0x30:])
	spOffset := le32(data[0x34:])
	h.StackFP = spBase + spOffset

	if uint32(len(data)) < 0x800+h.FileSize {
		return nil, fmt.Errorf("exe_loader: %s is truncated: expected %d bytes of code, file has %d", path, h.FileSize, len(data)-0x800)
	}

	code := make([]byte, h.FileSize)
	copy(code, data[0x800:0x800+h.FileSize])

	return &Executable{Header: h, Code: code}, nil
}

// readExeFile tries an mmap'd read first, falling back to os.ReadFile if
// mmap fails (e.g. the path is on a filesystem or platform that doesn't
// support it).
func readExeFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return os.ReadFile(path)
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return os.ReadFile(path)
	}
	defer unix.Munmap(mapped)

	out := make([]byte, len(mapped))
	copy(out, mapped)
	return out, nil
}

// LoadInto installs the executable into cpu/bus state the way the BIOS's
// own EXE-side-loading shell command does: set PC/GP/SP/FP, copy the code
// image to its load address, and zero the bss range.
func (e *Executable) LoadInto(cpu *CPU, bus *Bus) {
	cpu.SetPC(e.Header.PC)
	cpu.SetReg(28, e.Header.GP)
	cpu.SetReg(29, e.Header.StackFP)
	cpu.SetReg(30, e.Header.StackFP)

	addr := e.Header.LoadAddress
	for i, b := range e.Code {
		bus.WriteByte(addr+uint32(i), b)
	}
	for i := uint32(0); i < e.Header.BssSize; i++ {
		bus.WriteByte(e.Header.BssStart+i, 0)
	}
}
