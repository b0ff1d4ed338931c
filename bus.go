// bus.go - Memory-mapped system bus: address segmentation and MMIO dispatch

package main

import "fmt"

// AccessSize identifies the width of a CPU memory operation, mirroring the
// MIPS load/store family (LB/LBU/SB, LH/LHU/SH, LW/SW).
type AccessSize int

const (
	AccessByte AccessSize = iota
	AccessHalfWord
	AccessWord
)

func (s AccessSize) bytes() uint32 {
	switch s {
	case AccessByte:
		return 1
	case AccessHalfWord:
		return 2
	default:
		return 4
	}
}

// ioDevice is implemented by every memory-mapped peripheral. offset is
// relative to the device's own base address; size lets devices enforce
// (or deliberately ignore) their hardware access-width restrictions the
// same way Dma.read/write does in the reference implementation.
type ioDevice struct {
	base  uint32
	size  uint32
	name  string
	read  func(offset uint32, size AccessSize) uint32
	write func(offset uint32, value uint32, size AccessSize)
}

// Bus owns every addressable device in the system and translates a CPU
// virtual address (KUSEG/KSEG0/KSEG1/KSEG2) down to a physical offset
// before dispatching to RAM, the BIOS ROM, the scratchpad or an MMIO
// region.
type Bus struct {
	ram        *RAM
	scratchpad *Scratchpad
	bios       *BIOS
	devices    []ioDevice

	cacheControl uint32 // KSEG2 0xFFFE0130, BIU cache-control register

	log *Logger
}

func NewBus(log *Logger) *Bus {
	return &Bus{
		ram:        NewRAM(),
		scratchpad: NewScratchpad(),
		bios:       NewBIOS(),
		log:        log,
	}
}

// RegisterDevice maps an ioDevice's read/write callbacks over [base, base+size).
func (b *Bus) RegisterDevice(name string, base, size uint32, read func(uint32, AccessSize) uint32, write func(uint32, uint32, AccessSize)) {
	b.devices = append(b.devices, ioDevice{base: base, size: size, name: name, read: read, write: write})
}

// translate converts a virtual address into a physical address per the
// classic MIPS segmentation scheme: KUSEG (0x00000000-0x7FFFFFFF), KSEG0
// (0x80000000-0x9FFFFFFF, cached) and KSEG1 (0xA0000000-0xBFFFFFFF,
// uncached) all alias the same 512MB of physical address space and can be
// folded together by masking off the top 3 bits. KSEG2
// (0xC0000000-0xFFFFFFFF) is special: on the PSX it contains no RAM/ROM at
// all, only the BIU cache-control register at 0xFFFE0130.
var segmentMask = [8]uint32{
	0x7FFF_FFFF, 0x7FFF_FFFF, 0x7FFF_FFFF, 0x7FFF_FFFF, // KUSEG
	0x7FFF_FFFF, // KSEG0
	0x1FFF_FFFF, // KSEG1
	0xFFFF_FFFF, // KSEG2
	0xFFFF_FFFF, // KSEG2
}

func (b *Bus) translate(vaddr uint32) uint32 {
	return vaddr & segmentMask[vaddr>>29]
}

const cacheControlAddr = 0xFFFE_0130

func (b *Bus) ReadByte(vaddr uint32) byte {
	v, _ := b.read(vaddr, AccessByte)
	return byte(v)
}
func (b *Bus) ReadHalf(vaddr uint32) uint16 {
	v, _ := b.read(vaddr, AccessHalfWord)
	return uint16(v)
}
func (b *Bus) ReadWord(vaddr uint32) uint32 {
	v, _ := b.read(vaddr, AccessWord)
	return v
}

// ReadByteChecked/ReadHalfChecked/ReadWordChecked report whether vaddr hit a
// real device, letting the CPU raise a bus-error exception instead of
// silently accepting the 0xFFFFFFFF sentinel.
func (b *Bus) ReadByteChecked(vaddr uint32) (byte, bool) {
	v, ok := b.read(vaddr, AccessByte)
	return byte(v), ok
}
func (b *Bus) ReadHalfChecked(vaddr uint32) (uint16, bool) {
	v, ok := b.read(vaddr, AccessHalfWord)
	return uint16(v), ok
}
func (b *Bus) ReadWordChecked(vaddr uint32) (uint32, bool) {
	return b.read(vaddr, AccessWord)
}

func (b *Bus) WriteByte(vaddr uint32, value byte)   { b.write(vaddr, uint32(value), AccessByte) }
func (b *Bus) WriteHalf(vaddr uint32, value uint16) { b.write(vaddr, uint32(value), AccessHalfWord) }
func (b *Bus) WriteWord(vaddr uint32, value uint32) { b.write(vaddr, value, AccessWord) }

// read is the single MMIO dispatch point; ok is false only when vaddr lands
// on no RAM/scratchpad/BIOS/device/cache-control range. Regular callers
// (ReadByte/ReadHalf/ReadWord) discard ok and return the sentinel value, the
// same behavior the bus has always had; CPU load paths that need to turn a
// missing device into a DataBusError/InstructionBusError exception go
// through ReadByteChecked/ReadHalfChecked/ReadWordChecked instead.
func (b *Bus) read(vaddr uint32, size AccessSize) (uint32, bool) {
	if vaddr == cacheControlAddr {
		return b.cacheControl, true
	}
	addr := b.translate(vaddr)

	switch {
	case addr < RAM_SIZE*4:
		off := addr & RAM_MASK
		return b.readSized(func(o uint32) byte { return b.ram.ReadByte(o) },
			func(o uint32) uint16 { return b.ram.ReadHalf(o) },
			func(o uint32) uint32 { return b.ram.ReadWord(o) }, off, size), true
	case addr >= SCRATCHPAD_BASE && addr < SCRATCHPAD_BASE+SCRATCHPAD_SIZE:
		off := addr - SCRATCHPAD_BASE
		return b.readSized(func(o uint32) byte { return b.scratchpad.ReadByte(o) },
			func(o uint32) uint16 { return b.scratchpad.ReadHalf(o) },
			func(o uint32) uint32 { return b.scratchpad.ReadWord(o) }, off, size), true
	case addr >= BIOS_BASE && addr < BIOS_BASE+BIOS_SIZE:
		off := addr - BIOS_BASE
		return b.readSized(func(o uint32) byte { return b.bios.ReadByte(o) },
			func(o uint32) uint16 { return b.bios.ReadHalf(o) },
			func(o uint32) uint32 { return b.bios.ReadWord(o) }, off, size), true
	}

	if dev := b.findDevice(addr); dev != nil {
		return dev.read(addr-dev.base, size), true
	}

	if b.log != nil {
		b.log.Warnf("unmapped read at vaddr=%#08x (phys=%#08x)", vaddr, addr)
	}
	return 0xFFFF_FFFF, false
}

func (b *Bus) write(vaddr uint32, value uint32, size AccessSize) {
	if vaddr == cacheControlAddr {
		b.cacheControl = value
		return
	}
	addr := b.translate(vaddr)

	switch {
	case addr < RAM_SIZE*4:
		off := addr & RAM_MASK
		b.writeSized(func(o uint32, v byte) { b.ram.WriteByte(o, v) },
			func(o uint32, v uint16) { b.ram.WriteHalf(o, v) },
			func(o uint32, v uint32) { b.ram.WriteWord(o, v) }, off, value, size)
		return
	case addr >= SCRATCHPAD_BASE && addr < SCRATCHPAD_BASE+SCRATCHPAD_SIZE:
		off := addr - SCRATCHPAD_BASE
		b.writeSized(func(o uint32, v byte) { b.scratchpad.WriteByte(o, v) },
			func(o uint32, v uint16) { b.scratchpad.WriteHalf(o, v) },
			func(o uint32, v uint32) { b.scratchpad.WriteWord(o, v) }, off, value, size)
		return
	case addr >= BIOS_BASE && addr < BIOS_BASE+BIOS_SIZE:
		return // BIOS is read-only silicon
	}

	if dev := b.findDevice(addr); dev != nil {
		dev.write(addr-dev.base, value, size)
		return
	}

	if b.log != nil {
		b.log.Warnf("unmapped write at vaddr=%#08x (phys=%#08x) value=%#08x", vaddr, addr, value)
	}
}

func (b *Bus) findDevice(addr uint32) *ioDevice {
	for i := range b.devices {
		d := &b.devices[i]
		if addr >= d.base && addr < d.base+d.size {
			return d
		}
	}
	return nil
}

func (b *Bus) readSized(rb func(uint32) byte, rh func(uint32) uint16, rw func(uint32) uint32, off uint32, size AccessSize) uint32 {
	switch size {
	case AccessByte:
		return uint32(rb(off))
	case AccessHalfWord:
		return uint32(rh(off))
	default:
		return rw(off)
	}
}

func (b *Bus) writeSized(wb func(uint32, byte), wh func(uint32, uint16), ww func(uint32, uint32), off uint32, value uint32, size AccessSize) {
	switch size {
	case AccessByte:
		wb(off, byte(value))
	case AccessHalfWord:
		wh(off, uint16(value))
	default:
		ww(off, value)
	}
}

// IsAligned reports whether vaddr satisfies the natural alignment for
// size; unaligned loads/stores raise AdEL/AdES on real hardware.
func IsAligned(vaddr uint32, size AccessSize) bool {
	return vaddr%size.bytes() == 0
}

func (b *Bus) String() string {
	return fmt.Sprintf("Bus{devices=%d}", len(b.devices))
}

func (b *Bus) Reset() {
	b.ram.Reset()
	b.scratchpad.Reset()
	b.cacheControl = 0
}
