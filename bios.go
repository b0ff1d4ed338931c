// bios.go - BIOS ROM loading and read-only access

package main

import (
	"fmt"
	"os"
)

// BIOS models the 512KB boot ROM mapped at KSEG1+0x1FC00000 (and mirrored
// into KSEG0/KUSEG at the same offset). Writes are silently ignored, which
// matches real hardware: the ROM chip simply does not respond to them.
type BIOS struct {
	data [BIOS_SIZE]byte
}

func NewBIOS() *BIOS {
	return &BIOS{}
}

// LoadFile reads a BIOS image from disk. The PSX BIOS is exactly 512KB;
// anything else is rejected rather than silently truncated or zero-padded.
func (b *BIOS) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("bios: %w", err)
	}
	if len(raw) != BIOS_SIZE {
		return fmt.Errorf("bios: expected %d bytes, got %d", BIOS_SIZE, len(raw))
	}
	copy(b.data[:], raw)
	return nil
}

func (b *BIOS) ReadByte(offset uint32) byte {
	return b.data[offset%BIOS_SIZE]
}

func (b *BIOS) ReadHalf(offset uint32) uint16 {
	o := offset % BIOS_SIZE
	return uint16(b.data[o]) | uint16(b.data[o+1])<<8
}

func (b *BIOS) ReadWord(offset uint32) uint32 {
	o := offset % BIOS_SIZE
	return uint32(b.data[o]) | uint32(b.data[o+1])<<8 | uint32(b.data[o+2])<<16 | uint32(b.data[o+3])<<24
}
