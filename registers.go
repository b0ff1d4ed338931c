// registers.go - Centralized I/O register address map for the PSX core

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

/*
registers.go - Master physical-address map

Addresses below are physical (post KUSEG/KSEG0/KSEG1 mask); see bus.go for
the segment-translation rules that turn a CPU virtual address into one of
these ranges.

Address Range       Size    Device
---------------------------------------------------------------------------
0x0000_0000         2MB     Main RAM (mirrored four times across 8MB)
0x1F00_0000         8MB     Expansion Region 1 (parallel port / cartridge)
0x1F80_0000         1KB     Scratchpad (data cache used as fast RAM)
0x1F80_1000         -       Memory/peripheral control registers
0x1F80_1040         32B     Joypad/Memory Card controller
0x1F80_1070         8B      Interrupt controller (I_STAT/I_MASK)
0x1F80_1080         128B    DMA (7 channels + DPCR/DICR)
0x1F80_1100         48B     Timers (3 counters)
0x1F80_1800         4B      CD-ROM controller
0x1F80_1810         8B      GPU (GP0/GP1, stub)
0x1F80_1820         8B      MDEC (stub)
0x1F80_1C00         640B    SPU (stub)
0x1FC0_0000         512KB   BIOS ROM
*/

package main

const (
	RAM_SIZE        = 2 * 1024 * 1024
	RAM_MASK        = RAM_SIZE - 1
	SCRATCHPAD_BASE = 0x1F80_0000
	SCRATCHPAD_SIZE = 1024

	BIOS_BASE = 0x1FC0_0000
	BIOS_SIZE = 512 * 1024

	MEMCTRL_BASE = 0x1F80_1000
	MEMCTRL_SIZE = 0x40

	JOYPAD_BASE = 0x1F80_1040
	JOYPAD_SIZE = 0x20

	SIO_BASE = 0x1F80_1050
	SIO_SIZE = 0x20

	MEMCTRL2_BASE = 0x1F80_1060
	MEMCTRL2_SIZE = 0x4

	INTC_BASE = 0x1F80_1070
	INTC_SIZE = 0x8

	DMA_BASE = 0x1F80_1080
	DMA_SIZE = 0x80

	TIMERS_BASE = 0x1F80_1100
	TIMERS_SIZE = 0x30

	CDROM_BASE = 0x1F80_1800
	CDROM_SIZE = 0x4

	GPU_BASE = 0x1F80_1810
	GPU_SIZE = 0x8

	MDEC_BASE = 0x1F80_1820
	MDEC_SIZE = 0x8

	SPU_BASE = 0x1F80_1C00
	SPU_SIZE = 0x280

	EXPANSION1_BASE = 0x1F00_0000
	EXPANSION1_SIZE = 8 * 1024 * 1024

	EXPANSION2_BASE = 0x1F80_2000
	EXPANSION2_SIZE = 0x2000
)
