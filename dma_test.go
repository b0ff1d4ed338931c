// dma_test.go - channel priority arbitration and ordering-table seeding

package main

import "testing"

func newTestDma() (*Dma, *Bus) {
	log := NewLogger("test", LogSilent)
	bus := NewBus(log)
	intc := NewInterruptController()
	return NewDma(bus, intc, log), bus
}

func TestDmaOtcClearSeedsBackwardLinkedList(t *testing.T) {
	d, bus := newTestDma()

	d.Write(0x70, 0x0F65_4321, AccessWord) // enable channel 6 (OTC)
	d.Write(0x60, 0x10, AccessWord)        // MADR: start address 0x10
	d.Write(0x64, 4<<16, AccessWord)       // BCR: 4 entries
	d.Write(0x68, 0x1100_0000, AccessWord) // CHCR: busy + trigger

	if !d.RunActiveChannel() {
		t.Fatal("expected the OTC channel to run")
	}

	want := []uint32{
		0x10: 0xC,
		0xC:  0x8,
		0x8:  0x4,
		0x4:  0xFF_FFFF,
	}
	for addr, v := range want {
		if got := bus.ram.ReadWord(addr); got != v {
			t.Fatalf("RAM[%#x] = %#x, want %#x", addr, got, v)
		}
	}
}

func TestDmaPriorityArbitrationPicksLowerScore(t *testing.T) {
	d, _ := newTestDma()

	// Channel 2 (GPU) gets priority score 1, channel 4 (SPU) gets score 2;
	// the lower score must win regardless of channel number.
	d.Write(0x70, 0x076A_4921, AccessWord)
	d.Write(0x28, 0x1100_0000, AccessWord) // channel 2 CHCR: busy + trigger
	d.Write(0x48, 0x1100_0000, AccessWord) // channel 4 CHCR: busy + trigger

	if got := d.activeChannel(); got != dmaGPU {
		t.Fatalf("activeChannel() = %d, want %d (GPU, the higher-priority channel)", got, dmaGPU)
	}
}
