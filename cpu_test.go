// cpu_test.go - CPU interpreter behavioral tests

package main

import "testing"

func newTestCPU() (*CPU, *Bus) {
	log := NewLogger("test", LogSilent)
	bus := NewBus(log)
	cop0 := NewCop0()
	gte := NewGte()
	intc := NewInterruptController()
	cpu := NewCPU(bus, cop0, gte, intc, log)
	cpu.SetPC(0)
	return cpu, bus
}

func encodeI(op, rs, rt, imm uint32) uint32 {
	return (op << 26) | (rs << 21) | (rt << 16) | (imm & 0xFFFF)
}

func TestAddiuOverflowFreeAndZeroRegister(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.SetReg(7, 1)

	bus.WriteWord(0, encodeI(opADDIU, 7, 8, 1234)) // ADDIU r8, r7, 1234
	cpu.Step()
	if got := cpu.GetReg(8); got != 1235 {
		t.Fatalf("ADDIU r8, r7, 1234: got %d, want 1235", got)
	}

	bus.WriteWord(4, encodeI(opADDIU, 7, 0, 15)) // ADDIU r0, r7, 15
	cpu.Step()
	if got := cpu.GetReg(0); got != 0 {
		t.Fatalf("register 0 must stay 0 after a write, got %d", got)
	}
}

func TestStoreLoadLittleEndian(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.SetReg(7, 0x1000)
	cpu.SetReg(8, 0x12345678)

	bus.WriteWord(0, encodeI(opSW, 7, 8, 0)) // SW r8, 0(r7)
	cpu.Step()

	want := [4]byte{0x78, 0x56, 0x34, 0x12}
	for i, w := range want {
		if got := bus.ReadByte(0x1000 + uint32(i)); got != w {
			t.Fatalf("RAM[0x1000+%d] = %#02x, want %#02x", i, got, w)
		}
	}

	bus.WriteWord(4, encodeI(opLH, 7, 9, 0)) // LH r9, 0(r7)
	cpu.Step()
	if got := cpu.GetReg(9); got != 0x5678 {
		t.Fatalf("LH r9, 0(r7) = %#04x, want 0x5678", got)
	}
}

func TestLoadDelaySlotCommitTiming(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.SetReg(7, 0x2000)
	cpu.SetReg(8, 0x1111_1111)
	bus.WriteWord(0x2000, 0xCAFE_BABE)

	bus.WriteWord(0, encodeI(opLW, 7, 8, 0))   // LW r8, 0(r7)
	bus.WriteWord(4, encodeI(opORI, 8, 9, 0))  // ORI r9, r8, 0 (delay slot)
	bus.WriteWord(8, encodeI(opORI, 8, 10, 0)) // ORI r10, r8, 0

	cpu.Step() // LW: r8 not yet updated
	if got := cpu.GetReg(8); got != 0x1111_1111 {
		t.Fatalf("r8 updated before its load delay elapsed: got %#08x", got)
	}

	cpu.Step() // delay slot ORI r9
	if got := cpu.GetReg(9); got != 0x1111_1111 {
		t.Fatalf("r9 should see r8's pre-load value, got %#08x", got)
	}

	cpu.Step() // ORI r10
	if got := cpu.GetReg(10); got != 0xCAFE_BABE {
		t.Fatalf("r10 should see the loaded word, got %#08x", got)
	}
}
