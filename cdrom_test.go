// cdrom_test.go - command/drive dual state machine

package main

import "testing"

// ackInterrupt clears whatever INT cause is currently latched, mirroring
// the host driver's usual "read response, write 0x1F to bank1 offset 3"
// sequence.
func ackInterrupt(c *CdRom) {
	c.Write(0, 1, AccessByte) // select bank 1 (int_mask/int_status)
	c.Write(3, 0x1F, AccessByte)
	c.Write(0, 0, AccessByte) // back to bank 0 for the next command byte
}

// TestCdRomInitColdSpinUpTiming drives the spec's worked Init example: from
// a stopped drive, INT3 (first response) arrives after the 60-cycle command
// delay, and INT2 (second response) arrives only once spin-up has actually
// completed plus one further controller tick — not from a fixed 24-cycle
// command timer.
func TestCdRomInitColdSpinUpTiming(t *testing.T) {
	intc := NewInterruptController()
	c := NewCdRom(intc)

	if c.driveState != cdDriveStopped {
		t.Fatalf("drive should start Stopped, got %v", c.driveState)
	}

	c.Write(1, 0x0A, AccessByte) // command register, bank 0: Init

	var int3Tick, int2Tick int
	ackedInt3 := false
	for tick := 1; tick <= 22111; tick++ {
		c.Clock()
		switch c.intStatus & 0x7 {
		case cdIntFirstResponse:
			if int3Tick == 0 {
				int3Tick = tick
			}
			if !ackedInt3 {
				ackInterrupt(c)
				ackedInt3 = true
			}
		case cdIntSecondResponse:
			if int2Tick == 0 {
				int2Tick = tick
			}
		}
	}

	if int3Tick != 60 {
		t.Fatalf("INT3 arrived at tick %d, want 60", int3Tick)
	}
	if int2Tick != 22111 {
		t.Fatalf("INT2 arrived at tick %d, want 22111", int2Tick)
	}
}

// TestCdRomInitWhileAlreadyPausedUsesFixedDelay covers the other branch of
// Init: when the drive is already live (not Stopped/SpinningUp), the second
// response follows a short fixed 24-cycle delay rather than drive motion.
func TestCdRomInitWhileAlreadyPausedUsesFixedDelay(t *testing.T) {
	intc := NewInterruptController()
	c := NewCdRom(intc)
	c.driveState = cdDrivePaused

	c.Write(1, 0x0A, AccessByte)

	var int2Tick int
	ackedInt3 := false
	for tick := 1; tick <= 120; tick++ {
		c.Clock()
		switch c.intStatus & 0x7 {
		case cdIntFirstResponse:
			if !ackedInt3 {
				ackInterrupt(c)
				ackedInt3 = true
			}
		case cdIntSecondResponse:
			if int2Tick == 0 {
				int2Tick = tick
			}
		}
	}

	if int2Tick != 60+24 {
		t.Fatalf("INT2 arrived at tick %d, want %d", int2Tick, 60+24)
	}
}

// TestCdRomSeekLEmitsInt2AfterSeekCompletes exercises the seek-to-pause
// path: SeekL's INT3 is immediate, but INT2 only follows once the drive
// state machine's seek actually finishes and lands in Paused.
func TestCdRomSeekLEmitsInt2AfterSeekCompletes(t *testing.T) {
	intc := NewInterruptController()
	c := NewCdRom(intc)
	c.driveState = cdDrivePaused // motor already spun up

	c.Write(1, 0x02, AccessByte) // SetLoc
	c.Write(2, 0x01, AccessByte) // minutes (BCD)
	c.Write(2, 0x00, AccessByte) // seconds
	c.Write(2, 0x00, AccessByte) // frames
	for tick := 1; tick <= 60; tick++ {
		c.Clock()
	}
	ackInterrupt(c)

	c.Write(1, 0x15, AccessByte) // SeekL

	var int3Seen, int2Tick int
	ackedInt3 := false
	for tick := 1; tick <= 1000; tick++ {
		c.Clock()
		switch c.intStatus & 0x7 {
		case cdIntFirstResponse:
			if int3Seen == 0 {
				int3Seen = tick
			}
			if !ackedInt3 {
				ackInterrupt(c)
				ackedInt3 = true
			}
		case cdIntSecondResponse:
			if int2Tick == 0 {
				int2Tick = tick
			}
		}
	}

	if int3Seen != 60 {
		t.Fatalf("SeekL INT3 arrived at tick %d, want 60", int3Seen)
	}
	if int2Tick == 0 {
		t.Fatalf("SeekL never emitted INT2")
	}
	if c.driveState != cdDrivePaused {
		t.Fatalf("drive should have landed Paused after the seek, got %v", c.driveState)
	}
}
