// joypad_test.go - SIO0 digital-pad handshake

package main

import "testing"

// exchange writes one byte to the data register, runs the transfer and
// (if the device acknowledged) its ack delay, and returns the byte the
// controller shifted back.
func exchange(j *Joy, out byte) byte {
	j.Write(0x00, uint32(out), AccessByte)
	j.Cycle(1)
	resp := byte(j.Read(0x00, AccessByte))
	if j.state == joyPendingAck {
		j.Cycle(450)
	}
	return resp
}

func TestJoypadDigitalPadHandshake(t *testing.T) {
	intc := NewInterruptController()
	j := NewJoy(intc)
	j.Write(0x0A, 3, AccessHalfWord) // TXEN + JOYn select

	j.ReleaseButton(ButtonCross) // default state: nothing held

	want := []byte{0xFF, 0x41, 0x5A, 0xFF, 0xFF}
	send := []byte{0x01, 0x42, 0x00, 0x00, 0x00}
	for i, b := range send {
		if got := exchange(j, b); got != want[i] {
			t.Fatalf("byte %d: got %#02x, want %#02x", i, got, want[i])
		}
	}
}

func TestJoypadWrongCommandCodeAborts(t *testing.T) {
	intc := NewInterruptController()
	j := NewJoy(intc)
	j.Write(0x0A, 3, AccessHalfWord)

	if got := exchange(j, 0x01); got != 0xFF {
		t.Fatalf("access byte response = %#02x, want 0xFF", got)
	}
	if got := exchange(j, 0x99); got != 0xFF {
		t.Fatalf("wrong command byte response = %#02x, want 0xFF", got)
	}
	if j.controllerStage != ctrlIdle {
		t.Fatalf("controller stage should reset to idle after a rejected command, got %v", j.controllerStage)
	}
}
