// interrupts_test.go - I_STAT/I_MASK semantics

package main

import "testing"

func TestInterruptStatusIsAndClearedNotOverwritten(t *testing.T) {
	ic := NewInterruptController()

	ic.TriggerIRQ(IRQ_VBLANK)
	ic.TriggerIRQ(IRQ_CDROM)

	// Writing a 0 bit clears that source; a 1 bit leaves it untouched -
	// the inverse of a normal write-to-set register.
	ic.WriteStatus(^uint32(1 << uint(IRQ_VBLANK)))

	status := ic.ReadStatus()
	if status&(1<<uint(IRQ_VBLANK)) != 0 {
		t.Fatalf("I_STAT = %#x, want VBLANK cleared", status)
	}
	if status&(1<<uint(IRQ_CDROM)) == 0 {
		t.Fatalf("I_STAT = %#x, want CDROM to remain set", status)
	}
}

func TestInterruptPendingRespectsMask(t *testing.T) {
	ic := NewInterruptController()
	ic.TriggerIRQ(IRQ_TIMER0)

	if ic.Pending() {
		t.Fatal("an unmasked source must not report as pending")
	}

	ic.WriteMask(1 << uint(IRQ_TIMER0))
	if !ic.Pending() {
		t.Fatal("a masked-in source with its status bit set must report as pending")
	}
}

func TestInterruptTriggerIsLevelNotEdge(t *testing.T) {
	ic := NewInterruptController()
	ic.TriggerIRQ(IRQ_SPU)
	ic.TriggerIRQ(IRQ_SPU)

	if got := ic.ReadStatus(); got != 1<<uint(IRQ_SPU) {
		t.Fatalf("I_STAT = %#x, want only bit %d set", got, IRQ_SPU)
	}
}
