// timers_test.go - programmable counter/timer behavior

package main

import "testing"

func TestTimerReachesTargetAndRaisesIRQ(t *testing.T) {
	intc := NewInterruptController()
	tmr := NewTimers(intc)

	tmr.Write(0x28, 10, AccessWord)                // timer 2 target = 10
	tmr.Write(0x24, (1<<3)|(1<<4), AccessWord)     // reset-at-target + IRQ-at-target, clock source 0

	tmr.Clock(11, false, false, 0) // 11 system-clock ticks crosses the target of 10

	if got := tmr.Read(0x20, AccessWord); got != 0 {
		t.Fatalf("timer 2 counter after wrap = %d, want 0", got)
	}

	status := tmr.Read(0x24, AccessWord)
	if status&(1<<11) == 0 {
		t.Fatalf("mode = %#x, want the reached-target bit (11) set", status)
	}
	if again := tmr.Read(0x24, AccessWord); again&(1<<11) != 0 {
		t.Fatalf("reached-target bit should clear itself on read, got %#x", again)
	}

	if intc.ReadStatus()&(1<<uint(IRQ_TIMER2)) == 0 {
		t.Fatalf("expected IRQ_TIMER2 to be latched in I_STAT, got %#x", intc.ReadStatus())
	}
}

func TestTimerPausesDuringHblankSync(t *testing.T) {
	intc := NewInterruptController()
	tmr := NewTimers(intc)

	// sync enabled, mode 0: pause while hblank is active.
	tmr.Write(0x04, 1, AccessWord) // timer 0, isSynchronized=true, syncMode=0

	tmr.Clock(5, true, false, 0) // hblank held throughout
	if got := tmr.Read(0x00, AccessWord); got != 0 {
		t.Fatalf("timer 0 advanced during hblank pause: counter = %d", got)
	}

	tmr.Clock(10, false, false, 0) // hblank released, 5 more cycles elapse
	if got := tmr.Read(0x00, AccessWord); got != 5 {
		t.Fatalf("timer 0 counter after hblank ends = %d, want 5", got)
	}
}
