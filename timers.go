// timers.go - The three programmable counter/timer units

package main

// Timer models one of the three 16-bit counter/timer blocks. Timer 0 is
// clocked by the system clock or the GPU pixel dotclock and can sync to
// hblank; timer 1 is clocked by the system clock or hblank itself and can
// sync to vblank; timer 2 is clocked by the system clock or 1/8th of it and
// has only a free-run/paused sync behavior.
type Timer struct {
	counter uint16
	target  uint16

	isSynchronized bool
	syncMode       uint8

	resetAtTarget bool
	irqAtTarget   bool
	irqAtOverflow bool
	irqRepeatMode bool
	irqPulseMode  bool
	clockSource   uint8

	irqNeg bool // true = no IRQ currently asserted (active-low latch)

	reachedTarget   bool
	reachedOverflow bool
}

func newTimer() Timer { return Timer{irqNeg: true} }

func (t *Timer) readControl() uint32 {
	v := uint32(0)
	if t.isSynchronized {
		v |= 1 << 0
	}
	v |= uint32(t.syncMode) << 1
	if t.resetAtTarget {
		v |= 1 << 3
	}
	if t.irqAtTarget {
		v |= 1 << 4
	}
	if t.irqAtOverflow {
		v |= 1 << 5
	}
	if t.irqRepeatMode {
		v |= 1 << 6
	}
	if t.irqPulseMode {
		v |= 1 << 7
	}
	v |= uint32(t.clockSource) << 8
	if t.irqNeg {
		v |= 1 << 10
	}
	if t.reachedTarget {
		v |= 1 << 11
	}
	if t.reachedOverflow {
		v |= 1 << 12
	}
	t.reachedTarget = false
	t.reachedOverflow = false
	return v
}

func (t *Timer) writeControl(value uint32) {
	t.irqNeg = true
	t.counter = 0

	t.isSynchronized = value&1 != 0
	t.syncMode = uint8((value >> 1) & 3)
	t.resetAtTarget = value&(1<<3) != 0
	t.irqAtTarget = value&(1<<4) != 0
	t.irqAtOverflow = value&(1<<5) != 0
	t.irqRepeatMode = value&(1<<6) != 0
	t.irqPulseMode = value&(1<<7) != 0
	t.clockSource = uint8((value >> 8) & 3)

	t.reachedTarget = false
	t.reachedOverflow = false
}

// addCounter advances the counter by steps ticks, reporting whether the
// target or the 0xFFFF overflow point was crossed.
func (t *Timer) addCounter(steps uint64) (overflow, target bool) {
	cap := uint32(0xFFFF)
	if t.resetAtTarget && t.target != 0 {
		cap = uint32(t.target)
	}
	if uint32(t.counter) > cap {
		// Counter already past its wrap point (e.g. target lowered
		// underneath it); let it run to the hardware 0xFFFF ceiling.
		cap = 0xFFFF
	}
	distance := uint64(cap) - uint64(t.counter)
	if steps > distance {
		t.counter = uint16(steps - distance - 1)
		if t.resetAtTarget && cap == uint32(t.target) {
			target = true
		} else {
			overflow = true
		}
		return
	}
	t.counter += uint16(steps)
	return
}

// Timers owns all three counters and the shared hblank/vblank/dotclock
// state needed to clock timers 0 and 1 correctly.
type Timers struct {
	timers [3]Timer

	lastCPUCycles uint64
	dotclockAccum float64
	t2CPUBuffer   uint32

	inHBlank bool
	inVBlank bool

	intc *InterruptController
}

func NewTimers(intc *InterruptController) *Timers {
	t := &Timers{intc: intc}
	t.Reset()
	return t
}

func (t *Timers) Reset() {
	for i := range t.timers {
		t.timers[i] = newTimer()
	}
	t.lastCPUCycles = 0
	t.dotclockAccum = 0
	t.t2CPUBuffer = 0
	t.inHBlank = false
	t.inVBlank = false
}

// Clock advances all three timers given the total CPU cycle count elapsed
// so far (not a per-call delta) and the GPU's current hblank/vblank/dotclock
// state.
func (t *Timers) Clock(cpuCycles uint64, hblank, vblank bool, dotclockHz float64) {
	startedHBlank := hblank && !t.inHBlank
	startedVBlank := vblank && !t.inVBlank
	t.inHBlank = hblank
	t.inVBlank = vblank

	diff := cpuCycles - t.lastCPUCycles
	t.lastCPUCycles = cpuCycles

	t.runT0(diff, hblank, startedHBlank, dotclockHz)
	t.runT1(diff, vblank, startedVBlank, startedHBlank)
	t.runT2(diff)
}

func (t *Timers) irqTimer(idx int) {
	tm := &t.timers[idx]
	if !tm.irqNeg {
		if !tm.irqRepeatMode {
			return
		}
	}
	tm.irqNeg = false
	t.intc.TriggerIRQ(IRQ_TIMER0 + idx)
	if tm.irqPulseMode {
		tm.irqNeg = true
	}
}

func (t *Timers) checkIRQ(idx int, overflow, target bool) {
	tm := &t.timers[idx]
	if target {
		tm.reachedTarget = true
	}
	if overflow {
		tm.reachedOverflow = true
	}
	if (target && tm.irqAtTarget) || (overflow && tm.irqAtOverflow) {
		t.irqTimer(idx)
	}
}

func (t *Timers) runT0(cpuCycles uint64, hblank, startedHBlank bool, dotclockHz float64) {
	tm := &t.timers[0]
	if tm.isSynchronized {
		switch tm.syncMode {
		case 0: // Pause during hblank.
			if hblank {
				return
			}
		case 1: // Reset counter at hblank start.
			if startedHBlank {
				tm.counter = 0
			}
		case 2: // Reset at hblank start, only run during hblank.
			if startedHBlank {
				tm.counter = 0
			}
			if !hblank {
				return
			}
		case 3: // Halt until next hblank, then free-run (sync disabled).
			if !hblank {
				return
			}
			tm.isSynchronized = false
		}
	}

	var steps uint64
	if tm.clockSource == 0 || tm.clockSource == 2 {
		steps = cpuCycles
	} else {
		// dots per CPU cycle = dotclockHz / the 33.8688MHz CPU clock
		t.dotclockAccum += float64(cpuCycles) * dotclockHz / 33_868_800.0
		steps = uint64(t.dotclockAccum)
		t.dotclockAccum -= float64(steps)
	}
	if steps == 0 {
		return
	}
	overflow, target := tm.addCounter(steps)
	t.checkIRQ(0, overflow, target)
}

func (t *Timers) runT1(cpuCycles uint64, vblank, startedVBlank, startedHBlank bool) {
	tm := &t.timers[1]
	if tm.isSynchronized {
		switch tm.syncMode {
		case 0:
			if vblank {
				return
			}
		case 1:
			if startedVBlank {
				tm.counter = 0
			}
		case 2:
			if startedVBlank {
				tm.counter = 0
			}
			if !vblank {
				return
			}
		case 3:
			if !vblank {
				return
			}
			tm.isSynchronized = false
		}
	}

	var steps uint64
	if tm.clockSource == 0 || tm.clockSource == 2 {
		steps = cpuCycles
	} else if startedHBlank {
		steps = 1
	}
	if steps == 0 {
		return
	}
	overflow, target := tm.addCounter(steps)
	t.checkIRQ(1, overflow, target)
}

func (t *Timers) runT2(cpuCycles uint64) {
	tm := &t.timers[2]
	if tm.isSynchronized && (tm.syncMode == 0 || tm.syncMode == 3) {
		return
	}

	var steps uint64
	if tm.clockSource == 0 || tm.clockSource == 1 {
		steps = cpuCycles
	} else {
		t.t2CPUBuffer += uint32(cpuCycles)
		steps = uint64(t.t2CPUBuffer / 8)
		t.t2CPUBuffer %= 8
	}
	if steps == 0 {
		return
	}
	overflow, target := tm.addCounter(steps)
	t.checkIRQ(2, overflow, target)
}

func (t *Timers) Read(offset uint32, _ AccessSize) uint32 {
	idx := offset >> 4
	if idx > 2 {
		return 0
	}
	tm := &t.timers[idx]
	switch offset & 0xF {
	case 0x0:
		return uint32(tm.counter)
	case 0x4:
		return tm.readControl()
	case 0x8:
		return uint32(tm.target)
	}
	return 0
}

func (t *Timers) Write(offset uint32, value uint32, _ AccessSize) {
	idx := offset >> 4
	if idx > 2 {
		return
	}
	tm := &t.timers[idx]
	switch offset & 0xF {
	case 0x0:
		tm.counter = uint16(value)
	case 0x4:
		tm.writeControl(value)
	case 0x8:
		tm.target = uint16(value & 0xFFFF)
	}
}
