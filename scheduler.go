// scheduler.go - top-level cycle-budget driver loop

package main

// cdromTickCycles is the CPU-cycle period between CD-ROM controller ticks:
// the CPU runs at ~33.8688MHz, the CD-ROM's internal state machine clock
// at ~44.1kHz's sector-period granularity is driven once per 768 CPU
// cycles, matching the ratio used throughout the controller's own cycle
// constants (cdSectorCycles1x etc., which are expressed in CD-ROM ticks).
const cdromTickCycles = 768

// timerDotclockHz is the GPU dot clock timers' TIMER0 can be gated to when
// configured for that clock source; it is left fixed rather than derived
// from the (unimplemented) video mode GPUSTAT bits select.
const timerDotclockHz = 53_222_400.0 / 5

// System wires every emulated component onto a single shared Bus and owns
// the driver loop that advances them all in lockstep. There are no
// goroutines here beyond the CD-ROM's own background sector prefetch: bus,
// devices, CPU registers and RAM are all owned by this one value and
// mutated strictly in sequence, per-instruction.
type System struct {
	Bus  *Bus
	CPU  *CPU
	Cop0 *Cop0
	Gte  *Gte
	Intc *InterruptController
	Dma  *Dma
	Tmr  *Timers
	Joy  *Joy
	Cd   *CdRom
	Gpu  *Gpu
	Spu  *Spu
	Mdec *Mdec
	Log  *Logger

	aborted bool
	cycles  uint64
}

// NewSystem constructs every peripheral, wires them onto the bus at their
// fixed hardware addresses, and attaches the DMA ports that move words
// between RAM and the devices that sit behind each of the 7 channels.
func NewSystem(log *Logger) *System {
	bus := NewBus(log)
	intc := NewInterruptController()
	cop0 := NewCop0()
	gte := NewGte()
	cpu := NewCPU(bus, cop0, gte, intc, log)
	dma := NewDma(bus, intc, log)
	tmr := NewTimers(intc)
	joy := NewJoy(intc)
	cd := NewCdRom(intc)
	gpu := NewGpu(intc)
	spu := NewSpu()
	mdec := NewMdec()

	s := &System{
		Bus: bus, CPU: cpu, Cop0: cop0, Gte: gte, Intc: intc,
		Dma: dma, Tmr: tmr, Joy: joy, Cd: cd, Gpu: gpu, Spu: spu, Mdec: mdec,
		Log: log,
	}

	bus.RegisterDevice("joypad", JOYPAD_BASE, JOYPAD_SIZE, joy.Read, joy.Write)
	bus.RegisterDevice("intc", INTC_BASE, INTC_SIZE, s.readIntc, s.writeIntc)
	bus.RegisterDevice("dma", DMA_BASE, DMA_SIZE, dma.Read, dma.Write)
	bus.RegisterDevice("timers", TIMERS_BASE, TIMERS_SIZE, tmr.Read, tmr.Write)
	bus.RegisterDevice("cdrom", CDROM_BASE, CDROM_SIZE, cd.Read, cd.Write)
	bus.RegisterDevice("gpu", GPU_BASE, GPU_SIZE, gpu.Read, gpu.Write)
	bus.RegisterDevice("mdec", MDEC_BASE, MDEC_SIZE, mdec.Read, mdec.Write)
	bus.RegisterDevice("spu", SPU_BASE, SPU_SIZE, spu.Read, spu.Write)

	dma.AttachPort(dmaMDECIn, mdec)
	dma.AttachPort(dmaMDECOut, mdec)
	dma.AttachPort(dmaGPU, gpu)
	dma.AttachPort(dmaCDROM, cd)
	dma.AttachPort(dmaSPU, spu)

	return s
}

// readIntc/writeIntc expose I_STAT (0x0) and I_MASK (0x4) through the
// uniform ioDevice callback shape InterruptController itself doesn't need,
// since it's also consulted directly by Cop0 outside of bus accesses.
func (s *System) readIntc(offset uint32, _ AccessSize) uint32 {
	switch offset {
	case 0:
		return s.Intc.ReadStatus()
	case 4:
		return s.Intc.ReadMask()
	}
	return 0
}

func (s *System) writeIntc(offset uint32, value uint32, _ AccessSize) {
	switch offset {
	case 0:
		s.Intc.WriteStatus(value)
	case 4:
		s.Intc.WriteMask(value)
	}
}

// Reset restores every owned component to its power-on state.
func (s *System) Reset() {
	s.Bus.Reset()
	s.Cop0.Reset()
	s.Gte.Reset()
	s.CPU.Reset()
	s.Intc.Reset()
	s.Dma.Reset()
	s.Tmr.Reset()
	s.Joy.Reset()
	s.Cd.Reset()
	s.Gpu.Reset()
	s.Spu.Reset()
	s.Mdec.Reset()
	s.cycles = 0
	s.aborted = false
}

// Abort requests the Run loop stop before its next instruction fetch.
func (s *System) Abort() { s.aborted = true }

// Run executes instructions until budget cycles have elapsed (0 means run
// until Abort is called), advancing every peripheral's clock in the order
// the concurrency model requires: CPU first, then the devices whose
// registers it may just have touched.
func (s *System) Run(budget uint64) {
	var cdromAccum uint64
	for !s.aborted {
		cycles := uint64(s.CPU.Step())
		s.cycles += cycles

		cdromAccum += cycles
		for cdromAccum >= cdromTickCycles {
			cdromAccum -= cdromTickCycles
			s.Cd.Clock()
		}

		hblank, vblank := s.Gpu.Step(uint32(cycles))
		s.Tmr.Clock(s.cycles, hblank, vblank, timerDotclockHz)
		s.Joy.Cycle(int64(cycles))

		for s.Dma.RunActiveChannel() {
		}

		if budget != 0 && s.cycles >= budget {
			return
		}
	}
}
