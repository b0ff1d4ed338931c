// gpu_stub.go - GPU register contract (GP0/GP1), no rasterization

package main

// Gpu models only the bus-facing register contract real software depends
// on to synchronize with: GP0 (command/data port), GP1 (control port) and
// GPUSTAT. It accepts and discards drawing/data commands; rasterization,
// VRAM contents and display output are out of scope for this core and are
// left to a presentation layer built on top of it.
type Gpu struct {
	gpustat uint32
	gp0Latch uint32

	hblank bool
	vblank bool

	// scanline/dot counters drive the hblank/vblank pulses that feed the
	// timers; real timing (NTSC/PAL, interlace) is approximated as a
	// fixed-rate toggle rather than modeled cycle-for-cycle.
	dotCounter  uint32
	lineCounter uint32

	intc *InterruptController
}

const (
	gpuDotsPerLine  = 3413
	gpuLinesPerFrame = 263
	gpuVblankStartLine = 240
)

func NewGpu(intc *InterruptController) *Gpu {
	g := &Gpu{intc: intc}
	g.Reset()
	return g
}

func (g *Gpu) Reset() {
	g.gpustat = 0x1C00_0000 // ready-to-receive-cmd/DMA bits set, matching a just-reset GPU
	g.gp0Latch = 0
	g.hblank = false
	g.vblank = false
	g.dotCounter = 0
	g.lineCounter = 0
}

// Step advances the GPU's scanline counters by cpuCycles worth of dots
// and returns the current hblank/vblank level, which feeds the timers and
// the interrupt controller's VBlank source.
func (g *Gpu) Step(cpuCycles uint32) (hblank, vblank bool) {
	g.dotCounter += cpuCycles
	for g.dotCounter >= gpuDotsPerLine {
		g.dotCounter -= gpuDotsPerLine
		g.lineCounter++
		if g.lineCounter >= gpuLinesPerFrame {
			g.lineCounter = 0
		}
		wasVblank := g.vblank
		g.vblank = g.lineCounter >= gpuVblankStartLine
		if g.vblank && !wasVblank {
			g.intc.TriggerIRQ(IRQ_VBLANK)
		}
	}
	g.hblank = g.dotCounter >= gpuDotsPerLine-200
	return g.hblank, g.vblank
}

// WriteGP0 accepts a command/data word on the primary port. The word is
// latched (ReadGP0 returns it) and otherwise discarded; commands are not
// parsed, so command words and their data words are not told apart, and
// no rendering occurs.
func (g *Gpu) WriteGP0(v uint32) {
	g.gp0Latch = v
}

// WriteGP1 accepts a control word on the secondary port (reset, display
// mode, DMA direction, etc.) and updates the subset of GPUSTAT bits
// software polls.
func (g *Gpu) WriteGP1(v uint32) {
	switch v >> 24 {
	case 0x00: // Reset GPU
		g.Reset()
	case 0x04: // DMA direction
		g.gpustat = (g.gpustat &^ (3 << 29)) | ((v & 3) << 29)
	case 0x08: // Display mode
		g.gpustat = (g.gpustat &^ 0x7F_0000) | ((v & 0x3F) << 17) | ((v & 0x40) << 10)
	}
}

func (g *Gpu) ReadGPUSTAT() uint32 { return g.gpustat }
func (g *Gpu) ReadGP0() uint32     { return g.gp0Latch }

func (g *Gpu) Read(offset uint32, _ AccessSize) uint32 {
	switch offset {
	case 0:
		return g.ReadGP0()
	case 4:
		return g.ReadGPUSTAT()
	}
	return 0
}

func (g *Gpu) Write(offset uint32, value uint32, _ AccessSize) {
	switch offset {
	case 0:
		g.WriteGP0(value)
	case 4:
		g.WriteGP1(value)
	}
}

// DMAReadWord/DMAWriteWord satisfy dmaPort for channel 2 (GPU).
func (g *Gpu) DMAReadWord() uint32     { return g.ReadGP0() }
func (g *Gpu) DMAWriteWord(v uint32)   { g.WriteGP0(v) }
