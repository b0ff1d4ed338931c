// cdrom.go - CD-ROM drive controller: command/drive state machines, FIFOs

package main

// Interrupt cause codes delivered through the low 3 bits of int_status.
const (
	cdIntNone           = 0
	cdIntDataReady      = 1 // INT1: new sector landed in the data FIFO
	cdIntSecondResponse = 2 // INT2: command's second response is ready
	cdIntFirstResponse  = 3 // INT3: command's first (immediate) response is ready
	cdIntDataEnd        = 4 // INT4: unused by this implementation
	cdIntError          = 5 // INT5: command error
)

const (
	cdCommandDelay    = 60      // cycles to "receive" any command byte
	cdSpinUpCycles    = 22050   // cold motor spin-up
	cdSectorCycles1x  = 588     // one sector period at 1x speed
	cdReadPrerollTicks = 5 * cdSectorCycles1x
	cdPauseSecondDelay = 5 * cdSectorCycles1x
)

type cdCommandState int

const (
	cdCmdIdle cdCommandState = iota
	cdCmdQueued
	cdCmdReceiving
	cdCmdSecondResponse
)

type cdDriveNext int

const (
	cdNextPause cdDriveNext = iota
	cdNextRead
	cdNextPlay
)

type cdDriveState int

const (
	cdDriveStopped cdDriveState = iota
	cdDriveSpinningUp
	cdDriveSeeking
	cdDrivePreparingToRead
	cdDriveReading
	cdDrivePaused
)

// CdRom implements the command FIFO / response FIFO / data FIFO register
// surface at 0x1F801800-0x1F801803 plus the two cooperating state machines
// (host-command processing and physical drive motion) that drive them.
type CdRom struct {
	bank uint8

	paramFifo    [16]byte
	paramWriteIdx int

	responseFifo   [16]byte
	responseReadIdx  int
	responseWriteIdx int
	hasResponse      bool

	intMask   uint8
	intStatus uint8

	dataFifo    [2352]byte
	dataReadIdx int
	dataLen     int

	rawSectorMode bool

	pendingSeek   CdTime
	hasPendingSeek bool

	cmdState  cdCommandState
	cmd       byte
	cmdCycles int64
	queuedCmd byte

	driveState      cdDriveState
	driveCycles     int64
	driveNext       cdDriveNext
	driveTime       CdTime
	seekDest        CdTime
	int1Generated   bool
	driveInt2Queued bool

	disc *CdBinFiles

	sectorBuf [2352]byte

	readAhead *sectorReadAhead

	intc *InterruptController
}

func NewCdRom(intc *InterruptController) *CdRom {
	c := &CdRom{intc: intc, readAhead: newSectorReadAhead()}
	c.Reset()
	return c
}

func (c *CdRom) Reset() {
	if c.readAhead != nil {
		c.readAhead.Stop()
	}
	*c = CdRom{intc: c.intc, disc: c.disc, readAhead: newSectorReadAhead()}
	c.driveState = cdDriveStopped
}

// InsertDisc mounts a parsed CUE/BIN image for subsequent seek/read
// commands. Passing nil ejects the disc.
func (c *CdRom) InsertDisc(disc *CdBinFiles) { c.disc = disc }

// --- FIFOs -------------------------------------------------------------

func (c *CdRom) pushParam(v byte) {
	if c.paramWriteIdx < len(c.paramFifo) {
		c.paramFifo[c.paramWriteIdx] = v
		c.paramWriteIdx++
	}
}

func (c *CdRom) clearParams() { c.paramWriteIdx = 0 }

func (c *CdRom) pushResponse(bs ...byte) {
	for _, b := range bs {
		c.responseFifo[c.responseWriteIdx%len(c.responseFifo)] = b
		c.responseWriteIdx++
	}
	c.hasResponse = c.responseWriteIdx != c.responseReadIdx
}

func (c *CdRom) popResponse() byte {
	if !c.hasResponse {
		return 0
	}
	b := c.responseFifo[c.responseReadIdx%len(c.responseFifo)]
	c.responseReadIdx++
	if c.responseReadIdx == c.responseWriteIdx {
		c.hasResponse = false
	}
	return b
}

func (c *CdRom) resetResponseFifo() {
	c.responseReadIdx = 0
	c.responseWriteIdx = 0
	c.hasResponse = false
}

func (c *CdRom) popDataByte() byte {
	if c.dataLen == 0 {
		return 0
	}
	if c.dataReadIdx >= c.dataLen {
		return c.dataFifo[c.dataLen-1]
	}
	b := c.dataFifo[c.dataReadIdx]
	c.dataReadIdx++
	return b
}

// --- HSTS --------------------------------------------------------------

func (c *CdRom) hsts() uint32 {
	v := uint32(c.bank)
	if c.paramWriteIdx == 0 {
		v |= 1 << 3 // PRMEMPT
	}
	if c.paramWriteIdx < len(c.paramFifo) {
		v |= 1 << 4 // PRMWRDY
	}
	if c.hasResponse {
		v |= 1 << 5 // RSLRRDY
	}
	if c.dataReadIdx < c.dataLen {
		v |= 1 << 6 // DATA
	}
	if c.cmdState != cdCmdIdle {
		v |= 1 << 7 // BUSY
	}
	return v
}

func (c *CdRom) stat() byte {
	motorOn := c.driveState != cdDriveStopped && c.driveState != cdDriveSpinningUp
	reading := c.driveState == cdDrivePreparingToRead || c.driveState == cdDriveReading
	seeking := c.driveState == cdDriveSeeking
	v := byte(0)
	if motorOn {
		v |= 1 << 1
	}
	if seeking {
		v |= 1 << 6
	}
	if reading {
		v |= 1 << 5
	}
	return v
}

// DMAReadWord satisfies dmaPort for channel 3 (CDROM): the controller only
// ever streams data out of the data FIFO, four bytes at a time in file
// (little-endian sector) order.
func (c *CdRom) DMAReadWord() uint32 {
	v := uint32(c.popDataByte())
	v |= uint32(c.popDataByte()) << 8
	v |= uint32(c.popDataByte()) << 16
	v |= uint32(c.popDataByte()) << 24
	return v
}

// DMAWriteWord exists only to satisfy dmaPort; the real drive never accepts
// DMA writes.
func (c *CdRom) DMAWriteWord(uint32) {}

// --- register interface --------------------------------------------------

func (c *CdRom) Read(offset uint32, size AccessSize) uint32 {
	switch offset {
	case 0:
		return c.hsts()
	case 1:
		return uint32(c.popResponse())
	case 2:
		v := uint32(c.popDataByte())
		switch size {
		case AccessHalfWord:
			v |= uint32(c.popDataByte()) << 8
		case AccessWord:
			v |= uint32(c.popDataByte()) << 8
			v |= uint32(c.popDataByte()) << 16
			v |= uint32(c.popDataByte()) << 24
		}
		return v
	case 3:
		if c.bank&1 == 0 {
			return uint32(c.intMask)
		}
		return uint32(c.intStatus) | 0xE0
	}
	return 0xFF
}

func (c *CdRom) Write(offset uint32, value uint32, _ AccessSize) {
	v := byte(value)
	switch offset {
	case 0:
		c.bank = v & 3
	case 1:
		switch c.bank {
		case 0:
			c.beginCommand(v)
		}
	case 2:
		switch c.bank {
		case 0:
			c.pushParam(v)
		case 1:
			c.intMask = v & 0x1F
		}
	case 3:
		switch c.bank {
		case 1:
			c.intStatus &^= v & 0x1F
		}
	}
}

func (c *CdRom) raiseInterrupt(kind byte) {
	c.intStatus = (c.intStatus &^ 0x7) | kind
	if c.intStatus&c.intMask != 0 {
		c.intc.TriggerIRQ(IRQ_CDROM)
	}
}

// beginCommand is invoked when the host writes a byte to the command
// register; if an interrupt is still pending, the command is queued
// rather than processed immediately.
func (c *CdRom) beginCommand(cmd byte) {
	if c.cmdState != cdCmdIdle || c.intStatus&0x7 != 0 {
		c.queuedCmd = cmd
		c.cmdState = cdCmdQueued
		return
	}
	c.cmd = cmd
	c.cmdState = cdCmdReceiving
	c.cmdCycles = cdCommandDelay
}

// Clock advances both the command and drive state machines by one
// controller tick; the caller (scheduler.go) invokes this once every 768
// CPU cycles, which at the ~33.8688MHz CPU clock gives a 44.1kHz controller
// tick. The drive is clocked first, so drive motion started by a
// command that executes during this tick begins counting on the next one.
func (c *CdRom) Clock() {
	c.clockDrive()
	c.clockCommand()
}

func (c *CdRom) clockCommand() {
	switch c.cmdState {
	case cdCmdQueued:
		if c.intStatus&0x7 == 0 {
			c.cmd = c.queuedCmd
			c.cmdState = cdCmdReceiving
			c.cmdCycles = cdCommandDelay
		}
	case cdCmdReceiving:
		c.cmdCycles--
		if c.cmdCycles <= 0 {
			c.executeCommand(c.cmd)
		}
	case cdCmdSecondResponse:
		if c.intStatus&0x7 != 0 {
			return // wait for host to ack before raising the second INT
		}
		c.cmdCycles--
		if c.cmdCycles <= 0 {
			c.executeSecondResponse(c.cmd)
			c.cmdState = cdCmdIdle
			c.clearParams()
		}
	}
}

func (c *CdRom) scheduleSecondResponse(delay int64) {
	c.cmdState = cdCmdSecondResponse
	c.cmdCycles = delay
}

func (c *CdRom) executeCommand(cmd byte) {
	switch cmd {
	case 0x01: // GetStat
		c.pushResponse(c.stat())
		c.raiseInterrupt(cdIntFirstResponse)
		c.cmdState = cdCmdIdle
		c.clearParams()

	case 0x02: // SetLoc
		if c.paramWriteIdx >= 3 {
			c.pendingSeek = CdTime{
				bcdToBinary(c.paramFifo[0]),
				bcdToBinary(c.paramFifo[1]),
				bcdToBinary(c.paramFifo[2]),
			}
			c.hasPendingSeek = true
		}
		c.pushResponse(c.stat())
		c.raiseInterrupt(cdIntFirstResponse)
		c.cmdState = cdCmdIdle
		c.clearParams()

	case 0x06, 0x1B: // ReadN, ReadS
		c.beginSeek(cdNextRead)
		c.pushResponse(c.stat())
		c.raiseInterrupt(cdIntFirstResponse)
		c.cmdState = cdCmdIdle
		c.clearParams()

	case 0x09: // Pause
		c.pushResponse(c.stat())
		c.raiseInterrupt(cdIntFirstResponse)
		c.scheduleSecondResponse(cdPauseSecondDelay)

	case 0x0A: // Init
		switch c.driveState {
		case cdDriveStopped:
			c.driveState = cdDriveSpinningUp
			c.driveCycles = cdSpinUpCycles
		case cdDriveSpinningUp:
			// already spinning up towards an earlier command; let it finish.
		default:
			// any other state is interrupted and forced into Paused; its
			// second response follows a short fixed delay rather than
			// waiting on drive motion, since the drive is already live.
			c.driveState = cdDrivePaused
			c.driveInt2Queued = false
		}
		c.rawSectorMode = false
		c.pushResponse(c.stat())
		c.raiseInterrupt(cdIntFirstResponse)
		if c.driveState == cdDriveSpinningUp {
			// INT2 arrives once spin-up actually completes and the drive
			// state machine queues it; no command timer needed here.
			c.cmdState = cdCmdIdle
			c.clearParams()
		} else {
			c.scheduleSecondResponse(24)
		}

	case 0x0E: // SetMode
		if c.paramWriteIdx >= 1 {
			c.rawSectorMode = c.paramFifo[0]&(1<<5) != 0
		}
		c.pushResponse(c.stat())
		c.raiseInterrupt(cdIntFirstResponse)
		c.cmdState = cdCmdIdle
		c.clearParams()

	case 0x11: // GetLocP
		c.executeGetLocP()
		c.raiseInterrupt(cdIntFirstResponse)
		c.cmdState = cdCmdIdle
		c.clearParams()

	case 0x15: // SeekL
		c.beginSeek(cdNextPause)
		c.pushResponse(c.stat())
		c.raiseInterrupt(cdIntFirstResponse)
		c.cmdState = cdCmdIdle
		c.clearParams()

	case 0x19: // Test
		if c.paramWriteIdx >= 1 && c.paramFifo[0] == 0x20 {
			c.pushResponse(0x95, 0x07, 0x24, 0xC1)
		} else {
			c.pushResponse(c.stat())
		}
		c.raiseInterrupt(cdIntFirstResponse)
		c.cmdState = cdCmdIdle
		c.clearParams()

	case 0x1A: // GetId
		c.pushResponse(c.stat())
		c.raiseInterrupt(cdIntFirstResponse)
		c.scheduleSecondResponse(24)

	case 0x1E: // ReadToc
		c.pushResponse(c.stat())
		c.raiseInterrupt(cdIntFirstResponse)
		c.scheduleSecondResponse(44)

	default:
		c.pushResponse(c.stat(), 0x40)
		c.raiseInterrupt(cdIntError)
		c.cmdState = cdCmdIdle
		c.clearParams()
	}
}

func (c *CdRom) executeSecondResponse(cmd byte) {
	switch cmd {
	case 0x09: // Pause
		c.driveState = cdDrivePaused
		c.pushResponse(c.stat())
		c.raiseInterrupt(cdIntSecondResponse)

	case 0x0A: // Init
		c.pushResponse(c.stat())
		c.raiseInterrupt(cdIntSecondResponse)

	case 0x1A: // GetId
		if c.disc != nil {
			c.pushResponse(0x02, 0x00, 0x20, 0x00, 0x53, 0x43, 0x45, 0x45) // licensed, Europe (SCEE)
		} else {
			c.pushResponse(0x08, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00)
		}
		c.raiseInterrupt(cdIntSecondResponse)

	case 0x1E: // ReadToc
		c.pushResponse(c.stat())
		c.raiseInterrupt(cdIntSecondResponse)
	}
}

func (c *CdRom) executeGetLocP() {
	if c.disc == nil {
		c.pushResponse(0, 0, 0, 0, 0, 0, 0, 0)
		return
	}
	track := c.disc.Cue().FindTrackByTime(c.driveTime)
	if track == nil {
		c.pushResponse(0, 0, 0, 0, 0, 0, 0, 0)
		return
	}
	rel := c.driveTime.Sub(track.StartTime)
	c.pushResponse(
		binaryToBCD(track.Number), 1,
		binaryToBCD(rel.Minutes), binaryToBCD(rel.Seconds), binaryToBCD(rel.Frames),
		binaryToBCD(c.driveTime.Minutes), binaryToBCD(c.driveTime.Seconds), binaryToBCD(c.driveTime.Frames),
	)
}

func (c *CdRom) beginSeek(next cdDriveNext) {
	c.readAhead.Stop() // a prefetched sector belongs to the old position
	dest := c.driveTime
	if c.hasPendingSeek {
		dest = c.pendingSeek
		c.hasPendingSeek = false
	}
	distance := int64(dest.ToSectorNumber()) - int64(c.driveTime.ToSectorNumber())
	if distance < 0 {
		distance = -distance
	}
	cycles := distance * 44100 / 270000
	if cycles < 24 {
		cycles = 24
	}
	c.seekDest = dest
	c.driveNext = next
	c.driveState = cdDriveSeeking
	c.driveCycles = cycles
}

func (c *CdRom) clockDrive() {
	switch c.driveState {
	case cdDriveSpinningUp:
		c.driveCycles--
		if c.driveCycles <= 0 {
			c.driveState = cdDrivePaused
			c.driveInt2Queued = true
		}

	case cdDriveSeeking:
		c.driveCycles--
		if c.driveCycles <= 0 {
			c.driveTime = c.seekDest
			switch c.driveNext {
			case cdNextRead:
				c.driveState = cdDrivePreparingToRead
				c.driveCycles = cdReadPrerollTicks
				c.int1Generated = false
			default:
				c.driveState = cdDrivePaused
				c.driveInt2Queued = true
			}
		}

	case cdDrivePaused:
		// mirrors the command-state machine's own "wait for host to ack"
		// gate: a second response queued by spin-up or seek completion only
		// fires once the interrupt line is clear.
		if c.driveInt2Queued && c.intStatus&0x7 == 0 {
			c.pushResponse(c.stat())
			c.raiseInterrupt(cdIntSecondResponse)
			c.driveInt2Queued = false
		}

	case cdDrivePreparingToRead:
		c.driveCycles--
		if c.driveCycles <= 0 {
			c.driveState = cdDriveReading
			c.driveCycles = cdSectorCycles1x
		}

	case cdDriveReading:
		c.driveCycles--
		if c.driveCycles <= 0 {
			c.readNextSector()
			c.driveCycles = cdSectorCycles1x
		}
	}
}

// readNextSector loads the sector at the drive's current time into the
// data FIFO and raises INT1, then advances the drive time by one frame.
func (c *CdRom) readNextSector() {
	if c.disc == nil {
		return
	}
	track := c.disc.Cue().FindTrackByTime(c.driveTime)
	if track == nil {
		c.driveState = cdDrivePaused
		return
	}
	rel := c.driveTime.Sub(track.StartTime)
	if buf, ok := c.readAhead.TakeReady(); ok {
		c.sectorBuf = buf
	} else {
		// wait out any prefetch still reading so the two reads never share
		// the file position
		c.readAhead.Stop()
		if err := c.disc.ReadSector(track.Number, rel, c.sectorBuf[:]); err != nil {
			return
		}
	}

	if c.rawSectorMode {
		copy(c.dataFifo[:], c.sectorBuf[12:2352])
		c.dataLen = 2352 - 12
	} else {
		copy(c.dataFifo[:], c.sectorBuf[24:2072])
		c.dataLen = 2072 - 24
	}
	c.dataReadIdx = 0

	c.raiseInterrupt(cdIntDataReady)
	c.driveTime = c.driveTime.Add(CdTime{0, 0, 1})

	if t := c.disc.Cue().FindTrackByTime(c.driveTime); t != nil {
		c.readAhead.Prefetch(c.disc, t.Number, c.driveTime.Sub(t.StartTime))
	}
}
