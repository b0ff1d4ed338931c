// cpu.go - MIPS R3000A interpreter: fetch/decode/dispatch

package main

// Primary opcodes (bits 31:26).
const (
	opSPECIAL = 0x00
	opBCONDZ  = 0x01
	opJ       = 0x02
	opJAL     = 0x03
	opBEQ     = 0x04
	opBNE     = 0x05
	opBLEZ    = 0x06
	opBGTZ    = 0x07
	opADDI    = 0x08
	opADDIU   = 0x09
	opSLTI    = 0x0A
	opSLTIU   = 0x0B
	opANDI    = 0x0C
	opORI     = 0x0D
	opXORI    = 0x0E
	opLUI     = 0x0F
	opCOP0    = 0x10
	opCOP1    = 0x11
	opCOP2    = 0x12
	opCOP3    = 0x13
	opLB      = 0x20
	opLH      = 0x21
	opLWL     = 0x22
	opLW      = 0x23
	opLBU     = 0x24
	opLHU     = 0x25
	opLWR     = 0x26
	opSB      = 0x28
	opSH      = 0x29
	opSWL     = 0x2A
	opSW      = 0x2B
	opSWR     = 0x2E
	opLWC0    = 0x30
	opLWC1    = 0x31
	opLWC2    = 0x32
	opLWC3    = 0x33
	opSWC0    = 0x38
	opSWC1    = 0x39
	opSWC2    = 0x3A
	opSWC3    = 0x3B
)

// SPECIAL (opcode 0) function codes (bits 5:0).
const (
	fnSLL     = 0x00
	fnSRL     = 0x02
	fnSRA     = 0x03
	fnSLLV    = 0x04
	fnSRLV    = 0x06
	fnSRAV    = 0x07
	fnJR      = 0x08
	fnJALR    = 0x09
	fnSYSCALL = 0x0C
	fnBREAK   = 0x0D
	fnMFHI    = 0x10
	fnMTHI    = 0x11
	fnMFLO    = 0x12
	fnMTLO    = 0x13
	fnMULT    = 0x18
	fnMULTU   = 0x19
	fnDIV     = 0x1A
	fnDIVU    = 0x1B
	fnADD     = 0x20
	fnADDU    = 0x21
	fnSUB     = 0x22
	fnSUBU    = 0x23
	fnAND     = 0x24
	fnOR      = 0x25
	fnXOR     = 0x26
	fnNOR     = 0x27
	fnSLT     = 0x2A
	fnSLTU    = 0x2B
)

// CPU is the R3000A instruction interpreter. Load-delay and branch-delay
// slots are modeled with the classic two-bank register scheme: every cycle
// copies regs into outRegs (applying the previous cycle's delayed load
// commit on top), executes the instruction reading operands from the
// still-stale regs and writing results into outRegs, then commits outRegs
// back into regs. Loads never write outRegs directly - they call
// delayedLoad, which lands in outRegs at the start of the *next* cycle, so
// the instruction immediately following a load still observes the old
// value and only the instruction after that sees the loaded one.
type CPU struct {
	regs    [32]uint32
	outRegs [32]uint32

	pc        uint32
	nextPC    uint32
	currentPC uint32

	hi, lo uint32

	pendingLoadReg uint32
	pendingLoadVal uint32

	branching bool // set by a taken branch/jump; means the *next* cycle is a delay slot
	delaySlot bool // true while executing an instruction that is itself a delay slot

	cop0 *Cop0
	gte  *Gte
	bus  *Bus
	intc *InterruptController
	log  *Logger
}

const resetVector = 0xBFC0_0000

func NewCPU(bus *Bus, cop0 *Cop0, gte *Gte, intc *InterruptController, log *Logger) *CPU {
	c := &CPU{bus: bus, cop0: cop0, gte: gte, intc: intc, log: log}
	c.Reset()
	return c
}

func (c *CPU) Reset() {
	for i := range c.regs {
		c.regs[i] = 0
	}
	c.pc = resetVector
	c.nextPC = resetVector + 4
	c.currentPC = resetVector
	c.hi, c.lo = 0, 0
	c.pendingLoadReg, c.pendingLoadVal = 0, 0
	c.branching, c.delaySlot = false, false
}

// reg reads a source operand from the register file as it stood at the
// start of this cycle - one cycle stale relative to outRegs, which is
// where this cycle's writes (and the previous cycle's delayed load commit)
// land. That staleness is exactly what makes the delay slot work: the
// instruction right after a load still sees the pre-load value here, even
// though the loaded value has already been committed into outRegs for the
// *next* cycle to read.
func (c *CPU) reg(i uint32) uint32 { return c.regs[i] }

func (c *CPU) setReg(i uint32, v uint32) {
	c.outRegs[i] = v
	c.outRegs[0] = 0
}

// delayedLoad schedules reg i to receive v at the start of the next cycle.
// A later call always overwrites an earlier one; LWL/LWR merge with a load
// still in flight for their own target register before calling this (see
// execLWL/execLWR).
func (c *CPU) delayedLoad(i uint32, v uint32) {
	c.pendingLoadReg = i
	c.pendingLoadVal = v
}

// PC exposes the next instruction address, used by the loader to seed
// execution and by tests to assert control-flow outcomes.
func (c *CPU) PC() uint32 { return c.pc }

func (c *CPU) SetPC(addr uint32) {
	c.pc = addr
	c.nextPC = addr + 4
}

func (c *CPU) GetReg(i uint32) uint32 { return c.regs[i] }
func (c *CPU) SetReg(i uint32, v uint32) {
	if i != 0 {
		c.regs[i] = v
	}
}

// instruction decode helpers
type instruction uint32

func (i instruction) op() uint32     { return uint32(i) >> 26 }
func (i instruction) rs() uint32     { return (uint32(i) >> 21) & 0x1F }
func (i instruction) rt() uint32     { return (uint32(i) >> 16) & 0x1F }
func (i instruction) rd() uint32     { return (uint32(i) >> 11) & 0x1F }
func (i instruction) shamt() uint32  { return (uint32(i) >> 6) & 0x1F }
func (i instruction) funct() uint32  { return uint32(i) & 0x3F }
func (i instruction) imm16() uint32  { return uint32(i) & 0xFFFF }
func (i instruction) simm16() uint32 { return uint32(int32(int16(uint16(i)))) }
func (i instruction) imm26() uint32  { return uint32(i) & 0x03FF_FFFF }

// Step executes exactly one instruction (or services one pending hardware
// interrupt) and returns the number of CPU cycles it models as having
// taken. Per spec.md's Non-goals, this is not cycle-exact: every
// instruction costs a uniform 1 cycle and bus access stalls are not
// modeled, matching the teacher's own simplified per-instruction cost
// model in its other CPU interpreters.
func (c *CPU) Step() uint32 {
	c.cop0.SetHardwareInterruptPending(c.intc.Pending())
	if c.cop0.HardwareInterruptPending() {
		c.raiseException(excInt, c.pc, c.branching, 0, 0)
		c.branching = false
		return 1
	}

	pc := c.pc
	if pc%4 != 0 {
		c.raiseException(excAdEL, pc, c.branching, pc, 0)
		c.branching = false
		return 1
	}

	raw, ok := c.bus.ReadWordChecked(pc)
	if !ok {
		c.raiseException(excIBE, pc, c.branching, pc, 0)
		c.branching = false
		return 1
	}
	instr := instruction(raw)

	c.currentPC = pc
	c.delaySlot = c.branching
	c.branching = false
	c.pc = c.nextPC
	c.nextPC = c.pc + 4

	c.outRegs = c.regs
	if c.pendingLoadReg != 0 {
		c.outRegs[c.pendingLoadReg] = c.pendingLoadVal
	}
	c.pendingLoadReg, c.pendingLoadVal = 0, 0

	c.execute(instr)

	c.regs = c.outRegs
	return 1
}

func (c *CPU) raiseException(code uint32, epc uint32, inDelaySlot bool, badVAddr uint32, coprocessor uint32) {
	handler := c.cop0.EnterException(code, epc, inDelaySlot, badVAddr, coprocessor)
	c.pc = handler
	c.nextPC = handler + 4
}

func (c *CPU) branch(offset uint32) {
	c.nextPC = c.pc + (offset << 2)
	c.branching = true
}

func (c *CPU) execute(i instruction) {
	switch i.op() {
	case opSPECIAL:
		c.executeSpecial(i)
	case opBCONDZ:
		c.execBcondZ(i)
	case opJ:
		target := (c.pc & 0xF000_0000) | (i.imm26() << 2)
		c.nextPC = target
		c.branching = true
	case opJAL:
		c.setReg(31, c.nextPC)
		target := (c.pc & 0xF000_0000) | (i.imm26() << 2)
		c.nextPC = target
		c.branching = true
	case opBEQ:
		if c.reg(i.rs()) == c.reg(i.rt()) {
			c.branch(i.simm16())
		}
	case opBNE:
		if c.reg(i.rs()) != c.reg(i.rt()) {
			c.branch(i.simm16())
		}
	case opBLEZ:
		if int32(c.reg(i.rs())) <= 0 {
			c.branch(i.simm16())
		}
	case opBGTZ:
		if int32(c.reg(i.rs())) > 0 {
			c.branch(i.simm16())
		}
	case opADDI:
		c.execADDI(i)
	case opADDIU:
		c.setReg(i.rt(), c.reg(i.rs())+i.simm16())
	case opSLTI:
		c.setReg(i.rt(), boolToWord(int32(c.reg(i.rs())) < int32(i.simm16())))
	case opSLTIU:
		c.setReg(i.rt(), boolToWord(c.reg(i.rs()) < i.simm16()))
	case opANDI:
		c.setReg(i.rt(), c.reg(i.rs())&i.imm16())
	case opORI:
		c.setReg(i.rt(), c.reg(i.rs())|i.imm16())
	case opXORI:
		c.setReg(i.rt(), c.reg(i.rs())^i.imm16())
	case opLUI:
		c.setReg(i.rt(), i.imm16()<<16)
	case opCOP0:
		c.execCop0(i)
	case opCOP1:
		c.raiseException(excCpU, c.currentPC, c.delaySlot, 0, 1)
	case opCOP2:
		c.execCop2(i)
	case opCOP3:
		c.raiseException(excCpU, c.currentPC, c.delaySlot, 0, 3)
	case opLB:
		c.execLoad(i, AccessByte, true)
	case opLBU:
		c.execLoad(i, AccessByte, false)
	case opLH:
		c.execLoad(i, AccessHalfWord, true)
	case opLHU:
		c.execLoad(i, AccessHalfWord, false)
	case opLW:
		c.execLoad(i, AccessWord, true)
	case opLWL:
		c.execLWL(i)
	case opLWR:
		c.execLWR(i)
	case opSB:
		c.execStore(i, AccessByte)
	case opSH:
		c.execStore(i, AccessHalfWord)
	case opSW:
		c.execStore(i, AccessWord)
	case opSWL:
		c.execSWL(i)
	case opSWR:
		c.execSWR(i)
	case opLWC2:
		c.execLWC2(i)
	case opSWC2:
		c.execSWC2(i)
	case opLWC0, opLWC1, opLWC3:
		c.raiseException(excCpU, c.currentPC, c.delaySlot, 0, i.op()-opLWC0)
	case opSWC0, opSWC1, opSWC3:
		c.raiseException(excCpU, c.currentPC, c.delaySlot, 0, i.op()-opSWC0)
	default:
		c.raiseException(excRI, c.currentPC, c.delaySlot, 0, 0)
	}
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (c *CPU) executeSpecial(i instruction) {
	switch i.funct() {
	case fnSLL:
		c.setReg(i.rd(), c.reg(i.rt())<<i.shamt())
	case fnSRL:
		c.setReg(i.rd(), c.reg(i.rt())>>i.shamt())
	case fnSRA:
		c.setReg(i.rd(), uint32(int32(c.reg(i.rt()))>>i.shamt()))
	case fnSLLV:
		c.setReg(i.rd(), c.reg(i.rt())<<(c.reg(i.rs())&0x1F))
	case fnSRLV:
		c.setReg(i.rd(), c.reg(i.rt())>>(c.reg(i.rs())&0x1F))
	case fnSRAV:
		c.setReg(i.rd(), uint32(int32(c.reg(i.rt()))>>(c.reg(i.rs())&0x1F)))
	case fnJR:
		c.nextPC = c.reg(i.rs())
		c.branching = true
	case fnJALR:
		ret := c.nextPC
		c.nextPC = c.reg(i.rs())
		c.branching = true
		c.setReg(i.rd(), ret)
	case fnSYSCALL:
		c.raiseException(excSys, c.currentPC, c.delaySlot, 0, 0)
	case fnBREAK:
		c.raiseException(excBp, c.currentPC, c.delaySlot, 0, 0)
	case fnMFHI:
		c.setReg(i.rd(), c.hi)
	case fnMTHI:
		c.hi = c.reg(i.rs())
	case fnMFLO:
		c.setReg(i.rd(), c.lo)
	case fnMTLO:
		c.lo = c.reg(i.rs())
	case fnMULT:
		result := int64(int32(c.reg(i.rs()))) * int64(int32(c.reg(i.rt())))
		c.hi = uint32(uint64(result) >> 32)
		c.lo = uint32(result)
	case fnMULTU:
		result := uint64(c.reg(i.rs())) * uint64(c.reg(i.rt()))
		c.hi = uint32(result >> 32)
		c.lo = uint32(result)
	case fnDIV:
		c.execDIV(i)
	case fnDIVU:
		c.execDIVU(i)
	case fnADD:
		c.execADD(i)
	case fnADDU:
		c.setReg(i.rd(), c.reg(i.rs())+c.reg(i.rt()))
	case fnSUB:
		c.execSUB(i)
	case fnSUBU:
		c.setReg(i.rd(), c.reg(i.rs())-c.reg(i.rt()))
	case fnAND:
		c.setReg(i.rd(), c.reg(i.rs())&c.reg(i.rt()))
	case fnOR:
		c.setReg(i.rd(), c.reg(i.rs())|c.reg(i.rt()))
	case fnXOR:
		c.setReg(i.rd(), c.reg(i.rs())^c.reg(i.rt()))
	case fnNOR:
		c.setReg(i.rd(), ^(c.reg(i.rs()) | c.reg(i.rt())))
	case fnSLT:
		c.setReg(i.rd(), boolToWord(int32(c.reg(i.rs())) < int32(c.reg(i.rt()))))
	case fnSLTU:
		c.setReg(i.rd(), boolToWord(c.reg(i.rs()) < c.reg(i.rt())))
	default:
		c.raiseException(excRI, c.currentPC, c.delaySlot, 0, 0)
	}
}

// execBcondZ handles the four REGIMM (opcode 1) branches: BLTZ, BGEZ,
// BLTZAL, BGEZAL. The "AL" forms always write the return address to r31
// even when the branch is not taken.
func (c *CPU) execBcondZ(i instruction) {
	isBgez := i.rt()&0x01 != 0
	isLink := i.rt()&0x1E == 0x10

	v := int32(c.reg(i.rs()))
	taken := v < 0
	if isBgez {
		taken = v >= 0
	}

	if isLink {
		c.setReg(31, c.nextPC)
	}
	if taken {
		c.branch(i.simm16())
	}
}

func (c *CPU) execADDI(i instruction) {
	a := int32(c.reg(i.rs()))
	b := int32(i.simm16())
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		c.raiseException(excOv, c.currentPC, c.delaySlot, 0, 0)
		return
	}
	c.setReg(i.rt(), uint32(sum))
}

func (c *CPU) execADD(i instruction) {
	a := int32(c.reg(i.rs()))
	b := int32(c.reg(i.rt()))
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		c.raiseException(excOv, c.currentPC, c.delaySlot, 0, 0)
		return
	}
	c.setReg(i.rd(), uint32(sum))
}

func (c *CPU) execSUB(i instruction) {
	a := int32(c.reg(i.rs()))
	b := int32(c.reg(i.rt()))
	diff := a - b
	if (a >= 0 && b < 0 && diff < 0) || (a < 0 && b > 0 && diff >= 0) {
		c.raiseException(excOv, c.currentPC, c.delaySlot, 0, 0)
		return
	}
	c.setReg(i.rd(), uint32(diff))
}

// execDIV/execDIVU implement the R3000A's well-documented degenerate
// results for division by zero and for MinInt32/-1, rather than trapping.
func (c *CPU) execDIV(i instruction) {
	n := int32(c.reg(i.rs()))
	d := int32(c.reg(i.rt()))
	switch {
	case d == 0:
		if n >= 0 {
			c.lo = 0xFFFF_FFFF
		} else {
			c.lo = 1
		}
		c.hi = uint32(n)
	case n == -0x8000_0000 && d == -1:
		c.lo = uint32(n)
		c.hi = 0
	default:
		c.lo = uint32(n / d)
		c.hi = uint32(n % d)
	}
}

func (c *CPU) execDIVU(i instruction) {
	n := c.reg(i.rs())
	d := c.reg(i.rt())
	if d == 0 {
		c.lo = 0xFFFF_FFFF
		c.hi = n
		return
	}
	c.lo = n / d
	c.hi = n % d
}

// effectiveAddress computes rs + sign-extended immediate for load/store.
func (c *CPU) effectiveAddress(i instruction) uint32 {
	return c.reg(i.rs()) + i.simm16()
}

func (c *CPU) execLoad(i instruction, size AccessSize, signed bool) {
	addr := c.effectiveAddress(i)
	if !IsAligned(addr, size) {
		c.raiseException(excAdEL, c.currentPC, c.delaySlot, addr, 0)
		return
	}
	if c.cop0.IsolateCache() {
		c.delayedLoad(i.rt(), 0)
		return
	}
	var value uint32
	var ok bool
	switch size {
	case AccessByte:
		var b byte
		b, ok = c.bus.ReadByteChecked(addr)
		if signed {
			value = uint32(int32(int8(b)))
		} else {
			value = uint32(b)
		}
	case AccessHalfWord:
		var h uint16
		h, ok = c.bus.ReadHalfChecked(addr)
		if signed {
			value = uint32(int32(int16(h)))
		} else {
			value = uint32(h)
		}
	default:
		value, ok = c.bus.ReadWordChecked(addr)
	}
	if !ok {
		c.raiseException(excDBE, c.currentPC, c.delaySlot, addr, 0)
		return
	}
	c.delayedLoad(i.rt(), value)
}

func (c *CPU) execStore(i instruction, size AccessSize) {
	addr := c.effectiveAddress(i)
	if !IsAligned(addr, size) {
		c.raiseException(excAdES, c.currentPC, c.delaySlot, addr, 0)
		return
	}
	if c.cop0.IsolateCache() {
		return // cache-isolated stores are redirected away from RAM entirely
	}
	v := c.reg(i.rt())
	switch size {
	case AccessByte:
		c.bus.WriteByte(addr, byte(v))
	case AccessHalfWord:
		c.bus.WriteHalf(addr, uint16(v))
	default:
		c.bus.WriteWord(addr, v)
	}
}

// lwlMask/lwrMask give the bits of the old register value kept by the
// unaligned-word merge instructions, indexed by addr&3 (big picture: LWL/LWR together
// let compiled code do an unaligned 32-bit load in two instructions).
var lwlMask = [4]uint32{0x00FF_FFFF, 0x0000_FFFF, 0x0000_00FF, 0x0000_0000}
var lwrMask = [4]uint32{0x0000_0000, 0xFF00_0000, 0xFFFF_0000, 0xFFFF_FF00}

func (c *CPU) execLWL(i instruction) {
	addr := c.effectiveAddress(i)
	aligned := addr &^ 3
	word := c.bus.ReadWord(aligned)
	// The pending load value (if any) targeting the same register acts
	// as the "current" register content for the merge, matching real
	// hardware which does not stall for its own previous delay slot. Step
	// has already committed that pending load into outRegs.
	cur := c.outRegs[i.rt()]
	shift := (addr & 3) * 8
	merged := (cur & lwlMask[addr&3]) | (word << (24 - shift))
	c.delayedLoad(i.rt(), merged)
}

func (c *CPU) execLWR(i instruction) {
	addr := c.effectiveAddress(i)
	aligned := addr &^ 3
	word := c.bus.ReadWord(aligned)
	cur := c.outRegs[i.rt()]
	shift := (addr & 3) * 8
	merged := (cur & lwrMask[addr&3]) | (word >> shift)
	c.delayedLoad(i.rt(), merged)
}

func (c *CPU) execSWL(i instruction) {
	addr := c.effectiveAddress(i)
	aligned := addr &^ 3
	old := c.bus.ReadWord(aligned)
	v := c.reg(i.rt())
	shift := (addr & 3) * 8
	merged := (old &^ (0xFFFF_FFFF >> shift)) | (v >> (24 - shift))
	c.bus.WriteWord(aligned, merged)
}

func (c *CPU) execSWR(i instruction) {
	addr := c.effectiveAddress(i)
	aligned := addr &^ 3
	old := c.bus.ReadWord(aligned)
	v := c.reg(i.rt())
	shift := (addr & 3) * 8
	merged := (old &^ (0xFFFF_FFFF << (24 - shift))) | (v << shift)
	c.bus.WriteWord(aligned, merged)
}

// execCop0 handles MFC0/MTC0/RFE (CFC0/CTC0 do not exist on the R3000A).
func (c *CPU) execCop0(i instruction) {
	switch i.rs() {
	case 0x00: // MFC0
		c.delayedLoad(i.rt(), c.cop0.Read(i.rd()))
	case 0x04: // MTC0
		c.cop0.Write(i.rd(), c.reg(i.rt()))
	case 0x10: // RFE (rs 0x10 with funct 010000)
		if i.funct() == 0x10 {
			c.cop0.LeaveException()
		}
	default:
		c.raiseException(excRI, c.currentPC, c.delaySlot, 0, 0)
	}
}

// execCop2 handles MFC2/CFC2/MTC2/CTC2 register moves and GTE opcodes;
// the full arithmetic pipeline lives in gte.go.
func (c *CPU) execCop2(i instruction) {
	switch {
	case i.rs() == 0x00: // MFC2
		c.delayedLoad(i.rt(), c.gte.ReadData(i.rd()))
	case i.rs() == 0x02: // CFC2
		c.delayedLoad(i.rt(), c.gte.ReadControl(i.rd()))
	case i.rs() == 0x04: // MTC2
		c.gte.WriteData(i.rd(), c.reg(i.rt()))
	case i.rs() == 0x06: // CTC2
		c.gte.WriteControl(i.rd(), c.reg(i.rt()))
	case uint32(i)&(1<<25) != 0: // GTE command (bit 25 set)
		c.gte.Execute(uint32(i) & 0x1FF_FFFF)
	default:
		c.raiseException(excRI, c.currentPC, c.delaySlot, 0, 0)
	}
}

func (c *CPU) execLWC2(i instruction) {
	addr := c.effectiveAddress(i)
	if !IsAligned(addr, AccessWord) {
		c.raiseException(excAdEL, c.currentPC, c.delaySlot, addr, 0)
		return
	}
	value, ok := c.bus.ReadWordChecked(addr)
	if !ok {
		c.raiseException(excDBE, c.currentPC, c.delaySlot, addr, 0)
		return
	}
	c.gte.WriteData(i.rt(), value)
}

func (c *CPU) execSWC2(i instruction) {
	addr := c.effectiveAddress(i)
	if !IsAligned(addr, AccessWord) {
		c.raiseException(excAdES, c.currentPC, c.delaySlot, addr, 0)
		return
	}
	c.bus.WriteWord(addr, c.gte.ReadData(i.rt()))
}
