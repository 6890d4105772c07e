package cpu

import (
	"github.com/valerio/go-jeebie/jeebie/addr"
	"github.com/valerio/go-jeebie/jeebie/bit"
	"github.com/valerio/go-jeebie/jeebie/memory"
)

// Flag is one of the 4 possible flags used in the flag register (low part of F)
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

// interruptVectors holds the ISR entry point for each interrupt bit, in
// priority order (VBlank highest, Joypad lowest).
var interruptVectors = [5]uint16{0x40, 0x48, 0x50, 0x58, 0x60}

// CPU is the main struct holding Sharp LR35902 state: the 8 registers
// (paired as AF/BC/DE/HL), stack pointer, program counter, and the
// interrupt/halt bookkeeping needed to reproduce hardware quirks around
// HALT, EI and STOP.
type CPU struct {
	memory *memory.MMU

	a, f uint8
	b, c uint8
	d, e uint8
	h, l uint8

	sp uint16
	pc uint16

	currentOpcode uint16

	interruptsEnabled bool
	eiPending         bool
	halted            bool
	haltBug           bool
	stopped           bool

	cycles uint64
}

// New returns a CPU set up in the post-boot-ROM power-on state (PC=0x100,
// as if the DMG boot ROM had just handed off control).
func New(mem *memory.MMU) *CPU {
	return &CPU{
		memory: mem,
		a:      0x01,
		f:      0xB0,
		b:      0x00,
		c:      0x13,
		d:      0x00,
		e:      0xD8,
		h:      0x01,
		l:      0x4D,
		sp:     0xFFFE,
		pc:     0x0100,
	}
}

// NewCGB returns a CPU set up in the post-boot-ROM power-on state for CGB
// hardware, which seeds A and the upper registers differently from DMG.
func NewCGB(mem *memory.MMU) *CPU {
	return &CPU{
		memory: mem,
		a:      0x11,
		f:      0x80,
		b:      0x00,
		c:      0x00,
		d:      0x00,
		e:      0x08,
		h:      0x00,
		l:      0x0D,
		sp:     0xFFFE,
		pc:     0x0100,
	}
}

// NewPoweredOn returns a CPU in the true cold power-on state, with every
// register zeroed and PC at 0x0000 so a boot ROM mapped over the low memory
// runs from scratch instead of being skipped.
func NewPoweredOn(mem *memory.MMU) *CPU {
	return &CPU{
		memory: mem,
		sp:     0xFFFE,
	}
}

// GetPC returns the current program counter, mainly for the debugger/UI.
func (c *CPU) GetPC() uint16 {
	return c.pc
}

// GetSP returns the current stack pointer, mainly for the debugger/UI.
func (c *CPU) GetSP() uint16 {
	return c.sp
}

func (c *CPU) GetA() uint8 { return c.a }
func (c *CPU) GetF() uint8 { return c.f }
func (c *CPU) GetB() uint8 { return c.b }
func (c *CPU) GetC() uint8 { return c.c }
func (c *CPU) GetD() uint8 { return c.d }
func (c *CPU) GetE() uint8 { return c.e }
func (c *CPU) GetH() uint8 { return c.h }
func (c *CPU) GetL() uint8 { return c.l }

// GetIME reports whether the interrupt master enable flag is currently set.
func (c *CPU) GetIME() bool {
	return c.interruptsEnabled
}

// GetCycles returns the running T-cycle count since power-on.
func (c *CPU) GetCycles() uint64 {
	return c.cycles
}

// GetFlagString renders the Z/N/H/C flags as a readable string, uppercase
// when set and a dash when clear.
func (c *CPU) GetFlagString() string {
	flags := [4]struct {
		letter byte
		flag   Flag
	}{
		{'Z', zeroFlag},
		{'N', subFlag},
		{'H', halfCarryFlag},
		{'C', carryFlag},
	}

	buf := make([]byte, 4)
	for i, f := range flags {
		if c.isSetFlag(f.flag) {
			buf[i] = f.letter
		} else {
			buf[i] = '-'
		}
	}
	return string(buf)
}

// Tick decodes and executes a single instruction (or services a pending
// interrupt, or burns a cycle while halted/stopped), returning the number
// of T-cycles consumed.
func (c *CPU) Tick() int {
	defer c.applyEIDelay()

	if c.stopped {
		if c.memory.ToggleSpeedIfArmed() {
			c.stopped = false
		}
		c.memory.Tick(4)
		c.cycles += 4
		return 4
	}

	wasHalted := c.halted
	cyclesBefore := c.cycles
	pending := c.handleInterrupts()
	dispatched := c.cycles != cyclesBefore

	if wasHalted {
		if pending {
			c.halted = false
			if !dispatched {
				c.haltBug = true
			}
		} else {
			c.memory.Tick(4)
			c.cycles += 4
			return 4
		}
	}

	if dispatched {
		c.memory.Tick(20)
		return 20
	}

	op := Decode(c)
	if c.currentOpcode&0xFF00 == 0xCB00 {
		c.pc += 2
	} else {
		c.pc++
	}

	if c.haltBug {
		// HALT-with-IME=0 quirk: the instruction right after HALT has
		// its first byte read twice, because PC fails to advance once.
		c.pc--
		c.haltBug = false
	}

	cycles := op(c)
	c.cycles += uint64(cycles)

	// CB-prefixed opcodes already tick the memory bus themselves around
	// their Read/Write calls (see opcodes_cb.go); every other opcode
	// relies on this single catch-up tick against its returned duration.
	if c.currentOpcode&0xFF00 != 0xCB00 {
		c.memory.Tick(cycles)
	}

	return cycles
}

func (c *CPU) applyEIDelay() {
	if c.eiPending {
		c.eiPending = false
		c.interruptsEnabled = true
	}
}

// handleInterrupts checks IF&IE for a pending interrupt. It always reports
// whether one is pending (used to wake the CPU from HALT even with IME
// off), and additionally dispatches it - pushing PC, jumping to the
// vector, clearing IME and the serviced IF bit - when IME is enabled.
func (c *CPU) handleInterrupts() bool {
	ifReg := c.memory.Read(addr.IF)
	ieReg := c.memory.Read(addr.IE)
	pending := ifReg & ieReg & 0x1F

	if pending == 0 {
		return false
	}

	if !c.interruptsEnabled {
		return true
	}

	for i := uint8(0); i < 5; i++ {
		mask := uint8(1) << i
		if pending&mask == 0 {
			continue
		}

		c.interruptsEnabled = false
		c.memory.Write(addr.IF, ifReg&^mask)
		c.pushStack(c.pc)
		c.pc = interruptVectors[i]
		c.cycles += 20
		break
	}

	return true
}

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &^= uint8(flag)
}

func (c *CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
	} else {
		c.resetFlag(flag)
	}
}

// flagToBit returns 1 if the flag is set, 0 otherwise.
func (c *CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}
	return 0
}

// readImmediate reads the byte at PC and advances PC by one.
func (c *CPU) readImmediate() uint8 {
	value := c.memory.Read(c.pc)
	c.pc++
	return value
}

// readImmediateWord reads the little-endian word at PC and advances PC by two.
func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return bit.Combine(high, low)
}

func (c *CPU) getBC() uint16 { return bit.Combine(c.b, c.c) }
func (c *CPU) getDE() uint16 { return bit.Combine(c.d, c.e) }
func (c *CPU) getHL() uint16 { return bit.Combine(c.h, c.l) }

func (c *CPU) setBC(value uint16) {
	c.b = bit.High(value)
	c.c = bit.Low(value)
}

func (c *CPU) setDE(value uint16) {
	c.d = bit.High(value)
	c.e = bit.Low(value)
}

func (c *CPU) setHL(value uint16) {
	c.h = bit.High(value)
	c.l = bit.Low(value)
}
