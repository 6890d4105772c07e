package jeebie

import (
	"github.com/valerio/go-jeebie/jeebie/addr"
	"github.com/valerio/go-jeebie/jeebie/cpu"
	"github.com/valerio/go-jeebie/jeebie/memory"
	"github.com/valerio/go-jeebie/jeebie/video"
)

// BusInterface defines the interface for component communication
type BusInterface interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
	RequestInterrupt(interrupt addr.Interrupt)
}

// Bus provides centralized component communication
type Bus struct {
	CPU *cpu.CPU
	MMU *memory.MMU
	GPU *video.GPU
}

// NewBus wires a Bus around an already-constructed CPU/MMU/GPU triple.
func NewBus(c *cpu.CPU, mmu *memory.MMU, gpu *video.GPU) *Bus {
	return &Bus{CPU: c, MMU: mmu, GPU: gpu}
}

func (b *Bus) Read(address uint16) byte {
	return b.MMU.Read(address)
}

func (b *Bus) Write(address uint16, value byte) {
	b.MMU.Write(address, value)
}

// Tick advances components by the given number of cycles
// Called by opcodes during execution for precise timer/serial timing
func (b *Bus) Tick(cycles int) {
	b.MMU.Tick(cycles)
}

// TickInstruction executes one CPU instruction and ticks all components
// Returns the number of cycles consumed
func (b *Bus) TickInstruction() int {
	prevDiv := b.MMU.DivCounter()
	cycles := b.CPU.Tick()
	total := cycles

	// CPU.Tick has already advanced the MMU (timer/serial/OAM DMA) by these
	// cycles; GPU and APU are ticked here since they aren't reachable through
	// the MMU. The APU's frame sequencer is clocked off the falling edge of
	// the DIV bit its speed mode watches, so it needs DIV's value on both
	// sides of the instruction.
	newDiv := b.MMU.DivCounter()
	b.GPU.Tick(cycles)
	b.MMU.APU.Tick(cycles, prevDiv, newDiv, b.MMU.DoubleSpeed())

	// A General-Purpose HDMA transfer triggered by this instruction's MMU
	// write blocks the CPU for a number of cycles proportional to its size;
	// fold that stall into every component before handing cycles back.
	if stall := b.MMU.ConsumeStallCycles(); stall > 0 {
		prevDiv = newDiv
		b.MMU.Tick(stall)
		newDiv = b.MMU.DivCounter()
		b.GPU.Tick(stall)
		b.MMU.APU.Tick(stall, prevDiv, newDiv, b.MMU.DoubleSpeed())
		total += stall
	}

	return total
}

func (b *Bus) RequestInterrupt(interrupt addr.Interrupt) {
	b.MMU.RequestInterrupt(interrupt)
}

func (b *Bus) ReadBit(index uint8, address uint16) bool {
	return b.MMU.ReadBit(index, address)
}
