package jeebie

import (
	"fmt"
	"io/ioutil"
	"log/slog"
	"sync"

	"github.com/valerio/go-jeebie/jeebie/addr"
	"github.com/valerio/go-jeebie/jeebie/cpu"
	"github.com/valerio/go-jeebie/jeebie/debug"
	"github.com/valerio/go-jeebie/jeebie/input/action"
	"github.com/valerio/go-jeebie/jeebie/memory"
	"github.com/valerio/go-jeebie/jeebie/timing"
	"github.com/valerio/go-jeebie/jeebie/video"
)

// DebuggerState represents the current debugger mode
type DebuggerState int

const (
	DebuggerRunning   DebuggerState = iota // Normal execution
	DebuggerPaused                         // Paused, waiting for commands
	DebuggerStep                           // Execute one instruction then pause
	DebuggerStepFrame                      // Execute one frame then pause
)

// DMG is the root struct and entry point for running the emulation of a
// DMG/CGB system.
type DMG struct {
	bus     *Bus
	limiter timing.Limiter

	// Construction parameters, retained so Reset/ResetPowerOn can rebuild
	// an identical machine from scratch.
	romData   []byte
	mode      memory.Mode
	revision  memory.Revision
	bootROM   []byte
	poweredOn bool

	// Debugger state
	debuggerState    DebuggerState
	debuggerMutex    sync.RWMutex
	stepRequested    bool
	frameRequested   bool
	instructionCount uint64
	frameCount       uint64
}

// buildCartridge turns the stored ROM bytes into a Cartridge, falling back
// to an empty cartridge when no ROM was loaded (the New() debug case).
func (e *DMG) buildCartridge() *memory.Cartridge {
	if len(e.romData) == 0 {
		return memory.NewCartridge()
	}
	return memory.NewCartridgeWithData(e.romData)
}

func (e *DMG) init(mem *memory.MMU) {
	var c *cpu.CPU
	switch {
	case e.poweredOn:
		c = cpu.NewPoweredOn(mem)
	case mem.IsCGB():
		c = cpu.NewCGB(mem)
	default:
		c = cpu.New(mem)
	}

	e.bus = NewBus(c, mem, video.NewGpu(mem))
	e.limiter = timing.NewNoOpLimiter()

	mem.SetTimerSeed(0xABCC)
	mem.SetRevision(e.revision)

	if e.poweredOn && len(e.bootROM) > 0 {
		mem.SetBootROM(e.bootROM)
	}
}

// New creates a new emulator instance
func New() *DMG {
	e := &DMG{}
	e.init(memory.NewWithCartridge(e.buildCartridge()))

	return e
}

// NewWithFile creates a new emulator instance and loads the file specified into it.
func NewWithFile(path string) (*DMG, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	slog.Debug("Loaded ROM data", "size", len(data))

	e := &DMG{romData: data}
	e.init(memory.NewWithCartridge(e.buildCartridge()))

	return e, nil
}

// NewWithMode creates a new emulator instance from ROM bytes, forcing the
// hardware family instead of inferring it from the cartridge header's CGB
// flag.
func NewWithMode(data []byte, mode memory.Mode) *DMG {
	e := &DMG{romData: data, mode: mode}
	e.init(memory.NewWithMode(e.buildCartridge(), mode))

	return e
}

// NewWithRevisions creates a new emulator instance pinned to a specific
// hardware family and chip revision, post-boot-ROM (skip-boot) state.
// The revision gates quirks (the CGB DMA/window-timing bug, the PCM mask
// glitch) that differ across chip steppings within the same family.
func NewWithRevisions(data []byte, mode memory.Mode, revision memory.Revision) *DMG {
	e := &DMG{romData: data, mode: mode, revision: revision}
	e.init(memory.NewWithMode(e.buildCartridge(), mode))

	return e
}

// NewPowerOnWithRevisions creates a new emulator instance in the true
// cold-power-on state: every CPU register zeroed and PC at 0x0000, with
// bootROM mapped over the low memory so it actually runs instead of being
// skipped straight to game code.
func NewPowerOnWithRevisions(data []byte, bootROM []byte, mode memory.Mode, revision memory.Revision) *DMG {
	e := &DMG{romData: data, mode: mode, revision: revision, bootROM: bootROM, poweredOn: true}
	e.init(memory.NewWithMode(e.buildCartridge(), mode))

	return e
}

// Reset rebuilds the machine from the original ROM bytes and construction
// parameters (mode, revision, power-on/skip-boot mode), clearing all
// runtime and debugger state back to the state the DMG started in.
func (e *DMG) Reset() {
	e.debuggerMutex.Lock()
	e.debuggerState = DebuggerRunning
	e.stepRequested = false
	e.frameRequested = false
	e.instructionCount = 0
	e.frameCount = 0
	e.debuggerMutex.Unlock()

	e.init(memory.NewWithMode(e.buildCartridge(), e.mode))
}

// ResetPowerOn is Reset, but forces the true cold-power-on state regardless
// of how the machine was originally constructed.
func (e *DMG) ResetPowerOn() {
	e.poweredOn = true
	e.Reset()
}

func (e *DMG) RunUntilFrame() error {
	e.debuggerMutex.RLock()
	state := e.debuggerState
	e.debuggerMutex.RUnlock()

	// Handle paused state - don't execute anything
	if state == DebuggerPaused {
		return nil
	}

	// Handle step instruction - execute one instruction then pause
	if state == DebuggerStep {
		e.debuggerMutex.Lock()
		if e.stepRequested {
			e.stepRequested = false
			e.debuggerMutex.Unlock()

			// Execute one CPU instruction
			oldPC := e.bus.CPU.GetPC()
			e.bus.TickInstruction()
			e.instructionCount++

			// Log the executed instruction
			slog.Debug("Step executed", "pc", fmt.Sprintf("0x%04X", oldPC), "new_pc", fmt.Sprintf("0x%04X", e.bus.CPU.GetPC()))

			// Pause after execution
			e.SetDebuggerState(DebuggerPaused)
		} else {
			e.debuggerMutex.Unlock()
		}
		return nil
	}

	// Handle step frame - execute one frame then pause
	if state == DebuggerStepFrame {
		e.debuggerMutex.Lock()
		frameRequested := e.frameRequested
		if frameRequested {
			e.frameRequested = false
		}
		e.debuggerMutex.Unlock()

		if frameRequested {
			// Execute one full frame
			total := 0
			for {
				cycles := e.bus.TickInstruction()
				e.instructionCount++
				total += cycles

				if total >= 70224 {
					break
				}
			}
			e.frameCount++
			slog.Debug("Frame step completed", "frame", e.frameCount, "instructions", e.instructionCount)
			e.SetDebuggerState(DebuggerPaused)
		}
		return nil
	}

	// Normal execution (DebuggerRunning)
	total := 0
	for {
		cycles := e.bus.TickInstruction()
		e.instructionCount++

		total += cycles

		if total >= 70224 {
			e.frameCount++
			// Log every 60 frames (once per second at 60 FPS) only when running
			if e.frameCount%60 == 0 {
				slog.Debug("Frame completed", "frame", e.frameCount, "pc", fmt.Sprintf("0x%04X", e.bus.CPU.GetPC()))
			}
			return nil
		}
	}
}

func (e *DMG) GetCurrentFrame() *video.FrameBuffer {
	return e.bus.GPU.GetFrameBuffer()
}

func (e *DMG) HandleKeyPress(key memory.JoypadKey) {
	e.bus.MMU.HandleKeyPress(key)
}

func (e *DMG) HandleKeyRelease(key memory.JoypadKey) {
	e.bus.MMU.HandleKeyRelease(key)
}

// HandleAction translates a backend input action into joypad presses and
// releases. Non-game-input actions (pause, step, quit, debug toggles) are
// intercepted upstream by the backend before reaching the emulator.
func (e *DMG) HandleAction(act action.Action, pressed bool) {
	key, ok := gbButtonKeys[act]
	if !ok {
		return
	}

	if pressed {
		e.HandleKeyPress(key)
	} else {
		e.HandleKeyRelease(key)
	}
}

var gbButtonKeys = map[action.Action]memory.JoypadKey{
	action.GBButtonA:      memory.JoypadA,
	action.GBButtonB:      memory.JoypadB,
	action.GBButtonStart:  memory.JoypadStart,
	action.GBButtonSelect: memory.JoypadSelect,
	action.GBDPadUp:       memory.JoypadUp,
	action.GBDPadDown:     memory.JoypadDown,
	action.GBDPadLeft:     memory.JoypadLeft,
	action.GBDPadRight:    memory.JoypadRight,
}

func (e *DMG) GetCPU() *cpu.CPU {
	return e.bus.CPU
}

// ExtractDebugData snapshots CPU, memory, OAM and VRAM state for debug
// displays. Returns nil when the emulator hasn't been initialized yet.
func (e *DMG) ExtractDebugData() *debug.CompleteDebugData {
	if e.bus == nil || e.bus.CPU == nil || e.bus.MMU == nil {
		return nil
	}

	c := e.bus.CPU
	mem := e.bus.MMU

	cpuState := &debug.CPUState{
		A: c.GetA(), F: c.GetF(),
		B: c.GetB(), C: c.GetC(),
		D: c.GetD(), E: c.GetE(),
		H: c.GetH(), L: c.GetL(),
		SP:     c.GetSP(),
		PC:     c.GetPC(),
		IME:    c.GetIME(),
		Cycles: c.GetCycles(),
	}

	pc := c.GetPC()
	const snapshotRadius = 16
	start := pc
	if start > snapshotRadius {
		start -= snapshotRadius
	} else {
		start = 0
	}

	size := 2 * snapshotRadius
	if uint32(start)+uint32(size) > 0x10000 {
		size = int(0x10000 - uint32(start))
	}
	bytes := make([]uint8, size)
	for i := range bytes {
		bytes[i] = mem.Read(start + uint16(i))
	}

	currentLine := int(mem.Read(addr.LY))

	return &debug.CompleteDebugData{
		OAM:             debug.ExtractOAMData(mem, currentLine, 8),
		VRAM:            debug.ExtractVRAMData(mem),
		CPU:             cpuState,
		Memory:          &debug.MemorySnapshot{StartAddr: start, Bytes: bytes},
		DebuggerState:   debug.DebuggerState(e.GetDebuggerState()),
		InterruptEnable: mem.Read(addr.IE),
		InterruptFlags:  mem.Read(addr.IF),

		SpriteVis:     debug.ExtractSpriteData(mem, uint8(currentLine)),
		BackgroundVis: debug.ExtractBackgroundData(mem),
		PaletteVis:    debug.ExtractPaletteData(mem),
		Audio:         debug.ExtractAudioData(mem, mem.APU),
	}
}

// SetFrameLimiter sets the frame rate limiter used by RunUntilFrame's callers.
func (e *DMG) SetFrameLimiter(limiter timing.Limiter) {
	if limiter == nil {
		e.limiter = timing.NewNoOpLimiter()
	} else {
		e.limiter = limiter
	}
}

// ResetFrameTiming resets the frame limiter's internal timing state.
func (e *DMG) ResetFrameTiming() {
	e.limiter.Reset()
}

// Debugger control methods
func (e *DMG) SetDebuggerState(state DebuggerState) {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.debuggerState = state
	slog.Debug("Debugger state changed", "state", state)
}

func (e *DMG) GetDebuggerState() DebuggerState {
	e.debuggerMutex.RLock()
	defer e.debuggerMutex.RUnlock()
	return e.debuggerState
}

func (e *DMG) DebuggerPause() {
	e.SetDebuggerState(DebuggerPaused)
	slog.Info("Emulator paused")
}

func (e *DMG) DebuggerResume() {
	e.SetDebuggerState(DebuggerRunning)
	slog.Info("Emulator resumed")
}

func (e *DMG) DebuggerStepInstruction() {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.stepRequested = true
	e.debuggerState = DebuggerStep
	slog.Info("Step instruction requested")
}

func (e *DMG) DebuggerStepFrame() {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.frameRequested = true
	e.debuggerState = DebuggerStepFrame
	slog.Info("Step frame requested")
}

func (e *DMG) GetInstructionCount() uint64 {
	return e.instructionCount
}

func (e *DMG) GetFrameCount() uint64 {
	return e.frameCount
}

func (e *DMG) GetMMU() *memory.MMU {
	return e.bus.MMU
}
