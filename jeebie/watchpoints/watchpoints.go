// Package watchpoints implements the debugger's breakpoint engine: a set of
// address-range triggers that can be attached to memory reads, writes,
// instruction fetches, or jumps, with an optional value filter.
package watchpoints

// Trigger is the kind of bus activity a Watchpoint reacts to.
type Trigger uint8

const (
	TriggerRead Trigger = 1 << iota
	TriggerWrite
	TriggerExecute
	TriggerJump
)

// Watchpoint describes one breakpoint: an inclusive address range, which
// trigger kinds it reacts to, and an optional value it must match.
type Watchpoint struct {
	ID      uint32
	Enabled bool

	Low, High uint16

	OnRead    bool
	OnWrite   bool
	OnExecute bool
	OnJump    bool

	// ValueMatch, if non-nil, restricts the watchpoint to hits where the
	// observed byte equals *ValueMatch.
	ValueMatch *uint8

	Message string
}

func (w *Watchpoint) matchesAddr(addr uint16) bool {
	return w.Enabled && addr >= w.Low && addr <= w.High
}

func (w *Watchpoint) matchesValue(value *uint8) bool {
	if w.ValueMatch == nil {
		return true
	}
	if value == nil {
		return false
	}
	return *value == *w.ValueMatch
}

// Hit records which watchpoint fired and the bus activity that triggered it.
type Hit struct {
	ID      uint32
	Trigger Trigger
	Addr    uint16
	Value   *uint8
	PC      *uint16
}

// Engine owns the active watchpoint set and the single pending hit latch.
// A hit is "latched": once one trigger fires, further notes are ignored
// until the consumer calls TakeHit or ClearHit.
type Engine struct {
	watchpoints []Watchpoint

	hasRead  bool
	hasWrite bool

	suspended bool
	pending   *Hit
}

// NewEngine returns an empty, unsuspended engine.
func NewEngine() *Engine {
	return &Engine{}
}

// SetWatchpoints replaces the active set and recomputes the read/write
// fast-path flags used to skip NoteRead/NoteWrite entirely when nothing is
// listening for that kind of access.
func (e *Engine) SetWatchpoints(points []Watchpoint) {
	e.watchpoints = points
	e.recomputeFastPaths()
}

// Watchpoints returns the currently configured set.
func (e *Engine) Watchpoints() []Watchpoint {
	return e.watchpoints
}

func (e *Engine) recomputeFastPaths() {
	e.hasRead = false
	e.hasWrite = false
	for _, w := range e.watchpoints {
		if !w.Enabled {
			continue
		}
		if w.OnRead {
			e.hasRead = true
		}
		if w.OnWrite {
			e.hasWrite = true
		}
	}
}

// SetSuspended disables hit detection without discarding the configured
// watchpoints, used while the debugger itself is stepping through memory.
func (e *Engine) SetSuspended(suspended bool) {
	e.suspended = suspended
}

// Suspended reports whether hit detection is currently disabled.
func (e *Engine) Suspended() bool {
	return e.suspended
}

// TakeHit returns and clears the latched hit, if any.
func (e *Engine) TakeHit() *Hit {
	h := e.pending
	e.pending = nil
	return h
}

// ClearHit discards the latched hit without returning it.
func (e *Engine) ClearHit() {
	e.pending = nil
}

func (e *Engine) noteAddrOnly(trigger Trigger, pc uint16, addr uint16) {
	if e.suspended || e.pending != nil {
		return
	}
	for i := range e.watchpoints {
		w := &e.watchpoints[i]
		triggered := false
		switch trigger {
		case TriggerExecute:
			triggered = w.OnExecute
		case TriggerJump:
			triggered = w.OnJump
		}
		if !triggered || !w.matchesAddr(addr) || w.ValueMatch != nil {
			continue
		}
		pcCopy := pc
		e.pending = &Hit{ID: w.ID, Trigger: trigger, Addr: addr, PC: &pcCopy}
		return
	}
}

// NoteRead should be called on every memory read; it is a fast no-op unless
// at least one enabled watchpoint is listening for reads.
func (e *Engine) NoteRead(pc, addr uint16, value uint8) {
	if e.suspended || !e.hasRead || e.pending != nil {
		return
	}
	for i := range e.watchpoints {
		w := &e.watchpoints[i]
		if !w.Enabled || !w.OnRead || !w.matchesAddr(addr) || !w.matchesValue(&value) {
			continue
		}
		pcCopy, v := pc, value
		e.pending = &Hit{ID: w.ID, Trigger: TriggerRead, Addr: addr, Value: &v, PC: &pcCopy}
		return
	}
}

// NoteWrite should be called on every memory write.
func (e *Engine) NoteWrite(pc, addr uint16, value uint8) {
	if e.suspended || !e.hasWrite || e.pending != nil {
		return
	}
	for i := range e.watchpoints {
		w := &e.watchpoints[i]
		if !w.Enabled || !w.OnWrite || !w.matchesAddr(addr) || !w.matchesValue(&value) {
			continue
		}
		pcCopy, v := pc, value
		e.pending = &Hit{ID: w.ID, Trigger: TriggerWrite, Addr: addr, Value: &v, PC: &pcCopy}
		return
	}
}

// NoteExecute should be called when the CPU fetches an opcode byte at pc.
func (e *Engine) NoteExecute(pc uint16) {
	e.noteAddrOnly(TriggerExecute, pc, pc)
}

// NoteJump should be called when control flow changes non-sequentially
// (CALL/RET/JP/JR/RST/interrupt dispatch), with target as the new PC.
func (e *Engine) NoteJump(pc, target uint16) {
	e.noteAddrOnly(TriggerJump, pc, target)
}
