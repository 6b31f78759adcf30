// Package vm implements Dust's register-based virtual machine: a
// function-table dispatch loop over two call-stack disciplines (a
// bounded native-recursion prefix and a heap-allocated virtual call
// stack for deep recursion), an object pool with generation-tagged
// handles, and native-call dispatch.
package vm

import (
	"sync/atomic"

	"github.com/dust-lang/dust/internal/bytecode"
	"github.com/dust-lang/dust/internal/config"
	"github.com/dust-lang/dust/internal/natives"
)

// InitialRegisterCount is the register file's starting capacity,
// grown in RegisterGrowthIncrement chunks as deeper frames need more
// room — the same dynamic-array-with-growth-increment idiom the
// teacher uses for its operand stack.
const (
	InitialRegisterCount    = 1024
	RegisterGrowthIncrement = 1024

	// SystemStackDepth (K) is how many call frames run as direct Go
	// recursion before the dispatcher spills to the heap-allocated
	// virtual call stack.
	SystemStackDepth = 64
)

// Frame is one function activation: its chunk, instruction pointer,
// and the base index into the VM's flat register file where its
// register window starts.
type Frame struct {
	chunk *bytecode.Chunk
	ip    int
	base  int
}

// VM executes one compiled program. Its register file and object
// pool are private to this instance — multiple VMs share no mutable
// state.
type VM struct {
	registers []Value
	pool      *ObjectPool
	natives   *natives.Table

	stackLimit  int
	internLimit int
	interrupt   int32 // set via Interrupt(), checked at safe points

	traceID string // set by the embedding for trap/debugger correlation

	lastTrap  *Trap
	lastChunk *bytecode.Chunk
	lastFrame *Frame // innermost frame at the last :regs/:trap inspection point
}

// New builds a VM bound to the given native table. Stack/intern
// limits default to config.StackLimit()/config.InternLimit() and may
// be overridden per instance with WithLimits.
func New(nativeTable *natives.Table) *VM {
	return &VM{
		registers:   make([]Value, InitialRegisterCount),
		pool:        NewObjectPool(),
		natives:     nativeTable,
		stackLimit:  config.StackLimit(),
		internLimit: config.InternLimit(),
	}
}

// WithLimits overrides the virtual-stack and object-pool headroom
// limits, used by tests that want to exercise StackOverflow/
// OutOfMemory without allocating millions of frames.
func (vm *VM) WithLimits(stackLimit, internLimit int) *VM {
	vm.stackLimit = stackLimit
	vm.internLimit = internLimit
	return vm
}

// WithTraceID stores an externally-assigned id on this VM (the CLI
// mints one with uuid.NewString() per run). Nothing in the VM reads
// it back: traps and debugger output do not include it.
func (vm *VM) WithTraceID(id string) *VM {
	vm.traceID = id
	return vm
}

// Interrupt requests cooperative cancellation: the next safe point
// (a call boundary) unwinds with Trap(Interrupted).
func (vm *VM) Interrupt() {
	atomic.StoreInt32(&vm.interrupt, 1)
}

func (vm *VM) interrupted() bool {
	return atomic.LoadInt32(&vm.interrupt) != 0
}

// Pool exposes the object pool for Display/debugger use.
func (vm *VM) Pool() *ObjectPool { return vm.pool }

// LastTrap, LastChunk and Registers expose just enough post-mortem
// state for the REPL's :trap/:dis/:regs commands — no breakpoints or
// stepping, since the VM has no suspension points visible to a user
// program.
func (vm *VM) LastTrap() *Trap            { return vm.lastTrap }
func (vm *VM) LastChunk() *bytecode.Chunk { return vm.lastChunk }
func (vm *VM) Registers() []Value         { return vm.registers }

// ensureRegisters grows the register file so index n-1 is valid.
func (vm *VM) ensureRegisters(n int) {
	if n <= len(vm.registers) {
		return
	}
	grown := len(vm.registers) + RegisterGrowthIncrement
	for grown < n {
		grown += RegisterGrowthIncrement
	}
	next := make([]Value, grown)
	copy(next, vm.registers)
	vm.registers = next
}

// Run executes chunk's top level as an implicit zero-argument call
// and returns its result value, or a Trap if execution unwound. A
// non-nil error indicates an internal VM invariant violation (e.g. an
// opcode with no registered handler), which should never happen for
// bytecode produced by this repository's own compiler.
func (vm *VM) Run(chunk *bytecode.Chunk) (Value, *Trap, error) {
	vm.ensureRegisters(chunk.RegisterCount)
	fr := Frame{chunk: chunk, ip: 0, base: 0}
	return vm.execSystem(&fr, 0)
}

// precallCheck runs the checks every call boundary must pass:
// register-window fit is handled by the caller via ensureRegisters;
// this covers object-pool headroom, the virtual stack depth limit,
// and cooperative interruption.
func (vm *VM) precallCheck(virtualDepth int) *Trap {
	if vm.interrupted() {
		return &Trap{Kind: TrapInterrupted, Message: "execution interrupted"}
	}
	if virtualDepth > vm.stackLimit {
		return &Trap{Kind: TrapStackOverflow, Message: "virtual call stack exceeded DUST_STACK_LIMIT frames"}
	}
	if vm.pool.LiveCount() >= vm.internLimit {
		vm.pool.Sweep([][]Value{vm.registers})
		if vm.pool.LiveCount() >= vm.internLimit {
			return &Trap{Kind: TrapOutOfMemory, Message: "object pool exhausted"}
		}
	}
	return nil
}

func (vm *VM) trapAt(fr *Frame, kind TrapKind, msg string) *Trap {
	t := &Trap{Kind: kind, Message: msg, ChunkName: fr.chunk.Name}
	if fr.ip < len(fr.chunk.SourceMap) {
		t.Line = fr.chunk.SourceMap[fr.ip].Line
		t.Col = fr.chunk.SourceMap[fr.ip].Col
	}
	vm.lastTrap = t
	vm.lastChunk = fr.chunk
	vm.lastFrame = fr
	return t
}
