package compiler

import "github.com/dust-lang/dust/internal/types"

// localVar is a named, stack-slot-resident binding. Shadowing
// allocates a new slot; the old slot lives until its scope closes.
type localVar struct {
	name    string
	reg     uint16
	typ     types.Type
	mutable bool
}

// blockScope records where a block's locals began, so closing the
// block can truncate both the locals slice and the register
// top-of-stack pointer in one step.
type blockScope struct {
	firstLocal int
	savedTop   uint16
}

// loopCtx tracks a loop's start instruction (for the backward JUMP)
// and the list of BREAK jumps to patch once the loop's end is known.
type loopCtx struct {
	startInstr int
	breakJumps []int
}

// funcState holds everything local to compiling one function body —
// pushed/popped around nested function compilation, since each
// function body compiles into its own chunk.
type funcState struct {
	locals    []localVar
	scopes    []blockScope
	nextReg   uint16
	maxReg    uint16
	loopStack []*loopCtx
	deadCode  bool
	parent    *funcState
}

func newFuncState(parent *funcState) *funcState {
	return &funcState{parent: parent}
}

// allocReg bumps the top-of-stack pointer and returns a fresh
// temporary register.
func (fs *funcState) allocReg() uint16 {
	r := fs.nextReg
	fs.nextReg++
	if fs.nextReg > fs.maxReg {
		fs.maxReg = fs.nextReg
	}
	return r
}

// freeTo recedes the top-of-stack pointer back to r, releasing any
// temporaries allocated above it. After a compound expression is
// consumed by its parent, the top pointer recedes this way.
func (fs *funcState) freeTo(r uint16) {
	if r < fs.nextReg {
		fs.nextReg = r
	}
}

func (fs *funcState) pushScope() {
	fs.scopes = append(fs.scopes, blockScope{firstLocal: len(fs.locals), savedTop: fs.nextReg})
}

// popScope truncates locals declared in the closing block and
// recedes the register pointer to where the block began. A block with
// a tail value keeps it alive itself: compileBlock moves the value to
// that register and sets the pointer just above it after the pop.
func (fs *funcState) popScope() blockScope {
	top := fs.scopes[len(fs.scopes)-1]
	fs.scopes = fs.scopes[:len(fs.scopes)-1]
	fs.locals = fs.locals[:top.firstLocal]
	fs.nextReg = top.savedTop
	return top
}

func (fs *funcState) declareLocal(name string, reg uint16, typ types.Type, mutable bool) {
	fs.locals = append(fs.locals, localVar{name: name, reg: reg, typ: typ, mutable: mutable})
}

// resolveLocal looks up the innermost binding named name, matching
// shadowing semantics (most recently declared wins).
func (fs *funcState) resolveLocal(name string) (localVar, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return fs.locals[i], true
		}
	}
	return localVar{}, false
}

func (fs *funcState) currentLoop() *loopCtx {
	if len(fs.loopStack) == 0 {
		return nil
	}
	return fs.loopStack[len(fs.loopStack)-1]
}

func (fs *funcState) pushLoop(start int) *loopCtx {
	l := &loopCtx{startInstr: start}
	fs.loopStack = append(fs.loopStack, l)
	return l
}

func (fs *funcState) popLoop() {
	fs.loopStack = fs.loopStack[:len(fs.loopStack)-1]
}
