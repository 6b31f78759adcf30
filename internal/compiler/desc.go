package compiler

import "github.com/dust-lang/dust/internal/types"

// descKind tags how a compiled expression's value is held once its
// parselet returns. There is no AST node to inspect afterward — the
// descriptor IS the result of compiling the expression: each
// expression function emits code and returns a descriptor of where
// the result lives, not a tree to walk later.
type descKind int

const (
	descRegister  descKind = iota // live value sitting in a register
	descConstInt                  // int constant, not yet materialized into a register
	descConstFloat
	descConstStr
	descConstChar
	descConstByte
	descImmediateBool // literal true/false, foldable without touching the constant pool
	descJump          // a boolean result only reachable via patched JUMP_IF_* lists (short circuit)
	descGlobalRef     // reference to a top-level function, resolved by name at the use site
	descNativeRef     // reference to a native function, resolved by name at the use site
)

// desc describes one compiled expression's result.
//
// A relational/logical expression used directly as an if/while
// condition never needs to materialize a 0/1 into a register at all:
// its trueJumps/falseJumps carry the not-yet-patched jump instruction
// indices, and the statement compiling the condition patches them
// straight to the branch targets (comparison fusion). toRegister
// forces materialization for every other use site (assignment, call
// argument, list element, return value).
type desc struct {
	kind descKind
	typ  types.Type

	reg uint16

	constIdx uint16
	boolVal  bool

	// nativeName identifies the callee for a descNativeRef; descGlobalRef
	// callees are identified by constIdx (the Prototypes slot instead).
	nativeName string

	// callInstrIdx is the instruction index of the CALL this descriptor
	// came straight out of (callExpr's descGlobalRef branch only), valid
	// when isCall is set. returnStatement uses it to recognize a call in
	// tail position — nothing emitted after it before the return — and
	// rewrite CALL into TAIL_CALL in place.
	isCall       bool
	callInstrIdx int

	// trueJumps/falseJumps hold indices of not-yet-patched JUMP_IF_TRUE/
	// JUMP_IF_FALSE instructions whose target is wherever the caller
	// decides true/false should go.
	trueJumps  []int
	falseJumps []int
}

func regDesc(reg uint16, typ types.Type) desc {
	return desc{kind: descRegister, reg: reg, typ: typ}
}

func constIntDesc(idx uint16) desc   { return desc{kind: descConstInt, constIdx: idx, typ: types.Int} }
func constFloatDesc(idx uint16) desc { return desc{kind: descConstFloat, constIdx: idx, typ: types.Float} }
func constStrDesc(idx uint16) desc   { return desc{kind: descConstStr, constIdx: idx, typ: types.Str} }
func constCharDesc(idx uint16) desc  { return desc{kind: descConstChar, constIdx: idx, typ: types.Char} }
func constByteDesc(idx uint16) desc  { return desc{kind: descConstByte, constIdx: idx, typ: types.Byte} }

func boolDesc(v bool) desc { return desc{kind: descImmediateBool, boolVal: v, typ: types.Bool} }

// isConstFolded reports whether d is a literal the compiler can fold
// at compile time without emitting anything.
func (d desc) isConstFolded() bool {
	switch d.kind {
	case descConstInt, descConstFloat, descConstStr, descConstChar, descConstByte, descImmediateBool:
		return true
	default:
		return false
	}
}

// operand reports the (isConst, index) pair to embed directly into an
// instruction operand slot when d is const-foldable into RK form,
// alongside whether that fusion is legal for this descriptor kind at
// all (descJump never is — it has no value).
func (d desc) operand() (isConst bool, idx uint16, ok bool) {
	switch d.kind {
	case descRegister:
		return false, d.reg, true
	case descConstInt, descConstFloat, descConstStr, descConstChar, descConstByte:
		return true, d.constIdx, true
	default:
		return false, 0, false
	}
}
