package vm

import (
	"math"

	"github.com/dust-lang/dust/internal/bytecode"
)

// ctrlKind is the control token a handler returns: Continue, Call,
// TailCall, Return, Trap.
type ctrlKind int

const (
	ctrlContinue ctrlKind = iota
	ctrlCall
	ctrlTailCall
	ctrlReturn
	ctrlTrap
)

type ctrl struct {
	kind ctrlKind

	nextIP int // ctrlContinue: where the trampoline resumes this frame

	// ctrlCall
	callee    *bytecode.Chunk
	argBase   int // absolute register index (already offset by fr.base)
	destReg   uint16
	afterCall int // fr.ip to resume at once the callee returns

	// ctrlTailCall reuses callee/argBase above; destReg/afterCall are
	// unused since the caller's frame is replaced rather than resumed.
	argCount int

	// ctrlReturn
	retVal Value

	// ctrlTrap
	trapKind TrapKind
	trapMsg  string
}

func cont(ip int) ctrl { return ctrl{kind: ctrlContinue, nextIP: ip} }

// handlerFn is one opcode's implementation: read operands out of fr's
// register window (and fr.chunk's constant pool), perform the
// operation, and report what the trampoline should do next.
type handlerFn func(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl

var handlers [256]handlerFn

func init() {
	handlers[bytecode.NOOP] = opNoop
	handlers[bytecode.LOAD_CONST] = opLoadConst
	handlers[bytecode.MOVE] = opMove

	handlers[bytecode.ADD_INT] = opIntArith(func(a, b int64) int64 { return a + b })
	handlers[bytecode.SUB_INT] = opIntArith(func(a, b int64) int64 { return a - b })
	handlers[bytecode.MUL_INT] = opIntArith(func(a, b int64) int64 { return a * b })
	handlers[bytecode.DIV_INT] = opIntDiv
	handlers[bytecode.MOD_INT] = opIntMod
	handlers[bytecode.POW_INT] = opIntPow
	handlers[bytecode.NEG_INT] = opNegInt

	handlers[bytecode.ADD_FLOAT] = opFloatArith(func(a, b float64) float64 { return a + b })
	handlers[bytecode.SUB_FLOAT] = opFloatArith(func(a, b float64) float64 { return a - b })
	handlers[bytecode.MUL_FLOAT] = opFloatArith(func(a, b float64) float64 { return a * b })
	handlers[bytecode.DIV_FLOAT] = opFloatArith(func(a, b float64) float64 { return a / b })
	handlers[bytecode.POW_FLOAT] = opFloatArith(math.Pow)
	handlers[bytecode.NEG_FLOAT] = opNegFloat

	handlers[bytecode.EQ] = opEq(false)
	handlers[bytecode.NE] = opEq(true)

	handlers[bytecode.LT_INT] = opIntCmp(func(a, b int64) bool { return a < b })
	handlers[bytecode.LE_INT] = opIntCmp(func(a, b int64) bool { return a <= b })
	handlers[bytecode.GT_INT] = opIntCmp(func(a, b int64) bool { return a > b })
	handlers[bytecode.GE_INT] = opIntCmp(func(a, b int64) bool { return a >= b })

	handlers[bytecode.LT_FLOAT] = opFloatCmp(func(a, b float64) bool { return a < b })
	handlers[bytecode.LE_FLOAT] = opFloatCmp(func(a, b float64) bool { return a <= b })
	handlers[bytecode.GT_FLOAT] = opFloatCmp(func(a, b float64) bool { return a > b })
	handlers[bytecode.GE_FLOAT] = opFloatCmp(func(a, b float64) bool { return a >= b })

	handlers[bytecode.NOT] = opNot

	handlers[bytecode.JUMP] = opJump
	handlers[bytecode.JUMP_IF_FALSE] = opJumpIfFalse
	handlers[bytecode.JUMP_IF_TRUE] = opJumpIfTrue

	handlers[bytecode.CALL] = opCall
	handlers[bytecode.TAIL_CALL] = opTailCall
	handlers[bytecode.RETURN] = opReturn

	handlers[bytecode.LIST_NEW] = opListNew
	handlers[bytecode.LIST_INDEX] = opListIndex
	handlers[bytecode.LIST_APPEND] = opListAppend

	handlers[bytecode.STR_CONCAT] = opStrConcat
	handlers[bytecode.CAST] = opCast
	handlers[bytecode.CALL_NATIVE] = opCallNative
}

func (vm *VM) reg(fr *Frame, i uint16) Value     { return vm.registers[fr.base+int(i)] }
func (vm *VM) setReg(fr *Frame, i uint16, v Value) { vm.registers[fr.base+int(i)] = v }

func opNoop(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl { return cont(fr.ip + 1) }

func opLoadConst(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	switch bytecode.TypeCode(instr.Variant()) {
	case bytecode.TInt:
		vm.setReg(fr, instr.A(), IntValue(fr.chunk.Constants.Ints[instr.B()]))
	case bytecode.TFloat:
		vm.setReg(fr, instr.A(), FloatValue(fr.chunk.Constants.Floats[instr.B()]))
	case bytecode.TByte:
		vm.setReg(fr, instr.A(), ByteValue(fr.chunk.Constants.Bytes[instr.B()]))
	case bytecode.TChar:
		vm.setReg(fr, instr.A(), CharValue(fr.chunk.Constants.Chars[instr.B()]))
	case bytecode.TStr:
		h := vm.pool.AllocStr(fr.chunk.Constants.Strs[instr.B()])
		vm.setReg(fr, instr.A(), StrValue(h))
	case bytecode.TBool:
		vm.setReg(fr, instr.A(), BoolValue(instr.B() != 0))
	}
	return cont(fr.ip + 1)
}

func opMove(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	vm.setReg(fr, instr.A(), vm.reg(fr, instr.B()))
	return cont(fr.ip + 1)
}

// intOperand/floatOperand read an arithmetic operand that may be
// fused into the instruction as a constant-pool index instead of a
// register (operand inlining) — the only opcodes the compiler emits
// RK-fused operands for are the INT/FLOAT arithmetic family
// (internal/compiler/expressions.go arithmeticOp).
func (vm *VM) intOperand(fr *Frame, isConst bool, idx uint16) int64 {
	if isConst {
		return fr.chunk.Constants.Ints[idx]
	}
	return vm.reg(fr, idx).I
}

func (vm *VM) floatOperand(fr *Frame, isConst bool, idx uint16) float64 {
	if isConst {
		return fr.chunk.Constants.Floats[idx]
	}
	return vm.reg(fr, idx).F
}

func opIntArith(f func(a, b int64) int64) handlerFn {
	return func(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
		a := vm.intOperand(fr, instr.IsConstB(), instr.B())
		b := vm.intOperand(fr, instr.IsConstC(), instr.C())
		vm.setReg(fr, instr.A(), IntValue(f(a, b))) // two's-complement wrap is Go's native int64 overflow behaviour
		return cont(fr.ip + 1)
	}
}

func opIntDiv(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	a := vm.intOperand(fr, instr.IsConstB(), instr.B())
	b := vm.intOperand(fr, instr.IsConstC(), instr.C())
	if b == 0 {
		return ctrl{kind: ctrlTrap, trapKind: TrapDivideByZero, trapMsg: "division by zero"}
	}
	vm.setReg(fr, instr.A(), IntValue(a/b))
	return cont(fr.ip + 1)
}

func opIntMod(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	a := vm.intOperand(fr, instr.IsConstB(), instr.B())
	b := vm.intOperand(fr, instr.IsConstC(), instr.C())
	if b == 0 {
		return ctrl{kind: ctrlTrap, trapKind: TrapDivideByZero, trapMsg: "modulo by zero"}
	}
	vm.setReg(fr, instr.A(), IntValue(a%b)) // Go's % truncates toward zero, matching "truncated division"
	return cont(fr.ip + 1)
}

// opIntPow computes integer exponentiation. A negative exponent
// mathematically yields a fractional result, but a register's type is
// fixed at compile time (internal/compiler/expressions.go
// arithmeticOp keeps POW_INT's result typed Int); this VM preserves
// that static typing invariant by computing the fractional result and
// truncating it back to Int rather than changing the register's
// runtime kind.
func opIntPow(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	a := vm.intOperand(fr, instr.IsConstB(), instr.B())
	b := vm.intOperand(fr, instr.IsConstC(), instr.C())
	var result int64
	if b >= 0 {
		result = 1
		for i := int64(0); i < b; i++ {
			result *= a
		}
	} else {
		result = int64(math.Pow(float64(a), float64(b)))
	}
	vm.setReg(fr, instr.A(), IntValue(result))
	return cont(fr.ip + 1)
}

func opNegInt(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	vm.setReg(fr, instr.A(), IntValue(-vm.reg(fr, instr.B()).I))
	return cont(fr.ip + 1)
}

func opFloatArith(f func(a, b float64) float64) handlerFn {
	return func(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
		a := vm.floatOperand(fr, instr.IsConstB(), instr.B())
		b := vm.floatOperand(fr, instr.IsConstC(), instr.C())
		vm.setReg(fr, instr.A(), FloatValue(f(a, b))) // IEEE 754 division by zero yields ±Inf/NaN, no trap
		return cont(fr.ip + 1)
	}
}

func opNegFloat(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	vm.setReg(fr, instr.A(), FloatValue(-vm.reg(fr, instr.B()).F))
	return cont(fr.ip + 1)
}

func opEq(negate bool) handlerFn {
	return func(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
		eq := valuesEqual(vm.pool, vm.reg(fr, instr.B()), vm.reg(fr, instr.C()))
		if negate {
			eq = !eq
		}
		vm.setReg(fr, instr.A(), BoolValue(eq))
		return cont(fr.ip + 1)
	}
}

func opIntCmp(f func(a, b int64) bool) handlerFn {
	return func(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
		vm.setReg(fr, instr.A(), BoolValue(f(vm.reg(fr, instr.B()).I, vm.reg(fr, instr.C()).I)))
		return cont(fr.ip + 1)
	}
}

func opFloatCmp(f func(a, b float64) bool) handlerFn {
	return func(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
		vm.setReg(fr, instr.A(), BoolValue(f(vm.reg(fr, instr.B()).F, vm.reg(fr, instr.C()).F)))
		return cont(fr.ip + 1)
	}
}

func opNot(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	vm.setReg(fr, instr.A(), BoolValue(!vm.reg(fr, instr.B()).Bool()))
	return cont(fr.ip + 1)
}

func opJump(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	return cont(int(instr.JumpTarget()))
}

func opJumpIfFalse(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	if !vm.reg(fr, instr.A()).Bool() {
		return cont(int(instr.JumpTarget()))
	}
	return cont(fr.ip + 1)
}

func opJumpIfTrue(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	if vm.reg(fr, instr.A()).Bool() {
		return cont(int(instr.JumpTarget()))
	}
	return cont(fr.ip + 1)
}

func opListNew(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	count := int(instr.Variant())
	elems := make([]Value, count)
	base := instr.B()
	for i := 0; i < count; i++ {
		elems[i] = vm.reg(fr, base+uint16(i))
	}
	h := vm.pool.AllocList(elems)
	vm.setReg(fr, instr.A(), ListValue(h))
	return cont(fr.ip + 1)
}

func opListIndex(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	list, _ := vm.pool.List(vm.reg(fr, instr.B()).H)
	idx := vm.reg(fr, instr.C()).I
	if idx < 0 || int(idx) >= len(list) {
		return ctrl{kind: ctrlTrap, trapKind: TrapIndexOutOfBounds, trapMsg: "list index out of range"}
	}
	vm.setReg(fr, instr.A(), list[idx])
	return cont(fr.ip + 1)
}

// opListAppend implements `++` concatenation of two lists. Rather
// than the in-place-mutate-when-uniquely-referenced optimisation the
// spec describes, this VM always allocates a fresh list: tracking
// unique ownership precisely would need per-register liveness
// information the register file does not retain once a value has
// been copied by MOVE/CALL/RETURN, and a conservative always-copy
// implementation keeps list value semantics correct even where the
// optimisation's uniqueness test would have been wrong.
func opListAppend(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	left, _ := vm.pool.List(vm.reg(fr, instr.B()).H)
	right, _ := vm.pool.List(vm.reg(fr, instr.C()).H)
	merged := make([]Value, 0, len(left)+len(right))
	merged = append(merged, left...)
	merged = append(merged, right...)
	h := vm.pool.AllocList(merged)
	vm.setReg(fr, instr.A(), ListValue(h))
	return cont(fr.ip + 1)
}

func opStrConcat(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	left, _ := vm.pool.Str(vm.reg(fr, instr.B()).H)
	right, _ := vm.pool.Str(vm.reg(fr, instr.C()).H)
	h := vm.pool.AllocStr(left + right)
	vm.setReg(fr, instr.A(), StrValue(h))
	return cont(fr.ip + 1)
}

func opCast(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	src := vm.reg(fr, instr.B())
	target := bytecode.TypeCode(instr.Variant())
	vm.setReg(fr, instr.A(), castValue(vm.pool, src, target))
	return cont(fr.ip + 1)
}

func opCall(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	return ctrl{
		kind:      ctrlCall,
		callee:    fr.chunk.Prototypes[instr.A()],
		argBase:   fr.base + int(instr.B()),
		destReg:   instr.C(),
		afterCall: fr.ip + 1,
	}
}

// opTailCall is emitted only for a call in tail position (returnStatement/
// compileFunctionDecl rewrite the plain CALL into this once they see
// nothing follows it but the return). The trampoline reuses the
// current frame in place instead of pushing a new one, so a
// self-tail-recursive function's depth never consumes system or
// virtual call-stack frames.
func opTailCall(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	return ctrl{
		kind:     ctrlTailCall,
		callee:   fr.chunk.Prototypes[instr.A()],
		argBase:  fr.base + int(instr.B()),
		argCount: int(instr.Variant()),
	}
}

func opReturn(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	if instr.Variant() == 1 {
		return ctrl{kind: ctrlReturn, retVal: NoneValue()}
	}
	return ctrl{kind: ctrlReturn, retVal: vm.reg(fr, instr.A())}
}
