package vm

import (
	"fmt"

	"github.com/dust-lang/dust/internal/bytecode"
)

// vFrame is one activation on the heap-allocated virtual call stack.
// destAbs is the absolute register index
// in the *calling* frame that should receive this frame's return
// value once it pops (-1 for the root frame handed to runVirtual,
// whose result is returned to the system-stack caller instead).
// resumeIP is the calling frame's instruction pointer to resume at.
type vFrame struct {
	fr       Frame
	destAbs  int
	resumeIP int
}

// execSystem runs fr as direct Go recursion: the "system call stack"
// discipline. A CALL either recurses directly (while depth
// stays under SystemStackDepth) or spills into runVirtual, which owns
// execution for that call and everything it calls until it returns.
func (vm *VM) execSystem(fr *Frame, depth int) (Value, *Trap, error) {
	for {
		instr := fr.chunk.Code[fr.ip]
		h := handlers[instr.Op()]
		if h == nil {
			return Value{}, nil, fmt.Errorf("vm: no handler for opcode %s", instr.Op())
		}
		c := h(vm, fr, instr)
		switch c.kind {
		case ctrlContinue:
			fr.ip = c.nextIP
		case ctrlReturn:
			return c.retVal, nil, nil
		case ctrlTrap:
			return Value{}, vm.trapAt(fr, c.trapKind, c.trapMsg), nil
		case ctrlCall:
			if trap := vm.precallCheck(0); trap != nil {
				return Value{}, trap, nil
			}
			vm.ensureRegisters(c.argBase + c.callee.RegisterCount)

			var retVal Value
			var trap *Trap
			var err error
			if depth+1 < SystemStackDepth {
				child := Frame{chunk: c.callee, ip: 0, base: c.argBase}
				retVal, trap, err = vm.execSystem(&child, depth+1)
			} else {
				root := vFrame{
					fr:      Frame{chunk: c.callee, ip: 0, base: c.argBase},
					destAbs: -1,
				}
				retVal, trap, err = vm.runVirtual([]vFrame{root})
			}
			if trap != nil || err != nil {
				return Value{}, trap, err
			}
			vm.setReg(fr, c.destReg, retVal)
			fr.ip = c.afterCall
		case ctrlTailCall:
			if trap := vm.precallCheck(0); trap != nil {
				return Value{}, trap, nil
			}
			// Reuse fr's own base rather than the fresh window above it
			// that a nested CALL would get: a tail call's arguments are
			// the only thing from the old frame still needed, so sliding
			// them down onto the current frame keeps register usage
			// bounded by one frame's worth no matter how many times a
			// function tail-calls itself.
			newBase := fr.base
			vm.ensureRegisters(newBase + c.callee.RegisterCount)
			copy(vm.registers[newBase:newBase+c.argCount], vm.registers[c.argBase:c.argBase+c.argCount])
			*fr = Frame{chunk: c.callee, ip: 0, base: newBase}
		}
	}
}

// runVirtual drains a stack of vFrames with an explicit loop instead
// of Go recursion, so recursion depth in the source program never
// translates into native call-stack depth once the system-stack
// prefix is exhausted: deep recursion completes without native stack
// overflow.
func (vm *VM) runVirtual(stack []vFrame) (Value, *Trap, error) {
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		instr := top.fr.chunk.Code[top.fr.ip]
		h := handlers[instr.Op()]
		if h == nil {
			return Value{}, nil, fmt.Errorf("vm: no handler for opcode %s", instr.Op())
		}
		c := h(vm, &top.fr, instr)
		switch c.kind {
		case ctrlContinue:
			top.fr.ip = c.nextIP
		case ctrlTrap:
			return Value{}, vm.trapAt(&top.fr, c.trapKind, c.trapMsg), nil
		case ctrlReturn:
			val := c.retVal
			destAbs := top.destAbs
			resumeIP := top.resumeIP
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return val, nil, nil
			}
			if destAbs >= 0 {
				vm.registers[destAbs] = val
			}
			stack[len(stack)-1].fr.ip = resumeIP
		case ctrlCall:
			if trap := vm.precallCheck(len(stack) + 1); trap != nil {
				return Value{}, trap, nil
			}
			vm.ensureRegisters(c.argBase + c.callee.RegisterCount)
			callerBase := top.fr.base
			stack = append(stack, vFrame{
				fr:       Frame{chunk: c.callee, ip: 0, base: c.argBase},
				destAbs:  callerBase + int(c.destReg),
				resumeIP: c.afterCall,
			})
		case ctrlTailCall:
			if trap := vm.precallCheck(len(stack)); trap != nil {
				return Value{}, trap, nil
			}
			// As in execSystem: reuse top.fr's own base instead of a
			// fresh higher window, so neither the vFrame stack nor the
			// register file grows with tail-recursion depth. destAbs/
			// resumeIP (whoever is waiting on this frame) carry over
			// unchanged since the stack height itself doesn't change.
			newBase := top.fr.base
			vm.ensureRegisters(newBase + c.callee.RegisterCount)
			copy(vm.registers[newBase:newBase+c.argCount], vm.registers[c.argBase:c.argBase+c.argCount])
			top.fr = Frame{chunk: c.callee, ip: 0, base: newBase}
		}
	}
	return Value{}, nil, nil
}

// opCallNative dispatches a CALL_NATIVE instruction to the resolved
// natives.Entry, converting register Values to the plain Go values
// natives.Fn expects and back. internal/natives keeps no dependency
// on this package to avoid an import cycle.
func opCallNative(vm *VM, fr *Frame, instr bytecode.Instruction) ctrl {
	entry := vm.natives.ByID(int(instr.B()))
	count := int(instr.Variant())
	base := instr.C()
	args := make([]any, count)
	for i := 0; i < count; i++ {
		args[i] = toNativeArg(vm.pool, vm.reg(fr, base+uint16(i)))
	}
	result, err := entry.Fn(args)
	if err != nil {
		return ctrl{kind: ctrlTrap, trapKind: TrapNativeError, trapMsg: fmt.Sprintf("%s: %v", entry.Name, err)}
	}
	vm.setReg(fr, instr.A(), fromNativeResult(vm.pool, result))
	return cont(fr.ip + 1)
}

func toNativeArg(pool *ObjectPool, v Value) any {
	switch v.Kind {
	case KInt:
		return v.I
	case KFloat:
		return v.F
	case KBool:
		return v.Bool()
	case KByte:
		return v.Byte()
	case KChar:
		return v.Char()
	case KStr:
		s, _ := pool.Str(v.H)
		return s
	case KList:
		elems, _ := pool.List(v.H)
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = toNativeArg(pool, e)
		}
		return out
	default:
		return nil
	}
}

func fromNativeResult(pool *ObjectPool, result any) Value {
	switch r := result.(type) {
	case int64:
		return IntValue(r)
	case int:
		return IntValue(int64(r))
	case float64:
		return FloatValue(r)
	case bool:
		return BoolValue(r)
	case byte:
		return ByteValue(r)
	case rune:
		return CharValue(r)
	case string:
		return StrValue(pool.AllocStr(r))
	case []any:
		elems := make([]Value, len(r))
		for i, e := range r {
			elems[i] = fromNativeResult(pool, e)
		}
		return ListValue(pool.AllocList(elems))
	default:
		return NoneValue()
	}
}
