package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dust-lang/dust/internal/compiler"
	"github.com/dust-lang/dust/internal/natives"
)

func run(t *testing.T, src string) (Value, *Trap) {
	t.Helper()
	table := natives.NewTable(&bytes.Buffer{}, strings.NewReader(""))
	chunk, errs := compiler.Compile(src, table)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors for %q: %v", src, errs)
	}
	m := New(table)
	val, trap, err := m.Run(chunk)
	if err != nil {
		t.Fatalf("unexpected VM error for %q: %v", src, err)
	}
	return val, trap
}

func runWithVM(t *testing.T, m *VM, src string) (Value, *Trap) {
	t.Helper()
	table := natives.NewTable(&bytes.Buffer{}, strings.NewReader(""))
	chunk, errs := compiler.Compile(src, table)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors for %q: %v", src, errs)
	}
	val, trap, err := m.Run(chunk)
	if err != nil {
		t.Fatalf("unexpected VM error for %q: %v", src, err)
	}
	return val, trap
}

func TestArithmeticAndLet(t *testing.T) {
	val, trap := run(t, `
		let x: int = 1 + 2;
		let y: int = x * 3;
		return y;
	`)
	if trap != nil {
		t.Fatalf("unexpected trap: %v", trap)
	}
	if val.Kind != KInt || val.I != 9 {
		t.Fatalf("got %v, want int 9", val)
	}
}

func TestFibonacciRecursion(t *testing.T) {
	val, trap := run(t, `
		fn fib(n: int) -> int {
			if n < 2 {
				return n;
			}
			return fib(n - 1) + fib(n - 2);
		}
		return fib(10);
	`)
	if trap != nil {
		t.Fatalf("unexpected trap: %v", trap)
	}
	if val.Kind != KInt || val.I != 55 {
		t.Fatalf("got %v, want int 55", val)
	}
}

func TestDivideByZeroTraps(t *testing.T) {
	_, trap := run(t, `
		let a: int = 1;
		let b: int = 0;
		return a / b;
	`)
	if trap == nil {
		t.Fatal("expected a trap")
	}
	if trap.Kind != TrapDivideByZero {
		t.Fatalf("got %v, want DivideByZero", trap.Kind)
	}
}

func TestIndexOutOfBoundsTraps(t *testing.T) {
	_, trap := run(t, `
		let xs = [1, 2, 3];
		return xs[5];
	`)
	if trap == nil {
		t.Fatal("expected a trap")
	}
	if trap.Kind != TrapIndexOutOfBounds {
		t.Fatalf("got %v, want IndexOutOfBounds", trap.Kind)
	}
}

func TestListConcatenation(t *testing.T) {
	val, trap := run(t, `
		let a = [1, 2];
		let b = [3, 4];
		let c = a ++ b;
		return c[3];
	`)
	if trap != nil {
		t.Fatalf("unexpected trap: %v", trap)
	}
	if val.Kind != KInt || val.I != 4 {
		t.Fatalf("got %v, want int 4", val)
	}
}

func TestNativeCall(t *testing.T) {
	table := natives.NewTable(&bytes.Buffer{}, strings.NewReader(""))
	chunk, errs := compiler.Compile(`return int_to_str(42);`, table)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors: %v", errs)
	}
	m := New(table)
	val, trap, err := m.Run(chunk)
	if err != nil {
		t.Fatalf("unexpected VM error: %v", err)
	}
	if trap != nil {
		t.Fatalf("unexpected trap: %v", trap)
	}
	if val.Kind != KStr {
		t.Fatalf("got %v, want a str", val)
	}
	s, ok := m.Pool().Str(val.H)
	if !ok || s != "42" {
		t.Fatalf("got %q, want \"42\"", s)
	}
}

func TestStackOverflowTrapsWithTightLimit(t *testing.T) {
	table := natives.NewTable(&bytes.Buffer{}, strings.NewReader(""))
	chunk, errs := compiler.Compile(`
		fn loop_forever(n: int) -> int {
			return 1 + loop_forever(n + 1);
		}
		return loop_forever(0);
	`, table)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors: %v", errs)
	}
	m := New(table).WithLimits(SystemStackDepth+8, DefaultInternLimitForTest)
	_, trap, err := m.Run(chunk)
	if err != nil {
		t.Fatalf("unexpected VM error: %v", err)
	}
	if trap == nil {
		t.Fatal("expected a trap")
	}
	if trap.Kind != TrapStackOverflow {
		t.Fatalf("got %v, want StackOverflow", trap.Kind)
	}
}

// DefaultInternLimitForTest keeps the object-pool headroom generous
// enough that the stack-overflow test above never confuses the two
// limits; it mirrors config.DefaultInternLimit without importing
// internal/config just for a constant.
const DefaultInternLimitForTest = 1 << 20

func TestDeepRecursionViaVirtualStack(t *testing.T) {
	val, trap := run(t, `
		fn count_down(n: int) -> int {
			if n <= 0 {
				return 0;
			}
			return 1 + count_down(n - 1);
		}
		return count_down(500);
	`)
	if trap != nil {
		t.Fatalf("unexpected trap: %v", trap)
	}
	if val.Kind != KInt || val.I != 500 {
		t.Fatalf("got %v, want int 500", val)
	}
}

func TestCastStrToInt(t *testing.T) {
	val, trap := run(t, `
		let s: str = "123";
		return s as int;
	`)
	if trap != nil {
		t.Fatalf("unexpected trap: %v", trap)
	}
	if val.Kind != KInt || val.I != 123 {
		t.Fatalf("got %v, want int 123", val)
	}
}

func TestMultipleRunsShareNoState(t *testing.T) {
	m := New(natives.NewTable(&bytes.Buffer{}, strings.NewReader("")))
	v1, trap := runWithVM(t, m, `return 1;`)
	if trap != nil || v1.I != 1 {
		t.Fatalf("first run: got %v, trap %v", v1, trap)
	}
	v2, trap := runWithVM(t, m, `return 2;`)
	if trap != nil || v2.I != 2 {
		t.Fatalf("second run: got %v, trap %v", v2, trap)
	}
}
