// Package natives implements the native function table: typed
// signatures and effect descriptors for built-ins, resolved by name
// at compile time and invoked by id at runtime via CALL_NATIVE.
package natives

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dust-lang/dust/internal/types"
)

// Effect documents a native's side-effect class. It has no bearing
// on execution — it exists for diagnostics and the
// disassembler/debugger.
type Effect int

const (
	Pure Effect = iota
	IO
	Rand
)

func (e Effect) String() string {
	switch e {
	case Pure:
		return "Pure"
	case IO:
		return "IO"
	case Rand:
		return "Rand"
	default:
		return "?"
	}
}

// Fn is a native's implementation. Arguments and the result are plain
// Go values (int64, float64, string, rune, byte, bool, []any for
// lists) — the VM converts to/from its internal register
// representation at the CALL_NATIVE boundary, keeping this package
// free of any dependency on the VM's object pool.
type Fn func(args []any) (any, error)

// Entry is one native function's full signature.
type Entry struct {
	ID     int
	Name   string
	Params []types.Type
	Return types.Type
	Effect Effect
	Fn     Fn
}

// Table is the closed, compile-time-resolved set of native functions
// available to a single VM instance. Each VM builds its own Table
// bound to its own stdout/stdin, since the object pool and register
// file are thread-local to their VM.
type Table struct {
	entries []*Entry
	byName  map[string]*Entry
}

// NewTable builds the standard native table bound to the given I/O
// streams and a pseudo-random source dedicated to this VM instance.
func NewTable(stdout io.Writer, stdin io.Reader) *Table {
	t := &Table{byName: make(map[string]*Entry)}
	reader := bufio.NewReader(stdin)
	rng := rand.New(rand.NewSource(rand.Int63()))
	caser := cases.Upper(language.Und)
	lowerer := cases.Lower(language.Und)

	t.add("write_line", []types.Type{types.Str}, types.None, IO, func(args []any) (any, error) {
		fmt.Fprintln(stdout, args[0].(string))
		return nil, nil
	})

	t.add("read_line", nil, types.Str, IO, func(args []any) (any, error) {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		line = trimNewline(line)
		return line, nil
	})

	t.add("random_int", []types.Type{types.Int, types.Int}, types.Int, Rand, func(args []any) (any, error) {
		lo, hi := args[0].(int64), args[1].(int64)
		if hi < lo {
			return nil, fmt.Errorf("random_int: high bound %d below low bound %d", hi, lo)
		}
		span := hi - lo + 1
		return lo + rng.Int63n(span), nil
	})

	t.add("int_to_str", []types.Type{types.Int}, types.Str, Pure, func(args []any) (any, error) {
		return fmt.Sprintf("%d", args[0].(int64)), nil
	})

	t.add("uuid_v4", nil, types.Str, Rand, func(args []any) (any, error) {
		return uuid.New().String(), nil
	})

	t.add("str_upper", []types.Type{types.Str}, types.Str, Pure, func(args []any) (any, error) {
		return caser.String(args[0].(string)), nil
	})

	t.add("str_lower", []types.Type{types.Str}, types.Str, Pure, func(args []any) (any, error) {
		return lowerer.String(args[0].(string)), nil
	})

	return t
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func (t *Table) add(name string, params []types.Type, ret types.Type, effect Effect, fn Fn) {
	e := &Entry{ID: len(t.entries), Name: name, Params: params, Return: ret, Effect: effect, Fn: fn}
	t.entries = append(t.entries, e)
	t.byName[name] = e
}

// Lookup resolves a native by name, used by the compiler at the
// identifier-use site of a call expression.
func (t *Table) Lookup(name string) (*Entry, bool) {
	e, ok := t.byName[name]
	return e, ok
}

// ByID returns the entry for a compile-time-resolved native id.
func (t *Table) ByID(id int) *Entry {
	return t.entries[id]
}
