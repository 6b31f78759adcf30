package bytecode

import "github.com/dust-lang/dust/internal/types"

// Constants is a chunk's append-only constant pool, partitioned by
// type: separate arrays of int/float/str/char/byte constants
// addressed by small indices. The compiler folds duplicate literals
// so a chunk never carries two entries for the same value in the
// same pool.
type Constants struct {
	Ints   []int64
	Floats []float64
	Strs   []string
	Chars  []rune
	Bytes  []byte
}

func (c *Constants) AddInt(v int64) uint16 {
	for i, existing := range c.Ints {
		if existing == v {
			return uint16(i)
		}
	}
	c.Ints = append(c.Ints, v)
	return uint16(len(c.Ints) - 1)
}

func (c *Constants) AddFloat(v float64) uint16 {
	for i, existing := range c.Floats {
		if existing == v {
			return uint16(i)
		}
	}
	c.Floats = append(c.Floats, v)
	return uint16(len(c.Floats) - 1)
}

func (c *Constants) AddStr(v string) uint16 {
	for i, existing := range c.Strs {
		if existing == v {
			return uint16(i)
		}
	}
	c.Strs = append(c.Strs, v)
	return uint16(len(c.Strs) - 1)
}

func (c *Constants) AddChar(v rune) uint16 {
	for i, existing := range c.Chars {
		if existing == v {
			return uint16(i)
		}
	}
	c.Chars = append(c.Chars, v)
	return uint16(len(c.Chars) - 1)
}

func (c *Constants) AddByte(v byte) uint16 {
	for i, existing := range c.Bytes {
		if existing == v {
			return uint16(i)
		}
	}
	c.Bytes = append(c.Bytes, v)
	return uint16(len(c.Bytes) - 1)
}

// SourceSpan mirrors token.Span without importing the lexer/token
// package from bytecode, keeping this package low in the import graph.
type SourceSpan struct {
	Line, Col int
}

// Chunk is a compiled function.
type Chunk struct {
	Name string

	ParamTypes []types.Type
	ReturnType types.Type

	RegisterCount int

	Constants Constants

	Code []Instruction

	// SourceMap maps each instruction index to the span of the source
	// construct that produced it, for trap/error reporting.
	SourceMap []SourceSpan

	// Prototypes holds function chunks, addressed by index from CALL and
	// TAIL_CALL. The compiler registers every function on the top-level
	// chunk's list; functions are declared only at the top level, and
	// there are no closures.
	Prototypes []*Chunk
}

func NewChunk(name string) *Chunk {
	return &Chunk{Name: name}
}

// Emit appends an instruction tagged with the source span it came
// from and returns its index.
func (c *Chunk) Emit(instr Instruction, span SourceSpan) int {
	c.Code = append(c.Code, instr)
	c.SourceMap = append(c.SourceMap, span)
	return len(c.Code) - 1
}

// Patch overwrites an already-emitted instruction, used when patching
// jump targets once the destination is known.
func (c *Chunk) Patch(index int, instr Instruction) {
	c.Code[index] = instr
}

func (c *Chunk) Len() int { return len(c.Code) }

// Arity is the number of declared parameters.
func (c *Chunk) Arity() int { return len(c.ParamTypes) }
