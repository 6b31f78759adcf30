package container

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dust-lang/dust/internal/bytecode"
	"github.com/dust-lang/dust/internal/compiler"
	"github.com/dust-lang/dust/internal/natives"
)

func compileFixture(t *testing.T) *bytecode.Chunk {
	t.Helper()
	table := natives.NewTable(&bytes.Buffer{}, strings.NewReader(""))
	chunk, errs := compiler.Compile(`
		fn fib(n: int) -> int {
			if n < 2 {
				return n;
			}
			return fib(n - 1) + fib(n - 2);
		}
		let xs = [1, 2, 3];
		let s: str = "hi";
		return fib(xs[0]);
	`, table)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors: %v", errs)
	}
	return chunk
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	chunk := compileFixture(t)

	data, err := Encode([]*bytecode.Chunk{chunk})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(decoded))
	}
	got := decoded[0]

	if got.Name != chunk.Name {
		t.Fatalf("name mismatch: got %q want %q", got.Name, chunk.Name)
	}
	if len(got.Code) != len(chunk.Code) {
		t.Fatalf("code length mismatch: got %d want %d", len(got.Code), len(chunk.Code))
	}
	for i := range chunk.Code {
		if got.Code[i] != chunk.Code[i] {
			t.Fatalf("instruction %d mismatch: got %#x want %#x", i, uint64(got.Code[i]), uint64(chunk.Code[i]))
		}
	}
	if len(got.Prototypes) != len(chunk.Prototypes) {
		t.Fatalf("prototype count mismatch: got %d want %d", len(got.Prototypes), len(chunk.Prototypes))
	}
	if len(got.Constants.Strs) != len(chunk.Constants.Strs) {
		t.Fatalf("str constant count mismatch: got %d want %d", len(got.Constants.Strs), len(chunk.Constants.Strs))
	}
	for i := range chunk.Constants.Strs {
		if got.Constants.Strs[i] != chunk.Constants.Strs[i] {
			t.Fatalf("str constant %d mismatch: got %q want %q", i, got.Constants.Strs[i], chunk.Constants.Strs[i])
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	chunk := compileFixture(t)
	a, err := Encode([]*bytecode.Chunk{chunk})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := Encode([]*bytecode.Chunk{chunk})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("encoding the same chunk twice produced different bytes")
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte("nope, not a chunk file"))
	if err == nil {
		t.Fatal("expected an error for a non-Dust file")
	}
}
