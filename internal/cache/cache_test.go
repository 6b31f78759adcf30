package cache

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dust-lang/dust/internal/compiler"
	"github.com/dust-lang/dust/internal/natives"
)

func TestStoreThenLookupHits(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	src := `let x: int = 1 + 2; return x;`
	table := natives.NewTable(&bytes.Buffer{}, strings.NewReader(""))
	chunk, errs := compiler.Compile(src, table)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors: %v", errs)
	}

	ctx := context.Background()
	if _, hit, err := c.Lookup(ctx, src); err != nil || hit {
		t.Fatalf("expected a miss before Store, got hit=%v err=%v", hit, err)
	}

	if err := c.Store(ctx, src, chunk); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, hit, err := c.Lookup(ctx, src)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !hit {
		t.Fatal("expected a hit after Store")
	}
	if len(got.Code) != len(chunk.Code) {
		t.Fatalf("code length mismatch: got %d want %d", len(got.Code), len(chunk.Code))
	}
}

func TestLookupMissForDifferentSource(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	table := natives.NewTable(&bytes.Buffer{}, strings.NewReader(""))
	chunk, errs := compiler.Compile(`return 1;`, table)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors: %v", errs)
	}
	ctx := context.Background()
	if err := c.Store(ctx, `return 1;`, chunk); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if _, hit, err := c.Lookup(ctx, `return 2;`); err != nil || hit {
		t.Fatalf("expected a miss for different source, got hit=%v err=%v", hit, err)
	}
}
