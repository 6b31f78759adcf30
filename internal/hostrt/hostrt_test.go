package hostrt

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dust-lang/dust/internal/compiler"
	"github.com/dust-lang/dust/internal/natives"
)

func compileJob(t *testing.T, src string) Job {
	t.Helper()
	table := natives.NewTable(&bytes.Buffer{}, strings.NewReader(""))
	chunk, errs := compiler.Compile(src, table)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors for %q: %v", src, errs)
	}
	return Job{Chunk: chunk, Natives: table}
}

func TestRunAllIndependentPrograms(t *testing.T) {
	jobs := []Job{
		compileJob(t, `return 1 + 1;`),
		compileJob(t, `return 2 + 2;`),
		compileJob(t, `return 3 + 3;`),
	}
	results, err := RunAll(context.Background(), jobs)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	want := []int64{2, 4, 6}
	for i, r := range results {
		if r.Trap != nil {
			t.Fatalf("job %d: unexpected trap: %v", i, r.Trap)
		}
		if r.Value.I != want[i] {
			t.Fatalf("job %d: got %d, want %d", i, r.Value.I, want[i])
		}
	}
}

func TestRunAllReportsTrapsPerJob(t *testing.T) {
	jobs := []Job{
		compileJob(t, `return 1;`),
		compileJob(t, `let a: int = 1; let b: int = 0; return a / b;`),
	}
	results, err := RunAll(context.Background(), jobs)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if results[0].Trap != nil {
		t.Fatalf("job 0: unexpected trap: %v", results[0].Trap)
	}
	if results[1].Trap == nil {
		t.Fatal("job 1: expected a trap")
	}
}
