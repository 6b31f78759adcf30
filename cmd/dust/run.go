package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/dust-lang/dust/internal/bytecode"
	"github.com/dust-lang/dust/internal/cache"
	"github.com/dust-lang/dust/internal/compiler"
	"github.com/dust-lang/dust/internal/natives"
	"github.com/dust-lang/dust/internal/vm"
)

func runCommand(args []string, opts globalFlags) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "dust run: missing <file>")
		return 1
	}
	path := args[0]

	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dust: %v\n", err)
		return 1
	}

	table := natives.NewTable(os.Stdout, bufio.NewReader(os.Stdin))

	start := time.Now()
	chunk, cacheHit := compileWithCache(string(src), table)
	if chunk == nil {
		return 1
	}
	if opts.trace && !opts.quiet {
		fmt.Fprintf(os.Stderr, "dust: compiled %s in %s (cache hit: %t)\n",
			path, time.Since(start), cacheHit)
	}

	m := vm.New(table).WithTraceID(uuid.NewString())
	runStart := time.Now()
	val, trap, runErr := m.Run(chunk)
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "dust: internal error: %v\n", runErr)
		return 1
	}
	if opts.trace && !opts.quiet {
		fmt.Fprintf(os.Stderr, "dust: ran in %s, %s live objects\n",
			time.Since(runStart), humanize.Comma(int64(m.Pool().LiveCount())))
	}
	if trap != nil {
		msg := colorize(colorEnabled(opts), colorRed, trap.Error())
		fmt.Fprintf(os.Stderr, "dust: %s\n", msg)
		return 2
	}
	if opts.trace && !opts.quiet {
		fmt.Fprintf(os.Stderr, "dust: top-level result: %s\n", vm.Display(m.Pool(), val))
	}
	return 0
}

// compileWithCache consults the on-disk chunk cache before compiling,
// storing a fresh compile's result so the next run of the same
// unchanged source skips recompilation. Safe because compiling the
// same source always yields the same chunk. A cache that fails to
// open is not fatal — it just means no caching for this run.
func compileWithCache(src string, table *natives.Table) (*bytecode.Chunk, bool) {
	ctx := context.Background()
	c, err := cache.Open(cachePath())
	if err == nil {
		defer c.Close()
		if chunk, hit, lookupErr := c.Lookup(ctx, src); lookupErr == nil && hit {
			return chunk, true
		}
	}

	chunk, errs := compiler.Compile(src, table)
	if len(errs) != 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "dust: %s\n", e.Error())
		}
		return nil, false
	}
	if c != nil {
		_ = c.Store(ctx, src, chunk)
	}
	return chunk, false
}

func cachePath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/dust-chunks.db"
	}
	return ""
}
