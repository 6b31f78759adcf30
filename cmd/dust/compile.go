package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/dust-lang/dust/internal/bytecode"
	"github.com/dust-lang/dust/internal/compiler"
	"github.com/dust-lang/dust/internal/container"
	"github.com/dust-lang/dust/internal/natives"
)

func compileCommand(args []string, opts globalFlags) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "dust compile: missing <file>")
		return 1
	}
	path := args[0]
	out := ""
	for i := 1; i < len(args)-1; i++ {
		if args[i] == "-o" {
			out = args[i+1]
		}
	}
	if out == "" {
		out = strings.TrimSuffix(path, ".dt") + ".dtc"
	}

	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dust: %v\n", err)
		return 1
	}

	table := natives.NewTable(&bytes.Buffer{}, strings.NewReader(""))
	chunk, errs := compiler.Compile(string(src), table)
	if len(errs) != 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "dust: %s\n", e.Error())
		}
		return 1
	}

	if opts.trace && !opts.quiet {
		fmt.Fprintln(os.Stderr, bytecode.Disassemble(chunk, chunk.Name))
	}

	data, err := container.Encode([]*bytecode.Chunk{chunk})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dust: encoding %s: %v\n", out, err)
		return 1
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "dust: writing %s: %v\n", out, err)
		return 1
	}
	if !opts.quiet {
		fmt.Printf("wrote %s\n", out)
	}
	return 0
}
