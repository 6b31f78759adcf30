package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dust-lang/dust/internal/bytecode"
	"github.com/dust-lang/dust/internal/compiler"
	"github.com/dust-lang/dust/internal/natives"
	"github.com/dust-lang/dust/internal/vm"
)

// replCommand runs a line-oriented interactive compile-and-execute
// loop. Each line is compiled and run as its own program — there is
// no incremental compilation session, so bindings do not persist
// across lines; this keeps the REPL's semantics identical to running
// `dust run` on a one-line file.
func replCommand(opts globalFlags) int {
	table := natives.NewTable(os.Stdout, bufio.NewReader(os.Stdin))
	m := vm.New(table)

	var lastChunk *bytecode.Chunk

	scanner := bufio.NewScanner(os.Stdin)
	if !opts.quiet {
		fmt.Print("dust> ")
	}
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !opts.quiet {
				fmt.Print("dust> ")
			}
			continue
		}
		if handled := replMeta(m, lastChunk, trimmed); handled {
			if !opts.quiet {
				fmt.Print("dust> ")
			}
			continue
		}

		chunk, errs := compiler.Compile(line, table)
		if len(errs) != 0 {
			for _, e := range errs {
				fmt.Fprintf(os.Stderr, "dust: %s\n", e.Error())
			}
		} else {
			lastChunk = chunk
			val, trap, err := m.Run(chunk)
			switch {
			case err != nil:
				fmt.Fprintf(os.Stderr, "dust: internal error: %v\n", err)
			case trap != nil:
				fmt.Fprintf(os.Stderr, "dust: %s\n", trap.Error())
			case val.Kind != vm.KNone:
				fmt.Println(vm.Display(m.Pool(), val))
			}
		}

		if !opts.quiet {
			fmt.Print("dust> ")
		}
	}
	if !opts.quiet {
		fmt.Println()
	}
	return 0
}

// replMeta handles the :dis/:regs/:trap debugger commands, grounded
// on the scope the VM actually exposes post-run: the last chunk's
// disassembly, the register file, and the last trap (if any).
func replMeta(m *vm.VM, lastChunk *bytecode.Chunk, line string) bool {
	switch line {
	case ":dis":
		if lastChunk != nil {
			fmt.Println(bytecode.Disassemble(lastChunk, lastChunk.Name))
		} else {
			fmt.Println("dust: no chunk to disassemble yet")
		}
		return true
	case ":regs":
		regs := m.Registers()
		limit := len(regs)
		if limit > 16 {
			limit = 16
		}
		for i := 0; i < limit; i++ {
			fmt.Printf("R%d = %s\n", i, vm.Display(m.Pool(), regs[i]))
		}
		return true
	case ":trap":
		if t := m.LastTrap(); t != nil {
			fmt.Println(t.Error())
		} else {
			fmt.Println("dust: no trap recorded")
		}
		return true
	default:
		return false
	}
}
