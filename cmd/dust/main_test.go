package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dust-lang/dust/internal/natives"
	"github.com/dust-lang/dust/internal/vm"
)

func TestParseGlobalFlags(t *testing.T) {
	opts, rest := parseGlobalFlags([]string{"--quiet", "foo.dt", "--trace", "--no-color"})
	if !opts.quiet || !opts.trace || !opts.noColor {
		t.Fatalf("expected all three flags set, got %+v", opts)
	}
	if len(rest) != 1 || rest[0] != "foo.dt" {
		t.Fatalf("expected non-flag args preserved, got %v", rest)
	}
}

func TestParseGlobalFlagsNone(t *testing.T) {
	opts, rest := parseGlobalFlags([]string{"a.dt", "-o", "a.dtc"})
	if opts.quiet || opts.trace || opts.noColor {
		t.Fatalf("expected no flags set, got %+v", opts)
	}
	if len(rest) != 3 {
		t.Fatalf("expected 3 passthrough args, got %v", rest)
	}
}

func TestRunNoArgs(t *testing.T) {
	if code := run(nil); code != 1 {
		t.Fatalf("expected exit 1 for no args, got %d", code)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if code := run([]string{"frobnicate"}); code != 1 {
		t.Fatalf("expected exit 1 for unknown command, got %d", code)
	}
}

func TestRunHelp(t *testing.T) {
	if code := run([]string{"help"}); code != 0 {
		t.Fatalf("expected exit 0 for help, got %d", code)
	}
}

func TestColorEnabled(t *testing.T) {
	if colorEnabled(globalFlags{noColor: true}) {
		t.Fatal("--no-color must disable color regardless of terminal state")
	}
	t.Setenv("NO_COLOR", "1")
	if colorEnabled(globalFlags{}) {
		t.Fatal("NO_COLOR env var must disable color")
	}
}

func TestColorize(t *testing.T) {
	if got := colorize(false, colorRed, "trap"); got != "trap" {
		t.Fatalf("disabled colorize must pass text through unchanged, got %q", got)
	}
	got := colorize(true, colorRed, "trap")
	if got == "trap" {
		t.Fatal("enabled colorize must wrap text in escape codes")
	}
}

func TestCompileCommandMissingFile(t *testing.T) {
	if code := compileCommand(nil, globalFlags{}); code != 1 {
		t.Fatalf("expected exit 1 for missing file arg, got %d", code)
	}
}

func TestCompileCommandWritesChunk(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.dt")
	out := filepath.Join(dir, "prog.dtc")
	if err := os.WriteFile(src, []byte("write_line(\"hi\");\nreturn 0;\n"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	code := compileCommand([]string{src, "-o", out}, globalFlags{quiet: true})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected compiled chunk at %s: %v", out, err)
	}
}

func TestCompileCommandDefaultOutputName(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.dt")
	if err := os.WriteFile(src, []byte("return 0;\n"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	code := compileCommand([]string{src}, globalFlags{quiet: true})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	want := filepath.Join(dir, "prog.dtc")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected default-named chunk at %s: %v", want, err)
	}
}

func TestReplMetaUnknownLine(t *testing.T) {
	table := natives.NewTable(os.Stdout, strings.NewReader(""))
	m := vm.New(table)
	if handled := replMeta(m, nil, "let x = 1;"); handled {
		t.Fatal("ordinary source lines must not be treated as meta-commands")
	}
}

func TestReplMetaDisWithNoChunk(t *testing.T) {
	table := natives.NewTable(os.Stdout, strings.NewReader(""))
	m := vm.New(table)
	if handled := replMeta(m, nil, ":dis"); !handled {
		t.Fatal(":dis must be recognized as a meta-command")
	}
}

func TestReplMetaTrapWithNoTrap(t *testing.T) {
	table := natives.NewTable(os.Stdout, strings.NewReader(""))
	m := vm.New(table)
	if handled := replMeta(m, nil, ":trap"); !handled {
		t.Fatal(":trap must be recognized as a meta-command")
	}
}

func TestReplMetaRegs(t *testing.T) {
	table := natives.NewTable(os.Stdout, strings.NewReader(""))
	m := vm.New(table)
	if handled := replMeta(m, nil, ":regs"); !handled {
		t.Fatal(":regs must be recognized as a meta-command")
	}
}

func TestCompileCommandSyntaxError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.dt")
	if err := os.WriteFile(src, []byte("let x: int = ;\n"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	if code := compileCommand([]string{src}, globalFlags{quiet: true}); code != 1 {
		t.Fatalf("expected exit 1 for a syntax error, got %d", code)
	}
}
