package main

import (
	"os"

	"github.com/mattn/go-isatty"
)

// colorEnabled reports whether trap/error output should carry ANSI
// color: only when stdout is a real terminal, --no-color was not
// passed, and NO_COLOR isn't set in the environment.
func colorEnabled(opts globalFlags) bool {
	if opts.noColor {
		return false
	}
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

const (
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
	colorReset  = "\x1b[0m"
)

func colorize(enabled bool, code, s string) string {
	if !enabled {
		return s
	}
	return code + s + colorReset
}
