// Package config holds Dust's process-wide tunables: environment
// variables recognised by the VM, the toolchain version string, and
// an optional per-project manifest.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Version is the current Dust toolchain version.
var Version = "0.1.0"

// DefaultStackLimit is DUST_STACK_LIMIT's value when the environment
// variable is unset: the virtual call stack's maximum frame count.
const DefaultStackLimit = 65536

// DefaultInternLimit is DUST_INTERN_LIMIT's value when unset: the
// number of live pooled objects (strings and lists) at which the VM's
// pre-call check forces a sweep; a call that still finds the pool at
// the limit after that sweep traps with OutOfMemory.
const DefaultInternLimit = 1 << 20

// StackLimit reads DUST_STACK_LIMIT from the environment, falling
// back to DefaultStackLimit for an unset or unparseable value.
func StackLimit() int {
	return envInt("DUST_STACK_LIMIT", DefaultStackLimit)
}

// InternLimit reads DUST_INTERN_LIMIT from the environment, falling
// back to DefaultInternLimit for an unset or unparseable value.
func InternLimit() int {
	return envInt("DUST_INTERN_LIMIT", DefaultInternLimit)
}

func envInt(name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Manifest is the optional dust.yaml project file: a name and entry
// point, enough for the CLI to resolve `dust run` with no arguments
// inside a project directory. Unknown fields are ignored rather than
// rejected, since the manifest is a convenience, not a contract.
type Manifest struct {
	Name string `yaml:"name"`
	Main string `yaml:"main"`
}

// LoadManifest reads and parses a dust.yaml file at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if m.Main == "" {
		return nil, fmt.Errorf("config: %s has no 'main' entry", path)
	}
	return &m, nil
}
