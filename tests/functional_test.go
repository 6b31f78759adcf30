package tests

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"
)

// TestFunctional runs .dt sources bundled in fixtures/golden.txtar
// through the compiled dust binary and compares stdout+stderr against
// the sibling .want entry for the same name. This exercises the
// actual CLI binary, not the packages directly.
func TestFunctional(t *testing.T) {
	projectRoot, err := filepath.Abs("..")
	if err != nil {
		t.Fatalf("failed to get project root: %v", err)
	}

	binaryPath := filepath.Join(t.TempDir(), "dust-test-binary")
	build := exec.Command("go", "build", "-o", binaryPath, "./cmd/dust")
	build.Dir = projectRoot
	if output, err := build.CombinedOutput(); err != nil {
		t.Fatalf("failed to build binary: %v\n%s", err, output)
	}

	archive, err := txtar.ParseFile("fixtures/golden.txtar")
	if err != nil {
		t.Fatalf("failed to parse golden.txtar: %v", err)
	}

	sources := make(map[string][]byte)
	wants := make(map[string]string)
	for _, f := range archive.Files {
		switch {
		case strings.HasSuffix(f.Name, ".dt"):
			sources[strings.TrimSuffix(f.Name, ".dt")] = f.Data
		case strings.HasSuffix(f.Name, ".want"):
			wants[strings.TrimSuffix(f.Name, ".want")] = strings.TrimSpace(string(f.Data))
		}
	}
	if len(sources) == 0 {
		t.Skip("no .dt entries found in golden.txtar")
	}

	dir := t.TempDir()
	for name, want := range wants {
		name, want := name, want
		src, ok := sources[name]
		if !ok {
			t.Fatalf("%s.want has no matching %s.dt entry", name, name)
		}

		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".dt")
			if err := os.WriteFile(path, src, 0644); err != nil {
				t.Fatalf("failed to write fixture source: %v", err)
			}

			cmd := exec.Command(binaryPath, "run", path)
			cmd.Dir = projectRoot
			cmd.Env = append(os.Environ(), "DUST_STACK_LIMIT=4096")
			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr
			_ = cmd.Run()

			stdoutStr := strings.TrimSpace(stdout.String())
			stderrStr := strings.TrimSpace(stderr.String())
			stderrStr = strings.ReplaceAll(stderrStr, projectRoot+"/", "")

			var got string
			switch {
			case stdoutStr != "" && stderrStr != "":
				got = stdoutStr + "\n" + stderrStr
			case stdoutStr != "":
				got = stdoutStr
			default:
				got = stderrStr
			}
			got = strings.TrimSpace(strings.ReplaceAll(got, "\r\n", "\n"))

			if got != want {
				t.Errorf("output mismatch:\n--- want ---\n%s\n--- got ---\n%s", want, got)
			}
		})
	}
}
