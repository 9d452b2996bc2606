package e2e

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

type runSummary struct {
	Input      string   `json:"input"`
	Error      string   `json:"error"`
	Files      []string `json:"files"`
	Modules    []string `json:"modules"`
	Violations int      `json:"violations"`
	Changed    bool     `json:"changed"`
	Database   string   `json:"database"`
}

func TestRdl2svE2E_Testdata(t *testing.T) {
	repoRoot := findRepoRoot(t)
	bin := buildBinary(t, repoRoot)
	rdlDir := filepath.Join(repoRoot, "testdata", "rdl")

	out := t.TempDir()
	args := []string{"--json", "-o", out, "--sqlite", "auto",
		filepath.Join(rdlDir, "soc.json"), filepath.Join(rdlDir, "overlap.json")}

	first, _, err := run(t, bin, args...)
	if err != nil {
		t.Fatalf("rdl2sv failed: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("want 2 summaries, got %d", len(first))
	}
	byBase := map[string]runSummary{}
	for _, s := range first {
		if s.Error != "" {
			t.Fatalf("%s: %s", s.Input, s.Error)
		}
		byBase[filepath.Base(s.Input)] = s
	}

	soc := byBase["soc.json"]
	if len(soc.Modules) != 2 || soc.Modules[1] != "soc" {
		t.Errorf("soc modules = %v", soc.Modules)
	}
	for _, f := range soc.Files {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("missing output %s: %v", f, err)
		}
	}
	if byBase["overlap.json"].Violations == 0 {
		t.Error("overlap.json reports no policy violation")
	}
	if soc.Database == "" || soc.Database != byBase["overlap.json"].Database {
		t.Errorf("runs should share one database, got %q and %q", soc.Database, byBase["overlap.json"].Database)
	}
	if _, err := os.Stat(filepath.Join(out, "rdl2sv.facts.json")); err != nil {
		t.Errorf("facts snapshot: %v", err)
	}
}

func TestRdl2svE2E_Failures(t *testing.T) {
	repoRoot := findRepoRoot(t)
	bin := buildBinary(t, repoRoot)
	rdlDir := filepath.Join(repoRoot, "testdata", "rdl")

	tests := []struct {
		name string
		args []string
	}{
		{"contract", []string{filepath.Join(rdlDir, "bad_contract.json")}},
		{"policy errors", []string{"--policy-errors", filepath.Join(rdlDir, "overlap.json")}},
		{"no input", []string{filepath.Join(rdlDir, "*.rdl")}},
		{"bad bus", []string{"--bus", "wishbone", filepath.Join(rdlDir, "soc.json")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := t.TempDir()
			_, stderr, err := run(t, bin, append([]string{"-o", out}, tt.args...)...)
			if err == nil {
				t.Fatalf("expected a failure\nstderr:\n%s", stderr)
			}
			if matches, _ := filepath.Glob(filepath.Join(out, "*.sv")); len(matches) > 0 {
				t.Errorf("files written despite the failure: %v", matches)
			}
		})
	}
}

func TestRdl2svE2E_Init(t *testing.T) {
	repoRoot := findRepoRoot(t)
	bin := buildBinary(t, repoRoot)
	path := filepath.Join(t.TempDir(), "rdl2sv.json")

	if _, stderr, err := run(t, bin, "init", path); err != nil {
		t.Fatalf("init: %v\n%s", err, stderr)
	}
	if _, _, err := run(t, bin, "init", path); err == nil {
		t.Error("init overwrote an existing file without --force")
	}
	if _, stderr, err := run(t, bin, "init", "--force", path); err != nil {
		t.Fatalf("init --force: %v\n%s", err, stderr)
	}
}

func run(t *testing.T, bin string, args ...string) ([]runSummary, string, error) {
	t.Helper()

	home := t.TempDir()
	cmd := exec.Command(bin, args...)
	cmd.Dir = t.TempDir()
	cmd.Env = append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+filepath.Join(home, ".config"),
		"RDL2SV_TIMING=",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, stderr.String(), err
	}

	var summaries []runSummary
	if bytes.HasPrefix(bytes.TrimSpace(stdout.Bytes()), []byte("[")) {
		if err := json.Unmarshal(stdout.Bytes(), &summaries); err != nil {
			t.Fatalf("parse JSON output: %v\nstdout:\n%s", err, stdout.String())
		}
	}
	return summaries, stderr.String(), nil
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "rdl2sv")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/rdl2sv")
	cmd.Dir = repoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build rdl2sv failed: %v\n%s", err, string(out))
	}
	return binPath
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	dir := start
	for {
		candidate := filepath.Join(dir, "testdata", "rdl", "soc.json")
		if _, err := os.Stat(candidate); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("repo root not found from %s", start)
		}
		dir = parent
	}
}
