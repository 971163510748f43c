package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aellingwood/sasswatch/internal/config"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// newTestRunner writes an input file and returns a Runner that captures
// stdout and stderr.
func newTestRunner(t *testing.T, body string) (*Runner, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "main.scss")
	if err := os.WriteFile(input, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	r := &Runner{Input: input, Stdout: &stdout, Stderr: &stderr}
	return r, &stdout, &stderr
}

// ---- TestNew ----

func TestNew(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := config.Default()
	cfg.Command = "sassc <input>"
	cfg.Output = "out/site.css"
	cfg.Verbosity = 2

	r, err := New("main.scss", *cfg)
	if err != nil {
		t.Fatal(err)
	}

	wd, _ := os.Getwd()
	if r.Input != filepath.Join(wd, "main.scss") {
		t.Errorf("Input = %q, want absolute path", r.Input)
	}
	if r.Output != filepath.Join(wd, "out", "site.css") {
		t.Errorf("Output = %q, want absolute path", r.Output)
	}
	if r.Command != "sassc <input>" {
		t.Errorf("Command = %q", r.Command)
	}
	if r.Verbosity != 2 {
		t.Errorf("Verbosity = %d, want 2", r.Verbosity)
	}
	if r.Stdout != os.Stdout || r.Stderr != os.Stderr {
		t.Error("expected process stdout and stderr by default")
	}
}

func TestNew_NoOutput(t *testing.T) {
	r, err := New("main.scss", *config.Default())
	if err != nil {
		t.Fatal(err)
	}
	if r.Output != "" {
		t.Errorf("Output = %q, want empty", r.Output)
	}
}

// ---- TestExpand ----

func TestExpand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		output  string
		want    string
	}{
		{"input only", "sassc <input>", "", "sassc /in/main.scss"},
		{"input and output", "sassc <input> <output>", "/out/site.css", "sassc /in/main.scss /out/site.css"},
		{"output unset keeps placeholder", "cp <input> <output>", "", "cp /in/main.scss <output>"},
		{"repeated placeholder", "echo <input> <input>", "", "echo /in/main.scss /in/main.scss"},
		{"no placeholders", "sassc --stdin", "/out/a.css", "sassc --stdin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Runner{Input: "/in/main.scss", Output: tt.output, Command: tt.command}
			if got := r.Expand(); got != tt.want {
				t.Errorf("Expand() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---- TestProcess ----

func TestProcess_CopyToStdout(t *testing.T) {
	r, stdout, _ := newTestRunner(t, ".a { color: red; }")

	if err := r.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := stdout.String(); got != ".a { color: red; }" {
		t.Errorf("stdout = %q", got)
	}
}

func TestProcess_CopyToFile(t *testing.T) {
	r, stdout, _ := newTestRunner(t, ".a {}")
	r.Output = filepath.Join(t.TempDir(), "dist", "site.css")

	if err := r.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(r.Output)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != ".a {}" {
		t.Errorf("output = %q", data)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty when writing to a file", stdout.String())
	}
}

func TestProcess_MissingInput(t *testing.T) {
	r := &Runner{Input: filepath.Join(t.TempDir(), "gone.scss"), Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	if err := r.Process(context.Background()); err == nil {
		t.Error("expected error for a missing input")
	}
}

func TestProcess_CommandReadsStdin(t *testing.T) {
	requireShell(t)
	r, stdout, _ := newTestRunner(t, "abc")
	r.Command = "tr a-z A-Z"

	if err := r.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := stdout.String(); got != "ABC" {
		t.Errorf("stdout = %q, want %q", got, "ABC")
	}
}

func TestProcess_CommandInputPlaceholder(t *testing.T) {
	requireShell(t)
	r, stdout, _ := newTestRunner(t, "from file")
	r.Command = "cat <input>"
	r.Output = filepath.Join(t.TempDir(), "out.css")

	if err := r.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(r.Output)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "from file" {
		t.Errorf("output = %q", data)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
}

func TestProcess_CommandWritesOutputItself(t *testing.T) {
	requireShell(t)
	r, _, _ := newTestRunner(t, "direct")
	r.Output = filepath.Join(t.TempDir(), "out.css")
	r.Command = "cp <input> <output>"

	if err := r.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(r.Output)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "direct" {
		t.Errorf("output = %q", data)
	}
}

func TestProcess_CommandStderrForwarded(t *testing.T) {
	requireShell(t)
	r, _, stderr := newTestRunner(t, "")
	r.Command = "echo deprecated 1>&2"

	if err := r.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stderr.String(), "deprecated") {
		t.Errorf("stderr = %q, want command stderr", stderr.String())
	}
}

func TestProcess_CommandFailure(t *testing.T) {
	requireShell(t)
	r, stdout, _ := newTestRunner(t, "")
	r.Output = filepath.Join(t.TempDir(), "out.css")
	if err := os.WriteFile(r.Output, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}
	r.Command = "echo partial; exit 3"

	err := r.Process(context.Background())
	var cerr *CommandError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *CommandError", err)
	}
	if cerr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", cerr.ExitCode)
	}
	if want := `command "echo partial; exit 3" exited with exit code 3`; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	data, _ := os.ReadFile(r.Output)
	if string(data) != "previous" {
		t.Errorf("output = %q, want it left untouched", data)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
}

func TestProcess_EmptyStdoutLeavesOutput(t *testing.T) {
	requireShell(t)
	r, _, _ := newTestRunner(t, "")
	r.Output = filepath.Join(t.TempDir(), "out.css")
	if err := os.WriteFile(r.Output, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}
	r.Command = "true"

	if err := r.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(r.Output)
	if string(data) != "previous" {
		t.Errorf("output = %q, want it left untouched", data)
	}
}

func TestProcess_Progress(t *testing.T) {
	tests := []struct {
		verbosity int
		want      string
	}{
		{0, ""},
		{1, "."},
		{2, ""},
	}

	for _, tt := range tests {
		r, _, stderr := newTestRunner(t, "x")
		r.Verbosity = tt.verbosity
		if err := r.Process(context.Background()); err != nil {
			t.Fatal(err)
		}
		if stderr.String() != tt.want {
			t.Errorf("verbosity %d: stderr = %q, want %q", tt.verbosity, stderr.String(), tt.want)
		}
	}
}

func TestProcess_ProgressOnFailure(t *testing.T) {
	requireShell(t)
	r, _, stderr := newTestRunner(t, "")
	r.Verbosity = 1
	r.Command = "exit 1"

	if err := r.Process(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if stderr.String() != "." {
		t.Errorf("stderr = %q, want %q", stderr.String(), ".")
	}
}
