// Package runner turns a watcher notification into output: it either runs the
// configured shell command over the input stylesheet or copies the input
// verbatim, and writes the result to the output file or stdout.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/aellingwood/sasswatch/internal/config"
)

// Placeholders substituted in the command before it runs.
const (
	InputPlaceholder  = "<input>"
	OutputPlaceholder = "<output>"
)

// CommandError reports a command that ran but exited unsuccessfully.
type CommandError struct {
	Command  string
	ExitCode int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q exited with exit code %d", e.Command, e.ExitCode)
}

// Runner processes one input file per notification.
type Runner struct {
	Input     string // absolute path to the input stylesheet
	Output    string // output file; empty writes to Stdout
	Command   string // shell command; empty copies Input to the output
	Verbosity int

	Stdout io.Writer
	Stderr io.Writer
}

// New returns a Runner for input using the command, output and verbosity
// from cfg.
func New(input string, cfg config.Config) (*Runner, error) {
	in, err := filepath.Abs(input)
	if err != nil {
		return nil, fmt.Errorf("resolving input %s: %w", input, err)
	}
	var out string
	if cfg.Output != "" {
		out, err = filepath.Abs(cfg.Output)
		if err != nil {
			return nil, fmt.Errorf("resolving output %s: %w", cfg.Output, err)
		}
	}
	return &Runner{
		Input:     in,
		Output:    out,
		Command:   cfg.Command,
		Verbosity: cfg.Verbosity,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}, nil
}

// Process handles one notification. A failing command returns a
// *CommandError and leaves the output untouched.
func (r *Runner) Process(ctx context.Context) error {
	var err error
	if r.Command != "" {
		err = r.runCommand(ctx)
	} else {
		err = r.copyInput()
	}
	if r.Verbosity == 1 {
		fmt.Fprint(r.Stderr, ".")
	}
	return err
}

// Expand returns the command with its placeholders replaced. <output> is
// left as-is when no output file is configured.
func (r *Runner) Expand() string {
	command := strings.ReplaceAll(r.Command, InputPlaceholder, r.Input)
	if r.Output != "" {
		command = strings.ReplaceAll(command, OutputPlaceholder, r.Output)
	}
	return command
}

func (r *Runner) runCommand(ctx context.Context) error {
	command := r.Expand()

	in, err := os.Open(r.Input)
	if err != nil {
		return fmt.Errorf("opening input %s: %w", r.Input, err)
	}
	defer in.Close()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdin = in
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if stderr.Len() > 0 {
		r.Stderr.Write(stderr.Bytes())
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return &CommandError{Command: command, ExitCode: exitErr.ExitCode()}
		}
		return fmt.Errorf("running %q: %w", command, runErr)
	}

	if stdout.Len() == 0 {
		return nil
	}
	return r.write(stdout.Bytes())
}

func (r *Runner) copyInput() error {
	data, err := os.ReadFile(r.Input)
	if err != nil {
		return fmt.Errorf("reading input %s: %w", r.Input, err)
	}
	return r.write(data)
}

func (r *Runner) write(data []byte) error {
	if r.Output == "" {
		if _, err := r.Stdout.Write(data); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.Output), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", r.Output, err)
	}
	if err := os.WriteFile(r.Output, data, 0o644); err != nil {
		return fmt.Errorf("writing output %s: %w", r.Output, err)
	}
	return nil
}
