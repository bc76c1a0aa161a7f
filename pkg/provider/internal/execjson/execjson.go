// Package execjson runs external helper programs for the exec-backed
// providers. A command line is parsed once with shell quoting rules; each run
// appends per-call arguments, feeds stdin and, for JSON helpers, decodes
// stdout into the caller's value.
package execjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// ErrEmptyCommand is returned by [Parse] for a blank command line.
var ErrEmptyCommand = errors.New("execjson: command is empty")

// maxStderr bounds how much helper stderr is quoted in errors.
const maxStderr = 2048

// Command is a parsed external command. It is immutable and safe for
// concurrent use; every run starts a new process.
type Command struct {
	name string
	args []string
}

// Parse splits cmdline using shell quoting rules, so
// `python3 "/opt/sign models/detect.py" --gpu` is three words.
func Parse(cmdline string) (*Command, error) {
	parser := shellwords.NewParser()
	words, err := parser.Parse(cmdline)
	if err != nil {
		return nil, fmt.Errorf("execjson: parse %q: %w", cmdline, err)
	}
	if len(words) == 0 {
		return nil, ErrEmptyCommand
	}
	return &Command{name: words[0], args: words[1:]}, nil
}

// Name returns the program name.
func (c *Command) Name() string { return c.name }

// String returns the command line as parsed, without per-call arguments.
func (c *Command) String() string {
	return strings.Join(append([]string{c.name}, c.args...), " ")
}

// Output runs the command with extra appended to its arguments and returns
// stdout. A non-zero exit is reported with the tail of stderr.
func (c *Command) Output(ctx context.Context, stdin io.Reader, extra ...string) ([]byte, error) {
	args := append(append([]string{}, c.args...), extra...)
	cmd := exec.CommandContext(ctx, c.name, args...)
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("execjson: %s: %w", c.name, ctxErr)
		}
		return nil, fmt.Errorf("execjson: %s failed: %w: %s", c.name, err, tail(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Decode runs the command like [Command.Output] and unmarshals stdout into v.
func (c *Command) Decode(ctx context.Context, stdin io.Reader, v any, extra ...string) error {
	out, err := c.Output(ctx, stdin, extra...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(out, v); err != nil {
		return fmt.Errorf("execjson: decode %s output: %w", c.name, err)
	}
	return nil
}

// Lines joins items one per line, the stdin format the helpers read.
func Lines(items []string) io.Reader {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(it)
		b.WriteByte('\n')
	}
	return strings.NewReader(b.String())
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = "..." + s[len(s)-maxStderr:]
	}
	return s
}
