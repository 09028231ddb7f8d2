package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Interactor obtains a value from the user on behalf of a step. Prompt
// blocks until the user answers or fails; the engine treats a failure like
// any other step failure.
type Interactor interface {
	Prompt(ctx context.Context, message string, options []string) (string, error)
}

// TerminalInteractor asks on an io.Writer and reads answers line by line.
type TerminalInteractor struct {
	out    io.Writer
	reader *bufio.Reader
}

// NewTerminalInteractor wires a terminal interactor over the given streams.
func NewTerminalInteractor(in io.Reader, out io.Writer) *TerminalInteractor {
	return &TerminalInteractor{out: out, reader: bufio.NewReader(in)}
}

// Prompt implements Interactor. With options, an empty answer selects the
// first one.
func (t *TerminalInteractor) Prompt(ctx context.Context, message string, options []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprintf(t.out, "\n❓ %s\n", message)
	if len(options) == 0 {
		fmt.Fprint(t.out, "Your response: ")
		return t.readLine()
	}

	for i, opt := range options {
		fmt.Fprintf(t.out, "  %d. %s\n", i+1, opt)
	}
	fmt.Fprintf(t.out, "Select option [1-%d, default 1]: ", len(options))
	line, err := t.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return options[0], nil
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(options) {
		return "", fmt.Errorf("invalid option %q", line)
	}
	return options[n-1], nil
}

func (t *TerminalInteractor) readLine() (string, error) {
	line, err := t.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading user input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// StaticInteractor answers every prompt with a fixed value. It backs
// non-interactive runs and tests.
type StaticInteractor struct {
	Answer string
}

// Prompt implements Interactor.
func (s *StaticInteractor) Prompt(ctx context.Context, message string, options []string) (string, error) {
	if s.Answer == "" && len(options) > 0 {
		return options[0], nil
	}
	return s.Answer, nil
}
