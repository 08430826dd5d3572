package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"fleetwatch/internal/tracking/models"
)

// operator is the terminal on the other side of the console. Input lines
// are read on a background goroutine so the REPL can also react to a
// forced logout while waiting for the next command.
type operator struct {
	mu    sync.Mutex
	out   io.Writer
	lines chan string
}

func newOperator(in io.Reader, out io.Writer) *operator {
	o := &operator{out: out, lines: make(chan string)}
	go func() {
		defer close(o.lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			o.lines <- scanner.Text()
		}
	}()
	return o
}

// readLine blocks for the next input line. io.EOF is returned once the
// input is exhausted.
func (o *operator) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-o.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	}
}

// ask prints prompt and returns the answer.
func (o *operator) ask(ctx context.Context, prompt string) (string, error) {
	o.printf("%s", prompt)
	return o.readLine(ctx)
}

// Confirm asks a yes/no question; only "y" or "yes" confirms. Running out
// of input declines.
func (o *operator) Confirm(ctx context.Context, prompt string) (bool, error) {
	answer, err := o.ask(ctx, prompt+" [y/N]: ")
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Notify prints a notice on its own lines.
func (o *operator) Notify(_ context.Context, n models.Notice) {
	if n.Level == models.NoticeError {
		o.printf("\n!! %s\n\n", n.Message)
		return
	}
	o.printf("\n%s\n\n", n.Message)
}

func (o *operator) printf(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.out, format, args...)
}

// write emits a rendered block in one piece.
func (o *operator) write(p []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, _ = o.out.Write(p)
}
