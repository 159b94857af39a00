package operator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Terminal is the default operator channel, bound to stdin/stdout.
// Messages are displayed with run and cycle context and the operator's
// reply is read as one line of input.
type Terminal struct {
	in      io.Reader
	out     io.Writer
	timeout time.Duration

	startOnce sync.Once
	lines     chan string
	readErr   chan error
}

// NewTerminal creates a terminal channel using the process stdin/stdout.
// A negative timeout waits forever.
func NewTerminal(timeout time.Duration) *Terminal {
	return NewTerminalWithIO(os.Stdin, os.Stdout, timeout)
}

// NewTerminalWithIO creates a terminal channel over explicit streams.
// Used by tests to script operator input.
func NewTerminalWithIO(in io.Reader, out io.Writer, timeout time.Duration) *Terminal {
	return &Terminal{
		in:      in,
		out:     out,
		timeout: timeout,
		lines:   make(chan string),
		readErr: make(chan error, 1),
	}
}

// startReader begins the single background line reader. Reading happens
// on a goroutine because stdin cannot be interrupted by a deadline; a
// reply arriving after a timeout is delivered to the next SendAndWait
// rather than lost.
func (t *Terminal) startReader() {
	scanner := bufio.NewScanner(t.in)
	go func() {
		for scanner.Scan() {
			t.lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			t.readErr <- err
		}
		close(t.lines)
	}()
}

// SendAndWait prints the message and waits for one line of operator
// input, the timeout, or context cancellation — whichever comes first.
func (t *Terminal) SendAndWait(ctx context.Context, message, runID string, cycleNumber int) (string, error) {
	t.startOnce.Do(t.startReader)

	fmt.Fprintf(t.out, "[AGENT - %s | Cycle %d]: %s\n", runID, cycleNumber, message)
	fmt.Fprint(t.out, "[OPERATOR]: ")

	var timeoutC <-chan time.Time
	if t.timeout >= 0 {
		timer := time.NewTimer(t.timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case line, ok := <-t.lines:
		if !ok {
			// Input stream closed (EOF). Same treatment as a timeout:
			// the run continues with an uninformative response.
			return NoResponse, nil
		}
		return line, nil
	case <-timeoutC:
		fmt.Fprintln(t.out)
		return NoResponse, nil
	case <-ctx.Done():
		return NoResponse, ctx.Err()
	}
}

// Close is a no-op for the terminal channel; stdin is owned by the
// process.
func (t *Terminal) Close(ctx context.Context) error { return nil }
