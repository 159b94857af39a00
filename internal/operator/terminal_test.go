package operator

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestTerminalScriptedReply(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminalWithIO(strings.NewReader("Yes, carry on.\n"), &out, time.Second)

	reply, err := term.SendAndWait(context.Background(), "Should I continue?", "run-1", 2)
	if err != nil {
		t.Fatalf("SendAndWait: %v", err)
	}
	if reply != "Yes, carry on." {
		t.Errorf("reply: got %q", reply)
	}

	printed := out.String()
	if !strings.Contains(printed, "[AGENT - run-1 | Cycle 2]: Should I continue?") {
		t.Errorf("agent message formatting wrong:\n%s", printed)
	}
	if !strings.Contains(printed, "[OPERATOR]: ") {
		t.Errorf("operator prompt missing:\n%s", printed)
	}
}

func TestTerminalTimeoutYieldsNoResponse(t *testing.T) {
	// A pipe with no writer blocks the reader forever.
	r, w := io.Pipe()
	defer w.Close()

	var out bytes.Buffer
	term := NewTerminalWithIO(r, &out, 0)

	reply, err := term.SendAndWait(context.Background(), "anyone there?", "run-1", 1)
	if err != nil {
		t.Fatalf("timeout must not be an error: %v", err)
	}
	if reply != NoResponse {
		t.Errorf("got %q, want the no-response sentinel", reply)
	}
}

func TestTerminalEOFYieldsNoResponse(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminalWithIO(strings.NewReader(""), &out, time.Second)

	reply, err := term.SendAndWait(context.Background(), "hello", "run-1", 1)
	if err != nil {
		t.Fatalf("EOF must not be an error: %v", err)
	}
	if reply != NoResponse {
		t.Errorf("got %q, want the no-response sentinel", reply)
	}
}

func TestTerminalContextCancellation(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	var out bytes.Buffer
	term := NewTerminalWithIO(r, &out, -1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reply, err := term.SendAndWait(ctx, "hello", "run-1", 1)
	if err == nil {
		t.Fatal("expected the context error")
	}
	if reply != NoResponse {
		t.Errorf("got %q, want the no-response sentinel", reply)
	}
}

func TestTerminalSequentialReplies(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminalWithIO(strings.NewReader("first\nsecond\n"), &out, time.Second)

	for _, want := range []string{"first", "second"} {
		reply, err := term.SendAndWait(context.Background(), "msg", "run-1", 1)
		if err != nil {
			t.Fatalf("SendAndWait: %v", err)
		}
		if reply != want {
			t.Errorf("got %q, want %q", reply, want)
		}
	}
}
