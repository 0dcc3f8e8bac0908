package client

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeSignaler struct {
	mu     sync.Mutex
	starts int
	stops  int
}

func (f *fakeSignaler) TypingStart(_ context.Context, _ int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return nil
}

func (f *fakeSignaler) TypingStop(_ context.Context, _ int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeSignaler) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func TestNotifierEmitsOneStartPerBurst(t *testing.T) {
	signaler := &fakeSignaler{}
	n := NewNotifier(signaler, 1, "Alice")
	n.SetIdle(50 * time.Millisecond)

	ctx := context.Background()
	n.Keystroke(ctx)
	n.Keystroke(ctx)
	n.Keystroke(ctx)

	if starts, stops := signaler.counts(); starts != 1 || stops != 0 {
		t.Fatalf("expected 1 start and 0 stops mid-burst, got %d/%d", starts, stops)
	}

	// The automatic stop fires once the compose box goes idle.
	deadline := time.Now().Add(time.Second)
	for {
		if _, stops := signaler.counts(); stops == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("auto-stop never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNotifierExplicitStopIsIdempotent(t *testing.T) {
	signaler := &fakeSignaler{}
	n := NewNotifier(signaler, 1, "Alice")
	n.SetIdle(time.Minute)

	ctx := context.Background()
	n.Keystroke(ctx)
	n.Stop(ctx)
	n.Stop(ctx)

	if starts, stops := signaler.counts(); starts != 1 || stops != 1 {
		t.Fatalf("expected 1 start and 1 stop, got %d/%d", starts, stops)
	}
}

func TestNotifierRestartsAfterStop(t *testing.T) {
	signaler := &fakeSignaler{}
	n := NewNotifier(signaler, 1, "Alice")
	n.SetIdle(time.Minute)
	defer n.Close()

	ctx := context.Background()
	n.Keystroke(ctx)
	n.Stop(ctx)
	n.Keystroke(ctx)

	if starts, _ := signaler.counts(); starts != 2 {
		t.Fatalf("expected a new start after stop, got %d", starts)
	}
}

func TestRosterLine(t *testing.T) {
	r := NewRoster()

	if got := r.Line(); got != "" {
		t.Errorf("expected empty line, got %q", got)
	}

	r.Apply(Event{Type: EventUserTyping, UserName: "Alice"})
	r.Apply(Event{Type: EventUserTyping, UserName: "Alice"}) // duplicate
	if got := r.Line(); got != "Alice is typing..." {
		t.Errorf("unexpected line: %q", got)
	}

	r.Apply(Event{Type: EventUserTyping, UserName: "Bob"})
	if got := r.Line(); got != "Alice, Bob are typing..." {
		t.Errorf("unexpected line: %q", got)
	}

	r.Apply(Event{Type: EventUserStopTyping, UserName: "Alice"})
	if got := r.Line(); got != "Bob is typing..." {
		t.Errorf("unexpected line: %q", got)
	}

	r.Apply(Event{Type: EventUserLeft, UserName: "Bob"})
	if got := r.Line(); got != "" {
		t.Errorf("expected cleared line, got %q", got)
	}

	r.Remove("Nobody") // unknown name is a no-op
}
