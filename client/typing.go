package client

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultTypingIdle is how long the compose box may stay inactive before
// the notifier emits the stop signal on the user's behalf.
const DefaultTypingIdle = time.Second

// TypingSignaler emits typing signals to a channel room. Implemented by
// Socket.
type TypingSignaler interface {
	TypingStart(ctx context.Context, channelID int64, userName string) error
	TypingStop(ctx context.Context, channelID int64, userName string) error
}

// Notifier debounces typing signals for one compose box: a burst of
// keystrokes emits a single start, and a stop follows either explicitly on
// send or automatically after the idle window elapses.
type Notifier struct {
	mu sync.Mutex

	signaler  TypingSignaler
	channelID int64
	userName  string
	idle      time.Duration

	active bool
	timer  *time.Timer
}

// NewNotifier creates a notifier with the default idle window.
func NewNotifier(signaler TypingSignaler, channelID int64, userName string) *Notifier {
	return &Notifier{
		signaler:  signaler,
		channelID: channelID,
		userName:  userName,
		idle:      DefaultTypingIdle,
	}
}

// SetIdle overrides the inactivity window. Used by tests.
func (n *Notifier) SetIdle(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.idle = d
}

// Keystroke records compose-box activity. The first keystroke of a burst
// emits typing-start; every keystroke pushes the automatic stop further out.
func (n *Notifier) Keystroke(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.idle, n.idleStop)

	if !n.active {
		n.active = true
		_ = n.signaler.TypingStart(ctx, n.channelID, n.userName)
	}
}

// Stop emits typing-stop immediately. Called when the user sends or clears
// the compose box; safe to call when not typing.
func (n *Notifier) Stop(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked(ctx)
}

// Close cancels the pending auto-stop and emits a final stop if needed.
func (n *Notifier) Close() {
	n.Stop(context.Background())
}

func (n *Notifier) idleStop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked(context.Background())
}

func (n *Notifier) stopLocked(ctx context.Context) {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if !n.active {
		return
	}
	n.active = false
	_ = n.signaler.TypingStop(ctx, n.channelID, n.userName)
}

// Roster aggregates peer typing notices into a display line. Names are kept
// in arrival order and de-duplicated.
type Roster struct {
	mu    sync.Mutex
	names []string
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{}
}

// Apply folds a hub event into the roster. Non-typing events other than a
// peer leaving are ignored.
func (r *Roster) Apply(event Event) {
	switch event.Type {
	case EventUserTyping:
		r.Add(event.UserName)
	case EventUserStopTyping, EventUserLeft:
		r.Remove(event.UserName)
	}
}

// Add records a typing peer; repeated adds are no-ops.
func (r *Roster) Add(name string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.names {
		if existing == name {
			return
		}
	}
	r.names = append(r.names, name)
}

// Remove clears a peer's typing state; unknown names are no-ops.
func (r *Roster) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.names {
		if existing == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			return
		}
	}
}

// Names returns the typing peers in arrival order.
func (r *Roster) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Line renders the indicator text, or "" when nobody is typing.
func (r *Roster) Line() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch len(r.names) {
	case 0:
		return ""
	case 1:
		return r.names[0] + " is typing..."
	default:
		return strings.Join(r.names, ", ") + " are typing..."
	}
}
