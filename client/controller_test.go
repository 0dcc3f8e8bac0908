package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBackend = errors.New("backend unavailable")

// fakeAPI is a scriptable API double. onSend runs while SendMessage is in
// flight, which lets tests observe or race the optimistic state.
type fakeAPI struct {
	mu     sync.Mutex
	nextID int64

	failSend   bool
	failUpdate bool
	failDelete bool

	onSend func(msg *Message)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{nextID: 100}
}

func (f *fakeAPI) ListMessages(_ context.Context, _ int64, _ *int64, _ int, _ *time.Time) ([]Message, error) {
	return nil, nil
}

func (f *fakeAPI) SendMessage(_ context.Context, workspaceID int64, channelID *int64, content, clientTag string) (*Message, error) {
	if f.failSend {
		return nil, errBackend
	}
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.mu.Unlock()

	now := time.Now()
	msg := &Message{
		ID:          id,
		WorkspaceID: workspaceID,
		ChannelID:   channelID,
		Content:     content,
		ClientTag:   clientTag,
		CreatedAt:   now,
		UpdatedAt:   now,
		User:        User{ID: 1, Name: "Alice", Email: "alice@example.com"},
	}
	if f.onSend != nil {
		f.onSend(msg)
	}
	return msg, nil
}

func (f *fakeAPI) UpdateMessage(_ context.Context, id int64, content string) (*Message, error) {
	if f.failUpdate {
		return nil, errBackend
	}
	now := time.Now()
	return &Message{
		ID:        id,
		Content:   content,
		CreatedAt: now.Add(-time.Minute),
		UpdatedAt: now,
		User:      User{ID: 1, Name: "Alice", Email: "alice@example.com"},
	}, nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, _ int64) error {
	if f.failDelete {
		return errBackend
	}
	return nil
}

func newTestController(api API) *Controller {
	return NewController(api, 1, nil, User{ID: 1, Name: "Alice", Email: "alice@example.com"})
}

func TestSendReplacesOptimisticEntry(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(api)

	var sawTemp bool
	api.onSend = func(_ *Message) {
		for _, msg := range c.Messages() {
			if msg.ID < 0 && msg.Content == "hello" {
				sawTemp = true
			}
		}
	}

	c.SetCompose("hello")
	if err := c.Send(context.Background(), c.Compose()); err != nil {
		t.Fatalf("send: %v", err)
	}

	if !sawTemp {
		t.Errorf("expected optimistic entry visible while request in flight")
	}
	if c.Compose() != "" {
		t.Errorf("expected compose cleared, got %q", c.Compose())
	}

	messages := c.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].ID <= 0 {
		t.Errorf("expected authoritative id, got %d", messages[0].ID)
	}
	if messages[0].Content != "hello" {
		t.Errorf("unexpected content %q", messages[0].Content)
	}
}

func TestSendFailureRollsBack(t *testing.T) {
	api := newFakeAPI()
	api.failSend = true
	c := newTestController(api)

	c.SetCompose("doomed")
	if err := c.Send(context.Background(), c.Compose()); !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}

	if len(c.Messages()) != 0 {
		t.Errorf("expected empty list after rollback, got %d entries", len(c.Messages()))
	}
	if c.Compose() != "doomed" {
		t.Errorf("expected compose restored, got %q", c.Compose())
	}
}

func TestSendRejectsEmptyContent(t *testing.T) {
	c := newTestController(newFakeAPI())
	if err := c.Send(context.Background(), "   "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestBroadcastBeforeResponseDoesNotDuplicate(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(api)

	// The hub echo races the REST response and arrives first.
	api.onSend = func(msg *Message) {
		c.Apply(Event{Type: EventNewMessage, Message: msg})
	}

	if err := c.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	messages := c.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected exactly 1 message, got %d", len(messages))
	}
	if messages[0].ID <= 0 {
		t.Errorf("expected authoritative id, got %d", messages[0].ID)
	}
}

func TestBroadcastWithoutTagClaimsByContent(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(api)

	api.onSend = func(msg *Message) {
		echo := *msg
		echo.ClientTag = ""
		c.Apply(Event{Type: EventNewMessage, Message: &echo})
	}

	if err := c.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if got := len(c.Messages()); got != 1 {
		t.Fatalf("expected exactly 1 message, got %d", got)
	}
}

func TestApplyInsertsPeersInCreationOrder(t *testing.T) {
	c := newTestController(newFakeAPI())
	base := time.Now()

	second := Message{ID: 2, Content: "second", CreatedAt: base.Add(time.Second), User: User{ID: 2, Name: "Bob"}}
	first := Message{ID: 1, Content: "first", CreatedAt: base, User: User{ID: 2, Name: "Bob"}}

	// Broadcasts arrive out of order.
	c.Apply(Event{Type: EventNewMessage, Message: &second})
	c.Apply(Event{Type: EventNewMessage, Message: &first})
	c.Apply(Event{Type: EventNewMessage, Message: &first}) // duplicate delivery

	messages := c.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Content != "first" || messages[1].Content != "second" {
		t.Errorf("unexpected order: %q, %q", messages[0].Content, messages[1].Content)
	}
}

func TestApplyUpdateAndDeleteAreNoopsWhenAbsent(t *testing.T) {
	c := newTestController(newFakeAPI())

	ghost := Message{ID: 99, Content: "ghost", CreatedAt: time.Now()}
	c.Apply(Event{Type: EventMessageUpdated, Message: &ghost})
	c.Apply(Event{Type: EventMessageDeleted, MessageID: 99})

	if got := len(c.Messages()); got != 0 {
		t.Fatalf("expected empty list, got %d entries", got)
	}
}

func TestEditFailurePreservesDraft(t *testing.T) {
	api := newFakeAPI()
	api.failUpdate = true
	c := newTestController(api)

	original := Message{ID: 5, Content: "foo", CreatedAt: time.Now(), UpdatedAt: time.Now(), User: User{ID: 1, Name: "Alice"}}
	c.Apply(Event{Type: EventNewMessage, Message: &original})

	if err := c.Edit(context.Background(), 5, "bar"); !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}

	messages := c.Messages()
	if messages[0].Content != "foo" {
		t.Errorf("expected content rolled back to foo, got %q", messages[0].Content)
	}
	if draft, ok := c.Draft(5); !ok || draft != "bar" {
		t.Errorf("expected preserved draft bar, got %q (%v)", draft, ok)
	}
}

func TestEditSuccessTakesServerCopy(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(api)

	original := Message{ID: 5, Content: "foo", CreatedAt: time.Now(), UpdatedAt: time.Now(), User: User{ID: 1, Name: "Alice"}}
	c.Apply(Event{Type: EventNewMessage, Message: &original})

	if err := c.Edit(context.Background(), 5, "bar"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got := c.Messages()[0].Content; got != "bar" {
		t.Errorf("expected bar, got %q", got)
	}
	if _, ok := c.Draft(5); ok {
		t.Errorf("expected no draft after successful edit")
	}
}

func TestDeleteFailureRestoresInOrder(t *testing.T) {
	api := newFakeAPI()
	api.failDelete = true
	c := newTestController(api)

	base := time.Now()
	for i, content := range []string{"one", "two", "three"} {
		msg := Message{ID: int64(i + 1), Content: content, CreatedAt: base.Add(time.Duration(i) * time.Second), User: User{ID: 1, Name: "Alice"}}
		c.Apply(Event{Type: EventNewMessage, Message: &msg})
	}

	if err := c.Delete(context.Background(), 2); !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}

	messages := c.Messages()
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages after rollback, got %d", len(messages))
	}
	if messages[1].Content != "two" {
		t.Errorf("expected two restored in place, got %q", messages[1].Content)
	}
}

func TestDeleteSuccessRemoves(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(api)

	msg := Message{ID: 7, Content: "bye", CreatedAt: time.Now(), User: User{ID: 1, Name: "Alice"}}
	c.Apply(Event{Type: EventNewMessage, Message: &msg})

	if err := c.Delete(context.Background(), 7); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := len(c.Messages()); got != 0 {
		t.Fatalf("expected empty list, got %d entries", got)
	}

	if err := c.Delete(context.Background(), 7); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage, got %v", err)
	}
}
