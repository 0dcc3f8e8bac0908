package client

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmptyContent is returned when a send or edit carries no text.
	ErrEmptyContent = errors.New("content is empty")
	// ErrUnknownMessage is returned when editing or deleting a message that
	// is not in the local list.
	ErrUnknownMessage = errors.New("unknown message")
)

// Controller maintains a consistent message list for one open chat view. It
// applies mutations optimistically, rolls them back on failure and
// reconciles hub events against the optimistic cache, so the view never
// waits on a broadcast round-trip and never shows a sent message twice.
//
// Optimistic entries carry negative ids and a correlation tag; the server
// echoes the tag in both the REST response and the broadcast, and whichever
// arrives first claims the entry.
type Controller struct {
	mu sync.Mutex

	api         API
	workspaceID int64
	channelID   *int64
	self        User

	messages   []Message
	pending    map[string]int64 // clientTag -> temporary id
	nextTempID int64
	compose    string
	drafts     map[int64]string // message id -> failed edit text

	newTag func() string
}

// NewController creates a controller for one channel (or, with a nil
// channelID, the legacy workspace-wide conversation).
func NewController(api API, workspaceID int64, channelID *int64, self User) *Controller {
	return &Controller{
		api:         api,
		workspaceID: workspaceID,
		channelID:   channelID,
		self:        self,
		pending:     make(map[string]int64),
		nextTempID:  -1,
		drafts:      make(map[int64]string),
		newTag:      uuid.NewString,
	}
}

// LoadHistory fetches the channel's message history, replacing the local
// list. In-flight optimistic entries are kept at the tail.
func (c *Controller) LoadHistory(ctx context.Context, limit int) error {
	history, err := c.api.ListMessages(ctx, c.workspaceID, c.channelID, limit, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var temps []Message
	for _, msg := range c.messages {
		if msg.ID < 0 {
			temps = append(temps, msg)
		}
	}
	c.messages = append(history, temps...)
	return nil
}

// Messages returns a snapshot of the rendered list, ascending by creation.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Compose returns the current compose-box text.
func (c *Controller) Compose() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compose
}

// SetCompose updates the compose-box text.
func (c *Controller) SetCompose(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compose = text
}

// Draft returns the preserved text of a failed edit, if any.
func (c *Controller) Draft(messageID int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	draft, ok := c.drafts[messageID]
	return draft, ok
}

// Send appends the message optimistically, clears the compose box and
// persists in the background of the caller. On failure the optimistic entry
// is removed and the compose box restored, leaving state exactly as before.
func (c *Controller) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	tag := c.newTag()
	now := time.Now()

	c.mu.Lock()
	tempID := c.nextTempID
	c.nextTempID--
	c.pending[tag] = tempID
	c.messages = append(c.messages, Message{
		ID:          tempID,
		WorkspaceID: c.workspaceID,
		ChannelID:   c.channelID,
		Content:     content,
		ClientTag:   tag,
		CreatedAt:   now,
		UpdatedAt:   now,
		User:        c.self,
	})
	c.compose = ""
	c.mu.Unlock()

	persisted, err := c.api.SendMessage(ctx, c.workspaceID, c.channelID, content, tag)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if id, ok := c.pending[tag]; ok {
			c.removeByID(id)
			delete(c.pending, tag)
		}
		c.compose = content
		return err
	}

	// The broadcast may have reconciled the entry already.
	if id, ok := c.pending[tag]; ok {
		c.replaceByID(id, *persisted)
		delete(c.pending, tag)
	}
	return nil
}

// Edit replaces a message's content optimistically. On failure the previous
// content is restored and the attempted text preserved as a draft so the
// user can resubmit.
func (c *Controller) Edit(ctx context.Context, messageID int64, newContent string) error {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return ErrEmptyContent
	}

	c.mu.Lock()
	idx := c.indexByID(messageID)
	if idx < 0 {
		c.mu.Unlock()
		return ErrUnknownMessage
	}
	prior := c.messages[idx]
	c.messages[idx].Content = newContent
	c.messages[idx].UpdatedAt = time.Now()
	delete(c.drafts, messageID)
	c.mu.Unlock()

	updated, err := c.api.UpdateMessage(ctx, messageID, newContent)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if idx := c.indexByID(messageID); idx >= 0 {
			c.messages[idx].Content = prior.Content
			c.messages[idx].UpdatedAt = prior.UpdatedAt
		}
		c.drafts[messageID] = newContent
		return err
	}

	if idx := c.indexByID(messageID); idx >= 0 {
		c.messages[idx] = *updated
	}
	return nil
}

// Delete removes a message optimistically; failure restores it in order.
func (c *Controller) Delete(ctx context.Context, messageID int64) error {
	c.mu.Lock()
	idx := c.indexByID(messageID)
	if idx < 0 {
		c.mu.Unlock()
		return ErrUnknownMessage
	}
	removed := c.messages[idx]
	c.messages = append(c.messages[:idx], c.messages[idx+1:]...)
	c.mu.Unlock()

	err := c.api.DeleteMessage(ctx, messageID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if c.indexByID(messageID) < 0 {
			c.insertOrdered(removed)
		}
		return err
	}
	return nil
}

// Apply reconciles a hub event against the local list. Unknown updates and
// repeated deletions are no-ops; a created event for the caller's own send
// claims the optimistic entry instead of inserting a duplicate.
func (c *Controller) Apply(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch event.Type {
	case EventNewMessage:
		if event.Message == nil {
			return
		}
		msg := *event.Message

		if msg.ClientTag != "" {
			if tempID, ok := c.pending[msg.ClientTag]; ok {
				c.replaceByID(tempID, msg)
				delete(c.pending, msg.ClientTag)
				return
			}
		}
		if c.indexByID(msg.ID) >= 0 {
			return
		}
		// Fallback for senders whose tag was lost: claim a matching
		// optimistic entry by author and content.
		for i, existing := range c.messages {
			if existing.ID < 0 && existing.User.ID == msg.User.ID && existing.Content == msg.Content {
				c.dropPendingFor(existing.ID)
				c.messages[i] = msg
				c.sortMessages()
				return
			}
		}
		c.insertOrdered(msg)

	case EventMessageUpdated:
		if event.Message == nil {
			return
		}
		if idx := c.indexByID(event.Message.ID); idx >= 0 {
			c.messages[idx] = *event.Message
		}

	case EventMessageDeleted:
		c.removeByID(event.MessageID)
	}
}

func (c *Controller) indexByID(id int64) int {
	for i := range c.messages {
		if c.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) removeByID(id int64) {
	if idx := c.indexByID(id); idx >= 0 {
		c.messages = append(c.messages[:idx], c.messages[idx+1:]...)
	}
}

func (c *Controller) replaceByID(id int64, msg Message) {
	if idx := c.indexByID(id); idx >= 0 {
		c.messages[idx] = msg
		c.sortMessages()
	} else {
		c.insertOrdered(msg)
	}
}

func (c *Controller) insertOrdered(msg Message) {
	c.messages = append(c.messages, msg)
	c.sortMessages()
}

func (c *Controller) sortMessages() {
	sort.SliceStable(c.messages, func(i, j int) bool {
		return c.messages[i].CreatedAt.Before(c.messages[j].CreatedAt)
	})
}

func (c *Controller) dropPendingFor(tempID int64) {
	for tag, id := range c.pending {
		if id == tempID {
			delete(c.pending, tag)
			return
		}
	}
}
