package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Access answers whether a user may subscribe to a room. Implemented by the
// persistence layer: channel members always pass, public channels admit any
// workspace member.
type Access interface {
	CanAccessChannel(ctx context.Context, userID, channelID int64) (bool, error)
	CanAccessWorkspace(ctx context.Context, userID, workspaceID int64) (bool, error)
}

const (
	// DefaultTypingTTL is how long a typing entry survives without a refresh
	// before the hub emits the stop event on the client's behalf. Covers
	// abrupt disconnects where the stop signal is lost.
	DefaultTypingTTL = 5 * time.Second

	accessCheckTimeout = 3 * time.Second
)

type clientCommand struct {
	client  *Client
	command *Command
}

type roomBroadcast struct {
	room  string
	event *Event
}

type typingEntry struct {
	name string
	seen time.Time
}

// Hub routes per-room events to connected clients. It is an explicit service
// object: one instance per process, constructed at startup and injected into
// the transports. All state below the channels is owned by the Run loop, so
// no locking is needed.
type Hub struct {
	access    Access
	typingTTL time.Duration
	log       *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand
	broadcasts chan roomBroadcast

	rooms  map[string]*Room
	typing map[string]map[*Client]typingEntry
}

// NewHub creates a hub. access may be nil, in which case every join is
// admitted (used by tests exercising pure routing).
func NewHub(access Access, typingTTL time.Duration, logger *zerolog.Logger) *Hub {
	if typingTTL <= 0 {
		typingTTL = DefaultTypingTTL
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		access:     access,
		typingTTL:  typingTTL,
		log:        logger,
		register:   make(chan *Client, 8),
		unregister: make(chan *Client, 8),
		commands:   make(chan clientCommand, 64),
		broadcasts: make(chan roomBroadcast, 64),
		rooms:      make(map[string]*Room),
		typing:     make(map[string]map[*Client]typingEntry),
	}
}

// RegisterClient attaches a connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient detaches a connection, removing it from all rooms. The
// client's event channel is closed once the loop has processed the removal.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// Submit hands a client command to the run loop.
func (h *Hub) Submit(c *Client, cmd *Command) {
	h.commands <- clientCommand{client: c, command: cmd}
}

// BroadcastMessageCreated fans a freshly persisted message out to the room.
// Called by the REST layer after a successful send; the sender's own
// connection receives the event too and dedups against its optimistic entry.
func (h *Hub) BroadcastMessageCreated(room string, msg *Message) {
	h.broadcasts <- roomBroadcast{room: room, event: &Event{Kind: EventMessageCreated, Room: room, Message: msg}}
}

// BroadcastMessageUpdated fans an edit out to the room.
func (h *Hub) BroadcastMessageUpdated(room string, msg *Message) {
	h.broadcasts <- roomBroadcast{room: room, event: &Event{Kind: EventMessageUpdated, Room: room, Message: msg}}
}

// BroadcastMessageDeleted fans a deletion out to the room.
func (h *Hub) BroadcastMessageDeleted(room string, messageID int64) {
	h.broadcasts <- roomBroadcast{room: room, event: &Event{Kind: EventMessageDeleted, Room: room, MessageID: messageID}}
}

// Run processes hub traffic until the context is cancelled. It is the only
// goroutine that touches rooms and typing state.
func (h *Hub) Run(ctx context.Context) {
	sweep := time.NewTicker(h.typingTTL)
	defer sweep.Stop()

	for {
		select {
		case c := <-h.register:
			h.log.Debug().Str("client_id", c.ID).Str("user", c.Name).Msg("client registered")

		case c := <-h.unregister:
			h.dropClient(c)

		case cc := <-h.commands:
			h.handleCommand(ctx, cc.client, cc.command)

		case b := <-h.broadcasts:
			if room, ok := h.rooms[b.room]; ok {
				room.Broadcast(b.event, nil)
			}

		case now := <-sweep.C:
			h.expireTyping(now)

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoinChannel:
		h.join(ctx, c, ChannelRoom(cmd.ChannelID), func(checkCtx context.Context) (bool, error) {
			if h.access == nil {
				return true, nil
			}
			return h.access.CanAccessChannel(checkCtx, c.UserID, cmd.ChannelID)
		})
	case CommandLeaveChannel:
		h.leave(c, ChannelRoom(cmd.ChannelID))
	case CommandJoinWorkspace:
		h.join(ctx, c, WorkspaceRoom(cmd.WorkspaceID), func(checkCtx context.Context) (bool, error) {
			if h.access == nil {
				return true, nil
			}
			return h.access.CanAccessWorkspace(checkCtx, c.UserID, cmd.WorkspaceID)
		})
	case CommandLeaveWorkspace:
		h.leave(c, WorkspaceRoom(cmd.WorkspaceID))
	case CommandTypingStart:
		h.typingStart(c, ChannelRoom(cmd.ChannelID), cmd.UserName)
	case CommandTypingStop:
		h.typingStop(c, ChannelRoom(cmd.ChannelID), cmd.UserName)
	}
}

func (h *Hub) join(ctx context.Context, c *Client, roomKey string, check func(context.Context) (bool, error)) {
	checkCtx, cancel := context.WithTimeout(ctx, accessCheckTimeout)
	allowed, err := check(checkCtx)
	cancel()
	if err != nil {
		h.log.Warn().Err(err).Str("room", roomKey).Str("user", c.Name).Msg("join access check failed")
		h.sendTo(c, &Event{Kind: EventError, Room: roomKey, Error: coreError(ErrCodeInternal, "access check failed")})
		return
	}
	if !allowed {
		h.sendTo(c, &Event{Kind: EventError, Room: roomKey, Error: coreError(ErrCodeForbidden, "not a member of this room")})
		return
	}

	room, ok := h.rooms[roomKey]
	if !ok {
		room = NewRoom(roomKey)
		h.rooms[roomKey] = room
	}
	if !room.AddClient(c) {
		// Already joined; joining is idempotent.
		return
	}
	c.Rooms[roomKey] = struct{}{}
	room.Broadcast(&Event{Kind: EventMemberJoined, Room: roomKey, UserName: c.Name}, c)
	h.log.Debug().Str("room", roomKey).Str("user", c.Name).Msg("joined room")
}

func (h *Hub) leave(c *Client, roomKey string) {
	room, ok := h.rooms[roomKey]
	if !ok {
		return
	}
	h.clearTyping(c, roomKey, true)
	if !room.RemoveClient(c) {
		return
	}
	delete(c.Rooms, roomKey)
	room.Broadcast(&Event{Kind: EventMemberLeft, Room: roomKey, UserName: c.Name}, c)
	if room.Empty() {
		delete(h.rooms, roomKey)
	}
}

func (h *Hub) dropClient(c *Client) {
	for roomKey := range c.Rooms {
		h.leave(c, roomKey)
	}
	close(c.Events)
	h.log.Debug().Str("client_id", c.ID).Str("user", c.Name).Msg("client unregistered")
}

func (h *Hub) typingStart(c *Client, roomKey, name string) {
	room, ok := h.rooms[roomKey]
	if !ok || !room.has(c) {
		return
	}
	if name == "" {
		name = c.Name
	}
	entries, ok := h.typing[roomKey]
	if !ok {
		entries = make(map[*Client]typingEntry)
		h.typing[roomKey] = entries
	}
	_, already := entries[c]
	entries[c] = typingEntry{name: name, seen: time.Now()}
	if !already {
		room.Broadcast(&Event{Kind: EventTypingStart, Room: roomKey, UserName: name}, c)
	}
}

func (h *Hub) typingStop(c *Client, roomKey, name string) {
	if name == "" {
		name = c.Name
	}
	entries, ok := h.typing[roomKey]
	if ok {
		delete(entries, c)
		if len(entries) == 0 {
			delete(h.typing, roomKey)
		}
	}
	if room, ok := h.rooms[roomKey]; ok {
		room.Broadcast(&Event{Kind: EventTypingStop, Room: roomKey, UserName: name}, c)
	}
}

// clearTyping removes a connection's typing entry for a room, emitting the
// stop event to the remaining members so peers don't keep a stale indicator
// when the client leaves or disconnects mid-typing.
func (h *Hub) clearTyping(c *Client, roomKey string, broadcastStop bool) {
	entries, ok := h.typing[roomKey]
	if !ok {
		return
	}
	entry, ok := entries[c]
	if !ok {
		return
	}
	delete(entries, c)
	if len(entries) == 0 {
		delete(h.typing, roomKey)
	}
	if broadcastStop {
		if room, ok := h.rooms[roomKey]; ok {
			room.Broadcast(&Event{Kind: EventTypingStop, Room: roomKey, UserName: entry.name}, c)
		}
	}
}

// expireTyping drops typing entries that have not been refreshed within the
// TTL. Best effort; covers clients that died without a stop signal.
func (h *Hub) expireTyping(now time.Time) {
	for roomKey, entries := range h.typing {
		for c, entry := range entries {
			if now.Sub(entry.seen) < h.typingTTL {
				continue
			}
			delete(entries, c)
			if room, ok := h.rooms[roomKey]; ok {
				room.Broadcast(&Event{Kind: EventTypingStop, Room: roomKey, UserName: entry.name}, c)
			}
		}
		if len(entries) == 0 {
			delete(h.typing, roomKey)
		}
	}
}

func (h *Hub) sendTo(c *Client, event *Event) {
	select {
	case c.Events <- event:
	default:
	}
}
