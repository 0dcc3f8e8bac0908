package core

import "fmt"

// ChannelRoom returns the room key for a channel.
func ChannelRoom(channelID int64) string {
	return fmt.Sprintf("channel-%d", channelID)
}

// WorkspaceRoom returns the legacy room key for workspace-wide messages.
func WorkspaceRoom(workspaceID int64) string {
	return fmt.Sprintf("workspace-%d", workspaceID)
}

// Room groups clients subscribed to the same channel or workspace.
type Room struct {
	Key     string
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(key string) *Room {
	return &Room{
		Key:     key,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Broadcast sends an event to all clients in the room except the excluded
// one (pass nil to deliver to everyone).
func (r *Room) Broadcast(event *Event, except *Client) {
	for client := range r.clients {
		if client == except {
			continue
		}
		select {
		case client.Events <- event:
		default:
			// Drop if slow consumer.
		}
	}
}

func (r *Room) has(c *Client) bool {
	_, ok := r.clients[c]
	return ok
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}
