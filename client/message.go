// Package client provides the Go client for the workchat server: a REST
// client for message and channel operations, a WebSocket subscription for
// room events, an optimistic message-list controller and a typing-presence
// tracker.
package client

import "time"

// User identifies a message author.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Message is a chat message as exchanged with the server. ClientTag is the
// correlation id chosen by the sender; the server echoes it in the REST
// response and the broadcast but never stores it.
type Message struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspaceId"`
	ChannelID   *int64    `json:"channelId"`
	Content     string    `json:"content"`
	ClientTag   string    `json:"clientTag,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	User        User      `json:"user"`
}

// Channel is a conversation scope within a workspace.
type Channel struct {
	ID           int64           `json:"id"`
	WorkspaceID  int64           `json:"workspaceId"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Type         string          `json:"type"`
	CreatedAt    time.Time       `json:"createdAt"`
	Members      []ChannelMember `json:"members"`
	MessageCount int64           `json:"messageCount"`
}

// ChannelMember is one entry of a channel roster.
type ChannelMember struct {
	User     User      `json:"user"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Event types delivered over the WebSocket subscription.
const (
	EventNewMessage     = "new-message"
	EventMessageUpdated = "message-updated"
	EventMessageDeleted = "message-deleted"
	EventUserTyping     = "user-typing"
	EventUserStopTyping = "user-stopped-typing"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventError          = "error"
)

// Event is a single server-pushed room event.
type Event struct {
	Type      string
	Message   *Message // new-message, message-updated
	MessageID int64    // message-deleted
	UserName  string   // typing and join/leave notices
	ErrCode   string   // error
	ErrMsg    string   // error
}
