package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinChannel    = "join-channel"
	InboundTypeLeaveChannel   = "leave-channel"
	InboundTypeJoinWorkspace  = "join-workspace"
	InboundTypeLeaveWorkspace = "leave-workspace"
	InboundTypeTypingStart    = "typing-start"
	InboundTypeTypingStop     = "typing-stop"

	OutboundTypeNewMessage     = "new-message"
	OutboundTypeMessageUpdated = "message-updated"
	OutboundTypeMessageDeleted = "message-deleted"
	OutboundTypeUserTyping     = "user-typing"
	OutboundTypeUserStopTyping = "user-stopped-typing"
	OutboundTypeUserJoined     = "user-joined"
	OutboundTypeUserLeft       = "user-left"
	OutboundTypeError          = "error"
)

// ChannelRef selects a channel room.
type ChannelRef struct {
	ChannelID int64 `json:"channelId"`
}

// WorkspaceRef selects a legacy workspace room.
type WorkspaceRef struct {
	WorkspaceID int64 `json:"workspaceId"`
}

// TypingData signals typing activity in a channel.
type TypingData struct {
	ChannelID int64  `json:"channelId"`
	UserName  string `json:"userName"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// UserRef identifies a message author.
type UserRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Message is the wire form of a chat message, identical to the REST
// response shape so clients reconcile both against the same structure.
type Message struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspaceId"`
	ChannelID   *int64    `json:"channelId"`
	Content     string    `json:"content"`
	ClientTag   string    `json:"clientTag,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	User        UserRef   `json:"user"`
}

// MessageDeleted carries the id of a removed message.
type MessageDeleted struct {
	ID int64 `json:"id"`
}

// UserEvent carries the display name for typing and join/leave notices.
type UserEvent struct {
	UserName string `json:"userName"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
