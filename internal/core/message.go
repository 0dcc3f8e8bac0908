package core

import "time"

// Message is the domain view of a chat message carried by broadcast events.
// ClientTag is the sender-supplied correlation tag echoed back so the
// sending client can match the broadcast against its optimistic entry; it is
// never persisted.
type Message struct {
	ID          int64
	WorkspaceID int64
	ChannelID   *int64
	UserID      int64
	UserName    string
	UserEmail   string
	Content     string
	ClientTag   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
