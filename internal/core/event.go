package core

// EventKind is a notification the hub emits to clients. The set is closed:
// the transport mapper refuses to serialize anything else.
type EventKind int

const (
	// EventMessageCreated notifies room members about a new persisted message.
	EventMessageCreated EventKind = iota
	// EventMessageUpdated notifies room members that a message was edited.
	EventMessageUpdated
	// EventMessageDeleted notifies room members that a message was removed.
	EventMessageDeleted
	// EventTypingStart notifies room members that a user started typing.
	EventTypingStart
	// EventTypingStop notifies room members that a user stopped typing.
	EventTypingStop
	// EventMemberJoined notifies room members that a connection joined the room.
	EventMemberJoined
	// EventMemberLeft notifies room members that a connection left the room.
	EventMemberLeft
	// EventError notifies a single client about a rejected command.
	EventError
)

// Event is sent to clients to describe what happened in a room.
type Event struct {
	Kind      EventKind
	Room      string
	UserName  string
	Message   *Message // for message created/updated
	MessageID int64    // for message deleted
	Error     *CoreError
}
