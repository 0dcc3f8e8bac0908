package core

// CommandKind describes what a connected client wants to do.
type CommandKind int

const (
	// CommandJoinChannel subscribes the connection to a channel room.
	CommandJoinChannel CommandKind = iota
	// CommandLeaveChannel unsubscribes the connection from a channel room.
	CommandLeaveChannel
	// CommandJoinWorkspace subscribes the connection to a legacy workspace room.
	CommandJoinWorkspace
	// CommandLeaveWorkspace unsubscribes the connection from a legacy workspace room.
	CommandLeaveWorkspace
	// CommandTypingStart signals that the user started typing in a channel.
	CommandTypingStart
	// CommandTypingStop signals that the user stopped typing in a channel.
	CommandTypingStop
)

// Command represents an action requested by a connected client.
type Command struct {
	Kind        CommandKind
	ChannelID   int64
	WorkspaceID int64
	UserName    string
}
