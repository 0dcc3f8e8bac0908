package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a uniqueness constraint is violated.
	ErrDuplicate = errors.New("duplicate record")
)

// User represents a registered account.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// Workspace is the top-level container channels and messages belong to.
type Workspace struct {
	ID        int64
	Name      string
	OwnerID   int64
	CreatedAt time.Time
}

// WorkspaceRole defines the privilege level of a workspace member.
type WorkspaceRole string

const (
	RoleOwner  WorkspaceRole = "owner"
	RoleAdmin  WorkspaceRole = "admin"
	RoleMember WorkspaceRole = "member"
)

// WorkspaceMember is a (workspace, user) membership record.
type WorkspaceMember struct {
	WorkspaceID int64
	UserID      int64
	Role        WorkspaceRole
	JoinedAt    time.Time
}

// ChannelKind defines channel visibility.
type ChannelKind string

const (
	ChannelPublic  ChannelKind = "public"
	ChannelPrivate ChannelKind = "private"
	ChannelDirect  ChannelKind = "dm"
)

// Channel is a named conversation scope within a workspace.
type Channel struct {
	ID          int64
	WorkspaceID int64
	Name        string
	Kind        ChannelKind
	Description string
	CreatedAt   time.Time
}

// ChannelMember is a (channel, user) membership record.
// Membership implies read/write access to the channel's messages.
type ChannelMember struct {
	ChannelID int64
	UserID    int64
	UserName  string
	UserEmail string
	JoinedAt  time.Time
}

// ChannelInfo is a channel together with its roster and message count,
// as returned by channel listings.
type ChannelInfo struct {
	Channel
	Members      []ChannelMember
	MessageCount int64
}

// Message is a persisted chat message. ChannelID is nil for legacy
// workspace-wide messages. UserName and UserEmail are populated on reads.
type Message struct {
	ID          int64
	WorkspaceID int64
	ChannelID   *int64
	UserID      int64
	UserName    string
	UserEmail   string
	Content     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, email, name, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// WorkspaceStore handles workspace persistence.
type WorkspaceStore interface {
	// CreateWorkspace creates a workspace and enrolls the owner as a member.
	CreateWorkspace(ctx context.Context, name string, ownerID int64) (*Workspace, error)

	// GetWorkspaceByID retrieves a workspace by ID.
	GetWorkspaceByID(ctx context.Context, id int64) (*Workspace, error)

	// GetWorkspaceMember returns the membership record for (workspace, user),
	// or ErrNotFound if the user does not belong to the workspace.
	GetWorkspaceMember(ctx context.Context, workspaceID, userID int64) (*WorkspaceMember, error)

	// AddWorkspaceMember enrolls a user into a workspace.
	AddWorkspaceMember(ctx context.Context, workspaceID, userID int64, role WorkspaceRole) error
}

// ChannelStore handles channel and channel-membership persistence.
type ChannelStore interface {
	// CreateChannel creates a channel and its initial member roster in one
	// transaction. memberIDs must include the creator.
	CreateChannel(ctx context.Context, ch *Channel, memberIDs []int64) (*Channel, error)

	// GetChannelByID retrieves a channel by ID.
	GetChannelByID(ctx context.Context, id int64) (*Channel, error)

	// ListChannels returns the channels in a workspace visible to the user:
	// all public channels plus private/dm channels the user belongs to,
	// each with member roster and message count, ordered by creation time.
	ListChannels(ctx context.Context, workspaceID, userID int64) ([]*ChannelInfo, error)

	// AddChannelMember adds a user to a channel. Returns ErrDuplicate if the
	// membership already exists.
	AddChannelMember(ctx context.Context, channelID, userID int64) error

	// RemoveChannelMember removes a user from a channel; idempotent.
	RemoveChannelMember(ctx context.Context, channelID, userID int64) error

	// IsChannelMember checks whether a user belongs to a channel.
	IsChannelMember(ctx context.Context, channelID, userID int64) (bool, error)

	// ListChannelMembers lists a channel's roster ordered by join time.
	ListChannelMembers(ctx context.Context, channelID int64) ([]ChannelMember, error)

	// DeleteChannel removes a channel, its memberships and its messages.
	DeleteChannel(ctx context.Context, id int64) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a message and fills in its ID and timestamps.
	CreateMessage(ctx context.Context, msg *Message) error

	// GetMessageByID retrieves a message by ID.
	GetMessageByID(ctx context.Context, id int64) (*Message, error)

	// ListMessages returns messages for a workspace in ascending creation
	// order. A nil channelID selects legacy workspace-wide messages; before
	// restricts to messages created strictly earlier; limit caps the result.
	ListMessages(ctx context.Context, workspaceID int64, channelID *int64, limit int, before *time.Time) ([]*Message, error)

	// UpdateMessage replaces a message's content and bumps updated_at.
	UpdateMessage(ctx context.Context, id int64, content string) (*Message, error)

	// DeleteMessage removes a message permanently.
	DeleteMessage(ctx context.Context, id int64) error
}

// AccessStore answers realtime subscription access questions.
type AccessStore interface {
	// CanAccessChannel reports whether a user may subscribe to a channel:
	// channel members always pass, public channels admit any member of the
	// owning workspace.
	CanAccessChannel(ctx context.Context, userID, channelID int64) (bool, error)

	// CanAccessWorkspace reports whether a user belongs to a workspace.
	CanAccessWorkspace(ctx context.Context, userID, workspaceID int64) (bool, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	WorkspaceStore
	ChannelStore
	MessageStore
	AccessStore

	// Close closes the underlying database connection.
	Close() error
}
