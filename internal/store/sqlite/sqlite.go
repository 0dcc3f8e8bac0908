package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/avelichko/workchat/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file (":memory:" for tests).
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies database reachability for health checks.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, email, name, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (email, name, password_hash)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, email, name, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	return s.getUser(ctx, `SELECT id, email, name, password_hash, created_at FROM users WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.getUser(ctx, `SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?`, email)
}

func (s *SQLiteStore) getUser(ctx context.Context, query string, arg any) (*store.User, error) {
	var user store.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// ==== WorkspaceStore implementation ====

// CreateWorkspace creates a workspace and enrolls the owner as a member.
func (s *SQLiteStore) CreateWorkspace(ctx context.Context, name string, ownerID int64) (*store.Workspace, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `INSERT INTO workspaces (name, owner_id) VALUES (?, ?)`, name, ownerID)
	if err != nil {
		return nil, fmt.Errorf("insert workspace: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workspace_members (workspace_id, user_id, role) VALUES (?, ?, 'owner')`,
		id, ownerID,
	); err != nil {
		return nil, fmt.Errorf("insert owner member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetWorkspaceByID(ctx, id)
}

// GetWorkspaceByID retrieves a workspace by ID.
func (s *SQLiteStore) GetWorkspaceByID(ctx context.Context, id int64) (*store.Workspace, error) {
	var ws store.Workspace
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at FROM workspaces WHERE id = ?`, id,
	).Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query workspace: %w", err)
	}
	return &ws, nil
}

// GetWorkspaceMember returns the membership record for (workspace, user).
func (s *SQLiteStore) GetWorkspaceMember(ctx context.Context, workspaceID, userID int64) (*store.WorkspaceMember, error) {
	var m store.WorkspaceMember
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT workspace_id, user_id, role, joined_at FROM workspace_members WHERE workspace_id = ? AND user_id = ?`,
		workspaceID, userID,
	).Scan(&m.WorkspaceID, &m.UserID, &role, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query workspace member: %w", err)
	}
	m.Role = store.WorkspaceRole(role)
	return &m, nil
}

// AddWorkspaceMember enrolls a user into a workspace.
func (s *SQLiteStore) AddWorkspaceMember(ctx context.Context, workspaceID, userID int64, role store.WorkspaceRole) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workspace_members (workspace_id, user_id, role) VALUES (?, ?, ?)`,
		workspaceID, userID, string(role),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert workspace member: %w", err)
	}
	return nil
}

// ==== ChannelStore implementation ====

// CreateChannel creates a channel and its initial member roster in one transaction.
func (s *SQLiteStore) CreateChannel(ctx context.Context, ch *store.Channel, memberIDs []int64) (*store.Channel, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO channels (workspace_id, name, kind, description) VALUES (?, ?, ?, ?)`,
		ch.WorkspaceID, ch.Name, string(ch.Kind), ch.Description,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	seen := make(map[int64]struct{}, len(memberIDs))
	for _, userID := range memberIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO channel_members (channel_id, user_id) VALUES (?, ?)`,
			id, userID,
		); err != nil {
			return nil, fmt.Errorf("insert channel member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetChannelByID(ctx, id)
}

// GetChannelByID retrieves a channel by ID.
func (s *SQLiteStore) GetChannelByID(ctx context.Context, id int64) (*store.Channel, error) {
	var ch store.Channel
	var kind string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, name, kind, description, created_at FROM channels WHERE id = ?`, id,
	).Scan(&ch.ID, &ch.WorkspaceID, &ch.Name, &kind, &ch.Description, &ch.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query channel: %w", err)
	}
	ch.Kind = store.ChannelKind(kind)
	return &ch, nil
}

// ListChannels returns the channels in a workspace visible to the user.
func (s *SQLiteStore) ListChannels(ctx context.Context, workspaceID, userID int64) ([]*store.ChannelInfo, error) {
	query := `
		SELECT c.id, c.workspace_id, c.name, c.kind, c.description, c.created_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.channel_id = c.id)
		FROM channels c
		WHERE c.workspace_id = ?
		  AND (c.kind = 'public'
		       OR EXISTS (SELECT 1 FROM channel_members cm WHERE cm.channel_id = c.id AND cm.user_id = ?))
		ORDER BY c.created_at ASC, c.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, workspaceID, userID)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var channels []*store.ChannelInfo
	for rows.Next() {
		var info store.ChannelInfo
		var kind string
		if err := rows.Scan(&info.ID, &info.WorkspaceID, &info.Name, &kind, &info.Description, &info.CreatedAt, &info.MessageCount); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		info.Kind = store.ChannelKind(kind)
		channels = append(channels, &info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, info := range channels {
		members, err := s.ListChannelMembers(ctx, info.ID)
		if err != nil {
			return nil, err
		}
		info.Members = members
	}

	return channels, nil
}

// AddChannelMember adds a user to a channel.
func (s *SQLiteStore) AddChannelMember(ctx context.Context, channelID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_members (channel_id, user_id) VALUES (?, ?)`,
		channelID, userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert channel member: %w", err)
	}
	return nil
}

// RemoveChannelMember removes a user from a channel; idempotent.
func (s *SQLiteStore) RemoveChannelMember(ctx context.Context, channelID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_members WHERE channel_id = ? AND user_id = ?`,
		channelID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete channel member: %w", err)
	}
	return nil
}

// IsChannelMember checks whether a user belongs to a channel.
func (s *SQLiteStore) IsChannelMember(ctx context.Context, channelID, userID int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM channel_members WHERE channel_id = ? AND user_id = ?`,
		channelID, userID,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query channel membership: %w", err)
	}
	return true, nil
}

// ListChannelMembers lists a channel's roster ordered by join time.
func (s *SQLiteStore) ListChannelMembers(ctx context.Context, channelID int64) ([]store.ChannelMember, error) {
	query := `
		SELECT cm.channel_id, cm.user_id, u.name, u.email, cm.joined_at
		FROM channel_members cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.channel_id = ?
		ORDER BY cm.joined_at ASC, cm.user_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("query channel members: %w", err)
	}
	defer rows.Close()

	var members []store.ChannelMember
	for rows.Next() {
		var m store.ChannelMember
		if err := rows.Scan(&m.ChannelID, &m.UserID, &m.UserName, &m.UserEmail, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan channel member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// DeleteChannel removes a channel, its memberships and its messages.
func (s *SQLiteStore) DeleteChannel(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE channel_id = ?`, id); err != nil {
		return fmt.Errorf("delete channel messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM channel_members WHERE channel_id = ?`, id); err != nil {
		return fmt.Errorf("delete channel members: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

// ==== MessageStore implementation ====

const messageColumns = `
	m.id, m.workspace_id, m.channel_id, m.user_id, u.name, u.email, m.content, m.created_at, m.updated_at
`

// CreateMessage persists a message and fills in its ID and timestamps.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (workspace_id, channel_id, user_id, content, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.WorkspaceID, msg.ChannelID, msg.UserID, msg.Content, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	saved, err := s.GetMessageByID(ctx, id)
	if err != nil {
		return err
	}
	*msg = *saved
	return nil
}

// GetMessageByID retrieves a message by ID.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id int64) (*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m JOIN users u ON u.id = m.user_id WHERE m.id = ?`
	var msg store.Message
	var channelID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.WorkspaceID,
		&channelID,
		&msg.UserID,
		&msg.UserName,
		&msg.UserEmail,
		&msg.Content,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	if channelID.Valid {
		msg.ChannelID = &channelID.Int64
	}
	return &msg, nil
}

// ListMessages returns messages in ascending creation order.
// Fetches descending with the pagination cursor, then reverses.
func (s *SQLiteStore) ListMessages(ctx context.Context, workspaceID int64, channelID *int64, limit int, before *time.Time) ([]*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m JOIN users u ON u.id = m.user_id WHERE m.workspace_id = ?`
	args := []any{workspaceID}

	if channelID != nil {
		query += ` AND m.channel_id = ?`
		args = append(args, *channelID)
	} else {
		query += ` AND m.channel_id IS NULL`
	}
	if before != nil {
		query += ` AND m.created_at < ?`
		args = append(args, before.UTC())
	}
	query += ` ORDER BY m.created_at DESC, m.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var chID sql.NullInt64
		if err := rows.Scan(
			&msg.ID,
			&msg.WorkspaceID,
			&chID,
			&msg.UserID,
			&msg.UserName,
			&msg.UserEmail,
			&msg.Content,
			&msg.CreatedAt,
			&msg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if chID.Valid {
			msg.ChannelID = &chID.Int64
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	for i := 0; i < len(messages)/2; i++ {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// UpdateMessage replaces a message's content and bumps updated_at.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, id int64, content string) (*store.Message, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, updated_at = ? WHERE id = ?`,
		content, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetMessageByID(ctx, id)
}

// DeleteMessage removes a message permanently.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==== AccessStore implementation ====

// CanAccessChannel reports whether a user may subscribe to a channel's room.
// Channel members always pass; public channels additionally admit any member
// of the owning workspace.
func (s *SQLiteStore) CanAccessChannel(ctx context.Context, userID, channelID int64) (bool, error) {
	isMember, err := s.IsChannelMember(ctx, channelID, userID)
	if err != nil {
		return false, err
	}
	if isMember {
		return true, nil
	}

	ch, err := s.GetChannelByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if ch.Kind != store.ChannelPublic {
		return false, nil
	}
	return s.CanAccessWorkspace(ctx, userID, ch.WorkspaceID)
}

// CanAccessWorkspace reports whether a user belongs to a workspace.
func (s *SQLiteStore) CanAccessWorkspace(ctx context.Context, userID, workspaceID int64) (bool, error) {
	_, err := s.GetWorkspaceMember(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
