package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/avelichko/workchat/internal/proto"
	"github.com/avelichko/workchat/internal/store"
)

// ChannelHandlers provides HTTP handlers for channel endpoints.
type ChannelHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewChannelHandlers creates a new channel handlers instance.
func NewChannelHandlers(st store.Store, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{
		store: st,
		log:   logger,
	}
}

// CreateChannelRequest represents the create channel request body.
type CreateChannelRequest struct {
	WorkspaceID int64   `json:"workspaceId" binding:"required"`
	Name        string  `json:"name" binding:"required,min=1,max=64"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	MemberIDs   []int64 `json:"memberIds"`
}

// AddChannelMemberRequest represents the add member request body.
type AddChannelMemberRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

// ChannelMemberResponse represents a channel member in API responses.
type ChannelMemberResponse struct {
	User     proto.UserRef `json:"user"`
	JoinedAt time.Time     `json:"joinedAt"`
}

// ChannelResponse represents a channel in API responses.
type ChannelResponse struct {
	ID           int64                   `json:"id"`
	WorkspaceID  int64                   `json:"workspaceId"`
	Name         string                  `json:"name"`
	Description  string                  `json:"description,omitempty"`
	Type         string                  `json:"type"`
	CreatedAt    time.Time               `json:"createdAt"`
	Members      []ChannelMemberResponse `json:"members"`
	MessageCount int64                   `json:"messageCount"`
}

// CreateChannel handles channel creation. The creator is always enrolled;
// direct channels must name exactly one other participant.
// POST /api/channels
func (h *ChannelHandlers) CreateChannel(c *gin.Context) {
	uid, _, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "Workspace ID and name are required")
		return
	}

	kind := store.ChannelKind(req.Type)
	if kind == "" {
		kind = store.ChannelPublic
	}
	if kind != store.ChannelPublic && kind != store.ChannelPrivate && kind != store.ChannelDirect {
		fail(c, http.StatusBadRequest, CodeValidation, "invalid channel type")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetWorkspaceMember(ctx, req.WorkspaceID, uid); err != nil {
		fail(c, http.StatusForbidden, CodeForbidden, "You are not a member of this workspace")
		return
	}

	// Creator is auto-added; dedupe the requested roster against it.
	memberIDs := []int64{uid}
	for _, id := range req.MemberIDs {
		if id != uid {
			memberIDs = append(memberIDs, id)
		}
	}
	if kind == store.ChannelDirect && len(memberIDs) != 2 {
		fail(c, http.StatusBadRequest, CodeValidation, "Direct channels require exactly two members")
		return
	}

	channel := &store.Channel{
		WorkspaceID: req.WorkspaceID,
		Name:        req.Name,
		Kind:        kind,
		Description: req.Description,
	}
	created, err := h.store.CreateChannel(ctx, channel, memberIDs)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			fail(c, http.StatusConflict, CodeConflict, "channel with this name already exists")
			return
		}
		h.log.Error().Err(err).Str("name", req.Name).Msg("failed to create channel")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	members, err := h.store.ListChannelMembers(ctx, created.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("channel_id", created.ID).Msg("failed to list channel members")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	h.log.Info().Int64("channel_id", created.ID).Str("name", created.Name).Msg("channel created")
	c.JSON(http.StatusCreated, channelResponse(&store.ChannelInfo{Channel: *created, Members: members}))
}

// ListChannels returns the channels in a workspace visible to the caller:
// all public channels plus private and direct channels they belong to.
// GET /api/channels/workspace/:workspaceId
func (h *ChannelHandlers) ListChannels(c *gin.Context) {
	uid, _, ok := currentUser(c)
	if !ok {
		return
	}

	workspaceID, err := strconv.ParseInt(c.Param("workspaceId"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "invalid workspace id")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetWorkspaceMember(ctx, workspaceID, uid); err != nil {
		fail(c, http.StatusForbidden, CodeForbidden, "You are not a member of this workspace")
		return
	}

	channels, err := h.store.ListChannels(ctx, workspaceID, uid)
	if err != nil {
		h.log.Error().Err(err).Int64("workspace_id", workspaceID).Msg("failed to list channels")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	response := make([]ChannelResponse, 0, len(channels))
	for _, info := range channels {
		response = append(response, channelResponse(info))
	}
	c.JSON(http.StatusOK, response)
}

// JoinChannel enrolls the caller into a public channel. Private and direct
// channels require an invitation from a workspace owner/admin.
// POST /api/channels/:channelId/join
func (h *ChannelHandlers) JoinChannel(c *gin.Context) {
	uid, _, ok := currentUser(c)
	if !ok {
		return
	}

	channelID, err := strconv.ParseInt(c.Param("channelId"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "invalid channel id")
		return
	}

	ctx := c.Request.Context()
	channel, err := h.store.GetChannelByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, CodeNotFound, "Channel not found")
			return
		}
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to load channel")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	isMember, err := h.store.IsChannelMember(ctx, channelID, uid)
	if err != nil {
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("channel membership check failed")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}
	if isMember {
		fail(c, http.StatusBadRequest, CodeAlreadyMember, "Already a member of this channel")
		return
	}

	if channel.Kind != store.ChannelPublic {
		fail(c, http.StatusForbidden, CodeForbidden, "Cannot join private channel without invitation")
		return
	}

	if err := h.store.AddChannelMember(ctx, channelID, uid); err != nil {
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to join channel")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Joined channel successfully"})
}

// LeaveChannel removes the caller from a channel; leaving a channel you are
// not in is a no-op.
// POST /api/channels/:channelId/leave
func (h *ChannelHandlers) LeaveChannel(c *gin.Context) {
	uid, _, ok := currentUser(c)
	if !ok {
		return
	}

	channelID, err := strconv.ParseInt(c.Param("channelId"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "invalid channel id")
		return
	}

	if err := h.store.RemoveChannelMember(c.Request.Context(), channelID, uid); err != nil {
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to leave channel")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left channel successfully"})
}

// AddMember adds a user to a channel. Only a workspace owner/admin may do
// this; it is the only way into private channels. Direct channels have a
// fixed two-person roster and reject additions.
// POST /api/channels/:channelId/members
func (h *ChannelHandlers) AddMember(c *gin.Context) {
	uid, _, ok := currentUser(c)
	if !ok {
		return
	}

	channelID, err := strconv.ParseInt(c.Param("channelId"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "invalid channel id")
		return
	}

	var req AddChannelMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "User ID is required")
		return
	}

	ctx := c.Request.Context()
	channel, err := h.store.GetChannelByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, CodeNotFound, "Channel not found")
			return
		}
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to load channel")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	if channel.Kind == store.ChannelDirect {
		fail(c, http.StatusBadRequest, CodeValidation, "Cannot add members to a direct channel")
		return
	}

	member, err := h.store.GetWorkspaceMember(ctx, channel.WorkspaceID, uid)
	if err != nil || (member.Role != store.RoleOwner && member.Role != store.RoleAdmin) {
		fail(c, http.StatusForbidden, CodeForbidden, "Only workspace owner/admin can add members to channels")
		return
	}

	if err := h.store.AddChannelMember(ctx, channelID, req.UserID); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			fail(c, http.StatusBadRequest, CodeAlreadyMember, "User is already a member of this channel")
			return
		}
		h.log.Error().Err(err).Int64("channel_id", channelID).Int64("user_id", req.UserID).Msg("failed to add channel member")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member added successfully"})
}

// DeleteChannel removes a channel with its memberships and messages. Only a
// workspace owner/admin may delete.
// DELETE /api/channels/:channelId
func (h *ChannelHandlers) DeleteChannel(c *gin.Context) {
	uid, _, ok := currentUser(c)
	if !ok {
		return
	}

	channelID, err := strconv.ParseInt(c.Param("channelId"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "invalid channel id")
		return
	}

	ctx := c.Request.Context()
	channel, err := h.store.GetChannelByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, CodeNotFound, "Channel not found")
			return
		}
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to load channel")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	member, err := h.store.GetWorkspaceMember(ctx, channel.WorkspaceID, uid)
	if err != nil || (member.Role != store.RoleOwner && member.Role != store.RoleAdmin) {
		fail(c, http.StatusForbidden, CodeForbidden, "Only workspace owner/admin can delete channels")
		return
	}

	if err := h.store.DeleteChannel(ctx, channelID); err != nil {
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to delete channel")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	h.log.Info().Int64("channel_id", channelID).Msg("channel deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Channel deleted successfully"})
}

func channelResponse(info *store.ChannelInfo) ChannelResponse {
	members := make([]ChannelMemberResponse, 0, len(info.Members))
	for _, m := range info.Members {
		members = append(members, ChannelMemberResponse{
			User:     proto.UserRef{ID: m.UserID, Name: m.UserName, Email: m.UserEmail},
			JoinedAt: m.JoinedAt,
		})
	}
	return ChannelResponse{
		ID:           info.ID,
		WorkspaceID:  info.WorkspaceID,
		Name:         info.Name,
		Description:  info.Description,
		Type:         string(info.Kind),
		CreatedAt:    info.CreatedAt,
		Members:      members,
		MessageCount: info.MessageCount,
	}
}
