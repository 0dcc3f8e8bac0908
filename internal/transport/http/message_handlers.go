package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/avelichko/workchat/internal/core"
	"github.com/avelichko/workchat/internal/store"
)

const defaultMessageLimit = 50

// MessageHandlers provides HTTP handlers for message endpoints. Successful
// writes are fanned out to the relevant room through the hub so every
// connected member sees them in realtime.
type MessageHandlers struct {
	store    store.Store
	hub      *core.Hub
	maxBytes int64
	log      *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.Store, hub *core.Hub, maxBytes int64, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store:    st,
		hub:      hub,
		maxBytes: maxBytes,
		log:      logger,
	}
}

// SendMessageRequest represents the send message request body. ClientTag is
// an opaque client-chosen identifier echoed back in the response and the
// broadcast so the sender can match them against its optimistic entry.
type SendMessageRequest struct {
	WorkspaceID int64  `json:"workspaceId" binding:"required"`
	ChannelID   *int64 `json:"channelId"`
	Content     string `json:"content"`
	ClientTag   string `json:"clientTag"`
}

// UpdateMessageRequest represents the edit message request body.
type UpdateMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage persists a message and broadcasts it to the target room.
// POST /api/messages
func (h *MessageHandlers) SendMessage(c *gin.Context) {
	uid, _, ok := currentUser(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		fail(c, http.StatusBadRequest, CodeValidation, "Content is required")
		return
	}
	if h.maxBytes > 0 && int64(len(req.Content)) > h.maxBytes {
		fail(c, http.StatusBadRequest, CodeValidation, "Content is too large")
		return
	}

	ctx := c.Request.Context()
	if req.ChannelID != nil {
		isMember, err := h.store.IsChannelMember(ctx, *req.ChannelID, uid)
		if err != nil {
			h.log.Error().Err(err).Int64("channel_id", *req.ChannelID).Msg("channel membership check failed")
			fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
			return
		}
		if !isMember {
			fail(c, http.StatusForbidden, CodeForbidden, "You are not a member of this channel")
			return
		}
	} else {
		if _, err := h.store.GetWorkspaceMember(ctx, req.WorkspaceID, uid); err != nil {
			fail(c, http.StatusForbidden, CodeForbidden, "You are not a member of this workspace")
			return
		}
	}

	msg := &store.Message{
		WorkspaceID: req.WorkspaceID,
		ChannelID:   req.ChannelID,
		UserID:      uid,
		Content:     req.Content,
	}
	if err := h.store.CreateMessage(ctx, msg); err != nil {
		h.log.Error().Err(err).Int64("workspace_id", req.WorkspaceID).Msg("failed to create message")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	coreMsg := coreMessage(msg, req.ClientTag)
	h.hub.BroadcastMessageCreated(messageRoom(msg), coreMsg)

	c.JSON(http.StatusCreated, wireMessage(coreMsg))
}

// ListMessages returns a workspace's (or channel's) message history in
// ascending creation order.
// GET /api/messages/workspace/:workspaceId
func (h *MessageHandlers) ListMessages(c *gin.Context) {
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

	var channelID *int64
	if raw := c.Query("channelId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, CodeValidation, "invalid channel id")
			return
		}
		isMember, err := h.store.IsChannelMember(ctx, id, uid)
		if err != nil {
			h.log.Error().Err(err).Int64("channel_id", id).Msg("channel membership check failed")
			fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
			return
		}
		if !isMember {
			fail(c, http.StatusForbidden, CodeForbidden, "You are not a member of this channel")
			return
		}
		channelID = &id
	}

	limit := defaultMessageLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fail(c, http.StatusBadRequest, CodeValidation, "invalid before timestamp")
			return
		}
		before = &ts
	}

	messages, err := h.store.ListMessages(ctx, workspaceID, channelID, limit, before)
	if err != nil {
		h.log.Error().Err(err).Int64("workspace_id", workspaceID).Msg("failed to list messages")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	response := make([]any, 0, len(messages))
	for _, msg := range messages {
		response = append(response, wireMessage(coreMessage(msg, "")))
	}
	c.JSON(http.StatusOK, response)
}

// UpdateMessage replaces a message's content. Only the author may edit.
// PUT /api/messages/:id
func (h *MessageHandlers) UpdateMessage(c *gin.Context) {
	uid, _, ok := currentUser(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "invalid message id")
		return
	}

	var req UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		fail(c, http.StatusBadRequest, CodeValidation, "Content is required")
		return
	}
	if h.maxBytes > 0 && int64(len(req.Content)) > h.maxBytes {
		fail(c, http.StatusBadRequest, CodeValidation, "Content is too large")
		return
	}

	ctx := c.Request.Context()
	msg, err := h.store.GetMessageByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, CodeNotFound, "Message not found")
			return
		}
		h.log.Error().Err(err).Int64("message_id", id).Msg("failed to load message")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}
	if msg.UserID != uid {
		fail(c, http.StatusForbidden, CodeForbidden, "You can only edit your own messages")
		return
	}

	updated, err := h.store.UpdateMessage(ctx, id, req.Content)
	if err != nil {
		h.log.Error().Err(err).Int64("message_id", id).Msg("failed to update message")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	coreMsg := coreMessage(updated, "")
	h.hub.BroadcastMessageUpdated(messageRoom(updated), coreMsg)

	c.JSON(http.StatusOK, wireMessage(coreMsg))
}

// DeleteMessage removes a message. Only the author may delete.
// DELETE /api/messages/:id
func (h *MessageHandlers) DeleteMessage(c *gin.Context) {
	uid, _, ok := currentUser(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "invalid message id")
		return
	}

	ctx := c.Request.Context()
	msg, err := h.store.GetMessageByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, CodeNotFound, "Message not found")
			return
		}
		h.log.Error().Err(err).Int64("message_id", id).Msg("failed to load message")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}
	if msg.UserID != uid {
		fail(c, http.StatusForbidden, CodeForbidden, "You can only delete your own messages")
		return
	}

	if err := h.store.DeleteMessage(ctx, id); err != nil {
		h.log.Error().Err(err).Int64("message_id", id).Msg("failed to delete message")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	h.hub.BroadcastMessageDeleted(messageRoom(msg), id)

	c.JSON(http.StatusOK, gin.H{"message": "Message deleted successfully"})
}

// messageRoom selects the room a message's events belong to: its channel
// room, or the legacy workspace room for channel-less messages.
func messageRoom(msg *store.Message) string {
	if msg.ChannelID != nil {
		return core.ChannelRoom(*msg.ChannelID)
	}
	return core.WorkspaceRoom(msg.WorkspaceID)
}
