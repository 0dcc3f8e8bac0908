package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/avelichko/workchat/internal/store"
)

// WorkspaceHandlers provides HTTP handlers for workspace endpoints.
type WorkspaceHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewWorkspaceHandlers creates a new workspace handlers instance.
func NewWorkspaceHandlers(st store.Store, logger *zerolog.Logger) *WorkspaceHandlers {
	return &WorkspaceHandlers{
		store: st,
		log:   logger,
	}
}

// CreateWorkspaceRequest represents the create workspace request body.
type CreateWorkspaceRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
}

// AddWorkspaceMemberRequest represents the add member request body.
type AddWorkspaceMemberRequest struct {
	UserID int64  `json:"userId" binding:"required"`
	Role   string `json:"role"`
}

// WorkspaceResponse represents a workspace in API responses.
type WorkspaceResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateWorkspace handles workspace creation. The creator becomes the owner.
// POST /api/workspaces
func (h *WorkspaceHandlers) CreateWorkspace(c *gin.Context) {
	uid, _, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create workspace request")
		fail(c, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}

	ws, err := h.store.CreateWorkspace(c.Request.Context(), req.Name, uid)
	if err != nil {
		h.log.Error().Err(err).Str("name", req.Name).Msg("failed to create workspace")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	h.log.Info().Int64("workspace_id", ws.ID).Int64("owner_id", uid).Msg("workspace created")
	c.JSON(http.StatusCreated, WorkspaceResponse{
		ID:        ws.ID,
		Name:      ws.Name,
		OwnerID:   ws.OwnerID,
		CreatedAt: ws.CreatedAt,
	})
}

// AddMember enrolls a user into a workspace. Only the workspace owner or an
// admin may add members.
// POST /api/workspaces/:id/members
func (h *WorkspaceHandlers) AddMember(c *gin.Context) {
	uid, _, ok := currentUser(c)
	if !ok {
		return
	}

	workspaceID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "invalid workspace id")
		return
	}

	var req AddWorkspaceMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}

	role := store.WorkspaceRole(req.Role)
	if role == "" {
		role = store.RoleMember
	}
	if role != store.RoleAdmin && role != store.RoleMember {
		fail(c, http.StatusBadRequest, CodeValidation, "invalid role")
		return
	}

	member, err := h.store.GetWorkspaceMember(c.Request.Context(), workspaceID, uid)
	if err != nil || (member.Role != store.RoleOwner && member.Role != store.RoleAdmin) {
		fail(c, http.StatusForbidden, CodeForbidden, "Only workspace owner/admin can add members")
		return
	}

	if err := h.store.AddWorkspaceMember(c.Request.Context(), workspaceID, req.UserID, role); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			fail(c, http.StatusBadRequest, CodeAlreadyMember, "User is already a member of this workspace")
			return
		}
		h.log.Error().Err(err).Int64("workspace_id", workspaceID).Int64("user_id", req.UserID).Msg("failed to add workspace member")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member added successfully"})
}
