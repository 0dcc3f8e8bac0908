package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/avelichko/workchat/internal/auth"
	"github.com/avelichko/workchat/internal/proto"
	"github.com/avelichko/workchat/internal/store"
)

// APIHandlers provides HTTP handlers for authentication endpoints.
type APIHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		log:         logger,
	}
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required,min=1,max=64"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string        `json:"token"`
	User  proto.UserRef `json:"user"`
}

// Register handles user registration.
// POST /api/register
func (h *APIHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		fail(c, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}

	token, user, err := h.authService.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			fail(c, http.StatusConflict, CodeConflict, "user already exists")
		case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrInvalidName), errors.Is(err, auth.ErrInvalidPassword):
			fail(c, http.StatusBadRequest, CodeValidation, err.Error())
		default:
			h.log.Error().Err(err).Str("email", req.Email).Msg("failed to register user")
			fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		}
		return
	}

	h.log.Info().Str("email", user.Email).Int64("user_id", user.ID).Msg("user registered")
	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: userRef(user)})
}

// Login handles user login.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		fail(c, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, CodeUnauthorized, "invalid credentials")
			return
		}
		h.log.Error().Err(err).Str("email", req.Email).Msg("failed to login user")
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return
	}

	h.log.Info().Str("email", user.Email).Int64("user_id", user.ID).Msg("user logged in")
	c.JSON(http.StatusOK, AuthResponse{Token: token, User: userRef(user)})
}

func userRef(u *store.User) proto.UserRef {
	return proto.UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}
