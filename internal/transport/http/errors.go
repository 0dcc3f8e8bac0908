package http

import "github.com/gin-gonic/gin"

// Error codes returned in REST error bodies.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeNotFound      = "NOT_FOUND"
	CodeAlreadyMember = "ALREADY_MEMBER"
	CodeConflict      = "CONFLICT"
	CodeInternal      = "INTERNAL_ERROR"
)

// ErrorBody is the machine-readable error payload.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an error payload for REST responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}
