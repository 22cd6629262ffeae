package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/pkg/apperr"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool                `json:"success"`
	Data    interface{}         `json:"data,omitempty"`
	Error   string              `json:"error,omitempty"`
	Code    string              `json:"code,omitempty"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

// Error codes carried next to the message so clients need not parse text.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeCapacity     = "CAPACITY_EXCEEDED"
	CodeDuplicate    = "DUPLICATE_REGISTRATION"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL_ERROR"
)

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err, Code: CodeValidation})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err, Code: CodeUnauthorized})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err, Code: CodeForbidden})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err, Code: CodeNotFound})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: err, Code: CodeConflict})
}

// TooManyRequests sends 429.
func TooManyRequests(c *gin.Context, err string) {
	c.JSON(http.StatusTooManyRequests, Body{Success: false, Error: err, Code: CodeRateLimited})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: err, Code: CodeInternal})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err, Code: CodeInternal})
}

// Error writes err using its apperr kind. Unexpected errors are logged and
// replaced by a generic message.
func Error(c *gin.Context, logger *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.ErrUnexpected {
		if logger != nil {
			logger.Error("request failed",
				zap.Error(err),
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
			)
		}
		Internal(c, "something went wrong")
		return
	}

	msg := kind.Error()
	var fields []apperr.FieldError
	if e, ok := apperr.As(err); ok {
		msg = e.Message
		fields = e.Fields
	}
	status, code := statusFor(kind)
	c.JSON(status, Body{Success: false, Error: msg, Code: code, Errors: fields})
}

// Bind decodes the JSON body into dst and writes a 400 with field errors on
// failure. It reports whether the handler may continue.
func Bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		Error(c, nil, apperr.FromBinding(err))
		return false
	}
	return true
}

// statusFor maps an error kind to its HTTP status. A full session and a
// repeat sign-up are 409 with distinct codes; clients tell them apart by code.
func statusFor(kind error) (int, string) {
	switch kind {
	case apperr.ErrValidation:
		return http.StatusBadRequest, CodeValidation
	case apperr.ErrNotFound:
		return http.StatusNotFound, CodeNotFound
	case apperr.ErrCapacityExceeded:
		return http.StatusConflict, CodeCapacity
	case apperr.ErrDuplicateRegistration:
		return http.StatusConflict, CodeDuplicate
	case apperr.ErrConflict:
		return http.StatusConflict, CodeConflict
	case apperr.ErrUnauthorized:
		return http.StatusUnauthorized, CodeUnauthorized
	}
	return http.StatusInternalServerError, CodeInternal
}
