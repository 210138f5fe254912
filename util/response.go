package util

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the gin context key the request-id middleware stores under.
const RequestIDKey = "iconduit.requestID"

// Meta accompanies every JSON response.
type Meta map[string]any

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorBody is the error object inside an error envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
	Meta  Meta      `json:"meta"`
}

// ErrInvalidInput is an error response for an invalid input
type ErrInvalidInput struct {
	Reason string `json:"reason"`
}

func (e ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// NewRequestID mints a correlation id of the form req_<uuid>.
func NewRequestID() string {
	return "req_" + uuid.New().String()
}

// RequestID returns the correlation id for the request, minting one if the
// middleware has not run.
func RequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	id := NewRequestID()
	c.Set(RequestIDKey, id)
	return id
}

// NewMeta builds the baseline meta block for a response.
func NewMeta(c *gin.Context) Meta {
	return Meta{
		"request_id": RequestID(c),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
}

// RespondData writes a success envelope.
func RespondData(c *gin.Context, status int, data any, extra Meta) {
	meta := NewMeta(c)
	for k, v := range extra {
		meta[k] = v
	}
	c.JSON(status, SuccessResponse{Data: data, Meta: meta})
}

// RespondError writes an error envelope. The error is also attached to the
// gin context so the ErrLogger middleware sees it.
func RespondError(c *gin.Context, status int, body ErrorBody, err error) {
	if err != nil {
		c.Error(err)
	}
	c.JSON(status, ErrorResponse{Error: body, Meta: NewMeta(c)})
}

func HealthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
