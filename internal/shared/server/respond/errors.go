package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"writer-backend/internal/shared/telemetry"
)

// ErrorBody is the error object every failed request returns.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps ErrorBody as {"error": {...}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Context keys read for error logs. They mirror the keys the middleware and
// handlers set.
var logKeys = map[string]string{
	"requestId": "request_id",
	"userId":    "user_id",
	"itemId":    "item_id",
	"sessionId": "session_id",
}

// Error logs the failure and aborts with the error envelope. 5xx responses log
// at error level, everything else at warn.
func Error(c *gin.Context, status int, code, message string, details any) {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	fields := map[string]any{
		"status":        status,
		"code":          code,
		"error_message": message,
		"path":          route,
		"method":        c.Request.Method,
	}
	for key, field := range logKeys {
		if v := c.GetString(key); v != "" {
			fields[field] = v
		}
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{Code: code, Message: message, Details: details},
	})
}
