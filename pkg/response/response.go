// Package response renders the JSON envelope shared by every API endpoint:
// {"success": bool, "data": ..., "error": {...}, "meta": {...}}.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/agentdesk/pkg/errors"
	"github.com/charlesng35/agentdesk/pkg/validator"
)

// RequestIDKey is the gin context key holding the request correlation id.
const RequestIDKey = "requestID"

// Response defines the base API payload.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorInfo is the client-facing part of a failure. Internal causes never
// leave the server.
type ErrorInfo struct {
	Code      string                     `json:"code"`
	Message   string                     `json:"message"`
	Fields    validator.ValidationErrors `json:"fields,omitempty"`
	RequestID string                     `json:"request_id,omitempty"`
}

// Meta describes pagination metadata.
type Meta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}

// NewMeta builds pagination metadata. TotalPages stays zero without a page size.
func NewMeta(page, perPage int, total int64) *Meta {
	meta := &Meta{Page: page, PerPage: perPage, Total: int(total)}
	if perPage > 0 {
		meta.TotalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return meta
}

// Success writes data with the given status.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{Success: true, Data: data})
}

// SuccessWithMeta writes a page of data with its pagination metadata.
func SuccessWithMeta(c *gin.Context, statusCode int, data interface{}, meta *Meta) {
	c.JSON(statusCode, Response{Success: true, Data: data, Meta: meta})
}

// Error renders err. Validation failures become a 400 with per-field details,
// AppErrors keep their code and status, anything else is a 500.
func Error(c *gin.Context, err error) {
	status, info := describe(err)
	info.RequestID = c.GetString(RequestIDKey)
	c.JSON(status, Response{Success: false, Error: info})
}

func describe(err error) (int, *ErrorInfo) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		info := &ErrorInfo{
			Code:    appErrors.ErrBadRequest.Code,
			Message: fields.Error(),
			Fields:  fields,
		}
		// keep a caller-supplied summary when the fields arrive wrapped
		var wrapped *appErrors.AppError
		if errors.As(err, &wrapped) && wrapped.Code == appErrors.ErrBadRequest.Code {
			info.Message = wrapped.Message
		}
		return http.StatusBadRequest, info
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return status, &ErrorInfo{Code: appErr.Code, Message: appErr.Message}
}
