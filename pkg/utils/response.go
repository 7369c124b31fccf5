package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Response standard response structure
type Response struct {
	Code      ResponseCode `json:"code"`
	Message   string       `json:"message"`
	Data      interface{}  `json:"data,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// SuccessResponse returns success response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      CodeSuccess,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// ErrorResponse returns error response with HTTP status
func ErrorResponse(c *gin.Context, httpCode int, message string) {
	c.JSON(httpCode, Response{
		Code:      ResponseCode(httpCode),
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// FailedResponse returns a business failure with HTTP 200 and custom code
func FailedResponse(c *gin.Context, code ResponseCode, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      code,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// Error writes a business error code response and aborts the request
func Error(c *gin.Context, code ResponseCode, message string) {
	status := http.StatusOK
	switch code {
	case CodeUnauthorized:
		status = http.StatusUnauthorized
	case CodeForbidden:
		status = http.StatusForbidden
	case CodeInvalidParam:
		status = http.StatusBadRequest
	case CodeInternalError, CodeEncodingError, CodeServiceError:
		status = http.StatusInternalServerError
	}
	c.JSON(status, Response{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
	c.Abort()
}

// AppErrorResponse maps an AppError onto the response envelope
func AppErrorResponse(c *gin.Context, err error) {
	if appErr, ok := IsAppError(err); ok {
		Error(c, appErr.Code, appErr.Message)
		return
	}
	Error(c, CodeInternalError, "internal server error")
}
