package resputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the uniform envelope of every endpoint.
type Response[T any] struct {
	Code ErrorCode `json:"code"`
	Data T         `json:"data"`
	Msg  string    `json:"msg"`
}

func Success[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, Response[T]{
		Code: OK,
		Data: data,
		Msg:  "",
	})
}

// Error reports an expected failure with HTTP 200; the code carries the
// semantics.
func Error(c *gin.Context, msg string, code ErrorCode) {
	c.JSON(http.StatusOK, Response[any]{
		Code: code,
		Data: nil,
		Msg:  msg,
	})
}

func BadRequestError(c *gin.Context, msg string) {
	HTTPError(c, http.StatusBadRequest, msg, InvalidRequest)
}

// HTTPError reports a failure with a non-200 status.
func HTTPError(c *gin.Context, status int, msg string, code ErrorCode) {
	c.JSON(status, Response[any]{
		Code: code,
		Data: nil,
		Msg:  msg,
	})
}
