package restapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"streaming-engine/pkg/errno"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success writes a 200 envelope.
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{Code: errno.OK.Code, Message: errno.OK.Message, Data: data})
}

// Accepted writes a 202 envelope, used when work was queued.
func Accepted(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusAccepted, Response{Code: errno.OK.Code, Message: errno.OK.Message, Data: data})
}

// Failed maps err onto an HTTP status and envelope.
func Failed(ctx *gin.Context, err error) {
	var biz *errno.BizError
	var en *errno.Errno
	switch {
	case errors.As(err, &biz):
		ctx.JSON(httpStatus(biz.Errno.Code), Response{Code: biz.Errno.Code, Message: biz.Error()})
	case errors.As(err, &en):
		ctx.JSON(httpStatus(en.Code), Response{Code: en.Code, Message: en.Message})
	default:
		ctx.JSON(http.StatusBadRequest, Response{Code: errno.ErrInvalidParam.Code, Message: err.Error()})
	}
}

func httpStatus(code int) int {
	switch {
	case code >= 400 && code < 500:
		return code
	case code >= 500 && code < 600:
		return http.StatusInternalServerError
	case code == errno.ErrSourceNotFound.Code || code == errno.ErrObjectNotFound.Code:
		return http.StatusNotFound
	case code == errno.ErrQueueFull.Code:
		return http.StatusServiceUnavailable
	case code >= 20000:
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}
