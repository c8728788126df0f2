package ginx

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/flavord/pkg/apierror"
)

// RequestIDKey 中间件往 gin.Context 里写 request id 用的 key
// renderError 渲染错误响应时带上它，和 X-Request-ID 响应头保持一致
const RequestIDKey = "request_id"

// renderResponse 渲染成功响应，nil 返回 204
func renderResponse(ctx *gin.Context, response any) {
	if response == nil {
		ctx.Status(http.StatusNoContent)
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// renderError 渲染错误响应
// *apierror.Error 携带自己的 HTTP 状态码和错误码，其他错误用默认格式
func renderError(ctx *gin.Context, statusCode int, err error) {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatus > 0 {
			statusCode = apiErr.HTTPStatus
		}
		ctx.JSON(statusCode, apierror.NewErrorResponse(ctx.GetString(RequestIDKey), apiErr))
		return
	}
	ctx.JSON(statusCode, gin.H{"error": err.Error()})
}
