package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultBodyLimit 默认请求体大小限制
	DefaultBodyLimit = 10 * 1024 * 1024 // 10MB

	// UploadBodyLimit 头像上传请求体限制（包含 multipart 开销）
	UploadBodyLimit = 1 * 1024 * 1024 // 1MB
)

// BodySizeLimit 限制请求体大小的中间件
//
// Content-Length 超限时直接返回 413；未声明长度的请求在读取超限时
// 由 http.MaxBytesReader 报错，处理器通过 IsBodyTooLarge 识别。
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	return BodySizeLimitFunc(maxBytes, func(c *gin.Context) {
		abortTooLarge(c, maxBytes)
	})
}

// BodySizeLimitFunc 与 BodySizeLimit 相同，但 Content-Length 超限时交给 reject 处理
//
// reject 负责写出响应，中间件随后中止请求链。
func BodySizeLimitFunc(maxBytes int64, reject gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			reject(c)
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

		// 设置响应头，告知客户端最大允许的请求体大小
		c.Header("X-Max-Body-Size", strconv.FormatInt(maxBytes, 10))

		c.Next()
	}
}

// IsBodyTooLarge 判断错误是否由请求体超限引起
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func abortTooLarge(c *gin.Context, maxBytes int64) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
		"code": http.StatusRequestEntityTooLarge,
		"msg":  fmt.Sprintf("请求体超过 %d 字节限制", maxBytes),
	})
}
