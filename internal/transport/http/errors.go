package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"school/backend/internal/domain"
	"school/backend/internal/pool"
	"school/backend/internal/service"
	"school/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
//
// 只登记具体原因，不登记 service.ErrValidation 等分类错误，
// 保证一个错误链最多匹配一条。
var errorMessages = map[error]string{
	// 头像校验
	domain.ErrPayloadTooLarge:      "文件大小超过 300KB 限制",
	domain.ErrUnsupportedMediaType: "仅支持 JPG、PNG、GIF 格式的图片",
	domain.ErrInvalidExtension:     "文件扩展名无效，仅支持 .jpg、.jpeg、.png、.gif",

	// 学生与学院
	domain.ErrStudentNameRequired: "学生姓名不能为空",
	domain.ErrStudentTooYoung:     "学生年龄不能小于 11 岁",
	domain.ErrFacultyNameRequired: "学院名称不能为空",
	service.ErrInvalidAgeRange:    "年龄区间无效",

	// 资源不存在
	storage.ErrStudentNotFound: "学生不存在",
	storage.ErrAvatarNotFound:  "该学生没有头像",
	storage.ErrFacultyNotFound: "学院不存在",
	service.ErrTaskNotFound:    "上传任务不存在或已过期",

	// 分页
	service.ErrInvalidPage: "分页参数无效：page 需 >= 0，size 需 >= 1",

	// 异步队列
	pool.ErrQueueFull:  "上传队列已满，请稍后重试",
	pool.ErrPoolClosed: "服务正在关闭，请稍后重试",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	for target, msg := range errorMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return err.Error()
}

// StatusOf 将业务错误映射为 HTTP 状态码
func StatusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case service.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, pool.ErrQueueFull), errors.Is(err, pool.ErrPoolClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody 将错误转换为响应体，5xx 不暴露原因
func ErrorBody(err error) Response {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		return Response{Code: status, Msg: MsgInternalError}
	}
	return Response{Code: status, Msg: GetErrorMessage(err)}
}

// respondError 写出错误响应，服务端错误记录原因
func (h *Handler) respondError(c *gin.Context, err error) {
	body := ErrorBody(err)
	if body.Code >= http.StatusInternalServerError {
		_ = c.Error(err)
		h.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", body.Code),
			zap.Error(err),
		)
	}
	c.JSON(body.Code, body)
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgInvalidStudentID = "学生ID格式无效"
	MsgInvalidFacultyID = "学院ID格式无效"
	MsgInvalidPage      = "分页参数格式错误"
	MsgInvalidAge       = "年龄参数格式错误"
	MsgFileRequired     = "请通过 file 字段上传头像文件"
	MsgFileUnreadable   = "读取上传文件失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
