package service

import (
	"errors"
	"fmt"

	"school/backend/internal/storage"
)

// 业务错误分类
//
// 具体原因通过 %w 包装在分类之下，errors.Is 既能匹配分类也能匹配原因。
var (
	// ErrValidation 输入不合法（大小、类型、扩展名、分页参数等）
	ErrValidation = errors.New("validation failed")
	// ErrIO 文件读写失败
	ErrIO = errors.New("avatar file i/o failed")
	// ErrPersistence 数据库读写失败
	ErrPersistence = errors.New("avatar persistence failed")

	// ErrInvalidPage 分页参数不合法
	ErrInvalidPage = errors.New("page must be >= 0 and size must be >= 1")
	// ErrTaskNotFound 异步任务不存在或已过期
	ErrTaskNotFound = errors.New("upload task not found")
)

// IsNotFound 判断是否为资源不存在类错误
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrStudentNotFound) ||
		errors.Is(err, storage.ErrAvatarNotFound) ||
		errors.Is(err, storage.ErrFacultyNotFound) ||
		errors.Is(err, ErrTaskNotFound)
}

// validationError 将原因包装为校验错误
func validationError(cause error) error {
	return fmt.Errorf("%w: %w", ErrValidation, cause)
}

// ioError 将原因包装为文件读写错误
func ioError(cause error) error {
	return fmt.Errorf("%w: %w", ErrIO, cause)
}

// persistenceError 将原因包装为数据库错误，资源不存在类错误原样返回
func persistenceError(cause error) error {
	if IsNotFound(cause) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrPersistence, cause)
}
