package domain

import (
	"errors"
	"mime"
	"path/filepath"
	"strings"
)

// 验证相关的错误定义
var (
	ErrPayloadTooLarge      = errors.New("file size exceeds maximum limit of 300KB")
	ErrUnsupportedMediaType = errors.New("only JPG, PNG and GIF images are allowed")
	ErrInvalidExtension     = errors.New("invalid file extension, allowed: .jpg, .jpeg, .png, .gif")

	ErrStudentNameRequired = errors.New("student name is required")
	ErrStudentTooYoung     = errors.New("student age must be at least 11")
	ErrFacultyNameRequired = errors.New("faculty name is required")
)

// 验证常量
const (
	// MaxAvatarSize 头像大小上限 300 KiB（含边界）
	MaxAvatarSize int64 = 300 * 1024

	// MinStudentAge 学生最小年龄
	MinStudentAge = 11
)

var allowedAvatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

var allowedAvatarExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// AvatarValidator 头像上传验证器
//
// 按 大小 -> 媒体类型 -> 扩展名 的顺序检查，遇到第一个失败立即返回。
// 不读取文件内容，仅依赖上传方声明的元数据。
type AvatarValidator struct {
	maxSize int64
}

// NewAvatarValidator 创建头像验证器
//
// maxSize <= 0 时使用 MaxAvatarSize
func NewAvatarValidator(maxSize int64) *AvatarValidator {
	if maxSize <= 0 {
		maxSize = MaxAvatarSize
	}
	return &AvatarValidator{maxSize: maxSize}
}

// MaxSize 返回大小上限
func (v *AvatarValidator) MaxSize() int64 {
	return v.maxSize
}

// Validate 验证上传文件
//
// 参数:
//   - size: 声明的字节数
//   - mediaType: 声明的 Content-Type，可带参数
//   - filename: 原始文件名
func (v *AvatarValidator) Validate(size int64, mediaType, filename string) error {
	if size > v.maxSize {
		return ErrPayloadTooLarge
	}
	if !IsAllowedMediaType(mediaType) {
		return ErrUnsupportedMediaType
	}
	if !allowedAvatarExtensions[AvatarExtension(filename)] {
		return ErrInvalidExtension
	}
	return nil
}

// IsAllowedMediaType 检查媒体类型是否在白名单内
func IsAllowedMediaType(mediaType string) bool {
	normalized := NormalizeMediaType(mediaType)
	return normalized != "" && allowedAvatarTypes[normalized]
}

// NormalizeMediaType 去掉参数并转小写，如 "image/PNG; q=1" -> "image/png"
func NormalizeMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed)
}

// AvatarExtension 返回小写扩展名，无扩展名时返回空字符串
func AvatarExtension(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.ToLower(filepath.Ext(base))
}

// ValidateStudent 验证学生信息
func ValidateStudent(s *Student) error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrStudentNameRequired
	}
	if s.Age < MinStudentAge {
		return ErrStudentTooYoung
	}
	return nil
}

// ValidateFaculty 验证学院信息
func ValidateFaculty(f *Faculty) error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrFacultyNameRequired
	}
	return nil
}
