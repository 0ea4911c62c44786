package filesystem

import (
	"fmt"
	"path"
	"runtime"
	"strings"
	"unicode"
)

// maxPathLength 相对路径长度上限（保守值）
const maxPathLength = 1024

// ValidateRelativePath 验证存储内的相对路径是否安全
//
// 规则：
//   - 不能为空或绝对路径
//   - 不能包含 ".." 片段或反斜杠
//   - 不能包含控制字符或当前平台不允许的字符
func ValidateRelativePath(relPath string) error {
	if relPath == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if len(relPath) > maxPathLength {
		return fmt.Errorf("%w: path too long: %d characters", ErrInvalidPath, len(relPath))
	}
	if path.IsAbs(relPath) || strings.Contains(relPath, "\\") || hasVolumeName(relPath) {
		return fmt.Errorf("%w: absolute path not allowed: %s", ErrInvalidPath, relPath)
	}

	for _, seg := range strings.Split(relPath, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: path traversal detected: %s", ErrInvalidPath, relPath)
		}
		if !isValidSegment(seg) {
			return fmt.Errorf("%w: invalid path segment %q", ErrInvalidPath, seg)
		}
	}
	return nil
}

// isValidSegment 检查单个路径片段
func isValidSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		if unicode.IsControl(r) {
			return false
		}
	}
	for _, char := range invalidChars() {
		if strings.Contains(seg, char) {
			return false
		}
	}
	return true
}

// invalidChars 获取当前平台不允许的字符
func invalidChars() []string {
	switch runtime.GOOS {
	case "darwin", "linux":
		return []string{"\x00"}
	default:
		// Windows 及其他平台保守处理
		return []string{"<", ">", ":", "\"", "|", "?", "*", "\x00"}
	}
}

// hasVolumeName 检查是否带盘符，如 "C:foo"
func hasVolumeName(p string) bool {
	return len(p) >= 2 && p[1] == ':' && ((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}
