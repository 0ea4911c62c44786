package domain

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// DefaultAvatarDir 头像文件相对目录
const DefaultAvatarDir = "avatars"

// ErrInvalidAvatarDir 头像目录非法（绝对路径或包含 ..）
var ErrInvalidAvatarDir = errors.New("invalid avatar directory")

// AvatarNamer 头像文件名生成器
//
// 生成形如 avatars/avatar_<studentId>_<uuid><ext> 的相对路径，
// 原始文件名只贡献扩展名，其余部分不会进入路径。
type AvatarNamer struct {
	dir   string
	token func() string
}

// NewAvatarNamer 创建文件名生成器
func NewAvatarNamer(dir string) (*AvatarNamer, error) {
	dir = strings.TrimRight(strings.TrimSpace(dir), "/")
	if dir == "" {
		dir = DefaultAvatarDir
	}
	if path.IsAbs(dir) || strings.Contains(dir, "\\") {
		return nil, ErrInvalidAvatarDir
	}
	for _, seg := range strings.Split(dir, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return nil, ErrInvalidAvatarDir
		}
	}
	return &AvatarNamer{dir: dir, token: uuid.NewString}, nil
}

// Dir 返回相对目录
func (n *AvatarNamer) Dir() string {
	return n.dir
}

// Generate 为学生生成新的头像相对路径
//
// 每次调用都会产生不同的随机令牌，同一学生多次上传不会冲突。
func (n *AvatarNamer) Generate(studentID uint64, filename string) string {
	name := fmt.Sprintf("avatar_%d_%s%s", studentID, n.token(), AvatarExtension(filename))
	return n.dir + "/" + name
}
