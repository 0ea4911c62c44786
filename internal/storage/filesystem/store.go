package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	// ErrFileNotFound 文件不存在
	ErrFileNotFound = errors.New("avatar file not found")
	// ErrInvalidPath 路径不合法（越出存储根目录等）
	ErrInvalidPath = errors.New("invalid avatar file path")
)

// Store 文件系统存储实现
//
// 所有对外暴露的路径都是相对 basePath 的 "/" 分隔路径，
// 数据库中记录的也是这种相对路径。
type Store struct {
	basePath string // 存储根目录（绝对路径）
}

// FileInfo 存储中的文件信息
type FileInfo struct {
	Path    string // 相对路径
	Size    int64
	ModTime time.Time
}

// NewStore 创建文件系统存储实例
func NewStore(basePath string) (*Store, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("invalid base path: empty")
	}
	if strings.Contains(basePath, "..") {
		return nil, fmt.Errorf("invalid base path: path traversal detected: %s", basePath)
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base path: %w", err)
	}

	// 确保基础目录存在
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{basePath: filepath.Clean(absPath)}, nil
}

// BasePath 返回存储根目录
func (s *Store) BasePath() string {
	return s.basePath
}

// ========== 头像文件 ==========

// SaveAvatarFile 写入头像文件，父目录不存在时自动创建
//
// 先写临时文件再重命名，读取方不会看到写了一半的文件。
func (s *Store) SaveAvatarFile(relPath string, data []byte) (string, error) {
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create avatar directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write avatar file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close avatar file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to chmod avatar file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move avatar file: %w", err)
	}

	return s.relative(fullPath), nil
}

// ReadAvatarFile 读取头像文件
func (s *Store) ReadAvatarFile(relPath string) ([]byte, error) {
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to read avatar file: %w", err)
	}
	return content, nil
}

// DeleteAvatarFile 删除头像文件，文件不存在时不报错
func (s *Store) DeleteAvatarFile(relPath string) error {
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete avatar file: %w", err)
	}
	return nil
}

// ListFiles 列出目录下的普通文件（不递归，忽略上传中的临时文件），按路径排序
func (s *Store) ListFiles(relDir string) ([]FileInfo, error) {
	fullDir, err := s.resolve(relDir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(fullDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []FileInfo{}, nil
		}
		return nil, err
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".upload-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		files = append(files, FileInfo{
			Path:    s.relative(filepath.Join(fullDir, entry.Name())),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Health 检查存储目录可写
func (s *Store) Health() error {
	info, err := os.Stat(s.basePath)
	if err != nil {
		return fmt.Errorf("avatar storage unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("avatar storage is not a directory: %s", s.basePath)
	}

	probe, err := os.CreateTemp(s.basePath, ".health-*")
	if err != nil {
		return fmt.Errorf("avatar storage not writable: %w", err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// ========== 辅助方法 ==========

// resolve 将相对路径转换为绝对路径，并确保不越出存储根目录
func (s *Store) resolve(relPath string) (string, error) {
	if err := ValidateRelativePath(relPath); err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(relPath))
	rel, err := filepath.Rel(s.basePath, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, relPath)
	}
	return fullPath, nil
}

// relative 返回相对 basePath 的 "/" 分隔路径
func (s *Store) relative(fullPath string) string {
	rel, err := filepath.Rel(s.basePath, fullPath)
	if err != nil {
		return filepath.ToSlash(fullPath)
	}
	return filepath.ToSlash(rel)
}
