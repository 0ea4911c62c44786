package storage

import (
	"context"
	"errors"

	"school/backend/internal/domain"
)

var (
	// ErrStudentNotFound 学生未找到错误
	ErrStudentNotFound = errors.New("student not found")
	// ErrAvatarNotFound 头像未找到错误
	ErrAvatarNotFound = errors.New("avatar not found")
	// ErrFacultyNotFound 学院未找到错误
	ErrFacultyNotFound = errors.New("faculty not found")
)

// StudentRepository 定义学生数据存取操作。
type StudentRepository interface {
	CreateStudent(ctx context.Context, student *domain.Student) error
	GetStudent(ctx context.Context, id uint64) (*domain.Student, error)
	UpdateStudent(ctx context.Context, student *domain.Student) error
	// DeleteStudent 删除学生并级联删除其头像记录，返回被删除的头像（没有则为 nil）
	DeleteStudent(ctx context.Context, id uint64) (*domain.Avatar, error)
	ListStudents(ctx context.Context) ([]domain.Student, error)
	ListStudentsByAge(ctx context.Context, min, max int) ([]domain.Student, error)
	ListStudentsByFaculty(ctx context.Context, facultyID uint64) ([]domain.Student, error)
}

// FacultyRepository 定义学院数据存取操作。
type FacultyRepository interface {
	CreateFaculty(ctx context.Context, faculty *domain.Faculty) error
	GetFaculty(ctx context.Context, id uint64) (*domain.Faculty, error)
	ListFaculties(ctx context.Context) ([]domain.Faculty, error)
	// SearchFaculties 按名称或颜色（不区分大小写）匹配
	SearchFaculties(ctx context.Context, query string) ([]domain.Faculty, error)
}

// AvatarRepository 定义头像数据存取操作。
type AvatarRepository interface {
	// ReplaceAvatar 原子地删除学生旧头像并写入新头像，返回旧记录（没有则为 nil）
	//
	// 成功后 avatar.ID 和 avatar.CreatedAt 被填充。
	ReplaceAvatar(ctx context.Context, avatar *domain.Avatar) (*domain.Avatar, error)
	GetAvatarByStudentID(ctx context.Context, studentID uint64) (*domain.Avatar, error)
	// ListAvatars 按 ID 升序分页，page 从 0 开始，结果不含 Data
	ListAvatars(ctx context.Context, page, size int) ([]domain.AvatarMeta, int64, error)
}

// Store 聚合所有存储接口
type Store interface {
	StudentRepository
	FacultyRepository
	AvatarRepository

	Health() error
	Close() error
}

// PageBeyondEnd 判断从 0 开始的 page 是否超出 total 条记录的末页
//
// 只做除法，page 极大时不会溢出。size 必须大于 0。
func PageBeyondEnd(total int64, page, size int) bool {
	pages := total / int64(size)
	if total%int64(size) != 0 {
		pages++
	}
	return int64(page) >= pages
}
