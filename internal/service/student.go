package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"school/backend/internal/domain"
	"school/backend/internal/storage"
)

// ErrInvalidAgeRange 年龄区间不合法
var ErrInvalidAgeRange = errors.New("min age must not exceed max age")

// StudentService 封装学生相关业务操作。
type StudentService struct {
	repo    storage.StudentRepository
	faculty storage.FacultyRepository
	avatars *AvatarService
	log     *zap.Logger
}

// NewStudentService 创建学生业务服务。
//
// avatars 用于删除学生时清理头像文件与缓存，可为 nil。
func NewStudentService(repo storage.StudentRepository, faculty storage.FacultyRepository, avatars *AvatarService, log *zap.Logger) *StudentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &StudentService{
		repo:    repo,
		faculty: faculty,
		avatars: avatars,
		log:     log,
	}
}

// StudentInput 创建或更新学生的输入
type StudentInput struct {
	Name      string
	Age       int
	FacultyID *uint64
}

// Create 创建学生。
func (s *StudentService) Create(ctx context.Context, input StudentInput) (*domain.Student, error) {
	student := &domain.Student{
		Name:      strings.TrimSpace(input.Name),
		Age:       input.Age,
		FacultyID: input.FacultyID,
	}
	if err := domain.ValidateStudent(student); err != nil {
		return nil, validationError(err)
	}
	if err := s.repo.CreateStudent(ctx, student); err != nil {
		return nil, persistenceError(err)
	}

	s.log.Info("student created", zap.Uint64("studentId", student.ID), zap.String("name", student.Name))
	return student, nil
}

// Get 获取学生。
func (s *StudentService) Get(ctx context.Context, id uint64) (*domain.Student, error) {
	student, err := s.repo.GetStudent(ctx, id)
	if err != nil {
		return nil, persistenceError(err)
	}
	return student, nil
}

// Update 更新学生信息。
func (s *StudentService) Update(ctx context.Context, id uint64, input StudentInput) (*domain.Student, error) {
	student := &domain.Student{
		ID:        id,
		Name:      strings.TrimSpace(input.Name),
		Age:       input.Age,
		FacultyID: input.FacultyID,
	}
	if err := domain.ValidateStudent(student); err != nil {
		return nil, validationError(err)
	}
	if err := s.repo.UpdateStudent(ctx, student); err != nil {
		return nil, persistenceError(err)
	}
	return student, nil
}

// Delete 删除学生，级联删除头像记录、头像文件与缓存。
func (s *StudentService) Delete(ctx context.Context, id uint64) error {
	remove := func(ctx context.Context) (*domain.Avatar, error) {
		return s.repo.DeleteStudent(ctx, id)
	}

	var err error
	if s.avatars != nil {
		err = s.avatars.PurgeStudent(ctx, id, remove)
	} else {
		_, err = remove(ctx)
	}
	if err != nil {
		return persistenceError(err)
	}

	s.log.Info("student deleted", zap.Uint64("studentId", id))
	return nil
}

// List 列出所有学生。
func (s *StudentService) List(ctx context.Context) ([]domain.Student, error) {
	students, err := s.repo.ListStudents(ctx)
	if err != nil {
		return nil, persistenceError(err)
	}
	return students, nil
}

// ListByAge 列出年龄在 [min, max] 内的学生。
func (s *StudentService) ListByAge(ctx context.Context, min, max int) ([]domain.Student, error) {
	if min > max {
		return nil, validationError(ErrInvalidAgeRange)
	}
	students, err := s.repo.ListStudentsByAge(ctx, min, max)
	if err != nil {
		return nil, persistenceError(err)
	}
	return students, nil
}

// Faculty 查询学生所属学院，未分配学院时返回 ErrFacultyNotFound。
func (s *StudentService) Faculty(ctx context.Context, id uint64) (*domain.Faculty, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if student.FacultyID == nil {
		return nil, storage.ErrFacultyNotFound
	}
	faculty, err := s.faculty.GetFaculty(ctx, *student.FacultyID)
	if err != nil {
		return nil, persistenceError(err)
	}
	return faculty, nil
}

// FacultyService 封装学院相关业务操作。
type FacultyService struct {
	repo     storage.FacultyRepository
	students storage.StudentRepository
}

// NewFacultyService 创建学院业务服务。
func NewFacultyService(repo storage.FacultyRepository, students storage.StudentRepository) *FacultyService {
	return &FacultyService{repo: repo, students: students}
}

// FacultyInput 创建学院的输入
type FacultyInput struct {
	Name  string
	Color string
}

// Create 创建学院。
func (s *FacultyService) Create(ctx context.Context, input FacultyInput) (*domain.Faculty, error) {
	faculty := &domain.Faculty{
		Name:  strings.TrimSpace(input.Name),
		Color: strings.TrimSpace(input.Color),
	}
	if err := domain.ValidateFaculty(faculty); err != nil {
		return nil, validationError(err)
	}
	if err := s.repo.CreateFaculty(ctx, faculty); err != nil {
		return nil, persistenceError(err)
	}
	return faculty, nil
}

// Get 获取学院。
func (s *FacultyService) Get(ctx context.Context, id uint64) (*domain.Faculty, error) {
	faculty, err := s.repo.GetFaculty(ctx, id)
	if err != nil {
		return nil, persistenceError(err)
	}
	return faculty, nil
}

// List 列出学院，query 非空时按名称或颜色过滤（不区分大小写）。
func (s *FacultyService) List(ctx context.Context, query string) ([]domain.Faculty, error) {
	var (
		faculties []domain.Faculty
		err       error
	)
	if q := strings.TrimSpace(query); q != "" {
		faculties, err = s.repo.SearchFaculties(ctx, q)
	} else {
		faculties, err = s.repo.ListFaculties(ctx)
	}
	if err != nil {
		return nil, persistenceError(err)
	}
	return faculties, nil
}

// Students 列出学院下的学生。
func (s *FacultyService) Students(ctx context.Context, id uint64) ([]domain.Student, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	students, err := s.students.ListStudentsByFaculty(ctx, id)
	if err != nil {
		return nil, persistenceError(err)
	}
	return students, nil
}
