package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"school/backend/internal/domain"
	"school/backend/internal/storage"
)

// Store 使用内存保存学生、学院与头像数据，主要用于开发验证。
type Store struct {
	mu sync.RWMutex

	students  map[uint64]*domain.Student
	faculties map[uint64]*domain.Faculty
	avatars   map[uint64]*domain.Avatar // avatarID -> avatar
	byStudent map[uint64]uint64         // studentID -> avatarID

	nextStudentID uint64
	nextFacultyID uint64
	nextAvatarID  uint64
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		students:  make(map[uint64]*domain.Student),
		faculties: make(map[uint64]*domain.Faculty),
		avatars:   make(map[uint64]*domain.Avatar),
		byStudent: make(map[uint64]uint64),
	}
}

// ========== Student ==========

// CreateStudent 保存学生信息，ID 由存储分配。
func (s *Store) CreateStudent(_ context.Context, student *domain.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if student.FacultyID != nil {
		if _, ok := s.faculties[*student.FacultyID]; !ok {
			return storage.ErrFacultyNotFound
		}
	}

	s.nextStudentID++
	now := time.Now().UTC()
	student.ID = s.nextStudentID
	student.CreatedAt = now
	student.UpdatedAt = now

	cp := *student
	s.students[cp.ID] = &cp
	return nil
}

// GetStudent 根据 ID 获取学生。
func (s *Store) GetStudent(_ context.Context, id uint64) (*domain.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	student, ok := s.students[id]
	if !ok {
		return nil, storage.ErrStudentNotFound
	}
	cp := *student
	return &cp, nil
}

// UpdateStudent 更新学生信息。
func (s *Store) UpdateStudent(_ context.Context, student *domain.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.students[student.ID]
	if !ok {
		return storage.ErrStudentNotFound
	}
	if student.FacultyID != nil {
		if _, ok := s.faculties[*student.FacultyID]; !ok {
			return storage.ErrFacultyNotFound
		}
	}

	student.CreatedAt = existing.CreatedAt
	student.UpdatedAt = time.Now().UTC()
	cp := *student
	s.students[cp.ID] = &cp
	return nil
}

// DeleteStudent 删除学生，同时删除其头像记录。
func (s *Store) DeleteStudent(_ context.Context, id uint64) (*domain.Avatar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[id]; !ok {
		return nil, storage.ErrStudentNotFound
	}
	delete(s.students, id)

	avatarID, ok := s.byStudent[id]
	if !ok {
		return nil, nil
	}
	avatar := s.avatars[avatarID]
	delete(s.avatars, avatarID)
	delete(s.byStudent, id)
	return avatar, nil
}

// ListStudents 列出所有学生（按 ID 升序）。
func (s *Store) ListStudents(_ context.Context) ([]domain.Student, error) {
	return s.filterStudents(func(*domain.Student) bool { return true }), nil
}

// ListStudentsByAge 列出年龄在 [min, max] 内的学生。
func (s *Store) ListStudentsByAge(_ context.Context, min, max int) ([]domain.Student, error) {
	return s.filterStudents(func(st *domain.Student) bool {
		return st.Age >= min && st.Age <= max
	}), nil
}

// ListStudentsByFaculty 列出学院下的学生。
func (s *Store) ListStudentsByFaculty(_ context.Context, facultyID uint64) ([]domain.Student, error) {
	s.mu.RLock()
	_, ok := s.faculties[facultyID]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrFacultyNotFound
	}
	return s.filterStudents(func(st *domain.Student) bool {
		return st.FacultyID != nil && *st.FacultyID == facultyID
	}), nil
}

func (s *Store) filterStudents(match func(*domain.Student) bool) []domain.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Student, 0, len(s.students))
	for _, st := range s.students {
		if match(st) {
			result = append(result, *st)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ========== Faculty ==========

// CreateFaculty 保存学院信息。
func (s *Store) CreateFaculty(_ context.Context, faculty *domain.Faculty) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextFacultyID++
	faculty.ID = s.nextFacultyID
	faculty.CreatedAt = time.Now().UTC()

	cp := *faculty
	s.faculties[cp.ID] = &cp
	return nil
}

// GetFaculty 根据 ID 获取学院。
func (s *Store) GetFaculty(_ context.Context, id uint64) (*domain.Faculty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	faculty, ok := s.faculties[id]
	if !ok {
		return nil, storage.ErrFacultyNotFound
	}
	cp := *faculty
	return &cp, nil
}

// ListFaculties 列出所有学院。
func (s *Store) ListFaculties(ctx context.Context) ([]domain.Faculty, error) {
	return s.SearchFaculties(ctx, "")
}

// SearchFaculties 按名称或颜色模糊匹配（不区分大小写），query 为空时返回全部。
func (s *Store) SearchFaculties(_ context.Context, query string) ([]domain.Faculty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Faculty, 0, len(s.faculties))
	for _, f := range s.faculties {
		if query == "" || containsIgnoreCase(f.Name, query) || containsIgnoreCase(f.Color, query) {
			result = append(result, *f)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ========== Avatar ==========

// ReplaceAvatar 写入新头像并删除学生的旧头像。
func (s *Store) ReplaceAvatar(_ context.Context, avatar *domain.Avatar) (*domain.Avatar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[avatar.StudentID]; !ok {
		return nil, storage.ErrStudentNotFound
	}

	var previous *domain.Avatar
	if oldID, ok := s.byStudent[avatar.StudentID]; ok {
		previous = s.avatars[oldID]
		delete(s.avatars, oldID)
	}

	s.nextAvatarID++
	avatar.ID = s.nextAvatarID
	avatar.CreatedAt = time.Now().UTC()

	s.avatars[avatar.ID] = avatar.Clone()
	s.byStudent[avatar.StudentID] = avatar.ID
	return previous, nil
}

// GetAvatarByStudentID 获取学生头像。
func (s *Store) GetAvatarByStudentID(_ context.Context, studentID uint64) (*domain.Avatar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	avatarID, ok := s.byStudent[studentID]
	if !ok {
		return nil, storage.ErrAvatarNotFound
	}
	return s.avatars[avatarID].Clone(), nil
}

// ListAvatars 分页列出头像元信息。
func (s *Store) ListAvatars(_ context.Context, page, size int) ([]domain.AvatarMeta, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uint64, 0, len(s.avatars))
	for id := range s.avatars {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	total := int64(len(ids))
	if storage.PageBeyondEnd(total, page, size) {
		return []domain.AvatarMeta{}, total, nil
	}
	start := page * size
	end := len(ids)
	if size < end-start {
		end = start + size
	}

	result := make([]domain.AvatarMeta, 0, end-start)
	for _, id := range ids[start:end] {
		result = append(result, s.avatars[id].Meta())
	}
	return result, total, nil
}

// Close 关闭存储。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查。
func (s *Store) Health() error {
	return nil
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
