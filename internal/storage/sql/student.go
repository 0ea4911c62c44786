package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"school/backend/internal/domain"
	"school/backend/internal/storage"
)

// CreateStudent 创建学生
func (s *Store) CreateStudent(ctx context.Context, student *domain.Student) error {
	return s.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureFaculty(tx, student.FacultyID); err != nil {
			return err
		}
		if err := tx.Create(student).Error; err != nil {
			return fmt.Errorf("failed to create student: %w", err)
		}
		return nil
	})
}

// GetStudent 根据ID获取学生
func (s *Store) GetStudent(ctx context.Context, id uint64) (*domain.Student, error) {
	var student domain.Student
	err := s.gormDB.WithContext(ctx).First(&student, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return &student, nil
}

// UpdateStudent 更新学生信息
func (s *Store) UpdateStudent(ctx context.Context, student *domain.Student) error {
	return s.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Student
		err := tx.First(&existing, student.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return storage.ErrStudentNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get student: %w", err)
		}
		if err := ensureFaculty(tx, student.FacultyID); err != nil {
			return err
		}

		student.CreatedAt = existing.CreatedAt
		if err := tx.Save(student).Error; err != nil {
			return fmt.Errorf("failed to update student: %w", err)
		}
		return nil
	})
}

// DeleteStudent 删除学生及其头像记录
func (s *Store) DeleteStudent(ctx context.Context, id uint64) (*domain.Avatar, error) {
	var removed *domain.Avatar

	err := s.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&domain.Student{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete student: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return storage.ErrStudentNotFound
		}

		var avatar domain.Avatar
		err := tx.Where("student_id = ?", id).First(&avatar).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get avatar: %w", err)
		}
		if err := tx.Delete(&domain.Avatar{}, avatar.ID).Error; err != nil {
			return fmt.Errorf("failed to delete avatar: %w", err)
		}
		removed = &avatar
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// ListStudents 列出所有学生
func (s *Store) ListStudents(ctx context.Context) ([]domain.Student, error) {
	students := make([]domain.Student, 0)
	if err := s.gormDB.WithContext(ctx).Order("id ASC").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

// ListStudentsByAge 列出年龄区间内的学生
func (s *Store) ListStudentsByAge(ctx context.Context, min, max int) ([]domain.Student, error) {
	students := make([]domain.Student, 0)
	err := s.gormDB.WithContext(ctx).
		Where("age BETWEEN ? AND ?", min, max).
		Order("id ASC").
		Find(&students).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

// ListStudentsByFaculty 列出学院下的学生
func (s *Store) ListStudentsByFaculty(ctx context.Context, facultyID uint64) ([]domain.Student, error) {
	db := s.gormDB.WithContext(ctx)
	if err := ensureFaculty(db, &facultyID); err != nil {
		return nil, err
	}

	students := make([]domain.Student, 0)
	err := db.Where("faculty_id = ?", facultyID).Order("id ASC").Find(&students).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

// CreateFaculty 创建学院
func (s *Store) CreateFaculty(ctx context.Context, faculty *domain.Faculty) error {
	if err := s.gormDB.WithContext(ctx).Create(faculty).Error; err != nil {
		return fmt.Errorf("failed to create faculty: %w", err)
	}
	return nil
}

// GetFaculty 根据ID获取学院
func (s *Store) GetFaculty(ctx context.Context, id uint64) (*domain.Faculty, error) {
	var faculty domain.Faculty
	err := s.gormDB.WithContext(ctx).First(&faculty, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrFacultyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get faculty: %w", err)
	}
	return &faculty, nil
}

// ListFaculties 列出所有学院
func (s *Store) ListFaculties(ctx context.Context) ([]domain.Faculty, error) {
	return s.SearchFaculties(ctx, "")
}

// SearchFaculties 按名称或颜色搜索学院（不区分大小写）
func (s *Store) SearchFaculties(ctx context.Context, query string) ([]domain.Faculty, error) {
	db := s.gormDB.WithContext(ctx).Order("id ASC")
	if query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(color) LIKE ?", pattern, pattern)
	}

	faculties := make([]domain.Faculty, 0)
	if err := db.Find(&faculties).Error; err != nil {
		return nil, fmt.Errorf("failed to list faculties: %w", err)
	}
	return faculties, nil
}

// ensureFaculty 校验学院存在（facultyID 为 nil 时跳过）
func ensureFaculty(db *gorm.DB, facultyID *uint64) error {
	if facultyID == nil {
		return nil
	}
	var count int64
	if err := db.Model(&domain.Faculty{}).Where("id = ?", *facultyID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check faculty: %w", err)
	}
	if count == 0 {
		return storage.ErrFacultyNotFound
	}
	return nil
}
