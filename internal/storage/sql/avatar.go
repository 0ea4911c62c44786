package sql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"school/backend/internal/domain"
	"school/backend/internal/storage"
)

// avatarMetaColumns 分页查询只取元信息列，不读取 data
const avatarMetaColumns = "id, file_path, media_type, file_size, student_id, created_at"

// ReplaceAvatar 在同一事务中删除旧头像并写入新头像
func (s *Store) ReplaceAvatar(ctx context.Context, avatar *domain.Avatar) (*domain.Avatar, error) {
	var previous *domain.Avatar

	err := s.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Student{}).Where("id = ?", avatar.StudentID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check student: %w", err)
		}
		if count == 0 {
			return storage.ErrStudentNotFound
		}

		var old domain.Avatar
		err := tx.Where("student_id = ?", avatar.StudentID).First(&old).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return fmt.Errorf("failed to get avatar: %w", err)
		default:
			if err := tx.Delete(&domain.Avatar{}, old.ID).Error; err != nil {
				return fmt.Errorf("failed to delete avatar: %w", err)
			}
			previous = &old
		}

		avatar.ID = 0
		if err := tx.Create(avatar).Error; err != nil {
			return fmt.Errorf("failed to save avatar: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// GetAvatarByStudentID 获取学生头像
func (s *Store) GetAvatarByStudentID(ctx context.Context, studentID uint64) (*domain.Avatar, error) {
	var avatar domain.Avatar
	err := s.gormDB.WithContext(ctx).Where("student_id = ?", studentID).First(&avatar).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrAvatarNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get avatar: %w", err)
	}
	return &avatar, nil
}

// ListAvatars 分页查询头像元信息（按ID升序）
func (s *Store) ListAvatars(ctx context.Context, page, size int) ([]domain.AvatarMeta, int64, error) {
	db := s.gormDB.WithContext(ctx)

	var total int64
	if err := db.Model(&domain.Avatar{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count avatars: %w", err)
	}

	metas := make([]domain.AvatarMeta, 0)
	if storage.PageBeyondEnd(total, page, size) {
		return metas, total, nil
	}

	err := db.Model(&domain.Avatar{}).
		Select(avatarMetaColumns).
		Order("id ASC").
		Offset(page * size).
		Limit(size).
		Find(&metas).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list avatars: %w", err)
	}
	return metas, total, nil
}
