package domain

import (
	"time"
)

// Avatar 学生头像实体
//
// Data 与 FilePath 指向的磁盘文件内容保持一致，一个学生最多一条记录。
type Avatar struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	FilePath  string    `json:"filePath" gorm:"type:varchar(255)"`
	MediaType string    `json:"mediaType" gorm:"type:varchar(50)"`
	FileSize  int64     `json:"fileSize"`
	Data      []byte    `json:"-"`
	StudentID uint64    `json:"studentId" gorm:"uniqueIndex"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定表名
func (Avatar) TableName() string {
	return "avatars"
}

// Meta 返回不含二进制数据的元信息
func (a *Avatar) Meta() AvatarMeta {
	return AvatarMeta{
		ID:        a.ID,
		FilePath:  a.FilePath,
		MediaType: a.MediaType,
		FileSize:  a.FileSize,
		StudentID: a.StudentID,
		CreatedAt: a.CreatedAt,
	}
}

// Clone 深拷贝，避免调用方修改缓存或存储中的数据
func (a *Avatar) Clone() *Avatar {
	if a == nil {
		return nil
	}
	cp := *a
	if a.Data != nil {
		cp.Data = append([]byte(nil), a.Data...)
	}
	return &cp
}

// AvatarMeta 头像元信息（分页列表使用，不含 Data）
type AvatarMeta struct {
	ID        uint64    `json:"id"`
	FilePath  string    `json:"filePath"`
	MediaType string    `json:"mediaType"`
	FileSize  int64     `json:"fileSize"`
	StudentID uint64    `json:"studentId"`
	CreatedAt time.Time `json:"createdAt"`
}

// AvatarPage 头像分页结果
type AvatarPage struct {
	Items []AvatarMeta `json:"items"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Size  int          `json:"size"`
}
