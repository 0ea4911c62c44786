package domain

import "time"

// Student 学生实体
type Student struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"type:varchar(255);index"`
	Age       int       `json:"age" gorm:"index"`
	FacultyID *uint64   `json:"facultyId,omitempty" gorm:"index"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Student) TableName() string {
	return "students"
}

// Faculty 学院实体
type Faculty struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"type:varchar(255);index"`
	Color     string    `json:"color" gorm:"type:varchar(50)"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定表名
func (Faculty) TableName() string {
	return "faculties"
}
