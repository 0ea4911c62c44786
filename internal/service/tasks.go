package service

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"school/backend/internal/domain"
	"school/backend/internal/pool"
)

const (
	defaultTaskCapacity = 1024
	defaultTaskTTL      = 10 * time.Minute
)

// TaskStatus 异步任务状态
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// AvatarTask 异步上传任务
type AvatarTask struct {
	ID        string
	StudentID uint64
	CreatedAt time.Time

	future *pool.Future[*domain.Avatar]
}

// TaskSnapshot 任务状态快照
type TaskSnapshot struct {
	ID        string         `json:"taskId"`
	StudentID uint64         `json:"studentId"`
	Status    TaskStatus     `json:"status"`
	Avatar    *domain.Avatar `json:"avatar,omitempty"`
	Err       error          `json:"-"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Future 返回任务结果句柄
func (t *AvatarTask) Future() *pool.Future[*domain.Avatar] {
	return t.future
}

// Snapshot 返回任务当前状态
func (t *AvatarTask) Snapshot() TaskSnapshot {
	snap := TaskSnapshot{
		ID:        t.ID,
		StudentID: t.StudentID,
		Status:    TaskPending,
		CreatedAt: t.CreatedAt,
	}
	avatar, err, done := t.future.Poll()
	if !done {
		return snap
	}
	if err != nil {
		snap.Status = TaskFailed
		snap.Err = err
		return snap
	}
	snap.Status = TaskSucceeded
	snap.Avatar = avatar
	return snap
}

// TaskRegistry 异步任务注册表
//
// 任务按 TTL 过期，容量满时淘汰最早的任务。
type TaskRegistry struct {
	tasks *expirable.LRU[string, *AvatarTask]

	mu        sync.RWMutex
	listeners []func(TaskSnapshot)
}

// NewTaskRegistry 创建任务注册表
func NewTaskRegistry(capacity int, ttl time.Duration) *TaskRegistry {
	if capacity <= 0 {
		capacity = defaultTaskCapacity
	}
	if ttl <= 0 {
		ttl = defaultTaskTTL
	}
	return &TaskRegistry{
		tasks: expirable.NewLRU[string, *AvatarTask](capacity, nil, ttl),
	}
}

// Register 登记任务，任务完成时通知所有监听者
func (r *TaskRegistry) Register(studentID uint64, future *pool.Future[*domain.Avatar]) *AvatarTask {
	task := &AvatarTask{
		ID:        uuid.NewString(),
		StudentID: studentID,
		CreatedAt: time.Now(),
		future:    future,
	}
	r.tasks.Add(task.ID, task)

	future.Then(func(*domain.Avatar, error) {
		r.notify(task.Snapshot())
	})
	return task
}

// Get 查询任务
func (r *TaskRegistry) Get(id string) (*AvatarTask, error) {
	task, ok := r.tasks.Get(id)
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// Len 当前保留的任务数
func (r *TaskRegistry) Len() int {
	return r.tasks.Len()
}

// AddListener 注册任务完成监听者
func (r *TaskRegistry) AddListener(fn func(TaskSnapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *TaskRegistry) notify(snap TaskSnapshot) {
	r.mu.RLock()
	listeners := slices.Clone(r.listeners)
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// GetTask 查询异步上传任务
func (s *AvatarService) GetTask(id string) (*AvatarTask, error) {
	return s.tasks.Get(id)
}
