package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"school/backend/internal/cache"
	"school/backend/internal/domain"
	"school/backend/internal/monitoring"
	"school/backend/internal/pool"
	"school/backend/internal/storage"
	"school/backend/internal/storage/filesystem"
)

const (
	// DefaultPageSize 默认分页大小
	DefaultPageSize = 10
	// MaxPageSize 分页大小上限，超出时截断
	MaxPageSize = 100

	lockStripes = 64
)

// AvatarStore 头像服务依赖的存储操作
type AvatarStore interface {
	GetStudent(ctx context.Context, id uint64) (*domain.Student, error)
	storage.AvatarRepository
}

// FileStore 头像文件存储
type FileStore interface {
	SaveAvatarFile(relPath string, data []byte) (string, error)
	ReadAvatarFile(relPath string) ([]byte, error)
	DeleteAvatarFile(relPath string) error
	ListFiles(relDir string) ([]filesystem.FileInfo, error)
}

// AvatarServiceConfig 头像服务配置
type AvatarServiceConfig struct {
	Dir          string        // 存储根目录下的头像子目录
	MaxSize      int64         // 头像大小上限
	TaskTTL      time.Duration // 异步任务状态保留时间
	TaskCapacity int           // 最多保留的异步任务数
}

// UploadAvatarInput 定义上传头像所需的输入。
type UploadAvatarInput struct {
	StudentID   uint64
	Filename    string // 原始文件名，仅用于校验和提取扩展名
	ContentType string // 客户端声明的媒体类型
	Size        int64  // 客户端声明的大小
	Data        []byte
}

// SweepResult 孤儿文件清理结果
type SweepResult struct {
	Files   int   // 扫描到的文件数
	Bytes   int64 // 扫描到的文件总大小
	Removed int   // 删除的孤儿文件数
}

// AvatarService 封装头像上传、读取与分页业务。
//
// 同一学生的上传与缓存回填按学生 ID 串行执行，保证数据库、磁盘与缓存
// 最终指向同一次上传。不同学生之间互不阻塞。
type AvatarService struct {
	store     AvatarStore
	files     FileStore
	cache     cache.AvatarCache
	workers   *pool.WorkerPool
	validator *domain.AvatarValidator
	namer     *domain.AvatarNamer
	tasks     *TaskRegistry
	metrics   *monitoring.Metrics
	log       *zap.Logger

	locks [lockStripes]sync.Mutex
}

// NewAvatarService 创建头像业务服务。
func NewAvatarService(
	store AvatarStore,
	files FileStore,
	avatarCache cache.AvatarCache,
	workers *pool.WorkerPool,
	cfg AvatarServiceConfig,
	log *zap.Logger,
) (*AvatarService, error) {
	namer, err := domain.NewAvatarNamer(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &AvatarService{
		store:     store,
		files:     files,
		cache:     avatarCache,
		workers:   workers,
		validator: domain.NewAvatarValidator(cfg.MaxSize),
		namer:     namer,
		tasks:     NewTaskRegistry(cfg.TaskCapacity, cfg.TaskTTL),
		log:       log,
	}, nil
}

// SetMetrics 设置监控指标（可选）
func (s *AvatarService) SetMetrics(metrics *monitoring.Metrics) {
	s.metrics = metrics
}

// Tasks 返回异步任务注册表
func (s *AvatarService) Tasks() *TaskRegistry {
	return s.tasks
}

// Upload 同步上传头像。
//
// 步骤：校验 -> 确认学生存在 -> 写文件 -> 写数据库 -> 更新缓存 -> 删除旧文件。
// 写文件成功但数据库写入失败时不回滚，文件会遗留在磁盘上（记录日志，
// 由孤儿文件清理任务回收）。请求取消不会中断已开始的写入。
func (s *AvatarService) Upload(ctx context.Context, input UploadAvatarInput) (*domain.Avatar, error) {
	start := time.Now()
	avatar, err := s.upload(context.WithoutCancel(ctx), input)
	s.recordUpload(monitoring.ModeSync, input.Size, start, err)
	return avatar, err
}

// UploadAsync 提交后台上传任务，立即返回任务句柄。
//
// 校验失败等业务错误通过句柄返回，与同步上传的错误一致；
// 只有队列已满或协程池已停止时直接返回错误。
func (s *AvatarService) UploadAsync(ctx context.Context, input UploadAvatarInput) (*AvatarTask, error) {
	input.Data = append([]byte(nil), input.Data...)
	bg := context.WithoutCancel(ctx)

	future, err := pool.Go(s.workers, func() (*domain.Avatar, error) {
		start := time.Now()
		avatar, err := s.upload(bg, input)
		s.recordUpload(monitoring.ModeAsync, input.Size, start, err)
		return avatar, err
	})
	if err != nil {
		s.log.Warn("async avatar upload rejected",
			zap.Uint64("studentId", input.StudentID),
			zap.Error(err),
		)
		return nil, err
	}

	task := s.tasks.Register(input.StudentID, future)
	if s.metrics != nil {
		s.metrics.IncAsyncInFlight()
		s.metrics.UpdateAsyncQueue(s.workers.QueueLen())
	}
	future.Then(func(*domain.Avatar, error) {
		if s.metrics != nil {
			s.metrics.DecAsyncInFlight()
			s.metrics.UpdateAsyncQueue(s.workers.QueueLen())
		}
	})
	return task, nil
}

// upload 上传主流程，同步与异步共用
func (s *AvatarService) upload(ctx context.Context, input UploadAvatarInput) (*domain.Avatar, error) {
	if err := s.validator.Validate(input.Size, input.ContentType, input.Filename); err != nil {
		return nil, validationError(err)
	}
	// 声明大小可能与实际不符，以实际字节数为准再检查一次
	if int64(len(input.Data)) > s.validator.MaxSize() {
		return nil, validationError(domain.ErrPayloadTooLarge)
	}

	unlock := s.lock(input.StudentID)
	defer unlock()

	if _, err := s.store.GetStudent(ctx, input.StudentID); err != nil {
		return nil, persistenceError(err)
	}

	relPath := s.namer.Generate(input.StudentID, input.Filename)
	savedPath, err := s.files.SaveAvatarFile(relPath, input.Data)
	if err != nil {
		s.log.Error("failed to write avatar file",
			zap.Uint64("studentId", input.StudentID),
			zap.String("path", relPath),
			zap.Error(err),
		)
		return nil, ioError(err)
	}

	avatar := &domain.Avatar{
		FilePath:  savedPath,
		MediaType: domain.NormalizeMediaType(input.ContentType),
		FileSize:  int64(len(input.Data)),
		Data:      input.Data,
		StudentID: input.StudentID,
	}

	previous, err := s.store.ReplaceAvatar(ctx, avatar)
	if err != nil {
		if errors.Is(err, storage.ErrStudentNotFound) {
			// 学生在写文件期间被删除，文件没有任何记录引用
			s.removeFile(savedPath)
			return nil, err
		}
		s.log.Warn("avatar record not persisted, file left on disk",
			zap.Uint64("studentId", input.StudentID),
			zap.String("orphanPath", savedPath),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.RecordOrphanFile()
		}
		return nil, persistenceError(err)
	}

	// 先失效再写入，Set 失败时不会继续返回旧头像
	s.cache.Delete(ctx, avatar.StudentID)
	s.cache.Set(ctx, avatar)

	if previous != nil && previous.FilePath != "" && previous.FilePath != avatar.FilePath {
		s.removeFile(previous.FilePath)
	}

	s.log.Info("avatar uploaded",
		zap.Uint64("studentId", avatar.StudentID),
		zap.Uint64("avatarId", avatar.ID),
		zap.String("path", avatar.FilePath),
		zap.Int64("size", avatar.FileSize),
	)
	return avatar, nil
}

// GetByStudentID 通过缓存读取学生头像。
func (s *AvatarService) GetByStudentID(ctx context.Context, studentID uint64) (*domain.Avatar, error) {
	if avatar, ok := s.cache.Get(ctx, studentID); ok {
		if s.metrics != nil {
			s.metrics.RecordCacheHit()
		}
		return avatar, nil
	}
	if s.metrics != nil {
		s.metrics.RecordCacheMiss()
	}

	// 回填与上传使用同一把锁，慢读不会把旧记录写回缓存
	unlock := s.lock(studentID)
	defer unlock()

	if avatar, ok := s.cache.Get(ctx, studentID); ok {
		return avatar, nil
	}

	avatar, err := s.store.GetAvatarByStudentID(ctx, studentID)
	if errors.Is(err, storage.ErrAvatarNotFound) {
		// 区分学生不存在与学生没有头像
		if _, serr := s.store.GetStudent(ctx, studentID); serr != nil {
			return nil, persistenceError(serr)
		}
		return nil, err
	}
	if err != nil {
		return nil, persistenceError(err)
	}

	s.cache.Set(ctx, avatar)
	return avatar, nil
}

// ReadFile 读取学生头像的磁盘副本，返回内容与媒体类型。
func (s *AvatarService) ReadFile(ctx context.Context, studentID uint64) ([]byte, string, error) {
	avatar, err := s.GetByStudentID(ctx, studentID)
	if err != nil {
		return nil, "", err
	}

	data, err := s.files.ReadAvatarFile(avatar.FilePath)
	if err != nil {
		s.log.Error("failed to read avatar file",
			zap.Uint64("studentId", studentID),
			zap.String("path", avatar.FilePath),
			zap.Error(err),
		)
		return nil, "", ioError(err)
	}
	return data, avatar.MediaType, nil
}

// ListPage 分页查询头像元信息（按 ID 升序，不经过缓存）。
//
// page 从 0 开始；size 超过 MaxPageSize 时截断；超出末页返回空列表。
func (s *AvatarService) ListPage(ctx context.Context, page, size int) (*domain.AvatarPage, error) {
	if page < 0 || size < 1 {
		return nil, validationError(ErrInvalidPage)
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	items, total, err := s.store.ListAvatars(ctx, page, size)
	if err != nil {
		return nil, persistenceError(err)
	}
	if items == nil {
		items = []domain.AvatarMeta{}
	}

	return &domain.AvatarPage{
		Items: items,
		Total: total,
		Page:  page,
		Size:  size,
	}, nil
}

// PurgeStudent 在学生锁内执行删除，并清理其头像缓存与文件。
//
// remove 返回被级联删除的头像记录（没有则为 nil）。
func (s *AvatarService) PurgeStudent(ctx context.Context, studentID uint64, remove func(context.Context) (*domain.Avatar, error)) error {
	unlock := s.lock(studentID)
	defer unlock()

	removed, err := remove(ctx)
	if err != nil {
		return err
	}

	s.cache.Delete(ctx, studentID)
	if removed != nil && removed.FilePath != "" {
		s.removeFile(removed.FilePath)
	}
	return nil
}

// SweepOrphans 删除没有数据库记录引用的头像文件。
//
// 只处理存在时间超过 grace 的文件，避免误删正在上传中的文件。
// 文件名不符合 avatar_<studentId>_<token> 格式的文件不处理。
func (s *AvatarService) SweepOrphans(ctx context.Context, grace time.Duration) (SweepResult, error) {
	var result SweepResult

	files, err := s.files.ListFiles(s.namer.Dir())
	if err != nil {
		return result, ioError(err)
	}

	cutoff := time.Now().Add(-grace)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Files++
		result.Bytes += f.Size

		if f.ModTime.After(cutoff) {
			continue
		}
		studentID, ok := parseAvatarFilename(f.Path)
		if !ok {
			continue
		}

		if s.isOrphan(ctx, studentID, f.Path) {
			if err := s.files.DeleteAvatarFile(f.Path); err != nil {
				s.log.Warn("failed to remove orphan avatar file", zap.String("path", f.Path), zap.Error(err))
				continue
			}
			result.Removed++
			result.Files--
			result.Bytes -= f.Size
		}
	}

	if s.metrics != nil {
		s.metrics.RecordSweep(result.Files, result.Bytes, result.Removed)
	}
	if result.Removed > 0 {
		s.log.Info("orphan avatar files removed", zap.Int("removed", result.Removed))
	}
	return result, nil
}

// RunSweeper 定期执行孤儿文件清理，直到 ctx 结束
func (s *AvatarService) RunSweeper(ctx context.Context, interval, grace time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOrphans(ctx, grace); err != nil && ctx.Err() == nil {
				s.log.Warn("orphan avatar sweep failed", zap.Error(err))
			}
		}
	}
}

// isOrphan 在学生锁内确认文件是否仍被引用
func (s *AvatarService) isOrphan(ctx context.Context, studentID uint64, relPath string) bool {
	unlock := s.lock(studentID)
	defer unlock()

	avatar, err := s.store.GetAvatarByStudentID(ctx, studentID)
	if errors.Is(err, storage.ErrAvatarNotFound) {
		return true
	}
	if err != nil {
		return false
	}
	return avatar.FilePath != relPath
}

// removeFile 尽力删除文件，失败只记录日志
func (s *AvatarService) removeFile(relPath string) {
	if err := s.files.DeleteAvatarFile(relPath); err != nil {
		s.log.Warn("failed to remove avatar file", zap.String("path", relPath), zap.Error(err))
	}
}

// lock 获取学生对应的分段锁，返回解锁函数
func (s *AvatarService) lock(studentID uint64) func() {
	mu := &s.locks[studentID%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// recordUpload 记录上传指标
func (s *AvatarService) recordUpload(mode string, size int64, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordUpload(mode, uploadResult(err), size, time.Since(start))
}

// uploadResult 将上传错误归类为指标标签
func uploadResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation"
	case IsNotFound(err):
		return "not_found"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "error"
	}
}

// parseAvatarFilename 从 avatar_<studentId>_<token>.<ext> 中解析学生 ID
func parseAvatarFilename(relPath string) (uint64, bool) {
	name := strings.TrimPrefix(path.Base(relPath), "avatar_")
	if name == path.Base(relPath) {
		return 0, false
	}
	idPart, _, found := strings.Cut(name, "_")
	if !found {
		return 0, false
	}
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// String 便于日志输出
func (r SweepResult) String() string {
	return fmt.Sprintf("files=%d bytes=%d removed=%d", r.Files, r.Bytes, r.Removed)
}
