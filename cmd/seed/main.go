package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"school/backend/internal/cache"
	"school/backend/internal/config"
	"school/backend/internal/logger"
	"school/backend/internal/pool"
	"school/backend/internal/service"
	"school/backend/internal/storage/filesystem"
	sqlstore "school/backend/internal/storage/sql"
)

// seedFaculty 演示数据
type seedFaculty struct {
	Name     string
	Color    string
	Students []service.StudentInput
}

var defaultSeed = []seedFaculty{
	{Name: "Gryffindor", Color: "red", Students: []service.StudentInput{
		{Name: "Harry Potter", Age: 11},
		{Name: "Hermione Granger", Age: 12},
		{Name: "Ron Weasley", Age: 11},
	}},
	{Name: "Slytherin", Color: "green", Students: []service.StudentInput{
		{Name: "Draco Malfoy", Age: 11},
	}},
	{Name: "Ravenclaw", Color: "blue", Students: []service.StudentInput{
		{Name: "Luna Lovegood", Age: 11},
	}},
	{Name: "Hufflepuff", Color: "yellow", Students: []service.StudentInput{
		{Name: "Cedric Diggory", Age: 15},
	}},
}

func main() {
	avatarPath := flag.String("avatar", "", "可选：为第一个学生上传的头像文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		fmt.Println("Usage: SCHOOL_DATABASE_TYPE=<mysql|postgres|pgx> SCHOOL_DATABASE_DSN=<dsn> seed [-avatar=path]")
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// 创建存储
	store, err := sqlstore.NewStore(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()

	files, err := filesystem.NewStore(cfg.Avatar.StorageRoot)
	if err != nil {
		log.Fatal("failed to open avatar storage", zap.Error(err))
	}

	ctx := context.Background()
	workers := pool.NewWorkerPool(1, 1, log)
	workers.Start(ctx)
	defer workers.Stop()

	avatars, err := service.NewAvatarService(store, files, cache.NewLocalCache(cfg.Cache.Size, cfg.Cache.TTL), workers,
		service.AvatarServiceConfig{Dir: cfg.Avatar.Dir, MaxSize: cfg.Avatar.MaxSize}, log)
	if err != nil {
		log.Fatal("failed to create avatar service", zap.Error(err))
	}
	faculties := service.NewFacultyService(store, store)
	students := service.NewStudentService(store, store, avatars, log)

	var firstStudentID uint64
	for _, sf := range defaultSeed {
		faculty, err := faculties.Create(ctx, service.FacultyInput{Name: sf.Name, Color: sf.Color})
		if err != nil {
			log.Fatal("failed to create faculty", zap.String("name", sf.Name), zap.Error(err))
		}
		fmt.Printf("✓ Faculty %-12s id=%d\n", faculty.Name, faculty.ID)

		for _, input := range sf.Students {
			input.FacultyID = &faculty.ID
			student, err := students.Create(ctx, input)
			if err != nil {
				log.Fatal("failed to create student", zap.String("name", input.Name), zap.Error(err))
			}
			if firstStudentID == 0 {
				firstStudentID = student.ID
			}
			fmt.Printf("  ✓ Student %-18s id=%d age=%d\n", student.Name, student.ID, student.Age)
		}
	}

	if *avatarPath == "" {
		return
	}

	data, err := os.ReadFile(*avatarPath)
	if err != nil {
		log.Fatal("failed to read avatar file", zap.String("path", *avatarPath), zap.Error(err))
	}
	avatar, err := avatars.Upload(ctx, service.UploadAvatarInput{
		StudentID:   firstStudentID,
		Filename:    filepath.Base(*avatarPath),
		ContentType: http.DetectContentType(data),
		Size:        int64(len(data)),
		Data:        data,
	})
	if err != nil {
		log.Fatal("failed to upload avatar", zap.Uint64("studentId", firstStudentID), zap.Error(err))
	}
	fmt.Printf("✓ Avatar uploaded for student %d: %s (%d bytes)\n", firstStudentID, avatar.FilePath, avatar.FileSize)
}
