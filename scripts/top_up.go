// 手动触发重复规则补齐脚本
//
// 该功能已集成到 /api/cron/recurring/top-up 与进程内定时任务中。
// 此脚本仅用于手动触发，例如首次部署或批量导入规则之后。
//
// 用法: go run scripts/top_up.go [-reminders]

package main

import (
	"college_orbit_backend/internal/config"
	"college_orbit_backend/internal/repository"
	"college_orbit_backend/internal/service"
	"college_orbit_backend/pkg/database"
	"college_orbit_backend/pkg/logger"
	"college_orbit_backend/pkg/notification"
	"context"
	"flag"
	"log"
	"time"
)

func main() {
	reminders := flag.Bool("reminders", false, "同时发送截止提醒（只写日志，不真正推送）")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database, false)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	userRepo := repository.NewUserRepository(db)
	instanceRepo := repository.NewInstanceRepository(db)
	patterns := service.NewRecurringPatternService(
		db,
		repository.NewRecurringPatternRepository(db),
		instanceRepo,
		userRepo,
		repository.NewCourseRepository(db),
		&cfg.Recurrence,
	)

	log.Println("手动触发重复规则补齐...")
	res, err := patterns.TopUpActivePatterns(ctx, time.Now())
	if err != nil {
		log.Fatalf("补齐失败: %v", err)
	}
	log.Printf("完成: %d 条规则, 新增 %d 个实例, 失败 %d", res.Patterns, res.Created, res.Failed)

	if *reminders {
		svc := service.NewReminderService(instanceRepo, userRepo, repository.NewDeviceTokenRepository(db),
			notification.LogNotifier{}, notification.LogNotifier{}, &cfg.Scheduler)
		r, err := svc.SendDeadlineReminders(ctx, time.Now())
		if err != nil {
			log.Fatalf("提醒失败: %v", err)
		}
		log.Printf("提醒: %d 个截止项, %d 位用户", r.Deadlines, r.Users)
	}
}
