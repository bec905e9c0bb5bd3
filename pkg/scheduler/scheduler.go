package scheduler

import (
	"college_orbit_backend/pkg/logger"
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job 定时任务，返回错误只记录日志
type Job func(ctx context.Context) error

// Scheduler 对 robfig/cron 的薄封装，cron 表达式使用带秒的六段格式
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

func New(loc *time.Location, timeout time.Duration) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		timeout: timeout,
	}
}

// Register 注册任务；表达式为空时跳过
func (s *Scheduler) Register(name, spec string, job Job) (cron.EntryID, error) {
	if spec == "" {
		return 0, nil
	}
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			logger.Log.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		logger.Log.Info("Scheduled job finished", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
	})
	if err != nil {
		return 0, fmt.Errorf("register %s: %w", name, err)
	}
	return id, nil
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
