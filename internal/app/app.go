package app

import (
	"college_orbit_backend/internal/config"
	"college_orbit_backend/internal/controller"
	"college_orbit_backend/internal/repository"
	"college_orbit_backend/internal/service"
	"college_orbit_backend/pkg/configwatcher"
	"college_orbit_backend/pkg/database"
	"college_orbit_backend/pkg/logger"
	"college_orbit_backend/pkg/monitoring"
	"college_orbit_backend/pkg/notification"
	"college_orbit_backend/pkg/scheduler"
	"college_orbit_backend/pkg/security"
	"college_orbit_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	configCallbacks []func(*config.Config)
	origins         *security.Origins
	limiter         *security.RateLimiter
	scheduler       *scheduler.Scheduler
	tracer          *sdktrace.TracerProvider
	cancelWatch     context.CancelFunc
}

type repositories struct {
	user         *repository.UserRepository
	college      *repository.CollegeRepository
	course       *repository.CourseRepository
	pattern      *repository.RecurringPatternRepository
	instance     *repository.InstanceRepository
	gamification *repository.GamificationRepository
	device       *repository.DeviceTokenRepository
}

type services struct {
	auth         *service.AuthService
	storage      *service.StorageService
	pattern      *service.RecurringPatternService
	gamification *service.GamificationService
	challenge    *service.DailyChallengeService
	leaderboard  *service.LeaderboardService
	planner      *service.PlannerService
	calendar     *service.CalendarExportService
	reminder     *service.ReminderService
}

type controllers struct {
	auth         *controller.AuthController
	pattern      *controller.RecurringPatternController
	gamification *controller.GamificationController
	planner      *controller.PlannerController
	notification *controller.NotificationController
	cron         *controller.CronController
	health       *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:         repository.NewUserRepository(db),
		college:      repository.NewCollegeRepository(db),
		course:       repository.NewCourseRepository(db),
		pattern:      repository.NewRecurringPatternRepository(db),
		instance:     repository.NewInstanceRepository(db),
		gamification: repository.NewGamificationRepository(db),
		device:       repository.NewDeviceTokenRepository(db),
	}
}

// notifiers 未配置凭证的渠道退回只写日志
func (a *App) notifiers(cfg *config.Config) (notification.PushProvider, notification.EmailProvider) {
	var push notification.PushProvider = notification.LogNotifier{}
	var email notification.EmailProvider = notification.LogNotifier{}

	if cfg.Notification.FCMCredentialsFile != "" || os.Getenv("FCM_SERVICE_ACCOUNT_JSON") != "" {
		fcm, err := notification.NewFCMService(context.Background(), cfg.Notification.FCMCredentialsFile)
		if err != nil {
			logger.Log.Warn("FCM unavailable, push notifications will be logged only", zap.Error(err))
		} else {
			push = fcm
		}
	}
	if cfg.Notification.SendGridAPIKey != "" {
		email = notification.NewSendGridService(cfg.Notification.SendGridAPIKey, cfg.Notification.FromName, cfg.Notification.FromEmail)
	}
	return push, email
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(&cfg.Storage)
	s.auth = service.NewAuthService(repos.user, repos.college, cfg)
	s.pattern = service.NewRecurringPatternService(db, repos.pattern, repos.instance, repos.user, repos.course, &cfg.Recurrence)

	s.gamification = service.NewGamificationService(db, repos.user, repos.instance, repos.gamification, &cfg.Gamification)
	s.challenge = service.NewDailyChallengeService(db, repos.gamification, s.gamification, &cfg.Gamification)
	s.gamification.ChallengeSvc = s.challenge

	s.leaderboard = service.NewLeaderboardService(repos.gamification, repos.college, repos.user, service.NewCache(rdb), &cfg.Gamification)
	s.planner = service.NewPlannerService(repos.course, repos.college, repos.instance)
	s.calendar = service.NewCalendarExportService(repos.instance, s.storage)

	push, email := a.notifiers(cfg)
	s.reminder = service.NewReminderService(repos.instance, repos.user, repos.device, push, email, &cfg.Scheduler)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:         controller.NewAuthController(s.auth),
		pattern:      controller.NewRecurringPatternController(s.pattern),
		gamification: controller.NewGamificationController(s.gamification, s.challenge, s.leaderboard),
		planner:      controller.NewPlannerController(s.planner, s.gamification, s.calendar),
		notification: controller.NewNotificationController(s.reminder),
		cron:         controller.NewCronController(s.pattern, s.reminder),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	a.origins = security.NewOrigins(cfg.CORS.AllowedOrigins)
	a.limiter = security.NewRateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)

	router.Use(security.CORS(a.origins))
	router.Use(security.Secure())
	router.Use(a.limiter.Handler())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())

	a.RegisterConfigCallback(func(newCfg *config.Config) {
		a.origins.Set(newCfg.CORS.AllowedOrigins)
		a.limiter.Update(newCfg.RateLimit.MaxRequests, time.Duration(newCfg.RateLimit.WindowMinutes)*time.Minute)
		logger.Log.Info("CORS and rate limit settings reloaded",
			zap.Int("origins", len(newCfg.CORS.AllowedOrigins)),
			zap.Int("maxRequests", newCfg.RateLimit.MaxRequests))
	})
}

// startBackgroundTasks 进程内定时任务，与 /api/cron 接口执行相同的批处理
func (a *App) startBackgroundTasks(s *services) {
	cfg := a.Config.Scheduler
	if !cfg.Enabled {
		return
	}

	a.scheduler = scheduler.New(time.UTC, 10*time.Minute)
	if _, err := a.scheduler.Register("recurring-top-up", cfg.TopUpSpec, func(ctx context.Context) error {
		_, err := s.pattern.TopUpActivePatterns(ctx, time.Now())
		return err
	}); err != nil {
		logger.Log.Error("Failed to schedule recurring top-up", zap.Error(err))
	}
	if _, err := a.scheduler.Register("deadline-reminders", cfg.ReminderSpec, func(ctx context.Context) error {
		_, err := s.reminder.SendDeadlineReminders(ctx, time.Now())
		return err
	}); err != nil {
		logger.Log.Error("Failed to schedule deadline reminders", zap.Error(err))
	}

	a.scheduler.Start()
	logger.Log.Info("Scheduler started", zap.Int("jobs", a.scheduler.Entries()))
}

// startConfigWatcher 配置文件变更时依次执行已注册的回调
func (a *App) startConfigWatcher(configDir string) {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancelWatch = cancel

	go func() {
		err := configwatcher.WatchConfig(ctx, filepath.Join(configDir, "config.yaml"), func(newCfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
		if err != nil {
			logger.Log.Warn("Config watcher stopped", zap.Error(err))
		}
	}()
}

// New 组装路由和依赖，不启动任何后台任务；测试直接使用
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, db, rdb)
	controllers := app.initControllers(app.services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.Mode == gin.DebugMode {
		router.Use(gin.Logger())
	}
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.Server.Mode != gin.ReleaseMode || cfg.ForceMigrate
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 排行榜缓存退回进程内存
		logger.Log.Warn("Redis unavailable, using in-memory cache", zap.Error(err))
		rdb = nil
	}

	app := New(cfg, db, rdb)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("college-orbit", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.startBackgroundTasks(app.services)
	app.startConfigWatcher(configDir)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	if a.cancelWatch != nil {
		a.cancelWatch()
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
