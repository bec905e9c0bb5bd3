package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Storage      StorageConfig
	Tracing      TracingConfig `mapstructure:"tracing"`
	Redis        RedisConfig
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Log          LogConfig          `mapstructure:"log"`
	Recurrence   RecurrenceConfig   `mapstructure:"recurrence"`
	Gamification GamificationConfig `mapstructure:"gamification"`
	Cron         CronConfig         `mapstructure:"cron"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Notification NotificationConfig `mapstructure:"notification"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string // mysql | postgres | sqlite
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	SSLMode   string `mapstructure:"ssl_mode"`
	Path      string // sqlite file or DSN
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// RecurrenceConfig 控制重复规则的实例生成窗口
type RecurrenceConfig struct {
	HorizonMonths       int  `mapstructure:"horizon_months"`
	StrictRegeneration  bool `mapstructure:"strict_regeneration"`
	MaxInstancesPerCall int  `mapstructure:"max_instances_per_call"`
}

type GamificationConfig struct {
	TaskXP             int `mapstructure:"task_xp"`
	DeadlineXP         int `mapstructure:"deadline_xp"`
	WorkItemXP         int `mapstructure:"work_item_xp"`
	ExamXP             int `mapstructure:"exam_xp"`
	XPPerLevel         int `mapstructure:"xp_per_level"`
	ChallengesPerDay   int `mapstructure:"challenges_per_day"`
	SweepBonusXP       int `mapstructure:"sweep_bonus_xp"`
	LeaderboardTTLSecs int `mapstructure:"leaderboard_ttl_seconds"`
}

type CronConfig struct {
	Secret string `mapstructure:"secret"`
}

type SchedulerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	TopUpSpec        string `mapstructure:"top_up_spec"`
	ReminderSpec     string `mapstructure:"reminder_spec"`
	ReminderLookhead int    `mapstructure:"reminder_lookahead_hours"`
}

type NotificationConfig struct {
	FCMCredentialsFile string `mapstructure:"fcm_credentials_file"`
	SendGridAPIKey     string `mapstructure:"sendgrid_api_key"`
	FromEmail          string `mapstructure:"from_email"`
	FromName           string `mapstructure:"from_name"`
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.driver", "mysql")
	viper.SetDefault("database.charset", "utf8mb4")
	viper.SetDefault("database.parsetime", true)
	viper.SetDefault("jwt.expire_hours", 72)
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "uploads")
	viper.SetDefault("rate_limit.max_requests", 600)
	viper.SetDefault("rate_limit.window_minutes", 1)
	viper.SetDefault("log.file", "logs/app.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 5)
	viper.SetDefault("log.max_age_days", 30)

	viper.SetDefault("recurrence.horizon_months", 6)
	viper.SetDefault("recurrence.strict_regeneration", false)
	viper.SetDefault("recurrence.max_instances_per_call", 366)

	viper.SetDefault("gamification.task_xp", 10)
	viper.SetDefault("gamification.deadline_xp", 20)
	viper.SetDefault("gamification.work_item_xp", 15)
	viper.SetDefault("gamification.exam_xp", 30)
	viper.SetDefault("gamification.xp_per_level", 200)
	viper.SetDefault("gamification.challenges_per_day", 3)
	viper.SetDefault("gamification.sweep_bonus_xp", 50)
	viper.SetDefault("gamification.leaderboard_ttl_seconds", 300)

	viper.SetDefault("scheduler.top_up_spec", "0 15 3 * * *")
	viper.SetDefault("scheduler.reminder_spec", "0 0 * * * *")
	viper.SetDefault("scheduler.reminder_lookahead_hours", 24)
	viper.SetDefault("notification.from_name", "College Orbit")
}

func LoadConfig(path string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("ORBIT")
	viper.AutomaticEnv()
	setDefaults()

	// Database
	viper.BindEnv("database.driver", "DATABASE_DRIVER")
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")
	viper.BindEnv("database.path", "DATABASE_PATH")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.enabled", "REDIS_ENABLED")
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")
	viper.BindEnv("server.port", "PORT")

	// Storage
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	viper.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	viper.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	viper.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Cron / notifications
	viper.BindEnv("cron.secret", "CRON_SECRET")
	viper.BindEnv("notification.fcm_credentials_file", "FCM_CREDENTIALS_FILE")
	viper.BindEnv("notification.sendgrid_api_key", "SENDGRID_API_KEY")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}
	if cfg.Server.Mode == "release" && cfg.Cron.Secret == "" {
		return nil, fmt.Errorf("cron secret must be set in release mode")
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// LeaderboardTTL 排行榜缓存时长
func (g GamificationConfig) LeaderboardTTL() time.Duration {
	if g.LeaderboardTTLSecs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(g.LeaderboardTTLSecs) * time.Second
}

// Default returns the built-in defaults without reading a file; used by tests and tooling.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080", Mode: "test"},
		Database: DatabaseConfig{Driver: "sqlite", Path: "file::memory:?cache=shared"},
		JWT:      JWTConfig{Secret: "test-secret-test-secret-test-secret", ExpireTime: 72 * time.Hour},
		Storage:  StorageConfig{Type: "local", LocalPath: os.TempDir()},
		RateLimit: RateLimitConfig{
			MaxRequests:   600,
			WindowMinutes: 1,
		},
		Recurrence: RecurrenceConfig{
			HorizonMonths:       6,
			MaxInstancesPerCall: 366,
		},
		Gamification: GamificationConfig{
			TaskXP:             10,
			DeadlineXP:         20,
			WorkItemXP:         15,
			ExamXP:             30,
			XPPerLevel:         200,
			ChallengesPerDay:   3,
			SweepBonusXP:       50,
			LeaderboardTTLSecs: 300,
		},
		Scheduler: SchedulerConfig{ReminderLookhead: 24},
	}
}
