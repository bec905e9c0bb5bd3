package database

import (
	"college_orbit_backend/internal/config"
	"college_orbit_backend/internal/model"
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector 根据 database.driver 选择 gorm 驱动
func Dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=UTC",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)
		return postgres.Open(dsn), nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "college_orbit.db"
		}
		return sqlite.Open(path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// InitDB 打开数据库；migrate 为 false 时跳过自动迁移（release 模式默认行为）
func InitDB(cfg *config.DatabaseConfig, migrate bool) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Database connection established (%s)", cfg.Driver)

	if !migrate {
		return db, nil
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	if err := seedColleges(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate 迁移全部表结构，测试中同样调用
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.College{},
		&model.User{},
		&model.Course{},
		&model.RecurringPattern{},
		&model.Task{},
		&model.Deadline{},
		&model.Exam{},
		&model.CalendarEvent{},
		&model.WorkItem{},
		&model.GamificationCredit{},
		&model.DailyActivity{},
		&model.UserStreak{},
		&model.MonthlyXpTotal{},
		&model.DailyChallengeReward{},
		&model.DeviceToken{},
	)
}

// 默认学院列表（表为空时插入）
func seedColleges(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.College{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []model.College{
		{Name: "Stanford University", Domain: "stanford.edu"},
		{Name: "Massachusetts Institute of Technology", Domain: "mit.edu"},
		{Name: "University of California, Berkeley", Domain: "berkeley.edu"},
		{Name: "University of Michigan", Domain: "umich.edu"},
		{Name: "Georgia Institute of Technology", Domain: "gatech.edu"},
	}
	return db.Create(&defaults).Error
}
