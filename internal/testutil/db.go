// Package testutil 测试用的内存数据库与数据构造
package testutil

import (
	"college_orbit_backend/internal/model"
	"college_orbit_backend/pkg/database"
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// DB 每次调用返回一个独立的内存 SQLite 库，已完成迁移
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:orbit_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	// 单连接保证内存库在整个测试期间存活
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

// College 插入一个学院
func College(tb testing.TB, db *gorm.DB, name string) *model.College {
	tb.Helper()
	c := &model.College{Name: name, Domain: name + ".edu"}
	if err := db.Create(c).Error; err != nil {
		tb.Fatalf("create college: %v", err)
	}
	return c
}

// User 插入一个用户；collegeID 可为 nil
func User(tb testing.TB, db *gorm.DB, email string, collegeID *uint) *model.User {
	tb.Helper()
	u := &model.User{
		Name:      email,
		Email:     email,
		Password:  "x",
		CollegeID: collegeID,
	}
	if err := db.Create(u).Error; err != nil {
		tb.Fatalf("create user: %v", err)
	}
	return u
}

// Task 插入一个手动任务（不属于任何规则）
func Task(tb testing.TB, db *gorm.DB, userID uint, title string) *model.Task {
	tb.Helper()
	t := &model.Task{InstanceFields: model.InstanceFields{
		UserID: userID,
		Title:  title,
		Status: model.StatusOpen,
	}}
	if err := db.Create(t).Error; err != nil {
		tb.Fatalf("create task: %v", err)
	}
	return t
}

// Item 插入任意可完成类型的未完成条目，返回 id
func Item(tb testing.TB, db *gorm.DB, userID uint, itemType model.ItemType, title string) string {
	tb.Helper()
	return item(tb, db, userID, itemType, title, model.StatusOpen)
}

// DoneItem 插入已标记完成的条目
func DoneItem(tb testing.TB, db *gorm.DB, userID uint, itemType model.ItemType, title string) string {
	tb.Helper()
	return item(tb, db, userID, itemType, title, model.StatusDone)
}

func item(tb testing.TB, db *gorm.DB, userID uint, itemType model.ItemType, title string, status model.InstanceStatus) string {
	tb.Helper()
	fields := model.InstanceFields{UserID: userID, Title: title, Status: status}
	var row interface{}
	var id *string
	switch itemType {
	case model.ItemTask:
		r := &model.Task{InstanceFields: fields}
		row, id = r, &r.ID
	case model.ItemDeadline:
		r := &model.Deadline{InstanceFields: fields}
		row, id = r, &r.ID
	case model.ItemExam:
		r := &model.Exam{InstanceFields: fields, DurationMinutes: 60}
		row, id = r, &r.ID
	case model.ItemWorkItem:
		r := &model.WorkItem{InstanceFields: fields}
		row, id = r, &r.ID
	default:
		tb.Fatalf("unsupported item type %q", itemType)
	}
	if err := db.Create(row).Error; err != nil {
		tb.Fatalf("create %s: %v", itemType, err)
	}
	return *id
}
