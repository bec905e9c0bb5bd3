package repository

import (
	"college_orbit_backend/internal/model"
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// InstanceRef 实例的最小投影，用于去重和重新生成
type InstanceRef struct {
	ID           string
	InstanceDate *time.Time
	Status       model.InstanceStatus
}

// InstanceRepository 覆盖 tasks / deadlines / exams / calendar_events / work_items 五张表
type InstanceRepository struct {
	DB *gorm.DB
}

func NewInstanceRepository(db *gorm.DB) *InstanceRepository {
	return &InstanceRepository{DB: db}
}

func (r *InstanceRepository) WithTx(tx *gorm.DB) *InstanceRepository {
	return &InstanceRepository{DB: tx}
}

// NewInstance 返回 itemType 对应的空模型指针
func NewInstance(itemType model.ItemType) (interface{}, error) {
	switch itemType {
	case model.ItemTask:
		return &model.Task{}, nil
	case model.ItemDeadline:
		return &model.Deadline{}, nil
	case model.ItemExam:
		return &model.Exam{}, nil
	case model.ItemCalendarEvent:
		return &model.CalendarEvent{}, nil
	case model.ItemWorkItem:
		return &model.WorkItem{}, nil
	}
	return nil, fmt.Errorf("unknown item type %q", itemType)
}

func fieldsOf(m interface{}) *model.InstanceFields {
	switch v := m.(type) {
	case *model.Task:
		return &v.InstanceFields
	case *model.Deadline:
		return &v.InstanceFields
	case *model.Exam:
		return &v.InstanceFields
	case *model.CalendarEvent:
		return &v.InstanceFields
	case *model.WorkItem:
		return &v.InstanceFields
	}
	return nil
}

// Create 插入单行或切片
func (r *InstanceRepository) Create(ctx context.Context, rows interface{}) error {
	return r.DB.WithContext(ctx).CreateInBatches(rows, 100).Error
}

// FindOwned 查找属于 userID 的条目，返回公共字段
func (r *InstanceRepository) FindOwned(ctx context.Context, userID uint, itemType model.ItemType, id string) (*model.InstanceFields, error) {
	m, err := NewInstance(itemType)
	if err != nil {
		return nil, err
	}
	if err := r.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(m).Error; err != nil {
		return nil, err
	}
	return fieldsOf(m), nil
}

// MarkDone 将 open 条目置为 done；已完成时返回 false
func (r *InstanceRepository) MarkDone(ctx context.Context, itemType model.ItemType, id string, at time.Time) (bool, error) {
	m, err := NewInstance(itemType)
	if err != nil {
		return false, err
	}
	res := r.DB.WithContext(ctx).Model(m).
		Where("id = ? AND status <> ?", id, model.StatusDone).
		Updates(map[string]interface{}{
			"status":       model.StatusDone,
			"completed_at": at.UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

func (r *InstanceRepository) FindByPattern(ctx context.Context, itemType model.ItemType, patternID string) ([]InstanceRef, error) {
	m, err := NewInstance(itemType)
	if err != nil {
		return nil, err
	}
	var refs []InstanceRef
	err = r.DB.WithContext(ctx).Model(m).
		Select("id", "instance_date", "status").
		Where("recurring_pattern_id = ?", patternID).
		Order("instance_date ASC").
		Find(&refs).Error
	return refs, err
}

// ExistingDates 规则已占用的日期 (YYYY-MM-DD)
func (r *InstanceRepository) ExistingDates(ctx context.Context, itemType model.ItemType, patternID string) (map[string]bool, error) {
	refs, err := r.FindByPattern(ctx, itemType, patternID)
	if err != nil {
		return nil, err
	}
	dates := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if ref.InstanceDate != nil {
			dates[ref.InstanceDate.UTC().Format("2006-01-02")] = true
		}
	}
	return dates, nil
}

func (r *InstanceRepository) CountByPattern(ctx context.Context, itemType model.ItemType, patternID string) (int64, error) {
	m, err := NewInstance(itemType)
	if err != nil {
		return 0, err
	}
	var n int64
	err = r.DB.WithContext(ctx).Model(m).Where("recurring_pattern_id = ?", patternID).Count(&n).Error
	return n, err
}

// DeleteOpenFrom 删除 from 当天及之后仍未完成的实例
func (r *InstanceRepository) DeleteOpenFrom(ctx context.Context, itemType model.ItemType, patternID string, from time.Time) (int64, error) {
	m, err := NewInstance(itemType)
	if err != nil {
		return 0, err
	}
	res := r.DB.WithContext(ctx).Unscoped().
		Where("recurring_pattern_id = ? AND status <> ? AND instance_date >= ?", patternID, model.StatusDone, from.UTC()).
		Delete(m)
	return res.RowsAffected, res.Error
}

func (r *InstanceRepository) DeleteByPattern(ctx context.Context, itemType model.ItemType, patternID string) (int64, error) {
	m, err := NewInstance(itemType)
	if err != nil {
		return 0, err
	}
	res := r.DB.WithContext(ctx).Unscoped().Where("recurring_pattern_id = ?", patternID).Delete(m)
	return res.RowsAffected, res.Error
}

// DetachByPattern 清空实例对规则的引用，实例保留
func (r *InstanceRepository) DetachByPattern(ctx context.Context, itemType model.ItemType, patternID string) (int64, error) {
	m, err := NewInstance(itemType)
	if err != nil {
		return 0, err
	}
	res := r.DB.WithContext(ctx).Model(m).
		Where("recurring_pattern_id = ?", patternID).
		Update("recurring_pattern_id", nil)
	return res.RowsAffected, res.Error
}

// FindDeadlinesForReminder 截止时间在 [from, to) 内且未提醒的 open deadline
func (r *InstanceRepository) FindDeadlinesForReminder(ctx context.Context, from, to time.Time) ([]model.Deadline, error) {
	var deadlines []model.Deadline
	err := r.DB.WithContext(ctx).
		Where("status <> ? AND reminder_sent_at IS NULL AND due_at >= ? AND due_at < ?", model.StatusDone, from.UTC(), to.UTC()).
		Order("user_id ASC, due_at ASC").
		Find(&deadlines).Error
	return deadlines, err
}

func (r *InstanceRepository) MarkReminderSent(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Model(&model.Deadline{}).
		Where("id IN ?", ids).
		Update("reminder_sent_at", at.UTC()).Error
}

// Upcoming 日历导出用的实例集合
type Upcoming struct {
	Tasks          []model.Task
	Deadlines      []model.Deadline
	Exams          []model.Exam
	CalendarEvents []model.CalendarEvent
}

func (r *InstanceRepository) FindUpcoming(ctx context.Context, userID uint, from, to time.Time) (*Upcoming, error) {
	db := r.DB.WithContext(ctx)
	from, to = from.UTC(), to.UTC()
	var out Upcoming
	if err := db.Where("user_id = ? AND due_at >= ? AND due_at < ?", userID, from, to).Order("due_at").Find(&out.Tasks).Error; err != nil {
		return nil, err
	}
	if err := db.Where("user_id = ? AND due_at >= ? AND due_at < ?", userID, from, to).Order("due_at").Find(&out.Deadlines).Error; err != nil {
		return nil, err
	}
	if err := db.Where("user_id = ? AND start_at >= ? AND start_at < ?", userID, from, to).Order("start_at").Find(&out.Exams).Error; err != nil {
		return nil, err
	}
	if err := db.Where("user_id = ? AND start_at >= ? AND start_at < ?", userID, from, to).Order("start_at").Find(&out.CalendarEvents).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *InstanceRepository) FindWorkItems(ctx context.Context, userID uint) ([]model.WorkItem, error) {
	var items []model.WorkItem
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&items).Error
	return items, err
}
