package model

import (
	"time"

	"gorm.io/datatypes"
)

type ItemType string

const (
	ItemTask          ItemType = "task"
	ItemDeadline      ItemType = "deadline"
	ItemExam          ItemType = "exam"
	ItemCalendarEvent ItemType = "calendar_event"
	ItemWorkItem      ItemType = "work_item"
)

// Generatable reports whether a recurring pattern may produce this item type.
func (t ItemType) Generatable() bool {
	switch t {
	case ItemTask, ItemDeadline, ItemExam, ItemCalendarEvent:
		return true
	}
	return false
}

// Completable reports whether completing this item type earns XP.
func (t ItemType) Completable() bool {
	switch t {
	case ItemTask, ItemDeadline, ItemExam, ItemWorkItem:
		return true
	}
	return false
}

type RecurrenceType string

const (
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
	RecurrenceCustom  RecurrenceType = "custom"
)

// PatternTemplate 生成实例时复制到每一行的字段
// swagger:model PatternTemplate
type PatternTemplate struct {
	Title           string   `json:"title" validate:"required,max=200"`
	Description     string   `json:"description,omitempty" validate:"max=2000"`
	CourseID        *string  `json:"courseId,omitempty" validate:"omitempty,uuid"`
	DueTime         string   `json:"dueTime,omitempty" validate:"omitempty,datetime=15:04"`
	Checklist       []string `json:"checklist,omitempty" validate:"max=50,dive,max=200"`
	Location        string   `json:"location,omitempty" validate:"max=200"`
	DurationMinutes int      `json:"durationMinutes,omitempty" validate:"omitempty,min=5,max=1440"`
	Priority        string   `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
}

// swagger:model RecurringPattern
type RecurringPattern struct {
	UUIDBase
	UserID          uint                                `gorm:"index;not null" json:"userId"`
	ItemType        ItemType                            `gorm:"size:20;index;not null" json:"itemType"`
	RecurrenceType  RecurrenceType                      `gorm:"size:20;not null" json:"recurrenceType"`
	IntervalDays    int                                 `gorm:"not null" json:"intervalDays"`
	DaysOfWeek      datatypes.JSONSlice[int]            `json:"daysOfWeek"`
	DaysOfMonth     datatypes.JSONSlice[int]            `json:"daysOfMonth"`
	StartDate       time.Time                           `gorm:"not null" json:"startDate"`
	EndDate         *time.Time                          `json:"endDate,omitempty"`
	OccurrenceCount *int                                `json:"occurrenceCount,omitempty"`
	TimezoneOffset  int                                 `gorm:"not null" json:"timezoneOffset"`
	Template        datatypes.JSONType[PatternTemplate] `json:"template"`
	IsActive        bool                                `gorm:"index" json:"isActive"`
	LastGenerated   *time.Time                          `json:"lastGenerated,omitempty"`
	InstanceCount   int                                 `json:"instanceCount"`
}

func (RecurringPattern) TableName() string {
	return "recurring_patterns"
}
