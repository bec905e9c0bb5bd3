package model

import (
	"time"

	"gorm.io/datatypes"
)

type InstanceStatus string

const (
	StatusOpen InstanceStatus = "open"
	StatusDone InstanceStatus = "done"
)

// InstanceFields 由重复规则生成的条目共享的字段
type InstanceFields struct {
	UserID             uint           `gorm:"index;not null" json:"userId"`
	RecurringPatternID *string        `gorm:"size:36;index" json:"recurringPatternId,omitempty"`
	InstanceDate       *time.Time     `gorm:"index" json:"instanceDate,omitempty"` // 本地日期, 存为 UTC 零点
	Title              string         `gorm:"size:200;not null" json:"title"`
	Description        string         `gorm:"type:text" json:"description,omitempty"`
	CourseID           *string        `gorm:"size:36;index" json:"courseId,omitempty"`
	Status             InstanceStatus `gorm:"size:10;index;not null" json:"status"`
	CompletedAt        *time.Time     `json:"completedAt,omitempty"`
}

// IsOpen reports whether the instance can still be replaced by regeneration.
func (f InstanceFields) IsOpen() bool {
	return f.Status != StatusDone
}

// swagger:model Task
type Task struct {
	UUIDBase
	InstanceFields
	DueAt     *time.Time                 `gorm:"index" json:"dueAt,omitempty"`
	Priority  string                     `gorm:"size:10" json:"priority,omitempty"`
	Checklist datatypes.JSONSlice[string] `json:"checklist,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}

// swagger:model Deadline
type Deadline struct {
	UUIDBase
	InstanceFields
	DueAt          time.Time  `gorm:"index;not null" json:"dueAt"`
	Priority       string     `gorm:"size:10" json:"priority,omitempty"`
	ReminderSentAt *time.Time `json:"reminderSentAt,omitempty"`
}

func (Deadline) TableName() string {
	return "deadlines"
}

// swagger:model Exam
type Exam struct {
	UUIDBase
	InstanceFields
	StartAt         time.Time `gorm:"index;not null" json:"startAt"`
	DurationMinutes int       `json:"durationMinutes"`
	Location        string    `gorm:"size:200" json:"location,omitempty"`
}

func (Exam) TableName() string {
	return "exams"
}

// swagger:model CalendarEvent
type CalendarEvent struct {
	UUIDBase
	InstanceFields
	StartAt  time.Time `gorm:"index;not null" json:"startAt"`
	EndAt    time.Time `gorm:"not null" json:"endAt"`
	Location string    `gorm:"size:200" json:"location,omitempty"`
}

func (CalendarEvent) TableName() string {
	return "calendar_events"
}

// WorkItem 手动创建的作业条目，不参与重复生成
// swagger:model WorkItem
type WorkItem struct {
	UUIDBase
	InstanceFields
	DueAt *time.Time `gorm:"index" json:"dueAt,omitempty"`
}

func (WorkItem) TableName() string {
	return "work_items"
}
