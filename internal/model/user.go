package model

import (
	"time"
)

// swagger:model User
type User struct {
	BaseModel
	Name           string     `gorm:"size:100;not null" json:"name"`
	Email          string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password       string     `gorm:"size:100;not null" json:"-"`
	XP             int        `gorm:"not null;default:0" json:"xp"` // 累计经验值
	CollegeID      *uint      `gorm:"index" json:"collegeId,omitempty"`
	TimezoneOffset int        `gorm:"not null;default:0" json:"timezoneOffset"` // 分钟, UTC - 本地
	Disabled       bool       `json:"disabled"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
}

func (User) TableName() string {
	return "users"
}
