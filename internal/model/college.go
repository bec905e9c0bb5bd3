package model

// swagger:model College
type College struct {
	BaseModel
	Name   string `gorm:"size:150;uniqueIndex;not null" json:"name"`
	Domain string `gorm:"size:100" json:"domain,omitempty"`
}

func (College) TableName() string {
	return "colleges"
}

// swagger:model Course
type Course struct {
	UUIDBase
	UserID uint   `gorm:"index;not null" json:"userId"`
	Name   string `gorm:"size:150;not null" json:"name"`
	Code   string `gorm:"size:30" json:"code,omitempty"`
	Color  string `gorm:"size:20" json:"color,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}
