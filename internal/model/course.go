package model

import (
	"time"
)

type CourseStatus string

const (
	CourseDraft     CourseStatus = "DRAFT"
	CoursePublished CourseStatus = "PUBLISHED"
)

type CourseLevel string

const (
	LevelBeginner     CourseLevel = "beginner"
	LevelIntermediate CourseLevel = "intermediate"
	LevelAdvanced     CourseLevel = "advanced"
)

// Course 课程，LessonsCount 与 TotalDurationHours 为派生字段，
// 每次课时变更后整体重算，不做增量维护
// swagger:model Course
type Course struct {
	BaseModel
	Title              string       `gorm:"size:255;not null" json:"title"`
	Slug               string       `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Description        string       `gorm:"type:text" json:"description"`
	Level              CourseLevel  `gorm:"size:20;default:'beginner'" json:"level"`
	Status             CourseStatus `gorm:"size:20;default:'DRAFT';index" json:"status"`
	PublishedAt        *time.Time   `json:"published_at"`
	CoverURL           string       `gorm:"size:255" json:"cover_url"`
	CreatedBy          uint         `gorm:"index;type:bigint unsigned" json:"created_by"`
	LessonsCount       int          `gorm:"default:0" json:"lessons_count"`
	TotalDurationHours float64      `gorm:"default:0" json:"total_duration_hours"`
	Lessons            []Lesson     `gorm:"foreignKey:CourseID" json:"lessons,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}
