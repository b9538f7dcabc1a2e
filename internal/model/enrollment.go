package model

import (
	"time"
)

type EnrollmentState string

const (
	EnrollmentActive    EnrollmentState = "ACTIVE"
	EnrollmentExpired   EnrollmentState = "EXPIRED"
	EnrollmentCompleted EnrollmentState = "COMPLETED"
	EnrollmentCancelled EnrollmentState = "CANCELLED"
)

// Enrollment 报名记录。状态不落库：ACTIVE/EXPIRED 由 ExpiresAt 与当前时间
// 在读取时推导，COMPLETED/CANCELLED 由对应时间戳标记，均为终态
// swagger:model Enrollment
type Enrollment struct {
	BaseModel
	UserID                   uint            `gorm:"index:idx_enrollments_user_course;type:bigint unsigned;not null" json:"user_id"`
	CourseID                 uint            `gorm:"index:idx_enrollments_user_course;type:bigint unsigned;not null" json:"course_id"`
	ExpiresAt                time.Time       `gorm:"not null" json:"expires_at"`
	CompletedAt              *time.Time      `json:"completed_at"`
	CancelledAt              *time.Time      `json:"cancelled_at,omitempty"`
	LastAccessedLessonID     *uint           `gorm:"type:bigint unsigned" json:"last_accessed_lesson_id"`
	LastVideoPositionSeconds float64         `gorm:"default:0" json:"last_video_position_seconds"`
	LastAccessedAt           *time.Time      `json:"last_accessed_at"`
	State                    EnrollmentState `gorm:"-" json:"state,omitempty"`
	User                     *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Course                   *Course         `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// StateAt 推导 now 时刻的报名状态，不产生任何写入
func (e *Enrollment) StateAt(now time.Time) EnrollmentState {
	switch {
	case e.CompletedAt != nil:
		return EnrollmentCompleted
	case e.CancelledAt != nil:
		return EnrollmentCancelled
	case !now.Before(e.ExpiresAt):
		return EnrollmentExpired
	default:
		return EnrollmentActive
	}
}

// GrantsAccess 判断该报名在 now 时刻是否授予课程内容访问权限。
// COMPLETED 不受过期时间影响，永久授权
func (e *Enrollment) GrantsAccess(now time.Time) bool {
	s := e.StateAt(now)
	return s == EnrollmentActive || s == EnrollmentCompleted
}
