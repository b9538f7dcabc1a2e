package model

// Lesson 课时。Order 为课程内 1 开始的连续序号：
// 同一课程的 N 个课时，Order 取值恰好为 {1..N}，插入/移动/删除后重排
type Lesson struct {
	BaseModel
	CourseID        uint       `gorm:"index;type:bigint unsigned;not null" json:"course_id"`
	Title           string     `gorm:"size:255;not null" json:"title"`
	Summary         string     `gorm:"type:text" json:"summary"`
	Order           int        `gorm:"not null;default:0;index" json:"order"`
	DurationSeconds float64    `gorm:"default:0" json:"duration_seconds"` // 视频时长（秒）
	VideoURL        string     `gorm:"size:255" json:"video_url,omitempty"`
	Thumbnail       string     `gorm:"size:255" json:"thumbnail,omitempty"`
	IsPreview       bool       `gorm:"default:false" json:"is_preview"`
	Materials       []Material `gorm:"foreignKey:LessonID" json:"materials,omitempty"`
}

func (Lesson) TableName() string {
	return "lessons"
}
