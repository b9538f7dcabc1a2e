package model

// Material 课时附件（讲义、练习等），纯子实体
type Material struct {
	BaseModel
	LessonID uint   `gorm:"index;type:bigint unsigned;not null" json:"lesson_id"`
	Title    string `gorm:"size:255;not null" json:"title"`
	URL      string `gorm:"size:255;not null" json:"url"`
	Size     int64  `gorm:"default:0" json:"size"`   // 文件大小（字节）
	Format   string `gorm:"size:50" json:"format"`
}

func (Material) TableName() string {
	return "materials"
}
