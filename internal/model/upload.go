package model

import "time"

// UploadProgress 分块上传进度，存于 Redis，24 小时过期。
// Identifier 在初始化时生成并与目标课时绑定
type UploadProgress struct {
	Identifier     string       `json:"identifier"`
	LessonID       uint         `json:"lesson_id"`
	Filename       string       `json:"filename"`
	TotalChunks    int          `json:"total_chunks"`
	UploadedChunks int          `json:"uploaded_chunks"`
	FileSize       int64        `json:"file_size"`
	CreatedAt      time.Time    `json:"created_at"`
	Chunks         map[int]bool `json:"chunks"`
}

func (p *UploadProgress) Percent() int {
	if p.TotalChunks == 0 {
		return 0
	}
	return p.UploadedChunks * 100 / p.TotalChunks
}
