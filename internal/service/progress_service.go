package service

import (
	"errors"
	"time"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"

	"gorm.io/gorm"
)

// ProgressService 记录报名的最近观看位置。播放器每 10~30 秒上报一次，
// 这里是固定大小的覆盖写而不是追加日志，不需要额外加锁
type ProgressService struct {
	EnrollmentRepo *repository.EnrollmentRepository
	LessonRepo     *repository.LessonRepository
	Enrollments    *EnrollmentService
	DB             *gorm.DB
}

func NewProgressService(
	enrollmentRepo *repository.EnrollmentRepository,
	lessonRepo *repository.LessonRepository,
	enrollments *EnrollmentService,
	db *gorm.DB,
) *ProgressService {
	return &ProgressService{
		EnrollmentRepo: enrollmentRepo,
		LessonRepo:     lessonRepo,
		Enrollments:    enrollments,
		DB:             db,
	}
}

// UpdateProgress 覆盖写最近观看的课时与播放位置（last-write-wins）。
// 课时必须属于该报名的课程；已过期/已取消的报名拒绝上报
func (s *ProgressService) UpdateProgress(enrollmentID uint, actor *util.Claims, lessonID uint, positionSeconds float64) (*model.Enrollment, error) {
	if positionSeconds < 0 {
		return nil, util.ErrInvalidPosition
	}

	enrollment, err := s.EnrollmentRepo.FindByID(enrollmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrEnrollmentNotFound
		}
		return nil, err
	}
	if actor.UserID != enrollment.UserID {
		return nil, util.ErrPermissionDenied
	}

	now := time.Now()
	switch enrollment.StateAt(now) {
	case model.EnrollmentExpired:
		return nil, util.ErrEnrollmentExpired
	case model.EnrollmentCancelled:
		return nil, util.ErrEnrollmentCancelled
	}

	lesson, err := s.LessonRepo.FindByID(lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}
	if lesson.CourseID != enrollment.CourseID {
		return nil, util.ErrLessonNotInCourse
	}

	// 单行原子更新，无跨字段不变量
	err = s.DB.Model(&model.Enrollment{}).
		Where("id = ?", enrollment.ID).
		Updates(map[string]interface{}{
			"last_accessed_lesson_id":     lesson.ID,
			"last_video_position_seconds": positionSeconds,
			"last_accessed_at":            now,
		}).Error
	if err != nil {
		return nil, err
	}

	enrollment.LastAccessedLessonID = &lesson.ID
	enrollment.LastVideoPositionSeconds = positionSeconds
	enrollment.LastAccessedAt = &now
	enrollment.State = enrollment.StateAt(now)
	return enrollment, nil
}

// MarkComplete 完成由报名生命周期管理，这里只做转发
func (s *ProgressService) MarkComplete(enrollmentID uint, actor *util.Claims) (*model.Enrollment, error) {
	return s.Enrollments.MarkComplete(enrollmentID, actor)
}
