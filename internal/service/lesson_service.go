package service

import (
	"errors"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"
	"course_platform_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LessonService 维护课程内课时的连续排序：任一时刻同一课程的
// order 取值恰为 {1..N}，所有结构性变更在单个事务内完成重排并重算统计
type LessonService struct {
	LessonRepo  *repository.LessonRepository
	CourseRepo  *repository.CourseRepository
	Courses     *CourseService
	Enrollments *EnrollmentService
	DB          *gorm.DB
}

func NewLessonService(
	lessonRepo *repository.LessonRepository,
	courseRepo *repository.CourseRepository,
	courses *CourseService,
	enrollments *EnrollmentService,
	db *gorm.DB,
) *LessonService {
	return &LessonService{
		LessonRepo:  lessonRepo,
		CourseRepo:  courseRepo,
		Courses:     courses,
		Enrollments: enrollments,
		DB:          db,
	}
}

type LessonCreateRequest struct {
	Title           string  `json:"title" binding:"required"`
	Summary         string  `json:"summary"`
	DurationSeconds float64 `json:"duration_seconds" binding:"omitempty,min=0"`
	VideoURL        string  `json:"video_url"`
	IsPreview       bool    `json:"is_preview"`
}

type LessonUpdateRequest struct {
	Title           *string  `json:"title"`
	Summary         *string  `json:"summary"`
	DurationSeconds *float64 `json:"duration_seconds"`
	VideoURL        *string  `json:"video_url"`
	IsPreview       *bool    `json:"is_preview"`
}

// CreateLesson 在课程末尾追加课时，order = 当前数量 + 1
func (s *LessonService) CreateLesson(courseID uint, req LessonCreateRequest) (*model.Lesson, error) {
	if req.DurationSeconds < 0 {
		return nil, util.ErrInvalidDuration
	}

	var lesson *model.Lesson
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// 锁课程行，串行化同一课程的结构性变更
		var course model.Course
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&course, courseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrCourseNotFound
			}
			return err
		}

		var count int64
		if err := tx.Model(&model.Lesson{}).
			Where("course_id = ?", courseID).
			Count(&count).Error; err != nil {
			return err
		}

		lesson = &model.Lesson{
			CourseID:        courseID,
			Title:           req.Title,
			Summary:         req.Summary,
			Order:           int(count) + 1,
			DurationSeconds: req.DurationSeconds,
			VideoURL:        req.VideoURL,
			IsPreview:       req.IsPreview,
		}
		if err := tx.Create(lesson).Error; err != nil {
			return err
		}

		return s.Courses.RecomputeStats(tx, courseID)
	})
	if err != nil {
		return nil, err
	}

	s.Courses.InvalidateCourseCache(courseID)
	logger.Log.Info("lesson created",
		zap.Uint("lesson_id", lesson.ID),
		zap.Uint("course_id", courseID),
		zap.Int("order", lesson.Order))
	return lesson, nil
}

func (s *LessonService) UpdateLesson(lessonID uint, req LessonUpdateRequest) (*model.Lesson, error) {
	if req.DurationSeconds != nil && *req.DurationSeconds < 0 {
		return nil, util.ErrInvalidDuration
	}

	var updated model.Lesson
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var lesson model.Lesson
		if err := tx.First(&lesson, lessonID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrLessonNotFound
			}
			return err
		}

		durationChanged := false
		if req.Title != nil {
			lesson.Title = *req.Title
		}
		if req.Summary != nil {
			lesson.Summary = *req.Summary
		}
		if req.VideoURL != nil {
			lesson.VideoURL = *req.VideoURL
		}
		if req.IsPreview != nil {
			lesson.IsPreview = *req.IsPreview
		}
		if req.DurationSeconds != nil && *req.DurationSeconds != lesson.DurationSeconds {
			lesson.DurationSeconds = *req.DurationSeconds
			durationChanged = true
		}

		if err := tx.Save(&lesson).Error; err != nil {
			return err
		}
		if durationChanged {
			if err := s.Courses.RecomputeStats(tx, lesson.CourseID); err != nil {
				return err
			}
		}
		updated = lesson
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Courses.InvalidateCourseCache(updated.CourseID)
	return &updated, nil
}

// ReorderLesson 把课时移动到 newOrder 并整体重排。
// newOrder 超过课时总数时收敛到末位；移动到当前位置不产生任何写入。
// 返回该课程重排后的完整课时列表（order 升序）
func (s *LessonService) ReorderLesson(lessonID uint, newOrder int) ([]model.Lesson, error) {
	if newOrder < 1 {
		return nil, util.ErrInvalidOrder
	}

	var lessons []model.Lesson
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var lesson model.Lesson
		if err := tx.First(&lesson, lessonID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrLessonNotFound
			}
			return err
		}

		var course model.Course
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&course, lesson.CourseID).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.Lesson{}).
			Where("course_id = ?", lesson.CourseID).
			Count(&count).Error; err != nil {
			return err
		}

		target := newOrder
		if target > int(count) {
			target = int(count)
		}

		if target != lesson.Order {
			if target > lesson.Order {
				// 向后移：旧位置与目标位置之间的课时前移一位
				if err := tx.Model(&model.Lesson{}).
					Where("course_id = ? AND `order` > ? AND `order` <= ?", lesson.CourseID, lesson.Order, target).
					Update("order", gorm.Expr("`order` - 1")).Error; err != nil {
					return err
				}
			} else {
				// 向前移：目标位置与旧位置之间的课时后移一位
				if err := tx.Model(&model.Lesson{}).
					Where("course_id = ? AND `order` >= ? AND `order` < ?", lesson.CourseID, target, lesson.Order).
					Update("order", gorm.Expr("`order` + 1")).Error; err != nil {
					return err
				}
			}
			if err := tx.Model(&model.Lesson{}).
				Where("id = ?", lesson.ID).
				Update("order", target).Error; err != nil {
				return err
			}
			if err := s.Courses.RecomputeStats(tx, lesson.CourseID); err != nil {
				return err
			}
		}

		return tx.Where("course_id = ?", lesson.CourseID).
			Order("`order` ASC").
			Find(&lessons).Error
	})
	if err != nil {
		return nil, err
	}

	if len(lessons) > 0 {
		s.Courses.InvalidateCourseCache(lessons[0].CourseID)
	}
	return lessons, nil
}

// DeleteLesson 删除课时并为其后的课时补位，返回重排后的剩余列表
func (s *LessonService) DeleteLesson(lessonID uint) ([]model.Lesson, error) {
	var remaining []model.Lesson
	var courseID uint
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var lesson model.Lesson
		if err := tx.First(&lesson, lessonID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrLessonNotFound
			}
			return err
		}
		courseID = lesson.CourseID

		var course model.Course
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&course, courseID).Error; err != nil {
			return err
		}

		if err := tx.Where("lesson_id = ?", lesson.ID).
			Delete(&model.Material{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.Lesson{}, lesson.ID).Error; err != nil {
			return err
		}

		// 后续课时整体前移补位
		if err := tx.Model(&model.Lesson{}).
			Where("course_id = ? AND `order` > ?", courseID, lesson.Order).
			Update("order", gorm.Expr("`order` - 1")).Error; err != nil {
			return err
		}

		if err := s.Courses.RecomputeStats(tx, courseID); err != nil {
			return err
		}

		return tx.Where("course_id = ?", courseID).
			Order("`order` ASC").
			Find(&remaining).Error
	})
	if err != nil {
		return nil, err
	}

	s.Courses.InvalidateCourseCache(courseID)
	logger.Log.Info("lesson deleted",
		zap.Uint("lesson_id", lessonID),
		zap.Uint("course_id", courseID))
	return remaining, nil
}

// GetLesson 试听课时公开；其余课时要求管理员身份或有效报名
func (s *LessonService) GetLesson(lessonID uint, viewer *util.Claims) (*model.Lesson, error) {
	lesson, err := s.LessonRepo.FindByIDWithMaterials(lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}

	course, err := s.CourseRepo.FindByID(lesson.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	isAdmin := viewer != nil && viewer.Role.IsAdmin()
	if course.Status != model.CoursePublished && !isAdmin {
		return nil, util.ErrLessonNotFound
	}

	if lesson.IsPreview || isAdmin {
		return lesson, nil
	}
	if viewer == nil {
		return nil, util.ErrEnrollmentRequired
	}
	if err := s.Enrollments.EnsureAccess(viewer.UserID, lesson.CourseID); err != nil {
		return nil, err
	}
	return lesson, nil
}

// ListByCourse 按 order 升序返回课时，未授权查看者仅见试听内容
func (s *LessonService) ListByCourse(courseID uint, viewer *util.Claims) ([]model.Lesson, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	return s.listForCourse(course, viewer)
}

// ListBySlug 同 ListByCourse，面向以 slug 访问的公开接口
func (s *LessonService) ListBySlug(slug string, viewer *util.Claims) ([]model.Lesson, error) {
	course, err := s.CourseRepo.FindBySlugOnly(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	return s.listForCourse(course, viewer)
}

func (s *LessonService) listForCourse(course *model.Course, viewer *util.Claims) ([]model.Lesson, error) {
	isAdmin := viewer != nil && viewer.Role.IsAdmin()
	if course.Status != model.CoursePublished && !isAdmin {
		return nil, util.ErrCourseNotFound
	}

	lessons, err := s.LessonRepo.ListByCourse(course.ID)
	if err != nil {
		return nil, err
	}

	granted := isAdmin
	if viewer != nil && !isAdmin {
		ok, _, err := s.Enrollments.AccessState(viewer.UserID, course.ID)
		if err != nil {
			return nil, err
		}
		granted = ok
	}
	return maskRestrictedLessons(lessons, granted), nil
}

// SetVideo 视频上传完成后回写地址、缩略图与探测时长，并重算课程统计
func (s *LessonService) SetVideo(lessonID uint, videoURL, thumbnail string, durationSeconds float64) (*model.Lesson, error) {
	var updated model.Lesson
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var lesson model.Lesson
		if err := tx.First(&lesson, lessonID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrLessonNotFound
			}
			return err
		}

		lesson.VideoURL = videoURL
		if thumbnail != "" {
			lesson.Thumbnail = thumbnail
		}
		if durationSeconds > 0 {
			lesson.DurationSeconds = durationSeconds
		}
		if err := tx.Save(&lesson).Error; err != nil {
			return err
		}
		if err := s.Courses.RecomputeStats(tx, lesson.CourseID); err != nil {
			return err
		}
		updated = lesson
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Courses.InvalidateCourseCache(updated.CourseID)
	return &updated, nil
}

// maskRestrictedLessons 对未授权查看者隐藏非试听课时的视频与附件
func maskRestrictedLessons(lessons []model.Lesson, granted bool) []model.Lesson {
	if granted {
		return lessons
	}
	for i := range lessons {
		if !lessons[i].IsPreview {
			lessons[i].VideoURL = ""
			lessons[i].Materials = nil
		}
	}
	return lessons
}
