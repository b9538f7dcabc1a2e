package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"
	"course_platform_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CourseService struct {
	CourseRepo  *repository.CourseRepository
	LessonRepo  *repository.LessonRepository
	Enrollments *EnrollmentService
	Redis       *redis.Client
	DB          *gorm.DB
	CacheTTL    time.Duration
}

func NewCourseService(
	courseRepo *repository.CourseRepository,
	lessonRepo *repository.LessonRepository,
	enrollments *EnrollmentService,
	rdb *redis.Client,
	db *gorm.DB,
	cacheTTL time.Duration,
) *CourseService {
	return &CourseService{
		CourseRepo:  courseRepo,
		LessonRepo:  lessonRepo,
		Enrollments: enrollments,
		Redis:       rdb,
		DB:          db,
		CacheTTL:    cacheTTL,
	}
}

type CourseCreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Level       string `json:"level" binding:"omitempty,oneof=beginner intermediate advanced"`
}

type CourseUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Level       *string `json:"level" binding:"omitempty,oneof=beginner intermediate advanced"`
}

// CourseDetail 课程详情，附带当前查看者的报名标记
type CourseDetail struct {
	model.Course
	IsEnrolled      bool                  `json:"is_enrolled"`
	EnrollmentState model.EnrollmentState `json:"enrollment_state,omitempty"`
}

func (s *CourseService) CreateCourse(creatorID uint, req CourseCreateRequest) (*model.Course, error) {
	slug, err := s.uniqueSlug(req.Title, 0)
	if err != nil {
		return nil, err
	}

	course := &model.Course{
		Title:       req.Title,
		Slug:        slug,
		Description: req.Description,
		Status:      model.CourseDraft,
		CreatedBy:   creatorID,
	}
	if req.Level != "" {
		course.Level = model.CourseLevel(req.Level)
	}

	if err := s.CourseRepo.Create(course); err != nil {
		return nil, err
	}

	logger.Log.Info("course created",
		zap.Uint("course_id", course.ID),
		zap.String("slug", course.Slug),
		zap.Uint("created_by", creatorID))
	return course, nil
}

func (s *CourseService) UpdateCourse(courseID uint, req CourseUpdateRequest) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	oldSlug := course.Slug
	if req.Title != nil && *req.Title != course.Title {
		slug, err := s.uniqueSlug(*req.Title, course.ID)
		if err != nil {
			return nil, err
		}
		course.Title = *req.Title
		course.Slug = slug
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Level != nil {
		course.Level = model.CourseLevel(*req.Level)
	}

	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}

	s.invalidateDetailCache(oldSlug)
	if course.Slug != oldSlug {
		s.invalidateDetailCache(course.Slug)
	}
	return course, nil
}

// SetStatus 切换课程的上下架状态，首次发布时记录发布时间
func (s *CourseService) SetStatus(courseID uint, status model.CourseStatus) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	course.Status = status
	if status == model.CoursePublished && course.PublishedAt == nil {
		now := time.Now()
		course.PublishedAt = &now
	}

	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}

	s.invalidateDetailCache(course.Slug)
	logger.Log.Info("course status changed",
		zap.Uint("course_id", course.ID),
		zap.String("status", string(status)))
	return course, nil
}

// DeleteCourse 管理员软删除；超级管理员硬删除并级联清理课时与附件
func (s *CourseService) DeleteCourse(courseID uint, actorRole model.UserRole) error {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return err
	}

	if actorRole == model.SuperAdmin {
		err = s.DB.Transaction(func(tx *gorm.DB) error {
			var lessonIDs []uint
			if err := tx.Model(&model.Lesson{}).Unscoped().
				Where("course_id = ?", course.ID).
				Pluck("id", &lessonIDs).Error; err != nil {
				return err
			}
			if len(lessonIDs) > 0 {
				if err := tx.Unscoped().Where("lesson_id IN ?", lessonIDs).
					Delete(&model.Material{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Unscoped().Where("course_id = ?", course.ID).
				Delete(&model.Lesson{}).Error; err != nil {
				return err
			}
			return tx.Unscoped().Delete(&model.Course{}, course.ID).Error
		})
	} else {
		err = s.DB.Delete(&model.Course{}, course.ID).Error
	}
	if err != nil {
		return err
	}

	s.invalidateDetailCache(course.Slug)
	logger.Log.Info("course deleted",
		zap.Uint("course_id", course.ID),
		zap.Bool("hard", actorRole == model.SuperAdmin))
	return nil
}

func (s *CourseService) ListCourses(page, limit int, filter repository.CourseFilter) ([]model.Course, int64, error) {
	return s.CourseRepo.List(page, limit, filter)
}

// GetCourseBySlug 课程详情。未发布课程仅管理员可见；
// 未授权的查看者只能看到试听课时的完整内容，其余课时隐藏视频与附件。
// 匿名访问已发布课程时走 Redis 缓存
func (s *CourseService) GetCourseBySlug(slug string, viewer *util.Claims) (*CourseDetail, error) {
	anonymous := viewer == nil
	if anonymous && s.Redis != nil {
		if cached, err := s.Redis.Get(context.Background(), courseDetailCacheKey(slug)).Result(); err == nil {
			var detail CourseDetail
			if err := json.Unmarshal([]byte(cached), &detail); err == nil {
				return &detail, nil
			}
		}
	}

	course, err := s.CourseRepo.FindBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	isAdmin := viewer != nil && viewer.Role.IsAdmin()
	if course.Status != model.CoursePublished && !isAdmin {
		return nil, util.ErrCourseNotFound
	}

	detail := &CourseDetail{Course: *course}
	granted := isAdmin
	if viewer != nil && !isAdmin {
		ok, state, err := s.Enrollments.AccessState(viewer.UserID, course.ID)
		if err != nil {
			return nil, err
		}
		granted = ok
		detail.IsEnrolled = state != ""
		detail.EnrollmentState = state
	}
	detail.Lessons = maskRestrictedLessons(detail.Lessons, granted)

	if anonymous && s.Redis != nil && course.Status == model.CoursePublished {
		if data, err := json.Marshal(detail); err == nil {
			s.Redis.Set(context.Background(), courseDetailCacheKey(slug), data, s.CacheTTL)
		}
	}
	return detail, nil
}

// RecomputeStats 全量重算课程派生统计：课时数与总时长（小时，两位小数）。
// 必须在引发变更的事务内调用，幂等
func (s *CourseService) RecomputeStats(tx *gorm.DB, courseID uint) error {
	var count int64
	if err := tx.Model(&model.Lesson{}).
		Where("course_id = ?", courseID).
		Count(&count).Error; err != nil {
		return err
	}

	var totalSeconds float64
	if err := tx.Model(&model.Lesson{}).
		Where("course_id = ?", courseID).
		Select("COALESCE(SUM(duration_seconds), 0)").
		Scan(&totalSeconds).Error; err != nil {
		return err
	}

	hours := math.Round(totalSeconds/3600*100) / 100
	return tx.Model(&model.Course{}).
		Where("id = ?", courseID).
		Updates(map[string]interface{}{
			"lessons_count":        count,
			"total_duration_hours": hours,
		}).Error
}

// InvalidateCourseCache 课时/附件变更后由其他服务调用，清除课程详情缓存
func (s *CourseService) InvalidateCourseCache(courseID uint) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return
	}
	s.invalidateDetailCache(course.Slug)
}

func (s *CourseService) invalidateDetailCache(slug string) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(context.Background(), courseDetailCacheKey(slug)).Err(); err != nil {
		logger.Log.Warn("failed to invalidate course cache", zap.String("slug", slug), zap.Error(err))
	}
}

func courseDetailCacheKey(slug string) string {
	return "course:detail:" + slug
}

// uniqueSlug 由标题生成 slug，冲突时追加 -2、-3 … 后缀
func (s *CourseService) uniqueSlug(title string, excludeID uint) (string, error) {
	base := util.Slugify(title)
	slug := base
	for i := 2; ; i++ {
		taken, err := s.CourseRepo.SlugExists(slug, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
