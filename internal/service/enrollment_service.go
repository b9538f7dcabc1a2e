package service

import (
	"errors"
	"time"

	"course_platform_backend/internal/config"
	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"
	"course_platform_backend/pkg/logger"
	"course_platform_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnrollmentService 报名生命周期。状态从不落库：
// ACTIVE/EXPIRED 由 expires_at 与当前时间在读取时推导，没有后台扫描任务；
// 同一 (学员, 课程) 任一时刻至多存在一条推导为 ACTIVE 的报名
type EnrollmentService struct {
	EnrollmentRepo *repository.EnrollmentRepository
	CourseRepo     *repository.CourseRepository
	UserRepo       *repository.UserRepository
	DB             *gorm.DB
	Config         config.EnrollmentConfig
}

func NewEnrollmentService(
	enrollmentRepo *repository.EnrollmentRepository,
	courseRepo *repository.CourseRepository,
	userRepo *repository.UserRepository,
	db *gorm.DB,
	cfg config.EnrollmentConfig,
) *EnrollmentService {
	return &EnrollmentService{
		EnrollmentRepo: enrollmentRepo,
		CourseRepo:     courseRepo,
		UserRepo:       userRepo,
		DB:             db,
		Config:         cfg,
	}
}

// Create 管理员为学员创建报名，有效期 = 创建时间 + 配置的月数。
// 锁定该 (学员, 课程) 的报名记录后检查唯一性，检查与插入在同一事务内，
// 并发重复创建只会成功一次
func (s *EnrollmentService) Create(userID, courseID uint) (*model.Enrollment, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	if user.Role != model.Student {
		return nil, util.ErrPermissionDenied
	}

	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if course.Status != model.CoursePublished {
		return nil, util.ErrCourseNotPublished
	}

	now := time.Now()
	enrollment := &model.Enrollment{
		UserID:    userID,
		CourseID:  courseID,
		ExpiresAt: now.AddDate(0, s.Config.ValidityMonths, 0),
	}
	enrollment.CreatedAt = now

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var existing []model.Enrollment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND course_id = ?", userID, courseID).
			Find(&existing).Error; err != nil {
			return err
		}
		for i := range existing {
			if existing[i].StateAt(now) == model.EnrollmentActive {
				return util.ErrEnrollmentExists
			}
		}
		return tx.Create(enrollment).Error
	})
	if err != nil {
		return nil, err
	}

	enrollment.State = model.EnrollmentActive
	monitoring.EnrollmentEvents.WithLabelValues("created").Inc()
	logger.Log.Info("enrollment created",
		zap.Uint("enrollment_id", enrollment.ID),
		zap.Uint("user_id", userID),
		zap.Uint("course_id", courseID),
		zap.Time("expires_at", enrollment.ExpiresAt))
	return enrollment, nil
}

// MarkComplete 标记完成。ACTIVE 可完成；EXPIRED 是否允许由配置决定；
// COMPLETED/CANCELLED 为终态，重复标记报错
func (s *EnrollmentService) MarkComplete(enrollmentID uint, actor *util.Claims) (*model.Enrollment, error) {
	enrollment, err := s.EnrollmentRepo.FindByID(enrollmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrEnrollmentNotFound
		}
		return nil, err
	}
	if actor.UserID != enrollment.UserID && !actor.Role.IsAdmin() {
		return nil, util.ErrPermissionDenied
	}

	now := time.Now()
	switch enrollment.StateAt(now) {
	case model.EnrollmentCompleted:
		return nil, util.ErrAlreadyCompleted
	case model.EnrollmentCancelled:
		return nil, util.ErrEnrollmentCancelled
	case model.EnrollmentExpired:
		if !s.Config.AllowCompleteAfterExpiry {
			return nil, util.ErrEnrollmentExpired
		}
	}

	enrollment.CompletedAt = &now
	if err := s.EnrollmentRepo.Update(enrollment); err != nil {
		return nil, err
	}

	enrollment.State = model.EnrollmentCompleted
	monitoring.EnrollmentEvents.WithLabelValues("completed").Inc()
	logger.Log.Info("enrollment completed",
		zap.Uint("enrollment_id", enrollment.ID),
		zap.Uint("user_id", enrollment.UserID))
	return enrollment, nil
}

// Extend 管理员延长有效期。状态是推导出来的，已过期的报名
// 在延期后自动恢复 ACTIVE，无需修改任何状态字段
func (s *EnrollmentService) Extend(enrollmentID uint, additionalDays int) (*model.Enrollment, error) {
	if additionalDays <= 0 {
		return nil, util.ErrInvalidDuration
	}

	enrollment, err := s.EnrollmentRepo.FindByID(enrollmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrEnrollmentNotFound
		}
		return nil, err
	}

	now := time.Now()
	switch enrollment.StateAt(now) {
	case model.EnrollmentCompleted:
		return nil, util.ErrAlreadyCompleted
	case model.EnrollmentCancelled:
		return nil, util.ErrEnrollmentCancelled
	}

	enrollment.ExpiresAt = enrollment.ExpiresAt.AddDate(0, 0, additionalDays)
	if err := s.EnrollmentRepo.Update(enrollment); err != nil {
		return nil, err
	}

	enrollment.State = enrollment.StateAt(now)
	monitoring.EnrollmentEvents.WithLabelValues("extended").Inc()
	logger.Log.Info("enrollment extended",
		zap.Uint("enrollment_id", enrollment.ID),
		zap.Int("additional_days", additionalDays),
		zap.Time("expires_at", enrollment.ExpiresAt))
	return enrollment, nil
}

// Cancel 管理员撤销报名，终态
func (s *EnrollmentService) Cancel(enrollmentID uint) (*model.Enrollment, error) {
	enrollment, err := s.EnrollmentRepo.FindByID(enrollmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrEnrollmentNotFound
		}
		return nil, err
	}

	now := time.Now()
	switch enrollment.StateAt(now) {
	case model.EnrollmentCancelled:
		return nil, util.ErrEnrollmentCancelled
	case model.EnrollmentCompleted:
		return nil, util.ErrAlreadyCompleted
	}

	enrollment.CancelledAt = &now
	if err := s.EnrollmentRepo.Update(enrollment); err != nil {
		return nil, err
	}

	enrollment.State = model.EnrollmentCancelled
	monitoring.EnrollmentEvents.WithLabelValues("cancelled").Inc()
	logger.Log.Info("enrollment cancelled", zap.Uint("enrollment_id", enrollment.ID))
	return enrollment, nil
}

// Get 本人或管理员查看单条报名
func (s *EnrollmentService) Get(enrollmentID uint, actor *util.Claims) (*model.Enrollment, error) {
	enrollment, err := s.EnrollmentRepo.FindByIDWithCourse(enrollmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrEnrollmentNotFound
		}
		return nil, err
	}
	if actor.UserID != enrollment.UserID && !actor.Role.IsAdmin() {
		return nil, util.ErrPermissionDenied
	}

	enrollment.State = enrollment.StateAt(time.Now())
	return enrollment, nil
}

// ListMine 学员本人的报名列表，逐条附带推导状态
func (s *EnrollmentService) ListMine(userID uint, page, limit int) ([]model.Enrollment, int64, error) {
	enrollments, total, err := s.EnrollmentRepo.ListByUser(userID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	annotateStates(enrollments, time.Now())
	return enrollments, total, nil
}

// List 管理端报名列表
func (s *EnrollmentService) List(page, limit int, filter repository.EnrollmentFilter) ([]model.Enrollment, int64, error) {
	enrollments, total, err := s.EnrollmentRepo.List(page, limit, filter)
	if err != nil {
		return nil, 0, err
	}
	annotateStates(enrollments, time.Now())
	return enrollments, total, nil
}

// AccessState 计算学员对某课程的访问状态。
// granted 为真表示存在授予访问权的报名（ACTIVE 或 COMPLETED，
// COMPLETED 不受过期影响）；state 返回最有利的一条报名状态
func (s *EnrollmentService) AccessState(userID, courseID uint) (bool, model.EnrollmentState, error) {
	enrollments, err := s.EnrollmentRepo.FindByUserAndCourse(userID, courseID)
	if err != nil {
		return false, "", err
	}
	if len(enrollments) == 0 {
		return false, "", nil
	}

	now := time.Now()
	var fallback model.EnrollmentState
	for i := range enrollments {
		state := enrollments[i].StateAt(now)
		if state == model.EnrollmentActive || state == model.EnrollmentCompleted {
			return true, state, nil
		}
		if fallback == "" || state == model.EnrollmentExpired {
			fallback = state
		}
	}
	return false, fallback, nil
}

// EnsureAccess 内容访问闸门：已过期的报名拒绝访问非试听内容
func (s *EnrollmentService) EnsureAccess(userID, courseID uint) error {
	granted, state, err := s.AccessState(userID, courseID)
	if err != nil {
		return err
	}
	if granted {
		return nil
	}
	if state == model.EnrollmentExpired {
		return util.ErrEnrollmentExpired
	}
	return util.ErrEnrollmentRequired
}

func annotateStates(enrollments []model.Enrollment, now time.Time) {
	for i := range enrollments {
		enrollments[i].State = enrollments[i].StateAt(now)
	}
}
