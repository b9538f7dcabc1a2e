package service

import (
	"fmt"
	"os"
	"testing"
	"time"

	"course_platform_backend/internal/config"
	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"
	"course_platform_backend/pkg/logger"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

type testServices struct {
	enrollments *EnrollmentService
	courses     *CourseService
	lessons     *LessonService
	progress    *ProgressService
}

// setupTestDB 每个测试一个独立命名的共享缓存内存库
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Lesson{},
		&model.Material{},
		&model.Enrollment{},
	))
	return db
}

func newTestServices(db *gorm.DB) *testServices {
	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	enrollments := NewEnrollmentService(enrollmentRepo, courseRepo, userRepo, db, config.EnrollmentConfig{
		ValidityMonths:           12,
		AllowCompleteAfterExpiry: true,
	})
	courses := NewCourseService(courseRepo, lessonRepo, enrollments, nil, db, 10*time.Minute)
	lessons := NewLessonService(lessonRepo, courseRepo, courses, enrollments, db)
	progress := NewProgressService(enrollmentRepo, lessonRepo, enrollments, db)

	return &testServices{
		enrollments: enrollments,
		courses:     courses,
		lessons:     lessons,
		progress:    progress,
	}
}

func createUser(t *testing.T, db *gorm.DB, email string, role model.UserRole) *model.User {
	t.Helper()
	user := &model.User{
		Name:     "Test User",
		Email:    email,
		Password: "hashed",
		Role:     role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func claimsFor(user *model.User) *util.Claims {
	return &util.Claims{UserID: user.ID, Role: user.Role, Email: user.Email}
}

func createCourse(t *testing.T, ts *testServices, title string, publish bool) *model.Course {
	t.Helper()
	course, err := ts.courses.CreateCourse(1, CourseCreateRequest{Title: title})
	require.NoError(t, err)
	if publish {
		course, err = ts.courses.SetStatus(course.ID, model.CoursePublished)
		require.NoError(t, err)
	}
	return course
}

func addLesson(t *testing.T, ts *testServices, courseID uint, title string, durationSeconds float64, preview bool) *model.Lesson {
	t.Helper()
	lesson, err := ts.lessons.CreateLesson(courseID, LessonCreateRequest{
		Title:           title,
		DurationSeconds: durationSeconds,
		IsPreview:       preview,
	})
	require.NoError(t, err)
	return lesson
}

// insertEnrollment 直接落库，便于构造过期等历史状态
func insertEnrollment(t *testing.T, db *gorm.DB, userID, courseID uint, expiresAt time.Time) *model.Enrollment {
	t.Helper()
	enrollment := &model.Enrollment{
		UserID:    userID,
		CourseID:  courseID,
		ExpiresAt: expiresAt,
	}
	require.NoError(t, db.Create(enrollment).Error)
	return enrollment
}

func reloadCourse(t *testing.T, db *gorm.DB, id uint) *model.Course {
	t.Helper()
	var course model.Course
	require.NoError(t, db.First(&course, id).Error)
	return &course
}

func reloadEnrollment(t *testing.T, db *gorm.DB, id uint) *model.Enrollment {
	t.Helper()
	var enrollment model.Enrollment
	require.NoError(t, db.First(&enrollment, id).Error)
	return &enrollment
}
