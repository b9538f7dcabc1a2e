package service

import (
	"testing"
	"time"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateCourseGeneratesUniqueSlugs(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)

	first, err := ts.courses.CreateCourse(1, CourseCreateRequest{Title: "Intro to Go"})
	require.NoError(t, err)
	second, err := ts.courses.CreateCourse(1, CourseCreateRequest{Title: "Intro to Go"})
	require.NoError(t, err)
	third, err := ts.courses.CreateCourse(1, CourseCreateRequest{Title: "Intro to Go"})
	require.NoError(t, err)

	assert.Equal(t, "intro-to-go", first.Slug)
	assert.Equal(t, "intro-to-go-2", second.Slug)
	assert.Equal(t, "intro-to-go-3", third.Slug)
	assert.Equal(t, model.CourseDraft, first.Status)
}

func TestCreateCourseSlugFallbackForNonLatin(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)

	mixed, err := ts.courses.CreateCourse(1, CourseCreateRequest{Title: "Go 进阶"})
	require.NoError(t, err)
	assert.Equal(t, "go", mixed.Slug)

	// 标题完全无法转写时退到固定占位 slug
	first, err := ts.courses.CreateCourse(1, CourseCreateRequest{Title: "高级课程"})
	require.NoError(t, err)
	assert.Equal(t, "untitled", first.Slug)

	second, err := ts.courses.CreateCourse(1, CourseCreateRequest{Title: "进阶课程"})
	require.NoError(t, err)
	assert.Equal(t, "untitled-2", second.Slug)
}

func TestUpdateCourseRetitleRegeneratesSlug(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	createCourse(t, ts, "Advanced Go", false) // 先占住 advanced-go
	course := createCourse(t, ts, "Intro to Go", false)

	newTitle := "Advanced Go"
	updated, err := ts.courses.UpdateCourse(course.ID, CourseUpdateRequest{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, "advanced-go-2", updated.Slug)

	desc := "rewritten description"
	updated, err = ts.courses.UpdateCourse(course.ID, CourseUpdateRequest{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "advanced-go-2", updated.Slug)
	assert.Equal(t, "rewritten description", updated.Description)

	sameTitle := "Advanced Go"
	updated, err = ts.courses.UpdateCourse(course.ID, CourseUpdateRequest{Title: &sameTitle})
	require.NoError(t, err)
	assert.Equal(t, "advanced-go-2", updated.Slug)

	_, err = ts.courses.UpdateCourse(999, CourseUpdateRequest{Title: &newTitle})
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestSetStatusStampsFirstPublishOnly(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", false)
	require.Nil(t, course.PublishedAt)

	published, err := ts.courses.SetStatus(course.ID, model.CoursePublished)
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)

	// 回填一个固定的历史发布时间，验证重新上架不会覆盖它
	firstPublish := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, db.Model(&model.Course{}).
		Where("id = ?", course.ID).
		Update("published_at", firstPublish).Error)

	_, err = ts.courses.SetStatus(course.ID, model.CourseDraft)
	require.NoError(t, err)
	again, err := ts.courses.SetStatus(course.ID, model.CoursePublished)
	require.NoError(t, err)
	require.NotNil(t, again.PublishedAt)
	assert.WithinDuration(t, firstPublish, *again.PublishedAt, time.Second)
}

func TestGetCourseBySlugHidesDrafts(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	createCourse(t, ts, "Hidden Course", false)

	_, err := ts.courses.GetCourseBySlug("hidden-course", nil)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	student := createUser(t, db, "student@test.local", model.Student)
	_, err = ts.courses.GetCourseBySlug("hidden-course", claimsFor(student))
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	admin := createUser(t, db, "admin@test.local", model.Admin)
	detail, err := ts.courses.GetCourseBySlug("hidden-course", claimsFor(admin))
	require.NoError(t, err)
	assert.Equal(t, model.CourseDraft, detail.Status)
}

func TestGetCourseBySlugAnnotatesEnrollment(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", true)
	_, err := ts.lessons.CreateLesson(course.ID, LessonCreateRequest{
		Title: "Teaser", VideoURL: "videos/teaser.mp4", IsPreview: true,
	})
	require.NoError(t, err)
	_, err = ts.lessons.CreateLesson(course.ID, LessonCreateRequest{
		Title: "Locked", VideoURL: "videos/locked.mp4",
	})
	require.NoError(t, err)

	stranger := createUser(t, db, "stranger@test.local", model.Student)
	detail, err := ts.courses.GetCourseBySlug("go-fundamentals", claimsFor(stranger))
	require.NoError(t, err)
	assert.False(t, detail.IsEnrolled)
	assert.Empty(t, detail.EnrollmentState)
	require.Len(t, detail.Lessons, 2)
	assert.Equal(t, "videos/teaser.mp4", detail.Lessons[0].VideoURL)
	assert.Empty(t, detail.Lessons[1].VideoURL)

	active := createUser(t, db, "active@test.local", model.Student)
	insertEnrollment(t, db, active.ID, course.ID, time.Now().Add(30*24*time.Hour))
	detail, err = ts.courses.GetCourseBySlug("go-fundamentals", claimsFor(active))
	require.NoError(t, err)
	assert.True(t, detail.IsEnrolled)
	assert.Equal(t, model.EnrollmentActive, detail.EnrollmentState)
	assert.Equal(t, "videos/locked.mp4", detail.Lessons[1].VideoURL)

	// 过期报名仍算报过名，但内容照旧隐藏
	expired := createUser(t, db, "expired@test.local", model.Student)
	insertEnrollment(t, db, expired.ID, course.ID, time.Now().Add(-time.Hour))
	detail, err = ts.courses.GetCourseBySlug("go-fundamentals", claimsFor(expired))
	require.NoError(t, err)
	assert.True(t, detail.IsEnrolled)
	assert.Equal(t, model.EnrollmentExpired, detail.EnrollmentState)
	assert.Empty(t, detail.Lessons[1].VideoURL)
}

func TestDeleteCourseSoftByAdmin(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Doomed Course", true)
	addLesson(t, ts, course.ID, "A", 60, false)

	require.NoError(t, ts.courses.DeleteCourse(course.ID, model.Admin))

	var gone model.Course
	assert.ErrorIs(t, db.First(&gone, course.ID).Error, gorm.ErrRecordNotFound)

	var unscopedCount int64
	require.NoError(t, db.Unscoped().Model(&model.Course{}).
		Where("id = ?", course.ID).Count(&unscopedCount).Error)
	assert.EqualValues(t, 1, unscopedCount)

	var lessonCount int64
	require.NoError(t, db.Model(&model.Lesson{}).
		Where("course_id = ?", course.ID).Count(&lessonCount).Error)
	assert.EqualValues(t, 1, lessonCount)

	// 软删除的课程仍占用 slug，重建同名课程要让位
	rebuilt, err := ts.courses.CreateCourse(1, CourseCreateRequest{Title: "Doomed Course"})
	require.NoError(t, err)
	assert.Equal(t, "doomed-course-2", rebuilt.Slug)
}

func TestDeleteCourseHardBySuperAdmin(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Doomed Course", true)
	lesson := addLesson(t, ts, course.ID, "A", 60, false)
	require.NoError(t, db.Create(&model.Material{LessonID: lesson.ID, Title: "Slides", URL: "materials/slides.pdf"}).Error)

	require.NoError(t, ts.courses.DeleteCourse(course.ID, model.SuperAdmin))

	var courseCount, lessonCount, materialCount int64
	require.NoError(t, db.Unscoped().Model(&model.Course{}).
		Where("id = ?", course.ID).Count(&courseCount).Error)
	require.NoError(t, db.Unscoped().Model(&model.Lesson{}).
		Where("course_id = ?", course.ID).Count(&lessonCount).Error)
	require.NoError(t, db.Unscoped().Model(&model.Material{}).
		Where("lesson_id = ?", lesson.ID).Count(&materialCount).Error)
	assert.EqualValues(t, 0, courseCount)
	assert.EqualValues(t, 0, lessonCount)
	assert.EqualValues(t, 0, materialCount)
}

func TestRecomputeStatsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", false)
	addLesson(t, ts, course.ID, "A", 600, false)
	addLesson(t, ts, course.ID, "B", 1000, false)

	first := reloadCourse(t, db, course.ID)
	assert.Equal(t, 2, first.LessonsCount)
	assert.InDelta(t, 0.44, first.TotalDurationHours, 1e-9) // 1600s -> 0.44

	require.NoError(t, ts.courses.RecomputeStats(db, course.ID))
	again := reloadCourse(t, db, course.ID)
	assert.Equal(t, first.LessonsCount, again.LessonsCount)
	assert.InDelta(t, first.TotalDurationHours, again.TotalDurationHours, 1e-9)
}

func TestListCoursesFilters(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)

	beginner, err := ts.courses.CreateCourse(1, CourseCreateRequest{Title: "Beginner Go", Level: "beginner"})
	require.NoError(t, err)
	_, err = ts.courses.SetStatus(beginner.ID, model.CoursePublished)
	require.NoError(t, err)

	advanced, err := ts.courses.CreateCourse(1, CourseCreateRequest{Title: "Advanced Patterns", Level: "advanced"})
	require.NoError(t, err)
	_, err = ts.courses.SetStatus(advanced.ID, model.CoursePublished)
	require.NoError(t, err)

	_, err = ts.courses.CreateCourse(1, CourseCreateRequest{Title: "Draft Thing"})
	require.NoError(t, err)

	// 公开列表默认只含已发布课程
	_, total, err := ts.courses.ListCourses(1, 10, repository.CourseFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, total, err = ts.courses.ListCourses(1, 10, repository.CourseFilter{IncludeUnpublished: true})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	drafts, total, err := ts.courses.ListCourses(1, 10, repository.CourseFilter{
		IncludeUnpublished: true, Status: string(model.CourseDraft),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Draft Thing", drafts[0].Title)

	_, total, err = ts.courses.ListCourses(1, 10, repository.CourseFilter{Search: "Advanced"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, total, err = ts.courses.ListCourses(1, 10, repository.CourseFilter{Level: "beginner"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}
