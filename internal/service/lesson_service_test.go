package service

import (
	"testing"
	"time"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lessonTitles(lessons []model.Lesson) []string {
	titles := make([]string, len(lessons))
	for i := range lessons {
		titles[i] = lessons[i].Title
	}
	return titles
}

func lessonOrders(lessons []model.Lesson) []int {
	orders := make([]int, len(lessons))
	for i := range lessons {
		orders[i] = lessons[i].Order
	}
	return orders
}

func TestCreateLessonAppendsSequentially(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", false)

	first := addLesson(t, ts, course.ID, "Variables", 600, false)
	second := addLesson(t, ts, course.ID, "Functions", 900, false)
	third := addLesson(t, ts, course.ID, "Structs", 1800, false)

	assert.Equal(t, 1, first.Order)
	assert.Equal(t, 2, second.Order)
	assert.Equal(t, 3, third.Order)

	reloaded := reloadCourse(t, db, course.ID)
	assert.Equal(t, 3, reloaded.LessonsCount)
	assert.InDelta(t, 0.92, reloaded.TotalDurationHours, 1e-9) // 3300s -> 0.9166h -> 0.92
}

func TestCreateLessonRejectsNegativeDuration(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", false)

	_, err := ts.lessons.CreateLesson(course.ID, LessonCreateRequest{Title: "Bad", DurationSeconds: -1})
	assert.ErrorIs(t, err, util.ErrInvalidDuration)
}

func TestCreateLessonCourseNotFound(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)

	_, err := ts.lessons.CreateLesson(999, LessonCreateRequest{Title: "Orphan"})
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestReorderLessonMovesForward(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", false)
	addLesson(t, ts, course.ID, "A", 60, false)
	addLesson(t, ts, course.ID, "B", 60, false)
	lessonC := addLesson(t, ts, course.ID, "C", 60, false)

	lessons, err := ts.lessons.ReorderLesson(lessonC.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, lessonTitles(lessons))
	assert.Equal(t, []int{1, 2, 3}, lessonOrders(lessons))
}

func TestReorderLessonMovesBackward(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", false)
	lessonA := addLesson(t, ts, course.ID, "A", 60, false)
	addLesson(t, ts, course.ID, "B", 60, false)
	addLesson(t, ts, course.ID, "C", 60, false)

	lessons, err := ts.lessons.ReorderLesson(lessonA.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, lessonTitles(lessons))
	assert.Equal(t, []int{1, 2, 3}, lessonOrders(lessons))
}

func TestReorderLessonClampsToLessonCount(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", false)
	lessonA := addLesson(t, ts, course.ID, "A", 60, false)
	addLesson(t, ts, course.ID, "B", 60, false)
	addLesson(t, ts, course.ID, "C", 60, false)

	// 目标位置超过课时总数时收敛到末位
	lessons, err := ts.lessons.ReorderLesson(lessonA.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, lessonTitles(lessons))
	assert.Equal(t, []int{1, 2, 3}, lessonOrders(lessons))
}

func TestReorderLessonSamePositionIsNoop(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", false)
	addLesson(t, ts, course.ID, "A", 60, false)
	lessonB := addLesson(t, ts, course.ID, "B", 60, false)
	addLesson(t, ts, course.ID, "C", 60, false)

	lessons, err := ts.lessons.ReorderLesson(lessonB.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, lessonTitles(lessons))
	assert.Equal(t, []int{1, 2, 3}, lessonOrders(lessons))
}

func TestReorderLessonRejectsOrderBelowOne(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", false)
	lesson := addLesson(t, ts, course.ID, "A", 60, false)

	_, err := ts.lessons.ReorderLesson(lesson.ID, 0)
	assert.ErrorIs(t, err, util.ErrInvalidOrder)

	_, err = ts.lessons.ReorderLesson(lesson.ID, -3)
	assert.ErrorIs(t, err, util.ErrInvalidOrder)
}

func TestReorderLessonNotFound(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)

	_, err := ts.lessons.ReorderLesson(12345, 1)
	assert.ErrorIs(t, err, util.ErrLessonNotFound)
}

func TestDeleteLessonRenumbersRemainder(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", false)
	addLesson(t, ts, course.ID, "A", 600, false)
	lessonB := addLesson(t, ts, course.ID, "B", 900, false)
	addLesson(t, ts, course.ID, "C", 1800, false)

	material := &model.Material{LessonID: lessonB.ID, Title: "Slides", URL: "materials/slides.pdf"}
	require.NoError(t, db.Create(material).Error)

	remaining, err := ts.lessons.DeleteLesson(lessonB.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, lessonTitles(remaining))
	assert.Equal(t, []int{1, 2}, lessonOrders(remaining))

	reloaded := reloadCourse(t, db, course.ID)
	assert.Equal(t, 2, reloaded.LessonsCount)
	assert.InDelta(t, 0.67, reloaded.TotalDurationHours, 1e-9) // 2400s -> 0.67

	var materialCount int64
	require.NoError(t, db.Model(&model.Material{}).Where("lesson_id = ?", lessonB.ID).Count(&materialCount).Error)
	assert.EqualValues(t, 0, materialCount)
}

func TestDeleteLessonNotFound(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)

	_, err := ts.lessons.DeleteLesson(54321)
	assert.ErrorIs(t, err, util.ErrLessonNotFound)
}

func TestUpdateLessonDurationRecomputesStats(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", false)
	lesson := addLesson(t, ts, course.ID, "A", 600, false)

	assert.InDelta(t, 0.17, reloadCourse(t, db, course.ID).TotalDurationHours, 1e-9)

	newDuration := 1200.0
	_, err := ts.lessons.UpdateLesson(lesson.ID, LessonUpdateRequest{DurationSeconds: &newDuration})
	require.NoError(t, err)
	assert.InDelta(t, 0.33, reloadCourse(t, db, course.ID).TotalDurationHours, 1e-9)

	// 仅改标题不应触发统计重算
	title := "Renamed"
	updated, err := ts.lessons.UpdateLesson(lesson.ID, LessonUpdateRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.InDelta(t, 0.33, reloadCourse(t, db, course.ID).TotalDurationHours, 1e-9)
}

func TestUpdateLessonRejectsNegativeDuration(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", false)
	lesson := addLesson(t, ts, course.ID, "A", 600, false)

	bad := -5.0
	_, err := ts.lessons.UpdateLesson(lesson.ID, LessonUpdateRequest{DurationSeconds: &bad})
	assert.ErrorIs(t, err, util.ErrInvalidDuration)
}

func TestSetVideoBackfillsLessonAndStats(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", false)
	lesson := addLesson(t, ts, course.ID, "A", 0, false)

	updated, err := ts.lessons.SetVideo(lesson.ID, "videos/a.mp4", "thumbnails/a.jpg", 3600)
	require.NoError(t, err)
	assert.Equal(t, "videos/a.mp4", updated.VideoURL)
	assert.Equal(t, "thumbnails/a.jpg", updated.Thumbnail)
	assert.InDelta(t, 3600, updated.DurationSeconds, 1e-9)
	assert.InDelta(t, 1.0, reloadCourse(t, db, course.ID).TotalDurationHours, 1e-9)

	// 重传视频但探测失败（时长 0、无缩略图）时保留旧值
	updated, err = ts.lessons.SetVideo(lesson.ID, "videos/b.mp4", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "videos/b.mp4", updated.VideoURL)
	assert.Equal(t, "thumbnails/a.jpg", updated.Thumbnail)
	assert.InDelta(t, 3600, updated.DurationSeconds, 1e-9)
}

func TestGetLessonPreviewIsPublic(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", true)
	lesson := addLesson(t, ts, course.ID, "Teaser", 60, true)

	got, err := ts.lessons.GetLesson(lesson.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, lesson.ID, got.ID)
}

func TestGetLessonRequiresActiveEnrollment(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", true)
	lesson := addLesson(t, ts, course.ID, "Locked", 60, false)

	_, err := ts.lessons.GetLesson(lesson.ID, nil)
	assert.ErrorIs(t, err, util.ErrEnrollmentRequired)

	stranger := createUser(t, db, "stranger@test.local", model.Student)
	_, err = ts.lessons.GetLesson(lesson.ID, claimsFor(stranger))
	assert.ErrorIs(t, err, util.ErrEnrollmentRequired)

	expired := createUser(t, db, "expired@test.local", model.Student)
	insertEnrollment(t, db, expired.ID, course.ID, time.Now().Add(-24*time.Hour))
	_, err = ts.lessons.GetLesson(lesson.ID, claimsFor(expired))
	assert.ErrorIs(t, err, util.ErrEnrollmentExpired)

	active := createUser(t, db, "active@test.local", model.Student)
	insertEnrollment(t, db, active.ID, course.ID, time.Now().Add(30*24*time.Hour))
	got, err := ts.lessons.GetLesson(lesson.ID, claimsFor(active))
	require.NoError(t, err)
	assert.Equal(t, lesson.ID, got.ID)
}

func TestGetLessonHiddenOnDraftCourse(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", false)
	lesson := addLesson(t, ts, course.ID, "Locked", 60, false)

	student := createUser(t, db, "student@test.local", model.Student)
	_, err := ts.lessons.GetLesson(lesson.ID, claimsFor(student))
	assert.ErrorIs(t, err, util.ErrLessonNotFound)

	_, err = ts.lessons.GetLesson(lesson.ID, nil)
	assert.ErrorIs(t, err, util.ErrLessonNotFound)

	admin := createUser(t, db, "admin@test.local", model.Admin)
	got, err := ts.lessons.GetLesson(lesson.ID, claimsFor(admin))
	require.NoError(t, err)
	assert.Equal(t, lesson.ID, got.ID)

	lessons, err := ts.lessons.ListByCourse(course.ID, claimsFor(admin))
	require.NoError(t, err)
	assert.Len(t, lessons, 1)
}

func TestListByCourseMasksLockedContent(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", true)

	_, err := ts.lessons.CreateLesson(course.ID, LessonCreateRequest{
		Title: "Teaser", DurationSeconds: 60, VideoURL: "videos/teaser.mp4", IsPreview: true,
	})
	require.NoError(t, err)
	locked, err := ts.lessons.CreateLesson(course.ID, LessonCreateRequest{
		Title: "Locked", DurationSeconds: 600, VideoURL: "videos/locked.mp4",
	})
	require.NoError(t, err)
	require.NoError(t, db.Create(&model.Material{LessonID: locked.ID, Title: "Slides", URL: "materials/slides.pdf"}).Error)

	// 游客只能看到试听课时的视频，其余被隐藏
	guestView, err := ts.lessons.ListByCourse(course.ID, nil)
	require.NoError(t, err)
	require.Len(t, guestView, 2)
	assert.Equal(t, "videos/teaser.mp4", guestView[0].VideoURL)
	assert.Empty(t, guestView[1].VideoURL)
	assert.Nil(t, guestView[1].Materials)

	student := createUser(t, db, "student@test.local", model.Student)
	insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(30*24*time.Hour))
	enrolledView, err := ts.lessons.ListByCourse(course.ID, claimsFor(student))
	require.NoError(t, err)
	assert.Equal(t, "videos/locked.mp4", enrolledView[1].VideoURL)
	assert.Len(t, enrolledView[1].Materials, 1)
}

func TestListBySlugResolvesCourse(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Intro to Go", true)
	addLesson(t, ts, course.ID, "A", 60, true)

	lessons, err := ts.lessons.ListBySlug("intro-to-go", nil)
	require.NoError(t, err)
	assert.Len(t, lessons, 1)

	_, err = ts.lessons.ListBySlug("no-such-course", nil)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}
