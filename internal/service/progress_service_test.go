package service

import (
	"testing"
	"time"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateProgressOverwrites(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	course := createCourse(t, ts, "Go Fundamentals", true)
	lessonA := addLesson(t, ts, course.ID, "A", 600, false)
	lessonB := addLesson(t, ts, course.ID, "B", 600, false)
	enrollment := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))

	updated, err := ts.progress.UpdateProgress(enrollment.ID, claimsFor(student), lessonA.ID, 120.5)
	require.NoError(t, err)
	require.NotNil(t, updated.LastAccessedLessonID)
	assert.Equal(t, lessonA.ID, *updated.LastAccessedLessonID)
	assert.InDelta(t, 120.5, updated.LastVideoPositionSeconds, 1e-9)
	assert.NotNil(t, updated.LastAccessedAt)
	assert.Equal(t, model.EnrollmentActive, updated.State)

	// 覆盖写：后一次上报直接取代前一次
	_, err = ts.progress.UpdateProgress(enrollment.ID, claimsFor(student), lessonB.ID, 42)
	require.NoError(t, err)
	reloaded := reloadEnrollment(t, db, enrollment.ID)
	require.NotNil(t, reloaded.LastAccessedLessonID)
	assert.Equal(t, lessonB.ID, *reloaded.LastAccessedLessonID)
	assert.InDelta(t, 42, reloaded.LastVideoPositionSeconds, 1e-9)
}

func TestUpdateProgressRejectsNegativePosition(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	course := createCourse(t, ts, "Go Fundamentals", true)
	lesson := addLesson(t, ts, course.ID, "A", 600, false)
	enrollment := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))

	_, err := ts.progress.UpdateProgress(enrollment.ID, claimsFor(student), lesson.ID, -1)
	assert.ErrorIs(t, err, util.ErrInvalidPosition)
}

func TestUpdateProgressOwnerOnly(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	stranger := createUser(t, db, "stranger@test.local", model.Student)
	admin := createUser(t, db, "admin@test.local", model.Admin)
	course := createCourse(t, ts, "Go Fundamentals", true)
	lesson := addLesson(t, ts, course.ID, "A", 600, false)
	enrollment := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))

	_, err := ts.progress.UpdateProgress(enrollment.ID, claimsFor(stranger), lesson.ID, 10)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	// 进度归学员本人，管理员也不能代写
	_, err = ts.progress.UpdateProgress(enrollment.ID, claimsFor(admin), lesson.ID, 10)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestUpdateProgressLifecycleGates(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	course := createCourse(t, ts, "Go Fundamentals", true)
	lesson := addLesson(t, ts, course.ID, "A", 600, false)

	expired := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(-time.Hour))
	_, err := ts.progress.UpdateProgress(expired.ID, claimsFor(student), lesson.ID, 10)
	assert.ErrorIs(t, err, util.ErrEnrollmentExpired)

	cancelled := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))
	_, err = ts.enrollments.Cancel(cancelled.ID)
	require.NoError(t, err)
	_, err = ts.progress.UpdateProgress(cancelled.ID, claimsFor(student), lesson.ID, 10)
	assert.ErrorIs(t, err, util.ErrEnrollmentCancelled)

	// 已完成的学员可以继续回看并记录进度
	completed := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))
	_, err = ts.enrollments.MarkComplete(completed.ID, claimsFor(student))
	require.NoError(t, err)
	_, err = ts.progress.UpdateProgress(completed.ID, claimsFor(student), lesson.ID, 10)
	assert.NoError(t, err)
}

func TestUpdateProgressValidatesLesson(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	course := createCourse(t, ts, "Go Fundamentals", true)
	other := createCourse(t, ts, "Other Course", true)
	foreign := addLesson(t, ts, other.ID, "Foreign", 600, false)
	enrollment := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))

	_, err := ts.progress.UpdateProgress(enrollment.ID, claimsFor(student), foreign.ID, 10)
	assert.ErrorIs(t, err, util.ErrLessonNotInCourse)

	_, err = ts.progress.UpdateProgress(enrollment.ID, claimsFor(student), 999, 10)
	assert.ErrorIs(t, err, util.ErrLessonNotFound)

	_, err = ts.progress.UpdateProgress(999, claimsFor(student), foreign.ID, 10)
	assert.ErrorIs(t, err, util.ErrEnrollmentNotFound)
}

func TestProgressMarkCompleteDelegates(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	course := createCourse(t, ts, "Go Fundamentals", true)
	enrollment := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))

	completed, err := ts.progress.MarkComplete(enrollment.ID, claimsFor(student))
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentCompleted, completed.State)
	require.NotNil(t, reloadEnrollment(t, db, enrollment.ID).CompletedAt)
}
