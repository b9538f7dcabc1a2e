package service

import (
	"testing"
	"time"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEnrollmentSetsValidityWindow(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	course := createCourse(t, ts, "Go Fundamentals", true)

	enrollment, err := ts.enrollments.Create(student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentActive, enrollment.State)
	assert.Equal(t, enrollment.CreatedAt.AddDate(0, 12, 0), enrollment.ExpiresAt)
}

func TestCreateEnrollmentRejectsDuplicateActive(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	course := createCourse(t, ts, "Go Fundamentals", true)

	// 历史已过期的报名不挡新报名
	insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(-time.Hour))
	_, err := ts.enrollments.Create(student.ID, course.ID)
	require.NoError(t, err)

	_, err = ts.enrollments.Create(student.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrEnrollmentExists)
}

func TestCreateEnrollmentValidatesTarget(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", true)
	draft := createCourse(t, ts, "Unreleased", false)
	student := createUser(t, db, "student@test.local", model.Student)
	admin := createUser(t, db, "admin@test.local", model.Admin)

	_, err := ts.enrollments.Create(admin.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	_, err = ts.enrollments.Create(student.ID, draft.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotPublished)

	_, err = ts.enrollments.Create(999, course.ID)
	assert.ErrorIs(t, err, util.ErrUserNotFound)

	_, err = ts.enrollments.Create(student.ID, 999)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestMarkCompleteByOwner(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	course := createCourse(t, ts, "Go Fundamentals", true)
	enrollment := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))

	completed, err := ts.enrollments.MarkComplete(enrollment.ID, claimsFor(student))
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentCompleted, completed.State)
	require.NotNil(t, reloadEnrollment(t, db, enrollment.ID).CompletedAt)

	_, err = ts.enrollments.MarkComplete(enrollment.ID, claimsFor(student))
	assert.ErrorIs(t, err, util.ErrAlreadyCompleted)
}

func TestMarkCompleteAfterExpiry(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	course := createCourse(t, ts, "Go Fundamentals", true)
	expired := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(-time.Hour))

	// 默认允许过期后补结课
	completed, err := ts.enrollments.MarkComplete(expired.ID, claimsFor(student))
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentCompleted, completed.State)

	ts.enrollments.Config.AllowCompleteAfterExpiry = false
	second := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(-time.Hour))
	_, err = ts.enrollments.MarkComplete(second.ID, claimsFor(student))
	assert.ErrorIs(t, err, util.ErrEnrollmentExpired)
}

func TestMarkCompleteAuthorization(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	stranger := createUser(t, db, "stranger@test.local", model.Student)
	admin := createUser(t, db, "admin@test.local", model.Admin)
	course := createCourse(t, ts, "Go Fundamentals", true)
	enrollment := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))

	_, err := ts.enrollments.MarkComplete(enrollment.ID, claimsFor(stranger))
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	// 管理员可以代学员结课
	_, err = ts.enrollments.MarkComplete(enrollment.ID, claimsFor(admin))
	require.NoError(t, err)
}

func TestMarkCompleteCancelledIsTerminal(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	course := createCourse(t, ts, "Go Fundamentals", true)
	enrollment := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))

	_, err := ts.enrollments.Cancel(enrollment.ID)
	require.NoError(t, err)

	_, err = ts.enrollments.MarkComplete(enrollment.ID, claimsFor(student))
	assert.ErrorIs(t, err, util.ErrEnrollmentCancelled)
}

func TestExtendReactivatesExpired(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	course := createCourse(t, ts, "Go Fundamentals", true)
	oldExpiry := time.Now().Add(-time.Hour)
	enrollment := insertEnrollment(t, db, student.ID, course.ID, oldExpiry)

	extended, err := ts.enrollments.Extend(enrollment.ID, 30)
	require.NoError(t, err)
	// 延期后状态重新推导，过期报名自动恢复
	assert.Equal(t, model.EnrollmentActive, extended.State)
	assert.WithinDuration(t, oldExpiry.AddDate(0, 0, 30), reloadEnrollment(t, db, enrollment.ID).ExpiresAt, time.Second)
}

func TestExtendAccumulatesFromCurrentExpiry(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	course := createCourse(t, ts, "Go Fundamentals", true)
	expiry := time.Now().Add(10 * 24 * time.Hour)
	enrollment := insertEnrollment(t, db, student.ID, course.ID, expiry)

	_, err := ts.enrollments.Extend(enrollment.ID, 5)
	require.NoError(t, err)
	assert.WithinDuration(t, expiry.AddDate(0, 0, 5), reloadEnrollment(t, db, enrollment.ID).ExpiresAt, time.Second)
}

func TestExtendRejectsInvalidInput(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	course := createCourse(t, ts, "Go Fundamentals", true)
	enrollment := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))

	_, err := ts.enrollments.Extend(enrollment.ID, 0)
	assert.ErrorIs(t, err, util.ErrInvalidDuration)
	_, err = ts.enrollments.Extend(enrollment.ID, -7)
	assert.ErrorIs(t, err, util.ErrInvalidDuration)
	_, err = ts.enrollments.Extend(999, 30)
	assert.ErrorIs(t, err, util.ErrEnrollmentNotFound)
}

func TestExtendRejectsTerminalStates(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	course := createCourse(t, ts, "Go Fundamentals", true)

	completed := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))
	_, err := ts.enrollments.MarkComplete(completed.ID, claimsFor(student))
	require.NoError(t, err)
	_, err = ts.enrollments.Extend(completed.ID, 30)
	assert.ErrorIs(t, err, util.ErrAlreadyCompleted)

	cancelled := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))
	_, err = ts.enrollments.Cancel(cancelled.ID)
	require.NoError(t, err)
	_, err = ts.enrollments.Extend(cancelled.ID, 30)
	assert.ErrorIs(t, err, util.ErrEnrollmentCancelled)
}

func TestCancelEnrollment(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	course := createCourse(t, ts, "Go Fundamentals", true)
	enrollment := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))

	cancelled, err := ts.enrollments.Cancel(enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentCancelled, cancelled.State)
	require.NotNil(t, reloadEnrollment(t, db, enrollment.ID).CancelledAt)

	_, err = ts.enrollments.Cancel(enrollment.ID)
	assert.ErrorIs(t, err, util.ErrEnrollmentCancelled)

	done := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))
	_, err = ts.enrollments.MarkComplete(done.ID, claimsFor(student))
	require.NoError(t, err)
	_, err = ts.enrollments.Cancel(done.ID)
	assert.ErrorIs(t, err, util.ErrAlreadyCompleted)
}

func TestAccessStateResolution(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", true)

	nobody := createUser(t, db, "nobody@test.local", model.Student)
	granted, state, err := ts.enrollments.AccessState(nobody.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Empty(t, state)

	active := createUser(t, db, "active@test.local", model.Student)
	insertEnrollment(t, db, active.ID, course.ID, time.Now().Add(24*time.Hour))
	granted, state, err = ts.enrollments.AccessState(active.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, model.EnrollmentActive, state)

	// 已完成的报名不受过期时间影响，永久授权
	finisher := createUser(t, db, "finisher@test.local", model.Student)
	done := insertEnrollment(t, db, finisher.ID, course.ID, time.Now().Add(-time.Hour))
	now := time.Now()
	require.NoError(t, db.Model(&model.Enrollment{}).
		Where("id = ?", done.ID).Update("completed_at", now).Error)
	granted, state, err = ts.enrollments.AccessState(finisher.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, model.EnrollmentCompleted, state)

	lapsed := createUser(t, db, "lapsed@test.local", model.Student)
	insertEnrollment(t, db, lapsed.ID, course.ID, time.Now().Add(-time.Hour))
	granted, state, err = ts.enrollments.AccessState(lapsed.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, model.EnrollmentExpired, state)

	quitter := createUser(t, db, "quitter@test.local", model.Student)
	withdrawn := insertEnrollment(t, db, quitter.ID, course.ID, time.Now().Add(24*time.Hour))
	_, err = ts.enrollments.Cancel(withdrawn.ID)
	require.NoError(t, err)
	granted, state, err = ts.enrollments.AccessState(quitter.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, model.EnrollmentCancelled, state)

	// 既有已取消又有已过期的报名时，回退状态优先报告 EXPIRED
	insertEnrollment(t, db, quitter.ID, course.ID, time.Now().Add(-time.Hour))
	granted, state, err = ts.enrollments.AccessState(quitter.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, model.EnrollmentExpired, state)
}

func TestEnsureAccess(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	course := createCourse(t, ts, "Go Fundamentals", true)

	stranger := createUser(t, db, "stranger@test.local", model.Student)
	assert.ErrorIs(t, ts.enrollments.EnsureAccess(stranger.ID, course.ID), util.ErrEnrollmentRequired)

	lapsed := createUser(t, db, "lapsed@test.local", model.Student)
	insertEnrollment(t, db, lapsed.ID, course.ID, time.Now().Add(-time.Hour))
	assert.ErrorIs(t, ts.enrollments.EnsureAccess(lapsed.ID, course.ID), util.ErrEnrollmentExpired)

	active := createUser(t, db, "active@test.local", model.Student)
	insertEnrollment(t, db, active.ID, course.ID, time.Now().Add(24*time.Hour))
	assert.NoError(t, ts.enrollments.EnsureAccess(active.ID, course.ID))
}

func TestGetEnrollmentAuthorization(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	stranger := createUser(t, db, "stranger@test.local", model.Student)
	admin := createUser(t, db, "admin@test.local", model.Admin)
	course := createCourse(t, ts, "Go Fundamentals", true)
	enrollment := insertEnrollment(t, db, student.ID, course.ID, time.Now().Add(24*time.Hour))

	got, err := ts.enrollments.Get(enrollment.ID, claimsFor(student))
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentActive, got.State)
	require.NotNil(t, got.Course)
	assert.Equal(t, course.ID, got.Course.ID)

	_, err = ts.enrollments.Get(enrollment.ID, claimsFor(admin))
	require.NoError(t, err)

	_, err = ts.enrollments.Get(enrollment.ID, claimsFor(stranger))
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	_, err = ts.enrollments.Get(999, claimsFor(admin))
	assert.ErrorIs(t, err, util.ErrEnrollmentNotFound)
}

func TestListMinePaginatesAndAnnotates(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	student := createUser(t, db, "student@test.local", model.Student)
	courseA := createCourse(t, ts, "Course A", true)
	courseB := createCourse(t, ts, "Course B", true)
	courseC := createCourse(t, ts, "Course C", true)

	insertEnrollment(t, db, student.ID, courseA.ID, time.Now().Add(24*time.Hour))
	insertEnrollment(t, db, student.ID, courseB.ID, time.Now().Add(-time.Hour))
	insertEnrollment(t, db, student.ID, courseC.ID, time.Now().Add(24*time.Hour))

	page1, total, err := ts.enrollments.ListMine(student.ID, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page1, 2)
	// 最新的在前
	assert.Equal(t, courseC.ID, page1[0].CourseID)
	assert.Equal(t, model.EnrollmentActive, page1[0].State)
	assert.Equal(t, model.EnrollmentExpired, page1[1].State)
	require.NotNil(t, page1[0].Course)

	page2, _, err := ts.enrollments.ListMine(student.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, courseA.ID, page2[0].CourseID)
}

func TestListEnrollmentsFilters(t *testing.T) {
	db := setupTestDB(t)
	ts := newTestServices(db)
	alice := createUser(t, db, "alice@test.local", model.Student)
	bob := createUser(t, db, "bob@test.local", model.Student)
	courseA := createCourse(t, ts, "Course A", true)
	courseB := createCourse(t, ts, "Course B", true)

	insertEnrollment(t, db, alice.ID, courseA.ID, time.Now().Add(24*time.Hour))
	insertEnrollment(t, db, alice.ID, courseB.ID, time.Now().Add(24*time.Hour))
	insertEnrollment(t, db, bob.ID, courseA.ID, time.Now().Add(24*time.Hour))

	_, total, err := ts.enrollments.List(1, 10, repository.EnrollmentFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	mine, total, err := ts.enrollments.List(1, 10, repository.EnrollmentFilter{UserID: alice.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for i := range mine {
		assert.Equal(t, alice.ID, mine[i].UserID)
		require.NotNil(t, mine[i].User)
	}

	_, total, err = ts.enrollments.List(1, 10, repository.EnrollmentFilter{CourseID: courseA.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}
