package util

import "errors"

var (
	ErrUserNotFound        = errors.New("用户不存在")
	ErrEmailRegistered     = errors.New("该邮箱已被注册")
	ErrUserDisabled        = errors.New("账号已被禁用")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrCourseNotFound      = errors.New("课程不存在")
	ErrCourseNotPublished  = errors.New("course not published")
	ErrLessonNotFound      = errors.New("课时不存在")
	ErrLessonNotInCourse   = errors.New("lesson does not belong to this course")
	ErrMaterialNotFound    = errors.New("material not found")
	ErrInvalidOrder        = errors.New("invalid lesson order")
	ErrInvalidPosition     = errors.New("invalid playback position")
	ErrInvalidDuration     = errors.New("invalid duration")
	ErrEnrollmentNotFound  = errors.New("报名记录不存在")
	ErrEnrollmentExists    = errors.New("该学员已有生效中的报名")
	ErrEnrollmentExpired   = errors.New("报名已过期")
	ErrEnrollmentRequired  = errors.New("enrollment required")
	ErrAlreadyCompleted    = errors.New("enrollment already completed")
	ErrEnrollmentCancelled = errors.New("enrollment cancelled")
	ErrUploadNotFound      = errors.New("upload session not found")
	ErrInvalidChunk        = errors.New("分块参数无效")
	ErrInvalidVideoExt     = errors.New("不支持的视频格式")
	ErrInvalidImageExt     = errors.New("不支持的图片格式")
	ErrFileTooLarge        = errors.New("文件过大")
)
