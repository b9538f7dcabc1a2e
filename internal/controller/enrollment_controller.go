package controller

import (
	"errors"
	"strconv"

	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/service"
	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// EnrollmentController 报名生命周期与学习进度上报
type EnrollmentController struct {
	EnrollmentService *service.EnrollmentService
	ProgressService   *service.ProgressService
}

func NewEnrollmentController(enrollmentService *service.EnrollmentService, progressService *service.ProgressService) *EnrollmentController {
	return &EnrollmentController{
		EnrollmentService: enrollmentService,
		ProgressService:   progressService,
	}
}

// EnrollmentCreateRequest 创建报名请求
// swagger:model EnrollmentCreateRequest
type EnrollmentCreateRequest struct {
	UserID   uint `json:"user_id" binding:"required"`
	CourseID uint `json:"course_id" binding:"required"`
}

// CreateEnrollment godoc
// @Summary 创建报名
// @Description 管理员为学员开通课程访问权，有效期从当前时间起按配置的月数计算。同一学员对同一课程同时只能有一条生效中的报名
// @Tags 报名管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body EnrollmentCreateRequest true "学员与课程"
// @Success 201 {object} util.Response{data=model.Enrollment} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "学员或课程不存在"
// @Failure 409 {object} util.Response "已有生效中的报名 / 课程未上架"
// @Router /admin/enrollments [post]
func (c *EnrollmentController) CreateEnrollment(ctx *gin.Context) {
	var req EnrollmentCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	enrollment, err := c.EnrollmentService.Create(req.UserID, req.CourseID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrUserNotFound), errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrEnrollmentExists):
			util.Conflict(ctx, util.ErrEnrollmentExists.Error())
		case errors.Is(err, util.ErrCourseNotPublished):
			util.Conflict(ctx, util.ErrCourseNotPublished.Error())
		case errors.Is(err, util.ErrPermissionDenied):
			util.BadRequest(ctx, "只能为学员账号创建报名")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, enrollment)
}

// ListEnrollments godoc
// @Summary 获取报名列表（管理端）
// @Description 分页查询报名记录，可按学员或课程筛选，附带推导状态
// @Tags 报名管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页条数" default(10)
// @Param   user_id query int false "学员ID筛选"
// @Param   course_id query int false "课程ID筛选"
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]model.Enrollment}} "成功"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /admin/enrollments [get]
func (c *EnrollmentController) ListEnrollments(ctx *gin.Context) {
	page, limit := util.ParsePagination(ctx)

	filter := repository.EnrollmentFilter{
		UserID:   util.MustParseUint(ctx.Query("user_id")),
		CourseID: util.MustParseUint(ctx.Query("course_id")),
	}

	enrollments, total, err := c.EnrollmentService.List(page, limit, filter)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  enrollments,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// ListMyEnrollments godoc
// @Summary 获取我的报名
// @Description 当前学员的报名列表，每条附带推导出的状态与最近学习位置
// @Tags 报名
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页条数" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]model.Enrollment}} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /my/enrollments [get]
func (c *EnrollmentController) ListMyEnrollments(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	page, limit := util.ParsePagination(ctx)

	enrollments, total, err := c.EnrollmentService.ListMine(claims.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  enrollments,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetEnrollment godoc
// @Summary 获取报名详情
// @Description 查看单条报名及其推导状态，仅本人或管理员可见
// @Tags 报名
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "报名ID"
// @Success 200 {object} util.Response{data=model.Enrollment} "成功"
// @Failure 403 {object} util.Response "无权限"
// @Failure 404 {object} util.Response "报名记录不存在"
// @Router /enrollments/{id} [get]
func (c *EnrollmentController) GetEnrollment(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的报名ID")
		return
	}

	enrollment, err := c.EnrollmentService.Get(uint(id), claims)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrEnrollmentNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, enrollment)
}

// ProgressRequest 学习进度上报
// swagger:model ProgressRequest
type ProgressRequest struct {
	LessonID        uint    `json:"lesson_id" binding:"required"`
	PositionSeconds float64 `json:"position_seconds"`
}

// UpdateProgress godoc
// @Summary 上报学习进度
// @Description 覆盖写最近观看的课时与播放位置。课时必须属于报名的课程，已过期或已取消的报名不能上报
// @Tags 报名
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "报名ID"
// @Param   body body ProgressRequest true "课时与播放位置（秒）"
// @Success 200 {object} util.Response{data=model.Enrollment} "成功"
// @Failure 400 {object} util.Response "播放位置或课时无效"
// @Failure 403 {object} util.Response "非本人报名 / 报名已过期"
// @Failure 404 {object} util.Response "报名或课时不存在"
// @Router /enrollments/{id}/progress [put]
func (c *EnrollmentController) UpdateProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的报名ID")
		return
	}

	var req ProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	enrollment, err := c.ProgressService.UpdateProgress(uint(id), claims, req.LessonID, req.PositionSeconds)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrEnrollmentNotFound), errors.Is(err, util.ErrLessonNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		case errors.Is(err, util.ErrInvalidPosition), errors.Is(err, util.ErrLessonNotInCourse):
			util.BadRequest(ctx, err.Error())
		case errors.Is(err, util.ErrEnrollmentExpired):
			util.Error(ctx, 403, util.ErrEnrollmentExpired.Error())
		case errors.Is(err, util.ErrEnrollmentCancelled):
			util.Error(ctx, 403, util.ErrEnrollmentCancelled.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, enrollment)
}

// CompleteEnrollment godoc
// @Summary 标记完成
// @Description 将报名标记为已完成。已完成是终态，完成后的访问权不受有效期影响
// @Tags 报名
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "报名ID"
// @Success 200 {object} util.Response{data=model.Enrollment} "成功"
// @Failure 403 {object} util.Response "非本人报名 / 报名已过期"
// @Failure 404 {object} util.Response "报名记录不存在"
// @Failure 409 {object} util.Response "已完成或已取消"
// @Router /enrollments/{id}/complete [post]
func (c *EnrollmentController) CompleteEnrollment(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的报名ID")
		return
	}

	enrollment, err := c.ProgressService.MarkComplete(uint(id), claims)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrEnrollmentNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		case errors.Is(err, util.ErrAlreadyCompleted), errors.Is(err, util.ErrEnrollmentCancelled):
			util.Conflict(ctx, err.Error())
		case errors.Is(err, util.ErrEnrollmentExpired):
			util.Error(ctx, 403, util.ErrEnrollmentExpired.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, enrollment)
}

// ExtendRequest 延长有效期请求
// swagger:model ExtendRequest
type ExtendRequest struct {
	Days int `json:"days" binding:"required,min=1"`
}

// ExtendEnrollment godoc
// @Summary 延长报名有效期
// @Description 在当前到期时间上追加天数，已过期的报名延期后自动恢复生效
// @Tags 报名管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "报名ID"
// @Param   body body ExtendRequest true "追加的天数"
// @Success 200 {object} util.Response{data=model.Enrollment} "成功"
// @Failure 400 {object} util.Response "天数无效"
// @Failure 404 {object} util.Response "报名记录不存在"
// @Failure 409 {object} util.Response "已完成或已取消"
// @Router /admin/enrollments/{id}/extend [post]
func (c *EnrollmentController) ExtendEnrollment(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的报名ID")
		return
	}

	var req ExtendRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	enrollment, err := c.EnrollmentService.Extend(uint(id), req.Days)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrEnrollmentNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInvalidDuration):
			util.BadRequest(ctx, err.Error())
		case errors.Is(err, util.ErrAlreadyCompleted), errors.Is(err, util.ErrEnrollmentCancelled):
			util.Conflict(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, enrollment)
}

// CancelEnrollment godoc
// @Summary 取消报名
// @Description 撤销报名并立即回收课程访问权，取消是终态
// @Tags 报名管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "报名ID"
// @Success 200 {object} util.Response{data=model.Enrollment} "成功"
// @Failure 404 {object} util.Response "报名记录不存在"
// @Failure 409 {object} util.Response "已完成或已取消"
// @Router /admin/enrollments/{id}/cancel [post]
func (c *EnrollmentController) CancelEnrollment(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的报名ID")
		return
	}

	enrollment, err := c.EnrollmentService.Cancel(uint(id))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrEnrollmentNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrAlreadyCompleted), errors.Is(err, util.ErrEnrollmentCancelled):
			util.Conflict(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, enrollment)
}
