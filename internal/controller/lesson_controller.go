package controller

import (
	"errors"
	"strconv"

	"course_platform_backend/internal/service"
	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// LessonController 课时大纲的增删改与排序
type LessonController struct {
	LessonService *service.LessonService
}

func NewLessonController(lessonService *service.LessonService) *LessonController {
	return &LessonController{LessonService: lessonService}
}

// CreateLesson godoc
// @Summary 创建课时
// @Description 在课程大纲末尾追加一个课时
// @Tags 课时管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   body body service.LessonCreateRequest true "课时信息"
// @Success 201 {object} util.Response{data=model.Lesson} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /admin/courses/{id}/lessons [post]
func (c *LessonController) CreateLesson(ctx *gin.Context) {
	courseID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的课程ID")
		return
	}

	var req service.LessonCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lesson, err := c.LessonService.CreateLesson(uint(courseID), req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInvalidDuration):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, lesson)
}

// ListCourseLessons godoc
// @Summary 获取课程的课时列表（管理端）
// @Description 按排序位置升序返回课程的全部课时
// @Tags 课时管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]model.Lesson} "成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /admin/courses/{id}/lessons [get]
func (c *LessonController) ListCourseLessons(ctx *gin.Context) {
	courseID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的课程ID")
		return
	}

	lessons, err := c.LessonService.ListByCourse(uint(courseID), util.GetUserFromContext(ctx))
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, lessons)
}

// ListLessonsBySlug godoc
// @Summary 获取课程的课时列表
// @Description 按排序位置升序返回课时。未报名的查看者只能看到试听课时的视频与附件
// @Tags 课时
// @Accept  json
// @Produce  json
// @Param   slug path string true "课程 slug"
// @Success 200 {object} util.Response{data=[]model.Lesson} "成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /courses/{slug}/lessons [get]
func (c *LessonController) ListLessonsBySlug(ctx *gin.Context) {
	lessons, err := c.LessonService.ListBySlug(ctx.Param("slug"), util.GetUserFromContext(ctx))
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, lessons)
}

// GetLesson godoc
// @Summary 获取课时详情
// @Description 试听课时公开可见；其余课时需要有效报名或管理员身份
// @Tags 课时
// @Accept  json
// @Produce  json
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response{data=model.Lesson} "成功"
// @Failure 403 {object} util.Response "需要报名 / 报名已过期"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /lessons/{id} [get]
func (c *LessonController) GetLesson(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的课时ID")
		return
	}

	lesson, err := c.LessonService.GetLesson(uint(id), util.GetUserFromContext(ctx))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound), errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrEnrollmentExpired):
			util.Error(ctx, 403, util.ErrEnrollmentExpired.Error())
		case errors.Is(err, util.ErrEnrollmentRequired):
			util.Error(ctx, 403, util.ErrEnrollmentRequired.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, lesson)
}

// UpdateLesson godoc
// @Summary 更新课时信息
// @Description 更新课时标题、简介、时长或试听标记，时长变化会触发课程统计重算
// @Tags 课时管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Param   body body service.LessonUpdateRequest true "课时更新信息"
// @Success 200 {object} util.Response{data=model.Lesson} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /admin/lessons/{id} [put]
func (c *LessonController) UpdateLesson(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的课时ID")
		return
	}

	var req service.LessonUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lesson, err := c.LessonService.UpdateLesson(uint(id), req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInvalidDuration):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, lesson)
}

// ReorderRequest 课时排序请求
// swagger:model ReorderRequest
type ReorderRequest struct {
	Order int `json:"order" binding:"required"`
}

// ReorderLesson godoc
// @Summary 移动课时位置
// @Description 将课时移动到指定位置并整体重排，目标位置超出课时总数时移动到末位
// @Tags 课时管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Param   body body ReorderRequest true "目标位置，从 1 开始"
// @Success 200 {object} util.Response{data=[]model.Lesson} "重排后的课时列表"
// @Failure 400 {object} util.Response "目标位置无效"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /admin/lessons/{id}/order [put]
func (c *LessonController) ReorderLesson(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的课时ID")
		return
	}

	var req ReorderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lessons, err := c.LessonService.ReorderLesson(uint(id), req.Order)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInvalidOrder):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, lessons)
}

// DeleteLesson godoc
// @Summary 删除课时
// @Description 删除课时及其附件，后续课时自动前移补位
// @Tags 课时管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response{data=[]model.Lesson} "重排后的剩余课时列表"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /admin/lessons/{id} [delete]
func (c *LessonController) DeleteLesson(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的课时ID")
		return
	}

	lessons, err := c.LessonService.DeleteLesson(uint(id))
	if err != nil {
		if errors.Is(err, util.ErrLessonNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, lessons)
}
