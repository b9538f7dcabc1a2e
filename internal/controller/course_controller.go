package controller

import (
	"errors"
	"strconv"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/service"
	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// CourseController 处理课程目录相关的HTTP请求
type CourseController struct {
	CourseService *service.CourseService
}

func NewCourseController(courseService *service.CourseService) *CourseController {
	return &CourseController{CourseService: courseService}
}

// ListCourses godoc
// @Summary 获取课程列表
// @Description 获取课程列表，支持分页、关键词与难度筛选。匿名与学员只能看到已上架课程，管理员可通过 include_unpublished 查看全部
// @Tags 课程
// @Accept  json
// @Produce  json
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页条数" default(10)
// @Param   search query string false "标题关键词"
// @Param   level query string false "难度筛选" Enums(beginner, intermediate, advanced)
// @Param   status query string false "状态筛选（仅管理员）" Enums(DRAFT, PUBLISHED)
// @Param   include_unpublished query bool false "包含未上架课程（仅管理员）"
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]model.Course}} "成功"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	page, limit := util.ParsePagination(ctx)

	filter := repository.CourseFilter{
		Search: ctx.Query("search"),
		Level:  ctx.Query("level"),
	}

	viewer := util.GetUserFromContext(ctx)
	if viewer != nil && viewer.Role.IsAdmin() {
		filter.IncludeUnpublished = ctx.Query("include_unpublished") == "true"
		filter.Status = ctx.Query("status")
	}

	courses, total, err := c.CourseService.ListCourses(page, limit, filter)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  courses,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetCourse godoc
// @Summary 获取课程详情
// @Description 按 slug 获取课程详情及课时大纲。未报名的查看者只能看到试听课时的视频与附件
// @Tags 课程
// @Accept  json
// @Produce  json
// @Param   slug path string true "课程 slug"
// @Success 200 {object} util.Response{data=service.CourseDetail} "成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /courses/{slug} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	slug := ctx.Param("slug")
	viewer := util.GetUserFromContext(ctx)

	detail, err := c.CourseService.GetCourseBySlug(slug, viewer)
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, detail)
}

// CreateCourse godoc
// @Summary 创建课程
// @Description 创建一门草稿状态的课程，slug 由标题自动生成
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CourseCreateRequest true "课程信息"
// @Success 201 {object} util.Response{data=model.Course} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "未授权"
// @Failure 403 {object} util.Response "无权限"
// @Router /admin/courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.CourseCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.CreateCourse(claims.UserID, req)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, course)
}

// UpdateCourse godoc
// @Summary 更新课程信息
// @Description 更新课程标题、简介或难度，修改标题会重新生成 slug
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   body body service.CourseUpdateRequest true "课程更新信息"
// @Success 200 {object} util.Response{data=model.Course} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /admin/courses/{id} [put]
func (c *CourseController) UpdateCourse(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的课程ID")
		return
	}

	var req service.CourseUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.UpdateCourse(uint(id), req)
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, course)
}

// CourseStatusRequest 上下架请求
// swagger:model CourseStatusRequest
type CourseStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=DRAFT PUBLISHED"`
}

// SetCourseStatus godoc
// @Summary 上架/下架课程
// @Description 切换课程状态，首次上架时记录发布时间
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   body body CourseStatusRequest true "目标状态"
// @Success 200 {object} util.Response{data=model.Course} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /admin/courses/{id}/status [put]
func (c *CourseController) SetCourseStatus(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的课程ID")
		return
	}

	var req CourseStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.SetStatus(uint(id), model.CourseStatus(req.Status))
	if err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, course)
}

// DeleteCourse godoc
// @Summary 删除课程
// @Description 管理员删除为软删除，可恢复；超级管理员删除为物理删除并级联清理课时与附件
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /admin/courses/{id} [delete]
func (c *CourseController) DeleteCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的课程ID")
		return
	}

	if err := c.CourseService.DeleteCourse(uint(id), claims.Role); err != nil {
		if errors.Is(err, util.ErrCourseNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"message": "课程已删除"})
}
