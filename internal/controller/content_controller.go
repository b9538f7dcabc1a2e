package controller

import (
	"errors"
	"strconv"

	"course_platform_backend/internal/service"
	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ContentController 封面、课时视频与附件的上传接口
type ContentController struct {
	ContentService *service.ContentService
}

func NewContentController(contentService *service.ContentService) *ContentController {
	return &ContentController{ContentService: contentService}
}

// UploadCover godoc
// @Summary 上传课程封面
// @Description 上传课程封面图片，仅支持常见图片格式，不超过 5MB
// @Tags 内容管理
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   file formData file true "封面图片"
// @Success 200 {object} util.Response{data=model.Course} "成功"
// @Failure 400 {object} util.Response "文件格式或大小不合法"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /admin/courses/{id}/cover [post]
func (c *ContentController) UploadCover(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的课程ID")
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少文件")
		return
	}

	course, err := c.ContentService.UploadCover(ctx, uint(id), file)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInvalidImageExt), errors.Is(err, util.ErrFileTooLarge):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, course)
}

// UploadLessonVideo godoc
// @Summary 上传课时视频
// @Description 单次上传课时视频，服务端自动生成缩略图并探测时长，时长计入课程统计
// @Tags 内容管理
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Param   file formData file true "视频文件"
// @Success 200 {object} util.Response{data=model.Lesson} "成功"
// @Failure 400 {object} util.Response "视频格式不合法"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /admin/lessons/{id}/video [post]
func (c *ContentController) UploadLessonVideo(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的课时ID")
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少文件")
		return
	}

	lesson, err := c.ContentService.UploadLessonVideo(ctx, uint(id), file)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInvalidVideoExt):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, lesson)
}

// InitChunkedUploadRequest 初始化分块上传请求
// swagger:model InitChunkedUploadRequest
type InitChunkedUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	TotalChunks int    `json:"total_chunks" binding:"required,min=1"`
}

// InitChunkedUpload godoc
// @Summary 初始化分块上传
// @Description 为大视频文件创建分块上传会话，返回上传标识。会话 24 小时内有效
// @Tags 内容管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Param   body body InitChunkedUploadRequest true "文件名与分块总数"
// @Success 201 {object} util.Response{data=model.UploadProgress} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /admin/lessons/{id}/video/chunked [post]
func (c *ContentController) InitChunkedUpload(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的课时ID")
		return
	}

	var req InitChunkedUploadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	progress, err := c.ContentService.InitChunkedUpload(ctx, uint(id), req.Filename, req.TotalChunks)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrLessonNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInvalidVideoExt), errors.Is(err, util.ErrInvalidChunk):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, progress)
}

// UploadVideoChunk godoc
// @Summary 上传视频分块
// @Description 上传单个分块。全部分块到位后服务端自动合并、生成缩略图、探测时长并回写课时
// @Tags 内容管理
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   identifier formData string true "上传标识"
// @Param   chunk_number formData int true "分块序号，从 1 开始"
// @Param   file formData file true "分块内容"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "分块参数无效"
// @Failure 404 {object} util.Response "上传任务不存在或已过期"
// @Router /admin/uploads/chunk [post]
func (c *ContentController) UploadVideoChunk(ctx *gin.Context) {
	identifier := ctx.PostForm("identifier")
	chunkNumber, err := strconv.Atoi(ctx.PostForm("chunk_number"))
	if identifier == "" || err != nil {
		util.BadRequest(ctx, "缺少上传标识或分块序号")
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少分块内容")
		return
	}

	progress, lesson, err := c.ContentService.UploadVideoChunk(ctx, identifier, chunkNumber, file)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrUploadNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInvalidChunk):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	resp := gin.H{
		"identifier": progress.Identifier,
		"uploaded":   progress.UploadedChunks,
		"total":      progress.TotalChunks,
		"percent":    progress.Percent(),
		"completed":  lesson != nil,
	}
	if lesson != nil {
		resp["lesson"] = lesson
	}
	util.Success(ctx, resp)
}

// GetUploadProgress godoc
// @Summary 查询分块上传进度
// @Tags 内容管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   identifier path string true "上传标识"
// @Success 200 {object} util.Response{data=model.UploadProgress} "成功"
// @Failure 404 {object} util.Response "上传任务不存在或已过期"
// @Router /admin/uploads/{identifier} [get]
func (c *ContentController) GetUploadProgress(ctx *gin.Context) {
	progress, err := c.ContentService.GetUploadProgress(ctx.Param("identifier"))
	if err != nil {
		if errors.Is(err, util.ErrUploadNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, progress)
}

// AddMaterial godoc
// @Summary 上传课时附件
// @Description 为课时上传讲义、代码包等附件，标题缺省时使用原始文件名
// @Tags 内容管理
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Param   title formData string false "附件标题"
// @Param   file formData file true "附件文件"
// @Success 201 {object} util.Response{data=model.Material} "创建成功"
// @Failure 400 {object} util.Response "文件内容不合法"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /admin/lessons/{id}/materials [post]
func (c *ContentController) AddMaterial(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的课时ID")
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少文件")
		return
	}

	material, err := c.ContentService.AddMaterial(ctx, uint(id), ctx.PostForm("title"), file)
	if err != nil {
		if errors.Is(err, util.ErrLessonNotFound) {
			util.NotFound(ctx)
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}

	util.Created(ctx, material)
}

// ListMaterials godoc
// @Summary 获取课时附件列表（管理端）
// @Tags 内容管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response{data=[]model.Material} "成功"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /admin/lessons/{id}/materials [get]
func (c *ContentController) ListMaterials(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的课时ID")
		return
	}

	materials, err := c.ContentService.ListMaterials(uint(id))
	if err != nil {
		if errors.Is(err, util.ErrLessonNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, materials)
}

// DeleteMaterial godoc
// @Summary 删除课时附件
// @Tags 内容管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "附件ID"
// @Success 200 {object} util.Response "成功"
// @Failure 404 {object} util.Response "附件不存在"
// @Router /admin/materials/{id} [delete]
func (c *ContentController) DeleteMaterial(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "无效的附件ID")
		return
	}

	if err := c.ContentService.DeleteMaterial(ctx, uint(id)); err != nil {
		if errors.Is(err, util.ErrMaterialNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"message": "附件已删除"})
}
