package app

import (
	"course_platform_backend/docs"
	"course_platform_backend/internal/config"
	"course_platform_backend/internal/middleware"
	"course_platform_backend/internal/model"

	"course_platform_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api/v1"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api/v1")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerStudentRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api/v1")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
	}

	// 课程目录允许游客浏览，登录用户能看到自己的报名视角
	browse := router.Group("/api/v1")
	browse.Use(middleware.TryAuthMiddleware(a.Config))
	{
		browse.GET("/courses", c.course.ListCourses)
		browse.GET("/courses/:slug", c.course.GetCourse)
		browse.GET("/courses/:slug/lessons", c.lesson.ListLessonsBySlug)
		browse.GET("/lessons/:id", c.lesson.GetLesson)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/auth/profile", c.auth.GetProfile)

	// 报名与学习进度
	rg.GET("/my/enrollments", c.enrollment.ListMyEnrollments)
	rg.GET("/enrollments/:id", c.enrollment.GetEnrollment)
	rg.PUT("/enrollments/:id/progress", c.enrollment.UpdateProgress)
	rg.POST("/enrollments/:id/complete", c.enrollment.CompleteEnrollment)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin))
	{
		// 课程管理
		admin.POST("/courses", c.course.CreateCourse)
		admin.PUT("/courses/:id", c.course.UpdateCourse)
		admin.DELETE("/courses/:id", c.course.DeleteCourse)
		admin.PUT("/courses/:id/status", c.course.SetCourseStatus)
		admin.POST("/courses/:id/cover", c.content.UploadCover)

		// 课时管理
		admin.GET("/courses/:id/lessons", c.lesson.ListCourseLessons)
		admin.POST("/courses/:id/lessons", c.lesson.CreateLesson)
		admin.PUT("/lessons/:id", c.lesson.UpdateLesson)
		admin.DELETE("/lessons/:id", c.lesson.DeleteLesson)
		admin.PUT("/lessons/:id/order", c.lesson.ReorderLesson)

		// 视频与附件
		admin.POST("/lessons/:id/video", c.content.UploadLessonVideo)
		admin.POST("/lessons/:id/video/chunked", c.content.InitChunkedUpload)
		admin.POST("/uploads/chunk", c.content.UploadVideoChunk)
		admin.GET("/uploads/:identifier", c.content.GetUploadProgress)
		admin.GET("/lessons/:id/materials", c.content.ListMaterials)
		admin.POST("/lessons/:id/materials", c.content.AddMaterial)
		admin.DELETE("/materials/:id", c.content.DeleteMaterial)

		// 报名管理
		admin.GET("/enrollments", c.enrollment.ListEnrollments)
		admin.POST("/enrollments", c.enrollment.CreateEnrollment)
		admin.POST("/enrollments/:id/extend", c.enrollment.ExtendEnrollment)
		admin.POST("/enrollments/:id/cancel", c.enrollment.CancelEnrollment)

		// 用户管理（管理员账号仅超级管理员能创建）
		admin.GET("/users", c.user.GetUsers)
		admin.GET("/users/:id", c.user.GetUser)
		admin.POST("/users", middleware.RoleMiddleware(model.SuperAdmin), c.user.CreateAdmin)
		admin.POST("/users/:id/disable", c.user.DisableUser)
	}
}
