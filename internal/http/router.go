package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/coursepilot/backend/internal/http/handlers"
	httpMW "github.com/coursepilot/backend/internal/http/middleware"
)

type RouterConfig struct {
	ServiceName string

	AuthHandler       *httpH.AuthHandler
	AuthMiddleware    *httpMW.AuthMiddleware
	CourseHandler     *httpH.CourseHandler
	GenerationHandler *httpH.GenerationHandler
	RealtimeHandler   *httpH.RealtimeHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
			api.POST("/refresh", cfg.AuthHandler.Refresh)
		}

		// Public showcase of published courses
		if cfg.CourseHandler != nil {
			api.GET("/explore", cfg.CourseHandler.ListPublishedCourses)
			api.GET("/explore/:id", cfg.CourseHandler.GetCourse)
			api.GET("/explore/:id/chapters", cfg.CourseHandler.ListCourseChapters)
			api.GET("/explore/:id/chapters/:chapterId", cfg.CourseHandler.GetCourseChapter)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.AuthHandler != nil {
			protected.POST("/logout", cfg.AuthHandler.Logout)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}

		// Courses
		if cfg.CourseHandler != nil {
			protected.POST("/courses", cfg.CourseHandler.CreateCourse)
			protected.GET("/courses", cfg.CourseHandler.ListUserCourses)
			protected.GET("/courses/:id", cfg.CourseHandler.GetCourse)
			protected.PATCH("/courses/:id", cfg.CourseHandler.UpdateCourse)
			protected.DELETE("/courses/:id", cfg.CourseHandler.DeleteCourse)
			protected.GET("/courses/:id/chapters", cfg.CourseHandler.ListCourseChapters)
			protected.GET("/courses/:id/chapters/:chapterId", cfg.CourseHandler.GetCourseChapter)
			protected.DELETE("/courses/:id/chapters", cfg.CourseHandler.DeleteCourseChapters)
		}

		// Generation
		if cfg.GenerationHandler != nil {
			protected.POST("/courses/:id/generate", cfg.GenerationHandler.Generate)
			protected.GET("/courses/:id/generation", cfg.GenerationHandler.GetStatus)
		}
	}

	return r
}
