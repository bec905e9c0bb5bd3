package app

import (
	"college_orbit_backend/docs"
	"college_orbit_backend/internal/config"
	"college_orbit_backend/internal/middleware"
	"college_orbit_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 定时任务触发
	a.registerCronRoutes(router, c, cfg)

	// 3. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret), middleware.TimezoneMiddleware(repos.user))
	{
		a.registerUserRoutes(authGroup, c)
		a.registerPlannerRoutes(authGroup, c)
		a.registerGamificationRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
		public.GET("/colleges", c.planner.ListColleges)
	}
}

func (a *App) registerCronRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	cron := router.Group("/api/cron")
	cron.Use(middleware.CronSecret(cfg.Cron.Secret))
	{
		cron.POST("/recurring/top-up", c.cron.TopUpRecurring)
		cron.POST("/reminders/deadlines", c.cron.SendDeadlineReminders)
	}
}

func (a *App) registerUserRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/profile", c.auth.GetProfile)
	group.PUT("/profile/college", c.auth.SetCollege)
	group.PUT("/profile/timezone", c.auth.SetTimezone)

	group.POST("/devices", c.notification.RegisterDevice)
	group.DELETE("/devices", c.notification.UnregisterDevice)
}

func (a *App) registerPlannerRoutes(group *gin.RouterGroup, c *controllers) {
	patterns := group.Group("/recurring-patterns")
	{
		patterns.POST("", c.pattern.CreatePattern)
		patterns.GET("", c.pattern.ListPatterns)
		patterns.DELETE("", c.pattern.DeletePattern)
		patterns.GET("/:id", c.pattern.GetPattern)
		patterns.PATCH("/:id", c.pattern.UpdatePattern)
	}

	group.POST("/courses", c.planner.CreateCourse)
	group.GET("/courses", c.planner.ListCourses)
	group.POST("/work-items", c.planner.CreateWorkItem)
	group.GET("/work-items", c.planner.ListWorkItems)
	group.PATCH("/items/:itemType/:id/complete", c.planner.CompleteItem)
	group.POST("/calendar/export", c.planner.ExportCalendar)
}

func (a *App) registerGamificationRoutes(group *gin.RouterGroup, c *controllers) {
	gam := group.Group("/gamification")
	{
		gam.GET("", c.gamification.GetSummary)
		gam.PATCH("", c.gamification.UpdateSettings)
		gam.POST("/record", c.gamification.RecordCompletion)
		gam.GET("/daily-challenges", c.gamification.GetDailyChallenges)
		gam.POST("/daily-challenges", c.gamification.ClaimDailyChallenges)
		gam.GET("/leaderboard", c.gamification.GetLeaderboard)
		gam.GET("/leaderboard/colleges/:id", c.gamification.GetCollegeLeaderboard)
	}
}
