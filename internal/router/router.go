package router

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"trackx/backend/internal/handler"
	"trackx/backend/internal/middleware"
	"trackx/backend/internal/service"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Habits  *handler.HabitHandler
	Todos   *handler.TodoHandler
	Notes   *handler.NoteHandler
	Events  *handler.EventHandler
	Focus   *handler.FocusHandler
	Profile *handler.ProfileHandler
	Stats   *handler.StatsHandler
}

func New(
	authService *service.AuthService,
	handlers Handlers,
	corsOrigins []string,
	logger *log.Logger,
) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.Logger(logger), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", handlers.Auth.Register)
	auth.POST("/login", handlers.Auth.Login)

	protected := api.Group("")
	protected.Use(middleware.Auth(authService))
	protected.POST("/auth/logout", handlers.Auth.Logout)
	protected.GET("/auth/me", handlers.Auth.Me)

	habits := protected.Group("/habits")
	habits.GET("", handlers.Habits.List)
	habits.POST("", handlers.Habits.Create)
	habits.PUT("/:id", handlers.Habits.Update)
	habits.DELETE("/:id", handlers.Habits.Delete)
	habits.POST("/:id/done", handlers.Habits.MarkDone)
	habits.POST("/:id/fail", handlers.Habits.Fail)

	todos := protected.Group("/todos")
	todos.GET("", handlers.Todos.List)
	todos.POST("", handlers.Todos.Create)
	todos.PUT("/:id", handlers.Todos.Update)
	todos.DELETE("/:id", handlers.Todos.Delete)
	todos.POST("/:id/toggle", handlers.Todos.Toggle)

	notes := protected.Group("/notes")
	notes.GET("", handlers.Notes.List)
	notes.POST("", handlers.Notes.Create)
	notes.PUT("/:id", handlers.Notes.Update)
	notes.DELETE("/:id", handlers.Notes.Delete)

	events := protected.Group("/events")
	events.GET("", handlers.Events.List)
	events.GET("/day", handlers.Events.Day)
	events.POST("", handlers.Events.Create)
	events.PUT("/:id", handlers.Events.Update)
	events.DELETE("/:id", handlers.Events.Delete)

	focus := protected.Group("/focus")
	focus.GET("", handlers.Focus.GetState)
	focus.POST("/start", handlers.Focus.Start)
	focus.POST("/pause", handlers.Focus.Pause)
	focus.POST("/reset", handlers.Focus.Reset)
	focus.POST("/mode", handlers.Focus.SwitchMode)
	focus.POST("/adjust", handlers.Focus.Adjust)
	focus.PUT("/settings", handlers.Focus.UpdateSettings)
	focus.GET("/history", handlers.Focus.GetHistory)

	protected.GET("/profile", handlers.Profile.Get)
	protected.PUT("/profile", handlers.Profile.Update)

	protected.GET("/stats", handlers.Stats.Get)
	protected.GET("/stats/stream", handlers.Stats.Stream)

	return engine
}
