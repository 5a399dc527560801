package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskboard/api/handler"
)

type Handlers struct {
	Auth    *apiHandler.AuthHandler
	Profile *apiHandler.ProfileHandler
	Task    *apiHandler.TaskHandler
	Health  *apiHandler.HealthHandler
	Live    fasthttp.RequestHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	api := r.Group("/api/v1")

	// Auth routes
	api.POST("/auth/signup", handlers.Auth.Signup)
	api.POST("/auth/login", handlers.Auth.Login)
	api.POST("/auth/refresh", handlers.Auth.Refresh)

	// Protected routes
	api.POST("/auth/logout", authMiddleware(handlers.Auth.Logout))
	api.GET("/profile", authMiddleware(handlers.Profile.GetProfile))

	api.GET("/tasks", authMiddleware(handlers.Task.GetTasks))
	api.POST("/tasks", authMiddleware(handlers.Task.CreateTask))
	api.POST("/tasks/suggest-title", authMiddleware(handlers.Task.SuggestTitle))
	api.GET("/tasks/{id}", authMiddleware(handlers.Task.GetTask))
	api.PATCH("/tasks/{id}", authMiddleware(handlers.Task.UpdateTask))
	api.PUT("/tasks/{id}", authMiddleware(handlers.Task.ReplaceTask))
	api.DELETE("/tasks/{id}", authMiddleware(handlers.Task.DeleteTask))

	api.GET("/live", authMiddleware(handlers.Live))

	return r
}
