package main

import (
	"log"

	"github.com/checkmate-app/checkmate-api/internal/config"
	"github.com/checkmate-app/checkmate-api/internal/constants"
	"github.com/checkmate-app/checkmate-api/internal/database"
	"github.com/checkmate-app/checkmate-api/internal/handlers"
	"github.com/checkmate-app/checkmate-api/internal/middleware"
	"github.com/checkmate-app/checkmate-api/internal/repository"
	"github.com/checkmate-app/checkmate-api/internal/services"
	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := database.AddIndexes(database.GetDB()); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	// Initialize Gin router
	r := gin.Default()

	// Setup session middleware with Redis
	redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
	store, err := redisStore.NewStore(
		10,        // Redis pool size
		"tcp",     // network type
		redisAddr, // Redis address from config
		"",        // password (empty = no password)
		[]byte(cfg.SessionSecret), // authentication key
	)
	if err != nil {
		log.Fatalf("Failed to create Redis store: %v", err)
	}
	isProduction := cfg.GinMode == "release"
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: 2, // SameSite=Lax
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Initialize repositories
	userRepo := repository.NewUserRepository(database.GetDB())
	projectRepo := repository.NewProjectRepository(database.GetDB())
	taskRepo := repository.NewTaskRepository(database.GetDB())

	// Initialize services
	authService := services.NewAuthService(userRepo)
	projectService := services.NewProjectService(projectRepo, userRepo)
	taskService := services.NewTaskService(taskRepo, projectRepo)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	projectHandler := handlers.NewProjectHandler(projectService, taskService)
	taskHandler := handlers.NewTaskHandler(taskService)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "CheckMate API is running",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
			auth.PUT("/me", middleware.RequireAuth(), authHandler.UpdateProfile)
			auth.PUT("/me/password", middleware.RequireAuth(), authHandler.ChangePassword)
		}

		// Project routes (protected)
		projects := api.Group("/projects")
		projects.Use(middleware.RequireAuth())
		{
			projects.POST("", projectHandler.CreateProject)
			projects.GET("", projectHandler.ListProjects)
			projects.GET("/:id", middleware.RequireProjectAccess(), projectHandler.GetProject)
			projects.PUT("/:id", middleware.RequireProjectAccess(), projectHandler.UpdateProject)
			projects.DELETE("/:id", middleware.RequireProjectAccess(), projectHandler.DeleteProject)
			projects.GET("/:id/board", middleware.RequireProjectAccess(), projectHandler.GetBoard)
			projects.POST("/:id/members", middleware.RequireProjectAccess(), projectHandler.InviteMember)
			projects.DELETE("/:id/members/:user_id", middleware.RequireProjectAccess(), projectHandler.RemoveMember)
			projects.POST("/:id/tasks", middleware.RequireProjectAccess(), taskHandler.CreateTask)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth())
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.GET("/:id", middleware.RequireTaskAccess(), taskHandler.GetTask)
			tasks.PATCH("/:id", middleware.RequireTaskAccess(), taskHandler.UpdateTask)
			tasks.DELETE("/:id", middleware.RequireTaskAccess(), taskHandler.DeleteTask)
			tasks.POST("/:id/status", middleware.RequireTaskAccess(), taskHandler.ChangeStatus)
		}
	}

	// Start server
	log.Printf("Server starting on :%s", cfg.ServerPort)
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
