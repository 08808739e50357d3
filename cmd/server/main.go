package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shiftbreak/restguard-api/pkg/auth"
	"github.com/shiftbreak/restguard-api/pkg/database"
	"github.com/shiftbreak/restguard-api/pkg/handlers"
	"github.com/shiftbreak/restguard-api/pkg/rules"
)

func main() {
	// Load .env if it exists
	// Try root and parent directories for flexibility
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	db := database.InitDB()
	_ = auth.EnsureAdminExists(db)
	h := &handlers.Handler{
		DB:        db,
		Validator: rules.NewValidatorFromEnv(),
		Locks:     database.NewWorkerLocks(),
	}

	r := gin.Default()

	// Routes
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Rest Guard API",
			"version": "1.0.0",
		})
	})

	r.POST("/admin/login", h.Login)

	// Admin Endpoints
	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.PUT("/keys/:id", h.UpdateKeyLimit)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/usage/:id", h.GetUsage)
	}

	// Validation Endpoints
	api := r.Group("/api")
	api.Use(h.APIKeyMiddleware())
	{
		api.POST("/check/rest", h.CheckRest)
		api.POST("/check/work", h.CheckWork)
		api.POST("/workers/:workerID/rest", h.SubmitRest)
		api.POST("/workers/:workerID/work", h.SubmitWork)
		api.GET("/workers/:workerID/schedule", h.GetSchedule)
		api.PUT("/workers/:workerID/intervals/:id", h.UpdateInterval)
		api.DELETE("/workers/:workerID/intervals/:id", h.DeleteInterval)
		api.GET("/usage", h.GetMyUsage)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
