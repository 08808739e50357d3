package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shiftbreak/restguard-api/pkg/auth"
	"github.com/shiftbreak/restguard-api/pkg/database"
	"github.com/shiftbreak/restguard-api/pkg/handlers"
	"github.com/shiftbreak/restguard-api/pkg/rules"
)

var r *gin.Engine

func init() {
	// Load .env if it exists (for local testing with vercel dev)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	// Initialize DB
	db := database.InitDB()
	_ = auth.EnsureAdminExists(db)
	h := &handlers.Handler{
		DB:        db,
		Validator: rules.NewValidatorFromEnv(),
		Locks:     database.NewWorkerLocks(),
	}

	// Initialize Gin
	gin.SetMode(gin.ReleaseMode)
	r = gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Routes
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Rest Guard API (Vercel)",
			"version": "1.0.0",
		})
	})

	r.POST("/admin/login", h.Login)

	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.PUT("/keys/:id", h.UpdateKeyLimit)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/usage/:id", h.GetUsage)
	}

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
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}
