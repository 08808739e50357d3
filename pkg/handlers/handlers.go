package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shiftbreak/restguard-api/pkg/auth"
	"github.com/shiftbreak/restguard-api/pkg/database"
	"github.com/shiftbreak/restguard-api/pkg/models"
	"github.com/shiftbreak/restguard-api/pkg/rules"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Handler contains dependencies for the route handlers
type Handler struct {
	DB        *gorm.DB
	Validator *rules.Validator
	Locks     *database.WorkerLocks
}

// AuthMiddleware verifies the JWT token for admin routes
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Strip "Bearer " if present
		if len(token) > 7 && token[:7] == "Bearer " {
			token = token[7:]
		}

		claims, err := auth.VerifyToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

// APIKeyMiddleware verifies the API key for validation routes using HMAC
func (h *Handler) APIKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("Authorization")
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "API Key required"})
			c.Abort()
			return
		}

		if len(key) > 7 && key[:7] == "Bearer " {
			key = key[7:]
		}

		name, err := auth.VerifyKey(key)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API Key signature"})
			c.Abort()
			return
		}

		// Fetch or create API key record to track usage
		var apiKey database.APIKey
		h.DB.Where(database.APIKey{Key: key}).FirstOrCreate(&apiKey, database.APIKey{
			Key:       key,
			Name:      name,
			RateLimit: 10000,
		})

		c.Set("apiKey", &apiKey)
		c.Next()
	}
}

// SubmitRest validates and records a rest interval for a worker
func (h *Handler) SubmitRest(c *gin.Context) {
	h.submitInterval(c, models.CategoryRest)
}

// SubmitWork validates and records a work interval for a worker
func (h *Handler) SubmitWork(c *gin.Context) {
	h.submitInterval(c, models.CategoryWork)
}

// submitInterval runs fetch-validate-persist under the worker's lock so a
// concurrent submission for the same worker is re-evaluated against the
// updated schedule rather than the stale one.
func (h *Handler) submitInterval(c *gin.Context, category models.Category) {
	workerID := c.Param("workerID")

	var input models.SubmitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candidate := models.Candidate{
		Interval: models.Interval{Start: input.Start, End: input.End, Category: category},
	}

	unlock := h.Locks.Lock(workerID)
	defer unlock()

	snapshot, err := database.LoadSnapshot(h.DB, workerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load worker schedule"})
		return
	}

	result := h.validate(snapshot, candidate, category)
	if !result.Accepted {
		h.RecordUsage(c, 0, 1)
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}

	record := database.IntervalRecord{
		WorkerID: workerID,
		Category: string(category),
		StartAt:  input.Start,
		EndAt:    input.End,
	}
	if err := h.DB.Create(&record).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save interval"})
		return
	}

	h.RecordUsage(c, 1, 0)
	c.JSON(http.StatusCreated, gin.H{
		"accepted": true,
		"interval": record,
	})
}

// UpdateInterval re-validates and saves an edited interval. The record's own
// ID is excluded from the budget so an unchanged interval never fails by
// counting against itself.
func (h *Handler) UpdateInterval(c *gin.Context) {
	workerID := c.Param("workerID")
	id := c.Param("id")

	var input models.SubmitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	unlock := h.Locks.Lock(workerID)
	defer unlock()

	var record database.IntervalRecord
	if err := h.DB.Where("worker_id = ? AND id = ?", workerID, id).First(&record).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Interval not found"})
		return
	}

	category := models.Category(record.Category)
	candidate := models.Candidate{
		Interval:  models.Interval{Start: input.Start, End: input.End, Category: category},
		ExcludeID: id,
	}

	snapshot, err := database.LoadSnapshot(h.DB, workerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load worker schedule"})
		return
	}

	result := h.validate(snapshot, candidate, category)
	if !result.Accepted {
		h.RecordUsage(c, 0, 1)
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}

	record.StartAt = input.Start
	record.EndAt = input.End
	if err := h.DB.Save(&record).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update interval"})
		return
	}

	h.RecordUsage(c, 1, 0)
	c.JSON(http.StatusOK, gin.H{
		"accepted": true,
		"interval": record,
	})
}

func (h *Handler) validate(snapshot models.WorkerScheduleSnapshot, candidate models.Candidate, category models.Category) models.ValidationResult {
	if category == models.CategoryWork {
		return h.Validator.ValidateWork(snapshot, candidate)
	}
	return h.Validator.ValidateRest(snapshot, candidate)
}

// GetSchedule returns a worker's recorded intervals
func (h *Handler) GetSchedule(c *gin.Context) {
	workerID := c.Param("workerID")

	snapshot, err := database.LoadSnapshot(h.DB, workerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load worker schedule"})
		return
	}

	c.JSON(http.StatusOK, models.ScheduleResponse{
		WorkerID: snapshot.WorkerID,
		Rest:     snapshot.Rest,
		Work:     snapshot.Work,
	})
}

// DeleteInterval removes one of the worker's intervals
func (h *Handler) DeleteInterval(c *gin.Context) {
	workerID := c.Param("workerID")
	id := c.Param("id")

	unlock := h.Locks.Lock(workerID)
	defer unlock()

	res := h.DB.Where("worker_id = ? AND id = ?", workerID, id).Delete(&database.IntervalRecord{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete interval"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Interval not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Interval deleted"})
}

// RecordUsage records API usage in the database using an efficient upsert
func (h *Handler) RecordUsage(c *gin.Context, intervals, rejections int) {
	apiKeyRaw, exists := c.Get("apiKey")
	if !exists {
		return
	}
	apiKey := apiKeyRaw.(*database.APIKey)

	today := time.Now().Format("2006-01-02")

	// Use OnConflict for a single-query upsert (supported by both Postgres and SQLite)
	h.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count":    gorm.Expr("request_count + ?", 1),
			"total_intervals":  gorm.Expr("total_intervals + ?", intervals),
			"total_rejections": gorm.Expr("total_rejections + ?", rejections),
		}),
	}).Create(&database.APIUsage{
		KeyID:           apiKey.ID,
		Date:            today,
		RequestCount:    1,
		TotalIntervals:  intervals,
		TotalRejections: rejections,
	})
}

// Login handles admin login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user database.MasterUser
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := auth.CreateToken(user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// GenerateKey creates a new API key using the HMAC strategy
func (h *Handler) GenerateKey(c *gin.Context) {
	var req struct {
		Name      string `json:"name"`
		RateLimit int    `json:"rate_limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if req.RateLimit == 0 {
		req.RateLimit = 10000
	}

	// Generate key using HMAC
	key := auth.GenerateKey(req.Name)

	// Create preview (e.g., sk_...****)
	preview := ""
	if len(key) > 8 {
		preview = key[:3] + "..." + key[len(key)-4:]
	} else {
		preview = "****"
	}

	apiKey := database.APIKey{
		Key:        key,
		Name:       req.Name,
		KeyPreview: preview,
		RateLimit:  req.RateLimit,
	}

	if err := h.DB.Create(&apiKey).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create key record"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name": req.Name,
		"key":  key,
	})
}

// ListKeys returns all API keys
func (h *Handler) ListKeys(c *gin.Context) {
	var keys []database.APIKey
	h.DB.Find(&keys)
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// RevokeKey deletes an API key
func (h *Handler) RevokeKey(c *gin.Context) {
	id := c.Param("id")
	if err := h.DB.Delete(&database.APIKey{}, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Key revoked"})
}

// UpdateKeyLimit updates the rate limit for a key
func (h *Handler) UpdateKeyLimit(c *gin.Context) {
	id := c.Param("id")
	var req struct {
		RateLimit int `json:"rate_limit" form:"rate_limit"`
	}

	// Try JSON first, then Form/Query
	if err := c.ShouldBindJSON(&req); err != nil {
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rate_limit is required"})
			return
		}
	}

	if req.RateLimit == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate limit"})
		return
	}

	if err := h.DB.Model(&database.APIKey{}).Where("id = ?", id).Update("rate_limit", req.RateLimit).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update key limit"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rate limit updated successfully"})
}

// GetUsage returns usage stats for a key
func (h *Handler) GetUsage(c *gin.Context) {
	id := c.Param("id")
	var usage []database.APIUsage
	h.DB.Where("key_id = ?", id).Order("date desc").Limit(30).Find(&usage)
	c.JSON(http.StatusOK, gin.H{"usage": usage})
}
