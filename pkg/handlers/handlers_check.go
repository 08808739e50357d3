package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shiftbreak/restguard-api/pkg/models"
)

// CheckRest runs a stateless rest-candidate check against a caller-supplied
// snapshot. Nothing is persisted; the caller owns the consistency boundary.
func (h *Handler) CheckRest(c *gin.Context) {
	h.check(c, models.CategoryRest)
}

// CheckWork runs a stateless work-candidate check against a caller-supplied snapshot
func (h *Handler) CheckWork(c *gin.Context) {
	h.check(c, models.CategoryWork)
}

func (h *Handler) check(c *gin.Context, category models.Category) {
	var input models.CheckInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input.Candidate.Interval.Category = category
	result := h.validate(input.Snapshot, input.Candidate, category)

	rejections := 0
	if !result.Accepted {
		rejections = 1
	}
	h.RecordUsage(c, len(input.Snapshot.Rest)+len(input.Snapshot.Work), rejections)

	c.JSON(http.StatusOK, result)
}
