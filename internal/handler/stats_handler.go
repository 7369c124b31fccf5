package handler

import (
	"github.com/gin-gonic/gin"

	"prizedraw/internal/service/stats"
	"prizedraw/pkg/utils"
)

// StatsHandler stats handler
type StatsHandler struct {
	statsService stats.Service
}

// NewStatsHandler creates a stats handler
func NewStatsHandler(statsService stats.Service) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// ActivityStats returns one activity's live numbers
func (h *StatsHandler) ActivityStats(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	s, err := h.statsService.ActivityStats(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, s)
}

// Overview returns process-wide numbers
func (h *StatsHandler) Overview(c *gin.Context) {
	ov, err := h.statsService.Overview(c.Request.Context())
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, ov)
}
