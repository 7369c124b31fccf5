package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"prizedraw/internal/service/activity"
	"prizedraw/pkg/utils"
)

// ActivityHandler activity and prize administration handler
type ActivityHandler struct {
	activityService activity.Service
}

// NewActivityHandler creates an activity handler
func NewActivityHandler(activityService activity.Service) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

func parseID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// CreateActivity creates an activity
func (h *ActivityHandler) CreateActivity(c *gin.Context) {
	var req activity.CreateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid parameters: "+err.Error())
		return
	}

	a, err := h.activityService.CreateActivity(c.Request.Context(), &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, a)
}

// UpdateActivity updates an activity
func (h *ActivityHandler) UpdateActivity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req activity.UpdateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid parameters: "+err.Error())
		return
	}
	req.ID = id

	a, err := h.activityService.UpdateActivity(c.Request.Context(), &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, a)
}

// GetActivity gets an activity by ID
func (h *ActivityHandler) GetActivity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	a, err := h.activityService.GetActivity(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, a)
}

// ListActivities lists activities
func (h *ActivityHandler) ListActivities(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	activities, err := h.activityService.ListActivities(c.Request.Context(), limit)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"list":  activities,
		"total": len(activities),
	})
}

// EndActivity closes an activity and drops its unclaimed tickets
func (h *ActivityHandler) EndActivity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.activityService.EndActivity(c.Request.Context(), id); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, nil)
}

// Preheat seeds an activity's tickets and flips it active
func (h *ActivityHandler) Preheat(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.activityService.Preheat(c.Request.Context(), id); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, nil)
}

// CreatePrize creates a prize
func (h *ActivityHandler) CreatePrize(c *gin.Context) {
	var req activity.CreatePrizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid parameters: "+err.Error())
		return
	}

	p, err := h.activityService.CreatePrize(c.Request.Context(), &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, p)
}

// ListPrizes lists prizes
func (h *ActivityHandler) ListPrizes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	prizes, err := h.activityService.ListPrizes(c.Request.Context(), limit)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"list":  prizes,
		"total": len(prizes),
	})
}

// SetAllocationPlan binds a prize amount to an activity
func (h *ActivityHandler) SetAllocationPlan(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		PrizeID uint64 `json:"prize_id" binding:"required"`
		Amount  int    `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid parameters: "+err.Error())
		return
	}

	if err := h.activityService.SetAllocationPlan(c.Request.Context(), id, req.PrizeID, req.Amount); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, nil)
}

// ListAllocationPlans lists an activity's plans
func (h *ActivityHandler) ListAllocationPlans(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	plans, err := h.activityService.ListAllocationPlans(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"list":  plans,
		"total": len(plans),
	})
}
