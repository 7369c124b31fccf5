package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"prizedraw/internal/middleware"
	"prizedraw/internal/service/draw"
	"prizedraw/pkg/utils"
)

// DrawHandler draw handler
type DrawHandler struct {
	drawService draw.Service
}

// NewDrawHandler creates a draw handler
func NewDrawHandler(drawService draw.Service) *DrawHandler {
	return &DrawHandler{drawService: drawService}
}

// Draw executes one draw attempt for the authenticated user
func (h *DrawHandler) Draw(c *gin.Context) {
	activityID, err := strconv.ParseUint(c.Param("activity_id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid activity ID")
		return
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "not authenticated")
		return
	}

	result, err := h.drawService.Draw(c.Request.Context(), &draw.Request{
		ActivityID: activityID,
		UserID:     userID,
	})
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	if !result.Success {
		utils.FailedResponse(c, result.Code, result.Message, result)
		return
	}
	utils.SuccessResponse(c, result)
}
