package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kiddohub/kindergarten-admin-api/internal/service"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
	"github.com/kiddohub/kindergarten-admin-api/pkg/response"
)

// DashboardHandler exposes the landing-page statistics endpoint.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats godoc
// @Summary Dashboard statistics for the caller's scope
// @Tags Dashboard
// @Produce json
// @Param days query int false "Trend window in days"
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "0"))

	stats, err := h.dashboard.Stats(c.Request.Context(), p, days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Activity godoc
// @Summary Recent selection activity in the caller's scope
// @Tags Dashboard
// @Produce json
// @Param limit query int false "Maximum entries (default 20, capped)"
// @Success 200 {object} response.Envelope
// @Router /dashboard/activity [get]
func (h *DashboardHandler) Activity(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	items, err := h.dashboard.RecentActivity(c.Request.Context(), p, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
