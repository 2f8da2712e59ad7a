package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-ledger-api/internal/dto"
	"github.com/noah-isme/tutoring-ledger-api/pkg/response"
)

type classScheduleService interface {
	GetClassSchedule(ctx context.Context, classID string) (*dto.ScheduleView, error)
}

// ScheduleHandler exposes the expanded lesson calendar of a class.
type ScheduleHandler struct {
	service classScheduleService
}

// NewScheduleHandler builds a ScheduleHandler.
func NewScheduleHandler(service classScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// Get godoc
// @Summary Expand a class schedule into lesson dates
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/schedule [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	view, err := h.service.GetClassSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}
