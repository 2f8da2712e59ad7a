package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-ledger-api/internal/dto"
	appErrors "github.com/noah-isme/tutoring-ledger-api/pkg/errors"
	"github.com/noah-isme/tutoring-ledger-api/pkg/response"
)

type attendanceLedgerService interface {
	CreateLedger(ctx context.Context, classID, actorID string) (*dto.LedgerCreated, error)
	ListSummaries(ctx context.Context, classID string) ([]dto.LessonSummary, error)
	GetLessonDetail(ctx context.Context, classID string, lessonNumber int) (*dto.LessonDetail, error)
	RecordAttendance(ctx context.Context, classID string, lessonNumber int, req dto.RecordAttendanceRequest, actorID string) (*dto.RecordAttendanceResult, error)
	DeleteLesson(ctx context.Context, classID string, lessonNumber int, actorID string) (*dto.LessonDeleted, error)
}

// AttendanceHandler exposes the per-class attendance ledger.
type AttendanceHandler struct {
	service attendanceLedgerService
}

// NewAttendanceHandler builds an AttendanceHandler.
func NewAttendanceHandler(service attendanceLedgerService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// Create godoc
// @Summary Create the attendance ledger of a class
// @Tags Attendance
// @Produce json
// @Param id path string true "Class ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /classes/{id}/attendance [post]
func (h *AttendanceHandler) Create(c *gin.Context) {
	created, err := h.service.CreateLedger(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List godoc
// @Summary List lesson summaries of a class ledger
// @Tags Attendance
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	lessons, err := h.service.ListSummaries(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, map[string]interface{}{"total": len(lessons)})
}

// Get godoc
// @Summary Get a lesson with its student roster
// @Tags Attendance
// @Produce json
// @Param id path string true "Class ID"
// @Param lesson path int true "Lesson number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/attendance/{lesson} [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	lesson, err := lessonParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.service.GetLessonDetail(c.Request.Context(), c.Param("id"), lesson)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// Record godoc
// @Summary Record absences for a lesson
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param lesson path int true "Lesson number"
// @Param payload body dto.RecordAttendanceRequest true "Student flags"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes/{id}/attendance/{lesson} [put]
func (h *AttendanceHandler) Record(c *gin.Context) {
	lesson, err := lessonParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid attendance payload"))
		return
	}
	result, err := h.service.RecordAttendance(c.Request.Context(), c.Param("id"), lesson, req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Delete godoc
// @Summary Delete a lesson and renumber the ones after it
// @Tags Attendance
// @Produce json
// @Param id path string true "Class ID"
// @Param lesson path int true "Lesson number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/attendance/{lesson} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	lesson, err := lessonParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	deleted, err := h.service.DeleteLesson(c.Request.Context(), c.Param("id"), lesson, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deleted)
}
