package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-ledger-api/internal/dto"
	"github.com/noah-isme/tutoring-ledger-api/internal/middleware"
	"github.com/noah-isme/tutoring-ledger-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-ledger-api/pkg/errors"
	"github.com/noah-isme/tutoring-ledger-api/pkg/response"
)

type wageService interface {
	RunMonthlyCalculation(ctx context.Context, req dto.WagePeriodRequest, actorID string) (*dto.WageCalculationResult, error)
	ApplyPayment(ctx context.Context, id string, req dto.ApplyPaymentRequest, payerID string) (*models.WageRecord, error)
	BulkSettle(ctx context.Context, req dto.BulkSettleRequest, payerID string) (*dto.BulkSettleResult, error)
	UpdateWageRecord(ctx context.Context, id string, req dto.UpdateWageRecordRequest, actorID string) (*models.WageRecord, error)
	DeleteWageRecord(ctx context.Context, id, actorID string) error
	Get(ctx context.Context, id string) (*models.WageRecordDetail, error)
	List(ctx context.Context, filter models.WageFilter) ([]models.WageRecordDetail, *models.Pagination, error)
	Statistics(ctx context.Context, filter models.WageFilter) (*dto.WageStatistics, bool, error)
	Outstanding(ctx context.Context, filter models.WageFilter) (*dto.OutstandingSummary, bool, error)
}

type payrollExporter interface {
	Export(ctx context.Context, filter models.WageFilter, format string) (*dto.WageExport, error)
}

// WageHandler exposes wage calculation, payments and reporting.
type WageHandler struct {
	service  wageService
	exporter payrollExporter
}

// NewWageHandler builds a WageHandler.
func NewWageHandler(service wageService, exporter payrollExporter) *WageHandler {
	return &WageHandler{service: service, exporter: exporter}
}

// Calculate godoc
// @Summary Run the monthly wage calculation
// @Tags Wages
// @Accept json
// @Produce json
// @Param payload body dto.WagePeriodRequest true "Period"
// @Success 200 {object} response.Envelope
// @Router /wages/calculate [post]
func (h *WageHandler) Calculate(c *gin.Context) {
	var req dto.WagePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid wage period payload"))
		return
	}
	result, err := h.service.RunMonthlyCalculation(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// ApplyPayment godoc
// @Summary Apply a payment to a wage record
// @Tags Wages
// @Accept json
// @Produce json
// @Param id path string true "Wage record ID"
// @Param payload body dto.ApplyPaymentRequest true "Payment"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /wages/{id}/payments [post]
func (h *WageHandler) ApplyPayment(c *gin.Context) {
	var req dto.ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payment payload"))
		return
	}
	record, err := h.service.ApplyPayment(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Settle godoc
// @Summary Settle every unpaid record of a teacher for a month
// @Tags Wages
// @Accept json
// @Produce json
// @Param payload body dto.BulkSettleRequest true "Settlement"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /wages/settle [post]
func (h *WageHandler) Settle(c *gin.Context) {
	var req dto.BulkSettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid settlement payload"))
		return
	}
	result, err := h.service.BulkSettle(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Update godoc
// @Summary Override the lesson count of a wage record
// @Tags Wages
// @Accept json
// @Produce json
// @Param id path string true "Wage record ID"
// @Param payload body dto.UpdateWageRecordRequest true "Update"
// @Success 200 {object} response.Envelope
// @Router /wages/{id} [put]
func (h *WageHandler) Update(c *gin.Context) {
	var req dto.UpdateWageRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid wage update payload"))
		return
	}
	record, err := h.service.UpdateWageRecord(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Delete godoc
// @Summary Delete an unpaid wage record
// @Tags Wages
// @Param id path string true "Wage record ID"
// @Success 204
// @Failure 422 {object} response.Envelope
// @Router /wages/{id} [delete]
func (h *WageHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteWageRecord(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Get a wage record
// @Tags Wages
// @Produce json
// @Param id path string true "Wage record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /wages/{id} [get]
func (h *WageHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// List godoc
// @Summary List wage records
// @Tags Wages
// @Produce json
// @Param teacherId query string false "Teacher ID"
// @Param classId query string false "Class ID"
// @Param month query int false "Month"
// @Param year query int false "Year"
// @Param status query string false "unpaid, partial or full"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /wages [get]
func (h *WageHandler) List(c *gin.Context) {
	filter, err := wageFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, map[string]interface{}{"pagination": pagination})
}

// Statistics godoc
// @Summary Aggregate wage totals by status, teacher and month
// @Tags Wages
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /wages/statistics [get]
func (h *WageHandler) Statistics(c *gin.Context) {
	filter, err := wageFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, hit, err := h.service.Statistics(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, stats, middleware.ExtractMeta(c))
}

// Outstanding godoc
// @Summary Sum unpaid balances per teacher
// @Tags Wages
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /wages/outstanding [get]
func (h *WageHandler) Outstanding(c *gin.Context) {
	filter, err := wageFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, hit, err := h.service.Outstanding(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summary, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download a payroll report
// @Tags Wages
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /wages/export [get]
func (h *WageHandler) Export(c *gin.Context) {
	filter, err := wageFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	out, err := h.exporter.Export(c.Request.Context(), filter, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, out.Filename, out.ContentType, out.Body)
}
