package dto

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutoring-ledger-api/internal/models"
)

// WagePeriodRequest selects a calculation month.
type WagePeriodRequest struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" validate:"required,min=2000,max=2100"`
}

// WageCalculationOutcome classifies a group of the monthly pass.
type WageCalculationOutcome string

const (
	WageOutcomeCreated WageCalculationOutcome = "created"
	WageOutcomeUpdated WageCalculationOutcome = "updated"
	WageOutcomeFailed  WageCalculationOutcome = "failed"
)

// WageCalculationItem is the per-group detail of a monthly pass.
type WageCalculationItem struct {
	TeacherID    string                 `json:"teacherId"`
	ClassID      string                 `json:"classId"`
	WageRecordID string                 `json:"wageRecordId,omitempty"`
	LessonTaught int                    `json:"lessonTaught"`
	Outcome      WageCalculationOutcome `json:"outcome"`
	Error        string                 `json:"error,omitempty"`
}

// WageCalculationResult summarises a monthly pass.
type WageCalculationResult struct {
	Month   int                   `json:"month"`
	Year    int                   `json:"year"`
	Created int                   `json:"created"`
	Updated int                   `json:"updated"`
	Failed  int                   `json:"failed"`
	Details []WageCalculationItem `json:"details"`
}

// ApplyPaymentRequest adds a payment to a wage record.
type ApplyPaymentRequest struct {
	PaidAmount decimal.Decimal `json:"paidAmount"`
}

// BulkSettleRequest settles every unpaid record of a teacher for a month.
type BulkSettleRequest struct {
	TeacherID string `json:"teacherId" validate:"required"`
	Month     int    `json:"month" validate:"required,min=1,max=12"`
	Year      int    `json:"year" validate:"required,min=2000,max=2100"`
}

// BulkSettleResult lists the records settled.
type BulkSettleResult struct {
	TeacherID   string              `json:"teacherId"`
	Month       int                 `json:"month"`
	Year        int                 `json:"year"`
	Settled     int                 `json:"settled"`
	TotalAmount decimal.Decimal     `json:"totalAmount"`
	Records     []models.WageRecord `json:"records"`
}

// UpdateWageRecordRequest overrides the lesson count of a record.
type UpdateWageRecordRequest struct {
	LessonTaught *int `json:"lessonTaught" validate:"required,min=0"`
}

// WageTotals are decimal sums over a set of wage records.
type WageTotals struct {
	Records      int             `json:"records"`
	LessonTaught int             `json:"lessonTaught"`
	Calculated   decimal.Decimal `json:"calculated"`
	Paid         decimal.Decimal `json:"paid"`
	Outstanding  decimal.Decimal `json:"outstanding"`
}

// TeacherWageSummary aggregates a teacher's records.
type TeacherWageSummary struct {
	TeacherID   string  `json:"teacherId"`
	TeacherName *string `json:"teacherName,omitempty"`
	WageTotals
}

// MonthlyWageSummary aggregates one calendar month.
type MonthlyWageSummary struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	WageTotals
}

// WageStatistics is the aggregate view of a filtered record set.
type WageStatistics struct {
	Totals    WageTotals                   `json:"totals"`
	ByStatus  map[models.PaymentStatus]int `json:"byStatus"`
	ByTeacher []TeacherWageSummary         `json:"byTeacher"`
	ByMonth   []MonthlyWageSummary         `json:"byMonth"`
	Currency  string                       `json:"currency,omitempty"`
}

// OutstandingTeacher is the unpaid balance owed to one teacher.
type OutstandingTeacher struct {
	TeacherID   string          `json:"teacherId"`
	TeacherName *string         `json:"teacherName,omitempty"`
	Records     int             `json:"records"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// OutstandingSummary sums calculated minus paid over records where positive.
type OutstandingSummary struct {
	Total    decimal.Decimal      `json:"total"`
	Records  int                  `json:"records"`
	Teachers []OutstandingTeacher `json:"teachers"`
	Currency string               `json:"currency,omitempty"`
}

// WageExport is a rendered payroll report.
type WageExport struct {
	Filename    string
	ContentType string
	Body        []byte
}
