package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is derived from paid amount against calculated amount.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusFull    PaymentStatus = "full"
)

// Valid returns true when the status is a supported value.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusFull:
		return true
	default:
		return false
	}
}

// DerivePaymentStatus applies the three-way split between unpaid, partial
// and full payment.
func DerivePaymentStatus(amount, calculated decimal.Decimal) PaymentStatus {
	switch {
	case !amount.IsPositive():
		return PaymentStatusUnpaid
	case amount.LessThan(calculated):
		return PaymentStatusPartial
	default:
		return PaymentStatusFull
	}
}

// WageRecord is the compensation entry of one teacher for one class and month.
type WageRecord struct {
	ID               string          `db:"id" json:"id"`
	TeacherID        string          `db:"teacher_id" json:"teacherId"`
	ClassID          string          `db:"class_id" json:"classId"`
	Month            int             `db:"month" json:"month"`
	Year             int             `db:"year" json:"year"`
	LessonTaught     int             `db:"lesson_taught" json:"lessonTaught"`
	WagePerLesson    decimal.Decimal `db:"wage_per_lesson" json:"wagePerLesson"`
	CalculatedAmount decimal.Decimal `db:"calculated_amount" json:"calculatedAmount"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	RemainingAmount  decimal.Decimal `db:"remaining_amount" json:"remainingAmount"`
	PaymentStatus    PaymentStatus   `db:"payment_status" json:"paymentStatus"`
	PaymentDate      *time.Time      `db:"payment_date" json:"paymentDate,omitempty"`
	PaidBy           *string         `db:"paid_by" json:"paidBy,omitempty"`
	CreatedBy        string          `db:"created_by" json:"createdBy"`
	Version          int             `db:"version" json:"version"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// Normalize recomputes the derived fields from amount and calculated amount.
// Every mutation path calls it before persisting.
func (w *WageRecord) Normalize() {
	if w.Amount.IsNegative() {
		w.Amount = decimal.Zero
	}
	remaining := w.CalculatedAmount.Sub(w.Amount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	w.RemainingAmount = remaining
	w.PaymentStatus = DerivePaymentStatus(w.Amount, w.CalculatedAmount)
}

// Recalculate sets the lesson count and rate and refreshes the calculated
// amount. Amount is left untouched.
func (w *WageRecord) Recalculate(lessons int, rate decimal.Decimal) {
	w.LessonTaught = lessons
	w.WagePerLesson = rate
	w.CalculatedAmount = rate.Mul(decimal.NewFromInt(int64(lessons)))
	w.Normalize()
}

// WageRecordDetail enriches a wage record with display names.
type WageRecordDetail struct {
	WageRecord
	TeacherName *string `db:"teacher_name" json:"teacherName,omitempty"`
	ClassName   *string `db:"class_name" json:"className,omitempty"`
}

// WageFilter narrows wage listings and aggregates.
type WageFilter struct {
	TeacherID string
	ClassID   string
	Month     int
	Year      int
	Status    *PaymentStatus
	Page      int
	PageSize  int
}
