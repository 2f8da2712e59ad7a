package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Teacher represents an instructor with a per-lesson wage rate.
type Teacher struct {
	ID            string              `db:"id" json:"id"`
	UserID        *string             `db:"user_id" json:"user_id,omitempty"`
	FullName      string              `db:"full_name" json:"full_name"`
	Email         string              `db:"email" json:"email"`
	WagePerLesson decimal.NullDecimal `db:"wage_per_lesson" json:"wage_per_lesson"`
	Active        bool                `db:"active" json:"active"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updated_at"`
}

// HasRate reports whether the teacher has a usable per-lesson rate.
func (t Teacher) HasRate() bool {
	return t.WagePerLesson.Valid && t.WagePerLesson.Decimal.IsPositive()
}
