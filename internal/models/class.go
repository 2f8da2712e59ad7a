package models

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"
)

// Weekdays is a set of weekday indices (Sunday = 0) stored as INT[].
type Weekdays []int

// Value encodes the set as a Postgres integer array.
func (w Weekdays) Value() (driver.Value, error) {
	arr := make(pq.Int64Array, len(w))
	for i, d := range w {
		arr[i] = int64(d)
	}
	return arr.Value()
}

// Scan decodes a Postgres integer array.
func (w *Weekdays) Scan(src interface{}) error {
	var arr pq.Int64Array
	if err := arr.Scan(src); err != nil {
		return fmt.Errorf("scan weekdays: %w", err)
	}
	if arr == nil {
		*w = nil
		return nil
	}
	out := make(Weekdays, len(arr))
	for i, d := range arr {
		out[i] = int(d)
	}
	*w = out
	return nil
}

// Contains reports whether day is part of the set.
func (w Weekdays) Contains(day time.Weekday) bool {
	for _, d := range w {
		if d == int(day) {
			return true
		}
	}
	return false
}

// Sorted returns the distinct valid weekdays in ascending order.
func (w Weekdays) Sorted() []int {
	seen := make(map[int]struct{}, len(w))
	out := make([]int, 0, len(w))
	for _, d := range w {
		if d < 0 || d > 6 {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// ClassSchedule is the weekly recurrence rule embedded in a class.
type ClassSchedule struct {
	StartDate          *time.Time
	EndDate            *time.Time
	DaysOfLessonInWeek Weekdays
}

// Complete reports whether every part of the rule is present.
func (s ClassSchedule) Complete() bool {
	return s.StartDate != nil && s.EndDate != nil && len(s.DaysOfLessonInWeek) > 0
}

// Class represents a tutoring class with its teacher and weekly schedule.
type Class struct {
	ID                 string     `db:"id" json:"id"`
	Name               string     `db:"name" json:"name"`
	TeacherID          *string    `db:"teacher_id" json:"teacher_id,omitempty"`
	IsAvailable        bool       `db:"is_available" json:"is_available"`
	StartDate          *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate            *time.Time `db:"end_date" json:"end_date,omitempty"`
	DaysOfLessonInWeek Weekdays   `db:"days_of_lesson_in_week" json:"days_of_lesson_in_week"`
	AttendanceLedgerID *string    `db:"attendance_ledger_id" json:"attendance_ledger_id,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Schedule extracts the recurrence rule.
func (c Class) Schedule() ClassSchedule {
	return ClassSchedule{
		StartDate:          c.StartDate,
		EndDate:            c.EndDate,
		DaysOfLessonInWeek: c.DaysOfLessonInWeek,
	}
}

// ClassStudent is a roster entry.
type ClassStudent struct {
	ClassID       string    `db:"class_id" json:"class_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	LessonCredits int       `db:"lesson_credits" json:"lesson_credits"`
	EnrolledAt    time.Time `db:"enrolled_at" json:"enrolled_at"`
}
