package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AttendanceLedger marks that a class has had its lesson records generated.
type AttendanceLedger struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"classId"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// StudentAttendance is one roster entry of a lesson.
type StudentAttendance struct {
	StudentID string `json:"studentId"`
	IsAbsent  bool   `json:"isAbsent"`
}

// StudentAttendanceList is persisted as a JSONB array preserving roster order.
type StudentAttendanceList []StudentAttendance

// Value marshals the list to JSON for persistence.
func (l StudentAttendanceList) Value() (driver.Value, error) {
	if l == nil {
		l = StudentAttendanceList{}
	}
	data, err := json.Marshal([]StudentAttendance(l))
	if err != nil {
		return nil, fmt.Errorf("marshal attendance students: %w", err)
	}
	return data, nil
}

// Scan unmarshals the JSONB payload.
func (l *StudentAttendanceList) Scan(value interface{}) error {
	if value == nil {
		*l = StudentAttendanceList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported attendance students type %T", value)
	}
	var out []StudentAttendance
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal attendance students: %w", err)
	}
	*l = out
	return nil
}

// AttendanceSummary counts present and absent students of a lesson.
type AttendanceSummary struct {
	PresentNumber int `json:"presentNumber"`
	AbsentNumber  int `json:"absentNumber"`
	TotalStudents int `json:"totalStudents"`
}

// AttendanceRecord is one lesson of a class ledger. Ledger models share the
// camelCase keys of the student entries stored in the students column.
type AttendanceRecord struct {
	ID           string                `db:"id" json:"id"`
	LedgerID     string                `db:"ledger_id" json:"ledgerId"`
	ClassID      string                `db:"class_id" json:"classId"`
	Date         time.Time             `db:"lesson_date" json:"date"`
	LessonNumber int                   `db:"lesson_number" json:"lessonNumber"`
	Students     StudentAttendanceList `db:"students" json:"students"`
	CreatedAt    time.Time             `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time             `db:"updated_at" json:"updatedAt"`
}

// Summary derives the present/absent counts by scanning the roster.
func (r AttendanceRecord) Summary() AttendanceSummary {
	summary := AttendanceSummary{TotalStudents: len(r.Students)}
	for _, s := range r.Students {
		if s.IsAbsent {
			summary.AbsentNumber++
		} else {
			summary.PresentNumber++
		}
	}
	return summary
}

// Taught reports whether the lesson counts toward the teacher's wage.
func (r AttendanceRecord) Taught() bool {
	return len(r.Students) == 0 || r.Summary().PresentNumber > 0
}

// TeacherLesson is an attendance record joined with the teacher owning its class.
type TeacherLesson struct {
	AttendanceRecord
	TeacherID *string `db:"teacher_id"`
}

// CreditDelta adjusts a student's lesson credits for a class.
type CreditDelta struct {
	StudentID string
	Delta     int
}
