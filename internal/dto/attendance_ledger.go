package dto

import "github.com/noah-isme/tutoring-ledger-api/internal/models"

// LessonSummary is one row of a class's attendance ledger listing.
type LessonSummary struct {
	Date         string                   `json:"date"`
	LessonNumber int                      `json:"lessonNumber"`
	Summary      models.AttendanceSummary `json:"summary"`
}

// LedgerCreated is returned after seeding a class's attendance ledger.
type LedgerCreated struct {
	LedgerID     string          `json:"ledgerId"`
	ClassID      string          `json:"classId"`
	TotalLessons int             `json:"totalLessons"`
	Lessons      []LessonSummary `json:"lessons"`
}

// LessonStudent is a roster entry enriched from the user directory.
type LessonStudent struct {
	StudentID string  `json:"studentId"`
	IsAbsent  bool    `json:"isAbsent"`
	FullName  string  `json:"fullName"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone,omitempty"`
}

// LessonDetail is the full roster of a single lesson.
type LessonDetail struct {
	ClassID      string                   `json:"classId"`
	Date         string                   `json:"date"`
	LessonNumber int                      `json:"lessonNumber"`
	Summary      models.AttendanceSummary `json:"summary"`
	Students     []LessonStudent          `json:"students"`
}

// StudentFlag sets the absence flag of one student.
type StudentFlag struct {
	StudentID string `json:"studentId" validate:"required"`
	IsAbsent  *bool  `json:"isAbsent" validate:"required"`
}

// RecordAttendanceRequest carries a (possibly partial) set of flags for a
// lesson. An empty list is accepted and changes nothing; a missing list is not.
type RecordAttendanceRequest struct {
	Students []StudentFlag `json:"students" validate:"required,dive"`
}

// RecordAttendanceResult reports the entries actually changed.
type RecordAttendanceResult struct {
	UpdatedCount   int                        `json:"updatedCount"`
	UpdatedEntries []models.StudentAttendance `json:"updatedEntries"`
}

// LessonDeleted reports an administrative lesson removal.
type LessonDeleted struct {
	ClassID         string `json:"classId"`
	LessonNumber    int    `json:"lessonNumber"`
	ReversedCredits int    `json:"reversedCredits"`
	Renumbered      int    `json:"renumbered"`
}
