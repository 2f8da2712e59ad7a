package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutoring-ledger-api/internal/models"
)

const attendanceColumns = `id, ledger_id, class_id, lesson_date, lesson_number, students, created_at, updated_at`

// LessonMutator edits a locked lesson in place and returns the credit
// adjustments implied by the edit.
type LessonMutator func(record *models.AttendanceRecord) ([]models.CreditDelta, error)

// LessonReverser returns the credit adjustments undoing a lesson before it is removed.
type LessonReverser func(record models.AttendanceRecord) []models.CreditDelta

// AttendanceRepository persists attendance ledgers and their lesson records.
type AttendanceRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreateLedger writes the ledger, every lesson record and the class back
// reference in one transaction. ErrDuplicate is returned when the class
// already has a ledger.
func (r *AttendanceRepository) CreateLedger(ctx context.Context, ledger *models.AttendanceLedger, records []models.AttendanceRecord) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existing sql.NullString
	if err = tx.GetContext(ctx, &existing, `SELECT attendance_ledger_id FROM classes WHERE id = $1 FOR UPDATE`, ledger.ClassID); err != nil {
		return fmt.Errorf("lock class for ledger: %w", err)
	}
	if existing.Valid {
		return ErrDuplicate
	}

	const insertLedger = `INSERT INTO attendance_ledgers (id, class_id, created_by, created_at)
VALUES (:id, :class_id, :created_by, :created_at)
ON CONFLICT (class_id) DO NOTHING`
	result, err := tx.NamedExecContext(ctx, insertLedger, ledger)
	if err != nil {
		return fmt.Errorf("insert attendance ledger: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check ledger insert rows: %w", err)
	}
	if rows == 0 {
		return ErrDuplicate
	}

	if len(records) > 0 {
		const insertRecords = `INSERT INTO attendance_records (id, ledger_id, class_id, lesson_date, lesson_number, students, created_at, updated_at)
VALUES (:id, :ledger_id, :class_id, :lesson_date, :lesson_number, :students, :created_at, :updated_at)`
		if _, err = tx.NamedExecContext(ctx, insertRecords, records); err != nil {
			return fmt.Errorf("insert attendance records: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx, `UPDATE classes SET attendance_ledger_id = $1, updated_at = $2 WHERE id = $3`, ledger.ID, ledger.CreatedAt, ledger.ClassID); err != nil {
		return fmt.Errorf("link ledger to class: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger transaction: %w", err)
	}
	return nil
}

// ListByClass returns every lesson record of a class ordered by lesson number.
func (r *AttendanceRepository) ListByClass(ctx context.Context, classID string) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_records WHERE class_id = $1 ORDER BY lesson_number ASC", attendanceColumns)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, classID); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// FindByLesson fetches a single lesson record.
func (r *AttendanceRepository) FindByLesson(ctx context.Context, classID string, lessonNumber int) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_records WHERE class_id = $1 AND lesson_number = $2", attendanceColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, classID, lessonNumber); err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateLesson locks the lesson row, applies mutate and persists the roster
// together with the resulting credit adjustments.
func (r *AttendanceRepository) UpdateLesson(ctx context.Context, classID string, lessonNumber int, mutate LessonMutator) (record *models.AttendanceRecord, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin lesson transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	record, err = lockLesson(ctx, tx, classID, lessonNumber)
	if err != nil {
		return nil, err
	}

	deltas, err := mutate(record)
	if err != nil {
		return nil, err
	}

	record.UpdatedAt = r.now()
	if _, err = tx.ExecContext(ctx, `UPDATE attendance_records SET students = $1, updated_at = $2 WHERE id = $3`, record.Students, record.UpdatedAt, record.ID); err != nil {
		return nil, fmt.Errorf("update attendance record: %w", err)
	}
	if err = applyCredits(ctx, tx, classID, deltas); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lesson transaction: %w", err)
	}
	return record, nil
}

// DeleteLesson removes a lesson after applying the credit reversal computed by
// reverse, then shifts later lessons down so numbering stays contiguous.
func (r *AttendanceRepository) DeleteLesson(ctx context.Context, classID string, lessonNumber int, reverse LessonReverser) (reversed int, renumbered int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin lesson delete transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	record, err := lockLesson(ctx, tx, classID, lessonNumber)
	if err != nil {
		return 0, 0, err
	}

	deltas := reverse(*record)
	if err = applyCredits(ctx, tx, classID, deltas); err != nil {
		return 0, 0, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, record.ID); err != nil {
		return 0, 0, fmt.Errorf("delete attendance record: %w", err)
	}

	// Later lessons pass through negative numbers so each statement keeps
	// (class_id, lesson_number) unique even when the constraint is immediate.
	result, err := tx.ExecContext(ctx, `UPDATE attendance_records SET lesson_number = -(lesson_number - 1), updated_at = $1 WHERE class_id = $2 AND lesson_number > $3`, r.now(), classID, lessonNumber)
	if err != nil {
		return 0, 0, fmt.Errorf("renumber attendance records: %w", err)
	}
	shifted, err := result.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("check renumber rows: %w", err)
	}
	if shifted > 0 {
		if _, err = tx.ExecContext(ctx, `UPDATE attendance_records SET lesson_number = -lesson_number WHERE class_id = $1 AND lesson_number < 0`, classID); err != nil {
			return 0, 0, fmt.Errorf("restore attendance lesson numbers: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit lesson delete: %w", err)
	}
	return len(deltas), int(shifted), nil
}

// ListTeacherLessons returns lessons dated within [from, to) together with the
// teacher currently assigned to each lesson's class.
func (r *AttendanceRepository) ListTeacherLessons(ctx context.Context, from, to time.Time) ([]models.TeacherLesson, error) {
	const query = `SELECT ar.id, ar.ledger_id, ar.class_id, ar.lesson_date, ar.lesson_number, ar.students, ar.created_at, ar.updated_at, c.teacher_id
FROM attendance_records ar
JOIN classes c ON c.id = ar.class_id
WHERE ar.lesson_date >= $1 AND ar.lesson_date < $2
ORDER BY ar.class_id ASC, ar.lesson_number ASC`
	var lessons []models.TeacherLesson
	if err := r.db.SelectContext(ctx, &lessons, query, from, to); err != nil {
		return nil, fmt.Errorf("list teacher lessons: %w", err)
	}
	return lessons, nil
}

func lockLesson(ctx context.Context, tx *sqlx.Tx, classID string, lessonNumber int) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_records WHERE class_id = $1 AND lesson_number = $2 FOR UPDATE", attendanceColumns)
	var record models.AttendanceRecord
	if err := tx.GetContext(ctx, &record, query, classID, lessonNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock attendance record: %w", err)
	}
	return &record, nil
}

func applyCredits(ctx context.Context, tx *sqlx.Tx, classID string, deltas []models.CreditDelta) error {
	const query = `UPDATE class_students SET lesson_credits = lesson_credits + $1 WHERE class_id = $2 AND student_id = $3`
	for _, d := range deltas {
		if d.Delta == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, query, d.Delta, classID, d.StudentID); err != nil {
			return fmt.Errorf("adjust lesson credits: %w", err)
		}
	}
	return nil
}
