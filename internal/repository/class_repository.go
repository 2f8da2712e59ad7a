package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutoring-ledger-api/internal/models"
)

const classColumns = `id, name, teacher_id, is_available, start_date, end_date, days_of_lesson_in_week, attendance_ledger_id, created_at, updated_at`

// ClassRepository reads classes and their rosters.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID fetches a class by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := fmt.Sprintf("SELECT %s FROM classes WHERE id = $1", classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListRoster returns the class roster in enrollment order.
func (r *ClassRepository) ListRoster(ctx context.Context, classID string) ([]models.ClassStudent, error) {
	const query = `SELECT class_id, student_id, lesson_credits, enrolled_at FROM class_students WHERE class_id = $1 ORDER BY enrolled_at ASC, student_id ASC`
	var roster []models.ClassStudent
	if err := r.db.SelectContext(ctx, &roster, query, classID); err != nil {
		return nil, fmt.Errorf("list class roster: %w", err)
	}
	return roster, nil
}
