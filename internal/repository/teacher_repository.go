package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutoring-ledger-api/internal/models"
)

const teacherColumns = `id, user_id, full_name, email, wage_per_lesson, active, created_at, updated_at`

// TeacherRepository reads teachers and their wage rates.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs the repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// FindByID fetches a teacher by ID.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := fmt.Sprintf("SELECT %s FROM teachers WHERE id = $1", teacherColumns)
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ListByIDs fetches the teachers matching ids. Unknown ids are skipped.
func (r *TeacherRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Teacher, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM teachers WHERE id = ANY($1) ORDER BY full_name ASC", teacherColumns)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list teachers by ids: %w", err)
	}
	return teachers, nil
}
