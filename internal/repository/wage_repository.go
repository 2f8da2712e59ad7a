package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutoring-ledger-api/internal/models"
)

const wageColumns = `id, teacher_id, class_id, month, year, lesson_taught, wage_per_lesson, calculated_amount, amount, remaining_amount, payment_status, payment_date, paid_by, created_by, version, created_at, updated_at`

// WageRepository persists wage records behind an optimistic version guard.
type WageRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewWageRepository constructs the repository.
func NewWageRepository(db *sqlx.DB) *WageRepository {
	return &WageRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// FindByID fetches a wage record by ID.
func (r *WageRepository) FindByID(ctx context.Context, id string) (*models.WageRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM wage_records WHERE id = $1", wageColumns)
	var record models.WageRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByKey fetches the record of a teacher, class and month.
func (r *WageRepository) FindByKey(ctx context.Context, teacherID, classID string, month, year int) (*models.WageRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM wage_records WHERE teacher_id = $1 AND class_id = $2 AND month = $3 AND year = $4", wageColumns)
	var record models.WageRecord
	if err := r.db.GetContext(ctx, &record, query, teacherID, classID, month, year); err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts a record. ErrDuplicate is returned when another writer
// already created the same teacher/class/month key.
func (r *WageRepository) Create(ctx context.Context, record *models.WageRecord) error {
	const query = `INSERT INTO wage_records (id, teacher_id, class_id, month, year, lesson_taught, wage_per_lesson, calculated_amount, amount, remaining_amount, payment_status, payment_date, paid_by, created_by, version, created_at, updated_at)
VALUES (:id, :teacher_id, :class_id, :month, :year, :lesson_taught, :wage_per_lesson, :calculated_amount, :amount, :remaining_amount, :payment_status, :payment_date, :paid_by, :created_by, :version, :created_at, :updated_at)
ON CONFLICT (teacher_id, class_id, month, year) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return fmt.Errorf("insert wage record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check wage insert rows: %w", err)
	}
	if rows == 0 {
		return ErrDuplicate
	}
	return nil
}

// Update writes every mutable column when the stored version still matches
// record.Version, then advances record.Version.
func (r *WageRepository) Update(ctx context.Context, record *models.WageRecord) error {
	return updateWage(ctx, r.db, record, r.now())
}

// SettleUnpaid locks every unpaid record of a teacher and month with a
// positive calculated amount, applies settle to each and persists them in one
// transaction.
func (r *WageRepository) SettleUnpaid(ctx context.Context, teacherID string, month, year int, settle func(*models.WageRecord)) (records []models.WageRecord, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin settle transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`SELECT %s FROM wage_records
WHERE teacher_id = $1 AND month = $2 AND year = $3 AND payment_status = $4 AND calculated_amount > 0
ORDER BY class_id ASC
FOR UPDATE`, wageColumns)
	if err = tx.SelectContext(ctx, &records, query, teacherID, month, year, models.PaymentStatusUnpaid); err != nil {
		return nil, fmt.Errorf("lock unpaid wage records: %w", err)
	}

	now := r.now()
	for i := range records {
		settle(&records[i])
		if err = updateWage(ctx, tx, &records[i], now); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit settle transaction: %w", err)
	}
	return records, nil
}

// Delete removes an unpaid record at the given version.
func (r *WageRepository) Delete(ctx context.Context, id string, version int) error {
	const query = `DELETE FROM wage_records WHERE id = $1 AND version = $2 AND payment_status = $3`
	result, err := r.db.ExecContext(ctx, query, id, version, models.PaymentStatusUnpaid)
	if err != nil {
		return fmt.Errorf("delete wage record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check wage delete rows: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	return nil
}

// List returns wage records with teacher and class names. A zero PageSize
// returns every matching row.
func (r *WageRepository) List(ctx context.Context, filter models.WageFilter) ([]models.WageRecordDetail, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("w.teacher_id = $%d", len(args)))
	}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("w.class_id = $%d", len(args)))
	}
	if filter.Month > 0 {
		args = append(args, filter.Month)
		conditions = append(conditions, fmt.Sprintf("w.month = $%d", len(args)))
	}
	if filter.Year > 0 {
		args = append(args, filter.Year)
		conditions = append(conditions, fmt.Sprintf("w.year = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("w.payment_status = $%d", len(args)))
	}

	base := fmt.Sprintf(`FROM wage_records w
LEFT JOIN teachers t ON t.id = w.teacher_id
LEFT JOIN classes c ON c.id = w.class_id
WHERE %s`, strings.Join(conditions, " AND "))

	columns := make([]string, 0, 17)
	for _, col := range strings.Split(wageColumns, ", ") {
		columns = append(columns, "w."+col)
	}
	query := fmt.Sprintf("SELECT %s, t.full_name AS teacher_name, c.name AS class_name %s ORDER BY w.year DESC, w.month DESC, t.full_name ASC, c.name ASC", strings.Join(columns, ", "), base)

	selectArgs := append([]interface{}{}, args...)
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		selectArgs = append(selectArgs, filter.PageSize, (page-1)*filter.PageSize)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(selectArgs)-1, len(selectArgs))
	}

	var records []models.WageRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, selectArgs...); err != nil {
		return nil, 0, fmt.Errorf("list wage records: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count wage records: %w", err)
	}
	return records, total, nil
}

func updateWage(ctx context.Context, exec sqlx.ExtContext, record *models.WageRecord, now time.Time) error {
	const query = `UPDATE wage_records SET
	lesson_taught = $1,
	wage_per_lesson = $2,
	calculated_amount = $3,
	amount = $4,
	remaining_amount = $5,
	payment_status = $6,
	payment_date = $7,
	paid_by = $8,
	version = version + 1,
	updated_at = $9
WHERE id = $10 AND version = $11`
	result, err := exec.ExecContext(ctx, query,
		record.LessonTaught,
		record.WagePerLesson,
		record.CalculatedAmount,
		record.Amount,
		record.RemainingAmount,
		record.PaymentStatus,
		record.PaymentDate,
		record.PaidBy,
		now,
		record.ID,
		record.Version,
	)
	if err != nil {
		return fmt.Errorf("update wage record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check wage update rows: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	record.Version++
	record.UpdatedAt = now
	return nil
}
