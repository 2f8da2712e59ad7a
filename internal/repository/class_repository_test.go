package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "teacher_id", "is_available", "start_date", "end_date", "days_of_lesson_in_week", "attendance_ledger_id", "created_at", "updated_at"}).
		AddRow("class-1", "Piano A", "teacher-1", true, start, end, "{1,3}", nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE id = $1")).
		WithArgs("class-1").
		WillReturnRows(rows)

	class, err := repo.FindByID(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, "Piano A", class.Name)
	require.NotNil(t, class.TeacherID)
	assert.Equal(t, "teacher-1", *class.TeacherID)
	assert.Equal(t, []int{1, 3}, []int(class.DaysOfLessonInWeek))
	assert.Nil(t, class.AttendanceLedgerID)
	assert.True(t, class.Schedule().Complete())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestClassRepositoryListRoster(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	enrolled := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"class_id", "student_id", "lesson_credits", "enrolled_at"}).
		AddRow("class-1", "s1", 0, enrolled).
		AddRow("class-1", "s2", 2, enrolled.Add(time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("FROM class_students WHERE class_id = $1 ORDER BY enrolled_at ASC")).
		WithArgs("class-1").
		WillReturnRows(rows)

	roster, err := repo.ListRoster(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "s2", roster[1].StudentID)
	assert.Equal(t, 2, roster[1].LessonCredits)
}
