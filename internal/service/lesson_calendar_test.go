package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutoring-ledger-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-ledger-api/pkg/errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isoDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(isoDate)
	}
	return out
}

func TestExpandLessonDatesMondayWednesday(t *testing.T) {
	dates := ExpandLessonDates(date(2024, 1, 1), date(2024, 1, 10), []int{1, 3})
	assert.Equal(t, []string{"2024-01-01", "2024-01-03", "2024-01-08", "2024-01-10"}, isoDates(dates))
}

func TestExpandLessonDatesProperties(t *testing.T) {
	start := date(2024, 2, 20)
	end := date(2024, 5, 3)
	weekdays := []int{0, 2, 2, 6}

	dates := ExpandLessonDates(start, end, weekdays)
	require.NotEmpty(t, dates)
	for i, d := range dates {
		assert.False(t, d.Before(start))
		assert.False(t, d.After(end))
		assert.Contains(t, []time.Weekday{time.Sunday, time.Tuesday, time.Saturday}, d.Weekday())
		if i > 0 {
			assert.True(t, d.After(dates[i-1]), "dates must be strictly ascending")
		}
	}
	assert.Equal(t, dates, ExpandLessonDates(start, end, weekdays))
}

func TestExpandLessonDatesSingleDay(t *testing.T) {
	d := date(2024, 1, 3)
	assert.Equal(t, []time.Time{d}, ExpandLessonDates(d, d, []int{int(d.Weekday())}))
	assert.Empty(t, ExpandLessonDates(d, d, []int{int(time.Friday)}))
}

func TestExpandLessonDatesEmpty(t *testing.T) {
	assert.Empty(t, ExpandLessonDates(date(2024, 1, 1), date(2024, 1, 31), nil))
	assert.Empty(t, ExpandLessonDates(date(2024, 1, 31), date(2024, 1, 1), []int{1}))
	assert.Empty(t, ExpandLessonDates(date(2024, 1, 1), date(2024, 1, 31), []int{7, -1}))
}

func TestExpandLessonDatesTruncatesTime(t *testing.T) {
	start := time.Date(2024, 1, 1, 18, 30, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)
	dates := ExpandLessonDates(start, end, []int{1, 3})
	assert.Equal(t, []string{"2024-01-01", "2024-01-03"}, isoDates(dates))
	assert.Equal(t, 0, dates[0].Hour())
}

func TestFormatSchedule(t *testing.T) {
	start := date(2024, 1, 29)
	end := date(2024, 2, 7)
	view, err := FormatSchedule("Piano A", models.ClassSchedule{StartDate: &start, EndDate: &end, DaysOfLessonInWeek: models.Weekdays{3, 1, 3}})
	require.NoError(t, err)

	assert.Equal(t, "Piano A", view.ClassName)
	assert.Equal(t, 4, view.TotalLessons)
	assert.Equal(t, []string{"Monday", "Wednesday"}, view.LessonDay)
	assert.Equal(t, []string{"2024-01-29", "2024-01-31", "2024-02-05", "2024-02-07"}, view.LessonDates)
	assert.Equal(t, []string{"2024-01-29", "2024-01-31"}, view.LessonsByMonth["2024-1"])
	assert.Equal(t, []string{"2024-02-05", "2024-02-07"}, view.LessonsByMonth["2024-2"])
	assert.Equal(t, "2024-01-29", view.StartDate)
	assert.Equal(t, "2024-02-07", view.EndDate)
}

func TestFormatScheduleIncomplete(t *testing.T) {
	start := date(2024, 1, 1)
	_, err := FormatSchedule("Piano A", models.ClassSchedule{StartDate: &start, DaysOfLessonInWeek: models.Weekdays{1}})
	assert.True(t, errors.Is(err, appErrors.ErrScheduleIncomplete))

	end := date(2024, 1, 31)
	_, err = FormatSchedule("Piano A", models.ClassSchedule{StartDate: &start, EndDate: &end})
	assert.True(t, errors.Is(err, appErrors.ErrScheduleIncomplete))
}

type fakeClassRepo struct {
	classes map[string]*models.Class
	roster  map[string][]models.ClassStudent
	err     error
}

func (f *fakeClassRepo) FindByID(_ context.Context, id string) (*models.Class, error) {
	if f.err != nil {
		return nil, f.err
	}
	class, ok := f.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *class
	return &clone, nil
}

func (f *fakeClassRepo) ListRoster(_ context.Context, classID string) ([]models.ClassStudent, error) {
	return f.roster[classID], nil
}

func TestScheduleServiceGetClassSchedule(t *testing.T) {
	start := date(2024, 1, 1)
	end := date(2024, 1, 10)
	repo := &fakeClassRepo{classes: map[string]*models.Class{
		"class-1": {ID: "class-1", Name: "Piano A", StartDate: &start, EndDate: &end, DaysOfLessonInWeek: models.Weekdays{1, 3}},
	}}
	svc := NewScheduleService(repo, nil)

	view, err := svc.GetClassSchedule(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, 4, view.TotalLessons)

	_, err = svc.GetClassSchedule(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	repo.err = errors.New("db down")
	_, err = svc.GetClassSchedule(context.Background(), "class-1")
	assert.Equal(t, appErrors.KindInternal, appErrors.KindOf(err))
}
