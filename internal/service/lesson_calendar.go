package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-ledger-api/internal/dto"
	"github.com/noah-isme/tutoring-ledger-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-ledger-api/pkg/errors"
)

const isoDate = "2006-01-02"

// ExpandLessonDates lists every day in [start, end] whose weekday index
// (Sunday = 0) is in weekdays. Both bounds are truncated to midnight in the
// start date's location.
func ExpandLessonDates(start, end time.Time, weekdays []int) []time.Time {
	set := models.Weekdays(weekdays)
	if len(set.Sorted()) == 0 {
		return nil
	}

	loc := start.Location()
	day := midnight(start, loc)
	last := midnight(end.In(loc), loc)
	if day.After(last) {
		return nil
	}

	var dates []time.Time
	for !day.After(last) {
		if set.Contains(day.Weekday()) {
			dates = append(dates, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return dates
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// FormatSchedule expands a class schedule into its display form.
func FormatSchedule(className string, schedule models.ClassSchedule) (*dto.ScheduleView, error) {
	if !schedule.Complete() {
		return nil, appErrors.Clone(appErrors.ErrScheduleIncomplete, fmt.Sprintf("class %q has an incomplete schedule", className))
	}

	dates := ExpandLessonDates(*schedule.StartDate, *schedule.EndDate, schedule.DaysOfLessonInWeek)
	view := &dto.ScheduleView{
		ClassName:      className,
		TotalLessons:   len(dates),
		LessonDay:      []string{},
		LessonDates:    make([]string, 0, len(dates)),
		LessonsByMonth: map[string][]string{},
		StartDate:      schedule.StartDate.Format(isoDate),
		EndDate:        schedule.EndDate.Format(isoDate),
	}
	for _, d := range schedule.DaysOfLessonInWeek.Sorted() {
		view.LessonDay = append(view.LessonDay, time.Weekday(d).String())
	}
	for _, date := range dates {
		iso := date.Format(isoDate)
		view.LessonDates = append(view.LessonDates, iso)
		key := fmt.Sprintf("%d-%d", date.Year(), int(date.Month()))
		view.LessonsByMonth[key] = append(view.LessonsByMonth[key], iso)
	}
	return view, nil
}

type scheduleClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// ScheduleService exposes class lesson calendars.
type ScheduleService struct {
	classes scheduleClassRepository
	logger  *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(classes scheduleClassRepository, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{classes: classes, logger: logger}
}

// GetClassSchedule loads a class and formats its lesson calendar.
func (s *ScheduleService) GetClassSchedule(ctx context.Context, classID string) (*dto.ScheduleView, error) {
	class, err := loadClass(ctx, s.classes, classID)
	if err != nil {
		return nil, err
	}
	return FormatSchedule(class.Name, class.Schedule())
}

func loadClass(ctx context.Context, repo scheduleClassRepository, classID string) (*models.Class, error) {
	class, err := repo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load class")
	}
	return class, nil
}
