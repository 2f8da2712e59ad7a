package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-ledger-api/internal/dto"
	"github.com/noah-isme/tutoring-ledger-api/internal/models"
	"github.com/noah-isme/tutoring-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/tutoring-ledger-api/pkg/errors"
	"github.com/noah-isme/tutoring-ledger-api/pkg/middleware/requestid"
)

const unknownStudentName = "Unknown student"

type attendanceClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListRoster(ctx context.Context, classID string) ([]models.ClassStudent, error)
}

type attendanceStore interface {
	CreateLedger(ctx context.Context, ledger *models.AttendanceLedger, records []models.AttendanceRecord) error
	ListByClass(ctx context.Context, classID string) ([]models.AttendanceRecord, error)
	FindByLesson(ctx context.Context, classID string, lessonNumber int) (*models.AttendanceRecord, error)
	UpdateLesson(ctx context.Context, classID string, lessonNumber int, mutate repository.LessonMutator) (*models.AttendanceRecord, error)
	DeleteLesson(ctx context.Context, classID string, lessonNumber int, reverse repository.LessonReverser) (int, int, error)
}

type userDirectory interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// AttendanceService manages class attendance ledgers.
type AttendanceService struct {
	classes   attendanceClassRepository
	store     attendanceStore
	users     userDirectory
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(classes attendanceClassRepository, store attendanceStore, users userDirectory, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		classes:   classes,
		store:     store,
		users:     users,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateLedger seeds one lesson record per scheduled date of an active class,
// every roster student initially present.
func (s *AttendanceService) CreateLedger(ctx context.Context, classID, actorID string) (*dto.LedgerCreated, error) {
	class, err := loadClass(ctx, s.classes, classID)
	if err != nil {
		return nil, err
	}
	if !class.IsAvailable {
		return nil, appErrors.Clone(appErrors.ErrInactiveClass, fmt.Sprintf("class %q is not active", class.Name))
	}
	if class.AttendanceLedgerID != nil {
		return nil, appErrors.Clone(appErrors.ErrLedgerExists, fmt.Sprintf("class %q already has an attendance ledger", class.Name))
	}

	view, err := FormatSchedule(class.Name, class.Schedule())
	if err != nil {
		return nil, err
	}
	if view.TotalLessons == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptySchedule, fmt.Sprintf("schedule of class %q produces no lessons", class.Name))
	}
	dates := ExpandLessonDates(*class.StartDate, *class.EndDate, class.DaysOfLessonInWeek)

	roster, err := s.classes.ListRoster(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load class roster")
	}

	now := s.now()
	ledger := &models.AttendanceLedger{ID: uuid.NewString(), ClassID: classID, CreatedBy: actorID, CreatedAt: now}
	records := make([]models.AttendanceRecord, len(dates))
	for i, d := range dates {
		students := make(models.StudentAttendanceList, len(roster))
		for j, member := range roster {
			students[j] = models.StudentAttendance{StudentID: member.StudentID}
		}
		records[i] = models.AttendanceRecord{
			ID:           uuid.NewString(),
			LedgerID:     ledger.ID,
			ClassID:      classID,
			Date:         d,
			LessonNumber: i + 1,
			Students:     students,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	if err := s.store.CreateLedger(ctx, ledger, records); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrLedgerExists, fmt.Sprintf("class %q already has an attendance ledger", class.Name))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to create attendance ledger")
	}

	s.metrics.RecordLedgerCreated()
	s.logger.Info("attendance ledger created",
		zap.String("class_id", classID),
		zap.String("ledger_id", ledger.ID),
		zap.Int("lessons", len(records)),
		zap.Int("students", len(roster)),
		zap.String("actor_id", actorID),
		zap.String("request_id", requestid.FromContext(ctx)),
	)

	return &dto.LedgerCreated{
		LedgerID:     ledger.ID,
		ClassID:      classID,
		TotalLessons: len(records),
		Lessons:      summarize(records),
	}, nil
}

// ListSummaries returns the per-lesson present/absent counts of a class.
func (s *AttendanceService) ListSummaries(ctx context.Context, classID string) ([]dto.LessonSummary, error) {
	if _, err := loadClass(ctx, s.classes, classID); err != nil {
		return nil, err
	}
	records, err := s.store.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to list attendance")
	}
	return summarize(records), nil
}

// GetLessonDetail returns the roster of one lesson enriched with student
// identities. Identities that cannot be resolved degrade to placeholders.
func (s *AttendanceService) GetLessonDetail(ctx context.Context, classID string, lessonNumber int) (*dto.LessonDetail, error) {
	record, err := s.store.FindByLesson(ctx, classID, lessonNumber)
	if err != nil {
		return nil, lessonError(err, lessonNumber, "failed to load lesson")
	}

	ids := make([]string, len(record.Students))
	for i, st := range record.Students {
		ids[i] = st.StudentID
	}
	directory := map[string]models.User{}
	if s.users != nil && len(ids) > 0 {
		users, err := s.users.FindByIDs(ctx, ids)
		if err != nil {
			s.logger.Warn("student lookup failed", zap.String("class_id", classID), zap.Error(err))
		}
		for _, u := range users {
			directory[u.ID] = u
		}
	}

	students := make([]dto.LessonStudent, len(record.Students))
	for i, st := range record.Students {
		entry := dto.LessonStudent{StudentID: st.StudentID, IsAbsent: st.IsAbsent, FullName: unknownStudentName}
		if u, ok := directory[st.StudentID]; ok {
			entry.FullName = u.FullName
			entry.Email = u.Email
			entry.Phone = u.Phone
		}
		students[i] = entry
	}

	return &dto.LessonDetail{
		ClassID:      record.ClassID,
		Date:         record.Date.Format(isoDate),
		LessonNumber: record.LessonNumber,
		Summary:      record.Summary(),
		Students:     students,
	}, nil
}

// RecordAttendance overwrites the absence flag of every listed student found
// in the lesson roster. Unknown students are skipped. Each change of flag
// refunds or withdraws one lesson credit in the same transaction.
func (s *AttendanceService) RecordAttendance(ctx context.Context, classID string, lessonNumber int, req dto.RecordAttendanceRequest, actorID string) (*dto.RecordAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, "invalid attendance payload")
	}
	if lessonNumber < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson number must be positive")
	}

	var touched []int
	record, err := s.store.UpdateLesson(ctx, classID, lessonNumber, func(r *models.AttendanceRecord) ([]models.CreditDelta, error) {
		touched = touched[:0]
		before := make([]bool, len(r.Students))
		index := make(map[string]int, len(r.Students))
		for i, st := range r.Students {
			before[i] = st.IsAbsent
			index[st.StudentID] = i
		}

		seen := map[int]bool{}
		for _, flag := range req.Students {
			i, ok := index[flag.StudentID]
			if !ok {
				continue
			}
			r.Students[i].IsAbsent = *flag.IsAbsent
			if !seen[i] {
				seen[i] = true
				touched = append(touched, i)
			}
		}
		return creditChanges(before, r.Students), nil
	})
	if err != nil {
		return nil, lessonError(err, lessonNumber, "failed to record attendance")
	}

	result := &dto.RecordAttendanceResult{UpdatedCount: len(touched), UpdatedEntries: make([]models.StudentAttendance, 0, len(touched))}
	for _, i := range touched {
		result.UpdatedEntries = append(result.UpdatedEntries, record.Students[i])
	}

	s.metrics.RecordAttendanceUpdates(result.UpdatedCount)
	s.logger.Info("attendance recorded",
		zap.String("class_id", classID),
		zap.Int("lesson_number", lessonNumber),
		zap.Int("updated", result.UpdatedCount),
		zap.Int("submitted", len(req.Students)),
		zap.String("actor_id", actorID),
	)
	return result, nil
}

// DeleteLesson removes one lesson, withdraws the credits its absences had
// refunded and closes the numbering gap.
func (s *AttendanceService) DeleteLesson(ctx context.Context, classID string, lessonNumber int, actorID string) (*dto.LessonDeleted, error) {
	if lessonNumber < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson number must be positive")
	}
	reversed, renumbered, err := s.store.DeleteLesson(ctx, classID, lessonNumber, reverseAbsences)
	if err != nil {
		return nil, lessonError(err, lessonNumber, "failed to delete lesson")
	}

	s.metrics.RecordLessonDeleted()
	s.logger.Warn("lesson deleted",
		zap.String("class_id", classID),
		zap.Int("lesson_number", lessonNumber),
		zap.Int("reversed_credits", reversed),
		zap.Int("renumbered", renumbered),
		zap.String("actor_id", actorID),
	)
	return &dto.LessonDeleted{ClassID: classID, LessonNumber: lessonNumber, ReversedCredits: reversed, Renumbered: renumbered}, nil
}

func summarize(records []models.AttendanceRecord) []dto.LessonSummary {
	out := make([]dto.LessonSummary, len(records))
	for i, r := range records {
		out[i] = dto.LessonSummary{Date: r.Date.Format(isoDate), LessonNumber: r.LessonNumber, Summary: r.Summary()}
	}
	return out
}

// creditChanges maps flag transitions to credit deltas: becoming absent
// refunds a credit, becoming present again withdraws it.
func creditChanges(before []bool, after models.StudentAttendanceList) []models.CreditDelta {
	var deltas []models.CreditDelta
	for i, st := range after {
		switch {
		case st.IsAbsent && !before[i]:
			deltas = append(deltas, models.CreditDelta{StudentID: st.StudentID, Delta: 1})
		case !st.IsAbsent && before[i]:
			deltas = append(deltas, models.CreditDelta{StudentID: st.StudentID, Delta: -1})
		}
	}
	return deltas
}

func reverseAbsences(record models.AttendanceRecord) []models.CreditDelta {
	var deltas []models.CreditDelta
	for _, st := range record.Students {
		if st.IsAbsent {
			deltas = append(deltas, models.CreditDelta{StudentID: st.StudentID, Delta: -1})
		}
	}
	return deltas
}

func lessonError(err error, lessonNumber int, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("lesson %d not found", lessonNumber))
	}
	return appErrors.Wrap(err, appErrors.ErrInternal, message)
}
