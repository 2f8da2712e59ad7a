package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-ledger-api/internal/dto"
	"github.com/noah-isme/tutoring-ledger-api/internal/models"
	"github.com/noah-isme/tutoring-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/tutoring-ledger-api/pkg/errors"
	"github.com/noah-isme/tutoring-ledger-api/pkg/middleware/requestid"
)

const wageCacheNamespace = "wages"

type wageStore interface {
	FindByID(ctx context.Context, id string) (*models.WageRecord, error)
	FindByKey(ctx context.Context, teacherID, classID string, month, year int) (*models.WageRecord, error)
	Create(ctx context.Context, record *models.WageRecord) error
	Update(ctx context.Context, record *models.WageRecord) error
	SettleUnpaid(ctx context.Context, teacherID string, month, year int, settle func(*models.WageRecord)) ([]models.WageRecord, error)
	Delete(ctx context.Context, id string, version int) error
	List(ctx context.Context, filter models.WageFilter) ([]models.WageRecordDetail, int, error)
}

type wageLessonSource interface {
	ListTeacherLessons(ctx context.Context, from, to time.Time) ([]models.TeacherLesson, error)
}

type wageTeacherDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Teacher, error)
}

// WageServiceConfig tunes retries, currency labelling and aggregate caching.
type WageServiceConfig struct {
	UpdateRetries  int
	Currency       string
	StatsTTL       time.Duration
	OutstandingTTL time.Duration
}

// WageService computes teacher wages from attendance and tracks payments.
type WageService struct {
	store     wageStore
	lessons   wageLessonSource
	teachers  wageTeacherDirectory
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       WageServiceConfig
	now       func() time.Time
}

// NewWageService constructs a WageService.
func NewWageService(store wageStore, lessons wageLessonSource, teachers wageTeacherDirectory, cache *CacheService, metrics *MetricsService, cfg WageServiceConfig, validate *validator.Validate, logger *zap.Logger) *WageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UpdateRetries <= 0 {
		cfg.UpdateRetries = 3
	}
	return &WageService{
		store:     store,
		lessons:   lessons,
		teachers:  teachers,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type wageKey struct {
	teacherID string
	classID   string
}

type wageGroup struct {
	key    wageKey
	taught int
}

// RunMonthlyCalculation creates or refreshes one wage record per teacher and
// class with lessons in the month. A failing group is reported in the result
// and never stops the remaining groups.
func (s *WageService) RunMonthlyCalculation(ctx context.Context, req dto.WagePeriodRequest, actorID string) (*dto.WageCalculationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, "invalid wage period")
	}
	started := time.Now()

	from := time.Date(req.Year, time.Month(req.Month), 1, 0, 0, 0, 0, time.UTC)
	lessons, err := s.lessons.ListTeacherLessons(ctx, from, from.AddDate(0, 1, 0))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load lessons for period")
	}

	result := &dto.WageCalculationResult{Month: req.Month, Year: req.Year, Details: []dto.WageCalculationItem{}}
	groups, orphans := groupLessons(lessons)
	for _, classID := range orphans {
		result.Failed++
		result.Details = append(result.Details, dto.WageCalculationItem{ClassID: classID, Outcome: dto.WageOutcomeFailed, Error: "class has no assigned teacher"})
	}

	teachers, err := s.loadTeachers(ctx, groups)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load teachers")
	}

	for _, g := range groups {
		item := dto.WageCalculationItem{TeacherID: g.key.teacherID, ClassID: g.key.classID, LessonTaught: g.taught}
		teacher, ok := teachers[g.key.teacherID]
		switch {
		case !ok:
			err = fmt.Errorf("teacher %s not found", g.key.teacherID)
		case !teacher.HasRate():
			err = fmt.Errorf("teacher %s has no wage rate", g.key.teacherID)
		default:
			var record *models.WageRecord
			record, item.Outcome, err = s.upsertWage(ctx, g, teacher.WagePerLesson.Decimal, req, actorID)
			if record != nil {
				item.WageRecordID = record.ID
			}
		}

		if err != nil {
			item.Outcome = dto.WageOutcomeFailed
			item.Error = err.Error()
			s.logger.Warn("wage group failed",
				zap.String("teacher_id", g.key.teacherID),
				zap.String("class_id", g.key.classID),
				zap.Error(err),
			)
		}
		switch item.Outcome {
		case dto.WageOutcomeCreated:
			result.Created++
		case dto.WageOutcomeUpdated:
			result.Updated++
		default:
			result.Failed++
		}
		result.Details = append(result.Details, item)
	}

	s.invalidate(ctx)
	s.metrics.RecordWageCalculation(result.Created, result.Updated, result.Failed, time.Since(started))
	s.logger.Info("monthly wage calculation finished",
		zap.Int("month", req.Month),
		zap.Int("year", req.Year),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
		zap.String("actor_id", actorID),
		zap.String("request_id", requestid.FromContext(ctx)),
	)
	return result, nil
}

// groupLessons counts taught lessons per (teacher, class). Classes without a
// teacher are returned separately. Groups come back in a stable order.
func groupLessons(lessons []models.TeacherLesson) ([]wageGroup, []string) {
	counts := map[wageKey]int{}
	orphanSet := map[string]struct{}{}
	for _, l := range lessons {
		if l.TeacherID == nil || *l.TeacherID == "" {
			orphanSet[l.ClassID] = struct{}{}
			continue
		}
		key := wageKey{teacherID: *l.TeacherID, classID: l.ClassID}
		if _, ok := counts[key]; !ok {
			counts[key] = 0
		}
		if l.Taught() {
			counts[key]++
		}
	}

	groups := make([]wageGroup, 0, len(counts))
	for key, taught := range counts {
		groups = append(groups, wageGroup{key: key, taught: taught})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].key.teacherID != groups[j].key.teacherID {
			return groups[i].key.teacherID < groups[j].key.teacherID
		}
		return groups[i].key.classID < groups[j].key.classID
	})

	orphans := make([]string, 0, len(orphanSet))
	for id := range orphanSet {
		orphans = append(orphans, id)
	}
	sort.Strings(orphans)
	return groups, orphans
}

func (s *WageService) loadTeachers(ctx context.Context, groups []wageGroup) (map[string]models.Teacher, error) {
	seen := map[string]struct{}{}
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		if _, ok := seen[g.key.teacherID]; ok {
			continue
		}
		seen[g.key.teacherID] = struct{}{}
		ids = append(ids, g.key.teacherID)
	}
	teachers, err := s.teachers.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Teacher, len(teachers))
	for _, t := range teachers {
		out[t.ID] = t
	}
	return out, nil
}

// upsertWage reads the current record for the group key and writes the
// recalculated values behind the version guard, retrying on conflicts.
func (s *WageService) upsertWage(ctx context.Context, g wageGroup, rate decimal.Decimal, period dto.WagePeriodRequest, actorID string) (*models.WageRecord, dto.WageCalculationOutcome, error) {
	for attempt := 0; attempt <= s.cfg.UpdateRetries; attempt++ {
		existing, err := s.store.FindByKey(ctx, g.key.teacherID, g.key.classID, period.Month, period.Year)
		if errors.Is(err, sql.ErrNoRows) {
			now := s.now()
			record := &models.WageRecord{
				ID:        uuid.NewString(),
				TeacherID: g.key.teacherID,
				ClassID:   g.key.classID,
				Month:     period.Month,
				Year:      period.Year,
				Amount:    decimal.Zero,
				CreatedBy: actorID,
				Version:   1,
				CreatedAt: now,
				UpdatedAt: now,
			}
			record.Recalculate(g.taught, rate)
			err = s.store.Create(ctx, record)
			if err == nil {
				return record, dto.WageOutcomeCreated, nil
			}
			if errors.Is(err, repository.ErrDuplicate) {
				s.metrics.RecordVersionConflict("wage_record")
				continue
			}
			return nil, "", err
		}
		if err != nil {
			return nil, "", err
		}

		if existing.LessonTaught == g.taught && existing.WagePerLesson.Equal(rate) {
			return existing, dto.WageOutcomeUpdated, nil
		}
		existing.Recalculate(g.taught, rate)
		err = s.store.Update(ctx, existing)
		if err == nil {
			return existing, dto.WageOutcomeUpdated, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, "", err
		}
		s.metrics.RecordVersionConflict("wage_record")
	}
	return nil, "", appErrors.ErrStaleRecord
}

// ApplyPayment adds a payment to a wage record. The amount must be positive
// with at most two decimal places and may not exceed the remaining balance.
func (s *WageService) ApplyPayment(ctx context.Context, id string, req dto.ApplyPaymentRequest, payerID string) (*models.WageRecord, error) {
	paid := req.PaidAmount
	if !paid.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "paidAmount must be positive")
	}
	if !paid.Equal(paid.Round(2)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "paidAmount supports at most 2 decimal places")
	}

	record, err := s.mutate(ctx, id, func(w *models.WageRecord) error {
		w.Normalize()
		if w.PaymentStatus == models.PaymentStatusFull {
			return appErrors.ErrAlreadyFullyPaid
		}
		if paid.GreaterThan(w.RemainingAmount) {
			return appErrors.Clone(appErrors.ErrExceedsRemaining, fmt.Sprintf("payment of %s exceeds remaining amount %s", paid.StringFixed(2), w.RemainingAmount.StringFixed(2)))
		}
		now := s.now()
		w.Amount = w.Amount.Add(paid)
		w.PaymentDate = &now
		w.PaidBy = &payerID
		w.Normalize()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.metrics.RecordWagePayments("single", 1)
	s.logger.Info("wage payment applied",
		zap.String("wage_record_id", id),
		zap.String("paid_amount", paid.StringFixed(2)),
		zap.String("status", string(record.PaymentStatus)),
		zap.String("payer_id", payerID),
	)
	return record, nil
}

// BulkSettle marks every unpaid record of a teacher and month as fully paid
// in one transaction.
func (s *WageService) BulkSettle(ctx context.Context, req dto.BulkSettleRequest, payerID string) (*dto.BulkSettleResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, "invalid settlement payload")
	}

	now := s.now()
	records, err := s.store.SettleUnpaid(ctx, req.TeacherID, req.Month, req.Year, func(w *models.WageRecord) {
		w.Amount = w.CalculatedAmount
		w.PaymentDate = &now
		w.PaidBy = &payerID
		w.Normalize()
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, appErrors.ErrStaleRecord
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to settle wages")
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNothingToPay, fmt.Sprintf("no unpaid wage records for teacher %s in %d-%02d", req.TeacherID, req.Year, req.Month))
	}

	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}

	s.invalidate(ctx)
	s.metrics.RecordWagePayments("bulk", len(records))
	s.logger.Info("wages settled",
		zap.String("teacher_id", req.TeacherID),
		zap.Int("month", req.Month),
		zap.Int("year", req.Year),
		zap.Int("records", len(records)),
		zap.String("total", total.StringFixed(2)),
		zap.String("payer_id", payerID),
	)
	return &dto.BulkSettleResult{
		TeacherID:   req.TeacherID,
		Month:       req.Month,
		Year:        req.Year,
		Settled:     len(records),
		TotalAmount: total,
		Records:     records,
	}, nil
}

// UpdateWageRecord overrides the lesson count and recomputes the calculated
// amount with the teacher's current rate. The paid amount is kept.
func (s *WageService) UpdateWageRecord(ctx context.Context, id string, req dto.UpdateWageRecordRequest, actorID string) (*models.WageRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, "invalid wage update payload")
	}

	record, err := s.mutate(ctx, id, func(w *models.WageRecord) error {
		teacher, err := s.teachers.FindByID(ctx, w.TeacherID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to load teacher")
		}
		if !teacher.HasRate() {
			return appErrors.Clone(appErrors.ErrValidation, "teacher has no wage rate")
		}
		w.Recalculate(*req.LessonTaught, teacher.WagePerLesson.Decimal)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Info("wage record updated",
		zap.String("wage_record_id", id),
		zap.Int("lesson_taught", record.LessonTaught),
		zap.String("actor_id", actorID),
	)
	return record, nil
}

// DeleteWageRecord removes a record that never received money.
func (s *WageService) DeleteWageRecord(ctx context.Context, id, actorID string) error {
	for attempt := 0; attempt <= s.cfg.UpdateRetries; attempt++ {
		record, err := s.find(ctx, id)
		if err != nil {
			return err
		}
		if record.PaymentStatus != models.PaymentStatusUnpaid || record.Amount.IsPositive() {
			return appErrors.ErrHasPayment
		}
		err = s.store.Delete(ctx, id, record.Version)
		if err == nil {
			s.invalidate(ctx)
			s.logger.Warn("wage record deleted", zap.String("wage_record_id", id), zap.String("actor_id", actorID))
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return appErrors.Wrap(err, appErrors.ErrInternal, "failed to delete wage record")
		}
		s.metrics.RecordVersionConflict("wage_record")
	}
	return appErrors.ErrStaleRecord
}

// Get returns a wage record with its teacher's name when available.
func (s *WageService) Get(ctx context.Context, id string) (*models.WageRecordDetail, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &models.WageRecordDetail{WageRecord: *record}
	if teacher, err := s.teachers.FindByID(ctx, record.TeacherID); err == nil {
		detail.TeacherName = &teacher.FullName
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("teacher lookup failed", zap.String("teacher_id", record.TeacherID), zap.Error(err))
	}
	return detail, nil
}

// List returns a page of wage records.
func (s *WageService) List(ctx context.Context, filter models.WageFilter) ([]models.WageRecordDetail, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	records, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to list wage records")
	}
	return records, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Statistics folds the filtered records into totals and per-teacher and
// per-month breakdowns. The boolean reports a cache hit.
func (s *WageService) Statistics(ctx context.Context, filter models.WageFilter) (*dto.WageStatistics, bool, error) {
	key := s.cache.Key(wageCacheNamespace, "stats", wageFilterKey(filter))
	stats, hit, err := remember(ctx, s.cache, key, s.cfg.StatsTTL, func() (*dto.WageStatistics, error) {
		records, err := s.all(ctx, filter)
		if err != nil {
			return nil, err
		}
		stats := SummarizeWages(records)
		stats.Currency = s.cfg.Currency
		return &stats, nil
	})
	if err != nil {
		return nil, false, err
	}
	return stats, hit, nil
}

// Outstanding sums the unpaid balance per teacher. The boolean reports a cache hit.
func (s *WageService) Outstanding(ctx context.Context, filter models.WageFilter) (*dto.OutstandingSummary, bool, error) {
	key := s.cache.Key(wageCacheNamespace, "outstanding", wageFilterKey(filter))
	summary, hit, err := remember(ctx, s.cache, key, s.cfg.OutstandingTTL, func() (*dto.OutstandingSummary, error) {
		records, err := s.all(ctx, filter)
		if err != nil {
			return nil, err
		}
		summary := SummarizeOutstanding(records)
		summary.Currency = s.cfg.Currency
		return &summary, nil
	})
	if err != nil {
		return nil, false, err
	}
	return summary, hit, nil
}

func (s *WageService) all(ctx context.Context, filter models.WageFilter) ([]models.WageRecordDetail, error) {
	filter.Page, filter.PageSize = 0, 0
	records, _, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load wage records")
	}
	return records, nil
}

// mutate re-reads the record and re-applies change until the versioned write
// lands or the retry budget runs out.
func (s *WageService) mutate(ctx context.Context, id string, change func(*models.WageRecord) error) (*models.WageRecord, error) {
	for attempt := 0; attempt <= s.cfg.UpdateRetries; attempt++ {
		record, err := s.find(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := change(record); err != nil {
			return nil, err
		}
		record.Normalize()
		err = s.store.Update(ctx, record)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to update wage record")
		}
		s.metrics.RecordVersionConflict("wage_record")
		s.logger.Debug("wage record version conflict", zap.String("wage_record_id", id), zap.Int("attempt", attempt+1))
	}
	return nil, appErrors.ErrStaleRecord
}

func (s *WageService) find(ctx context.Context, id string) (*models.WageRecord, error) {
	record, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "wage record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to load wage record")
	}
	return record, nil
}

func (s *WageService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, wageCacheNamespace); err != nil {
		s.logger.Warn("wage cache invalidation failed", zap.Error(err))
	}
}

func wageFilterKey(filter models.WageFilter) string {
	status := ""
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	return strings.Join([]string{
		"t=" + filter.TeacherID,
		"c=" + filter.ClassID,
		fmt.Sprintf("m=%d", filter.Month),
		fmt.Sprintf("y=%d", filter.Year),
		"s=" + status,
	}, "|")
}
