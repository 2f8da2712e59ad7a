package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutoring-ledger-api/internal/dto"
	"github.com/noah-isme/tutoring-ledger-api/internal/models"
	"github.com/noah-isme/tutoring-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/tutoring-ledger-api/pkg/errors"
)

type fakeWageStore struct {
	records   map[string]*models.WageRecord
	conflicts int
	// interleave runs before a conflicting write, standing in for a
	// concurrent writer.
	interleave func(stored *models.WageRecord)
	creates    int
	updates    int
	listErr    error
}

func newFakeWageStore() *fakeWageStore {
	return &fakeWageStore{records: map[string]*models.WageRecord{}}
}

func (f *fakeWageStore) FindByID(_ context.Context, id string) (*models.WageRecord, error) {
	r, ok := f.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *r
	return &clone, nil
}

func (f *fakeWageStore) FindByKey(_ context.Context, teacherID, classID string, month, year int) (*models.WageRecord, error) {
	for _, r := range f.records {
		if r.TeacherID == teacherID && r.ClassID == classID && r.Month == month && r.Year == year {
			clone := *r
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeWageStore) Create(_ context.Context, record *models.WageRecord) error {
	for _, r := range f.records {
		if r.TeacherID == record.TeacherID && r.ClassID == record.ClassID && r.Month == record.Month && r.Year == record.Year {
			return repository.ErrDuplicate
		}
	}
	f.creates++
	clone := *record
	f.records[record.ID] = &clone
	return nil
}

func (f *fakeWageStore) Update(_ context.Context, record *models.WageRecord) error {
	stored, ok := f.records[record.ID]
	if !ok {
		return repository.ErrVersionConflict
	}
	if f.conflicts > 0 {
		f.conflicts--
		if f.interleave != nil {
			f.interleave(stored)
		}
		stored.Version++
		return repository.ErrVersionConflict
	}
	if stored.Version != record.Version {
		return repository.ErrVersionConflict
	}
	f.updates++
	record.Version++
	clone := *record
	f.records[record.ID] = &clone
	return nil
}

func (f *fakeWageStore) SettleUnpaid(_ context.Context, teacherID string, month, year int, settle func(*models.WageRecord)) ([]models.WageRecord, error) {
	var out []models.WageRecord
	ids := make([]string, 0, len(f.records))
	for id := range f.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r := f.records[id]
		if r.TeacherID != teacherID || r.Month != month || r.Year != year || r.PaymentStatus != models.PaymentStatusUnpaid || !r.CalculatedAmount.IsPositive() {
			continue
		}
		settle(r)
		r.Version++
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeWageStore) Delete(_ context.Context, id string, version int) error {
	r, ok := f.records[id]
	if !ok || r.Version != version || r.PaymentStatus != models.PaymentStatusUnpaid {
		return repository.ErrVersionConflict
	}
	delete(f.records, id)
	return nil
}

func (f *fakeWageStore) List(_ context.Context, filter models.WageFilter) ([]models.WageRecordDetail, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	var out []models.WageRecordDetail
	for _, r := range f.records {
		if filter.TeacherID != "" && r.TeacherID != filter.TeacherID {
			continue
		}
		if filter.Month > 0 && r.Month != filter.Month {
			continue
		}
		out = append(out, models.WageRecordDetail{WageRecord: *r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassID < out[j].ClassID })
	return out, len(out), nil
}

type fakeLessonSource struct {
	lessons []models.TeacherLesson
	from    time.Time
	to      time.Time
}

func (f *fakeLessonSource) ListTeacherLessons(_ context.Context, from, to time.Time) ([]models.TeacherLesson, error) {
	f.from, f.to = from, to
	return f.lessons, nil
}

type fakeTeacherDirectory struct {
	teachers map[string]models.Teacher
}

func (f *fakeTeacherDirectory) FindByID(_ context.Context, id string) (*models.Teacher, error) {
	t, ok := f.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (f *fakeTeacherDirectory) ListByIDs(_ context.Context, ids []string) ([]models.Teacher, error) {
	var out []models.Teacher
	for _, id := range ids {
		if t, ok := f.teachers[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func rate(v string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(v), Valid: true}
}

func lesson(teacherID *string, classID string, day int, present ...bool) models.TeacherLesson {
	students := models.StudentAttendanceList{}
	for i, p := range present {
		students = append(students, models.StudentAttendance{StudentID: string(rune('a' + i)), IsAbsent: !p})
	}
	return models.TeacherLesson{
		AttendanceRecord: models.AttendanceRecord{ClassID: classID, Date: date(2024, 1, day), LessonNumber: day, Students: students},
		TeacherID:        teacherID,
	}
}

func stringRef(v string) *string { return &v }

type wageFixture struct {
	svc      *WageService
	store    *fakeWageStore
	lessons  *fakeLessonSource
	teachers *fakeTeacherDirectory
}

func newWageFixture() wageFixture {
	store := newFakeWageStore()
	ann, bo, cy := stringRef("t-ann"), stringRef("t-bo"), stringRef("t-cy")
	lessons := &fakeLessonSource{lessons: []models.TeacherLesson{
		lesson(ann, "piano", 1, true, false),
		lesson(ann, "piano", 3, false, false),
		lesson(ann, "piano", 8, true),
		lesson(ann, "violin", 2),
		lesson(bo, "cello", 4, true),
		lesson(cy, "flute", 5, true),
		lesson(nil, "orphan", 6, true),
	}}
	teachers := &fakeTeacherDirectory{teachers: map[string]models.Teacher{
		"t-ann": {ID: "t-ann", FullName: "Ann", WagePerLesson: rate("300.50")},
		"t-bo":  {ID: "t-bo", FullName: "Bo"},
	}}
	svc := NewWageService(store, lessons, teachers, nil, NewMetricsService(), WageServiceConfig{UpdateRetries: 2, Currency: "THB"}, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC) }
	return wageFixture{svc: svc, store: store, lessons: lessons, teachers: teachers}
}

func (f wageFixture) record(teacherID, classID string) *models.WageRecord {
	for _, r := range f.store.records {
		if r.TeacherID == teacherID && r.ClassID == classID {
			return r
		}
	}
	return nil
}

func TestWageServiceRunMonthlyCalculation(t *testing.T) {
	f := newWageFixture()
	ctx := context.Background()

	result, err := f.svc.RunMonthlyCalculation(ctx, dto.WagePeriodRequest{Month: 1, Year: 2024}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 1, 1), f.lessons.from)
	assert.Equal(t, date(2024, 2, 1), f.lessons.to)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 3, result.Failed, "orphan class, teacher without rate, unknown teacher")
	require.Len(t, result.Details, 5)
	assert.Equal(t, "orphan", result.Details[0].ClassID)

	piano := f.record("t-ann", "piano")
	require.NotNil(t, piano)
	assert.Equal(t, 2, piano.LessonTaught, "lesson with every student absent is not taught")
	assert.Equal(t, "601.00", piano.CalculatedAmount.StringFixed(2))
	assert.Equal(t, models.PaymentStatusUnpaid, piano.PaymentStatus)
	assert.True(t, piano.Amount.IsZero())

	violin := f.record("t-ann", "violin")
	require.NotNil(t, violin)
	assert.Equal(t, 1, violin.LessonTaught, "lesson without roster counts as taught")
}

func TestWageServiceRunMonthlyCalculationIdempotent(t *testing.T) {
	f := newWageFixture()
	ctx := context.Background()
	period := dto.WagePeriodRequest{Month: 1, Year: 2024}

	_, err := f.svc.RunMonthlyCalculation(ctx, period, "admin-1")
	require.NoError(t, err)
	piano := f.record("t-ann", "piano")
	_, err = f.svc.ApplyPayment(ctx, piano.ID, dto.ApplyPaymentRequest{PaidAmount: decimal.RequireFromString("100")}, "admin-1")
	require.NoError(t, err)
	before := *f.record("t-ann", "piano")
	updates := f.store.updates

	second, err := f.svc.RunMonthlyCalculation(ctx, period, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Updated)
	assert.Equal(t, updates, f.store.updates, "unchanged groups are not rewritten")

	after := f.record("t-ann", "piano")
	assert.Equal(t, before.LessonTaught, after.LessonTaught)
	assert.True(t, before.CalculatedAmount.Equal(after.CalculatedAmount))
	assert.True(t, before.Amount.Equal(after.Amount))
	assert.Equal(t, models.PaymentStatusPartial, after.PaymentStatus)
}

func TestWageServiceRecalculationKeepsPayment(t *testing.T) {
	f := newWageFixture()
	ctx := context.Background()
	period := dto.WagePeriodRequest{Month: 1, Year: 2024}

	_, err := f.svc.RunMonthlyCalculation(ctx, period, "admin-1")
	require.NoError(t, err)
	piano := f.record("t-ann", "piano")
	_, err = f.svc.ApplyPayment(ctx, piano.ID, dto.ApplyPaymentRequest{PaidAmount: decimal.RequireFromString("601")}, "admin-1")
	require.NoError(t, err)

	f.lessons.lessons = append(f.lessons.lessons, lesson(stringRef("t-ann"), "piano", 10, true))
	_, err = f.svc.RunMonthlyCalculation(ctx, period, "admin-1")
	require.NoError(t, err)

	piano = f.record("t-ann", "piano")
	assert.Equal(t, 3, piano.LessonTaught)
	assert.Equal(t, "901.50", piano.CalculatedAmount.StringFixed(2))
	assert.Equal(t, "601.00", piano.Amount.StringFixed(2))
	assert.Equal(t, "300.50", piano.RemainingAmount.StringFixed(2))
	assert.Equal(t, models.PaymentStatusPartial, piano.PaymentStatus)
}

func TestWageServiceRecalculationRetriesAroundPayment(t *testing.T) {
	f := newWageFixture()
	ctx := context.Background()
	period := dto.WagePeriodRequest{Month: 1, Year: 2024}

	_, err := f.svc.RunMonthlyCalculation(ctx, period, "admin-1")
	require.NoError(t, err)

	f.lessons.lessons = append(f.lessons.lessons, lesson(stringRef("t-ann"), "piano", 10, true))
	f.store.conflicts = 1
	f.store.interleave = func(stored *models.WageRecord) {
		if stored.ClassID == "piano" {
			stored.Amount = decimal.NewFromInt(50)
			stored.Normalize()
		}
	}

	result, err := f.svc.RunMonthlyCalculation(ctx, period, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Failed)

	piano := f.record("t-ann", "piano")
	assert.Equal(t, 3, piano.LessonTaught)
	assert.Equal(t, "50.00", piano.Amount.StringFixed(2), "concurrent payment survives recalculation")
	assert.Equal(t, models.PaymentStatusPartial, piano.PaymentStatus)
}

func TestWageServiceApplyPaymentLifecycle(t *testing.T) {
	f := newWageFixture()
	ctx := context.Background()
	_, err := f.svc.RunMonthlyCalculation(ctx, dto.WagePeriodRequest{Month: 1, Year: 2024}, "admin-1")
	require.NoError(t, err)
	id := f.record("t-ann", "piano").ID

	first, err := f.svc.ApplyPayment(ctx, id, dto.ApplyPaymentRequest{PaidAmount: decimal.RequireFromString("200.25")}, "payer-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPartial, first.PaymentStatus)
	assert.Equal(t, "400.75", first.RemainingAmount.StringFixed(2))
	require.NotNil(t, first.PaidBy)
	assert.Equal(t, "payer-1", *first.PaidBy)
	assert.True(t, first.Amount.Add(first.RemainingAmount).Equal(first.CalculatedAmount))

	_, err = f.svc.ApplyPayment(ctx, id, dto.ApplyPaymentRequest{PaidAmount: decimal.RequireFromString("500")}, "payer-1")
	assert.True(t, errors.Is(err, appErrors.ErrExceedsRemaining))

	second, err := f.svc.ApplyPayment(ctx, id, dto.ApplyPaymentRequest{PaidAmount: decimal.RequireFromString("400.75")}, "payer-2")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFull, second.PaymentStatus)
	assert.True(t, second.RemainingAmount.IsZero())
	assert.Equal(t, "payer-2", *second.PaidBy)

	_, err = f.svc.ApplyPayment(ctx, id, dto.ApplyPaymentRequest{PaidAmount: decimal.RequireFromString("1")}, "payer-1")
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyFullyPaid))
}

func TestWageServiceApplyPaymentValidation(t *testing.T) {
	f := newWageFixture()
	ctx := context.Background()
	_, err := f.svc.RunMonthlyCalculation(ctx, dto.WagePeriodRequest{Month: 1, Year: 2024}, "admin-1")
	require.NoError(t, err)
	id := f.record("t-ann", "piano").ID

	for _, amount := range []string{"0", "-5", "10.005"} {
		_, err = f.svc.ApplyPayment(ctx, id, dto.ApplyPaymentRequest{PaidAmount: decimal.RequireFromString(amount)}, "payer-1")
		assert.True(t, errors.Is(err, appErrors.ErrValidation), amount)
	}

	_, err = f.svc.ApplyPayment(ctx, "missing", dto.ApplyPaymentRequest{PaidAmount: decimal.NewFromInt(1)}, "payer-1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestWageServiceApplyPaymentStaleAfterRetries(t *testing.T) {
	f := newWageFixture()
	ctx := context.Background()
	_, err := f.svc.RunMonthlyCalculation(ctx, dto.WagePeriodRequest{Month: 1, Year: 2024}, "admin-1")
	require.NoError(t, err)
	id := f.record("t-ann", "piano").ID

	f.store.conflicts = 10
	_, err = f.svc.ApplyPayment(ctx, id, dto.ApplyPaymentRequest{PaidAmount: decimal.NewFromInt(1)}, "payer-1")
	assert.True(t, errors.Is(err, appErrors.ErrStaleRecord))
	assert.True(t, f.record("t-ann", "piano").Amount.IsZero())
}

func TestWageServiceBulkSettle(t *testing.T) {
	f := newWageFixture()
	ctx := context.Background()
	_, err := f.svc.RunMonthlyCalculation(ctx, dto.WagePeriodRequest{Month: 1, Year: 2024}, "admin-1")
	require.NoError(t, err)

	result, err := f.svc.BulkSettle(ctx, dto.BulkSettleRequest{TeacherID: "t-ann", Month: 1, Year: 2024}, "payer-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Settled)
	assert.Equal(t, "901.50", result.TotalAmount.StringFixed(2))
	for _, r := range result.Records {
		assert.Equal(t, models.PaymentStatusFull, r.PaymentStatus)
		assert.True(t, r.RemainingAmount.IsZero())
		assert.True(t, r.Amount.Equal(r.CalculatedAmount))
	}

	_, err = f.svc.BulkSettle(ctx, dto.BulkSettleRequest{TeacherID: "t-ann", Month: 1, Year: 2024}, "payer-1")
	assert.True(t, errors.Is(err, appErrors.ErrNothingToPay))

	_, err = f.svc.BulkSettle(ctx, dto.BulkSettleRequest{TeacherID: "t-ann", Month: 13, Year: 2024}, "payer-1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestWageServiceBulkSettleSkipsPartial(t *testing.T) {
	f := newWageFixture()
	ctx := context.Background()
	_, err := f.svc.RunMonthlyCalculation(ctx, dto.WagePeriodRequest{Month: 1, Year: 2024}, "admin-1")
	require.NoError(t, err)
	piano := f.record("t-ann", "piano")
	_, err = f.svc.ApplyPayment(ctx, piano.ID, dto.ApplyPaymentRequest{PaidAmount: decimal.NewFromInt(1)}, "payer-1")
	require.NoError(t, err)

	result, err := f.svc.BulkSettle(ctx, dto.BulkSettleRequest{TeacherID: "t-ann", Month: 1, Year: 2024}, "payer-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Settled)
	assert.Equal(t, "violin", result.Records[0].ClassID)
	assert.Equal(t, models.PaymentStatusPartial, f.record("t-ann", "piano").PaymentStatus)
}

func TestWageServiceUpdateWageRecord(t *testing.T) {
	f := newWageFixture()
	ctx := context.Background()
	_, err := f.svc.RunMonthlyCalculation(ctx, dto.WagePeriodRequest{Month: 1, Year: 2024}, "admin-1")
	require.NoError(t, err)
	piano := f.record("t-ann", "piano")
	_, err = f.svc.ApplyPayment(ctx, piano.ID, dto.ApplyPaymentRequest{PaidAmount: decimal.NewFromInt(500)}, "payer-1")
	require.NoError(t, err)

	f.teachers.teachers["t-ann"] = models.Teacher{ID: "t-ann", WagePerLesson: rate("100")}
	lessons := 1
	updated, err := f.svc.UpdateWageRecord(ctx, piano.ID, dto.UpdateWageRecordRequest{LessonTaught: &lessons}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "100.00", updated.CalculatedAmount.StringFixed(2))
	assert.Equal(t, "500.00", updated.Amount.StringFixed(2), "amount is never recomputed")
	assert.True(t, updated.RemainingAmount.IsZero())
	assert.Equal(t, models.PaymentStatusFull, updated.PaymentStatus)

	_, err = f.svc.UpdateWageRecord(ctx, piano.ID, dto.UpdateWageRecordRequest{}, "admin-1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestWageServiceDeleteWageRecord(t *testing.T) {
	f := newWageFixture()
	ctx := context.Background()
	_, err := f.svc.RunMonthlyCalculation(ctx, dto.WagePeriodRequest{Month: 1, Year: 2024}, "admin-1")
	require.NoError(t, err)
	piano := f.record("t-ann", "piano")
	violin := f.record("t-ann", "violin")

	_, err = f.svc.ApplyPayment(ctx, piano.ID, dto.ApplyPaymentRequest{PaidAmount: decimal.NewFromInt(1)}, "payer-1")
	require.NoError(t, err)
	err = f.svc.DeleteWageRecord(ctx, piano.ID, "admin-1")
	assert.True(t, errors.Is(err, appErrors.ErrHasPayment))

	require.NoError(t, f.svc.DeleteWageRecord(ctx, violin.ID, "admin-1"))
	assert.Nil(t, f.record("t-ann", "violin"))

	err = f.svc.DeleteWageRecord(ctx, violin.ID, "admin-1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestWageServiceAggregates(t *testing.T) {
	f := newWageFixture()
	ctx := context.Background()
	_, err := f.svc.RunMonthlyCalculation(ctx, dto.WagePeriodRequest{Month: 1, Year: 2024}, "admin-1")
	require.NoError(t, err)
	piano := f.record("t-ann", "piano")
	_, err = f.svc.ApplyPayment(ctx, piano.ID, dto.ApplyPaymentRequest{PaidAmount: decimal.NewFromInt(101)}, "payer-1")
	require.NoError(t, err)

	stats, hit, err := f.svc.Statistics(ctx, models.WageFilter{Month: 1, Year: 2024})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "THB", stats.Currency)
	assert.Equal(t, "901.50", stats.Totals.Calculated.StringFixed(2))
	assert.Equal(t, "800.50", stats.Totals.Outstanding.StringFixed(2))

	outstanding, _, err := f.svc.Outstanding(ctx, models.WageFilter{})
	require.NoError(t, err)
	assert.Equal(t, "800.50", outstanding.Total.StringFixed(2))
	assert.Equal(t, 2, outstanding.Records)

	f.store.listErr = errors.New("db down")
	_, _, err = f.svc.Statistics(ctx, models.WageFilter{})
	assert.Equal(t, appErrors.KindInternal, appErrors.KindOf(err))
}

func TestWageServiceListAndGet(t *testing.T) {
	f := newWageFixture()
	ctx := context.Background()
	_, err := f.svc.RunMonthlyCalculation(ctx, dto.WagePeriodRequest{Month: 1, Year: 2024}, "admin-1")
	require.NoError(t, err)

	records, pagination, err := f.svc.List(ctx, models.WageFilter{TeacherID: "t-ann", PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 100, pagination.PageSize)
	assert.Equal(t, 1, pagination.Page)

	detail, err := f.svc.Get(ctx, records[0].ID)
	require.NoError(t, err)
	require.NotNil(t, detail.TeacherName)

	_, err = f.svc.Get(ctx, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestGroupLessons(t *testing.T) {
	ann := stringRef("t-ann")
	groups, orphans := groupLessons([]models.TeacherLesson{
		lesson(ann, "b", 1, true),
		lesson(ann, "a", 2, false),
		lesson(stringRef("t-0"), "z", 3, true),
		lesson(nil, "x", 4, true),
		lesson(stringRef(""), "y", 5, true),
	})
	require.Len(t, groups, 3)
	assert.Equal(t, wageGroup{key: wageKey{teacherID: "t-0", classID: "z"}, taught: 1}, groups[0])
	assert.Equal(t, wageGroup{key: wageKey{teacherID: "t-ann", classID: "a"}, taught: 0}, groups[1])
	assert.Equal(t, []string{"x", "y"}, orphans)
}
