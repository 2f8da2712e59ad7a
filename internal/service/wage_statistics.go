package service

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutoring-ledger-api/internal/dto"
	"github.com/noah-isme/tutoring-ledger-api/internal/models"
)

// outstandingOf is calculated minus paid, floored at zero.
func outstandingOf(w models.WageRecord) decimal.Decimal {
	diff := w.CalculatedAmount.Sub(w.Amount)
	if diff.IsNegative() {
		return decimal.Zero
	}
	return diff
}

func addTotals(t *dto.WageTotals, w models.WageRecord) {
	t.Records++
	t.LessonTaught += w.LessonTaught
	t.Calculated = t.Calculated.Add(w.CalculatedAmount)
	t.Paid = t.Paid.Add(w.Amount)
	t.Outstanding = t.Outstanding.Add(outstandingOf(w))
}

func zeroTotals() dto.WageTotals {
	return dto.WageTotals{Calculated: decimal.Zero, Paid: decimal.Zero, Outstanding: decimal.Zero}
}

// SummarizeWages folds wage records into totals, a status histogram and
// per-teacher and per-month breakdowns using exact decimal sums.
func SummarizeWages(records []models.WageRecordDetail) dto.WageStatistics {
	stats := dto.WageStatistics{
		Totals: zeroTotals(),
		ByStatus: map[models.PaymentStatus]int{
			models.PaymentStatusUnpaid:  0,
			models.PaymentStatusPartial: 0,
			models.PaymentStatusFull:    0,
		},
		ByTeacher: []dto.TeacherWageSummary{},
		ByMonth:   []dto.MonthlyWageSummary{},
	}

	teachers := map[string]*dto.TeacherWageSummary{}
	type period struct{ year, month int }
	months := map[period]*dto.MonthlyWageSummary{}

	for _, r := range records {
		w := r.WageRecord
		addTotals(&stats.Totals, w)
		stats.ByStatus[models.DerivePaymentStatus(w.Amount, w.CalculatedAmount)]++

		ts, ok := teachers[w.TeacherID]
		if !ok {
			ts = &dto.TeacherWageSummary{TeacherID: w.TeacherID, TeacherName: r.TeacherName, WageTotals: zeroTotals()}
			teachers[w.TeacherID] = ts
		}
		addTotals(&ts.WageTotals, w)

		key := period{year: w.Year, month: w.Month}
		ms, ok := months[key]
		if !ok {
			ms = &dto.MonthlyWageSummary{Year: w.Year, Month: w.Month, WageTotals: zeroTotals()}
			months[key] = ms
		}
		addTotals(&ms.WageTotals, w)
	}

	for _, ts := range teachers {
		stats.ByTeacher = append(stats.ByTeacher, *ts)
	}
	sort.Slice(stats.ByTeacher, func(i, j int) bool {
		return stats.ByTeacher[i].TeacherID < stats.ByTeacher[j].TeacherID
	})

	for _, ms := range months {
		stats.ByMonth = append(stats.ByMonth, *ms)
	}
	sort.Slice(stats.ByMonth, func(i, j int) bool {
		if stats.ByMonth[i].Year != stats.ByMonth[j].Year {
			return stats.ByMonth[i].Year < stats.ByMonth[j].Year
		}
		return stats.ByMonth[i].Month < stats.ByMonth[j].Month
	})
	return stats
}

// SummarizeOutstanding sums the unpaid balance per teacher over records where
// it is positive, largest balance first.
func SummarizeOutstanding(records []models.WageRecordDetail) dto.OutstandingSummary {
	summary := dto.OutstandingSummary{Total: decimal.Zero, Teachers: []dto.OutstandingTeacher{}}
	byTeacher := map[string]*dto.OutstandingTeacher{}

	for _, r := range records {
		owed := outstandingOf(r.WageRecord)
		if !owed.IsPositive() {
			continue
		}
		summary.Total = summary.Total.Add(owed)
		summary.Records++

		ot, ok := byTeacher[r.TeacherID]
		if !ok {
			ot = &dto.OutstandingTeacher{TeacherID: r.TeacherID, TeacherName: r.TeacherName, Outstanding: decimal.Zero}
			byTeacher[r.TeacherID] = ot
		}
		ot.Records++
		ot.Outstanding = ot.Outstanding.Add(owed)
	}

	for _, ot := range byTeacher {
		summary.Teachers = append(summary.Teachers, *ot)
	}
	sort.Slice(summary.Teachers, func(i, j int) bool {
		a, b := summary.Teachers[i], summary.Teachers[j]
		if cmp := a.Outstanding.Cmp(b.Outstanding); cmp != 0 {
			return cmp > 0
		}
		return a.TeacherID < b.TeacherID
	})
	return summary
}
