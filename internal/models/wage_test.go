package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestWageRecordNormalize(t *testing.T) {
	cases := []struct {
		name       string
		calculated string
		amount     string
		remaining  string
		status     PaymentStatus
	}{
		{name: "unpaid", calculated: "1500", amount: "0", remaining: "1500", status: PaymentStatusUnpaid},
		{name: "partial", calculated: "1500", amount: "499.50", remaining: "1000.5", status: PaymentStatusPartial},
		{name: "exact", calculated: "1500", amount: "1500", remaining: "0", status: PaymentStatusFull},
		{name: "overpaid after recalculation", calculated: "900", amount: "1500", remaining: "0", status: PaymentStatusFull},
		{name: "zero calculated", calculated: "0", amount: "0", remaining: "0", status: PaymentStatusUnpaid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := WageRecord{
				CalculatedAmount: decimal.RequireFromString(tc.calculated),
				Amount:           decimal.RequireFromString(tc.amount),
			}
			w.Normalize()

			assert.True(t, decimal.RequireFromString(tc.remaining).Equal(w.RemainingAmount), "remaining %s", w.RemainingAmount)
			assert.Equal(t, tc.status, w.PaymentStatus)
			if w.Amount.LessThanOrEqual(w.CalculatedAmount) {
				assert.True(t, w.Amount.Add(w.RemainingAmount).Equal(w.CalculatedAmount))
			}
		})
	}
}

func TestWageRecordRecalculateKeepsAmount(t *testing.T) {
	w := WageRecord{Amount: decimal.NewFromInt(200)}
	w.Recalculate(4, decimal.RequireFromString("150.25"))

	assert.Equal(t, 4, w.LessonTaught)
	assert.True(t, decimal.RequireFromString("601").Equal(w.CalculatedAmount))
	assert.True(t, decimal.NewFromInt(200).Equal(w.Amount))
	assert.True(t, decimal.RequireFromString("401").Equal(w.RemainingAmount))
	assert.Equal(t, PaymentStatusPartial, w.PaymentStatus)
}
