package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthKeyOf(t *testing.T) {
	t.Run("formats year and month", func(t *testing.T) {
		d := time.Date(2025, time.October, 15, 23, 59, 0, 0, time.UTC)
		assert.Equal(t, MonthKey("2025-10"), MonthKeyOf(d))
	})

	t.Run("uses local fields, not UTC conversion", func(t *testing.T) {
		// 1st of November 00:30 in UTC+11 is still October in UTC, but the
		// key must come from the local fields.
		loc := time.FixedZone("AEDT", 11*3600)
		d := time.Date(2025, time.November, 1, 0, 30, 0, 0, loc)
		assert.Equal(t, MonthKey("2025-11"), MonthKeyOf(d))
	})
}

func TestMonthWindow(t *testing.T) {
	now := time.Date(2025, time.March, 14, 12, 0, 0, 0, time.UTC)

	t.Run("includes the current partial month", func(t *testing.T) {
		keys := MonthWindow(now, 3)
		assert.Equal(t, []MonthKey{"2025-01", "2025-02", "2025-03"}, keys)
	})

	t.Run("crosses year boundaries", func(t *testing.T) {
		keys := MonthWindow(now, 6)
		assert.Equal(t, []MonthKey{"2024-10", "2024-11", "2024-12", "2025-01", "2025-02", "2025-03"}, keys)
	})

	t.Run("zero or negative size yields nil", func(t *testing.T) {
		assert.Nil(t, MonthWindow(now, 0))
		assert.Nil(t, MonthWindow(now, -2))
	})
}

func TestAddMonths(t *testing.T) {
	t.Run("normalises mid-month input", func(t *testing.T) {
		d := time.Date(2025, time.January, 31, 8, 0, 0, 0, time.UTC)
		got := AddMonths(d, 1)
		assert.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), got)
	})
}

func TestAccountIsLiability(t *testing.T) {
	cases := []struct {
		accountType AccountType
		want        bool
	}{
		{AccountChecking, false},
		{AccountSavings, false},
		{AccountCash, false},
		{AccountInvestment, false},
		{AccountOther, false},
		{AccountCredit, true},
		{AccountLoan, true},
		{AccountMortgage, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.accountType), func(t *testing.T) {
			a := Account{Type: tc.accountType}
			assert.Equal(t, tc.want, a.IsLiability())
		})
	}
}
