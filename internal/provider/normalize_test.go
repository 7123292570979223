package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmercer/finboard/internal/domain"
)

func TestNormalizeAccountType(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.AccountType
	}{
		{"checking", domain.AccountChecking},
		{"savings", domain.AccountSavings},
		{"cash", domain.AccountCash},
		{"mortgage", domain.AccountMortgage},
		{"otherAsset", domain.AccountInvestment},
		{"investmentAccount", domain.AccountInvestment},
		{"creditCard", domain.AccountCredit},
		{"otherLiability", domain.AccountLoan},
		{"somethingNew", domain.AccountOther},
		{"", domain.AccountOther},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeAccountType(tc.raw))
		})
	}
}

func TestWireAccountToDomain(t *testing.T) {
	t.Run("converts milli balance and tags source", func(t *testing.T) {
		balance := int64(-750250)
		a := wireAccount{ID: "P2", Name: "Visa", Type: "creditCard", Balance: &balance}.toDomain()
		assert.Equal(t, domain.SourceProvider, a.Source)
		assert.Equal(t, domain.AccountCredit, a.Type)
		assert.Equal(t, "creditCard", a.RawType)
		assert.Equal(t, "-750.25", a.Balance.String())
	})

	t.Run("missing balance defaults to zero", func(t *testing.T) {
		a := wireAccount{ID: "P3", Type: "checking"}.toDomain()
		assert.True(t, a.Balance.IsZero())
	})
}

func TestWireTransactionToDomain(t *testing.T) {
	w := wireTransaction{
		ID:        "T1",
		Date:      "2025-10-05",
		Amount:    -123456,
		PayeeName: "Supermart",
		AccountID: "acc-1",
		Subtransactions: []wireSubTransaction{
			{ID: "S1", Amount: -60000, CategoryName: "Groceries"},
		},
	}
	tx := w.toDomain()

	assert.Equal(t, "-123.456", tx.Amount.String())
	assert.Equal(t, 2025, tx.Date.Year())
	assert.Equal(t, 10, int(tx.Date.Month()))
	assert.Equal(t, 5, tx.Date.Day())
	require.Len(t, tx.Subtransactions, 1)
	assert.Equal(t, "-60", tx.Subtransactions[0].Amount.String())
}

func TestFlattenCategoryGroups(t *testing.T) {
	groups := []wireCategoryGroup{
		{
			ID: "g-1", Name: "Fixed Costs",
			Categories: []wireCategory{
				{ID: "c-1", Name: "Rent"},
				{ID: "c-2", Name: "Old Utility", Hidden: true},
			},
		},
		{
			ID: "g-2", Name: "Archived", Deleted: true,
			Categories: []wireCategory{{ID: "c-3", Name: "Legacy"}},
		},
	}

	cats := flattenCategoryGroups(groups)
	require.Len(t, cats, 3)

	t.Run("categories inherit group identity", func(t *testing.T) {
		assert.Equal(t, "g-1", cats[0].GroupID)
		assert.Equal(t, "Fixed Costs", cats[0].GroupName)
	})

	t.Run("hidden and deleted flags OR with the group", func(t *testing.T) {
		assert.True(t, cats[1].Hidden)
		assert.True(t, cats[2].Deleted)
	})

	t.Run("empty input yields empty non-nil slice", func(t *testing.T) {
		out := flattenCategoryGroups(nil)
		assert.NotNil(t, out)
		assert.Empty(t, out)
	})
}

func TestWireMonthToDomain(t *testing.T) {
	m := wireMonth{Month: "2025-10-01", Income: 3500000, Activity: -2100000}.toDomain()
	assert.Equal(t, domain.MonthKey("2025-10"), m.Month)
	assert.Equal(t, "3500", m.Income.String())
	assert.Equal(t, "-2100", m.Activity.String())
}
