package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmercer/finboard/internal/domain"
	"github.com/benmercer/finboard/internal/money"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestProcessSplitFlatten(t *testing.T) {
	parent := domain.Transaction{
		ID:        "T1",
		Date:      day(2025, time.May, 10),
		Amount:    money.FromMilli(-100000),
		Payee:     "Supermart",
		AccountID: "acc-1",
		Subtransactions: []domain.SubTransaction{
			{ID: "S1", Amount: money.FromMilli(-60000), CategoryID: "c-groceries", CategoryName: "Groceries"},
			{ID: "S2", Amount: money.FromMilli(-40000), CategoryID: "c-household", CategoryName: "Household"},
		},
	}

	out := Process([]domain.Transaction{parent}, DefaultProcessOptions())
	require.Len(t, out, 2)

	t.Run("children carry their own amounts and categories", func(t *testing.T) {
		assert.Equal(t, "-60", out[0].Amount.String())
		assert.Equal(t, "Groceries", out[0].CategoryName)
		assert.Equal(t, "-40", out[1].Amount.String())
		assert.Equal(t, "Household", out[1].CategoryName)
	})

	t.Run("children inherit date, account and payee", func(t *testing.T) {
		for _, child := range out {
			assert.Equal(t, parent.Date, child.Date)
			assert.Equal(t, "acc-1", child.AccountID)
			assert.Equal(t, "Supermart", child.Payee)
			assert.Equal(t, "T1", child.ParentID)
		}
	})

	t.Run("no split parents survive", func(t *testing.T) {
		for _, child := range out {
			assert.Empty(t, child.Subtransactions)
			assert.NotEqual(t, "T1", child.ID)
		}
	})
}

func TestProcessTransferClassification(t *testing.T) {
	opts := DefaultProcessOptions()
	opts.InvestmentAccounts = map[string]bool{"acc-brokerage": true}

	txns := []domain.Transaction{
		{ID: "T1", Date: day(2025, time.May, 1), Amount: money.FromMilli(-500000), AccountID: "acc-check", TransferAccountID: "acc-savings"},
		{ID: "T2", Date: day(2025, time.May, 2), Amount: money.FromMilli(-500000), AccountID: "acc-check", TransferAccountID: "acc-brokerage"},
	}

	out := Process(txns, opts)
	require.Len(t, out, 1)

	t.Run("transfer to non-investment account collapses", func(t *testing.T) {
		for _, tx := range out {
			assert.NotEqual(t, "T1", tx.ID)
		}
	})

	t.Run("transfer to investment account survives as expense", func(t *testing.T) {
		assert.Equal(t, "T2", out[0].ID)
		assert.Equal(t, "-500", out[0].Amount.String())
		assert.False(t, IsIncome(out[0], opts))
	})
}

func TestProcessSystemRows(t *testing.T) {
	opts := DefaultProcessOptions()
	txns := []domain.Transaction{
		{ID: "T1", Date: day(2025, time.May, 1), Amount: money.FromMilli(120000), Payee: "Starting Balance"},
		{ID: "T2", Date: day(2025, time.May, 2), Amount: money.FromMilli(-3000), Payee: "Reconciliation Balance Adjustment"},
		{ID: "T3", Date: day(2025, time.May, 3), Amount: money.FromMilli(-10000), Payee: "Coffee Shop"},
	}
	out := Process(txns, opts)
	require.Len(t, out, 1)
	assert.Equal(t, "T3", out[0].ID)
}

func TestProcessDateRangeAndExclusions(t *testing.T) {
	opts := DefaultProcessOptions()
	opts.From = day(2025, time.April, 1)
	opts.To = day(2025, time.April, 30)
	opts.ExcludedAccounts = map[string]bool{"acc-brokerage": true}

	txns := []domain.Transaction{
		{ID: "T1", Date: day(2025, time.March, 31), Amount: money.FromMilli(-1000), AccountID: "acc-check"},
		{ID: "T2", Date: day(2025, time.April, 1), Amount: money.FromMilli(-1000), AccountID: "acc-check"},
		{ID: "T3", Date: day(2025, time.April, 30), Amount: money.FromMilli(-1000), AccountID: "acc-check"},
		{ID: "T4", Date: day(2025, time.May, 1), Amount: money.FromMilli(-1000), AccountID: "acc-check"},
		{ID: "T5", Date: day(2025, time.April, 15), Amount: money.FromMilli(-1000), AccountID: "acc-brokerage"},
	}
	out := Process(txns, opts)
	require.Len(t, out, 2)
	assert.Equal(t, "T2", out[0].ID)
	assert.Equal(t, "T3", out[1].ID)
}

func TestProcessIdempotent(t *testing.T) {
	opts := DefaultProcessOptions()
	opts.InvestmentAccounts = map[string]bool{"acc-brokerage": true}

	txns := []domain.Transaction{
		{ID: "T1", Date: day(2025, time.May, 1), Amount: money.FromMilli(-500000), TransferAccountID: "acc-savings"},
		{ID: "T2", Date: day(2025, time.May, 2), Amount: money.FromMilli(-10000), Payee: "Coffee Shop"},
		{
			ID: "T3", Date: day(2025, time.May, 3), Amount: money.FromMilli(-100000), Payee: "Supermart",
			Subtransactions: []domain.SubTransaction{
				{ID: "S1", Amount: money.FromMilli(-60000), CategoryName: "Groceries"},
				{ID: "S2", Amount: money.FromMilli(-40000), TransferAccountID: "acc-savings"},
			},
		},
	}

	once := Process(txns, opts)
	twice := Process(once, opts)
	assert.Equal(t, once, twice)
}

func TestIsIncome(t *testing.T) {
	opts := DefaultProcessOptions()
	opts.InvestmentAccounts = map[string]bool{"acc-brokerage": true}

	t.Run("negative amounts are never income", func(t *testing.T) {
		tx := domain.Transaction{Amount: money.FromMilli(-1000), CategoryName: "Inflow: Ready to Assign"}
		assert.False(t, IsIncome(tx, opts))
	})

	t.Run("inflow category names are income", func(t *testing.T) {
		for _, name := range []string{"Inflow: Ready to Assign", "Ready to Assign", "To be Budgeted", "Deferred Income SubCategory"} {
			tx := domain.Transaction{Amount: money.FromMilli(1000), CategoryName: name}
			assert.True(t, IsIncome(tx, opts), name)
		}
	})

	t.Run("uncategorised positive amount is income", func(t *testing.T) {
		tx := domain.Transaction{Amount: money.FromMilli(1000)}
		assert.True(t, IsIncome(tx, opts))
	})

	t.Run("income group keyword matches", func(t *testing.T) {
		tx := domain.Transaction{Amount: money.FromMilli(1000), CategoryName: "Salary", CategoryGroupName: "Income"}
		assert.True(t, IsIncome(tx, opts))
	})

	t.Run("caller-supplied income set wins", func(t *testing.T) {
		withSet := opts
		withSet.KnownIncomeCategories = map[string]bool{"Side Hustle": true}
		tx := domain.Transaction{Amount: money.FromMilli(1000), CategoryName: "Side Hustle", CategoryGroupName: "Misc"}
		assert.True(t, IsIncome(tx, withSet))
		assert.False(t, IsIncome(tx, opts))
	})

	t.Run("positive refund with expense category is not income", func(t *testing.T) {
		tx := domain.Transaction{Amount: money.FromMilli(2500), CategoryName: "Groceries", CategoryGroupName: "Fixed Costs"}
		assert.False(t, IsIncome(tx, opts))
	})

	t.Run("realisation from investment account follows the option", func(t *testing.T) {
		tx := domain.Transaction{Amount: money.FromMilli(750000), TransferAccountID: "acc-brokerage", CategoryName: "Groceries"}
		assert.True(t, IsIncome(tx, opts))

		noRealisations := opts
		noRealisations.InvestmentRealisationsAsIncome = false
		assert.False(t, IsIncome(tx, noRealisations))
	})
}

func TestNormalizePayee(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ACME Corp Deposit", "ACME Corp"},
		{"Dividend ACH Brokerage", "Dividend Brokerage"},
		{"  Plain   Payee ", "Plain Payee"},
		{"ACME Corp", "ACME Corp"}, // casing preserved
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePayee(tc.in))
		})
	}
}

func TestJoinCategoryGroups(t *testing.T) {
	categories := map[string]domain.Category{
		"c-1": {ID: "c-1", Name: "Rent", GroupName: "Fixed Costs"},
	}
	txns := []domain.Transaction{
		{ID: "T1", CategoryID: "c-1"},
		{ID: "T2", CategoryID: "c-unknown", CategoryName: "Mystery"},
	}
	out := JoinCategoryGroups(txns, categories)
	assert.Equal(t, "Fixed Costs", out[0].CategoryGroupName)
	assert.Equal(t, "Rent", out[0].CategoryName)
	assert.Empty(t, out[1].CategoryGroupName)
}

func TestSplitChildrenResolveCategoryGroups(t *testing.T) {
	categories := map[string]domain.Category{
		"c-pay":  {ID: "c-pay", Name: "Paycheck", GroupID: "g-inc", GroupName: "Income"},
		"c-groc": {ID: "c-groc", Name: "Groceries", GroupID: "g-ev", GroupName: "Everyday"},
	}
	parent := domain.Transaction{
		ID:        "T1",
		Date:      day(2025, time.May, 2),
		Amount:    dec("2900"),
		Payee:     "Employer",
		AccountID: "A1",
		Subtransactions: []domain.SubTransaction{
			{ID: "s-pay", Amount: dec("3000"), CategoryID: "c-pay"},
			{ID: "s-groc", Amount: dec("-100"), CategoryID: "c-groc"},
		},
	}

	opts := DefaultProcessOptions()
	out := JoinCategoryGroups(Process([]domain.Transaction{parent}, opts), categories)
	require.Len(t, out, 2)

	byID := make(map[string]domain.Transaction, len(out))
	for _, tx := range out {
		byID[tx.ID] = tx
	}

	t.Run("income leg classifies by its category group", func(t *testing.T) {
		pay := byID["s-pay"]
		assert.Equal(t, "Paycheck", pay.CategoryName)
		assert.Equal(t, "Income", pay.CategoryGroupName)
		assert.True(t, IsIncome(pay, opts))
	})

	t.Run("expense leg keeps its own group", func(t *testing.T) {
		groc := byID["s-groc"]
		assert.Equal(t, "Groceries", groc.CategoryName)
		assert.Equal(t, "Everyday", groc.CategoryGroupName)
		assert.False(t, IsIncome(groc, opts))
	})
}
