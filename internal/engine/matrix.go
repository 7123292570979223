package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/benmercer/finboard/internal/domain"
	"github.com/benmercer/finboard/internal/money"
)

// IncomeGroupLabel is the display group that collects payee-keyed income
// rows.
const IncomeGroupLabel = "Income Sources"

// uncategorizedLabel labels expense rows with no category.
const uncategorizedLabel = "Uncategorized"

// activeThreshold is the row-activity cutoff applied by ShowActiveOnly.
var activeThreshold = decimal.New(1, -2) // 0.01

// SortMode orders rows within a group.
type SortMode string

const (
	SortAmount       SortMode = "amount"
	SortAlphabetical SortMode = "alphabetical"
)

// MatrixOptions configures the monthly matrix build.
type MatrixOptions struct {
	// Months is the window size N. The window always ends at the current
	// partial month. Zero or negative means "all": the window starts at
	// the earliest transaction month.
	Months int

	// Now anchors the window; zero means time.Now().
	Now time.Time

	ShowActiveOnly bool
	Sort           SortMode

	// SelectedMonth, when set with SortAmount, sorts rows by that single
	// month's magnitude instead of the row total.
	SelectedMonth domain.MonthKey

	// Process supplies the income-classification context.
	Process ProcessOptions
}

// Cell is one (row, month) accumulation. Expense keeps its sign: refunds
// can push a cell negative and callers must preserve that.
type Cell struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Net is income minus expense.
func (c Cell) Net() decimal.Decimal {
	return c.Income.Sub(c.Expense)
}

// MatrixRow is one category (or, for income, one payee) across the window.
type MatrixRow struct {
	CategoryID   string                  `json:"categoryId,omitempty"`
	Label        string                  `json:"label"`
	Cells        map[domain.MonthKey]Cell `json:"cells"`
	TotalIncome  decimal.Decimal         `json:"totalIncome"`
	TotalExpense decimal.Decimal         `json:"totalExpense"`
	TotalNet     decimal.Decimal         `json:"totalNet"`
	AvgIncome    decimal.Decimal         `json:"avgIncome"`
	AvgExpense   decimal.Decimal         `json:"avgExpense"`
}

// MatrixGroup is a category group with per-month subtotals.
type MatrixGroup struct {
	Name         string                  `json:"name"`
	HasIncome    bool                    `json:"hasIncome"`
	Rows         []MatrixRow             `json:"rows"`
	Cells        map[domain.MonthKey]Cell `json:"cells"`
	TotalIncome  decimal.Decimal         `json:"totalIncome"`
	TotalExpense decimal.Decimal         `json:"totalExpense"`
}

// MonthTotals is the per-month column rollup.
type MonthTotals struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// Matrix is the category × month grid the income/expense report renders.
type Matrix struct {
	MonthKeys     []domain.MonthKey               `json:"monthKeys"`
	Groups        []MatrixGroup                   `json:"groups"`
	MonthlyTotals map[domain.MonthKey]MonthTotals `json:"monthlyTotals"`
	TotalIncome   decimal.Decimal                 `json:"totalIncome"`
	TotalExpense  decimal.Decimal                 `json:"totalExpense"`
	TotalNet      decimal.Decimal                 `json:"totalNet"`
}

type rowAccum struct {
	categoryID string
	label      string
	group      string
	income     bool
	cells      map[domain.MonthKey]*Cell
}

// BuildMatrix produces the monthly matrix from processed transactions.
// The window always includes the current partial month; that mirrors the
// budgeting provider's "Last X Months" reports, and comparisons against
// them break without it.
func BuildMatrix(txns []domain.Transaction, opts MatrixOptions) Matrix {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	monthKeys := windowKeys(txns, now, opts.Months)
	inWindow := make(map[domain.MonthKey]bool, len(monthKeys))
	for _, mk := range monthKeys {
		inWindow[mk] = true
	}
	n := decimal.NewFromInt(int64(len(monthKeys)))

	accums := make(map[string]*rowAccum)
	order := make([]string, 0)

	for _, t := range txns {
		mk := domain.MonthKeyOf(t.Date)
		if !inWindow[mk] {
			continue
		}
		income := IsIncome(t, opts.Process)

		var key string
		acc := &rowAccum{cells: make(map[domain.MonthKey]*Cell)}
		if income {
			label := NormalizePayee(t.Payee)
			if label == "" {
				label = "Unknown"
			}
			key = "income|" + label
			acc.label = label
			acc.group = IncomeGroupLabel
			acc.income = true
		} else {
			label := t.CategoryName
			if label == "" {
				label = uncategorizedLabel
			}
			group := t.CategoryGroupName
			if group == "" {
				group = "Other"
			}
			key = "expense|" + group + "|" + t.CategoryID + "|" + label
			acc.categoryID = t.CategoryID
			acc.label = label
			acc.group = group
		}

		existing, ok := accums[key]
		if !ok {
			accums[key] = acc
			order = append(order, key)
			existing = acc
		}
		cell := existing.cells[mk]
		if cell == nil {
			cell = &Cell{}
			existing.cells[mk] = cell
		}
		if income {
			cell.Income = cell.Income.Add(t.Amount)
		} else {
			// Outflows add magnitude; positive refunds subtract and may
			// leave the cell negative.
			cell.Expense = cell.Expense.Add(t.Amount.Neg())
		}
	}

	groups := make(map[string]*MatrixGroup)
	groupOrder := make([]string, 0)

	for _, key := range order {
		acc := accums[key]
		row := MatrixRow{
			CategoryID: acc.categoryID,
			Label:      acc.label,
			Cells:      make(map[domain.MonthKey]Cell, len(acc.cells)),
		}
		totalIncome := decimal.Zero
		totalExpense := decimal.Zero
		for mk, cell := range acc.cells {
			rounded := Cell{
				Income:  money.RoundCents(cell.Income),
				Expense: money.RoundCents(cell.Expense),
			}
			row.Cells[mk] = rounded
			// Totals sum the rounded cells, not the raw accumulations, so
			// the grand totals always equal the monthly summary totals
			// even when sub-cent amounts round away.
			totalIncome = totalIncome.Add(rounded.Income)
			totalExpense = totalExpense.Add(rounded.Expense)
		}
		row.TotalIncome = totalIncome
		row.TotalExpense = totalExpense
		row.TotalNet = totalIncome.Sub(totalExpense)
		if !n.IsZero() {
			// Averages divide by the window size, not by the number of
			// months with data.
			row.AvgIncome = money.RoundCents(totalIncome.Div(n))
			row.AvgExpense = money.RoundCents(totalExpense.Div(n))
		}

		if opts.ShowActiveOnly &&
			row.TotalIncome.Abs().LessThan(activeThreshold) &&
			row.TotalExpense.Abs().LessThan(activeThreshold) {
			continue
		}

		g, ok := groups[acc.group]
		if !ok {
			g = &MatrixGroup{Name: acc.group, Cells: make(map[domain.MonthKey]Cell)}
			groups[acc.group] = g
			groupOrder = append(groupOrder, acc.group)
		}
		g.Rows = append(g.Rows, row)
		if acc.income {
			g.HasIncome = true
		}
		for mk, cell := range row.Cells {
			sub := g.Cells[mk]
			sub.Income = sub.Income.Add(cell.Income)
			sub.Expense = sub.Expense.Add(cell.Expense)
			g.Cells[mk] = sub
		}
		g.TotalIncome = g.TotalIncome.Add(row.TotalIncome)
		g.TotalExpense = g.TotalExpense.Add(row.TotalExpense)
	}

	m := Matrix{
		MonthKeys:     monthKeys,
		MonthlyTotals: make(map[domain.MonthKey]MonthTotals, len(monthKeys)),
	}
	for _, mk := range monthKeys {
		m.MonthlyTotals[mk] = MonthTotals{}
	}

	for _, name := range groupOrder {
		g := groups[name]
		sortRows(g.Rows, opts)
		m.Groups = append(m.Groups, *g)

		for mk, cell := range g.Cells {
			tot := m.MonthlyTotals[mk]
			tot.Income = tot.Income.Add(cell.Income)
			tot.Expenses = tot.Expenses.Add(cell.Expense)
			tot.Net = tot.Income.Sub(tot.Expenses)
			m.MonthlyTotals[mk] = tot
		}
		m.TotalIncome = m.TotalIncome.Add(g.TotalIncome)
		m.TotalExpense = m.TotalExpense.Add(g.TotalExpense)
	}
	m.TotalNet = m.TotalIncome.Sub(m.TotalExpense)

	sortGroups(m.Groups, opts)
	return m
}

// windowKeys builds the month-key list, oldest first, ending at now's
// month. With n <= 0 the window spans from the earliest transaction.
func windowKeys(txns []domain.Transaction, now time.Time, n int) []domain.MonthKey {
	if n > 0 {
		return domain.MonthWindow(now, n)
	}
	earliest := domain.StartOfMonth(now)
	for _, t := range txns {
		if m := domain.StartOfMonth(t.Date); m.Before(earliest) {
			earliest = m
		}
	}
	months := 1
	for m := earliest; m.Before(domain.StartOfMonth(now)); m = domain.AddMonths(m, 1) {
		months++
	}
	return domain.MonthWindow(now, months)
}

func sortRows(rows []MatrixRow, opts MatrixOptions) {
	sort.SliceStable(rows, func(i, j int) bool {
		if opts.Sort == SortAlphabetical {
			return rows[i].Label < rows[j].Label
		}
		return rowSortAmount(rows[i], opts).Cmp(rowSortAmount(rows[j], opts)) > 0
	})
}

func rowSortAmount(r MatrixRow, opts MatrixOptions) decimal.Decimal {
	if opts.SelectedMonth != "" {
		cell := r.Cells[opts.SelectedMonth]
		return cell.Income.Add(cell.Expense).Abs()
	}
	return r.TotalIncome.Add(r.TotalExpense).Abs()
}

// sortGroups puts groups with income first, then applies the row sort
// mode at the group level.
func sortGroups(groups []MatrixGroup, opts MatrixOptions) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].HasIncome != groups[j].HasIncome {
			return groups[i].HasIncome
		}
		if opts.Sort == SortAlphabetical {
			return groups[i].Name < groups[j].Name
		}
		gi := groups[i].TotalIncome.Add(groups[i].TotalExpense).Abs()
		gj := groups[j].TotalIncome.Add(groups[j].TotalExpense).Abs()
		return gi.Cmp(gj) > 0
	})
}
