package engine

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/benmercer/finboard/internal/domain"
	"github.com/benmercer/finboard/internal/money"
)

const (
	// ProjectionMonths is the horizon of the depletion curves.
	ProjectionMonths = 24

	// DefaultLookbackMonths is the default averaging window P.
	DefaultLookbackMonths = 6
)

// Health classifies the pure runway length.
type Health string

const (
	HealthCritical  Health = "critical"
	HealthCaution   Health = "caution"
	HealthHealthy   Health = "healthy"
	HealthExcellent Health = "excellent"
)

// MonthlyFlow is one month's income/expense pair feeding the averages.
type MonthlyFlow struct {
	Month    domain.MonthKey `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

// ProjectionPoint is one month of the two depletion curves. Pure assumes
// spending continues with zero income; net offsets spending with income.
type ProjectionPoint struct {
	Month       int             `json:"month"`
	PureBalance decimal.Decimal `json:"pureBalance"`
	NetBalance  decimal.Decimal `json:"netBalance"`
}

// Runway is the cash-depletion summary.
type Runway struct {
	CashReserves decimal.Decimal `json:"cashReserves"`
	AvgIncome    decimal.Decimal `json:"avgIncome"`
	AvgExpenses  decimal.Decimal `json:"avgExpenses"`
	AvgNet       decimal.Decimal `json:"avgNet"`

	// PureMonths and NetMonths are math.Inf(1) when reserves never
	// deplete under the respective assumption.
	PureMonths float64 `json:"-"`
	NetMonths  float64 `json:"-"`

	PureMonthsDisplay string `json:"pureMonths"`
	NetMonthsDisplay  string `json:"netMonths"`

	Health     Health            `json:"health"`
	Projection []ProjectionPoint `json:"projection"`
}

// BuildRunway projects cash depletion from reserve accounts and the
// trailing monthly averages. Flows should cover the lookback window; an
// empty slice yields zero averages and an infinite runway.
func BuildRunway(accounts []domain.Account, flows []MonthlyFlow) Runway {
	reserves := CashReserves(accounts)

	avgIncome := decimal.Zero
	avgExpenses := decimal.Zero
	if len(flows) > 0 {
		for _, f := range flows {
			avgIncome = avgIncome.Add(f.Income)
			avgExpenses = avgExpenses.Add(f.Expenses)
		}
		p := decimal.NewFromInt(int64(len(flows)))
		avgIncome = avgIncome.Div(p)
		avgExpenses = avgExpenses.Div(p)
	}

	reservesF, _ := reserves.Float64()
	incomeF, _ := avgIncome.Float64()
	expensesF, _ := avgExpenses.Float64()

	pureMonths := math.Inf(1)
	if expensesF > 0 {
		pureMonths = reservesF / expensesF
	}
	netMonths := math.Inf(1)
	if burn := expensesF - incomeF; burn > 0 {
		netMonths = reservesF / burn
	}

	r := Runway{
		CashReserves:      money.RoundCents(reserves),
		AvgIncome:         money.RoundCents(avgIncome),
		AvgExpenses:       money.RoundCents(avgExpenses),
		AvgNet:            money.RoundCents(avgIncome.Sub(avgExpenses)),
		PureMonths:        pureMonths,
		NetMonths:         netMonths,
		PureMonthsDisplay: FormatMonths(pureMonths),
		NetMonthsDisplay:  FormatMonths(netMonths),
		Health:            healthOf(pureMonths),
		Projection:        make([]ProjectionPoint, 0, ProjectionMonths+1),
	}

	netBurn := avgExpenses.Sub(avgIncome)
	for m := 0; m <= ProjectionMonths; m++ {
		md := decimal.NewFromInt(int64(m))
		r.Projection = append(r.Projection, ProjectionPoint{
			Month:       m,
			PureBalance: money.RoundCents(reserves.Sub(md.Mul(avgExpenses))),
			NetBalance:  money.RoundCents(reserves.Sub(md.Mul(netBurn))),
		})
	}
	return r
}

func healthOf(pureMonths float64) Health {
	switch {
	case pureMonths < 3:
		return HealthCritical
	case pureMonths < 6:
		return HealthCaution
	case pureMonths < 12:
		return HealthHealthy
	default:
		return HealthExcellent
	}
}

// FormatMonths renders a runway length for display: "∞" for non-finite,
// "24+" at or beyond the projection horizon, one decimal otherwise.
func FormatMonths(months float64) string {
	if math.IsInf(months, 1) || math.IsNaN(months) {
		return "∞"
	}
	if months >= ProjectionMonths {
		return fmt.Sprintf("%d+", ProjectionMonths)
	}
	return fmt.Sprintf("%.1f", months)
}

// LookbackFlows extracts the trailing p months of a built matrix as flow
// pairs, oldest first. p <= 0 falls back to DefaultLookbackMonths.
func LookbackFlows(m Matrix, p int) []MonthlyFlow {
	if p <= 0 {
		p = DefaultLookbackMonths
	}
	keys := m.MonthKeys
	if len(keys) > p {
		keys = keys[len(keys)-p:]
	}
	out := make([]MonthlyFlow, 0, len(keys))
	for _, mk := range keys {
		tot := m.MonthlyTotals[mk]
		out = append(out, MonthlyFlow{Month: mk, Income: tot.Income, Expenses: tot.Expenses})
	}
	return out
}
