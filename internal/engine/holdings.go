package engine

import (
	"github.com/shopspring/decimal"

	"github.com/benmercer/finboard/internal/domain"
	"github.com/benmercer/finboard/internal/money"
)

// HoldingView is a holding scaled to the account it belongs to. Raw
// values come from user-entered shares and prices; ScaledValue stretches
// them so the rows sum to the account balance.
type HoldingView struct {
	Symbol             string          `json:"symbol"`
	Shares             decimal.Decimal `json:"shares"`
	Price              decimal.Decimal `json:"price"`
	Value              decimal.Decimal `json:"value"`
	ScaledValue        decimal.Decimal `json:"scaledValue"`
	NeedsConfiguration bool            `json:"needsConfiguration,omitempty"`
}

// ScaleHoldings distributes an account balance across its holdings in
// proportion to their raw values. With no usable holdings and a nonzero
// balance it returns a single placeholder row flagged for configuration,
// so the allocation view never silently drops money.
func ScaleHoldings(accountBalance decimal.Decimal, holdings []domain.Holding) []HoldingView {
	rawTotal := decimal.Zero
	for _, h := range holdings {
		rawTotal = rawTotal.Add(h.Value())
	}

	if money.IsZero(rawTotal) {
		if money.IsZero(accountBalance) {
			return []HoldingView{}
		}
		return []HoldingView{{
			Symbol:             "UNALLOCATED",
			Value:              money.RoundCents(accountBalance),
			ScaledValue:        money.RoundCents(accountBalance),
			NeedsConfiguration: true,
		}}
	}

	factor := accountBalance.Div(rawTotal)
	out := make([]HoldingView, 0, len(holdings))
	for _, h := range holdings {
		value := h.Value()
		out = append(out, HoldingView{
			Symbol:      h.Symbol,
			Shares:      h.Shares,
			Price:       h.Price,
			Value:       money.RoundCents(value),
			ScaledValue: money.RoundCents(value.Mul(factor)),
		})
	}
	return out
}
