// Package engine holds the pure derivations behind the dashboard: account
// aggregation, transaction processing, CSP bucket classification, the
// monthly category matrix, the cash-runway projection and the CSP score.
// Everything here is deterministic and total: empty or nil inputs produce
// zeroed summaries, never panics.
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/benmercer/finboard/internal/domain"
	"github.com/benmercer/finboard/internal/money"
)

var titleCaser = cases.Title(language.English)

// MergeOptions controls account merging.
type MergeOptions struct {
	// IncludeClosed keeps closed accounts in the merged list. Default is
	// to exclude them from every summary.
	IncludeClosed bool
}

// MergeAccounts unions provider and manual accounts into one list.
// Duplicates are detected by ID equality only; a manual account sharing a
// name with a provider account is still two accounts.
func MergeAccounts(providerAccounts, manualAccounts []domain.Account, opts MergeOptions) []domain.Account {
	seen := make(map[string]bool, len(providerAccounts)+len(manualAccounts))
	out := make([]domain.Account, 0, len(providerAccounts)+len(manualAccounts))
	for _, list := range [][]domain.Account{providerAccounts, manualAccounts} {
		for _, a := range list {
			if seen[a.ID] {
				continue
			}
			if a.Closed && !opts.IncludeClosed {
				continue
			}
			seen[a.ID] = true
			out = append(out, a)
		}
	}
	return out
}

// BalanceSheet is the asset/liability rollup over a merged account list.
type BalanceSheet struct {
	TotalAssets      decimal.Decimal `json:"totalAssets"`
	TotalLiabilities decimal.Decimal `json:"totalLiabilities"`
	NetWorth         decimal.Decimal `json:"netWorth"`
}

// BuildBalanceSheet sums assets and liabilities. Liability balances are
// expected negative for credit and loan accounts, but the magnitude is
// taken uniformly so a provider reporting positive loan balances cannot
// flip the sheet.
func BuildBalanceSheet(accounts []domain.Account) BalanceSheet {
	assets := decimal.Zero
	liabilities := decimal.Zero
	for _, a := range accounts {
		if a.IsLiability() {
			liabilities = liabilities.Add(a.Balance.Abs())
		} else {
			assets = assets.Add(a.Balance)
		}
	}
	return BalanceSheet{
		TotalAssets:      money.RoundCents(assets),
		TotalLiabilities: money.RoundCents(liabilities),
		NetWorth:         money.RoundCents(assets.Sub(liabilities)),
	}
}

// AllocationSlice is one account type's share of the merged balances.
type AllocationSlice struct {
	Type  domain.AccountType `json:"type"`
	Label string             `json:"label"`
	Value decimal.Decimal    `json:"value"`
}

// AllocationByType groups balances by normalized account type, ordered by
// descending absolute value. Zero-valued entries are dropped.
func AllocationByType(accounts []domain.Account) []AllocationSlice {
	byType := make(map[domain.AccountType]decimal.Decimal)
	for _, a := range accounts {
		byType[a.Type] = byType[a.Type].Add(a.Balance)
	}

	out := make([]AllocationSlice, 0, len(byType))
	for t, v := range byType {
		if money.IsZero(v) {
			continue
		}
		out = append(out, AllocationSlice{
			Type:  t,
			Label: titleCaser.String(string(t)),
			Value: money.RoundCents(v),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		cmp := out[i].Value.Abs().Cmp(out[j].Value.Abs())
		if cmp != 0 {
			return cmp > 0
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// CashReserves sums the balances of checking, savings and cash accounts.
// Investments never count as reserves.
func CashReserves(accounts []domain.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		switch a.Type {
		case domain.AccountChecking, domain.AccountSavings, domain.AccountCash:
			total = total.Add(a.Balance)
		}
	}
	return total
}

// InvestmentCashSplit partitions asset balances into invested and cash.
func InvestmentCashSplit(accounts []domain.Account) (invested, cash decimal.Decimal) {
	for _, a := range accounts {
		if a.IsLiability() {
			continue
		}
		if a.Type == domain.AccountInvestment {
			invested = invested.Add(a.Balance)
		} else {
			cash = cash.Add(a.Balance)
		}
	}
	return money.RoundCents(invested), money.RoundCents(cash)
}

// InvestmentAccountIDs returns the set of investment-typed account IDs,
// the set the transaction processor uses for its transfer exception.
func InvestmentAccountIDs(accounts []domain.Account) map[string]bool {
	out := make(map[string]bool)
	for _, a := range accounts {
		if a.Type == domain.AccountInvestment {
			out[a.ID] = true
		}
	}
	return out
}
