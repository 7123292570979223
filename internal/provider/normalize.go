package provider

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/benmercer/finboard/internal/domain"
	"github.com/benmercer/finboard/internal/money"
)

// NormalizeAccountType maps the provider's raw account type string to the
// canonical set. The table is fixed; anything unrecognised is "other".
func NormalizeAccountType(raw string) domain.AccountType {
	switch raw {
	case "otherAsset", "investmentAccount":
		return domain.AccountInvestment
	case "creditCard":
		return domain.AccountCredit
	case "otherLiability":
		return domain.AccountLoan
	case "checking":
		return domain.AccountChecking
	case "savings":
		return domain.AccountSavings
	case "cash":
		return domain.AccountCash
	case "mortgage":
		return domain.AccountMortgage
	default:
		return domain.AccountOther
	}
}

func (w wireBudget) toDomain() Budget {
	b := Budget{ID: w.ID, Name: w.Name}
	if t, err := time.Parse(time.RFC3339, w.LastModifiedOn); err == nil {
		b.LastModifiedOn = t
	}
	return b
}

func (w wireAccount) toDomain() domain.Account {
	balance := decimal.Zero
	if w.Balance != nil {
		balance = money.FromMilli(*w.Balance)
	}
	return domain.Account{
		ID:          w.ID,
		Name:        w.Name,
		Source:      domain.SourceProvider,
		RawType:     w.Type,
		Type:        NormalizeAccountType(w.Type),
		Balance:     balance,
		Closed:      w.Closed,
		Institution: w.Note,
	}
}

func (w wireTransaction) toDomain() domain.Transaction {
	t := domain.Transaction{
		ID:                w.ID,
		Amount:            money.FromMilli(w.Amount),
		Payee:             w.PayeeName,
		Memo:              w.Memo,
		AccountID:         w.AccountID,
		CategoryID:        w.CategoryID,
		CategoryName:      w.CategoryName,
		TransferAccountID: w.TransferAccountID,
	}
	if d, err := time.ParseInLocation("2006-01-02", w.Date, time.Local); err == nil {
		t.Date = d
	}
	for _, sub := range w.Subtransactions {
		t.Subtransactions = append(t.Subtransactions, domain.SubTransaction{
			ID:                sub.ID,
			Amount:            money.FromMilli(sub.Amount),
			CategoryID:        sub.CategoryID,
			CategoryName:      sub.CategoryName,
			Memo:              sub.Memo,
			Payee:             sub.PayeeName,
			TransferAccountID: sub.TransferAccountID,
		})
	}
	return t
}

func flattenCategoryGroups(groups []wireCategoryGroup) []domain.Category {
	// Semantic empty stays empty, not nil, so callers can distinguish a
	// successful fetch from an absent one.
	out := make([]domain.Category, 0)
	for _, g := range groups {
		for _, c := range g.Categories {
			out = append(out, domain.Category{
				ID:        c.ID,
				Name:      c.Name,
				GroupID:   g.ID,
				GroupName: g.Name,
				Hidden:    c.Hidden || g.Hidden,
				Deleted:   c.Deleted || g.Deleted,
			})
		}
	}
	return out
}

func (w wireMonth) toDomain() MonthSummary {
	m := MonthSummary{
		Income:   money.FromMilli(w.Income),
		Budgeted: money.FromMilli(w.Budgeted),
		Activity: money.FromMilli(w.Activity),
	}
	if d, err := time.ParseInLocation("2006-01-02", w.Month, time.Local); err == nil {
		m.Month = domain.MonthKeyOf(d)
	}
	return m
}
