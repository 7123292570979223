package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/benmercer/finboard/internal/domain"
)

// System rows injected by the budgeting provider. They describe bookkeeping
// events, not money movement, and are dropped before any derivation.
var systemPayees = map[string]bool{
	"Reconciliation Balance Adjustment": true,
	"Starting Balance":                  true,
}

// Group-name keywords that mark a category group as income.
var incomeGroupKeywords = []string{"income", "inflow", "ready to assign", "to be budgeted"}

// Category names the provider uses for inflows.
var incomeCategoryNames = map[string]bool{
	"Inflow: Ready to Assign":     true,
	"Ready to Assign":             true,
	"To be Budgeted":              true,
	"Deferred Income SubCategory": true,
}

// ProcessOptions configures the transaction pipeline.
type ProcessOptions struct {
	// From/To bound the date range, inclusive on both ends. A zero time
	// leaves that end unbounded.
	From time.Time
	To   time.Time

	// ExcludedAccounts drops every transaction booked in these accounts,
	// typically the investment accounts themselves.
	ExcludedAccounts map[string]bool

	// InvestmentAccounts is the transfer exception set: a transfer whose
	// counterparty is in this set is money leaving or entering the cash
	// envelope and survives the internal-transfer filter.
	InvestmentAccounts map[string]bool

	// KnownIncomeCategories is the caller-supplied explicit income set,
	// consulted before the keyword heuristics.
	KnownIncomeCategories map[string]bool

	// InvestmentRealisationsAsIncome counts a positive transfer from an
	// investment account (a realisation into cash) as income.
	InvestmentRealisationsAsIncome bool
}

// DefaultProcessOptions returns the options the dashboard uses.
func DefaultProcessOptions() ProcessOptions {
	return ProcessOptions{InvestmentRealisationsAsIncome: true}
}

// Process runs the full pipeline: date filter, excluded accounts, internal
// transfer collapse, system-row drop, split flatten. The result contains
// no split parents and no internal transfers, and running Process again
// over its own output returns it unchanged.
func Process(txns []domain.Transaction, opts ProcessOptions) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txns))
	for _, t := range txns {
		if !inDateRange(t.Date, opts.From, opts.To) {
			continue
		}
		if opts.ExcludedAccounts[t.AccountID] {
			continue
		}
		if isInternalTransfer(t.TransferAccountID, opts) {
			continue
		}
		if systemPayees[t.Payee] {
			continue
		}
		if len(t.Subtransactions) == 0 {
			out = append(out, t)
			continue
		}
		for _, child := range flattenSplit(t) {
			// Children carry their own transfer legs; apply the same
			// collapse rules so reprocessing is a no-op.
			if isInternalTransfer(child.TransferAccountID, opts) {
				continue
			}
			if systemPayees[child.Payee] {
				continue
			}
			out = append(out, child)
		}
	}
	return out
}

// isInternalTransfer reports whether a transfer leg is a double entry to
// collapse. Transfers to tracked investment accounts are real cash-envelope
// movement and are kept.
func isInternalTransfer(transferAccountID string, opts ProcessOptions) bool {
	if transferAccountID == "" {
		return false
	}
	return !opts.InvestmentAccounts[transferAccountID]
}

func inDateRange(d, from, to time.Time) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}

// flattenSplit replaces a split transaction with its children. Each child
// inherits the parent's date and account, the parent's payee when it has
// none of its own, and keeps its own category when present. The parent is
// discarded; ParentID links the children back to it.
func flattenSplit(parent domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(parent.Subtransactions))
	for i, sub := range parent.Subtransactions {
		child := domain.Transaction{
			ID:                childID(parent.ID, sub.ID, i),
			Date:              parent.Date,
			Amount:            sub.Amount,
			Payee:             parent.Payee,
			Memo:              sub.Memo,
			AccountID:         parent.AccountID,
			CategoryID:        parent.CategoryID,
			CategoryName:      parent.CategoryName,
			CategoryGroupName: parent.CategoryGroupName,
			TransferAccountID: sub.TransferAccountID,
			ParentID:          parent.ID,
		}
		if sub.Payee != "" {
			child.Payee = sub.Payee
		}
		if sub.CategoryID != "" || sub.CategoryName != "" {
			child.CategoryID = sub.CategoryID
			child.CategoryName = sub.CategoryName
			child.CategoryGroupName = ""
		}
		out = append(out, child)
	}
	return out
}

func childID(parentID, subID string, index int) string {
	if subID != "" {
		return subID
	}
	return fmt.Sprintf("%s/%d", parentID, index)
}

// JoinCategoryGroups fills CategoryGroupName on each transaction from the
// category map, for rows whose category is known.
func JoinCategoryGroups(txns []domain.Transaction, categories map[string]domain.Category) []domain.Transaction {
	out := make([]domain.Transaction, len(txns))
	for i, t := range txns {
		if t.CategoryGroupName == "" && t.CategoryID != "" {
			if c, ok := categories[t.CategoryID]; ok {
				t.CategoryGroupName = c.GroupName
				if t.CategoryName == "" {
					t.CategoryName = c.Name
				}
			}
		}
		out[i] = t
	}
	return out
}

// IsIncome classifies a processed row. A row is income iff its amount is
// positive and its category (or transfer provenance) marks it as an
// inflow; everything else is an expense, including positive refunds.
func IsIncome(t domain.Transaction, opts ProcessOptions) bool {
	if !t.Amount.IsPositive() {
		return false
	}

	// Realisation out of a tracked investment account into cash.
	if t.TransferAccountID != "" && opts.InvestmentAccounts[t.TransferAccountID] {
		return opts.InvestmentRealisationsAsIncome
	}

	if opts.KnownIncomeCategories[t.CategoryName] {
		return true
	}
	if t.CategoryName == "" || incomeCategoryNames[t.CategoryName] {
		return true
	}
	group := strings.ToLower(t.CategoryGroupName)
	for _, kw := range incomeGroupKeywords {
		if strings.Contains(group, kw) {
			return true
		}
	}
	return false
}

// NormalizePayee strips the transport noise banks append to payee names
// (" ACH ", " Deposit") so the same income source folds into one label.
func NormalizePayee(payee string) string {
	p := strings.ReplaceAll(payee, " ACH ", " ")
	p = strings.ReplaceAll(p, " Deposit", "")
	p = strings.Join(strings.Fields(p), " ")
	return strings.TrimSpace(p)
}
