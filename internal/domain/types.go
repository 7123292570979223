// Package domain holds the core financial types shared by the provider
// client, the persistence layer and the derivation engine.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies where an account record came from.
type Source string

const (
	SourceProvider Source = "provider"
	SourceManual   Source = "manual"
)

// ManualIDPrefix namespaces manual account IDs so they can never collide
// with provider-issued IDs.
const ManualIDPrefix = "manual:"

// AccountType is the canonical account type every raw provider type maps to.
type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCash       AccountType = "cash"
	AccountInvestment AccountType = "investment"
	AccountCredit     AccountType = "credit"
	AccountLoan       AccountType = "loan"
	AccountMortgage   AccountType = "mortgage"
	AccountOther      AccountType = "other"
)

// Account is a single asset or liability, provider-fetched or user-entered.
type Account struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Source      Source          `json:"source"`
	RawType     string          `json:"rawType"`
	Type        AccountType     `json:"type"`
	Balance     decimal.Decimal `json:"balance"`
	Closed      bool            `json:"closed"`
	Institution string          `json:"institution,omitempty"`
}

// IsLiability reports whether the account sits on the liability side of the
// balance sheet.
func (a Account) IsLiability() bool {
	switch a.Type {
	case AccountCredit, AccountLoan, AccountMortgage:
		return true
	}
	return false
}

// SubTransaction is one leg of a split transaction.
type SubTransaction struct {
	ID                string          `json:"id"`
	Amount            decimal.Decimal `json:"amount"`
	CategoryID        string          `json:"categoryId,omitempty"`
	CategoryName      string          `json:"categoryName,omitempty"`
	Memo              string          `json:"memo,omitempty"`
	Payee             string          `json:"payee,omitempty"`
	TransferAccountID string          `json:"transferAccountId,omitempty"`
}

// Transaction is an immutable snapshot of one provider transaction.
// Negative amounts are outflows, positive amounts inflows, matching the
// provider's sign convention.
type Transaction struct {
	ID                string           `json:"id"`
	Date              time.Time        `json:"date"`
	Amount            decimal.Decimal  `json:"amount"`
	Payee             string           `json:"payee,omitempty"`
	Memo              string           `json:"memo,omitempty"`
	AccountID         string           `json:"accountId"`
	CategoryID        string           `json:"categoryId,omitempty"`
	CategoryName      string           `json:"categoryName,omitempty"`
	CategoryGroupName string           `json:"categoryGroupName,omitempty"`
	TransferAccountID string           `json:"transferAccountId,omitempty"`
	Subtransactions   []SubTransaction `json:"subtransactions,omitempty"`

	// ParentID is set on rows produced by flattening a split transaction
	// so callers can re-stitch the original if they need to.
	ParentID string `json:"parentId,omitempty"`
}

// Category is one provider budget category.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
	Hidden    bool   `json:"hidden"`
	Deleted   bool   `json:"deleted"`
}

// CategoryBucket is one of the four Conscious Spending Plan buckets.
type CategoryBucket string

const (
	BucketFixedCosts  CategoryBucket = "fixedCosts"
	BucketInvestments CategoryBucket = "investments"
	BucketSavings     CategoryBucket = "savings"
	BucketGuiltFree   CategoryBucket = "guiltFree"
)

// AllBuckets lists the buckets in their display order.
var AllBuckets = []CategoryBucket{
	BucketFixedCosts,
	BucketInvestments,
	BucketSavings,
	BucketGuiltFree,
}

// Holding is a (symbol, shares, price) triple attached to a manual
// investment account. Prices are user-entered, never quoted live.
type Holding struct {
	Symbol string          `json:"symbol"`
	Shares decimal.Decimal `json:"shares"`
	Price  decimal.Decimal `json:"price"`
}

// Value is shares × price.
func (h Holding) Value() decimal.Decimal {
	return h.Shares.Mul(h.Price)
}

// RunwayGoal is a saved what-if scenario for the CSP goal engine.
type RunwayGoal struct {
	ID            string                             `json:"id"`
	Name          string                             `json:"name"`
	CreatedAt     time.Time                          `json:"createdAt"`
	TargetIncome  decimal.Decimal                    `json:"targetIncome"`
	BucketAmounts map[CategoryBucket]decimal.Decimal `json:"bucketAmounts"`
}

// BucketTargets are the CSP percentage targets. Max targets cap a bucket's
// share of income, min targets floor it.
type BucketTargets struct {
	FixedCostsMax  float64 `json:"fixedCostsMax"`
	GuiltFreeMax   float64 `json:"guiltFreeMax"`
	InvestmentsMin float64 `json:"investmentsMin"`
	SavingsMin     float64 `json:"savingsMin"`
}

// DefaultBucketTargets are the stock CSP percentages.
func DefaultBucketTargets() BucketTargets {
	return BucketTargets{
		FixedCostsMax:  50,
		GuiltFreeMax:   35,
		InvestmentsMin: 10,
		SavingsMin:     5,
	}
}

// Settings are the per-user overrides persisted by the store.
type Settings struct {
	CategoryBucketOverrides map[string]CategoryBucket `json:"categoryBucketOverrides,omitempty"`
	BucketTargets           *BucketTargets            `json:"bucketTargets,omitempty"`
	SavedRunwayGoals        []RunwayGoal              `json:"savedRunwayGoals,omitempty"`
	UpdatedAt               time.Time                 `json:"updatedAt"`
}
