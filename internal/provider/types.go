package provider

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/benmercer/finboard/internal/domain"
)

// Budget is one budget the token can read.
type Budget struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	LastModifiedOn time.Time `json:"lastModifiedOn"`
}

// MonthSummary is the provider's own per-month rollup.
type MonthSummary struct {
	Month    domain.MonthKey `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Budgeted decimal.Decimal `json:"budgeted"`
	Activity decimal.Decimal `json:"activity"`
}

// Summary bundles the five budget resources fetched concurrently. A nil
// field means that individual fetch failed; the summary as a whole fails
// only when every fetch failed.
type Summary struct {
	Budgets      []Budget
	Accounts     []domain.Account
	Transactions []domain.Transaction
	Categories   []domain.Category
	Months       []MonthSummary
}

// Wire shapes. Amounts arrive as signed integer milli-units; every field
// the core uses is listed, unknown fields are ignored by the decoder.

type wireBudget struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	LastModifiedOn string `json:"last_modified_on"`
}

type wireAccount struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Balance *int64 `json:"balance"`
	Closed  bool   `json:"closed"`
	Deleted bool   `json:"deleted"`
	Note    string `json:"note"`
}

type wireSubTransaction struct {
	ID                string `json:"id"`
	Amount            int64  `json:"amount"`
	PayeeName         string `json:"payee_name"`
	Memo              string `json:"memo"`
	CategoryID        string `json:"category_id"`
	CategoryName      string `json:"category_name"`
	TransferAccountID string `json:"transfer_account_id"`
}

type wireTransaction struct {
	ID                string               `json:"id"`
	Date              string               `json:"date"`
	Amount            int64                `json:"amount"`
	PayeeName         string               `json:"payee_name"`
	Memo              string               `json:"memo"`
	AccountID         string               `json:"account_id"`
	CategoryID        string               `json:"category_id"`
	CategoryName      string               `json:"category_name"`
	TransferAccountID string               `json:"transfer_account_id"`
	Subtransactions   []wireSubTransaction `json:"subtransactions"`
	Deleted           bool                 `json:"deleted"`
}

type wireCategory struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Hidden  bool   `json:"hidden"`
	Deleted bool   `json:"deleted"`
}

type wireCategoryGroup struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Hidden     bool           `json:"hidden"`
	Deleted    bool           `json:"deleted"`
	Categories []wireCategory `json:"categories"`
}

type wireMonth struct {
	Month    string `json:"month"`
	Income   int64  `json:"income"`
	Budgeted int64  `json:"budgeted"`
	Activity int64  `json:"activity"`
}
