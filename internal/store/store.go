// Package store persists the locally-entered data the budgeting provider
// knows nothing about: manual accounts, their investment holdings, and the
// per-user CSP settings. One Firestore implementation, one in-memory twin.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/benmercer/finboard/internal/domain"
)

// ErrNotFound indicates that a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrValidation indicates that input failed validation. The wrapped
// message is safe to show to the user.
var ErrValidation = errors.New("validation error")

// ManualAccountInput is the payload for creating a manual account. Balance
// is a pointer so an absent field is distinguishable from an explicit zero.
type ManualAccountInput struct {
	Name    string           `json:"name"`
	Type    string           `json:"type"`
	Subtype string           `json:"subtype,omitempty"`
	Balance *decimal.Decimal `json:"balance"`
}

// manualTypes is the closed set of types a manual account may carry.
var manualTypes = map[string]domain.AccountType{
	"checking":   domain.AccountChecking,
	"savings":    domain.AccountSavings,
	"cash":       domain.AccountCash,
	"investment": domain.AccountInvestment,
	"credit":     domain.AccountCredit,
	"loan":       domain.AccountLoan,
	"mortgage":   domain.AccountMortgage,
	"other":      domain.AccountOther,
}

// Validate checks the required fields. Zero is a legal balance, but the
// field itself must be present.
func (in ManualAccountInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if _, ok := manualTypes[in.Type]; !ok {
		return fmt.Errorf("%w: unknown account type %q", ErrValidation, in.Type)
	}
	if in.Balance == nil {
		return fmt.Errorf("%w: balance is required", ErrValidation)
	}
	return nil
}

// SettingsPatch carries a partial settings update; nil fields are left
// untouched. Writes are last-write-wins.
type SettingsPatch struct {
	CategoryBucketOverrides map[string]domain.CategoryBucket `json:"categoryBucketOverrides,omitempty"`
	BucketTargets           *domain.BucketTargets            `json:"bucketTargets,omitempty"`
	SavedRunwayGoals        []domain.RunwayGoal              `json:"savedRunwayGoals,omitempty"`
}

// Store defines the persistence operations for one user's manual data.
type Store interface {
	// Manual accounts
	CreateManualAccount(ctx context.Context, userID string, in ManualAccountInput) (domain.Account, error)
	ListManualAccounts(ctx context.Context, userID string) ([]domain.Account, error)
	DeleteManualAccount(ctx context.Context, userID, accountID string) error

	// Holdings attached to manual investment accounts
	GetHoldings(ctx context.Context, userID, accountID string) ([]domain.Holding, error)
	SetHoldings(ctx context.Context, userID, accountID string, holdings []domain.Holding) error

	// Per-user settings: bucket overrides, targets, saved runway goals
	GetSettings(ctx context.Context, userID string) (domain.Settings, error)
	PutSettings(ctx context.Context, userID string, patch SettingsPatch) (domain.Settings, error)
}

func applyPatch(s domain.Settings, patch SettingsPatch) domain.Settings {
	if patch.CategoryBucketOverrides != nil {
		s.CategoryBucketOverrides = patch.CategoryBucketOverrides
	}
	if patch.BucketTargets != nil {
		s.BucketTargets = patch.BucketTargets
	}
	if patch.SavedRunwayGoals != nil {
		s.SavedRunwayGoals = patch.SavedRunwayGoals
	}
	return s
}

func normalizeHoldings(holdings []domain.Holding) []domain.Holding {
	out := make([]domain.Holding, 0, len(holdings))
	for _, h := range holdings {
		h.Symbol = strings.ToUpper(strings.TrimSpace(h.Symbol))
		if h.Symbol == "" {
			continue
		}
		out = append(out, h)
	}
	return out
}
