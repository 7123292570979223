// Package service wires the provider client, the manual store and the
// derivation engine behind the dashboard's HTTP surface. Provider fetches
// go through the staleness cache; manual-store reads are cheap and hit
// the store directly.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/benmercer/finboard/internal/cache"
	"github.com/benmercer/finboard/internal/domain"
	"github.com/benmercer/finboard/internal/engine"
	"github.com/benmercer/finboard/internal/log"
	"github.com/benmercer/finboard/internal/provider"
	"github.com/benmercer/finboard/internal/store"
)

// Service exposes the dashboard operations.
type Service struct {
	store    store.Store
	client   *provider.Client
	tokens   *provider.TokenCell
	cache    *cache.Cache
	logger   *log.Logger
	budgetID string

	now func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service.
func New(st store.Store, client *provider.Client, tokens *provider.TokenCell, c *cache.Cache, logger *log.Logger, budgetID string, opts ...Option) *Service {
	s := &Service{
		store:    st,
		client:   client,
		tokens:   tokens,
		cache:    c,
		logger:   logger.WithComponent("service"),
		budgetID: budgetID,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ===== Cached provider fetches =====

func (s *Service) providerAccounts(ctx context.Context) ([]domain.Account, error) {
	return cache.GetTyped(ctx, s.cache, cache.Key("accounts", s.budgetID), func(ctx context.Context) ([]domain.Account, error) {
		return s.client.Accounts(ctx, s.budgetID)
	})
}

func (s *Service) providerTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return cache.GetTyped(ctx, s.cache, cache.Key("transactions", s.budgetID), func(ctx context.Context) ([]domain.Transaction, error) {
		return s.client.Transactions(ctx, s.budgetID, time.Time{})
	})
}

func (s *Service) providerCategories(ctx context.Context) (map[string]domain.Category, error) {
	return cache.GetTyped(ctx, s.cache, cache.Key("categories", s.budgetID), func(ctx context.Context) (map[string]domain.Category, error) {
		cats, err := s.client.Categories(ctx, s.budgetID)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]domain.Category, len(cats))
		for _, c := range cats {
			byID[c.ID] = c
		}
		return byID, nil
	})
}

// mergedAccounts unions the cached provider accounts with the user's
// manual accounts. A provider outage with nothing cached degrades to the
// manual accounts alone rather than failing the whole dashboard.
func (s *Service) mergedAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	providerAccounts, provErr := s.providerAccounts(ctx)
	if provErr != nil {
		if provider.KindOf(provErr) != provider.KindNotInitialized {
			s.logger.Warn("provider accounts unavailable, serving manual only", "error", provErr)
		}
		providerAccounts = nil
	}

	manual, err := s.store.ListManualAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list manual accounts: %w", err)
	}
	return engine.MergeAccounts(providerAccounts, manual, engine.MergeOptions{}), nil
}

// processedTransactions fetches, processes and joins the transaction set
// using the merged account list for the transfer exception.
func (s *Service) processedTransactions(ctx context.Context, userID string) ([]domain.Transaction, map[string]domain.Category, engine.ProcessOptions, error) {
	accounts, err := s.mergedAccounts(ctx, userID)
	if err != nil {
		return nil, nil, engine.ProcessOptions{}, err
	}
	txns, err := s.providerTransactions(ctx)
	if err != nil {
		return nil, nil, engine.ProcessOptions{}, err
	}
	categories, err := s.providerCategories(ctx)
	if err != nil {
		return nil, nil, engine.ProcessOptions{}, err
	}

	opts := engine.DefaultProcessOptions()
	opts.InvestmentAccounts = engine.InvestmentAccountIDs(accounts)
	opts.ExcludedAccounts = opts.InvestmentAccounts

	// Join after processing: split children that carry their own category
	// come out of the flatten without a group name, and income
	// classification and matrix grouping both need it.
	processed := engine.JoinCategoryGroups(engine.Process(txns, opts), categories)
	return processed, categories, opts, nil
}

// ===== Dashboard reports =====

// NetWorthReport is the balance-sheet rollup plus the merged account list.
type NetWorthReport struct {
	engine.BalanceSheet
	Accounts []domain.Account `json:"accounts"`
}

// NetWorth builds the net-worth report over provider and manual accounts.
func (s *Service) NetWorth(ctx context.Context, userID string) (NetWorthReport, error) {
	accounts, err := s.mergedAccounts(ctx, userID)
	if err != nil {
		return NetWorthReport{}, err
	}
	return NetWorthReport{
		BalanceSheet: engine.BuildBalanceSheet(accounts),
		Accounts:     accounts,
	}, nil
}

// AllocationReport is the by-type allocation with the investment/cash
// split and scaled holdings for each manual investment account.
type AllocationReport struct {
	Slices   []engine.AllocationSlice        `json:"slices"`
	Invested decimal.Decimal                 `json:"invested"`
	Cash     decimal.Decimal                 `json:"cash"`
	Holdings map[string][]engine.HoldingView `json:"holdings,omitempty"`
}

// Allocation builds the allocation report.
func (s *Service) Allocation(ctx context.Context, userID string) (AllocationReport, error) {
	accounts, err := s.mergedAccounts(ctx, userID)
	if err != nil {
		return AllocationReport{}, err
	}

	invested, cash := engine.InvestmentCashSplit(accounts)
	report := AllocationReport{
		Slices:   engine.AllocationByType(accounts),
		Invested: invested,
		Cash:     cash,
	}

	for _, a := range accounts {
		if a.Source != domain.SourceManual || a.Type != domain.AccountInvestment {
			continue
		}
		holdings, err := s.store.GetHoldings(ctx, userID, a.ID)
		if err != nil {
			return AllocationReport{}, fmt.Errorf("holdings for %s: %w", a.ID, err)
		}
		views := engine.ScaleHoldings(a.Balance, holdings)
		if len(views) == 0 {
			continue
		}
		if report.Holdings == nil {
			report.Holdings = make(map[string][]engine.HoldingView)
		}
		report.Holdings[a.ID] = views
	}
	return report, nil
}

// Summary fetches the full provider snapshot, cached as one unit.
func (s *Service) Summary(ctx context.Context) (*provider.Summary, error) {
	return cache.GetTyped(ctx, s.cache, cache.Key("summary", s.budgetID), func(ctx context.Context) (*provider.Summary, error) {
		return s.client.BudgetSummary(ctx, s.budgetID)
	})
}

// MatrixParams select the monthly matrix shape.
type MatrixParams struct {
	Months         int
	ShowActiveOnly bool
	Sort           engine.SortMode
	SelectedMonth  domain.MonthKey
}

// MonthlyMatrix builds the category × month report.
func (s *Service) MonthlyMatrix(ctx context.Context, userID string, params MatrixParams) (engine.Matrix, error) {
	processed, _, popts, err := s.processedTransactions(ctx, userID)
	if err != nil {
		return engine.Matrix{}, err
	}
	return engine.BuildMatrix(processed, engine.MatrixOptions{
		Months:         params.Months,
		Now:            s.now(),
		ShowActiveOnly: params.ShowActiveOnly,
		Sort:           params.Sort,
		SelectedMonth:  params.SelectedMonth,
		Process:        popts,
	}), nil
}

// Runway builds the cash-depletion projection over a lookback window.
func (s *Service) Runway(ctx context.Context, userID string, lookback int) (engine.Runway, error) {
	if lookback <= 0 {
		lookback = engine.DefaultLookbackMonths
	}
	accounts, err := s.mergedAccounts(ctx, userID)
	if err != nil {
		return engine.Runway{}, err
	}
	matrix, err := s.MonthlyMatrix(ctx, userID, MatrixParams{Months: lookback})
	if err != nil {
		return engine.Runway{}, err
	}
	return engine.BuildRunway(accounts, engine.LookbackFlows(matrix, lookback)), nil
}

// CSPScore evaluates the conscious spending plan for the current month,
// applying the draft overrides when present.
func (s *Service) CSPScore(ctx context.Context, userID string, draft engine.Draft) (engine.GoalComparison, error) {
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return engine.GoalComparison{}, fmt.Errorf("get settings: %w", err)
	}
	processed, categories, popts, err := s.processedTransactions(ctx, userID)
	if err != nil {
		return engine.GoalComparison{}, err
	}

	// Scoring window is the current calendar month.
	monthStart := domain.StartOfMonth(s.now())
	var current []domain.Transaction
	for _, t := range processed {
		if !t.Date.Before(monthStart) {
			current = append(current, t)
		}
	}

	income := decimal.Zero
	for _, t := range current {
		if engine.IsIncome(t, popts) {
			income = income.Add(t.Amount)
		}
	}

	copts := engine.ClassifierOptions{
		Overrides:        settings.CategoryBucketOverrides,
		KeywordInference: true,
	}
	buckets := engine.BucketTotals(current, categories, copts, popts)

	targets := domain.DefaultBucketTargets()
	if settings.BucketTargets != nil {
		targets = *settings.BucketTargets
	}
	return engine.Evaluate(engine.Actuals{Income: income, Buckets: buckets}, draft, targets), nil
}

// ===== Manual accounts & holdings =====

// CreateManualAccount stores a new user-entered account.
func (s *Service) CreateManualAccount(ctx context.Context, userID string, in store.ManualAccountInput) (domain.Account, error) {
	account, err := s.store.CreateManualAccount(ctx, userID, in)
	if err != nil {
		return domain.Account{}, err
	}
	s.logger.Info("manual account created", "user", userID, "account", account.ID)
	return account, nil
}

// ListManualAccounts lists the user's manual accounts.
func (s *Service) ListManualAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	return s.store.ListManualAccounts(ctx, userID)
}

// DeleteManualAccount removes a manual account and its holdings.
func (s *Service) DeleteManualAccount(ctx context.Context, userID, accountID string) error {
	if err := s.store.DeleteManualAccount(ctx, userID, accountID); err != nil {
		return err
	}
	s.logger.Info("manual account deleted", "user", userID, "account", accountID)
	return nil
}

// GetHoldings returns the stored holdings for a manual account.
func (s *Service) GetHoldings(ctx context.Context, userID, accountID string) ([]domain.Holding, error) {
	return s.store.GetHoldings(ctx, userID, accountID)
}

// SetHoldings replaces the stored holdings for a manual account.
func (s *Service) SetHoldings(ctx context.Context, userID, accountID string, holdings []domain.Holding) error {
	return s.store.SetHoldings(ctx, userID, accountID, holdings)
}

// ===== Token & cache control =====

// SetProviderToken seeds the in-memory provider token and clears the
// provider caches so the next fetch uses the new credentials.
func (s *Service) SetProviderToken(token string) {
	s.tokens.Set(token)
	s.cache.Invalidate("")
	s.logger.Info("provider token updated")
}

// DisconnectProvider clears the token and the cached provider data.
func (s *Service) DisconnectProvider() {
	s.tokens.Clear()
	s.cache.Invalidate("")
	s.logger.Info("provider disconnected")
}

// InvalidateCache evicts cache entries under prefix; an empty prefix
// clears everything. Returns the number of entries removed.
func (s *Service) InvalidateCache(prefix string) int {
	removed := s.cache.Invalidate(prefix)
	s.logger.Info("cache invalidated", "prefix", prefix, "removed", removed)
	return removed
}
