package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/benmercer/finboard/internal/domain"
)

// MemoryStore implements Store with in-memory maps. Used by tests and
// local development.
type MemoryStore struct {
	mu sync.RWMutex

	// accounts are keyed userID -> accountID -> account
	accounts map[string]map[string]domain.Account
	// holdings are keyed userID -> accountID -> holdings
	holdings map[string]map[string][]domain.Holding
	settings map[string]domain.Settings

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]map[string]domain.Account),
		holdings: make(map[string]map[string][]domain.Holding),
		settings: make(map[string]domain.Settings),
		now:      time.Now,
	}
}

func (m *MemoryStore) CreateManualAccount(ctx context.Context, userID string, in ManualAccountInput) (domain.Account, error) {
	if err := in.Validate(); err != nil {
		return domain.Account{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acct := domain.Account{
		ID:      domain.ManualIDPrefix + uuid.New().String(),
		Name:    in.Name,
		Source:  domain.SourceManual,
		RawType: in.Type,
		Type:    manualTypes[in.Type],
		Balance: *in.Balance,
	}
	if in.Subtype != "" {
		acct.Institution = in.Subtype
	}

	if m.accounts[userID] == nil {
		m.accounts[userID] = make(map[string]domain.Account)
	}
	m.accounts[userID][acct.ID] = acct
	return acct, nil
}

func (m *MemoryStore) ListManualAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Account, 0, len(m.accounts[userID]))
	for _, a := range m.accounts[userID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) DeleteManualAccount(ctx context.Context, userID, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[userID][accountID]; !ok {
		return fmt.Errorf("%w: manual account %s", ErrNotFound, accountID)
	}
	delete(m.accounts[userID], accountID)
	// Cascade: the account's holdings go with it.
	delete(m.holdings[userID], accountID)
	return nil
}

func (m *MemoryStore) GetHoldings(ctx context.Context, userID, accountID string) ([]domain.Holding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hs := m.holdings[userID][accountID]
	out := make([]domain.Holding, len(hs))
	copy(out, hs)
	return out, nil
}

func (m *MemoryStore) SetHoldings(ctx context.Context, userID, accountID string, holdings []domain.Holding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[userID][accountID]; !ok {
		return fmt.Errorf("%w: manual account %s", ErrNotFound, accountID)
	}
	if m.holdings[userID] == nil {
		m.holdings[userID] = make(map[string][]domain.Holding)
	}
	m.holdings[userID][accountID] = normalizeHoldings(holdings)
	return nil
}

func (m *MemoryStore) GetSettings(ctx context.Context, userID string) (domain.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[userID], nil
}

func (m *MemoryStore) PutSettings(ctx context.Context, userID string, patch SettingsPatch) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := applyPatch(m.settings[userID], patch)
	s.UpdatedAt = m.now()
	m.settings[userID] = s
	return s, nil
}
