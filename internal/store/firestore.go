package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/benmercer/finboard/internal/domain"
)

const (
	manualAccountsCollection = "manual_accounts"
	userHoldingsCollection   = "user_holdings"
	cspSettingsCollection    = "csp_settings"
)

// FirestoreStore implements Store backed by Cloud Firestore. Record
// layout:
//
//	manual_accounts/{docId}  {userId, name, type, subtype?, balance}
//	user_holdings/{userId}   {accountId: [holdings...]}
//	csp_settings/{userId}    {goals, bucketTargets?, categoryBucketOverrides?, updatedAt}
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a Firestore-backed store.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// Document shapes. Amounts are stored as plain numbers; decimals are
// reconstructed on read.

type fsManualAccount struct {
	UserID  string  `firestore:"userId"`
	Name    string  `firestore:"name"`
	Type    string  `firestore:"type"`
	Subtype string  `firestore:"subtype,omitempty"`
	Balance float64 `firestore:"balance"`
}

type fsHolding struct {
	Symbol string  `firestore:"symbol"`
	Shares float64 `firestore:"shares"`
	Price  float64 `firestore:"price"`
}

type fsRunwayGoal struct {
	ID            string             `firestore:"id"`
	Name          string             `firestore:"name"`
	CreatedAt     time.Time          `firestore:"createdAt"`
	TargetIncome  float64            `firestore:"targetIncome"`
	BucketAmounts map[string]float64 `firestore:"bucketAmounts"`
}

type fsBucketTargets struct {
	FixedCostsMax  float64 `firestore:"fixedCostsMax"`
	GuiltFreeMax   float64 `firestore:"guiltFreeMax"`
	InvestmentsMin float64 `firestore:"investmentsMin"`
	SavingsMin     float64 `firestore:"savingsMin"`
}

type fsSettings struct {
	Goals                   []fsRunwayGoal    `firestore:"goals"`
	BucketTargets           *fsBucketTargets  `firestore:"bucketTargets,omitempty"`
	CategoryBucketOverrides map[string]string `firestore:"categoryBucketOverrides,omitempty"`
	UpdatedAt               time.Time         `firestore:"updatedAt"`
}

func (f *FirestoreStore) CreateManualAccount(ctx context.Context, userID string, in ManualAccountInput) (domain.Account, error) {
	if err := in.Validate(); err != nil {
		return domain.Account{}, err
	}

	docID := uuid.New().String()
	balance, _ := in.Balance.Float64()
	doc := fsManualAccount{
		UserID:  userID,
		Name:    in.Name,
		Type:    in.Type,
		Subtype: in.Subtype,
		Balance: balance,
	}
	if _, err := f.client.Collection(manualAccountsCollection).Doc(docID).Set(ctx, doc); err != nil {
		return domain.Account{}, fmt.Errorf("create manual account: %w", err)
	}
	return manualAccountFromDoc(docID, doc), nil
}

func (f *FirestoreStore) ListManualAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	docs, err := f.client.Collection(manualAccountsCollection).
		Where("userId", "==", userID).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list manual accounts: %w", err)
	}

	out := make([]domain.Account, 0, len(docs))
	for _, snap := range docs {
		var doc fsManualAccount
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode manual account %s: %w", snap.Ref.ID, err)
		}
		out = append(out, manualAccountFromDoc(snap.Ref.ID, doc))
	}
	return out, nil
}

func (f *FirestoreStore) DeleteManualAccount(ctx context.Context, userID, accountID string) error {
	docID := docIDFromAccountID(accountID)
	ref := f.client.Collection(manualAccountsCollection).Doc(docID)

	snap, err := ref.Get(ctx)
	if err != nil {
		if snap != nil && !snap.Exists() {
			return fmt.Errorf("%w: manual account %s", ErrNotFound, accountID)
		}
		return fmt.Errorf("get manual account: %w", err)
	}
	var doc fsManualAccount
	if err := snap.DataTo(&doc); err != nil {
		return fmt.Errorf("decode manual account: %w", err)
	}
	if doc.UserID != userID {
		return fmt.Errorf("%w: manual account %s", ErrNotFound, accountID)
	}

	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("delete manual account: %w", err)
	}

	// Cascade: drop the account's holdings entry. A missing holdings doc
	// is fine, there was nothing to cascade to.
	_, err = f.client.Collection(userHoldingsCollection).Doc(userID).Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{accountID}, Value: firestore.Delete},
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete holdings for %s: %w", accountID, err)
	}
	return nil
}

func (f *FirestoreStore) GetHoldings(ctx context.Context, userID, accountID string) ([]domain.Holding, error) {
	snap, err := f.client.Collection(userHoldingsCollection).Doc(userID).Get(ctx)
	if err != nil {
		if snap != nil && !snap.Exists() {
			return []domain.Holding{}, nil
		}
		return nil, fmt.Errorf("get holdings: %w", err)
	}

	var doc map[string][]fsHolding
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode holdings: %w", err)
	}
	out := make([]domain.Holding, 0, len(doc[accountID]))
	for _, h := range doc[accountID] {
		out = append(out, domain.Holding{
			Symbol: h.Symbol,
			Shares: decimal.NewFromFloat(h.Shares),
			Price:  decimal.NewFromFloat(h.Price),
		})
	}
	return out, nil
}

func (f *FirestoreStore) SetHoldings(ctx context.Context, userID, accountID string, holdings []domain.Holding) error {
	// Same contract as the memory twin: holdings attach to an existing
	// manual account owned by this user.
	ref := f.client.Collection(manualAccountsCollection).Doc(docIDFromAccountID(accountID))
	snap, err := ref.Get(ctx)
	if err != nil {
		if snap != nil && !snap.Exists() {
			return fmt.Errorf("%w: manual account %s", ErrNotFound, accountID)
		}
		return fmt.Errorf("get manual account: %w", err)
	}
	var acct fsManualAccount
	if err := snap.DataTo(&acct); err != nil {
		return fmt.Errorf("decode manual account: %w", err)
	}
	if acct.UserID != userID {
		return fmt.Errorf("%w: manual account %s", ErrNotFound, accountID)
	}

	docHoldings := make([]fsHolding, 0, len(holdings))
	for _, h := range normalizeHoldings(holdings) {
		shares, _ := h.Shares.Float64()
		price, _ := h.Price.Float64()
		docHoldings = append(docHoldings, fsHolding{Symbol: h.Symbol, Shares: shares, Price: price})
	}

	_, err = f.client.Collection(userHoldingsCollection).Doc(userID).Set(ctx, map[string]any{
		accountID: docHoldings,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("set holdings: %w", err)
	}
	return nil
}

func (f *FirestoreStore) GetSettings(ctx context.Context, userID string) (domain.Settings, error) {
	snap, err := f.client.Collection(cspSettingsCollection).Doc(userID).Get(ctx)
	if err != nil {
		if snap != nil && !snap.Exists() {
			return domain.Settings{}, nil
		}
		return domain.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	var doc fsSettings
	if err := snap.DataTo(&doc); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settingsFromDoc(doc), nil
}

func (f *FirestoreStore) PutSettings(ctx context.Context, userID string, patch SettingsPatch) (domain.Settings, error) {
	current, err := f.GetSettings(ctx, userID)
	if err != nil {
		return domain.Settings{}, err
	}

	merged := applyPatch(current, patch)
	merged.UpdatedAt = time.Now()

	_, err = f.client.Collection(cspSettingsCollection).Doc(userID).Set(ctx, settingsToDoc(merged))
	if err != nil {
		return domain.Settings{}, fmt.Errorf("put settings: %w", err)
	}
	return merged, nil
}

func manualAccountFromDoc(docID string, doc fsManualAccount) domain.Account {
	return domain.Account{
		ID:          domain.ManualIDPrefix + docID,
		Name:        doc.Name,
		Source:      domain.SourceManual,
		RawType:     doc.Type,
		Type:        manualTypes[doc.Type],
		Balance:     decimal.NewFromFloat(doc.Balance),
		Institution: doc.Subtype,
	}
}

func docIDFromAccountID(accountID string) string {
	return strings.TrimPrefix(accountID, domain.ManualIDPrefix)
}

func settingsFromDoc(doc fsSettings) domain.Settings {
	s := domain.Settings{UpdatedAt: doc.UpdatedAt}
	if len(doc.CategoryBucketOverrides) > 0 {
		s.CategoryBucketOverrides = make(map[string]domain.CategoryBucket, len(doc.CategoryBucketOverrides))
		for id, b := range doc.CategoryBucketOverrides {
			s.CategoryBucketOverrides[id] = domain.CategoryBucket(b)
		}
	}
	if doc.BucketTargets != nil {
		s.BucketTargets = &domain.BucketTargets{
			FixedCostsMax:  doc.BucketTargets.FixedCostsMax,
			GuiltFreeMax:   doc.BucketTargets.GuiltFreeMax,
			InvestmentsMin: doc.BucketTargets.InvestmentsMin,
			SavingsMin:     doc.BucketTargets.SavingsMin,
		}
	}
	for _, g := range doc.Goals {
		goal := domain.RunwayGoal{
			ID:            g.ID,
			Name:          g.Name,
			CreatedAt:     g.CreatedAt,
			TargetIncome:  decimal.NewFromFloat(g.TargetIncome),
			BucketAmounts: make(map[domain.CategoryBucket]decimal.Decimal, len(g.BucketAmounts)),
		}
		for b, amt := range g.BucketAmounts {
			goal.BucketAmounts[domain.CategoryBucket(b)] = decimal.NewFromFloat(amt)
		}
		s.SavedRunwayGoals = append(s.SavedRunwayGoals, goal)
	}
	return s
}

func settingsToDoc(s domain.Settings) fsSettings {
	doc := fsSettings{UpdatedAt: s.UpdatedAt, Goals: make([]fsRunwayGoal, 0, len(s.SavedRunwayGoals))}
	if len(s.CategoryBucketOverrides) > 0 {
		doc.CategoryBucketOverrides = make(map[string]string, len(s.CategoryBucketOverrides))
		for id, b := range s.CategoryBucketOverrides {
			doc.CategoryBucketOverrides[id] = string(b)
		}
	}
	if s.BucketTargets != nil {
		doc.BucketTargets = &fsBucketTargets{
			FixedCostsMax:  s.BucketTargets.FixedCostsMax,
			GuiltFreeMax:   s.BucketTargets.GuiltFreeMax,
			InvestmentsMin: s.BucketTargets.InvestmentsMin,
			SavingsMin:     s.BucketTargets.SavingsMin,
		}
	}
	for _, g := range s.SavedRunwayGoals {
		target, _ := g.TargetIncome.Float64()
		fg := fsRunwayGoal{
			ID:            g.ID,
			Name:          g.Name,
			CreatedAt:     g.CreatedAt,
			TargetIncome:  target,
			BucketAmounts: make(map[string]float64, len(g.BucketAmounts)),
		}
		for b, amt := range g.BucketAmounts {
			v, _ := amt.Float64()
			fg.BucketAmounts[string(b)] = v
		}
		doc.Goals = append(doc.Goals, fg)
	}
	return doc
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "NotFound")
}
