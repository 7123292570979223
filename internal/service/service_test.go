package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmercer/finboard/internal/auth"
	"github.com/benmercer/finboard/internal/cache"
	"github.com/benmercer/finboard/internal/domain"
	"github.com/benmercer/finboard/internal/engine"
	"github.com/benmercer/finboard/internal/log"
	"github.com/benmercer/finboard/internal/provider"
	"github.com/benmercer/finboard/internal/store"
)

const testUser = "local-dev-user"

var testNow = time.Date(2025, time.October, 20, 12, 0, 0, 0, time.UTC)

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func amt(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// providerFixture serves a small but complete budget snapshot.
func providerFixture(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/budgets":
			w.Write([]byte(`{"data":{"budgets":[{"id":"b-test","name":"Test Budget"}]}}`))
		case "/budgets/b-test/accounts":
			w.Write([]byte(`{"data":{"accounts":[
				{"id":"P-check","name":"Everyday","type":"checking","balance":2500000},
				{"id":"P-card","name":"Visa","type":"creditCard","balance":-750250},
				{"id":"P-brok","name":"Brokerage","type":"investmentAccount","balance":90000000}
			]}}`))
		case "/budgets/b-test/transactions":
			w.Write([]byte(`{"data":{"transactions":[
				{"id":"T-inc1","date":"2025-10-01","amount":3000000,"payee_name":"ACME Corp Deposit","account_id":"P-check","category_name":"Inflow: Ready to Assign"},
				{"id":"T-inc2","date":"2025-10-05","amount":500000,"payee_name":"Dividend ACH Brokerage","account_id":"P-check","category_name":"Inflow: Ready to Assign"},
				{"id":"T-rent","date":"2025-10-02","amount":-1200000,"payee_name":"Landlord","account_id":"P-check","category_id":"c-rent","category_name":"Rent"},
				{"id":"T-save","date":"2025-10-03","amount":-100000,"payee_name":"Transfer","account_id":"P-check","transfer_account_id":"P-sav"},
				{"id":"T-inv","date":"2025-10-04","amount":-500000,"payee_name":"Transfer","account_id":"P-check","transfer_account_id":"P-brok"}
			]}}`))
		case "/budgets/b-test/categories":
			w.Write([]byte(`{"data":{"category_groups":[
				{"id":"g-fixed","name":"Fixed Costs","categories":[{"id":"c-rent","name":"Rent"}]}
			]}}`))
		case "/budgets/b-test/months":
			w.Write([]byte(`{"data":{"months":[{"month":"2025-10-01","income":3500000,"activity":-1700000}]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newServiceAgainst(t *testing.T, srv *httptest.Server) (*Service, *store.MemoryStore, *provider.TokenCell) {
	t.Helper()

	tokens := provider.NewTokenCell()
	tokens.Set("tok-test")

	logger := testLogger()
	client := provider.NewClient(srv.URL, tokens, logger)
	st := store.NewMemoryStore()
	c := cache.New(time.Minute, 2*time.Minute)

	svc := New(st, client, tokens, c, logger, "b-test", WithClock(func() time.Time { return testNow }))
	return svc, st, tokens
}

func newTestService(t *testing.T) (*Service, *store.MemoryStore, *provider.TokenCell) {
	t.Helper()
	return newServiceAgainst(t, providerFixture(t))
}

func seedManualAccounts(t *testing.T, st *store.MemoryStore) (savingsID, mortgageID string) {
	t.Helper()
	ctx := context.Background()
	savings, err := st.CreateManualAccount(ctx, testUser, store.ManualAccountInput{
		Name: "High Yield Savings", Type: "savings", Balance: amt(10000),
	})
	require.NoError(t, err)
	mortgage, err := st.CreateManualAccount(ctx, testUser, store.ManualAccountInput{
		Name: "Home Loan", Type: "mortgage", Balance: amt(-180000),
	})
	require.NoError(t, err)
	return savings.ID, mortgage.ID
}

func TestServiceNetWorth(t *testing.T) {
	svc, st, _ := newTestService(t)
	seedManualAccounts(t, st)

	report, err := svc.NetWorth(context.Background(), testUser)
	require.NoError(t, err)

	assert.Equal(t, "102500", report.TotalAssets.String())
	assert.Equal(t, "180750.25", report.TotalLiabilities.String())
	assert.Equal(t, "-78250.25", report.NetWorth.String())
	assert.Len(t, report.Accounts, 5)
}

func TestServiceNetWorthWithoutProvider(t *testing.T) {
	svc, st, tokens := newTestService(t)
	seedManualAccounts(t, st)
	tokens.Clear()

	// With no token the dashboard still works over manual accounts.
	report, err := svc.NetWorth(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, "10000", report.TotalAssets.String())
	assert.Equal(t, "180000", report.TotalLiabilities.String())
}

func TestServiceAllocation(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	brokerage, err := st.CreateManualAccount(ctx, testUser, store.ManualAccountInput{
		Name: "Manual Brokerage", Type: "investment", Balance: amt(8000),
	})
	require.NoError(t, err)
	require.NoError(t, st.SetHoldings(ctx, testUser, brokerage.ID, []domain.Holding{
		{Symbol: "VTI", Shares: decimal.NewFromInt(10), Price: decimal.NewFromInt(200)},
		{Symbol: "BND", Shares: decimal.NewFromInt(100), Price: decimal.NewFromInt(20)},
	}))

	report, err := svc.Allocation(ctx, testUser)
	require.NoError(t, err)

	t.Run("split counts provider and manual investments", func(t *testing.T) {
		assert.Equal(t, "98000", report.Invested.String())
		assert.Equal(t, "2500", report.Cash.String())
	})

	t.Run("manual investment account carries scaled holdings", func(t *testing.T) {
		views := report.Holdings[brokerage.ID]
		require.Len(t, views, 2)
		// Raw total 4000, balance 8000: scale factor 2.
		assert.Equal(t, "4000", views[0].ScaledValue.String())
		assert.Equal(t, "4000", views[1].ScaledValue.String())
	})
}

func TestServiceMonthlyMatrix(t *testing.T) {
	svc, _, _ := newTestService(t)

	matrix, err := svc.MonthlyMatrix(context.Background(), testUser, MatrixParams{Months: 3})
	require.NoError(t, err)

	t.Run("window ends at the current partial month", func(t *testing.T) {
		assert.Equal(t, []domain.MonthKey{"2025-08", "2025-09", "2025-10"}, matrix.MonthKeys)
	})

	t.Run("income rows split by normalised payee", func(t *testing.T) {
		var income *engine.MatrixGroup
		for i := range matrix.Groups {
			if matrix.Groups[i].Name == engine.IncomeGroupLabel {
				income = &matrix.Groups[i]
			}
		}
		require.NotNil(t, income)
		require.Len(t, income.Rows, 2)

		labels := []string{income.Rows[0].Label, income.Rows[1].Label}
		assert.Contains(t, labels, "ACME Corp")
		assert.Contains(t, labels, "Dividend Brokerage")
	})

	t.Run("internal transfer collapsed, investment transfer kept", func(t *testing.T) {
		oct := matrix.MonthlyTotals["2025-10"]
		assert.Equal(t, "3500", oct.Income.String())
		// Rent 1200 plus the 500 brokerage transfer; the savings transfer
		// is internal and gone.
		assert.Equal(t, "1700", oct.Expenses.String())
	})
}

func TestServiceSplitTransactionLegs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/budgets/b-test/accounts":
			w.Write([]byte(`{"data":{"accounts":[
				{"id":"P-check","name":"Everyday","type":"checking","balance":2500000}
			]}}`))
		case "/budgets/b-test/transactions":
			w.Write([]byte(`{"data":{"transactions":[
				{"id":"T-split","date":"2025-10-07","amount":2900000,"payee_name":"Employer","account_id":"P-check","subtransactions":[
					{"id":"s-pay","amount":3000000,"category_id":"c-pay"},
					{"id":"s-groc","amount":-100000,"category_id":"c-groc"}
				]}
			]}}`))
		case "/budgets/b-test/categories":
			w.Write([]byte(`{"data":{"category_groups":[
				{"id":"g-inc","name":"Income","categories":[{"id":"c-pay","name":"Paycheck"}]},
				{"id":"g-ev","name":"Everyday","categories":[{"id":"c-groc","name":"Groceries"}]}
			]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	svc, _, _ := newServiceAgainst(t, srv)

	matrix, err := svc.MonthlyMatrix(context.Background(), testUser, MatrixParams{Months: 1})
	require.NoError(t, err)

	// The paycheck leg carries its own category; its group must resolve
	// through the category map so it classifies as income.
	oct := matrix.MonthlyTotals["2025-10"]
	assert.Equal(t, "3000", oct.Income.String())
	assert.Equal(t, "100", oct.Expenses.String())

	var everyday *engine.MatrixGroup
	for i := range matrix.Groups {
		if matrix.Groups[i].Name == "Everyday" {
			everyday = &matrix.Groups[i]
		}
	}
	require.NotNil(t, everyday)
	require.Len(t, everyday.Rows, 1)
	assert.Equal(t, "Groceries", everyday.Rows[0].Label)
}

func TestServiceRunway(t *testing.T) {
	svc, st, _ := newTestService(t)
	seedManualAccounts(t, st)

	runway, err := svc.Runway(context.Background(), testUser, 3)
	require.NoError(t, err)

	// Cash reserves: provider checking 2500 + manual savings 10000.
	assert.Equal(t, "12500", runway.CashReserves.String())
	assert.Equal(t, engine.HealthExcellent, runway.Health)
	assert.Len(t, runway.Projection, engine.ProjectionMonths+1)
}

func TestServiceCSPScore(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cmp, err := svc.CSPScore(ctx, testUser, engine.Draft{})
	require.NoError(t, err)

	t.Run("actuals come from the current month", func(t *testing.T) {
		assert.Equal(t, "3500", cmp.Actual.Income.String())
		// Rent lands in fixed costs via the category join; the kept
		// brokerage transfer has no category and defaults to guilt-free.
		for _, b := range cmp.Actual.Buckets {
			switch b.Bucket {
			case domain.BucketFixedCosts:
				assert.Equal(t, "1200", b.Amount.String())
			case domain.BucketGuiltFree:
				assert.Equal(t, "500", b.Amount.String())
			}
		}
	})

	t.Run("draft shifts the effective score", func(t *testing.T) {
		invest := decimal.NewFromInt(350)
		cmp, err := svc.CSPScore(ctx, testUser, engine.Draft{
			Buckets: map[domain.CategoryBucket]*decimal.Decimal{
				domain.BucketInvestments: &invest,
			},
		})
		require.NoError(t, err)
		assert.Greater(t, cmp.Effective.Score, cmp.Actual.Score)
		assert.Equal(t, cmp.Effective.Score-cmp.Actual.Score, cmp.ScoreDelta)
	})
}

// ===== HTTP surface =====

func newTestHandler(t *testing.T) (http.Handler, *store.MemoryStore) {
	svc, st, _ := newTestService(t)
	mux := http.NewServeMux()
	svc.Routes(mux)
	return auth.LocalDevMiddleware()(mux), st
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandlersManualAccountLifecycle(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/manual-accounts", map[string]any{
		"name": "Cash Jar", "type": "cash", "balance": 150.50,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Contains(t, created.ID, domain.ManualIDPrefix)

	t.Run("list includes the new account", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/manual-accounts", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var accounts []domain.Account
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accounts))
		require.Len(t, accounts, 1)
		assert.Equal(t, "Cash Jar", accounts[0].Name)
	})

	t.Run("validation errors map to 400", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/manual-accounts", map[string]any{
			"name": "", "type": "cash",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doJSON(t, handler, http.MethodPost, "/api/manual-accounts", map[string]any{
			"name": "No Balance", "type": "cash",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete removes it", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodDelete, "/api/manual-accounts/"+created.ID, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, handler, http.MethodDelete, "/api/manual-accounts/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandlersHoldings(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/manual-accounts", map[string]any{
		"name": "Brokerage", "type": "investment", "balance": 10000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, handler, http.MethodPut, "/api/manual-accounts/"+created.ID+"/holdings", []map[string]any{
		{"symbol": "vti", "shares": 10, "price": 200},
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/manual-accounts/"+created.ID+"/holdings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var holdings []domain.Holding
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &holdings))
	require.Len(t, holdings, 1)
	assert.Equal(t, "VTI", holdings[0].Symbol)
}

func TestHandlersGoals(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/csp/goals", map[string]any{
		"name":         "Lean year",
		"targetIncome": 8000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var goal domain.RunwayGoal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &goal))
	assert.NotEmpty(t, goal.ID)

	t.Run("list returns the saved goal", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/csp/goals", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var goals []domain.RunwayGoal
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &goals))
		require.Len(t, goals, 1)
		assert.Equal(t, "Lean year", goals[0].Name)
	})

	t.Run("delete removes it", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodDelete, "/api/csp/goals/"+goal.ID, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, handler, http.MethodDelete, "/api/csp/goals/"+goal.ID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("nameless goal is rejected", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/csp/goals", map[string]any{"targetIncome": 1})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandlersReports(t *testing.T) {
	handler, _ := newTestHandler(t)

	t.Run("monthly matrix", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/reports/monthly?months=3", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var matrix engine.Matrix
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matrix))
		assert.Len(t, matrix.MonthKeys, 3)
	})

	t.Run("bad months parameter", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/reports/monthly?months=zero", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("runway", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/reports/runway?lookback=3", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var runway engine.Runway
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runway))
		assert.NotEmpty(t, runway.Health)
	})

	t.Run("csp score", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/api/csp/score", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandlersTokenAndCache(t *testing.T) {
	svc, _, tokens := newTestService(t)
	mux := http.NewServeMux()
	svc.Routes(mux)
	handler := auth.LocalDevMiddleware()(mux)

	t.Run("token endpoint seeds the cell", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/provider/token", map[string]string{"token": "tok-new"})
		require.Equal(t, http.StatusNoContent, rec.Code)
		got, ok := tokens.Get()
		assert.True(t, ok)
		assert.Equal(t, "tok-new", got)
	})

	t.Run("empty token is rejected", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/api/provider/token", map[string]string{"token": ""})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("disconnect clears the cell", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodDelete, "/api/provider/token", nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		_, ok := tokens.Get()
		assert.False(t, ok)
	})

	t.Run("cache invalidation reports removals", func(t *testing.T) {
		tokens.Set("tok-test")
		_, err := svc.NetWorth(context.Background(), testUser)
		require.NoError(t, err)

		rec := doJSON(t, handler, http.MethodPost, "/api/cache/invalidate", map[string]string{"prefix": "accounts"})
		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]int
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp["removed"])
	})

	t.Run("health endpoint", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandlerProviderNotConnected(t *testing.T) {
	svc, _, tokens := newTestService(t)
	tokens.Clear()
	mux := http.NewServeMux()
	svc.Routes(mux)
	handler := auth.LocalDevMiddleware()(mux)

	// Reports that need transactions cannot degrade and surface 409.
	rec := doJSON(t, handler, http.MethodGet, "/api/reports/monthly?months=3", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
