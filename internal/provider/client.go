// Package provider is the authenticated client for the hosted budgeting
// service. It normalises the provider's milli-unit wire format into decimal
// domain values, retries transient failures with exponential backoff, and
// signals auth invalidation so the session layer can re-authenticate.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/benmercer/finboard/internal/domain"
	"github.com/benmercer/finboard/internal/log"
)

// DefaultBudgetID asks the provider for the most recently used budget.
const DefaultBudgetID = "last-used"

const requestTimeout = 30 * time.Second

// Client fetches budget resources with a bearer token held in a TokenCell.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenCell
	retry      RetryConfig
	logger     *log.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryConfig replaces the retry policy.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// NewClient creates a provider client rooted at baseURL.
func NewClient(baseURL string, tokens *TokenCell, logger *log.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		tokens:     tokens,
		retry:      DefaultRetryConfig,
		logger:     logger.WithComponent("provider"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wireError is the provider's error envelope.
type wireError struct {
	Error struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Detail string `json:"detail"`
	} `json:"error"`
}

// get performs one authenticated GET with retry and returns the raw "data"
// payload of the response envelope.
func (c *Client) get(ctx context.Context, op, path string, query url.Values) (json.RawMessage, error) {
	token, ok := c.tokens.Get()
	if !ok {
		return nil, &Error{Kind: KindNotInitialized, Op: op, Message: "no access token"}
	}

	return withRetry(ctx, c.retry, func(ctx context.Context) (json.RawMessage, error) {
		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, &Error{Kind: KindPermanent, Op: op, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &Error{Kind: KindTransient, Op: op, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
			kind := classifyStatus(resp.StatusCode)
			msg := strings.TrimSpace(string(body))
			var we wireError
			if json.Unmarshal(body, &we) == nil && we.Error.Detail != "" {
				msg = we.Error.Detail
			}
			if kind == KindAuthInvalid {
				c.logger.Warn("access token rejected, clearing", "op", op, "status", resp.StatusCode)
				c.tokens.invalidate()
			}
			return nil, &Error{Kind: kind, Op: op, StatusCode: resp.StatusCode, Message: msg}
		}

		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return nil, &Error{Kind: KindParse, Op: op, Err: err}
		}
		if envelope.Data == nil {
			return nil, &Error{Kind: KindParse, Op: op, Message: "response missing data payload"}
		}
		return envelope.Data, nil
	})
}

// Budgets lists the budgets the token can read.
func (c *Client) Budgets(ctx context.Context) ([]Budget, error) {
	raw, err := c.get(ctx, "budgets", "/budgets", nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Budgets []wireBudget `json:"budgets"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &Error{Kind: KindParse, Op: "budgets", Err: err}
	}
	out := make([]Budget, 0, len(payload.Budgets))
	for _, b := range payload.Budgets {
		out = append(out, b.toDomain())
	}
	return out, nil
}

// Accounts lists the budget's open and closed accounts. Deleted accounts
// are dropped at this boundary.
func (c *Client) Accounts(ctx context.Context, budgetID string) ([]domain.Account, error) {
	raw, err := c.get(ctx, "accounts", c.budgetPath(budgetID, "accounts"), nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Accounts []wireAccount `json:"accounts"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &Error{Kind: KindParse, Op: "accounts", Err: err}
	}
	out := make([]domain.Account, 0, len(payload.Accounts))
	for _, a := range payload.Accounts {
		if a.Deleted {
			continue
		}
		out = append(out, a.toDomain())
	}
	return out, nil
}

// Transactions lists transactions, optionally bounded below by sinceDate.
func (c *Client) Transactions(ctx context.Context, budgetID string, sinceDate time.Time) ([]domain.Transaction, error) {
	var query url.Values
	if !sinceDate.IsZero() {
		query = url.Values{"since_date": {sinceDate.Format("2006-01-02")}}
	}
	raw, err := c.get(ctx, "transactions", c.budgetPath(budgetID, "transactions"), query)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Transactions []wireTransaction `json:"transactions"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &Error{Kind: KindParse, Op: "transactions", Err: err}
	}
	out := make([]domain.Transaction, 0, len(payload.Transactions))
	for _, t := range payload.Transactions {
		if t.Deleted {
			continue
		}
		out = append(out, t.toDomain())
	}
	return out, nil
}

// Categories lists the budget's categories flattened from their groups.
func (c *Client) Categories(ctx context.Context, budgetID string) ([]domain.Category, error) {
	raw, err := c.get(ctx, "categories", c.budgetPath(budgetID, "categories"), nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		CategoryGroups []wireCategoryGroup `json:"category_groups"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &Error{Kind: KindParse, Op: "categories", Err: err}
	}
	return flattenCategoryGroups(payload.CategoryGroups), nil
}

// Months lists the provider's per-month budget rollups.
func (c *Client) Months(ctx context.Context, budgetID string) ([]MonthSummary, error) {
	raw, err := c.get(ctx, "months", c.budgetPath(budgetID, "months"), nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Months []wireMonth `json:"months"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &Error{Kind: KindParse, Op: "months", Err: err}
	}
	out := make([]MonthSummary, 0, len(payload.Months))
	for _, m := range payload.Months {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// BudgetSummary fetches budgets, accounts, transactions, categories and
// months concurrently. Individual failures leave the corresponding field
// nil; the call errors only when every fan-out failed.
func (c *Client) BudgetSummary(ctx context.Context, budgetID string) (*Summary, error) {
	var (
		summary Summary
		mu      sync.Mutex
		wg      sync.WaitGroup
		errs    []error
	)

	run := func(name string, fetch func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fetch(); err != nil {
				c.logger.Warn("summary fan-out failed", "resource", name, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
		}()
	}

	run("budgets", func() error {
		v, err := c.Budgets(ctx)
		if err == nil {
			summary.Budgets = v
		}
		return err
	})
	run("accounts", func() error {
		v, err := c.Accounts(ctx, budgetID)
		if err == nil {
			summary.Accounts = v
		}
		return err
	})
	run("transactions", func() error {
		v, err := c.Transactions(ctx, budgetID, time.Time{})
		if err == nil {
			summary.Transactions = v
		}
		return err
	})
	run("categories", func() error {
		v, err := c.Categories(ctx, budgetID)
		if err == nil {
			summary.Categories = v
		}
		return err
	})
	run("months", func() error {
		v, err := c.Months(ctx, budgetID)
		if err == nil {
			summary.Months = v
		}
		return err
	})

	wg.Wait()
	if len(errs) == 5 {
		return nil, fmt.Errorf("budget summary: all fetches failed: %w", errs[0])
	}
	return &summary, nil
}

func (c *Client) budgetPath(budgetID, resource string) string {
	if budgetID == "" {
		budgetID = DefaultBudgetID
	}
	return "/budgets/" + url.PathEscape(budgetID) + "/" + resource
}
