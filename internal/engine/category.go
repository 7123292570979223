package engine

import (
	"strings"

	"github.com/benmercer/finboard/internal/domain"
)

// Group names with a fixed bucket mapping, matched case-insensitively.
var groupBuckets = map[string]domain.CategoryBucket{
	"fixed costs":          domain.BucketFixedCosts,
	"bills":                domain.BucketFixedCosts,
	"investments":          domain.BucketInvestments,
	"post tax investments": domain.BucketInvestments,
	"savings":              domain.BucketSavings,
	"guilt-free":           domain.BucketGuiltFree,
	"fun money":            domain.BucketGuiltFree,
}

// Keyword tables for inferring a bucket from the category name alone.
var bucketKeywords = []struct {
	bucket   domain.CategoryBucket
	keywords []string
}{
	{domain.BucketInvestments, []string{"401k", "roth", "ira", "stock"}},
	{domain.BucketSavings, []string{"emergency", "vacation", "down payment"}},
	{domain.BucketFixedCosts, []string{"rent", "electric", "insurance", "groceries", "utility", "mortgage", "loan", "bill"}},
}

// ClassifierOptions configures bucket resolution.
type ClassifierOptions struct {
	// Overrides wins over every heuristic, keyed by category ID.
	Overrides map[string]domain.CategoryBucket

	// KeywordInference enables the category-name keyword scan when the
	// group table has no answer.
	KeywordInference bool
}

// ClassifyCategory resolves a category to its CSP bucket. Income
// categories have no bucket; ok is false for them. Resolution order:
// explicit override, group-name table, keyword inference, guilt-free.
func ClassifyCategory(cat domain.Category, opts ClassifierOptions) (domain.CategoryBucket, bool) {
	if isIncomeCategory(cat) {
		return "", false
	}
	if b, ok := opts.Overrides[cat.ID]; ok {
		return b, true
	}
	if b, ok := groupBuckets[strings.ToLower(cat.GroupName)]; ok {
		return b, true
	}
	if opts.KeywordInference {
		name := strings.ToLower(cat.Name)
		for _, entry := range bucketKeywords {
			for _, kw := range entry.keywords {
				if strings.Contains(name, kw) {
					return entry.bucket, true
				}
			}
		}
	}
	return domain.BucketGuiltFree, true
}

func isIncomeCategory(cat domain.Category) bool {
	if incomeCategoryNames[cat.Name] {
		return true
	}
	group := strings.ToLower(cat.GroupName)
	for _, kw := range incomeGroupKeywords {
		if strings.Contains(group, kw) {
			return true
		}
	}
	return false
}
